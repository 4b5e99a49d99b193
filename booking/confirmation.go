// Package booking sends booking-confirmation emails for table reservations.
package booking

import (
	"errors"
	"net/mail"
	"strings"
)

// Confirmation is a confirmed table booking to notify the customer about.
type Confirmation struct {
	BookingID        string   `json:"bookingId"`
	CustomerName     string   `json:"customerName"`
	StationName      string   `json:"stationName"`
	BookingDate      string   `json:"bookingDate"`
	StartTime        string   `json:"startTime"`
	EndTime          string   `json:"endTime"`
	Duration         int      `json:"duration"`
	BookingReference string   `json:"bookingReference"`
	RecipientEmail   string   `json:"recipientEmail"`
	Discount         *float64 `json:"discount,omitempty"`
	FinalPrice       *float64 `json:"finalPrice,omitempty"`
	TotalStations    *int     `json:"totalStations,omitempty"`
}

// ErrInvalidConfirmation is wrapped by every Validate failure.
var ErrInvalidConfirmation = errors.New("booking: invalid confirmation")

// Validate checks that the required fields are present and the recipient
// looks like an email address.
func (c *Confirmation) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"bookingId", c.BookingID},
		{"customerName", c.CustomerName},
		{"stationName", c.StationName},
		{"bookingDate", c.BookingDate},
		{"startTime", c.StartTime},
		{"endTime", c.EndTime},
		{"bookingReference", c.BookingReference},
		{"recipientEmail", c.RecipientEmail},
	}
	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if c.Duration <= 0 {
		missing = append(missing, "duration")
	}
	if len(missing) > 0 {
		return errors.Join(ErrInvalidConfirmation, errors.New("missing "+strings.Join(missing, ", ")))
	}

	addr, err := mail.ParseAddress(c.RecipientEmail)
	if err != nil || addr.Address != c.RecipientEmail || !strings.Contains(addr.Address[strings.IndexByte(addr.Address, '@'):], ".") {
		return errors.Join(ErrInvalidConfirmation, errors.New("recipientEmail is not a valid address"))
	}
	return nil
}

// Subject is the email subject line.
func (c *Confirmation) Subject() string {
	return "Booking confirmed: " + c.StationName + " on " + c.BookingDate
}
