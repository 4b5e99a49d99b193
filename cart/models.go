package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/till/id"
	"github.com/xraph/till/types"
)

// Kind distinguishes sellable products from timed station sessions.
type Kind string

const (
	KindProduct Kind = "product"
	KindSession Kind = "session"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return k == KindProduct || k == KindSession }

// LineItem is one row of the cart. Session items always have quantity 1
// and a total equal to their unit price.
type LineItem struct {
	ID          string      `json:"id"`
	Kind        Kind        `json:"kind"`
	Name        string      `json:"name"`
	UnitPrice   types.Money `json:"unit_price"`
	Quantity    int64       `json:"quantity"`
	Total       types.Money `json:"total"`
	Category    string      `json:"category,omitempty"`
	PlayMinutes int64       `json:"play_minutes,omitempty"`
	StationName string      `json:"station_name,omitempty"`
}

// DiscountKind selects how Discount.Amount is interpreted.
type DiscountKind string

const (
	DiscountPercentage DiscountKind = "percentage"
	DiscountFixed      DiscountKind = "fixed"
)

// Valid reports whether k is a known discount kind.
func (k DiscountKind) Valid() bool { return k == DiscountPercentage || k == DiscountFixed }

// Discount is the discount selected for the active checkout. A percentage
// amount is 0-100 of the subtotal; a fixed amount is in minor units.
type Discount struct {
	Amount decimal.Decimal `json:"amount"`
	Kind   DiscountKind    `json:"kind"`
}

// NoDiscount is the reset state: zero percent.
func NoDiscount() Discount {
	return Discount{Amount: decimal.Zero, Kind: DiscountPercentage}
}

// SplitPayment divides a sale across cash and UPI.
type SplitPayment struct {
	Enabled bool        `json:"enabled"`
	Cash    types.Money `json:"cash"`
	UPI     types.Money `json:"upi"`
}

// Sum returns the combined tender.
func (s SplitPayment) Sum() types.Money { return s.Cash.Add(s.UPI) }

// Cart is the working state of one terminal's checkout.
type Cart struct {
	TerminalID        string        `json:"terminal_id"`
	CustomerID        id.CustomerID `json:"customer_id"`
	Lines             []LineItem    `json:"items"`
	Discount          Discount      `json:"discount"`
	LoyaltyPointsUsed int64         `json:"loyalty_points_used"`
	Split             SplitPayment  `json:"split"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// EventKind names a cart mutation.
type EventKind string

const (
	EventItemAdded        EventKind = "item_added"
	EventItemUpdated      EventKind = "item_updated"
	EventItemRemoved      EventKind = "item_removed"
	EventQuantityUpdated  EventKind = "quantity_updated"
	EventCartCleared      EventKind = "cart_cleared"
	EventDiscountApplied  EventKind = "discount_applied"
	EventLoyaltyApplied   EventKind = "loyalty_applied"
	EventSplitUpdated     EventKind = "split_updated"
	EventCustomerSelected EventKind = "customer_selected"
)

// Event describes one effective cart mutation for operator notifications.
type Event struct {
	Kind       EventKind `json:"kind"`
	Message    string    `json:"message"`
	TerminalID string    `json:"terminal_id,omitempty"`
	ItemID     string    `json:"item_id,omitempty"`
}
