package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfirmation() Confirmation {
	final := 450.0
	return Confirmation{
		BookingID:        "bk-1",
		CustomerName:     "Asha <Rao>",
		StationName:      "Snooker 2",
		BookingDate:      "2026-10-20",
		StartTime:        "18:00",
		EndTime:          "19:00",
		Duration:         60,
		BookingReference: "REF123",
		RecipientEmail:   "asha@example.com",
		FinalPrice:       &final,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Confirmation)
		ok     bool
	}{
		{"Valid", func(*Confirmation) {}, true},
		{"Missing booking id", func(c *Confirmation) { c.BookingID = "" }, false},
		{"Blank station", func(c *Confirmation) { c.StationName = "  " }, false},
		{"Zero duration", func(c *Confirmation) { c.Duration = 0 }, false},
		{"Bad email", func(c *Confirmation) { c.RecipientEmail = "not-an-email" }, false},
		{"No domain dot", func(c *Confirmation) { c.RecipientEmail = "a@localhost" }, false},
		{"Display name", func(c *Confirmation) { c.RecipientEmail = "Asha <asha@example.com>" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfirmation()
			tt.mutate(&c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfirmation)
			}
		})
	}
}

func TestRenderEscapesAndIncludesDetails(t *testing.T) {
	html, err := Render(context.Background(), validConfirmation())
	require.NoError(t, err)

	assert.Contains(t, html, "Asha &lt;Rao&gt;")
	assert.Contains(t, html, "REF123")
	assert.Contains(t, html, "18:00 to 19:00")
	assert.Contains(t, html, "60 minutes")
	assert.Contains(t, html, "450.00")
	assert.NotContains(t, html, "Discount")
	assert.NotContains(t, html, "Tables booked")
}

func TestEmailComponentOptionalRows(t *testing.T) {
	c := validConfirmation()
	discount, stations := 50.0, 2
	c.Discount = &discount
	c.TotalStations = &stations
	c.StationName = `Table <3> & "Pool"`

	var buf bytes.Buffer
	require.NoError(t, Email(c).Render(context.Background(), &buf))
	html := buf.String()

	assert.True(t, strings.HasPrefix(html, "<!doctype html>"))
	assert.Contains(t, html, `<td style="font-weight:bold">Discount</td><td>50.00</td>`)
	assert.Contains(t, html, `<td style="font-weight:bold">Tables booked</td><td>2</td>`)
	assert.Contains(t, html, "Table &lt;3&gt; &amp; &#34;Pool&#34;")
}

func TestEmailHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Render(ctx, validConfirmation())
	assert.ErrorIs(t, err, context.Canceled)
}

type provider struct {
	mu       sync.Mutex
	status   int
	requests []emailRequest
	keys     []string
	auth     string
}

func (p *provider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var req emailRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	p.requests = append(p.requests, req)
	p.keys = append(p.keys, r.Header.Get("Idempotency-Key"))
	p.auth = r.Header.Get("Authorization")
	if p.status != 0 {
		w.WriteHeader(p.status)
		_, _ = w.Write([]byte(`{"message":"rejected"}`))
		return
	}
	_, _ = w.Write([]byte(`{"id":"msg-42"}`))
}

type sentLog struct {
	bookings []string
	messages []string
}

func (s *sentLog) EmitBookingConfirmationSent(_ context.Context, bookingID, messageID string) {
	s.bookings = append(s.bookings, bookingID)
	s.messages = append(s.messages, messageID)
}

func TestSenderPostsEmail(t *testing.T) {
	p := &provider{}
	srv := httptest.NewServer(p)
	defer srv.Close()

	sent := &sentLog{}
	s := NewSender("re_key", "Club <bookings@club.test>", WithEndpoint(srv.URL+"/"), WithNotifier(sent))

	id, err := s.Send(context.Background(), validConfirmation())
	require.NoError(t, err)
	assert.Equal(t, "msg-42", id)

	require.Len(t, p.requests, 1)
	assert.Equal(t, "Bearer re_key", p.auth)
	assert.Equal(t, []string{"asha@example.com"}, p.requests[0].To)
	assert.Equal(t, "Club <bookings@club.test>", p.requests[0].From)
	assert.True(t, strings.HasPrefix(p.requests[0].Subject, "Booking confirmed"))
	assert.NotEmpty(t, p.keys[0])

	assert.Equal(t, []string{"bk-1"}, sent.bookings)
	assert.Equal(t, []string{"msg-42"}, sent.messages)
}

func TestSenderRejectsInvalidWithoutCalling(t *testing.T) {
	p := &provider{}
	srv := httptest.NewServer(p)
	defer srv.Close()

	s := NewSender("k", "from@club.test", WithEndpoint(srv.URL))
	c := validConfirmation()
	c.RecipientEmail = ""
	_, err := s.Send(context.Background(), c)
	assert.ErrorIs(t, err, ErrInvalidConfirmation)
	assert.Empty(t, p.requests)
}

func TestSenderBreakerOpens(t *testing.T) {
	p := &provider{status: http.StatusInternalServerError}
	srv := httptest.NewServer(p)
	defer srv.Close()

	s := NewSender("k", "from@club.test",
		WithEndpoint(srv.URL),
		WithBreakerSettings(gobreaker.Settings{
			Name:    "test",
			Timeout: time.Minute,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 2
			},
		}),
	)

	for i := 0; i < 2; i++ {
		_, err := s.Send(context.Background(), validConfirmation())
		assert.ErrorIs(t, err, ErrSendFailed)
	}
	_, err := s.Send(context.Background(), validConfirmation())
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Len(t, p.requests, 2)
}

type stubMailer struct {
	id  string
	err error
}

func (m stubMailer) Send(_ context.Context, c Confirmation) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	return m.id, m.err
}

func TestHandler(t *testing.T) {
	valid, _ := json.Marshal(validConfirmation())

	tests := []struct {
		name   string
		mailer stubMailer
		body   string
		status int
		want   string
	}{
		{"Sent", stubMailer{id: "msg-1"}, string(valid), http.StatusOK, `{"success":true,"data":{"id":"msg-1"}}`},
		{"Bad JSON", stubMailer{}, `{`, http.StatusBadRequest, `{"success":false,"error":"invalid request body"}`},
		{"Invalid", stubMailer{}, `{"bookingId":"x"}`, http.StatusBadRequest, ""},
		{"Provider failure", stubMailer{err: ErrSendFailed}, string(valid), http.StatusBadRequest, `{"success":false,"error":"booking: send failed"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(tt.mailer, nil)
			req := httptest.NewRequest(http.MethodPost, "/bookings/confirmation", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Routes().ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.want != "" {
				assert.JSONEq(t, tt.want, rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), `"success":false`)
			}
		})
	}
}
