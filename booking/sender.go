package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
)

// DefaultEndpoint is the Resend API base URL.
const DefaultEndpoint = "https://api.resend.com"

// ErrSendFailed is returned when the email provider rejects a message.
var ErrSendFailed = errors.New("booking: send failed")

// Notifier is told about every confirmation that was sent.
// *plugin.Registry satisfies it.
type Notifier interface {
	EmitBookingConfirmationSent(ctx context.Context, bookingID, messageID string)
}

// Sender delivers confirmation emails through a Resend-compatible API.
type Sender struct {
	endpoint string
	apiKey   string
	from     string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[string]
	notifier Notifier
	logger   *slog.Logger
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithEndpoint overrides the API base URL.
func WithEndpoint(url string) SenderOption {
	return func(s *Sender) { s.endpoint = strings.TrimRight(url, "/") }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) SenderOption {
	return func(s *Sender) { s.client = c }
}

// WithNotifier reports sent confirmations to n.
func WithNotifier(n Notifier) SenderOption {
	return func(s *Sender) { s.notifier = n }
}

// WithSenderLogger sets the logger.
func WithSenderLogger(l *slog.Logger) SenderOption {
	return func(s *Sender) { s.logger = l }
}

// WithBreakerSettings replaces the circuit breaker settings.
func WithBreakerSettings(st gobreaker.Settings) SenderOption {
	return func(s *Sender) { s.breaker = gobreaker.NewCircuitBreaker[string](st) }
}

// NewSender creates a Sender that authenticates with apiKey and sends as from.
func NewSender(apiKey, from string, opts ...SenderOption) *Sender {
	s := &Sender{
		endpoint: DefaultEndpoint,
		apiKey:   apiKey,
		from:     from,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		s.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:        "booking-email",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				s.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return s
}

type emailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type emailResponse struct {
	ID string `json:"id"`
}

// Send validates c, renders it and posts it to the provider. It returns the
// provider's message id.
func (s *Sender) Send(ctx context.Context, c Confirmation) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	html, err := Render(ctx, c)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(emailRequest{
		From:    s.from,
		To:      []string{c.RecipientEmail},
		Subject: c.Subject(),
		HTML:    html,
	})
	if err != nil {
		return "", fmt.Errorf("booking: encode request: %w", err)
	}

	key := uuid.NewString()
	messageID, err := s.breaker.Execute(func() (string, error) {
		return s.post(ctx, body, key)
	})
	if err != nil {
		s.logger.Error("booking confirmation not sent", "booking", c.BookingID, "error", err)
		return "", err
	}

	s.logger.Info("booking confirmation sent", "booking", c.BookingID, "message", messageID)
	if s.notifier != nil {
		s.notifier.EmitBookingConfirmationSent(ctx, c.BookingID, messageID)
	}
	return messageID, nil
}

func (s *Sender) post(ctx context.Context, body []byte, idempotencyKey string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("booking: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d: %s", ErrSendFailed, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out emailResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrSendFailed, err)
	}
	return out.ID, nil
}
