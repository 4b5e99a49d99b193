// Package webhook receives payment-gateway notifications. Every delivery is
// answered with 200; rejected deliveries are only logged.
package webhook

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/till/id"
	"github.com/xraph/till/payment"
)

// maxBody caps the request body read from the gateway.
const maxBody = 1 << 20

// Dispatcher receives accepted events. *plugin.Registry satisfies it.
type Dispatcher interface {
	EmitPaymentEvent(ctx context.Context, ev *payment.Event) error
}

// Deduper remembers processed deliveries. The redis store satisfies it.
type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// Outcome says what the receiver did with a delivery.
type Outcome string

const (
	OutcomeDispatched   Outcome = "dispatched"
	OutcomeUnauthorized Outcome = "unauthorized"
	OutcomeMalformed    Outcome = "malformed"
	OutcomeIgnored      Outcome = "ignored"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeFailed       Outcome = "failed"
)

// Handler is the webhook receiver.
type Handler struct {
	dispatcher Dispatcher
	deduper    Deduper
	authHash   string
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithCredentials requires the Authorization header to carry the hex
// SHA-256 of "username:password".
func WithCredentials(username, password string) Option {
	return func(h *Handler) {
		if username == "" && password == "" {
			h.authHash = ""
			return
		}
		sum := sha256.Sum256([]byte(username + ":" + password))
		h.authHash = hex.EncodeToString(sum[:])
	}
}

// WithDeduper drops deliveries whose key has been seen before.
func WithDeduper(d Deduper) Option {
	return func(h *Handler) { h.deduper = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithClock overrides the time source used for ReceivedAt.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// NewHandler creates a receiver dispatching to d.
func NewHandler(d Dispatcher, opts ...Option) *Handler {
	h := &Handler{
		dispatcher: d,
		logger:     slog.Default(),
		tracer:     otel.Tracer("till-webhook"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts POST /webhooks/payment.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/webhooks/payment", h.ServeHTTP)
	return r
}

// ServeHTTP handles one delivery. The response is always 200.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PaymentWebhook")
	defer span.End()

	outcome := h.receive(ctx, r)
	span.SetAttributes(attribute.String("webhook.outcome", string(outcome)))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received":true}`))
}

func (h *Handler) receive(ctx context.Context, r *http.Request) Outcome {
	if !h.authorized(r) {
		h.logger.Warn("payment webhook rejected: bad credentials", "remote", r.RemoteAddr)
		return OutcomeUnauthorized
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		h.logger.Warn("payment webhook unreadable", "error", err)
		return OutcomeMalformed
	}

	ev, err := parse(body)
	if err != nil {
		h.logger.Warn("payment webhook malformed", "error", err)
		return OutcomeMalformed
	}
	if !ev.Type.Known() {
		h.logger.Info("payment webhook ignored", "event", ev.Type)
		return OutcomeIgnored
	}

	key := ev.DedupeKey()
	marked := false
	if h.deduper != nil && key != "" {
		seen, err := h.deduper.Seen(ctx, key)
		switch {
		case err != nil:
			// Dispatch without dedupe while the deduper is unavailable.
			h.logger.Warn("payment webhook dedupe unavailable", "error", err)
		case seen:
			h.logger.Info("payment webhook duplicate", "key", key)
			return OutcomeDuplicate
		default:
			marked = true
		}
	}

	ev.ID = id.NewWebhookID().String()
	ev.ReceivedAt = h.now().UTC()
	if err := h.dispatcher.EmitPaymentEvent(ctx, ev); err != nil {
		h.logger.Error("payment webhook dispatch failed",
			"event", ev.Type,
			"order", ev.Payload.Reference(),
			"error", err,
		)
		// A redelivery of the same notification must not be dropped.
		if marked {
			if ferr := h.deduper.Forget(ctx, key); ferr != nil {
				h.logger.Warn("payment webhook dedupe not cleared", "key", key, "error", ferr)
			}
		}
		return OutcomeFailed
	}

	h.logger.Info("payment webhook received",
		"event", ev.Type,
		"order", ev.Payload.Reference(),
		"state", ev.Payload.State,
		"amount", ev.Payload.Amount,
	)
	return OutcomeDispatched
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.authHash == "" {
		return true
	}
	got := r.Header.Get("Authorization")
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.authHash)) == 1
}

func parse(body []byte) (*payment.Event, error) {
	var wire struct {
		Event   payment.EventType `json:"event"`
		Payload json.RawMessage   `json:"payload"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, err
	}

	ev := &payment.Event{Type: wire.Event}
	if len(wire.Payload) > 0 {
		if err := json.Unmarshal(wire.Payload, &ev.Payload); err != nil {
			return nil, err
		}
		ev.Payload.Raw = wire.Payload
	}
	return ev, nil
}
