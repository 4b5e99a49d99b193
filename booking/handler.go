package booking

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Mailer sends a confirmation and returns the provider's message id.
type Mailer interface {
	Send(ctx context.Context, c Confirmation) (string, error)
}

// Handler exposes the sender over HTTP.
type Handler struct {
	mailer Mailer
	logger *slog.Logger
	tracer trace.Tracer
}

// NewHandler creates a Handler.
func NewHandler(m Mailer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{mailer: m, logger: logger, tracer: otel.Tracer("till-booking")}
}

// Routes mounts POST /bookings/confirmation.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/bookings/confirmation", h.SendConfirmation)
	return r
}

type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SendConfirmation decodes a Confirmation and emails it.
func (h *Handler) SendConfirmation(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SendBookingConfirmation")
	defer span.End()

	var c Confirmation
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		span.SetStatus(codes.Error, "decode")
		write(w, http.StatusBadRequest, response{Error: "invalid request body"})
		return
	}
	span.SetAttributes(attribute.String("booking.id", c.BookingID))

	messageID, err := h.mailer.Send(ctx, c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send")
		write(w, http.StatusBadRequest, response{Error: err.Error()})
		return
	}
	write(w, http.StatusOK, response{Success: true, Data: map[string]string{"id": messageID}})
}

func write(w http.ResponseWriter, status int, v response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
