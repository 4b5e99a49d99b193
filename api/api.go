// Package api exposes the till engine over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/till"
)

// Handler serves the till HTTP API.
type Handler struct {
	till   *till.Till
	logger *slog.Logger
	tracer trace.Tracer
}

// NewHandler creates a Handler over t.
func NewHandler(t *till.Till, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{till: t, logger: logger, tracer: otel.Tracer("till-api")}
}

// Routes returns the API router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/terminals/{terminal}", func(r chi.Router) {
		r.Get("/cart", h.GetCart)
		r.Delete("/cart", h.ClearCart)
		r.Post("/cart/items", h.AddItem)
		r.Patch("/cart/items/{item}", h.UpdateQuantity)
		r.Delete("/cart/items/{item}", h.RemoveItem)
		r.Put("/cart/discount", h.SetDiscount)
		r.Put("/cart/loyalty", h.SetLoyalty)
		r.Put("/cart/split", h.SetSplit)
		r.Put("/cart/customer", h.SelectCustomer)
		r.Post("/cart/checkout", h.Checkout)
	})

	r.Get("/bills", h.ListBills)
	r.Get("/bills/{bill}", h.GetBill)
	r.Put("/bills/{bill}", h.UpdateBill)
	r.Delete("/bills/{bill}", h.DeleteBill)

	r.Post("/customers", h.CreateCustomer)
	r.Get("/customers", h.ListCustomers)
	r.Get("/customers/{customer}", h.GetCustomer)
	r.Put("/customers/{customer}", h.UpdateCustomer)

	return r
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Warn("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// respondEngineError maps an engine error to a status code.
func (h *Handler) respondEngineError(w http.ResponseWriter, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	status, code := classify(err)
	body := ErrorResponse{Error: err.Error(), Code: code}
	var ve *till.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	respondJSON(w, status, body)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, till.ErrBillMismatch):
		return http.StatusConflict, "bill_mismatch"
	case errors.Is(err, till.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case till.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, till.ErrInvalidItem):
		return http.StatusBadRequest, "invalid_item"
	case errors.Is(err, till.ErrNoCustomerSelected):
		return http.StatusUnprocessableEntity, "no_customer"
	case errors.Is(err, till.ErrEmptyCart):
		return http.StatusUnprocessableEntity, "empty_cart"
	case errors.Is(err, till.ErrInsufficientLoyalty):
		return http.StatusUnprocessableEntity, "insufficient_loyalty"
	case errors.Is(err, till.ErrSplitMismatch):
		return http.StatusUnprocessableEntity, "split_mismatch"
	case errors.Is(err, till.ErrInvalidPayment):
		return http.StatusUnprocessableEntity, "invalid_payment"
	case till.IsValidation(err):
		return http.StatusUnprocessableEntity, "validation_failed"
	case till.IsRetryable(err):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func queryInt(r *http.Request, key string) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
