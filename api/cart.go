package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/till"
	"github.com/xraph/till/cart"
	"github.com/xraph/till/id"
	"github.com/xraph/till/pricing"
	"github.com/xraph/till/types"
)

// CartView is a terminal's cart with its computed totals.
type CartView struct {
	Cart    *cart.Cart     `json:"cart"`
	Totals  pricing.Totals `json:"totals"`
	Event   *cart.Event    `json:"event,omitempty"`
	Changed *bool          `json:"changed,omitempty"`
}

type addItemRequest struct {
	ID          string      `json:"id"`
	Kind        cart.Kind   `json:"kind"`
	Name        string      `json:"name"`
	UnitPrice   types.Money `json:"unit_price"`
	Quantity    int64       `json:"quantity"`
	Category    string      `json:"category,omitempty"`
	PlayMinutes int64       `json:"play_minutes,omitempty"`
	StationName string      `json:"station_name,omitempty"`
}

type quantityRequest struct {
	Quantity int64 `json:"quantity"`
}

type discountRequest struct {
	Amount decimal.Decimal   `json:"amount"`
	Kind   cart.DiscountKind `json:"kind"`
}

type loyaltyRequest struct {
	Points int64 `json:"points"`
}

type customerRequest struct {
	CustomerID string `json:"customer_id"`
}

func (h *Handler) startTerminal(r *http.Request, name string) (trace.Span, string, *http.Request) {
	terminalID := chi.URLParam(r, "terminal")
	ctx, span := h.tracer.Start(r.Context(), name, trace.WithAttributes(attribute.String("till.terminal", terminalID)))
	return span, terminalID, r.WithContext(ctx)
}

func (h *Handler) respondCart(w http.ResponseWriter, r *http.Request, span trace.Span, terminalID string, ev *cart.Event, changed *bool) {
	c, err := h.till.Cart(r.Context(), terminalID)
	if err != nil {
		h.respondEngineError(w, span, err)
		return
	}
	respondJSON(w, http.StatusOK, CartView{
		Cart:    c,
		Totals:  pricing.Compute(pricing.FromCart(c)),
		Event:   ev,
		Changed: changed,
	})
}

// GetCart returns the terminal's cart and totals.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	span, terminalID, r := h.startTerminal(r, "GetCart")
	defer span.End()
	h.respondCart(w, r, span, terminalID, nil, nil)
}

// AddItem adds a product or session line.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	span, terminalID, r := h.startTerminal(r, "AddItem")
	defer span.End()

	var req addItemRequest
	if !decode(w, r, &req) {
		return
	}
	if req.UnitPrice <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_price", "unit_price must be positive")
		return
	}
	if req.Kind == cart.KindProduct && req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be positive")
		return
	}

	ev, err := h.till.AddItem(r.Context(), terminalID, cart.LineItem{
		ID:          req.ID,
		Kind:        req.Kind,
		Name:        req.Name,
		UnitPrice:   req.UnitPrice,
		Quantity:    req.Quantity,
		Category:    req.Category,
		PlayMinutes: req.PlayMinutes,
		StationName: req.StationName,
	})
	if err != nil {
		h.respondEngineError(w, span, err)
		return
	}
	h.respondCart(w, r, span, terminalID, &ev, nil)
}

// UpdateQuantity sets a product line's quantity. Zero removes the line.
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	span, terminalID, r := h.startTerminal(r, "UpdateQuantity")
	defer span.End()

	var req quantityRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Quantity < 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must not be negative")
		return
	}

	ev, changed, err := h.till.UpdateItemQuantity(r.Context(), terminalID, chi.URLParam(r, "item"), req.Quantity)
	if err != nil {
		h.respondEngineError(w, span, err)
		return
	}
	h.respondCart(w, r, span, terminalID, eventIf(ev, changed), &changed)
}

// RemoveItem removes a line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	span, terminalID, r := h.startTerminal(r, "RemoveItem")
	defer span.End()

	ev, changed, err := h.till.RemoveItem(r.Context(), terminalID, chi.URLParam(r, "item"))
	if err != nil {
		h.respondEngineError(w, span, err)
		return
	}
	h.respondCart(w, r, span, terminalID, eventIf(ev, changed), &changed)
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	span, terminalID, r := h.startTerminal(r, "ClearCart")
	defer span.End()

	ev, err := h.till.ClearCart(r.Context(), terminalID)
	if err != nil {
		h.respondEngineError(w, span, err)
		return
	}
	h.respondCart(w, r, span, terminalID, &ev, nil)
}

// SetDiscount sets the sale's discount.
func (h *Handler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	span, terminalID, r := h.startTerminal(r, "SetDiscount")
	defer span.End()

	var req discountRequest
	if !decode(w, r, &req) {
		return
	}
	ev, err := h.till.SetDiscount(r.Context(), terminalID, req.Amount, req.Kind)
	if err != nil {
		h.respondEngineError(w, span, err)
		return
	}
	h.respondCart(w, r, span, terminalID, &ev, nil)
}

// SetLoyalty sets the loyalty points redeemed.
func (h *Handler) SetLoyalty(w http.ResponseWriter, r *http.Request) {
	span, terminalID, r := h.startTerminal(r, "SetLoyalty")
	defer span.End()

	var req loyaltyRequest
	if !decode(w, r, &req) {
		return
	}
	ev, err := h.till.SetLoyaltyPointsUsed(r.Context(), terminalID, req.Points)
	if err != nil {
		h.respondEngineError(w, span, err)
		return
	}
	h.respondCart(w, r, span, terminalID, &ev, nil)
}

// SetSplit sets the cash/UPI split.
func (h *Handler) SetSplit(w http.ResponseWriter, r *http.Request) {
	span, terminalID, r := h.startTerminal(r, "SetSplit")
	defer span.End()

	var req cart.SplitPayment
	if !decode(w, r, &req) {
		return
	}
	ev, err := h.till.SetSplitPayment(r.Context(), terminalID, req)
	if err != nil {
		h.respondEngineError(w, span, err)
		return
	}
	h.respondCart(w, r, span, terminalID, &ev, nil)
}

// SelectCustomer attaches a customer. An empty id clears the selection.
func (h *Handler) SelectCustomer(w http.ResponseWriter, r *http.Request) {
	span, terminalID, r := h.startTerminal(r, "SelectCustomer")
	defer span.End()

	var req customerRequest
	if !decode(w, r, &req) {
		return
	}
	customerID := id.Nil
	if req.CustomerID != "" {
		parsed, err := id.ParseCustomerID(req.CustomerID)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_customer_id", err.Error())
			return
		}
		customerID = parsed
	}

	ev, err := h.till.SelectCustomer(r.Context(), terminalID, customerID)
	if err != nil {
		h.respondEngineError(w, span, err)
		return
	}
	h.respondCart(w, r, span, terminalID, &ev, nil)
}

// Checkout completes the sale and returns the bill.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	span, terminalID, r := h.startTerminal(r, "Checkout")
	defer span.End()

	var req till.CheckoutRequest
	if !decode(w, r, &req) {
		return
	}
	if !req.PaymentMethod.Valid() {
		respondError(w, http.StatusBadRequest, "invalid_payment", "unknown payment method")
		return
	}

	b, err := h.till.CompleteSale(r.Context(), terminalID, req)
	if err != nil {
		h.respondEngineError(w, span, err)
		return
	}
	span.SetAttributes(attribute.String("till.bill", b.ID.String()))
	respondJSON(w, http.StatusCreated, b)
}

func eventIf(ev cart.Event, changed bool) *cart.Event {
	if !changed {
		return nil
	}
	return &ev
}
