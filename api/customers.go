package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xraph/till/customer"
	"github.com/xraph/till/id"
)

type customerBody struct {
	Name                string            `json:"name"`
	Phone               string            `json:"phone,omitempty"`
	Email               string            `json:"email,omitempty"`
	IsMember            bool              `json:"is_member"`
	MembershipPlan      string            `json:"membership_plan,omitempty"`
	MembershipExpiresAt *time.Time        `json:"membership_expires_at,omitempty"`
	MembershipHoursLeft decimal.Decimal   `json:"membership_hours_left"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

func (b customerBody) applyTo(c *customer.Customer) {
	c.Name = b.Name
	c.Phone = b.Phone
	c.Email = b.Email
	c.IsMember = b.IsMember
	c.MembershipPlan = b.MembershipPlan
	c.MembershipExpiresAt = b.MembershipExpiresAt
	c.MembershipHoursLeft = b.MembershipHoursLeft
	c.Metadata = b.Metadata
}

func (h *Handler) customerID(w http.ResponseWriter, r *http.Request) (id.CustomerID, bool) {
	customerID, err := id.ParseCustomerID(chi.URLParam(r, "customer"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_customer_id", err.Error())
		return id.Nil, false
	}
	return customerID, true
}

// CreateCustomer registers a customer.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateCustomer")
	defer span.End()

	var body customerBody
	if !decode(w, r, &body) {
		return
	}
	c := &customer.Customer{}
	body.applyTo(c)
	if err := h.till.CreateCustomer(ctx, c); err != nil {
		h.respondEngineError(w, span, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// GetCustomer returns one customer.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetCustomer")
	defer span.End()

	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}
	c, err := h.till.GetCustomer(ctx, customerID)
	if err != nil {
		h.respondEngineError(w, span, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// ListCustomers lists customers. Query: search, members, limit, offset.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListCustomers")
	defer span.End()

	opts := customer.ListOpts{
		Search:  r.URL.Query().Get("search"),
		Members: r.URL.Query().Get("members") == "true",
	}
	var ok bool
	if opts.Limit, ok = queryInt(r, "limit"); !ok {
		respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
		return
	}
	if opts.Offset, ok = queryInt(r, "offset"); !ok {
		respondError(w, http.StatusBadRequest, "invalid_offset", "offset must be a non-negative integer")
		return
	}

	customers, err := h.till.ListCustomers(ctx, opts)
	if err != nil {
		h.respondEngineError(w, span, err)
		return
	}
	if customers == nil {
		customers = []*customer.Customer{}
	}
	respondJSON(w, http.StatusOK, customers)
}

// UpdateCustomer replaces profile and membership fields. Aggregates are
// owned by bills and cannot be set here.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateCustomer")
	defer span.End()

	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}
	var body customerBody
	if !decode(w, r, &body) {
		return
	}

	c, err := h.till.GetCustomer(ctx, customerID)
	if err != nil {
		h.respondEngineError(w, span, err)
		return
	}
	body.applyTo(c)
	if err := h.till.UpdateCustomer(ctx, c); err != nil {
		h.respondEngineError(w, span, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}
