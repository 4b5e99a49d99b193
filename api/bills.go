package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/xraph/till"
	"github.com/xraph/till/bill"
	"github.com/xraph/till/id"
)

func (h *Handler) billID(w http.ResponseWriter, r *http.Request) (id.BillID, bool) {
	billID, err := id.ParseBillID(chi.URLParam(r, "bill"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_bill_id", err.Error())
		return id.Nil, false
	}
	return billID, true
}

// GetBill returns one bill.
func (h *Handler) GetBill(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetBill")
	defer span.End()

	billID, ok := h.billID(w, r)
	if !ok {
		return
	}
	b, err := h.till.GetBill(ctx, billID)
	if err != nil {
		h.respondEngineError(w, span, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

// ListBills lists bills, optionally for one customer.
func (h *Handler) ListBills(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListBills")
	defer span.End()

	var opts bill.ListOpts
	q := r.URL.Query()
	if raw := q.Get("customer"); raw != "" {
		customerID, err := id.ParseCustomerID(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_customer_id", err.Error())
			return
		}
		opts.CustomerID = customerID
	}
	for key, dst := range map[string]*time.Time{"since": &opts.Since, "until": &opts.Until} {
		if raw := q.Get(key); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				respondError(w, http.StatusBadRequest, "invalid_"+key, key+" must be RFC 3339")
				return
			}
			*dst = t
		}
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

	bills, err := h.till.ListBills(ctx, opts)
	if err != nil {
		h.respondEngineError(w, span, err)
		return
	}
	if bills == nil {
		bills = []*bill.Bill{}
	}
	respondJSON(w, http.StatusOK, bills)
}

// UpdateBill revises a bill. The body carries the bill as the client last
// read it under "original".
func (h *Handler) UpdateBill(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateBill")
	defer span.End()

	billID, ok := h.billID(w, r)
	if !ok {
		return
	}
	var rev till.Revision
	if !decode(w, r, &rev) {
		return
	}
	if rev.Original == nil {
		respondError(w, http.StatusBadRequest, "missing_original", "original bill is required")
		return
	}
	if rev.Original.ID != billID {
		respondError(w, http.StatusBadRequest, "bill_id_mismatch", "original.id does not match the path")
		return
	}
	for _, it := range rev.Items {
		if it.UnitPrice <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_price", "unit_price must be positive")
			return
		}
	}
	span.SetAttributes(attribute.String("till.bill", billID.String()))

	b, err := h.till.UpdateBill(ctx, rev)
	if err != nil {
		h.respondEngineError(w, span, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

// DeleteBill removes a bill and reverses its effect on the customer.
func (h *Handler) DeleteBill(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeleteBill")
	defer span.End()

	billID, ok := h.billID(w, r)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("till.bill", billID.String()))
	if err := h.till.DeleteBill(ctx, billID); err != nil {
		h.respondEngineError(w, span, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

