package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/till"
	"github.com/xraph/till/api"
	"github.com/xraph/till/bill"
	"github.com/xraph/till/customer"
	"github.com/xraph/till/id"
	"github.com/xraph/till/store/memory"
)

type server struct {
	t       *testing.T
	handler http.Handler
}

func newServer(t *testing.T) *server {
	t.Helper()
	s := memory.New()
	tl := till.New(s, till.WithSnapshotStore(s))
	require.NoError(t, tl.Start(context.Background()))
	t.Cleanup(func() { _ = tl.Stop() })
	return &server{t: t, handler: api.NewHandler(tl, nil).Routes()}
}

func (s *server) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeInto[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *server) createCustomer(name string) *customer.Customer {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/customers", map[string]any{"name": name})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeInto[*customer.Customer](s.t, rec)
}

func TestCheckoutFlow(t *testing.T) {
	s := newServer(t)
	c := s.createCustomer("Ravi")

	rec := s.do(http.MethodPost, "/terminals/t1/cart/items", map[string]any{
		"id": "coke", "kind": "product", "name": "Coke", "unit_price": 50, "quantity": 2,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/terminals/t1/cart/items", map[string]any{
		"id": "s1", "kind": "session", "name": "Table 1", "unit_price": 100, "play_minutes": 45,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeInto[api.CartView](t, rec)
	assert.Equal(t, till.Money(200), view.Totals.Subtotal)
	require.NotNil(t, view.Event)
	assert.Equal(t, "item_added", string(view.Event.Kind))

	rec = s.do(http.MethodPut, "/terminals/t1/cart/discount", map[string]any{"amount": "10", "kind": "percentage"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodPut, "/terminals/t1/cart/customer", map[string]any{"customer_id": c.ID.String()})
	require.Equal(t, http.StatusOK, rec.Code)

	view = decodeInto[api.CartView](t, s.do(http.MethodGet, "/terminals/t1/cart", nil))
	assert.Equal(t, till.Money(180), view.Totals.Final)

	rec = s.do(http.MethodPost, "/terminals/t1/cart/checkout", map[string]any{"payment_method": "cash"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	b := decodeInto[*bill.Bill](t, rec)
	assert.Equal(t, till.Money(180), b.Total)
	assert.Equal(t, int64(45), b.PlayMinutes)

	view = decodeInto[api.CartView](t, s.do(http.MethodGet, "/terminals/t1/cart", nil))
	assert.Empty(t, view.Cart.Lines)

	got := decodeInto[*customer.Customer](t, s.do(http.MethodGet, "/customers/"+c.ID.String(), nil))
	assert.Equal(t, till.Money(180), got.TotalSpent)
	assert.Equal(t, int64(45), got.TotalPlayMinutes)

	bills := decodeInto[[]*bill.Bill](t, s.do(http.MethodGet, "/bills?customer="+c.ID.String(), nil))
	require.Len(t, bills, 1)
	assert.Equal(t, b.ID, bills[0].ID)
}

func TestBoundaryValidation(t *testing.T) {
	s := newServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"Zero price", http.MethodPost, "/terminals/t1/cart/items",
			map[string]any{"id": "x", "kind": "product", "unit_price": 0, "quantity": 1}, http.StatusBadRequest, "invalid_price"},
		{"Zero quantity", http.MethodPost, "/terminals/t1/cart/items",
			map[string]any{"id": "x", "kind": "product", "unit_price": 10, "quantity": 0}, http.StatusBadRequest, "invalid_quantity"},
		{"Unknown kind", http.MethodPost, "/terminals/t1/cart/items",
			map[string]any{"id": "x", "kind": "voucher", "unit_price": 10, "quantity": 1}, http.StatusBadRequest, "invalid_item"},
		{"Negative quantity update", http.MethodPatch, "/terminals/t1/cart/items/x",
			map[string]any{"quantity": -1}, http.StatusBadRequest, "invalid_quantity"},
		{"Bad JSON", http.MethodPut, "/terminals/t1/cart/loyalty", "{", http.StatusBadRequest, "invalid_request"},
		{"Negative loyalty", http.MethodPut, "/terminals/t1/cart/loyalty",
			map[string]any{"points": -5}, http.StatusUnprocessableEntity, "validation_failed"},
		{"Bad discount kind", http.MethodPut, "/terminals/t1/cart/discount",
			map[string]any{"amount": "5", "kind": "bogus"}, http.StatusUnprocessableEntity, "validation_failed"},
		{"Bad customer id", http.MethodPut, "/terminals/t1/cart/customer",
			map[string]any{"customer_id": "nope"}, http.StatusBadRequest, "invalid_customer_id"},
		{"Unknown payment", http.MethodPost, "/terminals/t1/cart/checkout",
			map[string]any{"payment_method": "bitcoin"}, http.StatusBadRequest, "invalid_payment"},
		{"Checkout without customer", http.MethodPost, "/terminals/t1/cart/checkout",
			map[string]any{"payment_method": "cash"}, http.StatusUnprocessableEntity, "no_customer"},
		{"Bad bill id", http.MethodGet, "/bills/123", nil, http.StatusBadRequest, "invalid_bill_id"},
		{"Customer without name", http.MethodPost, "/customers",
			map[string]any{"phone": "123"}, http.StatusUnprocessableEntity, "validation_failed"},
		{"Bad limit", http.MethodGet, "/customers?limit=-1", nil, http.StatusBadRequest, "invalid_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decodeInto[api.ErrorResponse](t, rec).Code)
		})
	}
}

func TestNotFound(t *testing.T) {
	s := newServer(t)
	missing := id.NewCustomerID().String()

	rec := s.do(http.MethodGet, "/customers/"+missing, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPut, "/terminals/t1/cart/customer", map[string]any{"customer_id": missing})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodDelete, "/bills/"+id.NewBillID().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuantityUpdateAndRemove(t *testing.T) {
	s := newServer(t)
	s.do(http.MethodPost, "/terminals/t1/cart/items", map[string]any{
		"id": "chips", "kind": "product", "unit_price": 30, "quantity": 1,
	})

	view := decodeInto[api.CartView](t, s.do(http.MethodPatch, "/terminals/t1/cart/items/chips", map[string]any{"quantity": 3}))
	require.NotNil(t, view.Changed)
	assert.True(t, *view.Changed)
	assert.Equal(t, till.Money(90), view.Totals.Subtotal)

	view = decodeInto[api.CartView](t, s.do(http.MethodDelete, "/terminals/t1/cart/items/missing", nil))
	require.NotNil(t, view.Changed)
	assert.False(t, *view.Changed)
	assert.Nil(t, view.Event)

	view = decodeInto[api.CartView](t, s.do(http.MethodPatch, "/terminals/t1/cart/items/chips", map[string]any{"quantity": 0}))
	assert.Empty(t, view.Cart.Lines)
}

func TestReviseAndDeleteBill(t *testing.T) {
	s := newServer(t)
	c := s.createCustomer("Anu")

	s.do(http.MethodPost, "/terminals/t1/cart/items", map[string]any{
		"id": "tea", "kind": "product", "unit_price": 20, "quantity": 1,
	})
	s.do(http.MethodPut, "/terminals/t1/cart/customer", map[string]any{"customer_id": c.ID.String()})
	original := decodeInto[*bill.Bill](t, s.do(http.MethodPost, "/terminals/t1/cart/checkout", map[string]any{"payment_method": "upi"}))

	revision := map[string]any{
		"original":       original,
		"items":          []map[string]any{{"id": "tea", "kind": "product", "unit_price": 20, "quantity": 3}},
		"payment_method": "upi",
		"discount":       map[string]any{"amount": "0", "kind": "percentage"},
	}
	rec := s.do(http.MethodPut, "/bills/"+original.ID.String(), revision)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	revised := decodeInto[*bill.Bill](t, rec)
	assert.Equal(t, till.Money(60), revised.Total)
	assert.Equal(t, original.ID, revised.ID)

	// Replaying against the stale original conflicts.
	rec = s.do(http.MethodPut, "/bills/"+original.ID.String(), revision)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "bill_mismatch", decodeInto[api.ErrorResponse](t, rec).Code)

	got := decodeInto[*customer.Customer](t, s.do(http.MethodGet, "/customers/"+c.ID.String(), nil))
	assert.Equal(t, till.Money(60), got.TotalSpent)

	rec = s.do(http.MethodDelete, "/bills/"+original.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	got = decodeInto[*customer.Customer](t, s.do(http.MethodGet, "/customers/"+c.ID.String(), nil))
	assert.Equal(t, till.Money(0), got.TotalSpent)

	rec = s.do(http.MethodGet, "/bills/"+original.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateCustomerKeepsAggregates(t *testing.T) {
	s := newServer(t)
	c := s.createCustomer("Old")

	rec := s.do(http.MethodPut, "/customers/"+c.ID.String(), map[string]any{
		"name": "New", "is_member": true, "membership_hours_left": "10",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeInto[*customer.Customer](t, rec)
	assert.Equal(t, "New", got.Name)
	assert.True(t, got.IsMember)
	assert.Equal(t, "10", got.MembershipHoursLeft.String())

	list := decodeInto[[]*customer.Customer](t, s.do(http.MethodGet, "/customers?members=true", nil))
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].ID)
}
