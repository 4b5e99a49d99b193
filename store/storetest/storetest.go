// Package storetest checks the atomic bill units that every store.Store
// backend must honour. Backends call Run from their own tests.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/till"
	"github.com/xraph/till/bill"
	"github.com/xraph/till/cart"
	"github.com/xraph/till/customer"
	"github.com/xraph/till/id"
	"github.com/xraph/till/store"
	"github.com/xraph/till/types"
)

// Run exercises s. Every subtest creates its own customers, so s may be a
// database shared with other tests.
func Run(t *testing.T, s store.Store) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"CommitSaleAppliesDelta", testCommitSaleAppliesDelta},
		{"CommitSaleUnknownCustomer", testCommitSaleUnknownCustomer},
		{"CommitSaleDuplicate", testCommitSaleDuplicate},
		{"ReviseBillGuardsRevision", testReviseBillGuardsRevision},
		{"ReviseBillUnknownCustomer", testReviseBillUnknownCustomer},
		{"ReviseBillMovesCustomer", testReviseBillMovesCustomer},
		{"RevisionRoundTrip", testRevisionRoundTrip},
		{"DeleteBillReverses", testDeleteBillReverses},
		{"DeleteBillStaleRevision", testDeleteBillStaleRevision},
		{"ConcurrentCommits", testConcurrentCommits},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.fn(t, s) })
	}
}

func seedCustomer(t *testing.T, s store.Store, points int64) *customer.Customer {
	t.Helper()
	c := &customer.Customer{
		Entity:              types.NewEntity(),
		ID:                  id.NewCustomerID(),
		Name:                "Asha",
		Phone:               "9800000001",
		LoyaltyPoints:       points,
		IsMember:            true,
		MembershipHoursLeft: decimal.NewFromInt(10),
	}
	require.NoError(t, s.CreateCustomer(context.Background(), c))
	return c
}

func newBill(c *customer.Customer, total types.Money) *bill.Bill {
	return &bill.Bill{
		Entity:              types.NewEntity(),
		ID:                  id.NewBillID(),
		CustomerID:          c.ID,
		TerminalID:          "t1",
		Items:               []cart.LineItem{{ID: "cola", Kind: cart.KindProduct, Name: "Cola", UnitPrice: total, Quantity: 1, Total: total}},
		Subtotal:            total,
		Total:               total,
		LoyaltyPointsEarned: 3,
		PlayMinutes:         60,
		MembershipHoursUsed: decimal.RequireFromString("1.25"),
		PaymentMethod:       bill.PaymentCash,
		Status:              bill.StatusCompleted,
	}
}

// aggregates is the part of a customer that bills change.
type aggregates struct {
	points  int64
	spent   types.Money
	minutes int64
	hours   string
}

func snapshot(t *testing.T, s store.Store, customerID id.CustomerID) aggregates {
	t.Helper()
	c, err := s.GetCustomer(context.Background(), customerID)
	require.NoError(t, err)
	return aggregates{
		points:  c.LoyaltyPoints,
		spent:   c.TotalSpent,
		minutes: c.TotalPlayMinutes,
		hours:   c.MembershipHoursLeft.StringFixed(2),
	}
}

func testCommitSaleAppliesDelta(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := seedCustomer(t, s, 5)

	b := newBill(c, 175)
	require.NoError(t, s.CommitSale(ctx, b, b.Contribution()))

	assert.Equal(t, aggregates{points: 8, spent: 175, minutes: 60, hours: "8.75"}, snapshot(t, s, c.ID))

	stored, err := s.GetBill(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Total, stored.Total)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "Cola", stored.Items[0].Name)
}

func testCommitSaleUnknownCustomer(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := newBill(&customer.Customer{ID: id.NewCustomerID()}, 100)

	assert.ErrorIs(t, s.CommitSale(ctx, b, b.Contribution()), till.ErrCustomerNotFound)

	_, err := s.GetBill(ctx, b.ID)
	assert.ErrorIs(t, err, till.ErrBillNotFound)
}

func testCommitSaleDuplicate(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := seedCustomer(t, s, 0)
	b := newBill(c, 100)

	require.NoError(t, s.CommitSale(ctx, b, b.Contribution()))
	assert.ErrorIs(t, s.CommitSale(ctx, b, b.Contribution()), till.ErrAlreadyExists)

	assert.Equal(t, types.Money(100), snapshot(t, s, c.ID).spent)
}

func revise(prev *bill.Bill, total types.Money) (*bill.Bill, []customer.Adjustment) {
	next := *prev
	next.Total = total
	next.Subtotal = total
	next.Revision = prev.Revision + 1
	d := prev.Contribution().Neg().Add(next.Contribution())
	return &next, []customer.Adjustment{{CustomerID: prev.CustomerID, Delta: d}}
}

func testReviseBillGuardsRevision(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := seedCustomer(t, s, 0)
	b := newBill(c, 100)
	require.NoError(t, s.CommitSale(ctx, b, b.Contribution()))

	next, adj := revise(b, 250)
	require.NoError(t, s.ReviseBill(ctx, b, next, adj))

	// A second writer still holding revision 0 loses.
	assert.ErrorIs(t, s.ReviseBill(ctx, b, next, adj), till.ErrBillMismatch)

	assert.Equal(t, types.Money(250), snapshot(t, s, c.ID).spent)
	stored, err := s.GetBill(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Revision)
	assert.Equal(t, types.Money(250), stored.Total)
}

func testReviseBillUnknownCustomer(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := seedCustomer(t, s, 0)
	b := newBill(c, 100)
	require.NoError(t, s.CommitSale(ctx, b, b.Contribution()))
	before := snapshot(t, s, c.ID)

	next := *b
	next.Revision = 1
	next.CustomerID = id.NewCustomerID()
	adj := []customer.Adjustment{
		{CustomerID: c.ID, Delta: b.Contribution().Neg()},
		{CustomerID: next.CustomerID, Delta: next.Contribution()},
	}
	assert.ErrorIs(t, s.ReviseBill(ctx, b, &next, adj), till.ErrCustomerNotFound)

	assert.Equal(t, before, snapshot(t, s, c.ID))
	stored, err := s.GetBill(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Revision)
	assert.Equal(t, c.ID, stored.CustomerID)
}

func testReviseBillMovesCustomer(t *testing.T, s store.Store) {
	ctx := context.Background()
	from := seedCustomer(t, s, 0)
	to := seedCustomer(t, s, 0)
	untouched := snapshot(t, s, to.ID)

	b := newBill(from, 100)
	require.NoError(t, s.CommitSale(ctx, b, b.Contribution()))

	next := *b
	next.Revision = 1
	next.CustomerID = to.ID
	adj := []customer.Adjustment{
		{CustomerID: from.ID, Delta: b.Contribution().Neg()},
		{CustomerID: to.ID, Delta: next.Contribution()},
	}
	require.NoError(t, s.ReviseBill(ctx, b, &next, adj))

	assert.Equal(t, aggregates{points: 0, spent: 0, minutes: 0, hours: "10.00"}, snapshot(t, s, from.ID))
	assert.NotEqual(t, untouched, snapshot(t, s, to.ID))
	assert.Equal(t, aggregates{points: 3, spent: 100, minutes: 60, hours: "8.75"}, snapshot(t, s, to.ID))

	bills, err := s.ListBills(ctx, bill.ListOpts{CustomerID: to.ID})
	require.NoError(t, err)
	require.Len(t, bills, 1)
	assert.Equal(t, b.ID, bills[0].ID)
}

func testRevisionRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := seedCustomer(t, s, 20)
	b := newBill(c, 300)
	b.LoyaltyPointsUsed = 15
	require.NoError(t, s.CommitSale(ctx, b, b.Contribution()))
	before := snapshot(t, s, c.ID)

	next, adj := revise(b, 120)
	next.LoyaltyPointsUsed = 0
	next.MembershipHoursUsed = decimal.RequireFromString("0.5")
	adj[0].Delta = b.Contribution().Neg().Add(next.Contribution())
	require.NoError(t, s.ReviseBill(ctx, b, next, adj))
	assert.NotEqual(t, before, snapshot(t, s, c.ID))

	back := *b
	back.Revision = next.Revision + 1
	undo := []customer.Adjustment{{CustomerID: c.ID, Delta: next.Contribution().Neg().Add(back.Contribution())}}
	require.NoError(t, s.ReviseBill(ctx, next, &back, undo))

	assert.Equal(t, before, snapshot(t, s, c.ID))
}

func testDeleteBillReverses(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := seedCustomer(t, s, 5)
	before := snapshot(t, s, c.ID)

	b := newBill(c, 175)
	require.NoError(t, s.CommitSale(ctx, b, b.Contribution()))
	require.NoError(t, s.DeleteBill(ctx, b, b.Contribution().Neg()))

	assert.Equal(t, before, snapshot(t, s, c.ID))
	_, err := s.GetBill(ctx, b.ID)
	assert.ErrorIs(t, err, till.ErrBillNotFound)

	assert.ErrorIs(t, s.DeleteBill(ctx, b, b.Contribution().Neg()), till.ErrBillNotFound)
	assert.Equal(t, before, snapshot(t, s, c.ID))
}

func testDeleteBillStaleRevision(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := seedCustomer(t, s, 0)
	b := newBill(c, 100)
	require.NoError(t, s.CommitSale(ctx, b, b.Contribution()))

	next, adj := revise(b, 150)
	require.NoError(t, s.ReviseBill(ctx, b, next, adj))
	after := snapshot(t, s, c.ID)

	// Deleting with the pre-revision copy must not reverse the wrong amount.
	assert.ErrorIs(t, s.DeleteBill(ctx, b, b.Contribution().Neg()), till.ErrBillMismatch)
	assert.Equal(t, after, snapshot(t, s, c.ID))
}

func testConcurrentCommits(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := seedCustomer(t, s, 0)

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := newBill(c, 10)
			b.MembershipHoursUsed = decimal.Zero
			errs[i] = s.CommitSale(ctx, b, b.Contribution())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	got := snapshot(t, s, c.ID)
	assert.Equal(t, types.Money(10*n), got.spent)
	assert.Equal(t, int64(3*n), got.points)
	assert.Equal(t, int64(60*n), got.minutes)
}
