package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/till"
	"github.com/xraph/till/bill"
	"github.com/xraph/till/cart"
	"github.com/xraph/till/customer"
	"github.com/xraph/till/id"
	"github.com/xraph/till/store/storetest"
	"github.com/xraph/till/types"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedCustomer(t *testing.T, s *Store, name string) *customer.Customer {
	t.Helper()
	expires := time.Now().Add(24 * time.Hour).UTC()
	c := &customer.Customer{
		Entity:              types.NewEntity(),
		ID:                  id.NewCustomerID(),
		Name:                name,
		Phone:               "9800000001",
		IsMember:            true,
		MembershipExpiresAt: &expires,
		MembershipHoursLeft: decimal.RequireFromString("10.5"),
		Metadata:            map[string]string{"league": "tuesday"},
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
		Items:               []cart.LineItem{{ID: "cola", Kind: cart.KindProduct, UnitPrice: total, Quantity: 1, Total: total}},
		Subtotal:            total,
		Total:               total,
		LoyaltyPointsEarned: 3,
		PlayMinutes:         60,
		MembershipHoursUsed: decimal.RequireFromString("1.25"),
		PaymentMethod:       bill.PaymentCash,
		Status:              bill.StatusCompleted,
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := setupStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestCustomerRoundTrip(t *testing.T) {
	s := setupStore(t)
	c := seedCustomer(t, s, "Asha")

	got, err := s.GetCustomer(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Name, got.Name)
	assert.True(t, got.IsMember)
	assert.True(t, got.MembershipHoursLeft.Equal(decimal.RequireFromString("10.5")))
	require.NotNil(t, got.MembershipExpiresAt)
	assert.True(t, got.MembershipExpiresAt.Equal(*c.MembershipExpiresAt))
	assert.Equal(t, "tuesday", got.Metadata["league"])

	err = s.CreateCustomer(context.Background(), c)
	assert.ErrorIs(t, err, till.ErrAlreadyExists)

	_, err = s.GetCustomer(context.Background(), id.NewCustomerID())
	assert.ErrorIs(t, err, till.ErrCustomerNotFound)
}

func TestCommitSaleAppliesDelta(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	c := seedCustomer(t, s, "Asha")

	b := newBill(c, 175)
	require.NoError(t, s.CommitSale(ctx, b, b.Contribution()))

	got, err := s.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.LoyaltyPoints)
	assert.Equal(t, types.Money(175), got.TotalSpent)
	assert.Equal(t, int64(60), got.TotalPlayMinutes)
	assert.True(t, got.MembershipHoursLeft.Equal(decimal.RequireFromString("9.25")), got.MembershipHoursLeft.String())

	stored, err := s.GetBill(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Total, stored.Total)
	assert.Len(t, stored.Items, 1)

	err = s.CommitSale(ctx, b, b.Contribution())
	assert.ErrorIs(t, err, till.ErrAlreadyExists)

	again, err := s.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Money(175), again.TotalSpent, "duplicate commit must not apply twice")
}

func TestCommitSaleUnknownCustomerRollsBack(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	b := newBill(&customer.Customer{ID: id.NewCustomerID()}, 100)

	err := s.CommitSale(ctx, b, b.Contribution())
	assert.ErrorIs(t, err, till.ErrCustomerNotFound)

	_, err = s.GetBill(ctx, b.ID)
	assert.ErrorIs(t, err, till.ErrBillNotFound)
}

func TestReviseBill(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	from := seedCustomer(t, s, "Asha")
	to := seedCustomer(t, s, "Bilal")

	prev := newBill(from, 200)
	require.NoError(t, s.CommitSale(ctx, prev, prev.Contribution()))

	next := newBill(to, 120)
	next.ID = prev.ID
	next.CreatedAt = prev.CreatedAt
	next.Revision = 1

	adjustments := []customer.Adjustment{
		{CustomerID: from.ID, Delta: prev.Contribution().Neg()},
		{CustomerID: to.ID, Delta: next.Contribution()},
	}
	require.NoError(t, s.ReviseBill(ctx, prev, next, adjustments))

	gotFrom, _ := s.GetCustomer(ctx, from.ID)
	gotTo, _ := s.GetCustomer(ctx, to.ID)
	assert.Equal(t, types.Money(0), gotFrom.TotalSpent)
	assert.True(t, gotFrom.MembershipHoursLeft.Equal(decimal.RequireFromString("10.5")))
	assert.Equal(t, types.Money(120), gotTo.TotalSpent)

	stored, err := s.GetBill(ctx, prev.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Revision)
	assert.Equal(t, to.ID, stored.CustomerID)

	// The same stale prev loses.
	err = s.ReviseBill(ctx, prev, next, adjustments)
	assert.ErrorIs(t, err, till.ErrBillMismatch)
}

func TestReviseBillUnknownCustomerRollsBack(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	c := seedCustomer(t, s, "Asha")

	prev := newBill(c, 200)
	require.NoError(t, s.CommitSale(ctx, prev, prev.Contribution()))

	next := *prev
	next.Revision = 1
	next.Total = 50
	err := s.ReviseBill(ctx, prev, &next, []customer.Adjustment{
		{CustomerID: c.ID, Delta: customer.Delta{TotalSpent: -150}},
		{CustomerID: id.NewCustomerID(), Delta: customer.Delta{TotalSpent: 1}},
	})
	assert.ErrorIs(t, err, till.ErrCustomerNotFound)

	stored, _ := s.GetBill(ctx, prev.ID)
	assert.Equal(t, 0, stored.Revision)
	got, _ := s.GetCustomer(ctx, c.ID)
	assert.Equal(t, types.Money(200), got.TotalSpent)
}

func TestDeleteBillReverses(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	c := seedCustomer(t, s, "Asha")

	b := newBill(c, 200)
	require.NoError(t, s.CommitSale(ctx, b, b.Contribution()))

	stale := *b
	stale.Revision = 7
	assert.ErrorIs(t, s.DeleteBill(ctx, &stale, b.Contribution().Neg()), till.ErrBillMismatch)

	require.NoError(t, s.DeleteBill(ctx, b, b.Contribution().Neg()))

	got, _ := s.GetCustomer(ctx, c.ID)
	assert.Equal(t, int64(0), got.LoyaltyPoints)
	assert.Equal(t, types.Money(0), got.TotalSpent)
	assert.True(t, got.MembershipHoursLeft.Equal(decimal.RequireFromString("10.5")))

	assert.ErrorIs(t, s.DeleteBill(ctx, b, b.Contribution().Neg()), till.ErrBillNotFound)
}

func TestUpdateCustomerKeepsAggregates(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	c := seedCustomer(t, s, "Asha")

	b := newBill(c, 90)
	require.NoError(t, s.CommitSale(ctx, b, b.Contribution()))

	edit := *c
	edit.Name = "Asha K"
	edit.TotalSpent = 0
	edit.LoyaltyPoints = 999
	edit.MembershipHoursLeft = decimal.NewFromInt(20)
	require.NoError(t, s.UpdateCustomer(ctx, &edit))

	got, _ := s.GetCustomer(ctx, c.ID)
	assert.Equal(t, "Asha K", got.Name)
	assert.Equal(t, types.Money(90), got.TotalSpent)
	assert.Equal(t, int64(3), got.LoyaltyPoints)
	assert.True(t, got.MembershipHoursLeft.Equal(decimal.NewFromInt(20)))

	missing := &customer.Customer{ID: id.NewCustomerID(), Name: "Nobody"}
	assert.ErrorIs(t, s.UpdateCustomer(ctx, missing), till.ErrCustomerNotFound)
}

func TestListCustomers(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	seedCustomer(t, s, "Zoya")
	seedCustomer(t, s, "asha")
	plain := &customer.Customer{Entity: types.NewEntity(), ID: id.NewCustomerID(), Name: "Mohan", Email: "mohan@club.in"}
	require.NoError(t, s.CreateCustomer(ctx, plain))

	all, err := s.ListCustomers(ctx, customer.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "asha", all[0].Name)
	assert.Equal(t, "Zoya", all[2].Name)

	members, err := s.ListCustomers(ctx, customer.ListOpts{Members: true})
	require.NoError(t, err)
	assert.Len(t, members, 2)

	found, err := s.ListCustomers(ctx, customer.ListOpts{Search: "MOHAN@"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, plain.ID, found[0].ID)

	page, err := s.ListCustomers(ctx, customer.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Mohan", page[0].Name)
}

func TestListBills(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	a := seedCustomer(t, s, "Asha")
	z := seedCustomer(t, s, "Zoya")

	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, c := range []*customer.Customer{a, z, a} {
		b := newBill(c, types.Money(100*(i+1)))
		b.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.CommitSale(ctx, b, b.Contribution()))
	}

	all, err := s.ListBills(ctx, bill.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, types.Money(300), all[0].Total, "newest first")

	mine, err := s.ListBills(ctx, bill.ListOpts{CustomerID: a.ID})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	window, err := s.ListBills(ctx, bill.ListOpts{Since: base.Add(30 * time.Minute), Until: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, types.Money(200), window[0].Total)
}

func TestCartSnapshots(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	_, err := s.LoadCart(ctx, "t1")
	assert.ErrorIs(t, err, cart.ErrNoSnapshot)

	c := cart.New("t1")
	c.AddItem(cart.LineItem{ID: "cola", Kind: cart.KindProduct, UnitPrice: 50, Quantity: 1})
	require.NoError(t, s.SaveCart(ctx, c))

	c.AddItem(cart.LineItem{ID: "cola", Kind: cart.KindProduct, UnitPrice: 50, Quantity: 2})
	require.NoError(t, s.SaveCart(ctx, c))

	got, err := s.LoadCart(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, int64(3), got.Lines[0].Quantity)

	require.NoError(t, s.DeleteCart(ctx, "t1"))
	_, err = s.LoadCart(ctx, "t1")
	assert.ErrorIs(t, err, cart.ErrNoSnapshot)
}

func TestEngineOnSQLite(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	tl := till.New(s, till.WithSnapshotStore(s))
	c := &customer.Customer{Name: "Ravi"}
	require.NoError(t, tl.CreateCustomer(ctx, c))

	_, err := tl.SelectCustomer(ctx, "t1", c.ID)
	require.NoError(t, err)
	_, err = tl.AddItem(ctx, "t1", cart.LineItem{ID: "cola", Kind: cart.KindProduct, UnitPrice: 100, Quantity: 2})
	require.NoError(t, err)

	b, err := tl.CompleteSale(ctx, "t1", till.CheckoutRequest{PaymentMethod: bill.PaymentUPI})
	require.NoError(t, err)

	require.NoError(t, tl.DeleteBill(ctx, b.ID))
	got, err := tl.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Money(0), got.TotalSpent)
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, setupStore(t))
}
