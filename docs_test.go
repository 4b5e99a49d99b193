package till_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/xraph/till"
	"github.com/xraph/till/bill"
	"github.com/xraph/till/cart"
	"github.com/xraph/till/customer"
	"github.com/xraph/till/loyalty"
	"github.com/xraph/till/store/memory"
	"github.com/xraph/till/types"
)

// TestDocumentationExamples verifies that the examples in the package
// documentation work as written.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		ctx := context.Background()
		s := memory.New()

		tl := till.New(s,
			till.WithLogger(slog.Default()),
			till.WithSnapshotStore(s),
			till.WithEarnPolicy(loyalty.Rate{Points: 1, Per: 10000}),
		)
		if err := tl.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer tl.Stop()

		c := &customer.Customer{Name: "Ravi"}
		if err := tl.CreateCustomer(ctx, c); err != nil {
			t.Fatal(err)
		}

		const term = "table-3"
		if _, err := tl.SelectCustomer(ctx, term, c.ID); err != nil {
			t.Fatal(err)
		}
		if _, err := tl.AddItem(ctx, term, cart.LineItem{ID: "cola", Kind: cart.KindProduct, Name: "Cola", UnitPrice: 5000, Quantity: 2}); err != nil {
			t.Fatal(err)
		}
		if _, err := tl.AddItem(ctx, term, cart.LineItem{ID: "table-3", Kind: cart.KindSession, Name: "Table 3", UnitPrice: 15000, PlayMinutes: 45}); err != nil {
			t.Fatal(err)
		}
		if _, err := tl.SetDiscount(ctx, term, decimal.NewFromInt(10), cart.DiscountPercentage); err != nil {
			t.Fatal(err)
		}

		b, err := tl.CompleteSale(ctx, term, till.CheckoutRequest{PaymentMethod: bill.PaymentCash})
		if err != nil {
			t.Fatal(err)
		}

		// 25000 less 10% is 22500, which earns 2 points at 1 per 10000.
		if b.Total != types.Money(22500) || b.LoyaltyPointsEarned != 2 {
			t.Errorf("got total %d earned %d", b.Total, b.LoyaltyPointsEarned)
		}
		t.Logf("bill %s: %s", b.ID, b.Total.Format("inr"))
	})
}
