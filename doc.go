// Package till is the point-of-sale engine of a snooker and pool club.
//
// Till is a library. It keeps one cart per checkout terminal, prices it,
// turns it into an immutable bill, and keeps each customer's loyalty
// points, total spend, play time and membership hours equal to the sum of
// their bills through revisions and deletions.
//
//   - Carts hold products and finished table sessions
//   - Percentage or fixed discounts, loyalty redemption and cash/UPI split
//   - Bill and customer changes commit atomically in every store backend
//   - Revisions reverse the original bill before applying the new one
//   - Lifecycle plugins for metrics, audit, Kafka and notifications
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/till"
//	    "github.com/xraph/till/store/memory"
//	)
//
//	s := memory.New()
//	t := till.New(s,
//	    till.WithSnapshotStore(s),
//	    till.WithEarnPolicy(loyalty.Rate{Points: 1, Per: 10000}),
//	)
//	if err := t.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Stop()
//
// Ring up a sale on a terminal:
//
//	t.SelectCustomer(ctx, "table-3", customerID)
//	t.AddItem(ctx, "table-3", cart.LineItem{ID: "cola", Kind: cart.KindProduct, Name: "Cola", UnitPrice: 5000, Quantity: 2})
//	t.AddItem(ctx, "table-3", cart.LineItem{ID: "table-3", Kind: cart.KindSession, Name: "Table 3", UnitPrice: 15000, PlayMinutes: 45})
//	t.SetDiscount(ctx, "table-3", decimal.NewFromInt(10), cart.DiscountPercentage)
//	b, err := t.CompleteSale(ctx, "table-3", till.CheckoutRequest{PaymentMethod: bill.PaymentCash})
//
// # Money
//
// All amounts are integers in the currency's minor unit (paise, cents).
// Percentage discounts are computed with shopspring/decimal and rounded half
// away from zero. Totals are floored at zero; an oversized discount or
// redemption never produces a negative bill.
//
// # Bills
//
// A bill is frozen once written. UpdateBill replaces its lines and totals in
// place, keeping its ID and creation time and bumping Revision; DeleteBill
// removes it. Both move the customer's aggregates by exactly the difference
// the bill made, so revising A to B and back to A restores them bit for bit.
//
// # TypeID
//
// Stored entities use TypeIDs:
//
//	bill_01h2xcejqtf2nbrexx3vqjhp41  // Bill ID
//	cus_01h2xcejqtf2nbrexx3vqjhp41   // Customer ID
package till
