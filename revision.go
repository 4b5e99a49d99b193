package till

import (
	"context"
	"fmt"

	"github.com/xraph/till/bill"
	"github.com/xraph/till/cart"
	"github.com/xraph/till/customer"
	"github.com/xraph/till/id"
)

// Revision is a correction to a finalized bill.
type Revision struct {
	// Original is the bill as the caller last read it. The revision is
	// rejected when the stored bill no longer matches it.
	Original *bill.Bill `json:"original"`

	Items             []cart.LineItem    `json:"items"`
	CustomerID        id.CustomerID      `json:"customer_id,omitempty"`
	Discount          cart.Discount      `json:"discount"`
	LoyaltyPointsUsed int64              `json:"loyalty_points_used"`
	PaymentMethod     bill.PaymentMethod `json:"payment_method"`
	Status            bill.Status        `json:"status,omitempty"`
	CompNote          string             `json:"comp_note,omitempty"`
	Split             cart.SplitPayment  `json:"split"`
}

// UpdateBill applies r to its original bill.
//
// The original's contribution to its customer is reversed and the revised
// contribution applied in the same commit as the bill update, so customer
// aggregates always equal the sum over current bills. The bill keeps its ID
// and creation time; Revision is incremented.
func (t *Till) UpdateBill(ctx context.Context, r Revision) (*bill.Bill, error) {
	if r.Original == nil || r.Original.ID.IsNil() {
		return nil, invalid("original", ErrBillMismatch, "the bill being revised is required")
	}
	if len(r.Items) == 0 {
		return nil, invalid("items", ErrNothingToRevise, "a revised bill needs at least one item")
	}
	if r.Discount.Kind == "" {
		r.Discount.Kind = cart.DiscountPercentage
	}
	if !r.Discount.Kind.Valid() {
		return nil, invalid("discount_kind", nil, "must be percentage or fixed, got %q", r.Discount.Kind)
	}
	if r.Discount.Amount.IsNegative() {
		return nil, invalid("discount", nil, "must not be negative")
	}
	if r.LoyaltyPointsUsed < 0 {
		return nil, invalid("loyalty_points_used", nil, "must not be negative")
	}

	// Rebuild the lines through a cart so merging and totals follow the
	// same rules as at the till.
	lines := cart.New("")
	for _, item := range r.Items {
		if err := validateItem(item); err != nil {
			return nil, err
		}
		lines.AddItem(item)
	}

	stored, err := t.store.GetBill(ctx, r.Original.ID)
	if err != nil {
		return nil, err
	}
	if err := matchOriginal(stored, r.Original); err != nil {
		return nil, err
	}

	customerID := r.CustomerID
	if customerID.IsNil() {
		customerID = stored.CustomerID
	}
	cust, err := t.store.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	reversal := stored.Contribution().Neg()
	if customerID == stored.CustomerID {
		cust.Apply(reversal)
	}

	method := r.PaymentMethod
	if method == "" {
		method = stored.PaymentMethod
	}
	next, err := t.price(sale{
		Items:             lines.Items(),
		Discount:          r.Discount,
		LoyaltyPointsUsed: r.LoyaltyPointsUsed,
		Split:             r.Split,
		PaymentMethod:     method,
		Status:            r.Status,
		CompNote:          r.CompNote,
	}, cust, stored.CreatedAt)
	if err != nil {
		return nil, err
	}

	now := t.now().UTC()
	next.ID = stored.ID
	next.TerminalID = stored.TerminalID
	next.CreatedAt = stored.CreatedAt
	next.UpdatedAt = now
	next.Revision = stored.Revision + 1
	next.RevisedAt = &now

	if err := t.store.ReviseBill(ctx, stored, next, adjustments(stored, next)); err != nil {
		return nil, fmt.Errorf("till: revise bill %s: %w", stored.ID, err)
	}

	t.plugins.EmitBillRevised(ctx, stored, next)

	t.logger.Info("bill revised",
		"bill", next.ID.String(),
		"revision", next.Revision,
		"previous_total", int64(stored.Total),
		"total", int64(next.Total),
	)
	return next, nil
}

// DeleteBill removes a bill and reverses its contribution to its customer.
func (t *Till) DeleteBill(ctx context.Context, billID id.BillID) error {
	stored, err := t.store.GetBill(ctx, billID)
	if err != nil {
		return err
	}

	if err := t.store.DeleteBill(ctx, stored, stored.Contribution().Neg()); err != nil {
		return fmt.Errorf("till: delete bill %s: %w", billID, err)
	}

	t.plugins.EmitBillDeleted(ctx, stored)

	t.logger.Info("bill deleted",
		"bill", billID.String(),
		"customer", stored.CustomerID.String(),
		"total", int64(stored.Total),
	)
	return nil
}

func matchOriginal(stored, original *bill.Bill) error {
	switch {
	case stored.CustomerID != original.CustomerID:
		return invalid("original", ErrBillMismatch, "customer differs from the stored bill")
	case stored.Revision != original.Revision:
		return invalid("original", ErrBillMismatch,
			"bill is at revision %d, not %d", stored.Revision, original.Revision)
	case stored.Total != original.Total:
		return invalid("original", ErrBillMismatch,
			"stored total %s differs from %s", stored.Total, original.Total)
	}
	return nil
}

// adjustments moves prev's contribution to next's. When the customer is
// unchanged the two are merged into one delta.
func adjustments(prev, next *bill.Bill) []customer.Adjustment {
	reversal := prev.Contribution().Neg()
	if prev.CustomerID == next.CustomerID {
		d := reversal.Add(next.Contribution())
		if d.IsZero() {
			return nil
		}
		return []customer.Adjustment{{CustomerID: next.CustomerID, Delta: d}}
	}
	return []customer.Adjustment{
		{CustomerID: prev.CustomerID, Delta: reversal},
		{CustomerID: next.CustomerID, Delta: next.Contribution()},
	}
}
