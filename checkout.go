package till

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/till/bill"
	"github.com/xraph/till/cart"
	"github.com/xraph/till/customer"
	"github.com/xraph/till/id"
	"github.com/xraph/till/loyalty"
	"github.com/xraph/till/pricing"
	"github.com/xraph/till/types"
)

// CheckoutRequest selects how a terminal's cart is paid for.
type CheckoutRequest struct {
	PaymentMethod bill.PaymentMethod `json:"payment_method"`
	Status        bill.Status        `json:"status,omitempty"`
	CompNote      string             `json:"comp_note,omitempty"`

	// CustomerID overrides the customer selected on the cart.
	CustomerID id.CustomerID `json:"customer_id,omitempty"`
}

// CompleteSale turns the terminal's cart into a bill.
//
// The bill and the customer's aggregate changes commit as one unit. When
// anything fails the cart is left exactly as it was and the call can be
// retried. On success the cart is cleared and the customer deselected.
func (t *Till) CompleteSale(ctx context.Context, terminalID string, req CheckoutRequest) (*bill.Bill, error) {
	if terminalID == "" {
		return nil, invalid("terminal", nil, "is required")
	}

	var (
		sold    *bill.Bill
		cleared cart.Event
	)
	err := t.terminals.With(ctx, terminalID, func(c *cart.Cart) (bool, error) {
		customerID := req.CustomerID
		if customerID.IsNil() {
			customerID = c.CustomerID
		}
		if customerID.IsNil() {
			return false, invalid("customer", ErrNoCustomerSelected, "select a customer before checkout")
		}
		if c.IsEmpty() {
			return false, invalid("items", ErrEmptyCart, "add at least one item before checkout")
		}

		cust, err := t.store.GetCustomer(ctx, customerID)
		if err != nil {
			return false, err
		}

		now := t.now().UTC()
		b, err := t.price(sale{
			Items:             c.Items(),
			Discount:          c.Discount,
			LoyaltyPointsUsed: c.LoyaltyPointsUsed,
			Split:             c.Split,
			PaymentMethod:     req.PaymentMethod,
			Status:            req.Status,
			CompNote:          req.CompNote,
		}, cust, now)
		if err != nil {
			return false, err
		}
		b.ID = id.NewBillID()
		b.Entity = types.Entity{CreatedAt: now, UpdatedAt: now}
		b.TerminalID = terminalID

		if err := t.store.CommitSale(ctx, b, b.Contribution()); err != nil {
			return false, fmt.Errorf("till: commit sale: %w", err)
		}

		cleared, _ = c.Clear()
		c.SelectCustomer(id.Nil)
		sold = b
		return true, nil
	})
	if err != nil {
		t.logger.Warn("checkout failed", "terminal", terminalID, "error", err)
		t.plugins.EmitSaleFailed(ctx, terminalID, err)
		return nil, err
	}

	t.notify(cleared)
	t.plugins.EmitSaleCompleted(ctx, sold)

	t.logger.Info("sale completed",
		"terminal", terminalID,
		"bill", sold.ID.String(),
		"customer", sold.CustomerID.String(),
		"total", int64(sold.Total),
		"payment_method", sold.PaymentMethod,
	)
	return sold, nil
}

// sale is the priced content of a bill before identity is assigned. Both
// checkout and revision go through it.
type sale struct {
	Items             []cart.LineItem
	Discount          cart.Discount
	LoyaltyPointsUsed int64
	Split             cart.SplitPayment
	PaymentMethod     bill.PaymentMethod
	Status            bill.Status
	CompNote          string
}

// price validates s against cust and builds the bill body. cust must show
// the balances the sale draws on; for a revision that is the balance after
// the original bill has been reversed. Membership is judged at the moment
// of sale.
func (t *Till) price(s sale, cust *customer.Customer, soldAt time.Time) (*bill.Bill, error) {
	if !s.PaymentMethod.Valid() {
		return nil, invalid("payment_method", ErrInvalidPayment, "unknown payment method %q", s.PaymentMethod)
	}
	if s.Status != "" && s.Status != bill.StatusCompleted && s.Status != bill.StatusComplimentary {
		return nil, invalid("status", nil, "unknown status %q", s.Status)
	}

	comp := s.PaymentMethod == bill.PaymentComplimentary || s.Status == bill.StatusComplimentary
	if comp {
		s.PaymentMethod = bill.PaymentComplimentary
		s.Status = bill.StatusComplimentary
		s.LoyaltyPointsUsed = 0
	} else {
		s.Status = bill.StatusCompleted
		s.CompNote = ""
	}

	if s.LoyaltyPointsUsed > cust.LoyaltyPoints {
		return nil, invalid("loyalty_points_used", ErrInsufficientLoyalty,
			"%d points requested, %d available", s.LoyaltyPointsUsed, cust.LoyaltyPoints)
	}

	totals := pricing.Compute(pricing.Input{
		Lines:             s.Items,
		Discount:          s.Discount,
		LoyaltyPointsUsed: s.LoyaltyPointsUsed,
	})
	final := totals.Final
	if comp {
		final = 0
	}

	b := &bill.Bill{
		CustomerID:        cust.ID,
		CustomerName:      cust.Name,
		Items:             append([]cart.LineItem(nil), s.Items...),
		Subtotal:          totals.Subtotal,
		DiscountAmount:    totals.Discount,
		DiscountKind:      s.Discount.Kind,
		DiscountRate:      s.Discount.Amount,
		LoyaltyPointsUsed: s.LoyaltyPointsUsed,
		Total:             final,
		PaymentMethod:     s.PaymentMethod,
		Status:            s.Status,
		CompNote:          s.CompNote,
	}

	if s.PaymentMethod == bill.PaymentSplit {
		if !s.Split.Enabled {
			return nil, invalid("split", ErrSplitMismatch, "enable split payment to pay by split")
		}
		if s.Split.Sum() != final {
			return nil, invalid("split", ErrSplitMismatch,
				"cash %s + UPI %s must equal total %s", s.Split.Cash, s.Split.UPI, final)
		}
		b.IsSplit = true
		b.SplitCash = s.Split.Cash
		b.SplitUPI = s.Split.UPI
	}

	if !comp {
		b.LoyaltyPointsEarned = t.earn.PointsEarned(final)
	}

	for _, line := range s.Items {
		if line.Kind == cart.KindSession {
			b.PlayMinutes += line.PlayMinutes
		}
	}
	if b.PlayMinutes > 0 && cust.HasActiveMembership(soldAt) {
		b.MembershipHoursUsed = loyalty.Deduct(t.membership, b.PlayMinutes, cust.MembershipHoursLeft)
	}

	return b, nil
}
