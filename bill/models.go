package bill

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/till/cart"
	"github.com/xraph/till/customer"
	"github.com/xraph/till/id"
	"github.com/xraph/till/types"
)

type PaymentMethod string

const (
	PaymentCash          PaymentMethod = "cash"
	PaymentUPI           PaymentMethod = "upi"
	PaymentSplit         PaymentMethod = "split"
	PaymentCredit        PaymentMethod = "credit"
	PaymentComplimentary PaymentMethod = "complimentary"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentUPI, PaymentSplit, PaymentCredit, PaymentComplimentary:
		return true
	}
	return false
}

type Status string

const (
	StatusCompleted     Status = "completed"
	StatusComplimentary Status = "complimentary"
)

// Bill is the frozen record of a sale. Items and totals change only through
// an explicit revision, which keeps ID and CreatedAt and bumps Revision.
type Bill struct {
	types.Entity
	ID                  id.BillID         `json:"id"`
	CustomerID          id.CustomerID     `json:"customer_id"`
	CustomerName        string            `json:"customer_name,omitempty"`
	TerminalID          string            `json:"terminal_id,omitempty"`
	Items               []cart.LineItem   `json:"items"`
	Subtotal            types.Money       `json:"subtotal"`
	DiscountAmount      types.Money       `json:"discount_amount"`
	DiscountKind        cart.DiscountKind `json:"discount_kind"`
	DiscountRate        decimal.Decimal   `json:"discount_rate"`
	LoyaltyPointsUsed   int64             `json:"loyalty_points_used"`
	LoyaltyPointsEarned int64             `json:"loyalty_points_earned"`
	Total               types.Money       `json:"total"`
	PaymentMethod       PaymentMethod     `json:"payment_method"`
	Status              Status            `json:"status"`
	CompNote            string            `json:"comp_note,omitempty"`
	IsSplit             bool              `json:"is_split"`
	SplitCash           types.Money       `json:"split_cash"`
	SplitUPI            types.Money       `json:"split_upi"`
	PlayMinutes         int64             `json:"play_minutes"`
	MembershipHoursUsed decimal.Decimal   `json:"membership_hours_used"`
	Revision            int               `json:"revision"`
	RevisedAt           *time.Time        `json:"revised_at,omitempty"`
}

// Contribution is the bill's effect on its customer's aggregates.
func (b *Bill) Contribution() customer.Delta {
	return customer.Delta{
		LoyaltyPoints:   b.LoyaltyPointsEarned - b.LoyaltyPointsUsed,
		TotalSpent:      b.Total,
		PlayMinutes:     b.PlayMinutes,
		MembershipHours: b.MembershipHoursUsed.Neg(),
	}
}

// Discount returns the discount selection the bill was priced with.
func (b *Bill) Discount() cart.Discount {
	return cart.Discount{Amount: b.DiscountRate, Kind: b.DiscountKind}
}
