package mongo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/grove"

	"github.com/xraph/till/bill"
	"github.com/xraph/till/cart"
	"github.com/xraph/till/customer"
	"github.com/xraph/till/id"
	"github.com/xraph/till/types"
)

// ==================== Customer models ====================

type customerModel struct {
	grove.BaseModel `grove:"table:till_customers" bson:"-"`

	ID                  string            `grove:"id,pk"                 bson:"_id"`
	Name                string            `grove:"name"                  bson:"name"`
	Phone               string            `grove:"phone"                 bson:"phone"`
	Email               string            `grove:"email"                 bson:"email"`
	LoyaltyPoints       int64             `grove:"loyalty_points"        bson:"loyalty_points"`
	TotalSpent          int64             `grove:"total_spent"           bson:"total_spent"`
	TotalPlayMinutes    int64             `grove:"total_play_minutes"    bson:"total_play_minutes"`
	IsMember            bool              `grove:"is_member"             bson:"is_member"`
	MembershipPlan      string            `grove:"membership_plan"       bson:"membership_plan"`
	MembershipExpiresAt *time.Time        `grove:"membership_expires_at" bson:"membership_expires_at,omitempty"`
	MembershipHoursLeft bson.Decimal128   `grove:"membership_hours_left" bson:"membership_hours_left"`
	Metadata            map[string]string `grove:"metadata"              bson:"metadata,omitempty"`
	CreatedAt           time.Time         `grove:"created_at"            bson:"created_at"`
	UpdatedAt           time.Time         `grove:"updated_at"            bson:"updated_at"`
}

func toCustomerModel(c *customer.Customer) (*customerModel, error) {
	hours, err := toDecimal128(c.MembershipHoursLeft)
	if err != nil {
		return nil, err
	}
	return &customerModel{
		ID:                  c.ID.String(),
		Name:                c.Name,
		Phone:               c.Phone,
		Email:               c.Email,
		LoyaltyPoints:       c.LoyaltyPoints,
		TotalSpent:          c.TotalSpent.Int64(),
		TotalPlayMinutes:    c.TotalPlayMinutes,
		IsMember:            c.IsMember,
		MembershipPlan:      c.MembershipPlan,
		MembershipExpiresAt: c.MembershipExpiresAt,
		MembershipHoursLeft: hours,
		Metadata:            c.Metadata,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}, nil
}

func fromCustomerModel(m *customerModel) (*customer.Customer, error) {
	customerID, err := id.ParseCustomerID(m.ID)
	if err != nil {
		return nil, err
	}
	hours, err := fromDecimal128(m.MembershipHoursLeft)
	if err != nil {
		return nil, err
	}
	return &customer.Customer{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                  customerID,
		Name:                m.Name,
		Phone:               m.Phone,
		Email:               m.Email,
		LoyaltyPoints:       m.LoyaltyPoints,
		TotalSpent:          types.Money(m.TotalSpent),
		TotalPlayMinutes:    m.TotalPlayMinutes,
		IsMember:            m.IsMember,
		MembershipPlan:      m.MembershipPlan,
		MembershipExpiresAt: m.MembershipExpiresAt,
		MembershipHoursLeft: hours,
		Metadata:            m.Metadata,
	}, nil
}

// ==================== Bill models ====================

type billModel struct {
	grove.BaseModel `grove:"table:till_bills" bson:"-"`

	ID                  string          `grove:"id,pk"                 bson:"_id"`
	CustomerID          string          `grove:"customer_id"           bson:"customer_id"`
	CustomerName        string          `grove:"customer_name"         bson:"customer_name"`
	TerminalID          string          `grove:"terminal_id"           bson:"terminal_id"`
	Items               []lineItemModel `grove:"items"                 bson:"items"`
	Subtotal            int64           `grove:"subtotal"              bson:"subtotal"`
	DiscountAmount      int64           `grove:"discount_amount"       bson:"discount_amount"`
	DiscountKind        string          `grove:"discount_kind"         bson:"discount_kind"`
	DiscountRate        bson.Decimal128 `grove:"discount_rate"         bson:"discount_rate"`
	LoyaltyPointsUsed   int64           `grove:"loyalty_points_used"   bson:"loyalty_points_used"`
	LoyaltyPointsEarned int64           `grove:"loyalty_points_earned" bson:"loyalty_points_earned"`
	Total               int64           `grove:"total"                 bson:"total"`
	PaymentMethod       string          `grove:"payment_method"        bson:"payment_method"`
	Status              string          `grove:"status"                bson:"status"`
	CompNote            string          `grove:"comp_note"             bson:"comp_note,omitempty"`
	IsSplit             bool            `grove:"is_split"              bson:"is_split"`
	SplitCash           int64           `grove:"split_cash"            bson:"split_cash"`
	SplitUPI            int64           `grove:"split_upi"             bson:"split_upi"`
	PlayMinutes         int64           `grove:"play_minutes"          bson:"play_minutes"`
	MembershipHoursUsed bson.Decimal128 `grove:"membership_hours_used" bson:"membership_hours_used"`
	Revision            int             `grove:"revision"              bson:"revision"`
	RevisedAt           *time.Time      `grove:"revised_at"            bson:"revised_at,omitempty"`
	CreatedAt           time.Time       `grove:"created_at"            bson:"created_at"`
	UpdatedAt           time.Time       `grove:"updated_at"            bson:"updated_at"`
}

type lineItemModel struct {
	ID          string `bson:"id"`
	Kind        string `bson:"kind"`
	Name        string `bson:"name"`
	UnitPrice   int64  `bson:"unit_price"`
	Quantity    int64  `bson:"quantity"`
	Total       int64  `bson:"total"`
	Category    string `bson:"category,omitempty"`
	PlayMinutes int64  `bson:"play_minutes,omitempty"`
	StationName string `bson:"station_name,omitempty"`
}

func toBillModel(b *bill.Bill) (*billModel, error) {
	rate, err := toDecimal128(b.DiscountRate)
	if err != nil {
		return nil, err
	}
	hours, err := toDecimal128(b.MembershipHoursUsed)
	if err != nil {
		return nil, err
	}

	items := make([]lineItemModel, len(b.Items))
	for i, it := range b.Items {
		items[i] = lineItemModel{
			ID:          it.ID,
			Kind:        string(it.Kind),
			Name:        it.Name,
			UnitPrice:   it.UnitPrice.Int64(),
			Quantity:    it.Quantity,
			Total:       it.Total.Int64(),
			Category:    it.Category,
			PlayMinutes: it.PlayMinutes,
			StationName: it.StationName,
		}
	}

	return &billModel{
		ID:                  b.ID.String(),
		CustomerID:          b.CustomerID.String(),
		CustomerName:        b.CustomerName,
		TerminalID:          b.TerminalID,
		Items:               items,
		Subtotal:            b.Subtotal.Int64(),
		DiscountAmount:      b.DiscountAmount.Int64(),
		DiscountKind:        string(b.DiscountKind),
		DiscountRate:        rate,
		LoyaltyPointsUsed:   b.LoyaltyPointsUsed,
		LoyaltyPointsEarned: b.LoyaltyPointsEarned,
		Total:               b.Total.Int64(),
		PaymentMethod:       string(b.PaymentMethod),
		Status:              string(b.Status),
		CompNote:            b.CompNote,
		IsSplit:             b.IsSplit,
		SplitCash:           b.SplitCash.Int64(),
		SplitUPI:            b.SplitUPI.Int64(),
		PlayMinutes:         b.PlayMinutes,
		MembershipHoursUsed: hours,
		Revision:            b.Revision,
		RevisedAt:           b.RevisedAt,
		CreatedAt:           b.CreatedAt,
		UpdatedAt:           b.UpdatedAt,
	}, nil
}

func fromBillModel(m *billModel) (*bill.Bill, error) {
	billID, err := id.ParseBillID(m.ID)
	if err != nil {
		return nil, err
	}
	customerID, err := id.ParseCustomerID(m.CustomerID)
	if err != nil {
		return nil, err
	}
	rate, err := fromDecimal128(m.DiscountRate)
	if err != nil {
		return nil, err
	}
	hours, err := fromDecimal128(m.MembershipHoursUsed)
	if err != nil {
		return nil, err
	}

	items := make([]cart.LineItem, len(m.Items))
	for i, it := range m.Items {
		items[i] = cart.LineItem{
			ID:          it.ID,
			Kind:        cart.Kind(it.Kind),
			Name:        it.Name,
			UnitPrice:   types.Money(it.UnitPrice),
			Quantity:    it.Quantity,
			Total:       types.Money(it.Total),
			Category:    it.Category,
			PlayMinutes: it.PlayMinutes,
			StationName: it.StationName,
		}
	}

	return &bill.Bill{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                  billID,
		CustomerID:          customerID,
		CustomerName:        m.CustomerName,
		TerminalID:          m.TerminalID,
		Items:               items,
		Subtotal:            types.Money(m.Subtotal),
		DiscountAmount:      types.Money(m.DiscountAmount),
		DiscountKind:        cart.DiscountKind(m.DiscountKind),
		DiscountRate:        rate,
		LoyaltyPointsUsed:   m.LoyaltyPointsUsed,
		LoyaltyPointsEarned: m.LoyaltyPointsEarned,
		Total:               types.Money(m.Total),
		PaymentMethod:       bill.PaymentMethod(m.PaymentMethod),
		Status:              bill.Status(m.Status),
		CompNote:            m.CompNote,
		IsSplit:             m.IsSplit,
		SplitCash:           types.Money(m.SplitCash),
		SplitUPI:            types.Money(m.SplitUPI),
		PlayMinutes:         m.PlayMinutes,
		MembershipHoursUsed: hours,
		Revision:            m.Revision,
		RevisedAt:           m.RevisedAt,
	}, nil
}

// ==================== Decimal helpers ====================

func toDecimal128(d decimal.Decimal) (bson.Decimal128, error) {
	v, err := bson.ParseDecimal128(d.String())
	if err != nil {
		return bson.Decimal128{}, fmt.Errorf("till/mongo: decimal %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v bson.Decimal128) (decimal.Decimal, error) {
	if v.IsZero() {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("till/mongo: decimal %s: %w", v, err)
	}
	return d, nil
}

// incUpdate turns a delta into a $inc document.
func incUpdate(d customer.Delta, at time.Time) (bson.M, error) {
	hours, err := toDecimal128(d.MembershipHours)
	if err != nil {
		return nil, err
	}
	return bson.M{
		"$inc": bson.M{
			"loyalty_points":        d.LoyaltyPoints,
			"total_spent":           d.TotalSpent.Int64(),
			"total_play_minutes":    d.PlayMinutes,
			"membership_hours_left": hours,
		},
		"$set": bson.M{"updated_at": at},
	}, nil
}
