package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xraph/grove"

	"github.com/xraph/till/bill"
	"github.com/xraph/till/cart"
	"github.com/xraph/till/customer"
	"github.com/xraph/till/id"
	"github.com/xraph/till/types"
)

// ==================== Customer models ====================

type customerModel struct {
	grove.BaseModel `grove:"table:till_customers"`

	ID                  string            `grove:"id,pk"`
	Name                string            `grove:"name"`
	Phone               string            `grove:"phone"`
	Email               string            `grove:"email"`
	LoyaltyPoints       int64             `grove:"loyalty_points"`
	TotalSpent          int64             `grove:"total_spent"`
	TotalPlayMinutes    int64             `grove:"total_play_minutes"`
	IsMember            bool              `grove:"is_member"`
	MembershipPlan      string            `grove:"membership_plan"`
	MembershipExpiresAt *time.Time        `grove:"membership_expires_at"`
	MembershipHoursLeft decimal.Decimal   `grove:"membership_hours_left"`
	Metadata            map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt           time.Time         `grove:"created_at"`
	UpdatedAt           time.Time         `grove:"updated_at"`
}

func toCustomerModel(c *customer.Customer) *customerModel {
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
		MembershipHoursLeft: c.MembershipHoursLeft,
		Metadata:            c.Metadata,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

func fromCustomerModel(m *customerModel) (*customer.Customer, error) {
	customerID, err := id.ParseCustomerID(m.ID)
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
		MembershipHoursLeft: m.MembershipHoursLeft,
		Metadata:            m.Metadata,
	}, nil
}

// ==================== Bill models ====================

// billModel keeps the columns the store filters and guards on; the rest of
// the bill lives in the document.
type billModel struct {
	grove.BaseModel `grove:"table:till_bills"`

	ID         string          `grove:"id,pk"`
	CustomerID string          `grove:"customer_id"`
	TerminalID string          `grove:"terminal_id"`
	Total      int64           `grove:"total"`
	Revision   int             `grove:"revision"`
	Document   json.RawMessage `grove:"document,type:jsonb"`
	CreatedAt  time.Time       `grove:"created_at"`
	UpdatedAt  time.Time       `grove:"updated_at"`
}

func toBillModel(b *bill.Bill) (*billModel, error) {
	doc, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal bill %s: %w", b.ID, err)
	}
	return &billModel{
		ID:         b.ID.String(),
		CustomerID: b.CustomerID.String(),
		TerminalID: b.TerminalID,
		Total:      b.Total.Int64(),
		Revision:   b.Revision,
		Document:   doc,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}, nil
}

func fromBillModel(m *billModel) (*bill.Bill, error) {
	var b bill.Bill
	if err := json.Unmarshal(m.Document, &b); err != nil {
		return nil, fmt.Errorf("unmarshal bill %s: %w", m.ID, err)
	}
	b.Revision = m.Revision
	b.CreatedAt = m.CreatedAt
	b.UpdatedAt = m.UpdatedAt
	return &b, nil
}

// ==================== Cart models ====================

type cartModel struct {
	grove.BaseModel `grove:"table:till_carts"`

	TerminalID string          `grove:"terminal_id,pk"`
	Document   json.RawMessage `grove:"document,type:jsonb"`
	UpdatedAt  time.Time       `grove:"updated_at"`
}

func toCartModel(c *cart.Cart) (*cartModel, error) {
	doc, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal cart %s: %w", c.TerminalID, err)
	}
	return &cartModel{TerminalID: c.TerminalID, Document: doc, UpdatedAt: now()}, nil
}

func fromCartModel(m *cartModel) (*cart.Cart, error) {
	var c cart.Cart
	if err := json.Unmarshal(m.Document, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart %s: %w", m.TerminalID, err)
	}
	return &c, nil
}

// ==================== Adjustments ====================

// adjustmentRow is one customer delta as it is fed to the commit statements
// through jsonb_to_recordset.
type adjustmentRow struct {
	CustomerID      string `json:"customer_id"`
	LoyaltyPoints   int64  `json:"loyalty_points"`
	TotalSpent      int64  `json:"total_spent"`
	PlayMinutes     int64  `json:"play_minutes"`
	MembershipHours string `json:"membership_hours"`
}

func adjustmentRows(adjustments []customer.Adjustment) (string, error) {
	rows := make([]adjustmentRow, len(adjustments))
	for i, adj := range adjustments {
		rows[i] = adjustmentRow{
			CustomerID:      adj.CustomerID.String(),
			LoyaltyPoints:   adj.Delta.LoyaltyPoints,
			TotalSpent:      adj.Delta.TotalSpent.Int64(),
			PlayMinutes:     adj.Delta.PlayMinutes,
			MembershipHours: adj.Delta.MembershipHours.String(),
		}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
