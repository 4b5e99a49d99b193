package customer

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/till/id"
	"github.com/xraph/till/types"
)

// Customer is a club patron. LoyaltyPoints, TotalSpent, TotalPlayMinutes and
// MembershipHoursLeft are aggregates maintained only by bill commits.
type Customer struct {
	types.Entity
	ID                  id.CustomerID     `json:"id"`
	Name                string            `json:"name"`
	Phone               string            `json:"phone,omitempty"`
	Email               string            `json:"email,omitempty"`
	LoyaltyPoints       int64             `json:"loyalty_points"`
	TotalSpent          types.Money       `json:"total_spent"`
	TotalPlayMinutes    int64             `json:"total_play_minutes"`
	IsMember            bool              `json:"is_member"`
	MembershipPlan      string            `json:"membership_plan,omitempty"`
	MembershipExpiresAt *time.Time        `json:"membership_expires_at,omitempty"`
	MembershipHoursLeft decimal.Decimal   `json:"membership_hours_left"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

// HasActiveMembership reports whether the customer is a member whose
// membership has not expired at now.
func (c *Customer) HasActiveMembership(now time.Time) bool {
	if !c.IsMember {
		return false
	}
	return c.MembershipExpiresAt == nil || now.Before(*c.MembershipExpiresAt)
}

// Apply adds d to the customer's aggregates.
func (c *Customer) Apply(d Delta) {
	c.LoyaltyPoints += d.LoyaltyPoints
	c.TotalSpent = c.TotalSpent.Add(d.TotalSpent)
	c.TotalPlayMinutes += d.PlayMinutes
	c.MembershipHoursLeft = c.MembershipHoursLeft.Add(d.MembershipHours)
}

// Delta is a change to a customer's aggregates produced by one bill.
type Delta struct {
	LoyaltyPoints   int64           `json:"loyalty_points"`
	TotalSpent      types.Money     `json:"total_spent"`
	PlayMinutes     int64           `json:"play_minutes"`
	MembershipHours decimal.Decimal `json:"membership_hours"`
}

// Neg returns the delta that undoes d.
func (d Delta) Neg() Delta {
	return Delta{
		LoyaltyPoints:   -d.LoyaltyPoints,
		TotalSpent:      d.TotalSpent.Neg(),
		PlayMinutes:     -d.PlayMinutes,
		MembershipHours: d.MembershipHours.Neg(),
	}
}

// Add combines two deltas.
func (d Delta) Add(o Delta) Delta {
	return Delta{
		LoyaltyPoints:   d.LoyaltyPoints + o.LoyaltyPoints,
		TotalSpent:      d.TotalSpent.Add(o.TotalSpent),
		PlayMinutes:     d.PlayMinutes + o.PlayMinutes,
		MembershipHours: d.MembershipHours.Add(o.MembershipHours),
	}
}

// IsZero reports whether d changes nothing.
func (d Delta) IsZero() bool {
	return d.LoyaltyPoints == 0 && d.TotalSpent == 0 && d.PlayMinutes == 0 && d.MembershipHours.IsZero()
}

// Adjustment targets a delta at one customer.
type Adjustment struct {
	CustomerID id.CustomerID `json:"customer_id"`
	Delta      Delta         `json:"delta"`
}
