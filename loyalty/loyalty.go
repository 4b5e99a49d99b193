// Package loyalty holds the business rules checkout delegates: how many
// points a sale earns and how much membership time a session consumes.
// Both are injected into the engine; neither has a built-in rate.
package loyalty

import (
	"github.com/shopspring/decimal"

	"github.com/xraph/till/types"
)

// EarnPolicy converts a sale's payable total into loyalty points.
type EarnPolicy interface {
	PointsEarned(total types.Money) int64
}

// EarnFunc adapts a function to EarnPolicy.
type EarnFunc func(total types.Money) int64

// PointsEarned implements EarnPolicy.
func (f EarnFunc) PointsEarned(total types.Money) int64 { return f(total) }

// NoEarn awards nothing.
var NoEarn EarnPolicy = EarnFunc(func(types.Money) int64 { return 0 })

// Rate awards Points for every whole Per spent.
type Rate struct {
	Points int64
	Per    types.Money
}

// PointsEarned implements EarnPolicy.
func (r Rate) PointsEarned(total types.Money) int64 {
	if r.Per <= 0 || r.Points <= 0 || total <= 0 {
		return 0
	}
	return int64(total/r.Per) * r.Points
}

// MembershipPolicy converts billed play time into membership hours.
type MembershipPolicy interface {
	HoursFor(playMinutes int64) decimal.Decimal
}

// MembershipFunc adapts a function to MembershipPolicy.
type MembershipFunc func(playMinutes int64) decimal.Decimal

// HoursFor implements MembershipPolicy.
func (f MembershipFunc) HoursFor(playMinutes int64) decimal.Decimal { return f(playMinutes) }

// NoDeduction leaves membership hours untouched.
var NoDeduction MembershipPolicy = MembershipFunc(func(int64) decimal.Decimal { return decimal.Zero })

var sixty = decimal.NewFromInt(60)

// Proportional charges Ratio membership hours per hour played, rounded to
// hundredths of an hour.
type Proportional struct {
	Ratio decimal.Decimal
}

// HoursFor implements MembershipPolicy.
func (p Proportional) HoursFor(playMinutes int64) decimal.Decimal {
	if playMinutes <= 0 || !p.Ratio.IsPositive() {
		return decimal.Zero
	}
	return decimal.NewFromInt(playMinutes).Div(sixty).Mul(p.Ratio).Round(2)
}

// Deduct returns the hours to take from a balance of left for playMinutes,
// never more than the balance.
func Deduct(p MembershipPolicy, playMinutes int64, left decimal.Decimal) decimal.Decimal {
	want := p.HoursFor(playMinutes)
	if !want.IsPositive() || !left.IsPositive() {
		return decimal.Zero
	}
	return decimal.Min(want, left)
}
