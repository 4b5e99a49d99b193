// Package pricing derives running totals from a cart's state.
//
// Compute is pure: it never mutates its input, never fails and returns the
// same Totals for the same Input, so callers may invoke it on every read.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xraph/till/cart"
	"github.com/xraph/till/types"
)

// Input is the part of a cart that affects its price.
type Input struct {
	Lines             []cart.LineItem
	Discount          cart.Discount
	LoyaltyPointsUsed int64
}

// Totals is the priced view of an Input.
type Totals struct {
	Subtotal types.Money `json:"subtotal"`
	Discount types.Money `json:"discount"`
	Loyalty  types.Money `json:"loyalty"`
	Final    types.Money `json:"final"`
}

// FromCart builds the pricing input of a cart.
func FromCart(c *cart.Cart) Input {
	return Input{
		Lines:             c.Lines,
		Discount:          c.Discount,
		LoyaltyPointsUsed: c.LoyaltyPointsUsed,
	}
}

// Compute prices in. The final total is floored at zero; a fixed discount
// larger than the subtotal is not clamped before that floor.
func Compute(in Input) Totals {
	var t Totals
	for _, line := range in.Lines {
		t.Subtotal = t.Subtotal.Add(line.Total)
	}

	t.Discount = DiscountValue(t.Subtotal, in.Discount)
	t.Loyalty = types.Money(in.LoyaltyPointsUsed)
	t.Final = t.Subtotal.Sub(t.Discount).Sub(t.Loyalty).Floor()
	return t
}

// DiscountValue converts a discount selection into an amount off subtotal.
func DiscountValue(subtotal types.Money, d cart.Discount) types.Money {
	if d.Kind == cart.DiscountFixed {
		return types.FromDecimal(d.Amount)
	}
	return subtotal.Percent(d.Amount)
}

// Percentage is a convenience constructor for a percentage discount.
func Percentage(rate int64) cart.Discount {
	return cart.Discount{Amount: decimal.NewFromInt(rate), Kind: cart.DiscountPercentage}
}

// Fixed is a convenience constructor for a fixed discount in minor units.
func Fixed(amount types.Money) cart.Discount {
	return cart.Discount{Amount: amount.Decimal(), Kind: cart.DiscountFixed}
}
