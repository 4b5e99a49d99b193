// Package types provides common types used across till.
package types

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in the smallest unit of the club's single currency
// (paise for INR, cents for USD). All arithmetic is integer-only.
type Money int64

// Add adds two amounts.
func (m Money) Add(other Money) Money { return m + other }

// Sub subtracts other from m.
func (m Money) Sub(other Money) Money { return m - other }

// Mul multiplies the amount by a quantity.
func (m Money) Mul(qty int64) Money { return m * Money(qty) }

// Neg returns the negated amount.
func (m Money) Neg() Money { return -m }

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m == 0 }

// IsNegative returns true if the amount is below zero.
func (m Money) IsNegative() bool { return m < 0 }

// Floor returns m, or zero when m is negative.
func (m Money) Floor() Money {
	if m < 0 {
		return 0
	}
	return m
}

// Int64 returns the raw minor-unit amount.
func (m Money) Int64() int64 { return int64(m) }

// Decimal returns the amount as a decimal in minor units.
func (m Money) Decimal() decimal.Decimal { return decimal.NewFromInt(int64(m)) }

// Percent returns rate percent of m, rounded half away from zero to the
// minor unit.
func (m Money) Percent(rate decimal.Decimal) Money {
	return FromDecimal(m.Decimal().Mul(rate).Div(decimal.NewFromInt(100)))
}

// FromDecimal rounds a minor-unit decimal to Money.
func FromDecimal(d decimal.Decimal) Money {
	return Money(d.Round(0).IntPart())
}

// Sum adds up all values.
func Sum(values ...Money) Money {
	var total Money
	for _, v := range values {
		total += v
	}
	return total
}

// FormatMajor returns the amount in major units without a symbol:
// "49.00" for 4900 inr, "100" for 100 jpy.
func (m Money) FormatMajor(currency string) string {
	decimals := currencyDecimals(currency)
	if decimals == 0 {
		return fmt.Sprintf("%d", int64(m))
	}

	divisor := int64(1)
	for i := 0; i < decimals; i++ {
		divisor *= 10
	}

	abs := int64(m)
	sign := ""
	if abs < 0 {
		abs = -abs
		sign = "-"
	}

	format := fmt.Sprintf("%%s%%d.%%0%dd", decimals)
	return fmt.Sprintf(format, sign, abs/divisor, abs%divisor)
}

// Format returns a human-readable string with the currency symbol, e.g. "₹49.00".
func (m Money) Format(currency string) string {
	return currencySymbol(currency) + m.FormatMajor(currency)
}

// String formats the amount in minor units.
func (m Money) String() string { return fmt.Sprintf("%d", int64(m)) }

func currencySymbol(currency string) string {
	symbols := map[string]string{
		"inr": "₹",
		"usd": "$",
		"eur": "€",
		"gbp": "£",
		"jpy": "¥",
		"aud": "A$",
		"sgd": "S$",
	}
	if sym, ok := symbols[strings.ToLower(currency)]; ok {
		return sym
	}
	return strings.ToUpper(currency) + " "
}

func currencyDecimals(currency string) int {
	zeroDecimal := map[string]bool{
		"jpy": true,
		"krw": true,
		"vnd": true,
		"idr": true,
	}
	if zeroDecimal[strings.ToLower(currency)] {
		return 0
	}
	return 2
}
