package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RoundingMode selects the tie-breaking rule used when an amount sits exactly
// between two representable values.
type RoundingMode int

const (
	RoundHalfUp RoundingMode = iota
	RoundHalfDown
	RoundHalfEven
	RoundHalfOdd
)

// Rounder rounds prices to their currency precision. USD prices round to two
// decimals, JPY to zero, and so on. Every derived price must pass through
// here before persistence so rounding error cannot compound across repeated
// recalculation.
type Rounder struct{}

// NewRounder returns a Rounder backed by the built-in currency table.
func NewRounder() *Rounder {
	return &Rounder{}
}

// Round rounds the price to its currency's fraction digits using the given
// tie-breaking mode.
func (r *Rounder) Round(price Price, mode RoundingMode) (Price, error) {
	currency, err := LookupCurrency(price.CurrencyCode())
	if err != nil {
		return Price{}, fmt.Errorf("currency %q: %w", price.CurrencyCode(), err)
	}
	rounded := roundDecimal(price.Decimal(), currency.FractionDigits, mode)
	return newPriceFromDecimal(rounded, price.CurrencyCode()), nil
}

// roundDecimal rounds to the given number of places. Ties on negative
// amounts resolve away from zero for HalfUp, matching the original store's
// rounding behavior, so the computation runs on the absolute value.
func roundDecimal(d decimal.Decimal, places int32, mode RoundingMode) decimal.Decimal {
	negative := d.IsNegative()
	scaled := d.Abs().Shift(places)
	floor := scaled.Floor()
	fraction := scaled.Sub(floor)
	half := decimal.New(5, -1)

	var result decimal.Decimal
	switch fraction.Cmp(half) {
	case -1:
		result = floor
	case 1:
		result = floor.Add(decimal.New(1, 0))
	default:
		switch mode {
		case RoundHalfDown:
			result = floor
		case RoundHalfEven:
			if isEven(floor) {
				result = floor
			} else {
				result = floor.Add(decimal.New(1, 0))
			}
		case RoundHalfOdd:
			if isEven(floor) {
				result = floor.Add(decimal.New(1, 0))
			} else {
				result = floor
			}
		default:
			result = floor.Add(decimal.New(1, 0))
		}
	}
	if negative {
		result = result.Neg()
	}
	return result.Shift(-places)
}

func isEven(d decimal.Decimal) bool {
	return d.Mod(decimal.New(2, 0)).IsZero()
}
