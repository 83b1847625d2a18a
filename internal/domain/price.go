package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Price is an immutable decimal amount in a single currency. All arithmetic
// uses arbitrary-precision decimals; two prices with different currency codes
// never combine.
type Price struct {
	amount       decimal.Decimal
	currencyCode string
}

// NewPrice builds a Price from a decimal string and a known 3-letter
// currency code.
func NewPrice(amount, currencyCode string) (Price, error) {
	if _, err := LookupCurrency(currencyCode); err != nil {
		return Price{}, fmt.Errorf("currency %q: %w", currencyCode, err)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Price{}, fmt.Errorf("amount %q: %w", amount, err)
	}
	return Price{amount: d, currencyCode: currencyCode}, nil
}

// MustNewPrice is NewPrice for statically known values; it panics on error.
func MustNewPrice(amount, currencyCode string) Price {
	p, err := NewPrice(amount, currencyCode)
	if err != nil {
		panic(err)
	}
	return p
}

func newPriceFromDecimal(d decimal.Decimal, currencyCode string) Price {
	return Price{amount: d, currencyCode: currencyCode}
}

// Amount returns the decimal amount as a string.
func (p Price) Amount() string {
	return p.amount.String()
}

// Decimal returns the underlying decimal amount.
func (p Price) Decimal() decimal.Decimal {
	return p.amount
}

// CurrencyCode returns the 3-letter currency code.
func (p Price) CurrencyCode() string {
	return p.currencyCode
}

// IsEmpty reports whether the price is the zero value, i.e. never constructed.
func (p Price) IsEmpty() bool {
	return p.currencyCode == ""
}

func (p Price) assertSameCurrency(other Price) error {
	if p.currencyCode != other.currencyCode {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, p.currencyCode, other.currencyCode)
	}
	return nil
}

// Add returns p + other.
func (p Price) Add(other Price) (Price, error) {
	if err := p.assertSameCurrency(other); err != nil {
		return Price{}, err
	}
	return newPriceFromDecimal(p.amount.Add(other.amount), p.currencyCode), nil
}

// Subtract returns p - other.
func (p Price) Subtract(other Price) (Price, error) {
	if err := p.assertSameCurrency(other); err != nil {
		return Price{}, err
	}
	return newPriceFromDecimal(p.amount.Sub(other.amount), p.currencyCode), nil
}

// Multiply returns p scaled by the given decimal string.
func (p Price) Multiply(number string) (Price, error) {
	d, err := decimal.NewFromString(number)
	if err != nil {
		return Price{}, fmt.Errorf("multiplier %q: %w", number, err)
	}
	return newPriceFromDecimal(p.amount.Mul(d), p.currencyCode), nil
}

// MultiplyInt returns p scaled by an integer quantity.
func (p Price) MultiplyInt(n int64) Price {
	return newPriceFromDecimal(p.amount.Mul(decimal.NewFromInt(n)), p.currencyCode)
}

// Divide returns p divided by the given decimal string.
func (p Price) Divide(number string) (Price, error) {
	d, err := decimal.NewFromString(number)
	if err != nil {
		return Price{}, fmt.Errorf("divisor %q: %w", number, err)
	}
	if d.IsZero() {
		return Price{}, fmt.Errorf("divisor %q: division by zero", number)
	}
	return newPriceFromDecimal(p.amount.Div(d), p.currencyCode), nil
}

// Equal reports whether both prices have the same currency and amount.
func (p Price) Equal(other Price) bool {
	return p.currencyCode == other.currencyCode && p.amount.Equal(other.amount)
}

// GreaterThan reports whether p > other.
func (p Price) GreaterThan(other Price) (bool, error) {
	if err := p.assertSameCurrency(other); err != nil {
		return false, err
	}
	return p.amount.GreaterThan(other.amount), nil
}

// LessThan reports whether p < other.
func (p Price) LessThan(other Price) (bool, error) {
	if err := p.assertSameCurrency(other); err != nil {
		return false, err
	}
	return p.amount.LessThan(other.amount), nil
}

// IsZero reports whether the amount is zero.
func (p Price) IsZero() bool {
	return p.amount.IsZero()
}

// IsNegative reports whether the amount is below zero.
func (p Price) IsNegative() bool {
	return p.amount.IsNegative()
}

// String implements fmt.Stringer, e.g. "9.99 USD".
func (p Price) String() string {
	return p.amount.String() + " " + p.currencyCode
}

// ZeroPrice returns a zero amount in the given currency.
func ZeroPrice(currencyCode string) Price {
	return Price{amount: decimal.Zero, currencyCode: currencyCode}
}

type priceJSON struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

// MarshalJSON encodes the price as an amount string plus currency code. The
// empty price encodes as null.
func (p Price) MarshalJSON() ([]byte, error) {
	if p.IsEmpty() {
		return []byte("null"), nil
	}
	return json.Marshal(priceJSON{Amount: p.amount.String(), CurrencyCode: p.currencyCode})
}

// UnmarshalJSON decodes the MarshalJSON representation.
func (p *Price) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = Price{}
		return nil
	}
	var raw priceJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewPrice(raw.Amount, raw.CurrencyCode)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
