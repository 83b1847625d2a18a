package domain

// Currency describes a currency's precision for rounding and minor-unit
// conversion.
type Currency struct {
	Code           string
	FractionDigits int32
}

// currencies is the built-in currency table. Codes not listed here are
// rejected by NewPrice and the Rounder.
var currencies = map[string]Currency{
	"AUD": {Code: "AUD", FractionDigits: 2},
	"CAD": {Code: "CAD", FractionDigits: 2},
	"CHF": {Code: "CHF", FractionDigits: 2},
	"EUR": {Code: "EUR", FractionDigits: 2},
	"GBP": {Code: "GBP", FractionDigits: 2},
	"JPY": {Code: "JPY", FractionDigits: 0},
	"KWD": {Code: "KWD", FractionDigits: 3},
	"NZD": {Code: "NZD", FractionDigits: 2},
	"USD": {Code: "USD", FractionDigits: 2},
}

// LookupCurrency returns the currency definition for the given code.
func LookupCurrency(code string) (Currency, error) {
	currency, ok := currencies[code]
	if !ok {
		return Currency{}, ErrUnknownCurrency
	}
	return currency, nil
}
