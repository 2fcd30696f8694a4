package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultCurrency is the ISO 4217 code used by the built-in catalog.
const DefaultCurrency = "EUR"

// minorUnitExp is the number of decimal places of the minor currency unit.
const minorUnitExp = 2

// Money represents a monetary amount in the smallest currency unit.
// For example, €29.00 would be Amount: 2900, Currency: "EUR".
type Money struct {
	Amount   int64  `json:"amount" yaml:"amount"`     // minor units (cents)
	Currency string `json:"currency" yaml:"currency"` // ISO 4217 currency code
}

// EUR is a shorthand constructor for euro amounts given in cents.
func EUR(cents int64) Money {
	return Money{Amount: cents, Currency: DefaultCurrency}
}

// MoneyFromDecimal converts a major-unit decimal to Money, rounding half-up
// to the minor unit.
func MoneyFromDecimal(d decimal.Decimal, cur string) Money {
	return Money{
		Amount:   d.Round(minorUnitExp).Shift(minorUnitExp).IntPart(),
		Currency: cur,
	}
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -minorUnitExp)
}

func (m Money) IsZero() bool {
	return m.Amount == 0
}

func (m Money) IsNegative() bool {
	return m.Amount < 0
}

// Add returns m+o. Currencies are assumed to match; the receiver's currency wins.
func (m Money) Add(o Money) Money {
	return Money{Amount: m.Amount + o.Amount, Currency: m.currency(o)}
}

// Sub returns m-o.
func (m Money) Sub(o Money) Money {
	return Money{Amount: m.Amount - o.Amount, Currency: m.currency(o)}
}

// Mul multiplies the amount by a decimal factor and rounds to the minor unit.
func (m Money) Mul(f decimal.Decimal) Money {
	return MoneyFromDecimal(m.Decimal().Mul(f), m.Currency)
}

// MulInt multiplies the amount by an integer factor without rounding.
func (m Money) MulInt(n int64) Money {
	return Money{Amount: m.Amount * n, Currency: m.Currency}
}

// Min returns the smaller of m and o.
func (m Money) Min(o Money) Money {
	if o.Amount < m.Amount {
		return Money{Amount: o.Amount, Currency: m.currency(o)}
	}
	return m
}

// NonNegative clamps negative amounts to zero.
func (m Money) NonNegative() Money {
	if m.Amount < 0 {
		return Money{Amount: 0, Currency: m.Currency}
	}
	return m
}

// String formats the amount with its currency symbol, e.g. "€29.00" or "-€5.00".
// Unknown currency codes are printed after the amount.
func (m Money) String() string {
	amount := m.Decimal()
	unit, err := currency.ParseISO(m.Currency)
	if err != nil {
		return fmt.Sprintf("%s %s", amount.StringFixed(minorUnitExp), m.Currency)
	}
	symbol := message.NewPrinter(language.English).Sprint(currency.Symbol(unit))
	if amount.IsNegative() {
		return "-" + symbol + amount.Abs().StringFixed(minorUnitExp)
	}
	return symbol + amount.StringFixed(minorUnitExp)
}

func (m Money) currency(o Money) string {
	if m.Currency != "" {
		return m.Currency
	}
	return o.Currency
}
