package valueobject

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 currency code
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	JPY Currency = "JPY"
	CNY Currency = "CNY"
	KWD Currency = "KWD"
)

// DefaultPrecision is the standard precision used for currencies without an explicit entry
const DefaultPrecision int32 = 2

var standardPrecision = map[Currency]int32{
	JPY: 0,
	KWD: 3,
	"BHD": 3,
	"CLP": 0,
	"KRW": 0,
}

// ParseCurrency normalises a currency code
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if len(c) != 3 {
		return "", fmt.Errorf("invalid currency code %q", code)
	}
	return c, nil
}

// StandardPrecision returns the number of decimal places amounts in c are kept at
func (c Currency) StandardPrecision() int32 {
	if p, ok := standardPrecision[c]; ok {
		return p
	}
	return DefaultPrecision
}

// String returns the currency code
func (c Currency) String() string {
	return string(c)
}

// Money is an immutable monetary amount in one currency.
// All operations return new Money instances.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates a new Money with the specified amount and currency
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{amount: amount, currency: currency}, nil
}

// MustMoney is NewMoney that panics on an empty currency; intended for constants and tests
func MustMoney(amount string, currency Currency) Money {
	d := decimal.RequireFromString(amount)
	m, err := NewMoney(d, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero-value Money in the specified currency
func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// Sign returns -1, 0 or 1
func (m Money) Sign() int {
	return m.amount.Sign()
}

// Add returns a new Money with the sum of both amounts.
// Returns error if currencies don't match
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Subtract returns a new Money with the difference.
// Returns error if currencies don't match
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot subtract money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// Multiply returns a new Money multiplied by factor
func (m Money) Multiply(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor), currency: m.currency}
}

// Negate returns a new Money with the sign flipped
func (m Money) Negate() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

// Round rounds half away from zero to the given number of places
func (m Money) Round(places int32) Money {
	return Money{amount: RoundHalfUp(m.amount, places), currency: m.currency}
}

// RoundStandard rounds to the currency's standard precision
func (m Money) RoundStandard() Money {
	return m.Round(m.currency.StandardPrecision())
}

// Equals reports whether both amount and currency match
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// String renders the amount at standard precision followed by the currency
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(m.currency.StandardPrecision()), m.currency)
}

type moneyJSON struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency Currency        `json:"currency"`
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount, Currency: m.currency})
}

// UnmarshalJSON implements json.Unmarshaler
func (m *Money) UnmarshalJSON(data []byte) error {
	var v moneyJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Currency == "" {
		return errors.New("currency cannot be empty")
	}
	m.amount = v.Amount
	m.currency = v.Currency
	return nil
}

// RoundHalfUp rounds d half away from zero at scale places.
// decimal.Round already rounds half away from zero; this helper names the mode.
func RoundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(places)
}

// IsZeroAt reports whether d rounds to zero at the given precision
func IsZeroAt(d decimal.Decimal, places int32) bool {
	return RoundHalfUp(d, places).IsZero()
}
