package money

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrInvalidCurrency  = errors.New("money: invalid currency code")
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
)

// Money keeps amounts in integer minor units to avoid floating point issues.
type Money struct {
	Amount   int64  `json:"amount" bson:"amount"`
	Currency string `json:"currency" bson:"currency"`
}

// New constructs a Money value validating minimal invariants.
func New(amount int64, currency string) (Money, error) {
	if len(currency) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	currency = strings.ToUpper(currency)
	return Money{Amount: amount, Currency: currency}, nil
}

// Must creates Money and panics if validation fails; useful in tests and fixtures.
func Must(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Add adds two money values ensuring currencies match.
func (m Money) Add(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Sub subtracts other from the receiver.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Neg returns the negated amount preserving currency.
func (m Money) Neg() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

// Percent returns the given percentage of the amount, rounded half-up.
func (m Money) Percent(pct int64) Money {
	return Money{Amount: RoundHalfUp(float64(m.Amount) * float64(pct) / 100), Currency: m.Currency}
}

// IsZero returns true if the amount equals zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// Equal reports whether amount and currency both match.
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

func (m Money) ensureSameCurrency(other Money) error {
	if m.Currency == "" || other.Currency == "" {
		return ErrInvalidCurrency
	}
	if m.Currency != other.Currency {
		return ErrCurrencyMismatch
	}
	return nil
}

// ToDecimal converts minor units into a major-unit decimal. Sign is preserved.
func ToDecimal(minorUnits int64) float64 {
	return float64(minorUnits) / 100
}

// FromDecimal converts a major-unit decimal into minor units, rounding half-up
// so that FromDecimal(ToDecimal(x)) == x for every representable integer.
func FromDecimal(value float64) int64 {
	return RoundHalfUp(value * 100)
}

// RoundHalfUp rounds to the nearest integer with .5 away from zero.
func RoundHalfUp(value float64) int64 {
	if value < 0 {
		return -int64(math.Floor(-value + 0.5))
	}
	return int64(math.Floor(value + 0.5))
}

// FormatDisplay renders a signed amount with at least two fraction digits.
// Minor units carry exactly two, so no remainder is ever dropped.
func FormatDisplay(minorUnits int64) string {
	sign := ""
	units := minorUnits
	if units < 0 {
		sign = "-"
		units = -units
	}
	return fmt.Sprintf("%s%d.%02d", sign, units/100, units%100)
}
