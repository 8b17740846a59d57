// Package types provides common type aliases and utilities.
package types

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// MoneyPlaces is the scale of every stored amount (NUMERIC(12,2)).
const MoneyPlaces int32 = 2

// ParseMoney parses an amount as sent by API clients ("49.90").
// Empty input is zero.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}

// ParseMoneyPtr parses an optional amount; empty input yields nil.
func ParseMoneyPtr(s *string) (*Money, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	d, err := ParseMoney(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// Round rounds an amount to cents, half away from zero.
func Round(m Money) Money {
	return m.Round(MoneyPlaces)
}

// Percent returns rate percent of amount, rounded to cents.
func Percent(amount, rate Money) Money {
	return Round(amount.Mul(rate).Div(decimal.NewFromInt(100)))
}

// MinMoney returns the smaller amount.
func MinMoney(a, b Money) Money {
	if a.LessThan(b) {
		return a
	}
	return b
}

// FormatMoney renders an amount with its currency code: "49.90 USD".
func FormatMoney(m Money, currency string) string {
	return m.StringFixed(MoneyPlaces) + " " + currency
}

// MoneyString renders an optional amount for DTOs.
func MoneyString(m *Money) *string {
	if m == nil {
		return nil
	}
	s := m.StringFixed(MoneyPlaces)
	return &s
}
