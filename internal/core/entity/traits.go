package entity

import (
	"context"

	"lms/internal/core/apperror"
)

// CurrencyAware is a trait for priced rows (pricing, orders, coupons).
// Amounts are stored next to an ISO 4217 code rather than a currency FK.
type CurrencyAware struct {
	CurrencyCode string `db:"currency_code" json:"currencyCode"`
}

// ValidateCurrency ensures a well-formed three letter upper-case code.
func (c *CurrencyAware) ValidateCurrency(ctx context.Context) error {
	if !IsCurrencyCode(c.CurrencyCode) {
		return apperror.NewFieldValidation("currencyCode", "currency code must be 3 upper-case letters").
			WithDetail("value", c.CurrencyCode)
	}
	return nil
}

// IsCurrencyCode reports whether s looks like an ISO 4217 alpha code.
func IsCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
