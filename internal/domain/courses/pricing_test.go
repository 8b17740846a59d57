package courses

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"lms/internal/core/id"
)

func paidPricing() *Pricing {
	p := NewPricing(id.New(), "USD")
	p.PricingType = PricingOneTime
	p.Price = decimal.RequireFromString("100.00")
	sale := decimal.RequireFromString("79.00")
	p.SalePrice = &sale
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 30, 23, 59, 59, 0, time.UTC)
	p.SaleStartAt, p.SaleEndAt = &start, &end
	return p
}

func TestPricing_EffectivePrice(t *testing.T) {
	p := paidPricing()
	start, end := *p.SaleStartAt, *p.SaleEndAt

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"before window", start.Add(-time.Second), "100"},
		{"at window start", start, "79"},
		{"inside window", start.Add(48 * time.Hour), "79"},
		{"at window end", end, "79"},
		{"after window", end.Add(time.Second), "100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, p.EffectivePrice(tt.at).Equal(decimal.RequireFromString(tt.want)),
				"got %s", p.EffectivePrice(tt.at))
		})
	}
}

func TestPricing_OpenWindow(t *testing.T) {
	p := paidPricing()
	p.SaleStartAt = nil
	p.SaleEndAt = nil
	assert.True(t, p.EffectivePrice(time.Now()).Equal(decimal.RequireFromString("79")))

	p.SalePrice = nil
	assert.True(t, p.EffectivePrice(time.Now()).Equal(decimal.RequireFromString("100")))
}

func TestPricing_FreeIsAlwaysZero(t *testing.T) {
	p := paidPricing()
	p.PricingType = PricingFree
	assert.True(t, p.EffectivePrice(*p.SaleStartAt).IsZero())
}

func TestPricing_Validate(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, paidPricing().Validate(ctx))

	p := paidPricing()
	p.CurrencyCode = "usd"
	assert.Error(t, p.Validate(ctx))

	p = paidPricing()
	p.SaleEndAt, p.SaleStartAt = p.SaleStartAt, p.SaleEndAt
	assert.Error(t, p.Validate(ctx))

	p = paidPricing()
	p.Price = decimal.NewFromInt(-1)
	assert.Error(t, p.Validate(ctx))
}

func TestPricing_Tax(t *testing.T) {
	p := paidPricing()
	p.TaxRate = decimal.NewFromInt(20)

	p.TaxIncluded = true
	tax, total := p.Tax(decimal.RequireFromString("120"))
	assert.Equal(t, "20.00", tax.StringFixed(2))
	assert.Equal(t, "120.00", total.StringFixed(2))

	p.TaxIncluded = false
	tax, total = p.Tax(decimal.RequireFromString("100"))
	assert.Equal(t, "20.00", tax.StringFixed(2))
	assert.Equal(t, "120.00", total.StringFixed(2))
}
