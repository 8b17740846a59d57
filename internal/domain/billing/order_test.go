package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
	"lms/internal/core/types"
	"lms/internal/domain/courses"
)

func TestOrder_ApplyPricing(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	course := id.New()

	p := courses.NewPricing(course, "USD")
	p.PricingType = courses.PricingOneTime
	p.Price = types.MustMoney("100")
	sale := types.MustMoney("80")
	p.SalePrice, p.SaleEndAt = &sale, &now
	p.TaxIncluded = false
	p.TaxRate = decimal.NewFromInt(10)

	t.Run("sale price, coupon, tax on top", func(t *testing.T) {
		o := NewOrder(id.New(), course)
		o.ApplyPricing(p, NewCoupon("ten", CouponPercent, decimal.NewFromInt(10)), now)
		assert.Equal(t, "80.00", o.Subtotal.StringFixed(2))
		assert.Equal(t, "8.00", o.DiscountTotal.StringFixed(2))
		assert.Equal(t, "7.20", o.TaxTotal.StringFixed(2))
		assert.Equal(t, "79.20", o.Total.StringFixed(2))
		assert.Equal(t, "TEN", o.CouponCodeSnapshot)
	})

	t.Run("after the sale", func(t *testing.T) {
		o := NewOrder(id.New(), course)
		o.ApplyPricing(p, nil, now.Add(time.Second))
		assert.Equal(t, "100.00", o.Subtotal.StringFixed(2))
		assert.Equal(t, "110.00", o.Total.StringFixed(2))
		assert.Nil(t, o.CouponID)
	})

	t.Run("free course", func(t *testing.T) {
		o := NewOrder(id.New(), course)
		o.ApplyPricing(courses.NewPricing(course, "USD"), nil, now)
		assert.True(t, o.Total.IsZero())
	})
}

func TestOrder_Transitions(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	o := NewOrder(id.New(), id.New())
	enrollment := id.New()

	require.NoError(t, o.MarkPaid("INV-2026-000001", enrollment, now))
	assert.Equal(t, OrderPaid, o.Status)
	assert.Equal(t, &enrollment, o.EnrollmentID)

	err := o.MarkPaid("INV-2026-000002", enrollment, now)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))
	assert.Error(t, o.Cancel("late", now))

	require.NoError(t, o.Refund("RF-000001", "requested", now))
	assert.Equal(t, OrderRefunded, o.Status)
	assert.Equal(t, "RF-000001", o.RefundReceiptNo)

	o2 := NewOrder(id.New(), id.New())
	require.NoError(t, o2.Cancel("changed mind", now))
	assert.Error(t, o2.Refund("RF-000002", "x", now))
}
