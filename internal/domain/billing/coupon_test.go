package billing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
	"lms/internal/core/types"
)

func intPtr(v int) *int { return &v }

func TestCoupon_IsValidWindow(t *testing.T) {
	starts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ends := time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)
	c := NewCoupon("winter", CouponPercent, decimal.NewFromInt(10))
	c.StartsAt, c.EndsAt = &starts, &ends

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before start", starts.Add(-time.Second), false},
		{"at start", starts, true},
		{"inside", starts.Add(24 * time.Hour), true},
		{"at end", ends, true},
		{"one second after end", ends.Add(time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsValid(tt.now))
		})
	}
}

func TestCoupon_IsValidUsageAndActive(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	c := NewCoupon("launch", CouponFixed, decimal.NewFromInt(5))
	c.MaxUsesTotal = intPtr(2)

	assert.True(t, c.IsValid(now))
	c.Redeem()
	assert.True(t, c.IsValid(now))
	c.Redeem()
	assert.False(t, c.IsValid(now), "cap reached")

	c2 := NewCoupon("off", CouponFixed, decimal.NewFromInt(5))
	c2.Deactivate()
	assert.False(t, c2.IsValid(now))
}

func TestCoupon_Discount(t *testing.T) {
	percent := NewCoupon("p", CouponPercent, decimal.NewFromInt(15))
	assert.Equal(t, "7.50", percent.Discount(types.MustMoney("50")).StringFixed(2))
	assert.True(t, percent.Discount(decimal.Zero).IsZero())

	fixed := NewCoupon("f", CouponFixed, decimal.NewFromInt(20))
	assert.Equal(t, "20.00", fixed.Discount(types.MustMoney("50")).StringFixed(2))
	assert.Equal(t, "12.00", fixed.Discount(types.MustMoney("12")).StringFixed(2), "never below zero")

	full := NewCoupon("free", CouponPercent, decimal.NewFromInt(100))
	assert.Equal(t, "49.99", full.Discount(types.MustMoney("49.99")).StringFixed(2))
}

func TestCoupon_Check(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	course := id.New()
	base := CouponUse{CourseID: course, Subtotal: types.MustMoney("100"), CurrencyCode: "USD"}

	reason := func(err error) string {
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeCouponInvalid, appErr.Code)
		assert.Equal(t, 422, appErr.HTTPStatus)
		return appErr.Details["reason"].(string)
	}

	c := NewCoupon("go10", CouponPercent, decimal.NewFromInt(10))
	assert.Equal(t, "GO10", c.Code)
	require.NoError(t, c.Check(base, now))

	other := id.New()
	c.AppliesTo, c.CourseID = AppliesToCourse, &other
	assert.Equal(t, CouponWrongCourse, reason(c.Check(base, now)))
	c.CourseID = &course
	require.NoError(t, c.Check(base, now))

	minimum := types.MustMoney("150")
	c.MinOrderTotal = &minimum
	assert.Equal(t, CouponBelowMinimum, reason(c.Check(base, now)))
	c.MinOrderTotal = nil

	c.MaxUsesPerUser = intPtr(1)
	use := base
	use.UserRedemptions = 1
	assert.Equal(t, CouponUserLimit, reason(c.Check(use, now)))

	fixed := NewCoupon("eur5", CouponFixed, decimal.NewFromInt(5))
	fixed.CurrencyCode = "EUR"
	assert.Equal(t, CouponWrongCurrency, reason(fixed.Check(base, now)))

	ended := now.Add(-time.Second)
	fixed.EndsAt = &ended
	assert.Equal(t, CouponEnded, reason(fixed.Check(base, now)))
}

func TestCoupon_Validate(t *testing.T) {
	ctx := context.Background()
	c := NewCoupon("x", CouponPercent, decimal.NewFromInt(120))
	assert.True(t, apperror.HasCode(c.Validate(ctx), apperror.CodeValidation))

	c = NewCoupon("x", CouponPercent, decimal.NewFromInt(20))
	c.AppliesTo = AppliesToCourse
	assert.Error(t, c.Validate(ctx))

	c = NewCoupon("", CouponFixed, decimal.NewFromInt(1))
	assert.Error(t, c.Validate(ctx))
}
