// Package billing turns course prices into orders: coupons, checkout and payment.
package billing

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
	"lms/internal/core/types"
)

// CouponType selects how Value is interpreted.
type CouponType string

const (
	CouponPercent CouponType = "percent"
	CouponFixed   CouponType = "fixed"
)

// AppliesTo limits a coupon to one course or leaves it open.
type AppliesTo string

const (
	AppliesToAll    AppliesTo = "all"
	AppliesToCourse AppliesTo = "course"
)

// Reasons a coupon is refused.
const (
	CouponInactive      = "inactive"
	CouponNotStarted    = "not_started"
	CouponEnded         = "ended"
	CouponExhausted     = "exhausted"
	CouponWrongCourse   = "wrong_course"
	CouponWrongCurrency = "wrong_currency"
	CouponBelowMinimum  = "below_minimum"
	CouponUserLimit     = "user_limit"
	CouponUnknown       = "unknown_code"
)

// Coupon is a discount code of a branch.
type Coupon struct {
	entity.BaseEntity
	entity.BranchOwned
	entity.CurrencyAware

	Code           string           `db:"code" json:"code"`
	Name           string           `db:"name" json:"name"`
	CouponType     CouponType       `db:"coupon_type" json:"couponType"`
	Value          decimal.Decimal  `db:"value" json:"value"`
	AppliesTo      AppliesTo        `db:"applies_to" json:"appliesTo"`
	CourseID       *id.ID           `db:"course_id" json:"courseId,omitempty"`
	MaxUsesTotal   *int             `db:"max_uses_total" json:"maxUsesTotal,omitempty"`
	MaxUsesPerUser *int             `db:"max_uses_per_user" json:"maxUsesPerUser,omitempty"`
	UsedCount      int              `db:"used_count" json:"usedCount"`
	MinOrderTotal  *decimal.Decimal `db:"min_order_total" json:"minOrderTotal,omitempty"`
	StartsAt       *time.Time       `db:"starts_at" json:"startsAt,omitempty"`
	EndsAt         *time.Time       `db:"ends_at" json:"endsAt,omitempty"`
}

// NewCoupon creates an open coupon valid for every course.
func NewCoupon(code string, t CouponType, value decimal.Decimal) *Coupon {
	return &Coupon{
		BaseEntity:    entity.NewBaseEntity(),
		CurrencyAware: entity.CurrencyAware{CurrencyCode: "USD"},
		Code:          NormalizeCode(code),
		CouponType:    t,
		Value:         value,
		AppliesTo:     AppliesToAll,
	}
}

// NormalizeCode is the stored form of a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (c *Coupon) EntityName() string { return "coupon" }

// Validate implements entity.Validatable.
func (c *Coupon) Validate(ctx context.Context) error {
	if c.Code == "" {
		return apperror.NewFieldValidation("code", "code is required")
	}
	switch c.CouponType {
	case CouponPercent:
		if c.Value.IsNegative() || c.Value.GreaterThan(decimal.NewFromInt(100)) {
			return apperror.NewFieldValidation("value", "percent must be between 0 and 100")
		}
	case CouponFixed:
		if c.Value.IsNegative() {
			return apperror.NewFieldValidation("value", "amount cannot be negative")
		}
	default:
		return apperror.NewFieldValidation("couponType", "unknown coupon type")
	}
	if c.AppliesTo == AppliesToCourse && c.CourseID == nil {
		return apperror.NewFieldValidation("courseId", "course coupons need a course")
	}
	if c.StartsAt != nil && c.EndsAt != nil && c.EndsAt.Before(*c.StartsAt) {
		return apperror.NewFieldValidation("endsAt", "coupon ends before it starts")
	}
	return c.ValidateCurrency(ctx)
}

// IsValid reports whether the coupon can be redeemed at now. The window is
// inclusive at both ends and the usage cap counts every redemption so far.
func (c *Coupon) IsValid(now time.Time) bool {
	return c.invalidReason(now) == ""
}

func (c *Coupon) invalidReason(now time.Time) string {
	switch {
	case !c.Active:
		return CouponInactive
	case c.StartsAt != nil && now.Before(*c.StartsAt):
		return CouponNotStarted
	case c.EndsAt != nil && now.After(*c.EndsAt):
		return CouponEnded
	case c.MaxUsesTotal != nil && c.UsedCount >= *c.MaxUsesTotal:
		return CouponExhausted
	}
	return ""
}

// AppliesToCourse reports whether the coupon may discount courseID.
func (c *Coupon) AppliesToCourse(courseID id.ID) bool {
	return c.AppliesTo != AppliesToCourse || (c.CourseID != nil && *c.CourseID == courseID)
}

// Discount returns the reduction of amount, never more than amount itself.
func (c *Coupon) Discount(amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	switch c.CouponType {
	case CouponPercent:
		return types.MinMoney(types.Percent(amount, c.Value), amount)
	case CouponFixed:
		return types.MinMoney(c.Value, amount)
	}
	return decimal.Zero
}

// CouponUse is what a coupon is checked against at checkout.
type CouponUse struct {
	CourseID     id.ID
	Subtotal     decimal.Decimal
	CurrencyCode string
	// UserRedemptions counts the buyer's earlier redemptions of this coupon.
	UserRedemptions int
}

// Check returns a COUPON_INVALID error naming the first rule u breaks.
func (c *Coupon) Check(u CouponUse, now time.Time) error {
	reason := c.invalidReason(now)
	switch {
	case reason != "":
	case !c.AppliesToCourse(u.CourseID):
		reason = CouponWrongCourse
	case c.CouponType == CouponFixed && u.CurrencyCode != "" && c.CurrencyCode != u.CurrencyCode:
		reason = CouponWrongCurrency
	case c.MinOrderTotal != nil && u.Subtotal.LessThan(*c.MinOrderTotal):
		reason = CouponBelowMinimum
	case c.MaxUsesPerUser != nil && u.UserRedemptions >= *c.MaxUsesPerUser:
		reason = CouponUserLimit
	default:
		return nil
	}
	return InvalidCoupon(c.Code, reason)
}

// Redeem counts one use.
func (c *Coupon) Redeem() {
	c.UsedCount++
}

// InvalidCoupon builds the COUPON_INVALID error.
func InvalidCoupon(code, reason string) *apperror.AppError {
	return apperror.NewBusinessRule(apperror.CodeCouponInvalid, "coupon cannot be applied").
		WithDetail("code", code).
		WithDetail("reason", reason)
}

// Redemption links a used coupon to the order it discounted.
type Redemption struct {
	ID        id.ID     `db:"id" json:"id"`
	CouponID  id.ID     `db:"coupon_id" json:"couponId"`
	UserID    id.ID     `db:"user_id" json:"userId"`
	OrderID   id.ID     `db:"order_id" json:"orderId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
