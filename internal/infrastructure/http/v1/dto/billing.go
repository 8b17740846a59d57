package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"lms/internal/core/id"
	"lms/internal/domain/billing"
)

// CreateCouponRequest is the request body for creating a coupon.
type CreateCouponRequest struct {
	Code           string           `json:"code" binding:"required"`
	Name           string           `json:"name"`
	CouponType     string           `json:"couponType" binding:"required,oneof=percent fixed"`
	Value          decimal.Decimal  `json:"value"`
	CurrencyCode   string           `json:"currencyCode"`
	CourseID       *id.ID           `json:"courseId"`
	MaxUsesTotal   *int             `json:"maxUsesTotal"`
	MaxUsesPerUser *int             `json:"maxUsesPerUser"`
	MinOrderTotal  *decimal.Decimal `json:"minOrderTotal"`
	StartsAt       *time.Time       `json:"startsAt"`
	EndsAt         *time.Time       `json:"endsAt"`
}

// ToEntity converts DTO to domain entity.
func (r CreateCouponRequest) ToEntity() *billing.Coupon {
	c := billing.NewCoupon(r.Code, billing.CouponType(r.CouponType), r.Value)
	c.Name = r.Name
	if r.CurrencyCode != "" {
		c.CurrencyCode = r.CurrencyCode
	}
	if r.CourseID != nil {
		c.AppliesTo = billing.AppliesToCourse
		c.CourseID = r.CourseID
	}
	c.MaxUsesTotal = r.MaxUsesTotal
	c.MaxUsesPerUser = r.MaxUsesPerUser
	c.MinOrderTotal = r.MinOrderTotal
	c.StartsAt = r.StartsAt
	c.EndsAt = r.EndsAt
	return c
}

// UpdateCouponRequest is the request body for updating a coupon.
// The code and type are fixed once issued.
type UpdateCouponRequest struct {
	Name           *string          `json:"name"`
	Value          *decimal.Decimal `json:"value"`
	MaxUsesTotal   *int             `json:"maxUsesTotal"`
	MaxUsesPerUser *int             `json:"maxUsesPerUser"`
	MinOrderTotal  *decimal.Decimal `json:"minOrderTotal"`
	StartsAt       *time.Time       `json:"startsAt"`
	EndsAt         *time.Time       `json:"endsAt"`
	Version        int              `json:"version" binding:"required,min=1"`
}

// ApplyTo applies the non-nil fields.
func (r UpdateCouponRequest) ApplyTo(c *billing.Coupon) {
	setString(&c.Name, r.Name)
	if r.Value != nil {
		c.Value = *r.Value
	}
	if r.MaxUsesTotal != nil {
		c.MaxUsesTotal = r.MaxUsesTotal
	}
	if r.MaxUsesPerUser != nil {
		c.MaxUsesPerUser = r.MaxUsesPerUser
	}
	if r.MinOrderTotal != nil {
		c.MinOrderTotal = r.MinOrderTotal
	}
	if r.StartsAt != nil {
		c.StartsAt = r.StartsAt
	}
	if r.EndsAt != nil {
		c.EndsAt = r.EndsAt
	}
	c.Version = r.Version
}

// ValidateCouponRequest checks a code against a course.
type ValidateCouponRequest struct {
	Code     string `json:"code" binding:"required"`
	CourseID id.ID  `json:"courseId" binding:"required"`
}

// CheckoutRequest opens an order for one course.
type CheckoutRequest struct {
	CourseID      id.ID  `json:"courseId" binding:"required"`
	UserID        *id.ID `json:"userId"`
	CouponCode    string `json:"couponCode"`
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail" binding:"omitempty,email"`
}

// ToInput converts to the service input.
func (r CheckoutRequest) ToInput() billing.CheckoutInput {
	return billing.CheckoutInput{
		CourseID:      r.CourseID,
		UserID:        r.UserID,
		CouponCode:    r.CouponCode,
		CustomerName:  r.CustomerName,
		CustomerEmail: r.CustomerEmail,
	}
}

// PayResponse returns the paid order and the enrollment it created.
type PayResponse struct {
	Order      *billing.Order `json:"order"`
	Enrollment any            `json:"enrollment,omitempty"`
}
