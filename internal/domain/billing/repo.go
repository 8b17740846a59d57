package billing

import (
	"context"

	"lms/internal/core/id"
	"lms/internal/domain"
	"lms/internal/domain/courses"
	"lms/internal/domain/enrollments"
)

// CouponRepository defines coupon storage.
type CouponRepository interface {
	domain.Repository[*Coupon]

	// FindByCode looks a normalized code up within a branch.
	FindByCode(ctx context.Context, branchID *id.ID, code string) (*Coupon, error)

	CountRedemptions(ctx context.Context, couponID, userID id.ID) (int, error)
	AddRedemption(ctx context.Context, r *Redemption) error
}

// OrderRepository defines order storage.
type OrderRepository interface {
	domain.Repository[*Order]
}

// PriceLookup returns a course the caller may see with its pricing.
type PriceLookup interface {
	PriceOf(ctx context.Context, courseID id.ID) (*courses.Course, *courses.Pricing, error)
}

// Enroller grants and revokes the access an order pays for.
type Enroller interface {
	Enroll(ctx context.Context, in enrollments.EnrollInput) (*enrollments.Enrollment, error)
	Refund(ctx context.Context, enrollmentID id.ID) (*enrollments.Enrollment, error)
}
