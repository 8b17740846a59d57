package courses

import (
	"context"

	"lms/internal/core/id"
	"lms/internal/domain"
)

// Repository defines the interface for course storage.
type Repository interface {
	domain.Repository[*Course]

	// FindBySlug looks a course up inside one branch (nil = shared courses).
	FindBySlug(ctx context.Context, branchID *id.ID, slug string) (*Course, error)
}

// PricingRepository stores one Pricing row per course.
type PricingRepository interface {
	domain.Repository[*Pricing]

	GetByCourse(ctx context.Context, courseID id.ID) (*Pricing, error)
}

// ModuleRepository stores course modules.
type ModuleRepository interface {
	domain.Repository[*Module]
}
