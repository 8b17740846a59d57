package enrollments

import (
	"context"
	"time"

	"lms/internal/core/id"
	"lms/internal/domain"
	"lms/internal/domain/courses"
)

// Repository defines enrollment storage.
type Repository interface {
	domain.Repository[*Enrollment]

	// FindCurrent returns the latest enrollment of user in course that was
	// neither cancelled nor refunded. Not found when there is none.
	FindCurrent(ctx context.Context, userID, courseID id.ID) (*Enrollment, error)

	// ListDueForExpiry returns up to limit enrollments whose access window
	// closed before now and whose status still allows expiry.
	ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]*Enrollment, error)
}

// InviteRepository defines access invite storage.
type InviteRepository interface {
	domain.Repository[*AccessInvite]

	FindByToken(ctx context.Context, token string) (*AccessInvite, error)

	// ExpireDue flips every pending invite past its expiry and returns the count.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// CourseLookup loads a course the caller may see.
type CourseLookup interface {
	GetByID(ctx context.Context, courseID id.ID) (*courses.Course, error)
}
