package reviews

import (
	"context"

	"lms/internal/core/id"
	"lms/internal/domain"
	"lms/internal/domain/content"
	"lms/internal/domain/courses"
)

// Repository defines review storage.
type Repository interface {
	domain.Repository[*Review]

	// FindCounted returns the author's pending, approved or hidden review of a course.
	FindCounted(ctx context.Context, courseID, userID id.ID) (*Review, error)

	// RatingCounts counts the approved reviews of a course per rating.
	RatingCounts(ctx context.Context, courseID id.ID) (map[int]int64, error)
}

// CourseLookup loads a course the caller may see.
type CourseLookup interface {
	GetByID(ctx context.Context, courseID id.ID) (*courses.Course, error)
}

// EnrollmentLookup finds the author's enrollment in the course.
type EnrollmentLookup interface {
	CurrentEnrollment(ctx context.Context, userID, courseID id.ID) (*content.EnrollmentRef, error)
}
