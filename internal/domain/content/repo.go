package content

import (
	"context"
	"time"

	"lms/internal/core/id"
	"lms/internal/domain"
	"lms/internal/domain/courses"
)

// Repository defines lesson storage.
type Repository interface {
	domain.Repository[*Lesson]
}

// CompletionRepository stores lesson completions.
type CompletionRepository interface {
	// Record stores a completion; recording the same lesson twice keeps the first.
	Record(ctx context.Context, c *Completion) error

	// CompletedLessonIDs returns the set of lessons finished within an enrollment.
	CompletedLessonIDs(ctx context.Context, enrollmentID id.ID) (map[id.ID]bool, error)
}

// CourseLookup loads a course the caller may see.
type CourseLookup interface {
	GetByID(ctx context.Context, courseID id.ID) (*courses.Course, error)
}

// EnrollmentRef is the part of an enrollment the release rules need.
type EnrollmentRef struct {
	ID           id.ID
	EnrolledAt   time.Time
	AccessActive bool
}

// EnrollmentLookup finds a student's ongoing enrollment in a course.
// Implementations return a not found AppError when there is none.
type EnrollmentLookup interface {
	CurrentEnrollment(ctx context.Context, userID, courseID id.ID) (*EnrollmentRef, error)
}
