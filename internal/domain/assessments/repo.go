package assessments

import (
	"context"

	"lms/internal/core/id"
	"lms/internal/domain"
	"lms/internal/domain/content"
	"lms/internal/domain/courses"
)

// QuizRepository defines quiz storage.
type QuizRepository interface {
	domain.Repository[*Quiz]
}

// AttemptRepository defines attempt storage.
type AttemptRepository interface {
	domain.Repository[*Attempt]

	// CountByStudent counts every attempt of a quiz by one student, expired
	// ones included.
	CountByStudent(ctx context.Context, quizID, userID id.ID) (int, error)

	// FindStarted returns the student's unfinished attempt of a quiz.
	FindStarted(ctx context.Context, quizID, userID id.ID) (*Attempt, error)
}

// CourseLookup loads a course the caller may see.
type CourseLookup interface {
	GetByID(ctx context.Context, courseID id.ID) (*courses.Course, error)
}

// EnrollmentLookup finds the student's enrollment in the quiz's course.
type EnrollmentLookup interface {
	CurrentEnrollment(ctx context.Context, userID, courseID id.ID) (*content.EnrollmentRef, error)
}
