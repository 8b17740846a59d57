package certificates

import (
	"context"
	"time"

	"lms/internal/core/id"
	"lms/internal/domain"
	"lms/internal/domain/courses"
	"lms/internal/domain/enrollments"
)

// Repository defines certificate storage.
type Repository interface {
	domain.Repository[*Certificate]

	FindByVerificationCode(ctx context.Context, code string) (*Certificate, error)

	// FindValid returns the issued or reissued certificate of an enrollment.
	FindValid(ctx context.Context, enrollmentID id.ID) (*Certificate, error)

	// HasRevoked reports whether the enrollment had a certificate revoked before.
	HasRevoked(ctx context.Context, enrollmentID id.ID) (bool, error)
}

// ObjectStore keeps rendered documents (MinIO in production).
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// EnrollmentLookup loads an enrollment the caller may see.
type EnrollmentLookup interface {
	GetByID(ctx context.Context, enrollmentID id.ID) (*enrollments.Enrollment, error)
}

// CourseLookup loads a course the caller may see.
type CourseLookup interface {
	GetByID(ctx context.Context, courseID id.ID) (*courses.Course, error)
}

// StudentDirectory resolves the name printed on a certificate.
type StudentDirectory interface {
	DisplayName(ctx context.Context, userID id.ID) (string, error)
}
