package dto

import (
	"time"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
	"lms/internal/domain/enrollments"
)

// EnrollRequest enrolls a user in a course. UserID defaults to the caller.
type EnrollRequest struct {
	UserID         *id.ID     `json:"userId"`
	CourseID       id.ID      `json:"courseId" binding:"required"`
	Source         string     `json:"source"`
	AccessType     string     `json:"accessType"`
	AccessStartsAt *time.Time `json:"accessStartsAt"`
	AccessEndsAt   *time.Time `json:"accessEndsAt"`
	AccessDays     int        `json:"accessDays" binding:"min=0"`
}

// ToInput converts to the service input. A request naming another user
// defaults to an admin enrollment; purchase and invite sources are reserved
// for checkout and invite acceptance and are rejected here.
func (r EnrollRequest) ToInput(caller id.ID) (enrollments.EnrollInput, error) {
	in := enrollments.EnrollInput{
		UserID:         caller,
		CourseID:       r.CourseID,
		Source:         enrollments.SourceSelf,
		AccessType:     enrollments.AccessType(r.AccessType),
		AccessStartsAt: r.AccessStartsAt,
		AccessEndsAt:   r.AccessEndsAt,
		AccessDays:     r.AccessDays,
	}
	if r.UserID != nil && *r.UserID != caller {
		in.UserID = *r.UserID
		in.Source = enrollments.SourceAdmin
	}
	if r.Source == "" {
		return in, nil
	}
	src := enrollments.Source(r.Source)
	switch {
	case src == enrollments.SourceSelf && in.UserID == caller:
	case src.Manual():
		in.Source = src
	default:
		return in, apperror.NewFieldValidation("source", "must be one of: self, admin, import")
	}
	return in, nil
}

// ExtendRequest moves the end of the access window; null means lifetime.
type ExtendRequest struct {
	Until *time.Time `json:"until"`
}

// ExpireResponse reports whether the enrollment moved to expired.
type ExpireResponse struct {
	Enrollment *enrollments.Enrollment `json:"enrollment"`
	Expired    bool                    `json:"expired"`
}

// CourseInviteRequest invites an email address to a course.
type CourseInviteRequest struct {
	CourseID id.ID  `json:"courseId" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	TTLHours int    `json:"ttlHours" binding:"min=0"`
}

// TTL returns the requested lifetime; zero selects the service default.
func (r CourseInviteRequest) TTL() time.Duration {
	return time.Duration(r.TTLHours) * time.Hour
}

// CourseInviteResponse exposes the invite token once, to the inviter.
type CourseInviteResponse struct {
	*enrollments.AccessInvite
	Token string `json:"token"`
}
