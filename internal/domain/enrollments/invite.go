package enrollments

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
)

// InviteStatus is the state of a course access invite.
type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteExpired  InviteStatus = "expired"
	InviteRevoked  InviteStatus = "revoked"
)

// DefaultInviteTTL is how long an invite link stays usable.
const DefaultInviteTTL = 7 * 24 * time.Hour

// AccessInvite lets the holder of the token enroll into a course.
type AccessInvite struct {
	entity.BaseEntity
	entity.BranchOwned

	CourseID   id.ID        `db:"course_id" json:"courseId"`
	Email      string       `db:"email" json:"email"`
	Token      string       `db:"token" json:"-"`
	Status     InviteStatus `db:"status" json:"status"`
	ExpiresAt  time.Time    `db:"expires_at" json:"expiresAt"`
	AcceptedAt *time.Time   `db:"accepted_at" json:"acceptedAt,omitempty"`
	AcceptedBy *id.ID       `db:"accepted_by" json:"acceptedBy,omitempty"`
	InvitedBy  *id.ID       `db:"invited_by" json:"invitedBy,omitempty"`
	Meta       entity.Meta  `db:"meta" json:"meta,omitempty"`
}

// NewAccessInvite creates a pending invite valid for ttl.
func NewAccessInvite(courseID id.ID, email string, ttl time.Duration, now time.Time) *AccessInvite {
	if ttl <= 0 {
		ttl = DefaultInviteTTL
	}
	return &AccessInvite{
		BaseEntity: entity.NewBaseEntity(),
		CourseID:   courseID,
		Email:      strings.ToLower(strings.TrimSpace(email)),
		Token:      id.NewToken(),
		Status:     InvitePending,
		ExpiresAt:  now.Add(ttl),
	}
}

func (i *AccessInvite) EntityName() string { return "course_access_invite" }

// Validate implements entity.Validatable.
func (i *AccessInvite) Validate(ctx context.Context) error {
	if id.IsNil(i.CourseID) {
		return apperror.NewFieldValidation("courseId", "course is required")
	}
	if _, err := mail.ParseAddress(i.Email); err != nil {
		return apperror.NewFieldValidation("email", "invalid email address")
	}
	if i.Token == "" {
		return apperror.NewFieldValidation("token", "token is required")
	}
	return nil
}

// IsExpired reports whether the invite can no longer be used at now.
// The expiry instant itself already counts as expired.
func (i *AccessInvite) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// ExpireIfNeeded flips a pending invite to expired. It reports a change.
func (i *AccessInvite) ExpireIfNeeded(now time.Time) bool {
	if i.Status != InvitePending || !i.IsExpired(now) {
		return false
	}
	i.Status = InviteExpired
	return true
}

// Accept consumes the invite for user. An invite found expired is marked
// as such and an INVITE_EXPIRED error returned; callers persist the change.
func (i *AccessInvite) Accept(user id.ID, now time.Time) error {
	if i.ExpireIfNeeded(now) || i.Status == InviteExpired {
		return apperror.NewBusinessRule(apperror.CodeInviteExpired, "invite has expired").
			WithDetail("expiresAt", i.ExpiresAt)
	}
	if i.Status != InvitePending {
		return apperror.NewInvalidTransition("invite", string(i.Status), string(InviteAccepted))
	}
	i.Status = InviteAccepted
	i.AcceptedAt = &now
	i.AcceptedBy = &user
	return nil
}

// Revoke withdraws a pending invite.
func (i *AccessInvite) Revoke() error {
	if i.Status != InvitePending {
		return apperror.NewInvalidTransition("invite", string(i.Status), string(InviteRevoked))
	}
	i.Status = InviteRevoked
	return nil
}
