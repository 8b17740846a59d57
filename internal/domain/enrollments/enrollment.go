// Package enrollments grants students access to courses: enrollments,
// their audit trail and course access invites.
package enrollments

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
)

// Status is the lifecycle state of an enrollment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
	StatusSuspended Status = "suspended"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusCompleted, StatusExpired,
		StatusCancelled, StatusRefunded, StatusSuspended:
		return true
	}
	return false
}

// Final reports whether no further transition is possible.
func (s Status) Final() bool {
	return s == StatusCancelled || s == StatusRefunded
}

// Source records how the enrollment came to be.
type Source string

const (
	SourceSelf     Source = "self"
	SourcePurchase Source = "purchase"
	SourceInvite   Source = "invite"
	SourceAdmin    Source = "admin"
	SourceImport   Source = "import"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceSelf, SourcePurchase, SourceInvite, SourceAdmin, SourceImport:
		return true
	}
	return false
}

// Manual reports whether s is set by staff enrolling someone directly.
// Purchase and invite enrollments are only created by their own flows.
func (s Source) Manual() bool {
	return s == SourceAdmin || s == SourceImport
}

// AccessType is the shape of the access window.
type AccessType string

const (
	AccessLifetime AccessType = "lifetime"
	AccessFixed    AccessType = "fixed"
	AccessRelative AccessType = "relative"
)

// Enrollment grants one user access to one course.
type Enrollment struct {
	entity.BaseEntity
	entity.BranchOwned
	entity.CurrencyAware

	EnrollmentNo    string          `db:"enrollment_no" json:"enrollmentNo"`
	UserID          id.ID           `db:"user_id" json:"userId"`
	CourseID        id.ID           `db:"course_id" json:"courseId"`
	Status          Status          `db:"status" json:"status"`
	Source          Source          `db:"source" json:"source"`
	AccessType      AccessType      `db:"access_type" json:"accessType"`
	EnrolledAt      time.Time       `db:"enrolled_at" json:"enrolledAt"`
	AccessStartsAt  *time.Time      `db:"access_starts_at" json:"accessStartsAt,omitempty"`
	AccessEndsAt    *time.Time      `db:"access_ends_at" json:"accessEndsAt,omitempty"`
	CompletedAt     *time.Time      `db:"completed_at" json:"completedAt,omitempty"`
	BillingOrderRef string          `db:"billing_order_ref" json:"billingOrderRef,omitempty"`
	PricePaid       decimal.Decimal `db:"price_paid" json:"pricePaid"`
	CancelledAt     *time.Time      `db:"cancelled_at" json:"cancelledAt,omitempty"`
	CancelledBy     *id.ID          `db:"cancelled_by" json:"cancelledBy,omitempty"`
	CancelReason    string          `db:"cancel_reason" json:"cancelReason,omitempty"`
	SuspendedAt     *time.Time      `db:"suspended_at" json:"suspendedAt,omitempty"`
	SuspendReason   string          `db:"suspend_reason" json:"suspendReason,omitempty"`
	Meta            entity.Meta     `db:"meta" json:"meta,omitempty"`
}

// NewEnrollment creates an active lifetime enrollment starting at now.
func NewEnrollment(userID, courseID id.ID, source Source, now time.Time) *Enrollment {
	return &Enrollment{
		BaseEntity:    entity.NewBaseEntity(),
		CurrencyAware: entity.CurrencyAware{CurrencyCode: "USD"},
		UserID:        userID,
		CourseID:      courseID,
		Status:        StatusActive,
		Source:        source,
		AccessType:    AccessLifetime,
		EnrolledAt:    now,
	}
}

func (e *Enrollment) EntityName() string { return "enrollment" }

// Validate implements entity.Validatable.
func (e *Enrollment) Validate(ctx context.Context) error {
	if id.IsNil(e.UserID) {
		return apperror.NewFieldValidation("userId", "user is required")
	}
	if id.IsNil(e.CourseID) {
		return apperror.NewFieldValidation("courseId", "course is required")
	}
	if !e.Status.Valid() {
		return apperror.NewFieldValidation("status", "unknown enrollment status")
	}
	if e.AccessStartsAt != nil && e.AccessEndsAt != nil && e.AccessEndsAt.Before(*e.AccessStartsAt) {
		return apperror.NewFieldValidation("accessEndsAt", "access ends before it starts")
	}
	if e.AccessType == AccessFixed && e.AccessEndsAt == nil {
		return apperror.NewFieldValidation("accessEndsAt", "fixed access needs an end date")
	}
	if e.PricePaid.IsNegative() {
		return apperror.NewFieldValidation("pricePaid", "price paid cannot be negative")
	}
	return e.ValidateCurrency(ctx)
}

// IsAccessActive reports whether the student may consume the course at now.
// Both window bounds are inclusive; a missing bound is open.
func (e *Enrollment) IsAccessActive(now time.Time) bool {
	if e.Status != StatusActive && e.Status != StatusCompleted {
		return false
	}
	if e.AccessStartsAt != nil && now.Before(*e.AccessStartsAt) {
		return false
	}
	if e.AccessEndsAt != nil && now.After(*e.AccessEndsAt) {
		return false
	}
	return true
}

// ExpireIfNeeded moves the enrollment to expired once its window closed.
// Cancelled and refunded enrollments are left alone. The result is true
// only when the status actually changed, so repeated calls are harmless.
func (e *Enrollment) ExpireIfNeeded(now time.Time) bool {
	if e.Status.Final() || e.Status == StatusExpired {
		return false
	}
	if e.AccessEndsAt == nil || !now.After(*e.AccessEndsAt) {
		return false
	}
	e.Status = StatusExpired
	return true
}

// Cancel ends the enrollment on request of by.
func (e *Enrollment) Cancel(by *id.ID, reason string, now time.Time) error {
	if e.Status.Final() {
		return apperror.NewInvalidTransition("enrollment", string(e.Status), string(StatusCancelled))
	}
	e.Status = StatusCancelled
	e.CancelledAt = &now
	e.CancelledBy = by
	e.CancelReason = reason
	return nil
}

// Refund marks a purchased enrollment as refunded.
func (e *Enrollment) Refund(now time.Time) error {
	if e.Status.Final() {
		return apperror.NewInvalidTransition("enrollment", string(e.Status), string(StatusRefunded))
	}
	e.Status = StatusRefunded
	e.CancelledAt = &now
	return nil
}

// Suspend pauses an active enrollment.
func (e *Enrollment) Suspend(reason string, now time.Time) error {
	if e.Status != StatusActive {
		return apperror.NewInvalidTransition("enrollment", string(e.Status), string(StatusSuspended))
	}
	e.Status = StatusSuspended
	e.SuspendedAt = &now
	e.SuspendReason = reason
	return nil
}

// Resume reactivates a suspended enrollment. If its window closed in the
// meantime it expires instead.
func (e *Enrollment) Resume(now time.Time) error {
	if e.Status != StatusSuspended {
		return apperror.NewInvalidTransition("enrollment", string(e.Status), string(StatusActive))
	}
	e.Status = StatusActive
	e.SuspendedAt = nil
	e.SuspendReason = ""
	e.ExpireIfNeeded(now)
	return nil
}

// Complete records that the student finished the course. Access continues.
func (e *Enrollment) Complete(now time.Time) error {
	if e.Status == StatusCompleted {
		return nil
	}
	if e.Status != StatusActive {
		return apperror.NewInvalidTransition("enrollment", string(e.Status), string(StatusCompleted))
	}
	e.Status = StatusCompleted
	e.CompletedAt = &now
	return nil
}

// Extend moves the end of the access window. A nil until grants lifetime
// access. An expired enrollment whose new window is open again is reactivated.
func (e *Enrollment) Extend(until *time.Time, now time.Time) error {
	if e.Status.Final() {
		return apperror.NewInvalidTransition("enrollment", string(e.Status), string(StatusActive))
	}
	if until != nil && e.AccessStartsAt != nil && until.Before(*e.AccessStartsAt) {
		return apperror.NewFieldValidation("accessEndsAt", "access ends before it starts")
	}
	e.AccessEndsAt = until
	if until == nil {
		e.AccessType = AccessLifetime
	} else if e.AccessType == AccessLifetime {
		e.AccessType = AccessFixed
	}
	if e.Status == StatusExpired && (until == nil || !now.After(*until)) {
		e.Status = StatusActive
		if e.CompletedAt != nil {
			e.Status = StatusCompleted
		}
	}
	return nil
}

// Ongoing reports whether the enrollment blocks a second one for the same course.
func (e *Enrollment) Ongoing() bool {
	return e.Status == StatusPending || e.Status == StatusActive || e.Status == StatusSuspended
}
