package enrollments

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
	"lms/internal/core/numerator"
	"lms/internal/core/security"
	"lms/internal/core/tx"
	"lms/internal/domain"
	"lms/internal/domain/content"
	"lms/pkg/logger"
)

const expiryBatchSize = 100

// EnrollInput describes a new enrollment.
type EnrollInput struct {
	UserID   id.ID
	CourseID id.ID
	Source   Source

	AccessType     AccessType
	AccessStartsAt *time.Time
	AccessEndsAt   *time.Time
	// AccessDays sizes a relative window from the start of access.
	AccessDays int

	PricePaid       decimal.Decimal
	CurrencyCode    string
	BillingOrderRef string
}

// AccessInfo is the answer to "may this student use the course right now".
type AccessInfo struct {
	EnrollmentID   id.ID      `json:"enrollmentId"`
	Status         Status     `json:"status"`
	Active         bool       `json:"active"`
	AccessStartsAt *time.Time `json:"accessStartsAt,omitempty"`
	AccessEndsAt   *time.Time `json:"accessEndsAt,omitempty"`
	CheckedAt      time.Time  `json:"checkedAt"`
}

// Service manages the enrollment lifecycle.
type Service struct {
	*domain.Service[*Enrollment]
	repo    Repository
	events  EventRepository
	courses CourseLookup
	numbers numerator.Generator
	flags   security.FeatureFlagProvider
}

var _ content.EnrollmentLookup = (*Service)(nil)

// NewService creates the enrollment service.
func NewService(repo Repository, events EventRepository, courses CourseLookup, numbers numerator.Generator, txm tx.Manager, clock func() time.Time) *Service {
	return &Service{
		Service: domain.NewService(domain.ServiceConfig[*Enrollment]{
			Repo:       repo,
			TxManager:  txm,
			EntityName: "enrollment",
			Clock:      clock,
		}),
		repo:    repo,
		events:  events,
		courses: courses,
		numbers: numbers,
	}
}

// SetFlags enables feature flag checks for self enrollment.
func (s *Service) SetFlags(flags security.FeatureFlagProvider) {
	s.flags = flags
}

// Enroll grants a user access to a course. The enrollment number is taken
// from the enrollment sequence in the same transaction as the insert, so a
// failed insert never burns a number.
func (s *Service) Enroll(ctx context.Context, in EnrollInput) (*Enrollment, error) {
	scope, err := domain.RequireScope(ctx)
	if err != nil {
		return nil, err
	}
	if !in.Source.Valid() {
		return nil, apperror.NewFieldValidation("source", "unknown enrollment source")
	}
	if err := s.checkSelfEnrollment(ctx, scope, in); err != nil {
		return nil, err
	}

	course, err := s.courses.GetByID(ctx, in.CourseID)
	if err != nil {
		return nil, err
	}
	if !course.IsPublished() && in.Source != SourceAdmin && in.Source != SourceImport {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "course is not open for enrollment").
			WithDetail("courseId", course.ID).
			WithDetail("status", course.Status)
	}

	now := s.Now()
	e := NewEnrollment(in.UserID, in.CourseID, in.Source, now)
	if err := applyWindow(e, in, now); err != nil {
		return nil, err
	}
	e.PricePaid = in.PricePaid
	e.BillingOrderRef = in.BillingOrderRef
	if in.CurrencyCode != "" {
		e.CurrencyCode = in.CurrencyCode
	}
	entity.InheritBranch(e, course)

	err = s.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.FindCurrent(ctx, in.UserID, in.CourseID)
		switch {
		case err == nil && current.Ongoing():
			return apperror.NewDuplicate("enrollment", "courseId", in.CourseID.String()).
				WithDetail("enrollmentId", current.ID)
		case err != nil && !apperror.IsNotFound(err):
			return err
		}

		security.InjectBranchOnWrite(scope, e, true)
		e.EnrollmentNo, err = numerator.Next(ctx, s.numbers, numerator.TypeEnrollment, scope.OrganizationID, e.BranchID)
		if err != nil {
			return err
		}
		if err := s.Service.Create(ctx, e); err != nil {
			return err
		}
		return s.record(ctx, e, EventCreated, "enrolled via "+string(e.Source))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "enrollment created",
		"enrollment_id", e.ID, "enrollment_no", e.EnrollmentNo, "user_id", e.UserID, "course_id", e.CourseID)
	return e, nil
}

func (s *Service) checkSelfEnrollment(ctx context.Context, scope *security.BranchScope, in EnrollInput) error {
	if in.Source != SourceSelf {
		return nil
	}
	if scope.UserID != in.UserID.String() {
		return apperror.NewForbidden("self enrollment is only possible for the caller")
	}
	if s.flags == nil {
		return nil
	}
	if !s.flags.IsEnabled(ctx, security.FlagSelfEnrollment) || s.flags.IsEnabled(ctx, security.FlagInviteOnlyCourses) {
		return apperror.NewForbidden("self enrollment is disabled for this branch")
	}
	return nil
}

func applyWindow(e *Enrollment, in EnrollInput, now time.Time) error {
	if in.AccessType != "" {
		e.AccessType = in.AccessType
	}
	e.AccessStartsAt = in.AccessStartsAt
	e.AccessEndsAt = in.AccessEndsAt

	switch e.AccessType {
	case AccessLifetime:
		e.AccessEndsAt = nil
	case AccessRelative:
		if in.AccessDays <= 0 {
			return apperror.NewFieldValidation("accessDays", "relative access needs a positive number of days")
		}
		start := now
		if e.AccessStartsAt != nil {
			start = *e.AccessStartsAt
		}
		end := start.Add(time.Duration(in.AccessDays) * 24 * time.Hour)
		e.AccessEndsAt = &end
	}
	return nil
}

// Cancel ends an enrollment.
func (s *Service) Cancel(ctx context.Context, enrollmentID id.ID, reason string) (*Enrollment, error) {
	actor := domain.ActorID(ctx)
	return s.transition(ctx, enrollmentID, EventCancelled, reason, func(e *Enrollment, now time.Time) error {
		return e.Cancel(actor, reason, now)
	})
}

// Refund marks an enrollment as refunded.
func (s *Service) Refund(ctx context.Context, enrollmentID id.ID) (*Enrollment, error) {
	return s.transition(ctx, enrollmentID, EventRefunded, "", (*Enrollment).Refund)
}

// Suspend pauses an active enrollment.
func (s *Service) Suspend(ctx context.Context, enrollmentID id.ID, reason string) (*Enrollment, error) {
	return s.transition(ctx, enrollmentID, EventSuspended, reason, func(e *Enrollment, now time.Time) error {
		return e.Suspend(reason, now)
	})
}

// Resume reactivates a suspended enrollment.
func (s *Service) Resume(ctx context.Context, enrollmentID id.ID) (*Enrollment, error) {
	return s.transition(ctx, enrollmentID, EventResumed, "", (*Enrollment).Resume)
}

// Complete marks the course as finished.
func (s *Service) Complete(ctx context.Context, enrollmentID id.ID) (*Enrollment, error) {
	return s.transition(ctx, enrollmentID, EventCompleted, "", (*Enrollment).Complete)
}

// Extend moves the end of the access window; nil grants lifetime access.
func (s *Service) Extend(ctx context.Context, enrollmentID id.ID, until *time.Time) (*Enrollment, error) {
	return s.transition(ctx, enrollmentID, EventExtended, "", func(e *Enrollment, now time.Time) error {
		return e.Extend(until, now)
	})
}

// Expire applies ExpireIfNeeded and persists the result.
// An enrollment that does not need to expire is returned unchanged.
func (s *Service) Expire(ctx context.Context, enrollmentID id.ID) (*Enrollment, bool, error) {
	var changed bool
	e, err := s.transition(ctx, enrollmentID, EventExpired, "access window closed", func(e *Enrollment, now time.Time) error {
		changed = e.ExpireIfNeeded(now)
		if !changed {
			return errUnchanged
		}
		return nil
	})
	return e, changed, err
}

// Access reports whether the enrollment currently grants access. A closed
// window is persisted as expired on the way.
func (s *Service) Access(ctx context.Context, enrollmentID id.ID) (*AccessInfo, error) {
	e, _, err := s.Expire(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	return &AccessInfo{
		EnrollmentID:   e.ID,
		Status:         e.Status,
		Active:         e.IsAccessActive(now),
		AccessStartsAt: e.AccessStartsAt,
		AccessEndsAt:   e.AccessEndsAt,
		CheckedAt:      now,
	}, nil
}

// Events returns the audit trail of an enrollment the caller may see.
func (s *Service) Events(ctx context.Context, enrollmentID id.ID) ([]*Event, error) {
	if _, err := s.GetByID(ctx, enrollmentID); err != nil {
		return nil, err
	}
	return s.events.ListByEnrollment(ctx, enrollmentID)
}

// CurrentEnrollment implements content.EnrollmentLookup.
func (s *Service) CurrentEnrollment(ctx context.Context, userID, courseID id.ID) (*content.EnrollmentRef, error) {
	e, err := s.repo.FindCurrent(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	return &content.EnrollmentRef{
		ID:           e.ID,
		EnrolledAt:   e.EnrolledAt,
		AccessActive: e.IsAccessActive(s.Now()),
	}, nil
}

// ExpireDue expires every enrollment whose window closed. It runs from the
// worker under the system scope and returns the number of rows changed.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	total := 0
	for {
		now := s.Now()
		due, err := s.repo.ListDueForExpiry(ctx, now, expiryBatchSize)
		if err != nil {
			return total, err
		}

		changed := 0
		for _, e := range due {
			if !e.ExpireIfNeeded(now) {
				continue
			}
			err := s.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
				e.Stamp(nil, now)
				if err := s.repo.Update(ctx, e); err != nil {
					return err
				}
				return s.record(ctx, e, EventExpired, "access window closed")
			})
			if err != nil {
				logger.Warn(ctx, "failed to expire enrollment", "enrollment_id", e.ID, "error", err)
				continue
			}
			changed++
		}
		total += changed

		if len(due) < expiryBatchSize || changed == 0 {
			return total, nil
		}
	}
}

// errUnchanged rolls back a transition that had nothing to do.
var errUnchanged = errors.New("enrollment unchanged")

func (s *Service) transition(ctx context.Context, enrollmentID id.ID, ev EventType, message string, apply func(*Enrollment, time.Time) error) (*Enrollment, error) {
	var out *Enrollment
	err := s.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		e, err := s.GetByID(ctx, enrollmentID)
		if err != nil {
			return err
		}
		out = e
		from := e.Status
		if err := apply(e, s.Now()); err != nil {
			return err
		}
		if err := s.Update(ctx, e); err != nil {
			return err
		}
		return s.record(ctx, e, ev, message, "from", from)
	})
	if errors.Is(err, errUnchanged) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, e *Enrollment, t EventType, message string, kv ...any) error {
	ev := NewEvent(e, t, domain.ActorID(ctx), message, s.Now())
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			ev.Data[k] = kv[i+1]
		}
	}
	return s.events.Append(ctx, ev)
}
