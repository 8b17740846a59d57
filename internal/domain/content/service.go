package content

import (
	"context"
	"time"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
	"lms/internal/core/tx"
	"lms/internal/domain"
)

// Reasons reported by ReleaseStatus.
const (
	ReasonReleased       = "released"
	ReasonPreview        = "preview"
	ReasonNotPublished   = "not_published"
	ReasonNotEnrolled    = "not_enrolled"
	ReasonAccessInactive = "access_inactive"
	ReasonScheduled      = "scheduled"
	ReasonPrerequisite   = "prerequisite_incomplete"
)

// ReleaseInfo explains whether a student may open a lesson.
type ReleaseInfo struct {
	LessonID             id.ID       `json:"lessonId"`
	UserID               id.ID       `json:"userId"`
	Released             bool        `json:"released"`
	Reason               string      `json:"reason"`
	ReleaseType          ReleaseType `json:"releaseType"`
	AvailableAt          *time.Time  `json:"availableAt,omitempty"`
	PrerequisiteLessonID *id.ID      `json:"prerequisiteLessonId,omitempty"`

	enrollmentID *id.ID
}

// Service manages lessons and evaluates release rules.
type Service struct {
	*domain.Service[*Lesson]
	courses     CourseLookup
	enrollments EnrollmentLookup
	completions CompletionRepository
}

// NewService creates the lesson service.
func NewService(repo Repository, completions CompletionRepository, courses CourseLookup, enrollments EnrollmentLookup, txm tx.Manager, clock func() time.Time) *Service {
	base := domain.NewService(domain.ServiceConfig[*Lesson]{
		Repo:       repo,
		TxManager:  txm,
		EntityName: "lesson",
		Clock:      clock,
	})
	svc := &Service{
		Service:     base,
		courses:     courses,
		enrollments: enrollments,
		completions: completions,
	}
	base.Hooks().OnBeforeCreate(svc.checkPrerequisite)
	base.Hooks().OnBeforeUpdate(svc.checkPrerequisite)
	return svc
}

// Create adds a lesson to a course the caller can see.
// The lesson takes the course branch when none is given.
func (s *Service) Create(ctx context.Context, l *Lesson) error {
	course, err := s.courses.GetByID(ctx, l.CourseID)
	if err != nil {
		return err
	}
	entity.InheritBranch(l, course)
	return s.Service.Create(ctx, l)
}

func (s *Service) checkPrerequisite(ctx context.Context, l *Lesson) error {
	if l.PrerequisiteLessonID == nil {
		return nil
	}
	prereq, err := s.Repo().GetByID(ctx, *l.PrerequisiteLessonID)
	if err != nil {
		return s.NormalizeGetErr(err, l.PrerequisiteLessonID.String())
	}
	if prereq.CourseID != l.CourseID {
		return apperror.NewFieldValidation("prerequisiteLessonId", "prerequisite must belong to the same course")
	}
	return nil
}

// Publish makes a lesson visible to enrolled students.
func (s *Service) Publish(ctx context.Context, lessonID id.ID) (*Lesson, error) {
	l, err := s.GetByID(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	l.Publish(s.Now())
	if err := s.Update(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// ListByCourse returns the lessons of a course ordered by position.
func (s *Service) ListByCourse(ctx context.Context, courseID id.ID, f domain.ListFilter) (domain.ListResult[*Lesson], error) {
	if _, err := s.courses.GetByID(ctx, courseID); err != nil {
		return domain.ListResult[*Lesson]{}, err
	}
	f.Where("course_id", courseID)
	if f.OrderBy == "" || f.OrderBy == "-created_at" {
		f.OrderBy = "position"
	}
	return s.List(ctx, f)
}

// ReleaseStatus evaluates the release rules of a lesson for one student.
func (s *Service) ReleaseStatus(ctx context.Context, lessonID, userID id.ID) (*ReleaseInfo, error) {
	l, err := s.GetByID(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	info := &ReleaseInfo{
		LessonID:             l.ID,
		UserID:               userID,
		ReleaseType:          l.ReleaseType,
		PrerequisiteLessonID: l.PrerequisiteLessonID,
	}

	if l.Status != StatusPublished {
		info.Reason = ReasonNotPublished
		return info, nil
	}

	enr, err := s.enrollments.CurrentEnrollment(ctx, userID, l.CourseID)
	switch {
	case apperror.IsNotFound(err):
		enr = nil
	case err != nil:
		return nil, err
	}

	if enr == nil {
		if l.IsPreview {
			info.Released, info.Reason = true, ReasonPreview
		} else {
			info.Reason = ReasonNotEnrolled
		}
		return info, nil
	}
	info.enrollmentID = &enr.ID
	info.AvailableAt = l.AvailableAt(&enr.EnrolledAt)

	if !enr.AccessActive {
		info.Reason = ReasonAccessInactive
		return info, nil
	}

	completed, err := s.completions.CompletedLessonIDs(ctx, enr.ID)
	if err != nil {
		return nil, err
	}
	if !l.IsReleased(&enr.EnrolledAt, completed, now) {
		info.Reason = ReasonScheduled
		if l.ReleaseType == ReleaseAfterLessonComplete {
			info.Reason = ReasonPrerequisite
		}
		return info, nil
	}

	info.Released, info.Reason = true, ReasonReleased
	return info, nil
}

// Complete marks a released lesson as finished by the student.
func (s *Service) Complete(ctx context.Context, lessonID, userID id.ID) (*Completion, error) {
	info, err := s.ReleaseStatus(ctx, lessonID, userID)
	if err != nil {
		return nil, err
	}
	if !info.Released || info.enrollmentID == nil {
		return nil, apperror.NewBusinessRule(apperror.CodeLessonLocked, "lesson is not available yet").
			WithDetail("reason", info.Reason).
			WithDetail("availableAt", info.AvailableAt)
	}

	c := &Completion{
		ID:           id.New(),
		EnrollmentID: *info.enrollmentID,
		LessonID:     lessonID,
		UserID:       userID,
		CompletedAt:  s.Now(),
	}
	if err := s.completions.Record(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
