package content

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
	"lms/internal/domain"
)

// ProgressStatus summarizes how far a student is through a course.
type ProgressStatus string

const (
	ProgressNotStarted ProgressStatus = "not_started"
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressCompleted  ProgressStatus = "completed"
)

// Progress is derived from the lesson completions on every read.
type Progress struct {
	CourseID         id.ID           `json:"courseId"`
	UserID           id.ID           `json:"userId"`
	EnrollmentID     id.ID           `json:"enrollmentId"`
	Status           ProgressStatus  `json:"status"`
	TotalLessons     int             `json:"totalLessons"`
	CompletedLessons int             `json:"completedLessons"`
	Percent          decimal.Decimal `json:"percent"`
	CalculatedAt     time.Time       `json:"calculatedAt"`
}

const progressPageSize = 500

// NewProgress computes the status and percentage. Completions of lessons that
// are no longer published do not count.
func NewProgress(published []id.ID, completed map[id.ID]bool) (status ProgressStatus, done int, percent decimal.Decimal) {
	for _, lessonID := range published {
		if completed[lessonID] {
			done++
		}
	}
	total := len(published)
	switch {
	case total == 0 || done == 0:
		status, percent = ProgressNotStarted, decimal.Zero
	case done == total:
		status, percent = ProgressCompleted, decimal.NewFromInt(100)
	default:
		status = ProgressInProgress
		percent = decimal.NewFromInt(int64(done)).Mul(decimal.NewFromInt(100)).
			DivRound(decimal.NewFromInt(int64(total)), 2)
	}
	return status, done, percent
}

// Progress reports the student's progress through a course they are
// enrolled in.
func (s *Service) Progress(ctx context.Context, courseID, userID id.ID) (*Progress, error) {
	if _, err := s.courses.GetByID(ctx, courseID); err != nil {
		return nil, err
	}
	enr, err := s.enrollments.CurrentEnrollment(ctx, userID, courseID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("enrollment", courseID.String()).WithDetail("userId", userID)
		}
		return nil, err
	}

	published, err := s.publishedLessonIDs(ctx, courseID)
	if err != nil {
		return nil, err
	}
	completed, err := s.completions.CompletedLessonIDs(ctx, enr.ID)
	if err != nil {
		return nil, err
	}

	p := &Progress{
		CourseID:     courseID,
		UserID:       userID,
		EnrollmentID: enr.ID,
		TotalLessons: len(published),
		CalculatedAt: s.Now(),
	}
	p.Status, p.CompletedLessons, p.Percent = NewProgress(published, completed)
	return p, nil
}

func (s *Service) publishedLessonIDs(ctx context.Context, courseID id.ID) ([]id.ID, error) {
	var out []id.ID
	f := domain.ListFilter{Limit: progressPageSize, OrderBy: "position"}
	f.Where("course_id", courseID)
	f.Where("status", StatusPublished)
	for {
		page, err := s.List(ctx, f)
		if err != nil {
			return nil, err
		}
		for _, l := range page.Items {
			out = append(out, l.ID)
		}
		if len(page.Items) < f.Limit {
			return out, nil
		}
		f.Offset += f.Limit
	}
}
