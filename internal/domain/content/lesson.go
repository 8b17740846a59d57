// Package content provides lessons and their release rules.
package content

import (
	"context"
	"strings"
	"time"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
	"lms/internal/domain/courses"
)

// LessonType is the kind of material a lesson holds.
type LessonType string

const (
	LessonVideo      LessonType = "video"
	LessonText       LessonType = "text"
	LessonQuiz       LessonType = "quiz"
	LessonAssignment LessonType = "assignment"
	LessonLive       LessonType = "live"
)

// Status is the editorial state of a lesson.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// ReleaseType decides when an enrolled student can open a lesson.
type ReleaseType string

const (
	ReleaseImmediate           ReleaseType = "immediate"
	ReleaseOnDate              ReleaseType = "on_date"
	ReleaseAfterEnrollDays     ReleaseType = "after_enroll_days"
	ReleaseAfterLessonComplete ReleaseType = "after_lesson_complete"
)

// Lesson belongs to a course and inherits its branch.
type Lesson struct {
	entity.BaseEntity
	entity.BranchOwned

	CourseID             id.ID       `db:"course_id" json:"courseId"`
	ModuleID             *id.ID      `db:"module_id" json:"moduleId,omitempty"`
	Title                string      `db:"title" json:"title"`
	Slug                 string      `db:"slug" json:"slug"`
	LessonType           LessonType  `db:"lesson_type" json:"lessonType"`
	Status               Status      `db:"status" json:"status"`
	Position             int         `db:"position" json:"position"`
	ReleaseType          ReleaseType `db:"release_type" json:"releaseType"`
	ReleaseAt            *time.Time  `db:"release_at" json:"releaseAt,omitempty"`
	ReleaseAfterDays     *int        `db:"release_after_days" json:"releaseAfterDays,omitempty"`
	PrerequisiteLessonID *id.ID      `db:"prerequisite_lesson_id" json:"prerequisiteLessonId,omitempty"`
	PublishedAt          *time.Time  `db:"published_at" json:"publishedAt,omitempty"`
	IsPreview            bool        `db:"is_preview" json:"isPreview"`
	DurationMinutes      int         `db:"duration_minutes" json:"durationMinutes"`
	ContentURL           string      `db:"content_url" json:"contentUrl"`
}

// NewLesson creates a draft lesson released immediately.
func NewLesson(courseID id.ID, title string) *Lesson {
	title = strings.TrimSpace(title)
	return &Lesson{
		BaseEntity:  entity.NewBaseEntity(),
		CourseID:    courseID,
		Title:       title,
		Slug:        courses.Slugify(title),
		LessonType:  LessonText,
		Status:      StatusDraft,
		ReleaseType: ReleaseImmediate,
	}
}

func (l *Lesson) EntityName() string { return "lesson" }

// Validate implements entity.Validatable.
func (l *Lesson) Validate(ctx context.Context) error {
	if id.IsNil(l.CourseID) {
		return apperror.NewFieldValidation("courseId", "course is required")
	}
	if l.Title == "" {
		return apperror.NewFieldValidation("title", "title is required")
	}
	if l.Slug == "" {
		return apperror.NewFieldValidation("slug", "slug is required")
	}
	switch l.LessonType {
	case LessonVideo, LessonText, LessonQuiz, LessonAssignment, LessonLive:
	default:
		return apperror.NewFieldValidation("lessonType", "unknown lesson type")
	}
	if l.ReleaseAfterDays != nil && *l.ReleaseAfterDays < 0 {
		return apperror.NewFieldValidation("releaseAfterDays", "days cannot be negative")
	}
	if l.PrerequisiteLessonID != nil && *l.PrerequisiteLessonID == l.ID {
		return apperror.NewFieldValidation("prerequisiteLessonId", "a lesson cannot require itself")
	}
	return nil
}

// Publish makes the lesson visible to enrolled students.
func (l *Lesson) Publish(now time.Time) {
	if l.Status == StatusPublished {
		return
	}
	l.Status = StatusPublished
	l.PublishedAt = &now
}

// IsReleased reports whether a student may open the lesson at now.
//
// enrolledAt is the student's enrollment time (nil when unknown) and
// completed holds the ids of lessons the student finished. An unknown
// release type does not gate the lesson.
func (l *Lesson) IsReleased(enrolledAt *time.Time, completed map[id.ID]bool, now time.Time) bool {
	switch l.ReleaseType {
	case ReleaseImmediate:
		return true
	case ReleaseOnDate:
		return l.ReleaseAt == nil || !l.ReleaseAt.After(now)
	case ReleaseAfterEnrollDays:
		if enrolledAt == nil || l.ReleaseAfterDays == nil {
			return false
		}
		return !enrolledAt.Add(days(*l.ReleaseAfterDays)).After(now)
	case ReleaseAfterLessonComplete:
		if l.PrerequisiteLessonID == nil {
			return true
		}
		return completed[*l.PrerequisiteLessonID]
	default:
		return true
	}
}

// AvailableAt returns the instant a time-gated lesson opens, if it is known.
func (l *Lesson) AvailableAt(enrolledAt *time.Time) *time.Time {
	switch l.ReleaseType {
	case ReleaseOnDate:
		return l.ReleaseAt
	case ReleaseAfterEnrollDays:
		if enrolledAt == nil || l.ReleaseAfterDays == nil {
			return nil
		}
		at := enrolledAt.Add(days(*l.ReleaseAfterDays))
		return &at
	}
	return nil
}

// days is a fixed 24h day count; calendar and DST shifts do not apply.
func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

// Completion records that a student finished a lesson within an enrollment.
type Completion struct {
	ID           id.ID     `db:"id" json:"id"`
	EnrollmentID id.ID     `db:"enrollment_id" json:"enrollmentId"`
	LessonID     id.ID     `db:"lesson_id" json:"lessonId"`
	UserID       id.ID     `db:"user_id" json:"userId"`
	CompletedAt  time.Time `db:"completed_at" json:"completedAt"`
}
