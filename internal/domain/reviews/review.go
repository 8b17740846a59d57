// Package reviews collects course ratings from enrolled students and runs
// them through moderation before they are published.
package reviews

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
)

// Status is the moderation state of a review.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusHidden   Status = "hidden"
)

// Counted reports whether the review blocks the author from writing another
// one for the same course. A rejected review does not.
func (s Status) Counted() bool {
	return s == StatusPending || s == StatusApproved || s == StatusHidden
}

const (
	MinRating = 1
	MaxRating = 5
)

// Review is a student's rating of a course. It takes the course branch.
type Review struct {
	entity.BaseEntity
	entity.BranchOwned

	CourseID       id.ID      `db:"course_id" json:"courseId"`
	UserID         id.ID      `db:"user_id" json:"userId"`
	EnrollmentID   *id.ID     `db:"enrollment_id" json:"enrollmentId,omitempty"`
	Rating         int        `db:"rating" json:"rating"`
	Title          string     `db:"title" json:"title"`
	Body           string     `db:"body" json:"body"`
	Anonymous      bool       `db:"is_anonymous" json:"anonymous"`
	Status         Status     `db:"status" json:"status"`
	ModeratedAt    *time.Time `db:"moderated_at" json:"moderatedAt,omitempty"`
	ModeratedBy    *id.ID     `db:"moderated_by" json:"moderatedBy,omitempty"`
	ModerationNote string     `db:"moderation_note" json:"moderationNote,omitempty"`
	EditedAt       *time.Time `db:"edited_at" json:"editedAt,omitempty"`
}

// NewReview creates a pending review.
func NewReview(courseID, userID id.ID, rating int, title, body string) *Review {
	return &Review{
		BaseEntity: entity.NewBaseEntity(),
		CourseID:   courseID,
		UserID:     userID,
		Rating:     rating,
		Title:      strings.TrimSpace(title),
		Body:       strings.TrimSpace(body),
		Status:     StatusPending,
	}
}

func (r *Review) EntityName() string { return "review" }

// Validate implements entity.Validatable.
func (r *Review) Validate(ctx context.Context) error {
	if id.IsNil(r.CourseID) || id.IsNil(r.UserID) {
		return apperror.NewValidation("review needs a course and an author")
	}
	if r.Rating < MinRating || r.Rating > MaxRating {
		return apperror.NewFieldValidation("rating", "rating must be between 1 and 5")
	}
	if utf8.RuneCountInString(r.Title) > 120 {
		return apperror.NewFieldValidation("title", "title is limited to 120 characters")
	}
	if utf8.RuneCountInString(r.Body) > 5000 {
		return apperror.NewFieldValidation("body", "review is limited to 5000 characters")
	}
	switch r.Status {
	case StatusPending, StatusApproved, StatusRejected, StatusHidden:
	default:
		return apperror.NewFieldValidation("status", "unknown review status")
	}
	return nil
}

// Edit replaces the author's text. An edited published review goes back to
// moderation.
func (r *Review) Edit(rating int, title, body string, now time.Time) error {
	if r.Status == StatusRejected {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "a rejected review cannot be edited; write a new one")
	}
	r.Rating = rating
	r.Title = strings.TrimSpace(title)
	r.Body = strings.TrimSpace(body)
	r.EditedAt = &now
	if r.Status == StatusApproved {
		r.Status = StatusPending
	}
	return nil
}

// Moderate moves the review to a moderation outcome.
func (r *Review) Moderate(to Status, by *id.ID, note string, now time.Time) error {
	allowed := false
	switch to {
	case StatusApproved:
		allowed = r.Status == StatusPending || r.Status == StatusHidden
	case StatusRejected:
		allowed = r.Status == StatusPending
		if allowed && strings.TrimSpace(note) == "" {
			return apperror.NewFieldValidation("note", "a rejection reason is required")
		}
	case StatusHidden:
		allowed = r.Status == StatusApproved
	}
	if !allowed {
		return apperror.NewInvalidTransition("review", string(r.Status), string(to))
	}
	r.Status = to
	r.ModeratedAt = &now
	r.ModeratedBy = by
	r.ModerationNote = strings.TrimSpace(note)
	return nil
}

// Public returns the catalog view of an approved review. Anonymous authors
// are not disclosed.
func (r *Review) Public() *PublicReview {
	p := &PublicReview{
		ID:        r.ID,
		Rating:    r.Rating,
		Title:     r.Title,
		Body:      r.Body,
		CreatedAt: r.CreatedAt,
		EditedAt:  r.EditedAt,
	}
	if !r.Anonymous {
		p.UserID = &r.UserID
	}
	return p
}

// PublicReview is what the course page shows.
type PublicReview struct {
	ID        id.ID      `json:"id"`
	UserID    *id.ID     `json:"userId,omitempty"`
	Rating    int        `json:"rating"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"createdAt"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
}

// Summary aggregates the approved ratings of a course.
type Summary struct {
	CourseID id.ID           `json:"courseId"`
	Count    int64           `json:"count"`
	Average  decimal.Decimal `json:"average"`
	Ratings  map[int]int64   `json:"ratings"`
}

// NewSummary builds a summary from per rating counts; every rating from 1
// to 5 is present in the result.
func NewSummary(courseID id.ID, counts map[int]int64) *Summary {
	s := &Summary{CourseID: courseID, Ratings: make(map[int]int64, MaxRating), Average: decimal.Zero}
	var total int64
	for rating := MinRating; rating <= MaxRating; rating++ {
		n := counts[rating]
		s.Ratings[rating] = n
		s.Count += n
		total += n * int64(rating)
	}
	if s.Count > 0 {
		s.Average = decimal.NewFromInt(total).DivRound(decimal.NewFromInt(s.Count), 2)
	}
	return s
}
