package dto

import (
	"time"

	"lms/internal/core/id"
	"lms/internal/domain/assessments"
)

// CreateQuizRequest is the request body for creating a quiz.
type CreateQuizRequest struct {
	CourseID         id.ID                  `json:"courseId" binding:"required"`
	Title            string                 `json:"title" binding:"required"`
	Description      string                 `json:"description"`
	Questions        []assessments.Question `json:"questions"`
	PassPercent      *int                   `json:"passPercent"`
	TimeLimitMinutes *int                   `json:"timeLimitMinutes"`
	AttemptsAllowed  *int                   `json:"attemptsAllowed"`
	AvailableFrom    *time.Time             `json:"availableFrom"`
	AvailableUntil   *time.Time             `json:"availableUntil"`
}

// ToEntity converts DTO to domain entity.
func (r CreateQuizRequest) ToEntity() *assessments.Quiz {
	q := assessments.NewQuiz(r.CourseID, r.Title)
	q.Description = r.Description
	q.Questions = r.Questions
	if r.PassPercent != nil {
		q.PassPercent = *r.PassPercent
	}
	if r.AttemptsAllowed != nil {
		q.AttemptsAllowed = *r.AttemptsAllowed
	}
	q.TimeLimitMinutes = r.TimeLimitMinutes
	q.AvailableFrom = r.AvailableFrom
	q.AvailableUntil = r.AvailableUntil
	return q
}

// UpdateQuizRequest is the request body for updating a quiz.
// The course is fixed once created.
type UpdateQuizRequest struct {
	Title            *string                `json:"title"`
	Description      *string                `json:"description"`
	Questions        []assessments.Question `json:"questions"`
	PassPercent      *int                   `json:"passPercent"`
	TimeLimitMinutes *int                   `json:"timeLimitMinutes"`
	AttemptsAllowed  *int                   `json:"attemptsAllowed"`
	AvailableFrom    *time.Time             `json:"availableFrom"`
	AvailableUntil   *time.Time             `json:"availableUntil"`
	Version          int                    `json:"version" binding:"required,min=1"`
}

// ApplyTo applies the non-nil fields.
func (r UpdateQuizRequest) ApplyTo(q *assessments.Quiz) {
	setString(&q.Title, r.Title)
	setString(&q.Description, r.Description)
	if r.Questions != nil {
		q.Questions = r.Questions
	}
	if r.PassPercent != nil {
		q.PassPercent = *r.PassPercent
	}
	if r.TimeLimitMinutes != nil {
		q.TimeLimitMinutes = r.TimeLimitMinutes
	}
	if r.AttemptsAllowed != nil {
		q.AttemptsAllowed = *r.AttemptsAllowed
	}
	if r.AvailableFrom != nil {
		q.AvailableFrom = r.AvailableFrom
	}
	if r.AvailableUntil != nil {
		q.AvailableUntil = r.AvailableUntil
	}
	q.Version = r.Version
}

// SubmitAttemptRequest carries the answers keyed by question id.
type SubmitAttemptRequest struct {
	Answers assessments.Answers `json:"answers"`
}
