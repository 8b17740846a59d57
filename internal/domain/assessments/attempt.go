package assessments

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
)

// AttemptStatus is the state of one sitting of a quiz.
type AttemptStatus string

const (
	AttemptStarted   AttemptStatus = "started"
	AttemptSubmitted AttemptStatus = "submitted"
	AttemptExpired   AttemptStatus = "expired"
)

// Answers is the JSONB column holding an attempt's responses by question id.
type Answers map[string]Answer

// Scan implements sql.Scanner.
func (a *Answers) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type for Answers: %T", src)
	}
	if len(raw) == 0 {
		*a = nil
		return nil
	}
	return json.Unmarshal(raw, (*map[string]Answer)(a))
}

// Value implements driver.Valuer; nil is stored as an empty object.
func (a Answers) Value() (driver.Value, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]Answer(a))
}

// Attempt is one sitting of a quiz by a student.
type Attempt struct {
	entity.BaseEntity
	entity.BranchOwned

	QuizID       id.ID           `db:"quiz_id" json:"quizId"`
	UserID       id.ID           `db:"user_id" json:"userId"`
	EnrollmentID id.ID           `db:"enrollment_id" json:"enrollmentId"`
	AttemptNo    int             `db:"attempt_no" json:"attemptNo"`
	Status       AttemptStatus   `db:"status" json:"status"`
	StartedAt    time.Time       `db:"started_at" json:"startedAt"`
	DeadlineAt   *time.Time      `db:"deadline_at" json:"deadlineAt,omitempty"`
	SubmittedAt  *time.Time      `db:"submitted_at" json:"submittedAt,omitempty"`
	Answers      Answers         `db:"answers" json:"answers,omitempty"`
	Score        decimal.Decimal `db:"score" json:"score"`
	MaxScore     decimal.Decimal `db:"max_score" json:"maxScore"`
	Percent      decimal.Decimal `db:"percent" json:"percent"`
	Passed       bool            `db:"passed" json:"passed"`
}

// NewAttempt starts attempt number n of quiz for a student.
func NewAttempt(q *Quiz, userID, enrollmentID id.ID, n int, now time.Time) *Attempt {
	a := &Attempt{
		BaseEntity:   entity.NewBaseEntity(),
		QuizID:       q.ID,
		UserID:       userID,
		EnrollmentID: enrollmentID,
		AttemptNo:    n,
		Status:       AttemptStarted,
		StartedAt:    now,
		DeadlineAt:   q.Deadline(now),
		MaxScore:     q.TotalMarks(),
	}
	entity.InheritBranch(a, q)
	return a
}

func (a *Attempt) EntityName() string { return "quiz attempt" }

// Validate implements entity.Validatable.
func (a *Attempt) Validate(ctx context.Context) error {
	if id.IsNil(a.QuizID) || id.IsNil(a.UserID) || id.IsNil(a.EnrollmentID) {
		return apperror.NewValidation("attempt needs a quiz, a student and an enrollment")
	}
	if a.AttemptNo < 1 {
		return apperror.NewFieldValidation("attemptNo", "attempt number starts at 1")
	}
	return nil
}

// ExpireIfNeeded closes a started attempt whose deadline has passed and
// reports whether it changed.
func (a *Attempt) ExpireIfNeeded(now time.Time) bool {
	if a.Status != AttemptStarted || a.DeadlineAt == nil || !now.After(*a.DeadlineAt) {
		return false
	}
	a.Status = AttemptExpired
	return true
}

// Submit grades the answers against q. The percentage is rounded to two
// places before it is compared with the pass mark.
func (a *Attempt) Submit(q *Quiz, answers Answers, now time.Time) error {
	if a.Status != AttemptStarted {
		return apperror.NewInvalidTransition("quiz attempt", string(a.Status), string(AttemptSubmitted))
	}
	score := decimal.Zero
	for _, question := range q.Questions {
		if question.Grade(answers[question.ID]) {
			score = score.Add(question.Marks)
		}
	}
	a.Answers = answers
	a.Score = score
	a.MaxScore = q.TotalMarks()
	a.Percent = decimal.Zero
	if a.MaxScore.IsPositive() {
		a.Percent = score.Mul(decimal.NewFromInt(100)).DivRound(a.MaxScore, 2)
	}
	a.Passed = a.Percent.GreaterThanOrEqual(decimal.NewFromInt(int64(q.PassPercent)))
	a.Status = AttemptSubmitted
	a.SubmittedAt = &now
	return nil
}
