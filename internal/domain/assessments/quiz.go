// Package assessments holds course quizzes and the students' graded attempts.
package assessments

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
)

// QuizStatus is the publication state of a quiz.
type QuizStatus string

const (
	QuizDraft     QuizStatus = "draft"
	QuizPublished QuizStatus = "published"
	QuizArchived  QuizStatus = "archived"
)

// QuestionType decides how an answer is graded.
type QuestionType string

const (
	SingleChoice QuestionType = "single_choice"
	MultiChoice  QuestionType = "multi_choice"
	TrueFalse    QuestionType = "true_false"
	ShortText    QuestionType = "short_text"
	Numeric      QuestionType = "numeric"
)

// Option is one choice of a choice question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct,omitempty"`
}

// Question is stored inside the quiz row. Every type is graded
// automatically; there is no manual review step.
type Question struct {
	ID              string           `json:"id"`
	Type            QuestionType     `json:"type"`
	Prompt          string           `json:"prompt"`
	Marks           decimal.Decimal  `json:"marks"`
	Options         []Option         `json:"options,omitempty"`
	AcceptedAnswers []string         `json:"acceptedAnswers,omitempty"`
	CaseSensitive   bool             `json:"caseSensitive,omitempty"`
	CorrectNumber   *decimal.Decimal `json:"correctNumber,omitempty"`
	Tolerance       decimal.Decimal  `json:"tolerance"`
}

func (q Question) validate() error {
	field := "questions." + q.ID
	if q.ID == "" {
		return apperror.NewFieldValidation("questions", "every question needs an id")
	}
	if strings.TrimSpace(q.Prompt) == "" {
		return apperror.NewFieldValidation(field, "prompt is required")
	}
	if !q.Marks.IsPositive() {
		return apperror.NewFieldValidation(field, "marks must be positive")
	}
	correct := 0
	for _, o := range q.Options {
		if o.Correct {
			correct++
		}
	}
	switch q.Type {
	case SingleChoice, TrueFalse:
		if len(q.Options) < 2 || correct != 1 {
			return apperror.NewFieldValidation(field, "needs at least two options and exactly one correct")
		}
	case MultiChoice:
		if len(q.Options) < 2 || correct == 0 {
			return apperror.NewFieldValidation(field, "needs at least two options and one correct")
		}
	case ShortText:
		if len(q.AcceptedAnswers) == 0 {
			return apperror.NewFieldValidation(field, "needs at least one accepted answer")
		}
	case Numeric:
		if q.CorrectNumber == nil || q.Tolerance.IsNegative() {
			return apperror.NewFieldValidation(field, "needs a correct number and a non-negative tolerance")
		}
	default:
		return apperror.NewFieldValidation(field, fmt.Sprintf("unknown question type %q", q.Type))
	}
	return nil
}

// Answer is a student's response to one question.
type Answer struct {
	OptionIDs []string         `json:"optionIds,omitempty"`
	Text      string           `json:"text,omitempty"`
	Number    *decimal.Decimal `json:"number,omitempty"`
}

// Grade reports whether a is fully correct. Multi choice answers must
// select exactly the correct set.
func (q Question) Grade(a Answer) bool {
	switch q.Type {
	case SingleChoice, TrueFalse, MultiChoice:
		chosen := make(map[string]bool, len(a.OptionIDs))
		for _, o := range a.OptionIDs {
			chosen[o] = true
		}
		if len(chosen) == 0 {
			return false
		}
		for _, o := range q.Options {
			if o.Correct != chosen[o.ID] {
				return false
			}
			delete(chosen, o.ID)
		}
		return len(chosen) == 0
	case ShortText:
		given := strings.Join(strings.Fields(a.Text), " ")
		for _, accepted := range q.AcceptedAnswers {
			accepted = strings.Join(strings.Fields(accepted), " ")
			if given == accepted || (!q.CaseSensitive && strings.EqualFold(given, accepted)) {
				return true
			}
		}
	case Numeric:
		if a.Number == nil || q.CorrectNumber == nil {
			return false
		}
		return a.Number.Sub(*q.CorrectNumber).Abs().LessThanOrEqual(q.Tolerance)
	}
	return false
}

// Questions is the JSONB column holding a quiz's questions.
type Questions []Question

// Scan implements sql.Scanner.
func (qs *Questions) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*qs = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type for Questions: %T", src)
	}
	if len(raw) == 0 {
		*qs = nil
		return nil
	}
	return json.Unmarshal(raw, (*[]Question)(qs))
}

// Value implements driver.Valuer; nil is stored as an empty array.
func (qs Questions) Value() (driver.Value, error) {
	if qs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Question(qs))
}

// Quiz is a graded test attached to a course. It takes the course branch.
type Quiz struct {
	entity.BaseEntity
	entity.BranchOwned

	CourseID         id.ID      `db:"course_id" json:"courseId"`
	Title            string     `db:"title" json:"title"`
	Description      string     `db:"description" json:"description"`
	Status           QuizStatus `db:"status" json:"status"`
	Questions        Questions  `db:"questions" json:"questions"`
	PassPercent      int        `db:"pass_percent" json:"passPercent"`
	TimeLimitMinutes *int       `db:"time_limit_minutes" json:"timeLimitMinutes,omitempty"`
	AttemptsAllowed  int        `db:"attempts_allowed" json:"attemptsAllowed"`
	AvailableFrom    *time.Time `db:"available_from" json:"availableFrom,omitempty"`
	AvailableUntil   *time.Time `db:"available_until" json:"availableUntil,omitempty"`
	PublishedAt      *time.Time `db:"published_at" json:"publishedAt,omitempty"`
}

// NewQuiz creates a draft quiz with one attempt and a 50% pass mark.
func NewQuiz(courseID id.ID, title string) *Quiz {
	return &Quiz{
		BaseEntity:      entity.NewBaseEntity(),
		CourseID:        courseID,
		Title:           strings.TrimSpace(title),
		Status:          QuizDraft,
		PassPercent:     50,
		AttemptsAllowed: 1,
	}
}

func (q *Quiz) EntityName() string { return "quiz" }

// Validate implements entity.Validatable.
func (q *Quiz) Validate(ctx context.Context) error {
	if id.IsNil(q.CourseID) {
		return apperror.NewFieldValidation("courseId", "course is required")
	}
	if q.Title == "" {
		return apperror.NewFieldValidation("title", "title is required")
	}
	if q.PassPercent < 0 || q.PassPercent > 100 {
		return apperror.NewFieldValidation("passPercent", "pass percent must be between 0 and 100")
	}
	if q.AttemptsAllowed < 1 {
		return apperror.NewFieldValidation("attemptsAllowed", "at least one attempt is required")
	}
	if q.TimeLimitMinutes != nil && *q.TimeLimitMinutes <= 0 {
		return apperror.NewFieldValidation("timeLimitMinutes", "time limit must be positive")
	}
	if q.AvailableFrom != nil && q.AvailableUntil != nil && !q.AvailableUntil.After(*q.AvailableFrom) {
		return apperror.NewFieldValidation("availableUntil", "window must end after it starts")
	}
	seen := make(map[string]bool, len(q.Questions))
	for _, question := range q.Questions {
		if seen[question.ID] {
			return apperror.NewFieldValidation("questions", fmt.Sprintf("duplicate question id %q", question.ID))
		}
		seen[question.ID] = true
		if err := question.validate(); err != nil {
			return err
		}
	}
	switch q.Status {
	case QuizDraft, QuizArchived:
	case QuizPublished:
		if len(q.Questions) == 0 {
			return apperror.NewFieldValidation("questions", "a published quiz needs questions")
		}
	default:
		return apperror.NewFieldValidation("status", "unknown quiz status")
	}
	return nil
}

// TotalMarks sums the marks of every question.
func (q *Quiz) TotalMarks() decimal.Decimal {
	total := decimal.Zero
	for _, question := range q.Questions {
		total = total.Add(question.Marks)
	}
	return total
}

// Publish opens the quiz to enrolled students.
func (q *Quiz) Publish(now time.Time) error {
	if q.Status != QuizDraft {
		return apperror.NewInvalidTransition("quiz", string(q.Status), string(QuizPublished))
	}
	if len(q.Questions) == 0 {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "a quiz needs questions before it is published")
	}
	q.Status = QuizPublished
	q.PublishedAt = &now
	return nil
}

// Availability reasons.
const (
	ReasonOpen         = "open"
	ReasonNotPublished = "not_published"
	ReasonNotYetOpen   = "not_yet_open"
	ReasonClosed       = "closed"
)

// Availability evaluates the window at now. Both bounds are inclusive.
func (q *Quiz) Availability(now time.Time) string {
	switch {
	case q.Status != QuizPublished || !q.Active:
		return ReasonNotPublished
	case q.AvailableFrom != nil && now.Before(*q.AvailableFrom):
		return ReasonNotYetOpen
	case q.AvailableUntil != nil && now.After(*q.AvailableUntil):
		return ReasonClosed
	}
	return ReasonOpen
}

// Deadline is when an attempt started at now must be submitted: the time
// limit or the end of the window, whichever comes first.
func (q *Quiz) Deadline(startedAt time.Time) *time.Time {
	var deadline *time.Time
	if q.TimeLimitMinutes != nil {
		d := startedAt.Add(time.Duration(*q.TimeLimitMinutes) * time.Minute)
		deadline = &d
	}
	if q.AvailableUntil != nil && (deadline == nil || q.AvailableUntil.Before(*deadline)) {
		d := *q.AvailableUntil
		deadline = &d
	}
	return deadline
}

// Paper returns the student copy: the same questions without the key.
func (q *Quiz) Paper() *Quiz {
	paper := *q
	paper.Questions = make(Questions, len(q.Questions))
	for i, question := range q.Questions {
		question.AcceptedAnswers = nil
		question.CorrectNumber = nil
		question.Tolerance = decimal.Zero
		options := make([]Option, len(question.Options))
		for j, o := range question.Options {
			options[j] = Option{ID: o.ID, Text: o.Text}
		}
		question.Options = options
		paper.Questions[i] = question
	}
	return &paper
}
