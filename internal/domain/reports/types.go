package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"lms/internal/core/id"
)

// --- Enrollment summary ---

// EnrollmentSummaryFilter narrows the per-course enrollment counts.
// From/To bound enrolled_at as [From, To).
type EnrollmentSummaryFilter struct {
	From     *time.Time `json:"from,omitempty"`
	To       *time.Time `json:"to,omitempty"`
	CourseID *id.ID     `json:"courseId,omitempty"`
	// BranchID narrows a main-branch caller to one branch.
	BranchID *id.ID `json:"branchId,omitempty"`
	Limit    int    `json:"limit"`
	Offset   int    `json:"offset"`
}

// EnrollmentSummaryItem is one course row.
type EnrollmentSummaryItem struct {
	CourseID    id.ID  `db:"course_id" json:"courseId"`
	CourseTitle string `db:"course_title" json:"courseTitle"`
	BranchID    *id.ID `db:"branch_id" json:"branchId,omitempty"`

	Total     int64 `db:"total" json:"total"`
	Pending   int64 `db:"pending" json:"pending"`
	Active    int64 `db:"active" json:"active"`
	Suspended int64 `db:"suspended" json:"suspended"`
	Completed int64 `db:"completed" json:"completed"`
	Expired   int64 `db:"expired" json:"expired"`
	Cancelled int64 `db:"cancelled" json:"cancelled"`
	Refunded  int64 `db:"refunded" json:"refunded"`

	// CompletionRate is completed / total in percent, two decimals.
	CompletionRate float64 `db:"-" json:"completionRate"`
}

// EnrollmentSummary is the enrollment report.
type EnrollmentSummary struct {
	Items            []EnrollmentSummaryItem `json:"items"`
	TotalCourses     int                     `json:"totalCourses"`
	TotalEnrollments int64                   `json:"totalEnrollments"`
	GeneratedAt      time.Time               `json:"generatedAt"`
}

// --- Revenue ---

// RevenueFilter selects paid orders by paid_at in [From, To).
type RevenueFilter struct {
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Currency string    `json:"currency,omitempty"`
	CourseID *id.ID    `json:"courseId,omitempty"`
	BranchID *id.ID    `json:"branchId,omitempty"`
}

// RevenueItem aggregates one day in one currency.
type RevenueItem struct {
	Day          time.Time       `db:"day" json:"day"`
	CurrencyCode string          `db:"currency_code" json:"currency"`
	Orders       int64           `db:"orders" json:"orders"`
	Subtotal     decimal.Decimal `db:"subtotal" json:"subtotal"`
	Discount     decimal.Decimal `db:"discount_total" json:"discountTotal"`
	Tax          decimal.Decimal `db:"tax_total" json:"taxTotal"`
	Total        decimal.Decimal `db:"total" json:"total"`
}

// RevenueTotal sums the report per currency. Amounts in different
// currencies are never added together.
type RevenueTotal struct {
	CurrencyCode string          `json:"currency"`
	Orders       int64           `json:"orders"`
	Discount     decimal.Decimal `json:"discountTotal"`
	Total        decimal.Decimal `json:"total"`
}

// RevenueReport is the daily revenue report.
type RevenueReport struct {
	From   time.Time      `json:"from"`
	To     time.Time      `json:"to"`
	Items  []RevenueItem  `json:"items"`
	Totals []RevenueTotal `json:"totals"`
}

// --- Activity journal ---

// ActivityFilter selects enrollment events.
type ActivityFilter struct {
	From       *time.Time `json:"from,omitempty"`
	To         *time.Time `json:"to,omitempty"`
	EventTypes []string   `json:"eventTypes,omitempty"`
	UserID     *id.ID     `json:"userId,omitempty"`
	CourseID   *id.ID     `json:"courseId,omitempty"`
	Limit      int        `json:"limit"`
	Offset     int        `json:"offset"`
	// Ascending lists oldest first; newest first is the default.
	Ascending bool `json:"ascending,omitempty"`
}

// ActivityItem is one enrollment event with its enrollment context.
type ActivityItem struct {
	ID           id.ID     `db:"id" json:"id"`
	OccurredAt   time.Time `db:"created_at" json:"occurredAt"`
	EventType    string    `db:"event_type" json:"eventType"`
	Message      string    `db:"message" json:"message,omitempty"`
	ActorID      *id.ID    `db:"actor_id" json:"actorId,omitempty"`
	EnrollmentID id.ID     `db:"enrollment_id" json:"enrollmentId"`
	EnrollmentNo string    `db:"enrollment_no" json:"enrollmentNo"`
	UserID       id.ID     `db:"user_id" json:"userId"`
	CourseID     id.ID     `db:"course_id" json:"courseId"`
	CourseTitle  string    `db:"course_title" json:"courseTitle"`
	BranchID     *id.ID    `db:"branch_id" json:"branchId,omitempty"`
}

// EventTypeSummary counts events of one type.
type EventTypeSummary struct {
	EventType string `db:"event_type" json:"eventType"`
	Count     int64  `db:"count" json:"count"`
}

// ActivityJournal is a page of events. Summary is only filled on the first page.
type ActivityJournal struct {
	Items      []ActivityItem     `json:"items"`
	TotalCount int                `json:"totalCount"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
	Summary    []EventTypeSummary `json:"summary,omitempty"`
}
