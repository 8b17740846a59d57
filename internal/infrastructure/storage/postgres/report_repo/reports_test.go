package report_repo

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/id"
	"lms/internal/core/security"
	"lms/internal/domain/billing"
	"lms/internal/domain/reports"
	"lms/internal/infrastructure/storage/postgres"
)

func newRepo(t *testing.T) (*ReportRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewReportRepo(postgres.NewTxManagerFromDB(mock)), mock
}

func TestReportRepo_EnrollmentSummaryAppliesBranch(t *testing.T) {
	repo, mock := newRepo(t)
	branch := id.New()
	course := id.New()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM enrollments e JOIN courses c ON c.id = e.course_id WHERE e.active = \$1 AND e.branch_id = \$2 AND e.enrolled_at >= \$3 GROUP BY e.course_id, c.title, c.branch_id ORDER BY total DESC, c.title LIMIT 100 OFFSET 0`).
		WithArgs(true, branch.String(), from).
		WillReturnRows(pgxmock.NewRows([]string{
			"course_id", "course_title", "branch_id", "total",
			"pending", "active", "suspended", "completed", "expired", "cancelled", "refunded",
		}).AddRow(course, "Intro to Go", &branch, int64(4), int64(0), int64(2), int64(0), int64(1), int64(0), int64(1), int64(0)))

	items, err := repo.EnrollmentSummary(context.Background(), security.Visibility{BranchID: &branch},
		reports.EnrollmentSummaryFilter{From: &from, Limit: 100})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Intro to Go", items[0].CourseTitle)
	assert.Equal(t, int64(4), items[0].Total)
	assert.Equal(t, int64(1), items[0].Completed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepo_RevenueOnlyPaidOrders(t *testing.T) {
	repo, mock := newRepo(t)
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	mock.ExpectQuery(`FROM orders o WHERE o.active = \$1 AND o.status = \$2 AND o.paid_at >= \$3 AND o.paid_at < \$4 AND o.currency_code = \$5 GROUP BY day, o.currency_code ORDER BY day, o.currency_code$`).
		WithArgs(true, billing.OrderPaid, from, to, "USD").
		WillReturnRows(pgxmock.NewRows([]string{"day", "currency_code", "orders", "subtotal", "discount_total", "tax_total", "total"}).
			AddRow(from, "USD", int64(2), decimal.RequireFromString("100"), decimal.RequireFromString("10"), decimal.Zero, decimal.RequireFromString("90")))

	items, err := repo.Revenue(context.Background(), security.Visibility{All: true},
		reports.RevenueFilter{From: from, To: to, Currency: "USD"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, decimal.RequireFromString("90").Equal(items[0].Total))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepo_ActivityJournalHiddenWithoutBranch(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	mock.ExpectExec("SET LOCAL statement_timeout").WillReturnResult(pgxmock.NewResult("SET", 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM enrollment_events ev JOIN enrollments e ON e.id = ev.enrollment_id JOIN courses c ON c.id = e.course_id WHERE FALSE AND ev.event_type IN \(\$1,\$2\)`).
		WithArgs("enrolled", "cancelled").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT ev.id, .+ WHERE FALSE AND ev.event_type IN \(\$1,\$2\) ORDER BY ev.created_at ASC, ev.id LIMIT 20 OFFSET 0`).
		WithArgs("enrolled", "cancelled").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	items, total, err := repo.ActivityJournal(context.Background(), security.Visibility{},
		reports.ActivityFilter{EventTypes: []string{"enrolled", "cancelled"}, Ascending: true, Limit: 20})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
