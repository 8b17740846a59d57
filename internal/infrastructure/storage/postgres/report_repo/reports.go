// Package report_repo provides PostgreSQL implementations for report repositories.
package report_repo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lms/internal/core/security"
	"lms/internal/domain/billing"
	"lms/internal/domain/reports"
	"lms/internal/infrastructure/storage/postgres"
)

// ReportRepo implements reports.Repository.
type ReportRepo struct {
	txm     *postgres.TxManager
	builder sq.StatementBuilderType
}

var _ reports.Repository = (*ReportRepo)(nil)

// NewReportRepo creates a new report repository.
func NewReportRepo(txm *postgres.TxManager) *ReportRepo {
	return &ReportRepo{
		txm:     txm,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// countStatus renders COUNT(*) FILTER for one status.
func countStatus(status string) string {
	return fmt.Sprintf("COUNT(*) FILTER (WHERE e.status = '%s') AS %s", status, status)
}

// EnrollmentSummary groups enrollments by course. Courses without
// enrollments in the window are omitted.
func (r *ReportRepo) EnrollmentSummary(ctx context.Context, vis security.Visibility, f reports.EnrollmentSummaryFilter) ([]reports.EnrollmentSummaryItem, error) {
	q := r.builder.Select(
		"e.course_id",
		"c.title AS course_title",
		"c.branch_id",
		"COUNT(*) AS total",
		countStatus("pending"),
		countStatus("active"),
		countStatus("suspended"),
		countStatus("completed"),
		countStatus("expired"),
		countStatus("cancelled"),
		countStatus("refunded"),
	).
		From("enrollments e").
		Join("courses c ON c.id = e.course_id").
		Where(sq.Eq{"e.active": true}).
		GroupBy("e.course_id", "c.title", "c.branch_id").
		OrderBy("total DESC", "c.title").
		Limit(uint64(f.Limit)).
		Offset(uint64(f.Offset))
	q = security.ApplyVisibility(q, vis, "e.branch_id")

	if f.From != nil {
		q = q.Where(sq.GtOrEq{"e.enrolled_at": *f.From})
	}
	if f.To != nil {
		q = q.Where(sq.Lt{"e.enrolled_at": *f.To})
	}
	if f.CourseID != nil {
		q = q.Where(sq.Eq{"e.course_id": *f.CourseID})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build enrollment summary: %w", err)
	}
	var items []reports.EnrollmentSummaryItem
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, postgres.MapError(err, "enrollments")
	}
	return items, nil
}

// Revenue aggregates paid orders per UTC day and currency.
func (r *ReportRepo) Revenue(ctx context.Context, vis security.Visibility, f reports.RevenueFilter) ([]reports.RevenueItem, error) {
	q := r.builder.Select(
		"date_trunc('day', o.paid_at AT TIME ZONE 'UTC') AS day",
		"o.currency_code",
		"COUNT(*) AS orders",
		"SUM(o.subtotal) AS subtotal",
		"SUM(o.discount_total) AS discount_total",
		"SUM(o.tax_total) AS tax_total",
		"SUM(o.total) AS total",
	).
		From("orders o").
		Where(sq.Eq{"o.active": true, "o.status": billing.OrderPaid}).
		Where(sq.GtOrEq{"o.paid_at": f.From}).
		Where(sq.Lt{"o.paid_at": f.To}).
		GroupBy("day", "o.currency_code").
		OrderBy("day", "o.currency_code")
	q = security.ApplyVisibility(q, vis, "o.branch_id")

	if f.Currency != "" {
		q = q.Where(sq.Eq{"o.currency_code": f.Currency})
	}
	if f.CourseID != nil {
		q = q.Where(sq.Eq{"o.course_id": *f.CourseID})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build revenue: %w", err)
	}
	var items []reports.RevenueItem
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, postgres.MapError(err, "orders")
	}
	return items, nil
}

// activityBase joins events to their enrollment and course with every filter applied.
func (r *ReportRepo) activityBase(columns []string, vis security.Visibility, f reports.ActivityFilter) sq.SelectBuilder {
	q := r.builder.Select(columns...).
		From("enrollment_events ev").
		Join("enrollments e ON e.id = ev.enrollment_id").
		Join("courses c ON c.id = e.course_id")
	q = security.ApplyVisibility(q, vis, "e.branch_id")

	if f.From != nil {
		q = q.Where(sq.GtOrEq{"ev.created_at": *f.From})
	}
	if f.To != nil {
		q = q.Where(sq.Lt{"ev.created_at": *f.To})
	}
	if len(f.EventTypes) > 0 {
		q = q.Where(sq.Eq{"ev.event_type": f.EventTypes})
	}
	if f.UserID != nil {
		q = q.Where(sq.Eq{"e.user_id": *f.UserID})
	}
	if f.CourseID != nil {
		q = q.Where(sq.Eq{"e.course_id": *f.CourseID})
	}
	return q
}

// ActivityJournal returns one page of events and the total match count,
// both read from the same snapshot.
func (r *ReportRepo) ActivityJournal(ctx context.Context, vis security.Visibility, f reports.ActivityFilter) ([]reports.ActivityItem, int, error) {
	countSQL, countArgs, err := r.activityBase([]string{"COUNT(*)"}, vis, f).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build activity count: %w", err)
	}

	order := "ev.created_at DESC"
	if f.Ascending {
		order = "ev.created_at ASC"
	}
	sql, args, err := r.activityBase([]string{
		"ev.id", "ev.created_at", "ev.event_type", "ev.message", "ev.actor_id",
		"ev.enrollment_id", "e.enrollment_no", "e.user_id", "e.course_id",
		"c.title AS course_title", "e.branch_id",
	}, vis, f).
		OrderBy(order, "ev.id").
		Limit(uint64(f.Limit)).
		Offset(uint64(f.Offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build activity journal: %w", err)
	}

	var (
		items []reports.ActivityItem
		total int
	)
	err = r.txm.ReadOnly(ctx, func(ctx context.Context) error {
		querier := r.txm.GetQuerier(ctx)
		if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
			return err
		}
		return pgxscan.Select(ctx, querier, &items, sql, args...)
	})
	if err != nil {
		return nil, 0, postgres.MapError(err, "enrollment_events")
	}
	return items, total, nil
}

// ActivityByType counts matching events per type.
func (r *ReportRepo) ActivityByType(ctx context.Context, vis security.Visibility, f reports.ActivityFilter) ([]reports.EventTypeSummary, error) {
	q := r.activityBase([]string{"ev.event_type", "COUNT(*) AS count"}, vis, f).
		GroupBy("ev.event_type").
		OrderBy("count DESC", "ev.event_type")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build activity summary: %w", err)
	}
	var out []reports.EventTypeSummary
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, postgres.MapError(err, "enrollment_events")
	}
	return out, nil
}
