package reports

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
	"lms/internal/core/security"
)

type fakeRepo struct {
	vis        security.Visibility
	enrollment EnrollmentSummaryFilter
	activity   ActivityFilter
	calls      int

	summary  []EnrollmentSummaryItem
	revenue  []RevenueItem
	items    []ActivityItem
	total    int
	byType   []EventTypeSummary
	typeHits int
}

func (f *fakeRepo) EnrollmentSummary(ctx context.Context, vis security.Visibility, flt EnrollmentSummaryFilter) ([]EnrollmentSummaryItem, error) {
	f.calls++
	f.vis, f.enrollment = vis, flt
	return f.summary, nil
}

func (f *fakeRepo) Revenue(ctx context.Context, vis security.Visibility, flt RevenueFilter) ([]RevenueItem, error) {
	f.calls++
	f.vis = vis
	return f.revenue, nil
}

func (f *fakeRepo) ActivityJournal(ctx context.Context, vis security.Visibility, flt ActivityFilter) ([]ActivityItem, int, error) {
	f.calls++
	f.vis, f.activity = vis, flt
	return f.items, f.total, nil
}

func (f *fakeRepo) ActivityByType(ctx context.Context, vis security.Visibility, flt ActivityFilter) ([]EventTypeSummary, error) {
	f.typeHits++
	return f.byType, nil
}

var (
	org      = id.New()
	mainHQ   = id.New()
	downtown = id.New()
	uptown   = id.New()
	fixedNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
)

func asBranch(branch id.ID, main bool) context.Context {
	b := branch
	return security.WithScope(context.Background(), security.NewBranchScope("user-1", &org, &b, main))
}

func newService(repo *fakeRepo) *Service {
	return NewService(repo, func() time.Time { return fixedNow })
}

func TestEnrollmentSummary_ScopesAndRates(t *testing.T) {
	repo := &fakeRepo{summary: []EnrollmentSummaryItem{
		{CourseID: id.New(), Total: 3, Completed: 1},
		{CourseID: id.New(), Total: 8, Completed: 8},
		{CourseID: id.New(), Total: 0},
	}}
	svc := newService(repo)

	out, err := svc.EnrollmentSummary(asBranch(downtown, false), EnrollmentSummaryFilter{Limit: 5000})
	require.NoError(t, err)

	assert.Equal(t, security.Visibility{BranchID: &downtown}, repo.vis)
	assert.Equal(t, 1000, repo.enrollment.Limit, "limit is clamped")
	assert.Equal(t, 33.33, out.Items[0].CompletionRate)
	assert.Equal(t, 100.0, out.Items[1].CompletionRate)
	assert.Zero(t, out.Items[2].CompletionRate)
	assert.Equal(t, int64(11), out.TotalEnrollments)
	assert.Equal(t, 3, out.TotalCourses)
	assert.Equal(t, fixedNow, out.GeneratedAt)
}

func TestEnrollmentSummary_BranchNarrowing(t *testing.T) {
	t.Run("main branch narrows to one branch", func(t *testing.T) {
		repo := &fakeRepo{}
		_, err := newService(repo).EnrollmentSummary(asBranch(mainHQ, true), EnrollmentSummaryFilter{BranchID: &uptown})
		require.NoError(t, err)
		assert.Equal(t, security.Visibility{BranchID: &uptown}, repo.vis)
	})

	t.Run("other branch is out of scope", func(t *testing.T) {
		repo := &fakeRepo{}
		_, err := newService(repo).EnrollmentSummary(asBranch(downtown, false), EnrollmentSummaryFilter{BranchID: &uptown})
		assert.True(t, apperror.HasCode(err, apperror.CodeBranchScope), "got %v", err)
		assert.Zero(t, repo.calls)
	})

	t.Run("no branch sees nothing without querying", func(t *testing.T) {
		repo := &fakeRepo{}
		ctx := security.WithScope(context.Background(), security.NewBranchScope("user-1", &org, nil, false))
		out, err := newService(repo).EnrollmentSummary(ctx, EnrollmentSummaryFilter{})
		require.NoError(t, err)
		assert.Empty(t, out.Items)
		assert.Zero(t, repo.calls)
	})

	t.Run("anonymous is rejected", func(t *testing.T) {
		_, err := newService(&fakeRepo{}).EnrollmentSummary(context.Background(), EnrollmentSummaryFilter{})
		assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))
	})
}

func TestRevenue_Validation(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		filter RevenueFilter
	}{
		{"missing bounds", RevenueFilter{}},
		{"reversed window", RevenueFilter{From: from, To: from.Add(-time.Hour)}},
		{"empty window", RevenueFilter{From: from, To: from}},
		{"longer than a year", RevenueFilter{From: from, To: from.AddDate(1, 1, 0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{}
			_, err := newService(repo).Revenue(asBranch(mainHQ, true), tt.filter)
			assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "got %v", err)
			assert.Zero(t, repo.calls)
		})
	}
}

func TestRevenue_TotalsPerCurrency(t *testing.T) {
	day1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	repo := &fakeRepo{revenue: []RevenueItem{
		{Day: day1, CurrencyCode: "USD", Orders: 2, Discount: decimal.RequireFromString("5"), Total: decimal.RequireFromString("93.00")},
		{Day: day1, CurrencyCode: "EUR", Orders: 1, Discount: decimal.Zero, Total: decimal.RequireFromString("40.00")},
		{Day: day2, CurrencyCode: "USD", Orders: 1, Discount: decimal.Zero, Total: decimal.RequireFromString("49.00")},
	}}

	out, err := newService(repo).Revenue(asBranch(mainHQ, true), RevenueFilter{From: day1, To: day2.AddDate(0, 0, 1), Currency: " usd "})
	require.NoError(t, err)

	require.Len(t, out.Totals, 2)
	assert.Equal(t, "EUR", out.Totals[0].CurrencyCode)
	assert.Equal(t, "USD", out.Totals[1].CurrencyCode)
	assert.Equal(t, int64(3), out.Totals[1].Orders)
	assert.True(t, decimal.RequireFromString("142").Equal(out.Totals[1].Total))
	assert.True(t, decimal.RequireFromString("5").Equal(out.Totals[1].Discount))
	assert.Equal(t, security.Visibility{All: true}, repo.vis)
}

func TestActivityJournal_SummaryOnFirstPageOnly(t *testing.T) {
	repo := &fakeRepo{
		items:  []ActivityItem{{ID: id.New(), EventType: "enrolled"}},
		total:  120,
		byType: []EventTypeSummary{{EventType: "enrolled", Count: 120}},
	}
	svc := newService(repo)
	ctx := asBranch(downtown, false)

	first, err := svc.ActivityJournal(ctx, ActivityFilter{})
	require.NoError(t, err)
	assert.Equal(t, 50, first.Limit)
	assert.Equal(t, 120, first.TotalCount)
	assert.Len(t, first.Summary, 1)

	second, err := svc.ActivityJournal(ctx, ActivityFilter{Offset: 50, Limit: 900})
	require.NoError(t, err)
	assert.Equal(t, 500, second.Limit)
	assert.Nil(t, second.Summary)
	assert.Equal(t, 1, repo.typeHits)
}
