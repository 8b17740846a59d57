// Package reports builds branch-scoped operational reports: enrollment
// counts per course, daily revenue and the enrollment activity journal.
package reports

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
	"lms/internal/core/security"
	"lms/internal/domain"
)

// MaxRevenueSpan bounds one revenue query.
const MaxRevenueSpan = 366 * 24 * time.Hour

// Service provides report generation operations.
type Service struct {
	repo  Repository
	clock func() time.Time
}

// NewService creates a new reports service.
func NewService(repo Repository, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{repo: repo, clock: clock}
}

// visibility resolves the caller's rows, narrowed to branch when given.
func visibility(ctx context.Context, branch *id.ID) (security.Visibility, error) {
	scope, err := domain.RequireScope(ctx)
	if err != nil {
		return security.Visibility{}, err
	}
	vis := scope.Visibility()
	if branch == nil {
		return vis, nil
	}
	if !scope.CanSee(branch) {
		return vis, apperror.NewOutOfBranchScope("branch", branch.String())
	}
	return security.Visibility{BranchID: branch}, nil
}

// EnrollmentSummary counts enrollments per course and status.
func (s *Service) EnrollmentSummary(ctx context.Context, f EnrollmentSummaryFilter) (*EnrollmentSummary, error) {
	vis, err := visibility(ctx, f.BranchID)
	if err != nil {
		return nil, err
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return nil, apperror.NewFieldValidation("from", "from must be before to")
	}
	f.Limit = clamp(f.Limit, 100, 1000)

	out := &EnrollmentSummary{Items: []EnrollmentSummaryItem{}, GeneratedAt: s.clock().UTC()}
	if vis.None() {
		return out, nil
	}

	items, err := s.repo.EnrollmentSummary(ctx, vis, f)
	if err != nil {
		return nil, fmt.Errorf("enrollment summary: %w", err)
	}
	for i := range items {
		it := &items[i]
		if it.Total > 0 {
			it.CompletionRate = math.Round(float64(it.Completed)*10000/float64(it.Total)) / 100
		}
		out.TotalEnrollments += it.Total
	}
	out.Items = items
	out.TotalCourses = len(items)
	return out, nil
}

// Revenue sums paid orders per day and currency.
func (s *Service) Revenue(ctx context.Context, f RevenueFilter) (*RevenueReport, error) {
	if f.From.IsZero() || f.To.IsZero() {
		return nil, apperror.NewValidation("from and to are required")
	}
	if !f.From.Before(f.To) {
		return nil, apperror.NewFieldValidation("from", "from must be before to")
	}
	if f.To.Sub(f.From) > MaxRevenueSpan {
		return nil, apperror.NewFieldValidation("to", "revenue reports cover at most one year")
	}
	f.Currency = strings.ToUpper(strings.TrimSpace(f.Currency))

	vis, err := visibility(ctx, f.BranchID)
	if err != nil {
		return nil, err
	}

	out := &RevenueReport{From: f.From, To: f.To, Items: []RevenueItem{}, Totals: []RevenueTotal{}}
	if vis.None() {
		return out, nil
	}

	items, err := s.repo.Revenue(ctx, vis, f)
	if err != nil {
		return nil, fmt.Errorf("revenue report: %w", err)
	}
	out.Items = items
	out.Totals = totalsByCurrency(items)
	return out, nil
}

func totalsByCurrency(items []RevenueItem) []RevenueTotal {
	byCode := make(map[string]*RevenueTotal)
	for _, it := range items {
		t, ok := byCode[it.CurrencyCode]
		if !ok {
			t = &RevenueTotal{CurrencyCode: it.CurrencyCode, Discount: decimal.Zero, Total: decimal.Zero}
			byCode[it.CurrencyCode] = t
		}
		t.Orders += it.Orders
		t.Discount = t.Discount.Add(it.Discount)
		t.Total = t.Total.Add(it.Total)
	}
	out := make([]RevenueTotal, 0, len(byCode))
	for _, t := range byCode {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CurrencyCode < out[j].CurrencyCode })
	return out
}

// ActivityJournal returns enrollment events, newest first by default.
func (s *Service) ActivityJournal(ctx context.Context, f ActivityFilter) (*ActivityJournal, error) {
	vis, err := visibility(ctx, nil)
	if err != nil {
		return nil, err
	}
	f.Limit = clamp(f.Limit, 50, 500)
	if f.Offset < 0 {
		f.Offset = 0
	}

	journal := &ActivityJournal{Items: []ActivityItem{}, Limit: f.Limit, Offset: f.Offset}
	if vis.None() {
		return journal, nil
	}

	items, total, err := s.repo.ActivityJournal(ctx, vis, f)
	if err != nil {
		return nil, fmt.Errorf("activity journal: %w", err)
	}
	journal.Items = items
	journal.TotalCount = total

	// The summary is only worth its query on the first page.
	if f.Offset == 0 {
		if summary, err := s.repo.ActivityByType(ctx, vis, f); err == nil {
			journal.Summary = summary
		}
	}
	return journal, nil
}

func clamp(limit, def, ceiling int) int {
	switch {
	case limit <= 0:
		return def
	case limit > ceiling:
		return ceiling
	}
	return limit
}
