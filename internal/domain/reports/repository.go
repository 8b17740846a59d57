package reports

import (
	"context"

	"lms/internal/core/security"
)

// Repository runs the report queries. Every query is restricted to vis.
type Repository interface {
	EnrollmentSummary(ctx context.Context, vis security.Visibility, f EnrollmentSummaryFilter) ([]EnrollmentSummaryItem, error)
	Revenue(ctx context.Context, vis security.Visibility, f RevenueFilter) ([]RevenueItem, error)

	ActivityJournal(ctx context.Context, vis security.Visibility, f ActivityFilter) ([]ActivityItem, int, error)
	ActivityByType(ctx context.Context, vis security.Visibility, f ActivityFilter) ([]EventTypeSummary, error)
}
