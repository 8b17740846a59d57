// Package review_repo provides the PostgreSQL course review repository.
package review_repo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lms/internal/core/id"
	"lms/internal/domain/reviews"
	"lms/internal/infrastructure/storage/postgres"
)

var counted = []reviews.Status{reviews.StatusPending, reviews.StatusApproved, reviews.StatusHidden}

// Repo implements reviews.Repository.
type Repo struct {
	*postgres.BaseRepo[*reviews.Review]
}

func New(txm *postgres.TxManager) *Repo {
	return &Repo{
		BaseRepo: postgres.NewBaseRepo(txm, "course_reviews", func() *reviews.Review { return &reviews.Review{} },
			postgres.WithSearch("title", "body"),
			postgres.WithDefaultOrder("created_at DESC")),
	}
}

func (r *Repo) FindCounted(ctx context.Context, courseID, userID id.ID) (*reviews.Review, error) {
	return r.FindOne(ctx, r.Select().
		Where(sq.Eq{"course_id": courseID, "user_id": userID, "active": true, "status": counted}).
		Limit(1))
}

type ratingRow struct {
	Rating int   `db:"rating"`
	Count  int64 `db:"count"`
}

func (r *Repo) RatingCounts(ctx context.Context, courseID id.ID) (map[int]int64, error) {
	query, args, err := r.Builder().
		Select("rating", "COUNT(*) AS count").
		From(r.Table()).
		Where(sq.Eq{"course_id": courseID, "active": true, "status": reviews.StatusApproved}).
		GroupBy("rating").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []ratingRow
	if err := pgxscan.Select(ctx, r.Querier(ctx), &rows, query, args...); err != nil {
		return nil, postgres.MapError(err, r.Table())
	}
	out := make(map[int]int64, len(rows))
	for _, row := range rows {
		out[row.Rating] = row.Count
	}
	return out, nil
}

var _ reviews.Repository = (*Repo)(nil)
