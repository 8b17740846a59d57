// Package notification_repo provides the PostgreSQL notification repository.
package notification_repo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"lms/internal/core/id"
	"lms/internal/domain/notifications"
	"lms/internal/infrastructure/storage/postgres"
)

// Repo implements notifications.Repository.
type Repo struct {
	*postgres.BaseRepo[*notifications.Notification]
	txm *postgres.TxManager
}

func New(txm *postgres.TxManager) *Repo {
	return &Repo{
		BaseRepo: postgres.NewBaseRepo(txm, "notifications", func() *notifications.Notification { return &notifications.Notification{} },
			postgres.WithSearch("title", "body")),
		txm: txm,
	}
}

func (r *Repo) MarkAllRead(ctx context.Context, userID id.ID, now time.Time) (int64, error) {
	return r.Exec(ctx, r.Builder().Update(r.Table()).
		Set("read_at", now).
		Set("status", sq.Expr("CASE WHEN status = ? THEN ? ELSE status END", notifications.StatusUnread, notifications.StatusRead)).
		Set("updated_at", now).
		Set("version", sq.Expr("version + 1")).
		Where(sq.Eq{"user_id": userID, "read_at": nil}))
}

func (r *Repo) CountUnread(ctx context.Context, userID id.ID) (int64, error) {
	query, args, err := r.Builder().Select("COUNT(*)").
		From(r.Table()).
		Where(sq.Eq{"user_id": userID, "read_at": nil, "active": true}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int64
	if err := r.Querier(ctx).QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, postgres.MapError(err, r.Table())
	}
	return n, nil
}

// CreateMany copies the batch in with COPY.
func (r *Repo) CreateMany(ctx context.Context, items []*notifications.Notification) (int64, error) {
	return postgres.CopyRows(ctx, r.txm, r.Table(), items)
}

var _ notifications.Repository = (*Repo)(nil)
