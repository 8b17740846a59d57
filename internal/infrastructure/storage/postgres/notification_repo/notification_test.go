package notification_repo

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/id"
	"lms/internal/domain/notifications"
	"lms/internal/infrastructure/storage/postgres"
)

func newRepo(t *testing.T) (*Repo, pgxmock.PgxPoolIface, *postgres.TxManager) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	txm := postgres.NewTxManagerFromDB(mock)
	return New(txm), mock, txm
}

func TestRepo_MarkAllRead(t *testing.T) {
	repo, mock, _ := newRepo(t)
	user := id.New()
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE notifications SET read_at = \$1, status = CASE WHEN status = \$2 THEN \$3 ELSE status END, updated_at = \$4, version = version \+ 1 WHERE read_at IS NULL AND user_id = \$5`).
		WithArgs(now, notifications.StatusUnread, notifications.StatusRead, now, user.String()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 4))

	n, err := repo.MarkAllRead(context.Background(), user, now)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_CountUnread(t *testing.T) {
	repo, mock, _ := newRepo(t)
	user := id.New()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notifications WHERE active = \$1 AND read_at IS NULL AND user_id = \$2`).
		WithArgs(true, user.String()).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	n, err := repo.CountUnread(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_CreateManyUsesCopy(t *testing.T) {
	repo, mock, txm := newRepo(t)
	batch := []*notifications.Notification{
		notifications.NewNotification(id.New(), "Session moved", ""),
		notifications.NewNotification(id.New(), "Session moved", ""),
	}

	_, err := repo.CreateMany(context.Background(), batch)
	assert.Error(t, err, "COPY needs a transaction")

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL statement_timeout").WillReturnResult(pgxmock.NewResult("SET", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"notifications"}, repo.Columns()).WillReturnResult(2)
	mock.ExpectCommit()

	var n int64
	err = txm.RunInTransaction(context.Background(), func(ctx context.Context) error {
		var err error
		n, err = repo.CreateMany(ctx, batch)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
