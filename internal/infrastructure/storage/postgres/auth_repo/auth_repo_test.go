package auth_repo

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/id"
	"lms/internal/domain/auth"
	"lms/internal/infrastructure/storage/postgres"
)

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *postgres.TxManager) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, postgres.NewTxManagerFromDB(mock)
}

func TestUserTokenRepo_InvalidateOutstanding(t *testing.T) {
	mock, txm := newMock(t)
	repo := NewUserTokenRepo(txm)
	user := id.New()
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE user_tokens SET used_at = \$1, updated_at = \$2, version = version \+ 1 WHERE purpose = \$3 AND used_at IS NULL AND user_id = \$4`).
		WithArgs(now, now, auth.PurposeResetPassword, user.String()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.InvalidateOutstanding(context.Background(), user, auth.PurposeResetPassword, now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserTokenRepo_FindForUserPrefersUnused(t *testing.T) {
	mock, txm := newMock(t)
	repo := NewUserTokenRepo(txm)
	user := id.New()

	mock.ExpectQuery(`SELECT .+ FROM user_tokens WHERE purpose = \$1 AND token = \$2 AND user_id = \$3 ORDER BY used_at IS NOT NULL, created_at DESC LIMIT 1`).
		WithArgs(auth.PurposeLoginOTP, "123456", user.String()).
		WillReturnRows(pgxmock.NewRows(repo.Columns()))

	_, err := repo.FindForUser(context.Background(), user, auth.PurposeLoginOTP, "123456")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_RolesAndPermissions(t *testing.T) {
	mock, txm := newMock(t)
	repo := NewUserRepo(txm)
	user, role := id.New(), id.New()

	mock.ExpectExec(`INSERT INTO user_roles .+ ON CONFLICT \(user_id, role_id\) DO NOTHING`).
		WithArgs(user, role, (*id.ID)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	require.NoError(t, repo.AssignRole(context.Background(), user, role, nil))

	mock.ExpectQuery(`SELECT DISTINCT p.code`).
		WithArgs(user).
		WillReturnRows(pgxmock.NewRows([]string{"code"}).AddRow("courses:read").AddRow("courses:write"))
	perms, err := repo.LoadPermissions(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, []string{"courses:read", "courses:write"}, perms)

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM users WHERE email = \$1\)`).
		WithArgs("ada@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	taken, err := repo.Exists(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.True(t, taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}
