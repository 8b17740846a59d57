package assessment_repo

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
	"lms/internal/domain/assessments"
	"lms/internal/infrastructure/storage/postgres"
)

func newRepo(t *testing.T) (*AttemptRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewAttemptRepo(postgres.NewTxManagerFromDB(mock)), mock
}

func TestAttemptRepo_CountByStudent(t *testing.T) {
	repo, mock := newRepo(t)
	quiz, user := id.New(), id.New()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM quiz_attempts WHERE quiz_id = \$1 AND user_id = \$2`).
		WithArgs(quiz.String(), user.String()).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	n, err := repo.CountByStudent(context.Background(), quiz, user)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepo_FindStarted(t *testing.T) {
	repo, mock := newRepo(t)
	quiz, user := id.New(), id.New()

	mock.ExpectQuery(`SELECT .+ FROM quiz_attempts WHERE quiz_id = \$1 AND status = \$2 AND user_id = \$3 ORDER BY started_at DESC LIMIT 1$`).
		WithArgs(quiz.String(), assessments.AttemptStarted, user.String()).
		WillReturnRows(pgxmock.NewRows(repo.Columns()))

	_, err := repo.FindStarted(context.Background(), quiz, user)
	assert.True(t, apperror.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
