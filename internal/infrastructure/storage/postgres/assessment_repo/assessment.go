// Package assessment_repo provides PostgreSQL repositories for quizzes and
// quiz attempts.
package assessment_repo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"lms/internal/core/id"
	"lms/internal/domain/assessments"
	"lms/internal/infrastructure/storage/postgres"
)

// QuizRepo implements assessments.QuizRepository.
type QuizRepo struct {
	*postgres.BaseRepo[*assessments.Quiz]
}

func NewQuizRepo(txm *postgres.TxManager) *QuizRepo {
	return &QuizRepo{
		BaseRepo: postgres.NewBaseRepo(txm, "quizzes", func() *assessments.Quiz { return &assessments.Quiz{} },
			postgres.WithSearch("title"),
			postgres.WithDefaultOrder("created_at DESC")),
	}
}

// AttemptRepo implements assessments.AttemptRepository.
type AttemptRepo struct {
	*postgres.BaseRepo[*assessments.Attempt]
}

func NewAttemptRepo(txm *postgres.TxManager) *AttemptRepo {
	return &AttemptRepo{
		BaseRepo: postgres.NewBaseRepo(txm, "quiz_attempts", func() *assessments.Attempt { return &assessments.Attempt{} },
			postgres.WithDefaultOrder("started_at DESC")),
	}
}

func (r *AttemptRepo) CountByStudent(ctx context.Context, quizID, userID id.ID) (int, error) {
	query, args, err := r.Builder().
		Select("COUNT(*)").
		From(r.Table()).
		Where(sq.Eq{"quiz_id": quizID, "user_id": userID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	var n int
	if err := r.Querier(ctx).QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, postgres.MapError(err, r.Table())
	}
	return n, nil
}

// FindStarted locks the unfinished attempt when called inside a transaction.
// Two concurrent first starts are caught by the one-started-attempt index.
func (r *AttemptRepo) FindStarted(ctx context.Context, quizID, userID id.ID) (*assessments.Attempt, error) {
	q := r.Select().
		Where(sq.Eq{"quiz_id": quizID, "user_id": userID, "status": assessments.AttemptStarted}).
		OrderBy("started_at DESC").
		Limit(1)
	if r.InTx(ctx) {
		q = q.Suffix("FOR UPDATE")
	}
	return r.FindOne(ctx, q)
}

var (
	_ assessments.QuizRepository    = (*QuizRepo)(nil)
	_ assessments.AttemptRepository = (*AttemptRepo)(nil)
)
