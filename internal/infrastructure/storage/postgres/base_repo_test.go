package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
	"lms/internal/core/security"
	"lms/internal/domain"
	"lms/internal/domain/filter"
)

func newCourseRepo(t *testing.T) (*BaseRepo[*mockCourse], pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	repo := NewBaseRepo(NewTxManagerFromDB(mock), "courses",
		func() *mockCourse { return &mockCourse{} },
		WithSearch("title", "slug"),
	)
	return repo, mock
}

// anyArgs matches n arguments of any value.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestBaseRepo_AdvancedFilters(t *testing.T) {
	repo, _ := newCourseRepo(t)

	tests := []struct {
		name     string
		item     filter.Item
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "greater",
			item:     filter.Item{Field: "version", Operator: filter.Greater, Value: 10},
			wantSQL:  "SELECT id FROM courses WHERE version > $1",
			wantArgs: []any{10},
		},
		{
			name:     "contains",
			item:     filter.Item{Field: "title", Operator: filter.Contains, Value: "go"},
			wantSQL:  "SELECT id FROM courses WHERE title ILIKE $1",
			wantArgs: []any{"%go%"},
		},
		{
			name:     "null",
			item:     filter.Item{Field: "archived_at", Operator: filter.IsNull},
			wantSQL:  "SELECT id FROM courses WHERE archived_at IS NULL",
			wantArgs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := repo.Builder().Select("id").From("courses")
			q, err := repo.applyAdvancedFilters(base, []filter.Item{tt.item})
			require.NoError(t, err)

			sql, args, err := q.ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}

	_, err := repo.applyAdvancedFilters(repo.Select(), []filter.Item{{Field: "password_hash", Operator: filter.Equal, Value: "x"}})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestBaseRepo_ParseOrderBy(t *testing.T) {
	repo, _ := newCourseRepo(t)

	got, err := repo.parseOrderBy("")
	require.NoError(t, err)
	assert.Equal(t, "created_at DESC", got)

	got, err = repo.parseOrderBy("-title")
	require.NoError(t, err)
	assert.Equal(t, "title DESC", got)

	_, err = repo.parseOrderBy("title; DROP TABLE courses")
	assert.Error(t, err)
}

func TestBaseRepo_ListAppliesBranchVisibility(t *testing.T) {
	repo, mock := newCourseRepo(t)
	branch := id.New()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM \(SELECT .+ FROM courses WHERE active = \$1 AND branch_id = \$2\) AS sub`).
		WithArgs(true, branch.String()).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery(`SELECT .+ FROM courses WHERE active = \$1 AND branch_id = \$2 ORDER BY created_at DESC LIMIT 50`).
		WithArgs(true, branch.String()).
		WillReturnRows(pgxmock.NewRows(repo.Columns()).AddRow(
			id.New(), true, false, (*id.ID)(nil), 1, created, created,
			&branch, "Go", "go", (*time.Time)(nil),
		))

	f := domain.DefaultListFilter()
	f.Visibility = security.Visibility{BranchID: &branch}

	res, err := repo.List(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.TotalCount)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "go", res.Items[0].Slug)
	assert.Equal(t, &branch, res.Items[0].BranchID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseRepo_ListNoBranchMatchesNothing(t *testing.T) {
	repo, mock := newCourseRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM \(SELECT .+ FROM courses WHERE active = \$1 AND FALSE\) AS sub`).
		WithArgs(true).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(`SELECT .+ FROM courses WHERE active = \$1 AND FALSE`).
		WithArgs(true).
		WillReturnRows(pgxmock.NewRows(repo.Columns()))

	res, err := repo.List(context.Background(), domain.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseRepo_UpdateOptimisticLock(t *testing.T) {
	repo, mock := newCourseRepo(t)
	c := &mockCourse{BaseEntity: entity.BaseEntity{ID: id.New(), Active: true, Version: 3}, Title: "Go", Slug: "go"}

	// seven mutable columns, then the id and the expected version
	mock.ExpectExec(`UPDATE courses SET .+ version = version \+ 1 WHERE id = \$8 AND version = \$9`).
		WithArgs(append(anyArgs(7), c.ID.String(), 3)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), c)
	assert.True(t, apperror.HasCode(err, apperror.CodeConcurrentModification))
	assert.Equal(t, 3, c.Version)

	mock.ExpectExec(`UPDATE courses SET`).
		WithArgs(append(anyArgs(7), c.ID.String(), 3)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.Update(context.Background(), c))
	assert.Equal(t, 4, c.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseRepo_CreateDuplicate(t *testing.T) {
	repo, mock := newCourseRepo(t)

	mock.ExpectExec(`INSERT INTO courses`).
		WithArgs(anyArgs(len(repo.Columns()))...).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "uniq_courses_branch_slug"})

	err := repo.Create(context.Background(), &mockCourse{BaseEntity: entity.NewBaseEntity(), Slug: "go"})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseRepo_Deactivate(t *testing.T) {
	repo, mock := newCourseRepo(t)
	target := id.New()

	mock.ExpectExec(`UPDATE courses SET active = \$1, version = version \+ 1, updated_at = \$2 WHERE id = \$3`).
		WithArgs(false, pgxmock.AnyArg(), target.String()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Deactivate(context.Background(), target)
	assert.True(t, apperror.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
