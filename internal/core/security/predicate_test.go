package security

import (
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/id"
)

func TestPredicate(t *testing.T) {
	branch := id.New()

	assert.Nil(t, Predicate(Visibility{All: true}, "branch_id"))

	sql, args, err := Predicate(Visibility{BranchID: &branch}, "c.branch_id").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "c.branch_id = ?", sql)
	assert.Equal(t, []any{branch.String()}, args)

	sql, args, err = Predicate(Visibility{}, "branch_id").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "FALSE", sql)
	assert.Empty(t, args)
}

func TestApplyVisibility(t *testing.T) {
	branch := id.New()
	base := sq.Select("id").From("courses").PlaceholderFormat(sq.Dollar)

	sql, _, err := ApplyVisibility(base, Visibility{All: true}, "branch_id").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM courses", sql)

	sql, args, err := ApplyVisibility(base, NewBranchScope("u", nil, &branch, false).Visibility(), "branch_id").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM courses WHERE branch_id = $1", sql)
	assert.Equal(t, []any{branch.String()}, args)
}
