package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
)

type course struct {
	entity.BaseEntity
	entity.BranchOwned
	Title string
}

func (c *course) EntityName() string { return "course" }

type currency struct {
	entity.Catalog
}

func newCourse(title string, branch *id.ID) *course {
	return &course{BaseEntity: entity.NewBaseEntity(), BranchOwned: entity.BranchOwned{BranchID: branch}, Title: title}
}

func TestVisibilityMatrix(t *testing.T) {
	own := id.New()
	other := id.New()

	tests := []struct {
		name      string
		scope     *BranchScope
		rowBranch *id.ID
		want      bool
	}{
		{"main sees other branch", NewBranchScope("u", nil, &own, true), &other, true},
		{"main sees shared row", NewBranchScope("u", nil, &own, true), nil, true},
		{"own branch", NewBranchScope("u", nil, &own, false), &own, true},
		{"other branch", NewBranchScope("u", nil, &own, false), &other, false},
		{"shared row for non-main", NewBranchScope("u", nil, &own, false), nil, false},
		{"no branch resolved", NewBranchScope("u", nil, nil, false), &own, false},
		{"main flag without branch", NewBranchScope("u", nil, nil, true), &own, false},
		{"anonymous", Anonymous(), &own, false},
		{"system", SystemScope(), &other, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.scope.CanSee(tt.rowBranch))
		})
	}
}

func TestResolveVisible_BranchScenario(t *testing.T) {
	main := id.New()
	downtown := id.New()
	uptown := id.New()

	rows := []*course{newCourse("Go 101", &downtown)}

	t.Run("main branch caller sees the row", func(t *testing.T) {
		got, err := ResolveVisible(NewBranchScope("u1", nil, &main, true), rows)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("downtown caller sees the row", func(t *testing.T) {
		got, err := ResolveVisible(NewBranchScope("u2", nil, &downtown, false), rows)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("uptown caller gets an empty list", func(t *testing.T) {
		got, err := ResolveVisible(NewBranchScope("u3", nil, &uptown, false), rows)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("caller without branch gets an empty list", func(t *testing.T) {
		got, err := ResolveVisible(NewBranchScope("u4", nil, nil, false), rows)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("unauthenticated caller is rejected", func(t *testing.T) {
		_, err := ResolveVisible(Anonymous(), rows)
		require.Error(t, err)
		assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))
	})
}

func TestResolveVisible_TypeWithoutBranch(t *testing.T) {
	rows := []*currency{{Catalog: entity.NewCatalog("NPR", "Nepalese rupee")}}

	got, err := ResolveVisible(NewBranchScope("u", nil, nil, false), rows)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestAuthorizeObject(t *testing.T) {
	own := id.New()
	other := id.New()
	row := newCourse("Physics", &other)

	assert.NoError(t, AuthorizeObject(NewBranchScope("u", nil, &own, true), row))

	err := AuthorizeObject(NewBranchScope("u", nil, &own, false), row)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeBranchScope))
	assert.Equal(t, 403, apperror.GetHTTPStatus(err))

	err = AuthorizeObject(NewBranchScope("u", nil, nil, false), row)
	assert.True(t, apperror.HasCode(err, apperror.CodeBranchScope))

	err = AuthorizeObject(Anonymous(), row)
	assert.Equal(t, 401, apperror.GetHTTPStatus(err))

	assert.NoError(t, AuthorizeObject(NewBranchScope("u", nil, nil, false), &currency{}))
}

func TestInjectBranchOnWrite_MainBranch(t *testing.T) {
	own := id.New()
	explicit := id.New()
	scope := NewBranchScope("u", nil, &own, true)

	t.Run("explicit branch is preserved on create", func(t *testing.T) {
		row := newCourse("A", &explicit)
		InjectBranchOnWrite(scope, row, true)
		assert.Equal(t, explicit, *row.BranchID)
	})

	t.Run("omitted branch defaults to caller branch", func(t *testing.T) {
		row := newCourse("B", nil)
		InjectBranchOnWrite(scope, row, true)
		require.NotNil(t, row.BranchID)
		assert.Equal(t, own, *row.BranchID)
	})

	t.Run("explicit branch is preserved on update", func(t *testing.T) {
		row := newCourse("C", &explicit)
		InjectBranchOnWrite(scope, row, false)
		assert.Equal(t, explicit, *row.BranchID)
	})
}

func TestInjectBranchOnWrite_NonMainCannotEscape(t *testing.T) {
	own := id.New()
	foreign := id.New()
	scope := NewBranchScope("u", nil, &own, false)

	for _, isCreate := range []bool{true, false} {
		row := newCourse("A", &foreign)
		InjectBranchOnWrite(scope, row, isCreate)
		assert.Equal(t, own, *row.BranchID, "isCreate=%v", isCreate)

		empty := newCourse("B", nil)
		InjectBranchOnWrite(scope, empty, isCreate)
		require.NotNil(t, empty.BranchID)
		assert.Equal(t, own, *empty.BranchID)
	}
}

func TestInjectBranchOnWrite_NoBranchIsBestEffort(t *testing.T) {
	foreign := id.New()
	row := newCourse("A", &foreign)

	InjectBranchOnWrite(NewBranchScope("u", nil, nil, false), row, true)
	assert.Equal(t, foreign, *row.BranchID)

	orphan := newCourse("B", nil)
	InjectBranchOnWrite(NewBranchScope("u", nil, nil, false), orphan, true)
	assert.Nil(t, orphan.BranchID)
}

func TestInjectBranchOnWrite_CopiesCallerBranch(t *testing.T) {
	own := id.New()
	scope := NewBranchScope("u", nil, &own, false)
	row := newCourse("A", nil)

	InjectBranchOnWrite(scope, row, true)
	*row.BranchID = id.New()

	assert.Equal(t, own, *scope.BranchID)
}
