package domain

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
	"lms/internal/core/security"
)

type note struct {
	entity.BaseEntity
	entity.BranchOwned
	Title string
}

func (n *note) Validate(ctx context.Context) error {
	if n.Title == "" {
		return apperror.NewFieldValidation("title", "title is required")
	}
	return nil
}

func (n *note) EntityName() string { return "note" }

// tag has no branch concept.
type tag struct {
	entity.BaseEntity
	Name string
}

func (t *tag) Validate(ctx context.Context) error { return nil }

type memRepo[T entity.Entity] struct {
	mu    sync.Mutex
	rows  map[id.ID]T
	clone func(T) T
}

func newMemRepo[T entity.Entity](clone func(T) T) *memRepo[T] {
	return &memRepo[T]{rows: make(map[id.ID]T), clone: clone}
}

func (r *memRepo[T]) Create(ctx context.Context, e T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[e.GetID()]; ok {
		return apperror.NewDuplicate("note", "id", e.GetID().String())
	}
	r.rows[e.GetID()] = r.clone(e)
	return nil
}

func (r *memRepo[T]) GetByID(ctx context.Context, key id.ID) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[key]
	if !ok {
		var zero T
		return zero, apperror.NewNotFound("note", key.String())
	}
	return r.clone(e), nil
}

func (r *memRepo[T]) GetForUpdate(ctx context.Context, key id.ID) (T, error) {
	return r.GetByID(ctx, key)
}

func (r *memRepo[T]) Update(ctx context.Context, e T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[e.GetID()]; !ok {
		return apperror.NewNotFound("note", e.GetID().String())
	}
	r.rows[e.GetID()] = r.clone(e)
	return nil
}

func (r *memRepo[T]) Deactivate(ctx context.Context, key id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[key]
	if !ok {
		return apperror.NewNotFound("note", key.String())
	}
	if d, ok := any(e).(interface{ Deactivate() }); ok {
		d.Deactivate()
	}
	return nil
}

func (r *memRepo[T]) List(ctx context.Context, f ListFilter) (ListResult[T], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := ListResult[T]{Items: []T{}, Limit: f.Limit, Offset: f.Offset}
	for _, e := range r.rows {
		if scoped, ok := any(e).(entity.BranchScoped); ok && !f.Visibility.All {
			b := scoped.GetBranchID()
			if f.Visibility.BranchID == nil || b == nil || *b != *f.Visibility.BranchID {
				continue
			}
		}
		out.Items = append(out.Items, r.clone(e))
	}
	out.TotalCount = int64(len(out.Items))
	return out, nil
}

func (r *memRepo[T]) Exists(ctx context.Context, key id.ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[key]
	return ok, nil
}

type inlineTx struct{}

func (inlineTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func cloneNote(n *note) *note {
	c := *n
	return &c
}

// acme is an organization with a main branch and two satellites.
type acme struct {
	org, main, downtown, uptown id.ID
}

func newAcme() acme {
	return acme{org: id.New(), main: id.New(), downtown: id.New(), uptown: id.New()}
}

func (a acme) as(branch id.ID) context.Context {
	scope := security.NewBranchScope(id.New().String(), id.Ptr(a.org), id.Ptr(branch), branch == a.main)
	return security.WithScope(context.Background(), scope)
}

func newNoteService() (*Service[*note], *memRepo[*note]) {
	repo := newMemRepo(cloneNote)
	svc := NewService(ServiceConfig[*note]{
		Repo:       repo,
		TxManager:  inlineTx{},
		EntityName: "note",
		Clock:      func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) },
	})
	return svc, repo
}

func newNote(title string, branch *id.ID) *note {
	n := &note{BaseEntity: entity.NewBaseEntity(), Title: title}
	n.BranchID = branch
	return n
}

func TestService_BranchVisibilityScenario(t *testing.T) {
	a := newAcme()
	svc, _ := newNoteService()

	downtownNote := newNote("downtown intro", nil)
	require.NoError(t, svc.Create(a.as(a.downtown), downtownNote))
	uptownNote := newNote("uptown intro", nil)
	require.NoError(t, svc.Create(a.as(a.uptown), uptownNote))
	mainNote := newNote("main intro", nil)
	require.NoError(t, svc.Create(a.as(a.main), mainNote))

	assert.Equal(t, a.downtown, *downtownNote.BranchID)
	assert.Equal(t, a.uptown, *uptownNote.BranchID)
	assert.Equal(t, a.main, *mainNote.BranchID)

	t.Run("main branch lists everything", func(t *testing.T) {
		res, err := svc.List(a.as(a.main), DefaultListFilter())
		require.NoError(t, err)
		assert.Len(t, res.Items, 3)
	})

	t.Run("downtown lists only its own rows", func(t *testing.T) {
		res, err := svc.List(a.as(a.downtown), DefaultListFilter())
		require.NoError(t, err)
		require.Len(t, res.Items, 1)
		assert.Equal(t, downtownNote.ID, res.Items[0].ID)
	})

	t.Run("uptown cannot read downtown row", func(t *testing.T) {
		_, err := svc.GetByID(a.as(a.uptown), downtownNote.ID)
		require.Error(t, err)
		assert.True(t, apperror.HasCode(err, apperror.CodeBranchScope))
		assert.Equal(t, 403, apperror.GetHTTPStatus(err))
	})

	t.Run("main reads any row", func(t *testing.T) {
		got, err := svc.GetByID(a.as(a.main), uptownNote.ID)
		require.NoError(t, err)
		assert.Equal(t, "uptown intro", got.Title)
	})

	t.Run("caller without branch sees an empty page", func(t *testing.T) {
		ctx := security.WithScope(context.Background(), security.NewBranchScope(id.New().String(), nil, nil, false))
		res, err := svc.List(ctx, DefaultListFilter())
		require.NoError(t, err)
		assert.Empty(t, res.Items)

		_, err = svc.GetByID(ctx, downtownNote.ID)
		assert.Equal(t, 403, apperror.GetHTTPStatus(err))
	})

	t.Run("anonymous caller is rejected", func(t *testing.T) {
		_, err := svc.List(context.Background(), DefaultListFilter())
		assert.Equal(t, 401, apperror.GetHTTPStatus(err))
	})
}

func TestService_CreateBranchInjection(t *testing.T) {
	a := newAcme()
	svc, _ := newNoteService()

	t.Run("non-main caller is forced into own branch", func(t *testing.T) {
		n := newNote("x", id.Ptr(a.uptown))
		require.NoError(t, svc.Create(a.as(a.downtown), n))
		assert.Equal(t, a.downtown, *n.BranchID)
	})

	t.Run("main caller keeps explicit branch", func(t *testing.T) {
		n := newNote("x", id.Ptr(a.uptown))
		require.NoError(t, svc.Create(a.as(a.main), n))
		assert.Equal(t, a.uptown, *n.BranchID)
	})

	t.Run("main caller defaults to own branch", func(t *testing.T) {
		n := newNote("x", nil)
		require.NoError(t, svc.Create(a.as(a.main), n))
		assert.Equal(t, a.main, *n.BranchID)
	})

	t.Run("validation runs after injection", func(t *testing.T) {
		err := svc.Create(a.as(a.main), newNote("", nil))
		assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	})

	t.Run("actor is stamped", func(t *testing.T) {
		ctx := a.as(a.main)
		n := newNote("x", nil)
		require.NoError(t, svc.Create(ctx, n))
		require.NotNil(t, n.UserAddID)
		assert.Equal(t, security.GetScope(ctx).UserID, n.UserAddID.String())
	})
}

func TestService_UpdateCannotEscapeScope(t *testing.T) {
	a := newAcme()
	svc, repo := newNoteService()

	own := newNote("mine", nil)
	require.NoError(t, svc.Create(a.as(a.downtown), own))

	own.BranchID = id.Ptr(a.uptown)
	own.Title = "moved"
	require.NoError(t, svc.Update(a.as(a.downtown), own))

	stored, err := repo.GetByID(context.Background(), own.ID)
	require.NoError(t, err)
	assert.Equal(t, a.downtown, *stored.BranchID, "branch is forced back on update")
	assert.Equal(t, "moved", stored.Title)

	// main may move rows between branches
	stored.BranchID = id.Ptr(a.uptown)
	require.NoError(t, svc.Update(a.as(a.main), stored))
	moved, _ := repo.GetByID(context.Background(), own.ID)
	assert.Equal(t, a.uptown, *moved.BranchID)

	// the downtown caller no longer sees it
	moved.Title = "again"
	err = svc.Update(a.as(a.downtown), moved)
	assert.True(t, apperror.HasCode(err, apperror.CodeBranchScope))
}

func TestService_DeleteRunsHooks(t *testing.T) {
	a := newAcme()
	svc, repo := newNoteService()

	n := newNote("to delete", nil)
	require.NoError(t, svc.Create(a.as(a.downtown), n))

	var before, after int
	svc.Hooks().OnBeforeDelete(func(ctx context.Context, e *note) error { before++; return nil })
	svc.Hooks().On(AfterDelete, func(ctx context.Context, e *note) error { after++; return errors.New("ignored") })

	err := svc.Delete(a.as(a.uptown), n.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeBranchScope))
	assert.Zero(t, before)

	require.NoError(t, svc.Delete(a.as(a.downtown), n.ID))
	assert.Equal(t, 1, before)
	assert.Equal(t, 1, after)

	stored, _ := repo.GetByID(context.Background(), n.ID)
	assert.False(t, stored.Active)
}

func TestService_BeforeHookAbortsCreate(t *testing.T) {
	a := newAcme()
	svc, repo := newNoteService()
	svc.Hooks().OnBeforeCreate(func(ctx context.Context, e *note) error {
		return apperror.NewConflict("nope")
	})

	n := newNote("x", nil)
	err := svc.Create(a.as(a.main), n)
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))
	ok, _ := repo.Exists(context.Background(), n.ID)
	assert.False(t, ok)
}

func TestService_UnscopedTypeIgnoresBranch(t *testing.T) {
	a := newAcme()
	repo := newMemRepo(func(t *tag) *tag { c := *t; return &c })
	svc := NewService(ServiceConfig[*tag]{Repo: repo, TxManager: inlineTx{}, EntityName: "tag"})

	tg := &tag{BaseEntity: entity.NewBaseEntity(), Name: "go"}
	require.NoError(t, svc.Create(a.as(a.downtown), tg))

	ctx := security.WithScope(context.Background(), security.NewBranchScope(id.New().String(), nil, nil, false))
	res, err := svc.List(ctx, DefaultListFilter())
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)

	_, err = svc.GetByID(a.as(a.uptown), tg.ID)
	assert.NoError(t, err)
}
