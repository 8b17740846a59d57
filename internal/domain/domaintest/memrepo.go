// Package domaintest provides in-memory doubles for domain service tests.
package domaintest

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
	"lms/internal/domain"
	"lms/internal/infrastructure/storage/postgres"
)

// InlineTx runs the callback directly; there is nothing to commit.
type InlineTx struct{}

// RunInTransaction implements tx.Manager.
func (InlineTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// MemRepo is a map-backed domain.Repository. Rows are copied on the way in
// and out so tests observe only what was written.
type MemRepo[T entity.Entity] struct {
	mu    sync.Mutex
	name  string
	rows  map[id.ID]T
	order []id.ID
	clone func(T) T
}

// NewMemRepo creates an empty repository. clone must return a deep enough
// copy of a row for the test at hand.
func NewMemRepo[T entity.Entity](name string, clone func(T) T) *MemRepo[T] {
	return &MemRepo[T]{name: name, rows: make(map[id.ID]T), clone: clone}
}

func (r *MemRepo[T]) Create(ctx context.Context, e T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[e.GetID()]; ok {
		return apperror.NewDuplicate(r.name, "id", e.GetID().String())
	}
	r.rows[e.GetID()] = r.clone(e)
	r.order = append(r.order, e.GetID())
	return nil
}

func (r *MemRepo[T]) GetByID(ctx context.Context, key id.ID) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[key]
	if !ok {
		var zero T
		return zero, apperror.NewNotFound(r.name, key.String())
	}
	return r.clone(e), nil
}

func (r *MemRepo[T]) GetForUpdate(ctx context.Context, key id.ID) (T, error) {
	return r.GetByID(ctx, key)
}

func (r *MemRepo[T]) Update(ctx context.Context, e T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[e.GetID()]; !ok {
		return apperror.NewNotFound(r.name, e.GetID().String())
	}
	if v, ok := any(e).(interface{ BumpVersion() }); ok {
		v.BumpVersion()
	}
	r.rows[e.GetID()] = r.clone(e)
	return nil
}

func (r *MemRepo[T]) Deactivate(ctx context.Context, key id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[key]
	if !ok {
		return apperror.NewNotFound(r.name, key.String())
	}
	if d, ok := any(e).(interface{ Deactivate() }); ok {
		d.Deactivate()
	}
	return nil
}

func (r *MemRepo[T]) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[T], error) {
	all := r.Find(func(e T) bool { return r.matches(e, f) })
	out := domain.ListResult[T]{Items: []T{}, TotalCount: int64(len(all)), Limit: f.Limit, Offset: f.Offset}
	for i, e := range all {
		if i < f.Offset {
			continue
		}
		if f.Limit > 0 && len(out.Items) >= f.Limit {
			break
		}
		out.Items = append(out.Items, e)
	}
	return out, nil
}

func (r *MemRepo[T]) Exists(ctx context.Context, key id.ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[key]
	return ok, nil
}

// Find returns copies of the rows accepted by match, in insertion order.
func (r *MemRepo[T]) Find(match func(T) bool) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []T
	for _, key := range r.order {
		e := r.rows[key]
		if match(e) {
			out = append(out, r.clone(e))
		}
	}
	return out
}

// FindOne returns the first row accepted by match or a not found error.
func (r *MemRepo[T]) FindOne(match func(T) bool) (T, error) {
	rows := r.Find(match)
	if len(rows) == 0 {
		var zero T
		return zero, apperror.NewNotFound(r.name, "matching query")
	}
	return rows[0], nil
}

// Len returns the number of stored rows.
func (r *MemRepo[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *MemRepo[T]) matches(e T, f domain.ListFilter) bool {
	cols := postgres.StructToMap(e)
	if !f.IncludeInactive {
		if active, ok := cols["active"].(bool); ok && !active {
			return false
		}
	}
	if scoped, ok := any(e).(entity.BranchScoped); ok && !f.Visibility.All {
		b := scoped.GetBranchID()
		if f.Visibility.BranchID == nil || b == nil || *b != *f.Visibility.BranchID {
			return false
		}
	}
	if len(f.IDs) > 0 {
		found := false
		for _, key := range f.IDs {
			found = found || key == e.GetID()
		}
		if !found {
			return false
		}
	}
	keys := make([]string, 0, len(f.Conditions))
	for k := range f.Conditions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !reflect.DeepEqual(deref(cols[k]), deref(f.Conditions[k])) {
			return false
		}
	}
	return true
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

var _ domain.Repository[entity.Entity] = (*MemRepo[entity.Entity])(nil)
