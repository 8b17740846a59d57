package numerator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"lms/internal/core/apperror"
	counter "lms/pkg/numerator"
)

// MemoryGenerator is an in-process Generator backed by counter.MemoryStore.
// Use in unit tests to avoid database dependencies.
type MemoryGenerator struct {
	store *counter.MemoryStore
	mu    sync.Mutex
	rows  map[string]*Sequence
}

// NewMemoryGenerator creates an empty generator.
func NewMemoryGenerator() *MemoryGenerator {
	return &MemoryGenerator{store: counter.NewMemoryStore(), rows: make(map[string]*Sequence)}
}

// SetClock overrides the clock used for yearly resets.
func (g *MemoryGenerator) SetClock(now func() time.Time) {
	g.store.SetClock(now)
}

// Provision implements Generator.
func (g *MemoryGenerator) Provision(ctx context.Context, scope Scope, cfg Config) (*Sequence, error) {
	row := NewSequence(scope, cfg)
	if err := row.Validate(ctx); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.store.Provision(scope.Key(), row.Sequence); err != nil {
		return nil, mapMemoryError(err, scope)
	}
	g.rows[scope.Key()] = row
	return row, nil
}

// Peek implements Generator.
func (g *MemoryGenerator) Peek(ctx context.Context, scope Scope) (string, error) {
	v, err := g.store.Peek(scope.Key())
	return v, mapMemoryError(err, scope)
}

// Consume implements Generator.
func (g *MemoryGenerator) Consume(ctx context.Context, scope Scope) (string, error) {
	v, err := g.store.Consume(scope.Key())
	return v, mapMemoryError(err, scope)
}

// Get implements Generator.
func (g *MemoryGenerator) Get(ctx context.Context, scope Scope) (*Sequence, error) {
	state, err := g.store.Get(scope.Key())
	if err != nil {
		return nil, mapMemoryError(err, scope)
	}
	g.mu.Lock()
	row := *g.rows[scope.Key()]
	g.mu.Unlock()
	row.Sequence = state
	return &row, nil
}

// List implements Lister.
func (g *MemoryGenerator) List(ctx context.Context, f ListFilter) ([]*Sequence, error) {
	out := []*Sequence{}
	if f.None() {
		return out, nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for key, row := range g.rows {
		if !f.Match(row.OrganizationID, row.BranchID) {
			continue
		}
		state, err := g.store.Get(key)
		if err != nil {
			return nil, mapMemoryError(err, row.Scope())
		}
		c := *row
		c.Sequence = state
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SeqType != out[j].SeqType {
			return out[i].SeqType < out[j].SeqType
		}
		return out[i].Scope().Key() < out[j].Scope().Key()
	})
	return out, nil
}

func mapMemoryError(err error, scope Scope) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, counter.ErrNotFound):
		return apperror.NewSequenceNotFound(string(scope.Type), scope.OrganizationID, scope.BranchID)
	case errors.Is(err, counter.ErrExists):
		return apperror.NewDuplicate("number_sequence", "scope", scope.Key())
	default:
		return apperror.NewValidation(err.Error())
	}
}

// Ensure compile-time interface compliance.
var (
	_ Generator = (*MemoryGenerator)(nil)
	_ Lister    = (*MemoryGenerator)(nil)
)
