package settings

import (
	"context"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
	"lms/internal/core/numerator"
	"lms/internal/domain"
	"lms/pkg/logger"
)

// SequenceStore is a generator that can also enumerate its series.
type SequenceStore interface {
	numerator.Generator
	numerator.Lister
}

// SequenceTarget names a series. Nil ids are resolved from the caller.
type SequenceTarget struct {
	Type           numerator.SequenceType
	OrganizationID *id.ID
	BranchID       *id.ID
	// OrganizationWide selects the series without a branch.
	OrganizationWide bool
}

// SequenceService exposes number sequences to administrators.
// Non-main callers always act on their own organization and branch.
type SequenceService struct {
	store SequenceStore
}

func NewSequenceService(store SequenceStore) *SequenceService {
	return &SequenceService{store: store}
}

func (s *SequenceService) scope(ctx context.Context, t SequenceTarget) (numerator.Scope, error) {
	caller, err := domain.RequireScope(ctx)
	if err != nil {
		return numerator.Scope{}, err
	}
	out := numerator.Scope{Type: t.Type, OrganizationID: t.OrganizationID, BranchID: t.BranchID}
	switch {
	case caller.System:
	case !caller.HasBranch():
		return numerator.Scope{}, apperror.NewForbidden("sequences need a current branch")
	case caller.IsMainBranch:
		if out.OrganizationID == nil {
			out.OrganizationID = caller.OrganizationID
		}
		if out.BranchID == nil && !t.OrganizationWide {
			out.BranchID = caller.BranchID
		}
	default:
		out.OrganizationID = caller.OrganizationID
		out.BranchID = caller.BranchID
		if t.OrganizationWide {
			return numerator.Scope{}, apperror.NewForbidden("only the main branch manages organization-wide sequences")
		}
	}
	if t.OrganizationWide {
		out.BranchID = nil
	}
	return out, out.Validate()
}

// Provision creates a series.
func (s *SequenceService) Provision(ctx context.Context, t SequenceTarget, cfg numerator.Config) (*numerator.Sequence, error) {
	scope, err := s.scope(ctx, t)
	if err != nil {
		return nil, err
	}
	seq, err := s.store.Provision(ctx, scope, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "sequence provisioned", "scope", scope.Key(), "prefix", cfg.Prefix)
	return seq, nil
}

// Peek previews the next number.
func (s *SequenceService) Peek(ctx context.Context, t SequenceTarget) (string, error) {
	scope, err := s.scope(ctx, t)
	if err != nil {
		return "", err
	}
	return s.store.Peek(ctx, scope)
}

// Consume hands out the next number.
func (s *SequenceService) Consume(ctx context.Context, t SequenceTarget) (string, error) {
	scope, err := s.scope(ctx, t)
	if err != nil {
		return "", err
	}
	return s.store.Consume(ctx, scope)
}

// Get returns the stored series.
func (s *SequenceService) Get(ctx context.Context, t SequenceTarget) (*numerator.Sequence, error) {
	scope, err := s.scope(ctx, t)
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, scope)
}

// List returns the series visible to the caller. Branch staff also see the
// organization-wide series their documents fall back to.
func (s *SequenceService) List(ctx context.Context) ([]*numerator.Sequence, error) {
	caller, err := domain.RequireScope(ctx)
	if err != nil {
		return nil, err
	}
	f := numerator.ListFilterFor(caller)
	if f.None() {
		return []*numerator.Sequence{}, nil
	}
	return s.store.List(ctx, f)
}

var _ SequenceStore = (*numerator.MemoryGenerator)(nil)
