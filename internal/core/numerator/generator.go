package numerator

import (
	"context"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
	"lms/internal/core/security"
)

// Generator issues numbers for a scope. Implementations live in the
// infrastructure layer and must serialize Consume per scope so that
// concurrent callers never receive the same value.
type Generator interface {
	// Peek returns the number the next Consume will hand out. A pending
	// yearly reset is applied and persisted.
	Peek(ctx context.Context, scope Scope) (string, error)

	// Consume returns the current number and advances the counter.
	Consume(ctx context.Context, scope Scope) (string, error)

	// Provision creates the series. Scopes are never created implicitly.
	Provision(ctx context.Context, scope Scope, cfg Config) (*Sequence, error)

	// Get returns the stored series.
	Get(ctx context.Context, scope Scope) (*Sequence, error)
}

// Lister enumerates the series matching f, ordered by type.
type Lister interface {
	List(ctx context.Context, f ListFilter) ([]*Sequence, error)
}

// ListFilter selects series by owner. The zero value matches nothing.
type ListFilter struct {
	// All matches every series, global ones included.
	All bool
	// OrganizationID matches the series of one organization.
	OrganizationID *id.ID
	// BranchID narrows branch series to one branch. Organization-wide
	// series of OrganizationID still match.
	BranchID *id.ID
}

// ListFilterFor returns what a caller may list: the main branch sees its
// whole organization, any other branch its own series plus the
// organization-wide ones.
func ListFilterFor(s *security.BranchScope) ListFilter {
	switch {
	case s == nil:
		return ListFilter{}
	case s.System:
		return ListFilter{All: true}
	case !s.HasBranch() || s.OrganizationID == nil:
		return ListFilter{}
	case s.IsMainBranch:
		return ListFilter{OrganizationID: s.OrganizationID}
	default:
		return ListFilter{OrganizationID: s.OrganizationID, BranchID: s.BranchID}
	}
}

// None reports whether the filter matches no series.
func (f ListFilter) None() bool {
	return !f.All && f.OrganizationID == nil
}

// Match reports whether a series owned by organizationID and branchID passes.
func (f ListFilter) Match(organizationID, branchID *id.ID) bool {
	switch {
	case f.All:
		return true
	case f.OrganizationID == nil || organizationID == nil || *organizationID != *f.OrganizationID:
		return false
	case f.BranchID == nil || branchID == nil:
		return true
	default:
		return *branchID == *f.BranchID
	}
}

// Next consumes from the branch series when one is provisioned and falls
// back to the organization-wide series otherwise.
func Next(ctx context.Context, g Generator, t SequenceType, organizationID, branchID *id.ID) (string, error) {
	if branchID != nil {
		v, err := g.Consume(ctx, Scope{Type: t, OrganizationID: organizationID, BranchID: branchID})
		if !apperror.HasCode(err, apperror.CodeSequenceNotFound) {
			return v, err
		}
	}
	return g.Consume(ctx, Scope{Type: t, OrganizationID: organizationID})
}
