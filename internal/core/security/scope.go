// Package security provides row-level branch scoping and permission checks.
package security

import (
	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
)

// BranchScope is the caller's resolved visibility boundary for one request.
//
// A caller sees every row of a branch-scoped type when their current branch is
// the organization's main branch, only rows of their own branch otherwise, and
// nothing at all when no branch could be resolved. Types without a branch
// concept are visible to any authenticated caller.
type BranchScope struct {
	UserID         string
	OrganizationID *id.ID
	BranchID       *id.ID
	IsMainBranch   bool
	Authenticated  bool
	Permissions    []string
	// System marks background jobs acting across every branch.
	System bool
}

// Anonymous returns the scope of an unauthenticated caller.
func Anonymous() *BranchScope {
	return &BranchScope{}
}

// NewBranchScope builds an authenticated scope. A main-branch flag without a
// branch is ignored: there is nothing to be "main" about.
func NewBranchScope(userID string, organizationID, branchID *id.ID, isMain bool) *BranchScope {
	return &BranchScope{
		UserID:         userID,
		OrganizationID: organizationID,
		BranchID:       branchID,
		IsMainBranch:   isMain && branchID != nil,
		Authenticated:  true,
	}
}

// HasBranch reports whether a current branch was resolved.
func (s *BranchScope) HasBranch() bool {
	return s != nil && s.BranchID != nil
}

// Visibility is the query-level form of a scope.
type Visibility struct {
	// All means no branch predicate applies.
	All bool
	// BranchID restricts rows to one branch when All is false.
	// Both zero values mean nothing is visible.
	BranchID *id.ID
}

// None reports whether the visibility matches no rows.
func (v Visibility) None() bool {
	return !v.All && v.BranchID == nil
}

// Visibility converts the scope for repositories of branch-scoped types.
func (s *BranchScope) Visibility() Visibility {
	switch {
	case s != nil && s.System:
		return Visibility{All: true}
	case s == nil || !s.Authenticated || s.BranchID == nil:
		return Visibility{}
	case s.IsMainBranch:
		return Visibility{All: true}
	default:
		return Visibility{BranchID: s.BranchID}
	}
}

// CanSee evaluates the visibility predicate for one row branch value.
func (s *BranchScope) CanSee(rowBranch *id.ID) bool {
	v := s.Visibility()
	if v.All {
		return true
	}
	if v.BranchID == nil || rowBranch == nil {
		return false
	}
	return *v.BranchID == *rowBranch
}

// ResolveVisible returns the subset of rows the caller may see.
// Unauthenticated callers get an error; a caller with no branch gets an
// empty slice for branch-scoped types.
func ResolveVisible[T any](s *BranchScope, rows []T) ([]T, error) {
	if s == nil || !s.Authenticated {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	visible := make([]T, 0, len(rows))
	for _, row := range rows {
		scoped, ok := any(row).(entity.BranchScoped)
		if !ok || s.CanSee(scoped.GetBranchID()) {
			visible = append(visible, row)
		}
	}
	return visible, nil
}

// AuthorizeObject checks single-object access (read, update, delete).
func AuthorizeObject(s *BranchScope, row any) error {
	if s == nil || !s.Authenticated {
		return apperror.NewUnauthorized("authentication required")
	}
	scoped, ok := row.(entity.BranchScoped)
	if !ok {
		return nil
	}
	if s.CanSee(scoped.GetBranchID()) {
		return nil
	}
	var rowID any
	if ident, ok := row.(entity.Identifiable); ok {
		rowID = ident.GetID().String()
	}
	return apperror.NewOutOfBranchScope(entityName(row), rowID)
}

// InjectBranchOnWrite sets the row's branch before it is persisted.
//
// Non-main callers always write into their own branch, on create and update.
// Main-branch callers keep an explicit branch; on create an omitted branch
// defaults to their own. Without a resolved branch nothing is injected.
func InjectBranchOnWrite(s *BranchScope, row any, isCreate bool) {
	scoped, ok := row.(entity.BranchScoped)
	if !ok || !s.HasBranch() {
		return
	}
	own := id.Ptr(*s.BranchID)
	if !s.IsMainBranch {
		scoped.SetBranchID(own)
		return
	}
	if isCreate && scoped.GetBranchID() == nil {
		scoped.SetBranchID(own)
	}
}

type named interface {
	EntityName() string
}

func entityName(row any) string {
	if n, ok := row.(named); ok {
		return n.EntityName()
	}
	return "object"
}
