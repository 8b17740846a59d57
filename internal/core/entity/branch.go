package entity

import "lms/internal/core/id"

// BranchScoped is implemented by row types partitioned by branch.
// Types that do not implement it carry no branch concept and are never
// filtered by branch.
type BranchScoped interface {
	GetBranchID() *id.ID
	SetBranchID(branchID *id.ID)
}

// BranchOwned is embedded by branch-scoped entities.
// A nil BranchID means the row is shared (not owned by any branch).
type BranchOwned struct {
	BranchID *id.ID `db:"branch_id" json:"branchId,omitempty"`
}

// GetBranchID implements BranchScoped.
func (b *BranchOwned) GetBranchID() *id.ID {
	return b.BranchID
}

// SetBranchID implements BranchScoped.
func (b *BranchOwned) SetBranchID(branchID *id.ID) {
	b.BranchID = branchID
}

// InheritBranch copies the parent's branch when the child has none.
// Lessons, modules, enrollments and invites follow their course this way.
func InheritBranch(child, parent BranchScoped) {
	if child.GetBranchID() == nil && parent.GetBranchID() != nil {
		child.SetBranchID(id.Ptr(*parent.GetBranchID()))
	}
}
