// Package tenant resolves which organization and branch a request runs in.
//
// Organizations are tenants; branches partition an organization's rows.
// All tenants share one database and isolation is row-level (branch_id).
package tenant

import (
	"lms/internal/core/id"
)

// BranchInfo is the slice of a branch row needed to build a request scope.
type BranchInfo struct {
	ID             id.ID  `db:"id" json:"id"`
	OrganizationID id.ID  `db:"organization_id" json:"organizationId"`
	Code           string `db:"code" json:"code"`
	IsMainBranch   bool   `db:"is_main_branch" json:"isMainBranch"`
	Active         bool   `db:"active" json:"active"`
	// OrganizationActive mirrors organizations.active; a suspended tenant
	// resolves to no branch at all.
	OrganizationActive bool `db:"organization_active" json:"organizationActive"`
}

// Usable reports whether the branch may scope a request.
func (b *BranchInfo) Usable() bool {
	return b != nil && b.Active && b.OrganizationActive
}
