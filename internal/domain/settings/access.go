package settings

import (
	"context"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
	"lms/internal/core/security"
	"lms/internal/domain"
)

// requireAdmin lets through main-branch callers and background jobs.
func requireAdmin(ctx context.Context) (*security.BranchScope, error) {
	scope, err := domain.RequireScope(ctx)
	if err != nil {
		return nil, err
	}
	if !scope.System && !scope.IsMainBranch {
		return nil, apperror.NewForbidden("only the main branch manages tenant settings")
	}
	return scope, nil
}

// canSeeOrganization reports whether the caller may read rows of org.
// Main-branch callers see every organization.
func canSeeOrganization(scope *security.BranchScope, org id.ID) bool {
	if scope.System || scope.IsMainBranch {
		return true
	}
	return scope.OrganizationID != nil && *scope.OrganizationID == org
}
