package settings

import (
	"context"
	"time"

	"lms/internal/core/id"
	"lms/internal/core/security"
	"lms/internal/domain"
)

type OrganizationRepository interface {
	domain.Repository[*Organization]
}

type BranchRepository interface {
	domain.Repository[*Branch]

	// FindMain returns the active main branch of the organization.
	FindMain(ctx context.Context, organizationID id.ID) (*Branch, error)

	// ListByOrganization returns every branch of the organization, inactive included.
	ListByOrganization(ctx context.Context, organizationID id.ID) ([]*Branch, error)
}

type MembershipRepository interface {
	domain.Repository[*Membership]

	Find(ctx context.Context, userID, branchID id.ID) (*Membership, error)
	ListByUser(ctx context.Context, userID id.ID) ([]*Membership, error)

	// ClearDefault unsets is_default on every membership of the user.
	ClearDefault(ctx context.Context, userID id.ID) error

	// SetCurrentBranch moves the user's current branch pointer.
	SetCurrentBranch(ctx context.Context, userID id.ID, branchID *id.ID) error
}

type FlagRepository interface {
	domain.Repository[*FeatureFlag]

	FindByScope(ctx context.Context, key string, scope security.FlagScope, organizationID, branchID *id.ID) (*FeatureFlag, error)

	// ListAll returns every active flag; the flag cache loads from it.
	ListAll(ctx context.Context) ([]*FeatureFlag, error)
}

type OrgInviteRepository interface {
	domain.Repository[*OrganizationInvite]

	FindByToken(ctx context.Context, token string) (*OrganizationInvite, error)
	// ExpireDue flips pending invites whose lifetime is over.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// MembershipInvalidator forgets cached membership checks (tenant.Resolver).
type MembershipInvalidator interface {
	InvalidateMember(userID, branchID string)
}

// BranchInvalidator drops cached branch metadata (tenant.Resolver).
type BranchInvalidator interface {
	Invalidate(ctx context.Context, branchID string)
}

// FlagInvalidator reloads evaluated flags after a write.
type FlagInvalidator interface {
	Reload(ctx context.Context) error
}
