// Package settings_repo provides PostgreSQL repositories for organizations,
// branches, memberships, feature flags and organization invites.
package settings_repo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"lms/internal/core/id"
	"lms/internal/core/security"
	"lms/internal/domain/settings"
	"lms/internal/infrastructure/storage/postgres"
)

// OrganizationRepo implements settings.OrganizationRepository.
type OrganizationRepo struct {
	*postgres.BaseRepo[*settings.Organization]
}

// NewOrganizationRepo creates the organization repository.
func NewOrganizationRepo(txm *postgres.TxManager) *OrganizationRepo {
	return &OrganizationRepo{
		BaseRepo: postgres.NewBaseRepo(txm, "organizations", func() *settings.Organization { return &settings.Organization{} },
			postgres.WithSearch("code", "name", "legal_name"),
			postgres.WithDefaultOrder("code ASC")),
	}
}

// BranchRepo implements settings.BranchRepository.
type BranchRepo struct {
	*postgres.BaseRepo[*settings.Branch]
}

// NewBranchRepo creates the branch repository.
func NewBranchRepo(txm *postgres.TxManager) *BranchRepo {
	return &BranchRepo{
		BaseRepo: postgres.NewBaseRepo(txm, "branches", func() *settings.Branch { return &settings.Branch{} },
			postgres.WithSearch("code", "name"),
			postgres.WithDefaultOrder("code ASC")),
	}
}

// FindMain returns the active main branch of the organization.
func (r *BranchRepo) FindMain(ctx context.Context, organizationID id.ID) (*settings.Branch, error) {
	return r.FindOne(ctx, r.Select().
		Where(sq.Eq{"organization_id": organizationID, "is_main_branch": true, "active": true}).
		Limit(1))
}

// ListByOrganization returns every branch of the organization.
func (r *BranchRepo) ListByOrganization(ctx context.Context, organizationID id.ID) ([]*settings.Branch, error) {
	return r.FindMany(ctx, r.Select().Where(sq.Eq{"organization_id": organizationID}).OrderBy("code"))
}

// MembershipRepo implements settings.MembershipRepository.
type MembershipRepo struct {
	*postgres.BaseRepo[*settings.Membership]
}

// NewMembershipRepo creates the membership repository.
func NewMembershipRepo(txm *postgres.TxManager) *MembershipRepo {
	return &MembershipRepo{
		BaseRepo: postgres.NewBaseRepo(txm, "branch_memberships", func() *settings.Membership { return &settings.Membership{} }),
	}
}

// Find returns the membership of user in branch.
func (r *MembershipRepo) Find(ctx context.Context, userID, branchID id.ID) (*settings.Membership, error) {
	return r.FindOne(ctx, r.Select().Where(sq.Eq{"user_id": userID, "branch_id": branchID}).Limit(1))
}

// ListByUser returns the active memberships of user, default first.
func (r *MembershipRepo) ListByUser(ctx context.Context, userID id.ID) ([]*settings.Membership, error) {
	return r.FindMany(ctx, r.Select().
		Where(sq.Eq{"user_id": userID, "active": true}).
		OrderBy("is_default DESC", "created_at"))
}

// ClearDefault unsets is_default on every membership of the user.
func (r *MembershipRepo) ClearDefault(ctx context.Context, userID id.ID) error {
	_, err := r.Exec(ctx, r.Builder().Update(r.Table()).
		Set("is_default", false).
		Set("version", sq.Expr("version + 1")).
		Where(sq.Eq{"user_id": userID, "is_default": true}))
	return err
}

// SetCurrentBranch moves the user's current branch pointer.
func (r *MembershipRepo) SetCurrentBranch(ctx context.Context, userID id.ID, branchID *id.ID) error {
	n, err := r.Exec(ctx, r.Builder().Update("users").
		Set("current_branch_id", branchID).
		Set("version", sq.Expr("version + 1")).
		Where(sq.Eq{"id": userID}))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("set current branch: user %s not found", userID)
	}
	return nil
}

// FlagRepo implements settings.FlagRepository.
type FlagRepo struct {
	*postgres.BaseRepo[*settings.FeatureFlag]
}

// NewFlagRepo creates the feature flag repository.
func NewFlagRepo(txm *postgres.TxManager) *FlagRepo {
	return &FlagRepo{
		BaseRepo: postgres.NewBaseRepo(txm, "feature_flags", func() *settings.FeatureFlag { return &settings.FeatureFlag{} },
			postgres.WithSearch("key", "description"),
			postgres.WithDefaultOrder("key ASC")),
	}
}

// FindByScope returns the flag row of one key at one scope.
func (r *FlagRepo) FindByScope(ctx context.Context, key string, scope security.FlagScope, organizationID, branchID *id.ID) (*settings.FeatureFlag, error) {
	return r.FindOne(ctx, r.Select().
		Where(sq.Eq{"key": key, "scope": scope}).
		Where("organization_id IS NOT DISTINCT FROM ?", organizationID).
		Where("branch_id IS NOT DISTINCT FROM ?", branchID).
		Limit(1))
}

// ListAll returns every active flag.
func (r *FlagRepo) ListAll(ctx context.Context) ([]*settings.FeatureFlag, error) {
	return r.FindMany(ctx, r.Select().Where(sq.Eq{"active": true}).OrderBy("key", "scope"))
}

// OrgInviteRepo implements settings.OrgInviteRepository.
type OrgInviteRepo struct {
	*postgres.BaseRepo[*settings.OrganizationInvite]
}

// NewOrgInviteRepo creates the organization invite repository.
func NewOrgInviteRepo(txm *postgres.TxManager) *OrgInviteRepo {
	return &OrgInviteRepo{
		BaseRepo: postgres.NewBaseRepo(txm, "organization_invites", func() *settings.OrganizationInvite { return &settings.OrganizationInvite{} },
			postgres.WithSearch("email")),
	}
}

// FindByToken looks an invite up by its link token.
func (r *OrgInviteRepo) FindByToken(ctx context.Context, token string) (*settings.OrganizationInvite, error) {
	return r.FindOne(ctx, r.Select().Where(sq.Eq{"token": token}).Limit(1))
}

// ExpireDue flips pending invites past expires_at to expired.
func (r *OrgInviteRepo) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	return r.Exec(ctx, r.Builder().Update(r.Table()).
		Set("status", settings.OrgInviteExpired).
		Set("updated_at", now).
		Set("version", sq.Expr("version + 1")).
		Where(sq.Eq{"status": settings.OrgInvitePending}).
		Where(sq.LtOrEq{"expires_at": now}))
}

var (
	_ settings.OrganizationRepository = (*OrganizationRepo)(nil)
	_ settings.BranchRepository       = (*BranchRepo)(nil)
	_ settings.MembershipRepository   = (*MembershipRepo)(nil)
	_ settings.FlagRepository         = (*FlagRepo)(nil)
	_ settings.OrgInviteRepository    = (*OrgInviteRepo)(nil)
)
