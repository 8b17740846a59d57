package settings

import (
	"context"
	"time"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
	"lms/internal/core/tx"
	"lms/internal/domain"
	"lms/pkg/logger"
)

// BranchService manages branches and keeps the one-main-branch rule.
type BranchService struct {
	*domain.Service[*Branch]
	repo        BranchRepository
	orgs        OrganizationRepository
	invalidator BranchInvalidator
}

// NewBranchService creates the service. invalidator may be nil.
func NewBranchService(repo BranchRepository, orgs OrganizationRepository, invalidator BranchInvalidator, txm tx.Manager, clock func() time.Time) *BranchService {
	s := &BranchService{
		Service: domain.NewService(domain.ServiceConfig[*Branch]{
			Repo:       repo,
			TxManager:  txm,
			EntityName: "branch",
			Clock:      clock,
		}),
		repo:        repo,
		orgs:        orgs,
		invalidator: invalidator,
	}
	s.Hooks().OnBeforeCreate(s.checkMain)
	s.Hooks().OnBeforeUpdate(s.checkMain)
	s.Hooks().OnAfterUpdate(s.invalidate)
	s.Hooks().On(domain.AfterDelete, s.invalidate)
	return s
}

// checkMain runs inside the write transaction. The partial unique index
// is the backstop for concurrent writers.
func (s *BranchService) checkMain(ctx context.Context, b *Branch) error {
	if !b.IsMainBranch || !b.Active {
		return nil
	}
	existing, err := s.repo.FindMain(ctx, b.OrganizationID)
	switch {
	case apperror.IsNotFound(err):
		return nil
	case err != nil:
		return err
	case existing.ID != b.ID:
		return apperror.NewConflict("organization already has a main branch").
			WithDetail("organizationId", b.OrganizationID).
			WithDetail("mainBranchId", existing.ID)
	}
	return nil
}

func (s *BranchService) invalidate(ctx context.Context, b *Branch) error {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, b.ID.String())
	}
	return nil
}

// Create adds a branch to an existing organization.
func (s *BranchService) Create(ctx context.Context, b *Branch) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	if _, err := s.orgs.GetByID(ctx, b.OrganizationID); err != nil {
		return s.NormalizeGetErr(err, b.OrganizationID.String())
	}
	if err := s.Service.Create(ctx, b); err != nil {
		return err
	}
	logger.Info(ctx, "branch created", "branch_id", b.ID, "organization_id", b.OrganizationID, "main", b.IsMainBranch)
	return nil
}

// Update changes a branch.
func (s *BranchService) Update(ctx context.Context, b *Branch) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	return s.Service.Update(ctx, b)
}

// Deactivate tombstones a branch.
func (s *BranchService) Deactivate(ctx context.Context, branchID id.ID) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	return s.Delete(ctx, branchID)
}

// Get returns a branch of an organization the caller belongs to.
func (s *BranchService) Get(ctx context.Context, branchID id.ID) (*Branch, error) {
	scope, err := domain.RequireScope(ctx)
	if err != nil {
		return nil, err
	}
	b, err := s.GetByID(ctx, branchID)
	if err != nil {
		return nil, err
	}
	if !canSeeOrganization(scope, b.OrganizationID) {
		return nil, apperror.NewForbidden("branch is outside your organization")
	}
	return b, nil
}

// List returns the branches the caller may see: every branch for the main
// branch, the caller's organization otherwise.
func (s *BranchService) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*Branch], error) {
	scope, err := domain.RequireScope(ctx)
	if err != nil {
		return domain.ListResult[*Branch]{}, err
	}
	if !scope.System && !scope.IsMainBranch {
		if scope.OrganizationID == nil {
			return domain.EmptyResult[*Branch](f), nil
		}
		f.Where("organization_id", *scope.OrganizationID)
	}
	return s.Service.List(ctx, f)
}
