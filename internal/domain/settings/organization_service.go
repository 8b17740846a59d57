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

// OrganizationService manages tenants.
type OrganizationService struct {
	*domain.Service[*Organization]
	branches    BranchRepository
	invalidator BranchInvalidator
}

// NewOrganizationService creates the service. invalidator may be nil.
func NewOrganizationService(repo OrganizationRepository, branches BranchRepository, invalidator BranchInvalidator, txm tx.Manager, clock func() time.Time) *OrganizationService {
	return &OrganizationService{
		Service: domain.NewService(domain.ServiceConfig[*Organization]{
			Repo:       repo,
			TxManager:  txm,
			EntityName: "organization",
			Clock:      clock,
		}),
		branches:    branches,
		invalidator: invalidator,
	}
}

// Create registers a new organization.
func (s *OrganizationService) Create(ctx context.Context, o *Organization) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.Service.Create(ctx, o); err != nil {
		return err
	}
	logger.Info(ctx, "organization created", "organization_id", o.ID, "code", o.Code)
	return nil
}

// Get returns an organization the caller belongs to.
func (s *OrganizationService) Get(ctx context.Context, orgID id.ID) (*Organization, error) {
	scope, err := domain.RequireScope(ctx)
	if err != nil {
		return nil, err
	}
	if !canSeeOrganization(scope, orgID) {
		return nil, apperror.NewForbidden("organization is outside your scope")
	}
	return s.GetByID(ctx, orgID)
}

// List returns all organizations for main-branch callers and the caller's
// own organization otherwise.
func (s *OrganizationService) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*Organization], error) {
	scope, err := domain.RequireScope(ctx)
	if err != nil {
		return domain.ListResult[*Organization]{}, err
	}
	if !scope.System && !scope.IsMainBranch {
		if scope.OrganizationID == nil {
			return domain.EmptyResult[*Organization](f), nil
		}
		f.IDs = []id.ID{*scope.OrganizationID}
	}
	return s.Service.List(ctx, f)
}

// Update changes an organization.
func (s *OrganizationService) Update(ctx context.Context, o *Organization) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.Service.Update(ctx, o); err != nil {
		return err
	}
	s.invalidateBranches(ctx, o.ID)
	return nil
}

// Deactivate suspends a tenant. Its branches stop resolving immediately.
func (s *OrganizationService) Deactivate(ctx context.Context, orgID id.ID) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.Delete(ctx, orgID); err != nil {
		return err
	}
	s.invalidateBranches(ctx, orgID)
	logger.Warn(ctx, "organization deactivated", "organization_id", orgID)
	return nil
}

func (s *OrganizationService) invalidateBranches(ctx context.Context, orgID id.ID) {
	if s.invalidator == nil {
		return
	}
	branches, err := s.branches.ListByOrganization(ctx, orgID)
	if err != nil {
		logger.Warn(ctx, "cannot list branches for cache invalidation", "organization_id", orgID, "error", err)
		return
	}
	for _, b := range branches {
		s.invalidator.Invalidate(ctx, b.ID.String())
	}
}
