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

// MembershipService manages which branches a user may act in.
type MembershipService struct {
	*domain.Service[*Membership]
	repo     MembershipRepository
	branches BranchRepository
	cache    MembershipInvalidator
}

// NewMembershipService creates the service. cache may be nil.
func NewMembershipService(repo MembershipRepository, branches BranchRepository, cache MembershipInvalidator, txm tx.Manager, clock func() time.Time) *MembershipService {
	return &MembershipService{
		Service: domain.NewService(domain.ServiceConfig[*Membership]{
			Repo:       repo,
			TxManager:  txm,
			EntityName: "branch_membership",
			Clock:      clock,
		}),
		repo:     repo,
		branches: branches,
		cache:    cache,
	}
}

// Add grants user access to branch. A default membership replaces the
// previous default; a revoked membership is restored.
func (s *MembershipService) Add(ctx context.Context, userID, branchID id.ID, roleHint string, isDefault bool) (*Membership, error) {
	if err := s.checkBranch(ctx, branchID); err != nil {
		return nil, err
	}

	var out *Membership
	err := s.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.Find(ctx, userID, branchID)
		switch {
		case err == nil && existing.Active:
			return apperror.NewDuplicate("branch_membership", "branch", branchID.String())
		case err != nil && !apperror.IsNotFound(err):
			return err
		case err != nil:
			existing = nil
		}
		if isDefault {
			if err := s.repo.ClearDefault(ctx, userID); err != nil {
				return err
			}
		}
		if existing != nil {
			existing.Restore()
			existing.RoleHint = roleHint
			existing.IsDefault = isDefault
			out = existing
			return s.Update(ctx, existing)
		}
		out = NewMembership(userID, branchID, roleHint)
		out.IsDefault = isDefault
		return s.Create(ctx, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Revoke deactivates the membership of user in branch. The user loses the
// branch on the next request this node resolves.
func (s *MembershipService) Revoke(ctx context.Context, userID, branchID id.ID) error {
	if err := s.checkBranch(ctx, branchID); err != nil {
		return err
	}
	err := s.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		m, err := s.repo.Find(ctx, userID, branchID)
		if err != nil {
			return s.NormalizeGetErr(err, branchID.String())
		}
		if !m.Active {
			return nil
		}
		m.Deactivate()
		m.IsDefault = false
		return s.Update(ctx, m)
	})
	if err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.InvalidateMember(userID.String(), branchID.String())
	}
	logger.Info(ctx, "branch membership revoked", "user_id", userID, "branch_id", branchID)
	return nil
}

func (s *MembershipService) checkBranch(ctx context.Context, branchID id.ID) error {
	scope, err := domain.RequireScope(ctx)
	if err != nil {
		return err
	}
	if !scope.CanSee(&branchID) {
		return apperror.NewOutOfBranchScope("branch", branchID.String())
	}
	if _, err := s.branches.GetByID(ctx, branchID); err != nil {
		return s.NormalizeGetErr(err, branchID.String())
	}
	return nil
}

// Mine lists the caller's memberships.
func (s *MembershipService) Mine(ctx context.Context) ([]*Membership, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByUser(ctx, actor)
}

// SwitchBranch moves the caller's current branch. The caller must hold an
// active membership there; the new scope applies from the next request.
func (s *MembershipService) SwitchBranch(ctx context.Context, branchID id.ID) error {
	actor, err := s.actor(ctx)
	if err != nil {
		return err
	}
	m, err := s.repo.Find(ctx, actor, branchID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewForbidden("you are not a member of this branch").WithDetail("branchId", branchID)
		}
		return err
	}
	if !m.Active {
		return apperror.NewForbidden("membership is inactive").WithDetail("branchId", branchID)
	}
	if err := s.repo.SetCurrentBranch(ctx, actor, &branchID); err != nil {
		return err
	}
	logger.Info(ctx, "current branch switched", "user_id", actor, "branch_id", branchID)
	return nil
}

func (s *MembershipService) actor(ctx context.Context) (id.ID, error) {
	if _, err := domain.RequireScope(ctx); err != nil {
		return id.ID{}, err
	}
	actor := domain.ActorID(ctx)
	if actor == nil {
		return id.ID{}, apperror.NewForbidden("memberships belong to a user")
	}
	return *actor, nil
}
