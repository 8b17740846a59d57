package settings

import (
	"context"
	"time"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
	"lms/internal/core/security"
	"lms/internal/core/tx"
	"lms/internal/domain"
	"lms/pkg/logger"
)

// OrgInviteService invites people into an organization.
type OrgInviteService struct {
	*domain.Service[*OrganizationInvite]
	repo        OrgInviteRepository
	branches    BranchRepository
	memberships *MembershipService
}

func NewOrgInviteService(repo OrgInviteRepository, branches BranchRepository, memberships *MembershipService, txm tx.Manager, clock func() time.Time) *OrgInviteService {
	return &OrgInviteService{
		Service: domain.NewService(domain.ServiceConfig[*OrganizationInvite]{
			Repo:       repo,
			TxManager:  txm,
			EntityName: "organization_invite",
			Clock:      clock,
		}),
		repo:        repo,
		branches:    branches,
		memberships: memberships,
	}
}

// Invite creates an invite into the caller's organization. A nil branch
// lands the invitee in the caller's branch.
func (s *OrgInviteService) Invite(ctx context.Context, email, role string, branchID *id.ID, ttl time.Duration) (*OrganizationInvite, error) {
	scope, err := domain.RequireScope(ctx)
	if err != nil {
		return nil, err
	}
	if scope.OrganizationID == nil {
		return nil, apperror.NewForbidden("invites need a current organization")
	}
	inv := NewOrganizationInvite(*scope.OrganizationID, email, role, ttl, s.Now())
	inv.InvitedBy = domain.ActorID(ctx)
	inv.BranchID = branchID
	if err := s.Create(ctx, inv); err != nil {
		return nil, err
	}
	logger.Info(ctx, "organization invite created", "invite_id", inv.ID, "role", inv.Role)
	return inv, nil
}

// Accept joins the caller to the organization: a membership in the
// invite's branch, or in the main branch when the invite names none.
func (s *OrgInviteService) Accept(ctx context.Context, token string) (*Membership, error) {
	if _, err := domain.RequireScope(ctx); err != nil {
		return nil, err
	}
	actor := domain.ActorID(ctx)
	if actor == nil {
		return nil, apperror.NewForbidden("invites are accepted by a user")
	}

	inv, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("organization_invite", "token")
		}
		return nil, err
	}
	now := s.Now()
	if err := inv.Accept(now); err != nil {
		if apperror.HasCode(err, apperror.CodeInviteExpired) {
			if uerr := s.repo.Update(ctx, inv); uerr != nil {
				logger.Warn(ctx, "cannot persist expired invite", "invite_id", inv.ID, "error", uerr)
			}
		}
		return nil, err
	}

	branchID := inv.BranchID
	if branchID == nil {
		main, err := s.branches.FindMain(ctx, inv.OrganizationID)
		if err != nil {
			return nil, s.NormalizeGetErr(err, inv.OrganizationID.String())
		}
		branchID = &main.ID
	}

	// the invitee has no scope in the target organization yet
	acting := security.WithScope(ctx, security.NewBranchScope(actor.String(), &inv.OrganizationID, branchID, false))

	var m *Membership
	err = s.TxManager().RunInTransaction(acting, func(ctx context.Context) error {
		inv.Stamp(actor, now)
		if err := s.repo.Update(ctx, inv); err != nil {
			return err
		}
		var err error
		m, err = s.memberships.Add(ctx, *actor, *branchID, inv.Role, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "organization invite accepted", "invite_id", inv.ID, "user_id", actor)
	return m, nil
}

// ExpireDue is run by the scheduler.
func (s *OrgInviteService) ExpireDue(ctx context.Context) (int64, error) {
	return s.repo.ExpireDue(ctx, s.Now())
}
