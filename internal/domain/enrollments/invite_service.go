package enrollments

import (
	"context"
	"time"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
	"lms/internal/core/security"
	"lms/internal/core/tenant"
	"lms/internal/core/tx"
	"lms/internal/domain"
	"lms/pkg/logger"
)

// BranchLookup resolves branch metadata (tenant.Resolver in production).
type BranchLookup interface {
	Branch(ctx context.Context, branchID string) (*tenant.BranchInfo, error)
}

// InviteService issues and redeems course access invites.
type InviteService struct {
	*domain.Service[*AccessInvite]
	repo        InviteRepository
	courses     CourseLookup
	branches    BranchLookup
	enrollments *Service
}

// NewInviteService creates the invite service.
func NewInviteService(repo InviteRepository, courses CourseLookup, branches BranchLookup, enrollments *Service, txm tx.Manager, clock func() time.Time) *InviteService {
	return &InviteService{
		Service: domain.NewService(domain.ServiceConfig[*AccessInvite]{
			Repo:       repo,
			TxManager:  txm,
			EntityName: "course_access_invite",
			Clock:      clock,
		}),
		repo:        repo,
		courses:     courses,
		branches:    branches,
		enrollments: enrollments,
	}
}

// Invite creates a pending invite into a course the caller can see.
func (s *InviteService) Invite(ctx context.Context, courseID id.ID, email string, ttl time.Duration) (*AccessInvite, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	inv := NewAccessInvite(course.ID, email, ttl, s.Now())
	inv.InvitedBy = domain.ActorID(ctx)
	entity.InheritBranch(inv, course)
	if err := s.Create(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Revoke withdraws a pending invite.
func (s *InviteService) Revoke(ctx context.Context, inviteID id.ID) (*AccessInvite, error) {
	inv, err := s.GetByID(ctx, inviteID)
	if err != nil {
		return nil, err
	}
	if err := inv.Revoke(); err != nil {
		return nil, err
	}
	if err := s.Update(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Accept redeems the invite token for the caller and enrolls them.
// The token is the authorization: the enrollment is created acting in the
// invite's branch regardless of the caller's current branch. An expired
// invite is persisted as expired before INVITE_EXPIRED is returned.
func (s *InviteService) Accept(ctx context.Context, token string) (*Enrollment, error) {
	scope, err := domain.RequireScope(ctx)
	if err != nil {
		return nil, err
	}
	user, err := id.Parse(scope.UserID)
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid user in token")
	}

	inv, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound(s.EntityName(), "token")
		}
		return nil, err
	}

	now := s.Now()
	if err := inv.Accept(user, now); err != nil {
		if apperror.HasCode(err, apperror.CodeInviteExpired) && inv.Status == InviteExpired {
			inv.Stamp(nil, now)
			if uerr := s.repo.Update(ctx, inv); uerr != nil {
				logger.Warn(ctx, "failed to persist expired invite", "invite_id", inv.ID, "error", uerr)
			}
		}
		return nil, err
	}

	acting, err := s.actingScope(ctx, scope, inv)
	if err != nil {
		return nil, err
	}
	ctx = security.WithScope(ctx, acting)

	var enrollment *Enrollment
	err = s.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		inv.Stamp(&user, now)
		if err := s.repo.Update(ctx, inv); err != nil {
			return err
		}
		enrollment, err = s.enrollments.Enroll(ctx, EnrollInput{
			UserID:   user,
			CourseID: inv.CourseID,
			Source:   SourceInvite,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return enrollment, nil
}

func (s *InviteService) actingScope(ctx context.Context, caller *security.BranchScope, inv *AccessInvite) (*security.BranchScope, error) {
	if inv.BranchID == nil {
		return caller, nil
	}
	org := caller.OrganizationID
	if s.branches != nil {
		info, err := s.branches.Branch(ctx, inv.BranchID.String())
		if err != nil {
			return nil, err
		}
		org = id.Ptr(info.OrganizationID)
	}
	acting := security.NewBranchScope(caller.UserID, org, inv.BranchID, false)
	acting.Permissions = caller.Permissions
	return acting, nil
}

// ExpireDue marks every overdue pending invite as expired.
func (s *InviteService) ExpireDue(ctx context.Context) (int64, error) {
	return s.repo.ExpireDue(ctx, s.Now())
}
