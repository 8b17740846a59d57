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

// FlagInput sets one flag value.
type FlagInput struct {
	Key            string
	Description    string
	Enabled        bool
	Scope          security.FlagScope
	OrganizationID *id.ID
	BranchID       *id.ID
	Rule           string
}

// FlagService stores feature flag values.
type FlagService struct {
	*domain.Service[*FeatureFlag]
	repo   FlagRepository
	rules  RuleChecker
	reload FlagInvalidator
}

// NewFlagService creates the service. rules and reload may be nil.
func NewFlagService(repo FlagRepository, rules RuleChecker, reload FlagInvalidator, txm tx.Manager, clock func() time.Time) *FlagService {
	return &FlagService{
		Service: domain.NewService(domain.ServiceConfig[*FeatureFlag]{
			Repo:       repo,
			TxManager:  txm,
			EntityName: "feature_flag",
			Clock:      clock,
		}),
		repo:   repo,
		rules:  rules,
		reload: reload,
	}
}

// Set creates or replaces the value of a flag at one scope. Non-main
// callers may only set flags of their own branch.
func (s *FlagService) Set(ctx context.Context, in FlagInput) (*FeatureFlag, error) {
	scope, err := domain.RequireScope(ctx)
	if err != nil {
		return nil, err
	}
	if in.Scope == "" {
		in.Scope = security.FlagScopeGlobal
	}
	if !scope.System && !scope.IsMainBranch {
		if in.Scope != security.FlagScopeBranch || !scope.HasBranch() {
			return nil, apperror.NewForbidden("only the main branch sets organization or global flags")
		}
		in.BranchID = scope.BranchID
	}
	if in.Scope == security.FlagScopeBranch && in.OrganizationID == nil {
		in.OrganizationID = scope.OrganizationID
	}
	if in.Scope == security.FlagScopeGlobal {
		in.OrganizationID, in.BranchID = nil, nil
	}
	if in.Rule != "" && s.rules != nil {
		if err := s.rules.Check(in.Rule); err != nil {
			return nil, apperror.NewFieldValidation("rule", "invalid rule expression").WithCause(err)
		}
	}

	var out *FeatureFlag
	err = s.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindByScope(ctx, in.Key, in.Scope, in.OrganizationID, in.BranchID)
		switch {
		case err == nil:
			existing.Enabled = in.Enabled
			existing.Rule = in.Rule
			if in.Description != "" {
				existing.Description = in.Description
			}
			out = existing
			return s.Update(ctx, existing)
		case apperror.IsNotFound(err):
			f := NewFeatureFlag(in.Key, in.Enabled)
			f.Description = in.Description
			f.Scope = in.Scope
			f.OrganizationID = in.OrganizationID
			f.BranchID = in.BranchID
			f.Rule = in.Rule
			out = f
			return s.Create(ctx, f)
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	if s.reload != nil {
		if err := s.reload.Reload(ctx); err != nil {
			logger.Warn(ctx, "feature flag reload failed", "key", in.Key, "error", err)
		}
	}
	logger.Info(ctx, "feature flag set", "key", out.Key, "scope", out.Scope, "owner", out.OwnerID(), "enabled", out.Enabled)
	return out, nil
}

// All returns every active flag.
func (s *FlagService) All(ctx context.Context) ([]*FeatureFlag, error) {
	if _, err := domain.RequireScope(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListAll(ctx)
}
