package settings

import (
	"context"
	"regexp"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
	"lms/internal/core/security"
)

var flagKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,63}$`)

// FeatureFlag switches a feature for everyone, an organization or a branch.
// The most specific scope wins. A non-empty Rule is a CEL expression over
// org, branch, user and roles that must also hold.
type FeatureFlag struct {
	entity.BaseEntity

	Key            string             `db:"key" json:"key"`
	Description    string             `db:"description" json:"description,omitempty"`
	Enabled        bool               `db:"enabled" json:"enabled"`
	Scope          security.FlagScope `db:"scope" json:"scope"`
	OrganizationID *id.ID             `db:"organization_id" json:"organizationId,omitempty"`
	BranchID       *id.ID             `db:"branch_id" json:"branchId,omitempty"`
	Rule           string             `db:"rule" json:"rule,omitempty"`
}

// NewFeatureFlag creates a global flag.
func NewFeatureFlag(key string, enabled bool) *FeatureFlag {
	return &FeatureFlag{BaseEntity: entity.NewBaseEntity(), Key: key, Enabled: enabled, Scope: security.FlagScopeGlobal}
}

func (f *FeatureFlag) EntityName() string { return "feature_flag" }

// OwnerID is the organization or branch the value belongs to.
func (f *FeatureFlag) OwnerID() string {
	switch f.Scope {
	case security.FlagScopeBranch:
		if f.BranchID != nil {
			return f.BranchID.String()
		}
	case security.FlagScopeOrganization:
		if f.OrganizationID != nil {
			return f.OrganizationID.String()
		}
	}
	return ""
}

// Validate implements entity.Validatable.
func (f *FeatureFlag) Validate(ctx context.Context) error {
	if !flagKeyPattern.MatchString(f.Key) {
		return apperror.NewFieldValidation("key", "flag keys are lower snake case")
	}
	switch f.Scope {
	case security.FlagScopeGlobal:
		if f.OrganizationID != nil || f.BranchID != nil {
			return apperror.NewFieldValidation("scope", "global flags have no owner")
		}
	case security.FlagScopeOrganization:
		if f.OrganizationID == nil || f.BranchID != nil {
			return apperror.NewFieldValidation("organizationId", "organization flags need exactly an organization")
		}
	case security.FlagScopeBranch:
		if f.BranchID == nil {
			return apperror.NewFieldValidation("branchId", "branch flags need a branch")
		}
	default:
		return apperror.NewFieldValidation("scope", "unknown flag scope")
	}
	return nil
}

// RuleChecker compiles flag rules before they are stored.
type RuleChecker interface {
	Check(rule string) error
}
