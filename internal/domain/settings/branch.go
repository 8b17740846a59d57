package settings

import (
	"context"
	"strings"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
	"lms/internal/core/tenant"
)

type BranchType string

const (
	BranchCampus BranchType = "campus"
	BranchOnline BranchType = "online"
	BranchOffice BranchType = "office"
)

// Branch partitions an organization's rows. Its code is unique within the
// organization and at most one active branch per organization is main.
type Branch struct {
	entity.Catalog

	OrganizationID id.ID      `db:"organization_id" json:"organizationId"`
	BranchType     BranchType `db:"branch_type" json:"branchType"`
	Timezone       string     `db:"timezone" json:"timezone"`
	IsDefault      bool       `db:"is_default" json:"isDefault"`
	IsMainBranch   bool       `db:"is_main_branch" json:"isMainBranch"`
}

// NewBranch creates a campus branch of org.
func NewBranch(organizationID id.ID, code, name string) *Branch {
	return &Branch{
		Catalog:        entity.NewCatalog(strings.ToLower(code), name),
		OrganizationID: organizationID,
		BranchType:     BranchCampus,
		Timezone:       "UTC",
	}
}

func (b *Branch) EntityName() string { return "branch" }

// Validate implements entity.Validatable.
func (b *Branch) Validate(ctx context.Context) error {
	if err := b.Catalog.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(b.OrganizationID) {
		return apperror.NewFieldValidation("organizationId", "organization is required")
	}
	switch b.BranchType {
	case BranchCampus, BranchOnline, BranchOffice:
	default:
		return apperror.NewFieldValidation("branchType", "unknown branch type")
	}
	return validateTimezone(b.Timezone)
}

// Info is the resolver view of the branch.
func (b *Branch) Info(orgActive bool) *tenant.BranchInfo {
	return &tenant.BranchInfo{
		ID:                 b.ID,
		OrganizationID:     b.OrganizationID,
		Code:               b.Code,
		IsMainBranch:       b.IsMainBranch,
		Active:             b.Active,
		OrganizationActive: orgActive,
	}
}

// Membership links a user to a branch they may act in.
type Membership struct {
	entity.BaseEntity
	entity.BranchOwned

	UserID    id.ID  `db:"user_id" json:"userId"`
	IsDefault bool   `db:"is_default" json:"isDefault"`
	RoleHint  string `db:"role_hint" json:"roleHint,omitempty"`
}

// NewMembership creates a membership of user in branch.
func NewMembership(userID, branchID id.ID, roleHint string) *Membership {
	m := &Membership{BaseEntity: entity.NewBaseEntity(), UserID: userID, RoleHint: roleHint}
	m.BranchID = id.Ptr(branchID)
	return m
}

func (m *Membership) EntityName() string { return "branch_membership" }

// Validate implements entity.Validatable.
func (m *Membership) Validate(ctx context.Context) error {
	if id.IsNil(m.UserID) {
		return apperror.NewFieldValidation("userId", "user is required")
	}
	if m.BranchID == nil {
		return apperror.NewFieldValidation("branchId", "branch is required")
	}
	return nil
}
