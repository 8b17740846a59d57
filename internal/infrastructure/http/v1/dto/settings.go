package dto

import (
	"time"

	numerator "lms/internal/core/numerator"
	"lms/internal/core/id"
	"lms/internal/core/security"
	"lms/internal/domain/settings"
)

// CreateOrganizationRequest is the request body for creating an organization.
type CreateOrganizationRequest struct {
	Code            string `json:"code" binding:"required"`
	Name            string `json:"name" binding:"required"`
	LegalName       string `json:"legalName"`
	OrgType         string `json:"orgType"`
	Email           string `json:"email"`
	Timezone        string `json:"timezone"`
	DefaultLanguage string `json:"defaultLanguage"`
	DefaultCurrency string `json:"defaultCurrency"`
}

// ToEntity converts DTO to domain entity.
func (r CreateOrganizationRequest) ToEntity() *settings.Organization {
	o := settings.NewOrganization(r.Code, r.Name)
	o.LegalName = r.LegalName
	o.Email = r.Email
	if r.OrgType != "" {
		o.OrgType = settings.OrgType(r.OrgType)
	}
	if r.Timezone != "" {
		o.Timezone = r.Timezone
	}
	if r.DefaultLanguage != "" {
		o.DefaultLanguage = r.DefaultLanguage
	}
	if r.DefaultCurrency != "" {
		o.DefaultCurrency = r.DefaultCurrency
	}
	return o
}

// UpdateOrganizationRequest is the request body for updating an organization.
type UpdateOrganizationRequest struct {
	Name            *string `json:"name"`
	LegalName       *string `json:"legalName"`
	Email           *string `json:"email"`
	Timezone        *string `json:"timezone"`
	DefaultLanguage *string `json:"defaultLanguage"`
	DefaultCurrency *string `json:"defaultCurrency"`
	Version         int     `json:"version" binding:"required,min=1"`
}

// ApplyTo applies the non-nil fields.
func (r UpdateOrganizationRequest) ApplyTo(o *settings.Organization) {
	setString(&o.Name, r.Name)
	setString(&o.LegalName, r.LegalName)
	setString(&o.Email, r.Email)
	setString(&o.Timezone, r.Timezone)
	setString(&o.DefaultLanguage, r.DefaultLanguage)
	setString(&o.DefaultCurrency, r.DefaultCurrency)
	o.Version = r.Version
}

// CreateBranchRequest is the request body for creating a branch.
type CreateBranchRequest struct {
	OrganizationID id.ID  `json:"organizationId" binding:"required"`
	Code           string `json:"code" binding:"required"`
	Name           string `json:"name" binding:"required"`
	BranchType     string `json:"branchType"`
	Timezone       string `json:"timezone"`
	IsDefault      bool   `json:"isDefault"`
	IsMainBranch   bool   `json:"isMainBranch"`
}

// ToEntity converts DTO to domain entity.
func (r CreateBranchRequest) ToEntity() *settings.Branch {
	b := settings.NewBranch(r.OrganizationID, r.Code, r.Name)
	if r.BranchType != "" {
		b.BranchType = settings.BranchType(r.BranchType)
	}
	if r.Timezone != "" {
		b.Timezone = r.Timezone
	}
	b.IsDefault = r.IsDefault
	b.IsMainBranch = r.IsMainBranch
	return b
}

// UpdateBranchRequest is the request body for updating a branch.
type UpdateBranchRequest struct {
	Name       *string `json:"name"`
	BranchType *string `json:"branchType"`
	Timezone   *string `json:"timezone"`
	IsDefault  *bool   `json:"isDefault"`
	Version    int     `json:"version" binding:"required,min=1"`
}

// ApplyTo applies the non-nil fields.
func (r UpdateBranchRequest) ApplyTo(b *settings.Branch) {
	setString(&b.Name, r.Name)
	setString(&b.Timezone, r.Timezone)
	if r.BranchType != nil {
		b.BranchType = settings.BranchType(*r.BranchType)
	}
	if r.IsDefault != nil {
		b.IsDefault = *r.IsDefault
	}
	b.Version = r.Version
}

// AddMemberRequest adds a user to a branch.
type AddMemberRequest struct {
	UserID    id.ID  `json:"userId" binding:"required"`
	BranchID  id.ID  `json:"branchId" binding:"required"`
	RoleHint  string `json:"roleHint"`
	IsDefault bool   `json:"isDefault"`
}

// SwitchBranchRequest moves the caller's current branch pointer.
type SwitchBranchRequest struct {
	BranchID id.ID `json:"branchId" binding:"required"`
}

// OrgInviteRequest invites someone to the caller's organization.
type OrgInviteRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Role     string `json:"role"`
	BranchID *id.ID `json:"branchId"`
	TTLHours int    `json:"ttlHours" binding:"min=0"`
}

// TTL returns the requested lifetime; zero selects the service default.
func (r OrgInviteRequest) TTL() time.Duration {
	return time.Duration(r.TTLHours) * time.Hour
}

// OrgInviteResponse exposes the invite token once, to the inviter.
type OrgInviteResponse struct {
	*settings.OrganizationInvite
	Token string `json:"token"`
}

// FlagRequest sets a feature flag value at a scope.
type FlagRequest struct {
	Key            string `json:"key" binding:"required"`
	Description    string `json:"description"`
	Enabled        bool   `json:"enabled"`
	Scope          string `json:"scope" binding:"required,oneof=global organization branch"`
	OrganizationID *id.ID `json:"organizationId"`
	BranchID       *id.ID `json:"branchId"`
	Rule           string `json:"rule"`
}

// ToInput converts to the service input.
func (r FlagRequest) ToInput() settings.FlagInput {
	return settings.FlagInput{
		Key:            r.Key,
		Description:    r.Description,
		Enabled:        r.Enabled,
		Scope:          security.FlagScope(r.Scope),
		OrganizationID: r.OrganizationID,
		BranchID:       r.BranchID,
		Rule:           r.Rule,
	}
}

// SequenceTargetRequest addresses one number sequence.
type SequenceTargetRequest struct {
	Type             string `json:"type" binding:"required"`
	OrganizationID   *id.ID `json:"organizationId"`
	BranchID         *id.ID `json:"branchId"`
	OrganizationWide bool   `json:"organizationWide"`
}

// ToTarget converts to the service target.
func (r SequenceTargetRequest) ToTarget() settings.SequenceTarget {
	return settings.SequenceTarget{
		Type:             numerator.SequenceType(r.Type),
		OrganizationID:   r.OrganizationID,
		BranchID:         r.BranchID,
		OrganizationWide: r.OrganizationWide,
	}
}

// ProvisionSequenceRequest creates a sequence.
type ProvisionSequenceRequest struct {
	SequenceTargetRequest
	Prefix      string `json:"prefix"`
	Padding     int    `json:"padding" binding:"min=0,max=18"`
	NextNumber  int64  `json:"nextNumber" binding:"min=0"`
	ResetYearly bool   `json:"resetYearly"`
}

// ToConfig converts to the provisioning config.
func (r ProvisionSequenceRequest) ToConfig() numerator.Config {
	cfg := numerator.DefaultConfig(r.Prefix)
	if r.Padding > 0 {
		cfg.Padding = r.Padding
	}
	if r.NextNumber > 0 {
		cfg.NextNumber = r.NextNumber
	}
	cfg.ResetYearly = r.ResetYearly
	return cfg
}

// SequenceNumberResponse carries a peeked or consumed number.
type SequenceNumberResponse struct {
	Number   string `json:"number"`
	Consumed bool   `json:"consumed"`
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
