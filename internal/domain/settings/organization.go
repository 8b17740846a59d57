// Package settings manages tenants and their configuration: organizations,
// branches, memberships, feature flags, organization invites and number
// sequences.
package settings

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
)

// OrgType classifies a tenant.
type OrgType string

const (
	OrgSchool     OrgType = "school"
	OrgUniversity OrgType = "university"
	OrgCompany    OrgType = "company"
	OrgCreator    OrgType = "creator"
)

// Organization is a tenant. Its code is unique across the installation.
type Organization struct {
	entity.Catalog

	LegalName       string  `db:"legal_name" json:"legalName,omitempty"`
	OrgType         OrgType `db:"org_type" json:"orgType"`
	Email           string  `db:"email" json:"email,omitempty"`
	Timezone        string  `db:"timezone" json:"timezone"`
	DefaultLanguage string  `db:"default_language" json:"defaultLanguage"`
	DefaultCurrency string  `db:"default_currency" json:"defaultCurrency"`
}

// NewOrganization creates an organization with installation defaults.
func NewOrganization(code, name string) *Organization {
	return &Organization{
		Catalog:         entity.NewCatalog(strings.ToLower(code), name),
		OrgType:         OrgSchool,
		Timezone:        "UTC",
		DefaultLanguage: "en",
		DefaultCurrency: "USD",
	}
}

func (o *Organization) EntityName() string { return "organization" }

// Validate implements entity.Validatable.
func (o *Organization) Validate(ctx context.Context) error {
	if err := o.Catalog.Validate(ctx); err != nil {
		return err
	}
	switch o.OrgType {
	case OrgSchool, OrgUniversity, OrgCompany, OrgCreator:
	default:
		return apperror.NewFieldValidation("orgType", "unknown organization type")
	}
	if err := validateTimezone(o.Timezone); err != nil {
		return err
	}
	if !entity.IsCurrencyCode(o.DefaultCurrency) {
		return apperror.NewFieldValidation("defaultCurrency", "currency must be a 3-letter ISO code")
	}
	if o.Email != "" {
		if _, err := mail.ParseAddress(o.Email); err != nil {
			return apperror.NewFieldValidation("email", "invalid email address")
		}
	}
	return nil
}

func validateTimezone(tz string) error {
	if _, err := time.LoadLocation(tz); err != nil || tz == "" {
		return apperror.NewFieldValidation("timezone", "unknown time zone").WithDetail("value", tz)
	}
	return nil
}
