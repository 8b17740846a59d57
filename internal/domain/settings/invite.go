package settings

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
	"lms/internal/core/security"
)

type OrgInviteStatus string

const (
	OrgInvitePending  OrgInviteStatus = "pending"
	OrgInviteAccepted OrgInviteStatus = "accepted"
	OrgInviteExpired  OrgInviteStatus = "expired"
	OrgInviteRevoked  OrgInviteStatus = "revoked"
)

// DefaultOrgInviteTTL is used when the inviter gives no lifetime.
const DefaultOrgInviteTTL = 14 * 24 * time.Hour

// OrganizationInvite asks someone to join an organization, optionally
// landing them in a specific branch.
type OrganizationInvite struct {
	entity.BaseEntity
	entity.BranchOwned

	OrganizationID id.ID           `db:"organization_id" json:"organizationId"`
	Email          string          `db:"email" json:"email"`
	Role           string          `db:"role" json:"role"`
	Token          string          `db:"token" json:"-"`
	Status         OrgInviteStatus `db:"status" json:"status"`
	ExpiresAt      time.Time       `db:"expires_at" json:"expiresAt"`
	AcceptedAt     *time.Time      `db:"accepted_at" json:"acceptedAt,omitempty"`
	InvitedBy      *id.ID          `db:"invited_by" json:"invitedBy,omitempty"`
}

// NewOrganizationInvite creates a pending invite.
func NewOrganizationInvite(orgID id.ID, email, role string, ttl time.Duration, now time.Time) *OrganizationInvite {
	if ttl <= 0 {
		ttl = DefaultOrgInviteTTL
	}
	if role == "" {
		role = security.RoleStudent
	}
	return &OrganizationInvite{
		BaseEntity:     entity.NewBaseEntity(),
		OrganizationID: orgID,
		Email:          strings.ToLower(strings.TrimSpace(email)),
		Role:           role,
		Token:          id.NewToken(),
		Status:         OrgInvitePending,
		ExpiresAt:      now.Add(ttl),
	}
}

func (i *OrganizationInvite) EntityName() string { return "organization_invite" }

// Validate implements entity.Validatable.
func (i *OrganizationInvite) Validate(ctx context.Context) error {
	if id.IsNil(i.OrganizationID) {
		return apperror.NewFieldValidation("organizationId", "organization is required")
	}
	if _, err := mail.ParseAddress(i.Email); err != nil {
		return apperror.NewFieldValidation("email", "invalid email address")
	}
	switch i.Role {
	case security.RoleAdmin, security.RoleInstructor, security.RoleStaff, security.RoleStudent:
	default:
		return apperror.NewFieldValidation("role", "unknown role")
	}
	return nil
}

// IsExpired reports whether the invite lifetime is over at now.
func (i *OrganizationInvite) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// Accept marks the invite used. An expired invite is flipped to expired
// and refused.
func (i *OrganizationInvite) Accept(now time.Time) error {
	if i.Status == OrgInvitePending && i.IsExpired(now) {
		i.Status = OrgInviteExpired
	}
	switch i.Status {
	case OrgInvitePending:
	case OrgInviteExpired:
		return apperror.NewBusinessRule(apperror.CodeInviteExpired, "invite has expired").
			WithDetail("expiresAt", i.ExpiresAt)
	default:
		return apperror.NewInvalidTransition("organization_invite", string(i.Status), string(OrgInviteAccepted))
	}
	i.Status = OrgInviteAccepted
	i.AcceptedAt = &now
	return nil
}
