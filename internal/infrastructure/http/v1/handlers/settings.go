package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"lms/internal/core/id"
	"lms/internal/domain/settings"
	"lms/internal/infrastructure/http/v1/dto"
)

// orgCRUD adapts OrganizationService to the generic entity handler.
type orgCRUD struct{ *settings.OrganizationService }

func (s orgCRUD) GetByID(ctx context.Context, key id.ID) (*settings.Organization, error) {
	return s.Get(ctx, key)
}

func (s orgCRUD) Delete(ctx context.Context, key id.ID) error {
	return s.Deactivate(ctx, key)
}

// branchCRUD adapts BranchService to the generic entity handler.
type branchCRUD struct{ *settings.BranchService }

func (s branchCRUD) GetByID(ctx context.Context, key id.ID) (*settings.Branch, error) {
	return s.Get(ctx, key)
}

func (s branchCRUD) Delete(ctx context.Context, key id.ID) error {
	return s.Deactivate(ctx, key)
}

// NewOrganizationHandler creates the organization CRUD handler.
func NewOrganizationHandler(base *BaseHandler, svc *settings.OrganizationService) *EntityHandler[*settings.Organization, dto.CreateOrganizationRequest, dto.UpdateOrganizationRequest] {
	return NewEntityHandler(base, EntityHandlerConfig[*settings.Organization, dto.CreateOrganizationRequest, dto.UpdateOrganizationRequest]{
		Service:      orgCRUD{svc},
		DefaultOrder: "name",
		MapCreate:    dto.CreateOrganizationRequest.ToEntity,
		MapUpdate: func(req dto.UpdateOrganizationRequest, o *settings.Organization) {
			req.ApplyTo(o)
		},
	})
}

// NewBranchHandler creates the branch CRUD handler.
func NewBranchHandler(base *BaseHandler, svc *settings.BranchService) *EntityHandler[*settings.Branch, dto.CreateBranchRequest, dto.UpdateBranchRequest] {
	return NewEntityHandler(base, EntityHandlerConfig[*settings.Branch, dto.CreateBranchRequest, dto.UpdateBranchRequest]{
		Service:      branchCRUD{svc},
		DefaultOrder: "name",
		MapCreate:    dto.CreateBranchRequest.ToEntity,
		MapUpdate: func(req dto.UpdateBranchRequest, b *settings.Branch) {
			req.ApplyTo(b)
		},
	})
}

// SettingsHandler serves memberships, organization invites and feature flags.
type SettingsHandler struct {
	*BaseHandler
	memberships *settings.MembershipService
	invites     *settings.OrgInviteService
	flags       *settings.FlagService
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(base *BaseHandler, memberships *settings.MembershipService, invites *settings.OrgInviteService, flags *settings.FlagService) *SettingsHandler {
	return &SettingsHandler{BaseHandler: base, memberships: memberships, invites: invites, flags: flags}
}

// MyMemberships handles GET /memberships/mine
func (h *SettingsHandler) MyMemberships(c *gin.Context) {
	items, err := h.memberships.Mine(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ItemsResponse{Items: items})
}

// AddMember handles POST /memberships
func (h *SettingsHandler) AddMember(c *gin.Context) {
	var req dto.AddMemberRequest
	if !h.BindJSON(c, &req) {
		return
	}
	m, err := h.memberships.Add(c.Request.Context(), req.UserID, req.BranchID, req.RoleHint, req.IsDefault)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, m)
}

// RevokeMember handles DELETE /memberships/:branchId/users/:userId
func (h *SettingsHandler) RevokeMember(c *gin.Context) {
	branchID, ok := h.ParamID(c, "branchId")
	if !ok {
		return
	}
	userID, ok := h.ParamID(c, "userId")
	if !ok {
		return
	}
	if err := h.memberships.Revoke(c.Request.Context(), userID, branchID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// SwitchBranch handles POST /memberships/switch.
// The new branch applies to tokens issued after the switch.
func (h *SettingsHandler) SwitchBranch(c *gin.Context) {
	var req dto.SwitchBranchRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if err := h.memberships.SwitchBranch(c.Request.Context(), req.BranchID); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.SuccessResponse{Success: true, Message: "refresh your token to use the new branch"})
}

// InviteMember handles POST /org-invites
func (h *SettingsHandler) InviteMember(c *gin.Context) {
	var req dto.OrgInviteRequest
	if !h.BindJSON(c, &req) {
		return
	}
	inv, err := h.invites.Invite(c.Request.Context(), req.Email, req.Role, req.BranchID, req.TTL())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.OrgInviteResponse{OrganizationInvite: inv, Token: inv.Token})
}

// AcceptInvite handles POST /org-invites/accept
func (h *SettingsHandler) AcceptInvite(c *gin.Context) {
	var req dto.TokenRequest
	if !h.BindJSON(c, &req) {
		return
	}
	m, err := h.invites.Accept(c.Request.Context(), req.Token)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, m)
}

// ListFlags handles GET /flags
func (h *SettingsHandler) ListFlags(c *gin.Context) {
	flags, err := h.flags.All(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ItemsResponse{Items: flags})
}

// SetFlag handles PUT /flags
func (h *SettingsHandler) SetFlag(c *gin.Context) {
	var req dto.FlagRequest
	if !h.BindJSON(c, &req) {
		return
	}
	flag, err := h.flags.Set(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, flag)
}
