package handlers

import (
	"github.com/gin-gonic/gin"

	"lms/internal/domain/enrollments"
	"lms/internal/infrastructure/http/v1/dto"
)

// InviteHandler serves course access invites.
type InviteHandler struct {
	*BaseHandler
	service *enrollments.InviteService
}

// NewInviteHandler creates a new invite handler.
func NewInviteHandler(base *BaseHandler, service *enrollments.InviteService) *InviteHandler {
	return &InviteHandler{BaseHandler: base, service: service}
}

// List handles GET /course-invites
func (h *InviteHandler) List(c *gin.Context) {
	f, ok := h.ListFilter(c, "-created_at")
	if !ok {
		return
	}
	res, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(h.BaseHandler, c, res)
}

// Create handles POST /course-invites
func (h *InviteHandler) Create(c *gin.Context) {
	var req dto.CourseInviteRequest
	if !h.BindJSON(c, &req) {
		return
	}
	inv, err := h.service.Invite(c.Request.Context(), req.CourseID, req.Email, req.TTL())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.CourseInviteResponse{AccessInvite: inv, Token: inv.Token})
}

// Revoke handles POST /course-invites/:id/revoke
func (h *InviteHandler) Revoke(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	inv, err := h.service.Revoke(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, inv)
}

// Accept handles POST /course-invites/accept. The invite's email must
// match the caller's.
func (h *InviteHandler) Accept(c *gin.Context) {
	var req dto.TokenRequest
	if !h.BindJSON(c, &req) {
		return
	}
	e, err := h.service.Accept(c.Request.Context(), req.Token)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, e)
}
