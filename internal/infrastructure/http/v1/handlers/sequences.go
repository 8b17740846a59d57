package handlers

import (
	"github.com/gin-gonic/gin"

	"lms/internal/core/apperror"
	"lms/internal/domain/settings"
	"lms/internal/infrastructure/http/v1/dto"
)

// SequenceHandler exposes number sequence administration.
type SequenceHandler struct {
	*BaseHandler
	service *settings.SequenceService
}

// NewSequenceHandler creates a new sequence handler.
func NewSequenceHandler(base *BaseHandler, service *settings.SequenceService) *SequenceHandler {
	return &SequenceHandler{BaseHandler: base, service: service}
}

// bindTarget reads the target from the query string.
func (h *SequenceHandler) bindTarget(c *gin.Context) (settings.SequenceTarget, bool) {
	req := dto.SequenceTargetRequest{
		Type:             c.Query("type"),
		OrganizationWide: c.Query("organizationWide") == "true",
	}
	if req.Type == "" {
		h.Error(c, apperror.NewFieldValidation("type", "sequence type is required"))
		return settings.SequenceTarget{}, false
	}
	var err error
	org, branch := c.Query("organizationId"), c.Query("branchId")
	if req.OrganizationID, err = dto.ParseOptionalID("organizationId", &org); err != nil {
		h.Error(c, err)
		return settings.SequenceTarget{}, false
	}
	if req.BranchID, err = dto.ParseOptionalID("branchId", &branch); err != nil {
		h.Error(c, err)
		return settings.SequenceTarget{}, false
	}
	return req.ToTarget(), true
}

// List handles GET /sequences
func (h *SequenceHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ItemsResponse{Items: items})
}

// Get handles GET /sequences/lookup?type=...
func (h *SequenceHandler) Get(c *gin.Context) {
	target, ok := h.bindTarget(c)
	if !ok {
		return
	}
	seq, err := h.service.Get(c.Request.Context(), target)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, seq)
}

// Provision handles POST /sequences
func (h *SequenceHandler) Provision(c *gin.Context) {
	var req dto.ProvisionSequenceRequest
	if !h.BindJSON(c, &req) {
		return
	}
	seq, err := h.service.Provision(c.Request.Context(), req.ToTarget(), req.ToConfig())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, seq)
}

// Peek handles GET /sequences/peek?type=...
func (h *SequenceHandler) Peek(c *gin.Context) {
	target, ok := h.bindTarget(c)
	if !ok {
		return
	}
	n, err := h.service.Peek(c.Request.Context(), target)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.SequenceNumberResponse{Number: n})
}

// Consume handles POST /sequences/consume
func (h *SequenceHandler) Consume(c *gin.Context) {
	var req dto.SequenceTargetRequest
	if !h.BindJSON(c, &req) {
		return
	}
	n, err := h.service.Consume(c.Request.Context(), req.ToTarget())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.SequenceNumberResponse{Number: n, Consumed: true})
}
