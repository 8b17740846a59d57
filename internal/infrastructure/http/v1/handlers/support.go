package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"lms/internal/core/security"
	"lms/internal/domain/support"
	"lms/internal/infrastructure/http/v1/dto"
)

// SupportHandler serves the help desk. Reporters reach their own tickets;
// holders of tickets:update work the whole branch queue.
type SupportHandler struct {
	*BaseHandler
	service *support.Service
}

// NewSupportHandler creates a new support handler.
func NewSupportHandler(base *BaseHandler, service *support.Service) *SupportHandler {
	return &SupportHandler{BaseHandler: base, service: service}
}

func onDesk(ctx context.Context) bool {
	return security.HasPermission(ctx, security.Perm("tickets", security.ActionUpdate))
}

// List handles GET /tickets
func (h *SupportHandler) List(c *gin.Context) {
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

// Mine handles GET /tickets/mine
func (h *SupportHandler) Mine(c *gin.Context) {
	f, ok := h.ListFilter(c, "-created_at")
	if !ok {
		return
	}
	res, err := h.service.ListMine(c.Request.Context(), f)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(h.BaseHandler, c, res)
}

// Overdue handles GET /tickets/overdue
func (h *SupportHandler) Overdue(c *gin.Context) {
	rows, err := h.service.Overdue(c.Request.Context(), h.ParseIntQuery(c, "limit", 50))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ItemsResponse{Items: rows})
}

// Open handles POST /tickets
func (h *SupportHandler) Open(c *gin.Context) {
	var req dto.OpenTicketRequest
	if !h.BindJSON(c, &req) {
		return
	}
	caller, ok := h.CallerID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if req.ReporterID != nil && *req.ReporterID != caller {
		if err := security.RequirePermission(ctx, security.Perm("tickets", security.ActionCreate)); err != nil {
			h.Error(c, err)
			return
		}
	}
	t, err := h.service.Open(ctx, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, t)
}

// Get handles GET /tickets/:id
func (h *SupportHandler) Get(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	t, err := h.service.Get(ctx, key, onDesk(ctx))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, t)
}

// Messages handles GET /tickets/:id/messages
func (h *SupportHandler) Messages(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	msgs, err := h.service.Messages(ctx, key, onDesk(ctx))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ItemsResponse{Items: msgs})
}

// Reply handles POST /tickets/:id/messages
func (h *SupportHandler) Reply(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.TicketReplyRequest
	if !h.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	m, err := h.service.Reply(ctx, key, req.Body, req.Internal, onDesk(ctx))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, m)
}

// Reopen handles POST /tickets/:id/reopen
func (h *SupportHandler) Reopen(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	t, err := h.service.Reopen(ctx, key, onDesk(ctx))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, t)
}

// Assign handles POST /tickets/:id/assign
func (h *SupportHandler) Assign(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.AssignTicketRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}
	t, err := h.service.Assign(c.Request.Context(), key, req.AssigneeID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, t)
}

// SetPriority handles PUT /tickets/:id/priority
func (h *SupportHandler) SetPriority(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.TicketPriorityRequest
	if !h.BindJSON(c, &req) {
		return
	}
	t, err := h.service.SetPriority(c.Request.Context(), key, support.Priority(req.Priority))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, t)
}

// Transition handles POST /tickets/:id/status
func (h *SupportHandler) Transition(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.TicketStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	t, err := h.service.Transition(c.Request.Context(), key, support.Status(req.Status))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, t)
}
