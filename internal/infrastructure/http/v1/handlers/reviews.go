package handlers

import (
	"github.com/gin-gonic/gin"

	"lms/internal/domain/reviews"
	"lms/internal/infrastructure/http/v1/dto"
)

// ReviewHandler serves course reviews and their moderation.
type ReviewHandler struct {
	*BaseHandler
	service *reviews.Service
}

// NewReviewHandler creates a new review handler.
func NewReviewHandler(base *BaseHandler, service *reviews.Service) *ReviewHandler {
	return &ReviewHandler{BaseHandler: base, service: service}
}

// List handles GET /reviews, the moderation queue.
func (h *ReviewHandler) List(c *gin.Context) {
	f, ok := h.ListFilter(c, "created_at")
	if !ok {
		return
	}
	if status := c.Query("status"); status != "" {
		f.Where("status", reviews.Status(status))
	}
	res, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(h.BaseHandler, c, res)
}

// Submit handles POST /reviews
func (h *ReviewHandler) Submit(c *gin.Context) {
	var req dto.SubmitReviewRequest
	if !h.BindJSON(c, &req) {
		return
	}
	r, err := h.service.Submit(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, r)
}

// Edit handles PUT /reviews/:id
func (h *ReviewHandler) Edit(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.EditReviewRequest
	if !h.BindJSON(c, &req) {
		return
	}
	r, err := h.service.Edit(c.Request.Context(), key, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, r)
}

// Moderate handles POST /reviews/:id/moderate
func (h *ReviewHandler) Moderate(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ModerateReviewRequest
	if !h.BindJSON(c, &req) {
		return
	}
	r, err := h.service.Moderate(c.Request.Context(), key, reviews.Status(req.Status), req.Note)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, r)
}

// Published handles GET /courses/:id/reviews
func (h *ReviewHandler) Published(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	f, ok := h.ListFilter(c, "-created_at")
	if !ok {
		return
	}
	res, err := h.service.Published(c.Request.Context(), key, f)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(h.BaseHandler, c, res)
}

// Summary handles GET /courses/:id/rating
func (h *ReviewHandler) Summary(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	s, err := h.service.Summary(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, s)
}
