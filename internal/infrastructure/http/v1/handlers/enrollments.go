package handlers

import (
	"github.com/gin-gonic/gin"

	"lms/internal/core/security"
	"lms/internal/domain/enrollments"
	"lms/internal/infrastructure/http/v1/dto"
)

// EnrollmentHandler serves enrollments and their status transitions.
type EnrollmentHandler struct {
	*BaseHandler
	service *enrollments.Service
}

// NewEnrollmentHandler creates a new enrollment handler.
func NewEnrollmentHandler(base *BaseHandler, service *enrollments.Service) *EnrollmentHandler {
	return &EnrollmentHandler{BaseHandler: base, service: service}
}

// List handles GET /enrollments
func (h *EnrollmentHandler) List(c *gin.Context) {
	f, ok := h.ListFilter(c, "-enrolled_at")
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

// Get handles GET /enrollments/:id
func (h *EnrollmentHandler) Get(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	e, err := h.service.GetByID(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, e)
}

// Enroll handles POST /enrollments
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req dto.EnrollRequest
	if !h.BindJSON(c, &req) {
		return
	}
	caller, ok := h.CallerID(c)
	if !ok {
		return
	}
	in, err := req.ToInput(caller)
	if err != nil {
		h.Error(c, err)
		return
	}
	ctx := c.Request.Context()
	if in.Source != enrollments.SourceSelf {
		if err := security.RequirePermission(ctx, security.Perm("enrollments", security.ActionCreate)); err != nil {
			h.Error(c, err)
			return
		}
	}
	e, err := h.service.Enroll(ctx, in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, e)
}

// Access handles GET /enrollments/:id/access
func (h *EnrollmentHandler) Access(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	info, err := h.service.Access(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, info)
}

// Events handles GET /enrollments/:id/events
func (h *EnrollmentHandler) Events(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	events, err := h.service.Events(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ItemsResponse{Items: events})
}

// Cancel handles POST /enrollments/:id/cancel
func (h *EnrollmentHandler) Cancel(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}
	h.respondEnrollment(c)(h.service.Cancel(c.Request.Context(), key, req.Reason))
}

// Suspend handles POST /enrollments/:id/suspend
func (h *EnrollmentHandler) Suspend(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}
	h.respondEnrollment(c)(h.service.Suspend(c.Request.Context(), key, req.Reason))
}

// Resume handles POST /enrollments/:id/resume
func (h *EnrollmentHandler) Resume(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	h.respondEnrollment(c)(h.service.Resume(c.Request.Context(), key))
}

// Complete handles POST /enrollments/:id/complete
func (h *EnrollmentHandler) Complete(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	h.respondEnrollment(c)(h.service.Complete(c.Request.Context(), key))
}

// Refund handles POST /enrollments/:id/refund
func (h *EnrollmentHandler) Refund(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	h.respondEnrollment(c)(h.service.Refund(c.Request.Context(), key))
}

// Extend handles POST /enrollments/:id/extend
func (h *EnrollmentHandler) Extend(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ExtendRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.respondEnrollment(c)(h.service.Extend(c.Request.Context(), key, req.Until))
}

// Expire handles POST /enrollments/:id/expire. An enrollment whose window
// is still open is returned unchanged with expired=false.
func (h *EnrollmentHandler) Expire(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	e, expired, err := h.service.Expire(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ExpireResponse{Enrollment: e, Expired: expired})
}

func (h *EnrollmentHandler) respondEnrollment(c *gin.Context) func(*enrollments.Enrollment, error) {
	return func(e *enrollments.Enrollment, err error) {
		if err != nil {
			h.Error(c, err)
			return
		}
		h.OK(c, e)
	}
}
