package handlers

import (
	"github.com/gin-gonic/gin"

	appctx "lms/internal/core/context"
	"lms/internal/core/id"
	"lms/internal/core/security"
	"lms/internal/domain/content"
	"lms/internal/infrastructure/http/v1/dto"
)

// LessonHandler adds publishing, drip release and completion to lesson CRUD.
type LessonHandler struct {
	*EntityHandler[*content.Lesson, dto.CreateLessonRequest, dto.UpdateLessonRequest]
	service *content.Service
}

// NewLessonHandler creates a new lesson handler.
func NewLessonHandler(base *BaseHandler, service *content.Service) *LessonHandler {
	return &LessonHandler{
		EntityHandler: NewEntityHandler(base, EntityHandlerConfig[*content.Lesson, dto.CreateLessonRequest, dto.UpdateLessonRequest]{
			Service:      service,
			DefaultOrder: "position",
			MapCreate:    dto.CreateLessonRequest.ToEntity,
			MapUpdate: func(req dto.UpdateLessonRequest, l *content.Lesson) {
				req.ApplyTo(l)
			},
		}),
		service: service,
	}
}

// ListByCourse handles GET /courses/:id/lessons
func (h *LessonHandler) ListByCourse(c *gin.Context) {
	courseID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	f, ok := h.ListFilter(c, "position")
	if !ok {
		return
	}
	res, err := h.service.ListByCourse(c.Request.Context(), courseID, f)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(h.BaseHandler, c, res)
}

// Publish handles POST /lessons/:id/publish
func (h *LessonHandler) Publish(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	l, err := h.service.Publish(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, l)
}

// ReleaseStatus handles GET /lessons/:id/release-status?userId=...
// Without userId the caller's own status is returned.
func (h *LessonHandler) ReleaseStatus(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	userID, ok := h.subject(c)
	if !ok {
		return
	}
	info, err := h.service.ReleaseStatus(c.Request.Context(), key, userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, info)
}

// Complete handles POST /lessons/:id/complete
func (h *LessonHandler) Complete(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	userID, ok := h.CallerID(c)
	if !ok {
		return
	}
	done, err := h.service.Complete(c.Request.Context(), key, userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, done)
}

// Progress handles GET /courses/:id/progress?userId=...
// Looking at someone else's progress needs enrollments:read.
func (h *LessonHandler) Progress(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	userID, ok := h.subject(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if caller, _ := id.Parse(appctx.GetUserID(ctx)); caller != userID {
		if err := security.RequirePermission(ctx, security.Perm("enrollments", security.ActionRead)); err != nil {
			h.Error(c, err)
			return
		}
	}
	p, err := h.service.Progress(ctx, key, userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}
