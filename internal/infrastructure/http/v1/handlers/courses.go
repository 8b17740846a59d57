package handlers

import (
	"github.com/gin-gonic/gin"

	"lms/internal/domain/courses"
	"lms/internal/infrastructure/http/v1/dto"
)

// CourseHandler adds lifecycle, pricing and module endpoints on top of CRUD.
type CourseHandler struct {
	*EntityHandler[*courses.Course, dto.CreateCourseRequest, dto.UpdateCourseRequest]
	service *courses.Service
}

// NewCourseHandler creates a new course handler.
func NewCourseHandler(base *BaseHandler, service *courses.Service) *CourseHandler {
	return &CourseHandler{
		EntityHandler: NewEntityHandler(base, EntityHandlerConfig[*courses.Course, dto.CreateCourseRequest, dto.UpdateCourseRequest]{
			Service:      service,
			DefaultOrder: "-created_at",
			MapCreate:    dto.CreateCourseRequest.ToEntity,
			MapUpdate: func(req dto.UpdateCourseRequest, c *courses.Course) {
				req.ApplyTo(c)
			},
		}),
		service: service,
	}
}

// Publish handles POST /courses/:id/publish
func (h *CourseHandler) Publish(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	course, err := h.service.Publish(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, course)
}

// Archive handles POST /courses/:id/archive
func (h *CourseHandler) Archive(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	course, err := h.service.Archive(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, course)
}

// GetPricing handles GET /courses/:id/pricing
func (h *CourseHandler) GetPricing(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	p, err := h.service.GetPricing(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// SetPricing handles PUT /courses/:id/pricing
func (h *CourseHandler) SetPricing(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.PricingRequest
	if !h.BindJSON(c, &req) {
		return
	}
	p, err := h.service.SetPricing(c.Request.Context(), key, req.ToEntity(key))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// Quote handles GET /courses/:id/effective-price?at=RFC3339. Without "at" the
// service clock is used.
func (h *CourseHandler) Quote(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	at, err := dto.ParseTimeQuery("at", c.Query("at"))
	if err != nil {
		h.Error(c, err)
		return
	}
	q, err := h.service.Quote(c.Request.Context(), key, at)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, q)
}

// AddModule handles POST /courses/:id/modules
func (h *CourseHandler) AddModule(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ModuleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	m, err := h.service.AddModule(c.Request.Context(), key, req.Title, req.Position)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, m)
}

// ListModules handles GET /courses/:id/modules
func (h *CourseHandler) ListModules(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	items, err := h.service.ListModules(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ItemsResponse{Items: items})
}
