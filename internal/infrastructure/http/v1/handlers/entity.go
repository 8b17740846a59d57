package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"lms/internal/core/entity"
	"lms/internal/core/id"
	"lms/internal/domain"
)

// CRUDService is the part of a domain service the generic handler drives.
// *domain.Service satisfies it; wrapping services may override any method.
type CRUDService[T entity.Entity] interface {
	List(ctx context.Context, f domain.ListFilter) (domain.ListResult[T], error)
	GetByID(ctx context.Context, key id.ID) (T, error)
	Create(ctx context.Context, e T) error
	Update(ctx context.Context, e T) error
	Delete(ctx context.Context, key id.ID) error
}

// EntityHandler provides CRUD handlers for any branch-filtered entity.
type EntityHandler[T entity.Entity, CreateDTO any, UpdateDTO any] struct {
	*BaseHandler
	service      CRUDService[T]
	defaultOrder string
	mapCreate    func(req CreateDTO) T
	mapUpdate    func(req UpdateDTO, existing T)
}

// EntityHandlerConfig configures the entity handler.
type EntityHandlerConfig[T entity.Entity, CreateDTO any, UpdateDTO any] struct {
	Service      CRUDService[T]
	DefaultOrder string
	MapCreate    func(req CreateDTO) T
	MapUpdate    func(req UpdateDTO, existing T)
}

// NewEntityHandler creates a new entity handler.
func NewEntityHandler[T entity.Entity, CreateDTO any, UpdateDTO any](
	base *BaseHandler,
	cfg EntityHandlerConfig[T, CreateDTO, UpdateDTO],
) *EntityHandler[T, CreateDTO, UpdateDTO] {
	if cfg.DefaultOrder == "" {
		cfg.DefaultOrder = "-created_at"
	}
	return &EntityHandler[T, CreateDTO, UpdateDTO]{
		BaseHandler:  base,
		service:      cfg.Service,
		defaultOrder: cfg.DefaultOrder,
		mapCreate:    cfg.MapCreate,
		mapUpdate:    cfg.MapUpdate,
	}
}

// List handles GET /{entity}.
func (h *EntityHandler[T, C, U]) List(c *gin.Context) {
	f, ok := h.ListFilter(c, h.defaultOrder)
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

// Get handles GET /{entity}/:id.
func (h *EntityHandler[T, C, U]) Get(c *gin.Context) {
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

// Create handles POST /{entity}.
func (h *EntityHandler[T, C, U]) Create(c *gin.Context) {
	var req C
	if !h.BindJSON(c, &req) {
		return
	}
	e := h.mapCreate(req)
	if err := h.service.Create(c.Request.Context(), e); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, e)
}

// Update handles PUT /{entity}/:id.
func (h *EntityHandler[T, C, U]) Update(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req U
	if !h.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	existing, err := h.service.GetByID(ctx, key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.mapUpdate(req, existing)
	if err := h.service.Update(ctx, existing); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, existing)
}

// Delete handles DELETE /{entity}/:id. Rows are deactivated, not removed.
func (h *EntityHandler[T, C, U]) Delete(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), key); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
