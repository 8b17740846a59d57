// Package handlers provides HTTP request handlers.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lms/internal/core/apperror"
	appctx "lms/internal/core/context"
	"lms/internal/core/id"
	"lms/internal/domain"
	domainFilter "lms/internal/domain/filter"
	"lms/internal/infrastructure/http/v1/dto"
	"lms/internal/infrastructure/http/v1/middleware"
)

const maxPageSize = 200

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindOptionalJSON binds a body that may be empty.
func (h *BaseHandler) BindOptionalJSON(c *gin.Context, obj any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return h.BindJSON(c, obj)
}

// Error registers error on Gin context and aborts request.
// The JSON response is produced by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParamID parses a UUID path parameter.
func (h *BaseHandler) ParamID(c *gin.Context, name string) (id.ID, bool) {
	v, err := id.Parse(c.Param(name))
	if err != nil {
		h.Error(c, apperror.NewFieldValidation(name, "invalid id format"))
		return id.ID{}, false
	}
	return v, true
}

// ParseIntQuery parses integer query parameter with default value.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// ListFilter reads paging, search, ordering and the JSON "filter" parameter.
func (h *BaseHandler) ListFilter(c *gin.Context, defaultOrder string) (domain.ListFilter, bool) {
	f := domain.DefaultListFilter()
	f.Search = c.Query("search")
	f.Limit = min(max(h.ParseIntQuery(c, "limit", f.Limit), 1), maxPageSize)
	f.Offset = max(h.ParseIntQuery(c, "offset", 0), 0)
	f.OrderBy = c.DefaultQuery("orderBy", defaultOrder)
	f.IncludeInactive = c.Query("includeInactive") == "true"

	if raw := c.Query("filter"); raw != "" {
		var items []domainFilter.Item
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			h.Error(c, apperror.NewValidation("invalid filter format (json expected)"))
			return f, false
		}
		f.AdvancedFilters = items
	}
	return f, true
}

// CallerID returns the authenticated user id.
func (h *BaseHandler) CallerID(c *gin.Context) (id.ID, bool) {
	v, err := id.Parse(appctx.GetUserID(c.Request.Context()))
	if err != nil {
		h.Error(c, apperror.NewUnauthorized("not authenticated"))
		return id.ID{}, false
	}
	return v, true
}

// Respond writes a JSON body and records it for idempotent replay.
func (h *BaseHandler) Respond(c *gin.Context, status int, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}
	middleware.CompleteIdempotency(c, status, "application/json", raw)
	c.Data(status, "application/json; charset=utf-8", raw)
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	h.Respond(c, http.StatusOK, data)
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	h.Respond(c, http.StatusCreated, data)
}

// NoContent sends 204 response.
func (h *BaseHandler) NoContent(c *gin.Context) {
	// 204 must replay as 204 with empty body.
	middleware.CompleteIdempotency(c, http.StatusNoContent, "", nil)
	c.Status(http.StatusNoContent)
}

// List sends a page.
func List[T any](h *BaseHandler, c *gin.Context, res domain.ListResult[T]) {
	h.OK(c, dto.ListResponse{
		Items:      res.Items,
		TotalCount: res.TotalCount,
		Limit:      res.Limit,
		Offset:     res.Offset,
	})
}

func parseUUID(h *BaseHandler, c *gin.Context, field, raw string) (id.ID, bool) {
	v, err := id.Parse(raw)
	if err != nil {
		h.Error(c, apperror.NewFieldValidation(field, "invalid id format"))
		return id.ID{}, false
	}
	return v, true
}

// subject returns the user named by ?userId, or the caller.
func (h *BaseHandler) subject(c *gin.Context) (id.ID, bool) {
	if raw := c.Query("userId"); raw != "" {
		return parseUUID(h, c, "userId", raw)
	}
	return h.CallerID(c)
}
