// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"lms/internal/core/security"
	"lms/internal/infrastructure/http/v1/middleware"
)

// EntityRouteHandler defines the interface for CRUD handlers.
// All handlers built on handlers.EntityHandler implement these methods.
type EntityRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

// PublishRouteHandler is an optional interface for entities with a publish step.
type PublishRouteHandler interface {
	Publish(c *gin.Context)
}

// RegisterEntityRoutes registers standard CRUD routes for a resource.
// If the handler also implements PublishRouteHandler, the publish route is
// registered too.
//
// Usage:
//
//	handler := handlers.NewCourseHandler(base, courseService)
//	RegisterEntityRoutes(api.Group("/courses"), handler, "courses")
func RegisterEntityRoutes(group *gin.RouterGroup, handler EntityRouteHandler, resource string) {
	group.GET("", can(resource, security.ActionRead), handler.List)
	group.POST("", can(resource, security.ActionCreate), handler.Create)
	group.GET("/:id", can(resource, security.ActionRead), handler.Get)
	group.PUT("/:id", can(resource, security.ActionUpdate), handler.Update)
	group.DELETE("/:id", can(resource, security.ActionDelete), handler.Delete)

	if p, ok := handler.(PublishRouteHandler); ok {
		group.POST("/:id/publish", can(resource, security.ActionUpdate), p.Publish)
	}
}

func can(resource, action string) gin.HandlerFunc {
	return middleware.RequirePermission(security.Perm(resource, action))
}
