package handlers

import (
	"github.com/gin-gonic/gin"

	"lms/internal/domain/notifications"
	"lms/internal/infrastructure/http/v1/dto"
)

// NotificationHandler serves the caller's inbox and outbound sends.
type NotificationHandler struct {
	*BaseHandler
	service *notifications.Service
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(base *BaseHandler, service *notifications.Service) *NotificationHandler {
	return &NotificationHandler{BaseHandler: base, service: service}
}

// Mine handles GET /notifications?unread=true
func (h *NotificationHandler) Mine(c *gin.Context) {
	limit := min(max(h.ParseIntQuery(c, "limit", 50), 1), maxPageSize)
	offset := max(h.ParseIntQuery(c, "offset", 0), 0)
	res, err := h.service.ListMine(c.Request.Context(), c.Query("unread") == "true", limit, offset)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(h.BaseHandler, c, res)
}

// UnreadCount handles GET /notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	n, err := h.service.UnreadCount(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.UnreadResponse{Unread: n})
}

// MarkRead handles POST /notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	n, err := h.service.MarkRead(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, n)
}

// MarkAllRead handles POST /notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.service.MarkAllRead(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.CountResponse{Count: n})
}

// Send handles POST /notifications. One recipient gets the created row
// back; several get a count.
func (h *NotificationHandler) Send(c *gin.Context) {
	var req dto.NotifyRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in := req.ToInput()
	ctx := c.Request.Context()
	if len(req.UserIDs) == 1 {
		n, err := h.service.Notify(ctx, in)
		if err != nil {
			h.Error(c, err)
			return
		}
		h.Created(c, n)
		return
	}
	count, err := h.service.Broadcast(ctx, req.UserIDs, in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.CountResponse{Count: count})
}
