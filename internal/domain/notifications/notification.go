// Package notifications delivers in-app messages to users. A notification
// may point at any linkable row through a typed reference.
package notifications

import (
	"context"
	"time"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

type Status string

const (
	StatusUnread   Status = "unread"
	StatusRead     Status = "read"
	StatusArchived Status = "archived"
)

// Notification is a message addressed to one user.
type Notification struct {
	entity.BaseEntity
	entity.BranchOwned
	entity.RefColumns

	UserID    id.ID       `db:"user_id" json:"userId"`
	Title     string      `db:"title" json:"title"`
	Body      string      `db:"body" json:"body"`
	Priority  Priority    `db:"priority" json:"priority"`
	Status    Status      `db:"status" json:"status"`
	ActionURL string      `db:"action_url" json:"actionUrl,omitempty"`
	Data      entity.Meta `db:"data" json:"data,omitempty"`
	ReadAt    *time.Time  `db:"read_at" json:"readAt,omitempty"`
}

// NewNotification creates an unread notification with normal priority.
func NewNotification(userID id.ID, title, body string) *Notification {
	return &Notification{
		BaseEntity: entity.NewBaseEntity(),
		UserID:     userID,
		Title:      title,
		Body:       body,
		Priority:   PriorityNormal,
		Status:     StatusUnread,
	}
}

func (n *Notification) EntityName() string { return "notification" }

// Validate implements entity.Validatable.
func (n *Notification) Validate(ctx context.Context) error {
	if id.IsNil(n.UserID) {
		return apperror.NewFieldValidation("userId", "recipient is required")
	}
	if n.Title == "" {
		return apperror.NewFieldValidation("title", "title is required")
	}
	switch n.Priority {
	case PriorityLow, PriorityNormal, PriorityHigh:
	default:
		return apperror.NewFieldValidation("priority", "unknown priority")
	}
	if target, ok := n.Target(); ok {
		return target.Validate()
	}
	if (n.TargetKind == nil) != (n.TargetID == nil) {
		return apperror.NewFieldValidation("target", "target kind and id go together")
	}
	return nil
}

// MarkRead records the first read. It reports whether anything changed.
func (n *Notification) MarkRead(now time.Time) bool {
	if n.ReadAt != nil {
		return false
	}
	n.ReadAt = &now
	if n.Status == StatusUnread {
		n.Status = StatusRead
	}
	return true
}

// TargetRef returns the linked row, if any, for serialization.
func (n *Notification) TargetRef() *entity.Ref {
	if r, ok := n.Target(); ok {
		return &r
	}
	return nil
}
