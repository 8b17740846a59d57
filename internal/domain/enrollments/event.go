package enrollments

import (
	"context"
	"time"

	"lms/internal/core/id"
)

// EventType names an entry of the enrollment audit trail.
type EventType string

const (
	EventCreated   EventType = "created"
	EventCancelled EventType = "cancelled"
	EventRefunded  EventType = "refunded"
	EventSuspended EventType = "suspended"
	EventResumed   EventType = "resumed"
	EventCompleted EventType = "completed"
	EventExtended  EventType = "extended"
	EventExpired   EventType = "expired"
)

// Event is an append-only entry of an enrollment's history.
// Data is free-form context (old and new status, who acted, why).
type Event struct {
	ID           id.ID          `json:"id"`
	EnrollmentID id.ID          `json:"enrollmentId"`
	EventType    EventType      `json:"eventType"`
	Message      string         `json:"message"`
	ActorID      *id.ID         `json:"actorId,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// NewEvent creates an event for e.
func NewEvent(e *Enrollment, t EventType, actor *id.ID, message string, now time.Time) *Event {
	return &Event{
		ID:           id.New(),
		EnrollmentID: e.ID,
		EventType:    t,
		Message:      message,
		ActorID:      actor,
		Data:         map[string]any{"status": e.Status},
		CreatedAt:    now,
	}
}

// EventRepository appends and reads enrollment events.
type EventRepository interface {
	Append(ctx context.Context, ev *Event) error
	ListByEnrollment(ctx context.Context, enrollmentID id.ID) ([]*Event, error)
}
