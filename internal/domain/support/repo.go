package support

import (
	"context"
	"time"

	"lms/internal/core/id"
	"lms/internal/core/security"
	"lms/internal/domain"
)

// Repository defines ticket storage.
type Repository interface {
	domain.Repository[*Ticket]

	// ListOverdue returns pending tickets with a due time before now,
	// oldest due first.
	ListOverdue(ctx context.Context, v security.Visibility, now time.Time, limit int) ([]*Ticket, error)
}

// MessageRepository stores ticket threads.
type MessageRepository interface {
	Append(ctx context.Context, m *Message) error

	// ListByTicket returns the thread oldest first; internal messages are
	// left out unless asked for.
	ListByTicket(ctx context.Context, ticketID id.ID, includeInternal bool) ([]*Message, error)
}
