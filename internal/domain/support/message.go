package support

import (
	"strings"
	"time"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
)

// MessageKind distinguishes replies from desk notes and status lines.
type MessageKind string

const (
	MessageText   MessageKind = "text"
	MessageNote   MessageKind = "note"
	MessageSystem MessageKind = "system"
)

// Message is one entry in a ticket thread. Messages are append only.
// Internal messages are never shown to the reporter.
type Message struct {
	ID        id.ID       `db:"id" json:"id"`
	TicketID  id.ID       `db:"ticket_id" json:"ticketId"`
	BranchID  *id.ID      `db:"branch_id" json:"-"`
	SenderID  *id.ID      `db:"sender_id" json:"senderId,omitempty"`
	Kind      MessageKind `db:"kind" json:"kind"`
	Body      string      `db:"body" json:"body"`
	Internal  bool        `db:"is_internal" json:"internal"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
}

func newMessage(t *Ticket, sender *id.ID, kind MessageKind, body string, internal bool, now time.Time) (*Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperror.NewFieldValidation("body", "message body is required")
	}
	return &Message{
		ID:        id.New(),
		TicketID:  t.ID,
		BranchID:  t.BranchID,
		SenderID:  sender,
		Kind:      kind,
		Body:      body,
		Internal:  internal,
		CreatedAt: now,
	}, nil
}
