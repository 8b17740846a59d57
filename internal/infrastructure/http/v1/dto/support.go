package dto

import (
	"lms/internal/core/entity"
	"lms/internal/core/id"
	"lms/internal/domain/support"
)

// OpenTicketRequest is the request body for opening a ticket.
type OpenTicketRequest struct {
	Subject     string `json:"subject" binding:"required"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
	Priority    string `json:"priority"`
	Channel     string `json:"channel"`
	// ReporterID opens the ticket on someone else's behalf; staff only.
	ReporterID *id.ID  `json:"reporterId"`
	TargetKind *string `json:"targetKind"`
	TargetID   *id.ID  `json:"targetId"`
}

// ToInput converts the request. The target is dropped unless both halves are set.
func (r OpenTicketRequest) ToInput() support.OpenInput {
	in := support.OpenInput{
		Subject:     r.Subject,
		Description: r.Description,
		Kind:        support.Kind(r.Kind),
		Priority:    support.Priority(r.Priority),
		Channel:     support.Channel(r.Channel),
		ReporterID:  r.ReporterID,
	}
	if r.TargetKind != nil && r.TargetID != nil {
		in.Target = &entity.Ref{Kind: entity.RefKind(*r.TargetKind), ID: *r.TargetID}
	}
	return in
}

// TicketReplyRequest adds a message to a ticket thread.
type TicketReplyRequest struct {
	Body     string `json:"body" binding:"required"`
	Internal bool   `json:"internal"`
}

// AssignTicketRequest sets or clears the assignee.
type AssignTicketRequest struct {
	AssigneeID *id.ID `json:"assigneeId"`
}

// TicketPriorityRequest changes the priority.
type TicketPriorityRequest struct {
	Priority string `json:"priority" binding:"required,oneof=low normal high urgent"`
}

// TicketStatusRequest moves a ticket through its lifecycle.
type TicketStatusRequest struct {
	Status string `json:"status" binding:"required"`
}
