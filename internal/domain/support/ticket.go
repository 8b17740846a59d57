// Package support runs the branch help desk: numbered tickets, the reply
// thread and the response targets per priority.
package support

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
)

// Status is the lifecycle state of a ticket.
type Status string

const (
	StatusOpen             Status = "open"
	StatusInProgress       Status = "in_progress"
	StatusWaitingOnUser    Status = "waiting_on_user"
	StatusWaitingOnSupport Status = "waiting_on_support"
	StatusResolved         Status = "resolved"
	StatusClosed           Status = "closed"
	StatusSpam             Status = "spam"
)

// Pending reports whether the ticket still needs work from the desk.
func (s Status) Pending() bool {
	switch s {
	case StatusResolved, StatusClosed, StatusSpam:
		return false
	}
	return true
}

var transitions = map[Status][]Status{
	StatusOpen:             {StatusInProgress, StatusWaitingOnUser, StatusWaitingOnSupport, StatusResolved, StatusClosed, StatusSpam},
	StatusInProgress:       {StatusWaitingOnUser, StatusWaitingOnSupport, StatusResolved, StatusClosed, StatusSpam},
	StatusWaitingOnUser:    {StatusInProgress, StatusWaitingOnSupport, StatusResolved, StatusClosed},
	StatusWaitingOnSupport: {StatusInProgress, StatusWaitingOnUser, StatusResolved, StatusClosed},
	StatusResolved:         {StatusOpen, StatusClosed},
	StatusClosed:           {StatusOpen},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Priority drives the response targets.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Kind is what the ticket is about.
type Kind string

const (
	KindQuestion       Kind = "question"
	KindBug            Kind = "bug"
	KindBilling        Kind = "billing"
	KindContent        Kind = "content"
	KindTechnical      Kind = "technical"
	KindFeatureRequest Kind = "feature_request"
	KindOther          Kind = "other"
)

func (k Kind) valid() bool {
	switch k {
	case KindQuestion, KindBug, KindBilling, KindContent, KindTechnical, KindFeatureRequest, KindOther:
		return true
	}
	return false
}

// Channel is where the ticket came in.
type Channel string

const (
	ChannelInApp    Channel = "in_app"
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelPhone    Channel = "phone"
	ChannelAdmin    Channel = "admin"
)

func (c Channel) valid() bool {
	switch c {
	case ChannelInApp, ChannelEmail, ChannelWhatsApp, ChannelPhone, ChannelAdmin:
		return true
	}
	return false
}

// SLA is the first response and resolution target of one priority.
type SLA struct {
	FirstResponse time.Duration
	Resolution    time.Duration
}

// DefaultSLA holds the targets used when a branch configures none.
var DefaultSLA = map[Priority]SLA{
	PriorityUrgent: {FirstResponse: 30 * time.Minute, Resolution: 4 * time.Hour},
	PriorityHigh:   {FirstResponse: time.Hour, Resolution: 24 * time.Hour},
	PriorityNormal: {FirstResponse: 4 * time.Hour, Resolution: 48 * time.Hour},
	PriorityLow:    {FirstResponse: 24 * time.Hour, Resolution: 120 * time.Hour},
}

const previewLength = 220

// Ticket is one support request. The number is taken from the branch ticket
// sequence when the ticket is opened and never changes.
type Ticket struct {
	entity.BaseEntity
	entity.BranchOwned
	entity.RefColumns

	TicketNo    string   `db:"ticket_no" json:"ticketNo"`
	Subject     string   `db:"subject" json:"subject"`
	Description string   `db:"description" json:"description"`
	Kind        Kind     `db:"kind" json:"kind"`
	Priority    Priority `db:"priority" json:"priority"`
	Channel     Channel  `db:"channel" json:"channel"`
	Status      Status   `db:"status" json:"status"`
	ReporterID  id.ID    `db:"reporter_id" json:"reporterId"`
	AssigneeID  *id.ID   `db:"assignee_id" json:"assigneeId,omitempty"`

	FirstResponseDueAt *time.Time `db:"first_response_due_at" json:"firstResponseDueAt,omitempty"`
	ResolutionDueAt    *time.Time `db:"resolution_due_at" json:"resolutionDueAt,omitempty"`
	FirstResponseAt    *time.Time `db:"first_response_at" json:"firstResponseAt,omitempty"`
	ResolvedAt         *time.Time `db:"resolved_at" json:"resolvedAt,omitempty"`
	ClosedAt           *time.Time `db:"closed_at" json:"closedAt,omitempty"`

	LastMessageAt      *time.Time `db:"last_message_at" json:"lastMessageAt,omitempty"`
	LastMessagePreview string     `db:"last_message_preview" json:"lastMessagePreview,omitempty"`
	LastMessageBy      *id.ID     `db:"last_message_by" json:"lastMessageBy,omitempty"`
}

// NewTicket creates an open ticket with normal priority.
func NewTicket(reporterID id.ID, subject, description string) *Ticket {
	return &Ticket{
		BaseEntity:  entity.NewBaseEntity(),
		Subject:     strings.TrimSpace(subject),
		Description: strings.TrimSpace(description),
		Kind:        KindQuestion,
		Priority:    PriorityNormal,
		Channel:     ChannelInApp,
		Status:      StatusOpen,
		ReporterID:  reporterID,
	}
}

func (t *Ticket) EntityName() string { return "ticket" }

// Validate implements entity.Validatable.
func (t *Ticket) Validate(ctx context.Context) error {
	if t.Subject == "" {
		return apperror.NewFieldValidation("subject", "subject is required")
	}
	if utf8.RuneCountInString(t.Subject) > 255 {
		return apperror.NewFieldValidation("subject", "subject is limited to 255 characters")
	}
	if id.IsNil(t.ReporterID) {
		return apperror.NewFieldValidation("reporterId", "reporter is required")
	}
	if t.TicketNo == "" {
		return apperror.NewFieldValidation("ticketNo", "ticket number is required")
	}
	if _, ok := DefaultSLA[t.Priority]; !ok {
		return apperror.NewFieldValidation("priority", "unknown priority")
	}
	if !t.Kind.valid() {
		return apperror.NewFieldValidation("kind", "unknown ticket kind")
	}
	if !t.Channel.valid() {
		return apperror.NewFieldValidation("channel", "unknown channel")
	}
	if ref, ok := t.Target(); ok {
		if err := ref.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplySLA sets the due times from the priority, counted from opened.
func (t *Ticket) ApplySLA(opened time.Time) {
	sla := DefaultSLA[t.Priority]
	first, resolution := opened.Add(sla.FirstResponse), opened.Add(sla.Resolution)
	t.FirstResponseDueAt, t.ResolutionDueAt = &first, &resolution
}

// Reprioritize changes the priority and recomputes the due times from the
// moment the ticket was opened.
func (t *Ticket) Reprioritize(p Priority) error {
	if _, ok := DefaultSLA[p]; !ok {
		return apperror.NewFieldValidation("priority", "unknown priority")
	}
	t.Priority = p
	t.ApplySLA(t.CreatedAt)
	return nil
}

// Transition moves the ticket to another status and stamps the resolution
// times. Reopening clears them.
func (t *Ticket) Transition(to Status, now time.Time) error {
	if !CanTransition(t.Status, to) {
		return apperror.NewInvalidTransition("ticket", string(t.Status), string(to))
	}
	switch to {
	case StatusResolved:
		t.ResolvedAt = &now
	case StatusClosed:
		t.ClosedAt = &now
		if t.ResolvedAt == nil {
			t.ResolvedAt = &now
		}
	case StatusOpen:
		t.ResolvedAt, t.ClosedAt = nil, nil
	}
	t.Status = to
	return nil
}

// Assign hands the ticket to a desk member; nil returns it to the queue.
// An open ticket moves to in progress.
func (t *Ticket) Assign(assignee *id.ID, now time.Time) error {
	if !t.Status.Pending() {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "only pending tickets can be assigned").
			WithDetail("status", t.Status)
	}
	t.AssigneeID = assignee
	if assignee != nil && t.Status == StatusOpen {
		return t.Transition(StatusInProgress, now)
	}
	return nil
}

// Record updates the thread summary for a new message and moves the ticket
// along: a public desk reply waits on the user, a reporter reply waits on the
// desk and reopens a resolved ticket.
func (t *Ticket) Record(m *Message) error {
	if t.Status == StatusClosed || t.Status == StatusSpam {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "ticket no longer accepts messages").
			WithDetail("status", t.Status)
	}
	at := m.CreatedAt
	t.LastMessageAt = &at
	t.LastMessageBy = m.SenderID
	t.LastMessagePreview = preview(m.Body)
	if m.Internal {
		return nil
	}

	fromReporter := m.SenderID != nil && *m.SenderID == t.ReporterID
	if fromReporter {
		switch t.Status {
		case StatusResolved:
			return t.Transition(StatusOpen, at)
		case StatusWaitingOnUser:
			return t.Transition(StatusWaitingOnSupport, at)
		}
		return nil
	}

	if t.FirstResponseAt == nil {
		t.FirstResponseAt = &at
	}
	switch t.Status {
	case StatusOpen, StatusInProgress, StatusWaitingOnSupport:
		return t.Transition(StatusWaitingOnUser, at)
	}
	return nil
}

func preview(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	if utf8.RuneCountInString(body) <= previewLength {
		return body
	}
	r := []rune(body)
	return string(r[:previewLength-1]) + "…"
}

// SLAState reports overdue targets at a point in time.
type SLAState struct {
	FirstResponseBreached bool `json:"firstResponseBreached"`
	ResolutionBreached    bool `json:"resolutionBreached"`
}

// Breached reports whether any target was missed.
func (s SLAState) Breached() bool {
	return s.FirstResponseBreached || s.ResolutionBreached
}

// SLA evaluates the targets at now. A target met late stays breached; a
// pending target is breached once its due time has passed.
func (t *Ticket) SLA(now time.Time) SLAState {
	return SLAState{
		FirstResponseBreached: missed(t.FirstResponseDueAt, t.FirstResponseAt, t.Status.Pending(), now),
		ResolutionBreached:    missed(t.ResolutionDueAt, t.ResolvedAt, t.Status.Pending(), now),
	}
}

func missed(due, met *time.Time, pending bool, now time.Time) bool {
	switch {
	case due == nil:
		return false
	case met != nil:
		return met.After(*due)
	case pending:
		return now.After(*due)
	}
	return false
}
