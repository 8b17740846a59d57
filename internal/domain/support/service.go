package support

import (
	"context"
	"fmt"
	"time"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
	"lms/internal/core/numerator"
	"lms/internal/core/tx"
	"lms/internal/domain"
	"lms/pkg/logger"
)

const overdueBatchSize = 200

// Service runs the help desk of the caller's branch.
//
// Reporters see their own tickets and the public part of the thread. Desk
// members (asStaff) see every ticket of the branch and internal notes. The
// HTTP layer decides who is staff from the caller's permissions.
type Service struct {
	*domain.Service[*Ticket]
	repo     Repository
	messages MessageRepository
	numbers  numerator.Generator
}

// NewService creates the ticket service.
func NewService(repo Repository, messages MessageRepository, numbers numerator.Generator, txm tx.Manager, clock func() time.Time) *Service {
	return &Service{
		Service: domain.NewService(domain.ServiceConfig[*Ticket]{
			Repo:       repo,
			TxManager:  txm,
			EntityName: "ticket",
			Clock:      clock,
		}),
		repo:     repo,
		messages: messages,
		numbers:  numbers,
	}
}

// OpenInput describes a new ticket. ReporterID defaults to the caller.
type OpenInput struct {
	Subject     string
	Description string
	Kind        Kind
	Priority    Priority
	Channel     Channel
	ReporterID  *id.ID
	Target      *entity.Ref
}

// Open numbers and stores a ticket in the caller's current branch.
func (s *Service) Open(ctx context.Context, in OpenInput) (*Ticket, error) {
	scope, err := domain.RequireScope(ctx)
	if err != nil {
		return nil, err
	}
	if !scope.HasBranch() {
		return nil, apperror.NewForbidden("tickets are opened within a branch")
	}
	reporter := in.ReporterID
	if reporter == nil {
		reporter = domain.ActorID(ctx)
	}
	if reporter == nil {
		return nil, apperror.NewFieldValidation("reporterId", "reporter is required")
	}

	t := NewTicket(*reporter, in.Subject, in.Description)
	if t.Subject == "" {
		return nil, apperror.NewFieldValidation("subject", "subject is required")
	}
	t.BranchID = id.Ptr(*scope.BranchID)
	if in.Kind != "" {
		t.Kind = in.Kind
	}
	if in.Priority != "" {
		t.Priority = in.Priority
	}
	if in.Channel != "" {
		t.Channel = in.Channel
	}
	t.SetTarget(in.Target)
	now := s.Now()
	t.CreatedAt = now
	t.ApplySLA(now)

	err = s.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		t.TicketNo, err = numerator.Next(ctx, s.numbers, numerator.TypeTicket, scope.OrganizationID, t.BranchID)
		if err != nil {
			return err
		}
		return s.Create(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "ticket opened", "ticket_no", t.TicketNo, "priority", t.Priority, "branch_id", t.BranchID)
	return t, nil
}

// Get returns a ticket; reporters only reach their own.
func (s *Service) Get(ctx context.Context, ticketID id.ID, asStaff bool) (*Ticket, error) {
	t, err := s.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if asStaff {
		return t, nil
	}
	actor := domain.ActorID(ctx)
	if actor == nil || *actor != t.ReporterID {
		return nil, apperror.NewNotFound("ticket", ticketID.String())
	}
	return t, nil
}

// Reply appends a message to the thread. Internal notes are desk only.
func (s *Service) Reply(ctx context.Context, ticketID id.ID, body string, internal, asStaff bool) (*Message, error) {
	if internal && !asStaff {
		return nil, apperror.NewForbidden("only the support desk writes internal notes")
	}
	var m *Message
	err := s.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		t, err := s.Get(ctx, ticketID, asStaff)
		if err != nil {
			return err
		}
		kind := MessageText
		if internal {
			kind = MessageNote
		}
		if m, err = newMessage(t, domain.ActorID(ctx), kind, body, internal, s.Now()); err != nil {
			return err
		}
		if err := t.Record(m); err != nil {
			return err
		}
		if err := s.messages.Append(ctx, m); err != nil {
			return err
		}
		return s.Update(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Messages returns the thread; internal notes only for the desk.
func (s *Service) Messages(ctx context.Context, ticketID id.ID, asStaff bool) ([]*Message, error) {
	if _, err := s.Get(ctx, ticketID, asStaff); err != nil {
		return nil, err
	}
	return s.messages.ListByTicket(ctx, ticketID, asStaff)
}

// Assign hands the ticket to a desk member, or back to the queue.
func (s *Service) Assign(ctx context.Context, ticketID id.ID, assignee *id.ID) (*Ticket, error) {
	note := "returned to the queue"
	if assignee != nil {
		note = fmt.Sprintf("assigned to %s", assignee)
	}
	return s.change(ctx, ticketID, note, true, func(t *Ticket, now time.Time) error {
		return t.Assign(assignee, now)
	})
}

// SetPriority changes the priority and the due times with it.
func (s *Service) SetPriority(ctx context.Context, ticketID id.ID, p Priority) (*Ticket, error) {
	return s.change(ctx, ticketID, fmt.Sprintf("priority set to %s", p), true, func(t *Ticket, _ time.Time) error {
		return t.Reprioritize(p)
	})
}

// Transition moves a ticket through its lifecycle on behalf of the desk.
func (s *Service) Transition(ctx context.Context, ticketID id.ID, to Status) (*Ticket, error) {
	return s.change(ctx, ticketID, fmt.Sprintf("status changed to %s", to), false, func(t *Ticket, now time.Time) error {
		return t.Transition(to, now)
	})
}

// Reopen lets the reporter, or the desk, reopen a resolved or closed ticket.
func (s *Service) Reopen(ctx context.Context, ticketID id.ID, asStaff bool) (*Ticket, error) {
	if _, err := s.Get(ctx, ticketID, asStaff); err != nil {
		return nil, err
	}
	return s.change(ctx, ticketID, "ticket reopened", false, func(t *Ticket, now time.Time) error {
		return t.Transition(StatusOpen, now)
	})
}

// change applies fn to a ticket and logs a system line in the thread.
func (s *Service) change(ctx context.Context, ticketID id.ID, note string, internal bool, fn func(*Ticket, time.Time) error) (*Ticket, error) {
	var t *Ticket
	err := s.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if t, err = s.GetByID(ctx, ticketID); err != nil {
			return err
		}
		now := s.Now()
		if err := fn(t, now); err != nil {
			return err
		}
		m, err := newMessage(t, domain.ActorID(ctx), MessageSystem, note, internal, now)
		if err != nil {
			return err
		}
		if err := s.messages.Append(ctx, m); err != nil {
			return err
		}
		return s.Update(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListMine returns the caller's own tickets.
func (s *Service) ListMine(ctx context.Context, f domain.ListFilter) (domain.ListResult[*Ticket], error) {
	actor := domain.ActorID(ctx)
	if actor == nil {
		return domain.ListResult[*Ticket]{}, apperror.NewUnauthorized("authentication required")
	}
	f.Where("reporter_id", *actor)
	return s.List(ctx, f)
}

// Overdue returns the visible pending tickets that missed a target.
func (s *Service) Overdue(ctx context.Context, limit int) ([]*Ticket, error) {
	scope, err := domain.RequireScope(ctx)
	if err != nil {
		return nil, err
	}
	v := scope.Visibility()
	if v.None() {
		return []*Ticket{}, nil
	}
	if limit <= 0 || limit > overdueBatchSize {
		limit = overdueBatchSize
	}
	return s.repo.ListOverdue(ctx, v, s.Now(), limit)
}
