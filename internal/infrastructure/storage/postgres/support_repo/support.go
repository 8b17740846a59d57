// Package support_repo provides PostgreSQL repositories for support tickets
// and their message threads.
package support_repo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lms/internal/core/id"
	"lms/internal/core/security"
	"lms/internal/domain/support"
	"lms/internal/infrastructure/storage/postgres"
)

var closed = []support.Status{support.StatusResolved, support.StatusClosed, support.StatusSpam}

// TicketRepo implements support.Repository.
type TicketRepo struct {
	*postgres.BaseRepo[*support.Ticket]
}

func NewTicketRepo(txm *postgres.TxManager) *TicketRepo {
	return &TicketRepo{
		BaseRepo: postgres.NewBaseRepo(txm, "support_tickets", func() *support.Ticket { return &support.Ticket{} },
			postgres.WithSearch("ticket_no", "subject", "last_message_preview"),
			postgres.WithDefaultOrder("created_at DESC")),
	}
}

// ListOverdue finds tickets whose first response or resolution is late.
func (r *TicketRepo) ListOverdue(ctx context.Context, v security.Visibility, now time.Time, limit int) ([]*support.Ticket, error) {
	q := r.Select().
		Where(sq.Eq{"active": true}).
		Where(sq.NotEq{"status": closed}).
		Where(sq.Or{
			sq.And{sq.Eq{"first_response_at": nil}, sq.Lt{"first_response_due_at": now}},
			sq.Lt{"resolution_due_at": now},
		}).
		OrderBy("first_response_due_at ASC", "id ASC")
	q = security.ApplyVisibility(q, v, "branch_id")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return r.FindMany(ctx, q)
}

const messagesTable = "support_ticket_messages"

var messageColumns = []string{"id", "ticket_id", "branch_id", "sender_id", "kind", "body", "is_internal", "created_at"}

// MessageRepo implements support.MessageRepository.
type MessageRepo struct {
	txm *postgres.TxManager
}

func NewMessageRepo(txm *postgres.TxManager) *MessageRepo {
	return &MessageRepo{txm: txm}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *MessageRepo) Append(ctx context.Context, m *support.Message) error {
	query, args, err := psql.Insert(messagesTable).
		Columns(messageColumns...).
		Values(m.ID, m.TicketID, m.BranchID, m.SenderID, string(m.Kind), m.Body, m.Internal, m.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, messagesTable)
	}
	return nil
}

func (r *MessageRepo) ListByTicket(ctx context.Context, ticketID id.ID, includeInternal bool) ([]*support.Message, error) {
	q := psql.Select(messageColumns...).
		From(messagesTable).
		Where(sq.Eq{"ticket_id": ticketID}).
		OrderBy("created_at ASC", "id ASC")
	if !includeInternal {
		q = q.Where(sq.Eq{"is_internal": false})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	out := []*support.Message{}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, query, args...); err != nil {
		return nil, postgres.MapError(err, messagesTable)
	}
	return out, nil
}

var (
	_ support.Repository        = (*TicketRepo)(nil)
	_ support.MessageRepository = (*MessageRepo)(nil)
)
