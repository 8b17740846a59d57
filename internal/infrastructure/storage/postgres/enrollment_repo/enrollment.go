// Package enrollment_repo provides PostgreSQL repositories for enrollments,
// their event trail and course access invites.
package enrollment_repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lms/internal/core/id"
	"lms/internal/domain/enrollments"
	"lms/internal/infrastructure/storage/postgres"
)

// expirable lists the statuses an elapsed access window may still move to expired.
var expirable = []enrollments.Status{
	enrollments.StatusPending,
	enrollments.StatusActive,
	enrollments.StatusCompleted,
	enrollments.StatusSuspended,
}

// EnrollmentRepo implements enrollments.Repository.
type EnrollmentRepo struct {
	*postgres.BaseRepo[*enrollments.Enrollment]
}

func NewEnrollmentRepo(txm *postgres.TxManager) *EnrollmentRepo {
	return &EnrollmentRepo{
		BaseRepo: postgres.NewBaseRepo(txm, "enrollments", func() *enrollments.Enrollment { return &enrollments.Enrollment{} },
			postgres.WithSearch("enrollment_no", "billing_order_ref"),
			postgres.WithDefaultOrder("enrolled_at DESC")),
	}
}

func (r *EnrollmentRepo) FindCurrent(ctx context.Context, userID, courseID id.ID) (*enrollments.Enrollment, error) {
	return r.FindOne(ctx, r.Select().
		Where(sq.Eq{"user_id": userID, "course_id": courseID}).
		Where(sq.NotEq{"status": []enrollments.Status{enrollments.StatusCancelled, enrollments.StatusRefunded}}).
		OrderBy("enrolled_at DESC").
		Limit(1))
}

// ListDueForExpiry locks the returned rows with SKIP LOCKED so that two
// workers sweeping at once split the batch.
func (r *EnrollmentRepo) ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]*enrollments.Enrollment, error) {
	q := r.Select().
		Where(sq.Eq{"status": expirable}).
		Where(sq.Lt{"access_ends_at": now}).
		OrderBy("access_ends_at ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if r.InTx(ctx) {
		q = q.Suffix("FOR UPDATE SKIP LOCKED")
	}
	return r.FindMany(ctx, q)
}

// InviteRepo implements enrollments.InviteRepository.
type InviteRepo struct {
	*postgres.BaseRepo[*enrollments.AccessInvite]
}

func NewInviteRepo(txm *postgres.TxManager) *InviteRepo {
	return &InviteRepo{
		BaseRepo: postgres.NewBaseRepo(txm, "course_access_invites", func() *enrollments.AccessInvite { return &enrollments.AccessInvite{} },
			postgres.WithSearch("email")),
	}
}

func (r *InviteRepo) FindByToken(ctx context.Context, token string) (*enrollments.AccessInvite, error) {
	return r.FindOne(ctx, r.Select().Where(sq.Eq{"token": token}).Limit(1))
}

func (r *InviteRepo) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	return r.Exec(ctx, r.Builder().Update(r.Table()).
		Set("status", enrollments.InviteExpired).
		Set("updated_at", now).
		Set("version", sq.Expr("version + 1")).
		Where(sq.Eq{"status": enrollments.InvitePending}).
		Where(sq.LtOrEq{"expires_at": now}))
}

const eventsTable = "enrollment_events"

// EventRepo implements enrollments.EventRepository. Event data is stored
// as JSON, zstd-compressed once it passes the codec threshold.
type EventRepo struct {
	txm   *postgres.TxManager
	codec *postgres.Codec
}

func NewEventRepo(txm *postgres.TxManager, codec *postgres.Codec) *EventRepo {
	return &EventRepo{txm: txm, codec: codec}
}

type eventRow struct {
	ID           id.ID                    `db:"id"`
	EnrollmentID id.ID                    `db:"enrollment_id"`
	EventType    string                   `db:"event_type"`
	Message      string                   `db:"message"`
	ActorID      *id.ID                   `db:"actor_id"`
	Payload      []byte                   `db:"payload"`
	Compression  postgres.CompressionAlgo `db:"compression"`
	CreatedAt    time.Time                `db:"created_at"`
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *EventRepo) Append(ctx context.Context, ev *enrollments.Event) error {
	var payload []byte
	algo := postgres.CompressionNone
	if len(ev.Data) > 0 {
		raw, err := json.Marshal(ev.Data)
		if err != nil {
			return fmt.Errorf("marshal event data: %w", err)
		}
		payload, algo = r.codec.Pack(raw)
	}

	query, args, err := psql.Insert(eventsTable).
		Columns("id", "enrollment_id", "event_type", "message", "actor_id", "payload", "compression", "created_at").
		Values(ev.ID, ev.EnrollmentID, string(ev.EventType), ev.Message, ev.ActorID, payload, algo, ev.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, eventsTable)
	}
	return nil
}

// ListByEnrollment returns the trail oldest first.
func (r *EventRepo) ListByEnrollment(ctx context.Context, enrollmentID id.ID) ([]*enrollments.Event, error) {
	query, args, err := psql.Select("id", "enrollment_id", "event_type", "message", "actor_id", "payload", "compression", "created_at").
		From(eventsTable).
		Where(sq.Eq{"enrollment_id": enrollmentID}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []eventRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, query, args...); err != nil {
		return nil, postgres.MapError(err, eventsTable)
	}

	out := make([]*enrollments.Event, 0, len(rows))
	for _, row := range rows {
		ev := &enrollments.Event{
			ID:           row.ID,
			EnrollmentID: row.EnrollmentID,
			EventType:    enrollments.EventType(row.EventType),
			Message:      row.Message,
			ActorID:      row.ActorID,
			CreatedAt:    row.CreatedAt,
		}
		if len(row.Payload) > 0 {
			raw, err := r.codec.Unpack(row.Payload, row.Compression)
			if err != nil {
				return nil, fmt.Errorf("event %s: %w", row.ID, err)
			}
			if err := json.Unmarshal(raw, &ev.Data); err != nil {
				return nil, fmt.Errorf("event %s: decode data: %w", row.ID, err)
			}
		}
		out = append(out, ev)
	}
	return out, nil
}

var (
	_ enrollments.Repository       = (*EnrollmentRepo)(nil)
	_ enrollments.InviteRepository = (*InviteRepo)(nil)
	_ enrollments.EventRepository  = (*EventRepo)(nil)
)
