package enrollment_repo

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/id"
	"lms/internal/domain/enrollments"
	"lms/internal/infrastructure/storage/postgres"
)

var eventColumns = []string{"id", "enrollment_id", "event_type", "message", "actor_id", "payload", "compression", "created_at"}

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *postgres.TxManager) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, postgres.NewTxManagerFromDB(mock)
}

func TestEnrollmentRepo_ListDueForExpiry(t *testing.T) {
	mock, txm := newMock(t)
	repo := NewEnrollmentRepo(txm)
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM enrollments WHERE status IN \(\$1,\$2,\$3,\$4\) AND access_ends_at < \$5 ORDER BY access_ends_at ASC LIMIT 100$`).
		WithArgs(enrollments.StatusPending, enrollments.StatusActive, enrollments.StatusCompleted, enrollments.StatusSuspended, now).
		WillReturnRows(pgxmock.NewRows(repo.Columns()))

	due, err := repo.ListDueForExpiry(context.Background(), now, 100)
	require.NoError(t, err)
	assert.Empty(t, due)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepo_FindCurrentSkipsCancelled(t *testing.T) {
	mock, txm := newMock(t)
	repo := NewEnrollmentRepo(txm)
	user, course := id.New(), id.New()

	mock.ExpectQuery(`SELECT .+ FROM enrollments WHERE course_id = \$1 AND user_id = \$2 AND status NOT IN \(\$3,\$4\) ORDER BY enrolled_at DESC LIMIT 1`).
		WithArgs(course.String(), user.String(), enrollments.StatusCancelled, enrollments.StatusRefunded).
		WillReturnRows(pgxmock.NewRows(repo.Columns()))

	_, err := repo.FindCurrent(context.Background(), user, course)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteRepo_ExpireDue(t *testing.T) {
	mock, txm := newMock(t)
	repo := NewInviteRepo(txm)
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE course_access_invites SET status = \$1, updated_at = \$2, version = version \+ 1 WHERE status = \$3 AND expires_at <= \$4`).
		WithArgs(enrollments.InviteExpired, now, enrollments.InvitePending, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := repo.ExpireDue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepo_CompressesLargePayloads(t *testing.T) {
	mock, txm := newMock(t)
	codec, err := postgres.NewCodec(64)
	require.NoError(t, err)
	repo := NewEventRepo(txm, codec)

	e := &enrollments.Enrollment{}
	e.ID = id.New()
	e.Status = enrollments.StatusActive
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	ev := enrollments.NewEvent(e, enrollments.EventExtended, nil, "extended by support", now)
	ev.Data["note"] = strings.Repeat("extended after outage ", 20)

	mock.ExpectExec(`INSERT INTO enrollment_events`).
		WithArgs(ev.ID, e.ID, "extended", "extended by support", (*id.ID)(nil), pgxmock.AnyArg(), postgres.CompressionZstd, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.Append(context.Background(), ev))
	require.NoError(t, mock.ExpectationsWereMet())

	raw := []byte(`{"status":"active","note":"` + strings.Repeat("extended after outage ", 20) + `"}`)
	stored, algo := codec.Pack(raw)
	require.Equal(t, postgres.CompressionZstd, algo)
	assert.Less(t, len(stored), len(raw))

	mock.ExpectQuery(`SELECT id, enrollment_id, event_type, message, actor_id, payload, compression, created_at FROM enrollment_events WHERE enrollment_id = \$1 ORDER BY created_at ASC, id ASC`).
		WithArgs(e.ID.String()).
		WillReturnRows(pgxmock.NewRows(eventColumns).
			AddRow(ev.ID, e.ID, "extended", "extended by support", (*id.ID)(nil), stored, postgres.CompressionZstd, now).
			AddRow(id.New(), e.ID, "resumed", "", (*id.ID)(nil), []byte(`{"status":"active"}`), postgres.CompressionNone, now.Add(time.Minute)))

	events, err := repo.ListByEnrollment(context.Background(), e.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, enrollments.EventExtended, events[0].EventType)
	assert.Equal(t, "active", events[0].Data["status"])
	assert.Contains(t, events[0].Data["note"], "outage")
	assert.Equal(t, enrollments.EventResumed, events[1].EventType)
	assert.NoError(t, mock.ExpectationsWereMet())
}
