package numerator

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
	corenumerator "lms/internal/core/numerator"
	"lms/internal/infrastructure/metrics"
	"lms/internal/infrastructure/storage/postgres"
)

const (
	selectForUpdate = `SELECT .+ FROM number_sequences WHERE seq_type = \$1 .+ FOR UPDATE`
	updateSequence  = `UPDATE number_sequences SET next_number = \$1, last_reset_year = \$2, version = version \+ 1, updated_at = \$3 WHERE id = \$4`
)

type fixture struct {
	mock    pgxmock.PgxPoolIface
	svc     *Service
	metrics *metrics.Metrics
	scope   corenumerator.Scope
	seqID   id.ID
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	m := metrics.New()
	svc := New(postgres.NewTxManagerFromDB(mock), m, Options{MaxTries: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond})
	svc.SetClock(func() time.Time { return now })

	return &fixture{
		mock:    mock,
		svc:     svc,
		metrics: m,
		scope: corenumerator.Scope{
			Type:           corenumerator.TypeInvoice,
			OrganizationID: id.Ptr(id.New()),
			BranchID:       id.Ptr(id.New()),
		},
		seqID: id.New(),
	}
}

func (f *fixture) row(prefix string, next int64, resetYearly bool, lastYear *int) *pgxmock.Rows {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return pgxmock.NewRows(columns).AddRow(
		f.seqID, true, false, (*id.ID)(nil), 1, created, created,
		f.scope.BranchID, f.scope.OrganizationID, corenumerator.TypeInvoice,
		prefix, 6, next, resetYearly, lastYear,
	)
}

func (f *fixture) expectBegin() {
	f.mock.ExpectBegin()
	f.mock.ExpectExec("SET LOCAL statement_timeout").WillReturnResult(pgxmock.NewResult("SET", 0))
}

func intPtr(v int) *int { return &v }

func TestService_Consume(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	f.expectBegin()
	f.mock.ExpectQuery(selectForUpdate).
		WithArgs(corenumerator.TypeInvoice, pgxmock.AnyArg(), pgxmock.AnyArg(), true).
		WillReturnRows(f.row("INV-2026-", 123, false, nil))
	f.mock.ExpectExec(updateSequence).
		WithArgs(int64(124), (*int)(nil), pgxmock.AnyArg(), f.seqID.String()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	f.mock.ExpectCommit()

	got, err := f.svc.Consume(context.Background(), f.scope)
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-000123", got)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestService_PeekDoesNotWriteWithoutReset(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	f.expectBegin()
	f.mock.ExpectQuery(selectForUpdate).
		WithArgs(corenumerator.TypeInvoice, pgxmock.AnyArg(), pgxmock.AnyArg(), true).
		WillReturnRows(f.row("ORD-", 42, true, intPtr(2026)))
	f.mock.ExpectCommit()

	got, err := f.svc.Peek(context.Background(), f.scope)
	require.NoError(t, err)
	assert.Equal(t, "ORD-000042", got)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestService_PeekPersistsYearlyReset(t *testing.T) {
	f := newFixture(t, time.Date(2027, 1, 1, 0, 0, 1, 0, time.UTC))

	f.expectBegin()
	f.mock.ExpectQuery(selectForUpdate).
		WithArgs(corenumerator.TypeInvoice, pgxmock.AnyArg(), pgxmock.AnyArg(), true).
		WillReturnRows(f.row("INV-", 900, true, intPtr(2026)))
	f.mock.ExpectExec(updateSequence).
		WithArgs(int64(1), intPtr(2027), pgxmock.AnyArg(), f.seqID.String()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	f.mock.ExpectCommit()

	got, err := f.svc.Peek(context.Background(), f.scope)
	require.NoError(t, err)
	assert.Equal(t, "INV-000001", got)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestService_MissingScope(t *testing.T) {
	f := newFixture(t, time.Now())

	f.expectBegin()
	f.mock.ExpectQuery(selectForUpdate).
		WithArgs(corenumerator.TypeInvoice, pgxmock.AnyArg(), pgxmock.AnyArg(), true).
		WillReturnRows(pgxmock.NewRows(columns))
	f.mock.ExpectRollback()

	_, err := f.svc.Consume(context.Background(), f.scope)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 404, apperror.GetHTTPStatus(err))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestService_RetriesSerializationFailure(t *testing.T) {
	f := newFixture(t, time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC))

	f.expectBegin()
	f.mock.ExpectQuery(selectForUpdate).
		WithArgs(corenumerator.TypeInvoice, pgxmock.AnyArg(), pgxmock.AnyArg(), true).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.SerializationFailure})
	f.mock.ExpectRollback()

	f.expectBegin()
	f.mock.ExpectQuery(selectForUpdate).
		WithArgs(corenumerator.TypeInvoice, pgxmock.AnyArg(), pgxmock.AnyArg(), true).
		WillReturnRows(f.row("R-", 7, false, nil))
	f.mock.ExpectExec(updateSequence).
		WithArgs(int64(8), (*int)(nil), pgxmock.AnyArg(), f.seqID.String()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	f.mock.ExpectCommit()

	got, err := f.svc.Consume(context.Background(), f.scope)
	require.NoError(t, err)
	assert.Equal(t, "R-000007", got)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestService_GivesUpAfterMaxTries(t *testing.T) {
	f := newFixture(t, time.Now())

	for i := 0; i < 3; i++ {
		f.expectBegin()
		f.mock.ExpectQuery(selectForUpdate).
			WithArgs(corenumerator.TypeInvoice, pgxmock.AnyArg(), pgxmock.AnyArg(), true).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.DeadlockDetected})
		f.mock.ExpectRollback()
	}

	_, err := f.svc.Consume(context.Background(), f.scope)
	require.Error(t, err)
	assert.True(t, apperror.IsRetryable(err))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestService_ProvisionDuplicate(t *testing.T) {
	f := newFixture(t, time.Now())

	args := make([]any, len(columns))
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	f.mock.ExpectExec(`INSERT INTO number_sequences`).
		WithArgs(args...).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "uniq_number_sequence_scope"})

	_, err := f.svc.Provision(context.Background(), f.scope, corenumerator.DefaultConfig("INV-"))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestService_ProvisionValidates(t *testing.T) {
	f := newFixture(t, time.Now())

	cfg := corenumerator.DefaultConfig("INV-")
	cfg.Padding = 0
	_, err := f.svc.Provision(context.Background(), f.scope, cfg)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.svc.Consume(context.Background(), corenumerator.Scope{Type: "bogus"})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestService_ListIncludesOrganizationSeries(t *testing.T) {
	f := newFixture(t, time.Now())
	org, branch := *f.scope.OrganizationID, *f.scope.BranchID

	f.mock.ExpectQuery(`SELECT .+ FROM number_sequences WHERE active = \$1 AND organization_id = \$2 AND \(branch_id IS NULL OR branch_id = \$3\) ORDER BY seq_type, created_at`).
		WithArgs(true, org, branch).
		WillReturnRows(f.row("INV-", 5, false, nil))

	out, err := f.svc.List(context.Background(), corenumerator.ListFilter{OrganizationID: &org, BranchID: &branch})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "INV-", out[0].Prefix)

	none, err := f.svc.List(context.Background(), corenumerator.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}
