package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lms/internal/core/tx"
	"lms/pkg/logger"
)

var tracer = otel.Tracer("lms/tx")

var _ tx.ReadOnlyManager = (*TxManager)(nil)

// TxOptions configures a top-level transaction. Nested calls join the
// outer transaction and ignore their own options.
type TxOptions struct {
	// Isolation is left empty for the server default (READ COMMITTED).
	// Sequence consumption relies on row locks, not on isolation.
	Isolation pgx.TxIsoLevel
	ReadOnly  bool
	// StatementTimeout is applied with SET LOCAL; zero disables it.
	StatementTimeout time.Duration
}

// DefaultTxOptions is used by RunInTransaction.
func DefaultTxOptions() TxOptions {
	return TxOptions{StatementTimeout: 30 * time.Second}
}

// SnapshotTxOptions gives report queries one consistent view of the data.
func SnapshotTxOptions() TxOptions {
	return TxOptions{
		Isolation:        pgx.RepeatableRead,
		ReadOnly:         true,
		StatementTimeout: 60 * time.Second,
	}
}

func (o TxOptions) pgx() pgx.TxOptions {
	opts := pgx.TxOptions{IsoLevel: o.Isolation}
	if o.ReadOnly {
		opts.AccessMode = pgx.ReadOnly
	}
	return opts
}

// DB is the subset of *pgxpool.Pool the manager needs.
// pgxmock.PgxPoolIface satisfies it in tests.
type DB interface {
	Querier
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

var _ DB = (*pgxpool.Pool)(nil)

// Querier is implemented by pgx.Tx, *pgxpool.Pool and pgxmock.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxManager keeps the active pgx transaction in the context so that
// repositories pick it up through GetQuerier.
type TxManager struct {
	db DB
}

// NewTxManager creates a manager over the application pool.
func NewTxManager(pool *Pool) *TxManager {
	return &TxManager{db: pool.Pool}
}

// NewTxManagerFromDB creates a manager over any DB (raw pool or mock).
func NewTxManagerFromDB(db DB) *TxManager {
	return &TxManager{db: db}
}

type txKey struct{}

// Tx is the transaction stored in the context.
type Tx struct {
	pgx.Tx
	readOnly bool
}

// ReadOnly reports whether the transaction was opened read-only.
func (t *Tx) ReadOnly() bool { return t.readOnly }

// RunInTransaction runs fn with DefaultTxOptions.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunInTransactionWithOptions(ctx, DefaultTxOptions(), fn)
}

// ReadOnly runs fn in a read-only repeatable-read snapshot.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunInTransactionWithOptions(ctx, SnapshotTxOptions(), fn)
}

// RunInTransactionWithOptions begins a transaction unless ctx already has one.
func (m *TxManager) RunInTransactionWithOptions(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) error {
	if m.GetTx(ctx) != nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "db.transaction", trace.WithAttributes(
		attribute.String("db.tx.isolation", string(opts.Isolation)),
		attribute.Bool("db.tx.read_only", opts.ReadOnly),
	))
	defer span.End()

	pgxTx, err := m.db.BeginTx(ctx, opts.pgx())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("begin transaction: %w", err)
	}

	if opts.StatementTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", opts.StatementTimeout.Milliseconds())
		if _, err := pgxTx.Exec(ctx, stmt); err != nil {
			m.rollback(ctx, pgxTx, err)
			return fmt.Errorf("set statement_timeout: %w", err)
		}
	}

	if err := fn(context.WithValue(ctx, txKey{}, &Tx{Tx: pgxTx, readOnly: opts.ReadOnly})); err != nil {
		span.RecordError(err)
		m.rollback(ctx, pgxTx, err)
		return err
	}

	if err := pgxTx.Commit(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// rollback survives a cancelled request context.
func (m *TxManager) rollback(ctx context.Context, pgxTx pgx.Tx, cause error) {
	if err := pgxTx.Rollback(context.WithoutCancel(ctx)); err != nil {
		logger.Error(ctx, "rollback failed", "error", err, "cause", cause)
	}
}

// GetTx returns the transaction in ctx, or nil.
func (m *TxManager) GetTx(ctx context.Context) *Tx {
	if t, ok := ctx.Value(txKey{}).(*Tx); ok {
		return t
	}
	return nil
}

// GetQuerier returns the transaction in ctx, otherwise the pool.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if t := m.GetTx(ctx); t != nil {
		return t.Tx
	}
	return m.db
}
