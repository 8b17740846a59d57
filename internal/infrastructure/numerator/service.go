// Package numerator provides the PostgreSQL implementation of number sequences.
// It implements core/numerator.Generator.
package numerator

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff/v5"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lms/internal/core/apperror"
	corenumerator "lms/internal/core/numerator"
	"lms/internal/infrastructure/metrics"
	"lms/internal/infrastructure/storage/postgres"
	"lms/pkg/logger"
)

const table = "number_sequences"

var columns = []string{
	"id", "active", "is_system_generated", "user_add_id", "version", "created_at", "updated_at",
	"branch_id", "organization_id", "seq_type",
	"prefix", "padding", "next_number", "reset_yearly", "last_reset_year",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Options tunes conflict retries.
type Options struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultOptions retries a conflicted transaction up to five times.
func DefaultOptions() Options {
	return Options{
		MaxTries:        5,
		InitialInterval: 20 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
	}
}

// Service issues numbers from the number_sequences table.
// Each Peek/Consume locks the scope row with SELECT ... FOR UPDATE, so
// concurrent consumers of one scope are serialized by PostgreSQL.
type Service struct {
	txm     *postgres.TxManager
	metrics *metrics.Metrics
	opts    Options
	now     func() time.Time
}

var (
	_ corenumerator.Generator = (*Service)(nil)
	_ corenumerator.Lister    = (*Service)(nil)
)

// New creates the service. m may be nil.
func New(txm *postgres.TxManager, m *metrics.Metrics, opts Options) *Service {
	if opts.MaxTries == 0 {
		opts.MaxTries = 1
	}
	return &Service{txm: txm, metrics: m, opts: opts, now: time.Now}
}

// SetClock overrides the time source (tests).
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Peek returns the next number without consuming it.
// A pending yearly reset is written back before returning.
func (s *Service) Peek(ctx context.Context, scope corenumerator.Scope) (string, error) {
	return s.advance(ctx, scope, false)
}

// Consume returns the current number and increments the counter.
func (s *Service) Consume(ctx context.Context, scope corenumerator.Scope) (string, error) {
	out, err := s.advance(ctx, scope, true)
	if err == nil {
		s.metrics.SequenceIssued(string(scope.Type))
	}
	return out, err
}

func (s *Service) advance(ctx context.Context, scope corenumerator.Scope, consume bool) (string, error) {
	if err := scope.Validate(); err != nil {
		return "", err
	}

	op := func() (string, error) {
		var out string
		err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
			seq, err := s.lock(ctx, scope)
			if err != nil {
				return err
			}

			year := s.now().UTC().Year()
			if consume {
				out = seq.Consume(year)
			} else {
				var changed bool
				out, changed = seq.Peek(year)
				if !changed {
					return nil
				}
			}
			return s.save(ctx, seq)
		})
		if err == nil {
			return out, nil
		}
		if postgres.IsRetryable(err) {
			s.metrics.SequenceRetried(string(scope.Type))
			logger.Debug(ctx, "sequence transaction conflict, retrying", "scope", scope.Key(), "error", err)
			return "", err
		}
		return "", backoff.Permanent(err)
	}

	// Inside an outer transaction a conflict aborts the whole transaction,
	// so retrying here cannot help.
	tries := s.opts.MaxTries
	if s.txm.GetTx(ctx) != nil {
		tries = 1
	}

	out, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(s.backOff()),
		backoff.WithMaxTries(tries),
	)
	if err != nil {
		return "", postgres.MapError(err, table)
	}
	return out, nil
}

func (s *Service) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if s.opts.InitialInterval > 0 {
		b.InitialInterval = s.opts.InitialInterval
	}
	if s.opts.MaxInterval > 0 {
		b.MaxInterval = s.opts.MaxInterval
	}
	return b
}

func (s *Service) lock(ctx context.Context, scope corenumerator.Scope) (*corenumerator.Sequence, error) {
	return s.load(ctx, scope, "FOR UPDATE")
}

func (s *Service) load(ctx context.Context, scope corenumerator.Scope, suffix string) (*corenumerator.Sequence, error) {
	b := psql.Select(columns...).
		From(table).
		Where(sq.Eq{"seq_type": scope.Type}).
		Where("organization_id IS NOT DISTINCT FROM ?", scope.OrganizationID).
		Where("branch_id IS NOT DISTINCT FROM ?", scope.BranchID).
		Where(sq.Eq{"active": true})
	if suffix != "" {
		b = b.Suffix(suffix)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	var seq corenumerator.Sequence
	if err := pgxscan.Get(ctx, s.txm.GetQuerier(ctx), &seq, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, notFound(scope)
		}
		return nil, err
	}
	return &seq, nil
}

func (s *Service) save(ctx context.Context, seq *corenumerator.Sequence) error {
	query, args, err := psql.Update(table).
		Set("next_number", seq.NextNumber).
		Set("last_reset_year", seq.LastResetYear).
		Set("version", sq.Expr("version + 1")).
		Set("updated_at", s.now().UTC()).
		Where(sq.Eq{"id": seq.ID}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.txm.GetQuerier(ctx).Exec(ctx, query, args...)
	return err
}

// Provision inserts the series row. A second row for the same scope is
// rejected by the unique index and reported as a duplicate.
func (s *Service) Provision(ctx context.Context, scope corenumerator.Scope, cfg corenumerator.Config) (*corenumerator.Sequence, error) {
	seq := corenumerator.NewSequence(scope, cfg)
	seq.Stamp(nil, s.now().UTC())
	if err := seq.Validate(ctx); err != nil {
		return nil, err
	}

	query, args, err := psql.Insert(table).
		Columns(columns...).
		Values(
			seq.ID, seq.Active, seq.IsSystemGenerated, seq.UserAddID, seq.Version, seq.CreatedAt, seq.UpdatedAt,
			seq.BranchID, seq.OrganizationID, seq.SeqType,
			seq.Prefix, seq.Padding, seq.NextNumber, seq.ResetYearly, seq.LastResetYear,
		).
		ToSql()
	if err != nil {
		return nil, err
	}

	if _, err := s.txm.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		mapped := postgres.MapError(err, table)
		if apperror.HasCode(mapped, apperror.CodeDuplicate) {
			return nil, apperror.NewDuplicate(table, "scope", scope.Key()).WithCause(err)
		}
		return nil, mapped
	}
	return seq, nil
}

// Get returns the stored series without locking it.
func (s *Service) Get(ctx context.Context, scope corenumerator.Scope) (*corenumerator.Sequence, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	seq, err := s.load(ctx, scope, "")
	if err != nil {
		return nil, postgres.MapError(err, table)
	}
	return seq, nil
}

// List returns the series matching f, ordered by type.
func (s *Service) List(ctx context.Context, f corenumerator.ListFilter) ([]*corenumerator.Sequence, error) {
	if f.None() {
		return []*corenumerator.Sequence{}, nil
	}
	b := psql.Select(columns...).From(table).Where(sq.Eq{"active": true}).OrderBy("seq_type", "created_at")
	if !f.All {
		b = b.Where("organization_id = ?", *f.OrganizationID)
		if f.BranchID != nil {
			b = b.Where("(branch_id IS NULL OR branch_id = ?)", *f.BranchID)
		}
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	var out []*corenumerator.Sequence
	if err := pgxscan.Select(ctx, s.txm.GetQuerier(ctx), &out, query, args...); err != nil {
		return nil, postgres.MapError(err, table)
	}
	return out, nil
}

func notFound(scope corenumerator.Scope) error {
	var org, branch any
	if scope.OrganizationID != nil {
		org = scope.OrganizationID.String()
	}
	if scope.BranchID != nil {
		branch = scope.BranchID.String()
	}
	return apperror.NewSequenceNotFound(string(scope.Type), org, branch)
}

// IsNotFound reports a missing scope.
func IsNotFound(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr) && appErr.Code == apperror.CodeSequenceNotFound
}
