package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"lms/internal/core/apperror"
)

// MapError converts driver errors into AppErrors.
// entity names the table or aggregate for error details.
// Errors that are already AppErrors pass through unchanged.
func MapError(err error, entity string) error {
	if err == nil {
		return nil
	}
	if apperror.IsAppError(err) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NewNotFound(entity, nil)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", entity, err)
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return apperror.NewDuplicate(entity, pgErr.ConstraintName, pgErr.Detail).WithCause(err)

	case pgerrcode.ForeignKeyViolation:
		return apperror.NewConflict("referenced record is missing or still in use").
			WithDetail("entity", entity).
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)

	case pgerrcode.CheckViolation, pgerrcode.NotNullViolation:
		return apperror.NewValidation("value violates a table constraint").
			WithDetail("entity", entity).
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)

	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
		return apperror.NewRetryableConflict(err).WithDetail("entity", entity)

	case pgerrcode.QueryCanceled:
		return apperror.NewInternal(fmt.Errorf("statement timeout on %s: %w", entity, err))

	default:
		return fmt.Errorf("%s: %w", entity, err)
	}
}

// IsRetryable reports whether err is a transient transaction conflict.
func IsRetryable(err error) bool {
	if apperror.IsRetryable(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
		return true
	}
	return false
}
