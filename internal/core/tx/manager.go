// Package tx declares the transaction boundary used by domain services.
// The PostgreSQL implementation lives in infrastructure/storage/postgres.
package tx

import (
	"context"
)

// Manager runs fn inside a transaction carried by ctx.
// A call made while ctx already holds a transaction joins it, so hooks and
// repositories invoked from fn commit or roll back together with the caller.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager also offers read-only snapshots for multi-query reads
// (a count plus a page) that must agree with each other.
type ReadOnlyManager interface {
	Manager
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
