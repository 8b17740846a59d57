package tenant

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
)

// Registry reads branch metadata used for request scoping.
type Registry interface {
	// GetBranch loads a branch with its organization's active flag.
	GetBranch(ctx context.Context, branchID string) (*BranchInfo, error)

	// CurrentBranchID returns the user's current branch pointer, falling back
	// to the default branch membership.
	CurrentBranchID(ctx context.Context, userID string) (string, error)

	// IsMember reports whether the user holds an active membership in branch.
	IsMember(ctx context.Context, userID, branchID string) (bool, error)
}

// PostgresRegistry implements Registry on the shared database.
type PostgresRegistry struct {
	db pgxscan.Querier
}

func NewPostgresRegistry(db pgxscan.Querier) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

func (r *PostgresRegistry) GetBranch(ctx context.Context, branchID string) (*BranchInfo, error) {
	var b BranchInfo
	err := pgxscan.Get(ctx, r.db, &b, `
		SELECT b.id, b.organization_id, b.code, b.is_main_branch, b.active,
		       o.active AS organization_active
		FROM branches b
		JOIN organizations o ON o.id = b.organization_id
		WHERE b.id = $1
	`, branchID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrBranchNotFound
		}
		return nil, fmt.Errorf("get branch: %w", err)
	}
	return &b, nil
}

func (r *PostgresRegistry) CurrentBranchID(ctx context.Context, userID string) (string, error) {
	var row struct {
		BranchID *string `db:"branch_id"`
	}
	err := pgxscan.Get(ctx, r.db, &row, `
		SELECT COALESCE(
			u.current_branch_id::text,
			(SELECT m.branch_id::text FROM branch_memberships m
			 WHERE m.user_id = u.id AND m.active AND m.is_default
			 ORDER BY m.created_at LIMIT 1)
		) AS branch_id
		FROM users u
		WHERE u.id = $1
	`, userID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return "", ErrNoCurrentBranch
		}
		return "", fmt.Errorf("current branch: %w", err)
	}
	if row.BranchID == nil || *row.BranchID == "" {
		return "", ErrNoCurrentBranch
	}
	return *row.BranchID, nil
}

func (r *PostgresRegistry) IsMember(ctx context.Context, userID, branchID string) (bool, error) {
	var ok bool
	err := pgxscan.Get(ctx, r.db, &ok, `
		SELECT EXISTS (
			SELECT 1 FROM branch_memberships
			WHERE user_id = $1 AND branch_id = $2 AND active
		)
	`, userID, branchID)
	if err != nil {
		return false, fmt.Errorf("branch membership: %w", err)
	}
	return ok, nil
}

var _ Registry = (*PostgresRegistry)(nil)
