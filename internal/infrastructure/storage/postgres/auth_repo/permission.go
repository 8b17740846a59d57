package auth_repo

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"lms/internal/core/apperror"
	"lms/internal/domain/auth"
	"lms/internal/infrastructure/storage/postgres"
)

// PermissionRepo implements auth.PermissionRepository.
type PermissionRepo struct {
	txm *postgres.TxManager
}

var _ auth.PermissionRepository = (*PermissionRepo)(nil)

// NewPermissionRepo creates a new permission repository.
func NewPermissionRepo(txm *postgres.TxManager) *PermissionRepo {
	return &PermissionRepo{txm: txm}
}

const permissionColumns = `id, code, name, description, resource, action, created_at`

// GetByCode retrieves permission by code.
func (r *PermissionRepo) GetByCode(ctx context.Context, code string) (*auth.Permission, error) {
	var p auth.Permission
	err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &p, `SELECT `+permissionColumns+` FROM permissions WHERE code = $1`, code)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("permission", code)
		}
		return nil, fmt.Errorf("get permission: %w", err)
	}
	return &p, nil
}

// List retrieves all permissions.
func (r *PermissionRepo) List(ctx context.Context) ([]auth.Permission, error) {
	var out []auth.Permission
	err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, `SELECT `+permissionColumns+` FROM permissions ORDER BY resource, action`)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	return out, nil
}
