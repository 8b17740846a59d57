package auth_repo

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
	"lms/internal/domain/auth"
	"lms/internal/infrastructure/storage/postgres"
)

// RoleRepo implements auth.RoleRepository.
type RoleRepo struct {
	txm *postgres.TxManager
}

var _ auth.RoleRepository = (*RoleRepo)(nil)

// NewRoleRepo creates a new role repository.
func NewRoleRepo(txm *postgres.TxManager) *RoleRepo {
	return &RoleRepo{txm: txm}
}

// Create creates a new role.
func (r *RoleRepo) Create(ctx context.Context, role *auth.Role) error {
	_, err := r.txm.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO roles (id, code, name, description, is_system, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, role.ID, role.Code, role.Name, role.Description, role.IsSystem, role.CreatedAt, role.UpdatedAt)
	if err != nil {
		return postgres.MapError(err, "roles")
	}
	return nil
}

// GetByCode retrieves role by code.
func (r *RoleRepo) GetByCode(ctx context.Context, code string) (*auth.Role, error) {
	var role auth.Role
	err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &role, `
		SELECT id, code, name, description, is_system, created_at, updated_at
		FROM roles WHERE code = $1
	`, code)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("role", code)
		}
		return nil, fmt.Errorf("get role: %w", err)
	}
	return &role, nil
}

// List retrieves every role.
func (r *RoleRepo) List(ctx context.Context) ([]auth.Role, error) {
	var roles []auth.Role
	err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &roles, `
		SELECT id, code, name, description, is_system, created_at, updated_at
		FROM roles ORDER BY code
	`)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// AssignPermission grants a permission to a role.
func (r *RoleRepo) AssignPermission(ctx context.Context, roleID, permissionID id.ID) error {
	_, err := r.txm.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, roleID, permissionID)
	if err != nil {
		return postgres.MapError(err, "role_permissions")
	}
	return nil
}
