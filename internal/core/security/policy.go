package security

import (
	"context"
	"slices"

	"lms/internal/core/apperror"
	appctx "lms/internal/core/context"
)

// Permission actions combined with a resource: "courses:read".
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionManage = "manage"
)

// Built-in roles seeded for every organization.
const (
	RoleAdmin      = "admin"
	RoleInstructor = "instructor"
	RoleStaff      = "staff"
	RoleStudent    = "student"
)

// Perm joins resource and action.
func Perm(resource, action string) string {
	return resource + ":" + action
}

// HasPermission checks the permission list carried by the request.
// Superusers and holders of "<resource>:manage" pass every check on that resource.
func HasPermission(ctx context.Context, permission string) bool {
	user := appctx.GetUser(ctx)
	if user == nil {
		return false
	}
	if user.IsSuperuser {
		return true
	}
	if slices.Contains(user.Permissions, permission) {
		return true
	}
	for i := 0; i < len(permission); i++ {
		if permission[i] == ':' {
			return slices.Contains(user.Permissions, permission[:i]+":"+ActionManage)
		}
	}
	return false
}

// RequirePermission returns a 401/403 AppError when the permission is missing.
func RequirePermission(ctx context.Context, permission string) error {
	if appctx.GetUser(ctx) == nil {
		return apperror.NewUnauthorized("authentication required")
	}
	if !HasPermission(ctx, permission) {
		return apperror.NewForbidden("insufficient permissions").
			WithDetail("required_permission", permission)
	}
	return nil
}
