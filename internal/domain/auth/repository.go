package auth

import (
	"context"
	"time"

	"lms/internal/core/id"
)

// UserRepository defines user storage operations.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, userID id.ID) (*User, error)

	// GetByEmail looks up a normalized address.
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	List(ctx context.Context, filter UserFilter) ([]User, int, error)

	// LoadRoles loads user's roles.
	LoadRoles(ctx context.Context, userID id.ID) ([]Role, error)

	// LoadPermissions loads user's permissions (flattened from roles).
	LoadPermissions(ctx context.Context, userID id.ID) ([]string, error)

	AssignRole(ctx context.Context, userID, roleID id.ID, grantedBy *id.ID) error
	RevokeRole(ctx context.Context, userID, roleID id.ID) error

	// Exists checks if email is taken.
	Exists(ctx context.Context, email string) (bool, error)
}

// RoleRepository defines role storage operations.
type RoleRepository interface {
	Create(ctx context.Context, role *Role) error
	GetByCode(ctx context.Context, code string) (*Role, error)
	List(ctx context.Context) ([]Role, error)
	AssignPermission(ctx context.Context, roleID, permissionID id.ID) error
}

// PermissionRepository defines permission storage operations.
type PermissionRepository interface {
	GetByCode(ctx context.Context, code string) (*Permission, error)
	List(ctx context.Context) ([]Permission, error)
}

// TokenRepository stores refresh tokens.
type TokenRepository interface {
	SaveRefreshToken(ctx context.Context, token *RefreshToken) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenID id.ID, reason string) error
	RevokeAllUserTokens(ctx context.Context, userID id.ID, reason string) error

	// CleanupExpiredTokens removes tokens that expired before cutoff.
	CleanupExpiredTokens(ctx context.Context, cutoff time.Time) (int, error)
}

// UserTokenRepository stores one-time user tokens.
type UserTokenRepository interface {
	Create(ctx context.Context, token *UserToken) error
	FindByToken(ctx context.Context, purpose TokenPurpose, token string) (*UserToken, error)

	// FindForUser looks up a short code, which is only unique per user.
	FindForUser(ctx context.Context, userID id.ID, purpose TokenPurpose, token string) (*UserToken, error)
	Update(ctx context.Context, token *UserToken) error

	// InvalidateOutstanding marks every unused token of purpose as used.
	InvalidateOutstanding(ctx context.Context, userID id.ID, purpose TokenPurpose, now time.Time) error
}

// UserFilter for listing users.
type UserFilter struct {
	Search         string
	IsActive       *bool
	RoleCode       string
	OrganizationID *id.ID
	Limit          int
	Offset         int
}
