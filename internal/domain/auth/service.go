package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"lms/internal/core/apperror"
	appctx "lms/internal/core/context"
	"lms/internal/core/id"
	"lms/internal/core/security"
	"lms/internal/core/tx"
	"lms/pkg/logger"
)

// ServiceConfig holds auth service configuration.
type ServiceConfig struct {
	MaxLoginAttempts   int
	LockDuration       time.Duration
	PasswordMinLength  int
	RefreshTokenExpiry time.Duration
	DefaultRole        string
}

// DefaultServiceConfig returns default configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxLoginAttempts:   5,
		LockDuration:       15 * time.Minute,
		PasswordMinLength:  8,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		DefaultRole:        security.RoleStudent,
	}
}

// TokenSender delivers one-time tokens (mail, SMS). Delivery itself is
// outside this service.
type TokenSender interface {
	Send(ctx context.Context, user *User, token *UserToken) error
}

// SessionMeta describes the client a refresh token is issued to.
type SessionMeta struct {
	UserAgent string
	IPAddress string
}

// Service provides authentication and authorization logic.
type Service struct {
	userRepo   UserRepository
	roleRepo   RoleRepository
	permRepo   PermissionRepository
	tokenRepo  TokenRepository
	userTokens UserTokenRepository
	txManager  tx.Manager
	jwtService *JWTService
	sender     TokenSender
	config     ServiceConfig
	now        func() time.Time
}

// Deps groups the repositories the service needs.
type Deps struct {
	Users       UserRepository
	Roles       RoleRepository
	Permissions PermissionRepository
	Tokens      TokenRepository
	UserTokens  UserTokenRepository
	TxManager   tx.Manager
	JWT         *JWTService
	Sender      TokenSender
	Clock       func() time.Time
}

// NewService creates a new auth service.
func NewService(deps Deps, config ServiceConfig) *Service {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		userRepo:   deps.Users,
		roleRepo:   deps.Roles,
		permRepo:   deps.Permissions,
		tokenRepo:  deps.Tokens,
		userTokens: deps.UserTokens,
		txManager:  deps.TxManager,
		jwtService: deps.JWT,
		sender:     deps.Sender,
		config:     config,
		now:        clock,
	}
}

// Register registers a new user and sends an email verification token.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if len(req.Password) < s.config.PasswordMinLength {
		return nil, apperror.NewFieldValidation("password",
			fmt.Sprintf("password must be at least %d characters", s.config.PasswordMinLength))
	}

	user := NewUser(req.Email, "")
	user.FullName = req.FullName
	user.OrganizationID = req.OrganizationID
	if err := user.Validate(ctx); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.Exists(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("check email exists: %w", err)
	}
	if exists {
		return nil, apperror.NewConflict("email already registered").WithDetail("email", user.Email)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(passwordHash)
	now := s.now()
	user.Stamp(nil, now)

	var verify *UserToken
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.userRepo.Create(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}

		if s.config.DefaultRole != "" {
			role, err := s.roleRepo.GetByCode(ctx, s.config.DefaultRole)
			if err == nil && role != nil {
				if err := s.userRepo.AssignRole(ctx, user.ID, role.ID, nil); err != nil {
					return fmt.Errorf("assign default role: %w", err)
				}
			} else if err != nil && !apperror.IsNotFound(err) {
				return err
			}
		}

		verify, err = s.issueUserToken(ctx, user, PurposeVerifyEmail, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.deliver(ctx, user, verify)
	logger.Info(ctx, "user registered", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// Login authenticates user and returns tokens.
func (s *Service) Login(ctx context.Context, creds Credentials, meta SessionMeta) (*TokenPair, *User, error) {
	user, err := s.userRepo.GetByEmail(ctx, NormalizeEmail(creds.Email))
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, nil, apperror.NewUnauthorized("invalid credentials")
		}
		return nil, nil, err
	}

	now := s.now()
	if err := user.CanLogin(now); err != nil {
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		user.RecordFailedLogin(s.config.MaxLoginAttempts, s.config.LockDuration, now)
		if uerr := s.userRepo.Update(ctx, user); uerr != nil {
			logger.Warn(ctx, "failed to record login attempt", "user_id", user.ID, "error", uerr)
		}
		return nil, nil, apperror.NewUnauthorized("invalid credentials")
	}

	return s.startSession(ctx, user, meta, now)
}

// RequestLoginCode mails a six digit sign-in code. Unknown addresses get
// no code and no error.
func (s *Service) RequestLoginCode(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil
		}
		return err
	}
	now := s.now()
	if err := user.CanLogin(now); err != nil {
		return err
	}
	code, err := s.rotateUserToken(ctx, user, PurposeLoginOTP, now)
	if err != nil {
		return err
	}
	s.deliver(ctx, user, code)
	return nil
}

// LoginWithCode exchanges a sign-in code for tokens.
func (s *Service) LoginWithCode(ctx context.Context, email, code string, meta SessionMeta) (*TokenPair, *User, error) {
	user, err := s.userRepo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, nil, apperror.NewUnauthorized("invalid code")
		}
		return nil, nil, err
	}
	now := s.now()
	if err := user.CanLogin(now); err != nil {
		return nil, nil, err
	}

	tok, err := s.userTokens.FindForUser(ctx, user.ID, PurposeLoginOTP, code)
	if err != nil {
		return nil, nil, apperror.NewUnauthorized("invalid code")
	}
	if err := tok.MarkUsed(now); err != nil {
		return nil, nil, err
	}
	if err := s.userTokens.Update(ctx, tok); err != nil {
		return nil, nil, fmt.Errorf("consume login code: %w", err)
	}

	// a mailed code proves the address
	if user.EmailVerifiedAt == nil {
		user.EmailVerifiedAt = &now
	}
	return s.startSession(ctx, user, meta, now)
}

func (s *Service) startSession(ctx context.Context, user *User, meta SessionMeta, now time.Time) (*TokenPair, *User, error) {
	if err := s.loadAccess(ctx, user); err != nil {
		return nil, nil, err
	}

	user.RecordSuccessfulLogin(now)
	if err := s.userRepo.Update(ctx, user); err != nil {
		logger.Warn(ctx, "failed to update last login", "user_id", user.ID, "error", err)
	}

	tokens, err := s.generateTokenPair(ctx, user, meta)
	if err != nil {
		return nil, nil, err
	}

	logger.Info(ctx, "user logged in", "user_id", user.ID, "email", user.Email)
	return tokens, user, nil
}

// Refresh rotates a refresh token and issues a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string, meta SessionMeta) (*TokenPair, error) {
	stored, err := s.tokenRepo.GetRefreshToken(ctx, hashToken(refreshToken))
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid refresh token")
	}
	if !stored.IsValid(s.now()) {
		return nil, apperror.NewUnauthorized("refresh token expired or revoked")
	}

	user, err := s.userRepo.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, apperror.NewUnauthorized("user not found")
	}
	if err := user.CanLogin(s.now()); err != nil {
		return nil, err
	}
	if err := s.loadAccess(ctx, user); err != nil {
		return nil, err
	}

	var pair *TokenPair
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.tokenRepo.RevokeRefreshToken(ctx, stored.ID, "rotated"); err != nil {
			return fmt.Errorf("revoke old token: %w", err)
		}
		var err error
		pair, err = s.generateTokenPair(ctx, user, meta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout revokes every refresh token of the user.
func (s *Service) Logout(ctx context.Context, userID id.ID) error {
	return s.tokenRepo.RevokeAllUserTokens(ctx, userID, "logout")
}

// RequestEmailVerification sends a fresh verification link.
func (s *Service) RequestEmailVerification(ctx context.Context, userID id.ID) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.EmailVerifiedAt != nil {
		return apperror.NewConflict("email already verified")
	}
	tok, err := s.rotateUserToken(ctx, user, PurposeVerifyEmail, s.now())
	if err != nil {
		return err
	}
	s.deliver(ctx, user, tok)
	return nil
}

// VerifyEmail consumes a verification token.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	now := s.now()
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		tok, user, err := s.consume(ctx, PurposeVerifyEmail, token, now)
		if err != nil {
			return err
		}
		if user.EmailVerifiedAt == nil {
			user.EmailVerifiedAt = &now
			return s.userRepo.Update(ctx, user)
		}
		logger.Debug(ctx, "email already verified", "user_id", tok.UserID)
		return nil
	})
}

// RequestPasswordReset mails a reset link. Unknown addresses are ignored so
// the endpoint does not reveal which accounts exist.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil
		}
		return err
	}
	tok, err := s.rotateUserToken(ctx, user, PurposeResetPassword, s.now())
	if err != nil {
		return err
	}
	s.deliver(ctx, user, tok)
	return nil
}

// ResetPassword sets a new password and signs the user out everywhere.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < s.config.PasswordMinLength {
		return apperror.NewFieldValidation("password",
			fmt.Sprintf("password must be at least %d characters", s.config.PasswordMinLength))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		_, user, err := s.consume(ctx, PurposeResetPassword, token, now)
		if err != nil {
			return err
		}
		user.PasswordHash = string(hash)
		user.FailedLoginAttempts = 0
		user.LockedUntil = nil
		if err := s.userRepo.Update(ctx, user); err != nil {
			return err
		}
		return s.tokenRepo.RevokeAllUserTokens(ctx, user.ID, "password_reset")
	})
}

func (s *Service) consume(ctx context.Context, purpose TokenPurpose, token string, now time.Time) (*UserToken, *User, error) {
	tok, err := s.userTokens.FindByToken(ctx, purpose, token)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, nil, apperror.NewNotFound("user_token", "")
		}
		return nil, nil, err
	}
	if err := tok.MarkUsed(now); err != nil {
		return nil, nil, err
	}
	if err := s.userTokens.Update(ctx, tok); err != nil {
		return nil, nil, err
	}
	user, err := s.userRepo.GetByID(ctx, tok.UserID)
	if err != nil {
		return nil, nil, err
	}
	return tok, user, nil
}

// rotateUserToken voids older tokens of the same purpose and issues a new one.
func (s *Service) rotateUserToken(ctx context.Context, user *User, purpose TokenPurpose, now time.Time) (*UserToken, error) {
	var tok *UserToken
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.userTokens.InvalidateOutstanding(ctx, user.ID, purpose, now); err != nil {
			return err
		}
		var err error
		tok, err = s.issueUserToken(ctx, user, purpose, now)
		return err
	})
	return tok, err
}

func (s *Service) issueUserToken(ctx context.Context, user *User, purpose TokenPurpose, now time.Time) (*UserToken, error) {
	tok, err := NewUserToken(user.ID, purpose, user.Email, now)
	if err != nil {
		return nil, err
	}
	tok.Stamp(nil, now)
	if err := s.userTokens.Create(ctx, tok); err != nil {
		return nil, fmt.Errorf("save user token: %w", err)
	}
	return tok, nil
}

func (s *Service) deliver(ctx context.Context, user *User, tok *UserToken) {
	if tok == nil {
		return
	}
	if s.sender == nil {
		logger.Debug(ctx, "no token sender configured", "user_id", user.ID, "purpose", tok.Purpose)
		return
	}
	if err := s.sender.Send(ctx, user, tok); err != nil {
		logger.Warn(ctx, "failed to deliver user token", "user_id", user.ID, "purpose", tok.Purpose, "error", err)
	}
}

// AssignRole assigns a role to a user.
func (s *Service) AssignRole(ctx context.Context, userID id.ID, roleCode string) error {
	var grantedBy *id.ID
	if u := appctx.GetUser(ctx); u != nil {
		if v, err := id.Parse(u.UserID); err == nil {
			grantedBy = &v
		}
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return err
	}
	role, err := s.roleRepo.GetByCode(ctx, roleCode)
	if err != nil {
		return err
	}
	if err := s.userRepo.AssignRole(ctx, userID, role.ID, grantedBy); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}

	logger.Info(ctx, "role assigned", "user_id", userID, "role", roleCode, "granted_by", grantedBy)
	return nil
}

// RevokeRole revokes a role from a user.
func (s *Service) RevokeRole(ctx context.Context, userID id.ID, roleCode string) error {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return err
	}
	role, err := s.roleRepo.GetByCode(ctx, roleCode)
	if err != nil {
		return err
	}
	return s.userRepo.RevokeRole(ctx, userID, role.ID)
}

// GetUserByID retrieves user with roles and permissions.
func (s *Service) GetUserByID(ctx context.Context, userID id.ID) (*User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.loadAccess(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DisplayName returns the name printed for a user on certificates.
func (s *Service) DisplayName(ctx context.Context, userID id.ID) (string, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.DisplayName(), nil
}

// ListUsers lists users with filtering.
func (s *Service) ListUsers(ctx context.Context, filter UserFilter) ([]User, int, error) {
	return s.userRepo.List(ctx, filter)
}

// ListRoles lists all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.roleRepo.List(ctx)
}

// ListPermissions lists all permissions.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.permRepo.List(ctx)
}

// CreateRole creates a new role.
func (s *Service) CreateRole(ctx context.Context, code, name, description string) (*Role, error) {
	if code == "" {
		return nil, apperror.NewFieldValidation("code", "code is required")
	}
	role := NewRole(code, name, s.now())
	role.Description = description
	if err := s.roleRepo.Create(ctx, role); err != nil {
		return nil, fmt.Errorf("create role: %w", err)
	}
	return role, nil
}

// CleanupExpiredTokens removes refresh tokens expired for more than a day.
func (s *Service) CleanupExpiredTokens(ctx context.Context) (int, error) {
	return s.tokenRepo.CleanupExpiredTokens(ctx, s.now().Add(-24*time.Hour))
}

func (s *Service) loadAccess(ctx context.Context, user *User) error {
	roles, err := s.userRepo.LoadRoles(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load roles: %w", err)
	}
	user.Roles = roles

	perms, err := s.userRepo.LoadPermissions(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load permissions: %w", err)
	}
	user.Permissions = perms
	return nil
}

// generateTokenPair creates access and refresh tokens.
func (s *Service) generateTokenPair(ctx context.Context, user *User, meta SessionMeta) (*TokenPair, error) {
	now := s.now()
	refresh := &RefreshToken{
		ID:        id.New(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.config.RefreshTokenExpiry),
		CreatedAt: now,
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
	}

	accessToken, expiresAt, err := s.jwtService.GenerateAccessToken(user, refresh.ID.String())
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	raw, err := generateRandomToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	refresh.TokenHash = hashToken(raw)

	if err := s.tokenRepo.SaveRefreshToken(ctx, refresh); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: raw,
		ExpiresAt:    expiresAt,
		TokenType:    "Bearer",
	}, nil
}

// hashToken creates SHA256 hash of token.
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// generateRandomToken generates a random token string.
func generateRandomToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
