package auth_repo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
	"lms/internal/domain/auth"
	"lms/internal/infrastructure/storage/postgres"
)

// TokenRepo implements auth.TokenRepository.
type TokenRepo struct {
	txm *postgres.TxManager
}

var _ auth.TokenRepository = (*TokenRepo)(nil)

// NewTokenRepo creates a new refresh token repository.
func NewTokenRepo(txm *postgres.TxManager) *TokenRepo {
	return &TokenRepo{txm: txm}
}

// SaveRefreshToken saves a refresh token.
func (r *TokenRepo) SaveRefreshToken(ctx context.Context, token *auth.RefreshToken) error {
	_, err := r.txm.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, token.ID, token.UserID, token.TokenHash, token.ExpiresAt, token.CreatedAt, token.UserAgent, token.IPAddress)
	if err != nil {
		return postgres.MapError(err, "refresh_tokens")
	}
	return nil
}

// GetRefreshToken retrieves refresh token by hash.
func (r *TokenRepo) GetRefreshToken(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	var token auth.RefreshToken
	err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &token, `
		SELECT id, user_id, token_hash, expires_at, created_at, revoked_at, revoked_reason, user_agent, ip_address
		FROM refresh_tokens WHERE token_hash = $1
	`, tokenHash)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("refresh_token", "")
		}
		return nil, fmt.Errorf("query token: %w", err)
	}
	return &token, nil
}

// RevokeRefreshToken revokes a refresh token.
func (r *TokenRepo) RevokeRefreshToken(ctx context.Context, tokenID id.ID, reason string) error {
	_, err := r.txm.GetQuerier(ctx).Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = now(), revoked_reason = $2 WHERE id = $1 AND revoked_at IS NULL`, tokenID, reason)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// RevokeAllUserTokens revokes all tokens for a user.
func (r *TokenRepo) RevokeAllUserTokens(ctx context.Context, userID id.ID, reason string) error {
	_, err := r.txm.GetQuerier(ctx).Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = now(), revoked_reason = $2 WHERE user_id = $1 AND revoked_at IS NULL`, userID, reason)
	if err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}
	return nil
}

// CleanupExpiredTokens removes tokens that expired or were revoked before cutoff.
func (r *TokenRepo) CleanupExpiredTokens(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.txm.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < $1 OR revoked_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup tokens: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// UserTokenRepo implements auth.UserTokenRepository.
type UserTokenRepo struct {
	*postgres.BaseRepo[*auth.UserToken]
}

var _ auth.UserTokenRepository = (*UserTokenRepo)(nil)

// NewUserTokenRepo creates a new one-time token repository.
func NewUserTokenRepo(txm *postgres.TxManager) *UserTokenRepo {
	return &UserTokenRepo{
		BaseRepo: postgres.NewBaseRepo(txm, "user_tokens", func() *auth.UserToken { return &auth.UserToken{} }),
	}
}

// FindByToken looks up a link token.
func (r *UserTokenRepo) FindByToken(ctx context.Context, purpose auth.TokenPurpose, token string) (*auth.UserToken, error) {
	return r.FindOne(ctx, r.Select().
		Where(sq.Eq{"purpose": purpose, "token": token}).
		OrderBy("created_at DESC").
		Limit(1))
}

// FindForUser looks up a short code of one user, unused codes first.
func (r *UserTokenRepo) FindForUser(ctx context.Context, userID id.ID, purpose auth.TokenPurpose, token string) (*auth.UserToken, error) {
	return r.FindOne(ctx, r.Select().
		Where(sq.Eq{"user_id": userID, "purpose": purpose, "token": token}).
		OrderBy("used_at IS NOT NULL", "created_at DESC").
		Limit(1))
}

// InvalidateOutstanding marks every unused token of purpose as used.
func (r *UserTokenRepo) InvalidateOutstanding(ctx context.Context, userID id.ID, purpose auth.TokenPurpose, now time.Time) error {
	_, err := r.Exec(ctx, r.Builder().Update("user_tokens").
		Set("used_at", now).
		Set("updated_at", now).
		Set("version", sq.Expr("version + 1")).
		Where(sq.Eq{"user_id": userID, "purpose": purpose, "used_at": nil}))
	return err
}
