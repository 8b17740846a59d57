package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
)

// TokenPurpose says what a one-time user token unlocks.
type TokenPurpose string

const (
	PurposeVerifyEmail   TokenPurpose = "verify_email"
	PurposeResetPassword TokenPurpose = "reset_password"
	PurposeLoginOTP      TokenPurpose = "login_otp"
)

// TTL is the default lifetime of a token of this purpose.
func (p TokenPurpose) TTL() time.Duration {
	switch p {
	case PurposeLoginOTP:
		return 10 * time.Minute
	case PurposeResetPassword:
		return time.Hour
	default:
		return 48 * time.Hour
	}
}

// UserToken is a single-use secret mailed to a user.
type UserToken struct {
	entity.BaseEntity

	UserID    id.ID        `db:"user_id" json:"userId"`
	Purpose   TokenPurpose `db:"purpose" json:"purpose"`
	Token     string       `db:"token" json:"-"`
	ExpiresAt time.Time    `db:"expires_at" json:"expiresAt"`
	UsedAt    *time.Time   `db:"used_at" json:"usedAt,omitempty"`
	SentTo    string       `db:"sent_to" json:"sentTo,omitempty"`
}

// NewUserToken creates a token for user. Login codes are six digits,
// everything else is an opaque link token.
func NewUserToken(userID id.ID, purpose TokenPurpose, sentTo string, now time.Time) (*UserToken, error) {
	secret := id.NewToken()
	if purpose == PurposeLoginOTP {
		n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
		if err != nil {
			return nil, fmt.Errorf("generate login code: %w", err)
		}
		secret = fmt.Sprintf("%06d", n.Int64())
	}
	return &UserToken{
		BaseEntity: entity.NewBaseEntity(),
		UserID:     userID,
		Purpose:    purpose,
		Token:      secret,
		ExpiresAt:  now.Add(purpose.TTL()),
		SentTo:     sentTo,
	}, nil
}

func (t *UserToken) EntityName() string { return "user_token" }

// Validate implements entity.Validatable.
func (t *UserToken) Validate(ctx context.Context) error {
	switch t.Purpose {
	case PurposeVerifyEmail, PurposeResetPassword, PurposeLoginOTP:
	default:
		return apperror.NewFieldValidation("purpose", "unknown token purpose")
	}
	if t.Token == "" {
		return apperror.NewFieldValidation("token", "token is required")
	}
	return nil
}

// IsExpired reports whether the token lifetime is over at now.
func (t *UserToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// MarkUsed consumes the token. Used and expired tokens are refused.
func (t *UserToken) MarkUsed(now time.Time) error {
	if t.UsedAt != nil {
		return apperror.NewBusinessRule(apperror.CodeTokenExpired, "token was already used")
	}
	if t.IsExpired(now) {
		return apperror.NewBusinessRule(apperror.CodeTokenExpired, "token has expired").
			WithDetail("expiresAt", t.ExpiresAt)
	}
	t.UsedAt = &now
	return nil
}
