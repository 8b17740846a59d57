package certificates

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
)

func TestCertificate_Revoke(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewCertificate(id.New(), id.New(), id.New(), now)
	c.CertificateNo = "CRT-000001"
	require.NoError(t, c.Validate(context.Background()))
	assert.True(t, c.IsValid())
	assert.Len(t, c.VerificationCode, 32)

	err := c.Revoke(nil, "", now)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	admin := id.New()
	require.NoError(t, c.Revoke(&admin, "plagiarism", now))
	assert.False(t, c.IsValid())
	assert.Equal(t, &admin, c.RevokedBy)

	v := c.Verification()
	assert.False(t, v.Valid)
	assert.Equal(t, StatusRevoked, v.Status)
	require.NotNil(t, v.RevokedAt)

	err = c.Revoke(&admin, "again", now)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))
}

func TestCertificate_ValidateNeedsNumber(t *testing.T) {
	c := NewCertificate(id.New(), id.New(), id.New(), time.Now())
	err := c.Validate(context.Background())
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
