package blob

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/apperror"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore("http://files.local")
	s.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	ctx := context.Background()

	_, err := s.PresignedURL(ctx, "certificates/x.pdf", time.Minute)
	assert.True(t, apperror.IsNotFound(err))

	require.NoError(t, s.Put(ctx, "certificates/x.pdf", "application/pdf", []byte("%PDF-1.4")))
	obj, ok := s.Get("certificates/x.pdf")
	require.True(t, ok)
	assert.Equal(t, "application/pdf", obj.ContentType)

	link, err := s.PresignedURL(ctx, "certificates/x.pdf", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "http://files.local/certificates%2Fx.pdf?expires=1700000900", link)
}
