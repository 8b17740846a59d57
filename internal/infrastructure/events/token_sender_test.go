package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/domain/auth"
	"lms/internal/infrastructure/storage/postgres"
)

type recordingOutbox struct {
	events []postgres.DomainEvent
}

func (r *recordingOutbox) Publish(ctx context.Context, event postgres.DomainEvent) error {
	r.events = append(r.events, event)
	return nil
}

func TestOutboxTokenSender_Send(t *testing.T) {
	out := &recordingOutbox{}
	sender := &OutboxTokenSender{outbox: out}

	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	user := auth.NewUser("ada@example.com", "hash")
	user.FullName = "Ada"
	tok, err := auth.NewUserToken(user.ID, auth.PurposeLoginOTP, "", now)
	require.NoError(t, err)

	require.NoError(t, sender.Send(context.Background(), user, tok))
	require.Len(t, out.events, 1)

	ev := out.events[0]
	assert.Equal(t, EventTokenIssued, ev.EventType)
	assert.Equal(t, user.ID, ev.AggregateID)
	msg, ok := ev.Payload.(TokenMessage)
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", msg.Email, "falls back to the account email")
	assert.Equal(t, tok.Token, msg.Token)
	assert.Len(t, msg.Token, 6)
	assert.Equal(t, auth.PurposeLoginOTP, msg.Purpose)
}
