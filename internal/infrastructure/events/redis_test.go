package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/id"
	"lms/internal/infrastructure/storage/postgres"
)

type fakeRedis struct {
	channel string
	body    []byte
	err     error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	f.channel = channel
	f.body, _ = message.([]byte)
	return redis.NewIntResult(0, f.err)
}

func TestRedisPublisher_Handle(t *testing.T) {
	fake := &fakeRedis{}
	p := &RedisPublisher{client: fake}

	msg := &postgres.OutboxMessage{
		ID:            id.New(),
		AggregateType: "enrollment",
		AggregateID:   id.New(),
		EventType:     "enrollment.created",
		Payload:       []byte(`{"status":"active"}`),
		CreatedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.Handle(context.Background(), msg))
	assert.Equal(t, "lms.events.enrollment", fake.channel)

	var env Envelope
	require.NoError(t, json.Unmarshal(fake.body, &env))
	assert.Equal(t, msg.ID.String(), env.ID)
	assert.Equal(t, "enrollment.created", env.EventType)
	assert.JSONEq(t, `{"status":"active"}`, string(env.Payload))
}

func TestRedisPublisher_HandleError(t *testing.T) {
	p := &RedisPublisher{client: &fakeRedis{err: errors.New("connection refused")}}
	err := p.Handle(context.Background(), &postgres.OutboxMessage{ID: id.New(), AggregateType: "order"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
