// Package events delivers outbox messages to subscribers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lms/internal/infrastructure/storage/postgres"
)

// ChannelPrefix is prepended to the aggregate type to form the channel name.
const ChannelPrefix = "lms.events."

type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Envelope is the wire form of a published event.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// RedisPublisher publishes outbox messages on Redis pub/sub.
type RedisPublisher struct {
	client publisher
}

var _ postgres.OutboxHandler = (*RedisPublisher)(nil)

// NewRedisPublisher wraps a Redis client.
func NewRedisPublisher(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Channel returns the channel events of an aggregate type go to.
func Channel(aggregateType string) string {
	return ChannelPrefix + aggregateType
}

// Handle publishes one message. Having no subscribers is not an error.
func (p *RedisPublisher) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	env := Envelope{
		ID:            msg.ID.String(),
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID.String(),
		EventType:     msg.EventType,
		OccurredAt:    msg.CreatedAt.UTC(),
	}
	if len(msg.Payload) > 0 {
		env.Payload = json.RawMessage(msg.Payload)
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", msg.ID, err)
	}
	if err := p.client.Publish(ctx, Channel(msg.AggregateType), body).Err(); err != nil {
		return fmt.Errorf("publish event %s: %w", msg.ID, err)
	}
	return nil
}
