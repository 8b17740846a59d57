package events

import (
	"context"
	"time"

	"lms/internal/core/id"
	"lms/internal/domain/auth"
	"lms/internal/infrastructure/storage/postgres"
)

// EventTokenIssued is emitted for every one-time code or link token.
const EventTokenIssued = "auth.token_issued"

// TokenMessage is the payload a mail worker turns into an email.
type TokenMessage struct {
	UserID    id.ID             `json:"userId"`
	Email     string            `json:"email"`
	FullName  string            `json:"fullName,omitempty"`
	Purpose   auth.TokenPurpose `json:"purpose"`
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

type outboxWriter interface {
	Publish(ctx context.Context, event postgres.DomainEvent) error
}

// OutboxTokenSender hands tokens to the outbox, so delivery happens only
// after the transaction that issued them commits.
type OutboxTokenSender struct {
	outbox outboxWriter
}

var _ auth.TokenSender = (*OutboxTokenSender)(nil)

// NewOutboxTokenSender creates a sender on top of the outbox publisher.
func NewOutboxTokenSender(outbox *postgres.OutboxPublisher) *OutboxTokenSender {
	return &OutboxTokenSender{outbox: outbox}
}

// Send implements auth.TokenSender.
func (s *OutboxTokenSender) Send(ctx context.Context, user *auth.User, token *auth.UserToken) error {
	to := token.SentTo
	if to == "" {
		to = user.Email
	}
	return s.outbox.Publish(ctx, postgres.DomainEvent{
		AggregateType: "user",
		AggregateID:   user.ID,
		EventType:     EventTokenIssued,
		Payload: TokenMessage{
			UserID:    user.ID,
			Email:     to,
			FullName:  user.FullName,
			Purpose:   token.Purpose,
			Token:     token.Token,
			ExpiresAt: token.ExpiresAt,
		},
	})
}
