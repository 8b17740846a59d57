package jobs

import (
	"context"
	"time"

	"lms/pkg/logger"
)

// Job names.
const (
	JobEnrollmentExpiry   = "enrollment-expiry"
	JobInviteExpiry       = "invite-expiry"
	JobOutboxRelay        = "outbox-relay"
	JobTokenCleanup       = "token-cleanup"
	JobIdempotencyCleanup = "idempotency-cleanup"
)

type enrollmentExpirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

type inviteExpirer interface {
	ExpireDue(ctx context.Context) (int64, error)
}

type outboxRelay interface {
	ProcessBatch(ctx context.Context) (int, error)
	MoveToDLQ(ctx context.Context) (int64, error)
}

type tokenCleaner interface {
	CleanupExpiredTokens(ctx context.Context) (int, error)
}

type idempotencyCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// EnrollmentExpiry moves enrollments whose access window closed to expired.
func EnrollmentExpiry(svc enrollmentExpirer, every time.Duration) Task {
	return Task{Name: JobEnrollmentExpiry, Every: every, Run: func(ctx context.Context) (int64, error) {
		n, err := svc.ExpireDue(ctx)
		return int64(n), err
	}}
}

// InviteExpiry expires course access invites and organization invites.
// Both kinds are attempted even if the first fails.
func InviteExpiry(every time.Duration, expirers ...inviteExpirer) Task {
	return Task{Name: JobInviteExpiry, Every: every, Run: func(ctx context.Context) (int64, error) {
		var (
			total   int64
			lastErr error
		)
		for _, e := range expirers {
			n, err := e.ExpireDue(ctx)
			if err != nil {
				logger.Warn(ctx, "invite expiry failed", "error", err)
				lastErr = err
				continue
			}
			total += n
		}
		return total, lastErr
	}}
}

// OutboxRelay drains the outbox until a batch comes back short, then moves
// messages that ran out of retries to the dead letter table.
func OutboxRelay(relay outboxRelay, batchSize int, every time.Duration) Task {
	return Task{Name: JobOutboxRelay, Every: every, Run: func(ctx context.Context) (int64, error) {
		var total int64
		for {
			n, err := relay.ProcessBatch(ctx)
			total += int64(n)
			if err != nil {
				return total, err
			}
			if n < batchSize || ctx.Err() != nil {
				break
			}
		}
		moved, err := relay.MoveToDLQ(ctx)
		if moved > 0 {
			logger.Warn(ctx, "outbox messages moved to dead letter table", "count", moved)
		}
		return total, err
	}}
}

// TokenCleanup deletes refresh tokens that expired or were revoked long ago.
func TokenCleanup(svc tokenCleaner, every time.Duration) Task {
	return Task{Name: JobTokenCleanup, Every: every, Run: func(ctx context.Context) (int64, error) {
		n, err := svc.CleanupExpiredTokens(ctx)
		return int64(n), err
	}}
}

// IdempotencyCleanup deletes idempotency keys past their TTL.
func IdempotencyCleanup(store idempotencyCleaner, every time.Duration) Task {
	return Task{Name: JobIdempotencyCleanup, Every: every, Run: store.CleanupExpired}
}
