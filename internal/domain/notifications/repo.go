package notifications

import (
	"context"
	"time"

	"lms/internal/core/id"
	"lms/internal/domain"
)

// Repository defines notification storage.
type Repository interface {
	domain.Repository[*Notification]

	// MarkAllRead stamps read_at on every unread row of the user.
	MarkAllRead(ctx context.Context, userID id.ID, now time.Time) (int64, error)

	CountUnread(ctx context.Context, userID id.ID) (int64, error)

	// CreateMany bulk inserts a fan-out batch inside the current transaction.
	CreateMany(ctx context.Context, items []*Notification) (int64, error)
}
