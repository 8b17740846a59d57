package notifications

import (
	"context"
	"time"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
	"lms/internal/core/security"
	"lms/internal/core/tx"
	"lms/internal/domain"
	"lms/pkg/logger"
)

// Input describes a notification to send.
type Input struct {
	UserID    id.ID
	BranchID  *id.ID
	Title     string
	Body      string
	Priority  Priority
	ActionURL string
	Target    *entity.Ref
	Data      entity.Meta
}

// Service sends and reads notifications.
type Service struct {
	*domain.Service[*Notification]
	repo Repository
}

// NewService creates the notification service.
func NewService(repo Repository, txm tx.Manager, clock func() time.Time) *Service {
	return &Service{
		Service: domain.NewService(domain.ServiceConfig[*Notification]{
			Repo:       repo,
			TxManager:  txm,
			EntityName: "notification",
			Clock:      clock,
		}),
		repo: repo,
	}
}

// Notify stores a notification for in.UserID.
func (s *Service) Notify(ctx context.Context, in Input) (*Notification, error) {
	n := NewNotification(in.UserID, in.Title, in.Body)
	if in.Priority != "" {
		n.Priority = in.Priority
	}
	n.ActionURL = in.ActionURL
	n.Data = in.Data
	n.BranchID = in.BranchID
	if in.Target != nil {
		if err := in.Target.Validate(); err != nil {
			return nil, err
		}
		n.SetTarget(in.Target)
	}
	if err := s.Create(ctx, n); err != nil {
		return nil, err
	}
	logger.Debug(ctx, "notification sent", "user_id", n.UserID, "notification_id", n.ID)
	return n, nil
}

// Broadcast sends the same notification to every user in userIDs within
// one transaction. Duplicate ids receive a single copy.
func (s *Service) Broadcast(ctx context.Context, userIDs []id.ID, in Input) (int64, error) {
	if _, err := domain.RequireScope(ctx); err != nil {
		return 0, err
	}
	if in.Target != nil {
		if err := in.Target.Validate(); err != nil {
			return 0, err
		}
	}

	now := s.Now()
	actor := domain.ActorID(ctx)
	seen := make(map[id.ID]struct{}, len(userIDs))
	batch := make([]*Notification, 0, len(userIDs))
	for _, u := range userIDs {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}

		n := NewNotification(u, in.Title, in.Body)
		if in.Priority != "" {
			n.Priority = in.Priority
		}
		n.ActionURL = in.ActionURL
		n.Data = in.Data
		n.BranchID = in.BranchID
		if in.Target != nil {
			n.SetTarget(in.Target)
		}
		n.Stamp(actor, now)
		if err := n.Validate(ctx); err != nil {
			return 0, err
		}
		batch = append(batch, n)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	var sent int64
	err := s.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		sent, err = s.repo.CreateMany(ctx, batch)
		return err
	})
	if err != nil {
		return 0, err
	}
	logger.Info(ctx, "notification broadcast", "recipients", sent, "title", in.Title)
	return sent, nil
}

// ListMine returns the caller's notifications, newest first. Notifications
// follow the user rather than the branch, so branch visibility is not applied.
func (s *Service) ListMine(ctx context.Context, unreadOnly bool, limit, offset int) (domain.ListResult[*Notification], error) {
	user, err := s.caller(ctx)
	if err != nil {
		return domain.ListResult[*Notification]{}, err
	}
	f := domain.DefaultListFilter()
	f.Visibility = security.Visibility{All: true}
	f.Where("user_id", user)
	if unreadOnly {
		f.Where("status", StatusUnread)
	}
	if limit > 0 {
		f.Limit = limit
	}
	f.Offset = offset
	return s.repo.List(ctx, f)
}

// MarkRead marks one of the caller's notifications as read.
// Other users' notifications are reported as missing.
func (s *Service) MarkRead(ctx context.Context, notificationID id.ID) (*Notification, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.repo.GetByID(ctx, notificationID)
	if err != nil {
		return nil, s.NormalizeGetErr(err, notificationID.String())
	}
	if n.UserID != user {
		return nil, apperror.NewNotFound("notification", notificationID.String())
	}
	now := s.Now()
	if !n.MarkRead(now) {
		return n, nil
	}
	n.Stamp(&user, now)
	if err := s.repo.Update(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// MarkAllRead marks every unread notification of the caller.
func (s *Service) MarkAllRead(ctx context.Context) (int64, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return 0, err
	}
	return s.repo.MarkAllRead(ctx, user, s.Now())
}

// UnreadCount returns the caller's unread badge count.
func (s *Service) UnreadCount(ctx context.Context) (int64, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return 0, err
	}
	return s.repo.CountUnread(ctx, user)
}

func (s *Service) caller(ctx context.Context) (id.ID, error) {
	if _, err := domain.RequireScope(ctx); err != nil {
		return id.ID{}, err
	}
	actor := domain.ActorID(ctx)
	if actor == nil {
		return id.ID{}, apperror.NewForbidden("notifications belong to a user")
	}
	return *actor, nil
}
