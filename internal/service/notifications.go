package service

import (
	"context"
	"time"

	"github.com/Skotchmaster/elearning/internal/models"
	"github.com/Skotchmaster/elearning/internal/repo"
)

type NotificationService struct {
	Repo *repo.GormRepo
}

func (s *NotificationService) List(ctx context.Context) ([]models.Notification, error) {
	ns, err := s.Repo.ListNotifications(ctx)
	if err != nil {
		return nil, internal("list notifications", err)
	}
	return ns, nil
}

// MarkRead flags one notification as read and returns the refreshed list.
func (s *NotificationService) MarkRead(ctx context.Context, id string) ([]models.Notification, error) {
	if err := s.Repo.MarkNotificationRead(ctx, id); err != nil {
		return nil, storeErr("mark notification", err, ErrNotificationNotFound)
	}
	return s.List(ctx)
}

// PurgeRead deletes read notifications created before now-retention.
func (s *NotificationService) PurgeRead(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	n, err := s.Repo.DeleteReadNotificationsBefore(ctx, now.Add(-retention))
	if err != nil {
		return 0, internal("purge notifications", err)
	}
	return n, nil
}
