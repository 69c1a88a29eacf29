package repo

import (
	"context"
	"time"

	"github.com/Skotchmaster/elearning/internal/models"
)

func (r *GormRepo) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.Status == "" {
		n.Status = models.NotificationUnread
	}
	return r.DB.WithContext(ctx).Create(n).Error
}

func (r *GormRepo) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	var ns []models.Notification
	if err := r.DB.WithContext(ctx).Order("created_at desc").Find(&ns).Error; err != nil {
		return nil, err
	}
	return ns, nil
}

func (r *GormRepo) MarkNotificationRead(ctx context.Context, id string) error {
	var n models.Notification
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&n).Error; err != nil {
		return err
	}
	return r.DB.WithContext(ctx).Model(&n).Update("status", models.NotificationRead).Error
}

// DeleteReadNotificationsBefore removes read notifications created before
// cutoff. Running it twice with the same cutoff deletes nothing new.
func (r *GormRepo) DeleteReadNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.NotificationRead, cutoff).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
