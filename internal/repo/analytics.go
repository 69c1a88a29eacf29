package repo

import (
	"context"
	"time"
)

// CountCreatedBetween counts rows of model created in [start, end).
func (r *GormRepo) CountCreatedBetween(ctx context.Context, model any, start, end time.Time) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(model).
		Where("created_at >= ? AND created_at < ?", start, end).
		Count(&count).Error
	return count, err
}
