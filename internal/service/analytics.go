package service

import (
	"context"
	"time"

	"github.com/Skotchmaster/elearning/internal/models"
	"github.com/Skotchmaster/elearning/internal/repo"
)

const (
	analyticsWindows    = 12
	analyticsWindowDays = 28
)

type MonthCount struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

type Last12Months struct {
	Last12Months []MonthCount `json:"last12Months"`
}

type AnalyticsService struct {
	Repo *repo.GormRepo
	Now  func() time.Time
}

func (s *AnalyticsService) Users(ctx context.Context) (Last12Months, error) {
	return s.last12Months(ctx, &models.User{})
}

func (s *AnalyticsService) Courses(ctx context.Context) (Last12Months, error) {
	return s.last12Months(ctx, &models.Course{})
}

func (s *AnalyticsService) Orders(ctx context.Context) (Last12Months, error) {
	return s.last12Months(ctx, &models.Order{})
}

// last12Months counts rows in twelve consecutive 28 day windows, the last
// one ending at tomorrow's midnight UTC. Each window is labeled by its end.
func (s *AnalyticsService) last12Months(ctx context.Context, model any) (Last12Months, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	t := now().UTC()
	end := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)

	out := Last12Months{Last12Months: make([]MonthCount, 0, analyticsWindows)}
	for i := analyticsWindows - 1; i >= 0; i-- {
		windowEnd := end.AddDate(0, 0, -i*analyticsWindowDays)
		windowStart := windowEnd.AddDate(0, 0, -analyticsWindowDays)
		n, err := s.Repo.CountCreatedBetween(ctx, model, windowStart, windowEnd)
		if err != nil {
			return Last12Months{}, internal("count rows", err)
		}
		out.Last12Months = append(out.Last12Months, MonthCount{
			Month: windowEnd.Format("Jan 2, 2006"),
			Count: n,
		})
	}
	return out, nil
}
