// Package housekeeping runs periodic cleanup of stale records.
package housekeeping

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Skotchmaster/elearning/internal/metrics"
)

type Purger interface {
	PurgeRead(ctx context.Context, now time.Time, retention time.Duration) (int64, error)
}

// NotificationCleaner deletes read notifications older than Retention. It
// runs one pass on Start and then once per Interval until Stop.
type NotificationCleaner struct {
	Purger    Purger
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration
	Now       func() time.Time

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

func NewNotificationCleaner(p Purger, logger *slog.Logger, interval, retention time.Duration) *NotificationCleaner {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &NotificationCleaner{
		Purger:    p,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

func (s *NotificationCleaner) Start() {
	go s.run()
	s.Logger.Info("housekeeping_started", "interval", s.Interval, "retention", s.Retention)
}

// Stop blocks until an in-flight pass has finished.
func (s *NotificationCleaner) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
	s.Logger.Info("housekeeping_stopped")
}

func (s *NotificationCleaner) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.RunOnce(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunOnce(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

func (s *NotificationCleaner) RunOnce(ctx context.Context) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	n, err := s.Purger.PurgeRead(ctx, now().UTC(), s.Retention)
	if err != nil {
		s.Logger.Error("notification_purge_failed", "error", err)
		return
	}
	metrics.RecordNotificationsPurged(n)
	s.Logger.Info("notification_purge_completed", "deleted", n)
}
