package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// StartDrawScheduler moves lucky draws along their calendar every interval.
func (s *LuckyDrawService) StartDrawScheduler(interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			s.RunDrawCalendar(context.Background(), time.Now().UTC())
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	s.log.Info("draw scheduler started", zap.Duration("interval", interval))
	return sched, nil
}

// RunDrawCalendar is one scheduler tick.
func (s *LuckyDrawService) RunDrawCalendar(ctx context.Context, now time.Time) {
	if n, err := s.ActivateDue(ctx, now); err != nil {
		s.log.Error("[Scheduler] activate draws", zap.Error(err))
	} else if n > 0 {
		s.log.Info("✅ draws activated", zap.Int64("count", n))
	}

	if n, err := s.CompleteDue(ctx, now); err != nil {
		s.log.Error("[Scheduler] complete draws", zap.Error(err))
	} else if n > 0 {
		s.log.Info("✅ draws completed", zap.Int64("count", n))
	}
}
