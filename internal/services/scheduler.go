package services

import (
	"context"
	"errors"
	"log"
	"time"
)

// Scheduler runs the maintenance jobs in-process on fixed intervals.
type Scheduler struct {
	runner           *JobRunner
	reminderInterval time.Duration
	digestInterval   time.Duration
}

// NewScheduler creates a Scheduler with hourly reminders and a daily digest.
func NewScheduler(runner *JobRunner) *Scheduler {
	return &Scheduler{
		runner:           runner,
		reminderInterval: time.Hour,
		digestInterval:   24 * time.Hour,
	}
}

// Start launches the job loops. They stop when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx, JobPendingReminders, s.reminderInterval, func(ctx context.Context) error {
		res, err := s.runner.PendingReminders(ctx)
		if err == nil {
			log.Printf("[Cron] Pending reminders sent: %d", res.RemindersSent)
		}
		return err
	})
	go s.loop(ctx, JobDailyNewProducts, s.digestInterval, func(ctx context.Context) error {
		res, err := s.runner.DailyNewProducts(ctx)
		if err == nil {
			log.Printf("[Cron] Daily digest: %d products to %d users", res.Products, res.SentTo)
		}
		return err
	})
}

func (s *Scheduler) loop(ctx context.Context, name string, every time.Duration, run func(context.Context) error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := run(ctx); err != nil {
				if errors.Is(err, ErrJobRunning) {
					log.Printf("[Cron] %s skipped: already running", name)
					continue
				}
				log.Printf("[Cron] %s failed: %v", name, err)
			}
		case <-ctx.Done():
			log.Printf("[Cron] Stopping %s job", name)
			return
		}
	}
}
