package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps a cron runner behind the two scheduling modes the daemon
// supports: a fixed interval or a fixed daily time-of-day.
type Scheduler struct {
	cron *cron.Cron
}

func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
	}
}

// AddJob registers a job under a raw six-field cron spec.
func (s *Scheduler) AddJob(spec string, job func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx := context.Background()
		_ = job(ctx)
	})
	return err
}

// Every runs the job on a fixed interval.
func (s *Scheduler) Every(interval time.Duration, job func(context.Context) error) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}
	return s.AddJob(fmt.Sprintf("@every %s", interval), job)
}

// DailyAt runs the job once per day at the given HH:MM local time.
func (s *Scheduler) DailyAt(timeOfDay string, job func(context.Context) error) error {
	t, err := time.Parse("15:04", timeOfDay)
	if err != nil {
		return fmt.Errorf("invalid time of day %q: %w", timeOfDay, err)
	}
	spec := fmt.Sprintf("0 %d %d * * *", t.Minute(), t.Hour())
	return s.AddJob(spec, job)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
