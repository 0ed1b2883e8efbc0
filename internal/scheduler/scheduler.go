// internal/scheduler/scheduler.go

// Package scheduler fires unattended export runs on a cron schedule.
package scheduler

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Handler is the callback invoked when a scheduled export fires.
type Handler func()

// Scheduler runs one export schedule through a cron ticker.
type Scheduler struct {
	schedule string
	handler  Handler
	cron     *cron.Cron
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a Scheduler for the given cron expression. The handler is
// called each time the schedule fires; overlapping runs are the handler's
// problem to reject.
func New(schedule string, handler Handler) *Scheduler {
	return &Scheduler{
		schedule: schedule,
		handler:  handler,
		cron:     cron.New(cron.WithParser(cronParser)),
	}
}

// Start registers the schedule and starts the cron ticker. An empty
// schedule is a no-op.
func (s *Scheduler) Start() error {
	if s.schedule == "" {
		return nil
	}
	_, err := s.cron.AddFunc(s.schedule, func() {
		slog.Info("cron firing scheduled export", "schedule", s.schedule)
		s.handler()
	})
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}
	slog.Info("scheduled export", "schedule", s.schedule)
	s.cron.Start()
	return nil
}

// Stop stops the cron ticker.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
