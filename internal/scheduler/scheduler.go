// Package scheduler runs a job on a cron schedule until its context is cancelled.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is the scheduled work. Errors are logged.
type Job func(ctx context.Context) error

// Scheduler triggers a Job on a cron spec in a fixed timezone.
// A tick that fires while the previous run is still busy is skipped.
type Scheduler struct {
	spec       string
	loc        *time.Location
	job        Job
	runOnStart bool
	log        *slog.Logger
}

// New validates spec and creates a Scheduler.
func New(spec string, loc *time.Location, job Job, log *slog.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{spec: spec, loc: loc, job: job, log: log}, nil
}

// SetRunOnStart makes Run execute the job once before waiting for the first tick.
func (s *Scheduler) SetRunOnStart(v bool) {
	s.runOnStart = v
}

// Run starts the schedule, blocking until ctx is cancelled and the running job returned.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := cronLogger{log: s.log}
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	id, err := c.AddFunc(s.spec, func() { s.execute(ctx) })
	if err != nil {
		return fmt.Errorf("add schedule: %w", err)
	}

	if s.runOnStart {
		s.execute(ctx)
	}

	c.Start()
	s.log.Info("scheduler started", "schedule", s.spec, "timezone", s.loc.String(), "next", c.Entry(id).Next)

	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) execute(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.job(ctx); err != nil {
		s.log.Error("scheduled run failed", "error", err)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
