package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/PabloGalante/spark-agent/internal/observability"
)

// Sweeper evicts idle sessions and reports how many it removed.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Scheduler runs the idle-session sweep on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	timeout time.Duration
	log     *slog.Logger
}

// New registers the sweep under schedule, e.g. "@every 10m" or "*/10 * * * *".
func New(sweeper Sweeper, schedule string) (*Scheduler, error) {
	log := observability.WithFields("component", "scheduler")
	cl := cronLogger{log: log}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		sweeper: sweeper,
		timeout: time.Minute,
		log:     log,
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.log.Info("scheduler started", "jobs", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop prevents new runs and waits for a running sweep, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs a single sweep.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.log.Error("sweep failed", "error", err, "evicted", n)
		return n
	}
	if n > 0 {
		s.log.Info("cleaned up stale sessions", "evicted", n, "elapsed_ms", time.Since(start).Milliseconds())
	}
	return n
}

// cronLogger sends cron's own logging to slog. Its Info chatter goes to debug.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
