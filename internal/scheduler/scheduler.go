// Package scheduler runs channel maintenance on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/compasscal/compass/internal/logging"
	"github.com/compasscal/compass/internal/reconcile"

	"github.com/robfig/cron/v3"
)

// Maintainer is the work done on every tick.
type Maintainer interface {
	Maintain(ctx context.Context) (reconcile.MaintenanceReport, error)
}

type Scheduler struct {
	cron       *cron.Cron
	spec       string
	maintainer Maintainer
	logger     *slog.Logger

	mu  sync.Mutex
	ctx context.Context
}

// New validates spec (standard five-field cron or an @descriptor) and
// prepares a scheduler. Overlapping runs are skipped.
func New(spec string, maintainer Maintainer, logger *slog.Logger) (*Scheduler, error) {
	logger = logging.OrDiscard(logger)
	cl := cronLogger{logger: logger}

	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s := &Scheduler{
		cron:       c,
		spec:       spec,
		maintainer: maintainer,
		logger:     logger,
		ctx:        context.Background(),
	}
	if _, err := c.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("parse maintenance schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins ticking. ctx is handed to every run.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.logger.Info("maintenance scheduled", "spec", s.spec)
	s.cron.Start()
}

// Stop halts the schedule and waits for a running pass, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow performs one maintenance pass synchronously.
func (s *Scheduler) RunNow(ctx context.Context) (reconcile.MaintenanceReport, error) {
	report, err := s.maintainer.Maintain(ctx)
	if err != nil {
		s.logger.Error("maintenance failed", "err", err)
		return report, err
	}
	s.logger.Info("maintenance done", "pruned", len(report.Pruned), "refreshed", report.Refreshed, "failed", report.Failed)
	return report, nil
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	_, _ = s.RunNow(ctx)
}

// cronLogger routes cron's own logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"err", err}, keysAndValues...)...)
}
