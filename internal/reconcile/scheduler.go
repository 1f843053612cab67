package reconcile

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/guarzo/listforge/internal/logging"
)

// DefaultSchedule polls active listings every quarter hour
const DefaultSchedule = "@every 15m"

// Runner is anything that performs one reconciliation pass
type Runner interface {
	Run(ctx context.Context) (Report, error)
}

// Scheduler runs reconciliation passes on a cron schedule. Overlapping passes
// are skipped rather than queued.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler for the given cron spec
func NewScheduler(runner Runner, schedule string, logger *zap.Logger) (*Scheduler, error) {
	logger = logging.OrNop(logger)
	if schedule == "" {
		schedule = DefaultSchedule
	}

	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: c, runner: runner, logger: logger, ctx: ctx, cancel: cancel}

	if _, err := c.AddFunc(schedule, s.runOnce); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) runOnce() {
	if _, err := s.runner.Run(s.ctx); err != nil {
		s.logger.Error("scheduled reconciliation failed", zap.Error(err))
	}
}

// Start begins running passes in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("reconcile scheduler started", zap.Int("entries", len(s.cron.Entries())))
}

// Stop cancels a running pass and waits for it to return or for ctx to end
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
