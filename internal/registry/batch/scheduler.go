package batch

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the sweep on a cron cadence. Runs never overlap: a tick
// that fires while the previous run is still going is skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler schedules sweeper runs with the given params at the given
// cron spec (standard five-field syntax).
func NewScheduler(spec string, sweeper *Sweeper, params Params, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
		cron.Recover(cron.DiscardLogger),
	))
	_, err := c.AddFunc(spec, func() {
		ctx := context.Background()
		if _, err := sweeper.Run(ctx, params); err != nil {
			logger.ErrorContext(ctx, "scheduled sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return &Scheduler{cron: c, logger: logger}, nil
}

// Start begins firing ticks in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels future ticks and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
