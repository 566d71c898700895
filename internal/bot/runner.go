// internal/bot/runner.go
package bot

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/memetrader/internal/metrics"
	"github.com/rovshanmuradov/memetrader/internal/trader"
)

// CycleFunc is one controller cycle.
type CycleFunc func(ctx context.Context) (*trader.CycleReport, error)

// Cycle is a periodically triggered controller cycle.
type Cycle struct {
	Name     string
	Interval time.Duration
	Run      CycleFunc
}

// Runner drives every cycle on its own ticker. Ticks of one cycle never
// overlap inside a process; across processes the cycle lock decides.
type Runner struct {
	cycles  []Cycle
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewRunner creates a runner. m may be nil.
func NewRunner(logger *zap.Logger, m *metrics.Metrics, cycles ...Cycle) *Runner {
	return &Runner{
		cycles:  cycles,
		metrics: m,
		logger:  logger.Named("runner"),
	}
}

// Run blocks until ctx is cancelled. Each cycle runs once immediately and then
// on every tick. Cycle errors are logged and never stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	if len(r.cycles) == 0 {
		return errors.New("no cycles configured")
	}

	for _, c := range r.cycles {
		if c.Interval <= 0 {
			return errors.New("cycle " + c.Name + " has no interval")
		}
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, c := range r.cycles {
		c := c
		g.Go(func() error {
			r.loop(gCtx, c)
			return nil
		})
	}

	r.logger.Info("Runner started", zap.Int("cycles", len(r.cycles)))
	err := g.Wait()
	r.logger.Info("Runner stopped")
	return err
}

func (r *Runner) loop(ctx context.Context, c Cycle) {
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	r.RunOnce(ctx, c)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx, c)
		}
	}
}

// RunOnce executes a single tick of c and records its outcome.
func (r *Runner) RunOnce(ctx context.Context, c Cycle) (*trader.CycleReport, error) {
	start := time.Now()
	report, err := c.Run(ctx)
	elapsed := time.Since(start)

	outcome := metrics.OutcomeDone
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
		if ctx.Err() == nil {
			r.logger.Error("Cycle failed", zap.String("cycle", c.Name), zap.Duration("elapsed", elapsed), zap.Error(err))
		}
	case report != nil && report.Skipped:
		outcome = metrics.OutcomeSkipped
		r.logger.Debug("Cycle skipped", zap.String("cycle", c.Name), zap.String("reason", report.SkipReason))
	case report != nil && (report.Submitted > 0 || report.Completed > 0 || report.Failed > 0 || report.DeletedAssets > 0):
		r.logger.Info("Cycle finished",
			zap.String("cycle", c.Name),
			zap.Duration("elapsed", elapsed),
			zap.Int("evaluated", report.Evaluated),
			zap.Int("submitted", report.Submitted),
			zap.Int("completed", report.Completed),
			zap.Int("failed", report.Failed),
			zap.Int("errors", report.Errors),
			zap.Int64("deleted_assets", report.DeletedAssets))
	}

	if r.metrics != nil {
		r.metrics.ObserveCycle(c.Name, outcome, elapsed)
	}
	return report, err
}
