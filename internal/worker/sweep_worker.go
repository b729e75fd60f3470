package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SweepWorker runs a retention sweep on a fixed interval. A failed run is
// logged; the next tick retries.
type SweepWorker struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
	logger   *zap.Logger
}

func NewSweepWorker(name string, interval time.Duration, run func(ctx context.Context) error, logger *zap.Logger) *SweepWorker {
	return &SweepWorker{name: name, interval: interval, run: run, logger: logger.With(zap.String("sweep", name))}
}

// Run ticks every interval. Stops cleanly when ctx is cancelled.
func (sw *SweepWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	sw.logger.Info("sweep worker started", zap.Duration("interval", sw.interval))

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info("sweep worker stopping")
			return
		case <-ticker.C:
			if err := sw.run(ctx); err != nil && ctx.Err() == nil {
				sw.logger.Error("sweep failed", zap.Error(err))
			}
		}
	}
}
