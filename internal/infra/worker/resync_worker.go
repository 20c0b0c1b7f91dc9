package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultResyncTimeout = 30 * time.Second

// Reloader performs the full reload a view does on mount.
type Reloader interface {
	Reload(ctx context.Context) error
}

// ResyncWorker reloads the live replicas on a cron schedule, bounding how
// stale they get when the change feed drops events.
type ResyncWorker struct {
	cron    *cron.Cron
	target  Reloader
	timeout time.Duration
	logger  *slog.Logger

	runs     atomic.Int64
	failures atomic.Int64
}

func NewResyncWorker(target Reloader, schedule string, logger *slog.Logger) (*ResyncWorker, error) {
	w := &ResyncWorker{
		// Overlapping runs would reload the same tables twice.
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		target:  target,
		timeout: defaultResyncTimeout,
		logger:  logger.With("component", "resync"),
	}
	if _, err := w.cron.AddFunc(schedule, w.RunOnce); err != nil {
		return nil, fmt.Errorf("scheduling resync %q: %w", schedule, err)
	}
	return w, nil
}

func (w *ResyncWorker) Start() {
	w.logger.Info("resync scheduler started")
	w.cron.Start()
}

// Stop halts the scheduler; the returned context is done once a running
// resync finishes.
func (w *ResyncWorker) Stop() context.Context {
	return w.cron.Stop()
}

func (w *ResyncWorker) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	start := time.Now()
	w.runs.Add(1)
	if err := w.target.Reload(ctx); err != nil {
		w.failures.Add(1)
		w.logger.Error("resync failed", "error", err)
		return
	}
	w.logger.Debug("resync done", "took", time.Since(start).Round(time.Millisecond))
}

func (w *ResyncWorker) Runs() int64     { return w.runs.Load() }
func (w *ResyncWorker) Failures() int64 { return w.failures.Load() }
