// Package schedule triggers scans on a fixed interval.
package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"secscan/internal/model"
	"secscan/internal/progress"
	"secscan/internal/scan"
)

const DefaultInterval = time.Hour

// Scanner is the part of the orchestrator the runner needs.
type Scanner interface {
	Run(ctx context.Context) (model.ScanResult, error)
}

type Runner struct {
	Scanner  Scanner
	Interval time.Duration
	// Immediate runs the first scan at start instead of after one interval.
	Immediate bool
	Sink      progress.Sink
	Logger    *zap.Logger
	// OnResult receives every finished scan, including ones that failed.
	// Skipped ticks are not reported.
	OnResult func(model.ScanResult, error)

	wg sync.WaitGroup
}

// Start blocks until ctx is done, starting a scan on every tick. A tick that
// lands while a scan is still running is skipped, never queued. Start waits
// for in-flight scans before returning.
func (r *Runner) Start(ctx context.Context) error {
	if r.Scanner == nil {
		return errors.New("schedule: scanner is required")
	}
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer r.wg.Wait()

	if r.Immediate {
		r.launch(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.launch(ctx)
		}
	}
}

func (r *Runner) launch(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Tick(ctx)
	}()
}

// Tick runs one scan synchronously. It reports false when the scan was
// skipped because another one is in progress.
func (r *Runner) Tick(ctx context.Context) bool {
	res, err := r.Scanner.Run(ctx)
	if errors.Is(err, scan.ErrScanInProgress) {
		r.logger().Info("scheduled scan skipped", zap.String("reason", err.Error()))
		r.sink().Emit(progress.Event{Type: progress.EventScanSkipped, Message: err.Error()})
		return false
	}
	if err != nil {
		r.logger().Warn("scheduled scan", zap.Error(err))
	}
	if r.OnResult != nil {
		r.OnResult(res, err)
	}
	return true
}

func (r *Runner) sink() progress.Sink {
	if r.Sink == nil {
		return progress.NoopSink{}
	}
	return r.Sink
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
