package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"distribution-service/internal/platform/metrics"

	"github.com/sirupsen/logrus"
)

// ErrBusy is returned by Trigger when a run is already in progress.
var ErrBusy = errors.New("job already running")

// Runner executes fn every interval on a single goroutine.
// A run never overlaps another: a tick (or Trigger) that finds a run in progress is skipped,
// not queued. Stop prevents further ticks and waits for the in-flight run to finish.
type Runner struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error
	log      logrus.FieldLogger

	// RunOnStart runs fn immediately instead of waiting for the first tick.
	RunOnStart bool

	running  sync.Mutex
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
}

func NewRunner(name string, interval time.Duration, fn func(ctx context.Context) error, log logrus.FieldLogger) *Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{
		name:     name,
		interval: interval,
		fn:       fn,
		log:      log.WithField("job", name),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the loop. It returns immediately; calls after the first are ignored.
func (r *Runner) Start(ctx context.Context) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	go r.loop(ctx)
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if r.RunOnStart {
		r.tick(ctx)
	}

	for {
		select {
		case <-r.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case <-r.stop:
				return
			default:
			}
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	if err := r.Trigger(ctx); err != nil && !errors.Is(err, ErrBusy) {
		r.log.WithError(err).Error("job run failed")
	}
}

// Trigger runs fn now unless a run is in progress, in which case it returns ErrBusy.
func (r *Runner) Trigger(ctx context.Context) error {
	if !r.running.TryLock() {
		metrics.JobRuns.WithLabelValues(r.name, "skipped").Inc()
		r.log.Warn("previous run still in progress, skipping")
		return ErrBusy
	}
	defer r.running.Unlock()

	start := time.Now()
	err := r.fn(ctx)
	if err != nil {
		metrics.JobRuns.WithLabelValues(r.name, "error").Inc()
		return err
	}

	metrics.JobRuns.WithLabelValues(r.name, "ok").Inc()
	r.log.WithField("dur_ms", time.Since(start).Milliseconds()).Debug("job run finished")
	return nil
}

// Stop prevents further ticks and blocks until the in-flight run, if any, returns.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	if r.started.Load() {
		<-r.done
	}
}
