package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"distribution-service/internal/platform/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerSkipsWhileRunning(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var calls atomic.Int32

	r := NewRunner("test", time.Hour, func(ctx context.Context) error {
		calls.Add(1)
		close(entered)
		<-release
		return nil
	}, logging.Discard())

	errc := make(chan error, 1)
	go func() { errc <- r.Trigger(context.Background()) }()
	<-entered

	err := r.Trigger(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-errc)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTriggerReturnsRunError(t *testing.T) {
	boom := errors.New("boom")
	r := NewRunner("test", time.Hour, func(ctx context.Context) error { return boom }, logging.Discard())
	assert.ErrorIs(t, r.Trigger(context.Background()), boom)
	// The lock is released after a failed run.
	assert.ErrorIs(t, r.Trigger(context.Background()), boom)
}

func TestStopWaitsForInFlightRun(t *testing.T) {
	entered := make(chan struct{})
	var finished atomic.Bool
	var calls atomic.Int32

	r := NewRunner("test", 10*time.Millisecond, func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			close(entered)
			time.Sleep(50 * time.Millisecond)
			finished.Store(true)
		}
		return nil
	}, logging.Discard())
	r.RunOnStart = true
	r.Start(context.Background())

	<-entered
	r.Stop()
	assert.True(t, finished.Load())

	n := calls.Load()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, n, calls.Load(), "no tick fires after Stop")
}

func TestStopWithoutStart(t *testing.T) {
	r := NewRunner("idle", time.Hour, func(ctx context.Context) error { return nil }, nil)
	r.Stop()
	r.Stop()
}

func TestStartAndStopFromDifferentGoroutines(t *testing.T) {
	var calls atomic.Int32
	r := NewRunner("test", time.Hour, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, logging.Discard())
	r.RunOnStart = true

	started := make(chan struct{})
	go func() {
		r.Start(context.Background())
		r.Start(context.Background())
		close(started)
	}()
	<-started

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.LessOrEqual(t, calls.Load(), int32(1), "a second Start must not launch another loop")
}
