package ports

import (
	"context"
	"time"
)

// RunLocker guards a batch run across process instances.
type RunLocker interface {
	// TryLock returns ok=false without error when another holder owns key.
	// The returned release func must be called once the run ends.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}
