package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"distribution-service/internal/ports"

	"github.com/bsm/redislock"
	redis "github.com/redis/go-redis/v9"
)

const lockPrefix = "lock:"

// RunLocker is a cross-instance mutex on redislock. A lock that is not released
// expires after its TTL, so a crashed holder cannot block runs forever.
type RunLocker struct {
	locker *redislock.Client
}

var _ ports.RunLocker = (*RunLocker)(nil)

func NewRunLocker(rdb redis.UniversalClient) *RunLocker {
	return &RunLocker{locker: redislock.New(rdb)}
}

func (l *RunLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	lock, err := l.locker.Obtain(ctx, lockPrefix+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("obtain lock %q: %w", key, err)
	}

	release := func(ctx context.Context) error {
		err := lock.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			return nil
		}
		return err
	}
	return release, true, nil
}
