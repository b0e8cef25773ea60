package redisstore

import (
	"context"
	"testing"
	"time"

	"distribution-service/internal/domain"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestOpen(t *testing.T) {
	mr, _ := newTestClient(t)

	rdb, err := Open(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	rdb.Close()

	_, err = Open(context.Background(), "::not a url")
	assert.Error(t, err)
}

func TestLocationIndexKeepsNewestPing(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestClient(t)
	idx := NewLocationIndex(rdb)

	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	newer := domain.LocationPoint{ID: "b", DistributorID: 7, Latitude: 50.86, Longitude: 4.36, RecordedAt: base.Add(time.Minute)}
	older := domain.LocationPoint{ID: "a", DistributorID: 7, Latitude: 50.85, Longitude: 4.35, RecordedAt: base}
	other := domain.LocationPoint{ID: "c", DistributorID: 3, Latitude: 50.80, Longitude: 4.30, RecordedAt: base}

	require.NoError(t, idx.PutLatest(ctx, newer))
	require.NoError(t, idx.PutLatest(ctx, older))
	require.NoError(t, idx.PutLatest(ctx, other))

	got, err := idx.ListLatest(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].DistributorID)
	assert.Equal(t, "b", got[1].ID)
	assert.True(t, got[1].RecordedAt.Equal(newer.RecordedAt))
}

func TestLocationIndexEmpty(t *testing.T) {
	_, rdb := newTestClient(t)
	got, err := NewLocationIndex(rdb).ListLatest(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRunLockerExcludesSecondHolder(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestClient(t)
	l := NewRunLocker(rdb)

	release, ok, err := l.TryLock(ctx, "schedule", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, "schedule", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx), "double release is harmless")

	release, ok, err = l.TryLock(ctx, "schedule", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)
	_, ok, err = l.TryLock(ctx, "schedule", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired lock can be taken over")
	_ = release
}
