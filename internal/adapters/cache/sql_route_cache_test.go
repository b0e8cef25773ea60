package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"distribution-service/internal/platform/db"
	"distribution-service/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLRouteCacheRoundTripAndExpiry(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, url)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.ExecContext(ctx, `DROP TABLE IF EXISTS route_cache;`)
	require.NoError(t, err)

	c := NewSQLRouteCache(conn, time.Hour)
	require.NoError(t, c.EnsureSchema(ctx))

	_, ok, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	want := ports.RouteResponse{
		OrderedIndices:      []int{1, 0},
		LegDistancesKm:      []float64{1.5, 2.25},
		LegDurationsMinutes: []float64{3, 4.5},
	}
	require.NoError(t, c.Put(ctx, "k1", want))

	got, ok, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, ok, err = c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok, "entry older than TTL is a miss")

	_, _, err = c.Get(ctx, " ")
	assert.Error(t, err)
}

func TestSQLRouteCacheNilDB(t *testing.T) {
	c := NewSQLRouteCache(nil, time.Hour)
	_, _, err := c.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.Error(t, c.Put(context.Background(), "k", ports.RouteResponse{}))
}
