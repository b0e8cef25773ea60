package routing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"distribution-service/internal/domain"
	"distribution-service/internal/platform/logging"
	"distribution-service/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapCache struct {
	mu      sync.Mutex
	entries map[string]ports.RouteResponse
	getErr  error
	puts    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]ports.RouteResponse)}
}

func (c *mapCache) Get(ctx context.Context, key string) (ports.RouteResponse, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return ports.RouteResponse{}, false, c.getErr
	}
	r, ok := c.entries[key]
	return r, ok, nil
}

func (c *mapCache) Put(ctx context.Context, key string, resp ports.RouteResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.entries[key] = resp
	return nil
}

func cacheRequest() ports.RouteRequest {
	return ports.RouteRequest{
		Origin: domain.Coordinates{Lat: 50.85, Lon: 4.35},
		Destinations: []domain.Coordinates{
			{Lat: 50.84, Lon: 4.36},
			{Lat: 50.86, Lon: 4.34},
		},
	}
}

func TestCachedProviderServesRepeatRequests(t *testing.T) {
	inner := NewMockProvider(25)
	cache := newMapCache()
	p := NewCachedProvider(inner, cache, "ors/driving-car", logging.Discard())

	first, err := p.OptimizeRoute(context.Background(), cacheRequest())
	require.NoError(t, err)
	second, err := p.OptimizeRoute(context.Background(), cacheRequest())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, inner.Calls(), 1)
	assert.Equal(t, 1, cache.puts)
	assert.Equal(t, 25, p.WaypointLimit())
}

func TestCachedProviderFallsThroughOnCacheError(t *testing.T) {
	inner := NewMockProvider(25)
	cache := newMapCache()
	cache.getErr = errors.New("relation route_cache does not exist")
	p := NewCachedProvider(inner, cache, "ors", logging.Discard())

	_, err := p.OptimizeRoute(context.Background(), cacheRequest())
	require.NoError(t, err)
	_, err = p.OptimizeRoute(context.Background(), cacheRequest())
	require.NoError(t, err)

	assert.Len(t, inner.Calls(), 2)
}

func TestCachedProviderDoesNotStoreFailures(t *testing.T) {
	boom := errors.New("upstream down")
	inner := NewMockProvider(25)
	inner.OptimizeFunc = func(ctx context.Context, req ports.RouteRequest) (ports.RouteResponse, error) {
		return ports.RouteResponse{}, boom
	}
	cache := newMapCache()
	p := NewCachedProvider(inner, cache, "ors", logging.Discard())

	_, err := p.OptimizeRoute(context.Background(), cacheRequest())
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, cache.puts)
}

func TestRequestKeyDependsOnNamespaceAndOrder(t *testing.T) {
	req := cacheRequest()
	swapped := cacheRequest()
	swapped.Destinations[0], swapped.Destinations[1] = swapped.Destinations[1], swapped.Destinations[0]

	assert.Equal(t, RequestKey("ors", req), RequestKey("ors", cacheRequest()))
	assert.NotEqual(t, RequestKey("ors", req), RequestKey("ors", swapped))
	assert.NotEqual(t, RequestKey("ors", req), RequestKey("other", req))
}
