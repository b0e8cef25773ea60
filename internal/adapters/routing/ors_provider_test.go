package routing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"distribution-service/internal/domain"
	"distribution-service/internal/platform/logging"
	"distribution-service/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, srv *httptest.Server) *ORSProvider {
	t.Helper()
	p, err := NewORSProvider(ORSOptions{
		APIKey:        "test-key",
		BaseURL:       srv.URL,
		WaypointLimit: 3,
		MaxAttempts:   2,
		HTTPClient:    srv.Client(),
	}, logging.Discard())
	require.NoError(t, err)
	p.retryBackoff = time.Millisecond
	return p
}

func sampleRequest() ports.RouteRequest {
	return ports.RouteRequest{
		Origin: domain.Coordinates{Lat: 50.85, Lon: 4.35},
		Destinations: []domain.Coordinates{
			{Lat: 50.86, Lon: 4.36},
			{Lat: 50.84, Lon: 4.34},
		},
	}
}

func TestNewORSProviderRequiresKey(t *testing.T) {
	_, err := NewORSProvider(ORSOptions{}, nil)
	assert.Error(t, err)
}

func TestOptimizeRouteParsesSteps(t *testing.T) {
	var got optimizationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/optimization", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("Authorization"))
		b, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(b, &got))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"code": 0,
			"routes": [{"steps": [
				{"type": "start", "distance": 0, "duration": 0},
				{"type": "job", "job": 2, "distance": 1500, "duration": 180},
				{"type": "job", "job": 1, "distance": 4500, "duration": 540},
				{"type": "end", "distance": 4500, "duration": 540}
			]}]
		}`)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv)
	resp, err := p.OptimizeRoute(context.Background(), sampleRequest())
	require.NoError(t, err)

	require.Len(t, got.Jobs, 2)
	assert.Equal(t, 1, got.Jobs[0].ID)
	assert.Equal(t, []float64{4.36, 50.86}, got.Jobs[0].Location)
	assert.Equal(t, []float64{4.35, 50.85}, got.Vehicles[0].Start)
	assert.True(t, got.Options["g"])

	assert.Equal(t, []int{1, 0}, resp.OrderedIndices)
	assert.InDeltaSlice(t, []float64{1.5, 3.0}, resp.LegDistancesKm, 1e-9)
	assert.InDeltaSlice(t, []float64{3, 6}, resp.LegDurationsMinutes, 1e-9)
}

func TestOptimizeRouteRetriesTransientStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"code":0,"routes":[{"steps":[
			{"type":"job","job":1,"distance":1000,"duration":60},
			{"type":"job","job":2,"distance":2000,"duration":120}]}]}`)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv)
	resp, err := p.OptimizeRoute(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, []int{0, 1}, resp.OrderedIndices)
}

func TestOptimizeRouteClientErrorIsProviderError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "bad key", http.StatusForbidden)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv)
	_, err := p.OptimizeRoute(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrExternalProvider))

	var pe *domain.ExternalProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusForbidden, pe.StatusCode)
	assert.Equal(t, int32(1), hits.Load(), "4xx responses are not retried")
}

func TestOptimizeRouteRejectsIncompleteOrdering(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"code":0,"routes":[{"steps":[
			{"type":"job","job":1,"distance":1000,"duration":60}]}]}`)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv)
	_, err := p.OptimizeRoute(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, domain.ErrExternalProvider)
}

func TestOptimizeRouteRejectsOverLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not be called")
	}))
	defer srv.Close()

	p := newTestProvider(t, srv)
	req := sampleRequest()
	req.Destinations = append(req.Destinations, req.Destinations...)
	_, err := p.OptimizeRoute(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrExternalProvider)
}

func TestOptimizeRouteOpensBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv)
	for i := 0; i < 5; i++ {
		_, err := p.OptimizeRoute(context.Background(), sampleRequest())
		require.Error(t, err)
	}
	require.Equal(t, int32(5), hits.Load())

	_, err := p.OptimizeRoute(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, domain.ErrExternalProvider)
	assert.Equal(t, int32(5), hits.Load(), "open breaker short-circuits the call")
}

func TestMockProviderOrdersNorthToSouth(t *testing.T) {
	p := NewMockProvider(25)
	resp, err := p.OptimizeRoute(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, resp.OrderedIndices)
	assert.Len(t, p.Calls(), 1)
}
