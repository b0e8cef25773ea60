package routing

import (
	"context"
	"sort"
	"sync"

	"distribution-service/internal/domain"
	"distribution-service/internal/ports"
)

// MockProvider is an in-process RouteProvider. Without OptimizeFunc it orders destinations
// by descending latitude and reports haversine legs, which is distinguishable from the
// nearest-neighbor order in tests.
type MockProvider struct {
	Limit        int
	OptimizeFunc func(ctx context.Context, req ports.RouteRequest) (ports.RouteResponse, error)

	mu    sync.Mutex
	calls []ports.RouteRequest
}

var _ ports.RouteProvider = (*MockProvider)(nil)

func NewMockProvider(limit int) *MockProvider {
	return &MockProvider{Limit: limit}
}

func (p *MockProvider) WaypointLimit() int { return p.Limit }

func (p *MockProvider) OptimizeRoute(ctx context.Context, req ports.RouteRequest) (ports.RouteResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()

	if p.OptimizeFunc != nil {
		return p.OptimizeFunc(ctx, req)
	}
	return NorthToSouth(req), nil
}

// Calls returns the requests received so far.
func (p *MockProvider) Calls() []ports.RouteRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ports.RouteRequest(nil), p.calls...)
}

// NorthToSouth orders destinations by descending latitude.
func NorthToSouth(req ports.RouteRequest) ports.RouteResponse {
	idx := make([]int, len(req.Destinations))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return req.Destinations[idx[a]].Lat > req.Destinations[idx[b]].Lat
	})

	out := ports.RouteResponse{OrderedIndices: idx}
	cur := req.Origin
	for _, i := range idx {
		km := domain.DistanceKm(cur, req.Destinations[i])
		out.LegDistancesKm = append(out.LegDistancesKm, km)
		out.LegDurationsMinutes = append(out.LegDurationsMinutes, km/30*60)
		cur = req.Destinations[i]
	}
	return out
}
