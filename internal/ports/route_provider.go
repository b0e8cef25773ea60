package ports

import (
	"context"

	"distribution-service/internal/domain"
)

// RouteRequest asks the provider to order destinations from an origin.
type RouteRequest struct {
	Origin       domain.Coordinates
	Destinations []domain.Coordinates
}

// RouteResponse carries the provider's visiting order as indices into RouteRequest.Destinations
// and the leg that reaches each visited destination, in visiting order.
type RouteResponse struct {
	OrderedIndices      []int
	LegDistancesKm      []float64
	LegDurationsMinutes []float64
}

// Contract for an external route-optimization provider.
type RouteProvider interface {
	// Return an optimized visiting order for the request's destinations.
	OptimizeRoute(ctx context.Context, req RouteRequest) (RouteResponse, error)
	// Maximum number of destinations accepted in one request.
	WaypointLimit() int
}
