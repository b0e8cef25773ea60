package domain

// RouteMethod records which path produced a route.
type RouteMethod string

const (
	// MethodProvider: the external routing provider ordered every chunk.
	MethodProvider RouteMethod = "provider"
	// MethodNearestNeighbor: no provider configured or routing disabled.
	MethodNearestNeighbor RouteMethod = "nearest_neighbor"
	// MethodFallback: the provider failed and the local heuristic was used instead.
	MethodFallback RouteMethod = "fallback"
)

// Destination is a stop handed to the route optimizer.
// A nil Location is replaced by the origin and LocationFallback is set.
type Destination struct {
	ID               int64        `json:"id"`
	Location         *Coordinates `json:"location,omitempty"`
	LocationFallback bool         `json:"location_fallback,omitempty"`
}

// RoutedDestination is a destination in visiting order with the leg that reaches it.
type RoutedDestination struct {
	Destination        Destination `json:"destination"`
	LegDistanceKm      float64     `json:"leg_distance_km"`
	LegDurationMinutes float64     `json:"leg_duration_minutes"`
}

// RouteResult is immutable planning output of the route optimizer.
type RouteResult struct {
	OrderedDestinations  []RoutedDestination `json:"ordered_destinations"`
	TotalDistanceKm      float64             `json:"total_distance_km"`
	TotalDurationMinutes float64             `json:"total_duration_minutes"`
	EstimatedFuelLiters  float64             `json:"estimated_fuel_liters"`
	Method               RouteMethod         `json:"method"`
	OriginalDistanceKm   float64             `json:"original_distance_km,omitempty"`
	SavingsPercent       float64             `json:"savings_percent,omitempty"`
}
