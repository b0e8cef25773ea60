package services

import (
	"math"

	"distribution-service/internal/domain"
)

// NearestNeighborRoute orders destinations with a greedy nearest-neighbor walk from origin.
//
// At each step the unvisited destination with the smallest great-circle distance to the
// current position is chosen. It does not attempt global route optimization (e.g., VRP solvers).
// The design prioritizes determinism and simplicity over optimality.
//
// Every destination must carry a Location. Leg durations assume speedKmh.
func NearestNeighborRoute(
	origin domain.Coordinates,
	destinations []domain.Destination,
	speedKmh float64,
) []domain.RoutedDestination {
	if len(destinations) == 0 {
		return []domain.RoutedDestination{}
	}

	remaining := make([]bool, len(destinations))
	for i := range remaining {
		remaining[i] = true
	}

	current := origin
	out := make([]domain.RoutedDestination, 0, len(destinations))

	for len(out) < len(destinations) {
		best := -1
		bestKm := math.Inf(1)

		for i, d := range destinations {
			if !remaining[i] {
				continue
			}

			km := domain.DistanceKm(current, *d.Location)
			// Tie-breaker ensures deterministic ordering when distances are equal.
			if best == -1 || km < bestKm || (km == bestKm && d.ID < destinations[best].ID) {
				best = i
				bestKm = km
			}
		}

		remaining[best] = false
		next := destinations[best]

		out = append(out, domain.RoutedDestination{
			Destination:        next,
			LegDistanceKm:      bestKm,
			LegDurationMinutes: travelMinutes(bestKm, speedKmh),
		})
		current = *next.Location
	}

	return out
}

func travelMinutes(km, speedKmh float64) float64 {
	if speedKmh <= 0 {
		return 0
	}
	return km / speedKmh * 60
}

// pathDistanceKm sums great-circle legs from origin through destinations in the given order.
func pathDistanceKm(origin domain.Coordinates, destinations []domain.Destination) float64 {
	total := 0.0
	cur := origin
	for _, d := range destinations {
		total += domain.DistanceKm(cur, *d.Location)
		cur = *d.Location
	}
	return total
}
