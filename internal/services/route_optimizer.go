package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"distribution-service/internal/domain"
	"distribution-service/internal/platform/metrics"
	"distribution-service/internal/ports"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const defaultWaypointLimit = 25

// RouteOptimizerConfig holds the routing settings loaded at startup.
type RouteOptimizerConfig struct {
	// Enabled gates the external provider. When false every route uses the local heuristic.
	Enabled            bool
	AverageSpeedKmh    float64
	FuelLitersPer100Km float64
	// CallSpacing is the minimum delay between two provider calls.
	CallSpacing time.Duration
	// ProviderTimeout bounds each provider call. A timeout is handled like any provider error.
	ProviderTimeout time.Duration
}

func DefaultRouteOptimizerConfig() RouteOptimizerConfig {
	return RouteOptimizerConfig{
		Enabled:            true,
		AverageSpeedKmh:    30,
		FuelLitersPer100Km: 8,
		CallSpacing:        200 * time.Millisecond,
		ProviderTimeout:    8 * time.Second,
	}
}

// OptimizeOptions tunes a single Optimize call.
type OptimizeOptions struct {
	// ComputeSavings reports the as-given route distance and the percentage saved.
	ComputeSavings bool
}

// RouteOptimizer orders a day's destinations, preferring the external provider and
// degrading to the nearest-neighbor heuristic. It never returns provider errors.
type RouteOptimizer struct {
	provider ports.RouteProvider
	cfg      RouteOptimizerConfig
	limiter  *rate.Limiter
	log      logrus.FieldLogger
}

// NewRouteOptimizer builds an optimizer. provider may be nil.
func NewRouteOptimizer(provider ports.RouteProvider, cfg RouteOptimizerConfig, log logrus.FieldLogger) *RouteOptimizer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.AverageSpeedKmh <= 0 {
		cfg.AverageSpeedKmh = 30
	}

	limit := rate.Inf
	if cfg.CallSpacing > 0 {
		limit = rate.Every(cfg.CallSpacing)
	}

	return &RouteOptimizer{
		provider: provider,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, 1),
		log:      log.WithField("component", "route_optimizer"),
	}
}

// Optimize orders destinations starting at origin.
//
// Destinations without coordinates are placed at the origin and flagged LocationFallback.
// When the provider fails on any chunk the whole route is recomputed locally and
// tagged MethodFallback.
func (o *RouteOptimizer) Optimize(
	ctx context.Context,
	origin domain.Coordinates,
	destinations []domain.Destination,
	opts OptimizeOptions,
) domain.RouteResult {
	dests := resolveLocations(origin, destinations)

	if len(dests) == 0 {
		return domain.RouteResult{
			OrderedDestinations: []domain.RoutedDestination{},
			Method:              o.idleMethod(),
		}
	}

	var (
		ordered []domain.RoutedDestination
		method  domain.RouteMethod
	)

	if o.providerEnabled() {
		routed, err := o.optimizeWithProvider(ctx, origin, dests)
		if err == nil {
			ordered, method = routed, domain.MethodProvider
		} else {
			o.log.WithError(err).WithField("destinations", len(dests)).
				Warn("route provider failed, falling back to nearest neighbor")
			ordered, method = NearestNeighborRoute(origin, dests, o.cfg.AverageSpeedKmh), domain.MethodFallback
		}
	} else {
		ordered, method = NearestNeighborRoute(origin, dests, o.cfg.AverageSpeedKmh), domain.MethodNearestNeighbor
	}

	metrics.RouteOptimizations.WithLabelValues(string(method)).Inc()

	res := domain.RouteResult{
		OrderedDestinations: ordered,
		Method:              method,
	}
	for _, r := range ordered {
		res.TotalDistanceKm += r.LegDistanceKm
		res.TotalDurationMinutes += r.LegDurationMinutes
	}
	res.EstimatedFuelLiters = res.TotalDistanceKm * o.cfg.FuelLitersPer100Km / 100

	if opts.ComputeSavings {
		optimized := make([]domain.Destination, len(ordered))
		for i, r := range ordered {
			optimized[i] = r.Destination
		}

		res.OriginalDistanceKm = pathDistanceKm(origin, dests)
		if res.OriginalDistanceKm > 0 {
			saved := res.OriginalDistanceKm - pathDistanceKm(origin, optimized)
			res.SavingsPercent = saved / res.OriginalDistanceKm * 100
		}
	}

	return res
}

func (o *RouteOptimizer) providerEnabled() bool {
	return o.cfg.Enabled && o.provider != nil
}

func (o *RouteOptimizer) idleMethod() domain.RouteMethod {
	if o.providerEnabled() {
		return domain.MethodProvider
	}
	return domain.MethodNearestNeighbor
}

func resolveLocations(origin domain.Coordinates, destinations []domain.Destination) []domain.Destination {
	out := make([]domain.Destination, len(destinations))
	for i, d := range destinations {
		if d.Location == nil {
			loc := origin
			d.Location = &loc
			d.LocationFallback = true
		}
		out[i] = d
	}
	return out
}

// optimizeWithProvider sends destinations in chunks of the provider's waypoint limit.
// The last stop of chunk k is the origin of chunk k+1.
func (o *RouteOptimizer) optimizeWithProvider(
	ctx context.Context,
	origin domain.Coordinates,
	dests []domain.Destination,
) ([]domain.RoutedDestination, error) {
	limit := o.provider.WaypointLimit()
	if limit <= 0 {
		limit = defaultWaypointLimit
	}

	out := make([]domain.RoutedDestination, 0, len(dests))
	current := origin

	for start := 0; start < len(dests); start += limit {
		end := min(start+limit, len(dests))
		chunk := dests[start:end]

		routed, err := o.optimizeChunk(ctx, current, chunk)
		if err != nil {
			return nil, fmt.Errorf("optimize chunk %d-%d: %w", start, end, err)
		}

		out = append(out, routed...)
		current = *routed[len(routed)-1].Destination.Location
	}

	return out, nil
}

func (o *RouteOptimizer) optimizeChunk(
	ctx context.Context,
	origin domain.Coordinates,
	chunk []domain.Destination,
) ([]domain.RoutedDestination, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for provider slot: %w", err)
	}

	callCtx := ctx
	if o.cfg.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.cfg.ProviderTimeout)
		defer cancel()
	}

	req := ports.RouteRequest{
		Origin:       origin,
		Destinations: make([]domain.Coordinates, len(chunk)),
	}
	for i, d := range chunk {
		req.Destinations[i] = *d.Location
	}

	start := time.Now()
	resp, err := o.provider.OptimizeRoute(callCtx, req)
	if err == nil {
		err = validateResponse(resp, len(chunk))
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.ProviderLatency.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, err
	}

	out := make([]domain.RoutedDestination, len(chunk))
	for i, idx := range resp.OrderedIndices {
		out[i] = domain.RoutedDestination{
			Destination:        chunk[idx],
			LegDistanceKm:      resp.LegDistancesKm[i],
			LegDurationMinutes: resp.LegDurationsMinutes[i],
		}
	}
	return out, nil
}

var errMalformedOrdering = errors.New("provider returned a malformed ordering")

func validateResponse(resp ports.RouteResponse, n int) error {
	if len(resp.OrderedIndices) != n || len(resp.LegDistancesKm) != n || len(resp.LegDurationsMinutes) != n {
		return fmt.Errorf("%w: %d indices for %d destinations", errMalformedOrdering, len(resp.OrderedIndices), n)
	}

	seen := make([]bool, n)
	for _, idx := range resp.OrderedIndices {
		if idx < 0 || idx >= n || seen[idx] {
			return fmt.Errorf("%w: index %d", errMalformedOrdering, idx)
		}
		seen[idx] = true
	}
	for i := range resp.LegDistancesKm {
		if resp.LegDistancesKm[i] < 0 || resp.LegDurationsMinutes[i] < 0 {
			return fmt.Errorf("%w: negative leg %d", errMalformedOrdering, i)
		}
	}
	return nil
}
