package routing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"distribution-service/internal/ports"

	"github.com/sirupsen/logrus"
)

// CachedProvider serves repeated optimization requests from a persistent cache.
// Cache failures are logged and the request goes to the wrapped provider.
type CachedProvider struct {
	next      ports.RouteProvider
	cache     ports.RouteCache
	namespace string
	log       logrus.FieldLogger
}

var _ ports.RouteProvider = (*CachedProvider)(nil)

// NewCachedProvider wraps next. namespace separates keys of providers or profiles
// that would answer the same request differently.
func NewCachedProvider(next ports.RouteProvider, cache ports.RouteCache, namespace string, log logrus.FieldLogger) *CachedProvider {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CachedProvider{
		next:      next,
		cache:     cache,
		namespace: namespace,
		log:       log.WithField("component", "route_cache"),
	}
}

func (c *CachedProvider) WaypointLimit() int { return c.next.WaypointLimit() }

func (c *CachedProvider) OptimizeRoute(ctx context.Context, req ports.RouteRequest) (ports.RouteResponse, error) {
	key := RequestKey(c.namespace, req)

	resp, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.WithError(err).Warn("route cache lookup failed")
	} else if ok && len(resp.OrderedIndices) == len(req.Destinations) {
		c.log.WithField("destinations", len(req.Destinations)).Debug("route cache hit")
		return resp, nil
	}

	resp, err = c.next.OptimizeRoute(ctx, req)
	if err != nil {
		return ports.RouteResponse{}, err
	}

	if err := c.cache.Put(ctx, key, resp); err != nil {
		c.log.WithError(err).Warn("route cache store failed")
	}
	return resp, nil
}

// RequestKey hashes the namespace and the request coordinates at micro-degree precision.
func RequestKey(namespace string, req ports.RouteRequest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%.6f,%.6f", namespace, req.Origin.Lon, req.Origin.Lat)
	for _, d := range req.Destinations {
		fmt.Fprintf(h, "|%.6f,%.6f", d.Lon, d.Lat)
	}
	return hex.EncodeToString(h.Sum(nil))
}
