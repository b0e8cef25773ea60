package ports

import "context"

// Contract for a persistent cache of provider route responses keyed by request.
type RouteCache interface {
	// Return the cached response for key. ok is false on a miss or an expired entry.
	Get(ctx context.Context, key string) (resp RouteResponse, ok bool, err error)
	Put(ctx context.Context, key string, resp RouteResponse) error
}
