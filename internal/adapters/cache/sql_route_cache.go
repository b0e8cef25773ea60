package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"distribution-service/internal/platform/obs"
	"distribution-service/internal/ports"
)

// SQLRouteCache is a SQL-backed cache of routing provider responses.
// Entries older than TTL are treated as misses; a zero TTL never expires them.
type SQLRouteCache struct {
	DB  *sql.DB
	TTL time.Duration
	now func() time.Time
}

var _ ports.RouteCache = (*SQLRouteCache)(nil)

func NewSQLRouteCache(db *sql.DB, ttl time.Duration) *SQLRouteCache {
	return &SQLRouteCache{DB: db, TTL: ttl, now: time.Now}
}

// EnsureSchema creates the cache table.
func (s *SQLRouteCache) EnsureSchema(ctx context.Context) error {
	if s.DB == nil {
		return errors.New("route cache: db is nil")
	}

	_, err := s.DB.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS route_cache (
		request_key TEXT PRIMARY KEY,
		response JSONB NOT NULL,
		cached_at TIMESTAMPTZ NOT NULL
	);
	`)
	if err != nil {
		return fmt.Errorf("route cache: create table: %w", err)
	}
	return nil
}

// Fetch a cached response for one request key.
func (s *SQLRouteCache) Get(ctx context.Context, key string) (_ ports.RouteResponse, _ bool, err error) {
	defer obs.Time(ctx, "route.cache.Get")(&err)

	if s.DB == nil {
		return ports.RouteResponse{}, false, errors.New("route cache: db is nil")
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return ports.RouteResponse{}, false, errors.New("get route cache: key must not be empty")
	}

	var notBefore time.Time
	if s.TTL > 0 {
		notBefore = s.now().Add(-s.TTL)
	}

	q := `
	SELECT response
	FROM route_cache
	WHERE request_key = $1
		AND cached_at >= $2;
	`

	var raw []byte
	err = s.DB.QueryRowContext(ctx, q, key, notBefore).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.RouteResponse{}, false, nil
	}
	if err != nil {
		return ports.RouteResponse{}, false, fmt.Errorf("get route cache: query route_cache table: %w", err)
	}

	var resp ports.RouteResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ports.RouteResponse{}, false, fmt.Errorf("get route cache: decode response: %w", err)
	}
	return resp, true, nil
}

// Store the response for one request key, replacing any previous entry.
func (s *SQLRouteCache) Put(ctx context.Context, key string, resp ports.RouteResponse) error {
	if s.DB == nil {
		return errors.New("route cache: db is nil")
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("insert route cache: key must not be empty")
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("insert route cache: encode response: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
	INSERT INTO route_cache (request_key, response, cached_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (request_key) DO UPDATE
	SET response = EXCLUDED.response,
		cached_at = EXCLUDED.cached_at;
	`, key, raw, s.now())
	if err != nil {
		return fmt.Errorf("insert route cache key=%q: %w", key, err)
	}

	return nil
}
