package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"distribution-service/internal/domain"
	"distribution-service/internal/ports"

	redis "github.com/redis/go-redis/v9"
)

const (
	latestPingsKey = "distributors:location:latest"
	latestTimesKey = "distributors:location:latest_at"
)

// putIfNewer stores the ping JSON only when it is not older than the stored one.
// Times are unix milliseconds so they compare exactly as Lua numbers.
var putIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[2], ARGV[1])
if cur and tonumber(cur) > tonumber(ARGV[2]) then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
return 1
`)

// LocationIndex keeps the latest ping of every distributor in a Redis hash so that
// all service instances answer proximity queries from the same view.
type LocationIndex struct {
	rdb redis.UniversalClient
}

var _ ports.LocationIndex = (*LocationIndex)(nil)

func NewLocationIndex(rdb redis.UniversalClient) *LocationIndex {
	return &LocationIndex{rdb: rdb}
}

func (x *LocationIndex) PutLatest(ctx context.Context, p domain.LocationPoint) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("put latest location: marshal: %w", err)
	}

	field := strconv.FormatInt(p.DistributorID, 10)
	at := strconv.FormatInt(p.RecordedAt.UnixMilli(), 10)

	if err := putIfNewer.Run(ctx, x.rdb, []string{latestPingsKey, latestTimesKey}, field, at, data).Err(); err != nil {
		return fmt.Errorf("put latest location: %w", err)
	}
	return nil
}

func (x *LocationIndex) ListLatest(ctx context.Context) ([]domain.LocationPoint, error) {
	raw, err := x.rdb.HGetAll(ctx, latestPingsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list latest locations: %w", err)
	}

	out := make([]domain.LocationPoint, 0, len(raw))
	for field, v := range raw {
		var p domain.LocationPoint
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			return nil, fmt.Errorf("list latest locations: decode %s: %w", field, err)
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].DistributorID < out[j].DistributorID })
	return out, nil
}
