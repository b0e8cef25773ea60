package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"distribution-service/internal/domain"
	"distribution-service/internal/platform/obs"
	"distribution-service/internal/platform/validation"
	"distribution-service/internal/ports"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type LocationConfig struct {
	// StaleAfter excludes older latest pings from nearby search. Zero disables the cut-off.
	StaleAfter time.Duration
	// MaxSpeedKmh caps reported speeds in statistics. Zero disables the cap.
	MaxSpeedKmh    float64
	DefaultHistory int
	MaxHistory     int
}

func DefaultLocationConfig() LocationConfig {
	return LocationConfig{
		StaleAfter:     30 * time.Minute,
		MaxSpeedKmh:    200,
		DefaultHistory: 100,
		MaxHistory:     1000,
	}
}

// LocationAggregator records GPS pings and derives history, movement statistics
// and proximity queries from them.
type LocationAggregator struct {
	points       ports.LocationRepository
	latest       ports.LocationIndex
	distributors ports.DistributorRepository
	cfg          LocationConfig
	log          logrus.FieldLogger
	now          func() time.Time
}

func NewLocationAggregator(
	points ports.LocationRepository,
	latest ports.LocationIndex,
	distributors ports.DistributorRepository,
	cfg LocationConfig,
	log logrus.FieldLogger,
) *LocationAggregator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.DefaultHistory <= 0 {
		cfg.DefaultHistory = 100
	}
	if cfg.MaxHistory < cfg.DefaultHistory {
		cfg.MaxHistory = cfg.DefaultHistory
	}
	return &LocationAggregator{
		points:       points,
		latest:       latest,
		distributors: distributors,
		cfg:          cfg,
		log:          log.WithField("component", "location_aggregator"),
		now:          time.Now,
	}
}

// RecordPing validates and appends p, then refreshes the latest-ping index and the
// distributor's presence. Index and presence failures are logged; the ping is already stored.
func (a *LocationAggregator) RecordPing(ctx context.Context, p domain.LocationPoint) (_ domain.LocationPoint, err error) {
	defer obs.Time(ctx, "location.RecordPing")(&err)

	if err := validation.Struct(p); err != nil {
		return domain.LocationPoint{}, err
	}
	if _, err := a.distributors.GetDistributor(ctx, p.DistributorID); err != nil {
		return domain.LocationPoint{}, err
	}

	p.ID = uuid.NewString()
	p.RecordedAt = p.RecordedAt.UTC()

	if err := a.points.InsertLocation(ctx, p); err != nil {
		return domain.LocationPoint{}, fmt.Errorf("record ping: %w", err)
	}

	log := a.log.WithField("distributor_id", p.DistributorID)
	if err := a.latest.PutLatest(ctx, p); err != nil {
		log.WithError(err).Warn("could not update latest location index")
	}
	if err := a.distributors.UpdatePresence(ctx, p.DistributorID, p.Coordinates(), p.RecordedAt); err != nil {
		log.WithError(err).Warn("could not update distributor presence")
	}

	return p, nil
}

// History returns pings in [from, to], newest first. limit <= 0 selects the default limit;
// larger limits are capped. A zero to means now, a zero from means 24 hours before to.
func (a *LocationAggregator) History(ctx context.Context, distributorID int64, from, to time.Time, limit int) ([]domain.LocationPoint, error) {
	from, to, err := a.window(from, to)
	if err != nil {
		return nil, err
	}

	switch {
	case limit <= 0:
		limit = a.cfg.DefaultHistory
	case limit > a.cfg.MaxHistory:
		limit = a.cfg.MaxHistory
	}

	return a.points.ListLocations(ctx, distributorID, from, to, limit, true)
}

// Statistics walks the pings in [from, to] in time order. Each interval between two
// consecutive pings is counted as moving or stationary by the flag of its first ping.
// Fewer than two pings yield zeroed statistics.
func (a *LocationAggregator) Statistics(ctx context.Context, distributorID int64, from, to time.Time) (domain.LocationStats, error) {
	from, to, err := a.window(from, to)
	if err != nil {
		return domain.LocationStats{}, err
	}

	points, err := a.points.ListLocations(ctx, distributorID, from, to, 0, false)
	if err != nil {
		return domain.LocationStats{}, fmt.Errorf("location statistics: %w", err)
	}

	st := domain.LocationStats{
		DistributorID: distributorID,
		From:          from,
		To:            to,
		PointCount:    len(points),
	}
	if len(points) < 2 {
		return st, nil
	}

	var speedSum float64
	var speedN int

	for i, p := range points {
		if p.SpeedKmh != nil {
			s := domain.BoundedSpeedKmh(p, a.cfg.MaxSpeedKmh)
			speedSum += s
			speedN++
			if s > st.MaxSpeedKmh {
				st.MaxSpeedKmh = s
			}
		}

		if i == 0 {
			continue
		}

		prev := points[i-1]
		st.TotalDistanceKm += domain.DistanceKm(prev.Coordinates(), p.Coordinates())

		elapsed := p.RecordedAt.Sub(prev.RecordedAt).Minutes()
		if prev.IsMoving {
			st.MovingMinutes += elapsed
		} else {
			st.StationaryMinutes += elapsed
		}
	}

	if speedN > 0 {
		st.AvgSpeedKmh = speedSum / float64(speedN)
	}

	return st, nil
}

// NearbyDistributors returns distributors whose latest fresh ping lies within radiusKm
// of center, nearest first.
func (a *LocationAggregator) NearbyDistributors(ctx context.Context, center domain.Coordinates, radiusKm float64) ([]domain.NearbyDistributor, error) {
	if !center.Valid() {
		return nil, domain.Validationf("invalid center %v", center)
	}
	if radiusKm <= 0 {
		return nil, domain.Validationf("radius must be > 0, got %v", radiusKm)
	}

	latest, err := a.latest.ListLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("nearby distributors: %w", err)
	}

	now := a.now()
	out := make([]domain.NearbyDistributor, 0)
	for _, p := range latest {
		if a.cfg.StaleAfter > 0 && now.Sub(p.RecordedAt) > a.cfg.StaleAfter {
			continue
		}

		km := domain.DistanceKm(center, p.Coordinates())
		if km > radiusKm {
			continue
		}
		out = append(out, domain.NearbyDistributor{DistributorID: p.DistributorID, DistanceKm: km, LastPing: p})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].DistributorID < out[j].DistributorID
	})

	return out, nil
}

func (a *LocationAggregator) window(from, to time.Time) (time.Time, time.Time, error) {
	if to.IsZero() {
		to = a.now()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, domain.Validationf("from %s is after to %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return from, to, nil
}
