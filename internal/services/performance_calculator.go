package services

import (
	"context"
	"fmt"
	"time"

	"distribution-service/internal/domain"
	"distribution-service/internal/platform/obs"
	"distribution-service/internal/ports"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type PerformanceConfig struct {
	Weights domain.ScoreWeights
	// AlertThreshold triggers a performance alert for active days scoring below it.
	AlertThreshold float64
}

func DefaultPerformanceConfig() PerformanceConfig {
	return PerformanceConfig{Weights: domain.DefaultScoreWeights(), AlertThreshold: 60}
}

// PerformanceSummary reports a CalculateAll run.
type PerformanceSummary struct {
	Date         time.Time                  `json:"date"`
	Distributors int                        `json:"distributors"`
	Records      []domain.PerformanceRecord `json:"records"`
	Alerts       int                        `json:"alerts"`
	Errors       []string                   `json:"errors,omitempty"`
}

// PerformanceCalculator rolls up one distributor's day into a PerformanceRecord.
// Recomputing the same day replaces the stored record, never duplicates it.
type PerformanceCalculator struct {
	records      ports.PerformanceRepository
	trips        ports.TripRepository
	visits       ports.VisitRepository
	orders       ports.OrderSource
	distributors ports.DistributorRepository
	notifier     ports.Notifier
	cfg          PerformanceConfig
	log          logrus.FieldLogger
	now          func() time.Time
}

func NewPerformanceCalculator(
	records ports.PerformanceRepository,
	trips ports.TripRepository,
	visits ports.VisitRepository,
	orders ports.OrderSource,
	distributors ports.DistributorRepository,
	notifier ports.Notifier,
	cfg PerformanceConfig,
	log logrus.FieldLogger,
) *PerformanceCalculator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PerformanceCalculator{
		records:      records,
		trips:        trips,
		visits:       visits,
		orders:       orders,
		distributors: distributors,
		notifier:     notifier,
		cfg:          cfg,
		log:          log.WithField("component", "performance_calculator"),
		now:          time.Now,
	}
}

// CalculateDaily computes and stores the rollup of (distributorID, date).
//
// Completion rate is completed trips over trips. On-time rate is taken over completed
// visits whose delay is known: a visit arriving no later than planned is on time.
// Both rates are percentages rounded to two decimals; so is the efficiency score.
func (c *PerformanceCalculator) CalculateDaily(ctx context.Context, distributorID int64, date time.Time) (_ domain.PerformanceRecord, err error) {
	defer obs.Time(ctx, "performance.CalculateDaily")(&err)

	date = domain.DateOf(date)

	if _, err := c.distributors.GetDistributor(ctx, distributorID); err != nil {
		return domain.PerformanceRecord{}, err
	}

	trips, err := c.trips.ListTrips(ctx, distributorID, date)
	if err != nil {
		return domain.PerformanceRecord{}, fmt.Errorf("calculate performance: list trips: %w", err)
	}
	visits, err := c.visits.ListVisits(ctx, distributorID, date)
	if err != nil {
		return domain.PerformanceRecord{}, fmt.Errorf("calculate performance: list visits: %w", err)
	}
	orders, err := c.orders.ListAssignedOrders(ctx, distributorID, date, nil)
	if err != nil {
		return domain.PerformanceRecord{}, fmt.Errorf("calculate performance: list orders: %w", err)
	}

	rec := domain.PerformanceRecord{
		DistributorID: distributorID,
		Date:          date,
		TotalTrips:    len(trips),
		TotalOrders:   len(orders),
		TotalVisits:   len(visits),
		CalculatedAt:  c.now().UTC(),
	}

	distance := decimal.Zero
	fuel := decimal.Zero
	for _, t := range trips {
		if t.Status == domain.TripCompleted {
			rec.CompletedTrips++
		}
		distance = distance.Add(decimal.NewFromFloat(t.TotalDistanceKm))
		fuel = fuel.Add(decimal.NewFromFloat(t.FuelConsumedLiters))
		rec.TotalDurationMinutes += t.TotalDurationMinutes
	}
	rec.TotalDistanceKm = distance.Round(2).InexactFloat64()
	rec.FuelConsumedLiters = fuel.Round(2).InexactFloat64()

	for _, o := range orders {
		if o.Status == domain.OrderDelivered {
			rec.CompletedOrders++
		}
	}

	for _, v := range visits {
		if v.VisitStatus != domain.VisitCompleted {
			continue
		}
		rec.CompletedVisits++

		onTime, ok := v.OnTime()
		switch {
		case !ok:
		case onTime:
			rec.OnTimeDeliveries++
		default:
			rec.LateDeliveries++
		}
	}

	completion := percent(rec.CompletedTrips, rec.TotalTrips)
	onTime := percent(rec.OnTimeDeliveries, rec.OnTimeDeliveries+rec.LateDeliveries)

	rec.CompletionRate = completion.InexactFloat64()
	rec.OnTimeRate = onTime.InexactFloat64()
	rec.EfficiencyScore = decimal.NewFromFloat(c.cfg.Weights.Score(rec.CompletionRate, rec.OnTimeRate)).Round(2).InexactFloat64()

	stored, err := c.records.UpsertPerformance(ctx, rec)
	if err != nil {
		return domain.PerformanceRecord{}, fmt.Errorf("calculate performance: upsert: %w", err)
	}

	log := c.log.WithFields(logrus.Fields{
		"distributor_id": distributorID,
		"date":           date.Format(domain.DateLayout),
		"score":          stored.EfficiencyScore,
	})
	log.Debug("performance calculated")

	if c.shouldAlert(stored) {
		log.Warn("efficiency below alert threshold")
		sendNotification(ctx, c.notifier, log, domain.Notification{
			DistributorID: distributorID,
			Type:          domain.NotificationPerformanceAlert,
			Title:         "Performance alert",
			Message: fmt.Sprintf("Your efficiency score for %s is %s, below the expected %s.",
				date.Format(domain.DateLayout),
				decimal.NewFromFloat(stored.EfficiencyScore).StringFixed(2),
				decimal.NewFromFloat(c.cfg.AlertThreshold).StringFixed(2)),
			Priority: domain.PriorityHigh,
			Metadata: map[string]string{
				"date":            date.Format(domain.DateLayout),
				"efficiency":      decimal.NewFromFloat(stored.EfficiencyScore).StringFixed(2),
				"completion_rate": decimal.NewFromFloat(stored.CompletionRate).StringFixed(2),
				"on_time_rate":    decimal.NewFromFloat(stored.OnTimeRate).StringFixed(2),
			},
		})
	}

	return stored, nil
}

// shouldAlert skips days without trips: their score is only the base credit.
func (c *PerformanceCalculator) shouldAlert(rec domain.PerformanceRecord) bool {
	return c.cfg.AlertThreshold > 0 && rec.TotalTrips > 0 && rec.EfficiencyScore < c.cfg.AlertThreshold
}

// CalculateAll rolls up date for every active distributor. One distributor's failure
// is recorded and does not stop the others.
func (c *PerformanceCalculator) CalculateAll(ctx context.Context, date time.Time) (PerformanceSummary, error) {
	date = domain.DateOf(date)

	distributors, err := c.distributors.ListActiveDistributors(ctx)
	if err != nil {
		return PerformanceSummary{}, fmt.Errorf("calculate all performance: %w", err)
	}

	sum := PerformanceSummary{Date: date, Distributors: len(distributors)}
	for _, d := range distributors {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		rec, err := c.CalculateDaily(ctx, d.ID, date)
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("distributor %d: %v", d.ID, err))
			continue
		}
		if c.shouldAlert(rec) {
			sum.Alerts++
		}
		sum.Records = append(sum.Records, rec)
	}

	c.log.WithFields(logrus.Fields{
		"date":         date.Format(domain.DateLayout),
		"distributors": sum.Distributors,
		"records":      len(sum.Records),
		"alerts":       sum.Alerts,
		"errors":       len(sum.Errors),
	}).Info("performance rollup finished")

	return sum, nil
}

var hundred = decimal.NewFromInt(100)

func percent(part, total int) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(part)).Mul(hundred).DivRound(decimal.NewFromInt(int64(total)), 2)
}
