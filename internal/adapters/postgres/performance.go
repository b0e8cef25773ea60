package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"distribution-service/internal/domain"

	"github.com/google/uuid"
)

const performanceColumns = `
	id, distributor_id, date, total_trips, completed_trips, total_orders, completed_orders,
	total_visits, completed_visits, total_distance_km, total_duration_minutes, fuel_consumed_liters,
	on_time_deliveries, late_deliveries, completion_rate, on_time_rate, efficiency_score, calculated_at`

// UpsertPerformance replaces the metrics of an existing (distributor, date) row and keeps its id.
func (r *Repository) UpsertPerformance(ctx context.Context, rec domain.PerformanceRecord) (domain.PerformanceRecord, error) {
	if r.DB == nil {
		return domain.PerformanceRecord{}, errNilDB
	}

	rec.Date = domain.DateOf(rec.Date)
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	err := r.DB.QueryRowContext(ctx, `
	INSERT INTO performance_records (`+performanceColumns+`)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	ON CONFLICT (distributor_id, date) DO UPDATE
	SET total_trips = EXCLUDED.total_trips,
		completed_trips = EXCLUDED.completed_trips,
		total_orders = EXCLUDED.total_orders,
		completed_orders = EXCLUDED.completed_orders,
		total_visits = EXCLUDED.total_visits,
		completed_visits = EXCLUDED.completed_visits,
		total_distance_km = EXCLUDED.total_distance_km,
		total_duration_minutes = EXCLUDED.total_duration_minutes,
		fuel_consumed_liters = EXCLUDED.fuel_consumed_liters,
		on_time_deliveries = EXCLUDED.on_time_deliveries,
		late_deliveries = EXCLUDED.late_deliveries,
		completion_rate = EXCLUDED.completion_rate,
		on_time_rate = EXCLUDED.on_time_rate,
		efficiency_score = EXCLUDED.efficiency_score,
		calculated_at = EXCLUDED.calculated_at
	RETURNING id;
	`, rec.ID, rec.DistributorID, rec.Date, rec.TotalTrips, rec.CompletedTrips, rec.TotalOrders, rec.CompletedOrders,
		rec.TotalVisits, rec.CompletedVisits, rec.TotalDistanceKm, rec.TotalDurationMinutes, rec.FuelConsumedLiters,
		rec.OnTimeDeliveries, rec.LateDeliveries, rec.CompletionRate, rec.OnTimeRate, rec.EfficiencyScore, rec.CalculatedAt,
	).Scan(&rec.ID)
	if err != nil {
		return domain.PerformanceRecord{}, fmt.Errorf("upsert performance %d: %w", rec.DistributorID, err)
	}
	return rec, nil
}

func (r *Repository) GetPerformance(ctx context.Context, distributorID int64, date time.Time) (domain.PerformanceRecord, error) {
	if r.DB == nil {
		return domain.PerformanceRecord{}, errNilDB
	}

	var rec domain.PerformanceRecord
	err := r.DB.QueryRowContext(ctx, `
	SELECT`+performanceColumns+`
	FROM performance_records
	WHERE distributor_id = $1 AND date = $2;
	`, distributorID, domain.DateOf(date)).Scan(
		&rec.ID, &rec.DistributorID, &rec.Date, &rec.TotalTrips, &rec.CompletedTrips, &rec.TotalOrders, &rec.CompletedOrders,
		&rec.TotalVisits, &rec.CompletedVisits, &rec.TotalDistanceKm, &rec.TotalDurationMinutes, &rec.FuelConsumedLiters,
		&rec.OnTimeDeliveries, &rec.LateDeliveries, &rec.CompletionRate, &rec.OnTimeRate, &rec.EfficiencyScore, &rec.CalculatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PerformanceRecord{}, fmt.Errorf("performance %d/%s: %w", distributorID, domain.DateOf(date).Format(domain.DateLayout), domain.ErrNotFound)
	}
	if err != nil {
		return domain.PerformanceRecord{}, fmt.Errorf("get performance %d: %w", distributorID, err)
	}
	return rec, nil
}
