package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// InitSchema creates the tables owned by the scheduling core together with the
// read-side tables of the distributor, store and order subsystems.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createDistributorsQuery := `
	CREATE TABLE IF NOT EXISTS distributors (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		working_status TEXT NOT NULL DEFAULT 'available',
		is_online BOOLEAN NOT NULL DEFAULT FALSE,
		current_schedule_date DATE,
		current_trip_id TEXT NOT NULL DEFAULT '',
		current_lat DOUBLE PRECISION,
		current_lon DOUBLE PRECISION,
		depot_lat DOUBLE PRECISION,
		depot_lon DOUBLE PRECISION,
		last_location_update TIMESTAMPTZ
	);
	`

	createStoresQuery := `
	CREATE TABLE IF NOT EXISTS stores (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		lat DOUBLE PRECISION,
		lon DOUBLE PRECISION
	);
	`

	createAssignmentsQuery := `
	CREATE TABLE IF NOT EXISTS distributor_stores (
		distributor_id BIGINT NOT NULL REFERENCES distributors(id) ON DELETE CASCADE,
		store_id BIGINT NOT NULL REFERENCES stores(id) ON DELETE CASCADE,
		position INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (distributor_id, store_id)
	);
	`

	createOrdersQuery := `
	CREATE TABLE IF NOT EXISTS orders (
		id BIGINT PRIMARY KEY,
		distributor_id BIGINT NOT NULL,
		store_id BIGINT NOT NULL REFERENCES stores(id),
		priority INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		delivery_date DATE NOT NULL
	);
	`

	createOrdersIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_orders_distributor_date
	ON orders(distributor_id, delivery_date);
	`

	createVisitsQuery := `
	CREATE TABLE IF NOT EXISTS schedule_visits (
		id TEXT PRIMARY KEY,
		distributor_id BIGINT NOT NULL,
		schedule_date DATE NOT NULL,
		store_id BIGINT NOT NULL,
		visit_order INTEGER NOT NULL,
		visit_status TEXT NOT NULL,
		planned_arrival_time TIMESTAMPTZ,
		planned_departure_time TIMESTAMPTZ,
		actual_arrival_time TIMESTAMPTZ,
		actual_departure_time TIMESTAMPTZ,
		estimated_duration_minutes INTEGER NOT NULL DEFAULT 0,
		actual_duration_minutes INTEGER,
		distance_from_previous_km DOUBLE PRECISION NOT NULL DEFAULT 0,
		order_ids BIGINT[] NOT NULL DEFAULT '{}',
		is_regular_visit BOOLEAN NOT NULL DEFAULT FALSE,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT uq_visit_order UNIQUE (distributor_id, schedule_date, visit_order)
			DEFERRABLE INITIALLY DEFERRED
	);
	`

	createTripsQuery := `
	CREATE TABLE IF NOT EXISTS trips (
		id TEXT PRIMARY KEY,
		distributor_id BIGINT NOT NULL,
		trip_date DATE NOT NULL,
		status TEXT NOT NULL,
		actual_start_time TIMESTAMPTZ,
		actual_end_time TIMESTAMPTZ,
		planned_distance_km DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_distance_km DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_duration_minutes INTEGER NOT NULL DEFAULT 0,
		fuel_consumed_liters DOUBLE PRECISION NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT uq_trip_day UNIQUE (distributor_id, trip_date)
	);
	`

	createLocationsQuery := `
	CREATE TABLE IF NOT EXISTS location_points (
		id TEXT PRIMARY KEY,
		distributor_id BIGINT NOT NULL,
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		accuracy DOUBLE PRECISION,
		speed_kmh DOUBLE PRECISION,
		heading DOUBLE PRECISION,
		battery_level INTEGER,
		is_moving BOOLEAN NOT NULL DEFAULT FALSE,
		activity_type TEXT NOT NULL DEFAULT '',
		recorded_at TIMESTAMPTZ NOT NULL
	);
	`

	createLocationsIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_location_points_distributor_recorded
	ON location_points(distributor_id, recorded_at);
	`

	createPerformanceQuery := `
	CREATE TABLE IF NOT EXISTS performance_records (
		id TEXT PRIMARY KEY,
		distributor_id BIGINT NOT NULL,
		date DATE NOT NULL,
		total_trips INTEGER NOT NULL,
		completed_trips INTEGER NOT NULL,
		total_orders INTEGER NOT NULL,
		completed_orders INTEGER NOT NULL,
		total_visits INTEGER NOT NULL,
		completed_visits INTEGER NOT NULL,
		total_distance_km DOUBLE PRECISION NOT NULL,
		total_duration_minutes INTEGER NOT NULL,
		fuel_consumed_liters DOUBLE PRECISION NOT NULL,
		on_time_deliveries INTEGER NOT NULL,
		late_deliveries INTEGER NOT NULL,
		completion_rate DOUBLE PRECISION NOT NULL,
		on_time_rate DOUBLE PRECISION NOT NULL,
		efficiency_score DOUBLE PRECISION NOT NULL,
		calculated_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT uq_performance_day UNIQUE (distributor_id, date)
	);
	`

	statements := []string{
		createDistributorsQuery,
		createStoresQuery,
		createAssignmentsQuery,
		createOrdersQuery,
		createOrdersIndexQuery,
		createVisitsQuery,
		createTripsQuery,
		createLocationsQuery,
		createLocationsIndexQuery,
		createPerformanceQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
