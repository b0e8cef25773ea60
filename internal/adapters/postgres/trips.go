package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"distribution-service/internal/domain"
)

const tripColumns = `
	id, distributor_id, trip_date, status, actual_start_time, actual_end_time,
	planned_distance_km, total_distance_km, total_duration_minutes, fuel_consumed_liters,
	notes, created_at, updated_at`

const insertTripQuery = `
	INSERT INTO trips (` + tripColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
	`

func tripArgs(t domain.Trip) []any {
	return []any{
		t.ID, t.DistributorID, domain.DateOf(t.TripDate), string(t.Status), t.ActualStartTime, t.ActualEndTime,
		t.PlannedDistanceKm, t.TotalDistanceKm, t.TotalDurationMinutes, t.FuelConsumedLiters,
		t.Notes, t.CreatedAt, t.UpdatedAt,
	}
}

func scanTrip(row rowScanner) (domain.Trip, error) {
	var t domain.Trip
	var status string

	err := row.Scan(
		&t.ID, &t.DistributorID, &t.TripDate, &status, &t.ActualStartTime, &t.ActualEndTime,
		&t.PlannedDistanceKm, &t.TotalDistanceKm, &t.TotalDurationMinutes, &t.FuelConsumedLiters,
		&t.Notes, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return domain.Trip{}, err
	}
	t.Status = domain.TripStatus(status)
	return t, nil
}

func (r *Repository) GetTrip(ctx context.Context, id string) (domain.Trip, error) {
	if r.DB == nil {
		return domain.Trip{}, errNilDB
	}

	t, err := scanTrip(r.DB.QueryRowContext(ctx, `SELECT`+tripColumns+` FROM trips WHERE id = $1;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Trip{}, fmt.Errorf("trip %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Trip{}, fmt.Errorf("get trip %s: %w", id, err)
	}
	return t, nil
}

func (r *Repository) FindTrip(ctx context.Context, distributorID int64, date time.Time) (domain.Trip, error) {
	trips, err := r.ListTrips(ctx, distributorID, date)
	if err != nil {
		return domain.Trip{}, err
	}
	if len(trips) == 0 {
		return domain.Trip{}, fmt.Errorf("trip %d/%s: %w", distributorID, domain.DateOf(date).Format(domain.DateLayout), domain.ErrNotFound)
	}
	return trips[0], nil
}

func (r *Repository) ListTrips(ctx context.Context, distributorID int64, date time.Time) ([]domain.Trip, error) {
	if r.DB == nil {
		return nil, errNilDB
	}

	rows, err := r.DB.QueryContext(ctx, `
	SELECT`+tripColumns+`
	FROM trips
	WHERE distributor_id = $1 AND trip_date = $2
	ORDER BY created_at;
	`, distributorID, domain.DateOf(date))
	if err != nil {
		return nil, fmt.Errorf("list trips: query trips table: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Trip, 0, 1)
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("list trips: scan row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list trips: row iteration: %w", err)
	}
	return out, nil
}

// UpdateTripIf writes t when the stored status is still expected. Completion is refused
// while any visit of the trip's day is in progress, checked under the trip's row lock.
func (r *Repository) UpdateTripIf(ctx context.Context, t domain.Trip, expected domain.TripStatus) error {
	if r.DB == nil {
		return errNilDB
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update trip %s: begin tx: %w", t.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		status        string
		distributorID int64
		tripDate      time.Time
	)
	err = tx.QueryRowContext(ctx, `
	SELECT status, distributor_id, trip_date FROM trips WHERE id = $1 FOR UPDATE;
	`, t.ID).Scan(&status, &distributorID, &tripDate)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("trip %s: %w", t.ID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update trip %s: lock row: %w", t.ID, err)
	}
	if domain.TripStatus(status) != expected {
		return fmt.Errorf("trip %s is %s, expected %s: %w", t.ID, status, expected, domain.ErrConflict)
	}

	if t.Status == domain.TripCompleted {
		var open int
		err := tx.QueryRowContext(ctx, `
		SELECT count(*) FROM schedule_visits
		WHERE distributor_id = $1 AND schedule_date = $2 AND visit_status = $3;
		`, distributorID, tripDate, string(domain.VisitInProgress)).Scan(&open)
		if err != nil {
			return fmt.Errorf("update trip %s: count open visits: %w", t.ID, err)
		}
		if open > 0 {
			return &domain.InvalidStateTransitionError{
				Entity: "trip",
				ID:     t.ID,
				From:   string(expected),
				To:     string(t.Status),
				Reason: fmt.Sprintf("%d visit(s) still in progress", open),
			}
		}
	}

	_, err = tx.ExecContext(ctx, `
	UPDATE trips
	SET status = $2, actual_start_time = $3, actual_end_time = $4,
		planned_distance_km = $5, total_distance_km = $6, total_duration_minutes = $7,
		fuel_consumed_liters = $8, notes = $9, updated_at = $10
	WHERE id = $1;
	`, t.ID, string(t.Status), t.ActualStartTime, t.ActualEndTime,
		t.PlannedDistanceKm, t.TotalDistanceKm, t.TotalDurationMinutes,
		t.FuelConsumedLiters, t.Notes, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update trip %s: %w", t.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update trip %s: commit tx: %w", t.ID, err)
	}
	return nil
}

// lockDayTrip locks the trip of a distributor's day, if there is one, and returns its status.
func lockDayTrip(ctx context.Context, tx *sql.Tx, distributorID int64, date time.Time) (domain.TripStatus, bool, error) {
	var status string
	err := tx.QueryRowContext(ctx, `
	SELECT status FROM trips WHERE distributor_id = $1 AND trip_date = $2 FOR UPDATE;
	`, distributorID, domain.DateOf(date)).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lock trip: %w", err)
	}
	return domain.TripStatus(status), true, nil
}
