package postgres

import (
	"context"
	"fmt"
	"time"

	"distribution-service/internal/domain"
)

const locationColumns = `
	id, distributor_id, latitude, longitude, accuracy, speed_kmh, heading,
	battery_level, is_moving, activity_type, recorded_at`

func scanLocation(row rowScanner) (domain.LocationPoint, error) {
	var p domain.LocationPoint
	err := row.Scan(
		&p.ID, &p.DistributorID, &p.Latitude, &p.Longitude, &p.Accuracy, &p.SpeedKmh, &p.Heading,
		&p.BatteryLevel, &p.IsMoving, &p.ActivityType, &p.RecordedAt,
	)
	return p, err
}

func (r *Repository) InsertLocation(ctx context.Context, p domain.LocationPoint) error {
	if r.DB == nil {
		return errNilDB
	}

	_, err := r.DB.ExecContext(ctx, `
	INSERT INTO location_points (`+locationColumns+`)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`, p.ID, p.DistributorID, p.Latitude, p.Longitude, p.Accuracy, p.SpeedKmh, p.Heading,
		p.BatteryLevel, p.IsMoving, p.ActivityType, p.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert location %s: %w", p.ID, conflictOr(err))
	}
	return nil
}

func (r *Repository) ListLocations(ctx context.Context, distributorID int64, from, to time.Time, limit int, newestFirst bool) ([]domain.LocationPoint, error) {
	if r.DB == nil {
		return nil, errNilDB
	}

	order := "ASC"
	if newestFirst {
		order = "DESC"
	}

	var lim any
	if limit > 0 {
		lim = limit
	}

	q := `
	SELECT` + locationColumns + `
	FROM location_points
	WHERE distributor_id = $1 AND recorded_at >= $2 AND recorded_at <= $3
	ORDER BY recorded_at ` + order + `, id
	LIMIT $4;
	`
	rows, err := r.DB.QueryContext(ctx, q, distributorID, from, to, lim)
	if err != nil {
		return nil, fmt.Errorf("list locations: query location_points table: %w", err)
	}
	defer rows.Close()

	out := make([]domain.LocationPoint, 0, 64)
	for rows.Next() {
		p, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("list locations: scan row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list locations: row iteration: %w", err)
	}
	return out, nil
}

// PutLatest is a no-op: the latest ping is derived from location_points.
func (r *Repository) PutLatest(ctx context.Context, p domain.LocationPoint) error {
	return nil
}

func (r *Repository) ListLatest(ctx context.Context) ([]domain.LocationPoint, error) {
	if r.DB == nil {
		return nil, errNilDB
	}

	rows, err := r.DB.QueryContext(ctx, `
	SELECT DISTINCT ON (distributor_id)`+locationColumns+`
	FROM location_points
	ORDER BY distributor_id, recorded_at DESC;
	`)
	if err != nil {
		return nil, fmt.Errorf("list latest locations: %w", err)
	}
	defer rows.Close()

	out := make([]domain.LocationPoint, 0, 16)
	for rows.Next() {
		p, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("list latest locations: scan row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list latest locations: row iteration: %w", err)
	}
	return out, nil
}
