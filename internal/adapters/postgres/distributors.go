package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"distribution-service/internal/domain"
)

const distributorColumns = `
	id, name, active, working_status, is_online, current_schedule_date, current_trip_id,
	current_lat, current_lon, depot_lat, depot_lon, last_location_update`

func scanDistributor(row rowScanner) (domain.Distributor, error) {
	var d domain.Distributor
	var status string
	var curLat, curLon, depotLat, depotLon sql.NullFloat64

	err := row.Scan(
		&d.ID, &d.Name, &d.Active, &status, &d.IsOnline, &d.CurrentScheduleDate, &d.CurrentTripID,
		&curLat, &curLon, &depotLat, &depotLon, &d.LastLocationUpdate,
	)
	if err != nil {
		return domain.Distributor{}, err
	}

	d.WorkingStatus = domain.WorkingStatus(status)
	d.CurrentLocation = coordsOf(curLat, curLon)
	d.DepotLocation = coordsOf(depotLat, depotLon)
	return d, nil
}

func (r *Repository) GetDistributor(ctx context.Context, id int64) (domain.Distributor, error) {
	if r.DB == nil {
		return domain.Distributor{}, errNilDB
	}

	row := r.DB.QueryRowContext(ctx, `SELECT`+distributorColumns+` FROM distributors WHERE id = $1;`, id)
	d, err := scanDistributor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Distributor{}, fmt.Errorf("distributor %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Distributor{}, fmt.Errorf("get distributor %d: %w", id, err)
	}
	return d, nil
}

func (r *Repository) ListActiveDistributors(ctx context.Context) ([]domain.Distributor, error) {
	if r.DB == nil {
		return nil, errNilDB
	}

	rows, err := r.DB.QueryContext(ctx, `SELECT`+distributorColumns+` FROM distributors WHERE active ORDER BY id;`)
	if err != nil {
		return nil, fmt.Errorf("list distributors: query distributors table: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Distributor, 0, 16)
	for rows.Next() {
		d, err := scanDistributor(rows)
		if err != nil {
			return nil, fmt.Errorf("list distributors: scan row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list distributors: row iteration: %w", err)
	}
	return out, nil
}

// UpdatePresence ignores pings older than the stored last update.
func (r *Repository) UpdatePresence(ctx context.Context, id int64, loc domain.Coordinates, at time.Time) error {
	if r.DB == nil {
		return errNilDB
	}

	res, err := r.DB.ExecContext(ctx, `
	UPDATE distributors
	SET current_lat = $2, current_lon = $3, last_location_update = $4, is_online = TRUE
	WHERE id = $1
		AND (last_location_update IS NULL OR last_location_update <= $4);
	`, id, loc.Lat, loc.Lon, at)
	if err != nil {
		return fmt.Errorf("update presence %d: %w", id, err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return r.requireDistributor(ctx, id)
	}
	return nil
}

func (r *Repository) UpdateOperationalState(ctx context.Context, id int64, s domain.OperationalState) error {
	if r.DB == nil {
		return errNilDB
	}

	var date any
	if s.CurrentScheduleDate != nil {
		date = domain.DateOf(*s.CurrentScheduleDate)
	}

	res, err := r.DB.ExecContext(ctx, `
	UPDATE distributors
	SET working_status = $2, current_trip_id = $3, current_schedule_date = $4
	WHERE id = $1;
	`, id, string(s.WorkingStatus), s.CurrentTripID, date)
	if err != nil {
		return fmt.Errorf("update operational state %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("distributor %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *Repository) requireDistributor(ctx context.Context, id int64) error {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM distributors WHERE id = $1);`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("distributor %d: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("distributor %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Orders and stores

func (r *Repository) ListAssignedOrders(ctx context.Context, distributorID int64, date time.Time, statuses []domain.OrderStatus) ([]domain.Order, error) {
	if r.DB == nil {
		return nil, errNilDB
	}

	want := make([]string, 0, len(statuses))
	for _, s := range statuses {
		want = append(want, string(s))
	}

	q := `
	SELECT o.id, o.distributor_id, o.store_id, o.priority, o.status, o.delivery_date, s.lat, s.lon
	FROM orders o
	LEFT JOIN stores s ON s.id = o.store_id
	WHERE o.distributor_id = $1
		AND o.delivery_date = $2
		AND (cardinality($3::text[]) = 0 OR o.status = ANY($3::text[]))
	ORDER BY o.id;
	`
	rows, err := r.DB.QueryContext(ctx, q, distributorID, domain.DateOf(date), want)
	if err != nil {
		return nil, fmt.Errorf("list orders: query orders table: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Order, 0, 32)
	for rows.Next() {
		var o domain.Order
		var status string
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&o.ID, &o.DistributorID, &o.StoreID, &o.Priority, &status, &o.DeliveryDate, &lat, &lon); err != nil {
			return nil, fmt.Errorf("list orders: scan row: %w", err)
		}
		o.Status = domain.OrderStatus(status)
		o.Location = coordsOf(lat, lon)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: row iteration: %w", err)
	}
	return out, nil
}

func (r *Repository) UpdateOrderStatus(ctx context.Context, ids []int64, status domain.OrderStatus) error {
	if r.DB == nil {
		return errNilDB
	}
	if len(ids) == 0 {
		return nil
	}

	_, err := r.DB.ExecContext(ctx, `UPDATE orders SET status = $2 WHERE id = ANY($1::bigint[]);`, ids, string(status))
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}

func (r *Repository) ListAssignedStores(ctx context.Context, distributorID int64) ([]domain.Store, error) {
	if r.DB == nil {
		return nil, errNilDB
	}

	rows, err := r.DB.QueryContext(ctx, `
	SELECT s.id, s.name, s.address, s.lat, s.lon
	FROM distributor_stores ds
	JOIN stores s ON s.id = ds.store_id
	WHERE ds.distributor_id = $1
	ORDER BY ds.position, s.id;
	`, distributorID)
	if err != nil {
		return nil, fmt.Errorf("list stores: query distributor_stores table: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Store, 0, 16)
	for rows.Next() {
		var s domain.Store
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&s.ID, &s.Name, &s.Address, &lat, &lon); err != nil {
			return nil, fmt.Errorf("list stores: scan row: %w", err)
		}
		s.Location = coordsOf(lat, lon)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stores: row iteration: %w", err)
	}
	return out, nil
}
