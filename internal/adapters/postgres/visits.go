package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"distribution-service/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
)

const visitColumns = `
	id, distributor_id, schedule_date, store_id, visit_order, visit_status,
	planned_arrival_time, planned_departure_time, actual_arrival_time, actual_departure_time,
	estimated_duration_minutes, actual_duration_minutes, distance_from_previous_km,
	order_ids, is_regular_visit, notes, created_at, updated_at`

func scanVisit(m *pgtype.Map, row rowScanner) (domain.ScheduleVisit, error) {
	var v domain.ScheduleVisit
	var status string
	var orderIDs []int64

	err := row.Scan(
		&v.ID, &v.DistributorID, &v.ScheduleDate, &v.StoreID, &v.VisitOrder, &status,
		&v.PlannedArrivalTime, &v.PlannedDepartureTime, &v.ActualArrivalTime, &v.ActualDepartureTime,
		&v.EstimatedDurationMinutes, &v.ActualDurationMinutes, &v.DistanceFromPreviousKm,
		m.SQLScanner(&orderIDs), &v.IsRegularVisit, &v.Notes, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return domain.ScheduleVisit{}, err
	}

	v.VisitStatus = domain.VisitStatus(status)
	v.OrderIDs = orderIDs
	return v, nil
}

func visitArgs(v domain.ScheduleVisit) []any {
	orderIDs := v.OrderIDs
	if orderIDs == nil {
		orderIDs = []int64{}
	}
	return []any{
		v.ID, v.DistributorID, domain.DateOf(v.ScheduleDate), v.StoreID, v.VisitOrder, string(v.VisitStatus),
		v.PlannedArrivalTime, v.PlannedDepartureTime, v.ActualArrivalTime, v.ActualDepartureTime,
		v.EstimatedDurationMinutes, v.ActualDurationMinutes, v.DistanceFromPreviousKm,
		orderIDs, v.IsRegularVisit, v.Notes, v.CreatedAt, v.UpdatedAt,
	}
}

const insertVisitQuery = `
	INSERT INTO schedule_visits (` + visitColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18);
	`

// updateVisitQuery rewrites every mutable column of a visit whose status is still $19.
const updateVisitQuery = `
	UPDATE schedule_visits
	SET store_id = $4, visit_order = $5, visit_status = $6,
		planned_arrival_time = $7, planned_departure_time = $8,
		actual_arrival_time = $9, actual_departure_time = $10,
		estimated_duration_minutes = $11, actual_duration_minutes = $12,
		distance_from_previous_km = $13, order_ids = $14, is_regular_visit = $15,
		notes = $16, updated_at = $18
	WHERE id = $1 AND distributor_id = $2 AND schedule_date = $3 AND visit_status = $19;
	`

// progressVisitQuery writes the fields a visit transition may change while the status is still $7.
const progressVisitQuery = `
	UPDATE schedule_visits
	SET visit_status = $2, actual_arrival_time = $3, actual_departure_time = $4,
		actual_duration_minutes = $5, notes = $6, updated_at = $8
	WHERE id = $1 AND visit_status = $7;
	`

func (r *Repository) ListVisits(ctx context.Context, distributorID int64, date time.Time) ([]domain.ScheduleVisit, error) {
	if r.DB == nil {
		return nil, errNilDB
	}

	rows, err := r.DB.QueryContext(ctx, `
	SELECT`+visitColumns+`
	FROM schedule_visits
	WHERE distributor_id = $1 AND schedule_date = $2
	ORDER BY visit_order, id;
	`, distributorID, domain.DateOf(date))
	if err != nil {
		return nil, fmt.Errorf("list visits: query schedule_visits table: %w", err)
	}
	defer rows.Close()

	m := pgtype.NewMap()
	out := make([]domain.ScheduleVisit, 0, 16)
	for rows.Next() {
		v, err := scanVisit(m, rows)
		if err != nil {
			return nil, fmt.Errorf("list visits: scan row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list visits: row iteration: %w", err)
	}
	return out, nil
}

func (r *Repository) GetVisit(ctx context.Context, id string) (domain.ScheduleVisit, error) {
	if r.DB == nil {
		return domain.ScheduleVisit{}, errNilDB
	}

	row := r.DB.QueryRowContext(ctx, `SELECT`+visitColumns+` FROM schedule_visits WHERE id = $1;`, id)
	v, err := scanVisit(pgtype.NewMap(), row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ScheduleVisit{}, fmt.Errorf("visit %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.ScheduleVisit{}, fmt.Errorf("get visit %s: %w", id, err)
	}
	return v, nil
}

// ApplyScheduleChanges applies the diff in one transaction. The visit-order uniqueness
// constraint is deferred to commit so stops can swap positions.
func (r *Repository) ApplyScheduleChanges(ctx context.Context, c domain.ScheduleChangeSet) error {
	if r.DB == nil {
		return errNilDB
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply schedule: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range c.Delete {
		res, err := tx.ExecContext(ctx, `DELETE FROM schedule_visits WHERE id = $1 AND visit_status = $2;`, id, string(domain.VisitScheduled))
		if err != nil {
			return fmt.Errorf("apply schedule: delete visit %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			if err := visitGuardError(ctx, tx, id, true); err != nil {
				return fmt.Errorf("apply schedule: delete visit %s: %w", id, err)
			}
		}
	}

	for _, u := range c.Update {
		args := append(visitArgs(u), string(domain.VisitScheduled))
		res, err := tx.ExecContext(ctx, updateVisitQuery, args...)
		if err != nil {
			return fmt.Errorf("apply schedule: update visit %s: %w", u.ID, conflictOr(err))
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("apply schedule: update visit %s: %w", u.ID, visitGuardError(ctx, tx, u.ID, false))
		}
	}

	for _, m := range c.Reorder {
		res, err := tx.ExecContext(ctx, `
		UPDATE schedule_visits SET visit_order = $2
		WHERE id = $1 AND distributor_id = $3 AND schedule_date = $4;
		`, m.ID, m.VisitOrder, c.DistributorID, domain.DateOf(c.Date))
		if err != nil {
			return fmt.Errorf("apply schedule: reorder visit %s: %w", m.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("apply schedule: reorder visit %s: %w", m.ID, domain.ErrNotFound)
		}
	}

	for _, in := range c.Insert {
		if _, err := tx.ExecContext(ctx, insertVisitQuery, visitArgs(in)...); err != nil {
			return fmt.Errorf("apply schedule: insert visit %s: %w", in.ID, conflictOr(err))
		}
	}

	if c.NewTrip != nil {
		if _, err := tx.ExecContext(ctx, insertTripQuery, tripArgs(*c.NewTrip)...); err != nil {
			return fmt.Errorf("apply schedule: insert trip %s: %w", c.NewTrip.ID, conflictOr(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply schedule: commit tx: %w", conflictOr(err))
	}
	return nil
}

// visitGuardError explains why a conditional write touched no row.
// A missing visit is tolerated for deletes.
func visitGuardError(ctx context.Context, tx *sql.Tx, id string, missingOK bool) error {
	var status string
	err := tx.QueryRowContext(ctx, `SELECT visit_status FROM schedule_visits WHERE id = $1;`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		if missingOK {
			return nil
		}
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("visit is %s: %w", status, domain.ErrConflict)
}

func conflictOr(err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}
	return err
}

// UpdateVisitIf writes the progress fields of v when the stored status is still expected.
// Starting a visit takes the row lock on the day's trip first, which orders it against
// trip completion.
func (r *Repository) UpdateVisitIf(ctx context.Context, v domain.ScheduleVisit, expected domain.VisitStatus) error {
	if r.DB == nil {
		return errNilDB
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update visit %s: begin tx: %w", v.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	if v.VisitStatus == domain.VisitInProgress {
		status, found, err := lockDayTrip(ctx, tx, v.DistributorID, v.ScheduleDate)
		if err != nil {
			return fmt.Errorf("update visit %s: %w", v.ID, err)
		}
		if found && status.Terminal() {
			return &domain.InvalidStateTransitionError{
				Entity: "visit",
				ID:     v.ID,
				From:   string(expected),
				To:     string(v.VisitStatus),
				Reason: "trip is " + string(status),
			}
		}
	}

	res, err := tx.ExecContext(ctx, progressVisitQuery,
		v.ID, string(v.VisitStatus), v.ActualArrivalTime, v.ActualDepartureTime,
		v.ActualDurationMinutes, v.Notes, string(expected), v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update visit %s: %w", v.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update visit %s: %w", v.ID, visitGuardError(ctx, tx, v.ID, false))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update visit %s: commit tx: %w", v.ID, err)
	}
	return nil
}
