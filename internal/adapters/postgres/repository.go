package postgres

import (
	"database/sql"
	"errors"

	"distribution-service/internal/domain"
	"distribution-service/internal/ports"

	"github.com/jackc/pgx/v5/pgconn"
)

// Repository is the Postgres-backed implementation of the persistence ports.
type Repository struct{ DB *sql.DB }

var (
	_ ports.VisitRepository       = (*Repository)(nil)
	_ ports.TripRepository        = (*Repository)(nil)
	_ ports.DistributorRepository = (*Repository)(nil)
	_ ports.OrderSource           = (*Repository)(nil)
	_ ports.StoreSource           = (*Repository)(nil)
	_ ports.LocationRepository    = (*Repository)(nil)
	_ ports.LocationIndex         = (*Repository)(nil)
	_ ports.PerformanceRepository = (*Repository)(nil)
)

func NewRepository(db *sql.DB) *Repository {
	return &Repository{DB: db}
}

var errNilDB = errors.New("postgres repository: DB is nil")

type rowScanner interface {
	Scan(dest ...any) error
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullCoords(c *domain.Coordinates) (lat, lon sql.NullFloat64) {
	if c == nil {
		return lat, lon
	}
	return sql.NullFloat64{Float64: c.Lat, Valid: true}, sql.NullFloat64{Float64: c.Lon, Valid: true}
}

func coordsOf(lat, lon sql.NullFloat64) *domain.Coordinates {
	if !lat.Valid || !lon.Valid {
		return nil
	}
	return &domain.Coordinates{Lat: lat.Float64, Lon: lon.Float64}
}
