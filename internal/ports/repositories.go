package ports

import (
	"context"
	"time"

	"distribution-service/internal/domain"
)

// Port: persistence of schedule visits.
type VisitRepository interface {
	// Return the visits of one (distributor, date), ordered by visit order.
	ListVisits(ctx context.Context, distributorID int64, date time.Time) ([]domain.ScheduleVisit, error)
	GetVisit(ctx context.Context, id string) (domain.ScheduleVisit, error)
	// Atomically apply a schedule diff, including trip creation.
	ApplyScheduleChanges(ctx context.Context, changes domain.ScheduleChangeSet) error
	// Persist the progress fields of v (status, actual times and duration, notes) only if the
	// stored status still equals expected; ErrConflict otherwise. Starting a visit whose day's
	// trip has ended fails with ErrInvalidStateTransition.
	UpdateVisitIf(ctx context.Context, v domain.ScheduleVisit, expected domain.VisitStatus) error
}

// Port: persistence of trips.
type TripRepository interface {
	GetTrip(ctx context.Context, id string) (domain.Trip, error)
	// Return the trip of one (distributor, date); ErrNotFound when none exists.
	FindTrip(ctx context.Context, distributorID int64, date time.Time) (domain.Trip, error)
	ListTrips(ctx context.Context, distributorID int64, date time.Time) ([]domain.Trip, error)
	// Persist t only if the stored status still equals expected; ErrConflict otherwise.
	// Completing while a visit of the day is in progress fails with ErrInvalidStateTransition.
	UpdateTripIf(ctx context.Context, t domain.Trip, expected domain.TripStatus) error
}

// Port: distributor identity and operational state.
type DistributorRepository interface {
	GetDistributor(ctx context.Context, id int64) (domain.Distributor, error)
	ListActiveDistributors(ctx context.Context) ([]domain.Distributor, error)
	UpdatePresence(ctx context.Context, id int64, loc domain.Coordinates, at time.Time) error
	UpdateOperationalState(ctx context.Context, id int64, state domain.OperationalState) error
}

// Port: read access to orders plus the two status transitions the core may trigger.
type OrderSource interface {
	// Return orders assigned to a distributor for a delivery date. Empty statuses means any status.
	ListAssignedOrders(ctx context.Context, distributorID int64, date time.Time, statuses []domain.OrderStatus) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, ids []int64, status domain.OrderStatus) error
}

// Port: stores assigned to a distributor for regular visits.
type StoreSource interface {
	ListAssignedStores(ctx context.Context, distributorID int64) ([]domain.Store, error)
}

// Port: append-only location history.
type LocationRepository interface {
	InsertLocation(ctx context.Context, p domain.LocationPoint) error
	// Return pings with from <= recorded_at <= to. newestFirst selects the ordering;
	// limit <= 0 means unlimited.
	ListLocations(ctx context.Context, distributorID int64, from, to time.Time, limit int, newestFirst bool) ([]domain.LocationPoint, error)
}

// Port: latest ping per distributor.
type LocationIndex interface {
	PutLatest(ctx context.Context, p domain.LocationPoint) error
	ListLatest(ctx context.Context) ([]domain.LocationPoint, error)
}

// Port: daily performance rollups.
type PerformanceRepository interface {
	// Insert or replace the record of (DistributorID, Date). The stored ID is kept on replace.
	UpsertPerformance(ctx context.Context, rec domain.PerformanceRecord) (domain.PerformanceRecord, error)
	GetPerformance(ctx context.Context, distributorID int64, date time.Time) (domain.PerformanceRecord, error)
}
