package memory

import (
	"context"
	"testing"
	"time"

	"distribution-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func visit(id string, order int, status domain.VisitStatus) domain.ScheduleVisit {
	return domain.ScheduleVisit{
		ID:            id,
		DistributorID: 7,
		ScheduleDate:  day,
		StoreID:       int64(order * 10),
		VisitOrder:    order,
		VisitStatus:   status,
		OrderIDs:      []int64{int64(order)},
	}
}

func TestApplyScheduleChangesIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	r := NewRepository()
	r.PutVisit(visit("a", 1, domain.VisitInProgress))
	r.PutVisit(visit("b", 2, domain.VisitScheduled))

	upd := visit("a", 3, domain.VisitScheduled)
	err := r.ApplyScheduleChanges(ctx, domain.ScheduleChangeSet{
		DistributorID: 7,
		Date:          day,
		Insert:        []domain.ScheduleVisit{visit("c", 4, domain.VisitScheduled)},
		Update:        []domain.ScheduleVisit{upd},
	})
	require.ErrorIs(t, err, domain.ErrConflict)

	got, err := r.ListVisits(ctx, 7, day)
	require.NoError(t, err)
	require.Len(t, got, 2, "rejected change set must not insert")
	assert.Equal(t, domain.VisitInProgress, got[0].VisitStatus)
}

func TestApplyScheduleChangesRejectsDuplicateOrder(t *testing.T) {
	ctx := context.Background()
	r := NewRepository()
	r.PutVisit(visit("a", 1, domain.VisitInProgress))

	err := r.ApplyScheduleChanges(ctx, domain.ScheduleChangeSet{
		DistributorID: 7,
		Date:          day,
		Insert:        []domain.ScheduleVisit{visit("b", 1, domain.VisitScheduled)},
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestApplyScheduleChangesCreatesTripOnce(t *testing.T) {
	ctx := context.Background()
	r := NewRepository()
	trip := &domain.Trip{ID: "t1", DistributorID: 7, TripDate: day, Status: domain.TripPlanned}

	require.NoError(t, r.ApplyScheduleChanges(ctx, domain.ScheduleChangeSet{DistributorID: 7, Date: day, NewTrip: trip}))

	again := &domain.Trip{ID: "t2", DistributorID: 7, TripDate: day, Status: domain.TripPlanned}
	err := r.ApplyScheduleChanges(ctx, domain.ScheduleChangeSet{DistributorID: 7, Date: day, NewTrip: again})
	assert.ErrorIs(t, err, domain.ErrConflict)

	found, err := r.FindTrip(ctx, 7, day.Add(5*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "t1", found.ID)
}

func TestUpdateVisitIfDetectsLostRace(t *testing.T) {
	ctx := context.Background()
	r := NewRepository()
	r.PutVisit(visit("a", 1, domain.VisitScheduled))

	v, err := r.GetVisit(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, v.Start(day.Add(9*time.Hour)))
	require.NoError(t, r.UpdateVisitIf(ctx, v, domain.VisitScheduled))

	err = r.UpdateVisitIf(ctx, v, domain.VisitScheduled)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = r.GetVisit(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTripCompletionAndVisitStartGuards(t *testing.T) {
	ctx := context.Background()
	r := NewRepository()
	r.PutVisit(visit("a", 1, domain.VisitInProgress))
	r.PutVisit(visit("b", 2, domain.VisitScheduled))
	r.PutTrip(domain.Trip{ID: "t", DistributorID: 7, TripDate: day, Status: domain.TripInProgress})

	completed := domain.Trip{ID: "t", DistributorID: 7, TripDate: day, Status: domain.TripCompleted}
	err := r.UpdateTripIf(ctx, completed, domain.TripInProgress)
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	require.NoError(t, r.UpdateVisitIf(ctx, visit("a", 1, domain.VisitCompleted), domain.VisitInProgress))
	require.NoError(t, r.UpdateTripIf(ctx, completed, domain.TripInProgress))

	err = r.UpdateVisitIf(ctx, visit("b", 2, domain.VisitInProgress), domain.VisitScheduled)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	got, err := r.GetVisit(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, domain.VisitScheduled, got.VisitStatus)
}

func TestReturnedVisitsDoNotAliasStorage(t *testing.T) {
	ctx := context.Background()
	r := NewRepository()
	r.PutVisit(visit("a", 1, domain.VisitScheduled))

	v, _ := r.GetVisit(ctx, "a")
	v.OrderIDs[0] = 99

	again, _ := r.GetVisit(ctx, "a")
	assert.Equal(t, []int64{1}, again.OrderIDs)
}

func TestListLocationsWindowAndOrdering(t *testing.T) {
	ctx := context.Background()
	r := NewRepository()
	base := day.Add(8 * time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, r.InsertLocation(ctx, domain.LocationPoint{
			DistributorID: 7,
			RecordedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := r.ListLocations(ctx, 7, base.Add(time.Minute), base.Add(3*time.Minute), 0, true)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, base.Add(3*time.Minute), got[0].RecordedAt)

	got, _ = r.ListLocations(ctx, 7, base, base.Add(time.Hour), 2, false)
	require.Len(t, got, 2)
	assert.Equal(t, base, got[0].RecordedAt)
}

func TestUpsertPerformanceKeepsID(t *testing.T) {
	ctx := context.Background()
	r := NewRepository()

	first, err := r.UpsertPerformance(ctx, domain.PerformanceRecord{DistributorID: 7, Date: day, EfficiencyScore: 50})
	require.NoError(t, err)
	second, err := r.UpsertPerformance(ctx, domain.PerformanceRecord{DistributorID: 7, Date: day, EfficiencyScore: 70})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, r.PerformanceCount())

	got, err := r.GetPerformance(ctx, 7, day)
	require.NoError(t, err)
	assert.Equal(t, 70.0, got.EfficiencyScore)
}

func TestListAssignedOrdersFiltersStatusAndFillsLocation(t *testing.T) {
	ctx := context.Background()
	r := NewRepository()
	loc := domain.Coordinates{Lat: 50.86, Lon: 4.36}
	r.PutStore(domain.Store{ID: 10, Location: &loc})
	r.PutOrder(domain.Order{ID: 1, DistributorID: 7, StoreID: 10, Status: domain.OrderConfirmed, DeliveryDate: day})
	r.PutOrder(domain.Order{ID: 2, DistributorID: 7, StoreID: 10, Status: domain.OrderPending, DeliveryDate: day})
	r.PutOrder(domain.Order{ID: 3, DistributorID: 7, StoreID: 10, Status: domain.OrderConfirmed, DeliveryDate: day.AddDate(0, 0, 1)})

	got, err := r.ListAssignedOrders(ctx, 7, day, domain.SchedulableOrderStatuses)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
	require.NotNil(t, got[0].Location)
	assert.Equal(t, loc, *got[0].Location)
}
