package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"distribution-service/internal/adapters/memory"
	"distribution-service/internal/domain"
	"distribution-service/internal/platform/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// generatedDay seeds the Brussels day and generates its schedule.
func generatedDay(t *testing.T) (*memory.Repository, []domain.ScheduleVisit) {
	t.Helper()
	repo := memory.NewRepository()
	seedBrussels(repo)
	res, err := newTestGenerator(repo, nil).Generate(context.Background(), requestFor(repo, 7))
	require.NoError(t, err)
	return repo, res.Visits
}

func newTestVisitService(repo *memory.Repository, now time.Time) *VisitService {
	s := NewVisitService(repo, repo, repo, repo, logging.Discard())
	s.now = fixedClock(now)
	return s
}

func TestVisitStartCompleteDeliversOrders(t *testing.T) {
	ctx := context.Background()
	repo, visits := generatedDay(t)
	v := visits[0]

	s := newTestVisitService(repo, testDay.Add(9*time.Hour))
	started, err := s.Start(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VisitInProgress, started.VisitStatus)

	trip, err := repo.FindTrip(ctx, 7, testDay)
	require.NoError(t, err)
	assert.Equal(t, domain.TripInProgress, trip.Status)

	d, _ := repo.GetDistributor(ctx, 7)
	assert.Equal(t, domain.WorkingBusy, d.WorkingStatus)
	assert.Equal(t, trip.ID, d.CurrentTripID)

	s.now = fixedClock(testDay.Add(9*time.Hour + 25*time.Minute))
	done, err := s.Complete(ctx, v.ID, "left at the back door")
	require.NoError(t, err)
	assert.Equal(t, domain.VisitCompleted, done.VisitStatus)
	require.NotNil(t, done.ActualDurationMinutes)
	assert.Equal(t, 25, *done.ActualDurationMinutes)
	assert.Equal(t, "left at the back door", done.Notes)

	for _, id := range v.OrderIDs {
		o, _ := repo.Order(id)
		assert.Equal(t, domain.OrderDelivered, o.Status)
	}
}

func TestVisitCompleteBeforeStartIsRejected(t *testing.T) {
	repo, visits := generatedDay(t)
	s := newTestVisitService(repo, testDay.Add(9*time.Hour))

	_, err := s.Complete(context.Background(), visits[0].ID, "")
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	var te *domain.InvalidStateTransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "scheduled", te.From)
	assert.Equal(t, "completed", te.To)

	got, _ := repo.GetVisit(context.Background(), visits[0].ID)
	assert.Equal(t, domain.VisitScheduled, got.VisitStatus)
}

func TestVisitCancelAndFailOrderEffects(t *testing.T) {
	ctx := context.Background()
	repo, visits := generatedDay(t)
	s := newTestVisitService(repo, testDay.Add(9*time.Hour))

	cancelled, err := s.Cancel(ctx, visits[0].ID, "store closed")
	require.NoError(t, err)
	assert.Equal(t, domain.VisitCancelled, cancelled.VisitStatus)
	assert.NotNil(t, cancelled.ActualDepartureTime)
	o, _ := repo.Order(visits[0].OrderIDs[0])
	assert.Equal(t, domain.OrderCancelled, o.Status)

	failed, err := s.Fail(ctx, visits[1].ID, "no access")
	require.NoError(t, err)
	assert.Equal(t, domain.VisitFailed, failed.VisitStatus)
	o, _ = repo.Order(visits[1].OrderIDs[0])
	assert.Equal(t, domain.OrderConfirmed, o.Status)

	_, err = s.Start(ctx, visits[0].ID)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}

func TestVisitStartRejectedOnceTripCompleted(t *testing.T) {
	ctx := context.Background()
	repo, visits := generatedDay(t)
	vs := newTestVisitService(repo, testDay.Add(9*time.Hour))

	_, err := vs.Start(ctx, visits[0].ID)
	require.NoError(t, err)
	_, err = vs.Complete(ctx, visits[0].ID, "")
	require.NoError(t, err)

	trip, err := repo.FindTrip(ctx, 7, testDay)
	require.NoError(t, err)
	ts := NewTripService(repo, repo, repo, nil, 8, logging.Discard())
	ts.now = fixedClock(testDay.Add(10 * time.Hour))
	_, err = ts.Complete(ctx, trip.ID, domain.TripCompletion{})
	require.NoError(t, err)

	_, err = vs.Start(ctx, visits[1].ID)
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	assert.Contains(t, err.Error(), "trip is completed")

	got, err := repo.GetVisit(ctx, visits[1].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VisitScheduled, got.VisitStatus)
}

func TestVisitConcurrentStartHasOneWinner(t *testing.T) {
	ctx := context.Background()
	repo, visits := generatedDay(t)
	s := newTestVisitService(repo, testDay.Add(9*time.Hour))

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Start(ctx, visits[0].ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, isConflictOrTransition(err), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, wins)
}

func TestVisitUnknownID(t *testing.T) {
	repo, _ := generatedDay(t)
	s := newTestVisitService(repo, testDay)

	_, err := s.Start(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVisitScheduleRequiresKnownDistributor(t *testing.T) {
	repo, visits := generatedDay(t)
	s := newTestVisitService(repo, testDay)

	got, err := s.Schedule(context.Background(), 7, testDay.Add(13*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, visits, got)

	_, err = s.Schedule(context.Background(), 404, testDay)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
