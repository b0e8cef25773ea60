package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"distribution-service/internal/domain"
	"distribution-service/internal/platform/metrics"
	"distribution-service/internal/platform/obs"
	"distribution-service/internal/ports"

	"github.com/sirupsen/logrus"
)

// VisitService applies visit transitions with conditional writes on the prior status,
// so two concurrent callers cannot both move the same visit.
type VisitService struct {
	visits       ports.VisitRepository
	trips        ports.TripRepository
	distributors ports.DistributorRepository
	orders       ports.OrderSource
	log          logrus.FieldLogger
	now          func() time.Time
}

func NewVisitService(
	visits ports.VisitRepository,
	trips ports.TripRepository,
	distributors ports.DistributorRepository,
	orders ports.OrderSource,
	log logrus.FieldLogger,
) *VisitService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &VisitService{
		visits:       visits,
		trips:        trips,
		distributors: distributors,
		orders:       orders,
		log:          log.WithField("component", "visit_service"),
		now:          time.Now,
	}
}

// Schedule returns a distributor's visits for date in visit order.
func (s *VisitService) Schedule(ctx context.Context, distributorID int64, date time.Time) ([]domain.ScheduleVisit, error) {
	if _, err := s.distributors.GetDistributor(ctx, distributorID); err != nil {
		return nil, err
	}
	return s.visits.ListVisits(ctx, distributorID, domain.DateOf(date))
}

// Start marks arrival at the store. The day's trip is started too when still planned,
// and the distributor becomes busy.
func (s *VisitService) Start(ctx context.Context, id string) (v domain.ScheduleVisit, err error) {
	defer obs.Time(ctx, "visit.Start")(&err)

	now := s.now().UTC()
	v, err = s.transition(ctx, id, domain.VisitInProgress, func(v *domain.ScheduleVisit) error {
		if err := s.requireOpenTrip(ctx, *v); err != nil {
			return err
		}
		return v.Start(now)
	})
	if err != nil {
		return domain.ScheduleVisit{}, err
	}

	tripID, err := s.ensureTripStarted(ctx, v, now)
	if err != nil {
		s.log.WithError(err).WithField("visit_id", v.ID).Warn("could not start trip for visit")
	}

	date := v.ScheduleDate
	if err := s.distributors.UpdateOperationalState(ctx, v.DistributorID, domain.OperationalState{
		WorkingStatus:       domain.WorkingBusy,
		CurrentTripID:       tripID,
		CurrentScheduleDate: &date,
	}); err != nil {
		s.log.WithError(err).WithField("distributor_id", v.DistributorID).Warn("could not mark distributor busy")
	}

	return v, nil
}

// Complete records departure and marks the visit's orders delivered.
func (s *VisitService) Complete(ctx context.Context, id, notes string) (v domain.ScheduleVisit, err error) {
	defer obs.Time(ctx, "visit.Complete")(&err)

	now := s.now().UTC()
	v, err = s.transition(ctx, id, domain.VisitCompleted, func(v *domain.ScheduleVisit) error {
		return v.Complete(now, notes)
	})
	if err != nil {
		return domain.ScheduleVisit{}, err
	}

	s.updateOrders(ctx, v, domain.OrderDelivered)
	return v, nil
}

// Cancel ends the visit without delivery and cancels its orders.
func (s *VisitService) Cancel(ctx context.Context, id, reason string) (v domain.ScheduleVisit, err error) {
	defer obs.Time(ctx, "visit.Cancel")(&err)

	now := s.now().UTC()
	v, err = s.transition(ctx, id, domain.VisitCancelled, func(v *domain.ScheduleVisit) error {
		return v.Cancel(now, reason)
	})
	if err != nil {
		return domain.ScheduleVisit{}, err
	}

	s.updateOrders(ctx, v, domain.OrderCancelled)
	return v, nil
}

// Fail ends the visit as unsuccessful. Its orders stay open for a later visit.
func (s *VisitService) Fail(ctx context.Context, id, reason string) (v domain.ScheduleVisit, err error) {
	defer obs.Time(ctx, "visit.Fail")(&err)

	now := s.now().UTC()
	return s.transition(ctx, id, domain.VisitFailed, func(v *domain.ScheduleVisit) error {
		return v.Fail(now, reason)
	})
}

func (s *VisitService) transition(
	ctx context.Context,
	id string,
	to domain.VisitStatus,
	apply func(*domain.ScheduleVisit) error,
) (domain.ScheduleVisit, error) {
	v, err := s.visits.GetVisit(ctx, id)
	if err != nil {
		return domain.ScheduleVisit{}, err
	}

	from := v.VisitStatus
	if err := apply(&v); err != nil {
		recordTransition("visit", string(to), err)
		return domain.ScheduleVisit{}, err
	}

	if err := s.visits.UpdateVisitIf(ctx, v, from); err != nil {
		recordTransition("visit", string(to), err)
		return domain.ScheduleVisit{}, fmt.Errorf("visit %s: %w", id, err)
	}

	recordTransition("visit", string(to), nil)
	s.log.WithFields(logrus.Fields{
		"visit_id":       v.ID,
		"distributor_id": v.DistributorID,
		"from":           from,
		"to":             to,
	}).Info("visit transitioned")

	return v, nil
}

// requireOpenTrip rejects a start once the day's trip has ended. A day without a trip is open.
func (s *VisitService) requireOpenTrip(ctx context.Context, v domain.ScheduleVisit) error {
	trip, err := s.trips.FindTrip(ctx, v.DistributorID, v.ScheduleDate)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("visit %s: find trip: %w", v.ID, err)
	}
	if trip.Status.Terminal() {
		return &domain.InvalidStateTransitionError{
			Entity: "visit",
			ID:     v.ID,
			From:   string(v.VisitStatus),
			To:     string(domain.VisitInProgress),
			Reason: "trip is " + string(trip.Status),
		}
	}
	return nil
}

func (s *VisitService) ensureTripStarted(ctx context.Context, v domain.ScheduleVisit, now time.Time) (string, error) {
	trip, err := s.trips.FindTrip(ctx, v.DistributorID, v.ScheduleDate)
	if err != nil {
		return "", err
	}
	if trip.Status != domain.TripPlanned {
		return trip.ID, nil
	}

	if err := trip.Start(now); err != nil {
		return trip.ID, err
	}
	err = s.trips.UpdateTripIf(ctx, trip, domain.TripPlanned)
	if errors.Is(err, domain.ErrConflict) {
		// Someone else moved the trip first.
		return trip.ID, nil
	}
	recordTransition("trip", string(domain.TripInProgress), err)
	return trip.ID, err
}

func (s *VisitService) updateOrders(ctx context.Context, v domain.ScheduleVisit, status domain.OrderStatus) {
	if len(v.OrderIDs) == 0 {
		return
	}
	if err := s.orders.UpdateOrderStatus(ctx, v.OrderIDs, status); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"visit_id": v.ID,
			"status":   status,
		}).Error("could not update order status")
	}
}

func recordTransition(entity, to string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidStateTransition):
		result = "rejected"
	case errors.Is(err, domain.ErrConflict):
		result = "conflict"
	default:
		result = "error"
	}
	metrics.StateTransitions.WithLabelValues(entity, to, result).Inc()
}
