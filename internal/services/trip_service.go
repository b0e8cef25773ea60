package services

import (
	"context"
	"fmt"
	"time"

	"distribution-service/internal/domain"
	"distribution-service/internal/platform/obs"
	"distribution-service/internal/ports"

	"github.com/sirupsen/logrus"
)

// TripStatistics yields location statistics over a time window.
type TripStatistics interface {
	Statistics(ctx context.Context, distributorID int64, from, to time.Time) (domain.LocationStats, error)
}

// TripService drives the trip state machine and keeps the distributor's operational state in step.
type TripService struct {
	trips        ports.TripRepository
	visits       ports.VisitRepository
	distributors ports.DistributorRepository
	stats        TripStatistics
	fuelPer100Km float64
	log          logrus.FieldLogger
	now          func() time.Time
}

// NewTripService builds the service. stats may be nil, in which case completion without a
// caller-supplied distance keeps the stored distance.
func NewTripService(
	trips ports.TripRepository,
	visits ports.VisitRepository,
	distributors ports.DistributorRepository,
	stats TripStatistics,
	fuelPer100Km float64,
	log logrus.FieldLogger,
) *TripService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TripService{
		trips:        trips,
		visits:       visits,
		distributors: distributors,
		stats:        stats,
		fuelPer100Km: fuelPer100Km,
		log:          log.WithField("component", "trip_service"),
		now:          time.Now,
	}
}

func (s *TripService) Get(ctx context.Context, id string) (domain.Trip, error) {
	return s.trips.GetTrip(ctx, id)
}

func (s *TripService) Start(ctx context.Context, id string) (t domain.Trip, err error) {
	defer obs.Time(ctx, "trip.Start")(&err)

	now := s.now().UTC()
	t, err = s.transition(ctx, id, domain.TripInProgress, func(t *domain.Trip) error {
		return t.Start(now)
	})
	if err != nil {
		return domain.Trip{}, err
	}

	date := t.TripDate
	s.setOperational(ctx, t.DistributorID, domain.OperationalState{
		WorkingStatus:       domain.WorkingBusy,
		CurrentTripID:       t.ID,
		CurrentScheduleDate: &date,
	})
	return t, nil
}

// Complete ends the trip once none of the day's visits is in progress.
// Missing distance is derived from the recorded pings between start and now; missing fuel
// from the distance and the configured consumption.
func (s *TripService) Complete(ctx context.Context, id string, in domain.TripCompletion) (t domain.Trip, err error) {
	defer obs.Time(ctx, "trip.Complete")(&err)

	now := s.now().UTC()

	t, err = s.trips.GetTrip(ctx, id)
	if err != nil {
		return domain.Trip{}, err
	}

	visits, err := s.visits.ListVisits(ctx, t.DistributorID, t.TripDate)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("complete trip %s: list visits: %w", id, err)
	}

	if in.DistanceKm == nil && s.stats != nil && t.ActualStartTime != nil {
		st, err := s.stats.Statistics(ctx, t.DistributorID, *t.ActualStartTime, now)
		if err != nil {
			s.log.WithError(err).WithField("trip_id", id).Warn("could not derive trip distance")
		} else if st.PointCount >= 2 {
			km := roundKm(st.TotalDistanceKm)
			in.DistanceKm = &km
		}
	}
	if in.FuelLiters == nil && in.DistanceKm != nil && s.fuelPer100Km > 0 {
		fuel := roundKm(*in.DistanceKm * s.fuelPer100Km / 100)
		in.FuelLiters = &fuel
	}

	from := t.Status
	if err := t.Complete(now, visits, in); err != nil {
		recordTransition("trip", string(domain.TripCompleted), err)
		return domain.Trip{}, err
	}
	if err := s.trips.UpdateTripIf(ctx, t, from); err != nil {
		recordTransition("trip", string(domain.TripCompleted), err)
		return domain.Trip{}, fmt.Errorf("trip %s: %w", id, err)
	}
	recordTransition("trip", string(domain.TripCompleted), nil)
	s.logTransition(t, from)

	s.setOperational(ctx, t.DistributorID, domain.OperationalState{WorkingStatus: domain.WorkingAvailable})
	return t, nil
}

func (s *TripService) Cancel(ctx context.Context, id, reason string) (t domain.Trip, err error) {
	defer obs.Time(ctx, "trip.Cancel")(&err)

	now := s.now().UTC()
	t, err = s.transition(ctx, id, domain.TripCancelled, func(t *domain.Trip) error {
		return t.Cancel(now, reason)
	})
	if err != nil {
		return domain.Trip{}, err
	}

	s.setOperational(ctx, t.DistributorID, domain.OperationalState{WorkingStatus: domain.WorkingAvailable})
	return t, nil
}

func (s *TripService) transition(
	ctx context.Context,
	id string,
	to domain.TripStatus,
	apply func(*domain.Trip) error,
) (domain.Trip, error) {
	t, err := s.trips.GetTrip(ctx, id)
	if err != nil {
		return domain.Trip{}, err
	}

	from := t.Status
	if err := apply(&t); err != nil {
		recordTransition("trip", string(to), err)
		return domain.Trip{}, err
	}
	if err := s.trips.UpdateTripIf(ctx, t, from); err != nil {
		recordTransition("trip", string(to), err)
		return domain.Trip{}, fmt.Errorf("trip %s: %w", id, err)
	}

	recordTransition("trip", string(to), nil)
	s.logTransition(t, from)
	return t, nil
}

func (s *TripService) logTransition(t domain.Trip, from domain.TripStatus) {
	s.log.WithFields(logrus.Fields{
		"trip_id":        t.ID,
		"distributor_id": t.DistributorID,
		"from":           from,
		"to":             t.Status,
	}).Info("trip transitioned")
}

func (s *TripService) setOperational(ctx context.Context, distributorID int64, st domain.OperationalState) {
	if err := s.distributors.UpdateOperationalState(ctx, distributorID, st); err != nil {
		s.log.WithError(err).WithField("distributor_id", distributorID).Warn("could not update distributor state")
	}
}
