package domain

import (
	"fmt"
	"time"
)

type TripStatus string

const (
	TripPlanned    TripStatus = "planned"
	TripInProgress TripStatus = "in_progress"
	TripCompleted  TripStatus = "completed"
	TripCancelled  TripStatus = "cancelled"
)

func (s TripStatus) Terminal() bool {
	return s == TripCompleted || s == TripCancelled
}

// Trip aggregates one distributor's working day. (DistributorID, TripDate) is unique.
type Trip struct {
	ID                   string     `json:"id"`
	DistributorID        int64      `json:"distributor_id"`
	TripDate             time.Time  `json:"trip_date"`
	Status               TripStatus `json:"status"`
	ActualStartTime      *time.Time `json:"actual_start_time,omitempty"`
	ActualEndTime        *time.Time `json:"actual_end_time,omitempty"`
	PlannedDistanceKm    float64    `json:"planned_distance_km"`
	TotalDistanceKm      float64    `json:"total_distance_km"`
	TotalDurationMinutes int        `json:"total_duration_minutes"`
	FuelConsumedLiters   float64    `json:"fuel_consumed_liters"`
	Notes                string     `json:"notes,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// TripCompletion carries caller-supplied figures. Nil fields are derived.
type TripCompletion struct {
	DistanceKm      *float64
	FuelLiters      *float64
	DurationMinutes *int
	Notes           string
}

func (t *Trip) transitionError(to TripStatus, reason string) error {
	return &InvalidStateTransitionError{
		Entity: "trip",
		ID:     t.ID,
		From:   string(t.Status),
		To:     string(to),
		Reason: reason,
	}
}

// Start begins the working day. Legal only from planned.
func (t *Trip) Start(now time.Time) error {
	if t.Status != TripPlanned {
		return t.transitionError(TripInProgress, "")
	}

	t.Status = TripInProgress
	t.ActualStartTime = &now
	t.UpdatedAt = now
	return nil
}

// Complete ends the working day. visits must be the trip's visits for its date;
// completion is rejected while any of them is still in progress.
func (t *Trip) Complete(now time.Time, visits []ScheduleVisit, in TripCompletion) error {
	if t.Status != TripInProgress {
		return t.transitionError(TripCompleted, "")
	}

	open := 0
	for _, v := range visits {
		if v.VisitStatus == VisitInProgress {
			open++
		}
	}
	if open > 0 {
		return t.transitionError(TripCompleted, fmt.Sprintf("%d visit(s) still in progress", open))
	}

	t.Status = TripCompleted
	t.ActualEndTime = &now

	switch {
	case in.DurationMinutes != nil:
		t.TotalDurationMinutes = *in.DurationMinutes
	case t.ActualStartTime != nil:
		mins := int(now.Sub(*t.ActualStartTime).Minutes())
		if mins < 0 {
			mins = 0
		}
		t.TotalDurationMinutes = mins
	}
	if in.DistanceKm != nil {
		t.TotalDistanceKm = *in.DistanceKm
	}
	if in.FuelLiters != nil {
		t.FuelConsumedLiters = *in.FuelLiters
	}
	if in.Notes != "" {
		t.Notes = in.Notes
	}
	t.UpdatedAt = now
	return nil
}

// Cancel abandons the day. Legal from any non-terminal state.
func (t *Trip) Cancel(now time.Time, reason string) error {
	if t.Status.Terminal() {
		return t.transitionError(TripCancelled, "")
	}

	t.Status = TripCancelled
	if t.ActualStartTime != nil && t.ActualEndTime == nil {
		t.ActualEndTime = &now
	}
	if reason != "" {
		t.Notes = reason
	}
	t.UpdatedAt = now
	return nil
}
