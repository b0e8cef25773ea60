package domain

import (
	"math"
	"strings"
	"time"
)

type VisitStatus string

const (
	VisitScheduled  VisitStatus = "scheduled"
	VisitInProgress VisitStatus = "in_progress"
	VisitCompleted  VisitStatus = "completed"
	VisitCancelled  VisitStatus = "cancelled"
	VisitFailed     VisitStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s VisitStatus) Terminal() bool {
	return s == VisitCompleted || s == VisitCancelled || s == VisitFailed
}

// ScheduleVisit is one planned stop of a distributor's daily route.
// (DistributorID, ScheduleDate, StoreID, VisitOrder) is unique.
type ScheduleVisit struct {
	ID                       string      `json:"id"`
	DistributorID            int64       `json:"distributor_id"`
	ScheduleDate             time.Time   `json:"schedule_date"`
	StoreID                  int64       `json:"store_id"`
	VisitOrder               int         `json:"visit_order"`
	VisitStatus              VisitStatus `json:"visit_status"`
	PlannedArrivalTime       *time.Time  `json:"planned_arrival_time,omitempty"`
	PlannedDepartureTime     *time.Time  `json:"planned_departure_time,omitempty"`
	ActualArrivalTime        *time.Time  `json:"actual_arrival_time,omitempty"`
	ActualDepartureTime      *time.Time  `json:"actual_departure_time,omitempty"`
	EstimatedDurationMinutes int         `json:"estimated_duration_minutes"`
	ActualDurationMinutes    *int        `json:"actual_duration_minutes,omitempty"`
	DistanceFromPreviousKm   float64     `json:"distance_from_previous_km"`
	OrderIDs                 []int64     `json:"order_ids"`
	IsRegularVisit           bool        `json:"is_regular_visit"`
	Notes                    string      `json:"notes,omitempty"`
	CreatedAt                time.Time   `json:"created_at"`
	UpdatedAt                time.Time   `json:"updated_at"`
}

func (v *ScheduleVisit) transitionError(to VisitStatus) error {
	return &InvalidStateTransitionError{
		Entity: "visit",
		ID:     v.ID,
		From:   string(v.VisitStatus),
		To:     string(to),
	}
}

// Start marks arrival at the store. Legal only from scheduled.
func (v *ScheduleVisit) Start(now time.Time) error {
	if v.VisitStatus != VisitScheduled {
		return v.transitionError(VisitInProgress)
	}

	v.VisitStatus = VisitInProgress
	v.ActualArrivalTime = &now
	v.UpdatedAt = now
	return nil
}

// Complete marks departure and derives the actual visit duration. Legal only from in_progress.
func (v *ScheduleVisit) Complete(now time.Time, notes string) error {
	if v.VisitStatus != VisitInProgress {
		return v.transitionError(VisitCompleted)
	}

	v.VisitStatus = VisitCompleted
	v.ActualDepartureTime = &now
	v.deriveDuration()
	v.appendNote(notes)
	v.UpdatedAt = now
	return nil
}

// Cancel ends the visit without delivery. Legal from scheduled or in_progress.
func (v *ScheduleVisit) Cancel(now time.Time, reason string) error {
	return v.abort(now, VisitCancelled, reason)
}

// Fail ends the visit as unsuccessful. Legal from scheduled or in_progress.
func (v *ScheduleVisit) Fail(now time.Time, reason string) error {
	return v.abort(now, VisitFailed, reason)
}

func (v *ScheduleVisit) abort(now time.Time, to VisitStatus, reason string) error {
	if v.VisitStatus != VisitScheduled && v.VisitStatus != VisitInProgress {
		return v.transitionError(to)
	}

	v.VisitStatus = to
	if v.ActualDepartureTime == nil {
		v.ActualDepartureTime = &now
	}
	v.deriveDuration()
	v.appendNote(reason)
	v.UpdatedAt = now
	return nil
}

func (v *ScheduleVisit) deriveDuration() {
	if v.ActualArrivalTime == nil || v.ActualDepartureTime == nil {
		return
	}

	mins := int(v.ActualDepartureTime.Sub(*v.ActualArrivalTime).Minutes())
	if mins < 0 {
		mins = 0
	}
	v.ActualDurationMinutes = &mins
}

func (v *ScheduleVisit) appendNote(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if v.Notes == "" {
		v.Notes = note
		return
	}
	v.Notes += "\n" + note
}

// DelayMinutes compares the time-of-day of planned and actual arrival, both read in the
// planned arrival's location. Positive means late, negative early. ok is false when either
// timestamp is missing.
func (v ScheduleVisit) DelayMinutes() (delay int, ok bool) {
	if v.PlannedArrivalTime == nil || v.ActualArrivalTime == nil {
		return 0, false
	}

	planned := *v.PlannedArrivalTime
	actual := v.ActualArrivalTime.In(planned.Location())
	d := minuteOfDay(actual) - minuteOfDay(planned)
	return int(math.Round(d)), true
}

// OnTime reports whether a visit with a known delay arrived no later than planned.
func (v ScheduleVisit) OnTime() (onTime bool, ok bool) {
	d, ok := v.DelayMinutes()
	if !ok {
		return false, false
	}
	return d <= 0, true
}
