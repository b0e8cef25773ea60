package domain

import "time"

// ScheduleChangeSet is the diff the schedule generator applies for one (distributor, date).
// Repositories apply it atomically; updates and deletes only touch visits still scheduled.
// Reorder only moves visit_order and applies to visits in any status.
type ScheduleChangeSet struct {
	DistributorID int64
	Date          time.Time
	Insert        []ScheduleVisit
	Update        []ScheduleVisit
	Delete        []string
	Reorder       []VisitReorder
	NewTrip       *Trip
}

// VisitReorder moves one visit to a new position in the day.
type VisitReorder struct {
	ID         string
	VisitOrder int
}

func (c ScheduleChangeSet) Empty() bool {
	return len(c.Insert) == 0 && len(c.Update) == 0 && len(c.Delete) == 0 && len(c.Reorder) == 0 && c.NewTrip == nil
}
