package domain

import "time"

type WorkingStatus string

const (
	WorkingAvailable WorkingStatus = "available"
	WorkingBusy      WorkingStatus = "busy"
	WorkingBreak     WorkingStatus = "break"
	WorkingOffline   WorkingStatus = "offline"
)

// Distributor is owned by the user subsystem. The scheduling core reads identity and
// location and updates only the operational fields.
type Distributor struct {
	ID                  int64
	Name                string
	Active              bool
	WorkingStatus       WorkingStatus
	IsOnline            bool
	CurrentScheduleDate *time.Time
	CurrentTripID       string
	CurrentLocation     *Coordinates
	DepotLocation       *Coordinates
	LastLocationUpdate  *time.Time
}

// RouteOrigin returns the point a daily route starts from: the depot, then the last known
// location, then fallback.
func (d Distributor) RouteOrigin(fallback Coordinates) Coordinates {
	if d.DepotLocation != nil {
		return *d.DepotLocation
	}
	if d.CurrentLocation != nil {
		return *d.CurrentLocation
	}
	return fallback
}

// OperationalState is the subset of Distributor the core is allowed to write.
type OperationalState struct {
	WorkingStatus       WorkingStatus
	CurrentTripID       string
	CurrentScheduleDate *time.Time
}
