package domain

import "time"

// LocationPoint is an immutable GPS ping. Points are append-only.
type LocationPoint struct {
	ID            string    `json:"id"`
	DistributorID int64     `json:"distributor_id" validate:"required,gt=0"`
	Latitude      float64   `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude     float64   `json:"longitude" validate:"gte=-180,lte=180"`
	Accuracy      *float64  `json:"accuracy,omitempty" validate:"omitempty,gte=0"`
	SpeedKmh      *float64  `json:"speed_kmh,omitempty"`
	Heading       *float64  `json:"heading,omitempty" validate:"omitempty,gte=0,lt=360"`
	BatteryLevel  *int      `json:"battery_level,omitempty" validate:"omitempty,gte=0,lte=100"`
	IsMoving      bool      `json:"is_moving"`
	ActivityType  string    `json:"activity_type,omitempty" validate:"omitempty,max=32"`
	RecordedAt    time.Time `json:"recorded_at" validate:"required"`
}

func (p LocationPoint) Coordinates() Coordinates {
	return Coordinates{Lat: p.Latitude, Lon: p.Longitude}
}

// LocationStats summarizes the pings of one distributor over a time window.
type LocationStats struct {
	DistributorID     int64     `json:"distributor_id"`
	From              time.Time `json:"from"`
	To                time.Time `json:"to"`
	PointCount        int       `json:"point_count"`
	TotalDistanceKm   float64   `json:"total_distance_km"`
	MovingMinutes     float64   `json:"moving_minutes"`
	StationaryMinutes float64   `json:"stationary_minutes"`
	MaxSpeedKmh       float64   `json:"max_speed_kmh"`
	AvgSpeedKmh       float64   `json:"avg_speed_kmh"`
}

// NearbyDistributor is a latest ping annotated with its distance to a query point.
type NearbyDistributor struct {
	DistributorID int64         `json:"distributor_id"`
	DistanceKm    float64       `json:"distance_km"`
	LastPing      LocationPoint `json:"last_ping"`
}
