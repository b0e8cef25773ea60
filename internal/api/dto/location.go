package dto

import "time"

type LocationPingRequest struct {
	DistributorID int64      `json:"distributor_id" validate:"required,gt=0"`
	Latitude      *float64   `json:"latitude" validate:"required"`
	Longitude     *float64   `json:"longitude" validate:"required"`
	Accuracy      *float64   `json:"accuracy"`
	SpeedKmh      *float64   `json:"speed_kmh"`
	Heading       *float64   `json:"heading"`
	BatteryLevel  *int       `json:"battery_level"`
	IsMoving      bool       `json:"is_moving"`
	ActivityType  string     `json:"activity_type"`
	RecordedAt    *time.Time `json:"recorded_at"`
}
