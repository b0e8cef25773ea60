package domain

import "time"

// PerformanceRecord is the daily rollup for one distributor. (DistributorID, Date) is unique.
type PerformanceRecord struct {
	ID                   string    `json:"id"`
	DistributorID        int64     `json:"distributor_id"`
	Date                 time.Time `json:"date"`
	TotalTrips           int       `json:"total_trips"`
	CompletedTrips       int       `json:"completed_trips"`
	TotalOrders          int       `json:"total_orders"`
	CompletedOrders      int       `json:"completed_orders"`
	TotalVisits          int       `json:"total_visits"`
	CompletedVisits      int       `json:"completed_visits"`
	TotalDistanceKm      float64   `json:"total_distance_km"`
	TotalDurationMinutes int       `json:"total_duration_minutes"`
	FuelConsumedLiters   float64   `json:"fuel_consumed_liters"`
	OnTimeDeliveries     int       `json:"on_time_deliveries"`
	LateDeliveries       int       `json:"late_deliveries"`
	CompletionRate       float64   `json:"completion_rate"`
	OnTimeRate           float64   `json:"on_time_rate"`
	EfficiencyScore      float64   `json:"efficiency_score"`
	CalculatedAt         time.Time `json:"calculated_at"`
}

// ScoreWeights parameterizes the efficiency score:
// Completion*completionRate% + OnTime*onTimeRate% + Base, clamped to [0,100].
type ScoreWeights struct {
	Completion float64 `yaml:"completion"`
	OnTime     float64 `yaml:"on_time"`
	Base       float64 `yaml:"base"`
}

func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Completion: 0.4, OnTime: 0.4, Base: 20}
}

// Score computes the efficiency score from rates expressed as percentages.
func (w ScoreWeights) Score(completionPct, onTimePct float64) float64 {
	s := w.Completion*completionPct + w.OnTime*onTimePct + w.Base
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
