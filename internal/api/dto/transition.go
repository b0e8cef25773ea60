package dto

// TransitionRequest carries the optional free text of a visit or trip transition.
type TransitionRequest struct {
	Notes  string `json:"notes" validate:"max=2000"`
	Reason string `json:"reason" validate:"max=2000"`
}

type CompleteTripRequest struct {
	DistanceKm      *float64 `json:"distance_km" validate:"omitempty,gte=0"`
	FuelLiters      *float64 `json:"fuel_liters" validate:"omitempty,gte=0"`
	DurationMinutes *int     `json:"duration_minutes" validate:"omitempty,gte=0"`
	Notes           string   `json:"notes" validate:"max=2000"`
}
