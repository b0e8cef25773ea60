package dto

import "distribution-service/internal/domain"

type GenerateScheduleRequest struct {
	// DistributorID selects a single distributor. Omitted runs every active distributor for today.
	DistributorID *int64 `json:"distributor_id" validate:"omitempty,gt=0"`
	Date          string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type ScheduleResponse struct {
	DistributorID int64                  `json:"distributor_id"`
	Date          string                 `json:"date"`
	Visits        []domain.ScheduleVisit `json:"visits"`
}
