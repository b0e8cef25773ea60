package dto

type DailyPerformanceRequest struct {
	// DistributorID selects a single distributor. Omitted computes every active distributor.
	DistributorID *int64 `json:"distributor_id" validate:"omitempty,gt=0"`
	Date          string `json:"date" validate:"required,datetime=2006-01-02"`
}
