package handlers

import (
	"net/http"

	"distribution-service/internal/api/dto"
	"distribution-service/internal/domain"
	"distribution-service/internal/services"
)

type PerformanceHandler struct {
	Calculator *services.PerformanceCalculator
}

// Daily computes the rollup of one distributor, or of every active distributor.
func (h *PerformanceHandler) Daily(w http.ResponseWriter, r *http.Request) {
	var req dto.DailyPerformanceRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	date, err := domain.ParseDate(req.Date)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if req.DistributorID == nil {
		sum, err := h.Calculator.CalculateAll(r.Context(), date)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, sum)
		return
	}

	rec, err := h.Calculator.CalculateDaily(r.Context(), *req.DistributorID, date)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}
