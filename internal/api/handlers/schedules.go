package handlers

import (
	"net/http"
	"time"

	"distribution-service/internal/api/dto"
	"distribution-service/internal/domain"
	"distribution-service/internal/services"
)

type ScheduleHandler struct {
	Orchestrator *services.Orchestrator
	Visits       *services.VisitService
	Now          func() time.Time
}

// Generate regenerates one distributor's schedule, or runs the whole orchestrator pass
// when no distributor is given.
func (h *ScheduleHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req dto.GenerateScheduleRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	if req.DistributorID == nil {
		sum, err := h.Orchestrator.RunOnce(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		status := http.StatusOK
		if sum.Skipped {
			status = http.StatusAccepted
		}
		writeJSON(w, r, status, sum)
		return
	}

	var date time.Time
	if req.Date != "" {
		d, err := domain.ParseDate(req.Date)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		date = d
	}

	res, err := h.Orchestrator.GenerateForDistributor(r.Context(), *req.DistributorID, date)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	date, err := queryDate(r, "date", h.now())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	visits, err := h.Visits.Schedule(r.Context(), id, date)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ScheduleResponse{
		DistributorID: id,
		Date:          date.Format(domain.DateLayout),
		Visits:        visits,
	})
}

func (h *ScheduleHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
