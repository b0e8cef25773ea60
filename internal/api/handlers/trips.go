package handlers

import (
	"net/http"

	"distribution-service/internal/api/dto"
	"distribution-service/internal/domain"
	"distribution-service/internal/services"
)

type TripHandler struct {
	Trips *services.TripService
}

func (h *TripHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.Trips.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, t)
}

func (h *TripHandler) Start(w http.ResponseWriter, r *http.Request) {
	t, err := h.Trips.Start(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, t)
}

func (h *TripHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req dto.CompleteTripRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	t, err := h.Trips.Complete(r.Context(), r.PathValue("id"), domain.TripCompletion{
		DistanceKm:      req.DistanceKm,
		FuelLiters:      req.FuelLiters,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, t)
}

func (h *TripHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req dto.TransitionRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	t, err := h.Trips.Cancel(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, t)
}
