package handlers

import (
	"context"
	"net/http"

	"distribution-service/internal/api/dto"
	"distribution-service/internal/domain"
	"distribution-service/internal/services"
)

type VisitHandler struct {
	Visits *services.VisitService
}

func (h *VisitHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id string, _ dto.TransitionRequest) (domain.ScheduleVisit, error) {
		return h.Visits.Start(ctx, id)
	})
}

func (h *VisitHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id string, req dto.TransitionRequest) (domain.ScheduleVisit, error) {
		return h.Visits.Complete(ctx, id, req.Notes)
	})
}

func (h *VisitHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id string, req dto.TransitionRequest) (domain.ScheduleVisit, error) {
		return h.Visits.Cancel(ctx, id, req.Reason)
	})
}

func (h *VisitHandler) Fail(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id string, req dto.TransitionRequest) (domain.ScheduleVisit, error) {
		return h.Visits.Fail(ctx, id, req.Reason)
	})
}

func (h *VisitHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	apply func(context.Context, string, dto.TransitionRequest) (domain.ScheduleVisit, error),
) {
	var req dto.TransitionRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	v, err := apply(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, v)
}
