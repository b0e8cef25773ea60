package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"distribution-service/internal/api/dto"
	"distribution-service/internal/domain"
	"distribution-service/internal/services"
)

type LocationHandler struct {
	Locations *services.LocationAggregator
	Now       func() time.Time
}

func (h *LocationHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req dto.LocationPingRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	recordedAt := time.Now()
	if h.Now != nil {
		recordedAt = h.Now()
	}
	if req.RecordedAt != nil {
		recordedAt = *req.RecordedAt
	}

	p, err := h.Locations.RecordPing(r.Context(), domain.LocationPoint{
		DistributorID: req.DistributorID,
		Latitude:      *req.Latitude,
		Longitude:     *req.Longitude,
		Accuracy:      req.Accuracy,
		SpeedKmh:      req.SpeedKmh,
		Heading:       req.Heading,
		BatteryLevel:  req.BatteryLevel,
		IsMoving:      req.IsMoving,
		ActivityType:  req.ActivityType,
		RecordedAt:    recordedAt,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, p)
}

func (h *LocationHandler) History(w http.ResponseWriter, r *http.Request) {
	id, from, to, ok := h.window(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeServiceError(w, r, domain.Validationf("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	points, err := h.Locations.History(r.Context(), id, from, to, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"locations": points})
}

func (h *LocationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, from, to, ok := h.window(w, r)
	if !ok {
		return
	}

	stats, err := h.Locations.Statistics(r.Context(), id, from, to)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

func (h *LocationHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	lat, err := queryFloat(r, "lat", true)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	lon, err := queryFloat(r, "lon", true)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	radius, err := queryFloat(r, "radius_km", true)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	found, err := h.Locations.NearbyDistributors(r.Context(), domain.Coordinates{Lat: lat, Lon: lon}, radius)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"distributors": found})
}

func (h *LocationHandler) window(w http.ResponseWriter, r *http.Request) (int64, time.Time, time.Time, bool) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return 0, time.Time{}, time.Time{}, false
	}
	from, err := queryTime(r, "from")
	if err != nil {
		writeServiceError(w, r, err)
		return 0, time.Time{}, time.Time{}, false
	}
	to, err := queryTime(r, "to")
	if err != nil {
		writeServiceError(w, r, err)
		return 0, time.Time{}, time.Time{}, false
	}
	return id, from, to, true
}
