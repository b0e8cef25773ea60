package api

import (
	"net/http"
	"time"

	"distribution-service/internal/api/handlers"
	"distribution-service/internal/platform/metrics"
	"distribution-service/internal/services"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Services are the use cases exposed over HTTP.
type Services struct {
	Orchestrator *services.Orchestrator
	Visits       *services.VisitService
	Trips        *services.TripService
	Locations    *services.LocationAggregator
	Performance  *services.PerformanceCalculator
	// Now overrides the clock used for request defaults. Nil means time.Now.
	Now func() time.Time
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(svc Services, log logrus.FieldLogger) http.Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	handlers.Logger = log

	mux := http.NewServeMux()

	schedules := &handlers.ScheduleHandler{Orchestrator: svc.Orchestrator, Visits: svc.Visits, Now: svc.Now}
	visits := &handlers.VisitHandler{Visits: svc.Visits}
	trips := &handlers.TripHandler{Trips: svc.Trips}
	locations := &handlers.LocationHandler{Locations: svc.Locations, Now: svc.Now}
	performance := &handlers.PerformanceHandler{Calculator: svc.Performance}

	mux.HandleFunc("GET /health", handlers.Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("POST /schedules/generate", schedules.Generate)
	mux.HandleFunc("GET /distributors/{id}/schedule", schedules.Get)

	mux.HandleFunc("POST /visits/{id}/start", visits.Start)
	mux.HandleFunc("POST /visits/{id}/complete", visits.Complete)
	mux.HandleFunc("POST /visits/{id}/cancel", visits.Cancel)
	mux.HandleFunc("POST /visits/{id}/fail", visits.Fail)

	mux.HandleFunc("GET /trips/{id}", trips.Get)
	mux.HandleFunc("POST /trips/{id}/start", trips.Start)
	mux.HandleFunc("POST /trips/{id}/complete", trips.Complete)
	mux.HandleFunc("POST /trips/{id}/cancel", trips.Cancel)

	mux.HandleFunc("POST /locations", locations.Record)
	mux.HandleFunc("GET /distributors/{id}/locations", locations.History)
	mux.HandleFunc("GET /distributors/{id}/location-stats", locations.Stats)
	mux.HandleFunc("GET /distributors/nearby", locations.Nearby)

	mux.HandleFunc("POST /performance/daily", performance.Daily)

	return requestID(loggingMiddleware(mux, log))
}
