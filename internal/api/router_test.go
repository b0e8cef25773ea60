package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"distribution-service/internal/adapters/memory"
	"distribution-service/internal/domain"
	"distribution-service/internal/platform/logging"
	"distribution-service/internal/platform/metrics"
	"distribution-service/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var apiDay = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type fixture struct {
	repo    *memory.Repository
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	metrics.Register()

	repo := memory.NewRepository()
	repo.PutDistributor(domain.Distributor{
		ID: 7, Active: true, WorkingStatus: domain.WorkingAvailable,
		DepotLocation: &domain.Coordinates{Lat: 50.85, Lon: 4.35},
	})
	repo.PutDistributor(domain.Distributor{ID: 9, Active: false})

	stores := []domain.Coordinates{{Lat: 50.8503, Lon: 4.3517}, {Lat: 50.8467, Lon: 4.3525}, {Lat: 50.8333, Lon: 4.3667}}
	for i, c := range stores {
		c := c
		id := int64(i + 1)
		repo.PutStore(domain.Store{ID: id, Location: &c})
		repo.PutOrder(domain.Order{ID: 100 + id, DistributorID: 7, StoreID: id, Status: domain.OrderConfirmed, DeliveryDate: apiDay})
	}
	repo.AssignStores(7, 1, 2, 3)

	log := logging.Discard()
	optimizer := services.NewRouteOptimizer(nil, services.DefaultRouteOptimizerConfig(), log)
	generator := services.NewScheduleGenerator(repo, repo, optimizer, nil, services.DefaultScheduleConfig(), log)
	locations := services.NewLocationAggregator(repo, repo, repo, services.DefaultLocationConfig(), log)

	svc := Services{
		Orchestrator: services.NewOrchestrator(repo, repo, repo, generator, nil, services.DefaultOrchestratorConfig(), log),
		Visits:       services.NewVisitService(repo, repo, repo, repo, log),
		Trips:        services.NewTripService(repo, repo, repo, locations, 8, log),
		Locations:    locations,
		Performance:  services.NewPerformanceCalculator(repo, repo, repo, repo, repo, nil, services.DefaultPerformanceConfig(), log),
		Now:          func() time.Time { return apiDay.Add(7 * time.Hour) },
	}
	return &fixture{repo: repo, handler: NewRouter(svc, log)}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (f *fixture) generate(t *testing.T) services.GenerateResult {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/schedules/generate", map[string]any{"distributor_id": 7, "date": "2026-03-02"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[services.GenerateResult](t, rec)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"distribution"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGenerateAndReadSchedule(t *testing.T) {
	f := newFixture(t)

	res := f.generate(t)
	assert.Equal(t, 3, res.Created)
	assert.True(t, res.TripCreated)
	assert.Equal(t, domain.MethodNearestNeighbor, res.Method)

	rec := f.do(t, http.MethodGet, "/distributors/7/schedule?date=2026-03-02", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sched := decode[struct {
		Date   string                 `json:"date"`
		Visits []domain.ScheduleVisit `json:"visits"`
	}](t, rec)
	assert.Equal(t, "2026-03-02", sched.Date)
	require.Len(t, sched.Visits, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{sched.Visits[0].StoreID, sched.Visits[1].StoreID, sched.Visits[2].StoreID})

	again := f.generate(t)
	assert.False(t, again.Changed())
}

func TestGenerateErrors(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		body any
		want int
	}{
		{"unknown distributor", map[string]any{"distributor_id": 404}, http.StatusNotFound},
		{"inactive distributor", map[string]any{"distributor_id": 9}, http.StatusBadRequest},
		{"bad date", map[string]any{"distributor_id": 7, "date": "02/03/2026"}, http.StatusBadRequest},
		{"unknown field", `{"distributor":7}`, http.StatusBadRequest},
		{"two objects", `{} {}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/schedules/generate", tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestGenerateAllWithEmptyBody(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/schedules/generate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sum := decode[services.RunSummary](t, rec)
	assert.Equal(t, 1, sum.Distributors)
	assert.Empty(t, sum.Errors)
}

func TestVisitAndTripLifecycle(t *testing.T) {
	f := newFixture(t)
	res := f.generate(t)
	first := res.Visits[0]

	rec := f.do(t, http.MethodPost, "/visits/"+first.ID+"/start", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.VisitInProgress, decode[domain.ScheduleVisit](t, rec).VisitStatus)

	rec = f.do(t, http.MethodPost, "/visits/"+first.ID+"/start", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	trip, err := f.repo.FindTrip(context.Background(), 7, apiDay)
	require.NoError(t, err)
	assert.Equal(t, domain.TripInProgress, trip.Status)

	rec = f.do(t, http.MethodPost, "/trips/"+trip.ID+"/complete", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "completion must wait for the open visit")

	rec = f.do(t, http.MethodPost, "/visits/"+first.ID+"/complete", map[string]string{"notes": "left at back door"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "left at back door", decode[domain.ScheduleVisit](t, rec).Notes)

	rec = f.do(t, http.MethodPost, "/visits/"+res.Visits[1].ID+"/fail", map[string]string{"reason": "closed"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/trips/"+trip.ID+"/complete", map[string]any{"distance_km": 12.5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decode[domain.Trip](t, rec)
	assert.Equal(t, domain.TripCompleted, done.Status)
	assert.InDelta(t, 12.5, done.TotalDistanceKm, 1e-9)
	assert.InDelta(t, 1.0, done.FuelConsumedLiters, 1e-9)

	rec = f.do(t, http.MethodGet, "/trips/"+trip.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/visits/missing/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/trips/"+trip.ID+"/complete", map[string]any{"distance_km": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLocationEndpoints(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 2; i++ {
		rec := f.do(t, http.MethodPost, "/locations", map[string]any{
			"distributor_id": 7,
			"latitude":       50.85 + float64(i)*0.01,
			"longitude":      4.35,
			"is_moving":      true,
			"recorded_at":    now.Add(time.Duration(i-2) * time.Minute),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := f.do(t, http.MethodPost, "/locations", map[string]any{"distributor_id": 7, "latitude": 95.0, "longitude": 4.35})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/locations", map[string]any{"distributor_id": 7, "longitude": 4.35})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/locations", map[string]any{"distributor_id": 404, "latitude": 50.0, "longitude": 4.0})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/distributors/7/locations?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	hist := decode[struct {
		Locations []domain.LocationPoint `json:"locations"`
	}](t, rec)
	require.Len(t, hist.Locations, 1)
	assert.InDelta(t, 50.86, hist.Locations[0].Latitude, 1e-9)

	rec = f.do(t, http.MethodGet, "/distributors/7/location-stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[domain.LocationStats](t, rec)
	assert.Equal(t, 2, stats.PointCount)
	assert.Greater(t, stats.TotalDistanceKm, 1.0)

	rec = f.do(t, http.MethodGet, "/distributors/7/locations?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/distributors/nearby?lat=50.86&lon=4.35&radius_km=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	near := decode[struct {
		Distributors []domain.NearbyDistributor `json:"distributors"`
	}](t, rec)
	require.Len(t, near.Distributors, 1)
	assert.Equal(t, int64(7), near.Distributors[0].DistributorID)

	rec = f.do(t, http.MethodGet, "/distributors/nearby?lon=4.35&radius_km=5", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPerformanceDaily(t *testing.T) {
	f := newFixture(t)
	f.generate(t)

	rec := f.do(t, http.MethodPost, "/performance/daily", map[string]any{"distributor_id": 7, "date": "2026-03-02"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[domain.PerformanceRecord](t, rec)
	assert.Equal(t, 1, first.TotalTrips)
	assert.Equal(t, 3, first.TotalVisits)

	rec = f.do(t, http.MethodPost, "/performance/daily", map[string]any{"date": "2026-03-02"})
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decode[services.PerformanceSummary](t, rec)
	assert.Equal(t, 1, sum.Distributors)
	require.Len(t, sum.Records, 1)
	assert.Equal(t, first.EfficiencyScore, sum.Records[0].EfficiencyScore)

	rec = f.do(t, http.MethodPost, "/performance/daily", map[string]any{"distributor_id": 7})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
