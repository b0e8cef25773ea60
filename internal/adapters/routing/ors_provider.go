package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"distribution-service/internal/domain"
	"distribution-service/internal/platform/obs"
	"distribution-service/internal/ports"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const providerName = "openrouteservice"

// ORSOptions configures the OpenRouteService optimization client.
type ORSOptions struct {
	APIKey        string
	BaseURL       string
	Profile       string
	Timeout       time.Duration
	WaypointLimit int
	// MaxAttempts bounds retries of transient failures. Defaults to 3.
	MaxAttempts int
	// HTTPClient overrides the default client. Used by tests.
	HTTPClient *http.Client
}

// ORSProvider implements ports.RouteProvider on the OpenRouteService optimization endpoint.
//
// Every call goes through a circuit breaker: after repeated failures the provider is skipped
// until the breaker half-opens, and callers fall back to the local heuristic in the meantime.
//
// The provider is safe for concurrent use.
type ORSProvider struct {
	session       *http.Client
	apiKey        string
	baseURL       string
	profile       string
	waypointLimit int
	maxAttempts   int
	retryBackoff  time.Duration
	breaker       *gobreaker.CircuitBreaker
	log           logrus.FieldLogger
}

var _ ports.RouteProvider = (*ORSProvider)(nil)

func NewORSProvider(opts ORSOptions, log logrus.FieldLogger) (*ORSProvider, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("ORS api key is empty")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openrouteservice.org"
	}
	if opts.Profile == "" {
		opts.Profile = "driving-car"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.WaypointLimit <= 0 {
		opts.WaypointLimit = 25
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}

	session := opts.HTTPClient
	if session == nil {
		session = &http.Client{Timeout: opts.Timeout}
	}

	p := &ORSProvider{
		session:       session,
		apiKey:        opts.APIKey,
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		profile:       opts.Profile,
		waypointLimit: opts.WaypointLimit,
		maxAttempts:   opts.MaxAttempts,
		retryBackoff:  200 * time.Millisecond,
		log:           log.WithField("provider", providerName),
	}

	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        providerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	})

	return p, nil
}

func (o *ORSProvider) WaypointLimit() int { return o.waypointLimit }

type optimizationJob struct {
	ID       int       `json:"id"`
	Location []float64 `json:"location"`
}

type optimizationVehicle struct {
	ID      int       `json:"id"`
	Profile string    `json:"profile"`
	Start   []float64 `json:"start"`
}

type optimizationRequest struct {
	Jobs     []optimizationJob     `json:"jobs"`
	Vehicles []optimizationVehicle `json:"vehicles"`
	Options  map[string]bool       `json:"options,omitempty"`
}

type optimizationStep struct {
	Type     string   `json:"type"`
	Job      int      `json:"job"`
	Distance *float64 `json:"distance"`
	Duration float64  `json:"duration"`
}

type optimizationRoute struct {
	Steps []optimizationStep `json:"steps"`
}

type optimizationResponse struct {
	Code       int                 `json:"code"`
	Error      string              `json:"error"`
	Routes     []optimizationRoute `json:"routes"`
	Unassigned []struct {
		ID int `json:"id"`
	} `json:"unassigned"`
}

// OptimizeRoute asks ORS to order req.Destinations from req.Origin for a single vehicle.
// Job ids are destination indices plus one. Step distances and durations are cumulative
// from the vehicle start, so legs are recovered by differencing consecutive steps.
func (o *ORSProvider) OptimizeRoute(ctx context.Context, req ports.RouteRequest) (_ ports.RouteResponse, err error) {
	defer obs.Time(ctx, "ors.OptimizeRoute")(&err)

	if len(req.Destinations) == 0 {
		return ports.RouteResponse{}, nil
	}
	if len(req.Destinations) > o.waypointLimit {
		return ports.RouteResponse{}, &domain.ExternalProviderError{
			Provider: providerName,
			Err:      fmt.Errorf("%d destinations exceed waypoint limit %d", len(req.Destinations), o.waypointLimit),
		}
	}

	out, err := o.breaker.Execute(func() (interface{}, error) {
		return o.optimize(ctx, req)
	})
	if err != nil {
		return ports.RouteResponse{}, wrapProviderError(err)
	}

	return out.(ports.RouteResponse), nil
}

func (o *ORSProvider) optimize(ctx context.Context, req ports.RouteRequest) (ports.RouteResponse, error) {
	body := optimizationRequest{
		Jobs: make([]optimizationJob, 0, len(req.Destinations)),
		Vehicles: []optimizationVehicle{{
			ID:      1,
			Profile: o.profile,
			Start:   req.Origin.CoordsToList(),
		}},
		// g=true returns per-step distances.
		Options: map[string]bool{"g": true},
	}
	for i, d := range req.Destinations {
		body.Jobs = append(body.Jobs, optimizationJob{ID: i + 1, Location: d.CoordsToList()})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return ports.RouteResponse{}, fmt.Errorf("marshal optimization request: %w", err)
	}

	endpoint := o.baseURL + "/optimization"
	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		return o.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return ports.RouteResponse{}, fmt.Errorf("optimization request failed: %w", err)
	}
	defer resp.Body.Close()

	var or optimizationResponse
	if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
		return ports.RouteResponse{}, fmt.Errorf("decode optimization response: %w", err)
	}

	return parseOptimization(or, len(req.Destinations))
}

func parseOptimization(or optimizationResponse, n int) (ports.RouteResponse, error) {
	if or.Code != 0 {
		return ports.RouteResponse{}, fmt.Errorf("optimization returned code %d: %s", or.Code, or.Error)
	}
	if len(or.Unassigned) > 0 {
		return ports.RouteResponse{}, fmt.Errorf("optimization left %d job(s) unassigned", len(or.Unassigned))
	}
	if len(or.Routes) != 1 {
		return ports.RouteResponse{}, fmt.Errorf("expected 1 route; got %d", len(or.Routes))
	}

	out := ports.RouteResponse{
		OrderedIndices:      make([]int, 0, n),
		LegDistancesKm:      make([]float64, 0, n),
		LegDurationsMinutes: make([]float64, 0, n),
	}

	seen := make(map[int]struct{}, n)
	var prevMeters, prevSeconds float64

	for _, s := range or.Routes[0].Steps {
		if s.Type != "job" {
			continue
		}

		idx := s.Job - 1
		if idx < 0 || idx >= n {
			return ports.RouteResponse{}, fmt.Errorf("optimization returned unknown job %d", s.Job)
		}
		if _, dup := seen[idx]; dup {
			return ports.RouteResponse{}, fmt.Errorf("optimization returned job %d twice", s.Job)
		}
		if s.Distance == nil {
			return ports.RouteResponse{}, fmt.Errorf("optimization step for job %d has no distance", s.Job)
		}
		seen[idx] = struct{}{}

		legMeters := *s.Distance - prevMeters
		legSeconds := s.Duration - prevSeconds
		prevMeters, prevSeconds = *s.Distance, s.Duration

		out.OrderedIndices = append(out.OrderedIndices, idx)
		out.LegDistancesKm = append(out.LegDistancesKm, legMeters/1000)
		out.LegDurationsMinutes = append(out.LegDurationsMinutes, legSeconds/60)
	}

	if len(out.OrderedIndices) != n {
		return ports.RouteResponse{}, fmt.Errorf("optimization visited %d of %d jobs", len(out.OrderedIndices), n)
	}

	return out, nil
}

func wrapProviderError(err error) error {
	var pe *domain.ExternalProviderError
	if errors.As(err, &pe) {
		return err
	}

	status := 0
	var he *httpStatusError
	if errors.As(err, &he) {
		status = he.Code
	}
	return &domain.ExternalProviderError{Provider: providerName, StatusCode: status, Err: err}
}
