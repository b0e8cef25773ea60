package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"time"

	"distribution-service/internal/domain"
	"distribution-service/internal/platform/metrics"
	"distribution-service/internal/platform/obs"
	"distribution-service/internal/ports"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ScheduleConfig holds the visit planning settings.
type ScheduleConfig struct {
	// WorkdayStart is the offset from local midnight at which the first leg departs.
	WorkdayStart time.Duration
	// Location is the fleet's time zone; nil means UTC.
	Location             *time.Location
	MinVisitMinutes      int
	MinutesPerOrder      int
	IncludeRegularVisits bool
	// DefaultOrigin is used when a distributor has neither a current nor a depot location.
	DefaultOrigin domain.Coordinates
}

func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		WorkdayStart:         8 * time.Hour,
		MinVisitMinutes:      15,
		MinutesPerOrder:      5,
		IncludeRegularVisits: true,
	}
}

// GenerateRequest is the input of one generation for (Distributor, Date).
type GenerateRequest struct {
	Distributor domain.Distributor
	Date        time.Time
	// Orders are the distributor's schedulable orders for Date.
	Orders []domain.Order
	// Stores are the stores assigned to the distributor.
	Stores []domain.Store
}

type GenerateResult struct {
	Visits          []domain.ScheduleVisit `json:"visits"`
	Created         int                    `json:"created"`
	Updated         int                    `json:"updated"`
	Deleted         int                    `json:"deleted"`
	Reordered       int                    `json:"reordered"`
	Unchanged       int                    `json:"unchanged"`
	TripCreated     bool                   `json:"trip_created"`
	Method          domain.RouteMethod     `json:"method"`
	TotalDistanceKm float64                `json:"total_distance_km"`
}

// Changed reports whether the generation wrote any visit.
func (r GenerateResult) Changed() bool {
	return r.Created+r.Updated+r.Deleted+r.Reordered > 0
}

// ScheduleGenerator builds and reconciles the ordered visit list of one distributor's day.
type ScheduleGenerator struct {
	visits    ports.VisitRepository
	trips     ports.TripRepository
	optimizer *RouteOptimizer
	notifier  ports.Notifier
	cfg       ScheduleConfig
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewScheduleGenerator(
	visits ports.VisitRepository,
	trips ports.TripRepository,
	optimizer *RouteOptimizer,
	notifier ports.Notifier,
	cfg ScheduleConfig,
	log logrus.FieldLogger,
) *ScheduleGenerator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.MinVisitMinutes <= 0 {
		cfg.MinVisitMinutes = 15
	}
	return &ScheduleGenerator{
		visits:    visits,
		trips:     trips,
		optimizer: optimizer,
		notifier:  notifier,
		cfg:       cfg,
		log:       log.WithField("component", "schedule_generator"),
		now:       time.Now,
	}
}

// plannedStop is a destination the route must cover today.
type plannedStop struct {
	storeID  int64
	location *domain.Coordinates
	orderIDs []int64
	regular  bool
}

// Generate plans the day and reconciles it with the stored visits.
// Visits no longer scheduled keep their status and stores. They take positions 1..k in
// their current order, the re-planned stops follow, and the route resumes from the last
// store reached. Running Generate again with the same request writes nothing.
func (g *ScheduleGenerator) Generate(ctx context.Context, req GenerateRequest) (_ GenerateResult, err error) {
	defer obs.Time(ctx, "schedule.Generate")(&err)

	dist := req.Distributor
	date := domain.DateOf(req.Date)
	log := g.log.WithFields(logrus.Fields{
		"distributor_id": dist.ID,
		"date":           date.Format(domain.DateLayout),
	})

	existing, err := g.visits.ListVisits(ctx, dist.ID, date)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("generate schedule: list visits: %w", err)
	}

	locked := make(map[int64]bool)
	scheduledByStore := make(map[int64]domain.ScheduleVisit)
	var progressed []domain.ScheduleVisit
	var duplicates []string

	// existing is ordered by visit order.
	for _, v := range existing {
		if v.VisitStatus != domain.VisitScheduled {
			locked[v.StoreID] = true
			progressed = append(progressed, v)
			continue
		}
		if _, dup := scheduledByStore[v.StoreID]; dup {
			duplicates = append(duplicates, v.ID)
			continue
		}
		scheduledByStore[v.StoreID] = v
	}

	stops := g.plannedStops(req, locked)

	destinations := make([]domain.Destination, len(stops))
	byStore := make(map[int64]plannedStop, len(stops))
	for i, s := range stops {
		destinations[i] = domain.Destination{ID: s.storeID, Location: s.location}
		byStore[s.storeID] = s
	}

	origin, cursor := g.startingPoint(dist, date, progressed, storeLocations(req))
	route := g.optimizer.Optimize(ctx, origin, destinations, OptimizeOptions{ComputeSavings: true})

	now := g.now().UTC()
	res := GenerateResult{Method: route.Method, TotalDistanceKm: route.TotalDistanceKm}
	changes := domain.ScheduleChangeSet{DistributorID: dist.ID, Date: date}

	for i, v := range progressed {
		if v.VisitOrder != i+1 {
			changes.Reorder = append(changes.Reorder, domain.VisitReorder{ID: v.ID, VisitOrder: i + 1})
		}
	}

	planned := make(map[int64]bool, len(route.OrderedDestinations))

	for i, leg := range route.OrderedDestinations {
		stop := byStore[leg.Destination.ID]
		planned[stop.storeID] = true

		duration := g.estimatedMinutes(stop)
		arrival := cursor.Add(minutes(leg.LegDurationMinutes))
		departure := arrival.Add(time.Duration(duration) * time.Minute)
		cursor = departure

		want := domain.ScheduleVisit{
			DistributorID:            dist.ID,
			ScheduleDate:             date,
			StoreID:                  stop.storeID,
			VisitOrder:               len(progressed) + i + 1,
			VisitStatus:              domain.VisitScheduled,
			PlannedArrivalTime:       &arrival,
			PlannedDepartureTime:     &departure,
			EstimatedDurationMinutes: duration,
			DistanceFromPreviousKm:   roundKm(leg.LegDistanceKm),
			OrderIDs:                 stop.orderIDs,
			IsRegularVisit:           stop.regular,
		}

		cur, ok := scheduledByStore[stop.storeID]
		if !ok {
			want.ID = uuid.NewString()
			want.CreatedAt = now
			want.UpdatedAt = now
			changes.Insert = append(changes.Insert, want)
			continue
		}

		if samePlan(cur, want) {
			res.Unchanged++
			continue
		}

		upd := cur
		upd.VisitOrder = want.VisitOrder
		upd.PlannedArrivalTime = want.PlannedArrivalTime
		upd.PlannedDepartureTime = want.PlannedDepartureTime
		upd.EstimatedDurationMinutes = want.EstimatedDurationMinutes
		upd.DistanceFromPreviousKm = want.DistanceFromPreviousKm
		upd.OrderIDs = want.OrderIDs
		upd.IsRegularVisit = want.IsRegularVisit
		upd.UpdatedAt = now
		changes.Update = append(changes.Update, upd)
	}

	for storeID, v := range scheduledByStore {
		if !planned[storeID] {
			changes.Delete = append(changes.Delete, v.ID)
		}
	}
	changes.Delete = append(changes.Delete, duplicates...)
	sort.Strings(changes.Delete)

	if len(existing) > 0 || len(changes.Insert) > 0 {
		newTrip, err := g.tripIfMissing(ctx, dist.ID, date, route.TotalDistanceKm, now)
		if err != nil {
			return GenerateResult{}, err
		}
		changes.NewTrip = newTrip
	}

	if !changes.Empty() {
		if err := g.visits.ApplyScheduleChanges(ctx, changes); err != nil {
			return GenerateResult{}, fmt.Errorf("generate schedule: apply changes: %w", err)
		}
	}

	res.Created = len(changes.Insert)
	res.Updated = len(changes.Update)
	res.Deleted = len(changes.Delete)
	res.Reordered = len(changes.Reorder)
	res.TripCreated = changes.NewTrip != nil

	metrics.ScheduleChanges.WithLabelValues("created").Add(float64(res.Created))
	metrics.ScheduleChanges.WithLabelValues("updated").Add(float64(res.Updated))
	metrics.ScheduleChanges.WithLabelValues("deleted").Add(float64(res.Deleted))
	metrics.ScheduleChanges.WithLabelValues("reordered").Add(float64(res.Reordered))

	res.Visits, err = g.visits.ListVisits(ctx, dist.ID, date)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("generate schedule: reload visits: %w", err)
	}

	log.WithFields(logrus.Fields{
		"method":      res.Method,
		"created":     res.Created,
		"updated":     res.Updated,
		"deleted":     res.Deleted,
		"reordered":   res.Reordered,
		"unchanged":   res.Unchanged,
		"distance_km": roundKm(route.TotalDistanceKm),
		"savings_pct": math.Round(route.SavingsPercent*10) / 10,
	}).Info("schedule generated")

	if res.Changed() {
		sendNotification(ctx, g.notifier, log, domain.Notification{
			DistributorID: dist.ID,
			Type:          domain.NotificationScheduleUpdate,
			Title:         "Schedule updated",
			Message:       fmt.Sprintf("Your schedule for %s has %d visit(s).", date.Format(domain.DateLayout), len(res.Visits)),
			Priority:      domain.PriorityNormal,
			Metadata: map[string]string{
				"date":    date.Format(domain.DateLayout),
				"visits":  itoa(len(res.Visits)),
				"created": itoa(res.Created),
				"updated": itoa(res.Updated),
				"deleted": itoa(res.Deleted),
				"method":  string(res.Method),
			},
		})
	}

	return res, nil
}

// plannedStops groups orders by store and adds regular visits, skipping stores whose
// visit for the day has already started. The result is sorted by store id.
func (g *ScheduleGenerator) plannedStops(req GenerateRequest, locked map[int64]bool) []plannedStop {
	stores := make(map[int64]domain.Store, len(req.Stores))
	for _, s := range req.Stores {
		stores[s.ID] = s
	}

	byStore := make(map[int64]*plannedStop)
	for _, o := range req.Orders {
		if locked[o.StoreID] {
			continue
		}

		s, ok := byStore[o.StoreID]
		if !ok {
			s = &plannedStop{storeID: o.StoreID, location: o.Location}
			if st, known := stores[o.StoreID]; known && st.Location != nil {
				s.location = st.Location
			}
			byStore[o.StoreID] = s
		}
		s.orderIDs = append(s.orderIDs, o.ID)
	}

	if g.cfg.IncludeRegularVisits {
		for _, st := range req.Stores {
			if locked[st.ID] {
				continue
			}
			if _, ok := byStore[st.ID]; ok {
				continue
			}
			byStore[st.ID] = &plannedStop{storeID: st.ID, location: st.Location, orderIDs: []int64{}, regular: true}
		}
	}

	out := make([]plannedStop, 0, len(byStore))
	for _, s := range byStore {
		slices.Sort(s.orderIDs)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].storeID < out[j].storeID })
	return out
}

func (g *ScheduleGenerator) estimatedMinutes(s plannedStop) int {
	return max(g.cfg.MinVisitMinutes, g.cfg.MinutesPerOrder*len(s.orderIDs))
}

func (g *ScheduleGenerator) tripIfMissing(ctx context.Context, distributorID int64, date time.Time, plannedKm float64, now time.Time) (*domain.Trip, error) {
	_, err := g.trips.FindTrip(ctx, distributorID, date)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("generate schedule: find trip: %w", err)
	}

	return &domain.Trip{
		ID:                uuid.NewString(),
		DistributorID:     distributorID,
		TripDate:          date,
		Status:            domain.TripPlanned,
		PlannedDistanceKm: roundKm(plannedKm),
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// startingPoint returns where and when the remaining route begins. Until a visit has been
// reached that is the route origin at the start of the workday. Afterwards it is the store
// reached last, from the moment the distributor left or is expected to leave it.
func (g *ScheduleGenerator) startingPoint(
	dist domain.Distributor,
	date time.Time,
	progressed []domain.ScheduleVisit,
	stores map[int64]*domain.Coordinates,
) (domain.Coordinates, time.Time) {
	origin := dist.RouteOrigin(g.cfg.DefaultOrigin)
	cursor := domain.DayStart(date, g.cfg.Location).Add(g.cfg.WorkdayStart)

	var last *domain.ScheduleVisit
	var leave time.Time
	for i := range progressed {
		t, ok := expectedDeparture(progressed[i])
		if !ok {
			continue
		}
		if last == nil || t.After(leave) {
			last, leave = &progressed[i], t
		}
	}
	if last == nil {
		return origin, cursor
	}

	if loc := stores[last.StoreID]; loc != nil {
		origin = *loc
	}
	if leave.After(cursor) {
		cursor = leave.In(cursor.Location())
	}
	return origin, cursor
}

// expectedDeparture is the actual departure of a visit that was reached, or arrival plus the
// estimated duration while it is still in progress. Visits never reached have none.
func expectedDeparture(v domain.ScheduleVisit) (time.Time, bool) {
	switch {
	case v.ActualArrivalTime == nil:
		return time.Time{}, false
	case v.ActualDepartureTime != nil:
		return *v.ActualDepartureTime, true
	default:
		return v.ActualArrivalTime.Add(time.Duration(v.EstimatedDurationMinutes) * time.Minute), true
	}
}

// storeLocations maps store ids to coordinates from the assigned stores and the orders.
func storeLocations(req GenerateRequest) map[int64]*domain.Coordinates {
	out := make(map[int64]*domain.Coordinates, len(req.Stores))
	for _, o := range req.Orders {
		if o.Location != nil {
			out[o.StoreID] = o.Location
		}
	}
	for _, s := range req.Stores {
		if s.Location != nil {
			out[s.ID] = s.Location
		}
	}
	return out
}

func samePlan(cur, want domain.ScheduleVisit) bool {
	return cur.VisitOrder == want.VisitOrder &&
		cur.EstimatedDurationMinutes == want.EstimatedDurationMinutes &&
		cur.DistanceFromPreviousKm == want.DistanceFromPreviousKm &&
		cur.IsRegularVisit == want.IsRegularVisit &&
		slices.Equal(cur.OrderIDs, want.OrderIDs) &&
		sameTime(cur.PlannedArrivalTime, want.PlannedArrivalTime) &&
		sameTime(cur.PlannedDepartureTime, want.PlannedDepartureTime)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute)).Round(time.Second)
}

func roundKm(km float64) float64 {
	return math.Round(km*1000) / 1000
}
