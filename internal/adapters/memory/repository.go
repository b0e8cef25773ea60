package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"distribution-service/internal/domain"
	"distribution-service/internal/ports"

	"github.com/google/uuid"
)

// Repository keeps every entity the core touches in process memory.
// It backs the service when no database is configured and is the fixture of service tests.
// All methods are safe for concurrent use.
type Repository struct {
	mu sync.RWMutex

	distributors map[int64]domain.Distributor
	orders       map[int64]domain.Order
	stores       map[int64]domain.Store
	assignments  map[int64][]int64

	visits      map[string]domain.ScheduleVisit
	trips       map[string]domain.Trip
	locations   map[int64][]domain.LocationPoint
	latest      map[int64]domain.LocationPoint
	performance map[string]domain.PerformanceRecord
}

var (
	_ ports.VisitRepository       = (*Repository)(nil)
	_ ports.TripRepository        = (*Repository)(nil)
	_ ports.DistributorRepository = (*Repository)(nil)
	_ ports.OrderSource           = (*Repository)(nil)
	_ ports.StoreSource           = (*Repository)(nil)
	_ ports.LocationRepository    = (*Repository)(nil)
	_ ports.LocationIndex         = (*Repository)(nil)
	_ ports.PerformanceRepository = (*Repository)(nil)
)

func NewRepository() *Repository {
	return &Repository{
		distributors: make(map[int64]domain.Distributor),
		orders:       make(map[int64]domain.Order),
		stores:       make(map[int64]domain.Store),
		assignments:  make(map[int64][]int64),
		visits:       make(map[string]domain.ScheduleVisit),
		trips:        make(map[string]domain.Trip),
		locations:    make(map[int64][]domain.LocationPoint),
		latest:       make(map[int64]domain.LocationPoint),
		performance:  make(map[string]domain.PerformanceRecord),
	}
}

func dayKey(id int64, date time.Time) string {
	return fmt.Sprintf("%d|%s", id, domain.DateOf(date).Format(domain.DateLayout))
}

func sameDay(a, b time.Time) bool {
	return domain.DateOf(a).Equal(domain.DateOf(b))
}

func cloneVisit(v domain.ScheduleVisit) domain.ScheduleVisit {
	v.OrderIDs = append([]int64(nil), v.OrderIDs...)
	return v
}

// Seeding. These stand in for the collaborator subsystems that own distributors, stores and orders.

func (r *Repository) PutDistributor(d domain.Distributor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.distributors[d.ID] = d
}

func (r *Repository) PutStore(s domain.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[s.ID] = s
}

func (r *Repository) PutOrder(o domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o.DeliveryDate = domain.DateOf(o.DeliveryDate)
	r.orders[o.ID] = o
}

func (r *Repository) RemoveOrder(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, id)
}

// AssignStores records the stores a distributor regularly visits.
func (r *Repository) AssignStores(distributorID int64, storeIDs ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignments[distributorID] = append([]int64(nil), storeIDs...)
}

// PutTrip stores t as-is. Used to seed trips outside schedule generation.
func (r *Repository) PutTrip(t domain.Trip) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.TripDate = domain.DateOf(t.TripDate)
	r.trips[t.ID] = t
}

// PutVisit stores v as-is. Used to seed visits outside schedule generation.
func (r *Repository) PutVisit(v domain.ScheduleVisit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	v.ScheduleDate = domain.DateOf(v.ScheduleDate)
	r.visits[v.ID] = cloneVisit(v)
}

// Visits

func (r *Repository) ListVisits(ctx context.Context, distributorID int64, date time.Time) ([]domain.ScheduleVisit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listVisitsLocked(distributorID, date), nil
}

func (r *Repository) listVisitsLocked(distributorID int64, date time.Time) []domain.ScheduleVisit {
	out := make([]domain.ScheduleVisit, 0)
	for _, v := range r.visits {
		if v.DistributorID == distributorID && sameDay(v.ScheduleDate, date) {
			out = append(out, cloneVisit(v))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VisitOrder != out[j].VisitOrder {
			return out[i].VisitOrder < out[j].VisitOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *Repository) GetVisit(ctx context.Context, id string) (domain.ScheduleVisit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.visits[id]
	if !ok {
		return domain.ScheduleVisit{}, fmt.Errorf("visit %s: %w", id, domain.ErrNotFound)
	}
	return cloneVisit(v), nil
}

// ApplyScheduleChanges validates the whole change set before touching any row,
// so a rejected set leaves the day unchanged.
func (r *Repository) ApplyScheduleChanges(ctx context.Context, c domain.ScheduleChangeSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range c.Update {
		cur, ok := r.visits[u.ID]
		if !ok {
			return fmt.Errorf("apply schedule: update visit %s: %w", u.ID, domain.ErrNotFound)
		}
		if cur.VisitStatus != domain.VisitScheduled {
			return fmt.Errorf("apply schedule: visit %s is %s: %w", u.ID, cur.VisitStatus, domain.ErrConflict)
		}
	}
	for _, id := range c.Delete {
		cur, ok := r.visits[id]
		if !ok {
			continue
		}
		if cur.VisitStatus != domain.VisitScheduled {
			return fmt.Errorf("apply schedule: visit %s is %s: %w", id, cur.VisitStatus, domain.ErrConflict)
		}
	}
	for _, m := range c.Reorder {
		if _, ok := r.visits[m.ID]; !ok {
			return fmt.Errorf("apply schedule: reorder visit %s: %w", m.ID, domain.ErrNotFound)
		}
	}
	if c.NewTrip != nil {
		for _, t := range r.trips {
			if t.DistributorID == c.NewTrip.DistributorID && sameDay(t.TripDate, c.NewTrip.TripDate) {
				return fmt.Errorf("apply schedule: trip for %s: %w", dayKey(t.DistributorID, t.TripDate), domain.ErrConflict)
			}
		}
	}

	// Simulate the post-change day and enforce unique visit order.
	next := make(map[string]domain.ScheduleVisit)
	for _, v := range r.listVisitsLocked(c.DistributorID, c.Date) {
		next[v.ID] = v
	}
	for _, id := range c.Delete {
		delete(next, id)
	}
	for _, u := range c.Update {
		next[u.ID] = u
	}
	for _, m := range c.Reorder {
		if v, ok := next[m.ID]; ok {
			v.VisitOrder = m.VisitOrder
			next[m.ID] = v
		}
	}
	for _, in := range c.Insert {
		if _, dup := r.visits[in.ID]; dup {
			return fmt.Errorf("apply schedule: visit %s exists: %w", in.ID, domain.ErrConflict)
		}
		next[in.ID] = in
	}
	orders := make(map[int]string, len(next))
	for id, v := range next {
		if other, dup := orders[v.VisitOrder]; dup {
			return fmt.Errorf("apply schedule: visits %s and %s share order %d: %w", other, id, v.VisitOrder, domain.ErrConflict)
		}
		orders[v.VisitOrder] = id
	}

	for _, id := range c.Delete {
		delete(r.visits, id)
	}
	for _, u := range c.Update {
		r.visits[u.ID] = cloneVisit(u)
	}
	for _, in := range c.Insert {
		r.visits[in.ID] = cloneVisit(in)
	}
	for _, m := range c.Reorder {
		v := r.visits[m.ID]
		v.VisitOrder = m.VisitOrder
		r.visits[m.ID] = v
	}
	if c.NewTrip != nil {
		r.trips[c.NewTrip.ID] = *c.NewTrip
	}

	return nil
}

func (r *Repository) UpdateVisitIf(ctx context.Context, v domain.ScheduleVisit, expected domain.VisitStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.visits[v.ID]
	if !ok {
		return fmt.Errorf("visit %s: %w", v.ID, domain.ErrNotFound)
	}
	if cur.VisitStatus != expected {
		return fmt.Errorf("visit %s is %s, expected %s: %w", v.ID, cur.VisitStatus, expected, domain.ErrConflict)
	}
	if v.VisitStatus == domain.VisitInProgress {
		for _, t := range r.trips {
			if t.DistributorID == cur.DistributorID && sameDay(t.TripDate, cur.ScheduleDate) && t.Status.Terminal() {
				return &domain.InvalidStateTransitionError{
					Entity: "visit",
					ID:     v.ID,
					From:   string(expected),
					To:     string(v.VisitStatus),
					Reason: "trip is " + string(t.Status),
				}
			}
		}
	}
	r.visits[v.ID] = withProgress(cur, v)
	return nil
}

// withProgress copies the fields a visit transition may change onto the stored visit.
func withProgress(cur, v domain.ScheduleVisit) domain.ScheduleVisit {
	cur.VisitStatus = v.VisitStatus
	cur.ActualArrivalTime = v.ActualArrivalTime
	cur.ActualDepartureTime = v.ActualDepartureTime
	cur.ActualDurationMinutes = v.ActualDurationMinutes
	cur.Notes = v.Notes
	cur.UpdatedAt = v.UpdatedAt
	return cur
}

// Trips

func (r *Repository) GetTrip(ctx context.Context, id string) (domain.Trip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.trips[id]
	if !ok {
		return domain.Trip{}, fmt.Errorf("trip %s: %w", id, domain.ErrNotFound)
	}
	return t, nil
}

func (r *Repository) FindTrip(ctx context.Context, distributorID int64, date time.Time) (domain.Trip, error) {
	trips, _ := r.ListTrips(ctx, distributorID, date)
	if len(trips) == 0 {
		return domain.Trip{}, fmt.Errorf("trip %s: %w", dayKey(distributorID, date), domain.ErrNotFound)
	}
	return trips[0], nil
}

func (r *Repository) ListTrips(ctx context.Context, distributorID int64, date time.Time) ([]domain.Trip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Trip, 0, 1)
	for _, t := range r.trips {
		if t.DistributorID == distributorID && sameDay(t.TripDate, date) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *Repository) UpdateTripIf(ctx context.Context, t domain.Trip, expected domain.TripStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.trips[t.ID]
	if !ok {
		return fmt.Errorf("trip %s: %w", t.ID, domain.ErrNotFound)
	}
	if cur.Status != expected {
		return fmt.Errorf("trip %s is %s, expected %s: %w", t.ID, cur.Status, expected, domain.ErrConflict)
	}
	if t.Status == domain.TripCompleted {
		open := 0
		for _, v := range r.visits {
			if v.DistributorID == cur.DistributorID && sameDay(v.ScheduleDate, cur.TripDate) && v.VisitStatus == domain.VisitInProgress {
				open++
			}
		}
		if open > 0 {
			return &domain.InvalidStateTransitionError{
				Entity: "trip",
				ID:     t.ID,
				From:   string(expected),
				To:     string(t.Status),
				Reason: fmt.Sprintf("%d visit(s) still in progress", open),
			}
		}
	}
	r.trips[t.ID] = t
	return nil
}

// Distributors

func (r *Repository) GetDistributor(ctx context.Context, id int64) (domain.Distributor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.distributors[id]
	if !ok {
		return domain.Distributor{}, fmt.Errorf("distributor %d: %w", id, domain.ErrNotFound)
	}
	return d, nil
}

func (r *Repository) ListActiveDistributors(ctx context.Context) ([]domain.Distributor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Distributor, 0, len(r.distributors))
	for _, d := range r.distributors {
		if d.Active {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repository) UpdatePresence(ctx context.Context, id int64, loc domain.Coordinates, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.distributors[id]
	if !ok {
		return fmt.Errorf("distributor %d: %w", id, domain.ErrNotFound)
	}
	if d.LastLocationUpdate != nil && d.LastLocationUpdate.After(at) {
		return nil
	}
	d.CurrentLocation = &loc
	d.LastLocationUpdate = &at
	d.IsOnline = true
	r.distributors[id] = d
	return nil
}

func (r *Repository) UpdateOperationalState(ctx context.Context, id int64, s domain.OperationalState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.distributors[id]
	if !ok {
		return fmt.Errorf("distributor %d: %w", id, domain.ErrNotFound)
	}
	d.WorkingStatus = s.WorkingStatus
	d.CurrentTripID = s.CurrentTripID
	d.CurrentScheduleDate = s.CurrentScheduleDate
	r.distributors[id] = d
	return nil
}

// Orders and stores

func (r *Repository) ListAssignedOrders(ctx context.Context, distributorID int64, date time.Time, statuses []domain.OrderStatus) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := make(map[domain.OrderStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}

	out := make([]domain.Order, 0)
	for _, o := range r.orders {
		if o.DistributorID != distributorID || !sameDay(o.DeliveryDate, date) {
			continue
		}
		if len(want) > 0 && !want[o.Status] {
			continue
		}
		if s, ok := r.stores[o.StoreID]; ok && o.Location == nil {
			o.Location = s.Location
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repository) UpdateOrderStatus(ctx context.Context, ids []int64, status domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		o, ok := r.orders[id]
		if !ok {
			continue
		}
		o.Status = status
		r.orders[id] = o
	}
	return nil
}

// Order returns a seeded order. Used by tests to observe status transitions.
func (r *Repository) Order(id int64) (domain.Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	return o, ok
}

func (r *Repository) ListAssignedStores(ctx context.Context, distributorID int64) ([]domain.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Store, 0, len(r.assignments[distributorID]))
	for _, id := range r.assignments[distributorID] {
		if s, ok := r.stores[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// Locations

func (r *Repository) InsertLocation(ctx context.Context, p domain.LocationPoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.locations[p.DistributorID] = append(r.locations[p.DistributorID], p)
	return nil
}

func (r *Repository) ListLocations(ctx context.Context, distributorID int64, from, to time.Time, limit int, newestFirst bool) ([]domain.LocationPoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.LocationPoint, 0)
	for _, p := range r.locations[distributorID] {
		if p.RecordedAt.Before(from) || p.RecordedAt.After(to) {
			continue
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if newestFirst {
			return out[i].RecordedAt.After(out[j].RecordedAt)
		}
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Repository) PutLatest(ctx context.Context, p domain.LocationPoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.latest[p.DistributorID]; ok && cur.RecordedAt.After(p.RecordedAt) {
		return nil
	}
	r.latest[p.DistributorID] = p
	return nil
}

func (r *Repository) ListLatest(ctx context.Context) ([]domain.LocationPoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.LocationPoint, 0, len(r.latest))
	for _, p := range r.latest {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistributorID < out[j].DistributorID })
	return out, nil
}

// Performance

func (r *Repository) UpsertPerformance(ctx context.Context, rec domain.PerformanceRecord) (domain.PerformanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec.Date = domain.DateOf(rec.Date)
	key := dayKey(rec.DistributorID, rec.Date)
	if cur, ok := r.performance[key]; ok {
		rec.ID = cur.ID
	} else if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	r.performance[key] = rec
	return rec, nil
}

func (r *Repository) GetPerformance(ctx context.Context, distributorID int64, date time.Time) (domain.PerformanceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.performance[dayKey(distributorID, date)]
	if !ok {
		return domain.PerformanceRecord{}, fmt.Errorf("performance %s: %w", dayKey(distributorID, date), domain.ErrNotFound)
	}
	return rec, nil
}

// PerformanceCount returns the number of stored rollups. Used by tests.
func (r *Repository) PerformanceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.performance)
}
