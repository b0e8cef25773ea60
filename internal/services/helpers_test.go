package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"distribution-service/internal/adapters/memory"
	"distribution-service/internal/domain"
	"distribution-service/internal/platform/logging"
	"distribution-service/internal/ports"
)

var testDay = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
	err  error
}

func (n *recordingNotifier) Send(ctx context.Context, msg domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) Sent() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Notification(nil), n.sent...)
}

// fixedClock returns a now func that always reports t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// seedBrussels stores distributor 7 at the Brussels origin with stores 1 (A), 2 (B), 3 (C)
// and one confirmed order per store for testDay.
func seedBrussels(repo *memory.Repository) domain.Distributor {
	d := domain.Distributor{
		ID:            7,
		Active:        true,
		WorkingStatus: domain.WorkingAvailable,
		DepotLocation: &domain.Coordinates{Lat: 50.85, Lon: 4.35},
	}
	repo.PutDistributor(d)

	for i, s := range brusselsStops() {
		repo.PutStore(domain.Store{ID: s.ID, Name: "store", Location: s.Location})
		repo.PutOrder(domain.Order{
			ID:            100 + int64(i),
			DistributorID: d.ID,
			StoreID:       s.ID,
			Status:        domain.OrderConfirmed,
			DeliveryDate:  testDay,
		})
	}
	repo.AssignStores(d.ID, 1, 2, 3)
	return d
}

// notifierOf keeps a nil recorder a nil interface.
func notifierOf(n *recordingNotifier) ports.Notifier {
	if n == nil {
		return nil
	}
	return n
}

func newTestGenerator(repo *memory.Repository, n *recordingNotifier) *ScheduleGenerator {
	opt := NewRouteOptimizer(nil, testOptimizerConfig(), logging.Discard())
	g := NewScheduleGenerator(repo, repo, opt, notifierOf(n), DefaultScheduleConfig(), logging.Discard())
	g.now = fixedClock(testDay.Add(6 * time.Hour))
	return g
}

func requestFor(repo *memory.Repository, id int64) GenerateRequest {
	ctx := context.Background()
	d, _ := repo.GetDistributor(ctx, id)
	orders, _ := repo.ListAssignedOrders(ctx, id, testDay, domain.SchedulableOrderStatuses)
	stores, _ := repo.ListAssignedStores(ctx, id)
	return GenerateRequest{Distributor: d, Date: testDay, Orders: orders, Stores: stores}
}

func visitOrders(vs []domain.ScheduleVisit) []int {
	out := make([]int, len(vs))
	for i, v := range vs {
		out[i] = v.VisitOrder
	}
	return out
}

func visitStores(vs []domain.ScheduleVisit) []int64 {
	out := make([]int64, len(vs))
	for i, v := range vs {
		out[i] = v.StoreID
	}
	return out
}

func isConflictOrTransition(err error) bool {
	return errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrInvalidStateTransition)
}
