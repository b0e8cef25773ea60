package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"distribution-service/internal/domain"
	"distribution-service/internal/ports"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type OrchestratorConfig struct {
	// Concurrency bounds how many distributors are generated at once. 1 means sequential.
	Concurrency int
	// LockKey and LockTTL configure the cross-instance run lock when a locker is set.
	LockKey string
	LockTTL time.Duration
	// Location decides which calendar day a run plans; nil means UTC.
	Location *time.Location
}

func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{Concurrency: 1, LockKey: "schedule-orchestrator", LockTTL: 30 * time.Minute}
}

// RunSummary reports one orchestrator run.
type RunSummary struct {
	Skipped      bool                       `json:"skipped"`
	Date         time.Time                  `json:"date"`
	Distributors int                        `json:"distributors"`
	Succeeded    int                        `json:"succeeded"`
	Created      int                        `json:"created"`
	Updated      int                        `json:"updated"`
	Deleted      int                        `json:"deleted"`
	Methods      map[domain.RouteMethod]int `json:"methods,omitempty"`
	Errors       []string                   `json:"errors,omitempty"`
	Duration     time.Duration              `json:"duration"`
}

// Orchestrator regenerates today's schedule of every active distributor.
// At most one run is in flight per process; a run that finds another in progress is skipped.
// With a RunLocker the same holds across processes.
type Orchestrator struct {
	distributors ports.DistributorRepository
	orders       ports.OrderSource
	stores       ports.StoreSource
	generator    *ScheduleGenerator
	locker       ports.RunLocker
	cfg          OrchestratorConfig
	log          logrus.FieldLogger
	now          func() time.Time

	running sync.Mutex
}

// NewOrchestrator builds the orchestrator. locker may be nil.
func NewOrchestrator(
	distributors ports.DistributorRepository,
	orders ports.OrderSource,
	stores ports.StoreSource,
	generator *ScheduleGenerator,
	locker ports.RunLocker,
	cfg OrchestratorConfig,
	log logrus.FieldLogger,
) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.LockKey == "" {
		cfg.LockKey = DefaultOrchestratorConfig().LockKey
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultOrchestratorConfig().LockTTL
	}
	return &Orchestrator{
		distributors: distributors,
		orders:       orders,
		stores:       stores,
		generator:    generator,
		locker:       locker,
		cfg:          cfg,
		log:          log.WithField("component", "orchestrator"),
		now:          time.Now,
	}
}

// Run adapts RunOnce to the periodic job runner.
func (o *Orchestrator) Run(ctx context.Context) error {
	_, err := o.RunOnce(ctx)
	return err
}

// RunOnce generates today's schedules. Per-distributor failures are collected in the
// summary; the returned error is reserved for failures that prevent the run itself.
func (o *Orchestrator) RunOnce(ctx context.Context) (RunSummary, error) {
	if !o.running.TryLock() {
		o.log.Warn("schedule run already in progress, skipping")
		return RunSummary{Skipped: true}, nil
	}
	defer o.running.Unlock()

	if o.locker != nil {
		release, ok, err := o.locker.TryLock(ctx, o.cfg.LockKey, o.cfg.LockTTL)
		if err != nil {
			return RunSummary{}, fmt.Errorf("schedule run: acquire lock: %w", err)
		}
		if !ok {
			o.log.Info("schedule run held by another instance, skipping")
			return RunSummary{Skipped: true}, nil
		}
		defer func() {
			// The run context may already be done; release on a fresh one.
			if err := release(context.WithoutCancel(ctx)); err != nil {
				o.log.WithError(err).Warn("could not release schedule run lock")
			}
		}()
	}

	start := o.now()
	date := domain.LocalDate(start, o.cfg.Location)
	sum := RunSummary{Date: date, Methods: make(map[domain.RouteMethod]int)}

	distributors, err := o.distributors.ListActiveDistributors(ctx)
	if err != nil {
		return RunSummary{}, fmt.Errorf("schedule run: list distributors: %w", err)
	}
	sum.Distributors = len(distributors)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(o.cfg.Concurrency)

	for _, d := range distributors {
		g.Go(func() error {
			res, err := o.generate(ctx, d, date)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				sum.Errors = append(sum.Errors, fmt.Sprintf("distributor %d: %v", d.ID, err))
				o.log.WithError(err).WithField("distributor_id", d.ID).Error("schedule generation failed")
				return nil
			}
			sum.Succeeded++
			sum.Created += res.Created
			sum.Updated += res.Updated
			sum.Deleted += res.Deleted
			sum.Methods[res.Method]++
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(sum.Errors)
	sum.Duration = o.now().Sub(start)

	o.log.WithFields(logrus.Fields{
		"date":         date.Format(domain.DateLayout),
		"distributors": sum.Distributors,
		"succeeded":    sum.Succeeded,
		"created":      sum.Created,
		"updated":      sum.Updated,
		"deleted":      sum.Deleted,
		"errors":       len(sum.Errors),
		"dur_ms":       sum.Duration.Milliseconds(),
	}).Info("schedule run finished")

	return sum, nil
}

// GenerateForDistributor regenerates one distributor's schedule for date, outside the periodic run.
func (o *Orchestrator) GenerateForDistributor(ctx context.Context, distributorID int64, date time.Time) (GenerateResult, error) {
	d, err := o.distributors.GetDistributor(ctx, distributorID)
	if err != nil {
		return GenerateResult{}, err
	}
	if !d.Active {
		return GenerateResult{}, domain.Validationf("distributor %d is not active", distributorID)
	}
	if date.IsZero() {
		date = domain.LocalDate(o.now(), o.cfg.Location)
	}
	return o.generate(ctx, d, domain.DateOf(date))
}

func (o *Orchestrator) generate(ctx context.Context, d domain.Distributor, date time.Time) (GenerateResult, error) {
	if err := ctx.Err(); err != nil {
		return GenerateResult{}, err
	}

	orders, err := o.orders.ListAssignedOrders(ctx, d.ID, date, domain.SchedulableOrderStatuses)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("list orders: %w", err)
	}

	stores, err := o.stores.ListAssignedStores(ctx, d.ID)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("list stores: %w", err)
	}

	return o.generator.Generate(ctx, GenerateRequest{
		Distributor: d,
		Date:        date,
		Orders:      orders,
		Stores:      stores,
	})
}
