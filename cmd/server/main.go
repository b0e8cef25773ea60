package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"distribution-service/internal/adapters/cache"
	"distribution-service/internal/adapters/memory"
	"distribution-service/internal/adapters/notify"
	"distribution-service/internal/adapters/postgres"
	"distribution-service/internal/adapters/redisstore"
	"distribution-service/internal/adapters/routing"
	"distribution-service/internal/api"
	"distribution-service/internal/config"
	"distribution-service/internal/domain"
	"distribution-service/internal/platform/db"
	"distribution-service/internal/platform/jobs"
	"distribution-service/internal/platform/logging"
	"distribution-service/internal/platform/metrics"
	"distribution-service/internal/platform/obs"
	"distribution-service/internal/ports"
	"distribution-service/internal/services"

	"github.com/sirupsen/logrus"
)

// repositories groups the persistence ports so either backend can be wired in one place.
type repositories struct {
	visits       ports.VisitRepository
	trips        ports.TripRepository
	distributors ports.DistributorRepository
	orders       ports.OrderSource
	stores       ports.StoreSource
	locations    ports.LocationRepository
	latest       ports.LocationIndex
	performance  ports.PerformanceRepository
}

// main is the application composition root.
// It wires concrete adapters (Postgres, Redis, Kafka, ORS) behind ports and starts the HTTP server
// and the periodic jobs.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("configuration")
	}

	log := logging.New(cfg.LogLevel)
	obs.Logger = log
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	var repos repositories
	var sqlDB *sql.DB
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}()

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		closers = append(closers, conn.Close)
		sqlDB = conn

		if err := postgres.InitSchema(ctx, conn); err != nil {
			return err
		}
		repo := postgres.NewRepository(conn)
		repos = repositories{repo, repo, repo, repo, repo, repo, repo, repo}
		log.Info("using postgres persistence")
	} else {
		repo := memory.NewRepository()
		if seedPath := config.Get("SEED_PATH", ""); seedPath != "" {
			if err := seedMemory(repo, seedPath); err != nil {
				return err
			}
		}
		repos = repositories{repo, repo, repo, repo, repo, repo, repo, repo}
		log.Warn("DATABASE_URL not set, using in-memory persistence")
	}

	var locker ports.RunLocker
	if strings.TrimSpace(cfg.RedisURL) != "" {
		rdb, err := redisstore.Open(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		closers = append(closers, rdb.Close)

		repos.latest = redisstore.NewLocationIndex(rdb)
		locker = redisstore.NewRunLocker(rdb)
		log.Info("using redis for latest locations and run locking")
	}

	var notifier ports.Notifier = notify.NewLogNotifier(log)
	if len(cfg.Kafka.Brokers) > 0 {
		k, err := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.NotificationTopic)
		if err != nil {
			return err
		}
		closers = append(closers, k.Close)
		notifier = k
	}

	var provider ports.RouteProvider
	if strings.TrimSpace(cfg.ORS.APIKey) != "" {
		p, err := routing.NewORSProvider(routing.ORSOptions{
			APIKey:        cfg.ORS.APIKey,
			BaseURL:       cfg.ORS.BaseURL,
			Profile:       cfg.ORS.Profile,
			Timeout:       cfg.ORS.Timeout,
			WaypointLimit: cfg.ORS.WaypointLimit,
		}, log)
		if err != nil {
			return err
		}
		provider = p

		if sqlDB != nil && cfg.ORS.CacheTTL > 0 {
			rc := cache.NewSQLRouteCache(sqlDB, cfg.ORS.CacheTTL)
			if err := rc.EnsureSchema(ctx); err != nil {
				return err
			}
			provider = routing.NewCachedProvider(p, rc, "ors/"+cfg.ORS.Profile, log)
		}
	} else {
		log.Warn("ORS_API_KEY not set, routes use the nearest-neighbor heuristic")
	}

	workdayStart, err := config.ParseClock(cfg.Schedule.WorkdayStart)
	if err != nil {
		return err
	}
	fleetTZ, err := cfg.Schedule.Location()
	if err != nil {
		return err
	}

	optimizer := services.NewRouteOptimizer(provider, services.RouteOptimizerConfig{
		Enabled:            cfg.Routing.OptimizationEnabled,
		AverageSpeedKmh:    cfg.Routing.AverageSpeedKmh,
		FuelLitersPer100Km: cfg.Routing.FuelLitersPer100Km,
		CallSpacing:        cfg.Routing.ProviderCallSpacing,
		ProviderTimeout:    cfg.Routing.ProviderTimeout,
	}, log)

	generator := services.NewScheduleGenerator(repos.visits, repos.trips, optimizer, notifier, services.ScheduleConfig{
		WorkdayStart:         workdayStart,
		Location:             fleetTZ,
		MinVisitMinutes:      cfg.Schedule.MinVisitMinutes,
		MinutesPerOrder:      cfg.Schedule.MinutesPerOrder,
		IncludeRegularVisits: cfg.Schedule.IncludeRegularVisits,
		DefaultOrigin:        cfg.Schedule.DefaultDepot,
	}, log)

	orchestrator := services.NewOrchestrator(repos.distributors, repos.orders, repos.stores, generator, locker, services.OrchestratorConfig{
		Concurrency: cfg.Schedule.Concurrency,
		LockTTL:     cfg.Schedule.LockTTL,
		Location:    fleetTZ,
	}, log)

	locations := services.NewLocationAggregator(repos.locations, repos.latest, repos.distributors, services.LocationConfig{
		StaleAfter:     cfg.Location.StaleAfter,
		MaxSpeedKmh:    cfg.Location.MaxSpeedKmh,
		DefaultHistory: cfg.Location.DefaultHistory,
		MaxHistory:     cfg.Location.MaxHistory,
	}, log)

	performance := services.NewPerformanceCalculator(
		repos.performance, repos.trips, repos.visits, repos.orders, repos.distributors, notifier,
		services.PerformanceConfig{Weights: cfg.Performance.Weights, AlertThreshold: cfg.Performance.AlertThreshold},
		log,
	)

	scheduleJob := jobs.NewRunner("schedule_generation", cfg.Schedule.Interval, orchestrator.Run, log)
	scheduleJob.RunOnStart = true
	scheduleJob.Start(ctx)
	defer scheduleJob.Stop()

	rollupJob := jobs.NewRunner("performance_rollup", cfg.Performance.RollupInterval, func(ctx context.Context) error {
		_, err := performance.CalculateAll(ctx, time.Now().In(fleetTZ).AddDate(0, 0, -1))
		return err
	}, log)
	rollupJob.Start(ctx)
	defer rollupJob.Stop()

	router := api.NewRouter(api.Services{
		Orchestrator: orchestrator,
		Visits:       services.NewVisitService(repos.visits, repos.trips, repos.distributors, repos.orders, log),
		Trips:        services.NewTripService(repos.trips, repos.visits, repos.distributors, locations, cfg.Routing.FuelLitersPer100Km, log),
		Locations:    locations,
		Performance:  performance,
	}, log)

	// Timeouts leave room for a full schedule regeneration with provider calls.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// seedMemory loads a seed file into the in-memory repository for local runs.
func seedMemory(repo *memory.Repository, path string) error {
	s, err := postgres.ReadSeed(path)
	if err != nil {
		return err
	}

	for _, st := range s.Stores {
		repo.PutStore(domain.Store{ID: st.ID, Name: st.Name, Address: st.Address, Location: st.Location})
	}
	for _, d := range s.Distributors {
		active := d.Active == nil || *d.Active
		repo.PutDistributor(domain.Distributor{
			ID:            d.ID,
			Name:          d.Name,
			Active:        active,
			WorkingStatus: domain.WorkingAvailable,
			DepotLocation: d.Depot,
		})
		repo.AssignStores(d.ID, d.Stores...)
	}
	for _, o := range s.Orders {
		date, err := domain.ParseDate(o.DeliveryDate)
		if err != nil {
			return err
		}
		repo.PutOrder(domain.Order{
			ID:            o.ID,
			DistributorID: o.DistributorID,
			StoreID:       o.StoreID,
			Priority:      o.Priority,
			Status:        domain.OrderStatus(o.Status),
			DeliveryDate:  date,
		})
	}
	return nil
}
