package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone names resolve without a system zoneinfo

	"distribution-service/internal/domain"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is loaded once at startup and injected into the components that need it.
type Config struct {
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"log_level"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`

	Kafka       KafkaConfig       `yaml:"kafka"`
	ORS         ORSConfig         `yaml:"ors"`
	Routing     RoutingConfig     `yaml:"routing"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Location    LocationConfig    `yaml:"location"`
	Performance PerformanceConfig `yaml:"performance"`
}

type KafkaConfig struct {
	Brokers           []string `yaml:"brokers"`
	NotificationTopic string   `yaml:"notification_topic"`
}

type ORSConfig struct {
	APIKey        string        `yaml:"api_key"`
	BaseURL       string        `yaml:"base_url"`
	Profile       string        `yaml:"profile"`
	Timeout       time.Duration `yaml:"timeout"`
	WaypointLimit int           `yaml:"waypoint_limit"`
	// CacheTTL bounds the age of cached optimization responses. Zero disables the cache.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type RoutingConfig struct {
	OptimizationEnabled bool          `yaml:"optimization_enabled"`
	AverageSpeedKmh     float64       `yaml:"average_speed_kmh"`
	FuelLitersPer100Km  float64       `yaml:"fuel_liters_per_100km"`
	ProviderCallSpacing time.Duration `yaml:"provider_call_spacing"`
	ProviderTimeout     time.Duration `yaml:"provider_timeout"`
}

type ScheduleConfig struct {
	Interval             time.Duration      `yaml:"interval"`
	Concurrency          int                `yaml:"concurrency"`
	LockTTL              time.Duration      `yaml:"lock_ttl"`
	WorkdayStart         string             `yaml:"workday_start"`
	Timezone             string             `yaml:"timezone"`
	MinVisitMinutes      int                `yaml:"min_visit_minutes"`
	MinutesPerOrder      int                `yaml:"minutes_per_order"`
	IncludeRegularVisits bool               `yaml:"include_regular_visits"`
	DefaultDepot         domain.Coordinates `yaml:"default_depot"`
}

type LocationConfig struct {
	StaleAfter     time.Duration `yaml:"stale_after"`
	MaxSpeedKmh    float64       `yaml:"max_speed_kmh"`
	DefaultHistory int           `yaml:"default_history_limit"`
	MaxHistory     int           `yaml:"max_history_limit"`
}

type PerformanceConfig struct {
	Weights        domain.ScoreWeights `yaml:"weights"`
	AlertThreshold float64             `yaml:"alert_threshold"`
	RollupInterval time.Duration       `yaml:"rollup_interval"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:     "8080",
		LogLevel: "info",
		Kafka: KafkaConfig{
			NotificationTopic: "distributor-notifications",
		},
		ORS: ORSConfig{
			BaseURL:       "https://api.openrouteservice.org",
			Profile:       "driving-car",
			Timeout:       10 * time.Second,
			WaypointLimit: 25,
			CacheTTL:      24 * time.Hour,
		},
		Routing: RoutingConfig{
			OptimizationEnabled: true,
			AverageSpeedKmh:     30,
			FuelLitersPer100Km:  8,
			ProviderCallSpacing: 200 * time.Millisecond,
			ProviderTimeout:     8 * time.Second,
		},
		Schedule: ScheduleConfig{
			Interval:             time.Hour,
			Concurrency:          1,
			LockTTL:              30 * time.Minute,
			WorkdayStart:         "08:00",
			Timezone:             "UTC",
			MinVisitMinutes:      15,
			MinutesPerOrder:      5,
			IncludeRegularVisits: true,
		},
		Location: LocationConfig{
			StaleAfter:     30 * time.Minute,
			MaxSpeedKmh:    200,
			DefaultHistory: 100,
			MaxHistory:     1000,
		},
		Performance: PerformanceConfig{
			Weights:        domain.DefaultScoreWeights(),
			AlertThreshold: 60,
			RollupInterval: 24 * time.Hour,
		},
	}
}

// Load reads .env (optional), then the YAML file at CONFIG_PATH (optional),
// then applies environment overrides.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("CONFIG_PATH")); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config: parse %q: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

// Get returns the environment value for key, or fallback when unset.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c *Config) applyEnv() error {
	c.Port = Get("PORT", c.Port)
	c.LogLevel = Get("LOG_LEVEL", c.LogLevel)
	c.DatabaseURL = Get("DATABASE_URL", c.DatabaseURL)
	c.RedisURL = Get("REDIS_URL", c.RedisURL)
	c.ORS.APIKey = Get("ORS_API_KEY", c.ORS.APIKey)
	c.ORS.BaseURL = Get("ORS_BASE_URL", c.ORS.BaseURL)
	c.Kafka.NotificationTopic = Get("KAFKA_NOTIFICATION_TOPIC", c.Kafka.NotificationTopic)
	c.Schedule.Timezone = Get("SCHEDULE_TIMEZONE", c.Schedule.Timezone)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}

	if v := os.Getenv("ROUTE_OPTIMIZATION_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ROUTE_OPTIMIZATION_ENABLED: %w", err)
		}
		c.Routing.OptimizationEnabled = b
	}

	if v := os.Getenv("ORS_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ORS_CACHE_TTL: %w", err)
		}
		c.ORS.CacheTTL = d
	}

	if v := os.Getenv("SCHEDULE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SCHEDULE_INTERVAL: %w", err)
		}
		c.Schedule.Interval = d
	}

	if v := os.Getenv("SCHEDULE_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SCHEDULE_CONCURRENCY: %w", err)
		}
		c.Schedule.Concurrency = n
	}

	if v := os.Getenv("PERFORMANCE_ALERT_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("PERFORMANCE_ALERT_THRESHOLD: %w", err)
		}
		c.Performance.AlertThreshold = f
	}

	return nil
}

// Validate rejects settings the services cannot run with.
func (c Config) Validate() error {
	var errs []error

	if c.Routing.AverageSpeedKmh <= 0 {
		errs = append(errs, errors.New("routing.average_speed_kmh must be > 0"))
	}
	if c.Routing.FuelLitersPer100Km < 0 {
		errs = append(errs, errors.New("routing.fuel_liters_per_100km must be >= 0"))
	}
	if c.ORS.WaypointLimit <= 0 {
		errs = append(errs, errors.New("ors.waypoint_limit must be > 0"))
	}
	if c.ORS.CacheTTL < 0 {
		errs = append(errs, errors.New("ors.cache_ttl must be >= 0"))
	}
	if c.Schedule.Interval <= 0 {
		errs = append(errs, errors.New("schedule.interval must be > 0"))
	}
	if c.Schedule.Concurrency <= 0 {
		errs = append(errs, errors.New("schedule.concurrency must be > 0"))
	}
	if c.Schedule.MinVisitMinutes <= 0 || c.Schedule.MinutesPerOrder < 0 {
		errs = append(errs, errors.New("schedule visit durations must be positive"))
	}
	if _, err := ParseClock(c.Schedule.WorkdayStart); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Schedule.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.Performance.RollupInterval <= 0 {
		errs = append(errs, errors.New("performance.rollup_interval must be > 0"))
	}
	if c.Location.DefaultHistory <= 0 || c.Location.MaxHistory < c.Location.DefaultHistory {
		errs = append(errs, errors.New("location history limits are inconsistent"))
	}

	return errors.Join(errs...)
}

// ParseClock parses an HH:MM time of day into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q (want HH:MM)", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Location resolves Timezone. Empty means UTC.
func (s ScheduleConfig) Location() (*time.Location, error) {
	if strings.TrimSpace(s.Timezone) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: %w", err)
	}
	return loc, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
