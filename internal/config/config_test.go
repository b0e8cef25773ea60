package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("ROUTE_OPTIMIZATION_ENABLED", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.ORS.WaypointLimit)
	assert.Equal(t, 24*time.Hour, cfg.ORS.CacheTTL)
	assert.Equal(t, 30.0, cfg.Routing.AverageSpeedKmh)
	assert.Equal(t, 8.0, cfg.Routing.FuelLitersPer100Km)
	assert.Equal(t, 200*time.Millisecond, cfg.Routing.ProviderCallSpacing)
	assert.Equal(t, time.Hour, cfg.Schedule.Interval)
	assert.Equal(t, 0.4, cfg.Performance.Weights.Completion)

	loc, err := cfg.Schedule.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestScheduleTimezoneFromEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("SCHEDULE_TIMEZONE", "Europe/Brussels")

	cfg, err := Load()
	require.NoError(t, err)
	loc, err := cfg.Schedule.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Brussels", loc.String())

	cfg.Schedule.Timezone = "Mars/Olympus"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule.timezone")
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
port: "9090"
routing:
  average_speed_kmh: 25
  provider_timeout: 5s
schedule:
  interval: 30m
  workday_start: "07:30"
  default_depot:
    lat: 50.85
    lon: 4.35
performance:
  weights:
    completion: 0.5
    on_time: 0.3
    base: 20
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("SCHEDULE_CONCURRENCY", "4")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 25.0, cfg.Routing.AverageSpeedKmh)
	assert.Equal(t, 5*time.Second, cfg.Routing.ProviderTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Schedule.Interval)
	assert.Equal(t, 4, cfg.Schedule.Concurrency)
	assert.Equal(t, 50.85, cfg.Schedule.DefaultDepot.Lat)
	assert.Equal(t, 0.5, cfg.Performance.Weights.Completion)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Routing.AverageSpeedKmh = 0
	cfg.Schedule.WorkdayStart = "8am"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "average_speed_kmh")
	assert.Contains(t, err.Error(), "8am")
}

func TestParseClock(t *testing.T) {
	d, err := ParseClock("08:15")
	require.NoError(t, err)
	assert.Equal(t, 8*time.Hour+15*time.Minute, d)
}
