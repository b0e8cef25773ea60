package validation

import (
	"testing"
	"time"

	"distribution-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructAcceptsValidPing(t *testing.T) {
	battery := 80
	p := domain.LocationPoint{
		DistributorID: 7,
		Latitude:      50.85,
		Longitude:     4.35,
		BatteryLevel:  &battery,
		RecordedAt:    time.Now(),
	}
	assert.NoError(t, Struct(p))
}

func TestStructReportsFieldsByJSONName(t *testing.T) {
	battery := 140
	p := domain.LocationPoint{
		DistributorID: 7,
		Latitude:      91,
		Longitude:     4.35,
		BatteryLevel:  &battery,
	}

	err := Struct(p)
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "latitude must be less than or equal to 90")
	assert.Contains(t, err.Error(), "battery_level must be less than or equal to 100")
	assert.Contains(t, err.Error(), "recorded_at is required")
}
