package routing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func utcTiers() []TierConfig {
	return []TierConfig{
		{
			ID:              "tier_1",
			OfferID:         "11558",
			Hours:           BusinessHours{StartHour: 9, EndHour: 21, Timezone: "UTC"},
			MaxCallsPerHour: 100,
		},
	}
}

func TestHoursGateIsOpen(t *testing.T) {
	registry, err := NewRegistry(utcTiers())
	require.NoError(t, err)
	gate := NewHoursGate(registry, zap.NewNop())

	tests := []struct {
		name string
		hour int
		min  int
		want bool
	}{
		{name: "before open", hour: 8, min: 59, want: false},
		{name: "at open", hour: 9, min: 0, want: true},
		{name: "midday", hour: 14, min: 30, want: true},
		{name: "last open minute", hour: 20, min: 59, want: true},
		{name: "window end is exclusive", hour: 21, min: 0, want: false},
		{name: "late evening", hour: 22, min: 0, want: false},
		{name: "midnight", hour: 0, min: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Date(2024, 3, 12, tt.hour, tt.min, 0, 0, time.UTC)
			assert.Equal(t, tt.want, gate.IsOpen("tier_1", now))
		})
	}
}

func TestHoursGateTimezoneConversion(t *testing.T) {
	registry, err := NewRegistry([]TierConfig{{
		ID:              "tier_1",
		OfferID:         "11558",
		Hours:           BusinessHours{StartHour: 9, EndHour: 21, Timezone: "US/Eastern"},
		MaxCallsPerHour: 100,
	}})
	require.NoError(t, err)
	gate := NewHoursGate(registry, zap.NewNop())

	// 2024-01-15 is EST (UTC-5): 15:00 UTC = 10:00 local → open,
	// 13:00 UTC = 08:00 local → closed.
	assert.True(t, gate.IsOpen("tier_1", time.Date(2024, 1, 15, 15, 0, 0, 0, time.UTC)))
	assert.False(t, gate.IsOpen("tier_1", time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC)))
}

func TestHoursGateFailsOpenForUnknownTier(t *testing.T) {
	registry, err := NewRegistry(utcTiers())
	require.NoError(t, err)
	gate := NewHoursGate(registry, zap.NewNop())

	// Availability over strictness: a gate that cannot resolve its
	// tier must not block traffic.
	assert.True(t, gate.IsOpen("tier_9", time.Date(2024, 3, 12, 3, 0, 0, 0, time.UTC)))
}
