package lifecycle

import (
	"testing"
	"time"

	"review-hub/models"

	"github.com/stretchr/testify/assert"
)

func TestWithinBusinessHours(t *testing.T) {
	bh := models.BusinessHours{
		Enabled:  true,
		Start:    "09:00",
		End:      "18:00",
		Timezone: "UTC",
	}

	tests := []struct {
		name     string
		hour     int
		expected bool
	}{
		{"营业前", 8, false},
		{"营业中", 12, true},
		{"打烊后", 20, false},
		{"整点开门", 9, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Date(2026, 8, 1, tt.hour, 0, 0, 0, time.UTC)
			assert.Equal(t, tt.expected, WithinBusinessHours(bh, now))
		})
	}
}

func TestWithinBusinessHours_Disabled(t *testing.T) {
	bh := models.BusinessHours{Enabled: false}
	now := time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC)
	assert.True(t, WithinBusinessHours(bh, now))
}

func TestWithinBusinessHours_Overnight(t *testing.T) {
	bh := models.BusinessHours{
		Enabled:  true,
		Start:    "22:00",
		End:      "06:00",
		Timezone: "UTC",
	}

	assert.True(t, WithinBusinessHours(bh, time.Date(2026, 8, 1, 23, 0, 0, 0, time.UTC)))
	assert.True(t, WithinBusinessHours(bh, time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC)))
	assert.False(t, WithinBusinessHours(bh, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)))
}

func TestWithinBusinessHours_BadConfig(t *testing.T) {
	bh := models.BusinessHours{Enabled: true, Start: "bad", End: "18:00", Timezone: "UTC"}
	assert.True(t, WithinBusinessHours(bh, time.Now()))
}
