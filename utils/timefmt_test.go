package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDateTime(t *testing.T) {
	instant := time.Date(2024, 3, 10, 21, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		zone   string
		layout string
		want   string
	}{
		{"moscow", "Europe/Moscow", "02.01.2006 15:04", "11.03.2024 00:30"},
		{"utc", "UTC", "2006-01-02 15:04", "2024-03-10 21:30"},
		{"new york", "America/New_York", "15:04 MST", "17:30 EDT"},
		{"unknown zone falls back to utc", "Mars/Olympus", "02.01.2006 15:04", "10.03.2024 21:30"},
		{"empty zone", "", "15:04", "21:30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDateTime(instant, tt.zone, tt.layout))
		})
	}
}

func TestFormatDateTime_NonUTCInput(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	instant := time.Date(2024, 1, 1, 5, 0, 0, 0, loc)
	assert.Equal(t, "2024-01-01 00:00", FormatDateTime(instant, "bogus", "2006-01-02 15:04"))
}
