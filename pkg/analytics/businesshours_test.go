package analytics

import (
	"testing"
	"time"
)

// 2024-03-04 is a Monday.
func monday(hour, min int) time.Time {
	return time.Date(2024, 3, 4, hour, min, 0, 0, time.UTC)
}

func TestBusinessHours_Elapsed(t *testing.T) {
	hours := DefaultBusinessHours() // Mon-Fri 08:00-18:00 UTC

	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		expected time.Duration
	}{
		{
			name:     "entirely inside window",
			start:    monday(10, 0),
			end:      monday(11, 30),
			expected: 90 * time.Minute,
		},
		{
			name:     "starts before opening",
			start:    monday(6, 0),
			end:      monday(9, 0),
			expected: 1 * time.Hour,
		},
		{
			name:     "ends after closing",
			start:    monday(17, 0),
			end:      monday(20, 0),
			expected: 1 * time.Hour,
		},
		{
			name:     "entirely outside window",
			start:    monday(19, 0),
			end:      monday(22, 0),
			expected: 0,
		},
		{
			name:     "overnight spans into next day",
			start:    monday(17, 0),
			end:      monday(9, 0).AddDate(0, 0, 1), // Tuesday 09:00
			expected: 2 * time.Hour,                 // Mon 17-18 + Tue 8-9
		},
		{
			name:     "weekend excluded",
			start:    time.Date(2024, 3, 1, 17, 0, 0, 0, time.UTC), // Friday 17:00
			end:      monday(9, 0),                                 // Monday 09:00
			expected: 2 * time.Hour,                                // Fri 17-18 + Mon 8-9
		},
		{
			name:     "full closed day contributes nothing",
			start:    time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), // Saturday
			end:      time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), // Sunday
			expected: 0,
		},
		{
			name:     "end before start",
			start:    monday(12, 0),
			end:      monday(11, 0),
			expected: 0,
		},
		{
			name:     "full week of business days",
			start:    monday(8, 0),
			end:      time.Date(2024, 3, 8, 18, 0, 0, 0, time.UTC), // Friday 18:00
			expected: 50 * time.Hour,                               // 5 days x 10h
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hours.Elapsed(tt.start, tt.end)
			if got != tt.expected {
				t.Errorf("Elapsed(%v, %v) = %v, want %v", tt.start, tt.end, got, tt.expected)
			}
		})
	}
}

func TestBusinessHours_ElapsedNeverExceedsWallClock(t *testing.T) {
	hours := DefaultBusinessHours()

	start := monday(9, 0)
	end := monday(9, 45)

	wall := end.Sub(start)
	if got := hours.Elapsed(start, end); got > wall {
		t.Errorf("Elapsed = %v, must not exceed wall-clock %v", got, wall)
	}
}
