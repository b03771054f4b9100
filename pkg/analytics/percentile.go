// Package analytics computes response-time and SLA compliance KPIs over
// synced chats.
package analytics

import (
	"math"
	"sort"
	"time"
)

// Percentile returns the p-th percentile (0-100) of durations using linear
// interpolation between closest ranks. Returns 0 for empty input. The input
// slice is not modified.
func Percentile(durations []time.Duration, p float64) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}

	frac := rank - float64(lo)
	return sorted[lo] + time.Duration(frac*float64(sorted[hi]-sorted[lo]))
}

// ResponseStats summarizes a set of durations.
type ResponseStats struct {
	Count  int           `json:"count"`
	Avg    time.Duration `json:"avg"`
	Median time.Duration `json:"median"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	Max    time.Duration `json:"max"`
}

// ComputeResponseStats builds summary statistics for a set of durations.
func ComputeResponseStats(durations []time.Duration) ResponseStats {
	stats := ResponseStats{Count: len(durations)}
	if len(durations) == 0 {
		return stats
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
		if d > stats.Max {
			stats.Max = d
		}
	}

	stats.Avg = sum / time.Duration(len(durations))
	stats.Median = Percentile(durations, 50)
	stats.P90 = Percentile(durations, 90)
	stats.P95 = Percentile(durations, 95)

	return stats
}
