// Package queue implements FIFO admission control for outbound B2Chat API
// calls. It throttles dispatches to a per-second and a per-day ceiling so the
// sync pipeline stays inside the platform's quota.
package queue

import (
	"time"
)

// Window lengths for the two rolling rate counters.
const (
	// SecondWindow is the length of the short rate window.
	SecondWindow = 1 * time.Second

	// DayWindow is the length of the daily quota window.
	DayWindow = 24 * time.Hour
)

// windowState holds the two rolling rate counters. It is mutated only by the
// drain loop while holding the queue mutex.
type windowState struct {
	// requestsThisSecond counts successful dispatches in the current
	// one-second window.
	requestsThisSecond int

	// lastDispatch is the timestamp of the most recent successful dispatch.
	// The one-second window is measured from here.
	lastDispatch time.Time

	// requestsToday counts successful dispatches in the current day window.
	requestsToday int

	// dayStart is when the current day window began.
	dayStart time.Time
}

// secondElapsed reports whether the one-second window has passed since the
// last dispatch.
func (s *windowState) secondElapsed(now time.Time) bool {
	return now.Sub(s.lastDispatch) >= SecondWindow
}

// dayElapsed reports whether the daily window has passed since it started.
func (s *windowState) dayElapsed(now time.Time) bool {
	return now.Sub(s.dayStart) >= DayWindow
}

// recordDispatch increments both counters after a successful dispatch.
// Failed operations do not consume quota.
func (s *windowState) recordDispatch(now time.Time) {
	s.requestsThisSecond++
	s.requestsToday++
	s.lastDispatch = now
}

// Stats is a point-in-time snapshot of queue state. It has no side effects
// and is safe to expose on diagnostics endpoints.
type Stats struct {
	QueueLength          int `json:"queue_length"`
	RequestsThisSecond   int `json:"requests_this_second"`
	RequestsToday        int `json:"requests_today"`
	MaxRequestsPerSecond int `json:"max_requests_per_second"`
	MaxRequestsPerDay    int `json:"max_requests_per_day"`
}
