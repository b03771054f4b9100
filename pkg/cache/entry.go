// Package cache provides a Redis-backed cache for computed KPI snapshots so
// repeated dashboard reads do not recompute aggregates on every request.
package cache

import (
	"time"
)

// Entry is a cached KPI snapshot.
type Entry struct {
	// Data is the JSON-encoded snapshot.
	Data []byte `json:"data"`

	// ComputedAt is when the snapshot was calculated.
	ComputedAt time.Time `json:"computed_at"`

	// Expires is when the snapshot becomes stale.
	Expires time.Time `json:"expires"`
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
