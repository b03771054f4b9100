package cache

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Key identifies a cached KPI snapshot by what was aggregated.
type Key struct {
	// Kind names the snapshot type (e.g. "kpi_summary").
	Kind string

	// From/To bound the aggregation window.
	From time.Time
	To   time.Time

	// Filters are optional dimension filters (e.g. {"channel": "whatsapp"}).
	Filters map[string]string
}

// String generates a deterministic cache key string.
// Format: b2chat:kind:from=...:to=...:filter1=val1
//
// Example:
//
//	b2chat:kpi_summary:from=2024-03-01:to=2024-03-31:channel=whatsapp
func (k Key) String() string {
	parts := []string{"b2chat"}

	if k.Kind != "" {
		parts = append(parts, k.Kind)
	}

	if !k.From.IsZero() {
		parts = append(parts, fmt.Sprintf("from=%s", k.From.Format("2006-01-02")))
	}
	if !k.To.IsZero() {
		parts = append(parts, fmt.Sprintf("to=%s", k.To.Format("2006-01-02")))
	}

	// Filters sorted for determinism
	if len(k.Filters) > 0 {
		filterKeys := make([]string, 0, len(k.Filters))
		for key := range k.Filters {
			filterKeys = append(filterKeys, key)
		}
		sort.Strings(filterKeys)

		for _, key := range filterKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.Filters[key]))
		}
	}

	return strings.Join(parts, ":")
}
