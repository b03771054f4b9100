package analytics

import (
	"time"
)

// SLATargets holds the two per-chat service targets.
type SLATargets struct {
	// FirstResponse is the maximum acceptable time between chat creation and
	// agent pickup.
	FirstResponse time.Duration `json:"first_response"`

	// Resolution is the maximum acceptable time between creation and close.
	Resolution time.Duration `json:"resolution"`
}

// SLAPolicy resolves targets for a chat. A priority override wins over a
// channel override, which wins over the default.
type SLAPolicy struct {
	Default    SLATargets            `json:"default"`
	ByPriority map[string]SLATargets `json:"by_priority,omitempty"`
	ByChannel  map[string]SLATargets `json:"by_channel,omitempty"`
}

// DefaultSLAPolicy returns a conservative starting policy.
func DefaultSLAPolicy() SLAPolicy {
	return SLAPolicy{
		Default: SLATargets{
			FirstResponse: 5 * time.Minute,
			Resolution:    4 * time.Hour,
		},
		ByPriority: map[string]SLATargets{
			"high": {
				FirstResponse: 2 * time.Minute,
				Resolution:    1 * time.Hour,
			},
		},
	}
}

// Targets resolves the applicable targets for a priority/channel pair.
func (p SLAPolicy) Targets(priority, channel string) SLATargets {
	if t, ok := p.ByPriority[priority]; ok {
		return t
	}
	if t, ok := p.ByChannel[channel]; ok {
		return t
	}
	return p.Default
}
