package analytics

import (
	"testing"
	"time"
)

func TestSLAPolicy_Targets(t *testing.T) {
	policy := SLAPolicy{
		Default: SLATargets{
			FirstResponse: 5 * time.Minute,
			Resolution:    4 * time.Hour,
		},
		ByPriority: map[string]SLATargets{
			"high": {FirstResponse: 1 * time.Minute, Resolution: 30 * time.Minute},
		},
		ByChannel: map[string]SLATargets{
			"whatsapp": {FirstResponse: 3 * time.Minute, Resolution: 2 * time.Hour},
		},
	}

	tests := []struct {
		name     string
		priority string
		channel  string
		expected SLATargets
	}{
		{
			name:     "priority override wins over channel",
			priority: "high",
			channel:  "whatsapp",
			expected: policy.ByPriority["high"],
		},
		{
			name:     "channel override when priority unknown",
			priority: "normal",
			channel:  "whatsapp",
			expected: policy.ByChannel["whatsapp"],
		},
		{
			name:     "default when nothing matches",
			priority: "normal",
			channel:  "telegram",
			expected: policy.Default,
		},
		{
			name:     "default for empty fields",
			priority: "",
			channel:  "",
			expected: policy.Default,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Targets(tt.priority, tt.channel)
			if got != tt.expected {
				t.Errorf("Targets(%q, %q) = %+v, want %+v", tt.priority, tt.channel, got, tt.expected)
			}
		})
	}
}

func TestDefaultSLAPolicy(t *testing.T) {
	policy := DefaultSLAPolicy()

	if policy.Default.FirstResponse != 5*time.Minute {
		t.Errorf("default first response = %v, want 5m", policy.Default.FirstResponse)
	}

	high := policy.Targets("high", "")
	if high.FirstResponse >= policy.Default.FirstResponse {
		t.Error("high priority target should be tighter than the default")
	}
}
