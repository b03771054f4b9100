package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/PedroPJaramillo/b2chat-analytics-sub003/pkg/cache"
	"github.com/PedroPJaramillo/b2chat-analytics-sub003/pkg/storage"
)

// snapshotTTL is how long a computed summary stays valid in the cache.
const snapshotTTL = 5 * time.Minute

// ChatSource supplies the chats to aggregate.
type ChatSource interface {
	ChatsBetween(ctx context.Context, from, to time.Time) ([]storage.Chat, error)
}

// GroupSummary aggregates one channel or priority bucket.
type GroupSummary struct {
	Chats         int     `json:"chats"`
	SLAMet        int     `json:"sla_met"`
	SLACompliance float64 `json:"sla_compliance"`
}

// Summary is the KPI snapshot served to the dashboard.
type Summary struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	TotalChats int `json:"total_chats"`

	// FirstResponse measures creation to agent pickup on the wall clock;
	// BusinessFirstResponse counts business hours only.
	FirstResponse         ResponseStats `json:"first_response"`
	BusinessFirstResponse ResponseStats `json:"business_first_response"`

	SLAMet        int     `json:"sla_met"`
	SLABreached   int     `json:"sla_breached"`
	SLACompliance float64 `json:"sla_compliance"`

	ByChannel  map[string]GroupSummary `json:"by_channel"`
	ByPriority map[string]GroupSummary `json:"by_priority"`
}

// Service computes KPI summaries and caches them.
type Service struct {
	source ChatSource
	cache  *cache.Manager // nil disables caching
	policy SLAPolicy
	hours  BusinessHours
	logger zerolog.Logger
}

// NewService creates an analytics service. cacheManager may be nil.
func NewService(source ChatSource, cacheManager *cache.Manager, policy SLAPolicy, hours BusinessHours) *Service {
	return &Service{
		source: source,
		cache:  cacheManager,
		policy: policy,
		hours:  hours,
		logger: log.With().Str("component", "analytics").Logger(),
	}
}

// Summary computes the KPI snapshot for [from, to], serving a cached copy
// when one is still valid.
func (s *Service) Summary(ctx context.Context, from, to time.Time) (*Summary, error) {
	key := cache.Key{Kind: "kpi_summary", From: from, To: to}

	if s.cache != nil {
		if entry, err := s.cache.Get(ctx, key); err == nil {
			var cached Summary
			if err := json.Unmarshal(entry.Data, &cached); err == nil {
				s.logger.Debug().
					Time("from", from).
					Time("to", to).
					Msg("Serving cached KPI snapshot")
				return &cached, nil
			}
		} else if err != cache.ErrCacheMiss {
			s.logger.Warn().Err(err).Msg("KPI cache read failed - recomputing")
		}
	}

	chats, err := s.source.ChatsBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	summary := s.compute(from, to, chats)

	if s.cache != nil {
		if data, err := json.Marshal(summary); err == nil {
			entry := cache.NewSnapshotEntry(data, snapshotTTL)
			if err := s.cache.Set(ctx, key, entry); err != nil {
				s.logger.Warn().Err(err).Msg("KPI cache write failed")
			}
		}
	}

	return summary, nil
}

func (s *Service) compute(from, to time.Time, chats []storage.Chat) *Summary {
	summary := &Summary{
		From:       from,
		To:         to,
		TotalChats: len(chats),
		ByChannel:  make(map[string]GroupSummary),
		ByPriority: make(map[string]GroupSummary),
	}

	var responses []time.Duration
	var businessResponses []time.Duration

	for _, chat := range chats {
		if chat.StartedAt == nil || chat.OpenedAt == nil {
			// Never picked up, or a data gap. Excluded from stats.
			continue
		}

		response := chat.OpenedAt.Sub(*chat.StartedAt)
		responses = append(responses, response)
		businessResponses = append(businessResponses, s.hours.Elapsed(*chat.StartedAt, *chat.OpenedAt))

		targets := s.policy.Targets(chat.Priority, chat.Channel)
		met := response <= targets.FirstResponse
		if met && chat.ClosedAt != nil {
			met = chat.ClosedAt.Sub(*chat.StartedAt) <= targets.Resolution
		}

		if met {
			summary.SLAMet++
		} else {
			summary.SLABreached++
		}

		bumpGroup(summary.ByChannel, chat.Channel, met)
		bumpGroup(summary.ByPriority, chat.Priority, met)
	}

	summary.FirstResponse = ComputeResponseStats(responses)
	summary.BusinessFirstResponse = ComputeResponseStats(businessResponses)

	if scored := summary.SLAMet + summary.SLABreached; scored > 0 {
		summary.SLACompliance = float64(summary.SLAMet) / float64(scored)
	}
	for name, group := range summary.ByChannel {
		if group.Chats > 0 {
			group.SLACompliance = float64(group.SLAMet) / float64(group.Chats)
			summary.ByChannel[name] = group
		}
	}
	for name, group := range summary.ByPriority {
		if group.Chats > 0 {
			group.SLACompliance = float64(group.SLAMet) / float64(group.Chats)
			summary.ByPriority[name] = group
		}
	}

	return summary
}

func bumpGroup(groups map[string]GroupSummary, name string, met bool) {
	if name == "" {
		name = "unknown"
	}
	group := groups[name]
	group.Chats++
	if met {
		group.SLAMet++
	}
	groups[name] = group
}
