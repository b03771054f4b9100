// Package syncer drives paginated B2Chat exports through the rate-limited
// queue and persists the results.
package syncer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/PedroPJaramillo/b2chat-analytics-sub003/pkg/b2chat"
	"github.com/PedroPJaramillo/b2chat-analytics-sub003/pkg/queue"
	"github.com/PedroPJaramillo/b2chat-analytics-sub003/pkg/storage"
)

// API is the slice of the B2Chat client the syncer needs.
type API interface {
	GetContacts(ctx context.Context, params b2chat.PageParams) (*b2chat.ContactPage, error)
	GetChats(ctx context.Context, params b2chat.PageParams) (*b2chat.ChatPage, error)
}

// Sink is the slice of the store the syncer needs.
type Sink interface {
	UpsertContacts(ctx context.Context, contacts []b2chat.Contact) error
	UpsertChats(ctx context.Context, chats []b2chat.Chat) error
	CreateSyncRun(ctx context.Context, run *storage.SyncRun) error
	FinishSyncRun(ctx context.Context, run *storage.SyncRun) error
}

// Window bounds a sync to a date range. A zero window syncs everything the
// export endpoints will serve.
type Window struct {
	From time.Time
	To   time.Time
}

// Syncer pages through the export endpoints. Each page fetch goes through
// the queue so concurrent syncs share one quota budget.
type Syncer struct {
	api      API
	sink     Sink
	queue    *queue.Queue
	pageSize int
	logger   zerolog.Logger
}

// New creates a Syncer. pageSize <= 0 selects the client default.
func New(api API, sink Sink, q *queue.Queue, pageSize int) *Syncer {
	if pageSize <= 0 {
		pageSize = b2chat.DefaultPageSize
	}
	return &Syncer{
		api:      api,
		sink:     sink,
		queue:    q,
		pageSize: pageSize,
		logger:   log.With().Str("component", "syncer").Logger(),
	}
}

// SyncContacts pulls every contacts page in the window and upserts it.
// The returned run reflects the terminal state even when err is non-nil.
func (s *Syncer) SyncContacts(ctx context.Context, window Window) (*storage.SyncRun, error) {
	run := s.startRun(ctx, "contacts")

	err := s.pageLoop(ctx, run, func(ctx context.Context, page int) (pageResult, error) {
		params := s.pageParams(page, window)

		// The queue's context is detached by design; the export call uses
		// the caller's.
		res := <-queue.Submit(s.queue, func(context.Context) (*b2chat.ContactPage, error) {
			return s.api.GetContacts(ctx, params)
		})
		if res.Err != nil {
			return pageResult{}, res.Err
		}

		if err := s.sink.UpsertContacts(ctx, res.Value.Contacts); err != nil {
			return pageResult{}, err
		}

		return pageResult{
			records:  len(res.Value.Contacts),
			failures: len(res.Value.Errors),
			hasNext:  res.Value.Pagination.HasNextPage,
		}, nil
	})

	return s.finishRun(ctx, run, err)
}

// SyncChats pulls every chats page in the window and upserts it.
func (s *Syncer) SyncChats(ctx context.Context, window Window) (*storage.SyncRun, error) {
	run := s.startRun(ctx, "chats")

	err := s.pageLoop(ctx, run, func(ctx context.Context, page int) (pageResult, error) {
		params := s.pageParams(page, window)

		res := <-queue.Submit(s.queue, func(context.Context) (*b2chat.ChatPage, error) {
			return s.api.GetChats(ctx, params)
		})
		if res.Err != nil {
			return pageResult{}, res.Err
		}

		if err := s.sink.UpsertChats(ctx, res.Value.Chats); err != nil {
			return pageResult{}, err
		}

		return pageResult{
			records:  len(res.Value.Chats),
			failures: len(res.Value.Errors),
			hasNext:  res.Value.Pagination.HasNextPage,
		}, nil
	})

	return s.finishRun(ctx, run, err)
}

type pageResult struct {
	records  int
	failures int
	hasNext  bool
}

func (s *Syncer) pageParams(page int, window Window) b2chat.PageParams {
	return b2chat.PageParams{
		Page:     page,
		Limit:    s.pageSize,
		DateFrom: window.From,
		DateTo:   window.To,
	}
}

func (s *Syncer) pageLoop(ctx context.Context, run *storage.SyncRun, fetch func(ctx context.Context, page int) (pageResult, error)) error {
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := fetch(ctx, page)
		if err != nil {
			return err
		}

		run.Pages++
		run.Records += result.records
		run.Failures += result.failures

		s.logger.Debug().
			Str("sync_run_id", run.ID).
			Str("resource", run.Resource).
			Int("page", page).
			Int("records", result.records).
			Int("parse_failures", result.failures).
			Msg("Page synced")

		if !result.hasNext {
			return nil
		}
	}
}

func (s *Syncer) startRun(ctx context.Context, resource string) *storage.SyncRun {
	run := &storage.SyncRun{
		ID:        uuid.NewString(),
		Resource:  resource,
		Status:    storage.SyncRunRunning,
		StartedAt: time.Now(),
	}

	if err := s.sink.CreateSyncRun(ctx, run); err != nil {
		// Bookkeeping failure should not stop the sync itself.
		s.logger.Warn().Err(err).Str("resource", resource).Msg("Failed to record sync run start")
	}

	s.logger.Info().
		Str("sync_run_id", run.ID).
		Str("resource", resource).
		Msg("Sync started")

	return run
}

func (s *Syncer) finishRun(ctx context.Context, run *storage.SyncRun, err error) (*storage.SyncRun, error) {
	now := time.Now()
	run.FinishedAt = &now

	if err != nil {
		run.Status = storage.SyncRunFailed
		run.Error = err.Error()
	} else {
		run.Status = storage.SyncRunSucceeded
	}

	if finishErr := s.sink.FinishSyncRun(ctx, run); finishErr != nil {
		s.logger.Warn().Err(finishErr).Str("sync_run_id", run.ID).Msg("Failed to record sync run finish")
	}

	event := s.logger.Info()
	if err != nil {
		event = s.logger.Error().Err(err)
	}
	event.
		Str("sync_run_id", run.ID).
		Str("resource", run.Resource).
		Str("status", run.Status).
		Int("pages", run.Pages).
		Int("records", run.Records).
		Int("parse_failures", run.Failures).
		Dur("duration", now.Sub(run.StartedAt)).
		Msg("Sync finished")

	return run, err
}
