package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for queue operations.
var (
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "b2chat_queue_depth",
		Help: "Number of operations waiting in the rate-limited queue",
	})

	queueDispatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "b2chat_queue_dispatches_total",
		Help: "Total operations dispatched by the queue, by outcome",
	}, []string{"outcome"})

	queueWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "b2chat_queue_wait_seconds",
		Help:    "Time operations spend queued before dispatch",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 300},
	})

	queueThrottleSleepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "b2chat_queue_throttle_sleeps_total",
		Help: "Times the drain loop slept because the per-second ceiling was hit",
	})

	queueDailyStallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "b2chat_queue_daily_stalls_total",
		Help: "Times the drain loop stopped because the daily ceiling was hit",
	})
)

// Result carries the settled outcome of a submitted operation.
type Result[T any] struct {
	Value T
	Err   error
}

// item is one queued operation. run executes the caller's function, delivers
// the outcome on the caller's channel, and reports whether it succeeded.
type item struct {
	run        func(ctx context.Context) bool
	enqueuedAt time.Time
}

// Queue serializes operations and throttles them to a per-second and a
// per-day ceiling while preserving FIFO order.
//
// Only one drain loop runs at a time; the counters and the FIFO slice are
// only touched under the mutex, so a single Queue is safe for concurrent
// Submit calls. The queue offers no priority, cancellation, or timeout: a
// caller wanting a deadline must race the returned channel against its own
// timer and accept that the operation may still execute later.
type Queue struct {
	mu       sync.Mutex
	items    []*item
	draining bool
	state    windowState

	maxPerSecond int
	maxPerDay    int

	logger zerolog.Logger

	// Injected for tests.
	now   func() time.Time
	sleep func(time.Duration)
}

// New creates a queue with the given per-second and per-day ceilings.
func New(maxPerSecond, maxPerDay int, logger zerolog.Logger) (*Queue, error) {
	if maxPerSecond <= 0 {
		return nil, fmt.Errorf("max_per_second must be > 0 (got %d)", maxPerSecond)
	}
	if maxPerDay <= 0 {
		return nil, fmt.Errorf("max_per_day must be > 0 (got %d)", maxPerDay)
	}

	return &Queue{
		maxPerSecond: maxPerSecond,
		maxPerDay:    maxPerDay,
		state:        windowState{dayStart: time.Now()},
		logger:       logger,
		now:          time.Now,
		sleep:        time.Sleep,
	}, nil
}

// Submit appends fn to the queue and returns a 1-buffered channel that
// receives the settled result exactly once. FIFO order follows Submit call
// order. fn must tolerate arbitrary delay before it runs.
//
// Submit is a package-level function because Go methods cannot carry their
// own type parameters.
func Submit[T any](q *Queue, fn func(ctx context.Context) (T, error)) <-chan Result[T] {
	out := make(chan Result[T], 1)

	it := &item{
		enqueuedAt: q.now(),
		run: func(ctx context.Context) bool {
			v, err := fn(ctx)
			out <- Result[T]{Value: v, Err: err}
			return err == nil
		},
	}

	q.mu.Lock()
	q.items = append(q.items, it)
	depth := len(q.items)
	start := !q.draining
	if start {
		q.draining = true
	}
	q.mu.Unlock()

	queueDepth.Set(float64(depth))

	if start {
		go q.drain()
	}

	return out
}

// drain services the queue until it is empty or the daily ceiling is hit.
// When the daily ceiling stops the loop, nothing restarts it except a later
// Submit call; items already queued wait until then. Callers that need
// guaranteed eventual drainage must layer a timed re-submit on top.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		now := q.now()

		if q.state.dayElapsed(now) {
			q.state.requestsToday = 0
			q.state.dayStart = now
		}

		if q.state.requestsToday >= q.maxPerDay {
			pending := len(q.items)
			q.draining = false
			q.mu.Unlock()

			queueDailyStallsTotal.Inc()
			q.logger.Warn().
				Int("queue_length", pending).
				Int("max_requests_per_day", q.maxPerDay).
				Msg("Daily ceiling reached - queue stalled until next submit")
			return
		}

		if q.state.secondElapsed(now) {
			q.state.requestsThisSecond = 0
		}

		if q.state.requestsThisSecond >= q.maxPerSecond {
			wait := SecondWindow - now.Sub(q.state.lastDispatch)
			q.mu.Unlock()

			queueThrottleSleepsTotal.Inc()
			q.logger.Debug().
				Dur("sleep", wait).
				Msg("Per-second ceiling reached - sleeping")
			q.sleep(wait)
			continue
		}

		if len(q.items) == 0 {
			q.draining = false
			q.mu.Unlock()
			queueDepth.Set(0)
			return
		}

		head := q.items[0]
		q.items = q.items[1:]
		depth := len(q.items)
		q.mu.Unlock()

		queueDepth.Set(float64(depth))
		queueWaitSeconds.Observe(q.now().Sub(head.enqueuedAt).Seconds())

		// One operation in flight at a time; a failure settles only its own
		// caller and never halts the loop.
		ok := head.run(context.Background())
		if ok {
			q.mu.Lock()
			q.state.recordDispatch(q.now())
			q.mu.Unlock()
			queueDispatchesTotal.WithLabelValues("success").Inc()
		} else {
			queueDispatchesTotal.WithLabelValues("error").Inc()
		}
	}
}

// Stats returns a snapshot of the queue state without side effects.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	requestsThisSecond := q.state.requestsThisSecond
	if q.state.secondElapsed(q.now()) {
		requestsThisSecond = 0
	}

	return Stats{
		QueueLength:          len(q.items),
		RequestsThisSecond:   requestsThisSecond,
		RequestsToday:        q.state.requestsToday,
		MaxRequestsPerSecond: q.maxPerSecond,
		MaxRequestsPerDay:    q.maxPerDay,
	}
}

// setClock replaces the time source and sleep function (for testing).
func (q *Queue) setClock(now func() time.Time, sleep func(time.Duration)) {
	q.now = now
	q.sleep = sleep
}
