// Command b2chat-sync runs the B2Chat sync and analytics service: it mirrors
// contacts and chats into MySQL through the rate-limited queue and serves KPI
// summaries over HTTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/PedroPJaramillo/b2chat-analytics-sub003/pkg/analytics"
	"github.com/PedroPJaramillo/b2chat-analytics-sub003/pkg/b2chat"
	"github.com/PedroPJaramillo/b2chat-analytics-sub003/pkg/cache"
	"github.com/PedroPJaramillo/b2chat-analytics-sub003/pkg/config"
	"github.com/PedroPJaramillo/b2chat-analytics-sub003/pkg/logging"
	"github.com/PedroPJaramillo/b2chat-analytics-sub003/pkg/queue"
	"github.com/PedroPJaramillo/b2chat-analytics-sub003/pkg/storage"
	"github.com/PedroPJaramillo/b2chat-analytics-sub003/pkg/syncer"
)

const dateFormat = "2006-01-02"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})
	logger := logging.NewLogger("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(cfg.MySQLDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open database")
	}
	store := storage.NewStore(db)

	cacheManager := newCacheManager(ctx, cfg, logger)

	client, err := b2chat.New(b2chat.Config{
		BaseURL:     cfg.B2ChatBaseURL,
		Username:    cfg.B2ChatUsername,
		Password:    cfg.B2ChatPassword,
		HTTPTimeout: cfg.HTTPTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create B2Chat client")
	}

	q, err := queue.New(cfg.MaxRequestsPerSecond, cfg.MaxRequestsPerDay, logging.NewLogger("queue"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create request queue")
	}

	s := syncer.New(client, store, q, cfg.SyncPageSize)
	kpis := analytics.NewService(store, cacheManager, analytics.DefaultSLAPolicy(), analytics.DefaultBusinessHours())

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/stats", handleStats(q))
	mux.HandleFunc("/sync/contacts", handleSync(s.SyncContacts))
	mux.HandleFunc("/sync/chats", handleSync(s.SyncChats))
	mux.HandleFunc("/kpis", handleKPIs(kpis))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute, // sync endpoints run the full page loop
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("Server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown failed")
	}
}

// newCacheManager connects to Redis when configured. A missing or
// unreachable Redis downgrades to uncached summaries rather than failing
// startup.
func newCacheManager(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *cache.Manager {
	if cfg.RedisAddr == "" {
		logger.Info().Msg("Redis not configured, KPI caching disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unreachable, KPI caching disabled")
		return nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis connected")
	return cache.NewManager(client)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleStats(q *queue.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, q.Stats())
	}
}

func handleSync(run func(ctx context.Context, window syncer.Window) (*storage.SyncRun, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		window, err := parseWindow(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		result, err := run(r.Context(), window)
		if err != nil {
			status := http.StatusBadGateway
			var apiErr *b2chat.APIError
			if errors.As(err, &apiErr) && apiErr.IsAuthenticationError() {
				status = http.StatusServiceUnavailable
			}
			writeJSON(w, status, map[string]any{
				"error": err.Error(),
				"run":   result,
			})
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func handleKPIs(kpis *analytics.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		window, err := parseWindow(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		to := window.To
		if to.IsZero() {
			to = time.Now().UTC()
		}
		from := window.From
		if from.IsZero() {
			from = to.AddDate(0, 0, -7)
		}

		summary, err := kpis.Summary(r.Context(), from, to)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, summary)
	}
}

func parseWindow(r *http.Request) (syncer.Window, error) {
	var window syncer.Window

	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err := time.Parse(dateFormat, raw)
		if err != nil {
			return window, errors.New("invalid 'from' date, expected YYYY-MM-DD")
		}
		window.From = from
	}

	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err := time.Parse(dateFormat, raw)
		if err != nil {
			return window, errors.New("invalid 'to' date, expected YYYY-MM-DD")
		}
		window.To = to
	}

	if !window.From.IsZero() && !window.To.IsZero() && window.To.Before(window.From) {
		return window, errors.New("'to' must not be before 'from'")
	}

	return window, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
