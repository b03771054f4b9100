// Package b2chat provides a typed, authenticated client for the B2Chat
// export API with defensive per-record parsing.
package b2chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for B2Chat API operations.
var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "b2chat_api_requests_total",
		Help: "Total B2Chat API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "b2chat_api_request_duration_seconds",
		Help:    "B2Chat API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	apiRecordFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "b2chat_api_record_failures_total",
		Help: "Per-record parse/validation failures by endpoint",
	}, []string{"endpoint"})

	tokenRefreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "b2chat_token_refreshes_total",
		Help: "Total OAuth token exchanges performed",
	})
)

// API endpoints.
const (
	EndpointToken          = "/oauth/token"
	EndpointContactsExport = "/contacts/export"
	EndpointChatsExport    = "/chats/export"
)

// tokenExpiryMargin is subtracted from the provider's stated expiry so a
// token is refreshed before it actually lapses mid-request.
const tokenExpiryMargin = 1 * time.Minute

// truncateBodyAt caps how much response body an APIError carries.
const truncateBodyAt = 2048

// Config holds the client configuration. Credentials come from the
// environment in production (see pkg/config).
type Config struct {
	// BaseURL of the B2Chat API, without trailing slash.
	BaseURL string

	// Username and Password for the client-credentials token exchange.
	Username string
	Password string

	// HTTPTimeout for each request (default 30s).
	HTTPTimeout time.Duration
}

// Client is the B2Chat API client. It is safe for concurrent use; the cached
// token is guarded by its own mutex.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
	validate   *validator.Validate

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
}

// New creates a new B2Chat client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("credentials are required")
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		config:   cfg,
		logger:   log.With().Str("component", "b2chat-client").Logger(),
		validate: validator.New(),
	}, nil
}

// authenticate ensures a valid bearer token is cached. It is a no-op while
// the cached token is still inside its validity window minus the safety
// margin; otherwise it performs a client-credentials exchange.
func (c *Client) authenticate(ctx context.Context) error {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-tokenExpiryMargin)) {
		c.logger.Debug().
			Time("token_expiry", c.tokenExpiry).
			Msg("Reusing cached token")
		return nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	tokenURL := c.config.BaseURL + EndpointToken
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.config.Username, c.config.Password)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error().
			Int("status_code", resp.StatusCode).
			Msg("Token exchange failed")
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       truncate(body),
			Endpoint:   EndpointToken,
			URL:        tokenURL,
		}
	}

	var granted struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &granted); err != nil {
		return &APIError{
			StatusCode: StatusInvalidEnvelope,
			Body:       truncate(body),
			Endpoint:   EndpointToken,
			URL:        tokenURL,
			Err:        err,
		}
	}
	if granted.AccessToken == "" {
		return &APIError{
			StatusCode: StatusInvalidEnvelope,
			Body:       truncate(body),
			Endpoint:   EndpointToken,
			URL:        tokenURL,
			Err:        fmt.Errorf("token response missing access_token"),
		}
	}

	c.token = granted.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(granted.ExpiresIn) * time.Second)
	tokenRefreshesTotal.Inc()

	c.logger.Debug().
		Time("token_expiry", c.tokenExpiry).
		Msg("Token refreshed")

	return nil
}

// doGet authenticates, performs a GET against an export endpoint, and
// returns the raw body. Non-2xx statuses become *APIError.
func (c *Client) doGet(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	if err := c.authenticate(ctx); err != nil {
		return nil, err
	}

	fullURL := c.config.BaseURL + endpoint
	if encoded := query.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.tokenMu.Lock()
	req.Header.Set("Authorization", "Bearer "+c.token)
	c.tokenMu.Unlock()
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	apiRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		apiRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", endpoint, err)
	}

	apiRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Body:       truncate(body),
			Endpoint:   endpoint,
			URL:        fullURL,
		}
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status_code", resp.StatusCode).
			Bool("retryable", apiErr.IsRetryable()).
			Msg("B2Chat request error")
		return nil, apiErr
	}

	return body, nil
}

func truncate(body []byte) string {
	if len(body) > truncateBodyAt {
		return string(body[:truncateBodyAt])
	}
	return string(body)
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
