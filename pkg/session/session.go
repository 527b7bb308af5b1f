// Package session executes authenticated requests against the Spark REST
// API with timeouts and rate-limit handling.
//
// A Session is read-only after New and safe for concurrent use. Every call
// is independent; no cursor or per-call state lives on the Session.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Futuramistic/Bot/pkg/logging"
	"github.com/Futuramistic/Bot/pkg/ratelimit"
	"github.com/Futuramistic/Bot/pkg/validate"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Defaults for the recognized configuration options.
const (
	DefaultBaseURL              = "https://api.ciscospark.com/v1/"
	DefaultSingleRequestTimeout = 60 * time.Second
	DefaultWaitOnRateLimit      = true
	DefaultMaxRetryWait         = 5 * time.Minute
	DefaultRetryAfter           = 15 * time.Second

	// AccessTokenEnvVar is consulted by TokenFromEnv.
	AccessTokenEnvVar = "SPARK_ACCESS_TOKEN"
)

// Prometheus metrics for Spark requests.
var (
	sparkRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spark_requests_total",
		Help: "Total Spark HTTP round trips by method, resource and status",
	}, []string{"method", "resource", "status"})

	sparkRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spark_request_duration_seconds",
		Help:    "Spark call duration in seconds, retries included, by method",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method"})

	sparkErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spark_errors_total",
		Help: "Total Spark call failures by class",
	}, []string{"class"})
)

// Config holds the session configuration.
type Config struct {
	// BaseURL is the API root. It is normalized to end with a single "/".
	BaseURL string

	// AccessToken is sent as a bearer token. It is never logged.
	AccessToken string

	// Timeout bounds an entire operation, rate-limit waits included.
	// Zero means unbounded.
	Timeout time.Duration

	// SingleRequestTimeout bounds one HTTP round trip.
	SingleRequestTimeout time.Duration

	// WaitOnRateLimit sleeps and retries on 429 when true; when false a 429
	// is returned immediately as an APIError.
	WaitOnRateLimit bool

	// MaxRetryWait caps a single rate-limit sleep. Longer server-requested
	// waits are clamped and logged.
	MaxRetryWait time.Duration

	// DefaultRetryAfter is used when a 429 carries no Retry-After header.
	DefaultRetryAfter time.Duration

	// RateLimitStore optionally shares cooldowns with other sessions.
	RateLimitStore ratelimit.Store

	// HTTPClient overrides the underlying client (for testing). Its Timeout
	// is set to SingleRequestTimeout when zero.
	HTTPClient *http.Client

	// Logger overrides the component logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns the default configuration for token.
func DefaultConfig(accessToken string) Config {
	return Config{
		BaseURL:              DefaultBaseURL,
		AccessToken:          accessToken,
		SingleRequestTimeout: DefaultSingleRequestTimeout,
		WaitOnRateLimit:      DefaultWaitOnRateLimit,
		MaxRetryWait:         DefaultMaxRetryWait,
		DefaultRetryAfter:    DefaultRetryAfter,
	}
}

// TokenFromEnv returns the access token from SPARK_ACCESS_TOKEN.
func TokenFromEnv() (string, error) {
	token := strings.TrimSpace(os.Getenv(AccessTokenEnvVar))
	if token == "" {
		return "", fmt.Errorf("%w: set %s or pass a token", ErrMissingToken, AccessTokenEnvVar)
	}
	return token, nil
}

// Session performs authenticated requests.
type Session struct {
	config  Config
	baseURL *url.URL
	client  *retryablehttp.Client
	store   ratelimit.Store
	logger  zerolog.Logger
}

// New creates a session. Zero-valued durations take their defaults; note
// that WaitOnRateLimit has no zero default, so start from DefaultConfig.
func New(cfg Config) (*Session, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, ErrMissingToken
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !baseURL.IsAbs() || baseURL.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}
	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/"
	cfg.BaseURL = baseURL.String()

	if cfg.SingleRequestTimeout <= 0 {
		cfg.SingleRequestTimeout = DefaultSingleRequestTimeout
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %v)", cfg.Timeout)
	}
	if cfg.Timeout > 0 && cfg.SingleRequestTimeout > cfg.Timeout {
		return nil, fmt.Errorf("single_request_timeout (%v) must not exceed timeout (%v)",
			cfg.SingleRequestTimeout, cfg.Timeout)
	}
	if cfg.MaxRetryWait <= 0 {
		cfg.MaxRetryWait = DefaultMaxRetryWait
	}
	if cfg.DefaultRetryAfter <= 0 {
		cfg.DefaultRetryAfter = DefaultRetryAfter
	}

	logger := logging.NewLogger("spark-session")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	httpClient := &http.Client{}
	if cfg.HTTPClient != nil {
		copied := *cfg.HTTPClient
		httpClient = &copied
	}
	if httpClient.Timeout == 0 {
		httpClient.Timeout = cfg.SingleRequestTimeout
	}

	s := &Session{
		config:  cfg,
		baseURL: baseURL,
		store:   cfg.RateLimitStore,
		logger:  logger,
	}
	s.client = s.newRetryClient(httpClient)

	logger.Debug().
		Str("base_url", cfg.BaseURL).
		Bool("token_set", true).
		Dur("timeout", cfg.Timeout).
		Dur("single_request_timeout", cfg.SingleRequestTimeout).
		Bool("wait_on_rate_limit", cfg.WaitOnRateLimit).
		Msg("Session created")

	return s, nil
}

// BaseURL returns the normalized API root.
func (s *Session) BaseURL() string {
	return s.config.BaseURL
}

// Timeout returns the overall operation timeout (0 = unbounded).
func (s *Session) Timeout() time.Duration {
	return s.config.Timeout
}

// SingleRequestTimeout returns the per-round-trip timeout.
func (s *Session) SingleRequestTimeout() time.Duration {
	return s.config.SingleRequestTimeout
}

// WaitOnRateLimit reports the rate-limit policy.
func (s *Session) WaitOnRateLimit() bool {
	return s.config.WaitOnRateLimit
}

// Request describes one API call.
type Request struct {
	Method string

	// Path is relative to the base URL, or an absolute URL (next links).
	Path string

	Query url.Values

	// Body is marshaled as JSON when non-nil.
	Body any
}

// Response is a successful (2xx) response.
type Response struct {
	StatusCode int
	Header     http.Header

	// Body is nil for 204 and empty bodies.
	Body json.RawMessage

	// URL is the final request URL, used to resolve relative links.
	URL *url.URL
}

// Get performs a GET and returns the JSON body.
func (s *Session) Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	resp, err := s.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: params})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Post performs a POST with a JSON body.
func (s *Session) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	resp, err := s.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Put performs a PUT with a JSON body.
func (s *Session) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	resp, err := s.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Delete performs a DELETE.
func (s *Session) Delete(ctx context.Context, path string) error {
	_, err := s.Do(ctx, Request{Method: http.MethodDelete, Path: path})
	return err
}

// Do performs a request with the session's timeout and rate-limit policy.
// This is the core request method that every verb goes through.
func (s *Session) Do(ctx context.Context, r Request) (*Response, error) {
	if err := validate.Required("path", r.Path); err != nil {
		return nil, err
	}
	if r.Method == "" {
		r.Method = http.MethodGet
	}
	op := r.Method + " " + s.opPath(r.Path)

	startTime := time.Now()
	defer func() {
		sparkRequestDuration.WithLabelValues(r.Method).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Bound the whole operation
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	// Step 2: Build the request
	target, err := s.resolve(r.Path, r.Query)
	if err != nil {
		return nil, err
	}

	var rawBody []byte
	if r.Body != nil {
		rawBody, err = json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	var body interface{}
	if rawBody != nil {
		body = rawBody
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, r.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.AccessToken)
	req.Header.Set("Accept", "application/json")
	if rawBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// Step 3: Honor a cooldown shared by another session
	if err := s.awaitCooldown(ctx); err != nil {
		return nil, s.fail(op, err)
	}

	// Step 4: Execute with the 429 retry policy
	resp, err := s.client.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, s.fail(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, s.fail(op, err)
	}

	// Step 5: Map non-2xx to APIError
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp, data)
		sparkErrorsTotal.WithLabelValues(string(apiErr.Class())).Inc()
		s.logger.Warn().
			Str("op", op).
			Int("status", resp.StatusCode).
			Str("error_class", string(apiErr.Class())).
			Str("tracking_id", apiErr.TrackingID).
			Msg("Spark request error")
		return nil, apiErr
	}

	result := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		URL:        resp.Request.URL,
	}

	data = bytes.TrimSpace(data)
	if resp.StatusCode != http.StatusNoContent && len(data) > 0 {
		if !json.Valid(data) {
			return nil, fmt.Errorf("%s: decode response body: invalid JSON", op)
		}
		result.Body = json.RawMessage(data)
	}

	return result, nil
}

// fail classifies an error that produced no usable response.
func (s *Session) fail(op string, err error) error {
	var urlErr *url.Error
	timedOut := errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &urlErr) && urlErr.Timeout())

	switch {
	case timedOut:
		sparkErrorsTotal.WithLabelValues(string(ErrorClassTimeout)).Inc()
		s.logger.Warn().Err(err).Str("op", op).Msg("Spark request timed out")
		return &TimeoutError{Op: op, Err: err}
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	default:
		sparkErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		s.logger.Error().Err(err).Str("op", op).Msg("Spark request failed")
		return &TransportError{Op: op, Err: err}
	}
}

// resolve joins path to the base URL (absolute URLs pass through) and
// merges query parameters.
func (s *Session) resolve(path string, query url.Values) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, &validate.Error{Field: "path", Reason: err.Error()}
	}

	var target *url.URL
	if ref.IsAbs() {
		target = ref
	} else {
		ref.Path = strings.TrimLeft(ref.Path, "/")
		target = s.baseURL.ResolveReference(ref)
	}

	if len(query) > 0 {
		merged := target.Query()
		for key, values := range query {
			merged[key] = values
		}
		target.RawQuery = merged.Encode()
	}

	return target, nil
}

// opPath strips the query from a path for log and error labels.
func (s *Session) opPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

// resourceLabel reduces a request path to its first segment below the API
// root so metric labels stay bounded (IDs are dropped).
func resourceLabel(path, basePath string) string {
	rel := strings.TrimPrefix(path, basePath)
	rel = strings.Trim(rel, "/")
	if i := strings.IndexByte(rel, '/'); i >= 0 {
		rel = rel[:i]
	}
	if rel == "" {
		return "root"
	}
	return rel
}
