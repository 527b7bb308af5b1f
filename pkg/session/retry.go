package session

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for rate-limit retries.
var (
	sparkRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spark_retries_total",
		Help: "Total number of requests re-issued after a 429 response",
	})

	sparkRateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "spark_rate_limit_wait_seconds",
		Help:    "Time slept before re-issuing a rate-limited request",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 300},
	})

	sparkRateLimitClampedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spark_rate_limit_clamped_total",
		Help: "Total number of server-requested waits clamped to the configured ceiling",
	})
)

// retryAfter returns the wait the server asked for on a 429 response.
// Retry-After may be delay-seconds or an HTTP-date; when it is absent or
// unparseable fallback is used.
func retryAfter(resp *http.Response, fallback time.Duration, now time.Time) time.Duration {
	if resp == nil {
		return fallback
	}

	value := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if value == "" {
		return fallback
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return fallback
		}
		return time.Duration(seconds) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		wait := at.Sub(now)
		if wait < 0 {
			return 0
		}
		return wait
	}

	return fallback
}

// rateLimitWait computes the sleep for a 429 response, clamped to the
// configured ceiling. clamped reports whether the ceiling applied.
func (s *Session) rateLimitWait(resp *http.Response) (wait, requested time.Duration, clamped bool) {
	requested = retryAfter(resp, s.config.DefaultRetryAfter, time.Now())
	wait = requested
	if s.config.MaxRetryWait > 0 && wait > s.config.MaxRetryWait {
		wait = s.config.MaxRetryWait
		clamped = true
	}
	return wait, requested, clamped
}

// checkRetry is the retryablehttp policy: only a 429 is retried, and only
// when the session waits on rate limits. Transport errors, 5xx, and other
// 4xx responses end the loop on the first attempt.
func (s *Session) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	if err != nil || resp == nil {
		return false, nil
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		return false, nil
	}

	if s.store != nil {
		wait, _, _ := s.rateLimitWait(resp)
		if blockErr := s.store.Block(ctx, time.Now().Add(wait)); blockErr != nil {
			s.logger.Warn().Err(blockErr).Msg("Failed to record rate limit cooldown")
		}
	}

	return s.config.WaitOnRateLimit, nil
}

// backoff is the retryablehttp backoff: the Retry-After wait, clamped.
// The min/max/attempt arguments of the generic backoff are not used; the
// server's hint is authoritative.
func (s *Session) backoff(_, _ time.Duration, attempt int, resp *http.Response) time.Duration {
	wait, requested, clamped := s.rateLimitWait(resp)

	if clamped {
		sparkRateLimitClampedTotal.Inc()
		s.logger.Warn().
			Dur("retry_after", requested).
			Dur("max_retry_wait", s.config.MaxRetryWait).
			Msg("Server-requested wait exceeds ceiling, clamping")
	}

	sparkRetriesTotal.Inc()
	sparkRateLimitWaitSeconds.Observe(wait.Seconds())

	s.logger.Warn().
		Int("attempt", attempt+1).
		Dur("wait", wait).
		Msg("Rate limited, waiting before retry")

	return wait
}

// awaitCooldown blocks while a shared cooldown recorded by another session
// is active. It is only consulted when the session waits on rate limits.
func (s *Session) awaitCooldown(ctx context.Context) error {
	if s.store == nil || !s.config.WaitOnRateLimit {
		return nil
	}

	state, err := s.store.Get(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read rate limit cooldown")
		return nil
	}

	wait := state.Remaining(time.Now())
	if wait <= 0 {
		return nil
	}
	if s.config.MaxRetryWait > 0 && wait > s.config.MaxRetryWait {
		wait = s.config.MaxRetryWait
	}

	s.logger.Info().
		Dur("wait", wait).
		Time("blocked_until", state.BlockedUntil).
		Msg("Shared rate limit cooldown active, waiting")

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// newRetryClient wires the session's policy into a retryablehttp client.
func (s *Session) newRetryClient(httpClient *http.Client) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = httpClient
	rc.Logger = leveledLogger{logger: s.logger}
	rc.RetryMax = maxRateLimitRetries
	rc.CheckRetry = s.checkRetry
	rc.Backoff = s.backoff
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		s.logger.Debug().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Int("attempt", attempt+1).
			Msg("Executing Spark request")
	}
	rc.ResponseLogHook = func(_ retryablehttp.Logger, resp *http.Response) {
		resource := resourceLabel(resp.Request.URL.Path, s.baseURL.Path)
		sparkRequestsTotal.WithLabelValues(resp.Request.Method, resource, strconv.Itoa(resp.StatusCode)).Inc()
	}
	return rc
}

// maxRateLimitRetries bounds nothing in practice: 429 retries continue until
// a non-429 response arrives or the context deadline fires.
const maxRateLimitRetries = 1<<31 - 1
