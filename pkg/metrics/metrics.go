// Package metrics exposes the Prometheus registry used by the Spark client.
// Metrics are defined with promauto next to the code that records them
// (session, pagination, ratelimit, bot); this package serves them and keeps
// the catalogue below.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer promauto uses in every package.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registered metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Description documents one metric.
type Description struct {
	Name   string
	Type   string
	Labels []string
	Owner  string
}

// Catalogue lists every metric the module registers.
var Catalogue = []Description{
	{Name: "spark_requests_total", Type: "counter", Labels: []string{"method", "resource", "status"}, Owner: "session"},
	{Name: "spark_request_duration_seconds", Type: "histogram", Labels: []string{"method"}, Owner: "session"},
	{Name: "spark_errors_total", Type: "counter", Labels: []string{"class"}, Owner: "session"},
	{Name: "spark_retries_total", Type: "counter", Owner: "session"},
	{Name: "spark_rate_limit_wait_seconds", Type: "histogram", Owner: "session"},
	{Name: "spark_rate_limit_clamped_total", Type: "counter", Owner: "session"},
	{Name: "spark_pages_fetched_total", Type: "counter", Owner: "pagination"},
	{Name: "spark_pagination_passes_total", Type: "counter", Labels: []string{"outcome"}, Owner: "pagination"},
	{Name: "spark_rate_limit_cooldowns_total", Type: "counter", Labels: []string{"backend"}, Owner: "ratelimit"},
	{Name: "spark_rate_limit_blocked_until_seconds", Type: "gauge", Labels: []string{"backend"}, Owner: "ratelimit"},
	{Name: "bot_webhook_events_total", Type: "counter", Labels: []string{"outcome"}, Owner: "bot"},
	{Name: "bot_conversation_transitions_total", Type: "counter", Labels: []string{"from", "to"}, Owner: "bot"},
}

// Example Prometheus Queries:
//
//	# Rate-limited share of requests
//	sum(rate(spark_requests_total{status="429"}[5m])) / sum(rate(spark_requests_total[5m]))
//
//	# Time spent waiting on Retry-After
//	rate(spark_rate_limit_wait_seconds_sum[5m])
//
//	# P95 call latency, retries included
//	histogram_quantile(0.95, rate(spark_request_duration_seconds_bucket[5m]))
//
//	# Failed pagination passes
//	rate(spark_pagination_passes_total{outcome="error"}[5m])
