// Package metrics exposes Prometheus collectors for the price aggregation service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchAttemptsTotal         *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	fetchRetriesTotal          *prometheus.CounterVec
	headlessPromotionsTotal    *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	aggregationsTotal          *prometheus.CounterVec
	inflightAggregations       prometheus.Gauge
	alertsTotal                *prometheus.CounterVec
	rateLimitDelaySeconds      *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricewatch_fetch_attempts_total",
				Help: "Total number of transport attempts, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricewatch_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		fetchRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricewatch_fetch_retries_total",
				Help: "Total number of retried fetch attempts, labeled by site.",
			},
			[]string{"site"},
		)

		headlessPromotionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricewatch_headless_promotions_total",
				Help: "Total number of fetches re-rendered with a headless browser.",
			},
			[]string{"site"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route"},
		)

		aggregationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricewatch_aggregations_total",
				Help: "Total number of aggregations, labeled by result.",
			},
			[]string{"result"},
		)

		inflightAggregations = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pricewatch_inflight_aggregations",
				Help: "Number of aggregations currently fanning out to retailers.",
			},
		)

		alertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricewatch_alerts_total",
				Help: "Savings alerts considered, labeled by retailer and result.",
			},
			[]string{"retailer", "result"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricewatch_rate_limit_delay_seconds",
				Help:    "Time spent waiting on the per-host rate limiter.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"site"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one transport attempt.
func ObserveFetch(site string, outcome string, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	fetchAttemptsTotal.WithLabelValues(sanitizedSite, outcome).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveFetchRetry increments the retry counter for a site.
func ObserveFetchRetry(site string) {
	Init()
	fetchRetriesTotal.WithLabelValues(SanitizeSite(site)).Inc()
}

// ObserveHeadlessPromotion counts a fetch that fell back to the headless renderer.
func ObserveHeadlessPromotion(site string) {
	Init()
	headlessPromotionsTotal.WithLabelValues(SanitizeSite(site)).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveAggregation increments the aggregation counter for the given result.
func ObserveAggregation(result string) {
	Init()
	aggregationsTotal.WithLabelValues(result).Inc()
}

// IncInflightAggregations increments the in-flight aggregation gauge.
func IncInflightAggregations() {
	Init()
	inflightAggregations.Inc()
}

// DecInflightAggregations decrements the in-flight aggregation gauge.
func DecInflightAggregations() {
	Init()
	inflightAggregations.Dec()
}

// ObserveAlert records an alert decision ("created", "deduplicated", "below_threshold").
func ObserveAlert(retailer, result string) {
	Init()
	alertsTotal.WithLabelValues(retailer, result).Inc()
}

// ObserveRateLimitDelay records how long a fetch waited for a rate limit token.
func ObserveRateLimitDelay(site string, delay time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(SanitizeSite(site)).Observe(delay.Seconds())
}
