package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	apiCalls        *prometheus.CounterVec
	ordersSubmitted *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide metrics registered with the default registerer
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotepo_http_requests_total",
			Help: "HTTP requests handled by route and status code.",
		},
		[]string{"route", "status_code"},
	)

	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quotepo_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	apiCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotepo_xero_api_calls_total",
			Help: "Outbound Xero API calls by operation and status code (0 = transport error).",
		},
		[]string{"operation", "status_code"},
	)

	ordersSubmitted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotepo_purchase_orders_total",
			Help: "Purchase orders built and submitted.",
		},
		[]string{"result"}, // built | sent | rejected
	)

	registerer.MustRegister(httpRequests, httpDuration, apiCalls, ordersSubmitted)

	return &Metrics{
		httpRequests:    httpRequests,
		httpDuration:    httpDuration,
		apiCalls:        apiCalls,
		ordersSubmitted: ordersSubmitted,
	}
}

func (m *Metrics) ObserveRequest(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	route = normalizeRoute(route)
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func (m *Metrics) ObserveAPICall(operation string, status int) {
	if m == nil {
		return
	}
	m.apiCalls.WithLabelValues(operation, strconv.Itoa(status)).Inc()
}

func (m *Metrics) IncOrder(result string) {
	if m == nil {
		return
	}
	m.ordersSubmitted.WithLabelValues(result).Inc()
}

func normalizeRoute(route string) string {
	route = strings.TrimSpace(route)
	if route == "" {
		return "unmatched"
	}
	return route
}
