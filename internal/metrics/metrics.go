// Package metrics exposes Prometheus instrumentation for the HTTP layer and
// the authorization flow.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "authenticator"

// Results used as label values.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Metrics holds every collector. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        prometheus.Gauge

	codesIssued      *prometheus.CounterVec
	tokenRequests    *prometheus.CounterVec
	logins           *prometheus.CounterVec
	federatedLogins  *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry, including the Go runtime
// and process collectors.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests processed, by route and status.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_inflight_requests",
			Help:      "HTTP requests currently being served.",
		}),
		codesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authorization_codes_issued_total",
			Help:      "Authorization codes issued after consent.",
		}, []string{"tenant"}),
		tokenRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_requests_total",
			Help:      "Token endpoint requests by grant type and result.",
		}, []string{"tenant", "grant_type", "result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "password_logins_total",
			Help:      "Directory logins by result.",
		}, []string{"tenant", "result"}),
		federatedLogins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "federated_logins_total",
			Help:      "Identity provider callbacks by result.",
		}, []string{"tenant", "result"}),
		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "federated_login_duration_seconds",
			Help:      "Time spent completing an identity provider callback.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"tenant"}),
	}

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpInflight,
		m.codesIssued,
		m.tokenRequests,
		m.logins,
		m.federatedLogins,
		m.providerDuration,
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records count, latency and in-flight requests. The route label
// is the chi route pattern so path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInflight.Inc()
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			m.httpInflight.Dec()
			route := routePattern(r)
			method := strings.ToUpper(r.Method)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		}()
		next.ServeHTTP(ww, r)
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func (m *Metrics) CodeIssued(tenantID string) {
	if m == nil {
		return
	}
	m.codesIssued.WithLabelValues(tenantID).Inc()
}

func (m *Metrics) TokenRequest(tenantID, grantType, result string) {
	if m == nil {
		return
	}
	m.tokenRequests.WithLabelValues(tenantID, grantType, result).Inc()
}

func (m *Metrics) Login(tenantID, result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(tenantID, result).Inc()
}

func (m *Metrics) FederatedLogin(tenantID, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.federatedLogins.WithLabelValues(tenantID, result).Inc()
	m.providerDuration.WithLabelValues(tenantID).Observe(took.Seconds())
}
