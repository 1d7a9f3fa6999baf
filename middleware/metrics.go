package middleware

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics observes request durations and in-flight counts with Prometheus.
// Create one with NewMetrics, register it, and wrap the router with Handler.
type Metrics struct {
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewMetrics creates the request metrics under the given namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies by method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of requests currently being served.",
		}),
	}
}

// Register implements prometheus.Collector registration for the metric set.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if err := reg.Register(m.duration); err != nil {
		return err
	}
	return reg.Register(m.inFlight)
}

// Handler returns the middleware observing every request.
func (m *Metrics) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.inFlight.Inc()
			defer m.inFlight.Dec()

			rec := &statusRecorder{ResponseWriter: w}
			timer := prometheus.NewTimer(nil)
			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			m.duration.WithLabelValues(r.Method, strconv.Itoa(status)).
				Observe(timer.ObserveDuration().Seconds())
		})
	}
}
