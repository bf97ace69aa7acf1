// Package metrics holds the HTTP surface metrics. Domain metrics live with
// their modules.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Requests        *prometheus.CounterVec
	EndpointLatency *prometheus.HistogramVec
	InFlight        prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verichain_http_requests_total",
			Help: "HTTP requests by route pattern, method and status",
		}, []string{"route", "method", "status"}),
		// Issue and claim wait on the ledger, so the upper buckets matter.
		EndpointLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "verichain_http_request_duration_seconds",
			Help:    "Latency of HTTP requests by route pattern",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"route", "method"}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "verichain_http_requests_in_flight",
			Help: "Requests currently being served",
		}),
	}
}

// ObserveRequest records one finished request. Safe on a nil receiver.
func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.EndpointLatency.WithLabelValues(route, method).Observe(d.Seconds())
}

func (m *Metrics) RequestStarted() {
	if m != nil {
		m.InFlight.Inc()
	}
}

func (m *Metrics) RequestFinished() {
	if m != nil {
		m.InFlight.Dec()
	}
}
