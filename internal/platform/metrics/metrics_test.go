package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRequest(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveRequest("/credentials/{id}/claim", "POST", 409, 20*time.Millisecond)
	m.ObserveRequest("/credentials/{id}/claim", "POST", 409, 30*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Requests.WithLabelValues("/credentials/{id}/claim", "POST", "409")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.EndpointLatency))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("/", "GET", 200, time.Millisecond)
		m.RequestStarted()
		m.RequestFinished()
	})
}
