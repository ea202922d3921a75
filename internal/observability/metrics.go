package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ProvisionRequests *prometheus.CounterVec
	ProviderErrors    *prometheus.CounterVec
	CardLookups       *prometheus.CounterVec
	DispatchLatency   prometheus.Histogram
	ProvisionLatency  prometheus.Histogram

	Window *ProvisionWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ProvisionRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provision_requests_total",
			Help:      "Session provisioning requests by outcome.",
		}, []string{"outcome"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and code.",
		}, []string{"provider", "code"}),
		CardLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "card_lookups_total",
			Help:      "Card document lookups by result.",
		}, []string{"result"}),
		DispatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_latency_ms",
			Help:      "Latency of agent dispatch calls in milliseconds.",
			Buckets:   []float64{25, 50, 100, 200, 400, 800, 1600, 5000},
		}),
		ProvisionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provision_latency_ms",
			Help:      "End-to-end provisioning latency in milliseconds.",
			Buckets:   []float64{25, 50, 100, 200, 400, 800, 1600, 5000},
		}),
		Window: NewProvisionWindow(256),
	}
}

func (m *Metrics) ObserveDispatchLatency(d time.Duration) {
	m.DispatchLatency.Observe(float64(d.Milliseconds()))
}

// ObserveProvision records a finished provisioning attempt.
func (m *Metrics) ObserveProvision(a Attempt) {
	m.ProvisionRequests.WithLabelValues(a.Outcome).Inc()
	m.ProvisionLatency.Observe(float64(a.Total.Milliseconds()))
	m.Window.Record(a)
}

func (m *Metrics) SnapshotWindow() WindowSnapshot {
	if m == nil {
		var empty *ProvisionWindow
		return empty.Snapshot()
	}
	return m.Window.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
