package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once sync.Once

	registry *prom.Registry

	rebuildDuration *prom.HistogramVec
	patchDuration   *prom.HistogramVec
	patchRetries    prom.Counter
	registryEntries prom.Gauge
	connectedClients prom.Gauge
	watcherEvents   *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics
// (idempotent per instance). A nil registry gets a fresh one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.once.Do(func() {
		pr.rebuildDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "bookpreview",
			Name:      "rebuild_duration_seconds",
			Help:      "Duration of full book rebuilds",
			Buckets:   prom.DefBuckets,
		}, []string{"outcome"})
		pr.patchDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "bookpreview",
			Name:      "patch_duration_seconds",
			Help:      "Duration of single-chapter patch renders",
			Buckets:   prom.DefBuckets,
		}, []string{"outcome"})
		pr.patchRetries = prom.NewCounter(prom.CounterOpts{
			Namespace: "bookpreview",
			Name:      "patch_retries_total",
			Help:      "Count of patch-render retries before falling back to a full rebuild",
		})
		pr.registryEntries = prom.NewGauge(prom.GaugeOpts{
			Namespace: "bookpreview",
			Name:      "registry_entries",
			Help:      "Number of rendered-HTML paths currently tracked by the patch registry",
		})
		pr.connectedClients = prom.NewGauge(prom.GaugeOpts{
			Namespace: "bookpreview",
			Name:      "connected_clients",
			Help:      "Number of connected live-reload WebSocket clients",
		})
		pr.watcherEvents = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bookpreview",
			Name:      "watcher_events_total",
			Help:      "Filesystem change events observed after debouncing",
		}, []string{"caused_rebuild"})
		reg.MustRegister(
			pr.rebuildDuration,
			pr.patchDuration,
			pr.patchRetries,
			pr.registryEntries,
			pr.connectedClients,
			pr.watcherEvents,
		)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveRebuildDuration(d time.Duration, outcome RebuildOutcome) {
	if p == nil || p.rebuildDuration == nil {
		return
	}
	p.rebuildDuration.WithLabelValues(string(outcome)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObservePatchDuration(d time.Duration, outcome PatchOutcome) {
	if p == nil || p.patchDuration == nil {
		return
	}
	p.patchDuration.WithLabelValues(string(outcome)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPatchRetry() {
	if p == nil || p.patchRetries == nil {
		return
	}
	p.patchRetries.Inc()
}

func (p *PrometheusRecorder) SetRegistryEntries(n int) {
	if p == nil || p.registryEntries == nil {
		return
	}
	p.registryEntries.Set(float64(n))
}

func (p *PrometheusRecorder) SetConnectedClients(n int) {
	if p == nil || p.connectedClients == nil {
		return
	}
	p.connectedClients.Set(float64(n))
}

func (p *PrometheusRecorder) IncWatcherEvents(causedRebuild bool) {
	if p == nil || p.watcherEvents == nil {
		return
	}
	label := "false"
	if causedRebuild {
		label = "true"
	}
	p.watcherEvents.WithLabelValues(label).Inc()
}

// Handler returns an http.Handler serving this recorder's registry in the
// Prometheus exposition format, for mounting at a /metrics route.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

var _ Recorder = (*PrometheusRecorder)(nil)
