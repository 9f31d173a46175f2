// Package metrics exposes Prometheus instrumentation for ingest, grouping,
// QC recomputes and the HTTP edge.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/listenupapp/mediaqc-server/internal/grouping"
)

const namespace = "mediaqc"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	filesIngested     *prometheus.CounterVec
	groups            prometheus.Gauge
	selectedFiles     prometheus.Gauge
	rescans           *prometheus.CounterVec
	recomputes        *prometheus.CounterVec
	recomputeDuration *prometheus.HistogramVec
	recomputeInflight prometheus.Gauge
	qcRows            prometheus.Gauge
	entryEdits        prometheus.Counter
	rateLimited       prometheus.Counter
	sseClients        prometheus.Gauge
}

// New registers every collector, plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		filesIngested: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_ingested_total",
			Help:      "Files seen by ingest, by outcome.",
		}, []string{"outcome"}),
		groups: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "groups",
			Help:      "Subject/session groups from the latest ingest.",
		}),
		selectedFiles: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "selected_file_names",
			Help:      "File names currently selected for display.",
		}),
		rescans: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_rescans_total",
			Help:      "Media root rescans, by result.",
		}, []string{"result"}),
		recomputes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "qc",
			Name:      "recomputes_total",
			Help:      "Finished QC entry recomputes, by reason.",
		}, []string{"reason"}),
		recomputeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "qc",
			Name:      "recompute_duration_seconds",
			Help:      "Wall time of QC entry recomputes.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"reason"}),
		recomputeInflight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "qc",
			Name:      "recomputes_inflight",
			Help:      "QC recomputes currently running.",
		}),
		qcRows: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "qc",
			Name:      "rows",
			Help:      "Rows in the imported QC sheet.",
		}),
		entryEdits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "qc",
			Name:      "entry_edits_total",
			Help:      "Direct single-cell QC edits.",
		}),
		rateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		sseClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sse",
			Name:      "clients",
			Help:      "Connected event stream clients.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveIngest records one ingest call.
func (m *Metrics) ObserveIngest(stats grouping.IngestStats) {
	m.filesIngested.WithLabelValues("admitted").Add(float64(stats.Admitted))
	m.filesIngested.WithLabelValues("skipped_short_path").Add(float64(stats.SkippedShortPath))
	m.filesIngested.WithLabelValues("skipped_extension").Add(float64(stats.SkippedExtension))
	m.groups.Set(float64(stats.Groups))
}

// SetSelected records the size of the current selection.
func (m *Metrics) SetSelected(n int) {
	m.selectedFiles.Set(float64(n))
}

// ObserveRescan records a rescan outcome.
func (m *Metrics) ObserveRescan(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.rescans.WithLabelValues(result).Inc()
}

// RecomputeStarted marks a recompute as running.
func (m *Metrics) RecomputeStarted() {
	m.recomputeInflight.Inc()
}

// RecomputeFinished records a finished recompute.
func (m *Metrics) RecomputeFinished(reason string, d time.Duration) {
	m.recomputeInflight.Dec()
	m.recomputes.WithLabelValues(reason).Inc()
	m.recomputeDuration.WithLabelValues(reason).Observe(d.Seconds())
}

// SetQCRows records the size of the imported sheet.
func (m *Metrics) SetQCRows(n int) {
	m.qcRows.Set(float64(n))
}

// EntryEdited counts a direct edit.
func (m *Metrics) EntryEdited() {
	m.entryEdits.Inc()
}

// RateLimited counts a rejected request.
func (m *Metrics) RateLimited() {
	m.rateLimited.Inc()
}

// SetSSEClients records the number of connected stream clients.
func (m *Metrics) SetSSEClients(n int) {
	m.sseClients.Set(float64(n))
}
