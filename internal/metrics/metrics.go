// Package metrics exposes Prometheus instruments for ingestion and querying.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "collabrag"

// Metrics methods are safe to call on a nil receiver.
type Metrics struct {
	registry      *prometheus.Registry
	ingests       *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	queries       *prometheus.CounterVec
	passages      prometheus.Histogram
	reindexJobs   *prometheus.CounterVec
	scopeDeletes  *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ingests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_total",
			Help:      "Ingested files by result status.",
		}, []string{"status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"stage"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_total",
			Help:      "Answered prompts by outcome.",
		}, []string{"outcome"}),
		passages: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieved_passages",
			Help:      "Passages retrieved per prompt.",
			Buckets:   prometheus.LinearBuckets(0, 1, 11),
		}),
		reindexJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reindex_jobs_total",
			Help:      "Processed reindex jobs by result.",
		}, []string{"result"}),
		scopeDeletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scope_deletions_total",
			Help:      "Scope deletions by whether they completed cleanly.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ingests, m.stageDuration, m.queries, m.passages, m.reindexJobs, m.scopeDeletes,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveIngest(status string) {
	if m == nil {
		return
	}
	m.ingests.WithLabelValues(status).Inc()
}

// ObserveStage records the time elapsed since start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveQuery(outcome string) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObservePassages(n int) {
	if m == nil {
		return
	}
	m.passages.Observe(float64(n))
}

func (m *Metrics) ObserveReindex(result string) {
	if m == nil {
		return
	}
	m.reindexJobs.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveScopeDeletion(clean bool) {
	if m == nil {
		return
	}
	result := "clean"
	if !clean {
		result = "warnings"
	}
	m.scopeDeletes.WithLabelValues(result).Inc()
}
