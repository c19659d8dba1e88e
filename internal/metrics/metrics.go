// Package metrics exposes Prometheus instrumentation for jobs, tools and
// the planner.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/visualix/visualix/internal/core"
)

const namespace = "visualix"

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	toolRuns         *prometheus.CounterVec
	toolDuration     *prometheus.HistogramVec
	workflowRuns     *prometheus.CounterVec
	workflowDuration prometheus.Histogram
	jobsByStatus     *prometheus.GaugeVec
	activeRuns       prometheus.Gauge
	plannerRequests  *prometheus.CounterVec
	plannerDuration  prometheus.Histogram
	uploadBytes      prometheus.Counter
	cleanupFiles     prometheus.Counter
	cleanupBytes     prometheus.Counter
}

// New creates and registers the collectors, including Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		toolRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "tool", Name: "runs_total",
			Help: "Tool executions by tool and outcome.",
		}, []string{"tool", "status"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "tool", Name: "duration_seconds",
			Help:    "Wall time of a single tool execution.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"tool"}),
		workflowRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "workflow", Name: "runs_total",
			Help: "Workflow runs by final status.",
		}, []string{"status"}),
		workflowDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "workflow", Name: "duration_seconds",
			Help:    "Wall time of a whole workflow run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		jobsByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "jobs", Name: "by_status",
			Help: "Stored jobs per status.",
		}, []string{"status"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "jobs", Name: "active_runs",
			Help: "Workflow runs currently executing.",
		}),
		plannerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "planner", Name: "requests_total",
			Help: "Planner calls by outcome.",
		}, []string{"outcome"}),
		plannerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "planner", Name: "duration_seconds",
			Help:    "Latency of planner calls.",
			Buckets: prometheus.DefBuckets,
		}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "storage", Name: "upload_bytes_total",
			Help: "Bytes accepted through uploads.",
		}),
		cleanupFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "storage", Name: "cleanup_files_total",
			Help: "Files removed by the cleanup scheduler.",
		}),
		cleanupBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "storage", Name: "cleanup_bytes_total",
			Help: "Bytes freed by the cleanup scheduler.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.toolRuns, m.toolDuration,
		m.workflowRuns, m.workflowDuration,
		m.jobsByStatus, m.activeRuns,
		m.plannerRequests, m.plannerDuration,
		m.uploadBytes, m.cleanupFiles, m.cleanupBytes,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ToolFinished records one tool execution.
func (m *Metrics) ToolFinished(tool string, success bool, d time.Duration) {
	status := "success"
	if !success {
		status = "failed"
	}
	m.toolRuns.WithLabelValues(tool, status).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// WorkflowFinished records the end of a workflow run.
func (m *Metrics) WorkflowFinished(status core.RunStatus, d time.Duration) {
	m.workflowRuns.WithLabelValues(string(status)).Inc()
	m.workflowDuration.Observe(d.Seconds())
}

// RunStarted increments the active run gauge.
func (m *Metrics) RunStarted() { m.activeRuns.Inc() }

// RunEnded decrements the active run gauge.
func (m *Metrics) RunEnded() { m.activeRuns.Dec() }

// SetJobCounts replaces the per-status job gauge.
func (m *Metrics) SetJobCounts(counts map[core.JobStatus]int) {
	for _, s := range core.AllJobStatuses {
		m.jobsByStatus.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}

// PlannerRequest records a planner call.
func (m *Metrics) PlannerRequest(err error, d time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = string(core.GetCategory(err))
	}
	m.plannerRequests.WithLabelValues(outcome).Inc()
	m.plannerDuration.Observe(d.Seconds())
}

// UploadAccepted records an accepted upload.
func (m *Metrics) UploadAccepted(size int64) {
	m.uploadBytes.Add(float64(size))
}

// CleanupRan records the result of a cleanup pass.
func (m *Metrics) CleanupRan(files int, bytes int64) {
	m.cleanupFiles.Add(float64(files))
	m.cleanupBytes.Add(float64(bytes))
}
