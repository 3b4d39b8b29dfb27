package build

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/conneroisu/srcanalyze/internal/scanner"
	"github.com/conneroisu/srcanalyze/internal/types"
)

// RunStats is a snapshot of one run's counters.
type RunStats struct {
	Directories       int
	Discovered        int
	ExcludedDirs      int
	ExcludedFiles     int
	Unsupported       int
	Fresh             int
	Scheduled         int
	StatFailures      int
	SynthesisFailures int
	Succeeded         int
	LaunchFailures    int
	ExitFailures      int
	ByKind            map[types.SourceKind]int
	TaskDuration      time.Duration
	RunDuration       time.Duration
}

// Failed returns the number of files that failed for any reason.
func (s RunStats) Failed() int {
	return s.StatFailures + s.SynthesisFailures + s.LaunchFailures + s.ExitFailures
}

// RunMetrics tracks run counters in memory and mirrors them into a private
// Prometheus registry that can be exported as a node-exporter textfile.
type RunMetrics struct {
	mu    sync.Mutex
	stats RunStats

	registry *prometheus.Registry
	files    *prometheus.CounterVec
	failures *prometheus.CounterVec
	tasks    prometheus.Histogram
	duration prometheus.Gauge
}

// NewRunMetrics creates a metrics tracker with its own registry.
func NewRunMetrics() *RunMetrics {
	m := &RunMetrics{
		stats:    RunStats{ByKind: make(map[types.SourceKind]int)},
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "srcanalyze",
			Name:      "files_total",
			Help:      "Files seen by the scheduler, by outcome.",
		}, []string{"outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "srcanalyze",
			Name:      "failures_total",
			Help:      "Per-file failures, by failure kind.",
		}, []string{"kind"}),
		tasks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "srcanalyze",
			Name:      "task_duration_seconds",
			Help:      "Wall time of analyzer processes.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "srcanalyze",
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
	}
	m.registry.MustRegister(m.files, m.failures, m.tasks, m.duration)
	return m
}

// RecordWalk records traversal counters.
func (m *RunMetrics) RecordWalk(ws scanner.WalkStats) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Directories = ws.Directories
	m.stats.Discovered = ws.Analyzable
	m.stats.ExcludedDirs = ws.ExcludedDirs
	m.stats.ExcludedFiles = ws.ExcludedFiles
	m.stats.Unsupported = ws.Unsupported

	m.files.WithLabelValues("discovered").Add(float64(ws.Analyzable))
	m.files.WithLabelValues("excluded").Add(float64(ws.ExcludedFiles))
	m.files.WithLabelValues("unsupported").Add(float64(ws.Unsupported))
}

// RecordFresh records a file whose artifact is up to date.
func (m *RunMetrics) RecordFresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Fresh++
	m.files.WithLabelValues("fresh").Inc()
}

// RecordScheduled records a task handed to the queue.
func (m *RunMetrics) RecordScheduled(kind types.SourceKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Scheduled++
	m.stats.ByKind[kind]++
	m.files.WithLabelValues("scheduled").Inc()
}

// RecordStatFailure records a source file that could not be stat'ed.
func (m *RunMetrics) RecordStatFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.StatFailures++
	m.failures.WithLabelValues("stat").Inc()
}

// RecordSynthesisFailure records a file whose command could not be built.
func (m *RunMetrics) RecordSynthesisFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.SynthesisFailures++
	m.failures.WithLabelValues("synthesis").Inc()
}

// RecordResult records the outcome of one executed task.
func (m *RunMetrics) RecordResult(result types.TaskResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.TaskDuration += result.Duration
	m.tasks.Observe(result.Duration.Seconds())

	switch {
	case result.Succeeded():
		m.stats.Succeeded++
		m.files.WithLabelValues("succeeded").Inc()
	case result.Failure == types.FailureLaunch:
		m.stats.LaunchFailures++
		m.failures.WithLabelValues("launch").Inc()
	default:
		m.stats.ExitFailures++
		m.failures.WithLabelValues("exit").Inc()
	}
}

// RecordDuration records the wall time of the whole run.
func (m *RunMetrics) RecordDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.RunDuration = d
	m.duration.Set(d.Seconds())
}

// Snapshot returns a copy of the current counters.
func (m *RunMetrics) Snapshot() RunStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.stats
	snap.ByKind = make(map[types.SourceKind]int, len(m.stats.ByKind))
	for k, v := range m.stats.ByKind {
		snap.ByKind[k] = v
	}
	return snap
}

// Registry returns the Prometheus registry holding the run metrics.
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the registry in text exposition format to path.
func (m *RunMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
