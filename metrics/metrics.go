// Package metrics records pipeline counters in a Prometheus registry that can
// be dumped as a node-exporter textfile after a build.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "assetpipe"

// File outcomes.
const (
	ResultProcessed = "processed"
	ResultUpToDate  = "up_to_date"
	ResultFailed    = "failed"
)

// Byte kinds.
const (
	BytesOriginal = "original"
	BytesOutput   = "output"
	BytesScaled   = "scaled"
)

// Run outcomes.
const (
	RunCompleted = "completed"
	RunSkipped   = "skipped"
	RunFailed    = "failed"
)

// Recorder owns the pipeline metrics. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	FilesTotal      *prometheus.CounterVec
	BytesTotal      *prometheus.CounterVec
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Gauge
	LastRunUnixTime prometheus.Gauge
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		FilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "images",
				Name:      "files_total",
				Help:      "Source images seen by the pipeline, by outcome",
			},
			[]string{"result"},
		),
		BytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "images",
				Name:      "bytes_total",
				Help:      "Bytes read from sources and written to outputs",
			},
			[]string{"kind"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Pipeline runs, by outcome",
			},
			[]string{"outcome"},
		),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the most recent run",
		}),
		LastRunUnixTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the most recent run finished",
		}),
	}

	r.registry.MustRegister(r.FilesTotal, r.BytesTotal, r.RunsTotal, r.RunDuration, r.LastRunUnixTime)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveFile counts one file outcome.
func (r *Recorder) ObserveFile(result string) {
	if r == nil {
		return
	}
	r.FilesTotal.WithLabelValues(result).Inc()
}

// AddBytes adds n bytes of the given kind.
func (r *Recorder) AddBytes(kind string, n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.BytesTotal.WithLabelValues(kind).Add(float64(n))
}

// ObserveRun records the outcome and duration of a run finishing at end.
func (r *Recorder) ObserveRun(outcome string, duration time.Duration, end time.Time) {
	if r == nil {
		return
	}
	r.RunsTotal.WithLabelValues(outcome).Inc()
	r.RunDuration.Set(duration.Seconds())
	r.LastRunUnixTime.Set(float64(end.Unix()))
}

// WriteTextfile writes the registry in text exposition format to path.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
