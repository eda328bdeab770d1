// Package metrics exposes Prometheus instrumentation for ingest runs.
//
// A Recorder owns its own registry rather than the global one: an ingest is
// a one-shot process, so its counters are flushed to a node_exporter
// textfile at the end of the run instead of being scraped.
//
// Label cardinality is bounded:
//   - outcome: accepted | skipped_malformed | skipped_duplicate
//   - source:  seeded (known-domains list) | derived (from a record)
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/entra-ingest/internal/domain"
)

const namespace = "entra_ingest"

// Recorder collects the counters of one ingest run. A nil *Recorder is a
// valid no-op recorder.
type Recorder struct {
	reg      *prometheus.Registry
	records  *prometheus.CounterVec
	domains  *prometheus.CounterVec
	duration prometheus.Gauge
	lastRun  prometheus.Gauge
}

// NewRecorder builds a Recorder with a private registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_total",
				Help:      "Input records processed, by outcome.",
			},
			[]string{"outcome"},
		),
		domains: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "domains_created_total",
				Help:      "Domain rows created, by source.",
			},
			[]string{"source"},
		),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last ingest run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time at which the last ingest run finished.",
		}),
	}
	// Pre-create every label value so a zero shows up in the textfile.
	for _, o := range []domain.Outcome{domain.OutcomeAccepted, domain.OutcomeSkippedMalformed, domain.OutcomeSkippedDuplicate} {
		r.records.WithLabelValues(o.String())
	}
	r.domains.WithLabelValues(SourceSeeded)
	r.domains.WithLabelValues(SourceDerived)

	r.reg.MustRegister(r.records, r.domains, r.duration, r.lastRun)
	return r
}

// Domain sources.
const (
	SourceSeeded  = "seeded"
	SourceDerived = "derived"
)

// RecordOutcome counts one record outcome.
func (r *Recorder) RecordOutcome(o domain.Outcome) {
	if r == nil {
		return
	}
	r.records.WithLabelValues(o.String()).Inc()
}

// DomainCreated counts one new domain row.
func (r *Recorder) DomainCreated(seeded bool) {
	if r == nil {
		return
	}
	src := SourceDerived
	if seeded {
		src = SourceSeeded
	}
	r.domains.WithLabelValues(src).Inc()
}

// ObserveRun records the duration and completion time of a run.
func (r *Recorder) ObserveRun(d time.Duration, finished time.Time) {
	if r == nil {
		return
	}
	r.duration.Set(d.Seconds())
	r.lastRun.Set(float64(finished.Unix()))
}

// Registry returns the registry holding the run's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// WriteTextfile writes the collected metrics in the text exposition format
// to path, atomically (temp file + rename).
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.reg)
}
