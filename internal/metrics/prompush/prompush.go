// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// Runs are batch jobs, so collected series are pushed to a Pushgateway when
// the run ends instead of being exposed on a scrape endpoint. The job label
// becomes the Pushgateway grouping key; the remaining labels map onto
// client_golang vectors.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/sophie2chance2/foster-care-analysis/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec // step, status
	stepDuration *prometheus.SummaryVec // step, status

	recordCounter  *prometheus.CounterVec // kind
	batchCounter   prometheus.Counter
	filledCounter  *prometheus.CounterVec // class
	noticeCounter  *prometheus.CounterVec // kind
	reentryCounter prometheus.Counter
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (often same as pipeline job).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "fcclean"
	}

	reg := prometheus.NewRegistry()

	stepCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline step executions, partitioned by step and status.",
		},
		[]string{"step", "status"},
	)
	stepDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       metrics.StepDurationSeconds,
			Help:       "Duration of pipeline steps in seconds, partitioned by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"step", "status"},
	)
	recordCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Record counts per kind (read, removed, csv, db).",
		},
		[]string{"kind"},
	)
	batchCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Database batches flushed for this job.",
		},
	)
	filledCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.FilledTotal,
			Help: "Cells filled by imputation, per column class.",
		},
		[]string{"class"},
	)
	noticeCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.NoticesTotal,
			Help: "Advisory notices raised during normalization, per kind.",
		},
		[]string{"kind"},
	)
	reentryCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: metrics.ReentriesTotal,
			Help: "Subjects flagged as re-entering care.",
		},
	)

	for name, c := range map[string]prometheus.Collector{
		"step counter":    stepCounter,
		"step summary":    stepDuration,
		"record counter":  recordCounter,
		"batch counter":   batchCounter,
		"filled counter":  filledCounter,
		"notice counter":  noticeCounter,
		"reentry counter": reentryCounter,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}

	return &Backend{
		gatewayURL:     gatewayURL,
		jobName:        jobName,
		reg:            reg,
		stepCounter:    stepCounter,
		stepDuration:   stepDuration,
		recordCounter:  recordCounter,
		batchCounter:   batchCounter,
		filledCounter:  filledCounter,
		noticeCounter:  noticeCounter,
		reentryCounter: reentryCounter,
	}, nil
}

// IncCounter routes a counter increment to its collector. Unknown names and
// nil collectors are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter == nil {
			return
		}
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)

	case metrics.RecordsTotal:
		if b.recordCounter == nil {
			return
		}
		b.recordCounter.WithLabelValues(labels["kind"]).Add(delta)

	case metrics.BatchesTotal:
		if b.batchCounter == nil {
			return
		}
		b.batchCounter.Add(delta)

	case metrics.FilledTotal:
		if b.filledCounter == nil {
			return
		}
		b.filledCounter.WithLabelValues(labels["class"]).Add(delta)

	case metrics.NoticesTotal:
		if b.noticeCounter == nil {
			return
		}
		b.noticeCounter.WithLabelValues(labels["kind"]).Add(delta)

	case metrics.ReentriesTotal:
		if b.reentryCounter == nil {
			return
		}
		b.reentryCounter.Add(delta)
	}
}

// ObserveHistogram records step durations; other names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDurationSeconds || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
