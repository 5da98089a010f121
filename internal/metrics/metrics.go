// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the cleaning pipeline.
//
// The package exposes a narrow interface (Backend) for counters and timing
// data. A global backend defaults to a no-op, so the recorders are always safe
// to call when no real backend is configured. Concrete systems (Prometheus
// Pushgateway, Datadog) live in subpackages so the pipeline depends only on
// this interface.
package metrics

import "time"

// Series names emitted by the recorders.
const (
	StepTotal           = "fcclean_step_total"
	StepDurationSeconds = "fcclean_step_duration_seconds"
	RecordsTotal        = "fcclean_records_total"
	BatchesTotal        = "fcclean_batches_total"
	FilledTotal         = "fcclean_filled_total"
	NoticesTotal        = "fcclean_notices_total"
	ReentriesTotal      = "fcclean_reentries_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep measures latency and success/failure of one pipeline step
// (read, normalize, transform, impute, reentry, write).
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}

	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRow increments a record-level counter for the given job and kind.
//
// Kinds used by the pipeline:
//   - "read"      rows parsed from all inputs
//   - "skipped"   rows the parser could not decode
//   - "removed"   rows dropped by transform steps
//   - "csv"       rows written to the CSV sink
//   - "db"        rows written to the database sink
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordBatches increments a batch-level counter for the given job.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{
		"job": job,
	})
}

// RecordFilled counts cells filled by imputation, per column class
// (monetary, duration, count, indicator, categorical).
func RecordFilled(job string, filled map[string]int) {
	for class, n := range filled {
		if n <= 0 {
			continue
		}
		backend.IncCounter(FilledTotal, float64(n), Labels{
			"job":   job,
			"class": class,
		})
	}
}

// RecordNotices counts advisory notices by kind.
func RecordNotices(job, kind string, delta int) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(NoticesTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordReentries counts subjects flagged as re-entering care.
func RecordReentries(job string, delta int) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(ReentriesTotal, float64(delta), Labels{
		"job": job,
	})
}
