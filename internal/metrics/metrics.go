// Package metrics records operational metrics from export runs behind a
// narrow Backend interface. The process-wide backend defaults to a no-op, so
// instrumented code never checks whether metrics are enabled. Concrete
// systems live in subpackages (prompush, datadog).
package metrics

import (
	"sync/atomic"
	"time"
)

// Metric names emitted by rowexport.
const (
	StepTotal    = "rowexport_step_total"
	StepDuration = "rowexport_step_duration_seconds"
	RecordsTotal = "rowexport_records_total"
	BatchesTotal = "rowexport_batches_total"
)

// RowKind labels RecordsTotal.
type RowKind string

const (
	RowsProcessed    RowKind = "processed"
	RowsCreated      RowKind = "created"
	RowsUpdated      RowKind = "updated"
	RowsBulkInserted RowKind = "bulk_inserted"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend receives metric updates. Implementations must be safe for
// concurrent use; jobs run in parallel.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes buffered metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

type holder struct{ Backend }

var current atomic.Pointer[holder]

func init() { current.Store(&holder{nopBackend{}}) }

func active() Backend { return current.Load().Backend }

// SetBackend installs b and returns the backend it replaced. A nil b
// restores the no-op backend.
func SetBackend(b Backend) Backend {
	if b == nil {
		b = nopBackend{}
	}
	return current.Swap(&holder{b}).Backend
}

// Flush flushes the installed backend.
func Flush() error {
	return active().Flush()
}

// Step runs fn as the named step of job and records its latency and outcome.
// fn's error is returned unchanged.
func Step(job, step string, fn func() error) error {
	start := time.Now()
	err := fn()
	RecordStep(job, step, err, time.Since(start))
	return err
}

// RecordStep records one finished step.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}
	b := active()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows adds n rows of the given kind. Non-positive n is ignored.
func RecordRows(job string, kind RowKind, n int64) {
	if n <= 0 {
		return
	}
	active().IncCounter(RecordsTotal, float64(n), Labels{"job": job, "kind": string(kind)})
}

// RecordBatches adds n flushed bulk-insert batches.
func RecordBatches(job string, n int64) {
	if n <= 0 {
		return
	}
	active().IncCounter(BatchesTotal, float64(n), Labels{"job": job})
}
