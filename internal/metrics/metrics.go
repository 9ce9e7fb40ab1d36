// Package metrics defines the Prometheus collectors for bucketd.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var registerOnce sync.Once

// sizeBuckets are exponential buckets for file sizes in bytes.
var sizeBuckets = []float64{1024, 16384, 262144, 1048576, 4194304, 16777216, 67108864, 268435456, 1073741824}

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	// OperationsTotal counts completed requests by kind and outcome.
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bucketd_operations_total",
			Help: "Completed bucket operations",
		},
		[]string{"kind", "outcome"},
	)

	// HookRunsTotal counts hook invocations by slot and outcome.
	HookRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bucketd_hook_runs_total",
			Help: "Hook invocations",
		},
		[]string{"slot", "outcome"},
	)

	// UploadedBytesTotal counts bytes successfully stored.
	UploadedBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bucketd_uploaded_bytes_total",
			Help: "Total bytes successfully stored",
		},
	)

	// UploadSize observes the size of each stored file.
	UploadSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bucketd_upload_size_bytes",
			Help:    "Size of stored files in bytes",
			Buckets: sizeBuckets,
		},
	)

	// FilesInFlight tracks file pipelines that have started but not finished.
	FilesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bucketd_files_in_flight",
			Help: "File pipelines currently running",
		},
	)
)

// Register registers all collectors with the default registry. It is safe to
// call multiple times.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			OperationsTotal,
			HookRunsTotal,
			UploadedBytesTotal,
			UploadSize,
			FilesInFlight,
		)
	})
}

// Outcome maps an error to an outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

// ObserveOperation records a completed request.
func ObserveOperation(kind string, err error) {
	OperationsTotal.WithLabelValues(kind, Outcome(err)).Inc()
}

// ObserveHook records a hook invocation.
func ObserveHook(slot string, err error) {
	HookRunsTotal.WithLabelValues(slot, Outcome(err)).Inc()
}

// ObserveUpload records a stored file.
func ObserveUpload(size int64) {
	if size < 0 {
		return
	}
	UploadedBytesTotal.Add(float64(size))
	UploadSize.Observe(float64(size))
}
