package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks submission outcomes, failing fields and persistence health.
type Metrics struct {
	Submissions     *prometheus.CounterVec
	FieldFailures   *prometheus.CounterVec
	UploadsRejected prometheus.Counter
	StoreFailures   *prometheus.CounterVec
	ResetsCancelled prometheus.Counter
	SubmitDuration  prometheus.Histogram
}

// New registers the registration metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers on reg. Tests pass a fresh prometheus.NewRegistry().
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "regform_submissions_total",
			Help: "Submission attempts by result (accepted, rejected)",
		}, []string{"result"}),
		FieldFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "regform_field_failures_total",
			Help: "Invalid field outcomes on submission, by field",
		}, []string{"field"}),
		UploadsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "regform_uploads_rejected_total",
			Help: "Photo selections rejected for size",
		}),
		StoreFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "regform_store_failures_total",
			Help: "Record store failures by operation",
		}, []string{"operation"}),
		ResetsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "regform_resets_cancelled_total",
			Help: "Pending form resets cancelled by a newer submission",
		}),
		SubmitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "regform_submit_duration_seconds",
			Help:    "Duration of Submit including persistence",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementSubmission(accepted bool) {
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	m.Submissions.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementFieldFailure(field string) {
	m.FieldFailures.WithLabelValues(field).Inc()
}

func (m *Metrics) IncrementUploadRejected() {
	m.UploadsRejected.Inc()
}

func (m *Metrics) IncrementStoreFailure(operation string) {
	m.StoreFailures.WithLabelValues(operation).Inc()
}

func (m *Metrics) IncrementResetCancelled() {
	m.ResetsCancelled.Inc()
}

// ObserveSubmit records a Submit duration. Call with time.Now() at the start.
func (m *Metrics) ObserveSubmit(start time.Time) {
	m.SubmitDuration.Observe(time.Since(start).Seconds())
}
