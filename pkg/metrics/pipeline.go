package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records outcomes of the upload pipeline and its
// downstream inference calls.
type PipelineMetrics struct {
	uploads   *prometheus.CounterVec
	rollbacks prometheus.Counter
	inference *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uploads_total",
		Help: "Completed upload attempts by terminal status.",
	}, []string{"status"})
	rollbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "upload_rollbacks_total",
		Help: "Compensation unwinds triggered by failed uploads.",
	})
	inference := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inference_requests_total",
		Help: "Emotion inference calls by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upload_duration_seconds",
		Help:    "End-to-end upload pipeline duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	reg.MustRegister(uploads, rollbacks, inference, duration)
	return &PipelineMetrics{
		uploads:   uploads,
		rollbacks: rollbacks,
		inference: inference,
		duration:  duration,
	}
}

// IncUpload increments the upload counter for the given terminal status.
func (p *PipelineMetrics) IncUpload(status string) {
	if p == nil || p.uploads == nil {
		return
	}
	p.uploads.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncRollback increments the compensation unwind counter.
func (p *PipelineMetrics) IncRollback() {
	if p == nil || p.rollbacks == nil {
		return
	}
	p.rollbacks.Inc()
}

// IncInference increments the inference counter for the given outcome.
func (p *PipelineMetrics) IncInference(outcome string) {
	if p == nil || p.inference == nil {
		return
	}
	p.inference.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveUploadDuration records the pipeline duration for the media kind.
func (p *PipelineMetrics) ObserveUploadDuration(kind string, duration time.Duration) {
	if p == nil || p.duration == nil {
		return
	}
	p.duration.WithLabelValues(normalizeLabel(kind)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
