package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	requests        *prometheus.CounterVec
	stageLatency    *prometheus.HistogramVec
	stageErrors     *prometheus.CounterVec
	outcomes        *prometheus.CounterVec
	recommendations *prometheus.CounterVec
	inFlight        prometheus.Gauge
	queued          prometheus.Gauge
	errorsTotal     *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

// New registers the recorder's collectors on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers on reg; tests pass a fresh prometheus.NewRegistry().
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenpulse_requests_total",
			Help: "Inbound analysis requests by gateway result",
		}, []string{"result"}),
		stageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tokenpulse_stage_duration_seconds",
			Help:    "Duration of workflow stages",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		stageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenpulse_stage_errors_total",
			Help: "Degraded stages by error kind",
		}, []string{"stage", "kind"}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenpulse_outcomes_total",
			Help: "Terminal outcomes by status",
		}, []string{"status"}),
		recommendations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenpulse_recommendations_total",
			Help: "Per-token recommendations emitted",
		}, []string{"recommendation"}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "tokenpulse_dispatcher_in_flight",
			Help: "Requests currently executing",
		}),
		queued: f.NewGauge(prometheus.GaugeOpts{
			Name: "tokenpulse_dispatcher_queued",
			Help: "Requests waiting for an execution slot",
		}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenpulse_errors_total",
			Help: "Total number of errors encountered",
		}, []string{"type"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tokenpulse_operation_duration_seconds",
			Help:    "Duration of operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (r *Recorder) RecordRequest(result string) { r.requests.WithLabelValues(result).Inc() }

func (r *Recorder) RecordStage(stage string, seconds float64) {
	r.stageLatency.WithLabelValues(stage).Observe(seconds)
}

func (r *Recorder) RecordStageError(stage, kind string) {
	r.stageErrors.WithLabelValues(stage, kind).Inc()
}

func (r *Recorder) RecordOutcome(status string) { r.outcomes.WithLabelValues(status).Inc() }

func (r *Recorder) RecordRecommendation(rec string) {
	r.recommendations.WithLabelValues(rec).Inc()
}

func (r *Recorder) SetInFlight(n int) { r.inFlight.Set(float64(n)) }

func (r *Recorder) SetQueued(n int) { r.queued.Set(float64(n)) }

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) { r.errorsTotal.WithLabelValues(kind).Inc() }

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordRequest(string)            {}
func (Nop) RecordStage(string, float64)     {}
func (Nop) RecordStageError(string, string) {}
func (Nop) RecordOutcome(string)            {}
func (Nop) RecordRecommendation(string)     {}
func (Nop) SetInFlight(int)                 {}
func (Nop) SetQueued(int)                   {}
func (Nop) RecordError(string)              {}
func (Nop) RecordLatency(string, float64)   {}
