package metricsvc

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/darasa/core"
)

const namespace = "darasa"

// Prometheus records domain events on its own registry.
type Prometheus struct {
	registry          *prometheus.Registry
	stepTransitions   *prometheus.CounterVec
	gradings          *prometheus.CounterVec
	gradingFailures   *prometheus.CounterVec
	gradingDuration   *prometheus.HistogramVec
	certificatesTotal prometheus.Counter
}

var _ core.Metrics = (*Prometheus)(nil) // interface compliance check

func New() *Prometheus {
	reg := prometheus.NewRegistry()
	m := &Prometheus{
		registry: reg,
		stepTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_transitions_total",
			Help:      "Step progress transitions by resulting status.",
		}, []string{"status"}),
		gradings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gradings_total",
			Help:      "Grades recorded by grader type.",
		}, []string{"grader_type"}),
		gradingFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grading_failures_total",
			Help:      "Failed grading attempts by grader type and failure kind.",
		}, []string{"grader_type", "kind"}),
		gradingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grading_duration_seconds",
			Help:      "Time spent producing a grade.",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"grader_type"}),
		certificatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificates_issued_total",
			Help:      "Certificates issued.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.stepTransitions,
		m.gradings,
		m.gradingFailures,
		m.gradingDuration,
		m.certificatesTotal,
	)
	return m
}

func (m *Prometheus) StepTransition(status string) {
	m.stepTransitions.WithLabelValues(status).Inc()
}

func (m *Prometheus) GradingSucceeded(graderType string, took time.Duration) {
	m.gradings.WithLabelValues(graderType).Inc()
	m.gradingDuration.WithLabelValues(graderType).Observe(took.Seconds())
}

func (m *Prometheus) GradingFailed(graderType, kind string) {
	m.gradingFailures.WithLabelValues(graderType, kind).Inc()
}

func (m *Prometheus) CertificateIssued() {
	m.certificatesTotal.Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Prometheus) Registry() *prometheus.Registry { return m.registry }
