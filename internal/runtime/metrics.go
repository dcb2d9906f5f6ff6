package runtime

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records engine activity. A nil registerer yields metrics that are
// collected but never exported, which keeps tests and library use quiet.
type Metrics struct {
	sessionsCreated  prometheus.Counter
	sessionsFinished *prometheus.CounterVec
	stepsExecuted    *prometheus.CounterVec
	stepDuration     *prometheus.HistogramVec
}

// NewMetrics creates the engine metric set, registered against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		sessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "weft",
			Name:      "sessions_created_total",
			Help:      "Sessions created since process start.",
		}),
		sessionsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weft",
			Name:      "sessions_finished_total",
			Help:      "Sessions that reached a terminal status.",
		}, []string{"status"}),
		stepsExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weft",
			Name:      "steps_executed_total",
			Help:      "Pipeline step executions by component and outcome.",
		}, []string{"component", "outcome"}),
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "weft",
			Name:      "step_duration_seconds",
			Help:      "Wall time per pipeline step execution.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"component"}),
	}
}

func (m *Metrics) SessionCreated() {
	m.sessionsCreated.Inc()
}

func (m *Metrics) SessionFinished(status string) {
	m.sessionsFinished.WithLabelValues(status).Inc()
}

func (m *Metrics) StepExecuted(component, outcome string, elapsed time.Duration) {
	m.stepsExecuted.WithLabelValues(component, outcome).Inc()
	m.stepDuration.WithLabelValues(component).Observe(elapsed.Seconds())
}
