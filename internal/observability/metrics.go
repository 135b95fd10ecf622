package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Exchanges       *prometheus.CounterVec
	ExchangeLatency prometheus.Histogram
	CriticalStates  prometheus.Counter
	WSMessages      *prometheus.CounterVec
	ProviderErrors  *prometheus.CounterVec

	stages *stageWindow
}

func NewMetrics(namespace string, windowSize int) *Metrics {
	return &Metrics{
		Exchanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchanges_total",
			Help:      "Uplink exchanges by outcome.",
		}, []string{"outcome"}),
		ExchangeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exchange_latency_ms",
			Help:      "End-to-end exchange latency in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2000, 4000, 8000, 15000, 30000, 60000},
		}),
		CriticalStates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "critical_states_total",
			Help:      "Persona replies whose state crossed the critical threshold.",
		}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Exchange failures by kind.",
		}, []string{"kind"}),
		stages: newStageWindow(windowSize),
	}
}

func (m *Metrics) ObserveExchange(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Exchanges.WithLabelValues(outcome).Inc()
	m.ExchangeLatency.Observe(float64(d.Milliseconds()))
}

// ObserveStage records one stage duration tagged with the exchange outcome,
// OutcomeOK or a failure kind.
func (m *Metrics) ObserveStage(stage, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.stages.Observe(stage, outcome, float64(d.Microseconds())/1000)
}

func (m *Metrics) ObserveCritical() {
	if m == nil {
		return
	}
	m.CriticalStates.Inc()
	m.stages.ObserveIndicator("critical_state")
}

func (m *Metrics) ObserveFailure(kind string) {
	if m == nil {
		return
	}
	m.ProviderErrors.WithLabelValues(kind).Inc()
	m.stages.ObserveIndicator(kind)
}

func (m *Metrics) ObserveWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

func (m *Metrics) SnapshotStages() StageSnapshot {
	if m == nil {
		return StageSnapshot{GeneratedAt: time.Now().UTC(), Stages: []StageStats{}}
	}
	return m.stages.Snapshot()
}

// ResetStages empties the latency window. Prometheus counters are untouched.
func (m *Metrics) ResetStages() {
	if m == nil {
		return
	}
	m.stages.Reset()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
