package metrics

import "github.com/prometheus/client_golang/prometheus"

// TriageMetrics exposes counters/histograms for the triage conversation flow.
// Labels carry severities, sources and statuses only, never user text.
type TriageMetrics struct {
	turnsTotal         *prometheus.CounterVec
	escalationsTotal   prometheus.Counter
	narrativeTotal     *prometheus.CounterVec
	generationFailures *prometheus.CounterVec
	turnLatency        prometheus.Histogram
	activeSessions     prometheus.Gauge
	sessionsEvicted    prometheus.Counter
	notificationsTotal *prometheus.CounterVec
}

func NewTriageMetrics(reg prometheus.Registerer) *TriageMetrics {
	m := &TriageMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mindbridge",
			Subsystem: "triage",
			Name:      "turns_total",
			Help:      "Total conversation turns by assessed severity",
		}, []string{"severity"}),
		escalationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mindbridge",
			Subsystem: "triage",
			Name:      "escalations_total",
			Help:      "Sessions that escalated to required human intervention",
		}),
		narrativeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mindbridge",
			Subsystem: "triage",
			Name:      "narrative_total",
			Help:      "Composed replies by narrative source",
		}, []string{"source"}),
		generationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mindbridge",
			Subsystem: "triage",
			Name:      "generation_failures_total",
			Help:      "External reply generation attempts that fell back to templates",
		}, []string{"reason"}),
		turnLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mindbridge",
			Subsystem: "triage",
			Name:      "turn_latency_seconds",
			Help:      "Latency of a full conversation turn including reply generation",
			Buckets:   prometheus.DefBuckets,
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mindbridge",
			Subsystem: "triage",
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory",
		}),
		sessionsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mindbridge",
			Subsystem: "triage",
			Name:      "sessions_evicted_total",
			Help:      "Sessions removed by the idle janitor",
		}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mindbridge",
			Subsystem: "triage",
			Name:      "escalation_notifications_total",
			Help:      "Escalation notifications by delivery status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.turnsTotal,
		m.escalationsTotal,
		m.narrativeTotal,
		m.generationFailures,
		m.turnLatency,
		m.activeSessions,
		m.sessionsEvicted,
		m.notificationsTotal,
	)
	return m
}

func (m *TriageMetrics) ObserveTurn(severity string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(severity).Inc()
	m.turnLatency.Observe(seconds)
}

func (m *TriageMetrics) ObserveEscalation() {
	if m == nil {
		return
	}
	m.escalationsTotal.Inc()
}

func (m *TriageMetrics) ObserveNarrative(source string) {
	if m == nil {
		return
	}
	m.narrativeTotal.WithLabelValues(source).Inc()
}

func (m *TriageMetrics) ObserveGenerationFailure(reason string) {
	if m == nil {
		return
	}
	m.generationFailures.WithLabelValues(reason).Inc()
}

func (m *TriageMetrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func (m *TriageMetrics) ObserveEvictions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsEvicted.Add(float64(n))
}

func (m *TriageMetrics) ObserveNotification(status string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(status).Inc()
}
