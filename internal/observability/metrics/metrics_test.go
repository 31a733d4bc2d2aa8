package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTriageMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewTriageMetrics(reg)

	m.ObserveTurn("crisis", 0.2)
	m.ObserveTurn("none", 0.1)
	m.ObserveTurn("none", 0.1)
	m.ObserveEscalation()
	m.ObserveNarrative("template")
	m.ObserveGenerationFailure("timeout")
	m.SetActiveSessions(3)
	m.ObserveEvictions(2)
	m.ObserveEvictions(0)
	m.ObserveNotification("sent")

	if got := testutil.ToFloat64(m.turnsTotal.WithLabelValues("none")); got != 2 {
		t.Fatalf("expected 2 none turns, got %v", got)
	}
	if got := testutil.ToFloat64(m.escalationsTotal); got != 1 {
		t.Fatalf("expected 1 escalation, got %v", got)
	}
	if got := testutil.ToFloat64(m.activeSessions); got != 3 {
		t.Fatalf("expected 3 active sessions, got %v", got)
	}
	if got := testutil.ToFloat64(m.sessionsEvicted); got != 2 {
		t.Fatalf("expected 2 evictions, got %v", got)
	}
	if got := testutil.ToFloat64(m.generationFailures.WithLabelValues("timeout")); got != 1 {
		t.Fatalf("expected 1 timeout failure, got %v", got)
	}
}

func TestTriageMetricsDefaultRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	prev := prometheus.DefaultRegisterer
	prometheus.DefaultRegisterer = reg
	defer func() { prometheus.DefaultRegisterer = prev }()

	m := NewTriageMetrics(nil)
	m.ObserveNarrative("generated")

	if got := testutil.ToFloat64(m.narrativeTotal.WithLabelValues("generated")); got != 1 {
		t.Fatalf("expected 1 generated narrative, got %v", got)
	}
}

func TestTriageMetricsNilSafe(t *testing.T) {
	var m *TriageMetrics
	m.ObserveTurn("none", 0.1)
	m.ObserveEscalation()
	m.ObserveNarrative("template")
	m.ObserveGenerationFailure("error")
	m.SetActiveSessions(1)
	m.ObserveEvictions(1)
	m.ObserveNotification("failed")
}
