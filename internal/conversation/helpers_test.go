package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/mindbridge-triage/internal/catalog"
	"github.com/wolfman30/mindbridge-triage/internal/triage"
	"github.com/wolfman30/mindbridge-triage/pkg/logging"
)

const (
	academicText = "I'm overwhelmed with upcoming exams and worried about failing"
	crisisText   = "I can't take this anymore, I've been thinking about ending it all"
	lonelyText   = "I feel so lonely and I have no friends here"
	neutralText  = "thanks, what's the weather like today?"
)

var crisisOrder = []string{"crisis_hotline", "campus_emergency", "mindbridge_crisis_support", "boston_area_crisis"}

var defaultResourceIDs = []string{"campus_counseling", "mindbridge_counseling", "mindbridge_wellness_programs"}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	return cat
}

func testEngine(t *testing.T) *triage.Engine {
	t.Helper()
	return triage.NewEngine(testCatalog(t), triage.EngineConfig{}, logging.Discard())
}

func newTestManager(t *testing.T, opts ...ManagerOption) *Manager {
	t.Helper()
	return NewManager(testEngine(t), logging.Discard(), opts...)
}

func startSession(t *testing.T, m *Manager) string {
	t.Helper()
	start, err := m.StartSession(context.Background())
	require.NoError(t, err)
	return start.SessionID
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stubGenerator records requests and returns a canned reply.
type stubGenerator struct {
	mu       sync.Mutex
	reply    string
	err      error
	block    bool
	requests []GenerationRequest
}

func (g *stubGenerator) GenerateReply(ctx context.Context, req GenerationRequest) (string, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	reply, err, block := g.reply, g.err, g.block
	g.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return reply, err
}

func (g *stubGenerator) calls() []GenerationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]GenerationRequest(nil), g.requests...)
}

// stubLLMClient records requests for the LLM-backed generator.
type stubLLMClient struct {
	mu   sync.Mutex
	resp LLMResponse
	err  error
	reqs []LLMRequest
}

func (c *stubLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reqs = append(c.reqs, req)
	return c.resp, c.err
}

func (c *stubLLMClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reqs)
}

// counterValue sums a counter family from reg, optionally filtered by one label.
func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label != "" && !hasLabel(m.GetLabel(), label, value) {
				continue
			}
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func hasLabel(pairs []*dto.LabelPair, name, value string) bool {
	for _, p := range pairs {
		if p.GetName() == name && p.GetValue() == value {
			return true
		}
	}
	return false
}
