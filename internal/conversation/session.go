package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/mindbridge-triage/internal/catalog"
	"github.com/wolfman30/mindbridge-triage/internal/observability/metrics"
	"github.com/wolfman30/mindbridge-triage/internal/triage"
	"github.com/wolfman30/mindbridge-triage/pkg/logging"
)

const (
	// DefaultMaxTurns caps the turn records retained per session.
	DefaultMaxTurns = 50
	// DefaultIdleTimeout is how long an untouched session survives.
	DefaultIdleTimeout = 30 * time.Minute
	// defaultHistoryTurns is how many earlier exchanges reach the generator.
	defaultHistoryTurns = 6
)

const greeting = "Hi, I'm here to listen. You can tell me about anything that's been on your mind, " +
	"like classes, friends, family, or how you've been feeling lately. What would you like to talk about?"

// Manager owns every active conversation session. The session map is guarded
// by an RWMutex; each session has its own mutex so turns on one session are
// serialized while different sessions run in parallel.
type Manager struct {
	engine   *triage.Engine
	composer *Composer
	logger   *logging.Logger
	metrics  *metrics.TriageMetrics
	now      func() time.Time

	maxTurns     int
	idleTimeout  time.Duration
	historyTurns int

	mu       sync.RWMutex
	sessions map[string]*session
}

var _ Service = (*Manager)(nil)

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithMaxTurns caps retained turn records. Non-positive values are ignored.
func WithMaxTurns(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.maxTurns = n
		}
	}
}

// WithIdleTimeout sets the idle eviction threshold.
func WithIdleTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.idleTimeout = d
		}
	}
}

// WithMetrics records session metrics.
func WithMetrics(tm *metrics.TriageMetrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = tm
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithComposer sets the response composer.
func WithComposer(c *Composer) ManagerOption {
	return func(m *Manager) {
		if c != nil {
			m.composer = c
		}
	}
}

// NewManager creates a session manager over a compiled triage engine.
func NewManager(engine *triage.Engine, logger *logging.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	m := &Manager{
		engine:       engine,
		logger:       logger,
		now:          time.Now,
		maxTurns:     DefaultMaxTurns,
		idleTimeout:  DefaultIdleTimeout,
		historyTurns: defaultHistoryTurns,
		sessions:     make(map[string]*session),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.composer == nil {
		m.composer = NewComposer(nil, 0, logger, m.metrics)
	}
	return m
}

type session struct {
	mu sync.Mutex

	id           string
	createdAt    time.Time
	lastActivity time.Time
	turnCount    int
	turns        []Turn
	peak         catalog.Severity
	escalated    bool
	ended        bool

	concerns   orderedSet
	categories orderedSet
	flags      orderedSet
	resources  orderedSet
	labels     orderedSet
}

// StartSession opens a new session and returns its id with a greeting.
func (m *Manager) StartSession(ctx context.Context) (*SessionStart, error) {
	now := m.now()
	s := &session{
		id:           uuid.NewString(),
		createdAt:    now,
		lastActivity: now,
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	active := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetActiveSessions(active)
	m.logger.Info("session started", "session", logging.SessionRef(s.id))
	return &SessionStart{SessionID: s.id, Greeting: greeting, CreatedAt: now}, nil
}

// SubmitTurn runs one message through risk assessment, matching,
// recommendation and composition, then records the turn. Empty text is
// treated as no signal, never as an error.
func (m *Manager) SubmitTurn(ctx context.Context, sessionID, text string) (*TurnResult, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil, ErrSessionNotFound
	}

	started := m.now()
	eval := m.engine.Evaluate(ctx, text)
	current := eval.Assessment.Severity

	s.peak = catalog.MaxSeverity(s.peak, current)
	newlyEscalated := false
	if current.RequiresIntervention() && !s.escalated {
		s.escalated = true
		newlyEscalated = true
		m.metrics.ObserveEscalation()
	}
	for _, match := range eval.Matches {
		s.concerns.add(match.ScenarioID)
		s.categories.add(match.Category)
	}
	s.flags.add(eval.Flags...)
	s.labels.add(eval.Assessment.Labels...)

	ids := m.engine.Recommender.Recommend(triage.RecommendInput{
		Matches:      eval.Matches,
		Assessment:   eval.Assessment,
		PeakSeverity: s.peak,
		Escalated:    s.escalated,
	})
	s.resources.add(ids...)

	actionSeverity := triage.ActionSeverity(eval.Assessment, eval.Matches, s.escalated)
	result := &TurnResult{
		SessionID:            s.id,
		Turn:                 s.turnCount + 1,
		Resources:            m.engine.Recommender.Resolve(ids),
		Severity:             current,
		PeakSeverity:         s.peak,
		InterventionRequired: s.escalated,
		NewlyEscalated:       newlyEscalated,
		Assessment:           eval.Assessment,
		Matches:              eval.Matches,
		ProfileFlags:         s.flags.values(),
		ActionSeverity:       actionSeverity,
		ImmediateActions:     m.engine.Catalog.ImmediateActions(actionSeverity),
		Timestamp:            started,
	}
	if s.escalated {
		result.SafetyPlan = m.engine.Catalog.SafetyPlanSteps()
	}
	if result.ImmediateActions == nil {
		result.ImmediateActions = []string{}
	}

	comp := m.composer.Compose(ctx, result, s.history(m.historyTurns), text)
	result.Message = comp.Message
	result.Narrative = comp.Narrative
	result.NarrativeSource = comp.Source

	scenarioIDs := make([]string, 0, len(eval.Matches))
	for _, match := range eval.Matches {
		scenarioIDs = append(scenarioIDs, match.ScenarioID)
	}
	s.turns = append(s.turns, Turn{
		Raw:             text,
		Normalized:      eval.Input.Text,
		ScenarioIDs:     scenarioIDs,
		Assessment:      eval.Assessment,
		ResourceIDs:     ids,
		Reply:           comp.Message,
		Narrative:       comp.Narrative,
		NarrativeSource: comp.Source,
		At:              started,
	})
	if overflow := len(s.turns) - m.maxTurns; overflow > 0 {
		s.turns = append([]Turn(nil), s.turns[overflow:]...)
	}
	s.turnCount++
	s.lastActivity = m.now()

	m.metrics.ObserveTurn(current.String(), s.lastActivity.Sub(started).Seconds())
	m.logger.Info("turn processed",
		"session", logging.SessionRef(s.id),
		"turn", result.Turn,
		"severity", current.String(),
		"peak_severity", s.peak.String(),
		"escalated", s.escalated,
		"scenarios", len(eval.Matches),
		"resources", len(ids),
		"narrative_source", string(comp.Source),
	)
	return result, nil
}

// GetSummary reports accumulated state for a session. No user text is included.
func (m *Manager) GetSummary(ctx context.Context, sessionID string) (*SessionSummary, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil, ErrSessionNotFound
	}
	return &SessionSummary{
		SessionID:            s.id,
		CreatedAt:            s.createdAt,
		LastActivity:         s.lastActivity,
		TurnCount:            s.turnCount,
		PeakSeverity:         s.peak,
		Escalated:            s.escalated,
		Concerns:             s.concerns.values(),
		Categories:           s.categories.values(),
		ProfileFlags:         s.flags.values(),
		ResourcesRecommended: s.resources.values(),
		IndicatorLabels:      s.labels.values(),
	}, nil
}

// EndSession discards a session and all of its turns. It waits for an
// in-flight turn on the same session to finish.
func (m *Manager) EndSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	active := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	s.release()
	s.mu.Unlock()

	m.metrics.SetActiveSessions(active)
	m.logger.Info("session ended", "session", logging.SessionRef(sessionID))
	return nil
}

// EvictIdle removes sessions idle for at least the idle timeout as of now.
// Sessions with a turn in progress are skipped.
func (m *Manager) EvictIdle(now time.Time) int {
	m.mu.Lock()
	evicted := 0
	for id, s := range m.sessions {
		if !s.mu.TryLock() {
			continue
		}
		if now.Sub(s.lastActivity) >= m.idleTimeout {
			delete(m.sessions, id)
			s.release()
			evicted++
		}
		s.mu.Unlock()
	}
	active := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetActiveSessions(active)
	m.metrics.ObserveEvictions(evicted)
	if evicted > 0 {
		m.logger.Info("idle sessions evicted", "count", evicted, "active", active)
	}
	return evicted
}

// ActiveSessions returns the number of sessions held in memory.
func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) lookup(sessionID string) (*session, error) {
	sessionID = strings.TrimSpace(sessionID)
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// history returns the last n exchanges as chat messages. Callers hold s.mu.
func (s *session) history(n int) []ChatMessage {
	turns := s.turns
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]ChatMessage, 0, len(turns)*2)
	for _, t := range turns {
		if strings.TrimSpace(t.Raw) == "" {
			continue
		}
		out = append(out,
			ChatMessage{Role: ChatRoleUser, Content: t.Raw},
			ChatMessage{Role: ChatRoleAssistant, Content: t.Narrative},
		)
	}
	return out
}

// release drops all turn state. Callers hold s.mu.
func (s *session) release() {
	s.ended = true
	s.turns = nil
	s.concerns = orderedSet{}
	s.categories = orderedSet{}
	s.flags = orderedSet{}
	s.resources = orderedSet{}
	s.labels = orderedSet{}
}

// orderedSet keeps distinct strings in first-seen order.
type orderedSet struct {
	items []string
	seen  map[string]struct{}
}

func (o *orderedSet) add(values ...string) {
	for _, v := range values {
		if v == "" {
			continue
		}
		if o.seen == nil {
			o.seen = make(map[string]struct{})
		}
		if _, ok := o.seen[v]; ok {
			continue
		}
		o.seen[v] = struct{}{}
		o.items = append(o.items, v)
	}
}

func (o *orderedSet) values() []string {
	return append([]string{}, o.items...)
}
