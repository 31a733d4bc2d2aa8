package triage

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/mindbridge-triage/internal/catalog"
	"github.com/wolfman30/mindbridge-triage/pkg/logging"
)

const (
	keywordWeight = 1.0
	phraseWeight  = 2.0

	// DefaultMinScore keeps any scenario with at least one keyword hit.
	DefaultMinScore = 1.0
)

// ScenarioMatch is one scenario the text matched, with its score.
type ScenarioMatch struct {
	ScenarioID string `json:"scenario_id"`
	Category   string `json:"category"`
	// Baseline is the scenario's catalogued severity. It never changes the
	// assessed risk; it only raises the tier of suggested next steps.
	Baseline catalog.Severity `json:"baseline"`
	Score    float64          `json:"score"`
	Triggers []string         `json:"triggers"`
}

type compiledScenario struct {
	id       string
	category string
	baseline catalog.Severity
	triggers []phrase
}

// Matcher scores text against every catalog scenario.
type Matcher struct {
	logger    *logging.Logger
	scenarios []compiledScenario
	minScore  float64
}

// MatcherOption customizes a Matcher.
type MatcherOption func(*Matcher)

// WithMinScore sets the score a scenario needs to be reported.
func WithMinScore(score float64) MatcherOption {
	return func(m *Matcher) {
		if score > 0 {
			m.minScore = score
		}
	}
}

// NewMatcher compiles the catalog's scenario triggers.
func NewMatcher(cat *catalog.Catalog, logger *logging.Logger, opts ...MatcherOption) *Matcher {
	if logger == nil {
		logger = logging.Default()
	}

	m := &Matcher{logger: logger, minScore: DefaultMinScore}
	for _, opt := range opts {
		opt(m)
	}
	for _, s := range cat.Scenarios {
		m.scenarios = append(m.scenarios, compiledScenario{
			id:       s.ID,
			category: s.Category,
			baseline: s.Severity,
			triggers: compilePhrases(s.Triggers),
		})
	}
	return m
}

// Match returns every scenario scoring at least the minimum, highest score
// first. Equal scores keep catalog declaration order.
func (m *Matcher) Match(ctx context.Context, n Normalized) []ScenarioMatch {
	_, span := triageTracer.Start(ctx, "triage.scenario.match")
	defer span.End()

	matches := []ScenarioMatch{}
	if n.Empty() {
		span.SetAttributes(attribute.Int("scenario.matches", 0))
		return matches
	}

	for _, s := range m.scenarios {
		var score float64
		var hits []string
		for _, p := range s.triggers {
			if !p.matches(n.Tokens) {
				continue
			}
			if p.multiword() {
				score += phraseWeight
			} else {
				score += keywordWeight
			}
			hits = append(hits, p.source)
		}
		if score == 0 || score < m.minScore {
			continue
		}
		matches = append(matches, ScenarioMatch{
			ScenarioID: s.id,
			Category:   s.category,
			Baseline:   s.baseline,
			Score:      score,
			Triggers:   hits,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	span.SetAttributes(attribute.Int("scenario.matches", len(matches)))
	if len(matches) > 0 {
		span.SetAttributes(attribute.String("scenario.top", matches[0].ScenarioID))
		m.logger.Debug("scenarios matched", "top", matches[0].ScenarioID, "count", len(matches))
	}
	return matches
}

// Categories returns the distinct categories of matches in rank order.
func Categories(matches []ScenarioMatch) []string {
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m.Category] {
			continue
		}
		seen[m.Category] = true
		out = append(out, m.Category)
	}
	return out
}
