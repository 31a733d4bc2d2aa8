package triage

import (
	"context"

	"github.com/wolfman30/mindbridge-triage/internal/catalog"
	"github.com/wolfman30/mindbridge-triage/pkg/logging"
)

// EngineConfig tunes matching and ranking.
type EngineConfig struct {
	MaxResults int
	MinScore   float64
}

// Engine bundles the triage stages compiled from one catalog.
type Engine struct {
	Catalog     *catalog.Catalog
	Crisis      *CrisisDetector
	Matcher     *Matcher
	Profiles    *ProfileInferrer
	Recommender *Recommender
}

// Evaluation is the stateless analysis of one message.
type Evaluation struct {
	Input      Normalized
	Assessment CrisisAssessment
	Matches    []ScenarioMatch
	Flags      []string
}

// NewEngine compiles every stage from cat.
func NewEngine(cat *catalog.Catalog, cfg EngineConfig, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		Catalog:     cat,
		Crisis:      NewCrisisDetector(cat, logger),
		Matcher:     NewMatcher(cat, logger, WithMinScore(cfg.MinScore)),
		Profiles:    NewProfileInferrer(cat),
		Recommender: NewRecommender(cat, cfg.MaxResults),
	}
}

// Evaluate normalizes raw text, assesses risk, matches scenarios and infers
// profile flags. Risk is assessed before matching.
func (e *Engine) Evaluate(ctx context.Context, raw string) Evaluation {
	n := Normalize(raw)
	assessment := e.Crisis.Assess(ctx, n)
	matches := e.Matcher.Match(ctx, n)
	return Evaluation{
		Input:      n,
		Assessment: assessment,
		Matches:    matches,
		Flags:      e.Profiles.Infer(n, matches, assessment),
	}
}

// ActionSeverity picks the tier of suggested next steps: the assessed
// severity, raised to the strongest matched scenario baseline, and to at least
// high once the session has escalated.
func ActionSeverity(assessment CrisisAssessment, matches []ScenarioMatch, escalated bool) catalog.Severity {
	sev := assessment.Severity
	for _, m := range matches {
		sev = catalog.MaxSeverity(sev, m.Baseline)
	}
	if escalated {
		sev = catalog.MaxSeverity(sev, catalog.SeverityHigh)
	}
	return sev
}
