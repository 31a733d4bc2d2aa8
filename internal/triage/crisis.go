package triage

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/mindbridge-triage/internal/catalog"
	"github.com/wolfman30/mindbridge-triage/pkg/logging"
)

var triageTracer = otel.Tracer("mindbridge/triage")

// CrisisAssessment is the outcome of one risk evaluation.
type CrisisAssessment struct {
	Severity catalog.Severity `json:"severity"`
	// Indicators are "<label>: <phrase>" entries from the deciding tier.
	Indicators []string `json:"indicators"`
	// Labels are the distinct indicator labels, safe to log.
	Labels               []string `json:"labels"`
	RequiresIntervention bool     `json:"requires_intervention"`
}

// NoRisk is the assessment for text without risk indicators.
func NoRisk() CrisisAssessment {
	return CrisisAssessment{Severity: catalog.SeverityNone, Indicators: []string{}, Labels: []string{}}
}

type compiledIndicator struct {
	label   string
	phrases []phrase
}

type compiledTier struct {
	severity   catalog.Severity
	indicators []compiledIndicator
}

// CrisisDetector evaluates risk tiers from most to least severe; the first
// tier with a match decides the severity.
type CrisisDetector struct {
	logger *logging.Logger
	tiers  []compiledTier
}

// NewCrisisDetector compiles the catalog's crisis tiers.
func NewCrisisDetector(cat *catalog.Catalog, logger *logging.Logger) *CrisisDetector {
	if logger == nil {
		logger = logging.Default()
	}

	tiers := make([]compiledTier, 0, len(cat.CrisisTiers))
	for _, tier := range cat.CrisisTiers {
		ct := compiledTier{severity: tier.Severity}
		for _, ind := range tier.Indicators {
			phrases := compilePhrases(ind.Phrases)
			if len(phrases) == 0 {
				continue
			}
			ct.indicators = append(ct.indicators, compiledIndicator{label: ind.Label, phrases: phrases})
		}
		if len(ct.indicators) > 0 {
			tiers = append(tiers, ct)
		}
	}
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].severity > tiers[j].severity
	})

	return &CrisisDetector{logger: logger, tiers: tiers}
}

// Assess returns the severity for normalized text. Empty text is no signal.
func (d *CrisisDetector) Assess(ctx context.Context, n Normalized) CrisisAssessment {
	_, span := triageTracer.Start(ctx, "triage.crisis.assess")
	defer span.End()

	if n.Empty() {
		span.SetAttributes(attribute.String("crisis.severity", catalog.SeverityNone.String()))
		return NoRisk()
	}

	for _, tier := range d.tiers {
		var indicators, labels []string
		for _, ind := range tier.indicators {
			hit := false
			for _, p := range ind.phrases {
				if p.matches(n.Tokens) {
					indicators = append(indicators, ind.label+": "+p.source)
					hit = true
				}
			}
			if hit {
				labels = append(labels, ind.label)
			}
		}
		if len(indicators) == 0 {
			continue
		}

		assessment := CrisisAssessment{
			Severity:             tier.severity,
			Indicators:           indicators,
			Labels:               labels,
			RequiresIntervention: tier.severity.RequiresIntervention(),
		}
		span.SetAttributes(
			attribute.String("crisis.severity", tier.severity.String()),
			attribute.StringSlice("crisis.labels", labels),
			attribute.Bool("crisis.intervention", assessment.RequiresIntervention),
		)
		if assessment.RequiresIntervention {
			d.logger.Warn("crisis indicators detected",
				"severity", tier.severity.String(),
				"labels", labels,
			)
		} else {
			d.logger.Debug("risk indicators detected",
				"severity", tier.severity.String(),
				"labels", labels,
			)
		}
		return assessment
	}

	span.SetAttributes(attribute.String("crisis.severity", catalog.SeverityNone.String()))
	return NoRisk()
}
