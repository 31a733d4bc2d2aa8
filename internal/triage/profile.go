package triage

import "github.com/wolfman30/mindbridge-triage/internal/catalog"

// FlagHighRisk is set on any session that reached high severity.
const FlagHighRisk = "high-risk"

type compiledRule struct {
	flag       string
	phrases    []phrase
	categories map[string]bool
}

// ProfileInferrer derives user profile flags from text and matched categories.
type ProfileInferrer struct {
	rules []compiledRule
}

// NewProfileInferrer compiles the catalog's profile rules.
func NewProfileInferrer(cat *catalog.Catalog) *ProfileInferrer {
	p := &ProfileInferrer{}
	for _, rule := range cat.ProfileRules {
		cats := make(map[string]bool, len(rule.Categories))
		for _, c := range rule.Categories {
			cats[c] = true
		}
		p.rules = append(p.rules, compiledRule{
			flag:       rule.Flag,
			phrases:    compilePhrases(rule.Phrases),
			categories: cats,
		})
	}
	return p
}

// Infer returns the flags this turn supports, in catalog rule order, followed
// by FlagHighRisk when the assessment is high or crisis.
func (p *ProfileInferrer) Infer(n Normalized, matches []ScenarioMatch, assessment CrisisAssessment) []string {
	var flags []string
	for _, rule := range p.rules {
		if rule.applies(n, matches) {
			flags = append(flags, rule.flag)
		}
	}
	if assessment.Severity.RequiresIntervention() {
		flags = append(flags, FlagHighRisk)
	}
	return flags
}

func (r compiledRule) applies(n Normalized, matches []ScenarioMatch) bool {
	for _, m := range matches {
		if r.categories[m.Category] {
			return true
		}
	}
	if n.Empty() {
		return false
	}
	for _, ph := range r.phrases {
		if ph.matches(n.Tokens) {
			return true
		}
	}
	return false
}
