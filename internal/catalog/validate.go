package catalog

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrIntegrity marks a catalog that must not be served.
var ErrIntegrity = errors.New("catalog: integrity check failed")

// IntegrityError lists every problem found during validation.
type IntegrityError struct {
	Problems []string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: %s", ErrIntegrity.Error(), strings.Join(e.Problems, "; "))
}

func (e *IntegrityError) Unwrap() error {
	return ErrIntegrity
}

// Validate checks the catalog invariants: unique ids, non-empty trigger sets,
// reachable crisis resources, resolvable defaults, well-formed crisis tiers and
// action plans.
func Validate(c *Catalog) error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(c.Scenarios) == 0 {
		addf("no scenarios defined")
	}
	seenScenario := make(map[string]bool, len(c.Scenarios))
	for i, s := range c.Scenarios {
		if strings.TrimSpace(s.ID) == "" {
			addf("scenario #%d has no id", i)
			continue
		}
		if seenScenario[s.ID] {
			addf("duplicate scenario id %q", s.ID)
		}
		seenScenario[s.ID] = true
		if strings.TrimSpace(s.Category) == "" {
			addf("scenario %q has no category", s.ID)
		}
		if countUsable(s.Triggers) == 0 {
			addf("scenario %q has an empty trigger set", s.ID)
		}
	}

	if len(c.Resources) == 0 {
		addf("no resources defined")
	}
	seenResource := make(map[string]bool, len(c.Resources))
	for i, r := range c.Resources {
		if strings.TrimSpace(r.ID) == "" {
			addf("resource #%d has no id", i)
			continue
		}
		if seenResource[r.ID] {
			addf("duplicate resource id %q", r.ID)
		}
		seenResource[r.ID] = true
		if strings.TrimSpace(r.Name) == "" {
			addf("resource %q has no name", r.ID)
		}
		if len(r.Contacts) == 0 {
			addf("resource %q has no contact methods", r.ID)
		}
		for _, contact := range r.Contacts {
			if !contact.Kind.valid() {
				addf("resource %q has unknown contact kind %q", r.ID, contact.Kind)
			}
		}
		if r.CrisisCapable && !r.HasImmediateContact() {
			addf("crisis resource %q has no phone or text contact", r.ID)
		}
	}

	if len(c.DefaultResources) == 0 {
		addf("no default resources defined")
	}
	for _, id := range c.DefaultResources {
		if !seenResource[id] {
			addf("default resource %q does not exist", id)
		}
	}

	if len(c.CrisisTiers) == 0 {
		addf("no crisis tiers defined")
	}
	seenTier := make(map[Severity]bool, len(c.CrisisTiers))
	for _, tier := range c.CrisisTiers {
		if tier.Severity == SeverityNone {
			addf("crisis tier cannot use severity none")
			continue
		}
		if seenTier[tier.Severity] {
			addf("duplicate crisis tier %s", tier.Severity)
		}
		seenTier[tier.Severity] = true
		phrases := 0
		for _, ind := range tier.Indicators {
			if strings.TrimSpace(ind.Label) == "" {
				addf("crisis tier %s has an unlabelled indicator", tier.Severity)
			}
			phrases += countUsable(ind.Phrases)
		}
		if phrases == 0 {
			addf("crisis tier %s has no phrases", tier.Severity)
		}
	}

	seenPlan := make(map[Severity]bool, len(c.Actions))
	for _, plan := range c.Actions {
		if plan.Severity == SeverityNone {
			addf("action plan cannot use severity none")
			continue
		}
		if seenPlan[plan.Severity] {
			addf("duplicate action plan for %s", plan.Severity)
		}
		seenPlan[plan.Severity] = true
		if countUsable(plan.Steps) == 0 {
			addf("action plan %s has no steps", plan.Severity)
		}
	}

	for i, rule := range c.ProfileRules {
		if strings.TrimSpace(rule.Flag) == "" {
			addf("profile rule #%d has no flag", i)
			continue
		}
		if countUsable(rule.Phrases) == 0 && len(rule.Categories) == 0 {
			addf("profile rule %q has neither phrases nor categories", rule.Flag)
		}
	}

	seenProvider := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if strings.TrimSpace(p.ID) == "" {
			addf("provider #%d has no id", i)
			continue
		}
		if seenProvider[p.ID] {
			addf("duplicate provider id %q", p.ID)
		}
		seenProvider[p.ID] = true
	}

	if len(problems) > 0 {
		return &IntegrityError{Problems: problems}
	}
	return nil
}

// countUsable counts phrases that contain at least one letter or digit, i.e.
// phrases that survive text normalization.
func countUsable(phrases []string) int {
	n := 0
	for _, p := range phrases {
		if strings.IndexFunc(p, func(r rune) bool {
			return unicode.IsLetter(r) || unicode.IsDigit(r)
		}) >= 0 {
			n++
		}
	}
	return n
}
