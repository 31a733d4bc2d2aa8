package triage

import (
	"sort"

	"github.com/wolfman30/mindbridge-triage/internal/catalog"
)

// DefaultMaxResults bounds a recommendation when no limit is configured.
const DefaultMaxResults = 6

// RecommendInput is everything the recommender needs for one turn.
type RecommendInput struct {
	Matches      []ScenarioMatch
	Assessment   CrisisAssessment
	PeakSeverity catalog.Severity
	Escalated    bool
}

// Recommender turns matches and risk into an ordered, duplicate-free list of
// resource ids: crisis resources first, then scenario resources, then defaults.
type Recommender struct {
	cat        *catalog.Catalog
	maxResults int
	crisis     []string
	byScenario map[string][]string
}

// NewRecommender precomputes crisis and per-scenario orderings.
func NewRecommender(cat *catalog.Catalog, maxResults int) *Recommender {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	r := &Recommender{
		cat:        cat,
		maxResults: maxResults,
		byScenario: make(map[string][]string, len(cat.Scenarios)),
	}

	crisis := cat.CrisisResources()
	sort.SliceStable(crisis, func(i, j int) bool {
		a, b := crisis[i], crisis[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.BestImmediacy() < b.BestImmediacy()
	})
	for _, res := range crisis {
		r.crisis = append(r.crisis, res.ID)
	}

	for _, s := range cat.Scenarios {
		var tagged []catalog.Resource
		for _, res := range cat.Resources {
			if res.HasAnyTag(s.ResourceTags) {
				tagged = append(tagged, res)
			}
		}
		sort.SliceStable(tagged, func(i, j int) bool {
			return tagged[i].Priority > tagged[j].Priority
		})
		ids := make([]string, 0, len(tagged))
		for _, res := range tagged {
			ids = append(ids, res.ID)
		}
		r.byScenario[s.ID] = ids
	}
	return r
}

// CrisisResourceIDs returns crisis-capable resource ids in delivery order.
func (r *Recommender) CrisisResourceIDs() []string {
	return append([]string(nil), r.crisis...)
}

// Recommend ranks resources for a turn. The result is never empty and never
// drops crisis resources when they apply.
func (r *Recommender) Recommend(in RecommendInput) []string {
	out := make([]string, 0, r.maxResults)
	seen := make(map[string]bool)
	add := func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}

	if in.Escalated || catalog.MaxSeverity(in.Assessment.Severity, in.PeakSeverity).RequiresIntervention() {
		for _, id := range r.crisis {
			add(id)
		}
	}
	limit := r.maxResults
	if len(out) > limit {
		limit = len(out)
	}

	for _, m := range in.Matches {
		for _, id := range r.byScenario[m.ScenarioID] {
			add(id)
		}
	}

	if len(in.Matches) == 0 && in.Assessment.Severity == catalog.SeverityNone {
		for _, id := range r.cat.DefaultResources {
			add(id)
		}
	}
	if len(out) == 0 {
		for _, id := range r.cat.DefaultResources {
			add(id)
		}
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Resolve maps ids to catalog resources, skipping unknown ids.
func (r *Recommender) Resolve(ids []string) []catalog.Resource {
	out := make([]catalog.Resource, 0, len(ids))
	for _, id := range ids {
		if res, ok := r.cat.Resource(id); ok {
			out = append(out, res)
		}
	}
	return out
}
