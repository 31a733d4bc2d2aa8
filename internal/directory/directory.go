// Package directory searches the referral provider list shipped with the
// catalog and ranks providers against a student's stated preferences.
package directory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/mindbridge-triage/internal/catalog"
	"github.com/wolfman30/mindbridge-triage/pkg/logging"
)

var tracer = otel.Tracer("mindbridge/directory")

// TelehealthPreference constrains or boosts telehealth providers.
type TelehealthPreference string

const (
	TelehealthNoPreference TelehealthPreference = "no_preference"
	TelehealthRequired     TelehealthPreference = "required"
	TelehealthPreferred    TelehealthPreference = "preferred"
	TelehealthInPersonOnly TelehealthPreference = "in_person_only"
)

// ParseTelehealthPreference accepts the wire names above; empty means no preference.
func ParseTelehealthPreference(s string) (TelehealthPreference, error) {
	switch p := TelehealthPreference(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return TelehealthNoPreference, nil
	case TelehealthNoPreference, TelehealthRequired, TelehealthPreferred, TelehealthInPersonOnly:
		return p, nil
	default:
		return "", fmt.Errorf("directory: unknown telehealth preference %q", s)
	}
}

const (
	// DefaultLimit caps results when a query does not set one.
	DefaultLimit = 10
	// MaxLimit is the largest limit a query may request.
	MaxLimit = 50

	minScore = 10.0

	insuranceWeight    = 30.0
	withinRadiusBase   = 25.0
	withinRadiusSpan   = 10.0
	proximityBase      = 15.0
	proximityPerMile   = 0.5
	telehealthWeight   = 10.0
	specialtyWeight    = 15.0
	languageWeight     = 10.0
	providerTypeWeight = 15.0
	acceptingNewWeight = 5.0
)

// Query describes what a student is looking for. Zero values mean "any".
type Query struct {
	Insurance        string
	Origin           *Point
	MaxDistanceMiles float64
	Telehealth       TelehealthPreference
	Specialties      []string
	Languages        []string
	ProviderTypes    []string
	Limit            int
}

// Match is a ranked provider with the reasons it scored.
type Match struct {
	Provider      catalog.Provider `json:"provider"`
	Score         float64          `json:"score"`
	Reasons       []string         `json:"reasons"`
	DistanceMiles *float64         `json:"distance_miles,omitempty"`
}

// Directory ranks catalog providers. It is immutable and safe for concurrent use.
type Directory struct {
	providers []catalog.Provider
	index     map[string]int
	logger    *logging.Logger
}

// New builds a directory over the catalog's providers.
func New(cat *catalog.Catalog, logger *logging.Logger) *Directory {
	if logger == nil {
		logger = logging.Default()
	}
	d := &Directory{logger: logger, index: make(map[string]int)}
	if cat != nil {
		d.providers = append(d.providers, cat.Providers...)
	}
	for i, p := range d.providers {
		d.index[p.ID] = i
	}
	return d
}

// Len reports how many providers are listed.
func (d *Directory) Len() int {
	return len(d.providers)
}

// Provider looks up a provider by id.
func (d *Directory) Provider(id string) (catalog.Provider, bool) {
	i, ok := d.index[id]
	if !ok {
		return catalog.Provider{}, false
	}
	return d.providers[i], true
}

// Search filters and ranks providers for q. Results are ordered by score,
// then by provider id, and never exceed the query limit.
func (d *Directory) Search(ctx context.Context, q Query) []Match {
	_, span := tracer.Start(ctx, "directory.search")
	defer span.End()

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	matches := make([]Match, 0, len(d.providers))
	for _, p := range d.providers {
		if m, ok := score(p, q); ok {
			matches = append(matches, m)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Provider.ID < matches[j].Provider.ID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	span.SetAttributes(
		attribute.Int("directory.candidates", len(d.providers)),
		attribute.Int("directory.results", len(matches)),
	)
	d.logger.Debug("provider search", "results", len(matches), "telehealth", string(q.Telehealth))
	return matches
}

// score returns the provider's match, or false when a hard filter excludes
// it or it falls at or below the relevance floor.
func score(p catalog.Provider, q Query) (Match, bool) {
	m := Match{Provider: p}

	if q.Insurance != "" {
		plan, ok := containsFold(p.Insurance, q.Insurance)
		if !ok {
			return Match{}, false
		}
		m.Score += insuranceWeight
		m.Reasons = append(m.Reasons, "Accepts "+plan)
	}

	if origin := q.Origin; origin != nil && hasCoordinates(p.Location) {
		dist := HaversineMiles(*origin, Point{Lat: p.Location.Lat, Lon: p.Location.Lon})
		if q.MaxDistanceMiles > 0 {
			if dist > q.MaxDistanceMiles {
				return Match{}, false
			}
			m.Score += withinRadiusBase - dist/q.MaxDistanceMiles*withinRadiusSpan
		} else {
			m.Score += max(0, proximityBase-dist*proximityPerMile)
		}
		m.DistanceMiles = &dist
		m.Reasons = append(m.Reasons, fmt.Sprintf("%.1f miles away", dist))
	}

	switch q.Telehealth {
	case TelehealthRequired:
		if !p.Telehealth {
			return Match{}, false
		}
	case TelehealthInPersonOnly:
		if p.Location == nil {
			return Match{}, false
		}
	case TelehealthPreferred:
		if p.Telehealth {
			m.Score += telehealthWeight
			m.Reasons = append(m.Reasons, "Offers telehealth")
		}
	}

	if hits := intersectFold(q.Specialties, p.Specialties); len(hits) > 0 {
		m.Score += float64(len(hits)) * specialtyWeight
		m.Reasons = append(m.Reasons, "Specializes in: "+strings.Join(hits, ", "))
	}

	if hits := intersectFold(q.Languages, p.Languages); len(hits) > 0 {
		m.Score += float64(len(hits)) * languageWeight
		m.Reasons = append(m.Reasons, "Speaks: "+strings.Join(hits, ", "))
	}

	title := strings.ToLower(p.Title)
	for _, t := range q.ProviderTypes {
		t = strings.TrimSpace(t)
		if t != "" && strings.Contains(title, strings.ToLower(t)) {
			m.Score += providerTypeWeight
			m.Reasons = append(m.Reasons, "Matches preferred type: "+t)
		}
	}

	if p.AcceptingNewClients {
		m.Score += acceptingNewWeight
		m.Reasons = append(m.Reasons, "Accepting new clients")
	}

	if m.Score <= minScore {
		return Match{}, false
	}
	return m, true
}

func hasCoordinates(loc *catalog.Location) bool {
	return loc != nil && loc.Lat != 0 && loc.Lon != 0
}

// containsFold returns the list entry equal to want ignoring case.
func containsFold(list []string, want string) (string, bool) {
	want = strings.TrimSpace(want)
	for _, v := range list {
		if strings.EqualFold(v, want) {
			return v, true
		}
	}
	return "", false
}

// intersectFold returns the distinct entries of have that appear in want,
// in have's order.
func intersectFold(want, have []string) []string {
	if len(want) == 0 || len(have) == 0 {
		return nil
	}
	wanted := make(map[string]struct{}, len(want))
	for _, w := range want {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			wanted[w] = struct{}{}
		}
	}
	var out []string
	for _, h := range have {
		key := strings.ToLower(h)
		if _, ok := wanted[key]; ok {
			out = append(out, h)
			delete(wanted, key)
		}
	}
	return out
}
