// Package catalog holds the static, read-only scenario and resource tables the
// triage engine runs against. A Catalog is built once at startup and shared by
// pointer; nothing mutates it afterwards.
package catalog

import "strings"

// ContactKind identifies how a resource can be reached.
type ContactKind string

const (
	ContactPhone ContactKind = "phone"
	ContactText  ContactKind = "text"
	ContactApp   ContactKind = "app"
	ContactWeb   ContactKind = "web"
	ContactEmail ContactKind = "email"
)

// Immediacy ranks contact kinds; lower is faster to reach a human.
func (k ContactKind) Immediacy() int {
	switch k {
	case ContactPhone:
		return 0
	case ContactText:
		return 1
	case ContactApp:
		return 2
	case ContactWeb:
		return 3
	case ContactEmail:
		return 4
	default:
		return 5
	}
}

// Immediate is true for kinds that reach a person right away.
func (k ContactKind) Immediate() bool {
	return k == ContactPhone || k == ContactText
}

func (k ContactKind) valid() bool {
	return k.Immediacy() < 5
}

// Contact is one way to reach a resource.
type Contact struct {
	Kind  ContactKind `yaml:"kind" json:"kind"`
	Value string      `yaml:"value" json:"value"`
}

// Scenario is a catalogued concern category with the phrases that trigger it.
type Scenario struct {
	ID           string   `yaml:"id"`
	Category     string   `yaml:"category"`
	Title        string   `yaml:"title"`
	Severity     Severity `yaml:"severity"`
	Triggers     []string `yaml:"triggers"`
	ResourceTags []string `yaml:"resource_tags"`
}

// Resource is a support service entry.
type Resource struct {
	ID            string    `yaml:"id" json:"id"`
	Provider      string    `yaml:"provider" json:"provider"`
	Name          string    `yaml:"name" json:"name"`
	Description   string    `yaml:"description" json:"description,omitempty"`
	Tags          []string  `yaml:"tags" json:"tags"`
	Contacts      []Contact `yaml:"contacts" json:"contacts"`
	Availability  string    `yaml:"availability" json:"availability,omitempty"`
	CostTier      string    `yaml:"cost_tier" json:"cost_tier,omitempty"`
	Priority      int       `yaml:"priority" json:"priority"`
	CrisisCapable bool      `yaml:"crisis_capable" json:"crisis_capable"`
	Eligibility   []string  `yaml:"eligibility" json:"eligibility,omitempty"`
}

// BestImmediacy returns the lowest Immediacy across the resource's contacts.
func (r Resource) BestImmediacy() int {
	best := 5
	for _, c := range r.Contacts {
		if rank := c.Kind.Immediacy(); rank < best {
			best = rank
		}
	}
	return best
}

// HasImmediateContact reports whether a phone or text contact exists.
func (r Resource) HasImmediateContact() bool {
	for _, c := range r.Contacts {
		if c.Kind.Immediate() && strings.TrimSpace(c.Value) != "" {
			return true
		}
	}
	return false
}

// Contact returns the first contact of the given kind.
func (r Resource) Contact(kind ContactKind) (string, bool) {
	for _, c := range r.Contacts {
		if c.Kind == kind {
			return c.Value, true
		}
	}
	return "", false
}

// HasAnyTag reports whether the resource carries at least one of tags.
func (r Resource) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range r.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Indicator is a labelled group of risk phrases inside a crisis tier.
type Indicator struct {
	Label   string   `yaml:"label"`
	Phrases []string `yaml:"phrases"`
}

// CrisisTier maps one severity level to its indicator phrases.
type CrisisTier struct {
	Severity   Severity    `yaml:"severity"`
	Indicators []Indicator `yaml:"indicators"`
}

// ActionPlan lists the next steps offered at one severity.
type ActionPlan struct {
	Severity Severity `yaml:"severity"`
	Steps    []string `yaml:"steps"`
}

// ProfileRule infers a user profile flag from phrases or matched categories.
type ProfileRule struct {
	Flag       string   `yaml:"flag"`
	Phrases    []string `yaml:"phrases"`
	Categories []string `yaml:"categories"`
}

// Location is a provider's office location.
type Location struct {
	Address string  `yaml:"address" json:"address,omitempty"`
	City    string  `yaml:"city" json:"city,omitempty"`
	State   string  `yaml:"state" json:"state,omitempty"`
	Lat     float64 `yaml:"lat" json:"lat,omitempty"`
	Lon     float64 `yaml:"lon" json:"lon,omitempty"`
}

// Provider is an individual clinician in the referral directory.
type Provider struct {
	ID                  string    `yaml:"id" json:"id"`
	Name                string    `yaml:"name" json:"name"`
	Title               string    `yaml:"title" json:"title"`
	Network             string    `yaml:"network" json:"network"`
	Specialties         []string  `yaml:"specialties" json:"specialties"`
	Insurance           []string  `yaml:"insurance" json:"insurance"`
	Languages           []string  `yaml:"languages" json:"languages"`
	Telehealth          bool      `yaml:"telehealth" json:"telehealth"`
	AcceptingNewClients bool      `yaml:"accepting_new_clients" json:"accepting_new_clients"`
	Location            *Location `yaml:"location" json:"location,omitempty"`
	Contacts            []Contact `yaml:"contacts" json:"contacts"`
	Availability        string    `yaml:"availability" json:"availability,omitempty"`
}

// Catalog is the validated, immutable rule and resource set.
type Catalog struct {
	Scenarios        []Scenario
	Resources        []Resource
	CrisisTiers      []CrisisTier
	ProfileRules     []ProfileRule
	DefaultResources []string
	Providers        []Provider
	Actions          []ActionPlan
	SafetyPlan       []string

	scenarioIndex map[string]int
	resourceIndex map[string]int
}

// Scenario looks up a scenario by id.
func (c *Catalog) Scenario(id string) (Scenario, bool) {
	i, ok := c.scenarioIndex[id]
	if !ok {
		return Scenario{}, false
	}
	return c.Scenarios[i], true
}

// Resource looks up a resource by id.
func (c *Catalog) Resource(id string) (Resource, bool) {
	i, ok := c.resourceIndex[id]
	if !ok {
		return Resource{}, false
	}
	return c.Resources[i], true
}

// ResourceOrder returns the declaration index of a resource, or -1.
func (c *Catalog) ResourceOrder(id string) int {
	if i, ok := c.resourceIndex[id]; ok {
		return i
	}
	return -1
}

// ImmediateActions returns a copy of the steps for severity. Severity none
// and severities without a plan return nil.
func (c *Catalog) ImmediateActions(severity Severity) []string {
	if severity == SeverityNone {
		return nil
	}
	for _, plan := range c.Actions {
		if plan.Severity == severity {
			return append([]string(nil), plan.Steps...)
		}
	}
	return nil
}

// SafetyPlanSteps returns a copy of the safety plan suggestions.
func (c *Catalog) SafetyPlanSteps() []string {
	if len(c.SafetyPlan) == 0 {
		return nil
	}
	return append([]string(nil), c.SafetyPlan...)
}

// CrisisResources returns crisis-capable resources in declaration order.
func (c *Catalog) CrisisResources() []Resource {
	var out []Resource
	for _, r := range c.Resources {
		if r.CrisisCapable {
			out = append(out, r)
		}
	}
	return out
}

func (c *Catalog) buildIndexes() {
	c.scenarioIndex = make(map[string]int, len(c.Scenarios))
	for i, s := range c.Scenarios {
		if _, dup := c.scenarioIndex[s.ID]; !dup {
			c.scenarioIndex[s.ID] = i
		}
	}
	c.resourceIndex = make(map[string]int, len(c.Resources))
	for i, r := range c.Resources {
		if _, dup := c.resourceIndex[r.ID]; !dup {
			c.resourceIndex[r.ID] = i
		}
	}
}
