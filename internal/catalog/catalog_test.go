package catalog

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenarios = `
scenarios:
  - id: exams
    category: academic-stress
    severity: moderate
    triggers: [exam*]
    resource_tags: [academic-support]
`

const minimalResources = `
default_resources: [counseling]
resources:
  - id: hotline
    name: Hotline
    tags: [crisis]
    contacts:
      - {kind: phone, value: "988"}
    priority: 100
    crisis_capable: true
  - id: counseling
    name: Counseling
    tags: [counseling]
    contacts:
      - {kind: web, value: "https://example.test"}
    priority: 10
`

const minimalTiers = `
tiers:
  - severity: crisis
    indicators:
      - label: suicidal_ideation
        phrases: [kill myself]
`

func TestDefaultCatalogLoads(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)

	assert.NotEmpty(t, cat.Scenarios)
	assert.NotEmpty(t, cat.Resources)
	assert.NotEmpty(t, cat.Providers)
	assert.Len(t, cat.CrisisTiers, 4)

	for _, r := range cat.CrisisResources() {
		assert.True(t, r.HasImmediateContact(), "crisis resource %s must be reachable by phone or text", r.ID)
	}
	for _, id := range cat.DefaultResources {
		_, ok := cat.Resource(id)
		assert.True(t, ok, "default resource %s missing", id)
	}

	hotline, ok := cat.Resource("crisis_hotline")
	require.True(t, ok)
	phone, ok := hotline.Contact(ContactPhone)
	require.True(t, ok)
	assert.Equal(t, "988", phone)
	assert.Equal(t, 0, cat.ResourceOrder("crisis_hotline"))
	assert.Equal(t, -1, cat.ResourceOrder("missing"))

	s, ok := cat.Scenario("academic_exam_anxiety")
	require.True(t, ok)
	assert.Equal(t, "academic-stress", s.Category)
	assert.Equal(t, SeverityModerate, s.Severity)

	for _, sev := range []Severity{SeverityLow, SeverityModerate, SeverityHigh, SeverityCrisis} {
		assert.NotEmpty(t, cat.ImmediateActions(sev), "actions for %s", sev)
	}
	assert.Nil(t, cat.ImmediateActions(SeverityNone))
	assert.Contains(t, cat.ImmediateActions(SeverityCrisis)[1], "911")
	assert.NotEmpty(t, cat.SafetyPlanSteps())
}

func TestActionAccessorsReturnCopies(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)

	actions := cat.ImmediateActions(SeverityCrisis)
	actions[0] = "changed"
	assert.NotEqual(t, "changed", cat.ImmediateActions(SeverityCrisis)[0])

	plan := cat.SafetyPlanSteps()
	plan[0] = "changed"
	assert.NotEqual(t, "changed", cat.SafetyPlanSteps()[0])
}

func TestLoadMinimalCatalog(t *testing.T) {
	fsys := fstest.MapFS{
		"scenarios.yaml":    {Data: []byte(minimalScenarios)},
		"resources.yaml":    {Data: []byte(minimalResources)},
		"crisis_tiers.yaml": {Data: []byte(minimalTiers)},
	}

	cat, err := Load(fsys)
	require.NoError(t, err)
	assert.Empty(t, cat.ProfileRules)
	assert.Empty(t, cat.Providers)
	assert.Equal(t, []string{"counseling"}, cat.DefaultResources)
	assert.Len(t, cat.CrisisResources(), 1)
	assert.Nil(t, cat.ImmediateActions(SeverityCrisis))
	assert.Nil(t, cat.SafetyPlanSteps())
}

func TestLoadActionsAndSafetyPlan(t *testing.T) {
	tiers := minimalTiers + `
actions:
  - severity: high
    steps: [Call counseling]
safety_plan: [List people you can call]
`
	fsys := fstest.MapFS{
		"scenarios.yaml":    {Data: []byte(minimalScenarios)},
		"resources.yaml":    {Data: []byte(minimalResources)},
		"crisis_tiers.yaml": {Data: []byte(tiers)},
	}

	cat, err := Load(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"Call counseling"}, cat.ImmediateActions(SeverityHigh))
	assert.Nil(t, cat.ImmediateActions(SeverityCrisis))
	assert.Equal(t, []string{"List people you can call"}, cat.SafetyPlanSteps())
}

func TestLoadMissingRequiredFile(t *testing.T) {
	fsys := fstest.MapFS{
		"scenarios.yaml": {Data: []byte(minimalScenarios)},
	}
	_, err := Load(fsys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resources.yaml")
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	fsys := fstest.MapFS{
		"scenarios.yaml":    {Data: []byte(minimalScenarios + "    keywords: [oops]\n")},
		"resources.yaml":    {Data: []byte(minimalResources)},
		"crisis_tiers.yaml": {Data: []byte(minimalTiers)},
	}
	_, err := Load(fsys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios.yaml")
}

func TestLoadRejectsUnknownSeverity(t *testing.T) {
	fsys := fstest.MapFS{
		"scenarios.yaml":    {Data: []byte(minimalScenarios)},
		"resources.yaml":    {Data: []byte(minimalResources)},
		"crisis_tiers.yaml": {Data: []byte("tiers:\n  - severity: dire\n")},
	}
	_, err := Load(fsys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown severity")
}

func TestValidateIntegrity(t *testing.T) {
	base := func() Catalog {
		return Catalog{
			Scenarios: []Scenario{{ID: "a", Category: "academic-stress", Triggers: []string{"exam"}}},
			Resources: []Resource{
				{ID: "hotline", Name: "Hotline", CrisisCapable: true, Contacts: []Contact{{Kind: ContactPhone, Value: "988"}}},
				{ID: "general", Name: "General", Contacts: []Contact{{Kind: ContactWeb, Value: "https://x.test"}}},
			},
			CrisisTiers:      []CrisisTier{{Severity: SeverityCrisis, Indicators: []Indicator{{Label: "x", Phrases: []string{"kill myself"}}}}},
			DefaultResources: []string{"general"},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Catalog)
		want   string
	}{
		{
			name:   "empty trigger set",
			mutate: func(c *Catalog) { c.Scenarios[0].Triggers = nil },
			want:   `scenario "a" has an empty trigger set`,
		},
		{
			name:   "punctuation-only triggers",
			mutate: func(c *Catalog) { c.Scenarios[0].Triggers = []string{"!!", " "} },
			want:   `scenario "a" has an empty trigger set`,
		},
		{
			name: "duplicate scenario",
			mutate: func(c *Catalog) {
				c.Scenarios = append(c.Scenarios, c.Scenarios[0])
			},
			want: `duplicate scenario id "a"`,
		},
		{
			name: "crisis resource without immediate contact",
			mutate: func(c *Catalog) {
				c.Resources[0].Contacts = []Contact{{Kind: ContactWeb, Value: "https://x.test"}}
			},
			want: `crisis resource "hotline" has no phone or text contact`,
		},
		{
			name:   "resource without contacts",
			mutate: func(c *Catalog) { c.Resources[1].Contacts = nil },
			want:   `resource "general" has no contact methods`,
		},
		{
			name: "unknown contact kind",
			mutate: func(c *Catalog) {
				c.Resources[1].Contacts = append(c.Resources[1].Contacts, Contact{Kind: "pager", Value: "1"})
			},
			want: `unknown contact kind "pager"`,
		},
		{
			name:   "missing default",
			mutate: func(c *Catalog) { c.DefaultResources = []string{"ghost"} },
			want:   `default resource "ghost" does not exist`,
		},
		{
			name:   "no defaults",
			mutate: func(c *Catalog) { c.DefaultResources = nil },
			want:   "no default resources defined",
		},
		{
			name:   "tier at severity none",
			mutate: func(c *Catalog) { c.CrisisTiers[0].Severity = SeverityNone },
			want:   "crisis tier cannot use severity none",
		},
		{
			name: "action plan at severity none",
			mutate: func(c *Catalog) {
				c.Actions = []ActionPlan{{Severity: SeverityNone, Steps: []string{"rest"}}}
			},
			want: "action plan cannot use severity none",
		},
		{
			name: "duplicate action plan",
			mutate: func(c *Catalog) {
				c.Actions = []ActionPlan{
					{Severity: SeverityHigh, Steps: []string{"call"}},
					{Severity: SeverityHigh, Steps: []string{"text"}},
				}
			},
			want: "duplicate action plan for high",
		},
		{
			name: "action plan without steps",
			mutate: func(c *Catalog) {
				c.Actions = []ActionPlan{{Severity: SeverityLow, Steps: []string{" "}}}
			},
			want: "action plan low has no steps",
		},
		{
			name: "profile rule without inputs",
			mutate: func(c *Catalog) {
				c.ProfileRules = []ProfileRule{{Flag: "international"}}
			},
			want: `profile rule "international" has neither phrases nor categories`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)

			_, err := New(c)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrIntegrity))

			var integrity *IntegrityError
			require.True(t, errors.As(err, &integrity))
			assert.Contains(t, integrity.Problems, tt.want)
		})
	}

	_, err := New(base())
	require.NoError(t, err)
}

func TestSeverityOrderingAndText(t *testing.T) {
	assert.True(t, SeverityCrisis.AtLeast(SeverityHigh))
	assert.False(t, SeverityModerate.AtLeast(SeverityHigh))
	assert.True(t, SeverityHigh.RequiresIntervention())
	assert.False(t, SeverityModerate.RequiresIntervention())
	assert.Equal(t, SeverityHigh, MaxSeverity(SeverityLow, SeverityHigh))

	for _, s := range []Severity{SeverityNone, SeverityLow, SeverityModerate, SeverityHigh, SeverityCrisis} {
		text, err := s.MarshalText()
		require.NoError(t, err)
		var back Severity
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}

	parsed, err := ParseSeverity(" HIGH ")
	require.NoError(t, err)
	assert.Equal(t, SeverityHigh, parsed)

	_, err = ParseSeverity("severe")
	assert.Error(t, err)
	assert.Equal(t, "severity(9)", Severity(9).String())
}

func TestResourceHelpers(t *testing.T) {
	r := Resource{
		Tags: []string{"counseling", "general"},
		Contacts: []Contact{
			{Kind: ContactEmail, Value: "a@b.test"},
			{Kind: ContactApp, Value: "App"},
		},
	}
	assert.Equal(t, ContactApp.Immediacy(), r.BestImmediacy())
	assert.False(t, r.HasImmediateContact())
	assert.True(t, r.HasAnyTag([]string{"wellness", "general"}))
	assert.False(t, r.HasAnyTag([]string{"crisis"}))
	_, ok := r.Contact(ContactPhone)
	assert.False(t, ok)
}
