package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/mindbridge-triage/internal/catalog"
	"github.com/wolfman30/mindbridge-triage/pkg/logging"
)

var boylston = Point{Lat: 42.3505, Lon: -71.0621}

func testDirectory(t *testing.T) *Directory {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	d := New(cat, logging.Discard())
	require.Equal(t, 6, d.Len())
	return d
}

func ids(matches []Match) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Provider.ID)
	}
	return out
}

func TestSearch_Filters(t *testing.T) {
	d := testDirectory(t)

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{
			name:  "empty query stays below the relevance floor",
			query: Query{},
			want:  []string{},
		},
		{
			name:  "insurance is case-insensitive and ties sort by id",
			query: Query{Insurance: "cigna"},
			want:  []string{"dr_maria_gonzalez", "dr_michael_rodriguez"},
		},
		{
			name:  "unknown insurance excludes everyone",
			query: Query{Insurance: "Acme Health"},
			want:  []string{},
		},
		{
			name:  "telehealth required drops in-person providers",
			query: Query{Insurance: "Aetna", Telehealth: TelehealthRequired},
			want:  []string{"dr_maria_gonzalez", "dr_sarah_chen"},
		},
		{
			name:  "in person only drops providers without an office",
			query: Query{Insurance: "Cigna", Telehealth: TelehealthInPersonOnly},
			want:  []string{"dr_michael_rodriguez"},
		},
		{
			name:  "specialty and language boosts",
			query: Query{Specialties: []string{"Academic-Stress", "self-esteem"}, Languages: []string{"korean"}},
			want:  []string{"dr_james_kim", "dr_sarah_chen"},
		},
		{
			name:  "provider type matches title",
			query: Query{ProviderTypes: []string{"psychiatrist"}},
			want:  []string{"dr_michael_rodriguez"},
		},
		{
			name:  "limit",
			query: Query{Insurance: "MindBridge Care", Limit: 2},
			want:  []string{"dr_emily_watson", "dr_james_kim"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Search(context.Background(), tt.query)
			assert.Equal(t, tt.want, ids(got))
			for _, m := range got {
				assert.Greater(t, m.Score, minScore)
				assert.NotEmpty(t, m.Reasons)
			}
		})
	}
}

func TestSearch_DistanceScoring(t *testing.T) {
	d := testDirectory(t)
	origin := boylston

	got := d.Search(context.Background(), Query{
		Insurance:        "MindBridge Care",
		Origin:           &origin,
		MaxDistanceMiles: 2,
	})

	assert.Equal(t, []string{"dr_sarah_chen", "dr_james_kim", "lisa_thompson", "dr_michael_rodriguez", "dr_maria_gonzalez"}, ids(got))

	require.NotNil(t, got[0].DistanceMiles)
	assert.InDelta(t, 0, *got[0].DistanceMiles, 0.01)
	assert.InDelta(t, 60, got[0].Score, 0.01)
	assert.Contains(t, got[0].Reasons, "0.0 miles away")

	require.NotNil(t, got[1].DistanceMiles)
	assert.InDelta(t, 1.02, *got[1].DistanceMiles, 0.01)

	// no office means no distance, and no exclusion
	assert.Nil(t, got[4].DistanceMiles)
	assert.InDelta(t, 35, got[4].Score, 0.01)
}

func TestSearch_ProximityWithoutRadius(t *testing.T) {
	d := testDirectory(t)
	origin := boylston

	got := d.Search(context.Background(), Query{Origin: &origin})
	require.NotEmpty(t, got)
	assert.Equal(t, "dr_sarah_chen", got[0].Provider.ID)
	assert.InDelta(t, 20, got[0].Score, 0.01)
	assert.NotContains(t, ids(got), "dr_maria_gonzalez")
}

func TestSearch_LimitIsCapped(t *testing.T) {
	d := testDirectory(t)
	got := d.Search(context.Background(), Query{Insurance: "MindBridge Care", Limit: 1000})
	assert.Len(t, got, 6)
}

func TestProviderLookup(t *testing.T) {
	d := testDirectory(t)

	p, ok := d.Provider("lisa_thompson")
	require.True(t, ok)
	assert.Contains(t, p.Languages, "Arabic")

	_, ok = d.Provider("nobody")
	assert.False(t, ok)
}

func TestNewWithNilCatalog(t *testing.T) {
	d := New(nil, nil)
	assert.Equal(t, 0, d.Len())
	assert.Empty(t, d.Search(context.Background(), Query{Insurance: "Aetna"}))
}

func TestParseTelehealthPreference(t *testing.T) {
	tests := []struct {
		in      string
		want    TelehealthPreference
		wantErr bool
	}{
		{"", TelehealthNoPreference, false},
		{"Required", TelehealthRequired, false},
		{" preferred ", TelehealthPreferred, false},
		{"in_person_only", TelehealthInPersonOnly, false},
		{"no_preference", TelehealthNoPreference, false},
		{"sometimes", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTelehealthPreference(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHaversineMiles(t *testing.T) {
	nyc := Point{Lat: 40.7128, Lon: -74.0060}
	boston := Point{Lat: 42.3601, Lon: -71.0589}

	assert.InDelta(t, 190.07, HaversineMiles(nyc, boston), 0.1)
	assert.InDelta(t, HaversineMiles(nyc, boston), HaversineMiles(boston, nyc), 1e-9)
	assert.Zero(t, HaversineMiles(boston, boston))
}

func TestPointValid(t *testing.T) {
	assert.True(t, boylston.Valid())
	assert.False(t, Point{Lat: 91}.Valid())
	assert.False(t, Point{Lon: -181}.Valid())
}
