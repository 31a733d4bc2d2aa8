package catalog

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var embedded embed.FS

const (
	scenariosFile = "scenarios.yaml"
	resourcesFile = "resources.yaml"
	crisisFile    = "crisis_tiers.yaml"
	profilesFile  = "profiles.yaml"
	providersFile = "providers.yaml"
)

type scenariosDoc struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

type resourcesDoc struct {
	DefaultResources []string   `yaml:"default_resources"`
	Resources        []Resource `yaml:"resources"`
}

type crisisDoc struct {
	Tiers      []CrisisTier `yaml:"tiers"`
	Actions    []ActionPlan `yaml:"actions"`
	SafetyPlan []string     `yaml:"safety_plan"`
}

type profilesDoc struct {
	Profiles []ProfileRule `yaml:"profiles"`
}

type providersDoc struct {
	Providers []Provider `yaml:"providers"`
}

// Default loads the catalog compiled into the binary.
func Default() (*Catalog, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, fmt.Errorf("catalog: open embedded data: %w", err)
	}
	return Load(sub)
}

// LoadDir loads catalog files from a directory on disk.
func LoadDir(dir string) (*Catalog, error) {
	return Load(os.DirFS(dir))
}

// Load reads and validates catalog files from fsys. Scenario, resource and
// crisis tier files are required; profile and provider files are optional.
func Load(fsys fs.FS) (*Catalog, error) {
	var scen scenariosDoc
	if err := decodeFile(fsys, scenariosFile, &scen, true); err != nil {
		return nil, err
	}
	var res resourcesDoc
	if err := decodeFile(fsys, resourcesFile, &res, true); err != nil {
		return nil, err
	}
	var crisis crisisDoc
	if err := decodeFile(fsys, crisisFile, &crisis, true); err != nil {
		return nil, err
	}
	var profiles profilesDoc
	if err := decodeFile(fsys, profilesFile, &profiles, false); err != nil {
		return nil, err
	}
	var providers providersDoc
	if err := decodeFile(fsys, providersFile, &providers, false); err != nil {
		return nil, err
	}

	return New(Catalog{
		Scenarios:        scen.Scenarios,
		Resources:        res.Resources,
		CrisisTiers:      crisis.Tiers,
		ProfileRules:     profiles.Profiles,
		DefaultResources: res.DefaultResources,
		Providers:        providers.Providers,
		Actions:          crisis.Actions,
		SafetyPlan:       crisis.SafetyPlan,
	})
}

// New validates c and returns an indexed, ready-to-share catalog.
func New(c Catalog) (*Catalog, error) {
	if err := Validate(&c); err != nil {
		return nil, err
	}
	c.buildIndexes()
	return &c, nil
}

func decodeFile(fsys fs.FS, name string, out any, required bool) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("catalog: read %s: %w", name, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("catalog: decode %s: %w", name, err)
	}
	return nil
}
