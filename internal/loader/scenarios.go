package loader

import (
	"fmt"
	"os"
	"strings"

	"riskgraph/internal/domain"

	"gopkg.in/yaml.v3"
)

// CatalogYAML represents the scenario catalog file structure
type CatalogYAML struct {
	Version string `yaml:"version"`
	// ReplaceDefaults drops the built-in scenarios instead of extending them
	ReplaceDefaults bool           `yaml:"replace_defaults,omitempty"`
	Scenarios       []ScenarioYAML `yaml:"scenarios"`
}

// ScenarioYAML represents a single scenario in YAML format
type ScenarioYAML struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Settings    map[string]string `yaml:"settings"`
}

// LoadScenarios reads a scenario catalog from a YAML file
func LoadScenarios(path string) (*CatalogYAML, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseScenarios(data)
}

// ParseScenarios parses a scenario catalog from YAML bytes
func ParseScenarios(data []byte) (*CatalogYAML, error) {
	var c CatalogYAML
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	seen := make(map[string]bool, len(c.Scenarios))
	for i := range c.Scenarios {
		s := &c.Scenarios[i]
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			return nil, fmt.Errorf("scenario %d: name is required", i)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate scenario %q", s.Name)
		}
		if len(s.Settings) == 0 {
			return nil, fmt.Errorf("scenario %q: settings are required", s.Name)
		}
		seen[s.Name] = true
	}

	return &c, nil
}

// Merge combines the catalog with base. A catalog scenario replaces the
// base scenario of the same name in place; new names are appended.
func (c *CatalogYAML) Merge(base []domain.Scenario) []domain.Scenario {
	var out []domain.Scenario
	if !c.ReplaceDefaults {
		for _, s := range base {
			out = append(out, s.Clone())
		}
	}

	for _, ys := range c.Scenarios {
		s := ys.toDomain()
		replaced := false
		for i := range out {
			if out[i].Name == s.Name {
				out[i] = s
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, s)
		}
	}

	if out == nil {
		out = []domain.Scenario{}
	}
	return out
}

func (ys ScenarioYAML) toDomain() domain.Scenario {
	return domain.Scenario{
		Name:        ys.Name,
		Description: ys.Description,
		Settings:    ys.Settings,
	}.Clone()
}

// ResolveScenarios returns the built-in scenarios merged with the catalog at
// path. An empty path yields the built-ins alone.
func ResolveScenarios(path string) ([]domain.Scenario, error) {
	defaults := domain.DefaultScenarios()
	if path == "" {
		return defaults, nil
	}
	catalog, err := LoadScenarios(path)
	if err != nil {
		return nil, fmt.Errorf("scenario catalog %s: %w", path, err)
	}
	return catalog.Merge(defaults), nil
}

// Lint reports settings that name unknown risk factors or states outside a
// factor's range. Such settings are still applied as written.
func Lint(scenarios []domain.Scenario) []string {
	var warnings []string
	nodes := domain.RiskNodes()
	for _, s := range scenarios {
		for id, state := range s.Settings {
			i := domain.FindNode(nodes, id)
			if i < 0 {
				warnings = append(warnings, fmt.Sprintf("%s: unknown risk factor %q", s.Name, id))
				continue
			}
			if state != "" && !nodes[i].HasState(state) {
				warnings = append(warnings, fmt.Sprintf("%s: %s has no state %q (expected one of %s)",
					s.Name, id, state, strings.Join(nodes[i].States, ", ")))
			}
		}
	}
	return warnings
}

// ExportScenarios renders scenarios as a catalog document
func ExportScenarios(scenarios []domain.Scenario) ([]byte, error) {
	c := CatalogYAML{Version: "1", Scenarios: make([]ScenarioYAML, 0, len(scenarios))}
	for _, s := range scenarios {
		c.Scenarios = append(c.Scenarios, ScenarioYAML{
			Name:        s.Name,
			Description: s.Description,
			Settings:    s.Settings,
		})
	}
	return yaml.Marshal(&c)
}
