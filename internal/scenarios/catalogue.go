// Package scenarios loads named scenario catalogues from YAML or JSON files
// and resolves scenario names against the catalogue and the built-in presets.
package scenarios

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/kosarica/allocation-service/internal/optimizer"
)

// ErrScenarioNotFound is returned when a name is neither in the catalogue nor a preset.
var ErrScenarioNotFound = errors.New("scenario not found")

// Catalogue is an ordered set of validated scenarios.
type Catalogue struct {
	order     []string
	scenarios map[string]optimizer.Scenario
	source    string
}

// NewCatalogue returns a catalogue that only resolves presets.
func NewCatalogue() *Catalogue {
	return &Catalogue{scenarios: make(map[string]optimizer.Scenario)}
}

var topLevelKeys = map[string]bool{"defaults": true, "scenarios": true}

// Load reads a catalogue file. The file holds an optional "defaults" map
// applied to every scenario without a base, and a "scenarios" list. Each
// scenario may name a preset or an earlier scenario as its base. Unknown
// keys and invalid values fail the load.
func Load(path string) (*Catalogue, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading scenario catalogue: %w", err)
	}

	for key := range v.AllSettings() {
		if !topLevelKeys[key] {
			return nil, fmt.Errorf("scenario catalogue %s: unknown top-level key %q", path, key)
		}
	}

	defaults := optimizer.DefaultScenario()
	if raw := v.GetStringMap("defaults"); len(raw) > 0 {
		d, err := optimizer.ApplyOptions(defaults, raw)
		if err != nil {
			return nil, fmt.Errorf("scenario catalogue %s: defaults: %w", path, err)
		}
		defaults = d
	}

	entries, ok := v.Get("scenarios").([]any)
	if !ok && v.IsSet("scenarios") {
		return nil, fmt.Errorf("scenario catalogue %s: scenarios must be a list", path)
	}

	c := NewCatalogue()
	c.source = path
	for k, entry := range entries {
		raw, ok := toStringMap(entry)
		if !ok {
			return nil, fmt.Errorf("scenario catalogue %s: scenarios[%d] must be a map", path, k)
		}
		if err := c.add(raw, defaults); err != nil {
			return nil, fmt.Errorf("scenario catalogue %s: scenarios[%d]: %w", path, k, err)
		}
	}

	log.Info().Str("path", path).Int("scenarios", len(c.order)).Msg("Loaded scenario catalogue")
	return c, nil
}

func toStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	}
	return nil, false
}

func (c *Catalogue) add(raw map[string]any, defaults optimizer.Scenario) error {
	name, _ := raw["name"].(string)
	if name == "" {
		return errors.New("name is required")
	}
	if _, dup := c.scenarios[name]; dup {
		return fmt.Errorf("duplicate scenario %q", name)
	}

	base := defaults
	if baseName, _ := raw["base"].(string); baseName != "" {
		b, err := c.Get(baseName)
		if err != nil {
			return fmt.Errorf("base %q: %w", baseName, err)
		}
		base = b
	}
	base.Description = ""

	sc, err := optimizer.ApplyOptions(base, raw)
	if err != nil {
		return err
	}
	if err := sc.Validate(); err != nil {
		return err
	}
	c.order = append(c.order, name)
	c.scenarios[name] = sc
	return nil
}

// Get resolves name against the catalogue first and the presets second.
func (c *Catalogue) Get(name string) (optimizer.Scenario, error) {
	if sc, ok := c.scenarios[name]; ok {
		return sc.Clone(), nil
	}
	if sc, ok := optimizer.Preset(name); ok {
		return sc, nil
	}
	return optimizer.Scenario{}, fmt.Errorf("%w: %s", ErrScenarioNotFound, name)
}

// Names returns catalogue scenarios in file order followed by presets not
// shadowed by the catalogue.
func (c *Catalogue) Names() []string {
	names := append([]string(nil), c.order...)
	for _, p := range optimizer.PresetNames() {
		if _, shadowed := c.scenarios[p]; !shadowed {
			names = append(names, p)
		}
	}
	return names
}

// Custom returns only the names defined in the catalogue file.
func (c *Catalogue) Custom() []string { return append([]string(nil), c.order...) }

// Source returns the loaded file path, empty for the preset-only catalogue.
func (c *Catalogue) Source() string { return c.source }

// Resolve returns the named scenarios in the given order, or every
// catalogue and preset scenario when names is empty.
func (c *Catalogue) Resolve(names []string) ([]optimizer.Scenario, error) {
	if len(names) == 0 {
		names = c.Names()
	}
	out := make([]optimizer.Scenario, 0, len(names))
	for _, name := range names {
		sc, err := c.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

type exportFile struct {
	Scenarios []optimizer.Scenario `yaml:"scenarios"`
}

// Export writes the named scenarios as a catalogue file that Load accepts.
func Export(w io.Writer, scenarios []optimizer.Scenario) error {
	sorted := append([]optimizer.Scenario(nil), scenarios...)
	for k := range sorted {
		sorted[k].Base = ""
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(exportFile{Scenarios: sorted}); err != nil {
		return fmt.Errorf("encode scenarios: %w", err)
	}
	return enc.Close()
}

// SortedByName returns scenarios ordered by name.
func SortedByName(scenarios []optimizer.Scenario) []optimizer.Scenario {
	out := append([]optimizer.Scenario(nil), scenarios...)
	sort.SliceStable(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}
