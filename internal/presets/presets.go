// Package presets loads named question-type settings that the wizard can
// apply in one step.
package presets

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pavelanni/qextractor/internal/model"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Preset is a named set of question-type configs.
type Preset struct {
	Name  string                     `yaml:"name"`
	Title string                     `yaml:"title"`
	Types model.QuestionTypeSettings `yaml:"types"`
}

type file struct {
	Presets []Preset `yaml:"presets"`
}

// Default returns the built-in presets.
func Default() []Preset {
	ps, err := Parse(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("presets: embedded defaults: %v", err))
	}
	return ps
}

// Load reads presets from a YAML file. An empty path yields the defaults.
func Load(path string) ([]Preset, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets %s: %w", path, err)
	}
	ps, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse presets %s: %w", path, err)
	}
	return ps, nil
}

// Parse decodes and checks presets. Every type of every preset must be fully
// configured and names must be unique.
func Parse(data []byte) ([]Preset, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(f.Presets))
	for i := range f.Presets {
		p := &f.Presets[i]
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return nil, fmt.Errorf("preset %d: name is required", i)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("preset %q: duplicate name", p.Name)
		}
		seen[p.Name] = true
		if p.Title == "" {
			p.Title = p.Name
		}
		if len(p.Types) == 0 {
			return nil, fmt.Errorf("preset %q: no question types", p.Name)
		}
		for label, cfg := range p.Types {
			if !cfg.Configured() {
				return nil, fmt.Errorf("preset %q: type %q is missing fields", p.Name, label)
			}
		}
	}
	return f.Presets, nil
}

// Find returns the preset with the given name, ignoring case and
// surrounding space.
func Find(ps []Preset, name string) (Preset, bool) {
	name = strings.TrimSpace(name)
	for _, p := range ps {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Preset{}, false
}
