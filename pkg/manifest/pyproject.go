package manifest

import (
	"slices"

	"github.com/BurntSushi/toml"
)

// Pyproject parses pyproject.toml files, reading both PEP 621 metadata and
// Poetry's tool tables.
type Pyproject struct{}

func (p *Pyproject) Type() string              { return "pyproject.toml" }
func (p *Pyproject) Supports(name string) bool { return name == "pyproject.toml" }

func (p *Pyproject) Parse(content string) ([]string, error) {
	var doc pyprojectFile
	if _, err := toml.Decode(content, &doc); err != nil {
		return nil, err
	}

	var d dedupe
	for _, spec := range doc.Project.Dependencies {
		d.add(requirementName(spec))
	}
	for _, extra := range sortedKeys(doc.Project.OptionalDependencies) {
		for _, spec := range doc.Project.OptionalDependencies[extra] {
			d.add(requirementName(spec))
		}
	}

	poetry := doc.Tool.Poetry
	addPoetry := func(table map[string]any) {
		for _, name := range sortedKeys(table) {
			if name == "python" {
				continue
			}
			d.add(normalizePython(name))
		}
	}
	addPoetry(poetry.Dependencies)
	addPoetry(poetry.DevDependencies)
	for _, group := range sortedKeys(poetry.Group) {
		addPoetry(poetry.Group[group].Dependencies)
	}
	return d.result(), nil
}

type pyprojectFile struct {
	Project struct {
		Dependencies         []string            `toml:"dependencies"`
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Dependencies    map[string]any `toml:"dependencies"`
			DevDependencies map[string]any `toml:"dev-dependencies"`
			Group           map[string]struct {
				Dependencies map[string]any `toml:"dependencies"`
			} `toml:"group"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

// sortedKeys gives TOML tables a stable order since maps have none.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
