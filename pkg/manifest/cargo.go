package manifest

import (
	"strings"

	"github.com/BurntSushi/toml"
)

// CargoToml parses Rust Cargo.toml files.
type CargoToml struct{}

func (c *CargoToml) Type() string              { return "Cargo.toml" }
func (c *CargoToml) Supports(name string) bool { return strings.EqualFold(name, "cargo.toml") }

func (c *CargoToml) Parse(content string) ([]string, error) {
	var cargo cargoFile
	if _, err := toml.Decode(content, &cargo); err != nil {
		return nil, err
	}

	var d dedupe
	for _, table := range []map[string]any{
		cargo.Dependencies,
		cargo.DevDependencies,
		cargo.BuildDependencies,
		cargo.Workspace.Dependencies,
	} {
		for _, key := range sortedKeys(table) {
			d.add(crateName(key, table[key]))
		}
	}
	return d.result(), nil
}

// crateName honors `alias = { package = "real-name" }` renames.
func crateName(key string, spec any) string {
	if t, ok := spec.(map[string]any); ok {
		if pkg, ok := t["package"].(string); ok && pkg != "" {
			return pkg
		}
	}
	return key
}

type cargoFile struct {
	Dependencies      map[string]any `toml:"dependencies"`
	DevDependencies   map[string]any `toml:"dev-dependencies"`
	BuildDependencies map[string]any `toml:"build-dependencies"`
	Workspace         struct {
		Dependencies map[string]any `toml:"dependencies"`
	} `toml:"workspace"`
}
