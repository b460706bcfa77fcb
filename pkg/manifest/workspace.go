package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// Workspace config file names, in the order the scanner probes them.
const (
	LernaConfig = "lerna.json"
	PnpmConfig  = "pnpm-workspace.yaml"
	NpmConfig   = "package.json"
)

// WorkspaceFiles returns the workspace config file names in probe order.
func WorkspaceFiles() []string {
	return []string{LernaConfig, PnpmConfig, NpmConfig}
}

// DefaultLernaPackages is used when lerna.json does not list packages.
var DefaultLernaPackages = []string{"packages/*"}

// ParseWorkspace returns the package directory globs declared by a monorepo
// config file. Exclusion patterns ("!pkg") are dropped, as are absolute and
// parent-relative patterns.
//
// A package.json without workspaces returns no patterns and no error.
func ParseWorkspace(filename, content string) ([]string, error) {
	var (
		patterns []string
		err      error
	)
	switch path.Base(filename) {
	case LernaConfig:
		patterns, err = parseLerna(content)
	case PnpmConfig:
		patterns, err = parsePnpm(content)
	case NpmConfig:
		patterns, err = parseNpmWorkspaces(content)
	default:
		return nil, fmt.Errorf("not a workspace config: %s", filename)
	}
	if err != nil {
		return nil, err
	}
	return cleanPatterns(patterns), nil
}

func parseLerna(content string) ([]string, error) {
	var cfg struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Packages) == 0 {
		return DefaultLernaPackages, nil
	}
	return cfg.Packages, nil
}

func parsePnpm(content string) ([]string, error) {
	var cfg struct {
		Packages []string `yaml:"packages"`
	}
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, err
	}
	return cfg.Packages, nil
}

// parseNpmWorkspaces accepts both `"workspaces": [...]` and the Yarn form
// `"workspaces": {"packages": [...]}`.
func parseNpmWorkspaces(content string) ([]string, error) {
	var pkg struct {
		Workspaces json.RawMessage `json:"workspaces"`
	}
	if err := json.Unmarshal([]byte(content), &pkg); err != nil {
		return nil, err
	}
	if len(pkg.Workspaces) == 0 || string(pkg.Workspaces) == "null" {
		return nil, nil
	}

	var list []string
	if err := json.Unmarshal(pkg.Workspaces, &list); err == nil {
		return list, nil
	}
	var obj struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(pkg.Workspaces, &obj); err != nil {
		return nil, errors.New("workspaces must be an array or an object with packages")
	}
	return obj.Packages, nil
}

func cleanPatterns(in []string) []string {
	var d dedupe
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "!") || strings.HasPrefix(p, "/") {
			continue
		}
		p = strings.TrimPrefix(p, "./")
		p = strings.TrimSuffix(p, "/")
		if p == "" || p == ".." || strings.HasPrefix(p, "../") {
			continue
		}
		d.add(p)
	}
	return d.result()
}
