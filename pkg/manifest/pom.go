package manifest

import (
	"encoding/xml"
	"strings"
)

// POM parses Maven pom.xml files into groupId:artifactId coordinates.
type POM struct{}

func (p *POM) Type() string              { return "pom.xml" }
func (p *POM) Supports(name string) bool { return name == "pom.xml" }

func (p *POM) Parse(content string) ([]string, error) {
	var pom pomProject
	if err := xml.Unmarshal([]byte(content), &pom); err != nil {
		return nil, err
	}

	var d dedupe
	for _, dep := range pom.Dependencies {
		// Skip test and provided scope dependencies
		if dep.Scope == "test" || dep.Scope == "provided" {
			continue
		}
		// Skip dependencies with unresolved Maven properties
		if strings.HasPrefix(dep.GroupID, "${") || strings.HasPrefix(dep.ArtifactID, "${") {
			continue
		}
		if dep.GroupID == "" || dep.ArtifactID == "" {
			continue
		}
		d.add(strings.TrimSpace(dep.GroupID) + ":" + strings.TrimSpace(dep.ArtifactID))
	}
	return d.result(), nil
}

type pomProject struct {
	GroupID      string          `xml:"groupId"`
	ArtifactID   string          `xml:"artifactId"`
	Dependencies []pomDependency `xml:"dependencies>dependency"`
}

type pomDependency struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Scope      string `xml:"scope"`
}
