package manifest

import (
	"bufio"
	"regexp"
	"strings"
)

var gemPattern = regexp.MustCompile(`^\s*gem\s+['"]([^'"]+)['"]`)

// Gemfile parses Bundler Gemfiles.
type Gemfile struct{}

func (g *Gemfile) Type() string              { return "Gemfile" }
func (g *Gemfile) Supports(name string) bool { return name == "Gemfile" }

func (g *Gemfile) Parse(content string) ([]string, error) {
	var d dedupe

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		if match := gemPattern.FindStringSubmatch(line); len(match) > 1 {
			d.add(match[1])
		}
	}
	return d.result(), scanner.Err()
}
