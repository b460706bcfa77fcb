package manifest

import (
	"bufio"
	"regexp"
	"strings"
)

var requirementNameRE = regexp.MustCompile(`^([A-Za-z0-9][\w.-]*)`)

// Requirements parses pip requirements files. Options (-r, -e, --index-url),
// comments and URL requirements are skipped.
type Requirements struct{}

func (r *Requirements) Type() string { return "requirements.txt" }

func (r *Requirements) Supports(name string) bool {
	return name == "requirements.txt" ||
		(strings.HasPrefix(name, "requirements") && strings.HasSuffix(name, ".txt"))
}

func (r *Requirements) Parse(content string) ([]string, error) {
	var d dedupe

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if i := strings.Index(line, " #"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" || line[0] == '#' || line[0] == '-' {
			continue
		}
		if strings.Contains(line, "://") || strings.HasPrefix(line, "git+") {
			continue
		}
		d.add(requirementName(line))
	}
	return d.result(), scanner.Err()
}

// requirementName extracts and normalizes the project name of a PEP 508 string.
func requirementName(spec string) string {
	if m := requirementNameRE.FindStringSubmatch(strings.TrimSpace(spec)); len(m) > 1 {
		return normalizePython(m[1])
	}
	return ""
}

// normalizePython applies PEP 503 name normalization.
func normalizePython(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("_", "-", ".", "-").Replace(name)
}
