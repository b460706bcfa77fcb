package manifest

import (
	"path"

	orgerrors "github.com/matzehuels/orgraph/pkg/errors"
)

// Parser extracts dependency names from one manifest format.
type Parser interface {
	// Type returns the canonical manifest file name.
	Type() string

	// Supports reports whether the base file name is handled by this parser.
	Supports(name string) bool

	// Parse returns the declared dependency names.
	Parse(content string) ([]string, error)
}

var parsers = []Parser{
	&PackageJSON{},
	&Requirements{},
	&Gemfile{},
	&POM{},
	&Pyproject{},
	&CargoToml{},
	&GoMod{},
}

// Parsers returns all registered parsers in probe order.
func Parsers() []Parser {
	out := make([]Parser, len(parsers))
	copy(out, parsers)
	return out
}

// Filenames returns the manifest file names probed in every directory.
func Filenames() []string {
	names := make([]string, len(parsers))
	for i, p := range parsers {
		names[i] = p.Type()
	}
	return names
}

// ParserFor returns the parser for filename, which may include directories.
func ParserFor(filename string) (Parser, bool) {
	base := path.Base(filename)
	for _, p := range parsers {
		if p.Supports(base) {
			return p, true
		}
	}
	return nil, false
}

// Parse returns the dependency names declared in content. Unrecognized file
// names and malformed content yield an empty result.
func Parse(filename, content string) []string {
	deps, err := ParseStrict(filename, content)
	if err != nil {
		return []string{}
	}
	return deps
}

// ParseStrict is like [Parse] but reports why content could not be parsed.
// Unrecognized file names are an INVALID_INPUT error and malformed content a
// PARSE_FAILURE.
func ParseStrict(filename, content string) ([]string, error) {
	p, ok := ParserFor(filename)
	if !ok {
		return nil, orgerrors.New(orgerrors.ErrCodeInvalidInput, "unsupported manifest: %s", filename)
	}
	deps, err := p.Parse(content)
	if err != nil {
		return nil, orgerrors.Wrap(orgerrors.ErrCodeParseFailure, err, "parse %s", filename)
	}
	if deps == nil {
		deps = []string{}
	}
	return deps, nil
}

// dedupe keeps the first occurrence of each non-empty name.
type dedupe struct {
	seen  map[string]bool
	names []string
}

func (d *dedupe) add(name string) {
	if name == "" {
		return
	}
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	if !d.seen[name] {
		d.seen[name] = true
		d.names = append(d.names, name)
	}
}

func (d *dedupe) result() []string {
	if d.names == nil {
		return []string{}
	}
	return d.names
}
