package manifest

import (
	"encoding/json"
	"errors"
	"strings"
)

// packageJSONSections are read in this order.
var packageJSONSections = []string{
	"dependencies",
	"devDependencies",
	"peerDependencies",
	"optionalDependencies",
}

// PackageJSON parses package.json files.
type PackageJSON struct{}

func (p *PackageJSON) Type() string              { return "package.json" }
func (p *PackageJSON) Supports(name string) bool { return strings.EqualFold(name, "package.json") }

func (p *PackageJSON) Parse(content string) ([]string, error) {
	var pkg map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &pkg); err != nil {
		return nil, err
	}

	var d dedupe
	for _, section := range packageJSONSections {
		raw, ok := pkg[section]
		if !ok || string(raw) == "null" {
			continue
		}
		keys, err := objectKeys(raw)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			d.add(k)
		}
	}
	return d.result(), nil
}

// objectKeys returns the keys of a JSON object in document order,
// which map decoding would lose.
func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("expected object")
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.New("expected object key")
		}
		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
