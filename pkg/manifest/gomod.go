package manifest

import (
	"golang.org/x/mod/modfile"
)

// GoMod parses go.mod files. Only direct requirements are returned.
type GoMod struct{}

func (g *GoMod) Type() string              { return "go.mod" }
func (g *GoMod) Supports(name string) bool { return name == "go.mod" }

func (g *GoMod) Parse(content string) ([]string, error) {
	f, err := modfile.ParseLax("go.mod", []byte(content), nil)
	if err != nil {
		return nil, err
	}

	var d dedupe
	for _, req := range f.Require {
		if req.Indirect {
			continue
		}
		d.add(req.Mod.Path)
	}
	return d.result(), nil
}
