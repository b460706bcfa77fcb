// Package manifest extracts declared dependency names from manifest files.
//
// # Parsers
//
// Each supported manifest format has a [Parser]. [Parse] picks the parser by
// base file name and returns the deduplicated dependency names in the order
// they are declared:
//
//	deps := manifest.Parse("package.json", content)
//
// Supported manifests:
//
//   - package.json: dependencies, devDependencies, peerDependencies, optionalDependencies
//   - requirements.txt and requirements-*.txt: requirement names
//   - Gemfile: gem declarations
//   - pom.xml: groupId:artifactId of compile and runtime dependencies
//   - pyproject.toml: PEP 621 and Poetry dependency tables
//   - Cargo.toml: dependency tables, honoring renamed packages
//   - go.mod: direct require directives
//
// Parsing is purely syntactic. Versions are ignored and nothing is resolved.
//
// # Workspaces
//
// [ParseWorkspace] reads monorepo configuration (lerna.json,
// pnpm-workspace.yaml, package.json workspaces) and returns the package
// directory globs it declares.
package manifest
