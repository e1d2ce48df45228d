// Package descriptor parses module descriptor files into types.Descriptor.
//
// A module directory holds exactly one descriptor file:
//   - module.json: decoded with sonic
//   - module.yaml / module.yml: decoded with goccy/go-yaml
//   - module.toml: decoded with go-toml/v2
//   - module.config.js: evaluated in an isolated goja VM; the value of
//     module.exports is the descriptor
//
// Every format decodes to the same shape. Malformed input, missing required
// fields and ambiguous directories (several descriptor files) are reported as
// parse_error typed errors, never panics.
//
// Example:
//
//	parser := descriptor.NewParser()
//	desc, err := parser.Parse(ctx, "module.yaml", content)
package descriptor
