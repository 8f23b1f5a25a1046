// Package patterns provides embedded default recognizer definitions.
// YAML files in this directory use the Presidio-compatible recognizer format
// with per-language context words.
package patterns

import _ "embed"

//go:embed pii_el.yaml
var piiELYAML []byte

// PIIELYAML returns the embedded default Greek/EU PII recognizer definitions.
func PIIELYAML() []byte { return piiELYAML }
