// Package data holds embedded assets (e.g. the default configuration) at repo root data/ for clarity.
package data

import _ "embed"

//go:embed default.yaml
var DefaultConfigYAML []byte
