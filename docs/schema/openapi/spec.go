// Package openapi embeds the OpenAPI description of the humans HTTP API for
// runtime distribution.
package openapi

import _ "embed"

// APISpec contains the OpenAPI 3 document for every route served by humansd.
//
//go:embed humans-api.yaml
var APISpec []byte

// Spec returns a copy of the embedded OpenAPI YAML.
func Spec() []byte {
	return append([]byte(nil), APISpec...)
}
