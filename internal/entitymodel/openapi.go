// Package entitymodel exposes runtime helpers for the embedded API contract
// and schema bundles.
package entitymodel

import (
	"net/http"

	apiopenapi "humans/docs/schema/openapi"
)

// OpenAPISpec returns a copy of the embedded OpenAPI document.
func OpenAPISpec() []byte {
	return apiopenapi.Spec()
}

// NewOpenAPIHandler returns an http.Handler serving the embedded OpenAPI
// YAML so clients can fetch the contract from a running server.
func NewOpenAPIHandler() http.Handler {
	spec := OpenAPISpec()
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(spec)
	})
}
