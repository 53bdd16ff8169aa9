package http_test

import (
	"context"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/samirrijal/canvass/api"
)

func loadSpec(t *testing.T) *openapi3.T {
	t.Helper()
	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	spec, err := loader.LoadFromData(api.OpenAPI)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI spec: %v", err)
	}
	return spec
}

// TestOpenAPISpec validates the embedded OpenAPI document.
func TestOpenAPISpec(t *testing.T) {
	spec := loadSpec(t)

	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI spec validation failed: %v", err)
	}

	expectedPaths := []string{
		"/v1/health",
		"/v1/ready",
		"/v1/step-size",
		"/v1/regions/enumerate",
		"/v1/regions/preview",
		"/v1/regions/jobs",
		"/v1/regions/runs",
		"/v1/geocode/locate",
		"/v1/counters",
		"/v1/addresses",
		"/v1/addresses/export",
		"/v1/addresses/{id}",
		"/v1/addresses/{id}/status",
		"/graphql",
	}
	for _, path := range expectedPaths {
		if item := spec.Paths.Find(path); item == nil {
			t.Errorf("expected path %s not found in spec", path)
		}
	}

	expectedSchemas := []string{
		"APIError",
		"Pagination",
		"Coordinate",
		"RegionRequest",
		"EnumerationResult",
		"RegionPreview",
		"EnumerationRun",
		"Counters",
		"Address",
		"StepSize",
	}
	for _, schema := range expectedSchemas {
		if spec.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}

	t.Logf("OpenAPI spec valid: %d paths, %d schemas", len(spec.Paths.Map()), len(spec.Components.Schemas))
}

// TestOpenAPIInfo verifies spec metadata.
func TestOpenAPIInfo(t *testing.T) {
	spec := loadSpec(t)

	if spec.Info.Title != "Canvass API" {
		t.Errorf("expected title 'Canvass API', got %q", spec.Info.Title)
	}
	if spec.Info.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", spec.Info.Version)
	}
	if spec.Info.Description == "" {
		t.Error("expected non-empty description")
	}
	if len(spec.Servers) == 0 {
		t.Fatal("expected at least one server")
	}

	t.Logf("OpenAPI Info: %s v%s @ %s", spec.Info.Title, spec.Info.Version, spec.Servers[0].URL)
}
