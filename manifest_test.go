package main

import (
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func TestNormalizeToolAnnotationsDefaultsHintsToFalse(t *testing.T) {
	tool := mcp.Tool{Name: "plain_tool"}
	annotations := normalizeToolAnnotations(tool)

	for _, key := range []string{"readOnlyHint", "destructiveHint", "idempotentHint", "openWorldHint"} {
		value, ok := annotations[key]
		if !ok {
			t.Fatalf("missing %s", key)
		}
		if value != false {
			t.Fatalf("%s = %v, want false", key, value)
		}
	}
	if _, ok := annotations["title"]; ok {
		t.Fatalf("empty title should be omitted")
	}
}

func TestNormalizeToolAnnotationsKeepsExplicitHints(t *testing.T) {
	tool := mcp.NewTool("read_tool",
		mcp.WithDescription("read only"),
		mcp.WithToolAnnotation(readOnly()),
	)
	annotations := normalizeToolAnnotations(tool)
	if annotations["readOnlyHint"] != true {
		t.Fatalf("readOnlyHint = %v, want true", annotations["readOnlyHint"])
	}
	if annotations["idempotentHint"] != true {
		t.Fatalf("idempotentHint = %v, want true", annotations["idempotentHint"])
	}
	if annotations["destructiveHint"] != false {
		t.Fatalf("destructiveHint = %v, want false", annotations["destructiveHint"])
	}
}

func TestBuildManifestDocumentListsCatalogWithoutSession(t *testing.T) {
	defs := gatewayToolDefs()
	tools := make([]mcp.Tool, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, def.tool)
	}

	manifestCfg := &ManifestConfig{Name: "GitLab MCP Gateway", Version: "test"}
	r := httptest.NewRequest("GET", "/.well-known/mcp/manifest.json", nil)
	r.Host = "gateway.example"

	doc := buildManifestDocument(manifestCfg, r, tools, nil, nil)

	if doc["name"] != "GitLab MCP Gateway" {
		t.Fatalf("name = %v", doc["name"])
	}
	if doc["endpoint"] != "/mcp" {
		t.Fatalf("endpoint = %v, want /mcp", doc["endpoint"])
	}
	if doc["endpointURL"] != "http://gateway.example/mcp" {
		t.Fatalf("endpointURL = %v", doc["endpointURL"])
	}

	entries, ok := doc["tools"].([]any)
	if !ok {
		t.Fatalf("tools entry has type %T", doc["tools"])
	}
	if len(entries) != len(defs) {
		t.Fatalf("manifest lists %d tools, want %d", len(entries), len(defs))
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		descriptor, ok := entry.(map[string]any)
		if !ok {
			t.Fatalf("descriptor has type %T", entry)
		}
		name, _ := descriptor["name"].(string)
		names = append(names, name)
		if _, ok := descriptor["annotations"]; !ok {
			t.Fatalf("tool %s missing annotations", name)
		}
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("tools not sorted: %q before %q", names[i-1], names[i])
		}
	}
}
