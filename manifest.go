package main

import (
	"net/http"
	"net/url"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
)

// ===== discovery manifest =====
//
// The manifest is the sessionless discovery surface: it lists every
// registered operation without requiring a credential.

func normalizeToolAnnotations(tool mcp.Tool) map[string]any {
	annotations := make(map[string]any, 5)
	existing := tool.Annotations

	if existing.Title != "" {
		annotations["title"] = existing.Title
	}
	if existing.ReadOnlyHint != nil {
		annotations["readOnlyHint"] = *existing.ReadOnlyHint
	} else {
		annotations["readOnlyHint"] = false
	}
	if existing.DestructiveHint != nil {
		annotations["destructiveHint"] = *existing.DestructiveHint
	} else {
		annotations["destructiveHint"] = false
	}
	if existing.IdempotentHint != nil {
		annotations["idempotentHint"] = *existing.IdempotentHint
	} else {
		annotations["idempotentHint"] = false
	}
	if existing.OpenWorldHint != nil {
		annotations["openWorldHint"] = *existing.OpenWorldHint
	} else {
		annotations["openWorldHint"] = false
	}

	return annotations
}

func toolDescriptor(tool mcp.Tool) map[string]any {
	descriptor := map[string]any{
		"name": tool.Name,
	}
	if tool.Description != "" {
		descriptor["description"] = tool.Description
	}
	if len(tool.RawInputSchema) > 0 {
		descriptor["inputSchema"] = tool.RawInputSchema
	} else if tool.InputSchema.Type != "" || len(tool.InputSchema.Properties) > 0 || len(tool.InputSchema.Required) > 0 {
		descriptor["inputSchema"] = tool.InputSchema
	}
	descriptor["annotations"] = normalizeToolAnnotations(tool)
	return descriptor
}

func buildManifestDocument(
	manifestCfg *ManifestConfig,
	r *http.Request,
	tools []mcp.Tool,
	prompts []mcp.Prompt,
	resources []mcp.Resource,
) map[string]any {
	if manifestCfg == nil {
		manifestCfg = &ManifestConfig{}
	}

	requestScheme := "https"
	if r != nil && r.TLS == nil {
		requestScheme = "http"
	}
	requestHost := ""
	if r != nil {
		requestHost = r.Host
	}
	endpointURL := (&url.URL{Scheme: requestScheme, Host: requestHost, Path: "/mcp"}).String()

	toolEntries := make([]any, 0, len(tools))
	names := make([]string, 0, len(tools))
	byName := make(map[string]mcp.Tool, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
		byName[tool.Name] = tool
	}
	sort.Strings(names)
	for _, name := range names {
		toolEntries = append(toolEntries, toolDescriptor(byName[name]))
	}

	promptEntries := make([]any, 0, len(prompts))
	for _, prompt := range prompts {
		promptEntries = append(promptEntries, prompt)
	}
	resourceEntries := make([]any, 0, len(resources))
	for _, res := range resources {
		resourceEntries = append(resourceEntries, res)
	}

	return map[string]any{
		"name":        manifestCfg.Name,
		"version":     manifestCfg.Version,
		"description": manifestCfg.Description,
		"tools":       toolEntries,
		"prompts":     promptEntries,
		"resources":   resourceEntries,
		"endpoint":    "/mcp",
		"endpointURL": endpointURL,
	}
}
