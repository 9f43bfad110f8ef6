package main

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// ===== tool handler registry =====

// toolDef couples one operation's schema with its handler. The full catalog
// is assembled once at startup from the per-area def lists, so a tool that
// exists has a handler by construction.
type toolDef struct {
	tool    mcp.Tool
	handler sessionToolHandler
}

func gatewayToolDefs() []toolDef {
	var defs []toolDef
	defs = append(defs, projectToolDefs()...)
	defs = append(defs, issueToolDefs()...)
	defs = append(defs, mergeRequestToolDefs()...)
	defs = append(defs, repositoryToolDefs()...)
	return defs
}

func registerTools(s *server.MCPServer, binder *requestBinder) []mcp.Tool {
	defs := gatewayToolDefs()
	tools := make([]mcp.Tool, 0, len(defs))
	for _, def := range defs {
		s.AddTool(def.tool, binder.withSession(def.handler))
		tools = append(tools, def.tool)
	}
	return tools
}

// ===== argument helpers =====

// requireArgs verifies every named argument is present before any backend
// call, failing with the first missing field.
func requireArgs(req mcp.CallToolRequest, names ...string) error {
	args := req.GetArguments()
	for _, name := range names {
		value, ok := args[name]
		if !ok || value == nil {
			return apiErrorf(kindInvalidArguments, "missing required argument %q", name)
		}
		if s, isString := value.(string); isString && s == "" {
			return apiErrorf(kindInvalidArguments, "missing required argument %q", name)
		}
	}
	return nil
}

func listOptions(req mcp.CallToolRequest) gitlab.ListOptions {
	perPage := req.GetInt("per_page", 20)
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	page := req.GetInt("page", 1)
	if page < 1 {
		page = 1
	}
	return gitlab.ListOptions{Page: page, PerPage: perPage}
}

// ===== result reshaping =====

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, apiErrorf(kindInternalError, "encode result: %v", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func listResult(key string, items any, resp *gitlab.Response) (*mcp.CallToolResult, error) {
	payload := map[string]any{key: items}
	if resp != nil && resp.Response != nil {
		pagination := map[string]any{
			"page":     resp.CurrentPage,
			"per_page": resp.ItemsPerPage,
		}
		if resp.NextPage > 0 {
			pagination["next_page"] = resp.NextPage
		}
		if resp.TotalItems > 0 {
			pagination["total"] = resp.TotalItems
		}
		payload["pagination"] = pagination
	}
	return jsonResult(payload)
}

func readOnly() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{ReadOnlyHint: mcp.ToBoolPtr(true), IdempotentHint: mcp.ToBoolPtr(true)}
}
