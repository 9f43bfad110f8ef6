package main

import (
	"context"
	"encoding/base64"

	"github.com/mark3labs/mcp-go/mcp"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// ===== repository & pipeline tools =====

func repositoryToolDefs() []toolDef {
	return []toolDef{
		{
			tool: mcp.NewTool("list_branches",
				mcp.WithDescription("List branches in a project's repository"),
				mcp.WithString("project_id", mcp.Required(), mcp.Description("Numeric ID or URL-encoded path")),
				mcp.WithString("search", mcp.Description("Filter branches by name")),
				mcp.WithNumber("page", mcp.Description("Page number, starting at 1")),
				mcp.WithNumber("per_page", mcp.Description("Results per page, max 100")),
				mcp.WithToolAnnotation(readOnly()),
			),
			handler: handleListBranches,
		},
		{
			tool: mcp.NewTool("list_pipelines",
				mcp.WithDescription("List CI pipelines in a project"),
				mcp.WithString("project_id", mcp.Required(), mcp.Description("Numeric ID or URL-encoded path")),
				mcp.WithString("ref", mcp.Description("Filter by branch or tag name")),
				mcp.WithNumber("page", mcp.Description("Page number, starting at 1")),
				mcp.WithNumber("per_page", mcp.Description("Results per page, max 100")),
				mcp.WithToolAnnotation(readOnly()),
			),
			handler: handleListPipelines,
		},
		{
			tool: mcp.NewTool("get_file_contents",
				mcp.WithDescription("Read one file from a project's repository"),
				mcp.WithString("project_id", mcp.Required(), mcp.Description("Numeric ID or URL-encoded path")),
				mcp.WithString("file_path", mcp.Required(), mcp.Description("Path of the file inside the repository")),
				mcp.WithString("ref", mcp.Description("Branch, tag or commit SHA, defaults to the default branch")),
				mcp.WithToolAnnotation(readOnly()),
			),
			handler: handleGetFileContents,
		},
	}
}

func handleListBranches(ctx context.Context, req mcp.CallToolRequest, ec *execContext) (*mcp.CallToolResult, error) {
	if err := requireArgs(req, "project_id"); err != nil {
		return nil, err
	}
	opt := &gitlab.ListBranchesOptions{ListOptions: listOptions(req)}
	if search := req.GetString("search", ""); search != "" {
		opt.Search = gitlab.Ptr(search)
	}
	branches, resp, err := ec.session.client.Branches.ListBranches(req.GetString("project_id", ""), opt, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classifyBackendError(resp, err)
	}
	items := make([]map[string]any, 0, len(branches))
	for _, branch := range branches {
		entry := map[string]any{
			"name":      branch.Name,
			"default":   branch.Default,
			"protected": branch.Protected,
			"merged":    branch.Merged,
		}
		if branch.Commit != nil {
			entry["commit_sha"] = branch.Commit.ID
		}
		items = append(items, entry)
	}
	return listResult("branches", items, resp)
}

func handleListPipelines(ctx context.Context, req mcp.CallToolRequest, ec *execContext) (*mcp.CallToolResult, error) {
	if err := requireArgs(req, "project_id"); err != nil {
		return nil, err
	}
	opt := &gitlab.ListProjectPipelinesOptions{ListOptions: listOptions(req)}
	if ref := req.GetString("ref", ""); ref != "" {
		opt.Ref = gitlab.Ptr(ref)
	}
	pipelines, resp, err := ec.session.client.Pipelines.ListProjectPipelines(req.GetString("project_id", ""), opt, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classifyBackendError(resp, err)
	}
	items := make([]map[string]any, 0, len(pipelines))
	for _, pipeline := range pipelines {
		items = append(items, map[string]any{
			"id":      pipeline.ID,
			"status":  pipeline.Status,
			"ref":     pipeline.Ref,
			"sha":     pipeline.SHA,
			"web_url": pipeline.WebURL,
		})
	}
	return listResult("pipelines", items, resp)
}

func handleGetFileContents(ctx context.Context, req mcp.CallToolRequest, ec *execContext) (*mcp.CallToolResult, error) {
	if err := requireArgs(req, "project_id", "file_path"); err != nil {
		return nil, err
	}
	pid := req.GetString("project_id", "")
	// The files API requires a ref, so an omitted one resolves to the
	// project's default branch.
	ref := req.GetString("ref", "")
	if ref == "" {
		project, resp, err := ec.session.client.Projects.GetProject(pid, nil, gitlab.WithContext(ctx))
		if err != nil {
			return nil, classifyBackendError(resp, err)
		}
		if project.DefaultBranch == "" {
			return nil, apiErrorf(kindInvalidArguments, "project %q has no default branch, pass \"ref\"", pid)
		}
		ref = project.DefaultBranch
	}
	file, resp, err := ec.session.client.RepositoryFiles.GetFile(
		pid,
		req.GetString("file_path", ""),
		&gitlab.GetFileOptions{Ref: gitlab.Ptr(ref)},
		gitlab.WithContext(ctx),
	)
	if err != nil {
		return nil, classifyBackendError(resp, err)
	}

	content := file.Content
	if file.Encoding == "base64" {
		decoded, decErr := base64.StdEncoding.DecodeString(file.Content)
		if decErr != nil {
			return nil, apiErrorf(kindInternalError, "decode file content for %s: %v", file.FilePath, decErr)
		}
		content = string(decoded)
	}
	return jsonResult(map[string]any{
		"file_path": file.FilePath,
		"ref":       file.Ref,
		"size":      file.Size,
		"content":   content,
	})
}
