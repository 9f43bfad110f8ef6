package main

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// ===== merge request tools =====

func mergeRequestToolDefs() []toolDef {
	return []toolDef{
		{
			tool: mcp.NewTool("list_merge_requests",
				mcp.WithDescription("List merge requests in a project"),
				mcp.WithString("project_id", mcp.Required(), mcp.Description("Numeric ID or URL-encoded path")),
				mcp.WithString("state", mcp.Description("Filter by state: opened, closed, locked or merged")),
				mcp.WithString("target_branch", mcp.Description("Filter by target branch")),
				mcp.WithNumber("page", mcp.Description("Page number, starting at 1")),
				mcp.WithNumber("per_page", mcp.Description("Results per page, max 100")),
				mcp.WithToolAnnotation(readOnly()),
			),
			handler: handleListMergeRequests,
		},
		{
			tool: mcp.NewTool("get_merge_request",
				mcp.WithDescription("Fetch one merge request by its project-local IID"),
				mcp.WithString("project_id", mcp.Required(), mcp.Description("Numeric ID or URL-encoded path")),
				mcp.WithNumber("merge_request_iid", mcp.Required(), mcp.Description("Merge request IID within the project")),
				mcp.WithToolAnnotation(readOnly()),
			),
			handler: handleGetMergeRequest,
		},
		{
			tool: mcp.NewTool("create_merge_request_note",
				mcp.WithDescription("Add a comment to a merge request"),
				mcp.WithString("project_id", mcp.Required(), mcp.Description("Numeric ID or URL-encoded path")),
				mcp.WithNumber("merge_request_iid", mcp.Required(), mcp.Description("Merge request IID within the project")),
				mcp.WithString("body", mcp.Required(), mcp.Description("Comment body")),
			),
			handler: handleCreateMergeRequestNote,
		},
	}
}

func handleListMergeRequests(ctx context.Context, req mcp.CallToolRequest, ec *execContext) (*mcp.CallToolResult, error) {
	if err := requireArgs(req, "project_id"); err != nil {
		return nil, err
	}
	opt := &gitlab.ListProjectMergeRequestsOptions{ListOptions: listOptions(req)}
	if state := req.GetString("state", ""); state != "" {
		opt.State = gitlab.Ptr(state)
	}
	if target := req.GetString("target_branch", ""); target != "" {
		opt.TargetBranch = gitlab.Ptr(target)
	}
	mrs, resp, err := ec.session.client.MergeRequests.ListProjectMergeRequests(req.GetString("project_id", ""), opt, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classifyBackendError(resp, err)
	}
	items := make([]map[string]any, 0, len(mrs))
	for _, mr := range mrs {
		items = append(items, map[string]any{
			"iid":           mr.IID,
			"title":         mr.Title,
			"state":         mr.State,
			"source_branch": mr.SourceBranch,
			"target_branch": mr.TargetBranch,
			"web_url":       mr.WebURL,
		})
	}
	return listResult("merge_requests", items, resp)
}

func handleGetMergeRequest(ctx context.Context, req mcp.CallToolRequest, ec *execContext) (*mcp.CallToolResult, error) {
	if err := requireArgs(req, "project_id", "merge_request_iid"); err != nil {
		return nil, err
	}
	mr, resp, err := ec.session.client.MergeRequests.GetMergeRequest(
		req.GetString("project_id", ""),
		req.GetInt("merge_request_iid", 0),
		&gitlab.GetMergeRequestsOptions{},
		gitlab.WithContext(ctx),
	)
	if err != nil {
		return nil, classifyBackendError(resp, err)
	}
	return jsonResult(map[string]any{
		"iid":           mr.IID,
		"title":         mr.Title,
		"description":   mr.Description,
		"state":         mr.State,
		"source_branch": mr.SourceBranch,
		"target_branch": mr.TargetBranch,
		"web_url":       mr.WebURL,
	})
}

func handleCreateMergeRequestNote(ctx context.Context, req mcp.CallToolRequest, ec *execContext) (*mcp.CallToolResult, error) {
	if err := requireArgs(req, "project_id", "merge_request_iid", "body"); err != nil {
		return nil, err
	}
	note, resp, err := ec.session.client.Notes.CreateMergeRequestNote(
		req.GetString("project_id", ""),
		req.GetInt("merge_request_iid", 0),
		&gitlab.CreateMergeRequestNoteOptions{Body: gitlab.Ptr(req.GetString("body", ""))},
		gitlab.WithContext(ctx),
	)
	if err != nil {
		return nil, classifyBackendError(resp, err)
	}
	return jsonResult(noteSummary(note))
}
