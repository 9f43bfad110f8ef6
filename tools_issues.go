package main

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// ===== issue tools =====

func issueToolDefs() []toolDef {
	return []toolDef{
		{
			tool: mcp.NewTool("list_issues",
				mcp.WithDescription("List issues in a project"),
				mcp.WithString("project_id", mcp.Required(), mcp.Description("Numeric ID or URL-encoded path")),
				mcp.WithString("state", mcp.Description("Filter by state: opened or closed")),
				mcp.WithString("search", mcp.Description("Filter by title and description")),
				mcp.WithNumber("page", mcp.Description("Page number, starting at 1")),
				mcp.WithNumber("per_page", mcp.Description("Results per page, max 100")),
				mcp.WithToolAnnotation(readOnly()),
			),
			handler: handleListIssues,
		},
		{
			tool: mcp.NewTool("get_issue",
				mcp.WithDescription("Fetch one issue by its project-local IID"),
				mcp.WithString("project_id", mcp.Required(), mcp.Description("Numeric ID or URL-encoded path")),
				mcp.WithNumber("issue_iid", mcp.Required(), mcp.Description("Issue IID within the project")),
				mcp.WithToolAnnotation(readOnly()),
			),
			handler: handleGetIssue,
		},
		{
			tool: mcp.NewTool("create_issue",
				mcp.WithDescription("Open a new issue in a project"),
				mcp.WithString("project_id", mcp.Required(), mcp.Description("Numeric ID or URL-encoded path")),
				mcp.WithString("title", mcp.Required(), mcp.Description("Issue title")),
				mcp.WithString("description", mcp.Description("Issue body, GitLab-flavored markdown")),
				mcp.WithArray("labels", mcp.Description("Labels to attach")),
			),
			handler: handleCreateIssue,
		},
		{
			tool: mcp.NewTool("create_issue_note",
				mcp.WithDescription("Add a comment to an issue"),
				mcp.WithString("project_id", mcp.Required(), mcp.Description("Numeric ID or URL-encoded path")),
				mcp.WithNumber("issue_iid", mcp.Required(), mcp.Description("Issue IID within the project")),
				mcp.WithString("body", mcp.Required(), mcp.Description("Comment body")),
			),
			handler: handleCreateIssueNote,
		},
	}
}

func handleListIssues(ctx context.Context, req mcp.CallToolRequest, ec *execContext) (*mcp.CallToolResult, error) {
	if err := requireArgs(req, "project_id"); err != nil {
		return nil, err
	}
	opt := &gitlab.ListProjectIssuesOptions{ListOptions: listOptions(req)}
	if state := req.GetString("state", ""); state != "" {
		opt.State = gitlab.Ptr(state)
	}
	if search := req.GetString("search", ""); search != "" {
		opt.Search = gitlab.Ptr(search)
	}
	issues, resp, err := ec.session.client.Issues.ListProjectIssues(req.GetString("project_id", ""), opt, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classifyBackendError(resp, err)
	}
	items := make([]map[string]any, 0, len(issues))
	for _, issue := range issues {
		items = append(items, issueSummary(issue))
	}
	return listResult("issues", items, resp)
}

func handleGetIssue(ctx context.Context, req mcp.CallToolRequest, ec *execContext) (*mcp.CallToolResult, error) {
	if err := requireArgs(req, "project_id", "issue_iid"); err != nil {
		return nil, err
	}
	issue, resp, err := ec.session.client.Issues.GetIssue(req.GetString("project_id", ""), req.GetInt("issue_iid", 0), gitlab.WithContext(ctx))
	if err != nil {
		return nil, classifyBackendError(resp, err)
	}
	detail := issueSummary(issue)
	detail["description"] = issue.Description
	return jsonResult(detail)
}

func handleCreateIssue(ctx context.Context, req mcp.CallToolRequest, ec *execContext) (*mcp.CallToolResult, error) {
	if err := requireArgs(req, "project_id", "title"); err != nil {
		return nil, err
	}
	opt := &gitlab.CreateIssueOptions{
		Title: gitlab.Ptr(req.GetString("title", "")),
	}
	if description := req.GetString("description", ""); description != "" {
		opt.Description = gitlab.Ptr(description)
	}
	if labels := req.GetStringSlice("labels", nil); len(labels) > 0 {
		labelOpts := gitlab.LabelOptions(labels)
		opt.Labels = &labelOpts
	}
	issue, resp, err := ec.session.client.Issues.CreateIssue(req.GetString("project_id", ""), opt, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classifyBackendError(resp, err)
	}
	return jsonResult(issueSummary(issue))
}

func handleCreateIssueNote(ctx context.Context, req mcp.CallToolRequest, ec *execContext) (*mcp.CallToolResult, error) {
	if err := requireArgs(req, "project_id", "issue_iid", "body"); err != nil {
		return nil, err
	}
	note, resp, err := ec.session.client.Notes.CreateIssueNote(
		req.GetString("project_id", ""),
		req.GetInt("issue_iid", 0),
		&gitlab.CreateIssueNoteOptions{Body: gitlab.Ptr(req.GetString("body", ""))},
		gitlab.WithContext(ctx),
	)
	if err != nil {
		return nil, classifyBackendError(resp, err)
	}
	return jsonResult(noteSummary(note))
}

func issueSummary(issue *gitlab.Issue) map[string]any {
	summary := map[string]any{
		"iid":     issue.IID,
		"title":   issue.Title,
		"state":   issue.State,
		"labels":  issue.Labels,
		"web_url": issue.WebURL,
	}
	if issue.Author != nil {
		summary["author"] = issue.Author.Username
	}
	if issue.CreatedAt != nil {
		summary["created_at"] = issue.CreatedAt
	}
	return summary
}

func noteSummary(note *gitlab.Note) map[string]any {
	summary := map[string]any{
		"id":     note.ID,
		"body":   note.Body,
		"author": note.Author.Username,
	}
	if note.CreatedAt != nil {
		summary["created_at"] = note.CreatedAt
	}
	return summary
}
