package main

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// ===== project & account tools =====

func projectToolDefs() []toolDef {
	return []toolDef{
		{
			tool: mcp.NewTool("get_current_user",
				mcp.WithDescription("Return the GitLab account the caller's credential acts as"),
				mcp.WithToolAnnotation(readOnly()),
			),
			handler: handleGetCurrentUser,
		},
		{
			tool: mcp.NewTool("list_projects",
				mcp.WithDescription("List GitLab projects the caller is a member of"),
				mcp.WithString("search", mcp.Description("Filter projects by name")),
				mcp.WithBoolean("owned", mcp.Description("Only projects owned by the caller")),
				mcp.WithNumber("page", mcp.Description("Page number, starting at 1")),
				mcp.WithNumber("per_page", mcp.Description("Results per page, max 100")),
				mcp.WithToolAnnotation(readOnly()),
			),
			handler: handleListProjects,
		},
		{
			tool: mcp.NewTool("get_project",
				mcp.WithDescription("Fetch one project by ID or full path"),
				mcp.WithString("project_id", mcp.Required(), mcp.Description("Numeric ID or URL-encoded path, e.g. gitlab-org/gitlab")),
				mcp.WithToolAnnotation(readOnly()),
			),
			handler: handleGetProject,
		},
	}
}

func handleGetCurrentUser(ctx context.Context, _ mcp.CallToolRequest, ec *execContext) (*mcp.CallToolResult, error) {
	user, resp, err := ec.session.client.Users.CurrentUser(gitlab.WithContext(ctx))
	if err != nil {
		return nil, classifyBackendError(resp, err)
	}
	return jsonResult(map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"name":     user.Name,
		"state":    user.State,
		"web_url":  user.WebURL,
	})
}

func handleListProjects(ctx context.Context, req mcp.CallToolRequest, ec *execContext) (*mcp.CallToolResult, error) {
	opt := &gitlab.ListProjectsOptions{
		ListOptions: listOptions(req),
		Membership:  gitlab.Ptr(true),
	}
	if search := req.GetString("search", ""); search != "" {
		opt.Search = gitlab.Ptr(search)
	}
	if req.GetBool("owned", false) {
		opt.Owned = gitlab.Ptr(true)
	}
	projects, resp, err := ec.session.client.Projects.ListProjects(opt, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classifyBackendError(resp, err)
	}
	items := make([]map[string]any, 0, len(projects))
	for _, project := range projects {
		items = append(items, projectSummary(project))
	}
	return listResult("projects", items, resp)
}

func handleGetProject(ctx context.Context, req mcp.CallToolRequest, ec *execContext) (*mcp.CallToolResult, error) {
	if err := requireArgs(req, "project_id"); err != nil {
		return nil, err
	}
	project, resp, err := ec.session.client.Projects.GetProject(req.GetString("project_id", ""), &gitlab.GetProjectOptions{}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classifyBackendError(resp, err)
	}
	detail := projectSummary(project)
	detail["description"] = project.Description
	detail["star_count"] = project.StarCount
	detail["forks_count"] = project.ForksCount
	detail["archived"] = project.Archived
	return jsonResult(detail)
}

func projectSummary(project *gitlab.Project) map[string]any {
	summary := map[string]any{
		"id":                  project.ID,
		"path_with_namespace": project.PathWithNamespace,
		"name":                project.Name,
		"default_branch":      project.DefaultBranch,
		"web_url":             project.WebURL,
		"visibility":          string(project.Visibility),
	}
	if project.LastActivityAt != nil {
		summary["last_activity_at"] = project.LastActivityAt
	}
	return summary
}
