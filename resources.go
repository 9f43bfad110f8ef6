package main

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// ===== resources =====

const (
	userResourceURI     = "gitlab://user"
	projectsResourceURI = "gitlab://projects"
)

func registerResources(s *server.MCPServer, binder *requestBinder) []mcp.Resource {
	userResource := mcp.NewResource(userResourceURI, "Current user",
		mcp.WithResourceDescription("The GitLab account the bound session acts as"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(userResource, binder.withSessionResource(readUserResource))

	projectsResource := mcp.NewResource(projectsResourceURI, "Member projects",
		mcp.WithResourceDescription("Projects the bound session's account is a member of"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(projectsResource, binder.withSessionResource(readProjectsResource))

	return []mcp.Resource{userResource, projectsResource}
}

func readUserResource(ctx context.Context, req mcp.ReadResourceRequest, ec *execContext) ([]mcp.ResourceContents, error) {
	user, resp, err := ec.session.client.Users.CurrentUser(gitlab.WithContext(ctx))
	if err != nil {
		return nil, classifyBackendError(resp, err)
	}
	return jsonResourceContents(req.Params.URI, map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"name":     user.Name,
		"web_url":  user.WebURL,
	})
}

func readProjectsResource(ctx context.Context, req mcp.ReadResourceRequest, ec *execContext) ([]mcp.ResourceContents, error) {
	opt := &gitlab.ListProjectsOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100},
		Membership:  gitlab.Ptr(true),
	}
	projects, resp, err := ec.session.client.Projects.ListProjects(opt, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classifyBackendError(resp, err)
	}
	items := make([]map[string]any, 0, len(projects))
	for _, project := range projects {
		items = append(items, projectSummary(project))
	}
	return jsonResourceContents(req.Params.URI, map[string]any{"projects": items})
}

func jsonResourceContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, apiErrorf(kindInternalError, "encode resource: %v", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: "application/json", Text: string(data)},
	}, nil
}
