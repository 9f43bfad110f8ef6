package main

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ===== prompt templates =====

type promptArgSpec struct {
	name        string
	description string
	required    bool
}

type promptDef struct {
	name        string
	description string
	args        []promptArgSpec
	template    string
}

// The prompt catalog. Placeholders use {{name}}; unresolved optional
// placeholders are stripped from the rendered output rather than left
// literal.
func gatewayPromptDefs() []promptDef {
	return []promptDef{
		{
			name:        "code-review",
			description: "Review a merge request and summarize risks",
			args: []promptArgSpec{
				{name: "project_id", description: "Numeric ID or URL-encoded path", required: true},
				{name: "merge_request_iid", description: "Merge request IID within the project", required: true},
				{name: "focus", description: "Optional aspect to concentrate on, e.g. security"},
			},
			template: "Review merge request {{merge_request_iid}} in project {{project_id}}. " +
				"Use get_merge_request to read the change summary and list the risks you see. {{focus}}",
		},
		{
			name:        "issue-triage",
			description: "Triage an issue and propose next steps",
			args: []promptArgSpec{
				{name: "project_id", description: "Numeric ID or URL-encoded path", required: true},
				{name: "issue_iid", description: "Issue IID within the project", required: true},
				{name: "priority_hint", description: "Optional priority the reporter suggested"},
			},
			template: "Triage issue {{issue_iid}} in project {{project_id}}: fetch it with get_issue, " +
				"classify severity, and propose concrete next steps. {{priority_hint}}",
		},
		{
			name:        "release-notes",
			description: "Draft release notes from recently merged work",
			args: []promptArgSpec{
				{name: "project_id", description: "Numeric ID or URL-encoded path", required: true},
				{name: "version", description: "Version label for the release", required: true},
				{name: "highlights", description: "Optional items to emphasize"},
			},
			template: "Draft release notes for version {{version}} of project {{project_id}}. " +
				"List merged merge requests with list_merge_requests (state merged) and group them by theme. {{highlights}}",
		},
	}
}

// renderPromptTemplate substitutes named placeholders with supplied
// arguments. A missing required argument fails fast naming the field; a
// missing optional argument is stripped.
func renderPromptTemplate(def promptDef, args map[string]string) (string, error) {
	out := def.template
	for _, spec := range def.args {
		value := strings.TrimSpace(args[spec.name])
		if value == "" {
			if spec.required {
				return "", apiErrorf(kindInvalidArguments, "missing required argument %q", spec.name)
			}
			out = strings.ReplaceAll(out, "{{"+spec.name+"}}", "")
			continue
		}
		out = strings.ReplaceAll(out, "{{"+spec.name+"}}", value)
	}
	return strings.TrimSpace(out), nil
}

func registerPrompts(s *server.MCPServer, binder *requestBinder) []mcp.Prompt {
	defs := gatewayPromptDefs()
	prompts := make([]mcp.Prompt, 0, len(defs))
	for _, def := range defs {
		opts := []mcp.PromptOption{mcp.WithPromptDescription(def.description)}
		for _, spec := range def.args {
			argOpts := []mcp.ArgumentOption{mcp.ArgumentDescription(spec.description)}
			if spec.required {
				argOpts = append(argOpts, mcp.RequiredArgument())
			}
			opts = append(opts, mcp.WithArgument(spec.name, argOpts...))
		}
		prompt := mcp.NewPrompt(def.name, opts...)
		s.AddPrompt(prompt, promptHandler(def, binder))
		prompts = append(prompts, prompt)
	}
	return prompts
}

// promptHandler renders one template. Rendering needs no backend call, but
// like every non-discovery method it still requires a bound session.
func promptHandler(def promptDef, binder *requestBinder) server.PromptHandlerFunc {
	return func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		ec, err := binder.bind(ctx)
		if err != nil {
			return nil, err
		}
		defer ec.release()

		text, err := renderPromptTemplate(def, req.Params.Arguments)
		if err != nil {
			return nil, err
		}
		return mcp.NewGetPromptResult(def.description, []mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
		}), nil
	}
}
