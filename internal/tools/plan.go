package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/storysmith/internal/pipeline"
	"github.com/mark3labs/mcp-go/mcp"
)

// PlanTool handles the story_plan MCP tool.
type PlanTool struct {
	store pipeline.Store
	orch  *pipeline.Orchestrator
}

// NewPlanTool creates a PlanTool with its dependencies.
func NewPlanTool(store pipeline.Store, orch *pipeline.Orchestrator) *PlanTool {
	return &PlanTool{store: store, orch: orch}
}

// Definition returns the MCP tool definition for registration.
func (t *PlanTool) Definition() mcp.Tool {
	return mcp.NewTool("story_plan",
		mcp.WithDescription(
			"Build the code-generation plan: scan the technical solution for declared files "+
				"(.cls, .trigger, .html, .js, .css, .page) and order them so dependencies come first. "+
				"Requires: story_design.",
		),
	)
}

// Handle processes the story_plan tool call.
func (t *PlanTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionMu.Lock()
	defer sessionMu.Unlock()

	root, s, err := loadSession(t.store)
	if err != nil {
		return nil, err
	}

	if err := t.orch.BuildPlan(ctx, s); err != nil {
		return errorResult(s, err), nil
	}
	if err := saveSession(t.store, root, s); err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("# File Plan\n\n")
	sb.WriteString(stateLine(s) + "\n\n")
	if len(s.Plan) == 0 {
		sb.WriteString("No files to generate. Edit the technical solution to declare files with `story_edit_design`.\n")
	}
	for i, name := range s.Plan {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, name)
	}
	writeNotices(&sb, s)
	writeNextStep(&sb, s)
	return mcp.NewToolResultText(sb.String()), nil
}
