package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/storysmith/internal/codegen"
	"github.com/HendryAvila/storysmith/internal/pipeline"
	"github.com/mark3labs/mcp-go/mcp"
)

// DesignTool handles the story_design MCP tool.
type DesignTool struct {
	store pipeline.Store
	orch  *pipeline.Orchestrator
}

// NewDesignTool creates a DesignTool with its dependencies.
func NewDesignTool(store pipeline.Store, orch *pipeline.Orchestrator) *DesignTool {
	return &DesignTool{store: store, orch: orch}
}

// Definition returns the MCP tool definition for registration.
func (t *DesignTool) Definition() mcp.Tool {
	return mcp.NewTool("story_design",
		mcp.WithDescription(
			"Generate the technical solution from the Solution Overview. The schema grounding is "+
				"recomputed first. The design prefers declarative mechanisms and declares one "+
				"'File: <name>' line per deployable artifact. Re-running discards the plan and generated files. "+
				"Requires: a Solution Overview (story_analyze or story_clarify).",
		),
	)
}

// Handle processes the story_design tool call.
func (t *DesignTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionMu.Lock()
	defer sessionMu.Unlock()

	root, s, err := loadSession(t.store)
	if err != nil {
		return nil, err
	}

	if err := t.orch.Design(ctx, s); err != nil {
		return errorResult(s, err), nil
	}
	if err := saveSession(t.store, root, s); err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("# Technical Solution\n\n")
	sb.WriteString(stateLine(s) + "\n\n")
	sb.WriteString(s.TechnicalSolution + "\n")
	if declared := codegen.ExtractFileNames(s.TechnicalSolution); len(declared) > 0 {
		fmt.Fprintf(&sb, "\n**Declared files:** %s\n", strings.Join(declared, ", "))
	}
	writeNotices(&sb, s)
	writeNextStep(&sb, s)
	return mcp.NewToolResultText(sb.String()), nil
}

// EditDesignTool handles the story_edit_design MCP tool.
type EditDesignTool struct {
	store pipeline.Store
	orch  *pipeline.Orchestrator
}

// NewEditDesignTool creates an EditDesignTool with its dependencies.
func NewEditDesignTool(store pipeline.Store, orch *pipeline.Orchestrator) *EditDesignTool {
	return &EditDesignTool{store: store, orch: orch}
}

// Definition returns the MCP tool definition for registration.
func (t *EditDesignTool) Definition() mcp.Tool {
	return mcp.NewTool("story_edit_design",
		mcp.WithDescription(
			"Replace the technical solution with an edited version. The edit is authoritative: "+
				"the file plan is rebuilt from it, and any plan or generated files are discarded. "+
				"Requires: story_design.",
		),
		mcp.WithString("technical_solution",
			mcp.Required(),
			mcp.Description("The full edited technical solution text, including its 'File:' declarations."),
		),
	)
}

// Handle processes the story_edit_design tool call.
func (t *EditDesignTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("technical_solution", "")

	sessionMu.Lock()
	defer sessionMu.Unlock()

	root, s, err := loadSession(t.store)
	if err != nil {
		return nil, err
	}

	summary, err := t.orch.EditTechnicalSolution(s, text)
	if err != nil {
		return errorResult(s, err), nil
	}
	if err := saveSession(t.store, root, s); err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("# Technical Solution Updated\n\n")
	sb.WriteString(stateLine(s) + "\n\n")
	fmt.Fprintf(&sb, "**Changes:** %s\n", summary)
	declared := codegen.ExtractFileNames(s.TechnicalSolution)
	if len(declared) == 0 {
		sb.WriteString("\nThe edited solution declares no files; the plan will be empty.\n")
	} else {
		fmt.Fprintf(&sb, "**Declared files:** %s\n", strings.Join(declared, ", "))
	}
	writeNextStep(&sb, s)
	return mcp.NewToolResultText(sb.String()), nil
}
