package tools

import (
	"context"
	"strings"

	"github.com/HendryAvila/storysmith/internal/pipeline"
	"github.com/mark3labs/mcp-go/mcp"
)

// ResetTool handles the story_reset MCP tool.
type ResetTool struct {
	store pipeline.Store
	orch  *pipeline.Orchestrator
}

// NewResetTool creates a ResetTool with its dependencies.
func NewResetTool(store pipeline.Store, orch *pipeline.Orchestrator) *ResetTool {
	return &ResetTool{store: store, orch: orch}
}

// Definition returns the MCP tool definition for registration.
func (t *ResetTool) Definition() mcp.Tool {
	return mcp.NewTool("story_reset",
		mcp.WithDescription(
			"Rewind the session. mode='full' drops everything including the story; "+
				"mode='reanalyze' keeps the story and discards every artifact derived from it.",
		),
		mcp.WithString("mode",
			mcp.Required(),
			mcp.Description("How far to rewind."),
			mcp.Enum(string(pipeline.ResetFull), string(pipeline.ResetReanalyze)),
		),
	)
}

// Handle processes the story_reset tool call.
func (t *ResetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mode := pipeline.ResetMode(req.GetString("mode", ""))

	sessionMu.Lock()
	defer sessionMu.Unlock()

	root, s, err := loadSession(t.store)
	if err != nil {
		return nil, err
	}

	if err := t.orch.Reset(s, mode); err != nil {
		return errorResult(s, err), nil
	}
	if err := saveSession(t.store, root, s); err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("# Session Reset\n\n")
	sb.WriteString(stateLine(s) + "\n")
	writeNextStep(&sb, s)
	return mcp.NewToolResultText(sb.String()), nil
}
