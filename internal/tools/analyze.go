package tools

import (
	"context"
	"strings"

	"github.com/HendryAvila/storysmith/internal/pipeline"
	"github.com/mark3labs/mcp-go/mcp"
)

// AnalyzeTool handles the story_analyze MCP tool.
type AnalyzeTool struct {
	store pipeline.Store
	orch  *pipeline.Orchestrator
}

// NewAnalyzeTool creates an AnalyzeTool with its dependencies.
func NewAnalyzeTool(store pipeline.Store, orch *pipeline.Orchestrator) *AnalyzeTool {
	return &AnalyzeTool{store: store, orch: orch}
}

// Definition returns the MCP tool definition for registration.
func (t *AnalyzeTool) Definition() mcp.Tool {
	return mcp.NewTool("story_analyze",
		mcp.WithDescription(
			"Ground the loaded story in the cached schema and triage it. "+
				"A clear story yields a Solution Overview; an ambiguous one yields "+
				"multiple-choice clarification questions to answer with story_clarify. "+
				"Re-running from a later step starts the analysis over. "+
				"Requires: story_load.",
		),
	)
}

// Handle processes the story_analyze tool call.
func (t *AnalyzeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionMu.Lock()
	defer sessionMu.Unlock()

	root, s, err := loadSession(t.store)
	if err != nil {
		return nil, err
	}

	if err := t.orch.Analyze(ctx, s); err != nil {
		return errorResult(s, err), nil
	}
	if err := saveSession(t.store, root, s); err != nil {
		return nil, err
	}

	var sb strings.Builder
	switch s.State {
	case pipeline.StateOverviewReady:
		sb.WriteString("# Solution Overview\n\n")
		sb.WriteString(stateLine(s) + "\n\n")
		sb.WriteString(s.Overview + "\n")
	case pipeline.StateClarifying:
		sb.WriteString("# Clarification Needed\n\n")
		sb.WriteString(stateLine(s) + "\n\n")
		sb.WriteString("The story is ambiguous. Ask the user these questions, then call " +
			"`story_clarify` with one answer list per question, in order.\n\n")
		writeQuestions(&sb, s.Questions)
	default:
		sb.WriteString("# Analysis Incomplete\n\n")
		sb.WriteString(stateLine(s) + "\n")
	}
	writeNotices(&sb, s)
	writeNextStep(&sb, s)
	return mcp.NewToolResultText(sb.String()), nil
}
