package tools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/storysmith/internal/pipeline"
	"github.com/mark3labs/mcp-go/mcp"
)

// PublishTool handles the story_publish MCP tool.
type PublishTool struct {
	store pipeline.Store
	orch  *pipeline.Orchestrator
}

// NewPublishTool creates a PublishTool with its dependencies.
func NewPublishTool(store pipeline.Store, orch *pipeline.Orchestrator) *PublishTool {
	return &PublishTool{store: store, orch: orch}
}

// Definition returns the MCP tool definition for registration.
func (t *PublishTool) Definition() mcp.Tool {
	return mcp.NewTool("story_publish",
		mcp.WithDescription(
			"Append the Solution Overview and, when present, the technical solution to the "+
				"description of the source ticket. Only for stories loaded with a ticket_id. "+
				"Requires: a Solution Overview.",
		),
	)
}

// Handle processes the story_publish tool call.
func (t *PublishTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionMu.Lock()
	defer sessionMu.Unlock()

	root, s, err := loadSession(t.store)
	if err != nil {
		return nil, err
	}

	if err := t.orch.Publish(ctx, s); err != nil {
		return errorResult(s, err), nil
	}
	if err := saveSession(t.store, root, s); err != nil {
		return nil, err
	}

	sections := "the Solution Overview"
	if s.TechnicalSolution != "" {
		sections += " and the technical solution"
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"# Published\n\nAppended %s to the description of %s.\n", sections, s.TicketID,
	)), nil
}
