package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/storysmith/internal/pipeline"
	"github.com/mark3labs/mcp-go/mcp"
)

// LoadTool handles the story_load MCP tool.
type LoadTool struct {
	store pipeline.Store
	orch  *pipeline.Orchestrator
}

// NewLoadTool creates a LoadTool with its dependencies.
func NewLoadTool(store pipeline.Store, orch *pipeline.Orchestrator) *LoadTool {
	return &LoadTool{store: store, orch: orch}
}

// Definition returns the MCP tool definition for registration.
func (t *LoadTool) Definition() mcp.Tool {
	return mcp.NewTool("story_load",
		mcp.WithDescription(
			"Load a requirement story into the session. This is the first step of the pipeline. "+
				"Pass the story text directly, or a ticket_id to fetch the story from the ticket tracker. "+
				"Loading a story discards every artifact derived from the previous one.",
		),
		mcp.WithString("story",
			mcp.Description("The requirement story text, e.g. 'As a Sales Manager, I want ...'."),
		),
		mcp.WithString("title",
			mcp.Description("Optional story title, used together with 'story'."),
		),
		mcp.WithString("ticket_id",
			mcp.Description("Ticket id to fetch the story from (e.g. 'PROJ-123'). Mutually exclusive with 'story'."),
		),
	)
}

// Handle processes the story_load tool call.
func (t *LoadTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	story := req.GetString("story", "")
	title := req.GetString("title", "")
	ticketID := strings.TrimSpace(req.GetString("ticket_id", ""))

	if ticketID != "" && strings.TrimSpace(story) != "" {
		return mcp.NewToolResultError("pass either 'story' or 'ticket_id', not both"), nil
	}
	if ticketID == "" && strings.TrimSpace(story) == "" {
		return mcp.NewToolResultError("'story' or 'ticket_id' is required"), nil
	}

	sessionMu.Lock()
	defer sessionMu.Unlock()

	root, s, err := loadSession(t.store)
	if err != nil {
		return nil, err
	}

	if ticketID != "" {
		err = t.orch.LoadStoryFromTicket(ctx, s, ticketID)
	} else {
		err = t.orch.LoadStory(s, pipeline.Story{Title: title, Description: story})
	}
	if err != nil {
		return errorResult(s, err), nil
	}

	if err := saveSession(t.store, root, s); err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("# Story Loaded\n\n")
	sb.WriteString(stateLine(s) + "\n\n")
	fmt.Fprintf(&sb, "%s\n", s.Story.Text())
	writeNextStep(&sb, s)
	return mcp.NewToolResultText(sb.String()), nil
}
