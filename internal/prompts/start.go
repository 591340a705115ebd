// Package prompts implements MCP prompt handlers for the story pipeline.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// StartPrompt handles the storysmith-start MCP prompt.
// It guides the AI through the pipeline from a story to generated files.
type StartPrompt struct{}

// NewStartPrompt creates a StartPrompt.
func NewStartPrompt() *StartPrompt {
	return &StartPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StartPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("storysmith-start",
		mcp.WithPromptDescription(
			"Turn a requirement story into a grounded technical design and generated code. "+
				"Walks through loading, analysis, clarification, design, planning and generation.",
		),
		mcp.WithArgument("ticket_id",
			mcp.ArgumentDescription("Ticket to load the story from, e.g. PROJ-123. Leave empty to paste the story."),
		),
	)
}

// Handle processes the storysmith-start prompt request.
func (p *StartPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	ticketID := ""
	if args := req.Params.Arguments; args != nil {
		ticketID = strings.TrimSpace(args["ticket_id"])
	}

	load := "1. Ask me for the requirement story, then run `story_load` with it"
	description := "Start a story"
	if ticketID != "" {
		load = fmt.Sprintf("1. Run `story_load` with ticket_id='%s'", ticketID)
		description = fmt.Sprintf("Start story %s", ticketID)
	}

	return &mcp.GetPromptResult{
		Description: description,
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"I want to turn a requirement story into a technical solution and code.\n\n" +
						"Please:\n" +
						load + "\n" +
						"2. Run `story_analyze` and show me the Solution Overview\n" +
						"3. If clarification questions come back, ask me each one with its options and " +
						"submit all my answers at once with `story_clarify`\n" +
						"4. Once I approve the overview, run `story_design` and show me the technical solution\n" +
						"5. If I want changes, apply them with `story_edit_design`\n" +
						"6. Run `story_plan`, then `story_generate`\n\n" +
						"Show me any notices the tools report. Use `story_status` whenever you are unsure what comes next.",
				),
			},
		},
	}, nil
}
