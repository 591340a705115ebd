package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the storysmith-status MCP prompt.
// It instructs the AI to read and present the current session state.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("storysmith-status",
		mcp.WithPromptDescription(
			"Check the current story session: pipeline state, available artifacts, "+
				"pending questions and what to do next.",
		),
	)
}

// Handle processes the storysmith-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Storysmith Session Status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `story_status` to check my story session.\n\n" +
						"Then:\n" +
						"1. Show me the pipeline progress\n" +
						"2. Point out any notices from the last step (failed generation, missing schema grounding)\n" +
						"3. If questions are pending, list them with their options\n" +
						"4. Tell me exactly what I should do next",
				),
			},
		},
	}, nil
}
