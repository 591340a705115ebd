package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/HendryAvila/storysmith/internal/pipeline"
	"github.com/mark3labs/mcp-go/mcp"
)

// ClarifyTool handles the story_clarify MCP tool: it submits the answers
// to every pending clarification question at once.
type ClarifyTool struct {
	store pipeline.Store
	orch  *pipeline.Orchestrator
}

// NewClarifyTool creates a ClarifyTool with its dependencies.
func NewClarifyTool(store pipeline.Store, orch *pipeline.Orchestrator) *ClarifyTool {
	return &ClarifyTool{store: store, orch: orch}
}

// Definition returns the MCP tool definition for registration.
func (t *ClarifyTool) Definition() mcp.Tool {
	return mcp.NewTool("story_clarify",
		mcp.WithDescription(
			"Submit answers to the pending clarification questions and produce the final Solution Overview. "+
				"Every question must be answered: single-choice questions take exactly one option, "+
				"multiple-choice questions take zero or more. A partial answer set is rejected. "+
				"Requires: story_analyze returned questions.",
		),
		mcp.WithString("answers",
			mcp.Required(),
			mcp.Description(
				"JSON array with one array of chosen options per question, in question order. "+
					`Example for two questions: [["Newest"], ["Owner", "Manager"]]. `+
					"Use [] for a multiple-choice question with nothing selected.",
			),
		),
	)
}

// Handle processes the story_clarify tool call.
func (t *ClarifyTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	answers, err := parseAnswers(req.GetString("answers", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sessionMu.Lock()
	defer sessionMu.Unlock()

	root, s, err := loadSession(t.store)
	if err != nil {
		return nil, err
	}

	if err := t.orch.SubmitAnswers(ctx, s, answers); err != nil {
		res := errorResult(s, err)
		if s.State == pipeline.StateClarifying {
			var sb strings.Builder
			sb.WriteString(err.Error() + "\n\nPending questions:\n\n")
			writeQuestions(&sb, s.Questions)
			res = mcp.NewToolResultError(sb.String())
		}
		return res, nil
	}
	if err := saveSession(t.store, root, s); err != nil {
		return nil, err
	}

	var sb strings.Builder
	if s.State == pipeline.StateOverviewReady {
		sb.WriteString("# Solution Overview\n\n")
		sb.WriteString(stateLine(s) + "\n\n")
		sb.WriteString(s.Overview + "\n")
	} else {
		sb.WriteString("# Clarification Not Applied\n\n")
		sb.WriteString(stateLine(s) + "\n\nThe questions are still pending; submit the answers again.\n")
	}
	writeNotices(&sb, s)
	writeNextStep(&sb, s)
	return mcp.NewToolResultText(sb.String()), nil
}

// parseAnswers decodes the answers argument.
func parseAnswers(raw string) ([][]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("'answers' is required")
	}
	var answers [][]string
	if err := json.Unmarshal([]byte(raw), &answers); err != nil {
		return nil, fmt.Errorf(`'answers' must be a JSON array of string arrays, e.g. [["Newest"], []]: %v`, err)
	}
	for i := range answers {
		if answers[i] == nil {
			answers[i] = []string{}
		}
	}
	return answers, nil
}
