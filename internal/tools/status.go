package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/storysmith/internal/pipeline"
	"github.com/mark3labs/mcp-go/mcp"
)

// StatusTool handles the story_status MCP tool.
type StatusTool struct {
	store pipeline.Store
}

// NewStatusTool creates a StatusTool with its dependencies.
func NewStatusTool(store pipeline.Store) *StatusTool {
	return &StatusTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *StatusTool) Definition() mcp.Tool {
	return mcp.NewTool("story_status",
		mcp.WithDescription(
			"Show the current pipeline state, which artifacts exist, the last notices and what to do next. "+
				"Set detail=true to include the full text of every artifact.",
		),
		mcp.WithBoolean("detail",
			mcp.Description("Include full artifact texts. Default: false."),
		),
	)
}

// Handle processes the story_status tool call.
func (t *StatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	detail := boolArg(req, "detail", false)

	_, s, err := loadSession(t.store)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("# Storysmith Session\n\n")
	sb.WriteString(stateLine(s) + "\n\n")
	writeProgress(&sb, s)

	if s.Diagnostics != nil {
		fmt.Fprintf(&sb, "\n**Grounding:** %s", s.Diagnostics.Outcome)
		if len(s.Diagnostics.Matched) > 0 {
			fmt.Fprintf(&sb, " (%s)", strings.Join(s.Diagnostics.Matched, ", "))
		}
		sb.WriteString("\n")
	}

	if detail {
		writeDetail(&sb, s)
	} else if s.State == pipeline.StateClarifying {
		sb.WriteString("\n## Pending Questions\n\n")
		writeQuestions(&sb, s.Questions)
	}

	writeNotices(&sb, s)
	writeNextStep(&sb, s)
	return mcp.NewToolResultText(sb.String()), nil
}

// writeProgress renders one line per state, marking the reached ones.
func writeProgress(sb *strings.Builder, s *pipeline.Session) {
	current := pipeline.StateIndex(s.State)
	for i, st := range pipeline.StateOrder {
		marker := "[ ]"
		switch {
		case i == current:
			marker = "[>]"
		case i < current:
			marker = "[x]"
		}
		fmt.Fprintf(sb, "- %s %s\n", marker, st)
	}
}

func writeDetail(sb *strings.Builder, s *pipeline.Session) {
	if s.Story != nil {
		fmt.Fprintf(sb, "\n## Story\n\n%s\n", s.Story.Text())
	}
	if len(s.Questions) > 0 {
		sb.WriteString("\n## Pending Questions\n\n")
		writeQuestions(sb, s.Questions)
	}
	if s.Overview != "" {
		fmt.Fprintf(sb, "\n## Solution Overview\n\n%s\n", s.Overview)
	}
	if s.TechnicalSolution != "" {
		title := "Technical Solution"
		if s.TechnicalEdited {
			title += " (edited)"
		}
		fmt.Fprintf(sb, "\n## %s\n\n%s\n", title, s.TechnicalSolution)
	}
	if len(s.Plan) > 0 {
		sb.WriteString("\n## File Plan\n\n")
		for i, name := range s.Plan {
			fmt.Fprintf(sb, "%d. %s\n", i+1, name)
		}
	}
	if len(s.Files) > 0 {
		sb.WriteString("\n## Generated Files\n\n")
		for _, f := range s.Files {
			writeFile(sb, f)
		}
	}
}
