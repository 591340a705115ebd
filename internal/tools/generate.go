package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/storysmith/internal/codegen"
	"github.com/HendryAvila/storysmith/internal/config"
	"github.com/HendryAvila/storysmith/internal/pipeline"
	"github.com/mark3labs/mcp-go/mcp"
)

// GenerateTool handles the story_generate MCP tool.
type GenerateTool struct {
	store pipeline.Store
	orch  *pipeline.Orchestrator
}

// NewGenerateTool creates a GenerateTool with its dependencies.
func NewGenerateTool(store pipeline.Store, orch *pipeline.Orchestrator) *GenerateTool {
	return &GenerateTool{store: store, orch: orch}
}

// Definition returns the MCP tool definition for registration.
func (t *GenerateTool) Definition() mcp.Tool {
	return mcp.NewTool("story_generate",
		mcp.WithDescription(
			"Generate the source of every planned file, in plan order. A file that fails to generate "+
				"gets an inline error placeholder and does not affect the others. "+
				"Requires: story_plan produced a non-empty plan.",
		),
		mcp.WithBoolean("write_files",
			mcp.Description("Also write the generated files under .storysmith/generated/. Default: false."),
		),
	)
}

// Handle processes the story_generate tool call.
func (t *GenerateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	write := boolArg(req, "write_files", false)

	sessionMu.Lock()
	defer sessionMu.Unlock()

	root, s, err := loadSession(t.store)
	if err != nil {
		return nil, err
	}

	if err := t.orch.GenerateFiles(ctx, s); err != nil {
		return errorResult(s, err), nil
	}
	if err := saveSession(t.store, root, s); err != nil {
		return nil, err
	}

	var written []string
	if write {
		written, err = codegen.WriteFiles(config.GeneratedDir(root), s.Files)
		if err != nil {
			return nil, err
		}
	}

	var sb strings.Builder
	sb.WriteString("# Generated Files\n\n")
	sb.WriteString(stateLine(s) + "\n\n")
	for _, f := range s.Files {
		writeFile(&sb, f)
	}
	if len(written) > 0 {
		sb.WriteString("## Written\n\n")
		for _, p := range written {
			fmt.Fprintf(&sb, "- `%s`\n", p)
		}
	}
	writeNotices(&sb, s)
	writeNextStep(&sb, s)
	return mcp.NewToolResultText(sb.String()), nil
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}
