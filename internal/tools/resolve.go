package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/HendryAvila/storysmith/internal/resolver"
	"github.com/mark3labs/mcp-go/mcp"
)

// SchemaResolver resolves arbitrary text against the schema cache.
type SchemaResolver interface {
	Resolve(ctx context.Context, story string) (string, resolver.Diagnostics)
}

// ResolveTool handles the schema_resolve MCP tool. It does not touch the
// session.
type ResolveTool struct {
	resolver SchemaResolver
}

// NewResolveTool creates a ResolveTool with its dependencies.
func NewResolveTool(r SchemaResolver) *ResolveTool {
	return &ResolveTool{resolver: r}
}

// Definition returns the MCP tool definition for registration.
func (t *ResolveTool) Definition() mcp.Tool {
	return mcp.NewTool("schema_resolve",
		mcp.WithDescription(
			"Debug the schema grounding: run entity extraction and the keyword scan on any text, "+
				"match the candidates against the cached schema and return every intermediate set "+
				"together with the final schema context.",
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The story or free text to resolve."),
		),
	)
}

// Handle processes the schema_resolve tool call.
func (t *ResolveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("'text' is required"), nil
	}

	_, diag := t.resolver.Resolve(ctx, text)
	data, err := json.MarshalIndent(diag, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding diagnostics: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
