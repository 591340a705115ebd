package tools

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/storysmith/internal/chat"
	"github.com/HendryAvila/storysmith/internal/pipeline"
	"github.com/mark3labs/mcp-go/mcp"
)

// ChatTool handles the story_chat MCP tool. The transcript lives in the
// session but chat turns never change the pipeline state.
type ChatTool struct {
	store   pipeline.Store
	adjunct *chat.Adjunct
}

// NewChatTool creates a ChatTool with its dependencies.
func NewChatTool(store pipeline.Store, adjunct *chat.Adjunct) *ChatTool {
	return &ChatTool{store: store, adjunct: adjunct}
}

// Definition returns the MCP tool definition for registration.
func (t *ChatTool) Definition() mcp.Tool {
	return mcp.NewTool("story_chat",
		mcp.WithDescription(
			"Talk to the design assistant. Mentioning a ticket id (e.g. PROJ-123) fetches that ticket "+
				"into the conversation. Pass document_path to seed the conversation with a story file (.txt, .md). "+
				"The conversation is kept between calls; set reset=true to start over.",
		),
		mcp.WithString("message",
			mcp.Description("The user's message."),
		),
		mcp.WithString("document_path",
			mcp.Description("Path of a story document, relative to the project root."),
		),
		mcp.WithBoolean("reset",
			mcp.Description("Clear the conversation before this turn. Default: false."),
		),
	)
}

// Handle processes the story_chat tool call.
func (t *ChatTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message := strings.TrimSpace(req.GetString("message", ""))
	docPath := strings.TrimSpace(req.GetString("document_path", ""))
	reset := boolArg(req, "reset", false)

	if message == "" && docPath == "" && !reset {
		return mcp.NewToolResultError("'message' or 'document_path' is required"), nil
	}

	sessionMu.Lock()
	defer sessionMu.Unlock()

	root, s, err := loadSession(t.store)
	if err != nil {
		return nil, err
	}
	if reset {
		s.Transcript = nil
	}

	transcript := s.Transcript
	before := len(transcript)

	if docPath != "" {
		content, err := chat.ReadDocument(root, docPath)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if transcript, err = t.adjunct.TurnWithDocument(ctx, transcript, filepath.Base(docPath), content); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if message != "" {
		if transcript, err = t.adjunct.Turn(ctx, transcript, message); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	s.Transcript = transcript
	if err := saveSession(t.store, root, s); err != nil {
		return nil, err
	}

	if len(transcript) == before {
		return mcp.NewToolResultText("Conversation cleared."), nil
	}
	return mcp.NewToolResultText(chat.LastReply(transcript[before:])), nil
}
