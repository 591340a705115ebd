// Package resources implements MCP resource handlers for the story
// pipeline.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (storysmith://...) following MCP
// conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/HendryAvila/storysmith/internal/config"
	"github.com/HendryAvila/storysmith/internal/pipeline"
	"github.com/mark3labs/mcp-go/mcp"
)

// StatusURI addresses the session status resource.
const StatusURI = "storysmith://session/status"

// Handler manages session resource endpoints.
type Handler struct {
	store pipeline.Store
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(store pipeline.Store) *Handler {
	return &Handler{store: store}
}

// StatusResource returns the MCP resource definition for session status.
func (h *Handler) StatusResource() mcp.Resource {
	return mcp.NewResource(
		StatusURI,
		"Storysmith Session Status",
		mcp.WithResourceDescription("Current pipeline state and every live artifact of the story session"),
		mcp.WithMIMEType("application/json"),
	)
}

// statusView is the resource payload: the session plus guidance.
type statusView struct {
	*pipeline.Session
	NextStep string `json:"next_step"`
}

// HandleStatus returns the current session as JSON.
func (h *Handler) HandleStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	projectRoot, err := findRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}

	s, err := h.store.Load(projectRoot)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	data, err := json.MarshalIndent(statusView{Session: s, NextStep: pipeline.NextStep(s.State)}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling status: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}

// findRoot walks up from cwd looking for a .storysmith/ directory.
func findRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	return config.FindRoot(dir), nil
}
