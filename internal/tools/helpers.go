// Package tools implements the MCP tool handlers of the story pipeline.
//
// Each tool receives its dependencies via its struct and exposes
// Definition (the mcp.Tool schema) and Handle (the mcp-go handler).
// Pipeline tools load the project session, run one orchestrator
// transition and save the session back.
//
// Problems the user can fix (wrong state, incomplete answers, missing
// credentials) are returned as tool errors. Go errors are reserved for
// infrastructure failures such as an unwritable session file.
package tools

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/HendryAvila/storysmith/internal/config"
	"github.com/HendryAvila/storysmith/internal/pipeline"
	"github.com/mark3labs/mcp-go/mcp"
)

// findProjectRoot walks up from the current working directory looking
// for an existing .storysmith/ directory. If none is found, returns cwd.
// This allows tools to work from any subdirectory of the project.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	return config.FindRoot(dir), nil
}

// sessionMu serializes load, transition and save across tool calls, which
// the stdio server runs on several workers.
var sessionMu sync.Mutex

// loadSession finds the project root and loads its session.
func loadSession(store pipeline.Store) (string, *pipeline.Session, error) {
	root, err := findProjectRoot()
	if err != nil {
		return "", nil, fmt.Errorf("finding project root: %w", err)
	}
	s, err := store.Load(root)
	if err != nil {
		return "", nil, fmt.Errorf("loading session: %w", err)
	}
	return root, s, nil
}

func saveSession(store pipeline.Store, root string, s *pipeline.Session) error {
	if err := store.Save(root, s); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// errorResult converts an orchestrator error into a tool error. These are
// all actionable by the user: wrong state, invalid input, missing
// credentials or an unreachable tracker.
func errorResult(s *pipeline.Session, err error) *mcp.CallToolResult {
	msg := err.Error()
	if errors.Is(err, pipeline.ErrWrongState) {
		msg += "\n\nNext step: " + pipeline.NextStep(s.State)
	}
	return mcp.NewToolResultError(msg)
}
