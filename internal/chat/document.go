package chat

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/HendryAvila/storysmith/internal/llm"
)

// MaxDocumentBytes bounds uploaded story documents.
const MaxDocumentBytes = 1 << 20

// ReadDocument reads a story document for TurnWithDocument. Relative
// paths are resolved against root.
func ReadDocument(root, path string) ([]byte, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	if info.Size() > MaxDocumentBytes {
		return nil, fmt.Errorf("document %s is %d bytes, limit is %d", filepath.Base(path), info.Size(), MaxDocumentBytes)
	}
	return os.ReadFile(path)
}

// LastReply returns the newest assistant turn of turns.
func LastReply(turns []llm.Message) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == llm.RoleAssistant {
			return turns[i].Content
		}
	}
	return ""
}
