package resources

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/HendryAvila/storysmith/internal/pipeline"
	"github.com/mark3labs/mcp-go/mcp"
)

func readStatus(t *testing.T, h *Handler) mcp.TextResourceContents {
	t.Helper()
	req := mcp.ReadResourceRequest{}
	req.Params.URI = StatusURI
	contents, err := h.HandleStatus(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleStatus: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("content is %T", contents[0])
	}
	return tc
}

func TestHandleStatus_SavedSession(t *testing.T) {
	root := t.TempDir()
	store := pipeline.NewFileStore()
	s := pipeline.NewSession()
	s.State = pipeline.StateOverviewReady
	s.Overview = "Set the primary contact."
	if err := store.Save(root, s); err != nil {
		t.Fatal(err)
	}

	sub := filepath.Join(root, "src")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(sub)

	tc := readStatus(t, NewHandler(store))
	if tc.MIMEType != "application/json" || tc.URI != StatusURI {
		t.Errorf("resource = %+v", tc)
	}

	var got struct {
		ID       string `json:"id"`
		State    string `json:"state"`
		Overview string `json:"overview"`
		NextStep string `json:"next_step"`
	}
	if err := json.Unmarshal([]byte(tc.Text), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.ID != s.ID || got.State != "overview_ready" || got.Overview != s.Overview {
		t.Errorf("status = %+v", got)
	}
	if got.NextStep != pipeline.NextStep(pipeline.StateOverviewReady) {
		t.Errorf("next_step = %q", got.NextStep)
	}
}

func TestHandleStatus_CorruptSession(t *testing.T) {
	root := t.TempDir()
	path := pipeline.SessionPath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(root)

	tc := readStatus(t, NewHandler(pipeline.NewFileStore()))
	if tc.MIMEType != "text/plain" {
		t.Errorf("corrupt session should yield an error resource, got %s", tc.MIMEType)
	}
}

func TestStatusResource(t *testing.T) {
	r := NewHandler(pipeline.NewMemoryStore()).StatusResource()
	if r.URI != StatusURI {
		t.Errorf("uri = %s", r.URI)
	}
}
