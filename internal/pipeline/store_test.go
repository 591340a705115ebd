package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/HendryAvila/storysmith/internal/codegen"
	"github.com/HendryAvila/storysmith/internal/engine"
)

func TestFileStore_LoadMissingReturnsNewSession(t *testing.T) {
	s, err := NewFileStore().Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.State != StateEmpty || s.ID == "" {
		t.Errorf("unexpected session: %+v", s)
	}
}

func TestFileStore_SaveThenLoad(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStore()

	s := NewSession()
	s.State = StateFilesGenerated
	s.Story = &Story{Title: "T", Description: "D"}
	s.TicketID = "PROJ-1"
	s.Questions = []engine.Question{{Text: "q", Options: []string{"a"}, Kind: engine.KindSingle}}
	s.Plan = []string{"A.cls"}
	s.Files = []codegen.File{{Name: "A.cls", Content: "class A {}"}}
	s.notify("generate", "1 of %d files failed", 1)

	if err := fs.Save(root, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(SessionPath(root)); err != nil {
		t.Fatalf("session file not written: %v", err)
	}

	got, err := fs.Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ID != s.ID || got.State != StateFilesGenerated || got.TicketID != "PROJ-1" {
		t.Errorf("loaded %+v", got)
	}
	if f, ok := got.File("A.cls"); !ok || f.Content != "class A {}" {
		t.Errorf("file not restored: %+v", got.Files)
	}
	if len(got.Notices) != 1 || got.Notices[0].Message != "1 of 1 files failed" {
		t.Errorf("notices = %+v", got.Notices)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(filepath.Dir(SessionPath(root)))
	if len(entries) != 1 {
		t.Errorf("expected only %s, found %d entries", SessionFile, len(entries))
	}
}

func TestFileStore_LoadCorrupt(t *testing.T) {
	root := t.TempDir()
	path := SessionPath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}

	for _, body := range []string{"{not json", `{"id":"x","state":"teleporting"}`} {
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := NewFileStore().Load(root); err == nil {
			t.Errorf("Load(%s) should fail", body)
		}
	}
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()
	s, _ := m.Load("root")
	s.State = StateStoryLoaded
	if err := m.Save("root", s); err != nil {
		t.Fatal(err)
	}

	got, _ := m.Load("root")
	if got.ID != s.ID || got.State != StateStoryLoaded {
		t.Errorf("got %+v", got)
	}
	other, _ := m.Load("elsewhere")
	if other.ID == s.ID {
		t.Error("roots must not share sessions")
	}
}
