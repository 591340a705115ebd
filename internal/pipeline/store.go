package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/HendryAvila/storysmith/internal/config"
)

// SessionFile is the session filename under the project directory.
const SessionFile = "session.json"

// Store defines the persistence interface for sessions.
// Abstracted for testability.
type Store interface {
	Load(projectRoot string) (*Session, error)
	Save(projectRoot string, s *Session) error
}

// FileStore implements Store using the local filesystem.
type FileStore struct{}

// NewFileStore creates a filesystem-backed session store.
func NewFileStore() *FileStore {
	return &FileStore{}
}

// SessionPath returns the absolute path to the session file.
func SessionPath(projectRoot string) string {
	return filepath.Join(config.ProjectDir(projectRoot), SessionFile)
}

// Load reads the session of projectRoot. A missing file yields a new empty
// session, not an error.
func (fs *FileStore) Load(projectRoot string) (*Session, error) {
	data, err := os.ReadFile(SessionPath(projectRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return NewSession(), nil
		}
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", SessionFile, err)
	}
	if StateIndex(s.State) < 0 {
		return nil, fmt.Errorf("parsing %s: unknown state %q", SessionFile, s.State)
	}
	return &s, nil
}

// Save writes the session atomically (temp file, then rename).
func (fs *FileStore) Save(projectRoot string, s *Session) error {
	dir := config.ProjectDir(projectRoot)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	tmp, err := os.CreateTemp(dir, SessionFile+".*")
	if err != nil {
		return fmt.Errorf("creating temp session file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing session: %w", err)
	}
	if err := os.Rename(tmpName, SessionPath(projectRoot)); err != nil {
		return fmt.Errorf("replacing session: %w", err)
	}
	return nil
}

// MemoryStore keeps sessions in memory, keyed by project root. It is safe
// for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

// Load implements Store.
func (m *MemoryStore) Load(projectRoot string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[projectRoot]; ok {
		cp := *s
		return &cp, nil
	}
	return NewSession(), nil
}

// Save implements Store.
func (m *MemoryStore) Save(projectRoot string, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[projectRoot] = &cp
	return nil
}
