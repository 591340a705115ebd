package schema

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// --- Test helpers ---

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache", "schema.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

// --- Open ---

func TestOpen_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	s, err := Open(filepath.Join(dir, "schema.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("cache dir not created: %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestOpen_DriverFailure(t *testing.T) {
	orig := openDB
	defer func() { openDB = orig }()
	openDB = func(string, string) (*sql.DB, error) {
		return nil, errors.New("boom")
	}

	_, err := Open(filepath.Join(t.TempDir(), "schema.db"))
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("Open error = %v, want driver failure", err)
	}
}

// --- Get / MGet / Put ---

func TestGet_Missing(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("Get(missing) reported found")
	}
}

func TestPutAndMGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, map[string]string{"a": "1", "b": "2", "c": "3"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, map[string]string{"a": "10"}); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}

	got, err := s.MGet(ctx, []string{"a", "c", "missing"})
	if err != nil {
		t.Fatalf("MGet: %v", err)
	}
	want := map[string]string{"a": "10", "c": "3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MGet = %v, want %v", got, want)
	}
}

func TestMGet_Empty(t *testing.T) {
	s := newTestStore(t)
	got, err := s.MGet(context.Background(), nil)
	if err != nil {
		t.Fatalf("MGet(nil): %v", err)
	}
	if len(got) != 0 {
		t.Errorf("MGet(nil) = %v, want empty", got)
	}
}

func TestGet_ClosedStoreIsUnavailable(t *testing.T) {
	s := newTestStore(t)
	_ = s.Close()

	_, _, err := s.Get(context.Background(), "a")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Get on closed store error = %v, want ErrUnavailable", err)
	}
}

// --- MasterList ---

func TestMasterList_Missing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.MasterList(context.Background())
	if !errors.Is(err, ErrMasterListMissing) {
		t.Errorf("MasterList error = %v, want ErrMasterListMissing", err)
	}
}

func TestMasterList_Corrupt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Put(ctx, map[string]string{MasterListKey: "not json"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	_, err := s.MasterList(ctx)
	if !errors.Is(err, ErrMasterListMissing) {
		t.Errorf("MasterList(corrupt) error = %v, want ErrMasterListMissing", err)
	}
}

func TestMasterList_Decodes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Put(ctx, map[string]string{MasterListKey: mustJSON(t, []string{"Account", "Contact"})}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.MasterList(ctx)
	if err != nil {
		t.Fatalf("MasterList: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"Account", "Contact"}) {
		t.Errorf("MasterList = %v", got)
	}
}

// --- Fields ---

func TestFields_BatchedWithPartialDecodeFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	account := []Field{{Name: "Name", Type: "string", Createable: true}}
	if err := s.Put(ctx, map[string]string{
		EntityKey("Account"): mustJSON(t, account),
		EntityKey("Broken"):  "{",
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Fields(ctx, []string{"Account", "Broken", "Ghost"})
	if err == nil || !strings.Contains(err.Error(), "Broken") {
		t.Errorf("Fields error = %v, want decode error naming Broken", err)
	}
	if !reflect.DeepEqual(got["Account"], account) {
		t.Errorf("Fields[Account] = %v, want %v", got["Account"], account)
	}
	if _, ok := got["Ghost"]; ok {
		t.Error("Fields should omit entities without an entry")
	}
}

// --- Unavailable ---

func TestUnavailable(t *testing.T) {
	var r Reader = Unavailable{Err: errors.New("dial tcp: refused")}
	if _, err := r.MasterList(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("MasterList error = %v, want ErrUnavailable", err)
	}
	if _, err := r.Fields(context.Background(), []string{"A"}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Fields error = %v, want ErrUnavailable", err)
	}
}

func TestEntityKey(t *testing.T) {
	if got := EntityKey("Account"); got != "entity:Account" {
		t.Errorf("EntityKey = %q", got)
	}
}
