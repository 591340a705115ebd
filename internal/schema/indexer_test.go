package schema

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

type stubSource struct {
	names  []string
	fields map[string][]Field
	fail   map[string]bool
}

func (s stubSource) Entities(context.Context) ([]string, error) { return s.names, nil }

func (s stubSource) Describe(_ context.Context, name string) ([]Field, error) {
	if s.fail[name] {
		return nil, errors.New("describe failed")
	}
	return s.fields[name], nil
}

func TestIndexer_Run_WritesEntitiesAndMasterList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src := stubSource{
		names: []string{"Contact", "Account", "Weird__c"},
		fields: map[string][]Field{
			"Account": {{Name: "Name", Type: "string", Createable: true}},
			"Contact": {{Name: "Email", Type: "email", Createable: true}},
		},
		fail: map[string]bool{"Weird__c": true},
	}

	res, err := NewIndexer(s, nil).Run(ctx, src)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Indexed != 2 {
		t.Errorf("Indexed = %d, want 2", res.Indexed)
	}
	if !reflect.DeepEqual(res.Skipped, []string{"Weird__c"}) {
		t.Errorf("Skipped = %v", res.Skipped)
	}

	master, err := s.MasterList(ctx)
	if err != nil {
		t.Fatalf("MasterList: %v", err)
	}
	if !reflect.DeepEqual(master, []string{"Account", "Contact"}) {
		t.Errorf("master = %v, want sorted indexed names", master)
	}

	fields, err := s.Fields(ctx, []string{"Contact"})
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}
	if fields["Contact"][0].Name != "Email" {
		t.Errorf("Contact fields = %v", fields["Contact"])
	}
}

func TestIndexer_Run_SmallBatches(t *testing.T) {
	s := newTestStore(t)
	ix := NewIndexer(s, nil)
	ix.batchSize = 1

	src := stubSource{
		names:  []string{"A", "B", "C"},
		fields: map[string][]Field{"A": {}, "B": {}, "C": {}},
	}
	res, err := ix.Run(context.Background(), src)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Indexed != 3 {
		t.Errorf("Indexed = %d, want 3", res.Indexed)
	}
}

func TestLoadDump_OnlyCreateableEntities(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.json")
	content := `{"entities": [
		{"name": "Account", "createable": true, "fields": [{"name": "Name", "type": "string", "createable": true}]},
		{"name": "AccountHistory", "createable": false, "fields": []}
	]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write dump: %v", err)
	}

	d, err := LoadDump(path)
	if err != nil {
		t.Fatalf("LoadDump: %v", err)
	}

	names, _ := d.Entities(context.Background())
	if !reflect.DeepEqual(names, []string{"Account"}) {
		t.Errorf("Entities = %v, want [Account]", names)
	}

	fields, err := d.Describe(context.Background(), "Account")
	if err != nil || len(fields) != 1 {
		t.Errorf("Describe(Account) = %v, %v", fields, err)
	}
	if _, err := d.Describe(context.Background(), "Nope"); err == nil {
		t.Error("Describe(unknown) should fail")
	}
}

func TestLoadDump_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatalf("write dump: %v", err)
	}
	if _, err := LoadDump(path); err == nil {
		t.Error("LoadDump(invalid) should fail")
	}
}
