package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/HendryAvila/storysmith/internal/schema"
)

type stubExtractor struct {
	names []string
	err   error
	calls int
}

func (s *stubExtractor) ExtractEntities(context.Context, string) ([]string, error) {
	s.calls++
	return s.names, s.err
}

type stubCache struct {
	master      []string
	masterErr   error
	fields      map[string][]schema.Field
	fieldsErr   error
	masterCalls int
	fieldCalls  [][]string
}

func (s *stubCache) MasterList(context.Context) ([]string, error) {
	s.masterCalls++
	return s.master, s.masterErr
}

func (s *stubCache) Fields(_ context.Context, names []string) (map[string][]schema.Field, error) {
	s.fieldCalls = append(s.fieldCalls, names)
	out := make(map[string][]schema.Field)
	for _, n := range names {
		if fs, ok := s.fields[n]; ok {
			out[n] = fs
		}
	}
	return out, s.fieldsErr
}

func salesCache() *stubCache {
	return &stubCache{
		master: []string{"Account", "Contact", "Account__c", "Opportunity"},
		fields: map[string][]schema.Field{
			"Account": {
				{Name: "Name", Type: "string", Createable: true},
				{Name: "AnnualRevenue", Type: "currency", Createable: true},
				{Name: "Id", Type: "id", Createable: false},
			},
			"Contact": {
				{Name: "LastName", Type: "string", Createable: true},
			},
			"Account__c": {
				{Name: "Region__c", Type: "picklist", Createable: true},
			},
		},
	}
}

const salesStory = "As a Sales Manager, I want the primary contact auto-set on an Account when annual revenue exceeds $1,000,000"

// --- KeywordCandidates ---

func TestKeywordCandidates(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", []string{}},
		{"stopwords removed", "The Account. However, When Contact", []string{"Account", "Contact"}},
		{"short capitalized skipped", "An Id or Ok", []string{}},
		{"custom suffix", "Update Invoice_Line__c and lower__c", []string{"Invoice_Line__c", "Update"}},
		{"dedupe and sort", "Zeta Alpha Zeta", []string{"Alpha", "Zeta"}},
		{"no partial words", "Account2 and Primary_Contact", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KeywordCandidates(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("KeywordCandidates(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

// --- MatchEntities ---

func TestMatchEntities_SubstringCaseInsensitive(t *testing.T) {
	master := []string{"Account", "Contact", "Account__c"}
	got := MatchEntities([]string{"acc"}, master)
	want := []string{"Account", "Account__c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MatchEntities(acc) = %v, want %v", got, want)
	}
}

func TestMatchEntities_UnionOfAllCandidates(t *testing.T) {
	master := []string{"Account", "Contact", "Opportunity", "Case"}
	got := MatchEntities([]string{"CONTACT", "opp", "nothing", ""}, master)
	want := []string{"Contact", "Opportunity"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

// Short candidates over-match; this pins the permissive behavior.
func TestMatchEntities_ShortCandidateIsPermissive(t *testing.T) {
	master := []string{"Account", "Contact", "Contract", "Case"}
	got := MatchEntities([]string{"c"}, master)
	if len(got) != 4 {
		t.Errorf("got %v, want every name", got)
	}
}

// --- Resolve ---

func TestResolve_Grounded(t *testing.T) {
	ext := &stubExtractor{names: []string{"Account", "Contact"}}
	cache := salesCache()
	r := New(ext, cache, 0, nil)

	text, d := r.Resolve(context.Background(), salesStory)

	want := "Object: Account\nFields: Name (string), AnnualRevenue (currency)\n\n" +
		"Object: Account__c\nFields: Region__c (picklist)\n\n" +
		"Object: Contact\nFields: LastName (string)"
	if text != want {
		t.Errorf("context =\n%s\nwant\n%s", text, want)
	}
	if d.Outcome != OutcomeGrounded || d.FinalContext != text {
		t.Errorf("diagnostics outcome/final mismatch: %+v", d)
	}
	if !reflect.DeepEqual(d.KeywordSuggested, []string{"Account", "Manager", "Sales"}) {
		t.Errorf("keyword suggestions = %v", d.KeywordSuggested)
	}
	if !reflect.DeepEqual(d.Combined, []string{"Account", "Contact", "Manager", "Sales"}) {
		t.Errorf("combined = %v", d.Combined)
	}
	if !reflect.DeepEqual(d.Matched, []string{"Account", "Account__c", "Contact"}) {
		t.Errorf("matched = %v", d.Matched)
	}
	if len(cache.fieldCalls) != 1 {
		t.Errorf("fields should be read in one batch, got %d calls", len(cache.fieldCalls))
	}
}

func TestResolve_CombinedIsSupersetOfKeywords(t *testing.T) {
	stories := []string{
		salesStory,
		"Create Invoice__c records for each closed Opportunity",
		"the lowercase story mentions nothing",
		"When The If But Only However",
	}
	for _, story := range stories {
		for _, ext := range []*stubExtractor{
			{names: []string{"Widget"}},
			{err: errors.New("model down")},
			{names: nil},
		} {
			r := New(ext, salesCache(), 0, nil)
			_, d := r.Resolve(context.Background(), story)

			combined := make(map[string]bool)
			for _, c := range d.Combined {
				combined[c] = true
			}
			for _, k := range KeywordCandidates(story) {
				if !combined[k] {
					t.Errorf("story %q: keyword %q missing from combined %v", story, k, d.Combined)
				}
			}
		}
	}
}

func TestResolve_ExtractionFailureStillGrounds(t *testing.T) {
	ext := &stubExtractor{err: errors.New("timeout")}
	text, d := New(ext, salesCache(), 0, nil).Resolve(context.Background(), salesStory)

	if d.Outcome != OutcomeGrounded {
		t.Fatalf("outcome = %s", d.Outcome)
	}
	if !strings.Contains(text, "Object: Account") {
		t.Errorf("keyword fallback should still find Account:\n%s", text)
	}
	if d.ExtractionError == "" || len(d.AISuggested) != 0 {
		t.Errorf("diagnostics = %+v", d)
	}
}

func TestResolve_EmptyStorySkipsCache(t *testing.T) {
	ext := &stubExtractor{names: []string{"Account"}}
	cache := salesCache()

	text, d := New(ext, cache, 0, nil).Resolve(context.Background(), "   ")

	if text != NoObjectsIdentified || d.Outcome != OutcomeNoCandidates {
		t.Errorf("got %q / %s", text, d.Outcome)
	}
	if cache.masterCalls != 0 || len(cache.fieldCalls) != 0 {
		t.Error("cache must not be touched for an empty story")
	}
	if ext.calls != 0 {
		t.Error("extractor must not be called for an empty story")
	}
}

func TestResolve_NoCandidates(t *testing.T) {
	cache := salesCache()
	text, _ := New(&stubExtractor{}, cache, 0, nil).Resolve(context.Background(), "all lowercase words here")
	if text != NoObjectsIdentified {
		t.Errorf("got %q", text)
	}
	if cache.masterCalls != 0 {
		t.Error("cache must not be touched without candidates")
	}
}

func TestResolve_CacheStates(t *testing.T) {
	tests := []struct {
		name    string
		cache   schema.Reader
		want    string
		outcome Outcome
	}{
		{"unavailable", schema.Unavailable{}, CacheUnavailable, OutcomeCacheUnavailable},
		{"master missing", &stubCache{masterErr: schema.ErrMasterListMissing}, MasterListMissing, OutcomeMasterListMissing},
		{"unknown error", &stubCache{masterErr: errors.New("disk on fire")}, CacheUnavailable, OutcomeCacheUnavailable},
		{"no match", &stubCache{master: []string{"Case"}}, NoSchemaAvailable, OutcomeNoMatch},
		{"fields unavailable", &stubCache{master: []string{"Account"}, fieldsErr: schema.ErrUnavailable}, CacheUnavailable, OutcomeCacheUnavailable},
		{"matched but no fields cached", &stubCache{master: []string{"Account"}}, NoSchemaAvailable, OutcomeNoMatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, d := New(&stubExtractor{}, tt.cache, 0, nil).Resolve(context.Background(), salesStory)
			if text != tt.want {
				t.Errorf("context = %q, want %q", text, tt.want)
			}
			if d.Outcome != tt.outcome {
				t.Errorf("outcome = %s, want %s", d.Outcome, tt.outcome)
			}
			if d.Outcome.Grounded() {
				t.Error("degraded outcome reported as grounded")
			}
		})
	}
}

func TestResolve_PartialFieldsKeepDecodedEntities(t *testing.T) {
	cache := salesCache()
	cache.fieldsErr = errors.New("decoding fields of Contact: bad json")
	delete(cache.fields, "Contact")

	text, d := New(&stubExtractor{names: []string{"Contact"}}, cache, 0, nil).Resolve(context.Background(), salesStory)

	if d.Outcome != OutcomeGrounded {
		t.Fatalf("outcome = %s", d.Outcome)
	}
	if strings.Contains(text, "Object: Contact") {
		t.Error("undecodable entity must not appear in context")
	}
	if !reflect.DeepEqual(d.Omitted, []string{"Contact"}) {
		t.Errorf("omitted = %v", d.Omitted)
	}
	if d.CacheError == "" {
		t.Error("partial failure should be recorded")
	}
}

func TestResolve_ContextIsBounded(t *testing.T) {
	cache := salesCache()
	first := FormatBlock("Account", cache.fields["Account"])

	r := New(&stubExtractor{names: []string{"Contact"}}, cache, len(first), nil)
	text, d := r.Resolve(context.Background(), salesStory)

	if text != first {
		t.Errorf("context =\n%s\nwant only the first block", text)
	}
	if !reflect.DeepEqual(d.Omitted, []string{"Account__c", "Contact"}) {
		t.Errorf("omitted = %v", d.Omitted)
	}
}

// Every entity in the context exists in the cache.
func TestResolve_ContextNamesOnlyCachedEntities(t *testing.T) {
	cache := salesCache()
	text, _ := New(&stubExtractor{names: []string{"Account", "Lead", "Widget__c"}}, cache, 0, nil).
		Resolve(context.Background(), "Lead and Widget__c on Account")

	known := make(map[string]bool)
	for _, m := range cache.master {
		known[m] = true
	}
	for _, line := range strings.Split(text, "\n") {
		if name, ok := strings.CutPrefix(line, "Object: "); ok && !known[name] {
			t.Errorf("context names unknown entity %q", name)
		}
	}
}

// --- Against the SQLite cache ---

func TestResolve_WithSQLiteStore(t *testing.T) {
	store, err := schema.Open(filepath.Join(t.TempDir(), "schema.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	master, _ := json.Marshal([]string{"Account", "Contact"})
	account, _ := json.Marshal([]schema.Field{{Name: "Name", Type: "string", Createable: true}})
	contact, _ := json.Marshal([]schema.Field{{Name: "Email", Type: "email", Createable: true}})
	err = store.Put(context.Background(), map[string]string{
		schema.MasterListKey:        string(master),
		schema.EntityKey("Account"): string(account),
		schema.EntityKey("Contact"): string(contact),
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	text, d := New(&stubExtractor{names: []string{"contact"}}, store, 0, nil).Resolve(context.Background(), salesStory)

	want := "Object: Account\nFields: Name (string)\n\nObject: Contact\nFields: Email (email)"
	if text != want {
		t.Errorf("context =\n%s\nwant\n%s", text, want)
	}
	if !reflect.DeepEqual(d.MasterList, []string{"Account", "Contact"}) {
		t.Errorf("master list = %v", d.MasterList)
	}
}

// --- FormatBlock ---

func TestFormatBlock_NoCreateableFields(t *testing.T) {
	got := FormatBlock("Log__c", []schema.Field{{Name: "Id", Type: "id"}})
	if got != "Object: Log__c\nFields: " {
		t.Errorf("got %q", got)
	}
}
