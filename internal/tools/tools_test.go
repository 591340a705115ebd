package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HendryAvila/storysmith/internal/chat"
	"github.com/HendryAvila/storysmith/internal/codegen"
	"github.com/HendryAvila/storysmith/internal/config"
	"github.com/HendryAvila/storysmith/internal/engine"
	"github.com/HendryAvila/storysmith/internal/llm"
	"github.com/HendryAvila/storysmith/internal/llm/llmtest"
	"github.com/HendryAvila/storysmith/internal/pipeline"
	"github.com/HendryAvila/storysmith/internal/resolver"
	"github.com/HendryAvila/storysmith/internal/schema"
	"github.com/HendryAvila/storysmith/internal/templates"
	"github.com/mark3labs/mcp-go/mcp"
)

const testStory = "As a Sales Manager, I want the primary contact auto-set on an Account " +
	"when annual revenue exceeds $1,000,000"

// --- Test helpers ---

type memCache struct{}

func (memCache) MasterList(context.Context) ([]string, error) {
	return []string{"Account", "Contact", "Opportunity"}, nil
}

func (memCache) Fields(_ context.Context, names []string) (map[string][]schema.Field, error) {
	out := make(map[string][]schema.Field)
	for _, n := range names {
		out[n] = []schema.Field{{Name: "Name", Type: "string", Createable: true}}
	}
	return out, nil
}

// testEnv is a project directory with every tool wired to a scripted
// backend.
type testEnv struct {
	root  string
	fake  *llmtest.Fake
	store pipeline.Store
	orch  *pipeline.Orchestrator
	res   *resolver.Resolver
	chat  *chat.Adjunct
}

// setupTestProject creates a temp project dir and changes cwd to it.
func setupTestProject(t *testing.T) *testEnv {
	t.Helper()
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	fake := llmtest.New()
	renderer := templates.MustRenderer()
	eng := engine.New(fake, renderer, nil)
	res := resolver.New(eng, memCache{}, 0, nil)
	orch := pipeline.NewOrchestrator(pipeline.Deps{
		Resolver: res,
		Engine:   eng,
		Planner:  codegen.NewGenerator(eng, 2, nil),
	})
	return &testEnv{
		root:  tmpDir,
		fake:  fake,
		store: pipeline.NewFileStore(),
		orch:  orch,
		res:   res,
		chat:  chat.New(eng, renderer, nil, nil),
	}
}

func (e *testEnv) scriptClear() {
	e.fake.On(engine.OpExtractEntities, `{"objects": ["Account", "Contact"]}`)
	e.fake.On(engine.OpTriage, `{"status": "clear", "solution": "Set the newest Contact as primary on the Account."}`)
	e.fake.On(engine.OpTechnicalDesign, "Use a trigger.\nFile: AccountTrigger.trigger\nFile: AccountTriggerHandler.cls")
	e.fake.On(engine.OpOrderFiles, `{"generation_order": ["AccountTriggerHandler.cls", "AccountTrigger.trigger"]}`)
	e.fake.On(engine.OpGenerateFile, "```apex\n// generated\n```")
}

func (e *testEnv) session(t *testing.T) *pipeline.Session {
	t.Helper()
	s, err := e.store.Load(e.root)
	if err != nil {
		t.Fatalf("loading session: %v", err)
	}
	return s
}

type handler interface {
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

func call(t *testing.T, h handler, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := h.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	return result
}

// isErrorResult checks if the result is a tool error.
func isErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

// getResultText extracts the text content from a CallToolResult.
func getResultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func mustContain(t *testing.T, text string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(text, want) {
			t.Errorf("result should contain %q, got:\n%s", want, text)
		}
	}
}

// --- Full pipeline ---

func TestTools_FullPipeline(t *testing.T) {
	env := setupTestProject(t)
	env.scriptClear()

	result := call(t, NewLoadTool(env.store, env.orch), map[string]interface{}{"story": testStory})
	if isErrorResult(result) {
		t.Fatalf("load: %s", getResultText(result))
	}
	mustContain(t, getResultText(result), "# Story Loaded", "story_loaded")

	result = call(t, NewAnalyzeTool(env.store, env.orch), nil)
	mustContain(t, getResultText(result), "# Solution Overview", "newest Contact")

	result = call(t, NewDesignTool(env.store, env.orch), nil)
	mustContain(t, getResultText(result), "# Technical Solution",
		"**Declared files:** AccountTrigger.trigger, AccountTriggerHandler.cls")

	result = call(t, NewPlanTool(env.store, env.orch), nil)
	mustContain(t, getResultText(result), "1. AccountTriggerHandler.cls", "2. AccountTrigger.trigger")

	result = call(t, NewGenerateTool(env.store, env.orch), map[string]interface{}{"write_files": true})
	text := getResultText(result)
	mustContain(t, text, "### AccountTriggerHandler.cls", "```apex\n// generated\n```", "## Written")

	path := filepath.Join(config.GeneratedDir(env.root), "AccountTrigger.trigger")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("generated file not written: %v", err)
	}
	if string(data) != "// generated\n" {
		t.Errorf("file content = %q", data)
	}

	s := env.session(t)
	if s.State != pipeline.StateFilesGenerated || len(s.Files) != 2 {
		t.Errorf("state = %s, files = %d", s.State, len(s.Files))
	}

	result = call(t, NewStatusTool(env.store), map[string]interface{}{"detail": true})
	mustContain(t, getResultText(result),
		"[x] technical_ready", "[>] files_generated", "**Grounding:** grounded (Account, Contact)",
		"## File Plan", "## Generated Files")
}

// --- story_load ---

func TestLoadTool_ArgumentErrors(t *testing.T) {
	env := setupTestProject(t)
	tool := NewLoadTool(env.store, env.orch)

	for _, args := range []map[string]interface{}{
		{},
		{"story": "  "},
		{"story": "text", "ticket_id": "PROJ-1"},
	} {
		if result := call(t, tool, args); !isErrorResult(result) {
			t.Errorf("args %v should fail", args)
		}
	}
}

func TestLoadTool_TicketWithoutTracker(t *testing.T) {
	env := setupTestProject(t)
	result := call(t, NewLoadTool(env.store, env.orch), map[string]interface{}{"ticket_id": "PROJ-1"})
	if !isErrorResult(result) {
		t.Fatal("expected error without tracker")
	}
	mustContain(t, getResultText(result), "not configured")
}

func TestLoadTool_CreatesProjectDir(t *testing.T) {
	env := setupTestProject(t)
	call(t, NewLoadTool(env.store, env.orch), map[string]interface{}{"story": testStory, "title": "Primary contact"})

	if _, err := os.Stat(pipeline.SessionPath(env.root)); err != nil {
		t.Fatalf("session not saved: %v", err)
	}
	if s := env.session(t); s.Story == nil || s.Story.Title != "Primary contact" {
		t.Errorf("story = %+v", s.Story)
	}
}

func TestFindProjectRoot_FromSubdirectory(t *testing.T) {
	env := setupTestProject(t)
	call(t, NewLoadTool(env.store, env.orch), map[string]interface{}{"story": testStory})

	sub := filepath.Join(env.root, "force-app", "main")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(sub)

	root, err := findProjectRoot()
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := filepath.EvalSymlinks(root); got != mustEval(t, env.root) {
		t.Errorf("root = %s, want %s", root, env.root)
	}
}

func mustEval(t *testing.T, path string) string {
	t.Helper()
	p, err := filepath.EvalSymlinks(path)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// --- story_analyze / story_clarify ---

func TestAnalyzeTool_WrongState(t *testing.T) {
	env := setupTestProject(t)
	result := call(t, NewAnalyzeTool(env.store, env.orch), nil)
	if !isErrorResult(result) {
		t.Fatal("analyze without story should fail")
	}
	mustContain(t, getResultText(result), "Next step:", "Load a requirement story")
}

func TestAnalyzeTool_FailureShowsNotice(t *testing.T) {
	env := setupTestProject(t)
	env.fake.On(engine.OpExtractEntities, `{"objects": []}`)
	env.fake.On(engine.OpTriage, "I cannot answer in JSON today.")
	call(t, NewLoadTool(env.store, env.orch), map[string]interface{}{"story": testStory})

	result := call(t, NewAnalyzeTool(env.store, env.orch), nil)
	if isErrorResult(result) {
		t.Fatalf("recoverable failure must not be a tool error: %s", getResultText(result))
	}
	mustContain(t, getResultText(result), "# Analysis Incomplete", "## Notices", "**analyze:**")
}

func TestClarifyTool_Flow(t *testing.T) {
	env := setupTestProject(t)
	env.fake.On(engine.OpExtractEntities, `{"objects": ["Account"]}`)
	env.fake.On(engine.OpTriage, `{"status": "ambiguous", "clarification_questions": [
		{"question": "Which contact becomes primary?", "options": ["Newest", "Oldest"], "type": "single"},
		{"question": "Who is notified?", "options": ["Owner", "Manager"], "type": "multiple"}]}`)
	env.fake.On(engine.OpFinalizeSolution, "Final overview.")

	call(t, NewLoadTool(env.store, env.orch), map[string]interface{}{"story": testStory})
	result := call(t, NewAnalyzeTool(env.store, env.orch), nil)
	mustContain(t, getResultText(result), "# Clarification Needed",
		"1. Which contact becomes primary? _(choose one)_", "   - Oldest", "_(choose any, or none)_")

	tool := NewClarifyTool(env.store, env.orch)

	result = call(t, tool, map[string]interface{}{"answers": "Newest"})
	if !isErrorResult(result) {
		t.Error("non-JSON answers should fail")
	}

	result = call(t, tool, map[string]interface{}{"answers": `[["Newest"]]`})
	if !isErrorResult(result) {
		t.Fatal("subset of answers should fail")
	}
	mustContain(t, getResultText(result), "incomplete clarification answers", "Pending questions:", "Who is notified?")
	if s := env.session(t); s.State != pipeline.StateClarifying || len(s.Questions) != 2 {
		t.Errorf("rejected answers changed the session: %s", s.State)
	}

	result = call(t, tool, map[string]interface{}{"answers": `[["Newest"], null]`})
	if isErrorResult(result) {
		t.Fatalf("complete answers failed: %s", getResultText(result))
	}
	mustContain(t, getResultText(result), "Final overview.")
	if s := env.session(t); s.State != pipeline.StateOverviewReady || len(s.Questions) != 0 {
		t.Errorf("state = %s, questions = %d", s.State, len(s.Questions))
	}
}

func TestParseAnswers(t *testing.T) {
	got, err := parseAnswers(`[["A"], null, []]`)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[1] == nil || len(got[2]) != 0 {
		t.Errorf("got %#v", got)
	}
	if _, err := parseAnswers("  "); err == nil {
		t.Error("empty answers should fail")
	}
}

// --- story_edit_design / story_plan ---

func TestEditDesignTool_ClearsDownstream(t *testing.T) {
	env := setupTestProject(t)
	env.scriptClear()
	call(t, NewLoadTool(env.store, env.orch), map[string]interface{}{"story": testStory})
	call(t, NewAnalyzeTool(env.store, env.orch), nil)
	call(t, NewDesignTool(env.store, env.orch), nil)
	call(t, NewPlanTool(env.store, env.orch), nil)
	call(t, NewGenerateTool(env.store, env.orch), nil)

	result := call(t, NewEditDesignTool(env.store, env.orch), map[string]interface{}{
		"technical_solution": "Use a record-triggered flow instead. No code needed.",
	})
	if isErrorResult(result) {
		t.Fatalf("edit failed: %s", getResultText(result))
	}
	mustContain(t, getResultText(result), "**Changes:**", "declares no files")

	s := env.session(t)
	if s.State != pipeline.StateTechnicalReady || s.Plan != nil || s.Files != nil || !s.TechnicalEdited {
		t.Errorf("session after edit: state=%s plan=%v files=%d", s.State, s.Plan, len(s.Files))
	}

	result = call(t, NewPlanTool(env.store, env.orch), nil)
	mustContain(t, getResultText(result), "No files to generate", "No file declarations")
	if s := env.session(t); s.State != pipeline.StateTechnicalReady {
		t.Errorf("empty plan must stay technical_ready, got %s", s.State)
	}
}

func TestEditDesignTool_WaitsForRunningGenerate(t *testing.T) {
	env := setupTestProject(t)
	env.scriptClear()
	call(t, NewLoadTool(env.store, env.orch), map[string]interface{}{"story": testStory})
	call(t, NewAnalyzeTool(env.store, env.orch), nil)
	call(t, NewDesignTool(env.store, env.orch), nil)
	call(t, NewPlanTool(env.store, env.orch), nil)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	env.fake.Respond = func(req llm.Request) (string, error) {
		once.Do(func() { close(started) })
		<-release
		return "// generated", nil
	}

	ctx := context.Background()
	genDone := make(chan error, 1)
	go func() {
		_, err := NewGenerateTool(env.store, env.orch).Handle(ctx, mcp.CallToolRequest{})
		genDone <- err
	}()
	<-started

	editReq := mcp.CallToolRequest{}
	editReq.Params.Arguments = map[string]interface{}{
		"technical_solution": "Edited by the user.\nFile: OnlyThis.cls",
	}
	editDone := make(chan error, 1)
	go func() {
		_, err := NewEditDesignTool(env.store, env.orch).Handle(ctx, editReq)
		editDone <- err
	}()

	select {
	case <-editDone:
		t.Fatal("edit completed while generation still held the session")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	if err := <-genDone; err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := <-editDone; err != nil {
		t.Fatalf("edit: %v", err)
	}

	s := env.session(t)
	if s.State != pipeline.StateTechnicalReady {
		t.Errorf("state = %s, want technical_ready", s.State)
	}
	if !strings.Contains(s.TechnicalSolution, "OnlyThis.cls") {
		t.Errorf("user edit lost: %q", s.TechnicalSolution)
	}
	if s.Plan != nil || s.Files != nil {
		t.Errorf("plan and files must stay cleared: plan=%v files=%d", s.Plan, len(s.Files))
	}
}

func TestEditDesignTool_WrongState(t *testing.T) {
	env := setupTestProject(t)
	result := call(t, NewEditDesignTool(env.store, env.orch), map[string]interface{}{"technical_solution": "x"})
	if !isErrorResult(result) {
		t.Error("edit before design should fail")
	}
}

func TestGenerateTool_WrongState(t *testing.T) {
	env := setupTestProject(t)
	if result := call(t, NewGenerateTool(env.store, env.orch), nil); !isErrorResult(result) {
		t.Error("generate without plan should fail")
	}
}

// --- story_reset / story_publish ---

func TestResetTool(t *testing.T) {
	env := setupTestProject(t)
	env.scriptClear()
	call(t, NewLoadTool(env.store, env.orch), map[string]interface{}{"story": testStory})
	call(t, NewAnalyzeTool(env.store, env.orch), nil)
	tool := NewResetTool(env.store, env.orch)

	if result := call(t, tool, map[string]interface{}{"mode": "sideways"}); !isErrorResult(result) {
		t.Error("unknown mode should fail")
	}

	call(t, tool, map[string]interface{}{"mode": "reanalyze"})
	if s := env.session(t); s.State != pipeline.StateStoryLoaded || s.Overview != "" || s.Story == nil {
		t.Errorf("reanalyze: %+v", s)
	}

	call(t, tool, map[string]interface{}{"mode": "full"})
	if s := env.session(t); s.State != pipeline.StateEmpty || s.Story != nil {
		t.Errorf("full: %+v", s)
	}
}

func TestPublishTool_NoTicket(t *testing.T) {
	env := setupTestProject(t)
	env.scriptClear()
	call(t, NewLoadTool(env.store, env.orch), map[string]interface{}{"story": testStory})
	call(t, NewAnalyzeTool(env.store, env.orch), nil)

	result := call(t, NewPublishTool(env.store, env.orch), nil)
	if !isErrorResult(result) {
		t.Fatal("publish without ticket should fail")
	}
	mustContain(t, getResultText(result), "no source ticket")
}

// --- story_chat ---

func TestChatTool(t *testing.T) {
	env := setupTestProject(t)
	env.fake.On(engine.OpChat, "First reply.").On(engine.OpChat, "Second reply.")
	tool := NewChatTool(env.store, env.chat)

	if result := call(t, tool, nil); !isErrorResult(result) {
		t.Error("empty chat call should fail")
	}

	result := call(t, tool, map[string]interface{}{"message": "Hello"})
	if got := getResultText(result); got != "First reply." {
		t.Errorf("reply = %q", got)
	}

	if err := os.WriteFile(filepath.Join(env.root, "story.md"), []byte("As a user I want X."), 0o644); err != nil {
		t.Fatal(err)
	}
	result = call(t, tool, map[string]interface{}{"document_path": "story.md"})
	if got := getResultText(result); got != "Second reply." {
		t.Errorf("reply = %q", got)
	}

	s := env.session(t)
	if len(s.Transcript) != 5 {
		t.Fatalf("transcript has %d turns, want 5", len(s.Transcript))
	}
	if s.State != pipeline.StateEmpty {
		t.Errorf("chat must not move the pipeline, state = %s", s.State)
	}

	result = call(t, tool, map[string]interface{}{"reset": true})
	if got := getResultText(result); got != "Conversation cleared." {
		t.Errorf("reply = %q", got)
	}
	if s := env.session(t); len(s.Transcript) != 0 {
		t.Errorf("transcript not cleared: %d", len(s.Transcript))
	}
}

func TestChatTool_MissingDocument(t *testing.T) {
	env := setupTestProject(t)
	result := call(t, NewChatTool(env.store, env.chat), map[string]interface{}{"document_path": "nope.md"})
	if !isErrorResult(result) {
		t.Error("missing document should fail")
	}
}

// --- schema_resolve ---

func TestResolveTool(t *testing.T) {
	env := setupTestProject(t)
	env.fake.On(engine.OpExtractEntities, `{"objects": ["Contact"]}`)
	tool := NewResolveTool(env.res)

	if result := call(t, tool, map[string]interface{}{"text": " "}); !isErrorResult(result) {
		t.Error("blank text should fail")
	}

	result := call(t, tool, map[string]interface{}{"text": testStory})
	var diag resolver.Diagnostics
	if err := json.Unmarshal([]byte(getResultText(result)), &diag); err != nil {
		t.Fatalf("result is not diagnostics JSON: %v", err)
	}
	if diag.Outcome != resolver.OutcomeGrounded {
		t.Errorf("outcome = %s", diag.Outcome)
	}
	if strings.Join(diag.Matched, ",") != "Account,Contact" {
		t.Errorf("matched = %v", diag.Matched)
	}
	if _, err := os.Stat(pipeline.SessionPath(env.root)); !os.IsNotExist(err) {
		t.Error("schema_resolve must not create a session")
	}
}

// --- Definitions ---

func TestDefinitions_Names(t *testing.T) {
	env := setupTestProject(t)
	defs := []mcp.Tool{
		NewLoadTool(env.store, env.orch).Definition(),
		NewAnalyzeTool(env.store, env.orch).Definition(),
		NewClarifyTool(env.store, env.orch).Definition(),
		NewDesignTool(env.store, env.orch).Definition(),
		NewEditDesignTool(env.store, env.orch).Definition(),
		NewPlanTool(env.store, env.orch).Definition(),
		NewGenerateTool(env.store, env.orch).Definition(),
		NewStatusTool(env.store).Definition(),
		NewResetTool(env.store, env.orch).Definition(),
		NewPublishTool(env.store, env.orch).Definition(),
		NewChatTool(env.store, env.chat).Definition(),
		NewResolveTool(env.res).Definition(),
	}
	want := []string{
		"story_load", "story_analyze", "story_clarify", "story_design", "story_edit_design",
		"story_plan", "story_generate", "story_status", "story_reset", "story_publish",
		"story_chat", "schema_resolve",
	}
	for i, d := range defs {
		if d.Name != want[i] {
			t.Errorf("tool %d name = %q, want %q", i, d.Name, want[i])
		}
		if d.Description == "" {
			t.Errorf("%s has no description", d.Name)
		}
	}
}

func TestCodeFence(t *testing.T) {
	tests := map[string]string{
		"A.cls":     "apex",
		"A.trigger": "apex",
		"c.js":      "javascript",
		"c.html":    "html",
		"P.page":    "html",
		"c.css":     "css",
		"README":    "",
	}
	for name, want := range tests {
		if got := codeFence(name); got != want {
			t.Errorf("codeFence(%s) = %q, want %q", name, got, want)
		}
	}
}
