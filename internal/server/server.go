// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools/prompts/resources that depend on
// abstractions. No business logic lives here, only wiring.
package server

import (
	"fmt"
	"log"

	"github.com/HendryAvila/storysmith/internal/chat"
	"github.com/HendryAvila/storysmith/internal/codegen"
	"github.com/HendryAvila/storysmith/internal/config"
	"github.com/HendryAvila/storysmith/internal/engine"
	"github.com/HendryAvila/storysmith/internal/llm"
	"github.com/HendryAvila/storysmith/internal/logging"
	"github.com/HendryAvila/storysmith/internal/pipeline"
	"github.com/HendryAvila/storysmith/internal/prompts"
	"github.com/HendryAvila/storysmith/internal/resolver"
	"github.com/HendryAvila/storysmith/internal/resources"
	"github.com/HendryAvila/storysmith/internal/schema"
	"github.com/HendryAvila/storysmith/internal/templates"
	"github.com/HendryAvila/storysmith/internal/tools"
	"github.com/HendryAvila/storysmith/internal/tracker"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Components are the wired domain objects shared by the MCP server and
// the CLI.
type Components struct {
	Engine       *engine.Engine
	Resolver     *resolver.Resolver
	Generator    *codegen.Generator
	Orchestrator *pipeline.Orchestrator
	Chat         *chat.Adjunct
	Store        pipeline.Store
}

// Wire builds every domain component from cfg. Relative cache paths are
// resolved against root.
//
// Missing credentials and an unreadable cache do not fail: the affected
// collaborator is replaced by one that reports the problem on use, so the
// rest of the pipeline keeps working. The returned cleanup function closes
// the cache database; it is always non-nil.
func Wire(cfg *config.Config, root string, logger *log.Logger) (*Components, func(), error) {
	logger = logging.OrDiscard(logger)

	renderer, err := templates.NewRenderer()
	if err != nil {
		return nil, noop, fmt.Errorf("creating template renderer: %w", err)
	}

	backend, err := llm.New(cfg.Generation)
	if err != nil {
		logger.Printf("WARNING: generation backend disabled: %v", err)
		backend = llm.Unconfigured{Err: err}
	}

	cleanup := noop
	var cache schema.Reader
	store, err := schema.Open(cfg.Cache.ResolvedPath(root))
	if err != nil {
		logger.Printf("WARNING: schema cache unavailable: %v", err)
		cache = schema.Unavailable{Err: err}
	} else {
		cache = store
		cleanup = func() {
			if err := store.Close(); err != nil {
				logger.Printf("WARNING: schema cache close: %v", err)
			}
		}
	}

	// A nil *tracker.Client must not reach the interfaces below.
	var issues pipeline.Tracker
	var fetcher chat.Fetcher
	if client, err := tracker.New(cfg.Tracker); err != nil {
		logger.Printf("WARNING: ticket tracker disabled: %v", err)
	} else {
		issues, fetcher = client, client
	}

	eng := engine.New(backend, renderer, logger)
	res := resolver.New(eng, cache, cfg.Cache.MaxContextBytes, logger)
	gen := codegen.NewGenerator(eng, cfg.Codegen.Workers, logger)

	return &Components{
		Engine:    eng,
		Resolver:  res,
		Generator: gen,
		Orchestrator: pipeline.NewOrchestrator(pipeline.Deps{
			Resolver: res,
			Engine:   eng,
			Planner:  gen,
			Tracker:  issues,
			Logger:   logger,
		}),
		Chat:  chat.New(eng, renderer, fetcher, logger),
		Store: pipeline.NewFileStore(),
	}, cleanup, nil
}

// New creates and configures the MCP server with all tools, prompts,
// and resources registered.
//
// The returned cleanup function must be called on shutdown (typically via
// defer). It is always non-nil.
func New(cfg *config.Config, root string, logger *log.Logger) (*server.MCPServer, func(), error) {
	c, cleanup, err := Wire(cfg, root, logger)
	if err != nil {
		return nil, noop, err
	}

	s := server.NewMCPServer(
		"storysmith",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register pipeline tools ---

	loadTool := tools.NewLoadTool(c.Store, c.Orchestrator)
	s.AddTool(loadTool.Definition(), loadTool.Handle)

	analyzeTool := tools.NewAnalyzeTool(c.Store, c.Orchestrator)
	s.AddTool(analyzeTool.Definition(), analyzeTool.Handle)

	clarifyTool := tools.NewClarifyTool(c.Store, c.Orchestrator)
	s.AddTool(clarifyTool.Definition(), clarifyTool.Handle)

	designTool := tools.NewDesignTool(c.Store, c.Orchestrator)
	s.AddTool(designTool.Definition(), designTool.Handle)

	editDesignTool := tools.NewEditDesignTool(c.Store, c.Orchestrator)
	s.AddTool(editDesignTool.Definition(), editDesignTool.Handle)

	planTool := tools.NewPlanTool(c.Store, c.Orchestrator)
	s.AddTool(planTool.Definition(), planTool.Handle)

	generateTool := tools.NewGenerateTool(c.Store, c.Orchestrator)
	s.AddTool(generateTool.Definition(), generateTool.Handle)

	statusTool := tools.NewStatusTool(c.Store)
	s.AddTool(statusTool.Definition(), statusTool.Handle)

	resetTool := tools.NewResetTool(c.Store, c.Orchestrator)
	s.AddTool(resetTool.Definition(), resetTool.Handle)

	publishTool := tools.NewPublishTool(c.Store, c.Orchestrator)
	s.AddTool(publishTool.Definition(), publishTool.Handle)

	// --- Register adjunct tools ---
	//
	// These never change the pipeline state.

	chatTool := tools.NewChatTool(c.Store, c.Chat)
	s.AddTool(chatTool.Definition(), chatTool.Handle)

	resolveTool := tools.NewResolveTool(c.Resolver)
	s.AddTool(resolveTool.Definition(), resolveTool.Handle)

	// --- Register prompts ---

	startPrompt := prompts.NewStartPrompt()
	s.AddPrompt(startPrompt.Definition(), startPrompt.Handle)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(c.Store)
	s.AddResource(resourceHandler.StatusResource(), resourceHandler.HandleStatus)

	return s, cleanup, nil
}

// noop is the default cleanup when there is nothing to release.
func noop() {}

func serverInstructions() string {
	return `You have access to Storysmith, a requirement-to-code MCP server for Salesforce-style platforms.

## WHEN TO USE Storysmith

Suggest Storysmith when the user:
- Shares a user story or requirement and asks how to build it
- Mentions a ticket id (e.g. PROJ-123) and wants a design or code for it
- Asks for Apex classes, triggers, Lightning components or Visualforce pages for a business need

## THE PIPELINE

The session moves through fixed steps. Each tool only works in the right step;
story_status always tells you where you are.

1. story_load: load the story text, or a ticket with ticket_id
2. story_analyze: grounds the story in the org schema, then either returns a
   Solution Overview or multiple-choice clarification questions
3. story_clarify: submit answers to ALL pending questions at once. Single-choice
   questions need exactly one option; multiple-choice take zero or more
4. story_design: writes the technical solution with one "File: <name>" line per artifact
5. story_edit_design (optional): replace the technical solution with the user's edit.
   The edit is authoritative and discards the plan and generated files
6. story_plan: orders the declared files so dependencies come first
7. story_generate: generates every planned file

story_reset rewinds (mode=full or mode=reanalyze). story_publish appends the
overview and technical solution to the source ticket.

## RULES

- ALWAYS show the user the overview and technical solution before moving on
- NEVER invent clarification answers: ask the user every question with its options
- Report every notice a tool returns. Notices mean a step degraded (no schema
  grounding, a failed file) but the session is still usable
- Generated code is a draft: remind the user to review it before deploying

## OTHER TOOLS

- story_chat: free-form conversation with the design assistant. Ticket ids in a
  message are fetched automatically; document_path seeds the chat with a story file
- schema_resolve: shows how a text is matched against the cached schema, for debugging grounding`
}
