// Package engine wraps a generation backend behind the fixed set of
// pipeline operations.
//
// Every operation is one prompt/response exchange with a declared output
// shape. On failure an operation returns its safe default alongside the
// error, so callers can always continue: extraction yields an empty list,
// ordering yields the input order, text operations yield "".
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/HendryAvila/storysmith/internal/llm"
	"github.com/HendryAvila/storysmith/internal/logging"
	"github.com/HendryAvila/storysmith/internal/templates"
)

// Operation names, used as llm.Request.Op.
const (
	OpExtractEntities  = "extract_entities"
	OpTriage           = "triage"
	OpFinalizeSolution = "finalize_solution"
	OpTechnicalDesign  = "technical_design"
	OpOrderFiles       = "order_files"
	OpGenerateFile     = "generate_file"
	OpChat             = "chat"
)

// Token budgets per operation.
var opMaxTokens = map[string]int{
	OpExtractEntities:  1024,
	OpTriage:           2048,
	OpFinalizeSolution: 4096,
	OpTechnicalDesign:  4096,
	OpOrderFiles:       1024,
	OpGenerateFile:     4096,
	OpChat:             4096,
}

// ErrMalformed reports a response that does not have the expected shape.
var ErrMalformed = errors.New("malformed response")

// Engine runs pipeline operations against a backend.
type Engine struct {
	backend  llm.Backend
	renderer templates.Renderer
	logger   *log.Logger
}

// New creates an Engine. A nil logger discards output.
func New(backend llm.Backend, renderer templates.Renderer, logger *log.Logger) *Engine {
	return &Engine{
		backend:  backend,
		renderer: renderer,
		logger:   logging.OrDiscard(logger),
	}
}

// Backend returns the backend the engine runs against.
func (e *Engine) Backend() llm.Backend { return e.backend }

// ExtractEntities asks for the entity names a story refers to.
// Returns an empty (non-nil) list on any failure.
func (e *Engine) ExtractEntities(ctx context.Context, story string) ([]string, error) {
	var resp struct {
		Objects []string `json:"objects"`
	}
	if err := e.completeJSON(ctx, OpExtractEntities, templates.ExtractEntities,
		templates.StoryData{Story: story}, &resp); err != nil {
		return []string{}, err
	}

	out := make([]string, 0, len(resp.Objects))
	for _, o := range resp.Objects {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out, nil
}

// FinalizeSolution writes the overview after clarification answers.
func (e *Engine) FinalizeSolution(ctx context.Context, story, answers, schemaContext string) (string, error) {
	return e.completeText(ctx, OpFinalizeSolution, llm.TierAnalysis, templates.FinalizeSolution,
		templates.FinalizeData{Story: story, Answers: answers, SchemaContext: schemaContext})
}

// TechnicalDesign writes the technical solution, with one "File:" line per
// deployable artifact.
func (e *Engine) TechnicalDesign(ctx context.Context, story, overview, schemaContext string) (string, error) {
	return e.completeText(ctx, OpTechnicalDesign, llm.TierAnalysis, templates.TechnicalDesign,
		templates.DesignData{Story: story, Overview: overview, SchemaContext: schemaContext})
}

// OrderFiles asks for a dependency order over names. On failure the input
// order is returned unchanged. The response is not sanitized here.
func (e *Engine) OrderFiles(ctx context.Context, names []string) ([]string, error) {
	fallback := append([]string(nil), names...)

	var resp struct {
		Order []string `json:"generation_order"`
	}
	if err := e.completeJSON(ctx, OpOrderFiles, templates.OrderFiles,
		templates.OrderData{Files: names}, &resp); err != nil {
		return fallback, err
	}
	if resp.Order == nil {
		err := fmt.Errorf("%s: %w: missing generation_order", OpOrderFiles, ErrMalformed)
		e.warn(OpOrderFiles, err)
		return fallback, err
	}
	return resp.Order, nil
}

// GenerateFile writes the source of one file. Enclosing code fences are
// stripped.
func (e *Engine) GenerateFile(ctx context.Context, fullContext, fileName string) (string, error) {
	text, err := e.completeText(ctx, OpGenerateFile, llm.TierCode, templates.GenerateFile,
		templates.FileData{Context: fullContext, FileName: fileName})
	if err != nil {
		return "", err
	}
	return StripCodeFences(text), nil
}

// Chat answers the latest turn of history under the assistant persona.
func (e *Engine) Chat(ctx context.Context, history []llm.Message) (string, error) {
	system, err := e.renderer.Render(templates.ChatSystem, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", OpChat, err)
	}
	req := llm.Request{
		Op:        OpChat,
		Tier:      llm.TierAnalysis,
		System:    strings.TrimSpace(system),
		Messages:  history,
		MaxTokens: opMaxTokens[OpChat],
	}
	return e.complete(ctx, req)
}

// completeText renders a prompt and returns the trimmed response text.
func (e *Engine) completeText(ctx context.Context, op string, tier llm.Tier, tmpl string, data any) (string, error) {
	prompt, err := e.renderer.Render(tmpl, data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req := llm.Prompt(op, tier, prompt)
	req.MaxTokens = opMaxTokens[op]
	return e.complete(ctx, req)
}

// completeJSON renders a prompt, requests a JSON object and decodes it
// into out.
func (e *Engine) completeJSON(ctx context.Context, op, tmpl string, data, out any) error {
	prompt, err := e.renderer.Render(tmpl, data)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req := llm.Prompt(op, llm.TierAnalysis, prompt)
	req.JSON = true
	req.MaxTokens = opMaxTokens[op]

	text, err := e.complete(ctx, req)
	if err != nil {
		return err
	}
	if err := decodeJSON(text, out); err != nil {
		err = fmt.Errorf("%s: %w", op, err)
		e.warn(op, err)
		return err
	}
	return nil
}

// complete runs req and rejects empty responses.
func (e *Engine) complete(ctx context.Context, req llm.Request) (string, error) {
	text, err := e.backend.Complete(ctx, req)
	if err != nil {
		err = fmt.Errorf("%s: %w", req.Op, err)
		e.warn(req.Op, err)
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		err := fmt.Errorf("%s: %w: empty response", req.Op, ErrMalformed)
		e.warn(req.Op, err)
		return "", err
	}
	return text, nil
}

func (e *Engine) warn(op string, err error) {
	e.logger.Printf("WARNING: %s via %s failed: %v", op, e.backend.Name(), err)
}
