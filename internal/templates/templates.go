// Package templates renders the prompt text sent to the generation backend.
//
// Prompts are embedded text/template files, one per engine operation. Each
// has a matching data struct below.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// Template names.
const (
	ExtractEntities  = "extract_entities.tmpl"
	Triage           = "triage.tmpl"
	FinalizeSolution = "finalize_solution.tmpl"
	TechnicalDesign  = "technical_design.tmpl"
	OrderFiles       = "order_files.tmpl"
	GenerateFile     = "generate_file.tmpl"
	ChatSystem       = "chat_system.tmpl"
	ChatStory        = "chat_story.tmpl"
)

// Renderer renders a named template with data.
type Renderer interface {
	Render(name string, data any) (string, error)
}

// EmbedRenderer renders the embedded prompt templates.
type EmbedRenderer struct {
	tmpl *template.Template
}

// NewRenderer parses every embedded template.
func NewRenderer() (*EmbedRenderer, error) {
	tmpl, err := template.New("").Option("missingkey=error").ParseFS(promptFS, "prompts/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing prompt templates: %w", err)
	}
	return &EmbedRenderer{tmpl: tmpl}, nil
}

// MustRenderer is NewRenderer for package-level wiring; the templates are
// compiled into the binary, so a parse failure is a programming error.
func MustRenderer() *EmbedRenderer {
	r, err := NewRenderer()
	if err != nil {
		panic(err)
	}
	return r
}

// Render implements Renderer.
func (r *EmbedRenderer) Render(name string, data any) (string, error) {
	t := r.tmpl.Lookup(name)
	if t == nil {
		return "", fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.String(), nil
}

// StoryData feeds ExtractEntities.
type StoryData struct {
	Story string
}

// TriageData feeds Triage.
type TriageData struct {
	Story         string
	SchemaContext string
}

// FinalizeData feeds FinalizeSolution.
type FinalizeData struct {
	Story         string
	Answers       string
	SchemaContext string
}

// DesignData feeds TechnicalDesign.
type DesignData struct {
	Story         string
	Overview      string
	SchemaContext string
}

// OrderData feeds OrderFiles.
type OrderData struct {
	Files []string
}

// FileData feeds GenerateFile.
type FileData struct {
	Context  string
	FileName string
}

// ChatStoryData feeds ChatStory. Source names where the story came from,
// e.g. "ticket PROJ-1" or "the uploaded file 'story.txt'".
type ChatStoryData struct {
	Source string
	Story  string
}
