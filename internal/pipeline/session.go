package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/HendryAvila/storysmith/internal/codegen"
	"github.com/HendryAvila/storysmith/internal/engine"
	"github.com/HendryAvila/storysmith/internal/llm"
	"github.com/HendryAvila/storysmith/internal/resolver"
	"github.com/google/uuid"
)

// Story is the requirement the pipeline works from.
type Story struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description"`
}

// Text renders the story as sent to the generation backend.
func (s Story) Text() string {
	title := strings.TrimSpace(s.Title)
	if title == "" {
		return strings.TrimSpace(s.Description)
	}
	return "**" + title + "**\n\n" + strings.TrimSpace(s.Description)
}

// Notice is a user-visible message about a recovered failure or a degraded
// result of the most recent operation.
type Notice struct {
	Stage   string    `json:"stage"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Session is the live artifact set of one pipeline run.
type Session struct {
	ID    string `json:"id"`
	State State  `json:"state"`

	Story    *Story `json:"story,omitempty"`
	TicketID string `json:"ticket_id,omitempty"`

	SchemaContext string                `json:"schema_context,omitempty"`
	Diagnostics   *resolver.Diagnostics `json:"diagnostics,omitempty"`

	Questions         []engine.Question `json:"questions,omitempty"`
	Overview          string            `json:"overview,omitempty"`
	TechnicalSolution string            `json:"technical_solution,omitempty"`
	TechnicalEdited   bool              `json:"technical_edited,omitempty"`
	Plan              []string          `json:"plan,omitempty"`
	Files             []codegen.File    `json:"files,omitempty"`

	Notices    []Notice      `json:"notices,omitempty"`
	Transcript []llm.Message `json:"transcript,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession returns an empty session with a fresh id.
func NewSession() *Session {
	now := timeNow()
	return &Session{
		ID:        uuid.NewString(),
		State:     StateEmpty,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Artifact names a level of the artifact chain, for invalidation.
type Artifact int

const (
	ArtifactStory Artifact = iota
	ArtifactOverview
	ArtifactTechnical
	ArtifactPlan
)

// Invalidate clears every artifact derived from a. The artifact itself is
// kept; callers replace it.
func (s *Session) Invalidate(a Artifact) {
	switch a {
	case ArtifactStory:
		s.SchemaContext = ""
		s.Diagnostics = nil
		s.Questions = nil
		s.Overview = ""
		fallthrough
	case ArtifactOverview:
		s.TechnicalSolution = ""
		s.TechnicalEdited = false
		fallthrough
	case ArtifactTechnical:
		s.Plan = nil
		fallthrough
	case ArtifactPlan:
		s.Files = nil
	}
}

// File returns the generated file named name.
func (s *Session) File(name string) (codegen.File, bool) {
	for _, f := range s.Files {
		if f.Name == name {
			return f, true
		}
	}
	return codegen.File{}, false
}

func (s *Session) notify(stage, format string, args ...any) {
	s.Notices = append(s.Notices, Notice{
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
		At:      timeNow(),
	})
}

func (s *Session) touch() {
	s.UpdatedAt = timeNow()
}
