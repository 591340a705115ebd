package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/HendryAvila/storysmith/internal/codegen"
	"github.com/HendryAvila/storysmith/internal/engine"
	"github.com/HendryAvila/storysmith/internal/llm"
	"github.com/HendryAvila/storysmith/internal/logging"
	"github.com/HendryAvila/storysmith/internal/resolver"
	"github.com/HendryAvila/storysmith/internal/tracker"
	"github.com/sergi/go-diff/diffmatchpatch"
)

var (
	// ErrEmptyStory is returned when a story has no text.
	ErrEmptyStory = errors.New("story is empty")
	// ErrNoTicket is returned when publishing a session not loaded from a
	// ticket.
	ErrNoTicket = errors.New("session has no source ticket")
)

// Resolver grounds a story in the schema cache.
type Resolver interface {
	Resolve(ctx context.Context, story string) (string, resolver.Diagnostics)
}

// Engine runs the analysis and design operations.
type Engine interface {
	Triage(ctx context.Context, story, schemaContext string) (engine.TriageResult, error)
	FinalizeSolution(ctx context.Context, story, answers, schemaContext string) (string, error)
	TechnicalDesign(ctx context.Context, story, overview, schemaContext string) (string, error)
}

// Planner plans and generates files.
type Planner interface {
	Plan(ctx context.Context, technicalSolution string) ([]string, error)
	Generate(ctx context.Context, fullContext string, plan []string) []codegen.File
}

// Tracker reads and updates tickets.
type Tracker interface {
	FetchStory(ctx context.Context, id string) (tracker.Issue, error)
	AppendToDescription(ctx context.Context, id, text string) error
}

// Orchestrator runs pipeline transitions on a Session.
type Orchestrator struct {
	resolver Resolver
	engine   Engine
	planner  Planner
	tracker  Tracker
	logger   *log.Logger
}

// Deps are the collaborators of an Orchestrator. Tracker may be nil when
// no tracker is configured.
type Deps struct {
	Resolver Resolver
	Engine   Engine
	Planner  Planner
	Tracker  Tracker
	Logger   *log.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(d Deps) *Orchestrator {
	return &Orchestrator{
		resolver: d.Resolver,
		engine:   d.Engine,
		planner:  d.Planner,
		tracker:  d.Tracker,
		logger:   logging.OrDiscard(d.Logger),
	}
}

// begin starts an operation: notices of the previous one are dropped.
func begin(s *Session) {
	s.Notices = nil
	s.touch()
}

// LoadStory replaces the story and clears everything derived from it.
func (o *Orchestrator) LoadStory(s *Session, story Story) error {
	if strings.TrimSpace(story.Title) == "" && strings.TrimSpace(story.Description) == "" {
		return ErrEmptyStory
	}
	begin(s)
	s.Story = &story
	s.TicketID = ""
	s.Invalidate(ArtifactStory)
	s.State = StateStoryLoaded
	return nil
}

// LoadStoryFromTicket fetches ticket id and loads it as the story.
func (o *Orchestrator) LoadStoryFromTicket(ctx context.Context, s *Session, id string) error {
	if o.tracker == nil {
		return tracker.ErrNotConfigured
	}
	issue, err := o.tracker.FetchStory(ctx, id)
	if err != nil {
		return err
	}
	if err := o.LoadStory(s, Story{Title: issue.Title, Description: issue.Description}); err != nil {
		return fmt.Errorf("ticket %s: %w", id, err)
	}
	s.TicketID = issue.Key
	return nil
}

// Analyze grounds the story and triages it. Any later state is first
// reset to StoryLoaded. A clear story moves to OverviewReady, an ambiguous
// one to Clarifying. A failed triage leaves the session in StoryLoaded with
// a notice; only configuration errors are returned.
func (o *Orchestrator) Analyze(ctx context.Context, s *Session) error {
	if s.Story == nil {
		return errNoStory(s)
	}
	begin(s)
	s.Invalidate(ArtifactStory)
	s.State = StateStoryLoaded

	story := s.Story.Text()
	text, diag := o.ground(ctx, s, story)
	s.SchemaContext = text
	s.Diagnostics = &diag

	res, err := o.engine.Triage(ctx, story, s.SchemaContext)
	if err != nil {
		return o.recoverable(s, "analyze", err)
	}

	switch res.Status {
	case engine.StatusClear:
		s.Overview = res.Solution
		s.State = StateOverviewReady
	case engine.StatusAmbiguous:
		s.Questions = res.Questions
		s.State = StateClarifying
	}
	return nil
}

// SubmitAnswers folds the answers into a final overview. Answers are
// aligned with the pending questions; an incomplete set is rejected with
// ErrIncompleteAnswers and the questions stay pending. On success the
// pending set is cleared and the session moves to OverviewReady.
func (o *Orchestrator) SubmitAnswers(ctx context.Context, s *Session, answers [][]string) error {
	if err := RequireState(s, StateClarifying); err != nil {
		return err
	}
	valid, err := ValidateAnswers(s.Questions, answers)
	if err != nil {
		return err
	}
	begin(s)

	overview, err := o.engine.FinalizeSolution(ctx, s.Story.Text(), FormatAnswers(s.Questions, valid), s.SchemaContext)
	if err != nil {
		return o.recoverable(s, "clarify", err)
	}

	s.Questions = nil
	s.Overview = overview
	s.State = StateOverviewReady
	return nil
}

// Design re-grounds the story and writes the technical solution. From a
// later state it regenerates the design, clearing plan and files. On
// failure the previous artifacts, grounding included, are kept.
func (o *Orchestrator) Design(ctx context.Context, s *Session) error {
	if err := RequireState(s, statesFrom(StateOverviewReady)...); err != nil {
		return err
	}
	begin(s)

	story := s.Story.Text()
	schemaContext, diag := o.ground(ctx, s, story)

	technical, err := o.engine.TechnicalDesign(ctx, story, s.Overview, schemaContext)
	if err != nil {
		return o.recoverable(s, "design", err)
	}

	s.Invalidate(ArtifactOverview)
	s.SchemaContext = schemaContext
	s.Diagnostics = &diag
	s.TechnicalSolution = technical
	s.State = StateTechnicalReady
	return nil
}

// EditTechnicalSolution replaces the technical solution with a user edit
// and returns a short change summary. The edit is authoritative: plan and
// files are cleared and the session returns to TechnicalReady. An edit
// identical to the current text changes nothing.
func (o *Orchestrator) EditTechnicalSolution(s *Session, text string) (string, error) {
	if err := RequireState(s, statesFrom(StateTechnicalReady)...); err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("technical solution edit is empty")
	}
	begin(s)

	summary, changed := diffSummary(s.TechnicalSolution, text)
	if !changed {
		return summary, nil
	}

	s.Invalidate(ArtifactTechnical)
	s.TechnicalSolution = text
	s.TechnicalEdited = true
	s.State = StateTechnicalReady
	return summary, nil
}

// diffSummary describes how edited differs from original.
func diffSummary(original, edited string) (string, bool) {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(original, edited, false))

	var inserted, deleted, hunks int
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			inserted += len([]rune(d.Text))
			hunks++
		case diffmatchpatch.DiffDelete:
			deleted += len([]rune(d.Text))
			hunks++
		}
	}
	if hunks == 0 {
		return "no changes", false
	}
	return fmt.Sprintf("%d change(s): +%d/-%d characters", hunks, inserted, deleted), true
}

// BuildPlan scans the technical solution for declared files and orders
// them. With no declarations the plan stays empty and the session stays in
// TechnicalReady. A failed ordering falls back to declaration order.
func (o *Orchestrator) BuildPlan(ctx context.Context, s *Session) error {
	if err := RequireState(s, statesFrom(StateTechnicalReady)...); err != nil {
		return err
	}
	begin(s)
	s.Invalidate(ArtifactTechnical)
	s.State = StateTechnicalReady

	plan, err := o.planner.Plan(ctx, s.TechnicalSolution)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return err
		}
		s.notify("plan", "Could not determine file dependencies, using declared order: %v", err)
	}
	if len(plan) == 0 {
		s.notify("plan", "No file declarations found in the technical solution (allowed: .%s).",
			strings.Join(codegen.Extensions, ", ."))
		return nil
	}

	s.Plan = plan
	s.State = StatePlanReady
	return nil
}

// GenerateFiles generates every planned file. Failed files carry inline
// placeholders; the session still moves to FilesGenerated.
func (o *Orchestrator) GenerateFiles(ctx context.Context, s *Session) error {
	if err := RequireState(s, StatePlanReady, StateFilesGenerated); err != nil {
		return err
	}
	begin(s)
	s.Invalidate(ArtifactPlan)

	fullContext := codegen.BuildContext(s.Story.Text(), s.Overview, s.TechnicalSolution, s.Plan)
	s.Files = o.planner.Generate(ctx, fullContext, s.Plan)
	s.State = StateFilesGenerated

	if n := codegen.FailedCount(s.Files); n > 0 {
		s.notify("generate", "%d of %d files failed to generate; see the inline errors.", n, len(s.Files))
	}
	return nil
}

// ResetMode selects how far Reset rewinds.
type ResetMode string

const (
	// ResetFull returns to Empty, dropping the story.
	ResetFull ResetMode = "full"
	// ResetReanalyze returns to StoryLoaded, keeping the story.
	ResetReanalyze ResetMode = "reanalyze"
)

// Reset rewinds the session, clearing every downstream artifact.
func (o *Orchestrator) Reset(s *Session, mode ResetMode) error {
	switch mode {
	case ResetFull:
		begin(s)
		s.Invalidate(ArtifactStory)
		s.Story = nil
		s.TicketID = ""
		s.Transcript = nil
		s.State = StateEmpty
	case ResetReanalyze:
		if s.Story == nil {
			return errNoStory(s)
		}
		begin(s)
		s.Invalidate(ArtifactStory)
		s.State = StateStoryLoaded
	default:
		return fmt.Errorf("unknown reset mode %q (use %q or %q)", mode, ResetFull, ResetReanalyze)
	}
	return nil
}

// Publish appends the overview and, when present, the technical solution
// to the description of the source ticket.
func (o *Orchestrator) Publish(ctx context.Context, s *Session) error {
	if err := RequireState(s, statesFrom(StateOverviewReady)...); err != nil {
		return err
	}
	if s.TicketID == "" {
		return ErrNoTicket
	}
	if o.tracker == nil {
		return tracker.ErrNotConfigured
	}
	begin(s)
	return o.tracker.AppendToDescription(ctx, s.TicketID, PublishText(s))
}

// PublishText renders the published section in tracker wiki markup.
func PublishText(s *Session) string {
	var b strings.Builder
	b.WriteString("\n\nh2. Solution Overview\n\n")
	b.WriteString(s.Overview)
	if s.TechnicalSolution != "" {
		b.WriteString("\n\nh2. Technical Solution\n\n")
		b.WriteString(s.TechnicalSolution)
	}
	return b.String()
}

func errNoStory(s *Session) error {
	return fmt.Errorf("%w: session is %q, no story loaded", ErrWrongState, s.State)
}

// ground resolves the schema context of story. A degraded result is
// noted on s; the caller decides when to store the context.
func (o *Orchestrator) ground(ctx context.Context, s *Session, story string) (string, resolver.Diagnostics) {
	text, diag := o.resolver.Resolve(ctx, story)
	if !diag.Outcome.Grounded() {
		s.notify("grounding", "Proceeding without schema grounding: %s", text)
	}
	return text, diag
}

// recoverable turns a recoverable engine failure into a notice. Configuration
// errors are returned.
func (o *Orchestrator) recoverable(s *Session, stage string, err error) error {
	if errors.Is(err, llm.ErrNotConfigured) {
		return err
	}
	o.logger.Printf("WARNING: %s stage failed: %v", stage, err)
	s.notify(stage, "The %s step failed: %v", stage, err)
	return nil
}
