package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/HendryAvila/storysmith/internal/codegen"
	"github.com/HendryAvila/storysmith/internal/config"
	"github.com/HendryAvila/storysmith/internal/engine"
	"github.com/HendryAvila/storysmith/internal/pipeline"
	sserver "github.com/HendryAvila/storysmith/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	runTicket string
	runTitle  string
	runWrite  bool
)

var runCmd = &cobra.Command{
	Use:   "run [story-file]",
	Short: "Run the story pipeline in the terminal",
	Long: `Run the pipeline from story to generated files.

The story comes from a file ("-" reads stdin) or from a ticket (--ticket).
With neither, the saved session of the project is resumed from where it
stopped, so a session started over MCP can be finished here and the
other way round.

Clarification questions are asked interactively when stdin is a terminal.
Otherwise they are printed and the session is saved at that point.

Examples:
  storysmith run story.md
  storysmith run --ticket PROJ-123 --write
  cat story.md | storysmith run -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runTicket, "ticket", "t", "", "Load the story from this ticket")
	runCmd.Flags().StringVar(&runTitle, "title", "", "Title of a story read from a file")
	runCmd.Flags().BoolVarP(&runWrite, "write", "w", false, "Write generated files under .storysmith/generated/")
}

func runRun(cmd *cobra.Command, args []string) error {
	if runTicket != "" && len(args) > 0 {
		return errors.New("pass either a story file or --ticket, not both")
	}

	p, err := openProject(true)
	if err != nil {
		return err
	}
	defer p.close()

	c, cleanup, err := sserver.Wire(p.cfg, p.root, p.logger)
	if err != nil {
		return err
	}
	defer cleanup()

	s, err := c.Store.Load(p.root)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	ctx := cmd.Context()
	in := cmd.InOrStdin()
	interactive := isTerminal(in)

	switch {
	case runTicket != "":
		if err := c.Orchestrator.LoadStoryFromTicket(ctx, s, runTicket); err != nil {
			return err
		}
	case len(args) > 0:
		text, err := readStory(in, args[0])
		if err != nil {
			return err
		}
		if args[0] == "-" {
			interactive = false
		}
		if err := c.Orchestrator.LoadStory(s, pipeline.Story{Title: runTitle, Description: text}); err != nil {
			return err
		}
	}

	d := &driver{
		orch:        c.Orchestrator,
		in:          bufio.NewReader(in),
		out:         cmd.OutOrStdout(),
		interactive: interactive,
	}
	runErr := d.advance(ctx, s)

	if err := c.Store.Save(p.root, s); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	if runErr != nil {
		return runErr
	}

	if runWrite && s.State == pipeline.StateFilesGenerated {
		paths, err := codegen.WriteFiles(config.GeneratedDir(p.root), s.Files)
		if err != nil {
			return err
		}
		for _, path := range paths {
			fmt.Fprintf(d.out, "wrote %s\n", path)
		}
	}
	return nil
}

// readStory reads the story file at path, or stdin for "-".
func readStory(stdin io.Reader, path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading story: %w", err)
	}
	return string(data), nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// driver advances a session through the pipeline from the terminal.
type driver struct {
	orch        *pipeline.Orchestrator
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

// advance runs transitions until files are generated. It stops early,
// without error, when questions are pending and nobody can answer them.
// A step that leaves the session where it was is reported as an error
// after its notices are printed.
func (d *driver) advance(ctx context.Context, s *pipeline.Session) error {
	for s.State != pipeline.StateFilesGenerated {
		before := s.State
		var err error

		switch s.State {
		case pipeline.StateEmpty:
			return errors.New("no story loaded: pass a story file or --ticket")
		case pipeline.StateStoryLoaded:
			fmt.Fprintln(d.out, "Analyzing story...")
			err = d.orch.Analyze(ctx, s)
		case pipeline.StateClarifying:
			if !d.interactive {
				writeQuestions(d.out, s.Questions)
				fmt.Fprintln(d.out, "\nAnswer these with the story_clarify tool, or rerun storysmith run in a terminal.")
				return nil
			}
			answers, askErr := d.ask(s.Questions)
			if askErr != nil {
				return askErr
			}
			err = d.orch.SubmitAnswers(ctx, s, answers)
		case pipeline.StateOverviewReady:
			fmt.Fprintln(d.out, "Writing technical solution...")
			err = d.orch.Design(ctx, s)
		case pipeline.StateTechnicalReady:
			fmt.Fprintln(d.out, "Planning files...")
			err = d.orch.BuildPlan(ctx, s)
		case pipeline.StatePlanReady:
			fmt.Fprintf(d.out, "Generating %d file(s)...\n", len(s.Plan))
			err = d.orch.GenerateFiles(ctx, s)
		}
		if err != nil {
			return err
		}

		writeNotices(d.out, s)
		if s.State == before {
			return fmt.Errorf("pipeline stopped in state %s", before)
		}
		d.report(s)
	}
	return nil
}

// report prints the artifact produced by the transition into s.State.
func (d *driver) report(s *pipeline.Session) {
	switch s.State {
	case pipeline.StateOverviewReady:
		section(d.out, "Solution Overview", s.Overview)
	case pipeline.StateTechnicalReady:
		section(d.out, "Technical Solution", s.TechnicalSolution)
	case pipeline.StatePlanReady:
		var b strings.Builder
		for i, name := range s.Plan {
			fmt.Fprintf(&b, "%d. %s\n", i+1, name)
		}
		section(d.out, "Generation Plan", strings.TrimSuffix(b.String(), "\n"))
	case pipeline.StateFilesGenerated:
		for _, f := range s.Files {
			section(d.out, f.Name, f.Content)
		}
	}
}

// ask prompts for every question until each has a valid answer.
func (d *driver) ask(questions []engine.Question) ([][]string, error) {
	fmt.Fprintln(d.out, "\nThe story needs clarification.")
	answers := make([][]string, len(questions))
	for i, q := range questions {
		writeQuestion(d.out, i, q)
		for {
			if q.Kind == engine.KindMultiple {
				fmt.Fprint(d.out, "Choose any (comma-separated), or press Enter for none: ")
			} else {
				fmt.Fprintf(d.out, "Choose one [1-%d]: ", len(q.Options))
			}

			line, err := d.in.ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("reading answer: %w", err)
			}

			picked, perr := pickOptions(q, line)
			if perr == nil {
				answers[i] = picked
				break
			}
			if err != nil {
				return nil, errors.New("input closed before all questions were answered")
			}
			fmt.Fprintf(d.out, "  %v\n", perr)
		}
	}
	return answers, nil
}

// pickOptions maps option numbers typed by the user to option texts.
func pickOptions(q engine.Question, line string) ([]string, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})

	picked := make([]string, 0, len(fields))
	seen := make(map[int]bool, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 1 || n > len(q.Options) {
			return nil, fmt.Errorf("%q is not an option number (1-%d)", f, len(q.Options))
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		picked = append(picked, q.Options[n-1])
	}

	if q.Kind != engine.KindMultiple && len(picked) != 1 {
		return nil, errors.New("choose exactly one option")
	}
	return picked, nil
}

func writeQuestions(w io.Writer, questions []engine.Question) {
	fmt.Fprintln(w, "\nThe story needs clarification:")
	for i, q := range questions {
		writeQuestion(w, i, q)
	}
}

func writeQuestion(w io.Writer, i int, q engine.Question) {
	kind := "choose one"
	if q.Kind == engine.KindMultiple {
		kind = "choose any, or none"
	}
	fmt.Fprintf(w, "\n%d. %s (%s)\n", i+1, q.Text, kind)
	for j, opt := range q.Options {
		fmt.Fprintf(w, "   %d) %s\n", j+1, opt)
	}
}

func writeNotices(w io.Writer, s *pipeline.Session) {
	for _, n := range s.Notices {
		fmt.Fprintf(w, "! %s: %s\n", n.Stage, n.Message)
	}
}

func section(w io.Writer, title, body string) {
	fmt.Fprintf(w, "\n== %s ==\n%s\n", title, body)
}
