package tools

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/storysmith/internal/codegen"
	"github.com/HendryAvila/storysmith/internal/engine"
	"github.com/HendryAvila/storysmith/internal/pipeline"
)

// writeNotices renders the notices of the last operation, if any.
func writeNotices(sb *strings.Builder, s *pipeline.Session) {
	if len(s.Notices) == 0 {
		return
	}
	sb.WriteString("\n## Notices\n\n")
	for _, n := range s.Notices {
		fmt.Fprintf(sb, "- **%s:** %s\n", n.Stage, n.Message)
	}
}

func writeNextStep(sb *strings.Builder, s *pipeline.Session) {
	fmt.Fprintf(sb, "\n## Next Step\n\n%s\n", pipeline.NextStep(s.State))
}

// writeQuestions renders pending clarification questions with numbered
// options.
func writeQuestions(sb *strings.Builder, questions []engine.Question) {
	for i, q := range questions {
		kind := "choose one"
		if q.Kind == engine.KindMultiple {
			kind = "choose any, or none"
		}
		fmt.Fprintf(sb, "%d. %s _(%s)_\n", i+1, q.Text, kind)
		for _, opt := range q.Options {
			fmt.Fprintf(sb, "   - %s\n", opt)
		}
	}
}

// codeFence returns the fence language for a generated file.
func codeFence(name string) string {
	switch strings.TrimPrefix(filepath.Ext(name), ".") {
	case "cls", "trigger":
		return "apex"
	case "html", "page":
		return "html"
	case "js":
		return "javascript"
	case "css":
		return "css"
	default:
		return ""
	}
}

func writeFile(sb *strings.Builder, f codegen.File) {
	fmt.Fprintf(sb, "### %s\n\n", f.Name)
	if f.Failed() {
		sb.WriteString("_Generation failed; the file holds an error placeholder._\n\n")
	}
	fmt.Fprintf(sb, "```%s\n%s\n```\n\n", codeFence(f.Name), f.Content)
}

// stateLine summarizes a session in one line.
func stateLine(s *pipeline.Session) string {
	line := fmt.Sprintf("**State:** %s", s.State)
	if s.TicketID != "" {
		line += fmt.Sprintf(" | **Ticket:** %s", s.TicketID)
	}
	return line
}
