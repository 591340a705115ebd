package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/HendryAvila/storysmith/internal/engine"
)

// NoneSelected is the rendered answer of a multiple-choice question with
// no option picked.
const NoneSelected = "None selected"

// ErrIncompleteAnswers is returned when an answer set does not answer
// every pending question validly.
var ErrIncompleteAnswers = errors.New("incomplete clarification answers")

// ValidateAnswers checks answers against the pending questions, aligned by
// position. Every question needs an entry: single-choice exactly one
// option, multiple-choice zero or more. Options are matched exactly, then
// case-insensitively. The returned answers use the canonical option text.
func ValidateAnswers(questions []engine.Question, answers [][]string) ([][]string, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no pending questions", ErrIncompleteAnswers)
	}
	if len(answers) != len(questions) {
		return nil, fmt.Errorf("%w: %d questions, %d answers", ErrIncompleteAnswers, len(questions), len(answers))
	}

	out := make([][]string, len(questions))
	for i, q := range questions {
		picked, err := canonicalOptions(q, answers[i])
		if err != nil {
			return nil, fmt.Errorf("%w: question %d (%q): %v", ErrIncompleteAnswers, i+1, q.Text, err)
		}
		if q.Kind != engine.KindMultiple && len(picked) != 1 {
			return nil, fmt.Errorf("%w: question %d (%q) needs exactly one option, got %d",
				ErrIncompleteAnswers, i+1, q.Text, len(picked))
		}
		out[i] = picked
	}
	return out, nil
}

func canonicalOptions(q engine.Question, selected []string) ([]string, error) {
	picked := make([]string, 0, len(selected))
	seen := make(map[string]bool, len(selected))
	for _, sel := range selected {
		sel = strings.TrimSpace(sel)
		if sel == "" {
			continue
		}
		opt, ok := matchOption(q.Options, sel)
		if !ok {
			return nil, fmt.Errorf("%q is not an option", sel)
		}
		if seen[opt] {
			continue
		}
		seen[opt] = true
		picked = append(picked, opt)
	}
	return picked, nil
}

func matchOption(options []string, sel string) (string, bool) {
	for _, o := range options {
		if o == sel {
			return o, true
		}
	}
	for _, o := range options {
		if strings.EqualFold(o, sel) {
			return o, true
		}
	}
	return "", false
}

// FormatAnswers renders validated answers as the clarification context of
// the finalize prompt.
func FormatAnswers(questions []engine.Question, answers [][]string) string {
	blocks := make([]string, len(questions))
	for i, q := range questions {
		answer := NoneSelected
		if i < len(answers) && len(answers[i]) > 0 {
			answer = strings.Join(answers[i], ", ")
		}
		blocks[i] = "Question: " + q.Text + "\nAnswer: " + answer
	}
	return strings.Join(blocks, "\n\n")
}
