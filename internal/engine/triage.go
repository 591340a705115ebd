package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/storysmith/internal/templates"
)

// Status is the triage verdict.
type Status string

const (
	StatusClear     Status = "clear"
	StatusAmbiguous Status = "ambiguous"
)

// Kind says how many options a question accepts.
type Kind string

const (
	KindSingle   Kind = "single"
	KindMultiple Kind = "multiple"
)

// Question is one clarification question.
type Question struct {
	Text    string   `json:"question"`
	Options []string `json:"options"`
	Kind    Kind     `json:"type"`
}

// TriageResult is a validated triage verdict. Exactly one of Solution
// (clear) or Questions (ambiguous) is set.
type TriageResult struct {
	Status    Status     `json:"status"`
	Solution  string     `json:"solution,omitempty"`
	Questions []Question `json:"clarification_questions,omitempty"`
}

// Triage classifies a story as clear (with an overview grounded in
// schemaContext) or ambiguous (with questions). Any other response shape
// is an ErrMalformed error and a zero result.
func (e *Engine) Triage(ctx context.Context, story, schemaContext string) (TriageResult, error) {
	var raw TriageResult
	if err := e.completeJSON(ctx, OpTriage, templates.Triage,
		templates.TriageData{Story: story, SchemaContext: schemaContext}, &raw); err != nil {
		return TriageResult{}, err
	}

	res, err := validateTriage(raw)
	if err != nil {
		err = fmt.Errorf("%s: %w", OpTriage, err)
		e.warn(OpTriage, err)
		return TriageResult{}, err
	}
	return res, nil
}

// validateTriage enforces the clear/ambiguous contract and normalizes the
// result so the two outcomes never overlap.
func validateTriage(raw TriageResult) (TriageResult, error) {
	switch Status(strings.ToLower(strings.TrimSpace(string(raw.Status)))) {
	case StatusClear:
		solution := strings.TrimSpace(raw.Solution)
		if solution == "" {
			return TriageResult{}, fmt.Errorf("%w: clear verdict without solution", ErrMalformed)
		}
		return TriageResult{Status: StatusClear, Solution: solution}, nil

	case StatusAmbiguous:
		if len(raw.Questions) == 0 {
			return TriageResult{}, fmt.Errorf("%w: ambiguous verdict without questions", ErrMalformed)
		}
		qs := make([]Question, 0, len(raw.Questions))
		for i, q := range raw.Questions {
			norm, err := normalizeQuestion(q)
			if err != nil {
				return TriageResult{}, fmt.Errorf("%w: question %d: %v", ErrMalformed, i+1, err)
			}
			qs = append(qs, norm)
		}
		return TriageResult{Status: StatusAmbiguous, Questions: qs}, nil

	default:
		return TriageResult{}, fmt.Errorf("%w: unknown status %q", ErrMalformed, raw.Status)
	}
}

func normalizeQuestion(q Question) (Question, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return q, fmt.Errorf("empty question text")
	}

	opts := make([]string, 0, len(q.Options))
	for _, o := range q.Options {
		if o = strings.TrimSpace(o); o != "" {
			opts = append(opts, o)
		}
	}
	if len(opts) == 0 {
		return q, fmt.Errorf("no options")
	}
	q.Options = opts

	switch Kind(strings.ToLower(strings.TrimSpace(string(q.Kind)))) {
	case KindSingle, "":
		q.Kind = KindSingle
	case KindMultiple:
		q.Kind = KindMultiple
	default:
		return q, fmt.Errorf("unknown type %q", q.Kind)
	}
	return q, nil
}
