// Package llmtest provides a scripted llm.Backend for tests.
package llmtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/HendryAvila/storysmith/internal/llm"
)

// Reply is one scripted answer.
type Reply struct {
	Text string
	Err  error
}

// Fake answers requests by operation name. Replies queued for an op are
// consumed in order; the last one repeats until a new reply is queued for
// that op. A Respond func, when set, wins over queued replies. Fake is safe
// for concurrent use.
type Fake struct {
	mu      sync.Mutex
	replies map[string][]Reply
	spent   map[string]bool // last reply of op already served
	calls   []llm.Request

	// Respond, if non-nil, computes the reply for any request.
	Respond func(req llm.Request) (string, error)
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{replies: make(map[string][]Reply)}
}

// On queues a text reply for op.
func (f *Fake) On(op, text string) *Fake {
	return f.queue(op, Reply{Text: text})
}

// Fail queues an error reply for op.
func (f *Fake) Fail(op string, err error) *Fake {
	return f.queue(op, Reply{Err: err})
}

func (f *Fake) queue(op string, r Reply) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replies == nil {
		f.replies = make(map[string][]Reply)
	}
	if f.spent[op] {
		f.replies[op] = nil
		delete(f.spent, op)
	}
	f.replies[op] = append(f.replies[op], r)
	return f
}

// Name implements llm.Backend.
func (f *Fake) Name() string { return "fake" }

// Complete implements llm.Backend.
func (f *Fake) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	respond := f.Respond
	queued := f.replies[req.Op]
	var r Reply
	found := len(queued) > 0
	if found {
		r = queued[0]
		if len(queued) > 1 {
			f.replies[req.Op] = queued[1:]
		} else {
			if f.spent == nil {
				f.spent = make(map[string]bool)
			}
			f.spent[req.Op] = true
		}
	}
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if respond != nil {
		return respond(req)
	}
	if !found {
		return "", fmt.Errorf("llmtest: no reply scripted for op %q", req.Op)
	}
	return r.Text, r.Err
}

// Calls returns a copy of every request seen so far.
func (f *Fake) Calls() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llm.Request, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsFor returns the requests seen for op.
func (f *Fake) CallsFor(op string) []llm.Request {
	var out []llm.Request
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// LastPrompt returns the user content of the most recent request for op,
// or "" if there was none.
func (f *Fake) LastPrompt(op string) string {
	calls := f.CallsFor(op)
	if len(calls) == 0 {
		return ""
	}
	return UserText(calls[len(calls)-1])
}

// UserText joins the user turns of a request.
func UserText(req llm.Request) string {
	var parts []string
	for _, m := range req.Messages {
		if m.Role == llm.RoleUser {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n")
}
