// Package chat implements the free-form assistant conversation that runs
// beside the pipeline.
//
// A turn is stateless: the caller owns the transcript and gets back the
// extended one. A ticket id in the user's message pulls the ticket into the
// conversation before the assistant answers.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/HendryAvila/storysmith/internal/llm"
	"github.com/HendryAvila/storysmith/internal/logging"
	"github.com/HendryAvila/storysmith/internal/templates"
	"github.com/HendryAvila/storysmith/internal/tracker"
)

// Canned replies used in place of a generated answer.
const (
	FetchFailedReply   = "Sorry, I couldn't fetch the details for %s. Please check the ticket ID and try again."
	ReadFailedReply    = "Sorry, I couldn't read or process the file. Error: %v"
	AnswerFailedReply  = "Sorry, I encountered an error. Please try again."
	uploadedFileFormat = "Uploaded file: `%s`"
)

// Responder answers the latest turn of a conversation.
type Responder interface {
	Chat(ctx context.Context, history []llm.Message) (string, error)
}

// Fetcher loads tickets.
type Fetcher interface {
	FetchStory(ctx context.Context, id string) (tracker.Issue, error)
}

// Adjunct runs chat turns.
type Adjunct struct {
	responder Responder
	renderer  templates.Renderer
	fetcher   Fetcher
	logger    *log.Logger
}

// New creates an Adjunct. fetcher may be nil when no tracker is configured;
// ticket ids are then answered with the fetch apology.
func New(responder Responder, renderer templates.Renderer, fetcher Fetcher, logger *log.Logger) *Adjunct {
	return &Adjunct{
		responder: responder,
		renderer:  renderer,
		fetcher:   fetcher,
		logger:    logging.OrDiscard(logger),
	}
}

// Turn appends input and the assistant's reply to transcript and returns
// the extended transcript. When input names a ticket, the ticket is fetched
// and added as a story turn first. Only configuration errors are returned.
func (a *Adjunct) Turn(ctx context.Context, transcript []llm.Message, input string) ([]llm.Message, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return transcript, errors.New("chat message is empty")
	}
	history := appendTurn(transcript, llm.RoleUser, input)

	id, ok := tracker.FindID(input)
	if !ok {
		return a.answer(ctx, history)
	}

	issue, err := a.fetch(ctx, id)
	if err != nil {
		a.logger.Printf("WARNING: chat: fetching %s: %v", id, err)
		return appendTurn(history, llm.RoleAssistant, fmt.Sprintf(FetchFailedReply, id)), nil
	}

	story := issue.Description
	if t := strings.TrimSpace(issue.Title); t != "" {
		story = "**" + t + "**\n\n" + strings.TrimSpace(issue.Description)
	}
	return a.withStory(ctx, history, "ticket "+id, story)
}

// TurnWithDocument seeds the conversation with an uploaded story document.
func (a *Adjunct) TurnWithDocument(ctx context.Context, transcript []llm.Message, name string, content []byte) ([]llm.Message, error) {
	history := appendTurn(transcript, llm.RoleUser, fmt.Sprintf(uploadedFileFormat, name))

	if err := checkDocument(content); err != nil {
		a.logger.Printf("WARNING: chat: reading %s: %v", name, err)
		return appendTurn(history, llm.RoleAssistant, fmt.Sprintf(ReadFailedReply, err)), nil
	}
	return a.withStory(ctx, history, fmt.Sprintf("the uploaded file '%s'", name), string(content))
}

func checkDocument(content []byte) error {
	switch {
	case !utf8.Valid(content):
		return errors.New("file is not UTF-8 text")
	case strings.TrimSpace(string(content)) == "":
		return errors.New("file is empty")
	}
	return nil
}

func (a *Adjunct) fetch(ctx context.Context, id string) (tracker.Issue, error) {
	if a.fetcher == nil {
		return tracker.Issue{}, tracker.ErrNotConfigured
	}
	return a.fetcher.FetchStory(ctx, id)
}

// withStory adds the story prompt as a user turn and answers it.
func (a *Adjunct) withStory(ctx context.Context, history []llm.Message, source, story string) ([]llm.Message, error) {
	prompt, err := a.renderer.Render(templates.ChatStory, templates.ChatStoryData{Source: source, Story: story})
	if err != nil {
		return history, fmt.Errorf("rendering chat story: %w", err)
	}
	return a.answer(ctx, appendTurn(history, llm.RoleUser, strings.TrimSpace(prompt)))
}

func (a *Adjunct) answer(ctx context.Context, history []llm.Message) ([]llm.Message, error) {
	reply, err := a.responder.Chat(ctx, history)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return history, err
		}
		a.logger.Printf("WARNING: chat: %v", err)
		reply = AnswerFailedReply
	}
	return appendTurn(history, llm.RoleAssistant, reply), nil
}

// appendTurn returns a new slice; the caller's transcript is never
// modified.
func appendTurn(history []llm.Message, role, content string) []llm.Message {
	out := make([]llm.Message, len(history), len(history)+2)
	copy(out, history)
	return append(out, llm.Message{Role: role, Content: content})
}
