package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/storysmith/internal/chat"
	"github.com/HendryAvila/storysmith/internal/llm"
	"github.com/HendryAvila/storysmith/internal/pipeline"
	sserver "github.com/HendryAvila/storysmith/internal/server"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the design assistant",
	Long: `Start a conversation with the design assistant.

Mention a ticket id (e.g. PROJ-123) to pull the ticket into the
conversation. The conversation is stored with the project session and is
shared with the story_chat MCP tool.

Commands:
  /file <path>   upload a story document (.txt, .md)
  /reset         clear the conversation
  /quit          exit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
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

	in := cmd.InOrStdin()
	r := &repl{
		adjunct: c.Chat,
		store:   c.Store,
		root:    p.root,
		in:      bufio.NewReader(in),
		out:     cmd.OutOrStdout(),
		prompt:  isTerminal(in),
	}
	return r.loop(cmd.Context())
}

// repl reads chat turns line by line and saves the transcript after each.
type repl struct {
	adjunct *chat.Adjunct
	store   pipeline.Store
	root    string
	in      *bufio.Reader
	out     io.Writer
	prompt  bool
}

func (r *repl) loop(ctx context.Context) error {
	s, err := r.store.Load(r.root)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	if r.prompt {
		fmt.Fprintln(r.out, "Chatting with the design assistant. /file <path> uploads a story, /reset clears, /quit exits.")
	}
	for {
		if r.prompt {
			fmt.Fprint(r.out, "> ")
		}
		line, readErr := r.in.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("reading input: %w", readErr)
		}

		if line = strings.TrimSpace(line); line != "" {
			quit, err := r.handle(ctx, s, line)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		}
		if readErr != nil {
			return nil
		}
	}
}

// handle runs one input line and reports whether the user asked to quit.
func (r *repl) handle(ctx context.Context, s *pipeline.Session, line string) (bool, error) {
	before := len(s.Transcript)
	var transcript []llm.Message
	var err error

	switch {
	case line == "/quit" || line == "/exit":
		return true, nil
	case line == "/reset":
		s.Transcript = nil
		fmt.Fprintln(r.out, "Conversation cleared.")
		return false, r.save(s)
	case strings.HasPrefix(line, "/file"):
		path := strings.TrimSpace(strings.TrimPrefix(line, "/file"))
		if path == "" {
			fmt.Fprintln(r.out, "usage: /file <path>")
			return false, nil
		}
		content, rerr := chat.ReadDocument(r.root, path)
		if rerr != nil {
			fmt.Fprintln(r.out, rerr)
			return false, nil
		}
		transcript, err = r.adjunct.TurnWithDocument(ctx, s.Transcript, filepath.Base(path), content)
	default:
		transcript, err = r.adjunct.Turn(ctx, s.Transcript, line)
	}
	if err != nil {
		return false, err
	}

	s.Transcript = transcript
	fmt.Fprintln(r.out, chat.LastReply(transcript[before:]))
	return false, r.save(s)
}

func (r *repl) save(s *pipeline.Session) error {
	if err := r.store.Save(r.root, s); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}
