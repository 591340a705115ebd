package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/HendryAvila/storysmith/internal/config"
	ollama "github.com/ollama/ollama/api"
)

// ollamaBackend runs against a local or remote Ollama server.
type ollamaBackend struct {
	cfg    config.Generation
	client *ollama.Client
}

func newOllama(cfg config.Generation) (Backend, error) {
	if cfg.BaseURL == "" {
		client, err := ollama.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("%w: ollama client: %v", ErrNotConfigured, err)
		}
		return &ollamaBackend{cfg: cfg, client: client}, nil
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ollama base_url %q: %v", ErrNotConfigured, cfg.BaseURL, err)
	}
	return &ollamaBackend{
		cfg:    cfg,
		client: ollama.NewClient(base, &http.Client{Timeout: cfg.Timeout}),
	}, nil
}

// Name implements Backend.
func (o *ollamaBackend) Name() string { return string(config.ProviderOllama) }

// Complete implements Backend.
func (o *ollamaBackend) Complete(ctx context.Context, req Request) (string, error) {
	msgs := withSystem(req.System, req.Messages)
	ollamaMsgs := make([]ollama.Message, len(msgs))
	for i, m := range msgs {
		ollamaMsgs[i] = ollama.Message{Role: m.Role, Content: m.Content}
	}

	stream := false
	chatReq := &ollama.ChatRequest{
		Model:    modelFor(o.cfg, req.Tier),
		Messages: ollamaMsgs,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": 0.0,
			"num_predict": maxTokens(o.cfg, req),
		},
	}
	if req.JSON {
		chatReq.Format = json.RawMessage(`"json"`)
	}

	var sb strings.Builder
	err := o.client.Chat(ctx, chatReq, func(res ollama.ChatResponse) error {
		sb.WriteString(res.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama %s: %w", req.Op, err)
	}
	return sb.String(), nil
}
