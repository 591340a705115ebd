package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/HendryAvila/storysmith/internal/config"
)

const (
	anthropicDefaultBase = "https://api.anthropic.com"
	anthropicVersion     = "2023-06-01"
	jsonOnlyInstruction  = "Respond ONLY with a single valid JSON object. No prose, no code fences."
)

// anthropic talks to the messages API.
type anthropic struct {
	cfg        config.Generation
	baseURL    string
	httpClient *http.Client
}

type anthropicRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func newAnthropic(cfg config.Generation) (Backend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY not set", ErrNotConfigured)
	}
	base := cfg.BaseURL
	if base == "" {
		base = anthropicDefaultBase
	}
	return &anthropic{
		cfg:        cfg,
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name implements Backend.
func (a *anthropic) Name() string { return string(config.ProviderAnthropic) }

// Complete implements Backend. The messages API has no JSON mode, so a
// JSON request adds an instruction to the system prompt instead.
func (a *anthropic) Complete(ctx context.Context, req Request) (string, error) {
	system := req.System
	if req.JSON {
		system = strings.TrimSpace(system + "\n\n" + jsonOnlyInstruction)
	}

	// System turns are not allowed inside messages.
	msgs := make([]Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			system = strings.TrimSpace(system + "\n\n" + m.Content)
			continue
		}
		msgs = append(msgs, m)
	}

	body := anthropicRequest{
		Model:       modelFor(a.cfg, req.Tier),
		MaxTokens:   maxTokens(a.cfg, req),
		Temperature: 0,
		System:      system,
		Messages:    msgs,
	}

	var resp anthropicResponse
	headers := map[string]string{
		"x-api-key":         a.cfg.APIKey,
		"anthropic-version": anthropicVersion,
	}
	if err := postJSON(ctx, a.httpClient, a.baseURL+"/v1/messages", headers, body, &resp); err != nil {
		return "", fmt.Errorf("anthropic %s: %w", req.Op, err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("anthropic %s: %s (%s)", req.Op, resp.Error.Message, resp.Error.Type)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic %s: empty response", req.Op)
	}
	return sb.String(), nil
}
