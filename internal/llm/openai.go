package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/HendryAvila/storysmith/internal/config"
)

const openAIDefaultBase = "https://api.openai.com"

// openAI talks to the chat completions API (or any compatible server).
type openAI struct {
	cfg        config.Generation
	baseURL    string
	httpClient *http.Client
}

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func newOpenAI(cfg config.Generation) (Backend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY not set", ErrNotConfigured)
	}
	base := cfg.BaseURL
	if base == "" {
		base = openAIDefaultBase
	}
	return &openAI{
		cfg:        cfg,
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name implements Backend.
func (o *openAI) Name() string { return string(config.ProviderOpenAI) }

// Complete implements Backend.
func (o *openAI) Complete(ctx context.Context, req Request) (string, error) {
	body := openAIRequest{
		Model:       modelFor(o.cfg, req.Tier),
		Messages:    withSystem(req.System, req.Messages),
		Temperature: 0,
		MaxTokens:   maxTokens(o.cfg, req),
	}
	if req.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var resp openAIResponse
	headers := map[string]string{"Authorization": "Bearer " + o.cfg.APIKey}
	if err := postJSON(ctx, o.httpClient, o.baseURL+"/v1/chat/completions", headers, body, &resp); err != nil {
		return "", fmt.Errorf("openai %s: %w", req.Op, err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("openai %s: %s (%s)", req.Op, resp.Error.Message, resp.Error.Type)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai %s: no choices in response", req.Op)
	}
	return resp.Choices[0].Message.Content, nil
}
