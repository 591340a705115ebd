// Package llm defines the text-generation backend abstraction and its
// provider implementations.
//
// Pipeline code depends only on Backend. The concrete provider is chosen
// once, from configuration, by New.
package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/HendryAvila/storysmith/internal/config"
)

// ErrNotConfigured marks a backend that cannot run because of missing
// configuration (usually an API key). It blocks every dependent operation.
var ErrNotConfigured = errors.New("generation backend not configured")

// Tier selects a model class. Analysis calls use the lighter model,
// per-file code generation the stronger one.
type Tier string

const (
	TierAnalysis Tier = "analysis"
	TierCode     Tier = "code"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion request.
type Request struct {
	// Op names the pipeline operation, for logs and test routing.
	Op       string
	Tier     Tier
	System   string
	Messages []Message
	// JSON asks the provider for a strict JSON object response.
	JSON      bool
	MaxTokens int
}

// Prompt builds a single-turn request.
func Prompt(op string, tier Tier, prompt string) Request {
	return Request{
		Op:       op,
		Tier:     tier,
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	}
}

// Backend generates text.
type Backend interface {
	// Name identifies the provider in logs.
	Name() string
	// Complete runs one request and returns the raw response text.
	Complete(ctx context.Context, req Request) (string, error)
}

// factory builds a backend from validated settings.
type factory func(cfg config.Generation) (Backend, error)

// factories is the provider registry.
var factories = map[config.Provider]factory{
	config.ProviderOpenAI:    newOpenAI,
	config.ProviderAnthropic: newAnthropic,
	config.ProviderOllama:    newOllama,
}

// Providers lists the registered provider names.
func Providers() []string {
	names := make([]string, 0, len(factories))
	for p := range factories {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}

// New builds the backend selected by cfg.Provider. Configuration problems
// are reported as errors wrapping ErrNotConfigured.
func New(cfg config.Generation) (Backend, error) {
	f, ok := factories[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q (available: %s)",
			ErrNotConfigured, cfg.Provider, strings.Join(Providers(), ", "))
	}
	return f(cfg)
}

// Unconfigured is a Backend standing in for one that failed to build.
// Every call returns the configuration error.
type Unconfigured struct {
	Err error
}

// Name implements Backend.
func (u Unconfigured) Name() string { return "unconfigured" }

// Complete implements Backend.
func (u Unconfigured) Complete(context.Context, Request) (string, error) {
	if u.Err == nil {
		return "", ErrNotConfigured
	}
	if errors.Is(u.Err, ErrNotConfigured) {
		return "", u.Err
	}
	return "", fmt.Errorf("%w: %v", ErrNotConfigured, u.Err)
}

// modelFor picks the model for a tier.
func modelFor(cfg config.Generation, tier Tier) string {
	if tier == TierCode && cfg.CodeModel != "" {
		return cfg.CodeModel
	}
	return cfg.AnalysisModel
}

// maxTokens resolves the token budget of a request.
func maxTokens(cfg config.Generation, req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return cfg.MaxTokens
}
