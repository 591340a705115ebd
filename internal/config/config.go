// Package config loads storysmith settings.
//
// Settings come from three layers, applied in order:
//   - built-in defaults (Default)
//   - an optional YAML file (storysmith.yaml or --config)
//   - environment variables for credentials and a few overrides
//
// Credentials are never required at load time. A missing key only disables
// the collaborator that needs it (see llm.New and tracker.New).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DirName is the per-project directory holding session state and logs.
	DirName = ".storysmith"

	// DefaultFile is the config file looked up in the working directory.
	DefaultFile = "storysmith.yaml"
)

// Provider names a generation backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
)

// validProviders is the set of supported generation backends.
var validProviders = map[Provider]bool{
	ProviderOpenAI:    true,
	ProviderAnthropic: true,
	ProviderOllama:    true,
}

// ValidateProvider returns an error if the provider is not recognized.
func ValidateProvider(p Provider) error {
	if !validProviders[p] {
		return fmt.Errorf("invalid provider %q: must be one of: openai, anthropic, ollama", p)
	}
	return nil
}

// Config is the root settings document.
type Config struct {
	Generation Generation `yaml:"generation"`
	Cache      Cache      `yaml:"cache"`
	Tracker    Tracker    `yaml:"tracker"`
	Log        Log        `yaml:"log"`
	Codegen    Codegen    `yaml:"codegen"`
}

// Generation configures the text-generation backend.
type Generation struct {
	Provider      Provider      `yaml:"provider"`
	AnalysisModel string        `yaml:"analysis_model"`
	CodeModel     string        `yaml:"code_model"`
	BaseURL       string        `yaml:"base_url,omitempty"`
	APIKey        string        `yaml:"-"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxTokens     int           `yaml:"max_tokens"`
}

// Cache configures the schema cache store.
type Cache struct {
	Path            string `yaml:"path"`
	MaxContextBytes int    `yaml:"max_context_bytes"`
}

// ResolvedPath returns Path, joined to root when relative.
func (c Cache) ResolvedPath(root string) string {
	if filepath.IsAbs(c.Path) {
		return c.Path
	}
	return filepath.Join(root, c.Path)
}

// Tracker holds ticket-tracker (Jira) connection settings.
type Tracker struct {
	Server   string `yaml:"server"`
	Username string `yaml:"username"`
	Token    string `yaml:"-"`
}

// Log configures the rotating log file.
type Log struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Quiet      bool   `yaml:"quiet"`
}

// Codegen configures the multi-file generator.
type Codegen struct {
	Workers int `yaml:"workers"`
}

// defaultModels pairs each provider with an (analysis, code) model tier.
var defaultModels = map[Provider][2]string{
	ProviderOpenAI:    {"gpt-4o-mini", "gpt-4o"},
	ProviderAnthropic: {"claude-sonnet-4-20250514", "claude-opus-4-20250514"},
	ProviderOllama:    {"llama3.1", "qwen2.5-coder"},
}

// Default returns the built-in configuration. Model tiers are left empty
// and filled from the provider defaults once the provider is known.
func Default() *Config {
	return &Config{
		Generation: Generation{
			Provider:  ProviderOpenAI,
			Timeout:   2 * time.Minute,
			MaxTokens: 4096,
		},
		Cache: Cache{
			Path:            filepath.Join(DirName, "schema.db"),
			MaxContextBytes: 24000,
		},
		Log: Log{
			File:       filepath.Join(DirName, "storysmith.log"),
			MaxSizeMB:  15,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Codegen: Codegen{Workers: 1},
	}
}

// Load builds a Config from defaults, the YAML file at path and the
// environment. An empty path means DefaultFile in the working directory,
// which may be absent. An explicit path that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// No config file: defaults plus environment.
	default:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	applyEnv(cfg, os.Getenv)
	applyModelDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables. getenv is injected for tests.
func applyEnv(cfg *Config, getenv func(string) string) {
	if p := getenv("STORYSMITH_PROVIDER"); p != "" {
		if Provider(p) != cfg.Generation.Provider {
			// Switching provider invalidates model names from another vendor.
			cfg.Generation.AnalysisModel = ""
			cfg.Generation.CodeModel = ""
		}
		cfg.Generation.Provider = Provider(p)
	}
	if c := getenv("STORYSMITH_CACHE"); c != "" {
		cfg.Cache.Path = c
	}

	switch cfg.Generation.Provider {
	case ProviderOpenAI:
		cfg.Generation.APIKey = getenv("OPENAI_API_KEY")
	case ProviderAnthropic:
		cfg.Generation.APIKey = getenv("ANTHROPIC_API_KEY")
	case ProviderOllama:
		if h := getenv("OLLAMA_HOST"); h != "" && cfg.Generation.BaseURL == "" {
			cfg.Generation.BaseURL = h
		}
	}

	if v := getenv("JIRA_SERVER"); v != "" {
		cfg.Tracker.Server = v
	}
	if v := getenv("JIRA_USERNAME"); v != "" {
		cfg.Tracker.Username = v
	}
	cfg.Tracker.Token = getenv("JIRA_API_TOKEN")
}

// applyModelDefaults fills empty model tiers from the provider defaults.
func applyModelDefaults(cfg *Config) {
	models, ok := defaultModels[cfg.Generation.Provider]
	if !ok {
		return
	}
	if cfg.Generation.AnalysisModel == "" {
		cfg.Generation.AnalysisModel = models[0]
	}
	if cfg.Generation.CodeModel == "" {
		cfg.Generation.CodeModel = models[1]
	}
}

// Validate checks settings that would make every operation fail.
// Missing credentials are not validated here.
func (c *Config) Validate() error {
	if err := ValidateProvider(c.Generation.Provider); err != nil {
		return err
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("generation.timeout must be positive, got %s", c.Generation.Timeout)
	}
	if c.Generation.MaxTokens <= 0 {
		return fmt.Errorf("generation.max_tokens must be positive, got %d", c.Generation.MaxTokens)
	}
	if c.Cache.Path == "" {
		return fmt.Errorf("cache.path must not be empty")
	}
	if c.Cache.MaxContextBytes <= 0 {
		return fmt.Errorf("cache.max_context_bytes must be positive, got %d", c.Cache.MaxContextBytes)
	}
	if c.Codegen.Workers < 1 {
		return fmt.Errorf("codegen.workers must be at least 1, got %d", c.Codegen.Workers)
	}
	return nil
}

// ProjectDir returns the .storysmith directory under root.
func ProjectDir(root string) string {
	return filepath.Join(root, DirName)
}

// GeneratedDir returns the directory receiving written source files.
func GeneratedDir(root string) string {
	return filepath.Join(ProjectDir(root), "generated")
}

// FindRoot walks up from start looking for a directory holding DirName.
// When none is found, start itself is the root; the first save creates
// DirName there.
func FindRoot(start string) string {
	current := start
	for {
		if info, err := os.Stat(ProjectDir(current)); err == nil && info.IsDir() {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return start
		}
		current = parent
	}
}
