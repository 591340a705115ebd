package cli

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/HendryAvila/storysmith/internal/config"
	"github.com/HendryAvila/storysmith/internal/logging"
)

// project is an opened storysmith project directory with its settings
// and logger.
type project struct {
	root     string
	cfg      *config.Config
	logger   *log.Logger
	closeLog func() error
}

// openProject resolves the project root, loads the config and starts the
// logger. quiet keeps log output off the terminal.
func openProject(quiet bool) (*project, error) {
	root, err := resolveRoot(projectDir)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if quiet {
		cfg.Log.Quiet = true
	}

	logger, closeLog := logging.New(root, cfg.Log)
	return &project{root: root, cfg: cfg, logger: logger, closeLog: closeLog}, nil
}

func (p *project) close() {
	if err := p.closeLog(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: closing log: %v\n", err)
	}
}

// resolveRoot returns dir made absolute, or the nearest directory above
// cwd holding a .storysmith directory.
func resolveRoot(dir string) (string, error) {
	if dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", fmt.Errorf("resolving %s: %w", dir, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return "", fmt.Errorf("project directory: %w", err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("project directory %s is not a directory", abs)
		}
		return abs, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	return config.FindRoot(cwd), nil
}
