// Package logging sets up the process-wide logger.
//
// Output goes to a size-rotated file under .storysmith/ and, unless quiet,
// to stderr. Stdout is never used: the MCP stdio transport owns it.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/HendryAvila/storysmith/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a logger writing to the rotating file described by cfg, and a
// close function that flushes and releases the file. Relative log paths are
// resolved against root.
func New(root string, cfg config.Log) (*log.Logger, func() error) {
	path := cfg.File
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}

	var writers []io.Writer
	closeFn := func() error { return nil }

	if path != "" {
		file := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		writers = append(writers, file)
		closeFn = file.Close
	}
	if !cfg.Quiet {
		writers = append(writers, os.Stderr)
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	logger := log.New(io.MultiWriter(writers...), "storysmith: ", log.LstdFlags)
	return logger, closeFn
}

// Discard returns a logger that drops everything. Used by tests and by
// components constructed without a logger.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
