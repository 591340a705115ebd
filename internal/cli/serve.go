package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	sserver "github.com/HendryAvila/storysmith/internal/server"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server (stdio transport)",
	Long: `Start the MCP (Model Context Protocol) server on stdin/stdout.

Register it with your AI coding tool, for example:

  {"mcpServers": {"storysmith": {"command": "storysmith", "args": ["serve"]}}}

Logs go to .storysmith/storysmith.log and stderr; stdout carries the
protocol only.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	p, err := openProject(false)
	if err != nil {
		return err
	}
	defer p.close()

	// The MCP tools resolve the project from the working directory.
	if err := os.Chdir(p.root); err != nil {
		return fmt.Errorf("entering project directory: %w", err)
	}

	s, cleanup, err := sserver.New(p.cfg, p.root, p.logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ServeStdio(s)
	}()

	p.logger.Printf("serving MCP on stdio (project %s)", p.root)
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		p.logger.Printf("shutting down: %v", context.Cause(ctx))
		return nil
	}
}
