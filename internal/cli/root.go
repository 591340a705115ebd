// Package cli implements the storysmith command line.
package cli

import (
	"fmt"
	"os"

	"github.com/HendryAvila/storysmith/internal/server"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	projectDir string
)

var rootCmd = &cobra.Command{
	Use:   "storysmith",
	Short: "Turn requirement stories into solution designs and code",
	Long: `Storysmith takes a user story (pasted, from a file or from a ticket),
grounds it in the cached org schema, asks clarifying questions when the
story is ambiguous, writes a solution overview and a technical solution,
and generates the declared source files.

Run it as an MCP server for your AI coding tool (storysmith serve) or drive
the pipeline directly from the terminal (storysmith run).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// SetVersionInfo sets build information reported by the version command
// and the MCP server.
func SetVersionInfo(version, commit, date string) {
	buildVersion, buildCommit, buildDate = version, commit, date
	server.Version = version
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default: ./storysmith.yaml)")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "dir", "d", "", "Project directory (default: nearest directory with .storysmith)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)
}
