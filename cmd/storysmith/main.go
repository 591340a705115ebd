// Storysmith: requirement-story to solution-design and code MCP server.
//
// Usage:
//
//	storysmith serve              # Start MCP server (stdio transport)
//	storysmith run story.md       # Run the pipeline in the terminal
//	storysmith chat               # Talk to the design assistant
//	storysmith cache import d.json
package main

import "github.com/HendryAvila/storysmith/internal/cli"

// Set by ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	cli.Execute()
}
