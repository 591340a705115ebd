package codegen

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/HendryAvila/storysmith/internal/logging"
	"golang.org/x/sync/errgroup"
)

// Engine is the part of the generation engine codegen needs.
type Engine interface {
	OrderFiles(ctx context.Context, names []string) ([]string, error)
	GenerateFile(ctx context.Context, fullContext, fileName string) (string, error)
}

// File is one generated file. Err is set when generation failed, in which
// case Content holds an inline error placeholder.
type File struct {
	Name    string `json:"file_name"`
	Content string `json:"content"`
	Err     string `json:"error,omitempty"`
}

// Failed reports whether the file holds a placeholder.
func (f File) Failed() bool { return f.Err != "" }

// Placeholder is the content recorded for a file that failed to generate.
func Placeholder(name string, err error) string {
	return fmt.Sprintf("// Error generating code for %s: %v", name, err)
}

// Generator plans and generates files.
type Generator struct {
	engine  Engine
	workers int
	logger  *log.Logger
}

// NewGenerator creates a Generator. workers <= 1 generates sequentially.
func NewGenerator(engine Engine, workers int, logger *log.Logger) *Generator {
	if workers < 1 {
		workers = 1
	}
	return &Generator{engine: engine, workers: workers, logger: logging.OrDiscard(logger)}
}

// Plan extracts the declared file names from a technical solution and
// orders them by dependency. It returns nil when nothing is declared,
// without calling the engine. When ordering fails the declared order is
// used and the ordering error is returned alongside it.
func (g *Generator) Plan(ctx context.Context, technicalSolution string) ([]string, error) {
	declared := ExtractFileNames(technicalSolution)
	if len(declared) == 0 {
		return nil, nil
	}

	order, err := g.engine.OrderFiles(ctx, declared)
	if err != nil {
		g.logger.Printf("WARNING: ordering %d files failed, keeping declared order: %v", len(declared), err)
		return declared, err
	}
	return Sanitize(order, declared), nil
}

// Sanitize makes order a permutation of declared: unknown names and
// duplicates are dropped, and declared names the order left out are
// appended in declared order.
func Sanitize(order, declared []string) []string {
	known := make(map[string]bool, len(declared))
	for _, d := range declared {
		known[d] = true
	}

	out := make([]string, 0, len(declared))
	used := make(map[string]bool, len(declared))
	for _, name := range order {
		name = strings.TrimSpace(name)
		if !known[name] || used[name] {
			continue
		}
		used[name] = true
		out = append(out, name)
	}
	for _, d := range declared {
		if !used[d] {
			out = append(out, d)
		}
	}
	return out
}

// Generate produces one File per plan entry, in plan order. A failing file
// gets a placeholder and never affects its siblings. With more than one
// worker, files are generated concurrently.
func (g *Generator) Generate(ctx context.Context, fullContext string, plan []string) []File {
	files := make([]File, len(plan))

	var eg errgroup.Group
	eg.SetLimit(g.workers)
	for i, name := range plan {
		eg.Go(func() error {
			files[i] = g.generateOne(ctx, fullContext, name)
			return nil
		})
	}
	_ = eg.Wait()

	return files
}

func (g *Generator) generateOne(ctx context.Context, fullContext, name string) File {
	if err := ctx.Err(); err != nil {
		return g.failed(name, err)
	}
	content, err := g.engine.GenerateFile(ctx, fullContext, name)
	if err != nil {
		return g.failed(name, err)
	}
	return File{Name: name, Content: content}
}

func (g *Generator) failed(name string, err error) File {
	g.logger.Printf("WARNING: generating %s failed: %v", name, err)
	return File{Name: name, Content: Placeholder(name, err), Err: err.Error()}
}

// FailedCount returns how many files hold placeholders.
func FailedCount(files []File) int {
	n := 0
	for _, f := range files {
		if f.Failed() {
			n++
		}
	}
	return n
}

// BuildContext assembles the shared prompt context for every file of a
// plan.
func BuildContext(story, overview, technicalSolution string, plan []string) string {
	var b strings.Builder
	b.WriteString("Original requirement:\n")
	b.WriteString(story)
	b.WriteString("\n\nSolution overview:\n")
	b.WriteString(overview)
	b.WriteString("\n\nApproved technical solution:\n")
	b.WriteString(technicalSolution)
	if len(plan) > 0 {
		b.WriteString("\n\nFiles in this solution, in generation order:\n")
		for _, name := range plan {
			b.WriteString("- ")
			b.WriteString(name)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
