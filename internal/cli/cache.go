package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/HendryAvila/storysmith/internal/schema"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the schema cache",
	Long: `Manage the schema cache used to ground stories.

The cache is filled offline from a describe dump exported from the org:

  {"entities": [{"name": "Account", "createable": true,
                 "fields": [{"name": "Name", "type": "string", "createable": true}]}]}`,
}

var cacheImportCmd = &cobra.Command{
	Use:   "import <dump.json>",
	Short: "Index a describe dump into the cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(func(store *schema.Store, logger *log.Logger) error {
			return importDump(cmd.Context(), store, args[0], cmd.OutOrStdout(), logger)
		})
	},
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the entities in the cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(func(store *schema.Store, _ *log.Logger) error {
			return listEntities(cmd.Context(), store, cmd.OutOrStdout())
		})
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show <entity>...",
	Short: "Show the cached fields of entities",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(func(store *schema.Store, _ *log.Logger) error {
			return showEntities(cmd.Context(), store, args, cmd.OutOrStdout())
		})
	},
}

func init() {
	cacheCmd.AddCommand(cacheImportCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheShowCmd)
}

// withCache opens the project cache for fn and closes it afterwards.
func withCache(fn func(store *schema.Store, logger *log.Logger) error) error {
	p, err := openProject(true)
	if err != nil {
		return err
	}
	defer p.close()

	store, err := schema.Open(p.cfg.Cache.ResolvedPath(p.root))
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(store, p.logger)
}

func importDump(ctx context.Context, store schema.Writer, path string, out io.Writer, logger *log.Logger) error {
	dump, err := schema.LoadDump(path)
	if err != nil {
		return err
	}
	res, err := schema.NewIndexer(store, logger).Run(ctx, dump)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Indexed %d entities.\n", res.Indexed)
	if len(res.Skipped) > 0 {
		fmt.Fprintf(out, "Skipped %d: %s\n", len(res.Skipped), strings.Join(res.Skipped, ", "))
	}
	return nil
}

func listEntities(ctx context.Context, cache schema.Reader, out io.Writer) error {
	names, err := cache.MasterList(ctx)
	if errors.Is(err, schema.ErrMasterListMissing) {
		return errors.New("the cache is empty: run storysmith cache import <dump.json> first")
	}
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(out, n)
	}
	return nil
}

func showEntities(ctx context.Context, cache schema.Reader, names []string, out io.Writer) error {
	// Fields may return decoded entries alongside a decode error.
	fields, err := cache.Fields(ctx, names)
	for _, name := range names {
		fs, ok := fields[name]
		if !ok {
			fmt.Fprintf(out, "%s: not in cache\n", name)
			continue
		}
		fmt.Fprintf(out, "%s\n", name)
		for _, f := range fs {
			fmt.Fprintf(out, "  %-40s %s\n", f.Name, f.Type)
		}
	}
	return err
}
