package codegen

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFiles writes each file under dir, keeping the relative layout of its
// name (lwc/accountCard/utils.js), and returns the written paths. A name
// that is not local to dir, or that repeats an earlier one, is rejected
// before anything is written. Placeholders are written too.
func WriteFiles(dir string, files []File) ([]string, error) {
	targets := make([]string, 0, len(files))
	seen := make(map[string]string, len(files))
	for _, f := range files {
		rel := filepath.Clean(filepath.FromSlash(f.Name))
		if !filepath.IsLocal(rel) {
			return nil, fmt.Errorf("file name %q is not a relative path inside the output directory", f.Name)
		}
		if prev, ok := seen[rel]; ok {
			return nil, fmt.Errorf("file names %q and %q write the same path", prev, f.Name)
		}
		seen[rel] = f.Name
		targets = append(targets, filepath.Join(dir, rel))
	}

	paths := make([]string, 0, len(files))
	for i, f := range files {
		path := targets[i]
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return paths, fmt.Errorf("creating directory for %s: %w", f.Name, err)
		}
		if err := os.WriteFile(path, []byte(f.Content+"\n"), 0o644); err != nil {
			return paths, fmt.Errorf("writing %s: %w", f.Name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
