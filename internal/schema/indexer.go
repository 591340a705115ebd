package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/HendryAvila/storysmith/internal/logging"
)

// Source enumerates entities from the system of record.
type Source interface {
	// Entities lists the names of createable entities.
	Entities(ctx context.Context) ([]string, error)
	// Describe returns the field descriptors of one entity.
	Describe(ctx context.Context, name string) ([]Field, error)
}

// Writer is the write surface the Indexer needs.
type Writer interface {
	Put(ctx context.Context, entries map[string]string) error
}

// IndexResult summarizes an indexing run.
type IndexResult struct {
	Indexed int      `json:"indexed"`
	Skipped []string `json:"skipped,omitempty"`
}

// Indexer is the offline producer that fills the cache: enumerate entities,
// describe each, then write one entry per entity plus the master list.
type Indexer struct {
	store     Writer
	logger    *log.Logger
	batchSize int
}

// NewIndexer creates an Indexer writing to store.
func NewIndexer(store Writer, logger *log.Logger) *Indexer {
	return &Indexer{store: store, logger: logging.OrDiscard(logger), batchSize: 100}
}

// Run indexes every entity from src. An entity whose description fails is
// skipped and excluded from the master list.
func (ix *Indexer) Run(ctx context.Context, src Source) (*IndexResult, error) {
	names, err := src.Entities(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}

	result := &IndexResult{}
	indexed := make([]string, 0, len(names))
	batch := make(map[string]string, ix.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ix.store.Put(ctx, batch); err != nil {
			return fmt.Errorf("writing batch: %w", err)
		}
		batch = make(map[string]string, ix.batchSize)
		return nil
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fields, err := src.Describe(ctx, name)
		if err != nil {
			ix.logger.Printf("WARNING: skipping entity %s: %v", name, err)
			result.Skipped = append(result.Skipped, name)
			continue
		}

		encoded, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("encoding fields of %s: %w", name, err)
		}
		batch[EntityKey(name)] = string(encoded)
		indexed = append(indexed, name)

		if len(batch) >= ix.batchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}

	sort.Strings(indexed)
	master, err := json.Marshal(indexed)
	if err != nil {
		return nil, fmt.Errorf("encoding master list: %w", err)
	}
	batch[MasterListKey] = string(master)
	if err := flush(); err != nil {
		return nil, err
	}

	result.Indexed = len(indexed)
	ix.logger.Printf("indexed %d entities (%d skipped)", result.Indexed, len(result.Skipped))
	return result, nil
}

// DumpEntity is one entity in a describe dump file.
type DumpEntity struct {
	Name       string  `json:"name"`
	Createable bool    `json:"createable"`
	Fields     []Field `json:"fields"`
}

// Dump is a Source backed by a describe dump exported from the system of
// record: {"entities": [{"name": ..., "createable": true, "fields": [...]}]}.
type Dump struct {
	Entries []DumpEntity `json:"entities"`
	byName  map[string][]Field
}

// LoadDump reads a describe dump from path.
func LoadDump(path string) (*Dump, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dump: %w", err)
	}
	var d Dump
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing dump %s: %w", path, err)
	}
	d.index()
	return &d, nil
}

func (d *Dump) index() {
	d.byName = make(map[string][]Field, len(d.Entries))
	for _, e := range d.Entries {
		d.byName[e.Name] = e.Fields
	}
}

// Entities implements Source. Only createable entities are listed.
func (d *Dump) Entities(context.Context) ([]string, error) {
	var names []string
	for _, e := range d.Entries {
		if e.Createable && e.Name != "" {
			names = append(names, e.Name)
		}
	}
	return names, nil
}

// Describe implements Source.
func (d *Dump) Describe(_ context.Context, name string) ([]Field, error) {
	if d.byName == nil {
		d.index()
	}
	fields, ok := d.byName[name]
	if !ok {
		return nil, fmt.Errorf("entity %q not in dump", name)
	}
	return fields, nil
}
