// Package resolver grounds a requirement story in the cached schema.
//
// Resolve combines generative entity extraction with a deterministic
// keyword scan, matches the candidates against the cached master entity
// list, and renders the createable fields of every match into a bounded
// context document. It never fails: degraded states produce a sentinel
// context string and are recorded in Diagnostics.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/HendryAvila/storysmith/internal/logging"
	"github.com/HendryAvila/storysmith/internal/schema"
)

// Sentinel context strings.
const (
	NoObjectsIdentified = "No objects were identified to fetch schema for."
	CacheUnavailable    = "Error: Could not connect to metadata cache."
	MasterListMissing   = "Error: Master object list not found."
	NoSchemaAvailable   = "Could not retrieve schema from the cache."
)

// Outcome classifies a resolution.
type Outcome string

const (
	OutcomeGrounded          Outcome = "grounded"
	OutcomeNoCandidates      Outcome = "no_candidates"
	OutcomeCacheUnavailable  Outcome = "cache_unavailable"
	OutcomeMasterListMissing Outcome = "master_list_missing"
	OutcomeNoMatch           Outcome = "no_match"
)

// Grounded reports whether the context carries real schema.
func (o Outcome) Grounded() bool { return o == OutcomeGrounded }

// Extractor suggests entity names for a story.
type Extractor interface {
	ExtractEntities(ctx context.Context, story string) ([]string, error)
}

// Diagnostics records every intermediate set of one resolution.
type Diagnostics struct {
	AISuggested      []string `json:"ai_suggested"`
	KeywordSuggested []string `json:"keyword_suggested"`
	Combined         []string `json:"combined"`
	MasterList       []string `json:"master_list,omitempty"`
	Matched          []string `json:"matched"`
	// Omitted lists matched entities left out of the context: no cached
	// fields, or past the size bound.
	Omitted         []string `json:"omitted,omitempty"`
	FinalContext    string   `json:"final_context"`
	Outcome         Outcome  `json:"outcome"`
	ExtractionError string   `json:"extraction_error,omitempty"`
	CacheError      string   `json:"cache_error,omitempty"`
}

// Resolver builds schema context for stories.
type Resolver struct {
	extractor Extractor
	cache     schema.Reader
	maxBytes  int
	logger    *log.Logger
}

// New creates a Resolver. maxBytes <= 0 disables the context size bound.
func New(extractor Extractor, cache schema.Reader, maxBytes int, logger *log.Logger) *Resolver {
	return &Resolver{
		extractor: extractor,
		cache:     cache,
		maxBytes:  maxBytes,
		logger:    logging.OrDiscard(logger),
	}
}

// Resolve returns the schema context for story and the trace of how it was
// built.
func (r *Resolver) Resolve(ctx context.Context, story string) (string, Diagnostics) {
	d := Diagnostics{
		AISuggested:      []string{},
		KeywordSuggested: []string{},
		Combined:         []string{},
		Matched:          []string{},
	}

	if strings.TrimSpace(story) != "" {
		ai, err := r.extractor.ExtractEntities(ctx, story)
		if err != nil {
			d.ExtractionError = err.Error()
		}
		if ai == nil {
			ai = []string{}
		}
		d.AISuggested = ai
		d.KeywordSuggested = KeywordCandidates(story)
		d.Combined = Combine(d.AISuggested, d.KeywordSuggested)
	}

	if len(d.Combined) == 0 {
		return r.finish(&d, OutcomeNoCandidates, NoObjectsIdentified)
	}

	master, err := r.cache.MasterList(ctx)
	switch {
	case errors.Is(err, schema.ErrMasterListMissing):
		d.CacheError = err.Error()
		r.logger.Printf("WARNING: resolver: %v", err)
		return r.finish(&d, OutcomeMasterListMissing, MasterListMissing)
	case err != nil:
		d.CacheError = err.Error()
		r.logger.Printf("WARNING: resolver: %v", err)
		return r.finish(&d, OutcomeCacheUnavailable, CacheUnavailable)
	}
	d.MasterList = master

	d.Matched = MatchEntities(d.Combined, master)
	if len(d.Matched) == 0 {
		r.logger.Printf("WARNING: resolver: no cached schema matches candidates %s", strings.Join(d.Combined, ", "))
		return r.finish(&d, OutcomeNoMatch, NoSchemaAvailable)
	}

	fields, err := r.cache.Fields(ctx, d.Matched)
	if err != nil {
		d.CacheError = err.Error()
		if errors.Is(err, schema.ErrUnavailable) && len(fields) == 0 {
			r.logger.Printf("WARNING: resolver: %v", err)
			return r.finish(&d, OutcomeCacheUnavailable, CacheUnavailable)
		}
		r.logger.Printf("WARNING: resolver: partial field read: %v", err)
	}

	text, omitted := r.render(d.Matched, fields)
	d.Omitted = omitted
	if text == "" {
		return r.finish(&d, OutcomeNoMatch, NoSchemaAvailable)
	}
	return r.finish(&d, OutcomeGrounded, text)
}

func (r *Resolver) finish(d *Diagnostics, outcome Outcome, text string) (string, Diagnostics) {
	d.Outcome = outcome
	d.FinalContext = text
	return text, *d
}

// render formats one block per entity in names order. Entities without
// cached fields, or whose block would exceed the size bound, are omitted.
func (r *Resolver) render(names []string, fields map[string][]schema.Field) (string, []string) {
	var (
		blocks  []string
		omitted []string
		size    int
	)
	for _, name := range names {
		fs, ok := fields[name]
		if !ok {
			omitted = append(omitted, name)
			continue
		}
		block := FormatBlock(name, fs)
		added := len(block)
		if len(blocks) > 0 {
			added += len(blockSeparator)
		}
		if r.maxBytes > 0 && size+added > r.maxBytes {
			omitted = append(omitted, name)
			continue
		}
		blocks = append(blocks, block)
		size += added
	}
	if len(omitted) > 0 {
		r.logger.Printf("WARNING: resolver: omitted from context: %s", strings.Join(omitted, ", "))
	}
	return strings.Join(blocks, blockSeparator), omitted
}

const blockSeparator = "\n\n"

// FormatBlock renders the createable fields of one entity.
func FormatBlock(name string, fields []schema.Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Createable {
			parts = append(parts, fmt.Sprintf("%s (%s)", f.Name, f.Type))
		}
	}
	return "Object: " + name + "\nFields: " + strings.Join(parts, ", ")
}
