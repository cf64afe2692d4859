// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package docs is a question-answering collection of chunked documents. It
// allocates a unique citation key per document, keeps a vector index over
// every chunk, selects evidence for a question by retrieval plus per-chunk
// summaries, and composes a cited answer from that evidence.
//
// Collaborators are injected through Options: an embed.Embedder, language
// models as llm.Model values, an optional llm.Cache, and an IndexFactory
// choosing the vector store.
package docs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/paperqa/internal/chunk"
	"github.com/pdiddy/paperqa/internal/embed"
	"github.com/pdiddy/paperqa/internal/fanout"
	"github.com/pdiddy/paperqa/internal/llm"
	"github.com/pdiddy/paperqa/internal/vectorindex"
	"github.com/pdiddy/paperqa/pkg/types"
)

// IndexFactory opens the vector store a collection builds into. The store
// may hold rows from an earlier run; the collection resets it before a
// full build.
type IndexFactory func(ctx context.Context) (vectorindex.Store, error)

// MemoryIndex returns an IndexFactory for in-process indexes of dim.
func MemoryIndex(dim int) IndexFactory {
	return func(context.Context) (vectorindex.Store, error) {
		return vectorindex.NewMemory(dim), nil
	}
}

// Options configures a collection.
type Options struct {
	// Embedder embeds chunks and questions. Required.
	Embedder embed.Embedder

	// LLM answers questions. SummaryLLM writes chunk summaries, citations
	// and search queries; when zero LLM is used.
	LLM        llm.Model
	SummaryLLM llm.Model

	// Factory resolves named models.
	Factory llm.Factory

	// Cache, when set, answers repeated prompts. The caller closes it.
	Cache *llm.Cache

	// Tokens estimates usage for backends that report none, and bounds
	// the text sent for citation generation.
	Tokens *llm.TokenCounter

	// NewIndex opens the vector store. Defaults to MemoryIndex.
	NewIndex IndexFactory

	// IndexDir holds persisted index artifacts, removed on Clear.
	IndexDir string

	// Chunking is the default chunk size for Add.
	Chunking chunk.Options

	// Concurrency bounds parallel summary calls; 0 means one per candidate.
	Concurrency int

	// RequestsPerSecond throttles summary calls; 0 means unlimited.
	RequestsPerSecond float64

	Logger *slog.Logger

	// Now is the clock, for fallback citations and AddedAt.
	Now func() time.Time
}

// Docs is a collection of documents. It is safe for concurrent use.
type Docs struct {
	embedder embed.Embedder
	answerer llm.Client
	summary  llm.Client
	tokens   *llm.TokenCounter
	newIndex IndexFactory
	indexDir string
	chunking chunk.Options
	width    int
	limiter  *rate.Limiter
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.RWMutex
	docs  map[string]*types.Document
	order []string
	keys  map[string]bool

	// indexMu serializes index builds and appends. index is nil until the
	// first query or the first add after a build.
	indexMu sync.Mutex
	index   vectorindex.Store

	usageMu sync.Mutex
	usage   llm.Usage
}

// New returns an empty collection.
func New(opts Options) (*Docs, error) {
	if opts.Embedder == nil {
		return nil, fmt.Errorf("%w: an embedder is required", ErrInvalidParameter)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	answerer, err := opts.LLM.Resolve(opts.Factory)
	if err != nil {
		return nil, fmt.Errorf("resolving answer model: %w", err)
	}
	summary := answerer
	if !opts.SummaryLLM.IsZero() {
		if summary, err = opts.SummaryLLM.Resolve(opts.Factory); err != nil {
			return nil, fmt.Errorf("resolving summary model: %w", err)
		}
	}

	d := &Docs{
		embedder: opts.Embedder,
		answerer: wrapClient(answerer, opts),
		summary:  wrapClient(summary, opts),
		tokens:   opts.Tokens,
		newIndex: opts.NewIndex,
		indexDir: opts.IndexDir,
		chunking: opts.Chunking,
		width:    opts.Concurrency,
		limiter:  fanout.NewLimiter(opts.RequestsPerSecond),
		logger:   opts.Logger,
		now:      opts.Now,
		docs:     make(map[string]*types.Document),
		keys:     make(map[string]bool),
	}
	if d.newIndex == nil {
		d.newIndex = MemoryIndex(opts.Embedder.Dimensions())
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d, nil
}

// wrapClient layers usage estimates under the response cache so cached
// answers report no usage.
func wrapClient(c llm.Client, opts Options) llm.Client {
	return llm.WithCache(llm.WithUsageEstimate(c, opts.Tokens), opts.Cache, opts.Logger)
}

// Len returns the number of documents.
func (d *Docs) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.docs)
}

// Keys returns the allocated document keys, sorted.
func (d *Docs) Keys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	keys := make([]string, 0, len(d.keys))
	for k := range d.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether source was added.
func (d *Docs) Has(source string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.docs[source]
	return ok
}

// Previews lists documents in insertion order without their text.
func (d *Docs) Previews() []types.DocPreview {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]types.DocPreview, 0, len(d.order))
	for _, src := range d.order {
		doc := d.docs[src]
		out = append(out, types.DocPreview{
			Chunks:   len(doc.Chunks),
			Key:      doc.Key,
			Citation: doc.Citation,
			Source:   doc.Source,
		})
	}
	return out
}

// Usage returns the tokens spent by every model call so far.
func (d *Docs) Usage() llm.Usage {
	d.usageMu.Lock()
	defer d.usageMu.Unlock()
	return d.usage
}

func (d *Docs) addUsage(u llm.Usage) {
	d.usageMu.Lock()
	d.usage.Add(u)
	d.usageMu.Unlock()
}

// documents returns the documents in insertion order.
func (d *Docs) documents() []*types.Document {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*types.Document, 0, len(d.order))
	for _, src := range d.order {
		out = append(out, d.docs[src])
	}
	return out
}

// ensureIndex returns the index, building it from every chunk first if
// it does not exist.
func (d *Docs) ensureIndex(ctx context.Context) (vectorindex.Store, error) {
	d.indexMu.Lock()
	defer d.indexMu.Unlock()
	if err := d.buildIndexLocked(ctx); err != nil {
		return nil, err
	}
	return d.index, nil
}

// buildIndexLocked builds the index when absent. indexMu must be held.
func (d *Docs) buildIndexLocked(ctx context.Context) error {
	if d.index != nil {
		return nil
	}

	var entries []vectorindex.Entry
	var texts []string
	for _, doc := range d.documents() {
		for _, c := range doc.Chunks {
			entries = append(entries, vectorindex.Entry{ID: c.Metadata.UniqueID, Text: c.Text, Metadata: c.Metadata})
			texts = append(texts, c.Text)
		}
	}

	store, err := d.newIndex(ctx)
	if err != nil {
		return fmt.Errorf("opening vector index: %w", err)
	}
	if err := store.Reset(ctx); err != nil {
		return fmt.Errorf("resetting vector index: %w", err)
	}
	if len(texts) > 0 {
		vectors, err := d.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding chunks: %w", err)
		}
		for i := range entries {
			entries[i].Vector = vectors[i]
		}
		if err := store.Add(ctx, entries); err != nil {
			return fmt.Errorf("building vector index: %w", err)
		}
	}

	d.logger.Debug("built vector index", "chunks", len(entries))
	d.index = store
	return nil
}

func entriesFor(chunks []types.Chunk, vectors [][]float32) []vectorindex.Entry {
	entries := make([]vectorindex.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = vectorindex.Entry{ID: c.Metadata.UniqueID, Vector: vectors[i], Text: c.Text, Metadata: c.Metadata}
	}
	return entries
}
