// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docs

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/pdiddy/paperqa/internal/chunk"
	"github.com/pdiddy/paperqa/internal/llm"
	"github.com/pdiddy/paperqa/internal/vectorindex"
	"github.com/pdiddy/paperqa/pkg/types"
)

// citationTokens bounds the text sent to the citation prompt.
const citationTokens = 1500

// AddRequest describes a document to add.
type AddRequest struct {
	// Path is the document file. Its absolute form identifies the
	// document, so relative spellings of one file collide.
	Path string

	// Citation is generated from the first chunk when empty.
	Citation string

	// Key is derived from the citation when empty.
	Key string

	// DisableTextCheck skips the entropy heuristic. The minimum length
	// check always applies.
	DisableTextCheck bool

	// ChunkChars and Overlap override the collection's chunking.
	ChunkChars int
	Overlap    int
}

// Add chunks the document at req.Path, allocates its key and adds it to the
// collection. The returned key may carry a suffix when the derived key was
// taken. When the vector index exists the new chunks are embedded and
// appended to it.
func (d *Docs) Add(ctx context.Context, req AddRequest) (string, error) {
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", req.Path, err)
	}
	req.Path = abs
	if d.Has(req.Path) {
		return "", fmt.Errorf("%w: %s", ErrDuplicateDocument, req.Path)
	}

	opts := d.chunking
	if req.ChunkChars > 0 {
		opts = chunk.Options{ChunkChars: req.ChunkChars, Overlap: req.Overlap}
	}
	// Chunk keys are relabelled once the document key is known.
	texts, metas, err := chunk.Parse(req.Path, "", "", opts)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", req.Path, err)
	}

	joined := strings.Join(texts, "")
	if len(joined) < minTextChars || (!req.DisableTextCheck && !MaybeIsText(joined)) {
		return "", fmt.Errorf("%w: %s (disable the text check to add it anyway)", ErrNotText, req.Path)
	}

	citation := req.Citation
	if citation == "" {
		if citation, err = d.citation(ctx, texts[0]); err != nil {
			return "", err
		}
		if !usableCitation(citation) {
			citation = fallbackCitation(req.Path, d.now())
		}
	}

	base := req.Key
	if base == "" {
		if base, err = DeriveKey(citation); err != nil {
			return "", err
		}
	}

	chunks := make([]types.Chunk, len(texts))
	for i := range texts {
		chunks[i] = types.Chunk{Text: texts[i], Metadata: metas[i]}
	}
	return d.insert(ctx, req.Path, base, citation, chunks, nil)
}

// AddFromEmbeddings adds a document whose chunks were embedded by the
// caller. The key is taken from metadatas[0].DocKey; when it must be
// suffixed every metadata entry is rewritten to the allocated key. The
// vector index is created from existing documents when absent, then the
// supplied vectors are appended.
func (d *Docs) AddFromEmbeddings(ctx context.Context, path string, texts []string, embeddings [][]float32, metadatas []types.Metadata) (string, error) {
	if len(texts) == 0 || len(texts) != len(embeddings) || len(texts) != len(metadatas) {
		return "", fmt.Errorf("%w: %d texts, %d embeddings, %d metadata entries",
			ErrInvalidParameter, len(texts), len(embeddings), len(metadatas))
	}
	if d.Has(path) {
		return "", fmt.Errorf("%w: %s", ErrDuplicateDocument, path)
	}

	base := metadatas[0].DocKey
	if base == "" {
		return "", fmt.Errorf("%w: metadata carries no document key", ErrKeyDerivation)
	}

	chunks := make([]types.Chunk, len(texts))
	for i := range texts {
		chunks[i] = types.Chunk{Text: texts[i], Metadata: metadatas[i]}
	}
	return d.insert(ctx, path, base, metadatas[0].Citation, chunks, embeddings)
}

// insert allocates a key, relabels chunk metadata and records the document.
// With vectors nil the chunks are embedded only if the index exists.
func (d *Docs) insert(ctx context.Context, path, base, citation string, chunks []types.Chunk, vectors [][]float32) (string, error) {
	d.indexMu.Lock()
	defer d.indexMu.Unlock()

	if vectors != nil {
		if err := d.buildIndexLocked(ctx); err != nil {
			return "", err
		}
	}

	d.mu.Lock()
	if _, ok := d.docs[path]; ok {
		d.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrDuplicateDocument, path)
	}
	key, err := allocateKey(d.keys, base)
	if err != nil {
		d.mu.Unlock()
		return "", err
	}
	// Reserve the key while embedding outside the lock.
	d.keys[key] = true
	d.mu.Unlock()

	relabel(chunks, base, key, citation)

	if d.index != nil {
		if err := d.appendLocked(ctx, chunks, vectors); err != nil {
			d.mu.Lock()
			delete(d.keys, key)
			d.mu.Unlock()
			return "", err
		}
	}

	d.mu.Lock()
	d.docs[path] = &types.Document{
		Source:   path,
		Key:      key,
		Citation: citation,
		Chunks:   chunks,
		AddedAt:  d.now(),
	}
	d.order = append(d.order, path)
	d.mu.Unlock()

	d.logger.Info("added document", "path", path, "key", key, "chunks", len(chunks))
	return key, nil
}

// appendLocked adds chunks to the existing index. indexMu must be held.
func (d *Docs) appendLocked(ctx context.Context, chunks []types.Chunk, vectors [][]float32) error {
	if vectors == nil {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		var err error
		if vectors, err = d.embedder.EmbedDocuments(ctx, texts); err != nil {
			return fmt.Errorf("embedding chunks: %w", err)
		}
	}
	if err := d.index.Add(ctx, entriesFor(chunks, vectors)); err != nil {
		return fmt.Errorf("adding to vector index: %w", err)
	}
	return nil
}

// relabel sets every chunk's document key and fills missing fields. Chunk
// keys built on the base key, or on no key at all, move to key; a base key
// embedded in a token (abstract_Smith2020) moves with it.
func relabel(chunks []types.Chunk, base, key, citation string) {
	for i := range chunks {
		m := &chunks[i].Metadata
		switch {
		case m.Key == "" || m.Key == base:
			m.Key = key
		case strings.HasPrefix(m.Key, " "):
			m.Key = key + m.Key
		case base != "" && base != key:
			m.Key = rekey(m.Key, base, key)
		}
		m.DocKey = key
		if m.Citation == "" {
			m.Citation = citation
		}
		if m.UniqueID == "" {
			m.UniqueID = uuid.NewString()
		}
	}
}

// rekey replaces base with key in every space separated field of chunkKey
// where base ends the field. Smith2020 inside Smith2020b is left alone.
func rekey(chunkKey, base, key string) string {
	fields := strings.Split(chunkKey, " ")
	for i, f := range fields {
		if strings.HasSuffix(f, base) {
			fields[i] = strings.TrimSuffix(f, base) + key
		}
	}
	return strings.Join(fields, " ")
}

// citation asks the summary model for a citation of text.
func (d *Docs) citation(ctx context.Context, text string) (string, error) {
	prompt, err := render(citationPromptTmpl, citationInput{Text: d.tokens.Truncate(text, citationTokens)})
	if err != nil {
		return "", err
	}
	resp, err := d.summary.Complete(ctx, llm.Request{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("generating citation: %w", err)
	}
	d.addUsage(resp.Usage)
	return strings.TrimSpace(resp.Text), nil
}

// Clear removes every document, key and the vector index, including
// persisted index artifacts. Clearing an empty collection is a no-op.
func (d *Docs) Clear(ctx context.Context) error {
	d.indexMu.Lock()
	defer d.indexMu.Unlock()

	d.mu.Lock()
	d.docs = make(map[string]*types.Document)
	d.order = nil
	d.keys = make(map[string]bool)
	d.mu.Unlock()

	if d.index != nil {
		if err := d.index.Reset(ctx); err != nil {
			return fmt.Errorf("resetting vector index: %w", err)
		}
		d.index = nil
	}
	if d.indexDir != "" {
		if err := vectorindex.Remove(d.indexDir); err != nil {
			return fmt.Errorf("removing index artifacts: %w", err)
		}
	}
	return nil
}
