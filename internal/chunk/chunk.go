// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package chunk splits documents into overlapping, bounded text chunks with
// per-chunk metadata. PDFs are read page by page so each chunk key records
// the page range it came from.
package chunk

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/pdiddy/paperqa/pkg/types"
)

// Defaults for Options.
const (
	DefaultChunkChars = 3000
	DefaultOverlap    = 100
)

// Options controls chunk size. The zero value selects the defaults.
type Options struct {
	ChunkChars int
	Overlap    int
}

func (o Options) normalized() (Options, error) {
	if o.ChunkChars <= 0 {
		o.ChunkChars = DefaultChunkChars
		if o.Overlap == 0 {
			o.Overlap = DefaultOverlap
		}
	}
	if o.Overlap < 0 {
		o.Overlap = 0
	}
	if o.Overlap >= o.ChunkChars {
		return o, fmt.Errorf("overlap %d must be smaller than chunk size %d", o.Overlap, o.ChunkChars)
	}
	return o, nil
}

// page is one unit of source text with its 1-based label.
type page struct {
	label string
	text  string
}

// Supported reports whether Parse reads files with path's extension.
// Extensionless files are read as plain text by Parse but are not
// reported here.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt", ".md", ".markdown":
		return true
	}
	return false
}

// Parse reads the document at path and returns chunk texts with matching
// metadata. PDF chunk keys read "<key> pages <first>-<last>"; plain text
// chunk keys read "<key> pos <n>".
func Parse(path, citation, key string, opts Options) ([]string, []types.Metadata, error) {
	opts, err := opts.normalized()
	if err != nil {
		return nil, nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		pages, err := readPDF(path)
		if err != nil {
			return nil, nil, err
		}
		texts, metas := splitPages(pages, citation, key, opts)
		return texts, metas, nil
	case ".txt", ".md", ".markdown", "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", path, err)
		}
		texts, metas := splitText(string(data), citation, key, opts)
		return texts, metas, nil
	default:
		return nil, nil, fmt.Errorf("unsupported document type %q", filepath.Ext(path))
	}
}

// Split cuts text into chunks of at most size characters where each chunk
// starts overlap characters before the previous one ended.
func Split(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 || size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var out []string
	for start := 0; ; start += size - overlap {
		end := start + size
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			return out
		}
		out = append(out, string(runes[start:end]))
	}
}

func splitText(text, citation, key string, opts Options) ([]string, []types.Metadata) {
	texts := Split(text, opts.ChunkChars, opts.Overlap)
	metas := make([]types.Metadata, len(texts))
	for i := range texts {
		metas[i] = newMetadata(citation, key, fmt.Sprintf("%s pos %d", key, i))
	}
	return texts, metas
}

// splitPages accumulates page text and emits a chunk whenever the buffer
// passes the chunk size. The tail is emitted when it holds more than the
// overlap.
func splitPages(pages []page, citation, key string, opts Options) ([]string, []types.Metadata) {
	var (
		texts  []string
		metas  []types.Metadata
		buf    []rune
		labels []string
	)
	emit := func(text []rune) {
		texts = append(texts, string(text))
		pg := labels[0] + "-" + labels[len(labels)-1]
		metas = append(metas, newMetadata(citation, key, fmt.Sprintf("%s pages %s", key, pg)))
	}

	for _, p := range pages {
		buf = append(buf, []rune(p.text)...)
		labels = append(labels, p.label)
		for len(buf) > opts.ChunkChars {
			emit(buf[:opts.ChunkChars])
			buf = append([]rune(nil), buf[opts.ChunkChars-opts.Overlap:]...)
			labels = []string{p.label}
		}
	}
	if len(buf) > opts.Overlap || (len(texts) == 0 && len(buf) > 0) {
		emit(buf)
	}
	return texts, metas
}

func newMetadata(citation, key, chunkKey string) types.Metadata {
	return types.Metadata{
		UniqueID: uuid.NewString(),
		DocKey:   key,
		Key:      chunkKey,
		Citation: citation,
	}
}
