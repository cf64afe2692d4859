// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package vectorindex provides nearest-neighbour search over chunk
// embeddings with plain similarity and maximal marginal relevance (MMR)
// retrieval. Memory is a flat cosine index persisted to two files;
// the pgstore subpackage keeps vectors in PostgreSQL.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/pdiddy/paperqa/pkg/types"
)

// DefaultLambda weighs relevance against diversity in MMR search.
const DefaultLambda = 0.5

var (
	// ErrDimensionMismatch is returned when a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrCorrupt is returned when persisted index artifacts are inconsistent.
	ErrCorrupt = errors.New("corrupt index artifacts")
)

// Entry is one indexed chunk.
type Entry struct {
	ID       string         `yaml:"id"`
	Vector   []float32      `yaml:"-"`
	Text     string         `yaml:"text"`
	Metadata types.Metadata `yaml:"metadata"`
}

// Hit is a search result with its cosine similarity to the query.
type Hit struct {
	Entry
	Score float64
}

// Store is the index contract the collection depends on.
type Store interface {
	Add(ctx context.Context, entries []Entry) error
	SimilaritySearch(ctx context.Context, query []float32, k int) ([]Hit, error)
	MaxMarginalRelevanceSearch(ctx context.Context, query []float32, k, fetchK int, lambda float64) ([]Hit, error)
	Count(ctx context.Context) (int, error)
	// IDs lists the identifiers of every stored entry in no particular order.
	IDs(ctx context.Context) ([]string, error)
	Reset(ctx context.Context) error
}

// Memory is an in-process flat index. Appends copy the entry slice and
// swap it under the write lock, so a search always scores a complete
// snapshot.
type Memory struct {
	mu      sync.RWMutex
	dim     int
	entries []Entry
	norms   []float64
}

// NewMemory returns an empty index. A zero dim is fixed by the first Add.
func NewMemory(dim int) *Memory {
	return &Memory{dim: dim}
}

// FromEntries builds an index from entries in one step.
func FromEntries(entries []Entry) (*Memory, error) {
	m := NewMemory(0)
	if err := m.Add(context.Background(), entries); err != nil {
		return nil, err
	}
	return m, nil
}

// Dim returns the vector dimension, or 0 before the first Add.
func (m *Memory) Dim() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dim
}

// Len returns the number of entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Count implements Store.
func (m *Memory) Count(_ context.Context) (int, error) {
	return m.Len(), nil
}

// IDs implements Store.
func (m *Memory) IDs(_ context.Context) ([]string, error) {
	entries, _ := m.snapshot()
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids, nil
}

// Entries returns a snapshot of all entries in insertion order.
func (m *Memory) Entries() []Entry {
	entries, _ := m.snapshot()
	return entries
}

// Add appends entries. Either all entries are added or none are.
func (m *Memory) Add(_ context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dim := m.dim
	if dim == 0 {
		dim = len(entries[0].Vector)
	}
	if dim == 0 {
		return fmt.Errorf("entry %s: empty vector: %w", entries[0].ID, ErrDimensionMismatch)
	}

	next := make([]Entry, len(m.entries), len(m.entries)+len(entries))
	copy(next, m.entries)
	norms := make([]float64, len(m.norms), len(m.norms)+len(entries))
	copy(norms, m.norms)

	for _, e := range entries {
		if len(e.Vector) != dim {
			return fmt.Errorf("entry %s has %d dimensions, index has %d: %w",
				e.ID, len(e.Vector), dim, ErrDimensionMismatch)
		}
		v := make([]float32, dim)
		copy(v, e.Vector)
		e.Vector = v
		next = append(next, e)
		norms = append(norms, norm(v))
	}

	m.dim = dim
	m.entries = next
	m.norms = norms
	return nil
}

// Reset removes every entry and forgets the dimension.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dim = 0
	m.entries = nil
	m.norms = nil
	return nil
}

func (m *Memory) snapshot() ([]Entry, []float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries, m.norms
}

// SimilaritySearch returns the k entries most similar to query, best first.
func (m *Memory) SimilaritySearch(_ context.Context, query []float32, k int) ([]Hit, error) {
	entries, norms := m.snapshot()
	return rank(entries, norms, query, k)
}

// MaxMarginalRelevanceSearch fetches the fetchK most similar entries and
// greedily picks k of them, trading relevance against similarity to the
// entries already picked.
func (m *Memory) MaxMarginalRelevanceSearch(_ context.Context, query []float32, k, fetchK int, lambda float64) ([]Hit, error) {
	if fetchK < k {
		fetchK = k
	}
	entries, norms := m.snapshot()
	candidates, err := rank(entries, norms, query, fetchK)
	if err != nil {
		return nil, err
	}
	return MMR(candidates, k, lambda), nil
}

func rank(entries []Entry, norms []float64, query []float32, k int) ([]Hit, error) {
	if len(entries) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != len(entries[0].Vector) {
		return nil, fmt.Errorf("query has %d dimensions, index has %d: %w",
			len(query), len(entries[0].Vector), ErrDimensionMismatch)
	}

	qn := norm(query)
	hits := make([]Hit, len(entries))
	for i, e := range entries {
		hits[i] = Hit{Entry: e, Score: cosineWithNorms(query, e.Vector, qn, norms[i])}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

var _ Store = (*Memory)(nil)
