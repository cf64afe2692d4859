package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/pdiddy/paperqa/internal/chunk"
	"github.com/pdiddy/paperqa/internal/docs"
	"github.com/pdiddy/paperqa/internal/embed"
	"github.com/pdiddy/paperqa/internal/llm"
	"github.com/pdiddy/paperqa/internal/vectorindex"
	"github.com/pdiddy/paperqa/internal/vectorindex/pgstore"
	"github.com/pdiddy/paperqa/pkg/types"
)

// session is an open collection plus the resources it holds.
type session struct {
	cfg      types.Config
	docs     *docs.Docs
	embedder embed.Embedder

	cache *llm.Cache
	pg    *pgstore.Store
}

// openSession loads the collection in cfg.Collection.Dir, wiring the
// configured embedder, models, response cache and vector index.
func openSession(ctx context.Context, cfg types.Config) (*session, error) {
	embedder, err := embed.New(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("configuring embeddings: %w", err)
	}

	s := &session{cfg: cfg, embedder: embedder}
	opts := docs.Options{
		Embedder:          embedder,
		LLM:               llm.NamedModel(cfg.AI.Model),
		Factory:           llm.NewFactory(cfg.AI, httpClient(cfg.Search.HTTPConfig)),
		Chunking:          chunk.Options{ChunkChars: cfg.Collection.ChunkChars, Overlap: cfg.Collection.Overlap},
		Concurrency:       cfg.Collection.Concurrency,
		RequestsPerSecond: cfg.Collection.RequestsPerSecond,
		Logger:            logger,
	}
	if cfg.AI.SummaryModel != "" {
		opts.SummaryLLM = llm.NamedModel(cfg.AI.SummaryModel)
	}

	if tokens, err := llm.NewTokenCounter(); err != nil {
		logger.Warn("token counting disabled", "error", err)
	} else {
		opts.Tokens = tokens
	}

	if cfg.AI.CachePath != "" {
		cache, err := llm.OpenCache(cfg.AI.CachePath)
		if err != nil {
			return nil, err
		}
		s.cache = cache
		opts.Cache = cache
	}

	switch cfg.Index.Backend {
	case types.IndexMemory, "":
	case types.IndexPgvector:
		opts.NewIndex = s.pgvectorIndex(cfg.Index)
	default:
		s.Close()
		return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}

	if err := os.MkdirAll(cfg.Collection.Dir, 0o755); err != nil {
		s.Close()
		return nil, fmt.Errorf("creating collection directory: %w", err)
	}
	d, err := docs.Load(ctx, cfg.Collection.Dir, opts)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.docs = d
	logger.Debug("opened collection", "dir", cfg.Collection.Dir, "documents", d.Len(), "index", cfg.Index.Backend)
	return s, nil
}

// pgvectorIndex opens the pgvector store on first use and hands the same
// store to every later call.
func (s *session) pgvectorIndex(cfg types.IndexConfig) docs.IndexFactory {
	var mu sync.Mutex
	return func(ctx context.Context) (vectorindex.Store, error) {
		mu.Lock()
		defer mu.Unlock()
		if s.pg == nil {
			pg, err := pgstore.Open(ctx, cfg)
			if err != nil {
				return nil, err
			}
			s.pg = pg
		}
		return s.pg, nil
	}
}

// save writes the collection back to its directory.
func (s *session) save(ctx context.Context) error {
	if err := docs.Save(ctx, s.docs, s.cfg.Collection.Dir); err != nil {
		return fmt.Errorf("saving collection: %w", err)
	}
	return nil
}

// Close releases the cache and database connections.
func (s *session) Close() error {
	var errs []error
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	if s.pg != nil {
		s.pg.Close()
	}
	return errors.Join(errs...)
}

func httpClient(cfg types.HTTPConfig) *http.Client {
	return &http.Client{Timeout: cfg.Timeout}
}

// withSession loads the configuration, opens the collection, runs fn and
// closes the collection.
func withSession(ctx context.Context, fn func(s *session) error) error {
	s, err := openSession(ctx, loadConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warn("closing collection", "error", err)
		}
	}()
	return fn(s)
}
