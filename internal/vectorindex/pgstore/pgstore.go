// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pgstore keeps a collection's vectors in PostgreSQL with the
// pgvector extension. It implements vectorindex.Store; MMR re-ranks the
// fetchK nearest rows in process.
package pgstore

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/pdiddy/paperqa/internal/vectorindex"
	"github.com/pdiddy/paperqa/pkg/types"
)

// DefaultTable is used when IndexConfig.Table is empty.
const DefaultTable = "paperqa_chunks"

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Store is a pgvector-backed index.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

// Open connects to dsn and creates the table if needed.
func Open(ctx context.Context, cfg types.IndexConfig) (*Store, error) {
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pgvector backend requires a DSN")
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	s := &Store{pool: pool, table: table}
	if err := s.createSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) createSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			dockey TEXT NOT NULL,
			key TEXT NOT NULL,
			citation TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding vector NOT NULL
		)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_dockey ON %s(dockey)`, s.table, s.table),
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Add inserts entries in one transaction.
func (s *Store) Add(ctx context.Context, entries []vectorindex.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	insert := fmt.Sprintf(`INSERT INTO %s (id, dockey, key, citation, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)`, s.table)
	for _, e := range entries {
		batch.Queue(insert, e.ID, e.Metadata.DocKey, e.Metadata.Key, e.Metadata.Citation,
			e.Text, pgvector.NewVector(e.Vector))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting chunks: %w", err)
	}
	return tx.Commit(ctx)
}

// SimilaritySearch returns the k rows nearest to query by cosine distance.
func (s *Store) SimilaritySearch(ctx context.Context, query []float32, k int) ([]vectorindex.Hit, error) {
	return s.nearest(ctx, query, k)
}

// MaxMarginalRelevanceSearch fetches fetchK rows and applies MMR.
func (s *Store) MaxMarginalRelevanceSearch(ctx context.Context, query []float32, k, fetchK int, lambda float64) ([]vectorindex.Hit, error) {
	if fetchK < k {
		fetchK = k
	}
	candidates, err := s.nearest(ctx, query, fetchK)
	if err != nil {
		return nil, err
	}
	return vectorindex.MMR(candidates, k, lambda), nil
}

func (s *Store) nearest(ctx context.Context, query []float32, k int) ([]vectorindex.Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, dockey, key, citation, content, embedding,
			1 - (embedding <=> $1::vector) AS score
		FROM %s
		ORDER BY embedding <=> $1::vector, seq
		LIMIT $2`, s.table), pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("querying nearest chunks: %w", err)
	}
	defer rows.Close()

	var hits []vectorindex.Hit
	for rows.Next() {
		var h vectorindex.Hit
		var vec pgvector.Vector
		if err := rows.Scan(&h.ID, &h.Metadata.DocKey, &h.Metadata.Key, &h.Metadata.Citation,
			&h.Text, &vec, &h.Score); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		h.Metadata.UniqueID = h.ID
		h.Vector = vec.Slice()
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return hits, nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// IDs returns the identifiers of every stored chunk.
func (s *Store) IDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT id FROM %s`, s.table))
	if err != nil {
		return nil, fmt.Errorf("listing chunk ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning chunk ids: %w", err)
	}
	return ids, nil
}

// Reset deletes every stored chunk.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`TRUNCATE %s`, s.table)); err != nil {
		return fmt.Errorf("truncating %s: %w", s.table, err)
	}
	return nil
}

var _ vectorindex.Store = (*Store)(nil)
