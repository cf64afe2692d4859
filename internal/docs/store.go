// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paperqa/internal/vectorindex"
	"github.com/pdiddy/paperqa/pkg/types"
)

// DBFile is the collection database inside a collection directory.
const DBFile = "docs.db"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		source TEXT PRIMARY KEY,
		doc_key TEXT NOT NULL UNIQUE,
		citation TEXT NOT NULL,
		added_at TEXT NOT NULL,
		position INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS chunks (
		unique_id TEXT PRIMARY KEY,
		source TEXT NOT NULL REFERENCES documents(source) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		chunk_key TEXT NOT NULL,
		citation TEXT NOT NULL,
		text TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source, position)`,
}

func openDB(dir string) (*sql.DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating collection directory: %w", err)
	}
	db, err := sql.Open("sqlite3", filepath.Join(dir, DBFile)+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	return db, nil
}

// Save writes the collection to dir: documents and chunks to docs.db and,
// for in-memory indexes, the vector index artifacts. The index is built
// first when it does not exist yet. Model clients are not saved.
func Save(ctx context.Context, d *Docs, dir string) error {
	store, err := d.ensureIndex(ctx)
	if err != nil {
		return err
	}

	db, err := openDB(dir)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("clearing documents: %w", err)
	}

	docStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents (source, doc_key, citation, added_at, position) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing document insert: %w", err)
	}
	defer docStmt.Close()
	chunkStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (unique_id, source, position, chunk_key, citation, text) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer chunkStmt.Close()

	for i, doc := range d.documents() {
		if _, err := docStmt.ExecContext(ctx, doc.Source, doc.Key, doc.Citation, doc.AddedAt.UTC().Format(time.RFC3339Nano), i); err != nil {
			return fmt.Errorf("saving document %s: %w", doc.Source, err)
		}
		for j, c := range doc.Chunks {
			if _, err := chunkStmt.ExecContext(ctx, c.Metadata.UniqueID, doc.Source, j, c.Metadata.Key, c.Metadata.Citation, c.Text); err != nil {
				return fmt.Errorf("saving chunk %s: %w", c.Metadata.Key, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing collection: %w", err)
	}

	if mem, ok := store.(*vectorindex.Memory); ok {
		if err := mem.Save(dir); err != nil {
			return fmt.Errorf("saving vector index: %w", err)
		}
	}
	return nil
}

// Load reads a collection saved by Save. A directory without docs.db
// yields an empty collection. Index artifacts that are missing, corrupt or
// out of step with the documents are ignored and the index is rebuilt on
// first use. opts.IndexDir defaults to dir.
func Load(ctx context.Context, dir string, opts Options) (*Docs, error) {
	if opts.IndexDir == "" {
		opts.IndexDir = dir
	}
	d, err := New(opts)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(dir, DBFile)); errors.Is(err, os.ErrNotExist) {
		return d, nil
	}

	db, err := openDB(dir)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if err := d.loadDocuments(ctx, db); err != nil {
		return nil, err
	}
	d.attachIndex(ctx, dir, opts.NewIndex)
	return d, nil
}

func (d *Docs) loadDocuments(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `SELECT source, doc_key, citation, added_at FROM documents ORDER BY position`)
	if err != nil {
		return fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var doc types.Document
		var addedAt string
		if err := rows.Scan(&doc.Source, &doc.Key, &doc.Citation, &addedAt); err != nil {
			return fmt.Errorf("scanning document: %w", err)
		}
		if doc.AddedAt, err = time.Parse(time.RFC3339Nano, addedAt); err != nil {
			return fmt.Errorf("parsing added_at of %s: %w", doc.Source, err)
		}
		d.docs[doc.Source] = &doc
		d.order = append(d.order, doc.Source)
		d.keys[doc.Key] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating documents: %w", err)
	}

	chunkRows, err := db.QueryContext(ctx,
		`SELECT unique_id, source, chunk_key, citation, text FROM chunks ORDER BY source, position`)
	if err != nil {
		return fmt.Errorf("querying chunks: %w", err)
	}
	defer chunkRows.Close()

	for chunkRows.Next() {
		var c types.Chunk
		var source string
		if err := chunkRows.Scan(&c.Metadata.UniqueID, &source, &c.Metadata.Key, &c.Metadata.Citation, &c.Text); err != nil {
			return fmt.Errorf("scanning chunk: %w", err)
		}
		doc, ok := d.docs[source]
		if !ok {
			return fmt.Errorf("chunk %s belongs to unknown document %s", c.Metadata.UniqueID, source)
		}
		c.Metadata.DocKey = doc.Key
		doc.Chunks = append(doc.Chunks, c)
	}
	return chunkRows.Err()
}

// attachIndex reuses a persisted index when it holds exactly the loaded
// chunks, compared by unique ID.
func (d *Docs) attachIndex(ctx context.Context, dir string, factory IndexFactory) {
	want := make(map[string]bool)
	for _, doc := range d.documents() {
		for _, c := range doc.Chunks {
			want[c.Metadata.UniqueID] = true
		}
	}

	var store vectorindex.Store
	if factory == nil {
		mem, err := vectorindex.Load(dir)
		if err != nil {
			d.logger.Debug("vector index not loaded, will rebuild", "dir", dir, "error", err)
			return
		}
		if dim := d.embedder.Dimensions(); dim > 0 && mem.Dim() > 0 && dim != mem.Dim() {
			d.logger.Info("embedding dimension changed, will rebuild index", "index", mem.Dim(), "embedder", dim)
			return
		}
		store = mem
	} else {
		s, err := factory(ctx)
		if err != nil {
			d.logger.Warn("opening vector index failed, will retry on first query", "error", err)
			return
		}
		store = s
	}

	ids, err := store.IDs(ctx)
	if err != nil {
		d.logger.Debug("listing vector index failed, will rebuild", "error", err)
		return
	}
	if !sameIDs(ids, want) {
		d.logger.Debug("vector index out of date, will rebuild", "entries", len(ids), "chunks", len(want))
		return
	}
	d.indexMu.Lock()
	d.index = store
	d.indexMu.Unlock()
}

// sameIDs reports whether ids lists each member of want exactly once.
func sameIDs(ids []string, want map[string]bool) bool {
	if len(ids) != len(want) {
		return false
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !want[id] || seen[id] {
			return false
		}
		seen[id] = true
	}
	return true
}
