// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Cache stores completions in SQLite keyed by model and request. The
// caller opens it, hands it to the collection, and closes it.
type Cache struct {
	db *sql.DB
}

// OpenCache opens or creates the cache database at path.
func OpenCache(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS completions (
		key TEXT PRIMARY KEY,
		model TEXT NOT NULL,
		response TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached response for key.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	var response string
	err := c.db.QueryRowContext(ctx, `SELECT response FROM completions WHERE key = ?`, key).Scan(&response)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading cache: %w", err)
	}
	return response, true, nil
}

// Put stores response under key, replacing any previous value.
func (c *Cache) Put(ctx context.Context, key, model, response string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO completions (key, model, response, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET response=excluded.response, created_at=excluded.created_at`,
		key, model, response, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}

// Len returns the number of cached completions.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT count(*) FROM completions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cache: %w", err)
	}
	return n, nil
}

// CacheKey hashes everything that determines a completion.
func CacheKey(model string, req Request) string {
	h := sha256.New()
	for _, part := range []string{
		model,
		req.System,
		req.Prompt,
		strconv.Itoa(req.MaxTokens),
		strconv.FormatFloat(float64(req.Temperature), 'g', -1, 32),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

type cachedClient struct {
	Client
	cache  *Cache
	logger *slog.Logger
}

// WithCache wraps c so identical requests are answered from cache. A nil
// cache returns c unchanged. Cache read and write failures are logged at
// debug on logger and fall through to the model.
func WithCache(c Client, cache *Cache, logger *slog.Logger) Client {
	if cache == nil {
		return c
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &cachedClient{Client: c, cache: cache, logger: logger}
}

func (c *cachedClient) Complete(ctx context.Context, req Request) (Response, error) {
	key := CacheKey(c.Name(), req)
	text, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Debug("completion cache read failed", "model", c.Name(), "error", err)
	} else if ok {
		return Response{Text: text, Cached: true}, nil
	}

	resp, err := c.Client.Complete(ctx, req)
	if err != nil {
		return Response{}, err
	}
	if err := c.cache.Put(ctx, key, c.Name(), resp.Text); err != nil {
		c.logger.Debug("completion cache write failed", "model", c.Name(), "error", err)
	}
	return resp, nil
}
