// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package library keeps a collection in step with a papers directory.
// Sync adds every supported file the collection does not hold yet; Watch
// does the same as files appear. Metadata sidecars written by acquire
// supply the citation and key so no model call is needed for them.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pdiddy/paperqa/internal/acquire"
	"github.com/pdiddy/paperqa/internal/chunk"
	"github.com/pdiddy/paperqa/internal/docs"
)

// DefaultSettle is how long a file must stay unchanged before Watch adds it.
const DefaultSettle = 500 * time.Millisecond

// Collection is the part of docs.Docs a library writes to.
type Collection interface {
	Has(source string) bool
	Add(ctx context.Context, req docs.AddRequest) (string, error)
}

// Options configures Sync and Watch.
type Options struct {
	// Out receives one progress line per file. Nil discards.
	Out io.Writer

	Logger *slog.Logger

	// DisableTextCheck is passed to every add.
	DisableTextCheck bool

	// AfterAdd runs after each successful add, e.g. to save the collection.
	AfterAdd func(ctx context.Context) error

	// Settle overrides DefaultSettle.
	Settle time.Duration
}

func (o Options) normalized() Options {
	if o.Out == nil {
		o.Out = io.Discard
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Settle <= 0 {
		o.Settle = DefaultSettle
	}
	return o
}

// Result counts the outcome of a sync.
type Result struct {
	Added   []string
	Present int
	Failed  int
}

// Sync walks dir and adds every supported, non-hidden file the collection
// does not hold yet. Failures to add a single file are reported and
// counted; the walk continues. Sources are absolute paths.
func Sync(ctx context.Context, dir string, coll Collection, opts Options) (Result, error) {
	opts = opts.normalized()
	root, err := filepath.Abs(dir)
	if err != nil {
		return Result{}, fmt.Errorf("resolving %s: %w", dir, err)
	}

	var res Result
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != root && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !chunk.Supported(path) {
			return nil
		}
		if coll.Has(path) {
			res.Present++
			return nil
		}
		key, err := addFile(ctx, coll, path, opts)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			res.Failed++
			return nil
		}
		res.Added = append(res.Added, key)
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("syncing %s: %w", dir, err)
	}
	return res, nil
}

// addFile adds path with the citation and key from its sidecar, if any.
func addFile(ctx context.Context, coll Collection, path string, opts Options) (string, error) {
	req := docs.AddRequest{Path: path, DisableTextCheck: opts.DisableTextCheck}
	if paper, err := acquire.ReadSidecar(acquire.SidecarPath(path)); err == nil {
		req.Citation = paper.Citation
		req.Key = paper.Key
	} else if !errors.Is(err, fs.ErrNotExist) {
		opts.Logger.Warn("ignoring unreadable sidecar", "path", path, "error", err)
	}

	key, err := coll.Add(ctx, req)
	if err != nil {
		fmt.Fprintf(opts.Out, "failed:  %s (%v)\n", filepath.Base(path), err)
		opts.Logger.Debug("add failed", "path", path, "error", err)
		return "", err
	}
	fmt.Fprintf(opts.Out, "added:   %s as %s\n", filepath.Base(path), key)

	if opts.AfterAdd != nil {
		if err := opts.AfterAdd(ctx); err != nil {
			return key, fmt.Errorf("after adding %s: %w", path, err)
		}
	}
	return key, nil
}

// Watch syncs dir, then adds supported files created in or moved into dir
// until ctx is cancelled. A file is added once it has been quiet for the
// settle period so partially written files are not parsed. Watch returns
// nil when ctx is cancelled.
func Watch(ctx context.Context, dir string, coll Collection, opts Options) error {
	opts = opts.normalized()
	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(root); err != nil {
		return fmt.Errorf("watching %s: %w", root, err)
	}

	if _, err := Sync(ctx, root, coll, opts); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	opts.Logger.Info("watching for new papers", "dir", root)

	pending := make(map[string]time.Time)
	tick := time.NewTicker(opts.Settle / 2)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if path := candidate(ev); path != "" {
				pending[path] = time.Now()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			opts.Logger.Warn("watch error", "error", err)
		case now := <-tick.C:
			for path, seen := range pending {
				if now.Sub(seen) < opts.Settle {
					continue
				}
				delete(pending, path)
				if coll.Has(path) {
					continue
				}
				if _, err := os.Stat(path); err != nil {
					continue
				}
				if _, err := addFile(ctx, coll, path, opts); err != nil && ctx.Err() != nil {
					return nil
				}
			}
		}
	}
}

// candidate returns the path of an event worth adding, or "".
func candidate(ev fsnotify.Event) string {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return ""
	}
	if isHidden(filepath.Base(ev.Name)) || !chunk.Supported(ev.Name) {
		return ""
	}
	if info, err := os.Stat(ev.Name); err != nil || info.IsDir() {
		return ""
	}
	return ev.Name
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
