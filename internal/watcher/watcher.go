// Package watcher re-runs directory ingestion when files under the directory change.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	ingestuc "github.com/kailas-cloud/cortex/internal/usecase/ingest"
)

// DefaultDebounce is how long the directory must stay quiet before a re-ingest.
const DefaultDebounce = 2 * time.Second

// IngestFunc ingests dir into the named collection.
type IngestFunc func(ctx context.Context, collection, dir string) (ingestuc.Result, error)

// Watcher watches one directory tree for one collection.
type Watcher struct {
	dir        string
	collection string
	ingest     IngestFunc
	accept     func(name string) bool
	debounce   time.Duration
	logger     *zap.Logger
}

// New creates a Watcher. Every non-hidden file counts as a change until WithFilter narrows it.
func New(dir, collection string, ingest IngestFunc, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		dir:        dir,
		collection: collection,
		ingest:     ingest,
		accept:     func(string) bool { return true },
		debounce:   DefaultDebounce,
		logger:     logger,
	}
}

// WithDebounce sets the quiet period before a re-ingest.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	if d > 0 {
		w.debounce = d
	}
	return w
}

// WithFilter restricts which file names trigger a re-ingest.
func (w *Watcher) WithFilter(accept func(name string) bool) *Watcher {
	if accept != nil {
		w.accept = accept
	}
	return w
}

// Run ingests the directory once, then again after every burst of changes,
// until ctx is done. Failed runs are logged and retried on the next change.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := w.addTree(fw, w.dir); err != nil {
		return err
	}

	w.run(ctx)

	// Timers are unbuffered since Go 1.23, so Reset needs no drain.
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) && isDir(ev.Name) && !hidden(ev.Name) {
				if err := w.addTree(fw, ev.Name); err != nil {
					w.logger.Warn("watch new directory", zap.String("directory", ev.Name), zap.Error(err))
				}
				timer.Reset(w.debounce)
				continue
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("change detected", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.String("directory", w.dir), zap.Error(err))

		case <-timer.C:
			w.run(ctx)
		}
	}
}

func (w *Watcher) run(ctx context.Context) {
	res, err := w.ingest(ctx, w.collection, w.dir)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		w.logger.Error("ingestion failed",
			zap.String("collection", w.collection),
			zap.String("directory", w.dir),
			zap.Error(err),
		)
		return
	}
	w.logger.Info("directory ingested",
		zap.String("collection", w.collection),
		zap.String("directory", w.dir),
		zap.Int("ingested", res.Ingested),
		zap.Int("skipped", res.Skipped),
		zap.Int("total_chunks", res.TotalChunks),
	)
}

// relevant reports whether ev can bring new content into the collection.
// Removals are ignored because ingestion only adds chunks; a renamed file
// arrives again as a Create under its new name.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	if hidden(ev.Name) || isDir(ev.Name) {
		return false
	}
	return w.accept(filepath.Base(ev.Name))
}

// addTree watches root and every non-hidden directory below it.
func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(path) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
