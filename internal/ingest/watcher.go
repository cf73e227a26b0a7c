// SPDX-License-Identifier: MIT
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/careshift/careshift/internal/log"
	"github.com/careshift/careshift/internal/metrics"
)

// watchDebounce delays processing after the last write event so partially
// written files are not picked up mid-flush.
const watchDebounce = 200 * time.Millisecond

// Watcher ingests JSON bundle files dropped into a directory. Each create or
// write of a *.json file replaces the working state with that bundle.
type Watcher struct {
	dir    string
	loader *Loader

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewWatcher(dir string, loader *Loader) *Watcher {
	return &Watcher{
		dir:    dir,
		loader: loader,
		timers: make(map[string]*time.Timer),
	}
}

// Run watches the directory until ctx is canceled. Existing *.json files are
// processed once at startup so a pre-seeded directory works without a touch.
func (w *Watcher) Run(ctx context.Context) error {
	logger := log.WithComponent("ingest-watcher")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ingest: fsnotify.NewWatcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("ingest: watch directory %s: %w", w.dir, err)
	}

	w.processExisting(ctx)

	logger.Info().
		Str("event", "ingest.watcher_started").
		Str("path", w.dir).
		Msg("watching for bundle files")

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("ingest: watcher channel closed")
			}
			if !isBundleFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.scheduleProcess(ctx, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("ingest: watcher error channel closed")
			}
			logger.Warn().Err(err).Str("event", "ingest.watcher_error").Msg("fsnotify watcher error")
		}
	}
}

func (w *Watcher) processExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !isBundleFile(entry.Name()) {
			continue
		}
		w.processFile(ctx, filepath.Join(w.dir, entry.Name()))
	}
}

// scheduleProcess debounces per file: rapid write events collapse into one
// processing pass after the last one.
func (w *Watcher) scheduleProcess(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Reset(watchDebounce)
		return
	}
	w.timers[path] = time.AfterFunc(watchDebounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.processFile(ctx, path)
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) processFile(ctx context.Context, path string) {
	logger := log.WithComponent("ingest-watcher")

	f, err := os.Open(path) // #nosec G304 -- path comes from the watched directory
	if err != nil {
		metrics.IncIngestBundle("watcher", "error")
		logger.Error().Err(err).Str("event", "ingest.file_open_error").Str("path", path).Msg("failed to open bundle file")
		return
	}
	defer func() {
		_ = f.Close()
	}()

	bundle, err := ParseBundle(f)
	if err != nil {
		metrics.IncIngestBundle("watcher", "invalid")
		logger.Warn().Err(err).Str("event", "ingest.file_parse_error").Str("path", path).Msg("failed to parse bundle file")
		return
	}

	if err := w.loader.Apply(ctx, bundle, "watcher"); err != nil {
		logger.Warn().Err(err).Str("event", "ingest.file_apply_error").Str("path", path).Msg("failed to apply bundle file")
	}
}

func isBundleFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".json")
}
