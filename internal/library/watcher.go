// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package library

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/pagetutor/internal/layout"
)

// DefaultDebounce is how long a file must stay unchanged before import.
const DefaultDebounce = 500 * time.Millisecond

// ImportFunc observes a successful import.
type ImportFunc func(name, id string)

// =============================================================================
// WATCHER
// =============================================================================

// Watcher imports layout files written into a directory. Files present
// when Start is called are imported too.
type Watcher struct {
	store    *Store
	dir      string
	debounce time.Duration
	logger   *log.Logger

	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	pending  map[string]time.Time // path -> last change time
	onImport ImportFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher that imports from dir into store.
func NewWatcher(store *Store, dir string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New(dir + ": not a directory")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		store:    store,
		dir:      dir,
		debounce: debounce,
		logger:   log.Default(),
		watcher:  fw,
		pending:  make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// OnImport registers fn to run after each imported file.
func (w *Watcher) OnImport(fn ImportFunc) {
	w.mu.Lock()
	w.onImport = fn
	w.mu.Unlock()
}

// SetLogger sets the diagnostics logger.
func (w *Watcher) SetLogger(l *log.Logger) {
	w.logger = l
}

// Start queues existing files and begins watching.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			w.touch(filepath.Join(w.dir, e.Name()))
		}
	}

	w.wg.Add(2)
	go w.processEvents()
	go w.processPending()
	return nil
}

// Close stops watching and waits for in-flight imports.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

// ImportFile loads one layout file and stores it.
func (w *Watcher) ImportFile(path string) (string, error) {
	doc, err := layout.LoadFile(path)
	if err != nil {
		return "", err
	}
	return w.store.SaveDocument(w.ctx, doc)
}

func (w *Watcher) touch(path string) {
	if !layout.IsLayoutFile(path) {
		return
	}
	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Printf("WATCHER_PANIC | dir=%s err=%v", w.dir, r)
		}
	}()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.touch(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("WATCHER_ERROR | dir=%s err=%v", w.dir, err)
		}
	}
}

func (w *Watcher) processPending() {
	defer w.wg.Done()

	tick := w.debounce / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()

			w.mu.Lock()
			var ready []string
			for path, changed := range w.pending {
				if now.Sub(changed) >= w.debounce {
					ready = append(ready, path)
					delete(w.pending, path)
				}
			}
			onImport := w.onImport
			w.mu.Unlock()

			for _, path := range ready {
				id, err := w.ImportFile(path)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						w.logger.Printf("IMPORT_FAILED | path=%s err=%v", path, err)
					}
					continue
				}
				w.logger.Printf("IMPORTED | path=%s id=%s", path, id)
				if onImport != nil {
					doc, _ := w.store.Document(w.ctx, id)
					onImport(doc.Name, id)
				}
			}
		}
	}
}
