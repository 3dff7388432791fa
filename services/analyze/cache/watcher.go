// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// InvalidateFunc is called with the project root when watched source
// changes. GraphCache.Invalidate satisfies it.
type InvalidateFunc func(projectRoot string) bool

// sourceExtensions are the file suffixes whose changes invalidate a
// cached graph.
var sourceExtensions = map[string]bool{
	".go": true,
	".rs": true,
	".py": true,
	".js": true,
	".ts": true,
}

// Watcher invalidates cached graphs when source files under a project
// root change. Event bursts (editor saves, branch switches) are
// debounced so one invalidation covers the whole burst.
type Watcher struct {
	root       string
	fsw        *fsnotify.Watcher
	limiter    *rate.Limiter
	invalidate InvalidateFunc

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewWatcher creates a Watcher over projectRoot. debounce is the
// minimum gap between invalidations; invalidate receives the root.
func NewWatcher(projectRoot string, debounce time.Duration, invalidate InvalidateFunc) (*Watcher, error) {
	if invalidate == nil {
		return nil, fmt.Errorf("watcher: nil invalidate callback")
	}
	if debounce <= 0 {
		debounce = time.Second
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher init: %w", err)
	}

	w := &Watcher{
		root:       projectRoot,
		fsw:        fsw,
		limiter:    rate.NewLimiter(rate.Every(debounce), 1),
		invalidate: invalidate,
		done:       make(chan struct{}),
	}

	if err := w.addRecursive(projectRoot); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// addRecursive registers the root and every subdirectory, skipping
// hidden and vendor trees.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && (strings.HasPrefix(name, ".") || name == "vendor" || name == "node_modules" || name == "target") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Start launches the event loop. Call Close to stop it.
func (w *Watcher) Start() {
	go w.loop()
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("file watcher error",
				slog.String("root", w.root),
				slog.String("error", err.Error()))
		case <-w.done:
			return
		}
	}
}

// handleEvent invalidates on relevant source changes and keeps the
// directory set current as directories appear.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	// New directories need explicit registration; fsnotify is not
	// recursive.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				slog.Warn("failed to watch new directory",
					slog.String("path", event.Name),
					slog.String("error", err.Error()))
			}
			return
		}
	}

	if !sourceExtensions[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	if w.limiter.Allow() {
		slog.Debug("invalidating cached graph",
			slog.String("root", w.root),
			slog.String("trigger", event.Name))
		w.invalidate(w.root)
	}
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	w.closed = true
	close(w.done)
	return w.fsw.Close()
}
