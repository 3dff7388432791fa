// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache keeps built call graphs in memory so repeated queries
// against the same project skip the parse and build pipeline.
//
// Ownership Model:
//
//	The cache owns its entries. Callers get shared read access to the
//	frozen graph inside an Entry; frozen graphs are immutable, so no
//	reference counting is needed.
//
// Thread Safety:
//
//	All exported types are safe for concurrent use.
//
// Lifecycle:
//
//	cache, _ := NewGraphCache(WithCapacity(16))
//	entry, err := cache.GetOrBuild(ctx, root, buildFn)
//	...
//	watcher, _ := NewWatcher(root, debounce, cache.Invalidate)
//	watcher.Start(ctx)
//	defer watcher.Close()
package cache

import (
	"errors"
	"time"

	"github.com/AleutianAI/DebtScope/services/analyze/callgraph"
)

// Sentinel errors for cache operations.
var (
	// ErrBuildFailed wraps a builder error surfaced through GetOrBuild.
	ErrBuildFailed = errors.New("graph build failed")

	// ErrClosed is returned by watcher operations after Close.
	ErrClosed = errors.New("watcher closed")
)

// Entry is one cached project graph with the file stamps that decide
// its staleness.
type Entry struct {
	// ProjectRoot is the cache key.
	ProjectRoot string

	// Result holds the frozen graph and build counters.
	Result *callgraph.BuildResult

	// Stamps records per-file mtimes observed at build time.
	Stamps FileStamps

	// BuiltAt is when the entry was created.
	BuiltAt time.Time
}

// BuildFunc produces a fresh graph for a project root, returning the
// build result and the file stamps it was built from.
type BuildFunc func(projectRoot string) (*callgraph.BuildResult, FileStamps, error)

// Options configures a GraphCache.
type Options struct {
	// Capacity is the LRU size in cached projects.
	Capacity int
}

// Option is a functional option for NewGraphCache.
type Option func(*Options)

// WithCapacity sets the LRU capacity.
func WithCapacity(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Capacity = n
		}
	}
}

// DefaultCapacity is used when no capacity option is given.
const DefaultCapacity = 16

// Stats reports cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
}
