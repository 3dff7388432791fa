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
	"context"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// GraphCache is an LRU of built project graphs keyed by project root.
//
// Description:
//
//	Get serves an entry only while its file stamps are current; stale
//	entries are dropped on the spot. GetOrBuild collapses concurrent
//	builds for the same root into one via singleflight, so a burst of
//	requests after an invalidation costs a single build.
//
// Thread Safety:
//
//	Safe for concurrent use.
type GraphCache struct {
	entries *lru.Cache[string, *Entry]
	flight  singleflight.Group
	options Options

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewGraphCache creates a GraphCache.
func NewGraphCache(opts ...Option) (*GraphCache, error) {
	options := Options{Capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(&options)
	}

	c := &GraphCache{options: options}
	entries, err := lru.NewWithEvict[string, *Entry](options.Capacity, func(string, *Entry) {
		c.evictions.Add(1)
		recordCacheEviction(context.Background())
	})
	if err != nil {
		return nil, fmt.Errorf("cache init: %w", err)
	}
	c.entries = entries
	return c, nil
}

// Get returns the cached entry for a project root if present and fresh.
func (c *GraphCache) Get(ctx context.Context, projectRoot string) (*Entry, bool) {
	ctx, span := startCacheSpan(ctx, "Get", projectRoot)
	defer span.End()
	start := time.Now()

	entry, ok := c.entries.Get(projectRoot)
	if ok && entry.Stamps.Stale() {
		c.entries.Remove(projectRoot)
		entry, ok = nil, false
	}

	if ok {
		c.hits.Add(1)
		recordCacheHit(ctx)
	} else {
		c.misses.Add(1)
		recordCacheMiss(ctx)
	}
	setCacheSpanResult(span, ok)
	recordCacheGetLatency(ctx, time.Since(start), ok)
	return entry, ok
}

// Put stores a freshly built entry.
func (c *GraphCache) Put(projectRoot string, entry *Entry) {
	if entry == nil {
		return
	}
	entry.ProjectRoot = projectRoot
	if entry.BuiltAt.IsZero() {
		entry.BuiltAt = time.Now()
	}
	c.entries.Add(projectRoot, entry)
}

// GetOrBuild returns the fresh cached entry or builds one. Concurrent
// calls for the same root share a single build.
func (c *GraphCache) GetOrBuild(ctx context.Context, projectRoot string, build BuildFunc) (*Entry, error) {
	if entry, ok := c.Get(ctx, projectRoot); ok {
		return entry, nil
	}

	value, err, _ := c.flight.Do(projectRoot, func() (any, error) {
		// A concurrent flight may have filled the cache already.
		if entry, ok := c.entries.Get(projectRoot); ok && !entry.Stamps.Stale() {
			return entry, nil
		}

		result, stamps, err := build(projectRoot)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBuildFailed, projectRoot, err)
		}
		recordCacheBuild(ctx)

		entry := &Entry{
			ProjectRoot: projectRoot,
			Result:      result,
			Stamps:      stamps,
			BuiltAt:     time.Now(),
		}
		c.entries.Add(projectRoot, entry)
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*Entry), nil
}

// Invalidate drops the entry for a project root. Reports whether an
// entry was present.
func (c *GraphCache) Invalidate(projectRoot string) bool {
	return c.entries.Remove(projectRoot)
}

// Purge drops every entry.
func (c *GraphCache) Purge() {
	c.entries.Purge()
}

// Stats returns cache counters.
func (c *GraphCache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   c.entries.Len(),
	}
}
