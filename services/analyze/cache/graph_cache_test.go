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
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/DebtScope/services/analyze/callgraph"
)

// fakeResult builds a minimal frozen graph wrapped in a BuildResult.
func fakeResult(t *testing.T) *callgraph.BuildResult {
	t.Helper()
	g := callgraph.NewGraph()
	id := callgraph.FunctionID{File: "main.go", Name: "main", Line: 1}
	require.NoError(t, g.AddFunction(id, callgraph.FunctionInfo{IsEntryPoint: true}))
	g.Freeze()
	return &callgraph.BuildResult{Graph: g, Stats: callgraph.BuildStats{Functions: 1}}
}

// countingBuilder returns a BuildFunc that counts invocations.
func countingBuilder(t *testing.T, calls *atomic.Int64, stamps FileStamps) BuildFunc {
	return func(projectRoot string) (*callgraph.BuildResult, FileStamps, error) {
		calls.Add(1)
		return fakeResult(t), stamps, nil
	}
}

func TestGetOrBuildCachesResult(t *testing.T) {
	cache, err := NewGraphCache()
	require.NoError(t, err)

	var calls atomic.Int64
	build := countingBuilder(t, &calls, nil)

	first, err := cache.GetOrBuild(context.Background(), "/proj", build)
	require.NoError(t, err)
	require.NotNil(t, first.Result)

	second, err := cache.GetOrBuild(context.Background(), "/proj", build)
	require.NoError(t, err)
	assert.Same(t, first, second, "second call must hit the cache")
	assert.Equal(t, int64(1), calls.Load(), "build must run once")

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, 1, stats.Entries)
}

func TestGetOrBuildSingleflight(t *testing.T) {
	cache, err := NewGraphCache()
	require.NoError(t, err)

	var calls atomic.Int64
	slowBuild := func(projectRoot string) (*callgraph.BuildResult, FileStamps, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return fakeResult(t), nil, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.GetOrBuild(context.Background(), "/proj", slowBuild)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load(), "concurrent callers must share one build")
}

func TestStaleEntryRebuilt(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(source, []byte("package main\n"), 0644))

	cache, err := NewGraphCache()
	require.NoError(t, err)

	var calls atomic.Int64
	build := func(projectRoot string) (*callgraph.BuildResult, FileStamps, error) {
		calls.Add(1)
		return fakeResult(t), CollectStamps([]string{source}), nil
	}

	_, err = cache.GetOrBuild(context.Background(), dir, build)
	require.NoError(t, err)

	// Bump the mtime well past filesystem resolution.
	newTime := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(source, newTime, newTime))

	_, ok := cache.Get(context.Background(), dir)
	assert.False(t, ok, "stale entry must not be served")

	_, err = cache.GetOrBuild(context.Background(), dir, build)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load(), "stale entry must trigger a rebuild")
}

func TestInvalidate(t *testing.T) {
	cache, err := NewGraphCache()
	require.NoError(t, err)

	cache.Put("/proj", &Entry{Result: fakeResult(t)})
	assert.True(t, cache.Invalidate("/proj"))
	assert.False(t, cache.Invalidate("/proj"), "second invalidation finds nothing")

	_, ok := cache.Get(context.Background(), "/proj")
	assert.False(t, ok)
}

func TestLRUEviction(t *testing.T) {
	cache, err := NewGraphCache(WithCapacity(2))
	require.NoError(t, err)

	cache.Put("/a", &Entry{Result: fakeResult(t)})
	cache.Put("/b", &Entry{Result: fakeResult(t)})
	cache.Put("/c", &Entry{Result: fakeResult(t)})

	_, ok := cache.Get(context.Background(), "/a")
	assert.False(t, ok, "oldest entry must be evicted")
	_, ok = cache.Get(context.Background(), "/c")
	assert.True(t, ok)
	assert.Equal(t, int64(1), cache.Stats().Evictions)
}

func TestBuildErrorNotCached(t *testing.T) {
	cache, err := NewGraphCache()
	require.NoError(t, err)

	var calls atomic.Int64
	failing := func(projectRoot string) (*callgraph.BuildResult, FileStamps, error) {
		calls.Add(1)
		return nil, nil, os.ErrPermission
	}

	_, err = cache.GetOrBuild(context.Background(), "/proj", failing)
	assert.ErrorIs(t, err, ErrBuildFailed)

	var callsOK atomic.Int64
	_, err = cache.GetOrBuild(context.Background(), "/proj", countingBuilder(t, &callsOK, nil))
	require.NoError(t, err, "a failed build must not poison the key")
	assert.Equal(t, int64(1), callsOK.Load())
}

func TestCollectStampsAndStale(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(present, []byte("package a\n"), 0644))
	missing := filepath.Join(dir, "gone.go")

	stamps := CollectStamps([]string{present, missing})
	require.Len(t, stamps, 2)
	assert.False(t, stamps[present].IsZero())
	assert.True(t, stamps[missing].IsZero())
	assert.False(t, stamps.Stale(), "nothing changed yet")

	// A file appearing where none was stamped makes the entry stale.
	require.NoError(t, os.WriteFile(missing, []byte("package a\n"), 0644))
	assert.True(t, stamps.Stale())

	assert.False(t, FileStamps{}.Stale(), "empty stamps never go stale")
}
