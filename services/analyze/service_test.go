// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analyze

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/DebtScope/services/analyze/callgraph"
	"github.com/AleutianAI/DebtScope/services/analyze/config"
	"github.com/AleutianAI/DebtScope/services/analyze/storage/badger"
)

const mainSource = `package main

func main() {
	run()
}

func run() {
	helper()
}
`

const utilSource = `package main

func helper() {
	leaf()
}

func leaf() {}
`

// writeProject lays out a two-file Go project with a cross-file call
// from run (main.go) to helper (util.go).
func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte(mainSource), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "util.go"), []byte(utilSource), 0644))
	return dir
}

func newTestService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	cfg := config.Default()
	cfg.Cache.Watch = false
	svc, err := NewService(*cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestAnalyzeBuildsGraph(t *testing.T) {
	svc := newTestService(t)
	root := writeProject(t)

	resp, err := svc.Analyze(context.Background(), root, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, resp.Functions)
	assert.Equal(t, 3, resp.CallEdges)
	assert.Equal(t, 2, resp.FilesProcessed)
	assert.Equal(t, 0, resp.FilesFailed)
	assert.Equal(t, 1, resp.EntryPoints)
	assert.False(t, resp.Incomplete)
	assert.False(t, resp.Cached)
	assert.Empty(t, resp.Errors)

	stats, err := svc.Stats(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.ResolvedCalls)
	assert.Equal(t, 0, stats.UnresolvedCalls)
	assert.Equal(t, 2, stats.Files)
}

func TestAnalyzeReturnsCachedGraph(t *testing.T) {
	svc := newTestService(t)
	root := writeProject(t)

	first, err := svc.Analyze(context.Background(), root, nil)
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := svc.Analyze(context.Background(), root, nil)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Functions, second.Functions)
}

func TestAnalyzeValidatesProjectRoot(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Analyze(context.Background(), "relative/path", nil)
	require.ErrorIs(t, err, ErrRelativePath)

	_, err = svc.Analyze(context.Background(), "/tmp/../etc", nil)
	require.ErrorIs(t, err, ErrPathTraversal)
}

func TestCallersAndCallees(t *testing.T) {
	svc := newTestService(t)
	root := writeProject(t)
	ctx := context.Background()

	_, err := svc.Analyze(ctx, root, nil)
	require.NoError(t, err)

	callers, err := svc.Callers(ctx, root, "util.go:helper:3")
	require.NoError(t, err)
	require.Len(t, callers, 1)
	assert.Equal(t, "main.go:run:7", callers[0].ID)

	callees, err := svc.Callees(ctx, root, "main.go:run:7")
	require.NoError(t, err)
	require.Len(t, callees, 1)
	assert.Equal(t, "util.go:helper:3", callees[0].ID)
}

func TestTransitiveDepthBounds(t *testing.T) {
	svc := newTestService(t)
	root := writeProject(t)
	ctx := context.Background()

	_, err := svc.Analyze(ctx, root, nil)
	require.NoError(t, err)

	full, err := svc.Transitive(ctx, root, "main.go:main:3", 0, "")
	require.NoError(t, err)
	assert.Equal(t, "callees", full.Direction)
	assert.Len(t, full.Reached, 3)

	shallow, err := svc.Transitive(ctx, root, "main.go:main:3", 1, "callees")
	require.NoError(t, err)
	require.Len(t, shallow.Reached, 1)
	assert.Equal(t, "main.go:run:7", shallow.Reached[0].ID)

	up, err := svc.Transitive(ctx, root, "util.go:leaf:7", 1, "callers")
	require.NoError(t, err)
	require.Len(t, up.Reached, 1)
	assert.Equal(t, "util.go:helper:3", up.Reached[0].ID)

	_, err = svc.Transitive(ctx, root, "main.go:main:3", 1, "sideways")
	require.Error(t, err)
}

func TestCriticalityEndpointShape(t *testing.T) {
	svc := newTestService(t)
	root := writeProject(t)
	ctx := context.Background()

	_, err := svc.Analyze(ctx, root, nil)
	require.NoError(t, err)

	resp, err := svc.Criticality(ctx, root, "main.go:run:7")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, resp.Score, 1.0)
	assert.Equal(t, 1, resp.FanIn)
	assert.Equal(t, 1, resp.FanOut)
	assert.False(t, resp.IsEntryPoint)
	assert.False(t, resp.IsTestHelper)
}

func TestDelegationClassification(t *testing.T) {
	svc := newTestService(t)
	root := writeProject(t)
	ctx := context.Background()

	_, err := svc.Analyze(ctx, root, nil)
	require.NoError(t, err)

	resp, err := svc.Delegation(ctx, root, "main.go:run:7")
	require.NoError(t, err)
	assert.False(t, resp.IsDelegator)
	assert.Equal(t, 1, resp.CalleeCount)
}

func TestQueryBeforeBuild(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Callers(context.Background(), "/no/such/project", "a.go:f:1")
	require.ErrorIs(t, err, ErrGraphNotBuilt)
}

func TestQueryBadIdentities(t *testing.T) {
	svc := newTestService(t)
	root := writeProject(t)
	ctx := context.Background()

	_, err := svc.Analyze(ctx, root, nil)
	require.NoError(t, err)

	_, err = svc.Callers(ctx, root, "garbage")
	require.ErrorIs(t, err, callgraph.ErrMalformedID)

	_, err = svc.Callers(ctx, root, "main.go:nothere:99")
	require.ErrorIs(t, err, callgraph.ErrUnknownFunction)
}

func TestSnapshotFallbackAfterRestart(t *testing.T) {
	db, err := badger.Open(badger.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := badger.NewStore(db, 0)

	root := writeProject(t)
	ctx := context.Background()

	first := newTestService(t, WithSnapshotStore(store))
	_, err = first.Analyze(ctx, root, nil)
	require.NoError(t, err)

	// A fresh service shares the store but has a cold cache.
	second := newTestService(t, WithSnapshotStore(store))
	stats, err := second.Stats(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Functions)

	callers, err := second.Callers(ctx, root, "util.go:helper:3")
	require.NoError(t, err)
	require.Len(t, callers, 1)
}

func TestInvalidateDropsCachedGraph(t *testing.T) {
	svc := newTestService(t)
	root := writeProject(t)
	ctx := context.Background()

	_, err := svc.Analyze(ctx, root, nil)
	require.NoError(t, err)

	assert.True(t, svc.Invalidate(root))

	_, err = svc.Stats(ctx, root)
	require.ErrorIs(t, err, ErrGraphNotBuilt)
}
