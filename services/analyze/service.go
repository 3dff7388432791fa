// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analyze provides the DebtScope analysis HTTP service.
//
// The service exposes endpoints for:
//   - Building and caching call graphs for a project
//   - Querying callers, callees, and bounded transitive closures
//   - Scoring function criticality and detecting delegation patterns
//
// Graphs are built once per project root, cached in an LRU keyed by
// root, invalidated when source files change, and optionally persisted
// as snapshots so a restarted service can answer queries without
// re-parsing.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/DebtScope/services/analyze/ast"
	"github.com/AleutianAI/DebtScope/services/analyze/cache"
	"github.com/AleutianAI/DebtScope/services/analyze/callgraph"
	"github.com/AleutianAI/DebtScope/services/analyze/config"
	"github.com/AleutianAI/DebtScope/services/analyze/storage/badger"
)

const (
	// maxBuildDuration bounds a single graph build end to end.
	maxBuildDuration = 5 * time.Minute

	// maxProjectFiles is the most source files a single build walks.
	maxProjectFiles = 10000

	// maxProjectSize is the most source bytes a single build reads.
	maxProjectSize = 100 * 1024 * 1024
)

// defaultExcludes skips dependency directories when no patterns are
// given.
var defaultExcludes = []string{"vendor/*", "node_modules/*", "target/*"}

// SnapshotStore persists finalized graphs across restarts.
type SnapshotStore interface {
	Save(ctx context.Context, projectRoot string, snap *callgraph.Snapshot) error
	LoadGraph(ctx context.Context, projectRoot string) (*callgraph.Graph, error)
}

var _ SnapshotStore = (*badger.Store)(nil)

// Service orchestrates parsing, graph construction, caching, and
// snapshot persistence.
//
// Thread Safety:
//
//	Service is safe for concurrent use. Multiple goroutines can call
//	any combination of methods simultaneously.
type Service struct {
	cfg      config.Config
	registry *ast.ParserRegistry
	graphs   *cache.GraphCache
	store    SnapshotStore

	buildLocks sync.Map // projectRoot -> *sync.Mutex

	watchers  map[string]*cache.Watcher
	watcherMu sync.Mutex
}

// ServiceOption configures optional service collaborators.
type ServiceOption func(*Service)

// WithSnapshotStore attaches a snapshot store. Builds are persisted
// after completion and queries fall back to stored snapshots on cache
// misses.
func WithSnapshotStore(store SnapshotStore) ServiceOption {
	return func(s *Service) {
		s.store = store
	}
}

// NewService creates the analysis service.
//
// Description:
//
//	Creates a service with the given configuration, an empty graph
//	cache sized from cfg.Cache.Size, and a parser registry with the
//	default parsers registered.
//
// Inputs:
//
//	cfg - Validated service configuration
//	opts - Optional collaborators (snapshot store)
//
// Outputs:
//
//	*Service - The configured service
//	error - Non-nil if the cache cannot be created
func NewService(cfg config.Config, opts ...ServiceOption) (*Service, error) {
	graphs, err := cache.NewGraphCache(cache.WithCapacity(cfg.Cache.Size))
	if err != nil {
		return nil, fmt.Errorf("create graph cache: %w", err)
	}

	svc := &Service{
		cfg:      cfg,
		registry: ast.NewParserRegistry(),
		graphs:   graphs,
		watchers: make(map[string]*cache.Watcher),
	}
	svc.registry.Register(ast.NewGoParser())

	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Analyze builds (or returns the cached) call graph for a project.
//
// Description:
//
//	Validates the project root, then builds through the graph cache so
//	concurrent requests for the same root share one build. A fresh
//	build is persisted to the snapshot store when one is attached, and
//	a file watcher is started for the root when watching is enabled.
//
// Inputs:
//
//	ctx - Context for cancellation
//	projectRoot - Absolute path to the project root
//	excludes - Glob patterns to exclude (default: vendor and
//	  dependency directories)
//
// Outputs:
//
//	*AnalyzeResponse - Build counters and soft failure messages
//	error - Non-nil if validation or the build itself fails
//
// Errors:
//
//	ErrRelativePath - Project root is not absolute
//	ErrPathTraversal - Project root contains .. sequences
//	ErrProjectTooLarge - Project exceeds configured limits
//	ErrBuildInProgress - Another build is running for this project
//	ErrBuildTimeout - Build took longer than maxBuildDuration
func (s *Service) Analyze(ctx context.Context, projectRoot string, excludes []string) (*AnalyzeResponse, error) {
	if err := s.validateProjectRoot(projectRoot); err != nil {
		return nil, err
	}
	if len(excludes) == 0 {
		excludes = defaultExcludes
	}

	if entry, ok := s.graphs.Get(ctx, projectRoot); ok {
		return buildResponse(projectRoot, entry.Result, true), nil
	}

	lock := s.getBuildLock(projectRoot)
	if !lock.TryLock() {
		return nil, ErrBuildInProgress
	}
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, maxBuildDuration)
	defer cancel()

	entry, err := s.graphs.GetOrBuild(ctx, projectRoot, func(root string) (*callgraph.BuildResult, cache.FileStamps, error) {
		return s.buildProject(ctx, root, excludes)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrBuildTimeout
		}
		return nil, err
	}

	if s.store != nil {
		if saveErr := s.store.Save(ctx, projectRoot, entry.Result.Graph.Snapshot()); saveErr != nil {
			slog.Warn("snapshot save failed",
				slog.String("project_root", projectRoot),
				slog.String("error", saveErr.Error()))
		}
	}
	if s.cfg.Cache.Watch {
		s.ensureWatcher(projectRoot)
	}

	return buildResponse(projectRoot, entry.Result, false), nil
}

// buildResponse converts build counters into the API response shape.
func buildResponse(projectRoot string, result *callgraph.BuildResult, cached bool) *AnalyzeResponse {
	resp := &AnalyzeResponse{
		ProjectRoot:     projectRoot,
		Functions:       result.Stats.Functions,
		CallEdges:       result.Stats.CallEdges,
		EdgesResolved:   result.Stats.EdgesResolved,
		EdgesUnresolved: result.Stats.EdgesUnresolved,
		FilesProcessed:  result.Stats.FilesProcessed,
		FilesFailed:     result.Stats.FilesFailed,
		EntryPoints:     len(result.Graph.FindEntryPoints()),
		DurationMs:      result.Stats.DurationMilli,
		Incomplete:      result.Incomplete,
		Cached:          cached,
	}
	for _, fe := range result.FileErrors {
		resp.Errors = append(resp.Errors, fe.Error())
	}
	return resp
}

// buildProject walks the project, parses every source file with a
// registered parser, and folds the results into a frozen graph.
func (s *Service) buildProject(ctx context.Context, projectRoot string, excludes []string) (*callgraph.BuildResult, cache.FileStamps, error) {
	parseResults, paths, err := s.parseProject(ctx, projectRoot, excludes)
	if err != nil {
		return nil, nil, err
	}

	opts := []callgraph.BuilderOption{
		callgraph.WithProjectRoot(projectRoot),
		callgraph.WithWorkerCount(s.cfg.Build.Workers),
	}
	if s.cfg.Build.SequentialResolution {
		opts = append(opts, callgraph.WithSequentialResolution())
	}
	if s.cfg.Build.MaxFunctions > 0 {
		opts = append(opts, callgraph.WithMaxFunctions(s.cfg.Build.MaxFunctions))
	}
	if s.cfg.Build.MaxCalls > 0 {
		opts = append(opts, callgraph.WithMaxCalls(s.cfg.Build.MaxCalls))
	}

	result, err := callgraph.NewBuilder(opts...).Build(ctx, parseResults)
	if err != nil {
		return nil, nil, fmt.Errorf("building graph: %w", err)
	}

	slog.Info("graph built",
		slog.String("project_root", projectRoot),
		slog.Int("functions", result.Stats.Functions),
		slog.Int("call_edges", result.Stats.CallEdges),
		slog.Int("edges_resolved", result.Stats.EdgesResolved),
		slog.Int("edges_unresolved", result.Stats.EdgesUnresolved),
		slog.Int("files_failed", result.Stats.FilesFailed),
		slog.Int64("duration_ms", result.Stats.DurationMilli),
		slog.Bool("incomplete", result.Incomplete))

	return result, cache.CollectStamps(paths), nil
}

// parseProject walks projectRoot and parses every file a registered
// parser handles. Per-file parse failures are soft: the file is
// skipped and the walk continues.
func (s *Service) parseProject(ctx context.Context, projectRoot string, excludes []string) ([]*ast.ParseResult, []string, error) {
	var (
		parseResults []*ast.ParseResult
		paths        []string
		fileCount    int
		totalSize    int64
	)

	err := filepath.WalkDir(projectRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // Skip files we can't access
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		relPath, relErr := filepath.Rel(projectRoot, path)
		if relErr != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && relPath != "." {
				return filepath.SkipDir
			}
			for _, pattern := range excludes {
				if matched, _ := filepath.Match(pattern, relPath); matched {
					return filepath.SkipDir
				}
			}
			return nil
		}

		for _, pattern := range excludes {
			if matched, _ := filepath.Match(pattern, relPath); matched {
				return nil
			}
		}

		if _, ok := s.registry.GetByExtension(filepath.Ext(path)); !ok {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		totalSize += info.Size()
		if totalSize > maxProjectSize {
			return ErrProjectTooLarge
		}
		fileCount++
		if fileCount > maxProjectFiles {
			return ErrProjectTooLarge
		}

		pr, parseErr := s.parseFile(ctx, path, relPath)
		if parseErr != nil {
			slog.Warn("file skipped",
				slog.String("file", relPath),
				slog.String("error", parseErr.Error()))
			return nil
		}
		parseResults = append(parseResults, pr)
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrProjectTooLarge) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("walking project: %w", err)
	}

	return parseResults, paths, nil
}

// parseFile reads and parses a single file with the parser registered
// for its extension.
func (s *Service) parseFile(ctx context.Context, absPath, relPath string) (*ast.ParseResult, error) {
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}

	parser, ok := s.registry.GetByExtension(filepath.Ext(relPath))
	if !ok {
		return nil, fmt.Errorf("no parser for extension: %s", filepath.Ext(relPath))
	}
	return parser.Parse(ctx, content, relPath)
}

// graphFor returns the frozen graph for a project, from cache first,
// then from the snapshot store.
//
// A graph rehydrated from a snapshot is cached with empty file stamps,
// so it stays valid until explicitly invalidated or rebuilt.
func (s *Service) graphFor(ctx context.Context, projectRoot string) (*callgraph.Graph, error) {
	if entry, ok := s.graphs.Get(ctx, projectRoot); ok {
		return entry.Result.Graph, nil
	}

	if s.store != nil {
		g, err := s.store.LoadGraph(ctx, projectRoot)
		if err == nil {
			s.graphs.Put(projectRoot, &cache.Entry{
				ProjectRoot: projectRoot,
				Result:      &callgraph.BuildResult{Graph: g},
				BuiltAt:     time.Now(),
			})
			return g, nil
		}
		if !errors.Is(err, badger.ErrSnapshotNotFound) {
			return nil, err
		}
	}

	return nil, ErrGraphNotBuilt
}

// Callers returns the direct callers of a function.
//
// Inputs:
//
//	ctx - Context for cancellation
//	projectRoot - Project the graph was built for
//	function - Canonical "file:name:line" identity
//
// Outputs:
//
//	[]FunctionRef - Direct callers, empty when there are none
//	error - ErrGraphNotBuilt, callgraph.ErrMalformedID, or
//	  callgraph.ErrUnknownFunction
func (s *Service) Callers(ctx context.Context, projectRoot, function string) ([]FunctionRef, error) {
	g, id, err := s.lookup(ctx, projectRoot, function)
	if err != nil {
		return nil, err
	}
	return refsOf(g, g.GetCallers(id)), nil
}

// Callees returns the direct resolved callees of a function.
func (s *Service) Callees(ctx context.Context, projectRoot, function string) ([]FunctionRef, error) {
	g, id, err := s.lookup(ctx, projectRoot, function)
	if err != nil {
		return nil, err
	}
	return refsOf(g, g.GetCallees(id)), nil
}

// Transitive returns functions reachable from a function within a
// depth bound, following resolved edges in the given direction
// ("callees" or "callers"). A depth of zero or above the configured
// cap clamps to the configured cap.
func (s *Service) Transitive(ctx context.Context, projectRoot, function string, depth int, direction string) (*TransitiveResponse, error) {
	g, id, err := s.lookup(ctx, projectRoot, function)
	if err != nil {
		return nil, err
	}

	if depth <= 0 || depth > s.cfg.Query.MaxDepth {
		depth = s.cfg.Query.MaxDepth
	}

	var reached []callgraph.FunctionID
	switch direction {
	case "callers":
		reached, err = g.TransitiveCallers(ctx, id, depth)
	case "", "callees":
		direction = "callees"
		reached, err = g.TransitiveCallees(ctx, id, depth)
	default:
		return nil, fmt.Errorf("unknown direction %q", direction)
	}
	if err != nil {
		return nil, err
	}

	return &TransitiveResponse{
		Function:  id.String(),
		Direction: direction,
		Depth:     depth,
		Reached:   refsOf(g, reached),
	}, nil
}

// Criticality scores how load-bearing a function is.
func (s *Service) Criticality(ctx context.Context, projectRoot, function string) (*CriticalityResponse, error) {
	g, id, err := s.lookup(ctx, projectRoot, function)
	if err != nil {
		return nil, err
	}

	score, err := g.CalculateCriticality(id)
	if err != nil {
		return nil, err
	}
	testHelper, err := g.IsTestHelper(id)
	if err != nil {
		return nil, err
	}

	info, _ := g.Info(id)
	return &CriticalityResponse{
		Function:     id.String(),
		Score:        score,
		FanIn:        len(g.GetCallers(id)),
		FanOut:       len(g.GetCallees(id)),
		IsEntryPoint: info.IsEntryPoint,
		IsTestHelper: testHelper,
	}, nil
}

// Delegation classifies a function as an orchestrator or not.
func (s *Service) Delegation(ctx context.Context, projectRoot, function string) (*DelegationResponse, error) {
	g, id, err := s.lookup(ctx, projectRoot, function)
	if err != nil {
		return nil, err
	}

	report, err := g.DetectDelegationPattern(id)
	if err != nil {
		return nil, err
	}
	return &DelegationResponse{
		Function:            id.String(),
		IsDelegator:         report.IsDelegator,
		Complexity:          report.Complexity,
		CalleeCount:         report.CalleeCount,
		AvgCalleeComplexity: report.AvgCalleeComplexity,
	}, nil
}

// Stats reports graph and cache counters for a project.
func (s *Service) Stats(ctx context.Context, projectRoot string) (*StatsResponse, error) {
	g, err := s.graphFor(ctx, projectRoot)
	if err != nil {
		return nil, err
	}

	gs := g.Stats()
	cs := s.graphs.Stats()
	return &StatsResponse{
		ProjectRoot:     projectRoot,
		Functions:       gs.Functions,
		Calls:           gs.Calls,
		ResolvedCalls:   gs.ResolvedCalls,
		UnresolvedCalls: gs.UnresolvedCalls,
		EntryPoints:     gs.EntryPoints,
		TestFunctions:   gs.TestFunctions,
		Files:           gs.Files,
		CacheHits:       cs.Hits,
		CacheMisses:     cs.Misses,
		CacheEntries:    cs.Entries,
	}, nil
}

// Invalidate drops the cached graph for a project. Returns true when
// an entry was present.
func (s *Service) Invalidate(projectRoot string) bool {
	return s.graphs.Invalidate(projectRoot)
}

// lookup resolves the graph and parses the function identity in one
// step, shared by all per-function queries.
func (s *Service) lookup(ctx context.Context, projectRoot, function string) (*callgraph.Graph, callgraph.FunctionID, error) {
	g, err := s.graphFor(ctx, projectRoot)
	if err != nil {
		return nil, callgraph.FunctionID{}, err
	}
	id, err := callgraph.ParseFunctionID(function)
	if err != nil {
		return nil, callgraph.FunctionID{}, err
	}
	if !g.Contains(id) {
		return nil, callgraph.FunctionID{}, fmt.Errorf("%s: %w", function, callgraph.ErrUnknownFunction)
	}
	return g, id, nil
}

// refsOf converts identities to API refs.
func refsOf(g *callgraph.Graph, ids []callgraph.FunctionID) []FunctionRef {
	refs := make([]FunctionRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, functionRef(g, id))
	}
	return refs
}

// validateProjectRoot validates the project root path.
func (s *Service) validateProjectRoot(projectRoot string) error {
	if !filepath.IsAbs(projectRoot) {
		return ErrRelativePath
	}
	if strings.Contains(projectRoot, "..") {
		return ErrPathTraversal
	}
	return nil
}

// getBuildLock returns the build lock for a project.
func (s *Service) getBuildLock(projectRoot string) *sync.Mutex {
	lock, _ := s.buildLocks.LoadOrStore(projectRoot, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// ensureWatcher starts a file watcher for a project root exactly once.
func (s *Service) ensureWatcher(projectRoot string) {
	s.watcherMu.Lock()
	defer s.watcherMu.Unlock()

	if _, ok := s.watchers[projectRoot]; ok {
		return
	}
	w, err := cache.NewWatcher(projectRoot, s.cfg.Cache.WatcherDebounce, s.graphs.Invalidate)
	if err != nil {
		slog.Warn("watcher start failed",
			slog.String("project_root", projectRoot),
			slog.String("error", err.Error()))
		return
	}
	w.Start()
	s.watchers[projectRoot] = w
}

// Close stops all file watchers. The snapshot store is owned by the
// caller and is not closed here.
func (s *Service) Close() error {
	s.watcherMu.Lock()
	defer s.watcherMu.Unlock()

	var firstErr error
	for root, w := range s.watchers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.watchers, root)
	}
	return firstErr
}
