// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package callgraph

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/DebtScope/services/analyze/ast"
)

// ProgressCallback reports build progress. stage is "extract" or
// "resolve"; done and total count files or edges respectively.
type ProgressCallback func(stage string, done, total int)

// BuilderOptions configures a Builder.
type BuilderOptions struct {
	// ProjectRoot is recorded on the result for reporting.
	ProjectRoot string

	// WorkerCount bounds the extraction and resolution pools.
	// 0 means use all available CPUs.
	WorkerCount int

	// SequentialResolution forces the reference resolver instead of the
	// parallel one. Output is identical either way; this is an
	// operational toggle, not a semantic one.
	SequentialResolution bool

	// MaxFunctions and MaxCalls bound the graph. 0 means default.
	MaxFunctions int
	MaxCalls     int

	// Progress, when non-nil, receives coarse progress updates.
	Progress ProgressCallback
}

// BuilderOption is a functional option for NewBuilder.
type BuilderOption func(*BuilderOptions)

// WithProjectRoot records the analyzed project root.
func WithProjectRoot(root string) BuilderOption {
	return func(o *BuilderOptions) { o.ProjectRoot = root }
}

// WithWorkerCount sets the worker pool size. 0 uses all CPUs.
func WithWorkerCount(n int) BuilderOption {
	return func(o *BuilderOptions) {
		if n >= 0 {
			o.WorkerCount = n
		}
	}
}

// WithSequentialResolution selects the sequential reference resolver.
func WithSequentialResolution() BuilderOption {
	return func(o *BuilderOptions) { o.SequentialResolution = true }
}

// WithMaxFunctions bounds the graph's node count.
func WithMaxFunctions(n int) BuilderOption {
	return func(o *BuilderOptions) {
		if n > 0 {
			o.MaxFunctions = n
		}
	}
}

// WithMaxCalls bounds the graph's edge count.
func WithMaxCalls(n int) BuilderOption {
	return func(o *BuilderOptions) {
		if n > 0 {
			o.MaxCalls = n
		}
	}
}

// WithProgress installs a progress callback.
func WithProgress(cb ProgressCallback) BuilderOption {
	return func(o *BuilderOptions) { o.Progress = cb }
}

// Builder constructs a whole-program call graph from parse results.
//
// Description:
//
//	Build fans per-file extraction across a bounded worker pool, folds
//	the resulting fragments into one graph on a single goroutine, runs
//	cross-file resolution, and freezes the graph. Workers never touch
//	shared state; fragments are sorted by file path before the fold, so
//	the finished node set, edge multiset, and resolved-target set are
//	identical for any worker count.
//
// Thread Safety:
//
//	A Builder is safe for concurrent use; each Build call is independent.
type Builder struct {
	options BuilderOptions
}

// NewBuilder creates a Builder with the given options.
func NewBuilder(opts ...BuilderOption) *Builder {
	options := BuilderOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return &Builder{options: options}
}

// extractOutcome is one worker's result for one file.
type extractOutcome struct {
	frag *fragment
	err  *FileError
}

// Build runs the full pipeline over one batch of parse results.
//
// Description:
//
//	Per-file failures are soft: the file contributes nothing and is
//	reported in BuildResult.FileErrors. A non-nil error return means the
//	whole run failed (capacity exceeded, graph corruption, context
//	canceled) and no graph is usable.
//
// Inputs:
//
//	ctx     - Cancellation and tracing context.
//	results - One ParseResult per file, parsed exactly once upstream.
//	          Nil entries are reported as file errors.
//
// Outputs:
//
//	*BuildResult - Frozen graph plus counters and per-file errors.
//	error        - Fatal failures only.
func (b *Builder) Build(ctx context.Context, results []*ast.ParseResult) (*BuildResult, error) {
	workers := b.options.WorkerCount
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(results) && len(results) > 0 {
		workers = len(results)
	}
	if workers < 1 {
		workers = 1
	}

	ctx, span := startBuildSpan(ctx, len(results), workers)
	defer span.End()

	start := time.Now()
	runID := uuid.NewString()

	slog.Info("call graph build starting",
		slog.String("run_id", runID),
		slog.Int("files", len(results)),
		slog.Int("workers", workers))

	fragments, fileErrors := b.extractAll(ctx, results, workers)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("build canceled during extraction: %w", err)
	}

	graphOpts := make([]GraphOption, 0, 2)
	if b.options.MaxFunctions > 0 {
		graphOpts = append(graphOpts, WithGraphMaxFunctions(b.options.MaxFunctions))
	}
	if b.options.MaxCalls > 0 {
		graphOpts = append(graphOpts, WithGraphMaxCalls(b.options.MaxCalls))
	}
	graph := NewGraph(graphOpts...)

	if err := b.fold(graph, fragments); err != nil {
		return nil, fmt.Errorf("build fold: %w", err)
	}

	resolveStart := time.Now()
	var resolution ResolutionStats
	var err error
	if b.options.SequentialResolution {
		resolution, err = ResolveCrossFileCallsSequential(ctx, graph)
	} else {
		resolution, err = ResolveCrossFileCalls(ctx, graph, workers)
	}
	if err != nil {
		return nil, fmt.Errorf("build resolution: %w", err)
	}

	graph.Freeze()
	if err := graph.Validate(); err != nil {
		return nil, fmt.Errorf("built graph failed validation: %w", err)
	}

	graphStats := graph.Stats()
	filesFailed := 0
	for _, fe := range fileErrors {
		// Parse diagnostics are advisory; only extraction failures mean
		// the file contributed nothing.
		if fe.Stage == "extract" {
			filesFailed++
		}
	}
	stats := BuildStats{
		RunID:                runID,
		FilesProcessed:       len(fragments),
		FilesFailed:          filesFailed,
		Functions:            graphStats.Functions,
		CallEdges:            graphStats.Calls,
		EdgesResolved:        resolution.Resolved,
		EdgesUnresolved:      graphStats.UnresolvedCalls,
		DurationMilli:        time.Since(start).Milliseconds(),
		ResolveDurationMilli: time.Since(resolveStart).Milliseconds(),
		Workers:              workers,
	}
	recordBuildMetrics(ctx, time.Since(start), stats)

	slog.Info("call graph build finished",
		slog.String("run_id", runID),
		slog.Int("functions", stats.Functions),
		slog.Int("calls", stats.CallEdges),
		slog.Int("resolved", stats.EdgesResolved),
		slog.Int("unresolved", stats.EdgesUnresolved),
		slog.Int("files_failed", stats.FilesFailed),
		slog.Int64("duration_ms", stats.DurationMilli))

	return &BuildResult{
		Graph:      graph,
		FileErrors: fileErrors,
		Resolution: resolution,
		Stats:      stats,
		Incomplete: len(fileErrors) > 0,
	}, nil
}

// extractAll fans extraction over the worker pool and gathers outcomes.
//
// Each worker keeps a private slice of outcomes; nothing is shared until
// the final merge, and the merge sorts by file path so downstream folding
// is order-independent.
func (b *Builder) extractAll(ctx context.Context, results []*ast.ParseResult, workers int) ([]*fragment, []*FileError) {
	jobs := make(chan *ast.ParseResult)
	perWorker := make([][]extractOutcome, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			local := make([]extractOutcome, 0, len(results)/workers+1)
			defer func() { perWorker[slot] = local }()

			for result := range jobs {
				local = append(local, b.extractOne(ctx, result))
			}
		}(w)
	}

	sent := 0
	for _, result := range results {
		select {
		case jobs <- result:
			sent++
			if b.options.Progress != nil {
				b.options.Progress("extract", sent, len(results))
			}
		case <-ctx.Done():
			// Stop feeding; workers drain and exit.
			sent = len(results)
		}
		if sent >= len(results) {
			break
		}
	}
	close(jobs)
	wg.Wait()

	fragments := make([]*fragment, 0, len(results))
	fileErrors := make([]*FileError, 0)
	for _, outcomes := range perWorker {
		for _, out := range outcomes {
			if out.err != nil {
				fileErrors = append(fileErrors, out.err)
				continue
			}
			if out.frag != nil {
				fragments = append(fragments, out.frag)
				// Parser-reported diagnostics ride along as soft
				// errors; the fragment itself still contributes.
				for _, msg := range out.frag.errors {
					fileErrors = append(fileErrors, &FileError{
						FilePath: out.frag.file,
						Stage:    "parse",
						Err:      fmt.Errorf("%s", msg),
					})
				}
			}
		}
	}

	sort.Slice(fragments, func(i, j int) bool { return fragments[i].file < fragments[j].file })
	sort.Slice(fileErrors, func(i, j int) bool { return fileErrors[i].FilePath < fileErrors[j].FilePath })
	return fragments, fileErrors
}

// extractOne runs extraction for a single file with panic containment.
func (b *Builder) extractOne(ctx context.Context, result *ast.ParseResult) (out extractOutcome) {
	filePath := "<nil>"
	if result != nil {
		filePath = result.FilePath
	}

	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			slog.Error("extraction worker panic",
				slog.String("file", filePath),
				slog.Any("panic", r),
				slog.String("stack", string(buf[:n])))
			out = extractOutcome{err: &FileError{
				FilePath: filePath,
				Stage:    "extract",
				Err:      fmt.Errorf("panic: %v", r),
			}}
		}
	}()

	if err := ctx.Err(); err != nil {
		return extractOutcome{err: &FileError{FilePath: filePath, Stage: "extract", Err: err}}
	}

	frag, err := extractFragment(result)
	if err != nil {
		return extractOutcome{err: &FileError{FilePath: filePath, Stage: "extract", Err: err}}
	}
	return extractOutcome{frag: frag}
}

// fold applies fragments to the graph on the calling goroutine. This is
// the only mutation point during construction.
func (b *Builder) fold(graph *Graph, fragments []*fragment) error {
	for _, frag := range fragments {
		for _, fn := range frag.functions {
			if err := graph.AddFunction(fn.id, fn.info); err != nil {
				return err
			}
		}
	}
	// Edges go in after all nodes so same-batch resolution never races
	// ahead of definitions.
	for _, frag := range fragments {
		for _, call := range frag.calls {
			if err := graph.AddCall(call); err != nil {
				return err
			}
		}
	}
	return nil
}
