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
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/DebtScope/services/analyze/ast"
)

// ResolutionStats reports what one resolution pass did.
type ResolutionStats struct {
	// Examined is the number of unresolved edges considered.
	Examined int

	// Resolved is the number of edges rewritten to concrete targets.
	Resolved int

	// Ambiguous is the number of edges left unresolved because more
	// than one candidate survived filtering.
	Ambiguous int

	// NoCandidate is the number of edges with no surviving candidate
	// (true external calls).
	NoCandidate int
}

// nameIndex maps a bare simple name to every definition carrying it,
// free functions and methods alike. Candidate slices are sorted, so
// resolution decisions are independent of map iteration order.
type nameIndex map[string][]FunctionID

// buildNameIndex constructs the phase-1 index over the whole graph.
func buildNameIndex(g *Graph) nameIndex {
	idx := make(nameIndex)
	for _, id := range g.FindAllFunctions() {
		simple := id.SimpleName()
		idx[simple] = append(idx[simple], id)
	}
	return idx
}

// edgeRef pins an unresolved edge by its position in the edge list.
type edgeRef struct {
	pos  int
	call FunctionCall
}

// rewrite is one resolution decision: edge pos gets target.
type rewrite struct {
	pos    int
	target FunctionID
}

// resolveOutcome classifies a single resolution attempt.
type resolveOutcome int

const (
	outcomeResolved resolveOutcome = iota
	outcomeAmbiguous
	outcomeNoCandidate
)

// resolveOne decides one unresolved edge against the read-only index.
//
// Description:
//
//	Candidates are fetched by bare name and filtered by the call-site
//	context: a bare-identifier site never matches a method identity, a
//	method-style site never matches a free function, and a known
//	receiver type restricts methods to that type. One survivor wins.
//	With several survivors the caller's own file is preferred; if that
//	still leaves more than one, or zero, the edge stays unresolved. A
//	false resolution is worse than an honest unknown, so no further
//	guessing happens here.
//
// resolveOne is pure: identical inputs always produce identical outputs,
// which is what makes the parallel and sequential drivers equivalent.
func resolveOne(call FunctionCall, idx nameIndex) (FunctionID, resolveOutcome) {
	callCtx := call.Callee.Context()
	candidates := idx[call.Callee.SimpleName()]

	filtered := make([]FunctionID, 0, len(candidates))
	for _, cand := range candidates {
		if !matchesContext(cand, callCtx) {
			continue
		}
		filtered = append(filtered, cand)
	}

	switch len(filtered) {
	case 0:
		return FunctionID{}, outcomeNoCandidate
	case 1:
		return filtered[0], outcomeResolved
	}

	sameFile := filtered[:0]
	for _, cand := range filtered {
		if cand.File == callCtx.CallerFile {
			sameFile = append(sameFile, cand)
		}
	}
	if len(sameFile) == 1 {
		return sameFile[0], outcomeResolved
	}
	return FunctionID{}, outcomeAmbiguous
}

// matchesContext applies the style and receiver filters.
func matchesContext(cand FunctionID, callCtx CallContext) bool {
	switch callCtx.Style {
	case ast.CallStyleBare:
		return !cand.IsMethod()

	case ast.CallStyleMethod:
		if !cand.IsMethod() {
			return false
		}
		if callCtx.ReceiverType != "" {
			return cand.ReceiverType() == callCtx.ReceiverType
		}
		return true

	case ast.CallStyleQualified:
		if callCtx.ReceiverType != "" {
			return cand.IsMethod() && cand.ReceiverType() == callCtx.ReceiverType
		}
		// Package-qualified call: the target is a free function that
		// lives in another file.
		return !cand.IsMethod()

	default:
		return false
	}
}

// ResolveCrossFileCalls rewrites unresolved edges using a worker pool.
//
// Description:
//
//	Phase 1 builds the simple-name index over every definition in the
//	graph. Phase 2 partitions the unresolved edges across workers; each
//	worker resolves its slice against the read-only index and returns a
//	rewrite list. The rewrites are applied sequentially on the calling
//	goroutine, which is the only mutation point. Output is identical to
//	ResolveCrossFileCallsSequential for any worker count.
//
// Inputs:
//
//	ctx     - Cancellation context, checked between partitions.
//	g       - Graph still in the building state.
//	workers - Pool size; 0 means all CPUs.
//
// Outputs:
//
//	ResolutionStats - Counters for the pass.
//	error           - ErrGraphFrozen, or a context error.
func ResolveCrossFileCalls(ctx context.Context, g *Graph, workers int) (ResolutionStats, error) {
	start := time.Now()

	if g.State() != GraphStateBuilding {
		return ResolutionStats{}, fmt.Errorf("resolve: %w", ErrGraphFrozen)
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	idx := buildNameIndex(g)
	pending := collectUnresolved(g)
	if len(pending) == 0 {
		return ResolutionStats{}, nil
	}
	if workers > len(pending) {
		workers = len(pending)
	}

	chunkSize := (len(pending) + workers - 1) / workers
	results := make([][]rewrite, workers)
	stats := make([]ResolutionStats, workers)

	eg, egCtx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunkSize
		hi := lo + chunkSize
		if hi > len(pending) {
			hi = len(pending)
		}
		if lo >= hi {
			break
		}
		slot := w
		chunk := pending[lo:hi]
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			local := make([]rewrite, 0, len(chunk))
			var localStats ResolutionStats
			for _, ref := range chunk {
				localStats.Examined++
				target, outcome := resolveOne(ref.call, idx)
				switch outcome {
				case outcomeResolved:
					local = append(local, rewrite{pos: ref.pos, target: target})
					localStats.Resolved++
				case outcomeAmbiguous:
					localStats.Ambiguous++
				case outcomeNoCandidate:
					localStats.NoCandidate++
				}
			}
			results[slot] = local
			stats[slot] = localStats
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return ResolutionStats{}, fmt.Errorf("resolve: %w", err)
	}

	all := make([]rewrite, 0, len(pending))
	total := ResolutionStats{}
	for w := range results {
		all = append(all, results[w]...)
		total.Examined += stats[w].Examined
		total.Resolved += stats[w].Resolved
		total.Ambiguous += stats[w].Ambiguous
		total.NoCandidate += stats[w].NoCandidate
	}
	applyRewrites(g, all)

	recordResolveMetrics(ctx, time.Since(start), total, true)
	return total, nil
}

// ResolveCrossFileCallsSequential is the reference implementation of the
// resolution pass: the same phase-1 index and per-edge decision as
// ResolveCrossFileCalls, driven by a single loop. It exists as a public
// entry point so equivalence tests can diff the two directly.
func ResolveCrossFileCallsSequential(ctx context.Context, g *Graph) (ResolutionStats, error) {
	start := time.Now()

	if g.State() != GraphStateBuilding {
		return ResolutionStats{}, fmt.Errorf("resolve: %w", ErrGraphFrozen)
	}

	idx := buildNameIndex(g)
	pending := collectUnresolved(g)

	all := make([]rewrite, 0, len(pending))
	total := ResolutionStats{}
	for _, ref := range pending {
		if err := ctx.Err(); err != nil {
			return ResolutionStats{}, fmt.Errorf("resolve: %w", err)
		}
		total.Examined++
		target, outcome := resolveOne(ref.call, idx)
		switch outcome {
		case outcomeResolved:
			all = append(all, rewrite{pos: ref.pos, target: target})
			total.Resolved++
		case outcomeAmbiguous:
			total.Ambiguous++
		case outcomeNoCandidate:
			total.NoCandidate++
		}
	}
	applyRewrites(g, all)

	recordResolveMetrics(ctx, time.Since(start), total, false)
	return total, nil
}

// collectUnresolved snapshots every unresolved edge with its position.
func collectUnresolved(g *Graph) []edgeRef {
	g.mu.RLock()
	defer g.mu.RUnlock()

	refs := make([]edgeRef, 0)
	for pos, call := range g.calls {
		if !call.Callee.IsResolved() {
			refs = append(refs, edgeRef{pos: pos, call: call})
		}
	}
	return refs
}

// applyRewrites performs the sequential in-place edge rewrites and keeps
// both adjacency indices current. This is the only mutator in phase 2.
func applyRewrites(g *Graph, rewrites []rewrite) {
	sort.Slice(rewrites, func(i, j int) bool { return rewrites[i].pos < rewrites[j].pos })

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, rw := range rewrites {
		g.calls[rw.pos].Callee = ResolvedCallee(rw.target)
		g.indexEdgeLocked(g.calls[rw.pos].Caller, rw.target)
	}
}
