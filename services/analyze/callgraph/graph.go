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
	"fmt"
	"sort"
	"sync"
	"time"
)

// GraphState tracks the build-then-query lifecycle.
type GraphState int32

const (
	// GraphStateBuilding allows mutation; heavy queries are rejected.
	GraphStateBuilding GraphState = iota

	// GraphStateReadOnly allows queries; mutation is rejected.
	GraphStateReadOnly
)

// Default capacity limits.
const (
	// DefaultMaxFunctions bounds node count per graph.
	DefaultMaxFunctions = 1_000_000

	// DefaultMaxCalls bounds edge count per graph.
	DefaultMaxCalls = 10_000_000
)

// GraphOption configures a Graph at construction time.
type GraphOption func(*graphOptions)

type graphOptions struct {
	maxFunctions int
	maxCalls     int
}

// WithGraphMaxFunctions bounds the number of nodes the graph will accept.
func WithGraphMaxFunctions(n int) GraphOption {
	return func(o *graphOptions) {
		if n > 0 {
			o.maxFunctions = n
		}
	}
}

// WithGraphMaxCalls bounds the number of edges the graph will accept.
func WithGraphMaxCalls(n int) GraphOption {
	return func(o *graphOptions) {
		if n > 0 {
			o.maxCalls = n
		}
	}
}

// Graph is a whole-program call multigraph.
//
// Description:
//
//	Nodes are function identities with debt-scoring metadata; edges are
//	individual call sites. Forward (callees-of) and backward (callers-of)
//	adjacency indices are maintained incrementally as edges are added and
//	as the resolver rewrites unresolved targets.
//
// Thread Safety:
//
//	All methods are safe for concurrent use. The build protocol
//	nevertheless funnels mutation through a single goroutine; the
//	internal lock exists so misuse fails safe rather than racing.
type Graph struct {
	mu sync.RWMutex

	nodes map[FunctionID]*FunctionInfo
	calls []FunctionCall

	// callerIndex maps caller -> set of resolved callees.
	// calleeIndex maps callee -> set of callers.
	callerIndex map[FunctionID]map[FunctionID]struct{}
	calleeIndex map[FunctionID]map[FunctionID]struct{}

	// fileIndex maps file path -> identities defined in that file.
	fileIndex map[string][]FunctionID

	state GraphState
	opts  graphOptions

	// BuiltAtMilli is the freeze time in Unix milliseconds.
	BuiltAtMilli int64
}

// NewGraph creates an empty graph in the building state.
func NewGraph(opts ...GraphOption) *Graph {
	options := graphOptions{
		maxFunctions: DefaultMaxFunctions,
		maxCalls:     DefaultMaxCalls,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &Graph{
		nodes:       make(map[FunctionID]*FunctionInfo),
		calls:       make([]FunctionCall, 0, 256),
		callerIndex: make(map[FunctionID]map[FunctionID]struct{}),
		calleeIndex: make(map[FunctionID]map[FunctionID]struct{}),
		fileIndex:   make(map[string][]FunctionID),
		state:       GraphStateBuilding,
		opts:        options,
	}
}

// AddFunction inserts a node with its metadata.
//
// Description:
//
//	Idempotent upsert with first-writer-wins semantics: if the identity
//	already exists, the existing metadata is kept and nil is returned.
//	Safe under concurrent merge of duplicate fragments.
//
// Outputs:
//
//	error - ErrGraphFrozen after Freeze, ErrTooManyFunctions at capacity.
func (g *Graph) AddFunction(id FunctionID, info FunctionInfo) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != GraphStateBuilding {
		return fmt.Errorf("add function %s: %w", id, ErrGraphFrozen)
	}
	if _, exists := g.nodes[id]; exists {
		return nil
	}
	if len(g.nodes) >= g.opts.maxFunctions {
		return fmt.Errorf("add function %s: %w", id, ErrTooManyFunctions)
	}

	stored := info
	g.nodes[id] = &stored
	g.fileIndex[id.File] = append(g.fileIndex[id.File], id)
	return nil
}

// MarkEntryPoint flags an existing node as a program entry point.
func (g *Graph) MarkEntryPoint(id FunctionID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != GraphStateBuilding {
		return fmt.Errorf("mark entry point %s: %w", id, ErrGraphFrozen)
	}
	info, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("mark entry point %s: %w", id, ErrUnknownFunction)
	}
	info.IsEntryPoint = true
	return nil
}

// AddCall appends one call edge and updates both adjacency indices.
//
// Duplicate (caller, callee) edges are retained as separate entries;
// multiplicity is meaningful to downstream risk scoring.
func (g *Graph) AddCall(call FunctionCall) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != GraphStateBuilding {
		return fmt.Errorf("add call from %s: %w", call.Caller, ErrGraphFrozen)
	}
	if !call.Type.IsValid() {
		return fmt.Errorf("add call from %s: %w: %d", call.Caller, ErrInvalidCallType, call.Type)
	}
	if len(g.calls) >= g.opts.maxCalls {
		return fmt.Errorf("add call from %s: %w", call.Caller, ErrTooManyCalls)
	}

	g.calls = append(g.calls, call)
	if target, ok := call.Callee.ID(); ok {
		g.indexEdgeLocked(call.Caller, target)
	}
	return nil
}

// indexEdgeLocked records a resolved caller->callee pair in both indices.
// Caller must hold g.mu.
func (g *Graph) indexEdgeLocked(caller, callee FunctionID) {
	fwd, ok := g.callerIndex[caller]
	if !ok {
		fwd = make(map[FunctionID]struct{})
		g.callerIndex[caller] = fwd
	}
	fwd[callee] = struct{}{}

	back, ok := g.calleeIndex[callee]
	if !ok {
		back = make(map[FunctionID]struct{})
		g.calleeIndex[callee] = back
	}
	back[caller] = struct{}{}
}

// Freeze transitions the graph to the read-only state.
//
// Idempotent. After Freeze all mutation methods return ErrGraphFrozen and
// query methods become available.
func (g *Graph) Freeze() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == GraphStateBuilding {
		g.state = GraphStateReadOnly
		g.BuiltAtMilli = time.Now().UnixMilli()
	}
}

// State returns the current lifecycle state.
func (g *Graph) State() GraphState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Contains reports whether the identity is a node of the graph.
func (g *Graph) Contains(id FunctionID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Info returns the metadata for an identity.
func (g *Graph) Info(id FunctionID) (FunctionInfo, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	info, ok := g.nodes[id]
	if !ok {
		return FunctionInfo{}, false
	}
	return *info, true
}

// GetCallees returns the distinct resolved targets called by id, sorted
// for deterministic iteration. Repeated calls return equal results absent
// intervening mutation.
func (g *Graph) GetCallees(id FunctionID) []FunctionID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedIDSet(g.callerIndex[id])
}

// GetCallers returns the distinct functions that call id, sorted.
func (g *Graph) GetCallers(id FunctionID) []FunctionID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedIDSet(g.calleeIndex[id])
}

// GetFunctionCalls returns every edge originating at id, including
// unresolved ones and duplicate targets, in insertion order.
func (g *Graph) GetFunctionCalls(id FunctionID) []FunctionCall {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]FunctionCall, 0, 8)
	for _, call := range g.calls {
		if call.Caller == id {
			out = append(out, call)
		}
	}
	return out
}

// Calls returns a copy of every edge in insertion order.
func (g *Graph) Calls() []FunctionCall {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]FunctionCall, len(g.calls))
	copy(out, g.calls)
	return out
}

// UnresolvedCalls returns every edge whose callee is still unresolved.
// After the resolution pass these are final external or unresolvable
// calls, not pending work.
func (g *Graph) UnresolvedCalls() []FunctionCall {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]FunctionCall, 0)
	for _, call := range g.calls {
		if !call.Callee.IsResolved() {
			out = append(out, call)
		}
	}
	return out
}

// FindAllFunctions enumerates every node identity, sorted.
func (g *Graph) FindAllFunctions() []FunctionID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]FunctionID, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// FindEntryPoints enumerates entry-point nodes, sorted.
func (g *Graph) FindEntryPoints() []FunctionID {
	return g.findWhere(func(info *FunctionInfo) bool { return info.IsEntryPoint })
}

// FindTestFunctions enumerates test nodes, sorted.
func (g *Graph) FindTestFunctions() []FunctionID {
	return g.findWhere(func(info *FunctionInfo) bool { return info.IsTest })
}

func (g *Graph) findWhere(pred func(*FunctionInfo) bool) []FunctionID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]FunctionID, 0)
	for id, info := range g.nodes {
		if pred(info) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// FunctionsInFile returns the identities defined in one file, sorted.
func (g *Graph) FunctionsInFile(path string) []FunctionID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := g.fileIndex[path]
	out := make([]FunctionID, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// NodeCount returns the number of functions in the graph.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// CallCount returns the number of edges in the graph.
func (g *Graph) CallCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.calls)
}

// RemoveFile deletes every node defined in path together with the edges
// touching those nodes. Used by incremental invalidation before a file is
// re-extracted; only legal while building.
func (g *Graph) RemoveFile(path string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != GraphStateBuilding {
		return fmt.Errorf("remove file %s: %w", path, ErrGraphFrozen)
	}

	doomed := make(map[FunctionID]struct{})
	for _, id := range g.fileIndex[path] {
		doomed[id] = struct{}{}
		delete(g.nodes, id)
	}
	delete(g.fileIndex, path)
	if len(doomed) == 0 {
		return nil
	}

	kept := g.calls[:0]
	for _, call := range g.calls {
		if _, gone := doomed[call.Caller]; gone {
			continue
		}
		if target, ok := call.Callee.ID(); ok {
			if _, gone := doomed[target]; gone {
				continue
			}
		}
		kept = append(kept, call)
	}
	g.calls = kept
	g.rebuildIndicesLocked()
	return nil
}

// rebuildIndicesLocked reconstructs both adjacency indices from the edge
// list. Caller must hold g.mu.
func (g *Graph) rebuildIndicesLocked() {
	g.callerIndex = make(map[FunctionID]map[FunctionID]struct{}, len(g.callerIndex))
	g.calleeIndex = make(map[FunctionID]map[FunctionID]struct{}, len(g.calleeIndex))
	for _, call := range g.calls {
		if target, ok := call.Callee.ID(); ok {
			g.indexEdgeLocked(call.Caller, target)
		}
	}
}

// Clone returns a deep copy of the graph in its current state.
func (g *Graph) Clone() *Graph {
	g.mu.RLock()
	defer g.mu.RUnlock()

	clone := &Graph{
		nodes:        make(map[FunctionID]*FunctionInfo, len(g.nodes)),
		calls:        make([]FunctionCall, len(g.calls)),
		callerIndex:  make(map[FunctionID]map[FunctionID]struct{}, len(g.callerIndex)),
		calleeIndex:  make(map[FunctionID]map[FunctionID]struct{}, len(g.calleeIndex)),
		fileIndex:    make(map[string][]FunctionID, len(g.fileIndex)),
		state:        g.state,
		opts:         g.opts,
		BuiltAtMilli: g.BuiltAtMilli,
	}
	for id, info := range g.nodes {
		stored := *info
		clone.nodes[id] = &stored
	}
	copy(clone.calls, g.calls)
	for file, ids := range g.fileIndex {
		cp := make([]FunctionID, len(ids))
		copy(cp, ids)
		clone.fileIndex[file] = cp
	}
	for caller, set := range g.callerIndex {
		cp := make(map[FunctionID]struct{}, len(set))
		for id := range set {
			cp[id] = struct{}{}
		}
		clone.callerIndex[caller] = cp
	}
	for callee, set := range g.calleeIndex {
		cp := make(map[FunctionID]struct{}, len(set))
		for id := range set {
			cp[id] = struct{}{}
		}
		clone.calleeIndex[callee] = cp
	}
	return clone
}

// Validate checks graph consistency: every resolved edge endpoint must be
// a node, and both indices must agree with the edge list.
func (g *Graph) Validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for i, call := range g.calls {
		if _, ok := g.nodes[call.Caller]; !ok {
			return fmt.Errorf("call[%d]: caller %s not in graph", i, call.Caller)
		}
		target, ok := call.Callee.ID()
		if !ok {
			continue
		}
		if _, ok := g.nodes[target]; !ok {
			return fmt.Errorf("call[%d]: callee %s not in graph", i, target)
		}
		if _, ok := g.callerIndex[call.Caller][target]; !ok {
			return fmt.Errorf("call[%d]: forward index missing %s -> %s", i, call.Caller, target)
		}
		if _, ok := g.calleeIndex[target][call.Caller]; !ok {
			return fmt.Errorf("call[%d]: backward index missing %s <- %s", i, target, call.Caller)
		}
	}
	return nil
}

// GraphStats summarizes graph contents.
type GraphStats struct {
	Functions       int
	Calls           int
	ResolvedCalls   int
	UnresolvedCalls int
	EntryPoints     int
	TestFunctions   int
	Files           int
}

// Stats computes summary counts over the whole graph.
func (g *Graph) Stats() GraphStats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := GraphStats{
		Functions: len(g.nodes),
		Calls:     len(g.calls),
		Files:     len(g.fileIndex),
	}
	for _, call := range g.calls {
		if call.Callee.IsResolved() {
			stats.ResolvedCalls++
		} else {
			stats.UnresolvedCalls++
		}
	}
	for _, info := range g.nodes {
		if info.IsEntryPoint {
			stats.EntryPoints++
		}
		if info.IsTest {
			stats.TestFunctions++
		}
	}
	return stats
}

// sortedIDSet flattens a set into a sorted slice. Always returns a fresh
// slice so callers cannot mutate the index.
func sortedIDSet(set map[FunctionID]struct{}) []FunctionID {
	out := make([]FunctionID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
