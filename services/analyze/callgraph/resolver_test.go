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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/DebtScope/services/analyze/ast"
)

// unresolvedBare builds an unresolved bare-identifier edge.
func unresolvedBare(caller FunctionID, name string) FunctionCall {
	return FunctionCall{
		Caller: caller,
		Callee: UnresolvedCallee(name, CallContext{Style: ast.CallStyleBare, CallerFile: caller.File}),
		Type:   CallDirect,
	}
}

// unresolvedMethod builds an unresolved method-style edge.
func unresolvedMethod(caller FunctionID, name, receiverType string) FunctionCall {
	return FunctionCall{
		Caller: caller,
		Callee: UnresolvedCallee(name, CallContext{
			Style:        ast.CallStyleMethod,
			ReceiverType: receiverType,
			CallerFile:   caller.File,
		}),
		Type: CallMethod,
	}
}

func TestResolve_TwoFileScenario(t *testing.T) {
	// a.rs: fn helper(){} fn main(){ helper(); }
	// b.rs: fn helper(){} (unused)
	build := func() (*Graph, FunctionID, FunctionID, FunctionID) {
		g := NewGraph()
		aHelper := fid("a.rs", "helper", 1)
		aMain := fid("a.rs", "main", 3)
		bHelper := fid("b.rs", "helper", 1)
		require.NoError(t, g.AddFunction(aHelper, FunctionInfo{}))
		require.NoError(t, g.AddFunction(aMain, FunctionInfo{IsEntryPoint: true}))
		require.NoError(t, g.AddFunction(bHelper, FunctionInfo{}))
		require.NoError(t, g.AddCall(unresolvedBare(aMain, "helper")))
		return g, aMain, aHelper, bHelper
	}

	for _, mode := range []string{"parallel", "sequential"} {
		t.Run(mode, func(t *testing.T) {
			g, aMain, aHelper, bHelper := build()

			var stats ResolutionStats
			var err error
			if mode == "parallel" {
				stats, err = ResolveCrossFileCalls(context.Background(), g, 4)
			} else {
				stats, err = ResolveCrossFileCallsSequential(context.Background(), g)
			}
			require.NoError(t, err)
			assert.Equal(t, 1, stats.Examined)
			assert.Equal(t, 1, stats.Resolved)

			callees := g.GetCallees(aMain)
			require.Len(t, callees, 1, "main must have exactly one callee")
			assert.Equal(t, aHelper, callees[0], "must prefer the same-file helper")
			assert.Empty(t, g.GetCallers(bHelper), "the unused helper must have zero callers")
		})
	}
}

func TestResolve_MethodBeatsFreeFunction(t *testing.T) {
	// free f() in one file, T::f in another, call through t: T.
	g := NewGraph()
	freeF := fid("free.rs", "f", 1)
	methodF := fid("t.rs", "T::f", 4)
	caller := fid("caller.rs", "caller", 1)
	require.NoError(t, g.AddFunction(freeF, FunctionInfo{}))
	require.NoError(t, g.AddFunction(methodF, FunctionInfo{}))
	require.NoError(t, g.AddFunction(caller, FunctionInfo{}))
	require.NoError(t, g.AddCall(unresolvedMethod(caller, "f", "T")))

	stats, err := ResolveCrossFileCalls(context.Background(), g, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Resolved)

	callees := g.GetCallees(caller)
	require.Len(t, callees, 1)
	assert.Equal(t, methodF, callees[0], "t.f() must resolve to T::f")
	assert.Empty(t, g.GetCallers(freeF), "the free f must have zero callers")
}

func TestResolve_BareNeverMatchesMethod(t *testing.T) {
	g := NewGraph()
	methodF := fid("t.rs", "T::f", 4)
	caller := fid("caller.rs", "caller", 1)
	require.NoError(t, g.AddFunction(methodF, FunctionInfo{}))
	require.NoError(t, g.AddFunction(caller, FunctionInfo{}))
	require.NoError(t, g.AddCall(unresolvedBare(caller, "f")))

	stats, err := ResolveCrossFileCallsSequential(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Resolved)
	assert.Equal(t, 1, stats.NoCandidate, "a bare call must not see method candidates")
	assert.Empty(t, g.GetCallers(methodF))
}

func TestResolve_MethodNeverMatchesFreeFunction(t *testing.T) {
	g := NewGraph()
	freeF := fid("free.rs", "f", 1)
	caller := fid("caller.rs", "caller", 1)
	require.NoError(t, g.AddFunction(freeF, FunctionInfo{}))
	require.NoError(t, g.AddFunction(caller, FunctionInfo{}))
	require.NoError(t, g.AddCall(unresolvedMethod(caller, "f", "")))

	stats, err := ResolveCrossFileCallsSequential(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Resolved)
	assert.Equal(t, 1, stats.NoCandidate)
	assert.Empty(t, g.GetCallers(freeF))
}

func TestResolve_ReceiverTypeFilters(t *testing.T) {
	// Two types define the same method name; the recovered receiver
	// type must pick the right one.
	g := NewGraph()
	serverStart := fid("server.rs", "Server::start", 10)
	clientStart := fid("client.rs", "Client::start", 10)
	caller := fid("main.rs", "main", 1)
	require.NoError(t, g.AddFunction(serverStart, FunctionInfo{}))
	require.NoError(t, g.AddFunction(clientStart, FunctionInfo{}))
	require.NoError(t, g.AddFunction(caller, FunctionInfo{}))
	require.NoError(t, g.AddCall(unresolvedMethod(caller, "start", "Client")))

	_, err := ResolveCrossFileCalls(context.Background(), g, 2)
	require.NoError(t, err)

	callees := g.GetCallees(caller)
	require.Len(t, callees, 1)
	assert.Equal(t, clientStart, callees[0])
	assert.Empty(t, g.GetCallers(serverStart))
}

func TestResolve_AmbiguityStaysUnresolved(t *testing.T) {
	// Same-named free functions in two other files: an honest unknown.
	g := NewGraph()
	h1 := fid("x.rs", "helper", 1)
	h2 := fid("y.rs", "helper", 1)
	caller := fid("z.rs", "main", 1)
	require.NoError(t, g.AddFunction(h1, FunctionInfo{}))
	require.NoError(t, g.AddFunction(h2, FunctionInfo{}))
	require.NoError(t, g.AddFunction(caller, FunctionInfo{}))
	require.NoError(t, g.AddCall(unresolvedBare(caller, "helper")))

	stats, err := ResolveCrossFileCallsSequential(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Resolved)
	assert.Equal(t, 1, stats.Ambiguous)
	assert.Empty(t, g.GetCallers(h1))
	assert.Empty(t, g.GetCallers(h2))

	// After the pass, remaining unresolved edges are final.
	unresolved := g.UnresolvedCalls()
	require.Len(t, unresolved, 1)
	assert.Equal(t, "helper", unresolved[0].Callee.SimpleName())
}

func TestResolve_QualifiedPackageCall(t *testing.T) {
	g := NewGraph()
	target := fid("util.rs", "format_bytes", 1)
	caller := fid("main.rs", "main", 1)
	require.NoError(t, g.AddFunction(target, FunctionInfo{}))
	require.NoError(t, g.AddFunction(caller, FunctionInfo{}))
	require.NoError(t, g.AddCall(FunctionCall{
		Caller: caller,
		Callee: UnresolvedCallee("format_bytes", CallContext{
			Style:      ast.CallStyleQualified,
			CallerFile: "main.rs",
		}),
		Type: CallDirect,
	}))

	stats, err := ResolveCrossFileCalls(context.Background(), g, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Resolved, "package-qualified calls resolve to free functions")
	assert.Equal(t, []FunctionID{target}, g.GetCallees(caller))
}

func TestResolve_FrozenGraphRejected(t *testing.T) {
	g := NewGraph()
	g.Freeze()

	_, err := ResolveCrossFileCalls(context.Background(), g, 2)
	assert.ErrorIs(t, err, ErrGraphFrozen)
	_, err = ResolveCrossFileCallsSequential(context.Background(), g)
	assert.ErrorIs(t, err, ErrGraphFrozen)
}

// largeTestGraph builds files x funcsPerFile functions where each file's
// first function makes unresolved calls to helpers defined one file over.
func largeTestGraph(t *testing.T, files, callsPerFile int) *Graph {
	t.Helper()
	g := NewGraph()

	for f := 0; f < files; f++ {
		file := fmt.Sprintf("src/mod_%03d.rs", f)
		for i := 0; i < callsPerFile; i++ {
			id := fid(file, fmt.Sprintf("helper_%03d_%d", f, i), 10+i)
			require.NoError(t, g.AddFunction(id, FunctionInfo{Complexity: 1 + i%5}))
		}
		caller := fid(file, fmt.Sprintf("driver_%03d", f), 1)
		require.NoError(t, g.AddFunction(caller, FunctionInfo{}))
	}

	for f := 0; f < files; f++ {
		file := fmt.Sprintf("src/mod_%03d.rs", f)
		caller := fid(file, fmt.Sprintf("driver_%03d", f), 1)
		next := (f + 1) % files
		for i := 0; i < callsPerFile; i++ {
			// Unique bare names defined in another file: every one
			// must resolve, and identically in both modes.
			require.NoError(t, g.AddCall(unresolvedBare(caller, fmt.Sprintf("helper_%03d_%d", next, i))))
		}
	}
	return g
}

// resolvedEdgeSet renders every resolved edge "caller->callee" for
// set comparison.
func resolvedEdgeSet(g *Graph) map[string]int {
	set := make(map[string]int)
	for _, call := range g.Calls() {
		if target, ok := call.Callee.ID(); ok {
			set[call.Caller.String()+"->"+target.String()]++
		}
	}
	return set
}

func TestResolve_ParallelSequentialEquivalence(t *testing.T) {
	const files, callsPerFile = 500, 5

	seq := largeTestGraph(t, files, callsPerFile)
	seqStats, err := ResolveCrossFileCallsSequential(context.Background(), seq)
	require.NoError(t, err)

	for _, workers := range []int{1, 2, 8, 32} {
		t.Run(fmt.Sprintf("workers_%d", workers), func(t *testing.T) {
			par := largeTestGraph(t, files, callsPerFile)
			parStats, err := ResolveCrossFileCalls(context.Background(), par, workers)
			require.NoError(t, err)

			assert.Equal(t, seqStats, parStats, "counters must match the reference")
			assert.Equal(t, files*callsPerFile, parStats.Resolved)
			assert.Equal(t, resolvedEdgeSet(seq), resolvedEdgeSet(par),
				"resolved-edge sets must be identical")

			// Both adjacency indices must agree too.
			for _, id := range seq.FindAllFunctions() {
				assert.Equal(t, seq.GetCallees(id), par.GetCallees(id))
				assert.Equal(t, seq.GetCallers(id), par.GetCallers(id))
			}
		})
	}
}

func TestResolve_MultiRunDeterminism(t *testing.T) {
	var reference map[string]int
	for run := 0; run < 5; run++ {
		g := largeTestGraph(t, 50, 4)
		_, err := ResolveCrossFileCalls(context.Background(), g, 8)
		require.NoError(t, err)

		edges := resolvedEdgeSet(g)
		if reference == nil {
			reference = edges
			continue
		}
		require.Equal(t, reference, edges, "run %d diverged", run)
	}
}
