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
	"sort"
)

// Traversal limits.
const (
	// MaxTraversalDepth is the maximum allowed depth for transitive
	// queries. Depth is a mandatory parameter; this only caps abuse.
	MaxTraversalDepth = 1000
)

// traversalDirection selects which adjacency index a walk follows.
type traversalDirection int

const (
	directionCallees traversalDirection = iota
	directionCallers
)

// TransitiveCallees returns every function reachable from id within
// maxDepth call hops.
//
// Description:
//
//	Breadth-first walk over the forward index, deduplicated by a visited
//	set, so it terminates on self-recursion and mutual recursion. For a
//	two-node cycle A->B->A, depth 1 yields {B} and depth 2 yields {A, B}:
//	the start node appears only when a cycle actually reaches it.
//
// Inputs:
//
//	ctx      - Cancellation context, checked per level.
//	id       - Start node. Unknown identities yield an empty result.
//	maxDepth - Maximum hop count; values above MaxTraversalDepth clamp.
//
// Outputs:
//
//	[]FunctionID - Reached nodes, sorted. Never nil.
//	error        - ErrGraphBuilding before Freeze, or a context error.
func (g *Graph) TransitiveCallees(ctx context.Context, id FunctionID, maxDepth int) ([]FunctionID, error) {
	return g.traverse(ctx, id, maxDepth, directionCallees)
}

// TransitiveCallers returns every function that can reach id within
// maxDepth call hops, walking the backward index. Same termination and
// determinism contract as TransitiveCallees.
func (g *Graph) TransitiveCallers(ctx context.Context, id FunctionID, maxDepth int) ([]FunctionID, error) {
	return g.traverse(ctx, id, maxDepth, directionCallers)
}

// traverse is the shared level-synchronous BFS. Small levels expand
// serially; levels past parallelThreshold fan out (see parallel.go). The
// reached set is identical either way.
func (g *Graph) traverse(ctx context.Context, id FunctionID, maxDepth int, dir traversalDirection) ([]FunctionID, error) {
	if g.State() != GraphStateReadOnly {
		return nil, fmt.Errorf("transitive query: %w", ErrGraphBuilding)
	}
	if maxDepth < 0 {
		maxDepth = 0
	}
	if maxDepth > MaxTraversalDepth {
		maxDepth = MaxTraversalDepth
	}

	reached := make(map[FunctionID]struct{})
	expanded := make(map[FunctionID]struct{})

	level := []FunctionID{id}
	expanded[id] = struct{}{}

	for depth := 0; depth < maxDepth && len(level) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("transitive query canceled at depth %d: %w", depth, err)
		}

		var next []FunctionID
		if len(level) >= parallelThreshold {
			next = g.expandLevelParallel(level, reached, expanded, dir)
		} else {
			next = g.expandLevel(level, reached, expanded, dir)
		}
		level = next
	}

	out := make([]FunctionID, 0, len(reached))
	for node := range reached {
		out = append(out, node)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

// expandLevel serially expands one BFS level.
//
// Every neighbor joins the reached set; neighbors not yet expanded join
// the next level. A node reached again through a cycle is recorded but
// never re-expanded, which is what guarantees termination.
func (g *Graph) expandLevel(level []FunctionID, reached, expanded map[FunctionID]struct{}, dir traversalDirection) []FunctionID {
	next := make([]FunctionID, 0, len(level))
	for _, node := range level {
		for _, neighbor := range g.neighbors(node, dir) {
			reached[neighbor] = struct{}{}
			if _, seen := expanded[neighbor]; !seen {
				expanded[neighbor] = struct{}{}
				next = append(next, neighbor)
			}
		}
	}
	return next
}

// neighbors returns the adjacent nodes in the given direction, sorted.
func (g *Graph) neighbors(node FunctionID, dir traversalDirection) []FunctionID {
	if dir == directionCallees {
		return g.GetCallees(node)
	}
	return g.GetCallers(node)
}
