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

	"github.com/AleutianAI/DebtScope/services/analyze/ast"
)

// SnapshotVersion guards the on-disk layout of serialized graphs.
const SnapshotVersion = 1

// SnapshotNode is one serialized function.
type SnapshotNode struct {
	// ID is the "file:name:line" identity key.
	ID           string `json:"id"`
	IsEntryPoint bool   `json:"entry,omitempty"`
	IsTest       bool   `json:"test,omitempty"`
	Complexity   int    `json:"complexity"`
	LineCount    int    `json:"lines"`
}

// SnapshotCall is one serialized edge. Exactly one of Callee (resolved)
// and Name (unresolved) is set.
type SnapshotCall struct {
	Caller string `json:"caller"`
	Callee string `json:"callee,omitempty"`

	Name         string `json:"name,omitempty"`
	Style        int    `json:"style,omitempty"`
	ReceiverType string `json:"receiver,omitempty"`

	Type CallType `json:"type"`
	Line int      `json:"line,omitempty"`
}

// Snapshot is the serializable form of a finished graph.
type Snapshot struct {
	Version      int            `json:"version"`
	BuiltAtMilli int64          `json:"built_at_milli"`
	Functions    []SnapshotNode `json:"functions"`
	Calls        []SnapshotCall `json:"calls"`
}

// Snapshot captures the graph's current content in serializable form.
// Node order is deterministic (sorted identities); edge order is the
// insertion order.
func (g *Graph) Snapshot() *Snapshot {
	snap := &Snapshot{
		Version:      SnapshotVersion,
		BuiltAtMilli: g.BuiltAtMilli,
	}

	for _, id := range g.FindAllFunctions() {
		info, _ := g.Info(id)
		snap.Functions = append(snap.Functions, SnapshotNode{
			ID:           id.String(),
			IsEntryPoint: info.IsEntryPoint,
			IsTest:       info.IsTest,
			Complexity:   info.Complexity,
			LineCount:    info.LineCount,
		})
	}

	for _, call := range g.Calls() {
		sc := SnapshotCall{
			Caller: call.Caller.String(),
			Type:   call.Type,
			Line:   call.Line,
		}
		if target, ok := call.Callee.ID(); ok {
			sc.Callee = target.String()
		} else {
			callCtx := call.Callee.Context()
			sc.Name = call.Callee.SimpleName()
			sc.Style = int(callCtx.Style)
			sc.ReceiverType = callCtx.ReceiverType
		}
		snap.Calls = append(snap.Calls, sc)
	}
	return snap
}

// FromSnapshot reconstructs a frozen graph from serialized form.
func FromSnapshot(snap *Snapshot) (*Graph, error) {
	if snap == nil {
		return nil, fmt.Errorf("restore: nil snapshot")
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("restore: unsupported snapshot version %d", snap.Version)
	}

	g := NewGraph()
	for _, node := range snap.Functions {
		id, err := ParseFunctionID(node.ID)
		if err != nil {
			return nil, fmt.Errorf("restore function: %w", err)
		}
		if err := g.AddFunction(id, FunctionInfo{
			IsEntryPoint: node.IsEntryPoint,
			IsTest:       node.IsTest,
			Complexity:   node.Complexity,
			LineCount:    node.LineCount,
		}); err != nil {
			return nil, fmt.Errorf("restore function: %w", err)
		}
	}

	for _, sc := range snap.Calls {
		caller, err := ParseFunctionID(sc.Caller)
		if err != nil {
			return nil, fmt.Errorf("restore call: %w", err)
		}
		var callee Callee
		if sc.Callee != "" {
			target, err := ParseFunctionID(sc.Callee)
			if err != nil {
				return nil, fmt.Errorf("restore call: %w", err)
			}
			callee = ResolvedCallee(target)
		} else {
			callee = UnresolvedCallee(sc.Name, CallContext{
				Style:        ast.CallStyle(sc.Style),
				ReceiverType: sc.ReceiverType,
				CallerFile:   caller.File,
			})
		}
		if err := g.AddCall(FunctionCall{
			Caller: caller,
			Callee: callee,
			Type:   sc.Type,
			Line:   sc.Line,
		}); err != nil {
			return nil, fmt.Errorf("restore call: %w", err)
		}
	}

	g.Freeze()
	g.BuiltAtMilli = snap.BuiltAtMilli
	return g, nil
}
