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
	"reflect"
	"sort"
	"testing"

	"github.com/AleutianAI/DebtScope/services/analyze/ast"
)

// parseResultFixture builds a batch of parse results where each file
// defines helpers plus one driver that calls into the next file.
func parseResultFixture(files, funcsPerFile int) []*ast.ParseResult {
	results := make([]*ast.ParseResult, 0, files)
	for f := 0; f < files; f++ {
		path := fmt.Sprintf("src/pkg_%03d.go", f)
		next := (f + 1) % files

		funcs := make([]ast.FunctionDecl, 0, funcsPerFile+1)
		for i := 0; i < funcsPerFile; i++ {
			funcs = append(funcs, ast.FunctionDecl{
				Name:       fmt.Sprintf("helper_%03d_%d", f, i),
				StartLine:  10 + i*5,
				EndLine:    13 + i*5,
				Complexity: 1 + i%4,
			})
		}

		calls := make([]ast.CallSite, 0, funcsPerFile)
		for i := 0; i < funcsPerFile; i++ {
			calls = append(calls, ast.CallSite{
				Target: fmt.Sprintf("helper_%03d_%d", next, i),
				Style:  ast.CallStyleBare,
				Line:   3 + i,
			})
		}
		funcs = append(funcs, ast.FunctionDecl{
			Name:      fmt.Sprintf("driver_%03d", f),
			StartLine: 1,
			EndLine:   9,
			Calls:     calls,
		})

		results = append(results, &ast.ParseResult{
			FilePath:  path,
			Language:  "go",
			Functions: funcs,
		})
	}
	return results
}

// graphFingerprint captures everything the graph's observable state
// depends on: node set with metadata, edge multiset, and resolution.
func graphFingerprint(g *Graph) map[string]int {
	fp := make(map[string]int)
	for _, id := range g.FindAllFunctions() {
		info, _ := g.Info(id)
		fp[fmt.Sprintf("node|%s|%v|%v|%d", id, info.IsEntryPoint, info.IsTest, info.Complexity)]++
	}
	for _, call := range g.Calls() {
		fp[fmt.Sprintf("edge|%s|%s|%s", call.Caller, call.Callee, call.Type)]++
	}
	return fp
}

func TestBuilderDeterministicAcrossWorkerCounts(t *testing.T) {
	const files, funcsPerFile = 40, 6

	reference := NewBuilder(WithWorkerCount(1))
	referenceBuild, err := reference.Build(context.Background(), parseResultFixture(files, funcsPerFile))
	if err != nil {
		t.Fatalf("reference build failed: %v", err)
	}
	want := graphFingerprint(referenceBuild.Graph)

	for _, workers := range []int{2, 4, 16} {
		t.Run(fmt.Sprintf("workers_%d", workers), func(t *testing.T) {
			builder := NewBuilder(WithWorkerCount(workers))
			result, err := builder.Build(context.Background(), parseResultFixture(files, funcsPerFile))
			if err != nil {
				t.Fatalf("build failed: %v", err)
			}
			got := graphFingerprint(result.Graph)
			if !reflect.DeepEqual(want, got) {
				t.Errorf("worker count %d produced a different graph", workers)
			}
			if result.Stats.EdgesResolved != referenceBuild.Stats.EdgesResolved {
				t.Errorf("resolved %d edges, reference resolved %d",
					result.Stats.EdgesResolved, referenceBuild.Stats.EdgesResolved)
			}
		})
	}
}

func TestBuilderResolvesAcrossFiles(t *testing.T) {
	result, err := NewBuilder(WithWorkerCount(4)).Build(context.Background(), parseResultFixture(10, 3))
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	g := result.Graph
	if g.State() != GraphStateReadOnly {
		t.Fatal("built graph must be frozen")
	}
	if got, want := result.Stats.Functions, 10*4; got != want {
		t.Errorf("Functions = %d, want %d", got, want)
	}
	// Every driver's 3 bare calls name helpers that exist in exactly one
	// other file, so everything resolves.
	if got, want := result.Stats.EdgesResolved, 10*3; got != want {
		t.Errorf("EdgesResolved = %d, want %d", got, want)
	}
	if result.Stats.EdgesUnresolved != 0 {
		t.Errorf("EdgesUnresolved = %d, want 0", result.Stats.EdgesUnresolved)
	}

	driver := fid("src/pkg_000.go", "driver_000", 1)
	callees := g.GetCallees(driver)
	if len(callees) != 3 {
		t.Fatalf("driver_000 callees = %d, want 3", len(callees))
	}
	for _, callee := range callees {
		if callee.File != "src/pkg_001.go" {
			t.Errorf("driver_000 callee %s not in the next file", callee)
		}
	}
}

func TestBuilderSequentialResolutionMatchesParallel(t *testing.T) {
	input := parseResultFixture(25, 4)

	par, err := NewBuilder(WithWorkerCount(8)).Build(context.Background(), input)
	if err != nil {
		t.Fatalf("parallel build failed: %v", err)
	}
	seq, err := NewBuilder(WithWorkerCount(8), WithSequentialResolution()).Build(context.Background(), input)
	if err != nil {
		t.Fatalf("sequential build failed: %v", err)
	}

	if !reflect.DeepEqual(graphFingerprint(par.Graph), graphFingerprint(seq.Graph)) {
		t.Error("sequential and parallel resolution produced different graphs")
	}
	if par.Resolution != seq.Resolution {
		t.Errorf("resolution stats differ: parallel %+v sequential %+v", par.Resolution, seq.Resolution)
	}
}

func TestBuilderSoftFileFailures(t *testing.T) {
	input := parseResultFixture(4, 2)
	input = append(input, nil)
	input = append(input, &ast.ParseResult{
		FilePath: "src/broken.go",
		Language: "go",
		Functions: []ast.FunctionDecl{
			{Name: "", StartLine: 1},
		},
	})

	result, err := NewBuilder(WithWorkerCount(3)).Build(context.Background(), input)
	if err != nil {
		t.Fatalf("soft failures must not fail the build: %v", err)
	}
	if !result.Incomplete {
		t.Error("Incomplete must be set when files failed")
	}
	if result.Success() {
		t.Error("Success must be false when files failed")
	}
	if got := len(result.FileErrors); got != 2 {
		t.Fatalf("FileErrors = %d, want 2", got)
	}
	if result.Stats.FilesFailed != 2 {
		t.Errorf("FilesFailed = %d, want 2", result.Stats.FilesFailed)
	}
	if result.Stats.FilesProcessed != 4 {
		t.Errorf("FilesProcessed = %d, want 4", result.Stats.FilesProcessed)
	}
	// The healthy files are untouched by the failures.
	if got, want := result.Stats.Functions, 4*3; got != want {
		t.Errorf("Functions = %d, want %d", got, want)
	}
	for _, fe := range result.FileErrors {
		if fe.Stage != "extract" {
			t.Errorf("unexpected stage %q", fe.Stage)
		}
	}
}

func TestBuilderParserDiagnosticsReported(t *testing.T) {
	input := []*ast.ParseResult{{
		FilePath: "src/partial.go",
		Language: "go",
		Functions: []ast.FunctionDecl{
			{Name: "survivor", StartLine: 1, EndLine: 3},
		},
		Errors: []string{"line 40: unexpected token"},
	}}

	result, err := NewBuilder().Build(context.Background(), input)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(result.FileErrors) != 1 {
		t.Fatalf("FileErrors = %d, want 1", len(result.FileErrors))
	}
	if result.FileErrors[0].Stage != "parse" {
		t.Errorf("stage = %q, want parse", result.FileErrors[0].Stage)
	}
	// Diagnostics do not count the file as failed.
	if result.Stats.FilesFailed != 0 {
		t.Errorf("FilesFailed = %d, want 0", result.Stats.FilesFailed)
	}
	if !result.Graph.Contains(fid("src/partial.go", "survivor", 1)) {
		t.Error("functions from a file with diagnostics must still land")
	}
}

func TestBuilderEmptyInput(t *testing.T) {
	result, err := NewBuilder().Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("empty build failed: %v", err)
	}
	if result.Graph.State() != GraphStateReadOnly {
		t.Error("empty graph must still be frozen")
	}
	if result.Graph.NodeCount() != 0 || result.Graph.CallCount() != 0 {
		t.Error("empty input must produce an empty graph")
	}
	if !result.Success() {
		t.Error("empty build is a success")
	}
}

func TestBuilderProgressCallback(t *testing.T) {
	var stages []string
	var lastDone, lastTotal int
	builder := NewBuilder(
		WithWorkerCount(2),
		WithProgress(func(stage string, done, total int) {
			stages = append(stages, stage)
			lastDone, lastTotal = done, total
		}),
	)

	if _, err := builder.Build(context.Background(), parseResultFixture(8, 2)); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(stages) == 0 {
		t.Fatal("progress callback never fired")
	}
	sort.Strings(stages)
	if stages[0] != "extract" {
		t.Errorf("unexpected stage %q", stages[0])
	}
	if lastDone != 8 || lastTotal != 8 {
		t.Errorf("final progress %d/%d, want 8/8", lastDone, lastTotal)
	}
}

func TestBuilderCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBuilder(WithWorkerCount(2)).Build(ctx, parseResultFixture(20, 3))
	if err == nil {
		t.Fatal("canceled context must fail the build")
	}
}

func TestBuilderCapacityExceededIsFatal(t *testing.T) {
	_, err := NewBuilder(WithMaxFunctions(2)).Build(context.Background(), parseResultFixture(3, 2))
	if err == nil {
		t.Fatal("exceeding the function cap must fail the build")
	}
}
