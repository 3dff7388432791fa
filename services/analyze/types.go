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
	"github.com/AleutianAI/DebtScope/services/analyze/callgraph"
)

// AnalyzeRequest is the request body for POST /v1/analyze/graph.
type AnalyzeRequest struct {
	// ProjectRoot is the absolute path to the project to analyze.
	ProjectRoot string `json:"project_root" binding:"required"`

	// ExcludePatterns are glob patterns matched against paths relative
	// to the project root. Default: ["vendor/*", "node_modules/*"].
	ExcludePatterns []string `json:"exclude_patterns"`
}

// AnalyzeResponse summarizes a build.
type AnalyzeResponse struct {
	ProjectRoot     string   `json:"project_root"`
	Functions       int      `json:"functions"`
	CallEdges       int      `json:"call_edges"`
	EdgesResolved   int      `json:"edges_resolved"`
	EdgesUnresolved int      `json:"edges_unresolved"`
	FilesProcessed  int      `json:"files_processed"`
	FilesFailed     int      `json:"files_failed"`
	EntryPoints     int      `json:"entry_points"`
	DurationMs      int64    `json:"duration_ms"`
	Incomplete      bool     `json:"incomplete"`
	Cached          bool     `json:"cached"`
	Errors          []string `json:"errors,omitempty"`
}

// FunctionRef describes one function in API responses.
type FunctionRef struct {
	// ID is the canonical "file:name:line" identity string.
	ID           string `json:"id"`
	File         string `json:"file"`
	Name         string `json:"name"`
	Line         int    `json:"line"`
	Complexity   int    `json:"complexity"`
	LineCount    int    `json:"line_count"`
	IsEntryPoint bool   `json:"is_entry_point"`
	IsTest       bool   `json:"is_test"`
}

// functionRef builds a FunctionRef from a graph node. Metadata fields
// stay zero when the identity is a placeholder the graph never saw a
// definition for.
func functionRef(g *callgraph.Graph, id callgraph.FunctionID) FunctionRef {
	ref := FunctionRef{
		ID:   id.String(),
		File: id.File,
		Name: id.Name,
		Line: id.Line,
	}
	if info, ok := g.Info(id); ok {
		ref.Complexity = info.Complexity
		ref.LineCount = info.LineCount
		ref.IsEntryPoint = info.IsEntryPoint
		ref.IsTest = info.IsTest
	}
	return ref
}

// CallersResponse lists the direct callers of a function.
type CallersResponse struct {
	Function string        `json:"function"`
	Callers  []FunctionRef `json:"callers"`
}

// CalleesResponse lists the direct resolved callees of a function.
type CalleesResponse struct {
	Function string        `json:"function"`
	Callees  []FunctionRef `json:"callees"`
}

// TransitiveResponse lists functions reachable within a depth bound.
type TransitiveResponse struct {
	Function  string        `json:"function"`
	Direction string        `json:"direction"`
	Depth     int           `json:"depth"`
	Reached   []FunctionRef `json:"reached"`
}

// CriticalityResponse carries the criticality score for a function.
type CriticalityResponse struct {
	Function     string  `json:"function"`
	Score        float64 `json:"score"`
	FanIn        int     `json:"fan_in"`
	FanOut       int     `json:"fan_out"`
	IsEntryPoint bool    `json:"is_entry_point"`
	IsTestHelper bool    `json:"is_test_helper"`
}

// DelegationResponse reports the delegation classification.
type DelegationResponse struct {
	Function            string  `json:"function"`
	IsDelegator         bool    `json:"is_delegator"`
	Complexity          int     `json:"complexity"`
	CalleeCount         int     `json:"callee_count"`
	AvgCalleeComplexity float64 `json:"avg_callee_complexity"`
}

// StatsResponse reports graph and cache counters for a project.
type StatsResponse struct {
	ProjectRoot     string `json:"project_root"`
	Functions       int    `json:"functions"`
	Calls           int    `json:"calls"`
	ResolvedCalls   int    `json:"resolved_calls"`
	UnresolvedCalls int    `json:"unresolved_calls"`
	EntryPoints     int    `json:"entry_points"`
	TestFunctions   int    `json:"test_functions"`
	Files           int    `json:"files"`
	CacheHits       int64  `json:"cache_hits"`
	CacheMisses     int64  `json:"cache_misses"`
	CacheEntries    int    `json:"cache_entries"`
}

// ErrorResponse is the uniform error envelope for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
