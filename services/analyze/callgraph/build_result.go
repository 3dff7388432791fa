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

// BuildStats summarizes one build run.
type BuildStats struct {
	// RunID uniquely identifies the build run.
	RunID string

	// FilesProcessed is the number of files that contributed fragments.
	FilesProcessed int

	// FilesFailed is the number of files skipped due to soft failures.
	FilesFailed int

	// Functions is the node count of the finished graph.
	Functions int

	// CallEdges is the edge count of the finished graph.
	CallEdges int

	// EdgesResolved is the number of cross-file edges the resolver
	// rewrote to concrete targets.
	EdgesResolved int

	// EdgesUnresolved is the number of edges left unresolved after the
	// resolution pass (true externals and honest ambiguities).
	EdgesUnresolved int

	// DurationMilli is the end-to-end build duration in milliseconds.
	DurationMilli int64

	// ResolveDurationMilli is the resolution phase duration.
	ResolveDurationMilli int64

	// Workers is the worker count the build actually used.
	Workers int
}

// BuildResult is the outcome of one build run.
//
// A build with file errors still returns a usable graph covering every
// file that succeeded; Incomplete flags the gap for reporting layers.
type BuildResult struct {
	// Graph is the finished, frozen graph. Never nil when the build
	// itself succeeded, even if individual files failed.
	Graph *Graph

	// FileErrors lists per-file soft failures in file order.
	FileErrors []*FileError

	// Resolution carries the resolver's counters.
	Resolution ResolutionStats

	// Stats carries build counters.
	Stats BuildStats

	// Incomplete is true when at least one file contributed nothing.
	Incomplete bool
}

// HasErrors reports whether any file failed.
func (r *BuildResult) HasErrors() bool {
	return len(r.FileErrors) > 0
}

// Success reports a clean build: a graph with no file failures.
func (r *BuildResult) Success() bool {
	return r.Graph != nil && !r.Incomplete
}
