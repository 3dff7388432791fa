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
	"log/slog"
	"runtime"
	"sync"
)

// Parallel traversal tuning.
const (
	// parallelThreshold is the level size at which BFS expansion fans
	// out to workers. Below it, goroutine overhead dominates.
	parallelThreshold = 32

	// maxParallelWorkers caps traversal workers regardless of CPU count.
	maxParallelWorkers = 8
)

// expandLevelParallel expands one large BFS level with a worker pool.
//
// Description:
//
//	The level is split into contiguous chunks; each worker reads the
//	adjacency indices (safe: the graph is frozen during queries) and
//	collects its chunk's neighbors into a private slice. The merge into
//	the shared reached/expanded sets happens on the calling goroutine,
//	so the sets need no locking. The reached set is identical to the
//	serial expansion; only discovery order differs, and order never
//	escapes this function.
func (g *Graph) expandLevelParallel(level []FunctionID, reached, expanded map[FunctionID]struct{}, dir traversalDirection) []FunctionID {
	workers := runtime.NumCPU()
	if workers > maxParallelWorkers {
		workers = maxParallelWorkers
	}
	if workers > len(level) {
		workers = len(level)
	}

	chunkSize := (len(level) + workers - 1) / workers
	perWorker := make([][]FunctionID, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunkSize
		hi := lo + chunkSize
		if hi > len(level) {
			hi = len(level)
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(slot int, chunk []FunctionID) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					buf := make([]byte, 4096)
					n := runtime.Stack(buf, false)
					slog.Error("traversal worker panic",
						slog.Any("panic", r),
						slog.String("stack", string(buf[:n])))
				}
			}()

			local := make([]FunctionID, 0, len(chunk)*2)
			for _, node := range chunk {
				local = append(local, g.neighbors(node, dir)...)
			}
			perWorker[slot] = local
		}(w, level[lo:hi])
	}
	wg.Wait()

	next := make([]FunctionID, 0, len(level))
	for _, local := range perWorker {
		for _, neighbor := range local {
			reached[neighbor] = struct{}{}
			if _, seen := expanded[neighbor]; !seen {
				expanded[neighbor] = struct{}{}
				next = append(next, neighbor)
			}
		}
	}
	return next
}
