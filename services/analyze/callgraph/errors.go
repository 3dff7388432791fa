// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package callgraph builds and queries whole-program call graphs.
//
// The package turns per-file parse results into a single directed
// multigraph of callers and callees, resolves cross-file calls, and
// answers structural queries (transitive closure, criticality,
// delegation detection) used by technical-debt scoring.
//
// # Ownership Model
//
// The Graph is the single shared mutable resource. It is populated by
// monotonic additions during the build fold, rewritten in place by the
// resolver, then frozen. Builder owns the graph until Build returns;
// afterwards callers own a read-only graph.
//
// # Thread Safety
//
// Graph mutation methods are internally synchronized, but the build
// protocol never relies on that: extraction workers return private
// fragments, and a single goroutine applies them. All query methods are
// safe for concurrent use once the graph is frozen.
//
// # Lifecycle
//
//	g := NewGraph()            // GraphStateBuilding
//	g.AddFunction(...)         // build phase, monotonic additions
//	g.AddCall(...)
//	ResolveCrossFileCalls(g)   // in-place edge rewrites
//	g.Freeze()                 // GraphStateReadOnly
//	g.TransitiveCallees(...)   // query phase
//
// Mutation after Freeze returns ErrGraphFrozen. Queries before Freeze
// return ErrGraphBuilding.
package callgraph

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph lifecycle and capacity violations.
//
// Check with errors.Is() to determine the category of failure without
// inspecting error messages.
var (
	// ErrGraphFrozen indicates a mutation was attempted after Freeze.
	ErrGraphFrozen = errors.New("graph is frozen")

	// ErrGraphBuilding indicates a query was attempted before Freeze.
	ErrGraphBuilding = errors.New("graph is still building")

	// ErrTooManyFunctions indicates the configured node capacity was hit.
	ErrTooManyFunctions = errors.New("too many functions")

	// ErrTooManyCalls indicates the configured edge capacity was hit.
	ErrTooManyCalls = errors.New("too many calls")

	// ErrUnknownFunction indicates a lookup for an identity that is not
	// in the graph.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrInvalidCallType indicates a call kind outside the closed set.
	ErrInvalidCallType = errors.New("invalid call type")

	// ErrMalformedID indicates a serialized FunctionID that does not
	// parse as "file:name:line".
	ErrMalformedID = errors.New("malformed function id")
)

// FileError records a per-file extraction failure.
//
// File failures are soft: the file contributes nothing to the graph and
// the batch continues. The builder aggregates FileErrors into the
// BuildResult rather than aborting.
type FileError struct {
	// FilePath is the file that failed.
	FilePath string

	// Stage is the pipeline stage that failed ("parse", "extract").
	Stage string

	// Err is the underlying failure.
	Err error
}

// Error returns "stage file: cause".
func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.FilePath, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FileError) Unwrap() error {
	return e.Err
}
