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
	"strconv"
	"strings"

	"github.com/AleutianAI/DebtScope/services/analyze/ast"
)

// CallType classifies how a call reaches its target.
//
// The set is closed: every call site maps to exactly one of these four
// kinds, and downstream consumers may exhaustively switch on it.
type CallType int

const (
	// CallDirect is a statically dispatched call to a free function.
	CallDirect CallType = iota

	// CallMethod is a call dispatched through a receiver.
	CallMethod

	// CallDynamic is a call through a function value, interface, or
	// other runtime-determined target.
	CallDynamic

	// CallMacro is a call site produced by macro or code-generation
	// expansion.
	CallMacro

	// NumCallTypes is the number of call kinds, for array-backed indices.
	NumCallTypes
)

// String returns the human-readable call kind.
func (t CallType) String() string {
	switch t {
	case CallDirect:
		return "direct"
	case CallMethod:
		return "method"
	case CallDynamic:
		return "dynamic"
	case CallMacro:
		return "macro"
	default:
		return "unknown"
	}
}

// IsValid reports whether t is one of the defined call kinds.
func (t CallType) IsValid() bool {
	return t >= CallDirect && t < NumCallTypes
}

// FunctionID is the identity of one function or method definition.
//
// Description:
//
//	Identity is the full (File, Name, Line) triple. Name encodes
//	qualification: free functions use the bare identifier, methods use
//	"Type::method". Two definitions sharing a bare name but differing in
//	qualification are distinct entities; collapsing them is the bug class
//	this model exists to prevent.
//
// FunctionID is comparable and is used directly as a map key.
type FunctionID struct {
	// File is the project-relative path of the defining file.
	File string

	// Name is the qualified name: "helper" or "Server::handle".
	Name string

	// Line is the 1-indexed line of the definition.
	Line int
}

// String renders the identity as "file:name:line", the stable key format
// used by snapshot serialization.
func (id FunctionID) String() string {
	return fmt.Sprintf("%s:%s:%d", id.File, id.Name, id.Line)
}

// SimpleName returns the bare name with any "Type::" qualifier removed.
func (id FunctionID) SimpleName() string {
	if idx := strings.LastIndex(id.Name, "::"); idx >= 0 {
		return id.Name[idx+2:]
	}
	return id.Name
}

// ReceiverType returns the "Type" part of a qualified method name, or ""
// for free functions.
func (id FunctionID) ReceiverType() string {
	if idx := strings.LastIndex(id.Name, "::"); idx >= 0 {
		return id.Name[:idx]
	}
	return ""
}

// IsMethod reports whether the identity names a method.
func (id FunctionID) IsMethod() bool {
	return strings.Contains(id.Name, "::")
}

// Less imposes a total order (File, Name, Line), used for deterministic
// iteration during merges.
func (id FunctionID) Less(other FunctionID) bool {
	if id.File != other.File {
		return id.File < other.File
	}
	if id.Name != other.Name {
		return id.Name < other.Name
	}
	return id.Line < other.Line
}

// ParseFunctionID parses the "file:name:line" form produced by String.
//
// File paths are project-relative and never contain colons, while the
// name may contain "::", so the file ends at the FIRST colon and the
// line starts after the LAST one.
func ParseFunctionID(s string) (FunctionID, error) {
	firstColon := strings.Index(s, ":")
	lastColon := strings.LastIndex(s, ":")
	if firstColon <= 0 || lastColon == len(s)-1 || lastColon <= firstColon+1 {
		return FunctionID{}, fmt.Errorf("%w: %q", ErrMalformedID, s)
	}
	line, err := strconv.Atoi(s[lastColon+1:])
	if err != nil {
		return FunctionID{}, fmt.Errorf("%w: bad line in %q", ErrMalformedID, s)
	}
	return FunctionID{
		File: s[:firstColon],
		Name: s[firstColon+1 : lastColon],
		Line: line,
	}, nil
}

// CallContext records the disambiguation context of an unresolved call
// site: how the call was written and where it was written. The resolver
// uses it to filter candidates.
type CallContext struct {
	// Style is the call syntax observed at the site.
	Style ast.CallStyle

	// ReceiverType is the static receiver type when the extractor's
	// type tracker recovered one, "" otherwise.
	ReceiverType string

	// CallerFile is the file containing the call site, used for the
	// same-file preference during resolution.
	CallerFile string
}

// Callee is the target slot of a call edge: either a resolved FunctionID
// or an unresolved simple name plus its disambiguation context. There is
// no sentinel encoding; resolution state is explicit.
//
// The zero Callee is unresolved with an empty name and is not valid.
type Callee struct {
	resolved bool
	id       FunctionID
	name     string
	ctx      CallContext
}

// ResolvedCallee constructs a callee with a known target.
func ResolvedCallee(id FunctionID) Callee {
	return Callee{resolved: true, id: id}
}

// UnresolvedCallee constructs a callee known only by its simple name.
func UnresolvedCallee(name string, ctx CallContext) Callee {
	return Callee{name: name, ctx: ctx}
}

// IsResolved reports whether the target is a concrete FunctionID.
func (c Callee) IsResolved() bool {
	return c.resolved
}

// ID returns the resolved target. ok is false for unresolved callees.
func (c Callee) ID() (FunctionID, bool) {
	return c.id, c.resolved
}

// SimpleName returns the bare callee name regardless of resolution state.
func (c Callee) SimpleName() string {
	if c.resolved {
		return c.id.SimpleName()
	}
	return c.name
}

// Context returns the disambiguation context. Meaningful only while the
// callee is unresolved.
func (c Callee) Context() CallContext {
	return c.ctx
}

// String renders the callee for logs and error messages.
func (c Callee) String() string {
	if c.resolved {
		return c.id.String()
	}
	return fmt.Sprintf("?%s(%s)", c.name, c.ctx.Style)
}

// FunctionCall is one edge of the call graph.
//
// The graph is a multigraph: several edges may share the same caller and
// callee, and each is retained so call frequency stays observable.
type FunctionCall struct {
	// Caller is the identity of the function containing the call site.
	Caller FunctionID

	// Callee is the target, resolved or not.
	Callee Callee

	// Type classifies the call.
	Type CallType

	// Line is the 1-indexed line of the call site.
	Line int
}

// FunctionInfo is the metadata attached to each graph node.
type FunctionInfo struct {
	// IsEntryPoint marks program entry points (main, exported handlers).
	IsEntryPoint bool

	// IsTest marks test functions.
	IsTest bool

	// Complexity is the function's cyclomatic complexity.
	Complexity int

	// LineCount is the definition's source line span.
	LineCount int
}
