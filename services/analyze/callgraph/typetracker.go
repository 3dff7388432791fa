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

// typeSource records how a variable's type was determined. Tracked for
// debugging resolution decisions; it does not affect lookup.
type typeSource int

const (
	typeFromAnnotation typeSource = iota
	typeFromConstructor
	typeFromLiteral
)

// trackedType is a variable binding held by the tracker.
type trackedType struct {
	typeName string
	source   typeSource
}

// scopeKind distinguishes the scopes the tracker maintains.
type scopeKind int

const (
	scopeFunction scopeKind = iota
	scopeBlock
)

type trackerScope struct {
	kind      scopeKind
	variables map[string]trackedType
}

// typeTracker binds local variables to static types within one function
// body.
//
// Description:
//
//	The tracker is intra-procedural and heuristic: it follows explicit
//	annotations, literal types, and constructor-call initializers, and it
//	knows the receiver type of the enclosing method. It performs no
//	inference across function boundaries. A variable's binding is the
//	type produced by its most recent tracked assignment; untracked
//	assignments leave the previous binding in place, which is the
//	accepted imprecision of this design.
//
// Thread Safety:
//
//	Not safe for concurrent use. Each extraction worker owns its own
//	tracker.
type typeTracker struct {
	scopes []trackerScope

	// receiverType is the enclosing method's receiver type, used to
	// resolve self-style calls. Empty inside free functions.
	receiverType string

	// constructorReturns maps same-file constructor names to the type
	// they produce, so `x := NewServer()` binds x to Server.
	constructorReturns map[string]string
}

// newTypeTracker creates a tracker for one function body.
func newTypeTracker(receiverType string, constructorReturns map[string]string) *typeTracker {
	return &typeTracker{
		scopes: []trackerScope{{
			kind:      scopeFunction,
			variables: make(map[string]trackedType),
		}},
		receiverType:       receiverType,
		constructorReturns: constructorReturns,
	}
}

// enterBlock pushes a nested scope.
func (t *typeTracker) enterBlock() {
	t.scopes = append(t.scopes, trackerScope{
		kind:      scopeBlock,
		variables: make(map[string]trackedType),
	})
}

// exitBlock pops the innermost scope. The function scope is never popped.
func (t *typeTracker) exitBlock() {
	if len(t.scopes) > 1 {
		t.scopes = t.scopes[:len(t.scopes)-1]
	}
}

// bindAnnotation records an explicitly typed variable.
func (t *typeTracker) bindAnnotation(name, typeName string) {
	t.bind(name, trackedType{typeName: typeName, source: typeFromAnnotation})
}

// bindLiteral records a variable initialized from a typed literal.
func (t *typeTracker) bindLiteral(name, typeName string) {
	t.bind(name, trackedType{typeName: typeName, source: typeFromLiteral})
}

// bindConstructor records a variable initialized by a constructor call.
//
// Two shapes are recognized: a qualified constructor (Type::new, Type.New)
// binds to the qualifier directly; a bare constructor (NewServer) binds to
// the return type registered for that name in the same file. Unrecognized
// constructors bind nothing.
func (t *typeTracker) bindConstructor(name, constructor, qualifier string) bool {
	if qualifier != "" {
		t.bind(name, trackedType{typeName: qualifier, source: typeFromConstructor})
		return true
	}
	if produced, ok := t.constructorReturns[constructor]; ok && produced != "" {
		t.bind(name, trackedType{typeName: produced, source: typeFromConstructor})
		return true
	}
	return false
}

func (t *typeTracker) bind(name string, bound trackedType) {
	if name == "" || name == "_" || bound.typeName == "" {
		return
	}
	t.scopes[len(t.scopes)-1].variables[name] = bound
}

// lookup resolves a variable to its tracked type, innermost scope first.
// Receiver identifiers (self, this) resolve to the enclosing method's
// receiver type.
func (t *typeTracker) lookup(name string) (string, bool) {
	if name == "self" || name == "this" {
		if t.receiverType != "" {
			return t.receiverType, true
		}
		return "", false
	}
	for i := len(t.scopes) - 1; i >= 0; i-- {
		if bound, ok := t.scopes[i].variables[name]; ok {
			return bound.typeName, true
		}
	}
	return "", false
}
