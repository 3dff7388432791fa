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
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/AleutianAI/DebtScope/services/analyze/ast"
)

// fragment is the output of extracting one file: its definitions, its
// call edges (some unresolved), and per-file diagnostics. Fragments are
// private to the worker that produced them until the fold applies them.
type fragment struct {
	file      string
	functions []fragmentFunction
	calls     []FunctionCall
	errors    []string
}

// fragmentFunction pairs an identity with its node metadata.
type fragmentFunction struct {
	id   FunctionID
	info FunctionInfo
}

// fileIndexes holds the same-file lookup tables used to classify call
// sites at extraction time.
type fileIndexes struct {
	// freeFuncs maps bare name -> identity of a same-file free function.
	freeFuncs map[string]FunctionID

	// methods maps receiver type -> method name -> identity.
	methods map[string]map[string]FunctionID

	// constructorReturns maps same-file function names to the type name
	// they return, feeding the type tracker's constructor resolution.
	constructorReturns map[string]string

	// typeNames is the set of receiver types defined in the file.
	typeNames map[string]bool
}

// extractFragment converts one parse result into a graph fragment.
//
// Description:
//
//	Implements per-file extraction: every definition becomes a node with
//	a qualified identity; every call site becomes an edge, resolved
//	immediately when the target is determinable within the file
//	(same-file free function, same-file type's method, receiver type
//	recovered by the type tracker) and otherwise recorded as Unresolved
//	with its disambiguation context.
//
// Outputs:
//
//	*fragment - Never nil on success.
//	error     - Non-nil only for nil/invalid input; the caller treats it
//	            as a soft per-file failure.
func extractFragment(result *ast.ParseResult) (*fragment, error) {
	if result == nil {
		return nil, fmt.Errorf("extract: nil parse result")
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("extract %s: %w", result.FilePath, err)
	}

	frag := &fragment{
		file:      result.FilePath,
		functions: make([]fragmentFunction, 0, len(result.Functions)),
		calls:     make([]FunctionCall, 0, 16),
		errors:    append([]string(nil), result.Errors...),
	}

	idx := buildFileIndexes(result)

	for i := range result.Functions {
		decl := &result.Functions[i]
		id := FunctionID{
			File: result.FilePath,
			Name: decl.QualifiedName(),
			Line: decl.StartLine,
		}
		frag.functions = append(frag.functions, fragmentFunction{
			id: id,
			info: FunctionInfo{
				IsEntryPoint: decl.IsEntryPoint,
				IsTest:       decl.IsTest,
				Complexity:   decl.Complexity,
				LineCount:    decl.LineCount(),
			},
		})

		frag.calls = append(frag.calls, extractCalls(id, decl, idx)...)
	}

	// Definitions arrive in source order already, but sorting pins the
	// fragment layout regardless of parser iteration order.
	sort.Slice(frag.functions, func(i, j int) bool {
		return frag.functions[i].id.Less(frag.functions[j].id)
	})

	return frag, nil
}

// buildFileIndexes makes one pass over the file's definitions.
func buildFileIndexes(result *ast.ParseResult) *fileIndexes {
	idx := &fileIndexes{
		freeFuncs:          make(map[string]FunctionID),
		methods:            make(map[string]map[string]FunctionID),
		constructorReturns: make(map[string]string),
		typeNames:          make(map[string]bool),
	}

	for i := range result.Functions {
		decl := &result.Functions[i]
		id := FunctionID{
			File: result.FilePath,
			Name: decl.QualifiedName(),
			Line: decl.StartLine,
		}

		if decl.IsMethod() {
			byName, ok := idx.methods[decl.Receiver]
			if !ok {
				byName = make(map[string]FunctionID)
				idx.methods[decl.Receiver] = byName
			}
			if _, exists := byName[decl.Name]; !exists {
				byName[decl.Name] = id
			}
			idx.typeNames[decl.Receiver] = true
			continue
		}

		if _, exists := idx.freeFuncs[decl.Name]; !exists {
			idx.freeFuncs[decl.Name] = id
		}
		if decl.ReturnType != "" {
			if _, exists := idx.constructorReturns[decl.Name]; !exists {
				idx.constructorReturns[decl.Name] = decl.ReturnType
			}
		}
	}
	return idx
}

// extractCalls classifies every call site in one function body.
//
// Bindings and call sites are replayed in line order so the type tracker
// sees each assignment before the calls that follow it.
func extractCalls(caller FunctionID, decl *ast.FunctionDecl, idx *fileIndexes) []FunctionCall {
	tracker := newTypeTracker(decl.Receiver, idx.constructorReturns)

	type event struct {
		line    int
		binding *ast.LocalBinding
		call    *ast.CallSite
	}
	events := make([]event, 0, len(decl.Calls)+len(decl.Bindings))
	for i := range decl.Bindings {
		events = append(events, event{line: decl.Bindings[i].Line, binding: &decl.Bindings[i]})
	}
	for i := range decl.Calls {
		events = append(events, event{line: decl.Calls[i].Line, call: &decl.Calls[i]})
	}
	// Bindings sort ahead of calls on the same line: in the common
	// `x := T::new(); x.f()` one-liner the binding must be live before
	// the method call is classified.
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].line != events[j].line {
			return events[i].line < events[j].line
		}
		return events[i].binding != nil && events[j].binding == nil
	})

	calls := make([]FunctionCall, 0, len(decl.Calls))
	for _, ev := range events {
		if ev.binding != nil {
			applyBinding(tracker, ev.binding)
			continue
		}
		calls = append(calls, classifyCall(caller, ev.call, tracker, idx))
	}
	return calls
}

// applyBinding feeds one local declaration to the tracker.
func applyBinding(tracker *typeTracker, b *ast.LocalBinding) {
	switch {
	case b.TypeName != "":
		tracker.bindAnnotation(b.Name, b.TypeName)
	case b.Constructor != "":
		tracker.bindConstructor(b.Name, b.Constructor, b.ConstructorQualifier)
	}
}

// classifyCall turns one call site into a graph edge, resolving it
// immediately when the file's own definitions pin the target.
func classifyCall(caller FunctionID, site *ast.CallSite, tracker *typeTracker, idx *fileIndexes) FunctionCall {
	callType := CallDirect
	if site.Generated {
		callType = CallMacro
	}

	switch site.Style {
	case ast.CallStyleBare:
		if target, ok := idx.freeFuncs[site.Target]; ok {
			return FunctionCall{Caller: caller, Callee: ResolvedCallee(target), Type: callType, Line: site.Line}
		}
		return FunctionCall{
			Caller: caller,
			Callee: UnresolvedCallee(site.Target, CallContext{
				Style:      ast.CallStyleBare,
				CallerFile: caller.File,
			}),
			Type: callType,
			Line: site.Line,
		}

	case ast.CallStyleQualified:
		if !site.Generated {
			callType = CallMethod
		}
		if byName, ok := idx.methods[site.Qualifier]; ok {
			if target, ok := byName[site.Target]; ok {
				return FunctionCall{Caller: caller, Callee: ResolvedCallee(target), Type: callType, Line: site.Line}
			}
		}
		// A lowercase qualifier names a package or module, so the
		// target is a free function elsewhere; an uppercase qualifier
		// is taken as a type whose method lives in another file.
		receiverType := ""
		if isTypeQualifier(site.Qualifier) {
			receiverType = site.Qualifier
		} else if !site.Generated {
			callType = CallDirect
		}
		return FunctionCall{
			Caller: caller,
			Callee: UnresolvedCallee(site.Target, CallContext{
				Style:        ast.CallStyleQualified,
				ReceiverType: receiverType,
				CallerFile:   caller.File,
			}),
			Type: callType,
			Line: site.Line,
		}

	case ast.CallStyleMethod:
		if !site.Generated {
			callType = CallMethod
		}
		receiverType, known := tracker.lookup(site.Qualifier)
		if !known && isTypeQualifier(site.Qualifier) && idx.typeNames[site.Qualifier] {
			receiverType = site.Qualifier
			known = true
		}
		if known {
			if byName, ok := idx.methods[receiverType]; ok {
				if target, ok := byName[site.Target]; ok {
					return FunctionCall{Caller: caller, Callee: ResolvedCallee(target), Type: callType, Line: site.Line}
				}
			}
		}
		return FunctionCall{
			Caller: caller,
			Callee: UnresolvedCallee(site.Target, CallContext{
				Style:        ast.CallStyleMethod,
				ReceiverType: receiverType,
				CallerFile:   caller.File,
			}),
			Type: callType,
			Line: site.Line,
		}

	default:
		return FunctionCall{
			Caller: caller,
			Callee: UnresolvedCallee(site.Target, CallContext{
				Style:      site.Style,
				CallerFile: caller.File,
			}),
			Type: CallDynamic,
			Line: site.Line,
		}
	}
}

// isTypeQualifier reports whether a qualifier plausibly names a type
// rather than a package or variable: first rune uppercase.
func isTypeQualifier(q string) bool {
	if q == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(q)
	return unicode.IsUpper(r)
}
