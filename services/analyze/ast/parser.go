// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast defines the parser contract consumed by the call-graph engine.
//
// Parsers turn raw source bytes into a ParseResult: the function and method
// declarations of one file, each with its call sites and local variable
// bindings. The call-graph builder consumes ParseResults; it never re-parses
// a file, so each file is parsed exactly once per analysis run.
//
// Thread Safety:
//
//	Parser implementations must be safe for concurrent use. ParserRegistry
//	is safe for concurrent use.
package ast

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Parser converts source code into a ParseResult.
//
// Implementations must be stateless or internally synchronized: the builder
// calls Parse from multiple goroutines with the same Parser instance.
type Parser interface {
	// Parse extracts function declarations and call sites from content.
	//
	// Returns a non-nil ParseResult on success. Syntactically invalid
	// files may yield partial results with entries in ParseResult.Errors.
	// A non-nil error means the file contributed nothing.
	Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error)

	// Language returns the canonical language name (e.g. "go").
	Language() string

	// Extensions returns the file extensions this parser handles,
	// including the leading dot.
	Extensions() []string
}

// CallStyle classifies the syntax of a call site.
//
// The style is recorded at extraction time and later used by the resolver
// to filter candidates: a bare-identifier site never resolves to a method,
// and a method-style site never resolves to a free function.
type CallStyle int

const (
	// CallStyleBare is a plain identifier call: helper().
	CallStyleBare CallStyle = iota

	// CallStyleMethod is a call through a receiver expression: x.method().
	CallStyleMethod

	// CallStyleQualified is a statically qualified call such as
	// Type::method() or pkg.Function(). The qualifier names a type or a
	// package, not a runtime value.
	CallStyleQualified
)

// String returns the human-readable style name.
func (s CallStyle) String() string {
	switch s {
	case CallStyleBare:
		return "bare"
	case CallStyleMethod:
		return "method"
	case CallStyleQualified:
		return "qualified"
	default:
		return "unknown"
	}
}

// Location identifies a span of source text.
type Location struct {
	FilePath  string
	StartLine int
	EndLine   int
	StartCol  int
	EndCol    int
}

// CallSite is one call expression found inside a function body.
type CallSite struct {
	// Target is the bare name of the callee, without any qualifier.
	Target string

	// Qualifier is the receiver or qualifier text for method-style and
	// qualified calls ("x" in x.method(), "Type" in Type::new()).
	// Empty for bare calls.
	Qualifier string

	// Style records the call syntax.
	Style CallStyle

	// Generated marks call sites produced by macro or code-generation
	// expansion rather than hand-written source.
	Generated bool

	// Line is the 1-indexed line of the call expression.
	Line int
}

// LocalBinding records a local variable declaration inside a function body.
//
// The call-graph extractor feeds bindings to its type tracker so that a
// later x.method() can resolve against the type x was bound to.
type LocalBinding struct {
	// Name is the variable identifier.
	Name string

	// TypeName is the static type when the parser can see one directly
	// (explicit annotation or composite literal). Empty otherwise.
	TypeName string

	// Constructor is the bare callee name when the initializer is a call
	// expression (e.g. "new" for Type::new(), "NewServer" for NewServer()).
	// Empty when the initializer is not a call.
	Constructor string

	// ConstructorQualifier is the qualifier of the initializer call, if
	// any ("Type" for Type::new()).
	ConstructorQualifier string

	// Line is the 1-indexed line of the declaration.
	Line int
}

// FunctionDecl is one function or method definition.
type FunctionDecl struct {
	// Name is the bare identifier of the function or method.
	Name string

	// Receiver is the receiver type name for methods, "" for free
	// functions. Pointer receivers are recorded without the star.
	Receiver string

	// StartLine and EndLine bound the definition, 1-indexed inclusive.
	StartLine int
	EndLine   int

	// Complexity is the approximate cyclomatic complexity (>= 1).
	Complexity int

	// IsTest marks test functions (e.g. TestXxx in _test.go files).
	IsTest bool

	// IsEntryPoint marks program entry points (e.g. func main in
	// package main).
	IsEntryPoint bool

	// ReturnType is the bare name of the first declared return type,
	// used to resolve constructor chains. Empty when none or unnamed.
	ReturnType string

	// Calls lists every call site in the body, in source order.
	Calls []CallSite

	// Bindings lists local variable declarations in the body, in
	// source order.
	Bindings []LocalBinding
}

// LineCount returns the number of source lines the definition spans.
func (d *FunctionDecl) LineCount() int {
	if d.EndLine < d.StartLine {
		return 0
	}
	return d.EndLine - d.StartLine + 1
}

// IsMethod reports whether the declaration has a receiver.
func (d *FunctionDecl) IsMethod() bool {
	return d.Receiver != ""
}

// QualifiedName returns the identity-forming name: "Type::method" for
// methods, the bare name for free functions.
func (d *FunctionDecl) QualifiedName() string {
	if d.Receiver == "" {
		return d.Name
	}
	return d.Receiver + "::" + d.Name
}

// ParseResult is the output of parsing one file.
type ParseResult struct {
	// FilePath is the path the file was parsed as, relative to the
	// project root with forward slashes.
	FilePath string

	// Language is the canonical language name.
	Language string

	// Hash is the hex-encoded SHA-256 of the parsed content.
	Hash string

	// ParsedAtMilli is the parse completion time in Unix milliseconds.
	ParsedAtMilli int64

	// Functions lists every function and method defined in the file.
	Functions []FunctionDecl

	// Errors lists non-fatal problems encountered while parsing.
	// A non-empty Errors slice still yields usable Functions.
	Errors []string
}

// Validate checks structural soundness of the result.
func (r *ParseResult) Validate() error {
	if r.FilePath == "" {
		return fmt.Errorf("%w: empty file path", ErrInvalidResult)
	}
	for i := range r.Functions {
		fn := &r.Functions[i]
		if fn.Name == "" {
			return fmt.Errorf("%w: %s: function %d has empty name", ErrInvalidResult, r.FilePath, i)
		}
		if fn.StartLine <= 0 {
			return fmt.Errorf("%w: %s: function %q has line %d", ErrInvalidResult, r.FilePath, fn.Name, fn.StartLine)
		}
	}
	return nil
}

// GenerateID produces a stable identifier for a definition, formatted
// as "file:line:name".
func GenerateID(filePath string, line int, name string) string {
	return fmt.Sprintf("%s:%d:%s", filePath, line, name)
}

// ParserRegistry maps languages and file extensions to parsers.
type ParserRegistry struct {
	mu          sync.RWMutex
	byLanguage  map[string]Parser
	byExtension map[string]Parser
}

// NewParserRegistry creates an empty registry.
func NewParserRegistry() *ParserRegistry {
	return &ParserRegistry{
		byLanguage:  make(map[string]Parser),
		byExtension: make(map[string]Parser),
	}
}

// Register adds a parser, indexing it by language and by each extension.
// A later registration for the same language or extension wins.
func (r *ParserRegistry) Register(p Parser) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byLanguage[strings.ToLower(p.Language())] = p
	for _, ext := range p.Extensions() {
		r.byExtension[strings.ToLower(ext)] = p
	}
}

// GetByLanguage returns the parser for a language name.
func (r *ParserRegistry) GetByLanguage(language string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byLanguage[strings.ToLower(language)]
	return p, ok
}

// GetByExtension returns the parser for a file extension (with or without
// the leading dot).
func (r *ParserRegistry) GetByExtension(ext string) (Parser, bool) {
	if ext != "" && ext[0] != '.' {
		ext = "." + ext
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byExtension[strings.ToLower(ext)]
	return p, ok
}

// Languages returns the registered language names in no particular order.
func (r *ParserRegistry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byLanguage))
	for lang := range r.byLanguage {
		out = append(out, lang)
	}
	return out
}
