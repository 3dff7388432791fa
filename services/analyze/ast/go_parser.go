// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// File size constants for input validation.
const (
	// DefaultMaxFileSize is the maximum file size the parser accepts (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// WarnFileSize is the threshold at which a warning is logged (1MB).
	WarnFileSize = 1 * 1024 * 1024

	// MaxCallSitesPerFunction bounds call extraction per function body.
	MaxCallSitesPerFunction = 1000

	// MaxBodyDepth bounds AST traversal depth inside a function body.
	MaxBodyDepth = 200
)

// GoParserOption configures a GoParser instance.
type GoParserOption func(*GoParser)

// WithMaxFileSize sets the maximum file size the parser will accept.
func WithMaxFileSize(bytes int64) GoParserOption {
	return func(p *GoParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// GoParser implements the Parser interface for Go source code.
//
// Description:
//
//	GoParser uses tree-sitter to extract function and method declarations,
//	their call sites, and local variable bindings. It is error-tolerant:
//	syntactically invalid files yield partial results with entries in
//	ParseResult.Errors.
//
// Thread Safety:
//
//	GoParser instances are safe for concurrent use. Each Parse call
//	creates its own tree-sitter parser internally.
type GoParser struct {
	maxFileSize int64
}

// NewGoParser creates a GoParser with the given options.
func NewGoParser(opts ...GoParserOption) *GoParser {
	p := &GoParser{
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns "go".
func (p *GoParser) Language() string { return "go" }

// Extensions returns the file extensions this parser handles.
func (p *GoParser) Extensions() []string { return []string{".go"} }

// Parse extracts function declarations from Go source code.
//
// Description:
//
//	Parses content with tree-sitter and walks the tree once, collecting
//	function_declaration and method_declaration nodes. For each body it
//	records call expressions (classified as bare, method, or qualified
//	using the file's import set) and short variable declarations whose
//	initializer is a call or composite literal.
//
// Inputs:
//   - ctx: Checked before and after parsing; tree-sitter itself cannot be
//     interrupted mid-parse.
//   - content: Raw Go source. Must be valid UTF-8 and within the size limit.
//   - filePath: Project-relative path with forward slashes.
//
// Outputs:
//   - *ParseResult: Never nil on success; may carry partial results.
//   - error: ErrFileTooLarge, ErrInvalidContent, or a context error.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (p *GoParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	ctx, span := startParseSpan(ctx, "go", filePath, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "go", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics(ctx, "go", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}

	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		recordParseMetrics(ctx, "go", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	hash := sha256.Sum256(content)

	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, "go", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "go", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	result := &ParseResult{
		FilePath:      filePath,
		Language:      "go",
		Hash:          hex.EncodeToString(hash[:]),
		ParsedAtMilli: time.Now().UnixMilli(),
		Functions:     make([]FunctionDecl, 0, 8),
		Errors:        make([]string, 0),
	}

	root := tree.RootNode()
	if root == nil {
		result.Errors = append(result.Errors, "tree-sitter returned nil root node")
		return result, nil
	}
	if root.HasError() {
		result.Errors = append(result.Errors, "source contains syntax errors")
	}

	packageName := p.extractPackageName(root, content)
	imports := p.extractImportNames(root, content)

	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "function_declaration":
			if fn, ok := p.extractFunction(child, content, filePath, packageName, imports); ok {
				result.Functions = append(result.Functions, fn)
			}
		case "method_declaration":
			if fn, ok := p.extractMethod(child, content, imports); ok {
				result.Functions = append(result.Functions, fn)
			}
		}
	}

	if err := result.Validate(); err != nil {
		recordParseMetrics(ctx, "go", time.Since(start), 0, false)
		return nil, fmt.Errorf("result validation failed: %w", err)
	}

	setParseSpanResult(span, len(result.Functions), len(result.Errors))
	recordParseMetrics(ctx, "go", time.Since(start), len(result.Functions), true)

	return result, nil
}

// extractPackageName returns the declared package name, or "".
func (p *GoParser) extractPackageName(root *sitter.Node, content []byte) string {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child == nil || child.Type() != "package_clause" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			name := child.Child(j)
			if name != nil && name.Type() == "package_identifier" {
				return string(content[name.StartByte():name.EndByte()])
			}
		}
	}
	return ""
}

// extractImportNames returns the set of names imports are referenced by:
// the alias when present, otherwise the last path segment.
func (p *GoParser) extractImportNames(root *sitter.Node, content []byte) map[string]bool {
	names := make(map[string]bool)
	var collect func(node *sitter.Node)
	collect = func(node *sitter.Node) {
		if node == nil {
			return
		}
		if node.Type() == "import_spec" {
			var alias, path string
			for i := 0; i < int(node.ChildCount()); i++ {
				child := node.Child(i)
				if child == nil {
					continue
				}
				switch child.Type() {
				case "package_identifier":
					alias = string(content[child.StartByte():child.EndByte()])
				case "interpreted_string_literal":
					path = strings.Trim(string(content[child.StartByte():child.EndByte()]), "\"")
				}
			}
			switch {
			case alias != "" && alias != "_" && alias != ".":
				names[alias] = true
			case path != "":
				if idx := strings.LastIndex(path, "/"); idx >= 0 {
					path = path[idx+1:]
				}
				names[path] = true
			}
			return
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			collect(node.Child(i))
		}
	}
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child != nil && child.Type() == "import_declaration" {
			collect(child)
		}
	}
	return names
}

// extractFunction converts a function_declaration node.
func (p *GoParser) extractFunction(node *sitter.Node, content []byte, filePath, packageName string, imports map[string]bool) (FunctionDecl, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return FunctionDecl{}, false
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])

	fn := FunctionDecl{
		Name:         name,
		StartLine:    int(node.StartPoint().Row) + 1,
		EndLine:      int(node.EndPoint().Row) + 1,
		ReturnType:   p.extractReturnType(node, content),
		IsTest:       isTestFunction(name, filePath),
		IsEntryPoint: packageName == "main" && name == "main",
	}

	body := node.ChildByFieldName("body")
	fn.Complexity = p.measureComplexity(body, content)
	fn.Calls = p.extractCallSites(body, content, imports)
	fn.Bindings = p.extractBindings(body, content)
	return fn, true
}

// extractMethod converts a method_declaration node.
func (p *GoParser) extractMethod(node *sitter.Node, content []byte, imports map[string]bool) (FunctionDecl, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return FunctionDecl{}, false
	}

	fn := FunctionDecl{
		Name:       string(content[nameNode.StartByte():nameNode.EndByte()]),
		Receiver:   p.extractReceiverType(node.ChildByFieldName("receiver"), content),
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
		ReturnType: p.extractReturnType(node, content),
	}

	body := node.ChildByFieldName("body")
	fn.Complexity = p.measureComplexity(body, content)
	fn.Calls = p.extractCallSites(body, content, imports)
	fn.Bindings = p.extractBindings(body, content)

	// Bind the receiver variable itself so calls like s.handle() inside
	// the body resolve against the receiver type.
	if recvVar := p.extractReceiverVar(node.ChildByFieldName("receiver"), content); recvVar != "" && fn.Receiver != "" {
		fn.Bindings = append([]LocalBinding{{
			Name:     recvVar,
			TypeName: fn.Receiver,
			Line:     fn.StartLine,
		}}, fn.Bindings...)
	}
	return fn, true
}

// extractReceiverVar returns the receiver parameter's identifier, or "".
func (p *GoParser) extractReceiverVar(receiver *sitter.Node, content []byte) string {
	if receiver == nil {
		return ""
	}
	for i := 0; i < int(receiver.ChildCount()); i++ {
		param := receiver.Child(i)
		if param == nil || param.Type() != "parameter_declaration" {
			continue
		}
		if nameNode := param.ChildByFieldName("name"); nameNode != nil {
			return string(content[nameNode.StartByte():nameNode.EndByte()])
		}
	}
	return ""
}

// extractReceiverType pulls the bare type name out of a receiver
// parameter_list, stripping pointers and generic arguments.
func (p *GoParser) extractReceiverType(receiver *sitter.Node, content []byte) string {
	if receiver == nil {
		return ""
	}
	for i := 0; i < int(receiver.ChildCount()); i++ {
		param := receiver.Child(i)
		if param == nil || param.Type() != "parameter_declaration" {
			continue
		}
		typeNode := param.ChildByFieldName("type")
		if typeNode == nil {
			continue
		}
		return baseTypeName(typeNode, content)
	}
	return ""
}

// extractReturnType returns the bare name of the first declared result type.
func (p *GoParser) extractReturnType(node *sitter.Node, content []byte) string {
	result := node.ChildByFieldName("result")
	if result == nil {
		return ""
	}
	if result.Type() == "parameter_list" {
		for i := 0; i < int(result.ChildCount()); i++ {
			param := result.Child(i)
			if param == nil || param.Type() != "parameter_declaration" {
				continue
			}
			if typeNode := param.ChildByFieldName("type"); typeNode != nil {
				return baseTypeName(typeNode, content)
			}
		}
		return ""
	}
	return baseTypeName(result, content)
}

// baseTypeName reduces a type node to its bare identifier: *Foo -> Foo,
// pkg.Foo -> Foo, Foo[T] -> Foo. Anonymous types yield "".
func baseTypeName(node *sitter.Node, content []byte) string {
	for node != nil {
		switch node.Type() {
		case "pointer_type":
			inner := node.Child(int(node.ChildCount()) - 1)
			node = inner
		case "generic_type":
			node = node.ChildByFieldName("type")
		case "qualified_type":
			node = node.ChildByFieldName("name")
		case "type_identifier", "identifier":
			return string(content[node.StartByte():node.EndByte()])
		default:
			return ""
		}
	}
	return ""
}

// measureComplexity approximates cyclomatic complexity: 1 plus one per
// branching construct and short-circuit operator.
func (p *GoParser) measureComplexity(body *sitter.Node, content []byte) int {
	complexity := 1
	if body == nil {
		return complexity
	}

	stack := []*sitter.Node{body}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == nil {
			continue
		}

		switch node.Type() {
		case "if_statement", "for_statement", "expression_case", "type_case", "communication_case":
			complexity++
		case "binary_expression":
			if op := node.ChildByFieldName("operator"); op != nil {
				text := string(content[op.StartByte():op.EndByte()])
				if text == "&&" || text == "||" {
					complexity++
				}
			}
		}

		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, node.Child(i))
		}
	}
	return complexity
}

// extractCallSites walks a function body and collects call expressions.
//
// Classification: an identifier callee is a bare call; a selector callee
// whose operand names an import is a qualified call; any other selector
// is a method-style call with the operand text as qualifier.
func (p *GoParser) extractCallSites(body *sitter.Node, content []byte, imports map[string]bool) []CallSite {
	if body == nil {
		return nil
	}

	calls := make([]CallSite, 0, 16)

	type stackEntry struct {
		node  *sitter.Node
		depth int
	}
	stack := []stackEntry{{node: body}}

	for len(stack) > 0 {
		entry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := entry.node
		if node == nil || entry.depth > MaxBodyDepth {
			continue
		}

		if len(calls) >= MaxCallSitesPerFunction {
			slog.Warn("max call sites per function reached",
				slog.Int("limit", MaxCallSitesPerFunction))
			break
		}

		if node.Type() == "call_expression" {
			if call, ok := p.extractSingleCall(node, content, imports); ok {
				calls = append(calls, call)
			}
		}

		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, stackEntry{node: node.Child(i), depth: entry.depth + 1})
		}
	}
	return calls
}

// extractSingleCall converts one call_expression node.
func (p *GoParser) extractSingleCall(node *sitter.Node, content []byte, imports map[string]bool) (CallSite, bool) {
	funcNode := node.ChildByFieldName("function")
	if funcNode == nil && node.ChildCount() > 0 {
		funcNode = node.Child(0)
	}
	if funcNode == nil {
		return CallSite{}, false
	}

	call := CallSite{Line: int(node.StartPoint().Row) + 1}

	switch funcNode.Type() {
	case "identifier":
		call.Target = string(content[funcNode.StartByte():funcNode.EndByte()])
		call.Style = CallStyleBare

	case "selector_expression":
		operand := funcNode.ChildByFieldName("operand")
		field := funcNode.ChildByFieldName("field")
		if field == nil {
			return CallSite{}, false
		}
		call.Target = string(content[field.StartByte():field.EndByte()])
		if operand != nil {
			call.Qualifier = string(content[operand.StartByte():operand.EndByte()])
		}
		if operand != nil && operand.Type() == "identifier" && imports[call.Qualifier] {
			call.Style = CallStyleQualified
		} else {
			call.Style = CallStyleMethod
		}

	default:
		// Calls on parenthesized expressions, type conversions, and
		// index expressions carry no resolvable static name.
		return CallSite{}, false
	}

	if call.Target == "" || isBuiltinCall(call.Target, call.Style) {
		return CallSite{}, false
	}
	return call, true
}

// extractBindings collects short variable declarations and var specs whose
// static type or constructor is visible at the declaration site.
func (p *GoParser) extractBindings(body *sitter.Node, content []byte) []LocalBinding {
	if body == nil {
		return nil
	}

	bindings := make([]LocalBinding, 0, 4)
	stack := []*sitter.Node{body}

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == nil {
			continue
		}

		switch node.Type() {
		case "short_var_declaration":
			if b, ok := p.bindingFromShortVar(node, content); ok {
				bindings = append(bindings, b)
			}
		case "var_spec":
			if b, ok := p.bindingFromVarSpec(node, content); ok {
				bindings = append(bindings, b)
			}
		}

		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, node.Child(i))
		}
	}
	return bindings
}

// bindingFromShortVar handles `x := expr` where expr reveals a type.
func (p *GoParser) bindingFromShortVar(node *sitter.Node, content []byte) (LocalBinding, bool) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	if left == nil || right == nil {
		return LocalBinding{}, false
	}

	// Only single-assignment forms are tracked; destructuring and
	// multi-value forms are out of heuristic reach.
	if int(left.NamedChildCount()) != 1 || int(right.NamedChildCount()) != 1 {
		return LocalBinding{}, false
	}
	nameNode := left.NamedChild(0)
	valueNode := right.NamedChild(0)
	if nameNode == nil || valueNode == nil || nameNode.Type() != "identifier" {
		return LocalBinding{}, false
	}

	binding := LocalBinding{
		Name: string(content[nameNode.StartByte():nameNode.EndByte()]),
		Line: int(node.StartPoint().Row) + 1,
	}
	if p.fillBindingFromValue(&binding, valueNode, content) {
		return binding, true
	}
	return LocalBinding{}, false
}

// bindingFromVarSpec handles `var x Type` and `var x = expr`.
func (p *GoParser) bindingFromVarSpec(node *sitter.Node, content []byte) (LocalBinding, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return LocalBinding{}, false
	}

	binding := LocalBinding{
		Name: string(content[nameNode.StartByte():nameNode.EndByte()]),
		Line: int(node.StartPoint().Row) + 1,
	}

	if typeNode := node.ChildByFieldName("type"); typeNode != nil {
		if name := baseTypeName(typeNode, content); name != "" {
			binding.TypeName = name
			return binding, true
		}
	}
	if valueNode := node.ChildByFieldName("value"); valueNode != nil {
		inner := valueNode
		if inner.Type() == "expression_list" && inner.NamedChildCount() == 1 {
			inner = inner.NamedChild(0)
		}
		if p.fillBindingFromValue(&binding, inner, content) {
			return binding, true
		}
	}
	return LocalBinding{}, false
}

// fillBindingFromValue inspects an initializer expression. Returns true
// when it reveals a static type or a constructor call.
func (p *GoParser) fillBindingFromValue(binding *LocalBinding, value *sitter.Node, content []byte) bool {
	switch value.Type() {
	case "composite_literal":
		if typeNode := value.ChildByFieldName("type"); typeNode != nil {
			if name := baseTypeName(typeNode, content); name != "" {
				binding.TypeName = name
				return true
			}
		}

	case "unary_expression":
		// &Foo{...}
		if operand := value.ChildByFieldName("operand"); operand != nil && operand.Type() == "composite_literal" {
			return p.fillBindingFromValue(binding, operand, content)
		}

	case "call_expression":
		funcNode := value.ChildByFieldName("function")
		if funcNode == nil {
			return false
		}
		switch funcNode.Type() {
		case "identifier":
			binding.Constructor = string(content[funcNode.StartByte():funcNode.EndByte()])
			return true
		case "selector_expression":
			field := funcNode.ChildByFieldName("field")
			operand := funcNode.ChildByFieldName("operand")
			if field == nil {
				return false
			}
			binding.Constructor = string(content[field.StartByte():field.EndByte()])
			if operand != nil {
				binding.ConstructorQualifier = string(content[operand.StartByte():operand.EndByte()])
			}
			return true
		}
	}
	return false
}

// isTestFunction reports whether a declaration is a Go test function.
func isTestFunction(name, filePath string) bool {
	if !strings.HasSuffix(filePath, "_test.go") {
		return false
	}
	for _, prefix := range []string{"Test", "Benchmark", "Fuzz"} {
		if strings.HasPrefix(name, prefix) && len(name) > len(prefix) {
			next, _ := utf8.DecodeRuneInString(name[len(prefix):])
			if !unicode.IsLower(next) {
				return true
			}
		}
	}
	return false
}

// isBuiltinCall filters language builtins that never form graph edges.
func isBuiltinCall(name string, style CallStyle) bool {
	if style != CallStyleBare {
		return false
	}
	switch name {
	case "append", "cap", "clear", "close", "copy", "delete", "len",
		"make", "max", "min", "new", "panic", "print", "println", "recover":
		return true
	}
	return false
}

// Compile-time interface compliance check.
var _ Parser = (*GoParser)(nil)
