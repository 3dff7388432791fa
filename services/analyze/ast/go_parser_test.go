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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSource = `package main

import (
	"fmt"

	stor "example.com/pkg/storage"
)

type Server struct{ n int }

func NewServer() *Server { return &Server{} }

func (s *Server) handle(x int) error {
	if x > 0 && x < 10 {
		s.log(x)
	}
	for i := 0; i < x; i++ {
		process(i)
	}
	return nil
}

func (s *Server) log(x int) { fmt.Println(x) }

func process(n int) {
	srv := NewServer()
	srv.handle(n)
	c := stor.NewClient()
	c.Get("k")
}

func main() {
	process(1)
}
`

func parseSample(t *testing.T, source, path string) *ParseResult {
	t.Helper()
	result, err := NewGoParser().Parse(context.Background(), []byte(source), path)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func findFunction(t *testing.T, result *ParseResult, qualified string) *FunctionDecl {
	t.Helper()
	for i := range result.Functions {
		if result.Functions[i].QualifiedName() == qualified {
			return &result.Functions[i]
		}
	}
	t.Fatalf("function %q not found in %v", qualified, result.Functions)
	return nil
}

func TestGoParserExtractsDeclarations(t *testing.T) {
	result := parseSample(t, sampleSource, "cmd/app/main.go")

	assert.Equal(t, "go", result.Language)
	assert.NotEmpty(t, result.Hash)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Functions, 5)

	ctor := findFunction(t, result, "NewServer")
	assert.False(t, ctor.IsMethod())
	assert.Equal(t, "Server", ctor.ReturnType, "pointer results reduce to the bare type")
	assert.Equal(t, 11, ctor.StartLine)

	handle := findFunction(t, result, "Server::handle")
	assert.Equal(t, "Server", handle.Receiver)
	assert.Equal(t, "handle", handle.Name)
	assert.Greater(t, handle.EndLine, handle.StartLine)
}

func TestGoParserCallSites(t *testing.T) {
	result := parseSample(t, sampleSource, "cmd/app/main.go")

	handle := findFunction(t, result, "Server::handle")
	require.Len(t, handle.Calls, 2)
	assert.Equal(t, CallSite{Target: "log", Qualifier: "s", Style: CallStyleMethod, Line: 15}, handle.Calls[0])
	assert.Equal(t, "process", handle.Calls[1].Target)
	assert.Equal(t, CallStyleBare, handle.Calls[1].Style)

	logFn := findFunction(t, result, "Server::log")
	require.Len(t, logFn.Calls, 1)
	assert.Equal(t, CallStyleQualified, logFn.Calls[0].Style, "fmt is an import, not a receiver")
	assert.Equal(t, "Println", logFn.Calls[0].Target)
	assert.Equal(t, "fmt", logFn.Calls[0].Qualifier)

	process := findFunction(t, result, "process")
	require.Len(t, process.Calls, 4)
	assert.Equal(t, "NewServer", process.Calls[0].Target)
	assert.Equal(t, CallStyleBare, process.Calls[0].Style)
	assert.Equal(t, CallSite{Target: "handle", Qualifier: "srv", Style: CallStyleMethod, Line: 27}, process.Calls[1])
	assert.Equal(t, CallStyleQualified, process.Calls[2].Style, "aliased imports classify as qualified")
	assert.Equal(t, "NewClient", process.Calls[2].Target)
	assert.Equal(t, CallSite{Target: "Get", Qualifier: "c", Style: CallStyleMethod, Line: 29}, process.Calls[3])
}

func TestGoParserBindings(t *testing.T) {
	result := parseSample(t, sampleSource, "cmd/app/main.go")

	handle := findFunction(t, result, "Server::handle")
	require.NotEmpty(t, handle.Bindings)
	recv := handle.Bindings[0]
	assert.Equal(t, "s", recv.Name, "the receiver variable is bound first")
	assert.Equal(t, "Server", recv.TypeName)

	process := findFunction(t, result, "process")
	require.Len(t, process.Bindings, 2)
	assert.Equal(t, LocalBinding{Name: "srv", Constructor: "NewServer", Line: 26}, process.Bindings[0])
	assert.Equal(t, LocalBinding{Name: "c", Constructor: "NewClient", ConstructorQualifier: "stor", Line: 28}, process.Bindings[1])
}

func TestGoParserEntryPointDetection(t *testing.T) {
	result := parseSample(t, sampleSource, "cmd/app/main.go")

	assert.True(t, findFunction(t, result, "main").IsEntryPoint)
	assert.False(t, findFunction(t, result, "process").IsEntryPoint)

	// Same function name outside package main is not an entry point.
	libSource := "package lib\n\nfunc main() {}\n"
	libResult := parseSample(t, libSource, "lib/lib.go")
	assert.False(t, findFunction(t, libResult, "main").IsEntryPoint)
}

func TestGoParserTestDetection(t *testing.T) {
	testSource := `package lib

import "testing"

func TestThing(t *testing.T) { helper(t) }

func BenchmarkThing(b *testing.B) {}

func helper(t *testing.T) {}

func testish() {}
`
	result := parseSample(t, testSource, "lib/lib_test.go")

	assert.True(t, findFunction(t, result, "TestThing").IsTest)
	assert.True(t, findFunction(t, result, "BenchmarkThing").IsTest)
	assert.False(t, findFunction(t, result, "helper").IsTest)
	assert.False(t, findFunction(t, result, "testish").IsTest, "lowercase after the prefix is not a test")

	// Test-looking names outside _test.go files never count.
	prodResult := parseSample(t, "package lib\n\nfunc TestThing() {}\n", "lib/lib.go")
	assert.False(t, prodResult.Functions[0].IsTest)
}

func TestGoParserComplexity(t *testing.T) {
	source := `package lib

func simple() {}

func branchy(x int) int {
	if x > 0 && x < 10 {
		return 1
	}
	for i := 0; i < x; i++ {
		x++
	}
	switch x {
	case 1:
		return 1
	case 2:
		return 2
	}
	return 0
}
`
	result := parseSample(t, source, "lib/lib.go")

	assert.Equal(t, 1, findFunction(t, result, "simple").Complexity)
	// 1 base + if + && + for + two switch cases.
	assert.Equal(t, 6, findFunction(t, result, "branchy").Complexity)
}

func TestGoParserSkipsBuiltins(t *testing.T) {
	source := `package lib

func work(items []int) int {
	out := make([]int, 0, len(items))
	out = append(out, items...)
	total(out)
	return len(out)
}

func total(items []int) int { return 0 }
`
	result := parseSample(t, source, "lib/lib.go")

	work := findFunction(t, result, "work")
	require.Len(t, work.Calls, 1, "make, append, and len are not graph edges")
	assert.Equal(t, "total", work.Calls[0].Target)
}

func TestGoParserSyntaxErrorsArePartial(t *testing.T) {
	source := `package lib

func ok() {}

func broken( {
`
	result := parseSample(t, source, "lib/lib.go")
	assert.NotEmpty(t, result.Errors, "syntax errors surface as diagnostics")

	found := false
	for _, fn := range result.Functions {
		if fn.Name == "ok" {
			found = true
		}
	}
	assert.True(t, found, "healthy declarations still extract")
}

func TestGoParserInputValidation(t *testing.T) {
	parser := NewGoParser(WithMaxFileSize(16))

	_, err := parser.Parse(context.Background(), []byte(sampleSource), "big.go")
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = NewGoParser().Parse(context.Background(), []byte{0xff, 0xfe, 0xfd}, "bad.go")
	assert.ErrorIs(t, err, ErrInvalidContent)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewGoParser().Parse(ctx, []byte("package lib\n"), "ok.go")
	assert.Error(t, err)
}

func TestGoParserVarDeclarations(t *testing.T) {
	source := `package lib

type Pool struct{}

func build() {
	var p Pool
	var q = Pool{}
	p.run()
	q.run()
}

func (p Pool) run() {}
`
	result := parseSample(t, source, "lib/lib.go")

	build := findFunction(t, result, "build")
	require.Len(t, build.Bindings, 2)
	assert.Equal(t, LocalBinding{Name: "p", TypeName: "Pool", Line: 6}, build.Bindings[0])
	assert.Equal(t, LocalBinding{Name: "q", TypeName: "Pool", Line: 7}, build.Bindings[1])
}
