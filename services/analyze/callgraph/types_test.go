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
	"errors"
	"testing"

	"github.com/AleutianAI/DebtScope/services/analyze/ast"
)

func TestFunctionID_Qualification(t *testing.T) {
	free := FunctionID{File: "a.rs", Name: "helper", Line: 10}
	method := FunctionID{File: "a.rs", Name: "Server::helper", Line: 20}

	if free.IsMethod() {
		t.Error("free function reported as method")
	}
	if !method.IsMethod() {
		t.Error("method not reported as method")
	}
	if got := method.SimpleName(); got != "helper" {
		t.Errorf("SimpleName = %q, want %q", got, "helper")
	}
	if got := method.ReceiverType(); got != "Server" {
		t.Errorf("ReceiverType = %q, want %q", got, "Server")
	}
	if got := free.ReceiverType(); got != "" {
		t.Errorf("free function ReceiverType = %q, want empty", got)
	}

	// Same bare name, different qualification: distinct identities.
	if free == method {
		t.Error("free function and method compared equal")
	}
}

func TestFunctionID_StringRoundTrip(t *testing.T) {
	cases := []FunctionID{
		{File: "src/main.rs", Name: "main", Line: 1},
		{File: "src/server.rs", Name: "Server::handle", Line: 42},
		{File: "pkg/util/util.go", Name: "Pool::Get", Line: 117},
	}
	for _, id := range cases {
		t.Run(id.Name, func(t *testing.T) {
			parsed, err := ParseFunctionID(id.String())
			if err != nil {
				t.Fatalf("ParseFunctionID(%q): %v", id.String(), err)
			}
			if parsed != id {
				t.Errorf("round trip = %+v, want %+v", parsed, id)
			}
		})
	}
}

func TestParseFunctionID_Malformed(t *testing.T) {
	for _, input := range []string{"", "nofields", "file:name:", ":name:3", "file:name:abc"} {
		if _, err := ParseFunctionID(input); !errors.Is(err, ErrMalformedID) {
			t.Errorf("ParseFunctionID(%q) error = %v, want ErrMalformedID", input, err)
		}
	}
}

func TestFunctionID_Less_TotalOrder(t *testing.T) {
	a := FunctionID{File: "a.rs", Name: "f", Line: 1}
	b := FunctionID{File: "a.rs", Name: "f", Line: 2}
	c := FunctionID{File: "a.rs", Name: "g", Line: 1}
	d := FunctionID{File: "b.rs", Name: "a", Line: 1}

	ordered := []FunctionID{a, b, c, d}
	for i := 0; i < len(ordered)-1; i++ {
		if !ordered[i].Less(ordered[i+1]) {
			t.Errorf("expected %v < %v", ordered[i], ordered[i+1])
		}
		if ordered[i+1].Less(ordered[i]) {
			t.Errorf("expected !(%v < %v)", ordered[i+1], ordered[i])
		}
	}
	if a.Less(a) {
		t.Error("Less not irreflexive")
	}
}

func TestCallee_Variants(t *testing.T) {
	t.Run("resolved", func(t *testing.T) {
		id := FunctionID{File: "a.rs", Name: "helper", Line: 5}
		callee := ResolvedCallee(id)
		if !callee.IsResolved() {
			t.Fatal("resolved callee reports unresolved")
		}
		got, ok := callee.ID()
		if !ok || got != id {
			t.Errorf("ID() = %v, %v", got, ok)
		}
		if callee.SimpleName() != "helper" {
			t.Errorf("SimpleName = %q", callee.SimpleName())
		}
	})

	t.Run("unresolved", func(t *testing.T) {
		callee := UnresolvedCallee("process", CallContext{
			Style:        ast.CallStyleMethod,
			ReceiverType: "Worker",
			CallerFile:   "b.rs",
		})
		if callee.IsResolved() {
			t.Fatal("unresolved callee reports resolved")
		}
		if _, ok := callee.ID(); ok {
			t.Error("unresolved callee returned an ID")
		}
		if callee.SimpleName() != "process" {
			t.Errorf("SimpleName = %q", callee.SimpleName())
		}
		callCtx := callee.Context()
		if callCtx.Style != ast.CallStyleMethod || callCtx.ReceiverType != "Worker" {
			t.Errorf("context = %+v", callCtx)
		}
	})
}

func TestCallType_Closed(t *testing.T) {
	valid := []CallType{CallDirect, CallMethod, CallDynamic, CallMacro}
	names := map[CallType]string{
		CallDirect:  "direct",
		CallMethod:  "method",
		CallDynamic: "dynamic",
		CallMacro:   "macro",
	}
	for _, ct := range valid {
		if !ct.IsValid() {
			t.Errorf("%v reported invalid", ct)
		}
		if ct.String() != names[ct] {
			t.Errorf("String() = %q, want %q", ct.String(), names[ct])
		}
	}
	if CallType(99).IsValid() {
		t.Error("out-of-range call type reported valid")
	}
	if NumCallTypes.IsValid() {
		t.Error("NumCallTypes reported valid")
	}
}
