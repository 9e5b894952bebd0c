// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ir holds the items a backend renders: generated functions, made
// of straight-line let/return statements over expr trees, and the test
// cases that check them.
//
// Function bodies use a small fixed vocabulary of intrinsic calls (see
// Intrinsics). Every backend lowers the same vocabulary, and Interp
// evaluates it in-process at float32 or float64 precision.
package ir

import (
	"fmt"

	"github.com/ajroetker/libmgen/internal/expr"
	"github.com/ajroetker/libmgen/internal/quantize"
)

// Stmt is a statement of a function body: *Let or *Return.
type Stmt interface {
	stmt()
}

// Let binds Name to Value. Names are bound once.
type Let struct {
	Name  string
	Value expr.Expr
}

// Return ends the body with one value per function result.
type Return struct {
	Values []expr.Expr
}

func (*Let) stmt()    {}
func (*Return) stmt() {}

// Param is a float parameter of a generated function.
type Param struct {
	Name string
}

// Function is a generated routine.
type Function struct {
	Name    string
	Type    quantize.NumberType
	Params  []Param
	Results int
	Body    []Stmt
	Doc     string
}

// TestCase compares a generated function against a reference over a
// sampled interval.
//
// For each of Samples+1 evenly spaced points x0 in [Lo, Hi], the sample
// x is x0 narrowed to the function's width. Reference is evaluated in
// float64 with x bound, calling std.* functions. Candidate is a call of
// the generated function whose arguments are evaluated at the function's
// width; Result selects which result is compared. The test fails when
// |got - want| / max(1, |want|) exceeds Tolerance.
type TestCase struct {
	Name      string
	Func      string
	Type      quantize.NumberType
	Reference expr.Expr
	Candidate *expr.Call
	Result    int
	MaxULPs   int
	Lo, Hi    expr.Expr
	Tolerance expr.Expr
	Samples   int
}

// SampleVar is the variable bound to the sample in Reference and
// Candidate.
const SampleVar = "x"

// Item is a *Function or a *TestCase.
type Item interface {
	ItemName() string
	item()
}

func (*Function) item() {}
func (*TestCase) item() {}

// ItemName returns the function name.
func (f *Function) ItemName() string { return f.Name }

// ItemName returns the test name.
func (t *TestCase) ItemName() string { return t.Name }

// Returns returns the final return statement of the body.
func (f *Function) Returns() (*Return, error) {
	if len(f.Body) == 0 {
		return nil, fmt.Errorf("function %s: empty body", f.Name)
	}
	r, ok := f.Body[len(f.Body)-1].(*Return)
	if !ok {
		return nil, fmt.Errorf("function %s: body does not end in return", f.Name)
	}
	return r, nil
}

// Functions returns the functions among items, in order.
func Functions(items []Item) []*Function {
	var out []*Function
	for _, it := range items {
		if f, ok := it.(*Function); ok {
			out = append(out, f)
		}
	}
	return out
}

// Tests returns the test cases among items, in order.
func Tests(items []Item) []*TestCase {
	var out []*TestCase
	for _, it := range items {
		if tc, ok := it.(*TestCase); ok {
			out = append(out, tc)
		}
	}
	return out
}

// Index maps function names to functions.
func Index(fns []*Function) map[string]*Function {
	m := make(map[string]*Function, len(fns))
	for _, f := range fns {
		m[f.Name] = f
	}
	return m
}
