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

// Package expr is the symbolic expression model shared by the
// approximation engine, the function generators and the emission backends.
//
// An Expr is an immutable tree. Constants hold exact decimals, integer
// literals hold raw bit patterns and shift amounts, and everything else is
// a variable, an operator or a named call. Trees are transformed with
// Rewrite, which rebuilds the tree bottom-up through a Visitor and never
// mutates its input.
package expr

import (
	"github.com/ajroetker/libmgen/internal/numeric"
)

// Expr is a node of an expression tree. The variant set is closed: Const,
// Int, Var, Unary, Binary and Call.
type Expr interface {
	String() string
	node()
}

// Op is an operator token in Go syntax.
type Op string

// Operators understood by Unary and Binary.
const (
	OpAdd Op = "+"
	OpSub Op = "-"
	OpMul Op = "*"
	OpQuo Op = "/"

	OpLss Op = "<"
	OpLeq Op = "<="
	OpGtr Op = ">"
	OpGeq Op = ">="
	OpEql Op = "=="
	OpNeq Op = "!="

	OpLAnd Op = "&&"
	OpLOr  Op = "||"

	OpAnd Op = "&"
	OpOr  Op = "|"
	OpShl Op = "<<"
	OpShr Op = ">>"

	// OpNeg and OpNot are the unary operators.
	OpNeg Op = "-"
	OpNot Op = "!"
)

// IsComparison reports whether op yields a boolean from two numbers.
func (op Op) IsComparison() bool {
	switch op {
	case OpLss, OpLeq, OpGtr, OpGeq, OpEql, OpNeq:
		return true
	}
	return false
}

// IsLogical reports whether op combines two booleans.
func (op Op) IsLogical() bool { return op == OpLAnd || op == OpLOr }

// IsBitwise reports whether op only applies to integers.
func (op Op) IsBitwise() bool {
	switch op {
	case OpAnd, OpOr, OpShl, OpShr:
		return true
	}
	return false
}

// Precedence is the binary operator precedence of op in the Go spec, 1
// (||) to 5 (* / & << >>), or 0 for unary-only operators.
func (op Op) Precedence() int {
	switch op {
	case OpLOr:
		return 1
	case OpLAnd:
		return 2
	case OpLss, OpLeq, OpGtr, OpGeq, OpEql, OpNeq:
		return 3
	case OpAdd, OpSub, OpOr:
		return 4
	case OpMul, OpQuo, OpAnd, OpShl, OpShr:
		return 5
	}
	return 0
}

// Const is an exact decimal literal.
type Const struct {
	Value *numeric.Decimal
}

// Int is an integer literal: a bit pattern, a mask or a shift amount.
type Int struct {
	Value uint64
}

// Var is a reference to a parameter, a local or a named constant.
type Var struct {
	Name string
}

// Unary is a prefix operator applied to X.
type Unary struct {
	Op Op
	X  Expr
}

// Binary is X Op Y.
type Binary struct {
	Op   Op
	X, Y Expr
}

// Call is a named call. Names are intrinsics, generated functions, or
// reference functions qualified with "std.".
type Call struct {
	Name string
	Args []Expr
}

func (*Const) node()  {}
func (*Int) node()    {}
func (*Var) node()    {}
func (*Unary) node()  {}
func (*Binary) node() {}
func (*Call) node()   {}

// NewConst returns a constant holding a copy of d.
func NewConst(d *numeric.Decimal) *Const {
	return &Const{Value: new(numeric.Decimal).Set(d)}
}

// NewInt returns an integer literal.
func NewInt(v uint64) *Int { return &Int{Value: v} }

// NewVar returns a variable reference.
func NewVar(name string) *Var { return &Var{Name: name} }

// NewUnary returns op x.
func NewUnary(op Op, x Expr) *Unary { return &Unary{Op: op, X: x} }

// NewBinary returns x op y.
func NewBinary(op Op, x, y Expr) *Binary { return &Binary{Op: op, X: x, Y: y} }

// NewCall returns name(args...). The argument slice is copied.
func NewCall(name string, args ...Expr) *Call {
	return &Call{Name: name, Args: append([]Expr(nil), args...)}
}

// Clone returns a deep copy of e.
func Clone(e Expr) Expr {
	switch n := e.(type) {
	case *Const:
		return NewConst(n.Value)
	case *Int:
		return NewInt(n.Value)
	case *Var:
		return NewVar(n.Name)
	case *Unary:
		return NewUnary(n.Op, Clone(n.X))
	case *Binary:
		return NewBinary(n.Op, Clone(n.X), Clone(n.Y))
	case *Call:
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = Clone(a)
		}
		return &Call{Name: n.Name, Args: args}
	}
	return e
}

// Equal reports whether a and b are structurally identical. Constants
// compare by value.
func Equal(a, b Expr) bool {
	switch x := a.(type) {
	case *Const:
		y, ok := b.(*Const)
		return ok && x.Value.Cmp(y.Value) == 0
	case *Int:
		y, ok := b.(*Int)
		return ok && x.Value == y.Value
	case *Var:
		y, ok := b.(*Var)
		return ok && x.Name == y.Name
	case *Unary:
		y, ok := b.(*Unary)
		return ok && x.Op == y.Op && Equal(x.X, y.X)
	case *Binary:
		y, ok := b.(*Binary)
		return ok && x.Op == y.Op && Equal(x.X, y.X) && Equal(x.Y, y.Y)
	case *Call:
		y, ok := b.(*Call)
		if !ok || x.Name != y.Name || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !Equal(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	}
	return a == b
}
