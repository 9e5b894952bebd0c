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

// Package quantize replaces exact decimal constants by the bit patterns of
// their nearest binary32 or binary64 value, so that emitted code does not
// depend on any compiler's decimal-to-binary conversion.
package quantize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ajroetker/libmgen/internal/expr"
	"github.com/ajroetker/libmgen/internal/numeric"
)

// NumberType is the numeric representation of generated code.
type NumberType int

const (
	// F32 is scalar binary32.
	F32 NumberType = iota
	// F32Vec is binary32 lanes of a SIMD vector.
	F32Vec
	// F64 is scalar binary64.
	F64
	// F64Vec is binary64 lanes of a SIMD vector.
	F64Vec
)

var tags = map[NumberType]string{
	F32:    "f32_hex",
	F32Vec: "f32_simd",
	F64:    "f64_hex",
	F64Vec: "f64_simd",
}

// String returns the tag used on the command line.
func (nt NumberType) String() string {
	if s, ok := tags[nt]; ok {
		return s
	}
	return fmt.Sprintf("NumberType(%d)", int(nt))
}

// Bits returns the float width, 32 or 64.
func (nt NumberType) Bits() int {
	if nt == F64 || nt == F64Vec {
		return 64
	}
	return 32
}

// MantissaBits returns the number of explicit fraction bits.
func (nt NumberType) MantissaBits() int {
	if nt.Bits() == 64 {
		return 52
	}
	return 23
}

// IsVector reports whether values are SIMD lanes.
func (nt NumberType) IsVector() bool { return nt == F32Vec || nt == F64Vec }

// Scalar returns the scalar type of the same width.
func (nt NumberType) Scalar() NumberType {
	if nt.Bits() == 64 {
		return F64
	}
	return F32
}

// Vector returns the vector type of the same width.
func (nt NumberType) Vector() NumberType {
	if nt.Bits() == 64 {
		return F64Vec
	}
	return F32Vec
}

// ParseNumberType accepts the tags f32_hex, f32_simd, f64_hex and
// f64_simd, case-insensitively.
func ParseNumberType(tag string) (NumberType, error) {
	want := strings.ToLower(strings.TrimSpace(tag))
	for nt, s := range tags {
		if s == want {
			return nt, nil
		}
	}
	return 0, fmt.Errorf("unknown number type %q (want f32_hex, f32_simd, f64_hex or f64_simd)", tag)
}

// ErrRange reports a constant with no finite value at the target width.
var ErrRange = errors.New("quantize: constant out of range")

// Error is the failure of quantizing one constant.
type Error struct {
	Value string
	Type  NumberType
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("quantize %s as %s: %v", e.Value, e.Type, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Call names produced by the visitor.
const (
	FromBits = "from_bits"
	Splat    = "splat"
)

type visitor struct {
	nt NumberType
}

// New returns the quantizing visitor for nt. It rewrites every Const to
// from_bits(pattern), wrapped in splat for vector types, and leaves all
// other nodes alone.
func New(nt NumberType) expr.Visitor {
	return visitor{nt: nt}
}

func (v visitor) Visit(e expr.Expr) (expr.Expr, error) {
	c, ok := e.(*expr.Const)
	if !ok {
		return e, nil
	}
	pattern, err := Bits(c.Value, v.nt)
	if err != nil {
		return nil, err
	}
	var out expr.Expr = expr.NewCall(FromBits, expr.NewInt(pattern))
	if v.nt.IsVector() {
		out = expr.NewCall(Splat, out)
	}
	return out, nil
}

// Apply quantizes every constant of e.
func Apply(e expr.Expr, nt NumberType) (expr.Expr, error) {
	return expr.Rewrite(e, New(nt))
}

// Bits rounds d to nearest-even at the width of nt and returns the bit
// pattern.
func Bits(d *numeric.Decimal, nt NumberType) (uint64, error) {
	pattern, err := numeric.Bits(d, nt.Bits())
	if err != nil {
		return 0, &Error{Value: d.String(), Type: nt, Err: fmt.Errorf("%w: %v", ErrRange, err)}
	}
	return pattern, nil
}

// Float32Bits returns the binary32 pattern nearest to d.
func Float32Bits(d *numeric.Decimal) (uint32, error) {
	p, err := Bits(d, F32)
	return uint32(p), err
}

// Float64Bits returns the binary64 pattern nearest to d.
func Float64Bits(d *numeric.Decimal) (uint64, error) {
	return Bits(d, F64)
}

// IsQuantized reports whether e contains no Const.
func IsQuantized(e expr.Expr) bool {
	clean := true
	expr.Walk(e, func(n expr.Expr) bool {
		if _, ok := n.(*expr.Const); ok {
			clean = false
		}
		return clean
	})
	return clean
}
