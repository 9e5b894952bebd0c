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

package ir

import (
	"errors"
	"math"
	"testing"

	"github.com/ajroetker/libmgen/internal/expr"
	"github.com/ajroetker/libmgen/internal/numeric"
	"github.com/ajroetker/libmgen/internal/quantize"
)

var nc = numeric.NewContext(30)

func mustBuild(t *testing.T, b *Builder) *Function {
	t.Helper()
	fn, err := b.Build(nc)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return fn
}

func TestBuilderQuantizes(t *testing.T) {
	fn := mustBuild(t, NewBuilder("affine", quantize.F32, "a").
		Bind(map[string]expr.Expr{"K": expr.MustParse("1.0/3.0")}).
		Let("y", "a*K + 0.5").
		Return("y"))

	let := fn.Body[0].(*Let)
	if got, want := let.Value.String(), "a*from_bits(0x3eaaaaab) + from_bits(0x3f000000)"; got != want {
		t.Errorf("let y = %s, want %s", got, want)
	}
	if fn.Results != 1 || len(fn.Params) != 1 || fn.Params[0].Name != "a" {
		t.Errorf("signature = %d params, %d results", len(fn.Params), fn.Results)
	}
}

func TestBuilderVector(t *testing.T) {
	fn := mustBuild(t, NewBuilder("half", quantize.F64Vec, "a").Return("a*0.5"))
	ret := fn.Body[0].(*Return)
	if got, want := ret.Values[0].String(), "a*splat(from_bits(0x3fe0000000000000))"; got != want {
		t.Errorf("return %s, want %s", got, want)
	}
}

func TestBuilderDocVerbatim(t *testing.T) {
	doc := "approximates 100% of a over [0, 1%)."
	fn := mustBuild(t, NewBuilder("f", quantize.F32, "a").Doc(doc).Return("select(a < 1.0, a, 2.0)"))
	if fn.Doc != doc {
		t.Errorf("Doc = %q, want %q", fn.Doc, doc)
	}
}

func TestBuilderErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Builder
	}{
		{"syntax", func() *Builder { return NewBuilder("f", quantize.F32, "a").Let("y", "a +").Return("y") }},
		{"bool_result", func() *Builder { return NewBuilder("f", quantize.F32, "a").Let("y", "a < 1.0").Return("y") }},
		{"select_mismatch", func() *Builder { return NewBuilder("f", quantize.F32, "a").Return("select(a < 1.0, 1, a)") }},
		{"variable_shift", func() *Builder {
			return NewBuilder("f", quantize.F32, "a").Let("i", "to_int(a)").Return("from_bits(i << i)")
		}},
		{"undefined", func() *Builder { return NewBuilder("f", quantize.F32, "a").Return("b") }},
		{"rebound", func() *Builder { return NewBuilder("f", quantize.F32, "a").Let("a", "1.0").Return("a") }},
		{"float_and", func() *Builder { return NewBuilder("f", quantize.F32, "a").Return("from_bits(to_bits(a) & a)") }},
		{"reference_call", func() *Builder { return NewBuilder("f", quantize.F32, "a").Return("std.sin(a)") }},
		{"no_return", func() *Builder { return NewBuilder("f", quantize.F32, "a").Let("y", "a") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if fn, err := tt.build().Build(nc); err == nil {
				t.Errorf("Build succeeded: %+v", fn)
			}
		})
	}
}

func TestKindErrorUnwrap(t *testing.T) {
	_, err := NewBuilder("f", quantize.F32, "a").Return("a && a").Build(nc)
	var kerr *KindError
	if !errors.As(err, &kerr) || !errors.Is(err, ErrKind) {
		t.Fatalf("error %v is not a *KindError", err)
	}
	if kerr.Func != "f" {
		t.Errorf("KindError.Func = %q, want f", kerr.Func)
	}
}

func TestInterpBitOps(t *testing.T) {
	exponent32 := mustBuild(t, NewBuilder("exponent", quantize.F32, "a").
		Let("bits", "to_bits(a)").
		Let("e", "((bits >> 23) & 255) - 127").
		Return("to_float(e)"))
	exponent64 := mustBuild(t, NewBuilder("exponent", quantize.F64, "a").
		Let("bits", "to_bits(a)").
		Let("e", "((bits >> 52) & 2047) - 1023").
		Return("to_float(e)"))
	ldexp32 := mustBuild(t, NewBuilder("ldexp", quantize.F32, "a").
		Let("n", "to_int(a)").
		Return("from_bits((n + 127) << 23)"))

	tests := []struct {
		in, want float64
	}{
		{8, 3},
		{0.3, -2},
		{1, 0},
		{-6, 2},
	}
	in32 := NewInterp[float32]([]*Function{exponent32, ldexp32})
	in64 := NewInterp[float64]([]*Function{exponent64})
	for _, tt := range tests {
		got32, err := in32.Call("exponent", float32(tt.in))
		if err != nil {
			t.Fatal(err)
		}
		got64, err := in64.Call("exponent", tt.in)
		if err != nil {
			t.Fatal(err)
		}
		if float64(got32[0]) != tt.want || got64[0] != tt.want {
			t.Errorf("exponent(%v) = %v / %v, want %v", tt.in, got32[0], got64[0], tt.want)
		}
	}
	for _, n := range []float32{-3, 0, 5} {
		got, err := in32.Call("ldexp", n)
		if err != nil {
			t.Fatal(err)
		}
		if want := float32(math.Ldexp(1, int(n))); got[0] != want {
			t.Errorf("ldexp(%v) = %v, want %v", n, got[0], want)
		}
	}
}

func TestInterpMulAddRoundsProduct(t *testing.T) {
	fn := mustBuild(t, NewBuilder("ma", quantize.F32, "a").Return("mul_add(a, a, -1.0)"))
	in := NewInterp[float32]([]*Function{fn})
	a := float32(1 + 1.0/4096)
	got, err := in.Call("ma", a)
	if err != nil {
		t.Fatal(err)
	}
	if want := float32(1.0 / 2048); got[0] != want {
		t.Errorf("mul_add = %g, want %g", got[0], want)
	}
}

func TestInterpSelectAndRound(t *testing.T) {
	fn := mustBuild(t, NewBuilder("f", quantize.F64, "a").
		Let("r", "round(a)").
		Return("select(abs(a - r) == 0.5 && !(a < 0.0), r, -r)"))
	in := NewInterp[float64]([]*Function{fn})
	tests := []struct{ in, want float64 }{
		{2.5, 3},
		{-2.5, 3},
		{1.2, -1},
	}
	for _, tt := range tests {
		got, err := in.Call("f", tt.in)
		if err != nil {
			t.Fatal(err)
		}
		if got[0] != tt.want {
			t.Errorf("f(%v) = %v, want %v", tt.in, got[0], tt.want)
		}
	}
}

func TestInterpCallsAndResults(t *testing.T) {
	double := mustBuild(t, NewBuilder("double", quantize.F32, "a").Return("a + a"))
	quad := mustBuild(t, NewBuilder("quad", quantize.F32, "a").Return("double(double(a))"))
	pair := mustBuild(t, NewBuilder("pair", quantize.F32, "a").Return("a", "-a"))
	bad := mustBuild(t, NewBuilder("bad", quantize.F32, "a").Return("pair(a)"))

	items := []Item{double, quad, pair}
	if _, err := CheckAll(items); err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	if _, err := CheckAll(append(items, bad)); !errors.Is(err, ErrKind) {
		t.Errorf("CheckAll accepted a multi-result call in expression context: %v", err)
	}

	in := NewInterp[float32]([]*Function{double, quad, pair, bad})
	got, err := in.Call("quad", 1.5)
	if err != nil || got[0] != 6 {
		t.Errorf("quad(1.5) = %v, %v; want 6", got, err)
	}
	got, err = in.Call("pair", 2)
	if err != nil || len(got) != 2 || got[1] != -2 {
		t.Errorf("pair(2) = %v, %v; want [2 -2]", got, err)
	}
	if _, err := in.Call("bad", 1); !errors.Is(err, ErrEval) {
		t.Errorf("bad(1) error = %v, want ErrEval", err)
	}
	if _, err := NewInterp[float64]([]*Function{double}).Call("double", 1); !errors.Is(err, ErrEval) {
		t.Errorf("64-bit interpreter ran a 32-bit function: %v", err)
	}
}

func TestInterpEvalReference(t *testing.T) {
	e, err := quantize.Apply(expr.MustParse("std.hypot(x, 4.0) + std.ln(1.0)"), quantize.F64)
	if err != nil {
		t.Fatal(err)
	}
	got, err := NewInterp[float64](nil).Eval(e, map[string]float64{SampleVar: 3})
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Errorf("Eval = %v, want 5", got)
	}
}
