package family

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ajroetker/libmgen/internal/approx"
	"github.com/ajroetker/libmgen/internal/ir"
	"github.com/ajroetker/libmgen/internal/oracle"
	"github.com/ajroetker/libmgen/internal/quantize"
	"github.com/ajroetker/libmgen/internal/workerpool"
)

func generateAll(t *testing.T, opts Options, names ...string) *Output {
	t.Helper()
	fams, err := Resolve(names)
	if err != nil {
		t.Fatal(err)
	}
	all := &Output{}
	for _, f := range fams {
		out, err := f.Generate(context.Background(), opts)
		if err != nil {
			t.Fatalf("%s: %v", f.Name(), err)
		}
		all.Functions = append(all.Functions, out.Functions...)
		all.Tests = append(all.Tests, out.Tests...)
	}
	return all
}

func checkBounded(t *testing.T, pool *workerpool.Pool, out *Output) {
	t.Helper()
	if _, err := ir.CheckAll(out.Items()); err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	for _, tc := range out.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			s, err := oracle.Measure(pool, tc, out.Functions)
			if err != nil {
				t.Fatal(err)
			}
			if !s.Pass(tc) {
				t.Errorf("%s exceeds %d ulp: %s", tc.Func, tc.MaxULPs, s)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		names []string
		want  []string
	}{
		{nil, []string{"trig", "inv_trig", "log_exp", "hyperbolic", "recip_sqrt", "aux"}},
		{[]string{"aux"}, []string{"log_exp", "aux"}},
		{[]string{"recip_sqrt", "trig", "trig"}, []string{"trig", "recip_sqrt"}},
		{[]string{"hyperbolic", "aux"}, []string{"log_exp", "hyperbolic", "aux"}},
	}
	for _, tt := range tests {
		fams, err := Resolve(tt.names)
		if err != nil {
			t.Fatal(err)
		}
		var got []string
		for _, f := range fams {
			got = append(got, f.Name())
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Resolve(%v) mismatch (-want +got):\n%s", tt.names, diff)
		}
	}
	if _, err := Resolve([]string{"gamma"}); !errors.Is(err, ErrUnknownFamily) {
		t.Errorf("Resolve(gamma) error = %v, want ErrUnknownFamily", err)
	}
}

func TestParseStrategy(t *testing.T) {
	for tag, want := range map[string]Strategy{"": SinglePass, "single_pass": SinglePass, "Quadrant": Quadrant} {
		got, err := ParseStrategy(tag)
		if err != nil || got != want {
			t.Errorf("ParseStrategy(%q) = %v, %v; want %v", tag, got, err, want)
		}
	}
	if _, err := ParseStrategy("octant"); !errors.Is(err, ErrStrategy) {
		t.Errorf("ParseStrategy(octant) error = %v", err)
	}
}

func TestFunctionsMatchOutput(t *testing.T) {
	out := generateAll(t, Options{Type: quantize.F32, Samples: 10}, "trig", "aux")
	var got []string
	for _, fn := range out.Functions {
		got = append(got, fn.Name)
	}
	want := []string{"sin", "cos", "tan", "sin_cos", "exp", "exp2", "ln", "log2", "log10", "hypot", "pow"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("function order mismatch (-want +got):\n%s", diff)
	}
}

func TestBoundedError32(t *testing.T) {
	pool := workerpool.New(0)
	defer pool.Close()
	checkBounded(t, pool, generateAll(t, Options{Type: quantize.F32, Pool: pool}))
}

func TestBoundedError64(t *testing.T) {
	if testing.Short() {
		t.Skip("64-bit fits are slow")
	}
	pool := workerpool.New(0)
	defer pool.Close()
	checkBounded(t, pool, generateAll(t, Options{Type: quantize.F64, Pool: pool}))
}

func TestQuadrantStrategy(t *testing.T) {
	for _, nt := range []quantize.NumberType{quantize.F32, quantize.F64} {
		t.Run(nt.String(), func(t *testing.T) {
			out := generateAll(t, Options{Type: nt, TrigStrategy: Quadrant}, "trig")
			if got := out.Tests[0].MaxULPs; got != 3 {
				t.Errorf("quadrant sin tolerance = %d, want 3", got)
			}
			checkBounded(t, nil, out)
		})
	}
}

func TestSinKnownValues(t *testing.T) {
	out := generateAll(t, Options{Type: quantize.F32}, "trig")
	in := ir.NewInterp[float32](out.Functions)

	got, err := in.Call("sin", 0)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 0 || math.Signbit(float64(got[0])) {
		t.Errorf("sin(0) = %g, want +0", got[0])
	}
	got, err = in.Call("sin", float32(math.Pi/2))
	if err != nil {
		t.Fatal(err)
	}
	if d := math.Abs(float64(got[0]) - 1); d > 8*math.Ldexp(1, -23) {
		t.Errorf("sin(pi/2) = %v, off by %g", got[0], d)
	}
	got, err = in.Call("sin_cos", float32(math.Pi/3))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(float64(got[1])-0.5) > 8*math.Ldexp(1, -23) {
		t.Errorf("sin_cos(pi/3) = %v, want cos near 0.5", got)
	}
}

func TestLogSpecialValues(t *testing.T) {
	out := generateAll(t, Options{Type: quantize.F64}, "log_exp")
	in := ir.NewInterp[float64](out.Functions)
	tests := []struct {
		fn   string
		in   float64
		want float64
	}{
		{"ln", 0, math.Inf(-1)},
		{"ln", math.Inf(1), math.Inf(1)},
		{"ln", -1, math.NaN()},
		{"log2", 0x1p-1060, -1060},
		{"log2", 1, 0},
		{"exp", 1000, math.Inf(1)},
		{"exp", -1000, 0},
		{"exp2", 3, 8},
	}
	for _, tt := range tests {
		got, err := in.Call(tt.fn, tt.in)
		if err != nil {
			t.Fatal(err)
		}
		switch {
		case math.IsNaN(tt.want):
			if !math.IsNaN(got[0]) {
				t.Errorf("%s(%g) = %g, want NaN", tt.fn, tt.in, got[0])
			}
		case math.IsInf(tt.want, 0) || tt.want == 0:
			if got[0] != tt.want {
				t.Errorf("%s(%g) = %g, want %g", tt.fn, tt.in, got[0], tt.want)
			}
		default:
			if math.Abs(got[0]-tt.want) > 4*math.Ldexp(1, -52)*math.Abs(tt.want) {
				t.Errorf("%s(%g) = %g, want %g", tt.fn, tt.in, got[0], tt.want)
			}
		}
	}
}

func TestPowNegativeBase(t *testing.T) {
	out := generateAll(t, Options{Type: quantize.F64}, "aux")
	in := ir.NewInterp[float64](out.Functions)
	tests := []struct {
		x, y, want float64
	}{
		{-2, 2, 4},
		{-2, 3, -8},
		{-0.5, -3, -8},
		{-2, 0.5, math.NaN()},
		{-3, 0, 1},
		{2, 0.5, math.Sqrt2},
	}
	for _, tt := range tests {
		got, err := in.Call("pow", tt.x, tt.y)
		if err != nil {
			t.Fatal(err)
		}
		if math.IsNaN(tt.want) {
			if !math.IsNaN(got[0]) {
				t.Errorf("pow(%g, %g) = %g, want NaN", tt.x, tt.y, got[0])
			}
			continue
		}
		if math.Abs(got[0]-tt.want) > 16*math.Ldexp(1, -52)*math.Abs(tt.want) {
			t.Errorf("pow(%g, %g) = %g, want %g", tt.x, tt.y, got[0], tt.want)
		}
	}
}

func TestRootSpecialValues(t *testing.T) {
	out := generateAll(t, Options{Type: quantize.F32}, "recip_sqrt")
	in := ir.NewInterp[float32](out.Functions)
	inf := float32(math.Inf(1))
	nan := float32(math.NaN())
	tests := []struct {
		fn   string
		in   float32
		want float64
	}{
		{"sqrt", -1, math.NaN()},
		{"sqrt", nan, math.NaN()},
		{"sqrt", inf, math.Inf(1)},
		{"sqrt", 0, 0},
		{"sqrt", 0x1p-140, 0x1p-70},
		{"sqrt", 0x1p-147, 0x1.6a09e6p-74},
		{"rsqrt", 0, math.Inf(1)},
		{"rsqrt", -4, math.NaN()},
		{"rsqrt", nan, math.NaN()},
		{"rsqrt", inf, 0},
		{"rsqrt", 0x1p-140, 0x1p70},
		{"cbrt", nan, math.NaN()},
		{"cbrt", inf, math.Inf(1)},
		{"cbrt", -inf, math.Inf(-1)},
		{"cbrt", -8, -2},
		{"cbrt", -0x1p-141, -0x1p-47},
	}
	for _, tt := range tests {
		got, err := in.Call(tt.fn, tt.in)
		if err != nil {
			t.Fatal(err)
		}
		g := float64(got[0])
		switch {
		case math.IsNaN(tt.want):
			if !math.IsNaN(g) {
				t.Errorf("%s(%g) = %g, want NaN", tt.fn, tt.in, g)
			}
		case math.IsInf(tt.want, 0) || tt.want == 0:
			if g != tt.want {
				t.Errorf("%s(%g) = %g, want %g", tt.fn, tt.in, g, tt.want)
			}
		default:
			if math.Abs(g-tt.want) > 4*math.Ldexp(1, -23)*math.Abs(tt.want) {
				t.Errorf("%s(%g) = %g, want %g", tt.fn, tt.in, g, tt.want)
			}
		}
	}
}

func TestVectorType(t *testing.T) {
	out := generateAll(t, Options{Type: quantize.F32Vec, Samples: 200}, "recip_sqrt")
	for _, fn := range out.Functions {
		if fn.Type != quantize.F32Vec {
			t.Errorf("%s has type %s", fn.Name, fn.Type)
		}
	}
	ret, err := out.Functions[0].Returns()
	if err != nil {
		t.Fatal(err)
	}
	if s := ret.Values[0].String(); !strings.Contains(s, quantize.Splat+"(") {
		t.Errorf("vector sqrt return has no splat: %s", s)
	}
	checkBounded(t, nil, out)
}

func TestDeterministic(t *testing.T) {
	render := func() []string {
		var lines []string
		for _, fn := range generateAll(t, Options{Type: quantize.F32}, "inv_trig").Functions {
			for _, s := range fn.Body {
				switch s := s.(type) {
				case *ir.Let:
					lines = append(lines, s.Name+" = "+s.Value.String())
				case *ir.Return:
					for _, v := range s.Values {
						lines = append(lines, "return "+v.String())
					}
				}
			}
		}
		return lines
	}
	if diff := cmp.Diff(render(), render()); diff != "" {
		t.Errorf("two runs differ:\n%s", diff)
	}
}

func TestTooFewTerms(t *testing.T) {
	for _, terms := range []int{1, 3} {
		_, err := trig{}.Generate(context.Background(), Options{Type: quantize.F32, Terms: TermTable{"sin": terms}})
		var fe *approx.FitError
		if !errors.As(err, &fe) {
			t.Fatalf("%d-term sin: got %v, want *approx.FitError", terms, err)
		}
		if !errors.Is(err, approx.ErrBudget) {
			t.Errorf("%d-term sin: got %v, want ErrBudget", terms, err)
		}
	}
}

func TestCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := trig{}.Generate(ctx, Options{Type: quantize.F32})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Generate on a canceled context: %v", err)
	}
}
