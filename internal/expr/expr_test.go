package expr

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ajroetker/libmgen/internal/numeric"
)

func TestParseString(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"x", "x"},
		{"1.5", "1.5"},
		{"2.0", "2.0"},
		{"0x7f800000", "0x7f800000"},
		{"12", "12"},
		{"-0.25", "-0.25"},
		{"a + b*c", "a + b*c"},
		{"(a + b)*c", "(a + b)*c"},
		{"a - (b - c)", "a - (b - c)"},
		{"a - b - c", "a - b - c"},
		{"mul_add(x, y, 1.0)", "mul_add(x, y, 1.0)"},
		{"std.sin(x)", "std.sin(x)"},
		{"select(x < 0.5, -x, x)", "select(x < 0.5, -x, x)"},
		{"select(a < 1.0, a, 2.0)", "select(a < 1.0, a, 2.0)"},
		{"select(a == 0.0, a, select(a < 0.0, -a, a))", "select(a == 0.0, a, select(a < 0.0, -a, a))"},
		{"(bits >> MANT) & EXPMASK", "bits>>MANT&EXPMASK"},
		{"a < b && !(c == d)", "a < b && !(c == d)"},
		{"-(a + b)", "-(a + b)"},
		{"x * -0.5", "x*-0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := Parse(tt.src)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.src, err)
			}
			if got := e.String(); got != tt.want {
				t.Errorf("Parse(%q).String() = %q, want %q", tt.src, got, tt.want)
			}
			again, err := Parse(e.String())
			if err != nil {
				t.Fatalf("Parse(%q): %v", e.String(), err)
			}
			if !Equal(e, again) {
				t.Errorf("round trip of %q changed the tree: %s", tt.src, again)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{"x[1]", "a % b", "f(x)(y)", "'c'", "x +"} {
		if _, err := Parse(src); !errors.Is(err, ErrSyntax) {
			t.Errorf("Parse(%q) error = %v, want ErrSyntax", src, err)
		}
	}
}

func TestParseSelectKeyword(t *testing.T) {
	e, err := Parse("select(a < 1.0, a, 2.0)")
	if err != nil {
		t.Fatal(err)
	}
	call, ok := e.(*Call)
	if !ok || call.Name != "select" || len(call.Args) != 3 {
		t.Fatalf("Parse(select(...)) = %#v, want a three-argument select call", e)
	}
	if _, ok := call.Args[0].(*Binary); !ok {
		t.Errorf("select condition parsed as %T, want *Binary", call.Args[0])
	}
	// Identifiers that merely contain the keyword are untouched.
	if got := MustParse("selected + select_x").String(); got != "selected + select_x" {
		t.Errorf("identifiers containing select became %q", got)
	}
	for _, src := range []string{"select", "select + 1.0"} {
		if _, err := Parse(src); !errors.Is(err, ErrSyntax) {
			t.Errorf("Parse(%q) error = %v, want ErrSyntax", src, err)
		}
	}
}

func TestParseLiteralKinds(t *testing.T) {
	e := MustParse("f(3, 3.0, 0x1p-2)")
	call := e.(*Call)
	if _, ok := call.Args[0].(*Int); !ok {
		t.Errorf("3 parsed as %T, want *Int", call.Args[0])
	}
	if _, ok := call.Args[1].(*Const); !ok {
		t.Errorf("3.0 parsed as %T, want *Const", call.Args[1])
	}
	c, ok := call.Args[2].(*Const)
	if !ok || c.Value.Cmp(numeric.MustParse("0.25")) != 0 {
		t.Errorf("0x1p-2 parsed as %v, want 0.25", call.Args[2])
	}
}

func TestRewriteBottomUp(t *testing.T) {
	e := MustParse("f(a + b, c)")
	var order []string
	out, err := Rewrite(e, VisitorFunc(func(n Expr) (Expr, error) {
		order = append(order, n.String())
		if v, ok := n.(*Var); ok && v.Name == "a" {
			return NewVar("z"), nil
		}
		return n, nil
	}))
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	want := []string{"a", "b", "z + b", "c", "f(z + b, c)"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("visit order mismatch (-want +got):\n%s", diff)
	}
	if got := out.String(); got != "f(z + b, c)" {
		t.Errorf("Rewrite = %s, want f(z + b, c)", got)
	}
	if got := e.String(); got != "f(a + b, c)" {
		t.Errorf("input mutated to %s", got)
	}
}

func TestRewriteAbortsWithoutPartialTree(t *testing.T) {
	boom := errors.New("boom")
	e := MustParse("x + g(y, 2.0)")
	out, err := Rewrite(e, VisitorFunc(func(n Expr) (Expr, error) {
		if _, ok := n.(*Const); ok {
			return nil, boom
		}
		return n, nil
	}))
	if out != nil {
		t.Errorf("Rewrite returned partial tree %s", out)
	}
	var rerr *RewriteError
	if !errors.As(err, &rerr) {
		t.Fatalf("error %v is not a *RewriteError", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("error %v does not wrap the visitor error", err)
	}
	if got := rerr.Node.String(); got != "2.0" {
		t.Errorf("RewriteError.Node = %s, want 2.0", got)
	}
}

func TestBind(t *testing.T) {
	e := MustParse("x*K + K")
	out := Bind(e, map[string]Expr{"K": MustParse("0.5")})
	if got := out.String(); got != "x*0.5 + 0.5" {
		t.Errorf("Bind = %s", got)
	}
	b := out.(*Binary)
	if b.X.(*Binary).Y == b.Y {
		t.Errorf("Bind shared a binding between two parents")
	}
}

func TestVarsCalls(t *testing.T) {
	e := MustParse("mul_add(x, select(x < y, y, x), exp(x))")
	if diff := cmp.Diff([]string{"x", "y"}, Vars(e)); diff != "" {
		t.Errorf("Vars mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"exp", "mul_add", "select"}, Calls(e)); diff != "" {
		t.Errorf("Calls mismatch (-want +got):\n%s", diff)
	}
}

func TestEval(t *testing.T) {
	c := numeric.NewContext(30)
	tests := []struct {
		src  string
		env  map[string]float64
		want float64
	}{
		{"1.5*x + 2.0", map[string]float64{"x": 2}, 5},
		{"sin(PI/6.0)", nil, 0.5},
		{"std.exp(LN2)", nil, 2},
		{"pow(2.0, 0.5)", nil, math.Sqrt2},
		{"mul_add(x, x, -1.0)", map[string]float64{"x": 3}, 8},
		{"tan(PI*x)*(x*x - 0.25)", map[string]float64{"x": 0.125}, math.Tan(math.Pi/8) * (0.015625 - 0.25)},
		{"SQRT2*SQRT2", nil, 2},
		{"round(-2.5)", nil, -3},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			env := map[string]*numeric.Decimal{}
			for k, v := range tt.env {
				d, err := numeric.FromFloat64(v)
				if err != nil {
					t.Fatal(err)
				}
				env[k] = d
			}
			d, err := Eval(c, MustParse(tt.src), env)
			if err != nil {
				t.Fatalf("Eval(%s): %v", tt.src, err)
			}
			got, _ := d.Float64()
			if math.Abs(got-tt.want) > 1e-15*math.Max(1, math.Abs(tt.want)) {
				t.Errorf("Eval(%s) = %v, want %v", tt.src, got, tt.want)
			}
		})
	}
}

func TestEvalErrors(t *testing.T) {
	c := numeric.NewContext(20)
	tests := []struct {
		src  string
		want error
	}{
		{"y + 1.0", ErrUnbound},
		{"1.0 < 2.0", ErrNotNumeric},
		{"from_bits(3)", ErrUnknownFunc},
		{"1.0/0.0", numeric.ErrUndefined},
	}
	for _, tt := range tests {
		if _, err := Eval(c, MustParse(tt.src), nil); !errors.Is(err, tt.want) {
			t.Errorf("Eval(%s) error = %v, want %v", tt.src, err, tt.want)
		}
	}
}

func TestFold(t *testing.T) {
	c := numeric.NewContext(20)
	tests := []struct {
		src  string
		want string
	}{
		{"x*(1.0/4.0)", "x*0.25"},
		{"x + 2.0*3.0", "x + 6.0"},
		{"-(0.5)", "-0.5"},
		{"from_bits(0x3f800000)", "from_bits(0x3f800000)"},
		{"(BIAS + 1) << MANT", "(BIAS + 1)<<MANT"},
		{"std.sin(0.5)", "std.sin(0.5)"},
		{"x*sqrt(4.0)", "x*2.0"},
	}
	for _, tt := range tests {
		out, err := Fold(c, MustParse(tt.src))
		if err != nil {
			t.Fatalf("Fold(%s): %v", tt.src, err)
		}
		if !Equal(out, MustParse(tt.want)) {
			t.Errorf("Fold(%s) = %s, want %s", tt.src, out, tt.want)
		}
	}
}
