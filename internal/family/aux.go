package family

import (
	"context"

	"github.com/ajroetker/libmgen/internal/oracle"
)

type aux struct{}

func (aux) Name() string        { return "aux" }
func (aux) Functions() []string { return []string{"hypot", "pow"} }
func (aux) Requires() []string  { return []string{"log_exp"} }

func (f aux) Generate(ctx context.Context, opts Options) (*Output, error) {
	g, err := newGen(ctx, f.Name(), opts)
	if err != nil {
		return nil, err
	}
	err = g.add(g.builder("hypot", "a", "b").
		Doc("approximates sqrt(a*a + b*b) without intermediate overflow.").
		Let("x", "abs(a)").
		Let("y", "abs(b)").
		Let("hi", "max(x, y)").
		Let("lo", "min(x, y)").
		Let("r", "lo/hi").
		Return("select(hi == 0.0, 0.0, hi*sqrt(mul_add(r, r, 1.0)))"))
	if err != nil {
		return nil, err
	}
	// A negative x has a real power only for integral y, negated when y
	// is odd.
	err = g.add(g.builder("pow", "x", "y").
		Doc("approximates x raised to the power y.").
		Let("r", "exp(y*ln(abs(x)))").
		Let("yi", "round(y)").
		Let("half", "yi*0.5").
		Let("neg", "select(y != yi, from_bits(NAN), select(round(half) != half, -r, r))").
		Return("select(y == 0.0, 1.0, select(x < 0.0, neg, r))"))
	if err != nil {
		return nil, err
	}

	for _, c := range []oracle.Case{
		{Name: "test_hypot", Func: "hypot", Reference: "std.hypot(x, 0.75)", Args: []string{"x", "0.75"}, MaxULPs: 4, Lo: "-10.0", Hi: "10.0"},
		{Name: "test_pow", Func: "pow", Reference: "std.pow(x, 2.5)", Args: []string{"x", "2.5"}, MaxULPs: 16, Lo: "0.1", Hi: "10.0"},
	} {
		if err := g.test(c); err != nil {
			return nil, err
		}
	}
	return g.output(), nil
}
