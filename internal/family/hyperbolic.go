package family

import (
	"context"

	"github.com/ajroetker/libmgen/internal/oracle"
)

// hyperbolic fits small arguments directly and otherwise goes through
// the generated exp and ln.
type hyperbolic struct{}

func (hyperbolic) Name() string { return "hyperbolic" }
func (hyperbolic) Functions() []string {
	return []string{"sinh", "cosh", "tanh", "asinh", "acosh", "atanh"}
}
func (hyperbolic) Requires() []string { return []string{"log_exp"} }

func (f hyperbolic) Generate(ctx context.Context, opts Options) (*Output, error) {
	g, err := newGen(ctx, f.Name(), opts)
	if err != nil {
		return nil, err
	}
	sinh, err := g.poly("sinh", "a", "a2")
	if err != nil {
		return nil, err
	}
	err = g.add(g.builder("sinh", "a").
		Doc("approximates the hyperbolic sine of a.").
		Splice("P", sinh).
		Let("ax", "abs(a)").
		Let("a2", "a*a").
		Let("ps", "P").
		Let("e", "exp(ax)").
		Let("rb", "0.5*e - 0.5/e").
		Let("rbs", "select(a < 0.0, -rb, rb)").
		Return("select(ax < 1.0, ps, rbs)"))
	if err != nil {
		return nil, err
	}

	cosh, err := g.poly("cosh", "a", "a2")
	if err != nil {
		return nil, err
	}
	err = g.add(g.builder("cosh", "a").
		Doc("approximates the hyperbolic cosine of a.").
		Splice("P", cosh).
		Let("ax", "abs(a)").
		Let("a2", "a*a").
		Let("ps", "P").
		Let("e", "exp(ax)").
		Let("rb", "0.5*e + 0.5/e").
		Return("select(ax < 1.0, ps, rb)"))
	if err != nil {
		return nil, err
	}

	tanh, err := g.poly("tanh", "a", "a2")
	if err != nil {
		return nil, err
	}
	err = g.add(g.builder("tanh", "a").
		Doc("approximates the hyperbolic tangent of a.").
		Splice("P", tanh).
		Let("ax", "abs(a)").
		Let("a2", "a*a").
		Let("p", "P").
		Let("e2", "exp(2.0*ax)").
		Let("rb", "1.0 - 2.0/(e2 + 1.0)").
		Let("rbs", "select(a < 0.0, -rb, rb)").
		Return("select(ax < 0.625, p, rbs)"))
	if err != nil {
		return nil, err
	}

	// Above HUGE, sqrt(a*a + 1) is a to working precision and
	// asinh(a) = ln(2a) = ln(a) + ln 2 avoids overflowing a*a.
	asinh, err := g.poly("asinh", "a", "a2")
	if err != nil {
		return nil, err
	}
	err = g.add(g.builder("asinh", "a").
		Doc("approximates the inverse hyperbolic sine of a.").
		Splice("P", asinh).
		Let("ax", "abs(a)").
		Let("a2", "a*a").
		Let("p", "P").
		Let("rh", "ln(ax) + LN2").
		Let("rb", "ln(ax + sqrt(mul_add(ax, ax, 1.0)))").
		Let("rr", "select(ax > HUGE, rh, rb)").
		Let("rs", "select(a < 0.0, -rr, rr)").
		Return("select(ax < 0.5, p, rs)"))
	if err != nil {
		return nil, err
	}

	err = g.add(g.builder("acosh", "a").
		Doc("approximates the inverse hyperbolic cosine of a.").
		Let("rh", "ln(a) + LN2").
		Let("rb", "ln(a + sqrt((a - 1.0)*(a + 1.0)))").
		Return("select(a > HUGE, rh, rb)"))
	if err != nil {
		return nil, err
	}

	atanh, err := g.poly("atanh", "a", "a2")
	if err != nil {
		return nil, err
	}
	err = g.add(g.builder("atanh", "a").
		Doc("approximates the inverse hyperbolic tangent of a.").
		Splice("P", atanh).
		Let("ax", "abs(a)").
		Let("a2", "a*a").
		Let("p", "P").
		Let("rb", "0.5*ln((1.0 + ax)/(1.0 - ax))").
		Let("rbs", "select(a < 0.0, -rb, rb)").
		Return("select(ax < 0.5, p, rbs)"))
	if err != nil {
		return nil, err
	}

	for _, c := range []oracle.Case{
		{Name: "test_sinh", Func: "sinh", Reference: "std.sinh(x)", MaxULPs: 4, Lo: "-10.0", Hi: "10.0"},
		{Name: "test_cosh", Func: "cosh", Reference: "std.cosh(x)", MaxULPs: 4, Lo: "-10.0", Hi: "10.0"},
		{Name: "test_tanh", Func: "tanh", Reference: "std.tanh(x)", MaxULPs: 4, Lo: "-5.0", Hi: "5.0"},
		{Name: "test_asinh", Func: "asinh", Reference: "std.asinh(x)", MaxULPs: 4, Lo: "-10.0", Hi: "10.0"},
		{Name: "test_acosh", Func: "acosh", Reference: "std.acosh(x)", MaxULPs: 4, Lo: "1.0", Hi: "10.0"},
		{Name: "test_atanh", Func: "atanh", Reference: "std.atanh(x)", MaxULPs: 4, Lo: "-0.99", Hi: "0.99"},
	} {
		if err := g.test(c); err != nil {
			return nil, err
		}
	}
	return g.output(), nil
}
