package family

import (
	"context"

	"github.com/ajroetker/libmgen/internal/ir"
	"github.com/ajroetker/libmgen/internal/oracle"
)

type invTrig struct{}

func (invTrig) Name() string        { return "inv_trig" }
func (invTrig) Functions() []string { return []string{"atan", "asin", "acos", "atan2"} }
func (invTrig) Requires() []string  { return nil }

func (f invTrig) Generate(ctx context.Context, opts Options) (*Output, error) {
	g, err := newGen(ctx, f.Name(), opts)
	if err != nil {
		return nil, err
	}
	pa, err := g.poly("atan", "r", "r2")
	if err != nil {
		return nil, err
	}
	ps, err := g.poly("asin", "t", "t2")
	if err != nil {
		return nil, err
	}

	// |a| > 1 reflects through atan(a) = pi/2 - atan(1/a).
	err = g.add(g.builder("atan", "a").
		Doc("approximates the arc tangent of a.").
		Splice("P", pa).
		Let("ax", "abs(a)").
		Let("inv", "ax > 1.0").
		Let("r", "select(inv, 1.0/ax, ax)").
		Let("r2", "r*r").
		Let("p", "P").
		Let("res", "select(inv, 0.5*PI - p, p)").
		Return("select(a < 0.0, -res, res)"))
	if err != nil {
		return nil, err
	}

	// |a| > 0.5 uses asin(a) = pi/2 - 2 asin(sqrt((1 - a)/2)).
	halfAngle := func(name, doc string) *ir.Builder {
		return g.builder(name, "a").
			Doc(doc).
			Splice("P", ps).
			Let("ax", "abs(a)").
			Let("big", "ax > 0.5").
			Let("z", "(1.0 - ax)*0.5").
			Let("s", "sqrt(z)").
			Let("t", "select(big, s, ax)").
			Let("t2", "t*t").
			Let("p", "P")
	}
	err = g.add(halfAngle("asin", "approximates the arc sine of a.").
		Let("r", "select(big, 0.5*PI - 2.0*p, p)").
		Return("select(a < 0.0, -r, r)"))
	if err != nil {
		return nil, err
	}
	err = g.add(halfAngle("acos", "approximates the arc cosine of a.").
		Let("rb", "2.0*p").
		Let("rbs", "select(a < 0.0, PI - rb, rb)").
		Let("rs", "0.5*PI - select(a < 0.0, -p, p)").
		Return("select(big, rbs, rs)"))
	if err != nil {
		return nil, err
	}

	err = g.add(g.builder("atan2", "y", "x").
		Doc("approximates the angle of the point (x, y).").
		Let("r", "atan(y/x)").
		Return("select(x < 0.0, select(y < 0.0, r - PI, r + PI), r)"))
	if err != nil {
		return nil, err
	}

	for _, c := range []oracle.Case{
		{Name: "test_atan", Func: "atan", Reference: "std.atan(x)", MaxULPs: 4, Lo: "-10.0", Hi: "10.0"},
		{Name: "test_asin", Func: "asin", Reference: "std.asin(x)", MaxULPs: 4, Lo: "-1.0", Hi: "1.0"},
		{Name: "test_acos", Func: "acos", Reference: "std.acos(x)", MaxULPs: 4, Lo: "-1.0", Hi: "1.0"},
		{Name: "test_atan2", Func: "atan2", Reference: "std.atan2(x, -0.75)", Args: []string{"x", "-0.75"}, MaxULPs: 4, Lo: "-10.0", Hi: "10.0"},
	} {
		if err := g.test(c); err != nil {
			return nil, err
		}
	}
	return g.output(), nil
}
