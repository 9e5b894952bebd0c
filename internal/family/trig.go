package family

import (
	"context"
	"fmt"

	"github.com/ajroetker/libmgen/internal/oracle"
)

type trig struct{}

func (trig) Name() string        { return "trig" }
func (trig) Functions() []string { return []string{"sin", "cos", "tan", "sin_cos"} }
func (trig) Requires() []string  { return nil }

// Tolerances in ULPs, by strategy.
var trigULPs = map[Strategy]struct{ sin, cos, tan int }{
	SinglePass: {8, 8, 6},
	Quadrant:   {3, 4, 6},
}

func (t trig) Generate(ctx context.Context, opts Options) (*Output, error) {
	g, err := newGen(ctx, t.Name(), opts)
	if err != nil {
		return nil, err
	}
	steps := []func() error{g.sinCosSinglePass, g.tan, g.sinCos}
	if g.opts.TrigStrategy == Quadrant {
		steps[0] = g.sinCosQuadrant
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}

	ulps := trigULPs[g.opts.TrigStrategy]
	tests := []oracle.Case{
		{Name: "test_sin", Func: "sin", Reference: "std.sin(x)", MaxULPs: ulps.sin, Lo: "-PI", Hi: "PI"},
		{Name: "test_cos", Func: "cos", Reference: "std.cos(x)", MaxULPs: ulps.cos, Lo: "-PI", Hi: "PI"},
		{Name: "test_tan", Func: "tan", Reference: "std.tan(x)", MaxULPs: ulps.tan, Lo: "-0.25*PI", Hi: "0.25*PI"},
		{Name: "test_sin_cos_1", Func: "sin_cos", Reference: "std.sin(x)", MaxULPs: ulps.sin, Lo: "-PI", Hi: "PI"},
		{Name: "test_sin_cos_2", Func: "sin_cos", Reference: "std.cos(x)", Result: 1, MaxULPs: ulps.cos, Lo: "-PI", Hi: "PI"},
	}
	for _, c := range tests {
		if err := g.test(c); err != nil {
			return nil, err
		}
	}
	return g.output(), nil
}

// sinCosSinglePass reduces a to x in [-0.5, 0.5] turns and evaluates a
// full-period kernel.
func (g *gen) sinCosSinglePass() error {
	for _, fn := range []struct{ name, doc string }{
		{"sin", "approximates the sine of a by a single reduction to one period."},
		{"cos", "approximates the cosine of a by a single reduction to one period."},
	} {
		p, err := g.poly(fn.name, "x", "x2")
		if err != nil {
			return err
		}
		err = g.add(g.builder(fn.name, "a").
			Doc(fn.doc).
			Splice("P", p).
			Let("scaled", "a*(0.5/PI)").
			Let("x", "scaled - round(scaled)").
			Let("x2", "x*x").
			Return("P"))
		if err != nil {
			return err
		}
	}
	return nil
}

// sinCosQuadrant reduces a/pi against both the integers and the
// half-integers. The residual of smaller magnitude picks the sine or the
// cosine kernel; the parity of the matching quotient picks the sign.
func (g *gen) sinCosQuadrant() error {
	ps, err := g.poly("sin_q", "s", "s2")
	if err != nil {
		return err
	}
	pc, err := g.poly("cos_q", "c", "c2")
	if err != nil {
		return err
	}
	const odd = "abs(%[1]s - 2.0*round(%[1]s*0.5)) > 0.5"

	err = g.add(g.builder("sin", "a").
		Doc("approximates the sine of a using quadrant selection between sine and cosine kernels.").
		Splice("PS", ps).
		Splice("PC", pc).
		Let("x", "a*(1.0/PI)").
		Let("xh", "x + 0.5").
		Let("xr", "round(x)").
		Let("xhr", "round(xh)").
		Let("s", "x - xr").
		Let("c", "xh - xhr").
		Let("s2", "s*s").
		Let("c2", "c*c").
		Let("sr", "PS").
		Let("cr", "-PC").
		Let("ss", "select("+fmt.Sprintf(odd, "xr")+", -sr, sr)").
		Let("cs", "select("+fmt.Sprintf(odd, "xhr")+", -cr, cr)").
		Return("select(abs(s) <= 0.25, ss, cs)"))
	if err != nil {
		return err
	}
	return g.add(g.builder("cos", "a").
		Doc("approximates the cosine of a using quadrant selection between sine and cosine kernels.").
		Splice("PS", ps).
		Splice("PC", pc).
		Let("x", "a*(1.0/PI)").
		Let("xh", "x + 0.5").
		Let("xr", "round(x)").
		Let("xhr", "round(xh)").
		Let("c", "x - xr").
		Let("s", "xh - xhr").
		Let("s2", "s*s").
		Let("c2", "c*c").
		Let("sr", "PS").
		Let("cr", "PC").
		Let("ss", "select("+fmt.Sprintf(odd, "xhr")+", -sr, sr)").
		Let("cs", "select("+fmt.Sprintf(odd, "xr")+", -cr, cr)").
		Return("select(abs(s) <= 0.25, ss, cs)"))
}

// tan fits tan(pi x) multiplied by its pole factor x*x - 0.25, so the
// kernel is smooth on the whole half period, and divides the factor back
// out.
func (g *gen) tan() error {
	p, err := g.poly("tan", "x", "x2")
	if err != nil {
		return err
	}
	return g.add(g.builder("tan", "a").
		Doc("approximates the tangent of a.").
		Splice("P", p).
		Let("scaled", "a*(1.0/PI)").
		Let("x", "scaled - round(scaled)").
		Let("x2", "x*x").
		Return("P/(x2 - 0.25)"))
}

func (g *gen) sinCos() error {
	return g.add(g.builder("sin_cos", "a").
		Doc("returns the sine and the cosine of a.").
		Return("sin(a)", "cos(a)"))
}
