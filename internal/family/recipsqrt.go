package family

import (
	"context"

	"github.com/ajroetker/libmgen/internal/ir"
	"github.com/ajroetker/libmgen/internal/oracle"
)

// Special inputs of the roots: zero, negative, NaN and infinite values.
const (
	sqrtSpecial  = "select(a == 0.0, a, select(a < 0.0 || a != a, from_bits(NAN), select(a == from_bits(INF), a, y)))"
	rsqrtSpecial = "select(a == 0.0, from_bits(INF), select(a < 0.0 || a != a, from_bits(NAN), select(a == from_bits(INF), 0.0, y)))"
	cbrtSpecial  = "select(a == 0.0 || a != a || ax == from_bits(INF), a, y)"
)

type recipSqrt struct{}

func (recipSqrt) Name() string        { return "recip_sqrt" }
func (recipSqrt) Functions() []string { return []string{"sqrt", "rsqrt", "cbrt"} }
func (recipSqrt) Requires() []string  { return nil }

func (f recipSqrt) Generate(ctx context.Context, opts Options) (*Output, error) {
	g, err := newGen(ctx, f.Name(), opts)
	if err != nil {
		return nil, err
	}

	// sqrt and rsqrt halve the exponent: ef = 2*hf + od with od in {0, 1},
	// and an odd exponent contributes a factor of sqrt(2).
	b, err := g.mantissaSplit("sqrt", "a", "sqrt")
	if err != nil {
		return nil, err
	}
	err = g.add(b.Doc("approximates the square root of a.").
		Let("hf", "round(ef*0.5 - 0.25)").
		Let("od", "ef - 2.0*hf").
		Let("r", "p*select(od > 0.5, SQRT2, 1.0)").
		Let("y", "r*from_bits((to_int(hf) + BIAS) << MANT)").
		Return(sqrtSpecial))
	if err != nil {
		return nil, err
	}

	b, err = g.mantissaSplit("rsqrt", "a", "rsqrt")
	if err != nil {
		return nil, err
	}
	err = g.add(b.Doc("approximates the reciprocal square root of a.").
		Let("hf", "round(ef*0.5 - 0.25)").
		Let("od", "ef - 2.0*hf").
		Let("r", "p*select(od > 0.5, 1.0/SQRT2, 1.0)").
		Let("y", "r*from_bits((BIAS - to_int(hf)) << MANT)").
		Return(rsqrtSpecial))
	if err != nil {
		return nil, err
	}

	// cbrt splits ef = 3*q + rem with rem in {0, 1, 2}; the remainder
	// selects a factor of 1, cbrt(2) or cbrt(4).
	b, err = g.mantissaSplit("cbrt", "ax", "cbrt")
	if err != nil {
		return nil, err
	}
	err = g.add(b.Doc("approximates the cube root of a.").
		Let("q", "round(mul_add(ef, 1.0/3.0, -1.0/3.0))").
		Let("rem", "ef - 3.0*q").
		Let("fac", "select(rem > 1.5, cbrt(4.0), select(rem > 0.5, cbrt(2.0), 1.0))").
		Let("r", "p*fac*from_bits((to_int(q) + BIAS) << MANT)").
		Let("y", "select(a < 0.0, -r, r)").
		Return(cbrtSpecial))
	if err != nil {
		return nil, err
	}

	for _, c := range []oracle.Case{
		{Name: "test_sqrt", Func: "sqrt", Reference: "std.sqrt(x)", MaxULPs: 4, Lo: "0.001", Hi: "100.0"},
		{Name: "test_rsqrt", Func: "rsqrt", Reference: "1.0/std.sqrt(x)", MaxULPs: 4, Lo: "0.01", Hi: "100.0"},
		{Name: "test_cbrt", Func: "cbrt", Reference: "std.cbrt(x)", MaxULPs: 4, Lo: "-100.0", Hi: "100.0"},
	} {
		if err := g.test(c); err != nil {
			return nil, err
		}
	}
	return g.output(), nil
}

// mantissaSplit starts a routine of a that decomposes v = 2^ef * m with m
// in [1, 2) and evaluates the kernel at t = m - 1.5 into p. A v other
// than a must be bound first; "ax" is bound to abs(a). Subnormal inputs
// are scaled into the normal range first.
func (g *gen) mantissaSplit(name, v, kernel string) (*ir.Builder, error) {
	p, err := g.poly(kernel, "t", "t")
	if err != nil {
		return nil, err
	}
	b := g.builder(name, "a").Splice("P", p)
	if v == "ax" {
		b.Let("ax", "abs(a)")
	}
	return b.
		Let("sub", v+" < TINY").
		Let("vs", "select(sub, "+v+"*SUBSCALE, "+v+")").
		Let("bits", "to_bits(vs)").
		Let("e", "((bits >> MANT) & EXPMASK) - BIAS").
		Let("ef", "to_float(e) + select(sub, SUBADJ, 0.0)").
		Let("m", "from_bits((bits & MANTMASK) | ONEBITS)").
		Let("t", "m - 1.5").
		Let("p", "P"), nil
}
