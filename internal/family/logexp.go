package family

import (
	"context"

	"github.com/ajroetker/libmgen/internal/ir"
	"github.com/ajroetker/libmgen/internal/oracle"
)

type logExp struct{}

func (logExp) Name() string        { return "log_exp" }
func (logExp) Functions() []string { return []string{"exp", "exp2", "ln", "log2", "log10"} }
func (logExp) Requires() []string  { return nil }

// Clamp bounds for exp and exp2: just past the overflow threshold and
// just below the smallest subnormal, so 2^n stays representable as two
// factors.
var expClamp = map[int]struct{ exp, exp2 [2]string }{
	32: {exp: [2]string{"-104.0", "89.0"}, exp2: [2]string{"-151.0", "129.0"}},
	64: {exp: [2]string{"-746.0", "710.0"}, exp2: [2]string{"-1080.0", "1025.0"}},
}

// lnSpecial maps zero, negative, NaN and +Inf inputs of the logarithms.
const lnSpecial = "select(a == 0.0, from_bits(NEGINF), select(a < 0.0 || a != a, from_bits(NAN), select(a == from_bits(INF), a, r)))"

func (f logExp) Generate(ctx context.Context, opts Options) (*Output, error) {
	g, err := newGen(ctx, f.Name(), opts)
	if err != nil {
		return nil, err
	}
	split, err := g.ln2Split()
	if err != nil {
		return nil, g.errorf("%w", err)
	}
	clamp := expClamp[g.opts.Type.Bits()]

	pe, err := g.poly("exp", "f", "f")
	if err != nil {
		return nil, err
	}
	// n = round(x/ln 2); the residual x - n*ln2 is formed in two steps
	// with the Cody-Waite split so n*LN2HI is exact.
	err = g.add(scale(g.builder("exp", "a").
		Doc("approximates e raised to the power a.").
		Bind(split).
		Bind(bind("XMIN", clamp.exp[0], "XMAX", clamp.exp[1])).
		Splice("P", pe).
		Let("x", "min(max(a, XMIN), XMAX)").
		Let("n", "round(x*(1.0/LN2))").
		Let("f", "(x - n*LN2HI) - n*LN2LO").
		Let("p", "P"), "p", "n"))
	if err != nil {
		return nil, err
	}

	p2, err := g.poly("exp2", "f", "f")
	if err != nil {
		return nil, err
	}
	err = g.add(scale(g.builder("exp2", "a").
		Doc("approximates 2 raised to the power a.").
		Bind(bind("XMIN", clamp.exp2[0], "XMAX", clamp.exp2[1])).
		Splice("P", p2).
		Let("x", "min(max(a, XMIN), XMAX)").
		Let("n", "round(x)").
		Let("f", "x - n").
		Let("p", "P"), "p", "n"))
	if err != nil {
		return nil, err
	}

	for _, fn := range []struct{ name, doc, result string }{
		{"ln", "approximates the natural logarithm of a.", "mul_add(ef, LN2HI, mul_add(ef, LN2LO, p))"},
		{"log2", "approximates the base-2 logarithm of a.", "mul_add(p, 1.0/LN2, ef)"},
		{"log10", "approximates the base-10 logarithm of a.", "mul_add(ef, LN2/LN10, p*(1.0/LN10))"},
	} {
		b, err := g.lnReduce(fn.name)
		if err != nil {
			return nil, err
		}
		err = g.add(b.Doc(fn.doc).
			Bind(split).
			Let("r", fn.result).
			Return(lnSpecial))
		if err != nil {
			return nil, err
		}
	}

	for _, c := range []oracle.Case{
		{Name: "test_exp", Func: "exp", Reference: "std.exp(x)", MaxULPs: 4, Lo: "-20.0", Hi: "20.0"},
		{Name: "test_exp2", Func: "exp2", Reference: "std.exp2(x)", MaxULPs: 4, Lo: "-20.0", Hi: "20.0"},
		{Name: "test_ln", Func: "ln", Reference: "std.ln(x)", MaxULPs: 4, Lo: "0.001", Hi: "100.0"},
		{Name: "test_log2", Func: "log2", Reference: "std.log2(x)", MaxULPs: 4, Lo: "0.001", Hi: "100.0"},
		{Name: "test_log10", Func: "log10", Reference: "std.log10(x)", MaxULPs: 4, Lo: "0.001", Hi: "100.0"},
	} {
		if err := g.test(c); err != nil {
			return nil, err
		}
	}
	return g.output(), nil
}

// scale returns p*2^n, with the power of two built from exponent bits in
// two halves so that neither half overflows before the product does.
func scale(b *ir.Builder, p, n string) *ir.Builder {
	return b.
		Let("ni", "to_int("+n+")").
		Let("h", "ni >> 1").
		Let("l", "ni - h").
		Return(p + "*from_bits((h + BIAS) << MANT)*from_bits((l + BIAS) << MANT)")
}

// lnReduce starts a logarithm: a = 2^ef * m with m in [sqrt(2)/2, sqrt(2)),
// then s = (m - 1)/(m + 1) and p = ln((1 + s)/(1 - s)) = ln(m). Subnormal
// inputs are scaled into the normal range first.
func (g *gen) lnReduce(name string) (*ir.Builder, error) {
	p, err := g.poly("ln", "s", "s2")
	if err != nil {
		return nil, err
	}
	return g.builder(name, "a").
		Splice("P", p).
		Let("sub", "a < TINY").
		Let("xs", "select(sub, a*SUBSCALE, a)").
		Let("bits", "to_bits(xs)").
		Let("e", "((bits >> MANT) & EXPMASK) - BIAS").
		Let("m", "from_bits((bits & MANTMASK) | ONEBITS)").
		Let("big", "m > SQRT2").
		Let("m2", "select(big, m*0.5, m)").
		Let("ef", "(to_float(e) + select(big, 1.0, 0.0)) + select(sub, SUBADJ, 0.0)").
		Let("s", "(m2 - 1.0)/(m2 + 1.0)").
		Let("s2", "s*s").
		Let("p", "P"), nil
}
