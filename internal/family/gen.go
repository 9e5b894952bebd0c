package family

import (
	"context"
	"fmt"
	"math"

	"github.com/ajroetker/libmgen/internal/approx"
	"github.com/ajroetker/libmgen/internal/expr"
	"github.com/ajroetker/libmgen/internal/ir"
	"github.com/ajroetker/libmgen/internal/numeric"
	"github.com/ajroetker/libmgen/internal/oracle"
)

// foldGuard is the extra precision used when folding constant subtrees.
const foldGuard = 10

// fitBudgetULPs bounds a kernel's minimax error, in units of the last
// place of its largest value. Anything above it cannot meet the routine
// tolerances after rounding.
const fitBudgetULPs = 16

// kernel is a polynomial fit shared by the routines of a family.
type kernel struct {
	target   string
	min, max string
	parity   approx.Parity
}

var kernels = map[string]kernel{
	"sin":   {"sin(2.0*PI*x)", "-0.5", "0.5", approx.Odd},
	"cos":   {"cos(2.0*PI*x)", "-0.5", "0.5", approx.Even},
	"tan":   {"tan(PI*x)*(x*x - 0.25)", "-0.499999", "0.499999", approx.Odd},
	"sin_q": {"sin(PI*x)", "-0.25", "0.25", approx.Odd},
	"cos_q": {"cos(PI*x)", "-0.25", "0.25", approx.Even},
	"atan":  {"atan(x)", "-1.0", "1.0", approx.Odd},
	"asin":  {"asin(x)", "-0.5", "0.5", approx.Odd},
	"exp2":  {"exp2(x)", "-0.5", "0.5", approx.None},
	"exp":   {"exp(x)", "-0.35", "0.35", approx.None},
	"ln":    {"ln((1.0 + x)/(1.0 - x))", "-0.1716", "0.1716", approx.Odd},
	"sinh":  {"sinh(x)", "-1.0", "1.0", approx.Odd},
	"cosh":  {"cosh(x)", "-1.0", "1.0", approx.Even},
	"tanh":  {"tanh(x)", "-0.625", "0.625", approx.Odd},
	"asinh": {"asinh(x)", "-0.5", "0.5", approx.Odd},
	"atanh": {"atanh(x)", "-0.5", "0.5", approx.Odd},
	"sqrt":  {"sqrt(x + 1.5)", "-0.5", "0.5", approx.None},
	"rsqrt": {"1.0/sqrt(x + 1.5)", "-0.5", "0.5", approx.None},
	"cbrt":  {"cbrt(x + 1.5)", "-0.5", "0.5", approx.None},
}

// gen carries the state of one family's Generate call.
type gen struct {
	ctx    context.Context
	family string
	opts   Options
	nc     *numeric.Context
	env    map[string]expr.Expr
	fits   map[string]*approx.Result
	out    Output
}

func newGen(ctx context.Context, family string, opts Options) (*gen, error) {
	opts = opts.withDefaults()
	nc := numeric.NewContext(opts.Digits + foldGuard)
	env, err := expr.Constants(nc)
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", family, err)
	}
	for k, v := range widthParams(opts.Type.Bits()) {
		env[k] = v
	}
	return &gen{
		ctx:    ctx,
		family: family,
		opts:   opts,
		nc:     nc,
		env:    env,
		fits:   map[string]*approx.Result{},
	}, nil
}

// widthParams are the integer layout parameters and float thresholds of
// a binary format, bound by name in every template.
func widthParams(bits int) map[string]expr.Expr {
	pow2 := func(k int) expr.Expr {
		d, _ := numeric.FromFloat64(math.Ldexp(1, k))
		return expr.NewConst(d)
	}
	if bits == 32 {
		return map[string]expr.Expr{
			"MANT":     expr.NewInt(23),
			"BIAS":     expr.NewInt(127),
			"EXPMASK":  expr.NewInt(0xff),
			"MANTMASK": expr.NewInt(0x7fffff),
			"ONEBITS":  expr.NewInt(0x3f800000),
			"INF":      expr.NewInt(0x7f800000),
			"NEGINF":   expr.NewInt(0xff800000),
			"NAN":      expr.NewInt(0x7fc00000),
			"HUGE":     pow2(12),
			"TINY":     pow2(-126),
			"SUBSCALE": pow2(25),
			"SUBADJ":   expr.NewConst(numeric.FromInt64(-25)),
		}
	}
	return map[string]expr.Expr{
		"MANT":     expr.NewInt(52),
		"BIAS":     expr.NewInt(1023),
		"EXPMASK":  expr.NewInt(0x7ff),
		"MANTMASK": expr.NewInt(0xfffffffffffff),
		"ONEBITS":  expr.NewInt(0x3ff0000000000000),
		"INF":      expr.NewInt(0x7ff0000000000000),
		"NEGINF":   expr.NewInt(0xfff0000000000000),
		"NAN":      expr.NewInt(0x7ff8000000000000),
		"HUGE":     pow2(26),
		"TINY":     pow2(-1022),
		"SUBSCALE": pow2(54),
		"SUBADJ":   expr.NewConst(numeric.FromInt64(-54)),
	}
}

// ln2Hi is the high part of the Cody-Waite split of ln 2: few enough
// significant bits that n*ln2Hi is exact for every reachable n.
func ln2Hi(bits int) string {
	if bits == 32 {
		return "0.693359375"
	}
	return "0.693147180369123816490"
}

// ln2Split returns LN2HI and LN2LO for the width.
func (g *gen) ln2Split() (map[string]expr.Expr, error) {
	hi := numeric.MustParse(ln2Hi(g.opts.Type.Bits()))
	lo, err := g.nc.Sub(g.nc.Ln2(), hi)
	if err != nil {
		return nil, err
	}
	return map[string]expr.Expr{"LN2HI": expr.NewConst(hi), "LN2LO": expr.NewConst(lo)}, nil
}

func (g *gen) errorf(format string, args ...any) error {
	return fmt.Errorf("generate %s: %w", g.family, fmt.Errorf(format, args...))
}

// fit returns the kernel fitted with the configured number of terms.
func (g *gen) fit(name string) (*approx.Result, error) {
	if r, ok := g.fits[name]; ok {
		return r, nil
	}
	k, ok := kernels[name]
	if !ok {
		return nil, g.errorf("no kernel %q", name)
	}
	target, err := expr.Parse(k.target)
	if err != nil {
		return nil, g.errorf("kernel %s: %w", name, err)
	}
	r, err := approx.Approximate(g.ctx, approx.Spec{
		Target:   target,
		Var:      "x",
		Terms:    g.opts.Terms[name],
		Min:      k.min,
		Max:      k.max,
		Parity:   k.parity,
		Digits:   g.opts.Digits,
		RelError: fmt.Sprintf("%g", math.Ldexp(fitBudgetULPs, -g.opts.Type.MantissaBits())),
	}, approx.WithPool(g.opts.Pool))
	if err != nil {
		return nil, fmt.Errorf("generate %s: kernel %s: %w", g.family, name, err)
	}
	g.fits[name] = r
	return r, nil
}

// poly returns kernel name evaluated at variable x. u names the local
// holding x*x for odd and even kernels and is ignored otherwise.
func (g *gen) poly(name, x, u string) (expr.Expr, error) {
	r, err := g.fit(name)
	if err != nil {
		return nil, err
	}
	if r.Parity == approx.None {
		u = x
	}
	return r.In(expr.NewVar(x), expr.NewVar(u)), nil
}

// builder starts a routine with the width parameters and named constants
// bound.
func (g *gen) builder(name string, params ...string) *ir.Builder {
	return ir.NewBuilder(name, g.opts.Type, params...).Bind(g.env)
}

// add finishes b and appends the function to the output.
func (g *gen) add(b *ir.Builder) error {
	fn, err := b.Build(g.nc)
	if err != nil {
		return fmt.Errorf("generate %s: %w", g.family, err)
	}
	g.out.Functions = append(g.out.Functions, fn)
	return nil
}

// test declares the oracle case for a routine.
func (g *gen) test(c oracle.Case) error {
	c.Type = g.opts.Type
	c.Samples = g.opts.Samples
	tc, err := oracle.New(c)
	if err != nil {
		return fmt.Errorf("generate %s: %w", g.family, err)
	}
	g.out.Tests = append(g.out.Tests, tc)
	return nil
}

// unaryTest is the common case of a one-argument routine checked against
// std.<ref> on [lo, hi].
func (g *gen) unaryTest(fn, ref string, ulps int, lo, hi string) error {
	return g.test(oracle.Case{
		Name:      "test_" + fn,
		Func:      fn,
		Reference: fmt.Sprintf("std.%s(x)", ref),
		MaxULPs:   ulps,
		Lo:        lo,
		Hi:        hi,
	})
}

func (g *gen) output() *Output {
	out := g.out
	return &out
}

// bind parses name/literal pairs into per-routine bindings.
func bind(pairs ...string) map[string]expr.Expr {
	env := make(map[string]expr.Expr, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		env[pairs[i]] = expr.MustParse(pairs[i+1])
	}
	return env
}
