// Package oracle builds the bounded-error test cases that accompany
// generated functions, and measures generated functions against them
// in-process.
package oracle

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ajroetker/libmgen/internal/expr"
	"github.com/ajroetker/libmgen/internal/ir"
	"github.com/ajroetker/libmgen/internal/numeric"
	"github.com/ajroetker/libmgen/internal/quantize"
)

// ErrCase reports a malformed test case.
var ErrCase = errors.New("oracle: invalid test case")

// DefaultSamples is the sample count used when Case.Samples is zero.
const DefaultSamples = 1000

// Case declares a test. Reference, Args, Lo and Hi are Go-syntax
// templates over the sample variable x and the named constants (PI, LN2,
// ...). Reference may call std.<name> reference functions.
type Case struct {
	Name      string
	Func      string
	Type      quantize.NumberType
	Reference string
	// Args are the arguments passed to Func; nil means just x.
	Args    []string
	Result  int
	MaxULPs int
	Lo, Hi  string
	Samples int
}

// New builds the quantized test case for c. Every constant of the
// reference, the arguments, the bounds and the tolerance is quantized as
// a float64, whatever the width of the function under test.
func New(c Case) (*ir.TestCase, error) {
	fail := func(format string, args ...any) (*ir.TestCase, error) {
		return nil, fmt.Errorf("%w: %s: %s", ErrCase, c.Name, fmt.Sprintf(format, args...))
	}
	switch {
	case c.Name == "" || c.Func == "":
		return fail("name and function are required")
	case c.MaxULPs <= 0:
		return fail("max ulps %d", c.MaxULPs)
	case c.Samples < 0:
		return fail("samples %d", c.Samples)
	case c.Result < 0:
		return fail("result %d", c.Result)
	}
	samples := c.Samples
	if samples == 0 {
		samples = DefaultSamples
	}

	nc := numeric.NewContext(numeric.NumDigitsFor(64))
	consts, err := expr.Constants(nc)
	if err != nil {
		return nil, err
	}
	prepare := func(what, src string) (expr.Expr, error) {
		e, err := expr.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", c.Name, what, err)
		}
		e, err = expr.Fold(nc, expr.Bind(e, consts))
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", c.Name, what, err)
		}
		if err := checkReference(e); err != nil {
			return nil, fmt.Errorf("%w: %s: %s: %v", ErrCase, c.Name, what, err)
		}
		e, err = quantize.Apply(e, quantize.F64)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", c.Name, what, err)
		}
		return e, nil
	}

	tc := &ir.TestCase{
		Name:    c.Name,
		Func:    c.Func,
		Type:    c.Type,
		Result:  c.Result,
		MaxULPs: c.MaxULPs,
		Samples: samples,
	}
	if tc.Reference, err = prepare("reference", c.Reference); err != nil {
		return nil, err
	}
	if tc.Lo, err = prepare("lo", c.Lo); err != nil {
		return nil, err
	}
	if tc.Hi, err = prepare("hi", c.Hi); err != nil {
		return nil, err
	}
	argSrc := c.Args
	if argSrc == nil {
		argSrc = []string{ir.SampleVar}
	}
	var args []expr.Expr
	for i, src := range argSrc {
		a, err := prepare(fmt.Sprintf("argument %d", i+1), src)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	tc.Candidate = expr.NewCall(c.Func, args...)

	tol, err := numeric.FromFloat64(float64(c.MaxULPs) * math.Ldexp(1, -c.Type.MantissaBits()))
	if err != nil {
		return nil, err
	}
	if tc.Tolerance, err = quantize.Apply(expr.NewConst(tol), quantize.F64); err != nil {
		return nil, err
	}
	return tc, nil
}

// checkReference accepts expressions over x that call only reference
// functions and float intrinsics.
func checkReference(e expr.Expr) error {
	for _, v := range expr.Vars(e) {
		if v != ir.SampleVar {
			return fmt.Errorf("unbound %s", v)
		}
	}
	for _, name := range expr.Calls(e) {
		if ref, ok := strings.CutPrefix(name, "std."); ok {
			if _, known := ir.Std[ref]; !known {
				return fmt.Errorf("unknown reference function %s", name)
			}
			continue
		}
		if !ir.IsIntrinsic(name) {
			return fmt.Errorf("call of %s outside the candidate", name)
		}
	}
	return nil
}
