package approx

import (
	"context"
	"fmt"
	"math"

	"github.com/ajroetker/libmgen/internal/expr"
	"github.com/ajroetker/libmgen/internal/numeric"
	"github.com/ajroetker/libmgen/internal/workerpool"
)

type decimal = numeric.Decimal

const (
	// guardDigits is added to Spec.Digits for all fitting arithmetic.
	guardDigits = 20

	maxIterations = 30

	// gridPerTerm and gridBase size the error grid: gridPerTerm*n + gridBase.
	gridPerTerm = 40
	gridBase    = 50

	// convergence is the relative spread of the alternating extrema below
	// which the reference is considered levelled.
	convergence = "0.02"
)

// Approximate fits spec.Target with spec.Terms coefficients. Failures are
// reported as *FitError; cancellation of ctx is checked between exchange
// steps.
//
// A fit whose exchange does not level out fails with ErrConverge unless
// the spec carries a budget (MaxError or RelError) that the best iterate
// meets. A budget that is not met fails with ErrBudget.
func Approximate(ctx context.Context, spec Spec, opts ...Option) (*Result, error) {
	o := options{maxIterations: maxIterations}
	for _, opt := range opts {
		opt(&o)
	}
	fail := func(reason error) (*Result, error) {
		return nil, &FitError{Spec: spec, Reason: reason}
	}

	n := spec.Terms
	if n < 1 {
		return fail(fmt.Errorf("%w: got %d", ErrTerms, n))
	}
	digits := spec.Digits
	if digits <= 0 {
		digits = numeric.NumDigitsFor(64)
	}
	c := numeric.NewContext(digits + guardDigits)

	lo, err := numeric.Parse(spec.Min)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrDomain, err))
	}
	hi, err := numeric.Parse(spec.Max)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrDomain, err))
	}
	if lo.Cmp(hi) >= 0 {
		return fail(fmt.Errorf("%w: min %s is not below max %s", ErrDomain, spec.Min, spec.Max))
	}
	if spec.Parity != None && c.Neg(lo).Cmp(hi) != 0 {
		return fail(fmt.Errorf("%w: %s fit needs a symmetric domain", ErrDomain, spec.Parity))
	}

	consts, err := expr.Constants(c)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrEvaluate, err))
	}
	target := expr.Bind(spec.Target, consts)
	f := func(x *decimal) (*decimal, error) {
		v, err := expr.Eval(c, target, map[string]*decimal{spec.Var: x})
		if err != nil {
			return nil, fmt.Errorf("%w: at %s=%s: %v", ErrEvaluate, spec.Var, x, err)
		}
		return v, nil
	}

	grid, ref, err := nodes(c, spec.Parity, lo, hi, n)
	if err != nil {
		return fail(err)
	}
	fg, err := workerpool.Map(o.pool, len(grid), func(i int) (*decimal, error) { return f(grid[i]) })
	if err != nil {
		return fail(err)
	}
	fref := make([]*decimal, len(ref))
	for i, x := range ref {
		if fref[i], err = f(x); err != nil {
			return fail(err)
		}
	}

	scale := numeric.FromInt64(0)
	for _, v := range fg {
		scale = c.Max(scale, c.Abs(v))
	}
	// Below negligible the error is noise of the working precision and
	// the exchange has nothing left to level.
	negligible, err := c.Mul(numeric.MustParse(fmt.Sprintf("1e-%d", digits)), c.Max(scale, numeric.FromInt64(1)))
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrEvaluate, err))
	}

	threshold := numeric.MustParse(convergence)
	var (
		bestCoeffs []*decimal
		bestErr    *decimal
		iterations int
		converged  bool
	)
	for it := range o.maxIterations {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("approximate %s: %w", expr.String(spec.Target), err)
		}
		iterations = it + 1

		coeffs, err := levelled(c, spec.Parity, ref, fref)
		if err != nil {
			return fail(err)
		}
		errs, err := workerpool.Map(o.pool, len(grid), func(j int) (*decimal, error) {
			p, err := evalPoly(c, spec.Parity, coeffs, grid[j])
			if err != nil {
				return nil, err
			}
			return c.Sub(fg[j], p)
		})
		if err != nil {
			return fail(fmt.Errorf("%w: %v", ErrEvaluate, err))
		}

		maxErr := new(decimal)
		for _, e := range errs {
			if a := c.Abs(e); a.Cmp(maxErr) > 0 {
				maxErr = a
			}
		}
		if bestErr == nil || maxErr.Cmp(bestErr) < 0 {
			bestCoeffs, bestErr = coeffs, maxErr
		}

		runs := signRuns(c, errs)
		if len(runs) < n+1 || maxErr.IsZero() {
			converged = maxErr.Cmp(negligible) <= 0
			break
		}
		runs = trimRuns(runs, n+1)

		minErr := runs[0].abs
		for i, r := range runs {
			ref[i], fref[i] = grid[r.index], fg[r.index]
			if r.abs.Cmp(minErr) < 0 {
				minErr = r.abs
			}
		}
		spread, err := c.Sub(maxErr, minErr)
		if err == nil {
			spread, err = c.Quo(spread, maxErr)
		}
		if err != nil {
			return fail(fmt.Errorf("%w: %v", ErrEvaluate, err))
		}
		if spread.Cmp(threshold) < 0 {
			converged = true
			break
		}
	}
	if bestErr == nil {
		return fail(fmt.Errorf("%w: no exchange step ran", ErrConverge))
	}

	budgeted := false
	if spec.MaxError != "" {
		budget, err := numeric.Parse(spec.MaxError)
		if err != nil {
			return fail(fmt.Errorf("%w: %v", ErrBudget, err))
		}
		if bestErr.Cmp(budget) > 0 {
			return fail(fmt.Errorf("%w: max error %s > %s", ErrBudget, bestErr.Text('e'), spec.MaxError))
		}
		budgeted = true
	}
	if spec.RelError != "" {
		rel, err := numeric.Parse(spec.RelError)
		if err == nil {
			rel, err = c.Mul(rel, scale)
		}
		if err != nil {
			return fail(fmt.Errorf("%w: %v", ErrBudget, err))
		}
		if bestErr.Cmp(rel) > 0 {
			return fail(fmt.Errorf("%w: max error %s > %s of max |target| %s",
				ErrBudget, bestErr.Text('e'), spec.RelError, scale.Text('e')))
		}
		budgeted = true
	}
	if !converged && !budgeted {
		return fail(fmt.Errorf("%w after %d steps (max error %s)", ErrConverge, iterations, bestErr.Text('e')))
	}

	r := &Result{
		Coefficients: bestCoeffs,
		Parity:       spec.Parity,
		MaxError:     bestErr,
		Iterations:   iterations,
	}
	x := expr.NewVar(spec.Var)
	r.Expr = r.In(x, basisVariable(spec.Parity, x))
	return r, nil
}

// nodes returns the error grid and the initial reference. Parity fits work
// on [0, hi]; the grid is clustered towards the end points like the
// Chebyshev extrema.
func nodes(c *numeric.Context, p Parity, lo, hi *decimal, n int) (grid, ref []*decimal, err error) {
	m := gridPerTerm*n + gridBase
	at := func(scale, offset *decimal, f float64) *decimal {
		if err != nil {
			return nil
		}
		var fd, d *decimal
		if fd, err = numeric.FromFloat64(f); err != nil {
			return nil
		}
		if d, err = c.Mul(scale, fd); err != nil {
			return nil
		}
		if offset != nil {
			d, err = c.Add(offset, d)
		}
		return d
	}

	switch p {
	case Odd, Even:
		first := 0
		if p == Odd {
			first = 1
		}
		for j := first; j <= m; j++ {
			grid = append(grid, at(hi, nil, math.Sin(math.Pi*float64(j)/float64(2*m))))
		}
		for i := 0; i <= n; i++ {
			var t float64
			if p == Odd {
				t = math.Sin(math.Pi * float64(i+1) / float64(2*(n+1)))
			} else {
				t = math.Sin(math.Pi * float64(i) / float64(2*n))
			}
			ref = append(ref, at(hi, nil, t))
		}
	default:
		var mid, half *decimal
		if mid, err = c.Add(lo, hi); err == nil {
			mid, err = c.Quo(mid, numeric.FromInt64(2))
		}
		if err == nil {
			if half, err = c.Sub(hi, lo); err == nil {
				half, err = c.Quo(half, numeric.FromInt64(-2))
			}
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrDomain, err)
		}
		for j := 0; j <= m; j++ {
			grid = append(grid, at(half, mid, math.Cos(math.Pi*float64(j)/float64(m))))
		}
		for i := 0; i <= n; i++ {
			ref = append(ref, at(half, mid, math.Cos(math.Pi*float64(i)/float64(n))))
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrDomain, err)
	}
	return grid, ref, nil
}

// levelled solves for coefficients c and level E such that
// p(ref[i]) + (-1)^i E = f(ref[i]) for every reference point.
func levelled(c *numeric.Context, p Parity, ref, fref []*decimal) ([]*decimal, error) {
	n := len(ref) - 1
	k := calc{c: c}
	a := make([][]*decimal, n+1)
	for i, x := range ref {
		row := make([]*decimal, n+2)
		step := x
		if p != None {
			step = k.mul(x, x)
		}
		term := numeric.FromInt64(1)
		if p == Odd {
			term = x
		}
		for j := range n {
			row[j] = term
			term = k.mul(term, step)
		}
		if i%2 == 0 {
			row[n] = numeric.FromInt64(1)
		} else {
			row[n] = numeric.FromInt64(-1)
		}
		row[n+1] = fref[i]
		a[i] = row
	}
	if k.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEvaluate, k.err)
	}

	sol, err := gauss(c, a)
	if err != nil {
		return nil, err
	}
	return sol[:n], nil
}

// gauss solves the augmented system a by elimination with partial
// pivoting. a is overwritten.
func gauss(c *numeric.Context, a [][]*decimal) ([]*decimal, error) {
	n := len(a)
	k := calc{c: c}
	for col := range n {
		pivot := col
		for r := col + 1; r < n; r++ {
			if c.Abs(a[r][col]).Cmp(c.Abs(a[pivot][col])) > 0 {
				pivot = r
			}
		}
		if a[pivot][col].IsZero() {
			return nil, fmt.Errorf("%w: zero pivot in column %d", ErrSingular, col)
		}
		a[col], a[pivot] = a[pivot], a[col]
		for r := col + 1; r < n; r++ {
			factor := k.quo(a[r][col], a[col][col])
			for j := col; j <= n; j++ {
				a[r][j] = k.sub(a[r][j], k.mul(factor, a[col][j]))
			}
		}
	}
	x := make([]*decimal, n)
	for r := n - 1; r >= 0; r-- {
		s := a[r][n]
		for j := r + 1; j < n; j++ {
			s = k.sub(s, k.mul(a[r][j], x[j]))
		}
		x[r] = k.quo(s, a[r][r])
	}
	if k.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, k.err)
	}
	return x, nil
}

// evalPoly evaluates the fitted polynomial at x in Horner form.
func evalPoly(c *numeric.Context, p Parity, coeffs []*decimal, x *decimal) (*decimal, error) {
	k := calc{c: c}
	u := x
	if p != None {
		u = k.mul(x, x)
	}
	acc := coeffs[len(coeffs)-1]
	for j := len(coeffs) - 2; j >= 0; j-- {
		acc = k.add(k.mul(acc, u), coeffs[j])
	}
	if p == Odd {
		acc = k.mul(acc, x)
	}
	return acc, k.err
}

// run is the largest error of one maximal stretch of equal sign.
type run struct {
	negative bool
	index    int
	abs      *decimal
}

func signRuns(c *numeric.Context, errs []*decimal) []run {
	var runs []run
	for j, e := range errs {
		if e.IsZero() {
			continue
		}
		r := run{negative: e.Negative, index: j, abs: c.Abs(e)}
		last := len(runs) - 1
		switch {
		case last >= 0 && runs[last].negative == r.negative:
			if r.abs.Cmp(runs[last].abs) > 0 {
				runs[last] = r
			}
		default:
			runs = append(runs, r)
		}
	}
	return runs
}

// trimRuns drops the weakest extrema until want remain, preserving sign
// alternation: an interior minimum goes together with its smaller
// neighbour, otherwise the smaller end point goes.
func trimRuns(runs []run, want int) []run {
	for len(runs) > want {
		weakest := 0
		for i, r := range runs {
			if r.abs.Cmp(runs[weakest].abs) < 0 {
				weakest = i
			}
		}
		last := len(runs) - 1
		if weakest == 0 || weakest == last || len(runs) == want+1 {
			if runs[0].abs.Cmp(runs[last].abs) < 0 {
				runs = runs[1:]
			} else {
				runs = runs[:last]
			}
			continue
		}
		nb := weakest + 1
		if runs[weakest-1].abs.Cmp(runs[weakest+1].abs) < 0 {
			nb = weakest - 1
		}
		lo := min(weakest, nb)
		runs = append(runs[:lo:lo], runs[lo+2:]...)
	}
	return runs
}

// calc chains decimal operations and keeps the first error, in the manner
// of apd.ErrDecimal.
type calc struct {
	c   *numeric.Context
	err error
}

func (k *calc) do(fn func(x, y *decimal) (*decimal, error), x, y *decimal) *decimal {
	if k.err != nil {
		return new(decimal)
	}
	d, err := fn(x, y)
	if err != nil {
		k.err = err
		return new(decimal)
	}
	return d
}

func (k *calc) add(x, y *decimal) *decimal { return k.do(k.c.Add, x, y) }
func (k *calc) sub(x, y *decimal) *decimal { return k.do(k.c.Sub, x, y) }
func (k *calc) mul(x, y *decimal) *decimal { return k.do(k.c.Mul, x, y) }
func (k *calc) quo(x, y *decimal) *decimal { return k.do(k.c.Quo, x, y) }
