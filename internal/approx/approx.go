// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package approx derives minimax polynomial approximants in
// arbitrary-precision arithmetic.
//
// Approximate fits a polynomial with a fixed number of terms to a target
// expression over a closed interval using the Remez exchange algorithm,
// optionally restricted to odd or even powers, and returns the fit as a
// Horner-form expression tree built from mul_add calls. Constants in the
// result are exact decimals; quantizing them to a float width is a
// separate pass.
package approx

import (
	"errors"
	"fmt"

	"github.com/ajroetker/libmgen/internal/expr"
	"github.com/ajroetker/libmgen/internal/numeric"
	"github.com/ajroetker/libmgen/internal/workerpool"
)

// Parity restricts the powers used by a fit.
type Parity int

const (
	// None fits x^0 .. x^(n-1).
	None Parity = iota
	// Odd fits x^1, x^3, .. x^(2n-1).
	Odd
	// Even fits x^0, x^2, .. x^(2n-2).
	Even
)

func (p Parity) String() string {
	switch p {
	case Odd:
		return "odd"
	case Even:
		return "even"
	}
	return "none"
}

// power returns the exponent of basis term k.
func (p Parity) power(k int) int {
	switch p {
	case Odd:
		return 2*k + 1
	case Even:
		return 2 * k
	}
	return k
}

// Spec describes one fit.
type Spec struct {
	// Target is the function to approximate, in terms of Var.
	Target expr.Expr
	Var    string

	// Terms is the number of polynomial coefficients.
	Terms int

	// Min and Max bound the domain, as decimal strings. Odd and Even fits
	// need Min == -Max.
	Min, Max string

	Parity Parity

	// Digits is the significant-digit precision the coefficients must
	// carry. The fit itself runs with extra guard digits.
	Digits int

	// MaxError, when set, is the largest acceptable absolute error.
	MaxError string

	// RelError, when set, is the largest acceptable error as a fraction
	// of the target's largest magnitude on the error grid.
	RelError string
}

// Result is a fitted approximant.
type Result struct {
	// Expr evaluates the polynomial at Var in Horner form.
	Expr expr.Expr

	// Coefficients of the basis terms, lowest power first.
	Coefficients []*numeric.Decimal

	// Parity of the basis.
	Parity Parity

	// MaxError is the largest absolute error seen on the error grid.
	MaxError *numeric.Decimal

	// Iterations is the number of exchange steps performed.
	Iterations int
}

var (
	ErrTerms    = errors.New("term count must be at least 1")
	ErrDomain   = errors.New("invalid domain")
	ErrSingular = errors.New("singular interpolation system")
	ErrEvaluate = errors.New("target cannot be evaluated")
	ErrBudget   = errors.New("error budget exceeded")
	ErrConverge = errors.New("exchange did not converge")
)

// FitError reports a fit that could not be produced as requested.
type FitError struct {
	Spec   Spec
	Reason error
}

func (e *FitError) Error() string {
	return fmt.Sprintf("fit %s over [%s, %s] (%s, %d terms): %v",
		expr.String(e.Spec.Target), e.Spec.Min, e.Spec.Max, e.Spec.Parity, e.Spec.Terms, e.Reason)
}

func (e *FitError) Unwrap() error { return e.Reason }

// Option configures Approximate.
type Option func(*options)

type options struct {
	pool          *workerpool.Pool
	maxIterations int
}

// WithPool evaluates the target over the error grid on p.
func WithPool(p *workerpool.Pool) Option {
	return func(o *options) { o.pool = p }
}

// withMaxIterations bounds the exchange steps; tests use it to force an
// unconverged fit.
func withMaxIterations(n int) Option {
	return func(o *options) { o.maxIterations = n }
}

// Horner returns q(u) = c[0] + u*(c[1] + u*(...)) as nested mul_add calls.
func Horner(coeffs []*numeric.Decimal, u expr.Expr) expr.Expr {
	n := len(coeffs)
	if n == 0 {
		return expr.NewConst(numeric.FromInt64(0))
	}
	var acc expr.Expr = expr.NewConst(coeffs[n-1])
	for k := n - 2; k >= 0; k-- {
		acc = expr.NewCall("mul_add", acc, expr.Clone(u), expr.NewConst(coeffs[k]))
	}
	return acc
}

// In returns the approximant evaluated at x, given u = x*x for parity
// fits and u = x otherwise. Callers that bind x*x to a local pass it as u
// so it is computed once.
func (r *Result) In(x, u expr.Expr) expr.Expr {
	q := Horner(r.Coefficients, u)
	if r.Parity == Odd {
		return expr.NewBinary(expr.OpMul, expr.Clone(x), q)
	}
	return q
}

// basisVariable returns the Horner variable for x.
func basisVariable(p Parity, x expr.Expr) expr.Expr {
	if p == None {
		return x
	}
	return expr.NewBinary(expr.OpMul, expr.Clone(x), expr.Clone(x))
}
