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

// Package numeric is the arbitrary-precision layer used for coefficient
// fitting and literal re-quantization. It exposes a narrow set of decimal
// operations on top of apd so that nothing above it depends on the
// decimal library directly.
package numeric

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// Decimal is the exact value type shared by the expression model and the
// approximation engine.
type Decimal = apd.Decimal

var (
	// ErrUndefined reports an operation outside its mathematical domain
	// (ln of a negative number, division by zero, ...).
	ErrUndefined = errors.New("numeric: undefined result")

	// ErrSyntax reports a malformed decimal literal.
	ErrSyntax = errors.New("numeric: malformed decimal")
)

// guardDigits is the extra precision carried inside series evaluations.
const guardDigits = 10

// NumDigitsFor returns the number of significant decimal digits needed to
// derive coefficients for a binary float of the given width: enough to
// represent the format exactly plus a margin for coefficient growth.
func NumDigitsFor(bits int) int {
	switch {
	case bits <= 16:
		return 12
	case bits <= 32:
		return 24
	default:
		return 40
	}
}

// Context evaluates decimal arithmetic at a fixed number of significant
// digits. A Context is immutable after construction and safe for
// concurrent use.
type Context struct {
	digits int
	ctx    *apd.Context
	work   *apd.Context

	pi   *Decimal
	ln2  *Decimal
	ln10 *Decimal
}

// NewContext returns a Context working at the given number of significant
// digits. Constants (pi, ln 2, ln 10) are computed eagerly so that the
// Context carries no lazily-initialized state.
func NewContext(digits int) *Context {
	if digits < 1 {
		digits = 1
	}
	c := &Context{
		digits: digits,
		ctx:    apd.BaseContext.WithPrecision(uint32(digits)),
		work:   apd.BaseContext.WithPrecision(uint32(digits + guardDigits)),
	}
	c.ctx.Rounding = apd.RoundHalfEven
	c.work.Rounding = apd.RoundHalfEven

	c.pi = c.computePi()
	c.ln2 = new(Decimal)
	c.ln10 = new(Decimal)
	ed := apd.MakeErrDecimal(c.work)
	ed.Ln(c.ln2, apd.New(2, 0))
	ed.Ln(c.ln10, apd.New(10, 0))
	if err := ed.Err(); err != nil {
		// Both arguments are positive constants.
		panic(fmt.Sprintf("numeric: constant setup: %v", err))
	}
	return c
}

// Digits returns the working precision in significant decimal digits.
func (c *Context) Digits() int { return c.digits }

// Pi returns pi rounded to the working precision plus guard digits.
func (c *Context) Pi() *Decimal { return new(Decimal).Set(c.pi) }

// Ln2 returns ln(2).
func (c *Context) Ln2() *Decimal { return new(Decimal).Set(c.ln2) }

// Ln10 returns ln(10).
func (c *Context) Ln10() *Decimal { return new(Decimal).Set(c.ln10) }

// Parse converts a decimal literal. Hexadecimal float syntax is not
// accepted; callers convert those through Float64 first.
func Parse(s string) (*Decimal, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrSyntax, s, err)
	}
	return d, nil
}

// MustParse is Parse for literals known at compile time.
func MustParse(s string) *Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FromInt64 returns the exact decimal for v.
func FromInt64(v int64) *Decimal { return apd.New(v, 0) }

// FromFloat64 returns the exact decimal expansion of the shortest
// representation of v.
func FromFloat64(v float64) (*Decimal, error) {
	d, err := new(Decimal).SetFloat64(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndefined, err)
	}
	return d, nil
}

// IsFinite reports whether d is a finite number.
func IsFinite(d *Decimal) bool { return d.Form == apd.Finite }

// round rounds x to the working precision.
func (c *Context) round(x *Decimal) (*Decimal, error) {
	d := new(Decimal)
	if _, err := c.ctx.Round(d, x); err != nil {
		return nil, c.wrap("round", err)
	}
	return d, nil
}

func (c *Context) wrap(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUndefined, op, err)
}

// binary applies an apd operation at working precision.
func (c *Context) binary(op string, fn func(*apd.Context, *Decimal, *Decimal, *Decimal) (apd.Condition, error), x, y *Decimal) (*Decimal, error) {
	d := new(Decimal)
	if _, err := fn(c.ctx, d, x, y); err != nil {
		return nil, c.wrap(op, err)
	}
	if d.Form == apd.NaN {
		return nil, c.wrap(op, errors.New("not a number"))
	}
	return d, nil
}

// Add returns x + y.
func (c *Context) Add(x, y *Decimal) (*Decimal, error) {
	return c.binary("add", (*apd.Context).Add, x, y)
}

// Sub returns x - y.
func (c *Context) Sub(x, y *Decimal) (*Decimal, error) {
	return c.binary("sub", (*apd.Context).Sub, x, y)
}

// Mul returns x * y.
func (c *Context) Mul(x, y *Decimal) (*Decimal, error) {
	return c.binary("mul", (*apd.Context).Mul, x, y)
}

// Quo returns x / y.
func (c *Context) Quo(x, y *Decimal) (*Decimal, error) {
	if y.IsZero() {
		return nil, c.wrap("quo", errors.New("division by zero"))
	}
	return c.binary("quo", (*apd.Context).Quo, x, y)
}

// Pow returns x ** y.
func (c *Context) Pow(x, y *Decimal) (*Decimal, error) {
	return c.binary("pow", (*apd.Context).Pow, x, y)
}

// Neg returns -x.
func (c *Context) Neg(x *Decimal) *Decimal { return new(Decimal).Neg(x) }

// Abs returns |x|.
func (c *Context) Abs(x *Decimal) *Decimal { return new(Decimal).Abs(x) }

// Min returns the smaller of x and y.
func (c *Context) Min(x, y *Decimal) *Decimal {
	if x.Cmp(y) <= 0 {
		return new(Decimal).Set(x)
	}
	return new(Decimal).Set(y)
}

// Max returns the larger of x and y.
func (c *Context) Max(x, y *Decimal) *Decimal {
	if x.Cmp(y) >= 0 {
		return new(Decimal).Set(x)
	}
	return new(Decimal).Set(y)
}

// Round rounds x to the nearest integer, halves away from zero. This is
// the rounding the generated code uses for range reduction.
func (c *Context) Round(x *Decimal) (*Decimal, error) {
	rc := *c.ctx
	rc.Rounding = apd.RoundHalfUp
	d := new(Decimal)
	if _, err := rc.RoundToIntegralValue(d, x); err != nil {
		return nil, c.wrap("round", err)
	}
	return d, nil
}
