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

package numeric

import (
	"errors"

	"github.com/cockroachdb/apd/v3"
)

var (
	one = apd.New(1, 0)
	two = apd.New(2, 0)
)

// eps is the magnitude below which series terms are dropped.
func (c *Context) eps() *Decimal {
	return apd.New(1, -int32(c.digits+guardDigits+2))
}

// finish checks the accumulated error of a series evaluation and rounds
// the result to the working precision.
func (c *Context) finish(op string, d *Decimal, ed *apd.ErrDecimal) (*Decimal, error) {
	if err := ed.Err(); err != nil {
		return nil, c.wrap(op, err)
	}
	if !IsFinite(d) {
		return nil, c.wrap(op, errors.New("result is not finite"))
	}
	return c.round(d)
}

// computePi evaluates Machin's formula, pi = 16 atan(1/5) - 4 atan(1/239).
func (c *Context) computePi() *Decimal {
	ed := apd.MakeErrDecimal(c.work)
	a := c.arctanInv(&ed, 5)
	b := c.arctanInv(&ed, 239)
	ed.Mul(a, a, apd.New(16, 0))
	ed.Mul(b, b, apd.New(4, 0))
	pi := ed.Sub(new(Decimal), a, b)
	if err := ed.Err(); err != nil {
		panic("numeric: computing pi: " + err.Error())
	}
	return pi
}

// arctanInv sums the Gregory series for atan(1/n).
func (c *Context) arctanInv(ed *apd.ErrDecimal, n int64) *Decimal {
	x := ed.Quo(new(Decimal), one, apd.New(n, 0))
	x2 := ed.Mul(new(Decimal), x, x)
	sum := new(Decimal).Set(x)
	term := new(Decimal).Set(x)
	eps := c.eps()
	t := new(Decimal)
	for k := int64(3); ed.Err() == nil; k += 2 {
		ed.Mul(term, term, x2)
		ed.Neg(term, term)
		ed.Quo(t, term, apd.New(k, 0))
		if new(Decimal).Abs(t).Cmp(eps) < 0 {
			break
		}
		ed.Add(sum, sum, t)
	}
	return sum
}

// reduce2Pi returns x - 2*pi*round(x / (2*pi)).
func (c *Context) reduce2Pi(ed *apd.ErrDecimal, x *Decimal) *Decimal {
	twoPi := ed.Mul(new(Decimal), c.pi, two)
	k := ed.Quo(new(Decimal), x, twoPi)
	ed.RoundToIntegralValue(k, k)
	ed.Mul(k, k, twoPi)
	return ed.Sub(new(Decimal), x, k)
}

// Sin returns sin(x).
func (c *Context) Sin(x *Decimal) (*Decimal, error) {
	ed := apd.MakeErrDecimal(c.work)
	r := c.reduce2Pi(&ed, x)
	return c.finish("sin", c.sinSeries(&ed, r), &ed)
}

// Cos returns cos(x).
func (c *Context) Cos(x *Decimal) (*Decimal, error) {
	ed := apd.MakeErrDecimal(c.work)
	r := c.reduce2Pi(&ed, x)
	return c.finish("cos", c.cosSeries(&ed, r), &ed)
}

// Tan returns sin(x) / cos(x).
func (c *Context) Tan(x *Decimal) (*Decimal, error) {
	ed := apd.MakeErrDecimal(c.work)
	r := c.reduce2Pi(&ed, x)
	s := c.sinSeries(&ed, r)
	co := c.cosSeries(&ed, r)
	if co.IsZero() {
		return nil, c.wrap("tan", errors.New("pole"))
	}
	return c.finish("tan", ed.Quo(new(Decimal), s, co), &ed)
}

func (c *Context) sinSeries(ed *apd.ErrDecimal, r *Decimal) *Decimal {
	r2 := ed.Mul(new(Decimal), r, r)
	sum := new(Decimal).Set(r)
	term := new(Decimal).Set(r)
	eps := c.eps()
	for i := int64(1); ed.Err() == nil; i++ {
		ed.Mul(term, term, r2)
		ed.Quo(term, term, apd.New((2*i)*(2*i+1), 0))
		ed.Neg(term, term)
		if new(Decimal).Abs(term).Cmp(eps) < 0 {
			break
		}
		ed.Add(sum, sum, term)
	}
	return sum
}

func (c *Context) cosSeries(ed *apd.ErrDecimal, r *Decimal) *Decimal {
	r2 := ed.Mul(new(Decimal), r, r)
	sum := new(Decimal).Set(one)
	term := new(Decimal).Set(one)
	eps := c.eps()
	for i := int64(1); ed.Err() == nil; i++ {
		ed.Mul(term, term, r2)
		ed.Quo(term, term, apd.New((2*i-1)*(2*i), 0))
		ed.Neg(term, term)
		if new(Decimal).Abs(term).Cmp(eps) < 0 {
			break
		}
		ed.Add(sum, sum, term)
	}
	return sum
}

// Atan returns atan(x). The argument is halved three times with
// x / (1 + sqrt(1 + x^2)) before the Gregory series is applied.
func (c *Context) Atan(x *Decimal) (*Decimal, error) {
	ed := apd.MakeErrDecimal(c.work)
	return c.finish("atan", c.atan(&ed, x), &ed)
}

func (c *Context) atan(ed *apd.ErrDecimal, x *Decimal) *Decimal {
	a := new(Decimal).Abs(x)
	t := new(Decimal)
	for range 3 {
		ed.Mul(t, a, a)
		ed.Add(t, t, one)
		t = ed.Sqrt(new(Decimal), t)
		ed.Add(t, t, one)
		ed.Quo(a, a, t)
	}
	a2 := ed.Mul(new(Decimal), a, a)
	sum := new(Decimal).Set(a)
	term := new(Decimal).Set(a)
	eps := c.eps()
	for k := int64(3); ed.Err() == nil; k += 2 {
		ed.Mul(term, term, a2)
		ed.Neg(term, term)
		ed.Quo(t, term, apd.New(k, 0))
		if new(Decimal).Abs(t).Cmp(eps) < 0 {
			break
		}
		ed.Add(sum, sum, t)
	}
	ed.Mul(sum, sum, apd.New(8, 0))
	if x.Negative {
		sum.Neg(sum)
	}
	return sum
}

// Asin returns asin(x) for |x| <= 1.
func (c *Context) Asin(x *Decimal) (*Decimal, error) {
	ed := apd.MakeErrDecimal(c.work)
	r, err := c.asin(&ed, x)
	if err != nil {
		return nil, err
	}
	return c.finish("asin", r, &ed)
}

func (c *Context) asin(ed *apd.ErrDecimal, x *Decimal) (*Decimal, error) {
	a := new(Decimal).Abs(x)
	switch a.Cmp(one) {
	case 1:
		return nil, c.wrap("asin", errors.New("argument outside [-1, 1]"))
	case 0:
		r := ed.Quo(new(Decimal), c.pi, two)
		if x.Negative {
			r.Neg(r)
		}
		return r, nil
	}
	t := ed.Mul(new(Decimal), x, x)
	ed.Sub(t, one, t)
	t = ed.Sqrt(new(Decimal), t)
	return c.atan(ed, ed.Quo(new(Decimal), x, t)), nil
}

// Acos returns acos(x) = pi/2 - asin(x).
func (c *Context) Acos(x *Decimal) (*Decimal, error) {
	ed := apd.MakeErrDecimal(c.work)
	r, err := c.asin(&ed, x)
	if err != nil {
		return nil, err
	}
	h := ed.Quo(new(Decimal), c.pi, two)
	return c.finish("acos", ed.Sub(r, h, r), &ed)
}

// Exp returns e**x.
func (c *Context) Exp(x *Decimal) (*Decimal, error) {
	ed := apd.MakeErrDecimal(c.work)
	return c.finish("exp", ed.Exp(new(Decimal), x), &ed)
}

// Exp2 returns 2**x.
func (c *Context) Exp2(x *Decimal) (*Decimal, error) {
	ed := apd.MakeErrDecimal(c.work)
	t := ed.Mul(new(Decimal), x, c.ln2)
	return c.finish("exp2", ed.Exp(new(Decimal), t), &ed)
}

// Ln returns the natural logarithm of x > 0.
func (c *Context) Ln(x *Decimal) (*Decimal, error) {
	if x.Sign() <= 0 {
		return nil, c.wrap("ln", errors.New("argument not positive"))
	}
	ed := apd.MakeErrDecimal(c.work)
	return c.finish("ln", ed.Ln(new(Decimal), x), &ed)
}

// Log2 returns ln(x) / ln(2).
func (c *Context) Log2(x *Decimal) (*Decimal, error) {
	if x.Sign() <= 0 {
		return nil, c.wrap("log2", errors.New("argument not positive"))
	}
	ed := apd.MakeErrDecimal(c.work)
	t := ed.Ln(new(Decimal), x)
	return c.finish("log2", ed.Quo(t, t, c.ln2), &ed)
}

// Log10 returns the base 10 logarithm of x.
func (c *Context) Log10(x *Decimal) (*Decimal, error) {
	if x.Sign() <= 0 {
		return nil, c.wrap("log10", errors.New("argument not positive"))
	}
	ed := apd.MakeErrDecimal(c.work)
	t := ed.Ln(new(Decimal), x)
	return c.finish("log10", ed.Quo(t, t, c.ln10), &ed)
}

// Sqrt returns the square root of x >= 0.
func (c *Context) Sqrt(x *Decimal) (*Decimal, error) {
	if x.Sign() < 0 {
		return nil, c.wrap("sqrt", errors.New("negative argument"))
	}
	ed := apd.MakeErrDecimal(c.work)
	return c.finish("sqrt", ed.Sqrt(new(Decimal), x), &ed)
}

// Cbrt returns the real cube root of x.
func (c *Context) Cbrt(x *Decimal) (*Decimal, error) {
	d := new(Decimal)
	if _, err := c.work.Cbrt(d, x); err != nil {
		return nil, c.wrap("cbrt", err)
	}
	return c.round(d)
}

// Sinh returns (e**x - e**-x) / 2.
func (c *Context) Sinh(x *Decimal) (*Decimal, error) {
	ed := apd.MakeErrDecimal(c.work)
	p := ed.Exp(new(Decimal), x)
	m := ed.Quo(new(Decimal), one, p)
	ed.Sub(p, p, m)
	return c.finish("sinh", ed.Quo(p, p, two), &ed)
}

// Cosh returns (e**x + e**-x) / 2.
func (c *Context) Cosh(x *Decimal) (*Decimal, error) {
	ed := apd.MakeErrDecimal(c.work)
	p := ed.Exp(new(Decimal), x)
	m := ed.Quo(new(Decimal), one, p)
	ed.Add(p, p, m)
	return c.finish("cosh", ed.Quo(p, p, two), &ed)
}

// Tanh returns (e**2x - 1) / (e**2x + 1).
func (c *Context) Tanh(x *Decimal) (*Decimal, error) {
	ed := apd.MakeErrDecimal(c.work)
	a := new(Decimal).Abs(x)
	e := ed.Mul(new(Decimal), a, two)
	e = ed.Exp(new(Decimal), e)
	num := ed.Sub(new(Decimal), e, one)
	den := ed.Add(new(Decimal), e, one)
	r := ed.Quo(new(Decimal), num, den)
	if x.Negative {
		r.Neg(r)
	}
	return c.finish("tanh", r, &ed)
}

// Asinh returns ln(x + sqrt(x^2 + 1)), evaluated on |x| for symmetry.
func (c *Context) Asinh(x *Decimal) (*Decimal, error) {
	ed := apd.MakeErrDecimal(c.work)
	a := new(Decimal).Abs(x)
	t := ed.Mul(new(Decimal), a, a)
	ed.Add(t, t, one)
	t = ed.Sqrt(new(Decimal), t)
	ed.Add(t, t, a)
	t = ed.Ln(new(Decimal), t)
	if x.Negative {
		t.Neg(t)
	}
	return c.finish("asinh", t, &ed)
}

// Acosh returns ln(x + sqrt(x^2 - 1)) for x >= 1.
func (c *Context) Acosh(x *Decimal) (*Decimal, error) {
	if x.Cmp(one) < 0 {
		return nil, c.wrap("acosh", errors.New("argument below 1"))
	}
	ed := apd.MakeErrDecimal(c.work)
	t := ed.Mul(new(Decimal), x, x)
	ed.Sub(t, t, one)
	t = ed.Sqrt(new(Decimal), t)
	ed.Add(t, t, x)
	return c.finish("acosh", ed.Ln(new(Decimal), t), &ed)
}

// Atanh returns ln((1+x)/(1-x)) / 2 for |x| < 1.
func (c *Context) Atanh(x *Decimal) (*Decimal, error) {
	if new(Decimal).Abs(x).Cmp(one) >= 0 {
		return nil, c.wrap("atanh", errors.New("argument outside (-1, 1)"))
	}
	ed := apd.MakeErrDecimal(c.work)
	n := ed.Add(new(Decimal), one, x)
	d := ed.Sub(new(Decimal), one, x)
	ed.Quo(n, n, d)
	n = ed.Ln(new(Decimal), n)
	return c.finish("atanh", ed.Quo(n, n, two), &ed)
}
