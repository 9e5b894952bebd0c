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

// Package family generates the approximated math routines, grouped into
// families that share a domain reduction: trig, inv_trig, log_exp,
// hyperbolic, recip_sqrt and aux.
//
// Every family fits its polynomial kernels with package approx, writes the
// function bodies as Go-syntax templates through ir.Builder and declares a
// bounded-error test per routine with package oracle. Families that call
// routines of another family name it in Requires; those calls resolve
// against the generated functions of the same output.
package family

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/ajroetker/libmgen/internal/ir"
	"github.com/ajroetker/libmgen/internal/numeric"
	"github.com/ajroetker/libmgen/internal/quantize"
	"github.com/ajroetker/libmgen/internal/workerpool"
)

// Family generates a group of related routines.
type Family interface {
	// Name is the family tag, e.g. "log_exp".
	Name() string
	// Functions lists the routine names in output order.
	Functions() []string
	// Requires names the families whose routines are called.
	Requires() []string
	// Generate fits, builds and quantizes the family for opts.Type.
	Generate(ctx context.Context, opts Options) (*Output, error)
}

// Output is what one family contributes to a generated file.
type Output struct {
	Functions []*ir.Function
	Tests     []*ir.TestCase
}

// Items returns the functions followed by the tests.
func (o *Output) Items() []ir.Item {
	items := make([]ir.Item, 0, len(o.Functions)+len(o.Tests))
	for _, f := range o.Functions {
		items = append(items, f)
	}
	for _, t := range o.Tests {
		items = append(items, t)
	}
	return items
}

// Strategy selects the sine and cosine reduction.
type Strategy int

const (
	// SinglePass reduces by 2*pi and fits a full period.
	SinglePass Strategy = iota
	// Quadrant reduces by pi/2 and selects between sine and cosine kernels.
	Quadrant
)

func (s Strategy) String() string {
	if s == Quadrant {
		return "quadrant"
	}
	return "single_pass"
}

// ErrStrategy reports an unknown trig strategy tag.
var ErrStrategy = errors.New("unknown trig strategy")

// ParseStrategy accepts "single_pass" (or "single") and "quadrant".
func ParseStrategy(tag string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "", "single_pass", "single":
		return SinglePass, nil
	case "quadrant":
		return Quadrant, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrStrategy, tag)
}

// TermTable maps a kernel name to its number of polynomial terms.
type TermTable map[string]int

var defaultTerms = map[int]TermTable{
	32: {
		"sin": 7, "cos": 8, "tan": 7, "sin_q": 5, "cos_q": 6,
		"atan": 9, "asin": 7,
		"exp2": 7, "exp": 7, "ln": 5,
		"sinh": 6, "cosh": 6, "tanh": 8, "asinh": 7, "atanh": 8,
		"sqrt": 9, "rsqrt": 10, "cbrt": 9,
	},
	64: {
		"sin": 11, "cos": 12, "tan": 11, "sin_q": 9, "cos_q": 10,
		"atan": 20, "asin": 13,
		"exp2": 13, "exp": 12, "ln": 8,
		"sinh": 10, "cosh": 10, "tanh": 16, "asinh": 13, "atanh": 15,
		"sqrt": 20, "rsqrt": 22, "cbrt": 20,
	},
}

// DefaultTerms returns a copy of the measured term table for a width.
func DefaultTerms(bits int) TermTable {
	if bits <= 32 {
		return lo.Assign(defaultTerms[32])
	}
	return lo.Assign(defaultTerms[64])
}

// Options configures one generation run.
type Options struct {
	Type quantize.NumberType

	// Digits is the precision of the fitted coefficients; zero selects
	// numeric.NumDigitsFor(Type.Bits()).
	Digits int

	// Terms overrides entries of DefaultTerms.
	Terms TermTable

	TrigStrategy Strategy

	// Samples per generated test; zero selects oracle.DefaultSamples.
	Samples int

	// Pool evaluates the fitting grids. Nil fits sequentially.
	Pool *workerpool.Pool
}

func (o Options) withDefaults() Options {
	if o.Digits <= 0 {
		o.Digits = numeric.NumDigitsFor(o.Type.Bits())
	}
	o.Terms = lo.Assign(DefaultTerms(o.Type.Bits()), o.Terms)
	return o
}

// All returns every family in output order.
func All() []Family {
	return []Family{trig{}, invTrig{}, logExp{}, hyperbolic{}, recipSqrt{}, aux{}}
}

// ErrUnknownFamily reports a family name that is not in All.
var ErrUnknownFamily = errors.New("unknown family")

// Lookup returns the family with the given name.
func Lookup(name string) (Family, error) {
	f, ok := lo.Find(All(), func(f Family) bool { return f.Name() == name })
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, name)
	}
	return f, nil
}

// Names returns the names of All.
func Names() []string {
	return lo.Map(All(), func(f Family, _ int) string { return f.Name() })
}

// Resolve returns the named families plus the families they require, in
// output order. An empty list selects all families.
func Resolve(names []string) ([]Family, error) {
	if len(names) == 0 {
		return All(), nil
	}
	want := map[string]bool{}
	var visit func(name string) error
	visit = func(name string) error {
		if want[name] {
			return nil
		}
		f, err := Lookup(name)
		if err != nil {
			return err
		}
		want[name] = true
		for _, dep := range f.Requires() {
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range lo.Uniq(names) {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return lo.Filter(All(), func(f Family, _ int) bool { return want[f.Name()] }), nil
}
