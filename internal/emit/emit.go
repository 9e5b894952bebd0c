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

// Package emit renders generated functions and test cases as source text.
//
// Two backends exist: Go, which builds go/ast nodes and lowers vector
// functions onto the go-highway hwy API, and C, which transliterates
// scalar functions behind a fixed preamble. Both reject any constant that
// has not been quantized to a bit pattern.
package emit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ajroetker/libmgen/internal/expr"
	"github.com/ajroetker/libmgen/internal/ir"
	"github.com/ajroetker/libmgen/internal/quantize"
)

// Language selects a backend.
type Language int

const (
	// Go renders a Go package and its _test.go file.
	Go Language = iota
	// C renders a single C translation unit.
	C
)

func (l Language) String() string {
	switch l {
	case Go:
		return "go"
	case C:
		return "c"
	}
	return fmt.Sprintf("Language(%d)", int(l))
}

// ErrUnsupportedLanguage reports an unknown language tag.
var ErrUnsupportedLanguage = errors.New("emit: unsupported language")

// ErrUnquantized reports an exact constant that reached a backend.
var ErrUnquantized = errors.New("emit: unquantized constant")

// ParseLanguage accepts "go" (or "native") and "c".
func ParseLanguage(tag string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "go", "native":
		return Go, nil
	case "c":
		return C, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, tag)
}

// ErrUnsupported is wrapped by every UnsupportedError.
var ErrUnsupported = errors.New("emit: unsupported construct")

// UnsupportedError is a construct the backend cannot express.
type UnsupportedError struct {
	Lang Language
	Item string
	What string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("emit %s: %s: unsupported %s", e.Lang, e.Item, e.What)
}

func (e *UnsupportedError) Unwrap() error { return ErrUnsupported }

// DefaultHwyImport is the import path of the hwy package used by vector
// functions.
const DefaultHwyImport = "github.com/ajroetker/go-highway/hwy"

// DefaultCPrefix keeps C routine names clear of math.h.
const DefaultCPrefix = "mg_"

// Options configures rendering.
type Options struct {
	// Package is the Go package clause. Default "libm".
	Package string
	// HwyImport is the import path of the hwy package.
	HwyImport string
	// Prefix is prepended to every C routine name.
	Prefix string
}

func (o Options) withDefaults() Options {
	if o.Package == "" {
		o.Package = "libm"
	}
	if o.HwyImport == "" {
		o.HwyImport = DefaultHwyImport
	}
	return o
}

// File is one output file: Suffix is appended to the output base path.
type File struct {
	Suffix  string
	Content string
}

// Backend renders items as source text.
type Backend interface {
	Language() Language
	// Render returns all items as a single source text.
	Render(items []ir.Item) (string, error)
	// Files returns the items split the way the language lays out
	// sources on disk.
	Files(items []ir.Item) ([]File, error)
}

// New returns the backend for lang.
func New(lang Language, opts Options) (Backend, error) {
	opts = opts.withDefaults()
	switch lang {
	case Go:
		return &goBackend{opts: opts}, nil
	case C:
		return &cBackend{opts: opts}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
}

// prepare checks items and returns the typing of every function.
func prepare(items []ir.Item) (map[string]*ir.Typing, error) {
	for _, it := range items {
		var exprs []expr.Expr
		switch it := it.(type) {
		case *ir.Function:
			for _, s := range it.Body {
				switch s := s.(type) {
				case *ir.Let:
					exprs = append(exprs, s.Value)
				case *ir.Return:
					exprs = append(exprs, s.Values...)
				}
			}
		case *ir.TestCase:
			exprs = append(exprs, it.Reference, it.Candidate, it.Lo, it.Hi, it.Tolerance)
		}
		for _, e := range exprs {
			if e != nil && !quantize.IsQuantized(e) {
				return nil, fmt.Errorf("%w in %s: %s", ErrUnquantized, it.ItemName(), e)
			}
		}
	}
	return ir.CheckAll(items)
}

// liveLets returns the lets of fn that the return values depend on, in
// body order.
func liveLets(fn *ir.Function) []*ir.Let {
	live := map[string]bool{}
	var out []*ir.Let
	for i := len(fn.Body) - 1; i >= 0; i-- {
		switch s := fn.Body[i].(type) {
		case *ir.Return:
			for _, v := range s.Values {
				for _, name := range expr.Vars(v) {
					live[name] = true
				}
			}
		case *ir.Let:
			if !live[s.Name] {
				continue
			}
			for _, name := range expr.Vars(s.Value) {
				live[name] = true
			}
			out = append(out, s)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// signedLiteral reinterprets an integer literal as the signed integer of
// the given width.
func signedLiteral(v uint64, bits int) int64 {
	if bits == 32 {
		return int64(int32(uint32(v)))
	}
	return int64(v)
}

// stdFunc returns the reference function behind a std.* call.
func stdFunc(name string) (ir.StdFunc, bool) {
	f, ok := ir.Std[strings.TrimPrefix(name, "std.")]
	return f, ok && strings.HasPrefix(name, "std.")
}
