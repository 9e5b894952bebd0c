package ir

import (
	"fmt"

	"github.com/ajroetker/libmgen/internal/expr"
	"github.com/ajroetker/libmgen/internal/numeric"
	"github.com/ajroetker/libmgen/internal/quantize"
)

// Builder assembles a Function from Go-syntax template lines.
//
// Templates may reference parameters, earlier lets, and named bindings
// registered with Bind or Splice. Build substitutes the bindings, folds
// constant subtrees at the given precision, quantizes the remaining
// constants for the function's NumberType and checks the result.
//
//	b := ir.NewBuilder("sin", quantize.F32, "a")
//	b.Splice("POLY", fit.In(expr.NewVar("x"), expr.NewVar("x2")))
//	b.Let("scaled", "a*(0.5/PI)")
//	b.Let("x", "scaled - round(scaled)")
//	b.Let("x2", "x*x")
//	b.Return("POLY")
//	fn, err := b.Build(nc)
type Builder struct {
	fn  *Function
	env map[string]expr.Expr
	err error
}

// NewBuilder starts a function with one float parameter per name.
func NewBuilder(name string, nt quantize.NumberType, params ...string) *Builder {
	fn := &Function{Name: name, Type: nt}
	for _, p := range params {
		fn.Params = append(fn.Params, Param{Name: p})
	}
	return &Builder{fn: fn, env: map[string]expr.Expr{}}
}

// Doc sets the function's doc comment.
func (b *Builder) Doc(doc string) *Builder {
	b.fn.Doc = doc
	return b
}

// Bind makes every name in env available to templates.
func (b *Builder) Bind(env map[string]expr.Expr) *Builder {
	for k, v := range env {
		b.env[k] = v
	}
	return b
}

// Splice binds a single placeholder, typically to a fitted approximant.
func (b *Builder) Splice(name string, e expr.Expr) *Builder {
	b.env[name] = e
	return b
}

// Let appends name := template.
func (b *Builder) Let(name, template string) *Builder {
	e, err := expr.Parse(template)
	if err != nil {
		b.fail(fmt.Errorf("let %s: %w", name, err))
		return b
	}
	return b.LetExpr(name, e)
}

// LetExpr appends name := e.
func (b *Builder) LetExpr(name string, e expr.Expr) *Builder {
	b.fn.Body = append(b.fn.Body, &Let{Name: name, Value: e})
	return b
}

// Return appends the return statement; one template per result.
func (b *Builder) Return(templates ...string) *Builder {
	r := &Return{}
	for _, src := range templates {
		e, err := expr.Parse(src)
		if err != nil {
			b.fail(fmt.Errorf("return: %w", err))
			return b
		}
		r.Values = append(r.Values, e)
	}
	b.fn.Body = append(b.fn.Body, r)
	b.fn.Results = len(r.Values)
	return b
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build finalizes the function. nc sets the precision of constant folding.
func (b *Builder) Build(nc *numeric.Context) (*Function, error) {
	if b.err != nil {
		return nil, fmt.Errorf("build %s: %w", b.fn.Name, b.err)
	}
	fn := &Function{
		Name:    b.fn.Name,
		Type:    b.fn.Type,
		Params:  append([]Param(nil), b.fn.Params...),
		Results: b.fn.Results,
		Doc:     b.fn.Doc,
	}
	for _, s := range b.fn.Body {
		switch s := s.(type) {
		case *Let:
			e, err := b.finish(nc, s.Value)
			if err != nil {
				return nil, fmt.Errorf("build %s: let %s: %w", fn.Name, s.Name, err)
			}
			fn.Body = append(fn.Body, &Let{Name: s.Name, Value: e})
		case *Return:
			r := &Return{}
			for _, v := range s.Values {
				e, err := b.finish(nc, v)
				if err != nil {
					return nil, fmt.Errorf("build %s: return: %w", fn.Name, err)
				}
				r.Values = append(r.Values, e)
			}
			fn.Body = append(fn.Body, r)
		}
	}
	if _, err := Check(fn, nil); err != nil {
		return nil, fmt.Errorf("build %s: %w", fn.Name, err)
	}
	return fn, nil
}

func (b *Builder) finish(nc *numeric.Context, e expr.Expr) (expr.Expr, error) {
	e = expr.Bind(e, b.env)
	e, err := expr.Fold(nc, e)
	if err != nil {
		return nil, err
	}
	return quantize.Apply(e, b.fn.Type)
}
