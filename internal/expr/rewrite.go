package expr

import (
	"fmt"
	"slices"
)

// Visitor transforms a single node. Rewrite calls it once per node after
// the node's children have been rewritten. A visitor that does not handle
// a variant returns it unchanged.
type Visitor interface {
	Visit(e Expr) (Expr, error)
}

// VisitorFunc adapts a function to the Visitor interface.
type VisitorFunc func(Expr) (Expr, error)

// Visit calls f(e).
func (f VisitorFunc) Visit(e Expr) (Expr, error) { return f(e) }

// RewriteError is returned by Rewrite when the visitor fails. Node is the
// node the visitor was given when it failed.
type RewriteError struct {
	Node Expr
	Err  error
}

func (e *RewriteError) Error() string {
	return fmt.Sprintf("rewrite %s: %v", String(e.Node), e.Err)
}

func (e *RewriteError) Unwrap() error { return e.Err }

// Rewrite applies v bottom-up to every node of e and returns the rebuilt
// tree. The input tree is not modified. On the first visitor error the
// rewrite stops and returns a nil tree with a *RewriteError.
func Rewrite(e Expr, v Visitor) (Expr, error) {
	if e == nil {
		return nil, nil
	}
	var rebuilt Expr
	switch n := e.(type) {
	case *Const, *Int, *Var:
		rebuilt = Clone(e)
	case *Unary:
		x, err := Rewrite(n.X, v)
		if err != nil {
			return nil, err
		}
		rebuilt = NewUnary(n.Op, x)
	case *Binary:
		x, err := Rewrite(n.X, v)
		if err != nil {
			return nil, err
		}
		y, err := Rewrite(n.Y, v)
		if err != nil {
			return nil, err
		}
		rebuilt = NewBinary(n.Op, x, y)
	case *Call:
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			r, err := Rewrite(a, v)
			if err != nil {
				return nil, err
			}
			args[i] = r
		}
		rebuilt = &Call{Name: n.Name, Args: args}
	default:
		rebuilt = e
	}

	out, err := v.Visit(rebuilt)
	if err != nil {
		return nil, &RewriteError{Node: rebuilt, Err: err}
	}
	return out, nil
}

// Walk calls fn for e and then for its children, depth first. If fn
// returns false the children of that node are skipped.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *Unary:
		Walk(n.X, fn)
	case *Binary:
		Walk(n.X, fn)
		Walk(n.Y, fn)
	case *Call:
		for _, a := range n.Args {
			Walk(a, fn)
		}
	}
}

// Vars returns the sorted, distinct variable names referenced by e.
func Vars(e Expr) []string {
	var names []string
	Walk(e, func(n Expr) bool {
		if v, ok := n.(*Var); ok {
			names = append(names, v.Name)
		}
		return true
	})
	slices.Sort(names)
	return slices.Compact(names)
}

// Calls returns the sorted, distinct call names used by e.
func Calls(e Expr) []string {
	var names []string
	Walk(e, func(n Expr) bool {
		if c, ok := n.(*Call); ok {
			names = append(names, c.Name)
		}
		return true
	})
	slices.Sort(names)
	return slices.Compact(names)
}

// Bind substitutes every variable named in env by a copy of its binding.
// Bindings are not themselves rewritten.
func Bind(e Expr, env map[string]Expr) Expr {
	if len(env) == 0 {
		return e
	}
	out, _ := Rewrite(e, VisitorFunc(func(n Expr) (Expr, error) {
		if v, ok := n.(*Var); ok {
			if b, ok := env[v.Name]; ok {
				return Clone(b), nil
			}
		}
		return n, nil
	}))
	return out
}
