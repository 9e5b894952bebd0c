package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ajroetker/libmgen/internal/numeric"
)

var (
	// ErrUnbound reports a variable with no binding and no built-in value.
	ErrUnbound = errors.New("expr: unbound variable")

	// ErrUnknownFunc reports a call that cannot be evaluated exactly.
	ErrUnknownFunc = errors.New("expr: unknown function")

	// ErrNotNumeric reports an operator with no exact decimal meaning
	// (comparisons, logic, bit operations).
	ErrNotNumeric = errors.New("expr: operator has no numeric value")
)

type unaryFunc func(*numeric.Context, *numeric.Decimal) (*numeric.Decimal, error)

var unaryFuncs = map[string]unaryFunc{
	"sin":   (*numeric.Context).Sin,
	"cos":   (*numeric.Context).Cos,
	"tan":   (*numeric.Context).Tan,
	"atan":  (*numeric.Context).Atan,
	"asin":  (*numeric.Context).Asin,
	"acos":  (*numeric.Context).Acos,
	"exp":   (*numeric.Context).Exp,
	"exp2":  (*numeric.Context).Exp2,
	"ln":    (*numeric.Context).Ln,
	"log2":  (*numeric.Context).Log2,
	"log10": (*numeric.Context).Log10,
	"sqrt":  (*numeric.Context).Sqrt,
	"cbrt":  (*numeric.Context).Cbrt,
	"sinh":  (*numeric.Context).Sinh,
	"cosh":  (*numeric.Context).Cosh,
	"tanh":  (*numeric.Context).Tanh,
	"asinh": (*numeric.Context).Asinh,
	"acosh": (*numeric.Context).Acosh,
	"atanh": (*numeric.Context).Atanh,
	"round": (*numeric.Context).Round,
	"abs": func(c *numeric.Context, x *numeric.Decimal) (*numeric.Decimal, error) {
		return c.Abs(x), nil
	},
}

// Evaluable reports whether a call name has an exact evaluation.
func Evaluable(name string) bool {
	name = strings.TrimPrefix(name, "std.")
	if _, ok := unaryFuncs[name]; ok {
		return true
	}
	switch name {
	case "pow", "min", "max", "mul_add":
		return true
	}
	return false
}

// constantNames lists the built-in named constants.
var constantNames = []string{"PI", "E", "LN2", "LN10", "SQRT2"}

func constantValue(c *numeric.Context, name string) (*numeric.Decimal, bool, error) {
	switch name {
	case "PI":
		return c.Pi(), true, nil
	case "E":
		v, err := c.Exp(numeric.FromInt64(1))
		return v, true, err
	case "LN2":
		return c.Ln2(), true, nil
	case "LN10":
		return c.Ln10(), true, nil
	case "SQRT2":
		v, err := c.Sqrt(numeric.FromInt64(2))
		return v, true, err
	}
	return nil, false, nil
}

// Constants returns the built-in named constants at the precision of c:
// PI, E, LN2, LN10 and SQRT2.
func Constants(c *numeric.Context) (map[string]Expr, error) {
	out := make(map[string]Expr, len(constantNames))
	for _, name := range constantNames {
		v, _, err := constantValue(c, name)
		if err != nil {
			return nil, err
		}
		out[name] = &Const{Value: v}
	}
	return out, nil
}

// Eval computes the exact decimal value of e at the precision of c. Free
// variables are looked up in env and then among the built-in constants.
func Eval(c *numeric.Context, e Expr, env map[string]*numeric.Decimal) (*numeric.Decimal, error) {
	switch n := e.(type) {
	case *Const:
		return new(numeric.Decimal).Set(n.Value), nil

	case *Int:
		return numeric.Parse(strconv.FormatUint(n.Value, 10))

	case *Var:
		if v, ok := env[n.Name]; ok {
			return new(numeric.Decimal).Set(v), nil
		}
		if v, ok, err := constantValue(c, n.Name); ok {
			return v, err
		}
		return nil, fmt.Errorf("%w: %s", ErrUnbound, n.Name)

	case *Unary:
		if n.Op != OpNeg {
			return nil, fmt.Errorf("%w: %s", ErrNotNumeric, n.Op)
		}
		x, err := Eval(c, n.X, env)
		if err != nil {
			return nil, err
		}
		return c.Neg(x), nil

	case *Binary:
		x, err := Eval(c, n.X, env)
		if err != nil {
			return nil, err
		}
		y, err := Eval(c, n.Y, env)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case OpAdd:
			return c.Add(x, y)
		case OpSub:
			return c.Sub(x, y)
		case OpMul:
			return c.Mul(x, y)
		case OpQuo:
			return c.Quo(x, y)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotNumeric, n.Op)

	case *Call:
		args := make([]*numeric.Decimal, len(n.Args))
		for i, a := range n.Args {
			v, err := Eval(c, a, env)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return evalCall(c, n.Name, args)
	}
	return nil, fmt.Errorf("%w: %T", ErrNotNumeric, e)
}

func evalCall(c *numeric.Context, name string, args []*numeric.Decimal) (*numeric.Decimal, error) {
	name = strings.TrimPrefix(name, "std.")
	arity := func(want int) error {
		if len(args) != want {
			return fmt.Errorf("%w: %s takes %d arguments, got %d", ErrUnknownFunc, name, want, len(args))
		}
		return nil
	}
	if fn, ok := unaryFuncs[name]; ok {
		if err := arity(1); err != nil {
			return nil, err
		}
		return fn(c, args[0])
	}
	switch name {
	case "pow":
		if err := arity(2); err != nil {
			return nil, err
		}
		return c.Pow(args[0], args[1])
	case "min":
		if err := arity(2); err != nil {
			return nil, err
		}
		return c.Min(args[0], args[1]), nil
	case "max":
		if err := arity(2); err != nil {
			return nil, err
		}
		return c.Max(args[0], args[1]), nil
	case "mul_add":
		if err := arity(3); err != nil {
			return nil, err
		}
		p, err := c.Mul(args[0], args[1])
		if err != nil {
			return nil, err
		}
		return c.Add(p, args[2])
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFunc, name)
}

// Fold replaces every subtree whose leaves are all Const, and whose
// operators and calls have an exact evaluation, by a single Const.
// Subtrees touching Int or Var are kept as written.
func Fold(c *numeric.Context, e Expr) (Expr, error) {
	return Rewrite(e, VisitorFunc(func(n Expr) (Expr, error) {
		if !foldable(n) {
			return n, nil
		}
		v, err := Eval(c, n, nil)
		if err != nil {
			return nil, err
		}
		return &Const{Value: v}, nil
	}))
}

// foldable reports whether n is an operator or call over constants only.
// Children have already been folded, so checking one level suffices.
func foldable(n Expr) bool {
	isConst := func(e Expr) bool {
		_, ok := e.(*Const)
		return ok
	}
	switch x := n.(type) {
	case *Unary:
		return x.Op == OpNeg && isConst(x.X)
	case *Binary:
		switch x.Op {
		case OpAdd, OpSub, OpMul, OpQuo:
			return isConst(x.X) && isConst(x.Y)
		}
	case *Call:
		if !Evaluable(x.Name) || strings.HasPrefix(x.Name, "std.") {
			return false
		}
		for _, a := range x.Args {
			if !isConst(a) {
				return false
			}
		}
		return len(x.Args) > 0
	}
	return false
}
