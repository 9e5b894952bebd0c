package ir

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ajroetker/libmgen/internal/expr"
)

// ErrEval reports a body or expression the interpreter cannot evaluate.
var ErrEval = errors.New("ir: evaluation failed")

// value is a float, an integer of the function width, or a boolean.
type value[T float32 | float64] struct {
	kind Kind
	f    T
	i    int64
	b    bool
}

// Interp evaluates generated functions at the precision of T. Float
// operations round to T after every step; mul_add is a multiply rounded
// to T followed by an add. Integers are int32 for float32 and int64 for
// float64. Vector functions are evaluated one lane at a time.
type Interp[T float32 | float64] struct {
	funcs map[string]*Function
}

// NewInterp returns an interpreter over fns.
func NewInterp[T float32 | float64](fns []*Function) *Interp[T] {
	return &Interp[T]{funcs: Index(fns)}
}

func (in *Interp[T]) bits() int {
	var zero T
	if _, ok := any(zero).(float32); ok {
		return 32
	}
	return 64
}

func (in *Interp[T]) wrap(i int64) int64 {
	if in.bits() == 32 {
		return int64(int32(i))
	}
	return i
}

func (in *Interp[T]) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrEval, fmt.Sprintf(format, args...))
}

// Call runs the named function.
func (in *Interp[T]) Call(name string, args ...T) ([]T, error) {
	fn, ok := in.funcs[name]
	if !ok {
		return nil, in.errorf("unknown function %s", name)
	}
	if fn.Type.Bits() != in.bits() {
		return nil, in.errorf("%s is %s, interpreter is %d-bit", name, fn.Type, in.bits())
	}
	if len(args) != len(fn.Params) {
		return nil, in.errorf("%s takes %d arguments, got %d", name, len(fn.Params), len(args))
	}
	env := make(map[string]value[T], len(fn.Params)+len(fn.Body))
	for i, p := range fn.Params {
		env[p.Name] = value[T]{kind: Float, f: args[i]}
	}
	for _, s := range fn.Body {
		switch s := s.(type) {
		case *Let:
			v, err := in.eval(s.Value, env)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", name, s.Name, err)
			}
			env[s.Name] = v
		case *Return:
			out := make([]T, len(s.Values))
			for i, e := range s.Values {
				v, err := in.eval(e, env)
				if err != nil {
					return nil, fmt.Errorf("%s: return: %w", name, err)
				}
				if v.kind != Float {
					return nil, in.errorf("%s returns %s", name, v.kind)
				}
				out[i] = v.f
			}
			return out, nil
		}
	}
	return nil, in.errorf("%s has no return", name)
}

// Eval evaluates a float expression with the given variables. Besides
// intrinsics and generated functions, it resolves std.* reference calls.
func (in *Interp[T]) Eval(e expr.Expr, vars map[string]T) (T, error) {
	env := make(map[string]value[T], len(vars))
	for k, v := range vars {
		env[k] = value[T]{kind: Float, f: v}
	}
	v, err := in.eval(e, env)
	if err != nil {
		return 0, err
	}
	if v.kind != Float {
		return 0, in.errorf("%s is %s, want float", expr.String(e), v.kind)
	}
	return v.f, nil
}

func (in *Interp[T]) eval(e expr.Expr, env map[string]value[T]) (value[T], error) {
	switch n := e.(type) {
	case *expr.Int:
		return value[T]{kind: Int, i: in.wrap(int64(n.Value))}, nil

	case *expr.Const:
		f, err := n.Value.Float64()
		if err != nil {
			return value[T]{}, in.errorf("constant %s: %v", n, err)
		}
		return value[T]{kind: Float, f: T(f)}, nil

	case *expr.Var:
		v, ok := env[n.Name]
		if !ok {
			return value[T]{}, in.errorf("undefined %s", n.Name)
		}
		return v, nil

	case *expr.Unary:
		x, err := in.eval(n.X, env)
		if err != nil {
			return x, err
		}
		switch {
		case n.Op == expr.OpNot && x.kind == Bool:
			return value[T]{kind: Bool, b: !x.b}, nil
		case n.Op == expr.OpNeg && x.kind == Float:
			return value[T]{kind: Float, f: -x.f}, nil
		case n.Op == expr.OpNeg && x.kind == Int:
			return value[T]{kind: Int, i: in.wrap(-x.i)}, nil
		}
		return value[T]{}, in.errorf("%s", n)

	case *expr.Binary:
		x, err := in.eval(n.X, env)
		if err != nil {
			return x, err
		}
		y, err := in.eval(n.Y, env)
		if err != nil {
			return y, err
		}
		return in.binary(n, x, y)

	case *expr.Call:
		return in.call(n, env)
	}
	return value[T]{}, in.errorf("unsupported node %T", e)
}

func (in *Interp[T]) binary(n *expr.Binary, x, y value[T]) (value[T], error) {
	if x.kind != y.kind {
		return value[T]{}, in.errorf("%s: %s and %s operands", n, x.kind, y.kind)
	}
	boolean := func(b bool) (value[T], error) { return value[T]{kind: Bool, b: b}, nil }
	float := func(f T) (value[T], error) { return value[T]{kind: Float, f: f}, nil }
	integer := func(i int64) (value[T], error) { return value[T]{kind: Int, i: in.wrap(i)}, nil }

	switch x.kind {
	case Bool:
		switch n.Op {
		case expr.OpLAnd:
			return boolean(x.b && y.b)
		case expr.OpLOr:
			return boolean(x.b || y.b)
		}
	case Float:
		a, b := x.f, y.f
		switch n.Op {
		case expr.OpAdd:
			return float(a + b)
		case expr.OpSub:
			return float(a - b)
		case expr.OpMul:
			return float(a * b)
		case expr.OpQuo:
			return float(a / b)
		case expr.OpLss:
			return boolean(a < b)
		case expr.OpLeq:
			return boolean(a <= b)
		case expr.OpGtr:
			return boolean(a > b)
		case expr.OpGeq:
			return boolean(a >= b)
		case expr.OpEql:
			return boolean(a == b)
		case expr.OpNeq:
			return boolean(a != b)
		}
	case Int:
		a, b := x.i, y.i
		switch n.Op {
		case expr.OpAdd:
			return integer(a + b)
		case expr.OpSub:
			return integer(a - b)
		case expr.OpMul:
			return integer(a * b)
		case expr.OpQuo:
			if b == 0 {
				return value[T]{}, in.errorf("%s: integer division by zero", n)
			}
			return integer(a / b)
		case expr.OpAnd:
			return integer(a & b)
		case expr.OpOr:
			return integer(a | b)
		case expr.OpShl:
			return integer(a << uint(b))
		case expr.OpShr:
			return integer(a >> uint(b))
		case expr.OpLss:
			return boolean(a < b)
		case expr.OpLeq:
			return boolean(a <= b)
		case expr.OpGtr:
			return boolean(a > b)
		case expr.OpGeq:
			return boolean(a >= b)
		case expr.OpEql:
			return boolean(a == b)
		case expr.OpNeq:
			return boolean(a != b)
		}
	}
	return value[T]{}, in.errorf("%s on %s", n.Op, x.kind)
}

func (in *Interp[T]) call(c *expr.Call, env map[string]value[T]) (value[T], error) {
	args := make([]value[T], len(c.Args))
	for i, a := range c.Args {
		v, err := in.eval(a, env)
		if err != nil {
			return v, err
		}
		args[i] = v
	}
	float := func(f T) (value[T], error) { return value[T]{kind: Float, f: f}, nil }
	floats := func(want int) ([]T, error) {
		if len(args) != want {
			return nil, in.errorf("%s takes %d arguments", c.Name, want)
		}
		out := make([]T, want)
		for i, a := range args {
			if a.kind != Float {
				return nil, in.errorf("%s: argument %d is %s", c.Name, i+1, a.kind)
			}
			out[i] = a.f
		}
		return out, nil
	}

	switch c.Name {
	case "mul_add":
		a, err := floats(3)
		if err != nil {
			return value[T]{}, err
		}
		return float(T(a[0]*a[1]) + a[2])
	case "round", "abs", "sqrt":
		a, err := floats(1)
		if err != nil {
			return value[T]{}, err
		}
		x := float64(a[0])
		switch c.Name {
		case "round":
			return float(T(math.Round(x)))
		case "abs":
			return float(T(math.Abs(x)))
		}
		return float(T(math.Sqrt(x)))
	case "min", "max":
		a, err := floats(2)
		if err != nil {
			return value[T]{}, err
		}
		if c.Name == "min" {
			return float(min(a[0], a[1]))
		}
		return float(max(a[0], a[1]))
	case "splat":
		a, err := floats(1)
		if err != nil {
			return value[T]{}, err
		}
		return float(a[0])
	case "to_bits", "to_int":
		a, err := floats(1)
		if err != nil {
			return value[T]{}, err
		}
		if c.Name == "to_int" {
			return value[T]{kind: Int, i: in.wrap(int64(a[0]))}, nil
		}
		if in.bits() == 32 {
			return value[T]{kind: Int, i: int64(int32(math.Float32bits(float32(a[0]))))}, nil
		}
		return value[T]{kind: Int, i: int64(math.Float64bits(float64(a[0])))}, nil
	case "from_bits", "to_float":
		if len(args) != 1 || args[0].kind != Int {
			return value[T]{}, in.errorf("%s takes one int", c.Name)
		}
		i := args[0].i
		if c.Name == "to_float" {
			return float(T(i))
		}
		if in.bits() == 32 {
			return float(T(math.Float32frombits(uint32(i))))
		}
		return float(T(math.Float64frombits(uint64(i))))
	case "select":
		if len(args) != 3 || args[0].kind != Bool || args[1].kind != args[2].kind {
			return value[T]{}, in.errorf("select(bool, v, v) called as %s", c)
		}
		if args[0].b {
			return args[1], nil
		}
		return args[2], nil
	}

	if name, ok := strings.CutPrefix(c.Name, "std."); ok {
		sf, ok := Std[name]
		if !ok {
			return value[T]{}, in.errorf("unknown reference function %s", c.Name)
		}
		a, err := floats(sf.Arity)
		if err != nil {
			return value[T]{}, err
		}
		wide := make([]float64, len(a))
		for i, v := range a {
			wide[i] = float64(v)
		}
		return float(T(sf.Eval(wide...)))
	}

	fn, ok := in.funcs[c.Name]
	if !ok {
		return value[T]{}, in.errorf("unknown function %s", c.Name)
	}
	a, err := floats(len(fn.Params))
	if err != nil {
		return value[T]{}, err
	}
	out, err := in.Call(c.Name, a...)
	if err != nil {
		return value[T]{}, err
	}
	if len(out) != 1 {
		return value[T]{}, in.errorf("%s returns %d values in expression context", c.Name, len(out))
	}
	return float(out[0])
}
