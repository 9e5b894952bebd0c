package ir

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ajroetker/libmgen/internal/expr"
)

// Kind is the value class of an expression inside a function body.
type Kind int

const (
	Invalid Kind = iota
	Float
	Int
	Bool
)

func (k Kind) String() string {
	switch k {
	case Float:
		return "float"
	case Int:
		return "int"
	case Bool:
		return "bool"
	}
	return "invalid"
}

// Signature of an intrinsic. A Same argument takes the kind of the
// result, which itself is the kind of the second argument of select.
type Signature struct {
	Args   []Kind
	Result Kind
}

// Same marks an argument or result whose kind follows select's branches.
const Same Kind = -1

// Intrinsics are the calls with fixed meaning in every backend.
var Intrinsics = map[string]Signature{
	"mul_add":   {Args: []Kind{Float, Float, Float}, Result: Float},
	"round":     {Args: []Kind{Float}, Result: Float},
	"abs":       {Args: []Kind{Float}, Result: Float},
	"sqrt":      {Args: []Kind{Float}, Result: Float},
	"min":       {Args: []Kind{Float, Float}, Result: Float},
	"max":       {Args: []Kind{Float, Float}, Result: Float},
	"select":    {Args: []Kind{Bool, Same, Same}, Result: Same},
	"to_bits":   {Args: []Kind{Float}, Result: Int},
	"from_bits": {Args: []Kind{Int}, Result: Float},
	"to_int":    {Args: []Kind{Float}, Result: Int},
	"to_float":  {Args: []Kind{Int}, Result: Float},
	"splat":     {Args: []Kind{Float}, Result: Float},
}

// IsIntrinsic reports whether name is an intrinsic call.
func IsIntrinsic(name string) bool {
	_, ok := Intrinsics[name]
	return ok
}

// ErrKind reports an ill-typed function body.
var ErrKind = errors.New("ir: kind mismatch")

// KindError locates a kind mismatch.
type KindError struct {
	Func string
	Expr expr.Expr
	Msg  string
}

func (e *KindError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Func, expr.String(e.Expr), e.Msg)
}

func (e *KindError) Unwrap() error { return ErrKind }

// Typing is the result of checking a function: the kind of every local.
type Typing struct {
	fn     *Function
	locals map[string]Kind
	lookup map[string]*Function
}

// Local returns the kind of a parameter or let-bound name.
func (t *Typing) Local(name string) Kind { return t.locals[name] }

// Kind returns the kind of e in the function's scope. It returns Invalid
// for expressions that do not check.
func (t *Typing) Kind(e expr.Expr) Kind {
	k, err := t.kindOf(e)
	if err != nil {
		return Invalid
	}
	return k
}

// Check infers the kind of every local of fn and verifies that every
// operator and call is applied to operands of the right kind. Calls that
// are not intrinsics must name a function in lookup, unless lookup is nil,
// in which case they are assumed to map floats to one float.
func Check(fn *Function, lookup map[string]*Function) (*Typing, error) {
	t := &Typing{fn: fn, locals: map[string]Kind{}, lookup: lookup}
	for _, p := range fn.Params {
		t.locals[p.Name] = Float
	}
	for i, s := range fn.Body {
		switch s := s.(type) {
		case *Let:
			if _, dup := t.locals[s.Name]; dup {
				return nil, &KindError{Func: fn.Name, Expr: expr.NewVar(s.Name), Msg: "bound twice"}
			}
			k, err := t.kindOf(s.Value)
			if err != nil {
				return nil, err
			}
			t.locals[s.Name] = k
		case *Return:
			if i != len(fn.Body)-1 {
				return nil, &KindError{Func: fn.Name, Msg: "return before end of body"}
			}
			if len(s.Values) != fn.Results {
				return nil, &KindError{Func: fn.Name, Msg: fmt.Sprintf("returns %d values, want %d", len(s.Values), fn.Results)}
			}
			for _, v := range s.Values {
				k, err := t.kindOf(v)
				if err != nil {
					return nil, err
				}
				if k != Float {
					return nil, t.errorf(v, "returns %s, want float", k)
				}
			}
		}
	}
	if _, err := fn.Returns(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Typing) errorf(e expr.Expr, format string, args ...any) error {
	return &KindError{Func: t.fn.Name, Expr: e, Msg: fmt.Sprintf(format, args...)}
}

func (t *Typing) kindOf(e expr.Expr) (Kind, error) {
	switch n := e.(type) {
	case *expr.Const:
		return Float, nil
	case *expr.Int:
		return Int, nil
	case *expr.Var:
		k, ok := t.locals[n.Name]
		if !ok {
			return Invalid, t.errorf(e, "undefined")
		}
		return k, nil

	case *expr.Unary:
		k, err := t.kindOf(n.X)
		if err != nil {
			return Invalid, err
		}
		switch {
		case n.Op == expr.OpNot && k == Bool:
			return Bool, nil
		case n.Op == expr.OpNeg && (k == Float || k == Int):
			return k, nil
		}
		return Invalid, t.errorf(e, "%s applied to %s", n.Op, k)

	case *expr.Binary:
		x, err := t.kindOf(n.X)
		if err != nil {
			return Invalid, err
		}
		y, err := t.kindOf(n.Y)
		if err != nil {
			return Invalid, err
		}
		switch {
		case n.Op.IsLogical():
			if x == Bool && y == Bool {
				return Bool, nil
			}
		case n.Op.IsComparison():
			if x == y && x != Bool {
				return Bool, nil
			}
		case n.Op == expr.OpShl || n.Op == expr.OpShr:
			if _, lit := n.Y.(*expr.Int); x == Int && lit {
				return Int, nil
			}
			return Invalid, t.errorf(e, "shift needs an int and an integer literal")
		case n.Op.IsBitwise():
			if x == Int && y == Int {
				return Int, nil
			}
		default:
			if x == y && (x == Float || x == Int) {
				return x, nil
			}
		}
		return Invalid, t.errorf(e, "%s %s %s", x, n.Op, y)

	case *expr.Call:
		return t.callKind(n)
	}
	return Invalid, t.errorf(e, "unsupported node %T", e)
}

func (t *Typing) callKind(c *expr.Call) (Kind, error) {
	args := make([]Kind, len(c.Args))
	for i, a := range c.Args {
		k, err := t.kindOf(a)
		if err != nil {
			return Invalid, err
		}
		args[i] = k
	}

	if sig, ok := Intrinsics[c.Name]; ok {
		if len(args) != len(sig.Args) {
			return Invalid, t.errorf(c, "takes %d arguments", len(sig.Args))
		}
		same := Invalid
		for i, want := range sig.Args {
			if want == Same {
				if same == Invalid {
					same = args[i]
				}
				want = same
			}
			if args[i] != want {
				return Invalid, t.errorf(c, "argument %d is %s, want %s", i+1, args[i], want)
			}
		}
		if sig.Result == Same {
			return same, nil
		}
		return sig.Result, nil
	}

	if strings.HasPrefix(c.Name, "std.") {
		return Invalid, t.errorf(c, "reference functions are only allowed in tests")
	}
	for i, k := range args {
		if k != Float {
			return Invalid, t.errorf(c, "argument %d is %s, want float", i+1, k)
		}
	}
	if t.lookup == nil {
		return Float, nil
	}
	callee, ok := t.lookup[c.Name]
	if !ok {
		return Invalid, t.errorf(c, "call of unknown function")
	}
	if len(callee.Params) != len(args) {
		return Invalid, t.errorf(c, "%s takes %d arguments", callee.Name, len(callee.Params))
	}
	if callee.Results != 1 {
		return Invalid, t.errorf(c, "%s returns %d values", callee.Name, callee.Results)
	}
	if callee.Type != t.fn.Type {
		return Invalid, t.errorf(c, "%s is %s, caller is %s", callee.Name, callee.Type, t.fn.Type)
	}
	return Float, nil
}

// CheckAll checks every function of items against the others and returns
// the typings by function name.
func CheckAll(items []Item) (map[string]*Typing, error) {
	fns := Functions(items)
	lookup := Index(fns)
	out := make(map[string]*Typing, len(fns))
	for _, fn := range fns {
		ty, err := Check(fn, lookup)
		if err != nil {
			return nil, err
		}
		out[fn.Name] = ty
	}
	return out, nil
}
