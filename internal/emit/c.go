package emit

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ajroetker/libmgen/internal/expr"
	"github.com/ajroetker/libmgen/internal/ir"
)

// CPreamble opens every C translation unit.
const CPreamble = `#include<math.h>

inline float mul_add(float a, float b, float c) {
    return a * b + c;
}

inline float from_bits(unsigned x) {
    union {
        float f;
        unsigned x;
    } u;
    u.x = x;
    return u.f;
}

typedef float f32;

`

// cHelpers follow the preamble and cover the 64-bit forms.
const cHelpers = `static inline int to_bits(float x) {
    union {
        float f;
        int x;
    } u;
    u.f = x;
    return u.x;
}

static inline double from_bits64(unsigned long long x) {
    union {
        double f;
        unsigned long long x;
    } u;
    u.x = x;
    return u.f;
}

static inline long long to_bits64(double x) {
    union {
        double f;
        long long x;
    } u;
    u.f = x;
    return u.x;
}

static inline double mul_add64(double a, double b, double c) {
    return a * b + c;
}

typedef double f64;

`

type cBackend struct {
	opts Options
}

func (b *cBackend) Language() Language { return C }

func (b *cBackend) Files(items []ir.Item) ([]File, error) {
	src, err := b.Render(items)
	if err != nil {
		return nil, err
	}
	return []File{{Suffix: ".c", Content: src}}, nil
}

func (b *cBackend) Render(items []ir.Item) (string, error) {
	for _, it := range items {
		switch it := it.(type) {
		case *ir.Function:
			if it.Type.IsVector() {
				return "", &UnsupportedError{Lang: C, Item: it.Name, What: "vector type " + it.Type.String()}
			}
		case *ir.TestCase:
			if it.Type.IsVector() {
				return "", &UnsupportedError{Lang: C, Item: it.Name, What: "vector type " + it.Type.String()}
			}
		}
	}
	typings, err := prepare(items)
	if err != nil {
		return "", err
	}

	t := &cWriter{buf: &bytes.Buffer{}, opts: b.opts, typings: typings}
	t.buf.WriteString(CPreamble)
	t.buf.WriteString(cHelpers)
	fns := ir.Functions(items)
	for _, fn := range fns {
		if err := t.function(fn); err != nil {
			return "", err
		}
	}
	index := ir.Index(fns)
	for _, tc := range ir.Tests(items) {
		if err := t.test(tc, index[tc.Func]); err != nil {
			return "", err
		}
	}
	return t.buf.String(), nil
}

// cWriter transliterates items into C text.
type cWriter struct {
	buf     *bytes.Buffer
	indent  int
	opts    Options
	typings map[string]*ir.Typing
}

func (t *cWriter) writef(format string, args ...any) {
	for range t.indent {
		t.buf.WriteString("    ")
	}
	fmt.Fprintf(t.buf, format, args...)
}

func (t *cWriter) name(routine string) string { return t.opts.Prefix + routine }

func cFloat(bits int) string { return fmt.Sprintf("f%d", bits) }

func cInt(bits int) string {
	if bits == 64 {
		return "long long"
	}
	return "int"
}

// cReserved holds the routine names that math.h or the preamble already
// declare.
var cReserved = func() map[string]bool {
	m := map[string]bool{
		"mul_add": true, "from_bits": true, "to_bits": true,
		"mul_add64": true, "from_bits64": true, "to_bits64": true,
	}
	for _, f := range ir.Std {
		m[f.C] = true
	}
	for _, fns := range cMath {
		m[fns[0]], m[fns[1]] = true, true
	}
	return m
}()

func (t *cWriter) function(fn *ir.Function) error {
	if name := t.name(fn.Name); cReserved[name] {
		return &UnsupportedError{Lang: C, Item: fn.Name, What: "name " + name + ", which math.h declares; set a prefix"}
	}
	l := &cLower{item: fn.Name, ty: t.typings[fn.Name], bits: fn.Type.Bits(), prefix: t.opts.Prefix}
	ft := cFloat(l.bits)

	var params []string
	for _, p := range fn.Params {
		params = append(params, ft+" "+p.Name)
	}
	ret := ft
	if fn.Results > 1 {
		ret = "void"
		for i := range fn.Results {
			params = append(params, fmt.Sprintf("%s *r%d", ft, i))
		}
	}
	if fn.Doc != "" {
		t.writef("/* %s %s */\n", fn.Name, fn.Doc)
	}
	t.writef("%s %s(%s) {\n", ret, t.name(fn.Name), strings.Join(params, ", "))
	t.indent++
	for _, let := range liveLets(fn) {
		v, err := l.expr(let.Value)
		if err != nil {
			return err
		}
		typ := ft
		switch l.ty.Kind(let.Value) {
		case ir.Int:
			typ = cInt(l.bits)
		case ir.Bool:
			typ = "int"
		}
		t.writef("const %s %s = %s;\n", typ, let.Name, v)
	}
	r, err := fn.Returns()
	if err != nil {
		return err
	}
	if fn.Results == 1 {
		v, err := l.expr(r.Values[0])
		if err != nil {
			return err
		}
		t.writef("return %s;\n", v)
	} else {
		for i, e := range r.Values {
			v, err := l.expr(e)
			if err != nil {
				return err
			}
			t.writef("*r%d = %s;\n", i, v)
		}
	}
	t.indent--
	t.writef("}\n\n")
	return nil
}

// test renders int test_x(void), which returns the number of samples
// whose relative error exceeds the tolerance.
func (t *cWriter) test(tc *ir.TestCase, fn *ir.Function) error {
	if fn == nil {
		return fmt.Errorf("emit c: %s: no function %s", tc.Name, tc.Func)
	}
	ref := &cLower{item: tc.Name, bits: 64, prefix: t.opts.Prefix}
	ft := cFloat(tc.Type.Bits())
	exprs := []expr.Expr{tc.Lo, tc.Hi, tc.Tolerance, tc.Reference}
	vals := make([]string, len(exprs))
	for i, e := range exprs {
		s, err := ref.expr(e)
		if err != nil {
			return err
		}
		vals[i] = s
	}
	lo, hi, tol, want := vals[0], vals[1], vals[2], vals[3]
	var args []string
	for _, a := range tc.Candidate.Args {
		s, err := ref.expr(a)
		if err != nil {
			return err
		}
		args = append(args, fmt.Sprintf("(%s)(%s)", ft, s))
	}

	t.writef("int %s(void) {\n", tc.Name)
	t.indent++
	t.writef("const double lo = %s;\n", lo)
	t.writef("const double hi = %s;\n", hi)
	t.writef("const double tol = %s;\n", tol)
	t.writef("int failures = 0;\n")
	t.writef("for (int i = 0; i <= %d; ++i) {\n", tc.Samples)
	t.indent++
	t.writef("const double x = (%s)(lo + (hi - lo) * i / %d);\n", ft, tc.Samples)
	t.writef("const double want = %s;\n", want)
	t.writef("if (!isfinite(want)) {\n")
	t.indent++
	t.writef("continue;\n")
	t.indent--
	t.writef("}\n")
	if fn.Results == 1 {
		t.writef("const double got = %s(%s);\n", t.name(tc.Func), strings.Join(args, ", "))
	} else {
		var outs []string
		for i := range fn.Results {
			outs = append(outs, fmt.Sprintf("r%d", i))
			args = append(args, fmt.Sprintf("&r%d", i))
		}
		t.writef("%s %s;\n", ft, strings.Join(outs, ", "))
		t.writef("%s(%s);\n", t.name(tc.Func), strings.Join(args, ", "))
		t.writef("const double got = r%d;\n", tc.Result)
	}
	t.writef("const double err = fabs(got - want) / fmax(1.0, fabs(want));\n")
	t.writef("if (!(err <= tol)) {\n")
	t.indent++
	t.writef("++failures;\n")
	t.indent--
	t.writef("}\n")
	t.indent--
	t.writef("}\n")
	t.writef("return failures;\n")
	t.indent--
	t.writef("}\n\n")
	return nil
}

// cLower renders expressions as C text at one float width.
type cLower struct {
	item   string
	ty     *ir.Typing
	bits   int
	prefix string
}

func (l *cLower) unsupported(format string, args ...any) error {
	return &UnsupportedError{Lang: C, Item: l.item, What: fmt.Sprintf(format, args...)}
}

// cPrec is the C binding strength of a binary operator.
var cPrec = map[expr.Op]int{
	expr.OpMul:  10,
	expr.OpQuo:  10,
	expr.OpAdd:  9,
	expr.OpSub:  9,
	expr.OpShl:  8,
	expr.OpShr:  8,
	expr.OpLss:  7,
	expr.OpLeq:  7,
	expr.OpGtr:  7,
	expr.OpGeq:  7,
	expr.OpEql:  6,
	expr.OpNeq:  6,
	expr.OpAnd:  5,
	expr.OpOr:   3,
	expr.OpLAnd: 2,
	expr.OpLOr:  1,
}

func (l *cLower) intLit(v uint64) string {
	s := signedLiteral(v, l.bits)
	suffix := ""
	if l.bits == 64 {
		suffix = "LL"
	}
	switch {
	case s < 0:
		return fmt.Sprintf("(-%#x%s)", uint64(-s), suffix)
	case s > 0xff:
		return fmt.Sprintf("%#x%s", s, suffix)
	}
	return fmt.Sprint(s)
}

func (l *cLower) operand(e expr.Expr, p int, right bool) (string, error) {
	s, err := l.expr(e)
	if err != nil {
		return "", err
	}
	if b, ok := e.(*expr.Binary); ok {
		cp := cPrec[b.Op]
		if cp < p || (right && cp == p) {
			return "(" + s + ")", nil
		}
	}
	return s, nil
}

func (l *cLower) expr(e expr.Expr) (string, error) {
	switch n := e.(type) {
	case *expr.Const:
		return "", fmt.Errorf("%w in %s: %s", ErrUnquantized, l.item, n)
	case *expr.Int:
		return l.intLit(n.Value), nil
	case *expr.Var:
		return n.Name, nil
	case *expr.Unary:
		x, err := l.expr(n.X)
		if err != nil {
			return "", err
		}
		switch n.X.(type) {
		case *expr.Binary, *expr.Unary:
			x = "(" + x + ")"
		}
		return string(n.Op) + x, nil
	case *expr.Binary:
		p, ok := cPrec[n.Op]
		if !ok {
			return "", l.unsupported("operator %s", n.Op)
		}
		x, err := l.operand(n.X, p, false)
		if err != nil {
			return "", err
		}
		y, err := l.operand(n.Y, p, true)
		if err != nil {
			return "", err
		}
		return x + " " + string(n.Op) + " " + y, nil
	case *expr.Call:
		return l.call(n)
	}
	return "", l.unsupported("node %T", e)
}

// cMath maps intrinsics onto math.h by width.
var cMath = map[string][2]string{
	"round": {"roundf", "round"},
	"abs":   {"fabsf", "fabs"},
	"sqrt":  {"sqrtf", "sqrt"},
	"min":   {"fminf", "fmin"},
	"max":   {"fmaxf", "fmax"},
}

func (l *cLower) call(c *expr.Call) (string, error) {
	if c.Name == "splat" {
		return "", l.unsupported("splat")
	}
	if c.Name == "from_bits" && len(c.Args) == 1 {
		if lit, ok := c.Args[0].(*expr.Int); ok {
			if l.bits == 64 {
				return fmt.Sprintf("from_bits64(0x%016xULL)", lit.Value), nil
			}
			return fmt.Sprintf("from_bits(0x%08x)", lit.Value), nil
		}
	}
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		s, err := l.expr(a)
		if err != nil {
			return "", err
		}
		args[i] = s
	}
	list := strings.Join(args, ", ")

	if std, ok := stdFunc(c.Name); ok {
		return std.C + "(" + list + ")", nil
	}
	if !ir.IsIntrinsic(c.Name) {
		return l.prefix + c.Name + "(" + list + ")", nil
	}
	if len(args) != len(ir.Intrinsics[c.Name].Args) {
		return "", l.unsupported("%s with %d arguments", c.Name, len(args))
	}
	wide := l.bits == 64
	if fns, ok := cMath[c.Name]; ok {
		if wide {
			return fns[1] + "(" + list + ")", nil
		}
		return fns[0] + "(" + list + ")", nil
	}
	switch c.Name {
	case "mul_add", "from_bits", "to_bits":
		if wide {
			return c.Name + "64(" + list + ")", nil
		}
		return c.Name + "(" + list + ")", nil
	case "to_int":
		return fmt.Sprintf("(%s)(%s)", cInt(l.bits), list), nil
	case "to_float":
		return fmt.Sprintf("(%s)(%s)", cFloat(l.bits), list), nil
	case "select":
		return fmt.Sprintf("(%s ? %s : %s)", args[0], args[1], args[2]), nil
	}
	return "", l.unsupported("intrinsic %s", c.Name)
}
