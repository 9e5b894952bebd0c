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

package emit

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/tools/go/ast/astutil"

	"github.com/ajroetker/libmgen/internal/expr"
	"github.com/ajroetker/libmgen/internal/ir"
)

const goHeader = "// Code generated by libmgen. DO NOT EDIT.\n\n"

// selHelper is the scalar lowering of select.
const selHelper = `func sel[T any](c bool, a, b T) T {
	if c {
		return a
	}
	return b
}`

type goBackend struct {
	opts Options
}

func (b *goBackend) Language() Language { return Go }

func (b *goBackend) Render(items []ir.Item) (string, error) {
	typings, err := prepare(items)
	if err != nil {
		return "", err
	}
	f := b.newFile(typings)
	if err := f.addFunctions(ir.Functions(items)); err != nil {
		return "", err
	}
	if err := f.addTests(ir.Tests(items), ir.Functions(items)); err != nil {
		return "", err
	}
	return f.source()
}

// Files returns the functions as ".go" and the tests as "_test.go".
func (b *goBackend) Files(items []ir.Item) ([]File, error) {
	typings, err := prepare(items)
	if err != nil {
		return nil, err
	}
	fns := ir.Functions(items)
	src := b.newFile(typings)
	if err := src.addFunctions(fns); err != nil {
		return nil, err
	}
	text, err := src.source()
	if err != nil {
		return nil, err
	}
	files := []File{{Suffix: ".go", Content: text}}

	tests := ir.Tests(items)
	if len(tests) == 0 {
		return files, nil
	}
	tf := b.newFile(typings)
	if err := tf.addTests(tests, fns); err != nil {
		return nil, err
	}
	text, err = tf.source()
	if err != nil {
		return nil, err
	}
	return append(files, File{Suffix: "_test.go", Content: text}), nil
}

// goFile accumulates the declarations and imports of one Go source file.
type goFile struct {
	opts    Options
	typings map[string]*ir.Typing
	caser   cases.Caser
	imports map[string]bool
	needSel bool
	decls   []string
}

func (b *goBackend) newFile(typings map[string]*ir.Typing) *goFile {
	return &goFile{
		opts:    b.opts,
		typings: typings,
		caser:   cases.Title(language.Und, cases.NoLower),
		imports: map[string]bool{},
	}
}

// goName exports a snake_case routine name: sin_cos becomes SinCos.
func (f *goFile) goName(name string) string {
	parts := strings.Split(name, "_")
	for i, p := range parts {
		parts[i] = f.caser.String(p)
	}
	return strings.Join(parts, "")
}

func (f *goFile) addFunctions(fns []*ir.Function) error {
	for _, fn := range fns {
		decl, err := f.function(fn)
		if err != nil {
			return err
		}
		text, err := nodeString(decl)
		if err != nil {
			return fmt.Errorf("emit go: %s: %w", fn.Name, err)
		}
		if fn.Doc != "" {
			text = "// " + f.goName(fn.Name) + " " + fn.Doc + "\n" + text
		}
		f.decls = append(f.decls, text)
	}
	if f.needSel {
		f.decls = append(f.decls, selHelper)
	}
	return nil
}

func (f *goFile) addTests(tests []*ir.TestCase, fns []*ir.Function) error {
	index := ir.Index(fns)
	for _, tc := range tests {
		text, err := f.test(tc, index[tc.Func])
		if err != nil {
			return err
		}
		f.decls = append(f.decls, text)
	}
	return nil
}

// source parses the assembled declarations, inserts the imports and
// prints the result with gofmt layout.
func (f *goFile) source() (string, error) {
	var b strings.Builder
	b.WriteString(goHeader)
	fmt.Fprintf(&b, "package %s\n", f.opts.Package)
	for _, d := range f.decls {
		b.WriteString("\n")
		b.WriteString(d)
		b.WriteString("\n")
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", b.String(), parser.ParseComments)
	if err != nil {
		return "", fmt.Errorf("emit go: %w", err)
	}
	paths := make([]string, 0, len(f.imports))
	for p := range f.imports {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	for _, p := range paths {
		astutil.AddImport(fset, file, p)
	}
	var out bytes.Buffer
	if err := format.Node(&out, fset, file); err != nil {
		return "", fmt.Errorf("emit go: %w", err)
	}
	return out.String(), nil
}

func nodeString(n ast.Node) (string, error) {
	var buf bytes.Buffer
	if err := format.Node(&buf, token.NewFileSet(), n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (f *goFile) function(fn *ir.Function) (*ast.FuncDecl, error) {
	l := &goLower{file: f, item: fn.Name, ty: f.typings[fn.Name], bits: fn.Type.Bits(), vec: fn.Type.IsVector()}
	ft := l.floatType()

	params := &ast.Field{Type: ft}
	for _, p := range fn.Params {
		params.Names = append(params.Names, ast.NewIdent(p.Name))
	}
	results := &ast.FieldList{}
	for range fn.Results {
		results.List = append(results.List, &ast.Field{Type: l.floatType()})
	}

	body := &ast.BlockStmt{}
	for _, let := range liveLets(fn) {
		v, err := l.expr(let.Value)
		if err != nil {
			return nil, err
		}
		if !l.vec && l.ty.Kind(let.Value) == ir.Int && isLiteral(let.Value) {
			v = conv(l.intName(), v)
		}
		body.List = append(body.List, &ast.AssignStmt{
			Lhs: []ast.Expr{ast.NewIdent(let.Name)},
			Tok: token.DEFINE,
			Rhs: []ast.Expr{v},
		})
	}
	ret, err := fn.Returns()
	if err != nil {
		return nil, err
	}
	rs := &ast.ReturnStmt{}
	for _, v := range ret.Values {
		x, err := l.expr(v)
		if err != nil {
			return nil, err
		}
		rs.Results = append(rs.Results, x)
	}
	body.List = append(body.List, rs)

	return &ast.FuncDecl{
		Name: ast.NewIdent(f.goName(fn.Name)),
		Type: &ast.FuncType{
			Params:  &ast.FieldList{List: []*ast.Field{params}},
			Results: results,
		},
		Body: body,
	}, nil
}

// test renders a sampling loop comparing the function with its float64
// reference.
func (f *goFile) test(tc *ir.TestCase, fn *ir.Function) (string, error) {
	if fn == nil {
		return "", fmt.Errorf("emit go: %s: no function %s", tc.Name, tc.Func)
	}
	f.imports["math"] = true
	f.imports["testing"] = true
	ref := &goLower{file: f, item: tc.Name, bits: 64}
	cand := &goLower{file: f, item: tc.Name, bits: tc.Type.Bits(), vec: tc.Type.IsVector()}

	str := func(e expr.Expr) (string, error) {
		x, err := ref.scalar(e)
		if err != nil {
			return "", err
		}
		return nodeString(x)
	}
	lo, err := str(tc.Lo)
	if err != nil {
		return "", err
	}
	hi, err := str(tc.Hi)
	if err != nil {
		return "", err
	}
	tol, err := str(tc.Tolerance)
	if err != nil {
		return "", err
	}
	want, err := str(tc.Reference)
	if err != nil {
		return "", err
	}

	scalarType := cand.scalarName()
	var args []string
	for _, a := range tc.Candidate.Args {
		s, err := str(a)
		if err != nil {
			return "", err
		}
		if cand.bits == 32 {
			s = "float32(" + s + ")"
		}
		if cand.vec {
			f.imports[f.opts.HwyImport] = true
			s = fmt.Sprintf("hwy.Set[%s](%s)", scalarType, s)
		}
		args = append(args, s)
	}
	lhs := make([]string, fn.Results)
	for i := range lhs {
		lhs[i] = "_"
	}
	lhs[tc.Result] = "r"
	got := "r"
	if cand.vec {
		got = "hwy.GetLane(r, 0)"
	}
	sample := "lo + (hi-lo)*float64(i)/n"
	if cand.bits == 32 {
		sample = "float64(float32(" + sample + "))"
	}
	name := f.goName(tc.Func)

	var b strings.Builder
	fmt.Fprintf(&b, "func %s(t *testing.T) {\n", f.goName(tc.Name))
	fmt.Fprintf(&b, "lo := %s\nhi := %s\ntol := %s\n", lo, hi, tol)
	fmt.Fprintf(&b, "const n = %d\n", tc.Samples)
	b.WriteString("for i := range n + 1 {\n")
	fmt.Fprintf(&b, "x := %s\n", sample)
	fmt.Fprintf(&b, "want := %s\n", want)
	b.WriteString("if math.IsInf(want, 0) || math.IsNaN(want) {\ncontinue\n}\n")
	fmt.Fprintf(&b, "%s := %s(%s)\n", strings.Join(lhs, ", "), name, strings.Join(args, ", "))
	fmt.Fprintf(&b, "got := float64(%s)\n", got)
	b.WriteString("if err := math.Abs(got-want) / max(1, math.Abs(want)); !(err <= tol) {\n")
	fmt.Fprintf(&b, "t.Errorf(\"%s(%%v) = %%v, want %%v\", x, got, want)\n", name)
	b.WriteString("}\n}\n}")
	return b.String(), nil
}

// goLower lowers expressions of one item to Go AST.
type goLower struct {
	file *goFile
	item string
	ty   *ir.Typing
	bits int
	vec  bool
}

func (l *goLower) unsupported(format string, args ...any) error {
	return &UnsupportedError{Lang: Go, Item: l.item, What: fmt.Sprintf(format, args...)}
}

func (l *goLower) scalarName() string { return fmt.Sprintf("float%d", l.bits) }
func (l *goLower) intName() string    { return fmt.Sprintf("int%d", l.bits) }

func (l *goLower) floatType() ast.Expr {
	if !l.vec {
		return ast.NewIdent(l.scalarName())
	}
	l.file.imports[l.file.opts.HwyImport] = true
	return &ast.IndexExpr{X: hwy("Vec"), Index: ast.NewIdent(l.scalarName())}
}

func (l *goLower) math(name string) ast.Expr {
	l.file.imports["math"] = true
	return &ast.SelectorExpr{X: ast.NewIdent("math"), Sel: ast.NewIdent(name)}
}

func hwy(name string) ast.Expr {
	return &ast.SelectorExpr{X: ast.NewIdent("hwy"), Sel: ast.NewIdent(name)}
}

func call(fn ast.Expr, args ...ast.Expr) *ast.CallExpr {
	return &ast.CallExpr{Fun: fn, Args: args}
}

func conv(typ string, x ast.Expr) ast.Expr {
	return call(ast.NewIdent(typ), x)
}

func intLit(v int64) ast.Expr {
	if v < 0 {
		return &ast.UnaryExpr{Op: token.SUB, X: uintLit(uint64(-v))}
	}
	return uintLit(uint64(v))
}

func uintLit(v uint64) *ast.BasicLit {
	s := fmt.Sprint(v)
	if v > 0xff {
		s = fmt.Sprintf("%#x", v)
	}
	return &ast.BasicLit{Kind: token.INT, Value: s}
}

// binary builds x op y, parenthesizing operands that bind looser than op.
func binary(op token.Token, x, y ast.Expr) ast.Expr {
	if bx, ok := x.(*ast.BinaryExpr); ok && bx.Op.Precedence() < op.Precedence() {
		x = &ast.ParenExpr{X: x}
	}
	if by, ok := y.(*ast.BinaryExpr); ok && by.Op.Precedence() <= op.Precedence() {
		y = &ast.ParenExpr{X: y}
	}
	return &ast.BinaryExpr{X: x, Op: op, Y: y}
}

func unary(op token.Token, x ast.Expr) ast.Expr {
	switch x.(type) {
	case *ast.BinaryExpr, *ast.UnaryExpr:
		x = &ast.ParenExpr{X: x}
	}
	return &ast.UnaryExpr{Op: op, X: x}
}

var goTokens = map[expr.Op]token.Token{
	expr.OpAdd:  token.ADD,
	expr.OpSub:  token.SUB,
	expr.OpMul:  token.MUL,
	expr.OpQuo:  token.QUO,
	expr.OpLss:  token.LSS,
	expr.OpLeq:  token.LEQ,
	expr.OpGtr:  token.GTR,
	expr.OpGeq:  token.GEQ,
	expr.OpEql:  token.EQL,
	expr.OpNeq:  token.NEQ,
	expr.OpLAnd: token.LAND,
	expr.OpLOr:  token.LOR,
	expr.OpAnd:  token.AND,
	expr.OpOr:   token.OR,
	expr.OpShl:  token.SHL,
	expr.OpShr:  token.SHR,
}

func (l *goLower) expr(e expr.Expr) (ast.Expr, error) {
	if l.vec {
		return l.vector(e)
	}
	return l.scalar(e)
}

func (l *goLower) scalar(e expr.Expr) (ast.Expr, error) {
	switch n := e.(type) {
	case *expr.Const:
		return nil, fmt.Errorf("%w in %s: %s", ErrUnquantized, l.item, n)
	case *expr.Int:
		return intLit(signedLiteral(n.Value, l.bits)), nil
	case *expr.Var:
		return ast.NewIdent(n.Name), nil
	case *expr.Unary:
		x, err := l.scalar(n.X)
		if err != nil {
			return nil, err
		}
		if n.Op == expr.OpNot {
			return unary(token.NOT, x), nil
		}
		return unary(token.SUB, x), nil
	case *expr.Binary:
		op, ok := goTokens[n.Op]
		if !ok {
			return nil, l.unsupported("operator %s", n.Op)
		}
		x, err := l.scalar(n.X)
		if err != nil {
			return nil, err
		}
		y, err := l.scalar(n.Y)
		if err != nil {
			return nil, err
		}
		return binary(op, x, y), nil
	case *expr.Call:
		return l.scalarCall(n)
	}
	return nil, l.unsupported("node %T", e)
}

func (l *goLower) scalarArgs(c *expr.Call) ([]ast.Expr, error) {
	out := make([]ast.Expr, len(c.Args))
	for i, a := range c.Args {
		x, err := l.scalar(a)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

func (l *goLower) scalarCall(c *expr.Call) (ast.Expr, error) {
	if c.Name == "from_bits" && len(c.Args) == 1 {
		fn := l.math(fmt.Sprintf("Float%dfrombits", l.bits))
		if lit, ok := c.Args[0].(*expr.Int); ok {
			return call(fn, &ast.BasicLit{Kind: token.INT, Value: fmt.Sprintf("0x%0*x", l.bits/4, lit.Value)}), nil
		}
		x, err := l.scalar(c.Args[0])
		if err != nil {
			return nil, err
		}
		return call(fn, conv(fmt.Sprintf("uint%d", l.bits), x)), nil
	}

	args, err := l.scalarArgs(c)
	if err != nil {
		return nil, err
	}
	if std, ok := stdFunc(c.Name); ok {
		return call(l.math(strings.TrimPrefix(std.Go, "math.")), args...), nil
	}
	if !ir.IsIntrinsic(c.Name) {
		return call(ast.NewIdent(l.file.goName(c.Name)), args...), nil
	}
	if len(args) != len(ir.Intrinsics[c.Name].Args) {
		return nil, l.unsupported("%s with %d arguments", c.Name, len(args))
	}

	switch c.Name {
	case "to_bits":
		return conv(l.intName(), call(l.math(fmt.Sprintf("Float%dbits", l.bits)), args[0])), nil
	case "to_int":
		return conv(l.intName(), args[0]), nil
	case "to_float":
		return conv(l.scalarName(), args[0]), nil
	case "round", "abs", "sqrt":
		fn := l.math(l.file.goName(c.Name))
		if l.bits == 32 {
			return conv("float32", call(fn, conv("float64", args[0]))), nil
		}
		return call(fn, args[0]), nil
	case "min", "max":
		return call(ast.NewIdent(c.Name), args...), nil
	case "select":
		l.file.needSel = true
		for i := 1; i < 3; i++ {
			if _, lit := c.Args[i].(*expr.Int); lit {
				args[i] = conv(l.intName(), args[i])
			}
		}
		return call(ast.NewIdent("sel"), args...), nil
	case "mul_add":
		return binary(token.ADD, binary(token.MUL, args[0], args[1]), args[2]), nil
	case "splat":
		return args[0], nil
	}
	return nil, l.unsupported("intrinsic %s", c.Name)
}

// isLiteral reports whether e is built from integer literals alone, so
// that Go would give it the untyped default type.
func isLiteral(e expr.Expr) bool {
	ok := true
	expr.Walk(e, func(n expr.Expr) bool {
		switch n.(type) {
		case *expr.Int, *expr.Unary, *expr.Binary:
		default:
			ok = false
		}
		return ok
	})
	return ok
}

// hasCall reports whether e calls a generated function.
func hasCall(e expr.Expr) bool {
	found := false
	expr.Walk(e, func(n expr.Expr) bool {
		if c, ok := n.(*expr.Call); ok && !ir.IsIntrinsic(c.Name) {
			found = true
		}
		return !found
	})
	return found
}

var vecBinary = map[expr.Op]string{
	expr.OpAdd:  "Add",
	expr.OpSub:  "Sub",
	expr.OpMul:  "Mul",
	expr.OpQuo:  "Div",
	expr.OpLss:  "Less",
	expr.OpLeq:  "LessEqual",
	expr.OpGtr:  "Greater",
	expr.OpGeq:  "GreaterEqual",
	expr.OpEql:  "Equal",
	expr.OpNeq:  "NotEqual",
	expr.OpLAnd: "MaskAnd",
	expr.OpLOr:  "MaskOr",
	expr.OpAnd:  "And",
	expr.OpOr:   "Or",
	expr.OpShl:  "ShiftLeft",
	expr.OpShr:  "ShiftRight",
}

var vecCalls = map[string]string{
	"mul_add": "MulAdd",
	"round":   "Round",
	"abs":     "Abs",
	"sqrt":    "Sqrt",
	"min":     "Min",
	"max":     "Max",
	"select":  "IfThenElse",
}

// vector lowers e onto hwy. Subtrees without variables are computed as
// scalars and broadcast with hwy.Set.
func (l *goLower) vector(e expr.Expr) (ast.Expr, error) {
	l.file.imports[l.file.opts.HwyImport] = true
	if len(expr.Vars(e)) == 0 && !hasCall(e) {
		k := l.ty.Kind(e)
		typ := l.scalarName()
		switch k {
		case ir.Float:
		case ir.Int:
			typ = l.intName()
		default:
			return nil, l.unsupported("constant %s operand %s", k, e)
		}
		s := &goLower{file: l.file, item: l.item, ty: l.ty, bits: l.bits}
		x, err := s.scalar(e)
		if err != nil {
			return nil, err
		}
		return call(&ast.IndexExpr{X: hwy("Set"), Index: ast.NewIdent(typ)}, x), nil
	}

	switch n := e.(type) {
	case *expr.Var:
		return ast.NewIdent(n.Name), nil
	case *expr.Unary:
		x, err := l.vector(n.X)
		if err != nil {
			return nil, err
		}
		if n.Op == expr.OpNot {
			return call(hwy("MaskNot"), x), nil
		}
		return call(hwy("Neg"), x), nil
	case *expr.Binary:
		name, ok := vecBinary[n.Op]
		if !ok {
			return nil, l.unsupported("operator %s", n.Op)
		}
		x, err := l.vector(n.X)
		if err != nil {
			return nil, err
		}
		if n.Op == expr.OpShl || n.Op == expr.OpShr {
			lit, ok := n.Y.(*expr.Int)
			if !ok {
				return nil, l.unsupported("shift by %s", n.Y)
			}
			return call(hwy(name), x, uintLit(lit.Value)), nil
		}
		if n.Op.IsComparison() && l.ty.Kind(n.X) != ir.Float {
			return nil, l.unsupported("%s comparison", l.ty.Kind(n.X))
		}
		y, err := l.vector(n.Y)
		if err != nil {
			return nil, err
		}
		return call(hwy(name), x, y), nil
	case *expr.Call:
		return l.vectorCall(n)
	}
	return nil, l.unsupported("node %T", e)
}

func (l *goLower) vectorCall(c *expr.Call) (ast.Expr, error) {
	if _, ok := stdFunc(c.Name); ok {
		return nil, l.unsupported("reference call %s", c.Name)
	}
	if c.Name == "select" && len(c.Args) == 3 && l.ty.Kind(c.Args[1]) != ir.Float {
		return nil, l.unsupported("select of %s lanes", l.ty.Kind(c.Args[1]))
	}
	if c.Name == "splat" && len(c.Args) == 1 {
		return l.vector(c.Args[0])
	}
	args := make([]ast.Expr, len(c.Args))
	for i, a := range c.Args {
		x, err := l.vector(a)
		if err != nil {
			return nil, err
		}
		args[i] = x
	}
	if !ir.IsIntrinsic(c.Name) {
		return call(ast.NewIdent(l.file.goName(c.Name)), args...), nil
	}
	if name, ok := vecCalls[c.Name]; ok {
		return call(hwy(name), args...), nil
	}

	var name string
	switch c.Name {
	case "to_bits":
		name = fmt.Sprintf("AsInt%d", l.bits)
	case "from_bits":
		name = fmt.Sprintf("AsFloat%d", l.bits)
	case "to_int":
		name = fmt.Sprintf("ConvertToInt%d", l.bits)
	case "to_float":
		name = fmt.Sprintf("ConvertToFloat%d", l.bits)
	default:
		return nil, l.unsupported("intrinsic %s", c.Name)
	}
	return call(hwy(name), args...), nil
}
