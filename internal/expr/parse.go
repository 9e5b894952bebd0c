package expr

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"strconv"
	"strings"

	"github.com/ajroetker/libmgen/internal/numeric"
)

// ErrSyntax reports source text that is not an expression of the supported
// subset of Go.
var ErrSyntax = errors.New("expr: unsupported syntax")

var binaryOps = map[token.Token]Op{
	token.ADD:  OpAdd,
	token.SUB:  OpSub,
	token.MUL:  OpMul,
	token.QUO:  OpQuo,
	token.LSS:  OpLss,
	token.LEQ:  OpLeq,
	token.GTR:  OpGtr,
	token.GEQ:  OpGeq,
	token.EQL:  OpEql,
	token.NEQ:  OpNeq,
	token.LAND: OpLAnd,
	token.LOR:  OpLOr,
	token.AND:  OpAnd,
	token.OR:   OpOr,
	token.SHL:  OpShl,
	token.SHR:  OpShr,
}

// selectIdent stands in for the select intrinsic while a template goes
// through go/parser, which reserves select as a keyword.
const selectIdent = "__select"

// Parse converts a Go expression into a tree. Float literals become Const,
// integer literals become Int, identifiers become Var, and calls may name
// a plain identifier or a selector such as std.sin. The keyword select is
// accepted as the name of a call.
func Parse(src string) (Expr, error) {
	node, err := parser.ParseExpr(replaceSelect(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrSyntax, src, err)
	}
	e, err := fromAST(node)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", src, err)
	}
	return e, nil
}

// MustParse is like Parse but panics on error. It is meant for templates
// fixed at compile time.
func MustParse(src string) Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

// replaceSelect substitutes selectIdent for every select keyword token.
func replaceSelect(src string) string {
	if !strings.Contains(src, "select") {
		return src
	}
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(src))
	var s scanner.Scanner
	s.Init(file, []byte(src), nil, 0)

	var b strings.Builder
	last := 0
	for {
		pos, tok, _ := s.Scan()
		if tok == token.EOF {
			break
		}
		if tok == token.SELECT {
			off := file.Offset(pos)
			b.WriteString(src[last:off])
			b.WriteString(selectIdent)
			last = off + len("select")
		}
	}
	b.WriteString(src[last:])
	return b.String()
}

func fromAST(node ast.Expr) (Expr, error) {
	switch n := node.(type) {
	case *ast.ParenExpr:
		return fromAST(n.X)

	case *ast.BasicLit:
		return fromLiteral(n)

	case *ast.Ident:
		if n.Name == selectIdent {
			return nil, fmt.Errorf("%w: select used as a value", ErrSyntax)
		}
		return NewVar(n.Name), nil

	case *ast.UnaryExpr:
		x, err := fromAST(n.X)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case token.ADD:
			return x, nil
		case token.SUB:
			if c, ok := x.(*Const); ok {
				return &Const{Value: new(numeric.Decimal).Neg(c.Value)}, nil
			}
			return NewUnary(OpNeg, x), nil
		case token.NOT:
			return NewUnary(OpNot, x), nil
		}
		return nil, fmt.Errorf("%w: unary %s", ErrSyntax, n.Op)

	case *ast.BinaryExpr:
		op, ok := binaryOps[n.Op]
		if !ok {
			return nil, fmt.Errorf("%w: operator %s", ErrSyntax, n.Op)
		}
		x, err := fromAST(n.X)
		if err != nil {
			return nil, err
		}
		y, err := fromAST(n.Y)
		if err != nil {
			return nil, err
		}
		return NewBinary(op, x, y), nil

	case *ast.CallExpr:
		name, err := callName(n.Fun)
		if err != nil {
			return nil, err
		}
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			if args[i], err = fromAST(a); err != nil {
				return nil, err
			}
		}
		return &Call{Name: name, Args: args}, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrSyntax, node)
}

func callName(fun ast.Expr) (string, error) {
	switch f := fun.(type) {
	case *ast.Ident:
		if f.Name == selectIdent {
			return "select", nil
		}
		return f.Name, nil
	case *ast.SelectorExpr:
		if pkg, ok := f.X.(*ast.Ident); ok {
			return pkg.Name + "." + f.Sel.Name, nil
		}
	}
	return "", fmt.Errorf("%w: call target %T", ErrSyntax, fun)
}

func fromLiteral(lit *ast.BasicLit) (Expr, error) {
	text := strings.ReplaceAll(lit.Value, "_", "")
	switch lit.Kind {
	case token.INT:
		v, err := strconv.ParseUint(text, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: integer %s: %v", ErrSyntax, lit.Value, err)
		}
		return NewInt(v), nil
	case token.FLOAT:
		if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: float %s: %v", ErrSyntax, lit.Value, err)
			}
			d, err := numeric.FromFloat64(f)
			if err != nil {
				return nil, err
			}
			return &Const{Value: d}, nil
		}
		d, err := numeric.Parse(text)
		if err != nil {
			return nil, err
		}
		return &Const{Value: d}, nil
	}
	return nil, fmt.Errorf("%w: literal %s", ErrSyntax, lit.Value)
}
