package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// String renders e in Go syntax. The output parses back to an equivalent
// tree.
func String(e Expr) string {
	if e == nil {
		return "<nil>"
	}
	return e.String()
}

func (c *Const) String() string {
	s := c.Value.Text('G')
	if !strings.ContainsAny(s, ".E") {
		s += ".0"
	}
	return s
}

func (i *Int) String() string {
	if i.Value >= 1<<16 {
		return fmt.Sprintf("0x%x", i.Value)
	}
	return strconv.FormatUint(i.Value, 10)
}

func (v *Var) String() string { return v.Name }

func (u *Unary) String() string {
	return string(u.Op) + operand(u.X, unaryPrec, false)
}

func (b *Binary) String() string {
	p := b.Op.Precedence()
	var sb strings.Builder
	sb.WriteString(operand(b.X, p, false))
	if p >= 5 {
		sb.WriteString(string(b.Op))
	} else {
		sb.WriteString(" " + string(b.Op) + " ")
	}
	sb.WriteString(operand(b.Y, p, true))
	return sb.String()
}

func (c *Call) String() string {
	var sb strings.Builder
	sb.WriteString(c.Name)
	sb.WriteByte('(')
	for i, a := range c.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(String(a))
	}
	sb.WriteByte(')')
	return sb.String()
}

const unaryPrec = 6

// operand renders e as a child of an operator with precedence p, adding
// parentheses where Go's left-associative precedence rules require them.
func operand(e Expr, p int, right bool) string {
	s := String(e)
	cp := unaryPrec
	switch n := e.(type) {
	case *Binary:
		cp = n.Op.Precedence()
	case *Const:
		if n.Value.Negative && p == unaryPrec {
			return "(" + s + ")"
		}
	case *Unary:
		if p == unaryPrec {
			return "(" + s + ")"
		}
	}
	if cp < p || (right && cp == p) {
		return "(" + s + ")"
	}
	return s
}
