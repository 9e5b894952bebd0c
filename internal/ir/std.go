package ir

import "math"

// StdFunc is a reference function callable from tests as std.<name>.
type StdFunc struct {
	// Go is the float64 function in package math.
	Go string
	// C is the double-precision function in math.h.
	C string
	// Arity is the number of arguments.
	Arity int
	// Eval computes the reference value.
	Eval func(args ...float64) float64
}

func unary(f func(float64) float64) func(...float64) float64 {
	return func(a ...float64) float64 { return f(a[0]) }
}

func binary(f func(float64, float64) float64) func(...float64) float64 {
	return func(a ...float64) float64 { return f(a[0], a[1]) }
}

// Std lists the reference functions by their name after "std.".
var Std = map[string]StdFunc{
	"sin":   {"math.Sin", "sin", 1, unary(math.Sin)},
	"cos":   {"math.Cos", "cos", 1, unary(math.Cos)},
	"tan":   {"math.Tan", "tan", 1, unary(math.Tan)},
	"atan":  {"math.Atan", "atan", 1, unary(math.Atan)},
	"asin":  {"math.Asin", "asin", 1, unary(math.Asin)},
	"acos":  {"math.Acos", "acos", 1, unary(math.Acos)},
	"atan2": {"math.Atan2", "atan2", 2, binary(math.Atan2)},
	"exp":   {"math.Exp", "exp", 1, unary(math.Exp)},
	"exp2":  {"math.Exp2", "exp2", 1, unary(math.Exp2)},
	"ln":    {"math.Log", "log", 1, unary(math.Log)},
	"log2":  {"math.Log2", "log2", 1, unary(math.Log2)},
	"log10": {"math.Log10", "log10", 1, unary(math.Log10)},
	"sqrt":  {"math.Sqrt", "sqrt", 1, unary(math.Sqrt)},
	"cbrt":  {"math.Cbrt", "cbrt", 1, unary(math.Cbrt)},
	"sinh":  {"math.Sinh", "sinh", 1, unary(math.Sinh)},
	"cosh":  {"math.Cosh", "cosh", 1, unary(math.Cosh)},
	"tanh":  {"math.Tanh", "tanh", 1, unary(math.Tanh)},
	"asinh": {"math.Asinh", "asinh", 1, unary(math.Asinh)},
	"acosh": {"math.Acosh", "acosh", 1, unary(math.Acosh)},
	"atanh": {"math.Atanh", "atanh", 1, unary(math.Atanh)},
	"hypot": {"math.Hypot", "hypot", 2, binary(math.Hypot)},
	"pow":   {"math.Pow", "pow", 2, binary(math.Pow)},
}
