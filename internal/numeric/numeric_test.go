package numeric

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestNumDigitsFor(t *testing.T) {
	tests := []struct {
		bits int
		want int
	}{
		{16, 12},
		{32, 24},
		{64, 40},
	}
	for _, tt := range tests {
		if got := NumDigitsFor(tt.bits); got != tt.want {
			t.Errorf("NumDigitsFor(%d) = %d, want %d", tt.bits, got, tt.want)
		}
	}
}

func TestPi(t *testing.T) {
	c := NewContext(30)
	const want = "3.141592653589793238462643383279"
	if got := c.Pi().String(); !strings.HasPrefix(got, want) {
		t.Errorf("Pi() = %s, want prefix %s", got, want)
	}
}

func TestTranscendentals(t *testing.T) {
	c := NewContext(30)
	tests := []struct {
		name string
		fn   func(*Decimal) (*Decimal, error)
		arg  float64
		want float64
	}{
		{"sin", c.Sin, 0.5, math.Sin(0.5)},
		{"sin_large", c.Sin, 100, math.Sin(100)},
		{"sin_neg", c.Sin, -2.75, math.Sin(-2.75)},
		{"cos", c.Cos, 3, math.Cos(3)},
		{"tan", c.Tan, 1.25, math.Tan(1.25)},
		{"atan", c.Atan, 0.3, math.Atan(0.3)},
		{"atan_big", c.Atan, -40, math.Atan(-40)},
		{"asin", c.Asin, 0.7, math.Asin(0.7)},
		{"asin_one", c.Asin, 1, math.Pi / 2},
		{"acos", c.Acos, -0.2, math.Acos(-0.2)},
		{"exp", c.Exp, 2.5, math.Exp(2.5)},
		{"exp2", c.Exp2, -3.5, math.Exp2(-3.5)},
		{"ln", c.Ln, 7, math.Log(7)},
		{"log2", c.Log2, 10, math.Log2(10)},
		{"log10", c.Log10, 0.03, math.Log10(0.03)},
		{"sqrt", c.Sqrt, 2, math.Sqrt2},
		{"cbrt", c.Cbrt, -27.5, math.Cbrt(-27.5)},
		{"sinh", c.Sinh, 0.75, math.Sinh(0.75)},
		{"cosh", c.Cosh, -1.5, math.Cosh(-1.5)},
		{"tanh", c.Tanh, -0.4, math.Tanh(-0.4)},
		{"asinh", c.Asinh, -3, math.Asinh(-3)},
		{"acosh", c.Acosh, 2, math.Acosh(2)},
		{"atanh", c.Atanh, 0.5, math.Atanh(0.5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, err := FromFloat64(tt.arg)
			if err != nil {
				t.Fatalf("FromFloat64(%v): %v", tt.arg, err)
			}
			d, err := tt.fn(x)
			if err != nil {
				t.Fatalf("%s(%v): %v", tt.name, tt.arg, err)
			}
			got, err := d.Float64()
			if err != nil {
				t.Fatalf("Float64(%s): %v", d, err)
			}
			if diff := math.Abs(got - tt.want); diff > 4e-16*math.Max(1, math.Abs(tt.want)) {
				t.Errorf("%s(%v) = %v, want %v (diff %g)", tt.name, tt.arg, got, tt.want, diff)
			}
		})
	}
}

func TestUndefined(t *testing.T) {
	c := NewContext(20)
	tests := []struct {
		name string
		fn   func() (*Decimal, error)
	}{
		{"ln_zero", func() (*Decimal, error) { return c.Ln(FromInt64(0)) }},
		{"ln_negative", func() (*Decimal, error) { return c.Ln(FromInt64(-1)) }},
		{"sqrt_negative", func() (*Decimal, error) { return c.Sqrt(FromInt64(-4)) }},
		{"asin_outside", func() (*Decimal, error) { return c.Asin(FromInt64(2)) }},
		{"acosh_below_one", func() (*Decimal, error) { return c.Acosh(MustParse("0.5")) }},
		{"atanh_one", func() (*Decimal, error) { return c.Atanh(FromInt64(1)) }},
		{"quo_zero", func() (*Decimal, error) { return c.Quo(FromInt64(1), FromInt64(0)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := tt.fn()
			if !errors.Is(err, ErrUndefined) {
				t.Errorf("got (%v, %v), want ErrUndefined", d, err)
			}
		})
	}
}

func TestRound(t *testing.T) {
	c := NewContext(20)
	tests := []struct {
		in, want string
	}{
		{"2.5", "3"},
		{"-2.5", "-3"},
		{"0.49", "0"},
		{"-7.51", "-8"},
		{"12", "12"},
	}
	for _, tt := range tests {
		got, err := c.Round(MustParse(tt.in))
		if err != nil {
			t.Fatalf("Round(%s): %v", tt.in, err)
		}
		if got.Cmp(MustParse(tt.want)) != 0 {
			t.Errorf("Round(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestFloatBits(t *testing.T) {
	tests := []struct {
		in   string
		bits int
		want uint64
	}{
		{"1", 32, 0x3f800000},
		{"0.1", 32, 0x3dcccccd},
		{"-2", 32, 0xc0000000},
		{"3.14159265358979323846264338327950288", 32, 0x40490fdb},
		{"0.1", 64, 0x3fb999999999999a},
		{"3.14159265358979323846264338327950288", 64, 0x400921fb54442d18},
		{"0.5", 64, 0x3fe0000000000000},
	}
	for _, tt := range tests {
		got, err := Bits(MustParse(tt.in), tt.bits)
		if err != nil {
			t.Fatalf("Bits(%s, %d): %v", tt.in, tt.bits, err)
		}
		if got != tt.want {
			t.Errorf("Bits(%s, %d) = %#x, want %#x", tt.in, tt.bits, got, tt.want)
		}
	}
}

func TestFloatBitsRoundTrip(t *testing.T) {
	for _, s := range []string{"0.1", "1e-40", "123456.789", "-0.333333333333333333333"} {
		for _, bits := range []int{32, 64} {
			pattern, err := Bits(MustParse(s), bits)
			if err != nil {
				t.Fatalf("Bits(%s, %d): %v", s, bits, err)
			}
			back, err := FromBits(pattern, bits)
			if err != nil {
				t.Fatalf("FromBits(%#x, %d): %v", pattern, bits, err)
			}
			again, err := Bits(back, bits)
			if err != nil {
				t.Fatalf("Bits(%s, %d): %v", back, bits, err)
			}
			if again != pattern {
				t.Errorf("%s at %d bits: %#x -> %s -> %#x", s, bits, pattern, back, again)
			}
		}
	}
}

func TestFloatBitsRange(t *testing.T) {
	tests := []struct {
		in   string
		bits int
	}{
		{"1e39", 32},
		{"-4e38", 32},
		{"1e309", 64},
	}
	for _, tt := range tests {
		if _, err := Bits(MustParse(tt.in), tt.bits); !errors.Is(err, ErrRange) {
			t.Errorf("Bits(%s, %d) error = %v, want ErrRange", tt.in, tt.bits, err)
		}
	}
}
