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

package numeric

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/cockroachdb/apd/v3"
)

// ErrRange reports a decimal that has no finite binary float counterpart.
var ErrRange = errors.New("numeric: value out of range for float width")

// RoundFloat rounds d to the nearest IEEE-754 value of the given width
// (32 or 64) and returns it widened to float64. Rounding is
// round-to-nearest-even on the exact decimal text, so the result does not
// depend on any intermediate binary conversion.
func RoundFloat(d *Decimal, bits int) (float64, error) {
	if d.Form != apd.Finite {
		return 0, fmt.Errorf("%w: %s", ErrRange, d.String())
	}
	f, err := strconv.ParseFloat(d.String(), bits)
	if err != nil {
		return 0, fmt.Errorf("%w: %s (%d-bit)", ErrRange, d.String(), bits)
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%w: %s (%d-bit)", ErrRange, d.String(), bits)
	}
	return f, nil
}

// Float32Bits returns the binary32 bit pattern nearest to d.
func Float32Bits(d *Decimal) (uint32, error) {
	f, err := RoundFloat(d, 32)
	if err != nil {
		return 0, err
	}
	return math.Float32bits(float32(f)), nil
}

// Float64Bits returns the binary64 bit pattern nearest to d.
func Float64Bits(d *Decimal) (uint64, error) {
	f, err := RoundFloat(d, 64)
	if err != nil {
		return 0, err
	}
	return math.Float64bits(f), nil
}

// Bits returns the bit pattern of d rounded to the given width, widened to
// uint64.
func Bits(d *Decimal, bits int) (uint64, error) {
	if bits == 32 {
		b, err := Float32Bits(d)
		return uint64(b), err
	}
	return Float64Bits(d)
}

// FromBits decodes a bit pattern of the given width to a decimal that
// rounds back to the same pattern.
func FromBits(pattern uint64, bits int) (*Decimal, error) {
	var f float64
	if bits == 32 {
		f = float64(math.Float32frombits(uint32(pattern)))
	} else {
		f = math.Float64frombits(pattern)
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, fmt.Errorf("%w: pattern %#x", ErrRange, pattern)
	}
	return Parse(strconv.FormatFloat(f, 'g', -1, bits))
}
