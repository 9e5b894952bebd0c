package oracle

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ajroetker/libmgen/internal/ir"
	"github.com/ajroetker/libmgen/internal/workerpool"
)

// Stats summarizes the error of a function over a test case's samples,
// in units of 2^-mant scaled by max(1, |want|).
type Stats struct {
	Max    float64
	Mean   float64
	StdDev float64
	// Worst is the sample at which Max was seen.
	Worst float64
	// Samples counts the points compared; Skipped counts the points whose
	// reference value is not finite.
	Samples int
	Skipped int
}

// Pass reports whether the maximum error is within the case's tolerance.
func (s Stats) Pass(tc *ir.TestCase) bool {
	return s.Max <= float64(tc.MaxULPs)
}

func (s Stats) String() string {
	return fmt.Sprintf("max %.3g ulp at %g, mean %.3g, stddev %.3g over %d samples",
		s.Max, s.Worst, s.Mean, s.StdDev, s.Samples)
}

// Measure runs tc through the IR interpreter with fns in scope and
// reports the error distribution. Samples are evaluated on pool, which
// may be nil.
func Measure(pool *workerpool.Pool, tc *ir.TestCase, fns []*ir.Function) (Stats, error) {
	if tc.Type.Bits() == 32 {
		return measure(pool, ir.NewInterp[float32](fns), tc)
	}
	return measure(pool, ir.NewInterp[float64](fns), tc)
}

type sample struct {
	x, err float64
	skip   bool
}

func measure[T float32 | float64](pool *workerpool.Pool, cand *ir.Interp[T], tc *ir.TestCase) (Stats, error) {
	ref := ir.NewInterp[float64](nil)
	lo, err := ref.Eval(tc.Lo, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("%s: lo: %w", tc.Name, err)
	}
	hi, err := ref.Eval(tc.Hi, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("%s: hi: %w", tc.Name, err)
	}
	if tc.Samples <= 0 {
		return Stats{}, fmt.Errorf("%w: %s: no samples", ErrCase, tc.Name)
	}
	ulp := math.Ldexp(1, -tc.Type.MantissaBits())

	points, err := workerpool.Map(pool, tc.Samples+1, func(i int) (sample, error) {
		x := float64(T(lo + (hi-lo)*float64(i)/float64(tc.Samples)))
		vars := map[string]float64{ir.SampleVar: x}
		want, err := ref.Eval(tc.Reference, vars)
		if err != nil {
			return sample{}, fmt.Errorf("%s: reference at %g: %w", tc.Name, x, err)
		}
		if math.IsNaN(want) || math.IsInf(want, 0) {
			return sample{x: x, skip: true}, nil
		}
		args := make([]T, len(tc.Candidate.Args))
		for j, a := range tc.Candidate.Args {
			v, err := ref.Eval(a, vars)
			if err != nil {
				return sample{}, fmt.Errorf("%s: argument %d at %g: %w", tc.Name, j+1, x, err)
			}
			args[j] = T(v)
		}
		out, err := cand.Call(tc.Candidate.Name, args...)
		if err != nil {
			return sample{}, fmt.Errorf("%s: at %g: %w", tc.Name, x, err)
		}
		if tc.Result >= len(out) {
			return sample{}, fmt.Errorf("%w: %s: result %d of %d", ErrCase, tc.Name, tc.Result, len(out))
		}
		diff := math.Abs(float64(out[tc.Result])-want) / max(1, math.Abs(want)) / ulp
		if math.IsNaN(diff) {
			diff = math.Inf(1)
		}
		return sample{x: x, err: diff}, nil
	})
	if err != nil {
		return Stats{}, err
	}

	var s Stats
	errs := make([]float64, 0, len(points))
	xs := make([]float64, 0, len(points))
	for _, p := range points {
		if p.skip {
			s.Skipped++
			continue
		}
		errs = append(errs, p.err)
		xs = append(xs, p.x)
	}
	s.Samples = len(errs)
	if s.Samples == 0 {
		return s, nil
	}
	worst := floats.MaxIdx(errs)
	s.Max, s.Worst = errs[worst], xs[worst]
	s.Mean = stat.Mean(errs, nil)
	if s.Samples > 1 {
		s.StdDev = stat.StdDev(errs, nil)
	}
	return s, nil
}
