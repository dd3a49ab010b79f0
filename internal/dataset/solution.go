package dataset

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas/blas32"
)

// Result describes how a computed vector compares with the expected one.
type Result struct {
	Length     int
	Mismatches int
	// FirstIndex is the first mismatching element, or -1.
	FirstIndex int
	Expected   float32
	Got        float32
	// LengthMismatch is set when the vectors differ in length; no elements are compared.
	LengthMismatch bool
}

func (r Result) OK() bool {
	return !r.LengthMismatch && r.Mismatches == 0
}

func (r Result) String() string {
	switch {
	case r.LengthMismatch:
		return "solution length does not match expected length"
	case r.Mismatches == 0:
		return fmt.Sprintf("solution is correct (%d elements)", r.Length)
	default:
		return fmt.Sprintf("%d of %d elements differ; first at index %d: expected %v, got %v",
			r.Mismatches, r.Length, r.FirstIndex, r.Expected, r.Got)
	}
}

// Check compares got with expected element by element. Two values match when
// |e-g| <= tol*max(1, |e|); tol 0 requires exact equality.
func Check(expected, got []float32, tol float64) Result {
	res := Result{Length: len(expected), FirstIndex: -1}
	if len(expected) != len(got) {
		res.LengthMismatch = true
		return res
	}
	for i, e := range expected {
		g := got[i]
		if e == g {
			continue
		}
		diff := math.Abs(float64(e) - float64(g))
		if tol > 0 && diff <= tol*math.Max(1, math.Abs(float64(e))) {
			continue
		}
		if res.FirstIndex < 0 {
			res.FirstIndex, res.Expected, res.Got = i, e, g
		}
		res.Mismatches++
	}
	return res
}

// Reference returns in1+in2 computed on the host with BLAS saxpy.
func Reference(in1, in2 []float32) ([]float32, error) {
	if len(in1) != len(in2) {
		return nil, fmt.Errorf("reference: length mismatch %d != %d", len(in1), len(in2))
	}
	out := make([]float32, len(in2))
	copy(out, in2)
	if len(out) == 0 {
		return out, nil
	}
	x := blas32.Vector{N: len(in1), Inc: 1, Data: in1}
	y := blas32.Vector{N: len(out), Inc: 1, Data: out}
	blas32.Axpy(1, x, y)
	return out, nil
}
