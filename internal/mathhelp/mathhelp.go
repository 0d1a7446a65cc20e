package mathhelp

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Tolerance is the absolute slack used when comparing viewport parameters.
const Tolerance = 1e-9

func EuclidianMod[T constraints.Integer](d, m T) T {
	r := d % m
	if (r < 0 && m > 0) || (r > 0 && m < 0) {
		return r + m
	}
	return r
}

// Equal reports whether a and b differ by no more than tol, relative to the larger magnitude
// once that exceeds one.
func Equal(a, b, tol float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= tol*scale
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
