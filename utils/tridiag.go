package utils

import (
	"fmt"

	lapack "gonum.org/v1/gonum/lapack/gonum"
)

// SolveTridiag solves the tridiagonal system described by a, b, c and rhs
// using LAPACK's pivoted banded elimination (Dgtsv). All four slices have
// length n; a[0] and c[n-1] are ignored. The inputs are not modified.
//
// This is the reference path: the homogeneous correction vectors are small
// enough to solve here, and every device solver is validated against it.
func SolveTridiag(a, b, c, rhs []float64) ([]float64, error) {
	n := len(b)
	if n == 0 {
		return nil, fmt.Errorf("empty tridiagonal system")
	}
	if len(a) != n || len(c) != n || len(rhs) != n {
		return nil, fmt.Errorf("tridiagonal system size mismatch: a=%d b=%d c=%d rhs=%d",
			len(a), len(b), len(c), len(rhs))
	}

	dl := make([]float64, n-1)
	d := make([]float64, n)
	du := make([]float64, n-1)
	copy(dl, a[1:])
	copy(d, b)
	copy(du, c[:n-1])

	x := make([]float64, n)
	copy(x, rhs)

	var impl lapack.Implementation
	if !impl.Dgtsv(n, 1, dl, d, du, x, 1) {
		return nil, fmt.Errorf("tridiagonal system of size %d is singular", n)
	}
	return x, nil
}
