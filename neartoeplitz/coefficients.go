// Package neartoeplitz solves batches of near-Toeplitz tridiagonal systems
// on an OCCA device with cyclic reduction. A near-Toeplitz system has
// identical interior rows (ai, bi, ci) with overridden first (b1, c1) and
// last (an, bn) rows — exactly the matrices produced by compact
// finite-difference schemes, e.g. with coefficients [1, 2, 1/4, 1, 1/4, 2, 1]:
//
//	1     2     .     .     .     .
//	1/4   1     1/4   .     .     .
//	.     1/4   1     1/4   .     .
//	.     .     1/4   1     1/4   .
//	.     .     .     1/4   1     1/4
//	.     .     .     .     2     1
//
// Because interior rows are identical, every level of the reduction shares a
// single coefficient set: the per-row arrays of general cyclic reduction
// collapse to O(log2 n) scalars computed once per solver (see "Fast
// Tridiagonal Solvers on the GPU").
package neartoeplitz

import (
	"fmt"
	"math/bits"
)

// Coeffs holds the seven scalars describing a near-Toeplitz tridiagonal
// matrix: first-row overrides (B1, C1), interior constants (Ai, Bi, Ci) and
// last-row overrides (An, Bn).
type Coeffs struct {
	B1, C1     float64
	Ai, Bi, Ci float64
	An, Bn     float64
}

// levels carries the precomputed reduction coefficients, one entry per
// forward-reduction level. The interior chain (a, b, c, k1, k2) feeds rows
// away from the boundaries; the first-row chain (bFirst, k1First) and
// last-row chain (k1Last) track the boundary rows whose elimination
// multipliers differ. The scalars of the final 2x2 system are stored in the
// last slots of a and b.
type levels struct {
	a, b, c []float64
	k1, k2  []float64
	bFirst  []float64
	k1First []float64
	k1Last  []float64
}

// log2Size returns log2(n) if n is a power of two large enough for cyclic
// reduction to terminate in a 2x2 system.
func log2Size(n int) (int, error) {
	if n < 4 || n&(n-1) != 0 {
		return 0, fmt.Errorf("system size must be a power of two >= 4, got %d", n)
	}
	return bits.TrailingZeros(uint(n)), nil
}

// precompute derives the per-level reduction coefficients for a system of
// size nx. At level 0 the interior row supplies the elimination multipliers
// k1 = ai/bi, k2 = ci/bi; at every later level the previous level's interior
// row does, since one reduction step leaves all interior rows identical
// again.
func precompute(cf Coeffs, nx int) (*levels, error) {
	log2nx, err := log2Size(nx)
	if err != nil {
		return nil, err
	}

	lv := &levels{
		a:       make([]float64, log2nx),
		b:       make([]float64, log2nx),
		c:       make([]float64, log2nx),
		k1:      make([]float64, log2nx),
		k2:      make([]float64, log2nx),
		bFirst:  make([]float64, log2nx),
		k1First: make([]float64, log2nx),
		k1Last:  make([]float64, log2nx),
	}

	var aLast, bLast float64
	for i := 0; i < log2nx-1; i++ {
		if i == 0 {
			lv.k1[0] = cf.Ai / cf.Bi
			lv.k2[0] = cf.Ci / cf.Bi
			lv.a[0] = -cf.Ai * lv.k1[0]
			lv.b[0] = cf.Bi - cf.Ci*lv.k1[0] - cf.Ai*lv.k2[0]
			lv.c[0] = -cf.Ci * lv.k2[0]

			lv.k1First[0] = cf.Ai / cf.B1
			lv.bFirst[0] = cf.Bi - cf.C1*lv.k1First[0] - cf.Ai*lv.k2[0]

			lv.k1Last[0] = cf.An / cf.Bi
			aLast = -cf.Ai * lv.k1Last[0]
			bLast = cf.Bn - cf.Ci*lv.k1Last[0]
		} else {
			lv.k1[i] = lv.a[i-1] / lv.b[i-1]
			lv.k2[i] = lv.c[i-1] / lv.b[i-1]
			lv.a[i] = -lv.a[i-1] * lv.k1[i]
			lv.b[i] = lv.b[i-1] - lv.c[i-1]*lv.k1[i] - lv.a[i-1]*lv.k2[i]
			lv.c[i] = -lv.c[i-1] * lv.k2[i]

			lv.k1First[i] = lv.a[i-1] / lv.bFirst[i-1]
			lv.bFirst[i] = lv.b[i-1] - lv.c[i-1]*lv.k1First[i] - lv.a[i-1]*lv.k2[i]

			lv.k1Last[i] = aLast / lv.b[i-1]
			aLast = -lv.a[i-1] * lv.k1Last[i]
			bLast = bLast - lv.c[i-1]*lv.k1Last[i]
		}
	}

	// The last forward stage is a direct 2x2 solve; it needs only the final
	// last-row scalars, parked in the tail slots of a and b.
	lv.a[log2nx-1] = aLast
	lv.b[log2nx-1] = bLast

	return lv, nil
}
