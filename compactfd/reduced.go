package compactfd

import "fmt"

// assembleReduced builds the (2*npx)-row tridiagonal system coupling the
// boundary unknowns of one line of ranks. Unknown 2i is rank i's alpha
// (scale of x_UH), unknown 2i+1 its beta (scale of x_LH). Row 2i states
// that rank i's first solution value must equal the previous rank's beta
// unknown; row 2i+1 is the mirrored condition at rank i's last value. The
// end rows pin alpha of the first rank and beta of the last rank to zero,
// closing the system at the physical domain boundary.
//
// xUHPairs and xLHPairs hold each rank's (first, last) homogeneous boundary
// values packed in line order, as gathered at the line root.
func assembleReduced(xUHPairs, xLHPairs []float64) (a, b, c []float64, err error) {
	n := len(xUHPairs)
	if n < 2 || n%2 != 0 || len(xLHPairs) != n {
		return nil, nil, nil, fmt.Errorf("boundary pair buffers have lengths %d and %d, need equal even lengths >= 2",
			len(xUHPairs), len(xLHPairs))
	}

	a = make([]float64, n)
	b = make([]float64, n)
	c = make([]float64, n)
	for i := 0; i < n; i += 2 {
		a[i] = -1.0
		b[i] = xUHPairs[i]
		c[i] = xLHPairs[i]
		a[i+1] = xUHPairs[i+1]
		b[i+1] = xLHPairs[i+1]
		c[i+1] = -1.0
	}

	// Dirichlet closure: no correction enters from beyond the physical edge.
	a[0], b[0], c[0] = 0.0, 1.0, 0.0
	a[n-1], b[n-1], c[n-1] = 0.0, 1.0, 0.0
	a[1] = 0.0
	c[n-2] = 0.0

	return a, b, c, nil
}

// thomasFactor precomputes the LU sweep of the Thomas algorithm for a
// tridiagonal (a, b, c). The factorization depends only on the matrix, so
// the per-call device kernel reduces to one multiply-add sweep per
// right-hand side.
func thomasFactor(a, b, c []float64) (cPrime, invB []float64, err error) {
	n := len(b)
	cPrime = make([]float64, n)
	invB = make([]float64, n)

	denom := b[0]
	if denom == 0 {
		return nil, nil, fmt.Errorf("reduced system is singular at row 0")
	}
	invB[0] = 1.0 / denom
	cPrime[0] = c[0] * invB[0]
	for i := 1; i < n; i++ {
		denom = b[i] - a[i]*cPrime[i-1]
		if denom == 0 {
			return nil, nil, fmt.Errorf("reduced system is singular at row %d of %d", i, n)
		}
		invB[i] = 1.0 / denom
		cPrime[i] = c[i] * invB[i]
	}
	return cPrime, invB, nil
}
