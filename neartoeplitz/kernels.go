package neartoeplitz

// Kernel sources for the two cyclic-reduction phases. One thread per active
// row per (z, y) line; the batch dimensions map to @outer and the shrinking
// row set to @inner. Rows read at stride h were written at the previous
// level, never at the current one, so the in-place update is race-free.

const forwardReductionKernel = `
@kernel void forwardReduction(const double *a,
                              const double *b,
                              const double *c,
                              const double *k1,
                              const double *k2,
                              const double *bFirst,
                              const double *k1First,
                              const double *k1Last,
                              double *x,
                              const int nx,
                              const int ny,
                              const int nz,
                              const int stride,
                              const int level,
                              const int nActive) {
	for (int iz = 0; iz < nz; ++iz; @outer) {
		for (int iy = 0; iy < ny; ++iy; @outer) {
			for (int t = 0; t < nActive; ++t; @inner) {
				const int base = (iz * ny + iy) * nx;
				const int h = stride / 2;
				const int i = stride - 1 + t * stride;
				if (stride == nx) {
					// Two coupled unknowns remain: direct 2x2 solve.
					const int m = level - 1;
					const int i1 = nx / 2 - 1;
					const int i2 = nx - 1;
					const double aLast = a[level];
					const double bLast = b[level];
					const double det = bFirst[m] * bLast - c[m] * aLast;
					const double d1 = x[base + i1];
					const double d2 = x[base + i2];
					x[base + i1] = (bLast * d1 - c[m] * d2) / det;
					x[base + i2] = (bFirst[m] * d2 - aLast * d1) / det;
				} else if (i == nx - 1) {
					// Last row: no neighbor beyond the domain edge.
					x[base + i] -= k1Last[level] * x[base + i - h];
				} else if (i == stride - 1) {
					// First active row: its left neighbor carries the
					// first-row chain's diagonal.
					x[base + i] -= k1First[level] * x[base + i - h]
					             + k2[level] * x[base + i + h];
				} else {
					x[base + i] -= k1[level] * x[base + i - h]
					             + k2[level] * x[base + i + h];
				}
			}
		}
	}
}
`

const backSubstitutionKernel = `
@kernel void backSubstitution(const double *a,
                              const double *b,
                              const double *c,
                              const double *bFirst,
                              double *x,
                              const double b1,
                              const double c1,
                              const double ai,
                              const double bi,
                              const double ci,
                              const int nx,
                              const int ny,
                              const int nz,
                              const int stride,
                              const int level,
                              const int nActive) {
	for (int iz = 0; iz < nz; ++iz; @outer) {
		for (int iy = 0; iy < ny; ++iy; @outer) {
			for (int t = 0; t < nActive; ++t; @inner) {
				const int base = (iz * ny + iy) * nx;
				const int h = stride / 2;
				const int i = h - 1 + t * stride;
				if (stride == 2) {
					// Final level: rows carry their original coefficients.
					if (i == 0) {
						x[base] = (x[base] - c1 * x[base + 1]) / b1;
					} else {
						x[base + i] = (x[base + i] - ai * x[base + i - 1]
						                           - ci * x[base + i + 1]) / bi;
					}
				} else if (i == h - 1) {
					x[base + i] = (x[base + i] - c[level] * x[base + i + h])
					            / bFirst[level];
				} else {
					x[base + i] = (x[base + i] - a[level] * x[base + i - h]
					                           - c[level] * x[base + i + h])
					            / b[level];
				}
			}
		}
	}
}
`
