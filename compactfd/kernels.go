package compactfd

// Device kernels for the derivative pipeline. computeRHS assembles the
// right-hand side of the compact scheme from the halo-padded field,
// reducedSolve applies the precomputed Thomas factorization of the per-line
// reduced system (the factorization is geometry-only and shared by every
// (z, y) slice, so each thread sweeps its own right-hand side), and
// sumSolutions superposes the homogeneous corrections onto the particular
// solution.

const computeRHSKernel = `
@kernel void computeRHS(const double *f,
                        double *d,
                        const double dx,
                        const int nx,
                        const int ny,
                        const int nz,
                        const int mx,
                        const int npx) {
	for (int iz = 0; iz < nz; ++iz; @outer) {
		for (int iy = 0; iy < ny; ++iy; @outer) {
			for (int ix = 0; ix < nx; ++ix; @inner) {
				const int i = ((iz + 1) * (ny + 2) + (iy + 1)) * (nx + 2) + ix + 1;
				const int o = (iz * ny + iy) * nx + ix;
				if (mx == 0 && ix == 0) {
					d[o] = (-5.0 * f[i] + 4.0 * f[i + 1] + f[i + 2]) / (2.0 * dx);
				} else if (mx == npx - 1 && ix == nx - 1) {
					d[o] = (5.0 * f[i] - 4.0 * f[i - 1] - f[i - 2]) / (2.0 * dx);
				} else {
					d[o] = 0.75 * (f[i + 1] - f[i - 1]) / dx;
				}
			}
		}
	}
}
`

const reducedSolveKernel = `
@kernel void reducedSolve(const double *a,
                          const double *cPrime,
                          const double *invB,
                          double *d,
                          const int n,
                          const int ny,
                          const int nz) {
	for (int iz = 0; iz < nz; ++iz; @outer) {
		for (int iy = 0; iy < ny; ++iy; @inner) {
			const int base = (iz * ny + iy) * n;
			d[base] = d[base] * invB[0];
			for (int i = 1; i < n; ++i) {
				d[base + i] = (d[base + i] - a[i] * d[base + i - 1]) * invB[i];
			}
			for (int i = n - 2; i >= 0; --i) {
				d[base + i] -= cPrime[i] * d[base + i + 1];
			}
		}
	}
}
`

const sumSolutionsKernel = `
@kernel void sumSolutions(double *d,
                          const double *xUH,
                          const double *xLH,
                          const double *alpha,
                          const double *beta,
                          const int nx,
                          const int ny,
                          const int nz) {
	for (int iz = 0; iz < nz; ++iz; @outer) {
		for (int iy = 0; iy < ny; ++iy; @outer) {
			for (int ix = 0; ix < nx; ++ix; @inner) {
				const int line = iz * ny + iy;
				d[line * nx + ix] += alpha[line] * xUH[ix] + beta[line] * xLH[ix];
			}
		}
	}
}
`
