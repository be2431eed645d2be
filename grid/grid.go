// Package grid describes the logical 3-D arrangement of ranks over which a
// global field is decomposed, and the shape of the block each rank owns.
package grid

import "fmt"

// Grid is a dense 3-D process grid with Npz*Npy*Npx ranks. Ranks are numbered
// row-major: rank = (mz*Npy + my)*Npx + mx, matching a cartesian communicator
// with the x coordinate varying fastest.
type Grid struct {
	Npz, Npy, Npx int
}

// New validates the per-axis process counts against the communicator size.
func New(npz, npy, npx, size int) (Grid, error) {
	if npz < 1 || npy < 1 || npx < 1 {
		return Grid{}, fmt.Errorf("process counts must be positive, got (%d, %d, %d)", npz, npy, npx)
	}
	if npz*npy*npx != size {
		return Grid{}, fmt.Errorf("process grid (%d, %d, %d) requires %d ranks, communicator has %d",
			npz, npy, npx, npz*npy*npx, size)
	}
	return Grid{Npz: npz, Npy: npy, Npx: npx}, nil
}

// Size returns the total number of ranks in the grid.
func (g Grid) Size() int { return g.Npz * g.Npy * g.Npx }

// Coords returns this rank's (mz, my, mx) coordinate.
func (g Grid) Coords(rank int) (mz, my, mx int) {
	mx = rank % g.Npx
	my = (rank / g.Npx) % g.Npy
	mz = rank / (g.Npx * g.Npy)
	return mz, my, mx
}

// Rank is the inverse of Coords.
func (g Grid) Rank(mz, my, mx int) int {
	return (mz*g.Npy+my)*g.Npx + mx
}

// LineColor identifies the x-line a rank belongs to: the set of ranks sharing
// (mz, my). Ranks with equal colors form one line; ordering within the line
// follows mx.
func (g Grid) LineColor(rank int) int {
	mz, my, _ := g.Coords(rank)
	return mz*g.Npy + my
}

// LocalShape divides the global field among the ranks, requiring an even
// split on every axis.
func (g Grid) LocalShape(NZ, NY, NX int) (nz, ny, nx int, err error) {
	if NZ%g.Npz != 0 || NY%g.Npy != 0 || NX%g.Npx != 0 {
		return 0, 0, 0, fmt.Errorf("global size (%d, %d, %d) does not divide evenly over process grid (%d, %d, %d)",
			NZ, NY, NX, g.Npz, g.Npy, g.Npx)
	}
	return NZ / g.Npz, NY / g.Npy, NX / g.Npx, nil
}
