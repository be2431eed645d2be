// Package halo populates the one-deep ghost layer around each rank's local
// block by exchanging face slices with the six grid neighbors. The ghost
// layer is a cache for stencil reads, never authoritative data; faces at the
// physical domain boundary are left zero because boundary rows use one-sided
// stencils and never read them.
package halo

import (
	"fmt"

	"github.com/notargets/CompactFD/comm"
	"github.com/notargets/CompactFD/grid"
)

// Exchanger exchanges ghost faces for a fixed local shape over the full
// process-grid communicator.
type Exchanger struct {
	comm       *comm.Comm
	g          grid.Grid
	nz, ny, nx int
	mz, my, mx int
}

// NewExchanger validates that the communicator matches the process grid and
// records this rank's coordinates.
func NewExchanger(c *comm.Comm, g grid.Grid, nz, ny, nx int) (*Exchanger, error) {
	if c.Size() != g.Size() {
		return nil, fmt.Errorf("communicator has %d ranks, process grid (%d, %d, %d) needs %d",
			c.Size(), g.Npz, g.Npy, g.Npx, g.Size())
	}
	if nz < 1 || ny < 1 || nx < 1 {
		return nil, fmt.Errorf("local shape must be positive, got (%d, %d, %d)", nz, ny, nx)
	}
	mz, my, mx := g.Coords(c.Rank())
	return &Exchanger{comm: c, g: g, nz: nz, ny: ny, nx: nx, mz: mz, my: my, mx: mx}, nil
}

// Exchange returns f embedded in a (nz+2, ny+2, nx+2) buffer whose ghost
// faces hold the adjacent layer of each existing neighbor. All sends are
// issued before any receive; the fabric's buffering keeps the paired
// exchanges deadlock-free.
func (e *Exchanger) Exchange(f []float64) ([]float64, error) {
	nz, ny, nx := e.nz, e.ny, e.nx
	if len(f) != nz*ny*nx {
		return nil, fmt.Errorf("local field has %d values, shape (%d, %d, %d) needs %d",
			len(f), nz, ny, nx, nz*ny*nx)
	}

	pad := make([]float64, (nz+2)*(ny+2)*(nx+2))
	pidx := func(iz, iy, ix int) int { return ((iz+1)*(ny+2)+(iy+1))*(nx+2) + ix + 1 }
	lidx := func(iz, iy, ix int) int { return (iz*ny+iy)*nx + ix }

	for iz := 0; iz < nz; iz++ {
		for iy := 0; iy < ny; iy++ {
			copy(pad[pidx(iz, iy, 0):pidx(iz, iy, nx)], f[lidx(iz, iy, 0):lidx(iz, iy, nx)])
		}
	}

	type exchange struct {
		peer  int       // world rank of the neighbor
		send  []float64 // owned face adjacent to the peer
		ghost int       // ghost coordinate on this rank's side, -1 or n
		axis  int       // 0=z 1=y 2=x
	}
	var exchanges []exchange

	face := func(axis, at int) []float64 {
		switch axis {
		case 0:
			out := make([]float64, ny*nx)
			for iy := 0; iy < ny; iy++ {
				copy(out[iy*nx:(iy+1)*nx], f[lidx(at, iy, 0):lidx(at, iy, nx)])
			}
			return out
		case 1:
			out := make([]float64, nz*nx)
			for iz := 0; iz < nz; iz++ {
				copy(out[iz*nx:(iz+1)*nx], f[lidx(iz, at, 0):lidx(iz, at, nx)])
			}
			return out
		default:
			out := make([]float64, nz*ny)
			for iz := 0; iz < nz; iz++ {
				for iy := 0; iy < ny; iy++ {
					out[iz*ny+iy] = f[lidx(iz, iy, at)]
				}
			}
			return out
		}
	}

	addPair := func(axis, coord, np, lo, hi int, rankAt func(int) int) {
		if coord > 0 {
			exchanges = append(exchanges, exchange{peer: rankAt(coord - 1), send: face(axis, lo), ghost: -1, axis: axis})
		}
		if coord < np-1 {
			exchanges = append(exchanges, exchange{peer: rankAt(coord + 1), send: face(axis, hi), ghost: hi + 1, axis: axis})
		}
	}
	addPair(0, e.mz, e.g.Npz, 0, nz-1, func(m int) int { return e.g.Rank(m, e.my, e.mx) })
	addPair(1, e.my, e.g.Npy, 0, ny-1, func(m int) int { return e.g.Rank(e.mz, m, e.mx) })
	addPair(2, e.mx, e.g.Npx, 0, nx-1, func(m int) int { return e.g.Rank(e.mz, e.my, m) })

	for _, ex := range exchanges {
		e.comm.Send(ex.peer, ex.send)
	}
	for _, ex := range exchanges {
		got := e.comm.Recv(ex.peer)
		if err := e.scatterGhost(pad, ex.axis, ex.ghost, got); err != nil {
			return nil, err
		}
	}
	return pad, nil
}

// scatterGhost writes a received face into the padded buffer at ghost
// coordinate at (-1 or n) on the given axis.
func (e *Exchanger) scatterGhost(pad []float64, axis, at int, face []float64) error {
	nz, ny, nx := e.nz, e.ny, e.nx
	pidx := func(iz, iy, ix int) int { return ((iz+1)*(ny+2)+(iy+1))*(nx+2) + ix + 1 }
	var want int
	switch axis {
	case 0:
		want = ny * nx
	case 1:
		want = nz * nx
	default:
		want = nz * ny
	}
	if len(face) != want {
		return fmt.Errorf("ghost face on axis %d has %d values, expected %d", axis, len(face), want)
	}
	switch axis {
	case 0:
		for iy := 0; iy < ny; iy++ {
			copy(pad[pidx(at, iy, 0):pidx(at, iy, nx)], face[iy*nx:(iy+1)*nx])
		}
	case 1:
		for iz := 0; iz < nz; iz++ {
			copy(pad[pidx(iz, at, 0):pidx(iz, at, nx)], face[iz*nx:(iz+1)*nx])
		}
	default:
		for iz := 0; iz < nz; iz++ {
			for iy := 0; iy < ny; iy++ {
				pad[pidx(iz, iy, at)] = face[iz*ny+iy]
			}
		}
	}
	return nil
}
