// Package compactfd evaluates x-derivatives of a 3-D scalar field
// distributed over a process grid, using the fourth-order compact scheme
//
//	(1/4) f'[i-1] + f'[i] + (1/4) f'[i+1] = (3/4)(f[i+1] - f[i-1]) / dx
//
// closed at the physical boundary with the one-sided implicit row
//
//	f'[0] + 2 f'[1] = (-5 f[0] + 4 f[1] + f[2]) / (2 dx).
//
// Each (z, y) line of the field couples every rank along x into one global
// tridiagonal system. Rather than forming it, each rank solves its local
// near-Toeplitz block for a particular solution and two homogeneous
// correction vectors; a small reduced system per line, solved once at the
// line root, yields the two scalars that stitch the local solutions into
// the global one.
package compactfd

import (
	"fmt"
	"unsafe"

	"github.com/notargets/CompactFD/comm"
	"github.com/notargets/CompactFD/grid"
	"github.com/notargets/CompactFD/halo"
	"github.com/notargets/CompactFD/neartoeplitz"
	"github.com/notargets/CompactFD/utils"
	"github.com/notargets/gocca"
)

// Stencil constants of the compact scheme. The boundary row replaces the
// symmetric 1/4 neighbor weight with 2 and keeps a unit diagonal.
const (
	interiorAlpha  = 0.25
	boundaryWeight = 2.0
)

// Solver owns one rank's share of the derivative pipeline: the device
// buffers and kernels, the local cyclic-reduction solver, the homogeneous
// solutions, the line sub-communicator and, at line roots, the factorized
// reduced system. Everything that depends only on geometry is computed at
// construction; a Dfdx call stages only the field, its right-hand side and
// the per-line transfer parameters.
type Solver struct {
	device *gocca.OCCADevice
	world  *comm.Comm
	line   *comm.Comm
	g      grid.Grid

	NZ, NY, NX int // global shape
	nz, ny, nx int // local shape
	mz, my, mx int

	exchanger *halo.Exchanger
	local     *neartoeplitz.Solver

	// Homogeneous solutions of the local system: xUH propagates a unit
	// correction entering at the first row, xLH at the last.
	xLH, xUH []float64

	fD, dD        *gocca.OCCAMemory
	xLHD, xUHD    *gocca.OCCAMemory
	alphaD, betaD *gocca.OCCAMemory
	rhsKernel     *gocca.OCCAKernel
	sumKernel     *gocca.OCCAKernel

	// Line-root state: the reduced system's sub-diagonal and Thomas
	// factorization on the device, plus the per-call right-hand-side buffer.
	redAD, redCPD, redInvBD *gocca.OCCAMemory
	redD                    *gocca.OCCAMemory
	redKernel               *gocca.OCCAKernel

	pairCounts, faceCounts []int
}

// NewSolver builds the per-rank solver state. It is collective: every rank
// of c must call it with identical global sizes and process grid.
func NewSolver(device *gocca.OCCADevice, c *comm.Comm, g grid.Grid, NZ, NY, NX int) (*Solver, error) {
	if c.Size() != g.Size() {
		return nil, fmt.Errorf("communicator has %d ranks, process grid (%d, %d, %d) needs %d",
			c.Size(), g.Npz, g.Npy, g.Npx, g.Size())
	}
	nz, ny, nx, err := g.LocalShape(NZ, NY, NX)
	if err != nil {
		return nil, err
	}
	mz, my, mx := g.Coords(c.Rank())

	s := &Solver{
		device: device,
		world:  c,
		g:      g,
		NZ:     NZ, NY: NY, NX: NX,
		nz: nz, ny: ny, nx: nx,
		mz: mz, my: my, mx: mx,
	}

	cf := s.localCoeffs()
	if s.local, err = neartoeplitz.NewSolver(device, nz, ny, nx, cf); err != nil {
		return nil, fmt.Errorf("local solver for rank (%d, %d, %d): %w", mz, my, mx, err)
	}
	if err = s.solveHomogeneous(cf); err != nil {
		s.Free()
		return nil, err
	}

	if s.exchanger, err = halo.NewExchanger(c, g, nz, ny, nx); err != nil {
		s.Free()
		return nil, err
	}

	// One sub-communicator per x-line; mx orders the members, so the line
	// root is the rank at the low-x edge of the physical domain.
	s.line = c.Split(g.LineColor(c.Rank()), mx)
	s.pairCounts = uniformCounts(s.line.Size(), 2)
	s.faceCounts = uniformCounts(s.line.Size(), 2*nz*ny)

	if err = s.setupReduced(); err != nil {
		s.Free()
		return nil, err
	}
	if err = s.setupDeviceState(); err != nil {
		s.Free()
		return nil, err
	}
	return s, nil
}

// localCoeffs describes this rank's local tridiagonal block. Interior rows
// are those of the compact stencil; the first and last rows are overridden
// only where the block touches the physical domain boundary.
func (s *Solver) localCoeffs() neartoeplitz.Coeffs {
	cf := neartoeplitz.Coeffs{
		B1: 1.0, C1: interiorAlpha,
		Ai: interiorAlpha, Bi: 1.0, Ci: interiorAlpha,
		An: interiorAlpha, Bn: 1.0,
	}
	if s.mx == 0 {
		cf.C1 = boundaryWeight
	}
	if s.mx == s.g.Npx-1 {
		cf.An = boundaryWeight
	}
	return cf
}

// solveHomogeneous computes x_LH and x_UH: the local system's response to a
// unit coupling entering at the last and first row respectively. They depend
// only on geometry, so they are solved once here, on the host, against the
// banded reference solver.
func (s *Solver) solveHomogeneous(cf neartoeplitz.Coeffs) error {
	a := make([]float64, s.nx)
	b := make([]float64, s.nx)
	c := make([]float64, s.nx)
	for i := range b {
		a[i], b[i], c[i] = cf.Ai, cf.Bi, cf.Ci
	}
	b[0], c[0] = cf.B1, cf.C1
	a[s.nx-1], b[s.nx-1] = cf.An, cf.Bn
	// The dangling couplings: zero where the block touches the physical
	// edge, the stencil weight where a neighboring rank continues the line.
	a[0] = interiorAlpha
	c[s.nx-1] = interiorAlpha
	if s.mx == 0 {
		a[0] = 0.0
	}
	if s.mx == s.g.Npx-1 {
		c[s.nx-1] = 0.0
	}

	rLH := make([]float64, s.nx)
	rUH := make([]float64, s.nx)
	rLH[s.nx-1] = -c[s.nx-1]
	rUH[0] = -a[0]

	var err error
	if s.xLH, err = utils.SolveTridiag(a, b, c, rLH); err != nil {
		return fmt.Errorf("solving x_LH: %w", err)
	}
	if s.xUH, err = utils.SolveTridiag(a, b, c, rUH); err != nil {
		return fmt.Errorf("solving x_UH: %w", err)
	}
	return nil
}

// setupReduced gathers every line member's homogeneous boundary values and,
// at the line root, assembles and factorizes the (2*npx) reduced system and
// compiles its solve kernel. Geometry-only, so it runs once.
func (s *Solver) setupReduced() error {
	uhPairs, err := s.line.Gatherv([]float64{s.xUH[0], s.xUH[s.nx-1]}, s.pairCounts, 0)
	if err != nil {
		return fmt.Errorf("gathering x_UH boundary values: %w", err)
	}
	lhPairs, err := s.line.Gatherv([]float64{s.xLH[0], s.xLH[s.nx-1]}, s.pairCounts, 0)
	if err != nil {
		return fmt.Errorf("gathering x_LH boundary values: %w", err)
	}
	if s.line.Rank() != 0 {
		return nil
	}

	a, b, c, err := assembleReduced(uhPairs, lhPairs)
	if err != nil {
		return err
	}
	cPrime, invB, err := thomasFactor(a, b, c)
	if err != nil {
		return err
	}

	n := 2 * s.line.Size()
	s.redAD = s.device.Malloc(int64(n*8), unsafe.Pointer(&a[0]), nil)
	s.redCPD = s.device.Malloc(int64(n*8), unsafe.Pointer(&cPrime[0]), nil)
	s.redInvBD = s.device.Malloc(int64(n*8), unsafe.Pointer(&invB[0]), nil)
	s.redD = s.device.Malloc(int64(s.nz*s.ny*n*8), nil, nil)
	if s.redKernel, err = s.device.BuildKernelFromString(reducedSolveKernel, "reducedSolve", nil); err != nil {
		return fmt.Errorf("failed to build reducedSolve: %w", err)
	}
	return nil
}

// setupDeviceState compiles the RHS and superposition kernels and allocates
// the buffers reused across calls.
func (s *Solver) setupDeviceState() error {
	var err error
	if s.rhsKernel, err = s.device.BuildKernelFromString(computeRHSKernel, "computeRHS", nil); err != nil {
		return fmt.Errorf("failed to build computeRHS: %w", err)
	}
	if s.sumKernel, err = s.device.BuildKernelFromString(sumSolutionsKernel, "sumSolutions", nil); err != nil {
		return fmt.Errorf("failed to build sumSolutions: %w", err)
	}
	s.fD = s.device.Malloc(int64((s.nz+2)*(s.ny+2)*(s.nx+2)*8), nil, nil)
	s.dD = s.device.Malloc(int64(s.nz*s.ny*s.nx*8), nil, nil)
	s.alphaD = s.device.Malloc(int64(s.nz*s.ny*8), nil, nil)
	s.betaD = s.device.Malloc(int64(s.nz*s.ny*8), nil, nil)
	s.xLHD = s.device.Malloc(int64(s.nx*8), unsafe.Pointer(&s.xLH[0]), nil)
	s.xUHD = s.device.Malloc(int64(s.nx*8), unsafe.Pointer(&s.xUH[0]), nil)
	return nil
}

// LocalShape returns the (nz, ny, nx) block this rank owns.
func (s *Solver) LocalShape() (nz, ny, nx int) { return s.nz, s.ny, s.nx }

// Coords returns this rank's process-grid coordinate (mz, my, mx).
func (s *Solver) Coords() (mz, my, mx int) { return s.mz, s.my, s.mx }

// Dfdx computes the local block of the global x-derivative of f, which holds
// this rank's (nz, ny, nx) values. Collective: every rank must call it with
// the same dx. The result is deterministic, so repeated calls with the same
// field are bit-identical.
func (s *Solver) Dfdx(f []float64, dx float64) ([]float64, error) {
	if len(f) != s.nz*s.ny*s.nx {
		return nil, fmt.Errorf("field has %d values, local shape (%d, %d, %d) needs %d",
			len(f), s.nz, s.ny, s.nx, s.nz*s.ny*s.nx)
	}
	if dx == 0 {
		return nil, fmt.Errorf("grid spacing must be nonzero")
	}

	// Phase 1: ghost exchange and right-hand-side assembly.
	fpad, err := s.exchanger.Exchange(f)
	if err != nil {
		return nil, err
	}
	s.fD.CopyFrom(unsafe.Pointer(&fpad[0]), int64(len(fpad)*8))
	if err = s.rhsKernel.RunWithArgs(s.fD, s.dD, dx, s.nx, s.ny, s.nz, s.mx, s.g.Npx); err != nil {
		return nil, fmt.Errorf("computeRHS failed: %w", err)
	}

	// Phase 2: local particular solve. Solve drains the device queue, so the
	// face reads below observe the finished solution.
	if err = s.local.Solve(s.dD); err != nil {
		return nil, fmt.Errorf("local cyclic reduction failed: %w", err)
	}
	xR := make([]float64, s.nz*s.ny*s.nx)
	s.dD.CopyTo(unsafe.Pointer(&xR[0]), int64(len(xR)*8))

	// Phase 3: gather each rank's x_R faces at the line root.
	faces := make([]float64, s.nz*s.ny*2)
	for line := 0; line < s.nz*s.ny; line++ {
		faces[2*line] = xR[line*s.nx]
		faces[2*line+1] = xR[line*s.nx+s.nx-1]
	}
	gathered, err := s.line.Gatherv(faces, s.faceCounts, 0)
	if err != nil {
		return nil, fmt.Errorf("gathering x_R faces: %w", err)
	}

	// Phase 4: the root solves the reduced system for every (z, y) slice.
	var params []float64
	if s.line.Rank() == 0 {
		if params, err = s.solveReduced(gathered); err != nil {
			return nil, err
		}
	}

	// Phase 5: scatter the transfer parameters back along the line.
	mine, err := s.line.Scatterv(params, s.faceCounts, 0)
	if err != nil {
		return nil, fmt.Errorf("scattering transfer parameters: %w", err)
	}
	alpha := make([]float64, s.nz*s.ny)
	beta := make([]float64, s.nz*s.ny)
	for line := range alpha {
		alpha[line] = mine[2*line]
		beta[line] = mine[2*line+1]
	}

	// Phase 6: superpose the homogeneous corrections on the device.
	s.alphaD.CopyFrom(unsafe.Pointer(&alpha[0]), int64(len(alpha)*8))
	s.betaD.CopyFrom(unsafe.Pointer(&beta[0]), int64(len(beta)*8))
	if err = s.sumKernel.RunWithArgs(s.dD, s.xUHD, s.xLHD, s.alphaD, s.betaD, s.nx, s.ny, s.nz); err != nil {
		return nil, fmt.Errorf("sumSolutions failed: %w", err)
	}
	s.device.Finish()

	out := make([]float64, s.nz*s.ny*s.nx)
	s.dD.CopyTo(unsafe.Pointer(&out[0]), int64(len(out)*8))
	return out, nil
}

// solveReduced runs at the line root: it repacks the gathered faces into the
// negated reduced right-hand sides, solves them on the device, and repacks
// the solution into per-rank (alpha, beta) blocks for the scatter.
func (s *Solver) solveReduced(gathered []float64) ([]float64, error) {
	npx := s.line.Size()
	n := 2 * npx
	lines := s.nz * s.ny

	d := make([]float64, lines*n)
	for r := 0; r < npx; r++ {
		block := gathered[r*lines*2 : (r+1)*lines*2]
		for line := 0; line < lines; line++ {
			d[line*n+2*r] = -block[2*line]
			d[line*n+2*r+1] = -block[2*line+1]
		}
	}
	// Dirichlet rows carry no right-hand side.
	for line := 0; line < lines; line++ {
		d[line*n] = 0.0
		d[line*n+n-1] = 0.0
	}

	s.redD.CopyFrom(unsafe.Pointer(&d[0]), int64(len(d)*8))
	if err := s.redKernel.RunWithArgs(s.redAD, s.redCPD, s.redInvBD, s.redD, n, s.ny, s.nz); err != nil {
		return nil, fmt.Errorf("reducedSolve failed: %w", err)
	}
	s.device.Finish()
	s.redD.CopyTo(unsafe.Pointer(&d[0]), int64(len(d)*8))

	params := make([]float64, lines*n)
	for r := 0; r < npx; r++ {
		block := params[r*lines*2 : (r+1)*lines*2]
		for line := 0; line < lines; line++ {
			block[2*line] = d[line*n+2*r]
			block[2*line+1] = d[line*n+2*r+1]
		}
	}
	return params, nil
}

// Free releases every kernel and device buffer the solver owns.
func (s *Solver) Free() {
	if s.local != nil {
		s.local.Free()
	}
	for _, k := range []*gocca.OCCAKernel{s.rhsKernel, s.sumKernel, s.redKernel} {
		if k != nil {
			k.Free()
		}
	}
	for _, m := range []*gocca.OCCAMemory{
		s.fD, s.dD, s.alphaD, s.betaD, s.xLHD, s.xUHD,
		s.redAD, s.redCPD, s.redInvBD, s.redD} {
		if m != nil {
			m.Free()
		}
	}
}

func uniformCounts(n, each int) []int {
	counts := make([]int, n)
	for i := range counts {
		counts[i] = each
	}
	return counts
}
