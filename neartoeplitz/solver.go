package neartoeplitz

import (
	"fmt"
	"unsafe"

	"github.com/notargets/gocca"
)

// Solver performs batched in-place cyclic-reduction solves of one fixed
// near-Toeplitz system against (nz*ny) independent right-hand sides laid out
// as a row-major (nz, ny, nx) buffer in device memory.
//
// The reduction coefficients are precomputed at construction; a solve is
// log2(nx) forward stages over a doubling stride followed by log2(nx)-1
// back-substitution stages over a halving stride.
type Solver struct {
	device     *gocca.OCCADevice
	nz, ny, nx int
	log2nx     int
	cf         Coeffs

	// Per-level coefficient arrays resident on the device.
	aD, bD, cD        *gocca.OCCAMemory
	k1D, k2D          *gocca.OCCAMemory
	bFirstD           *gocca.OCCAMemory
	k1FirstD, k1LastD *gocca.OCCAMemory

	forward *gocca.OCCAKernel
	back    *gocca.OCCAKernel
}

// NewSolver validates the batch shape, precomputes the reduction
// coefficients and compiles the two stage kernels. nx must be a power of two
// with log2(nx) >= 2.
func NewSolver(device *gocca.OCCADevice, nz, ny, nx int, cf Coeffs) (*Solver, error) {
	if nz < 1 || ny < 1 {
		return nil, fmt.Errorf("batch shape must be positive, got nz=%d ny=%d", nz, ny)
	}
	lv, err := precompute(cf, nx)
	if err != nil {
		return nil, err
	}
	log2nx, _ := log2Size(nx)

	s := &Solver{
		device: device,
		nz:     nz, ny: ny, nx: nx,
		log2nx: log2nx,
		cf:     cf,
	}

	s.aD = toDevice(device, lv.a)
	s.bD = toDevice(device, lv.b)
	s.cD = toDevice(device, lv.c)
	s.k1D = toDevice(device, lv.k1)
	s.k2D = toDevice(device, lv.k2)
	s.bFirstD = toDevice(device, lv.bFirst)
	s.k1FirstD = toDevice(device, lv.k1First)
	s.k1LastD = toDevice(device, lv.k1Last)

	s.forward, err = device.BuildKernelFromString(forwardReductionKernel, "forwardReduction", nil)
	if err != nil {
		s.Free()
		return nil, fmt.Errorf("failed to build forwardReduction: %w", err)
	}
	s.back, err = device.BuildKernelFromString(backSubstitutionKernel, "backSubstitution", nil)
	if err != nil {
		s.Free()
		return nil, fmt.Errorf("failed to build backSubstitution: %w", err)
	}

	return s, nil
}

// Shape returns the batch shape (nz, ny, nx) the solver was built for.
func (s *Solver) Shape() (nz, ny, nx int) { return s.nz, s.ny, s.nx }

// Solve overwrites the device buffer x, holding (nz, ny, nx) right-hand
// sides, with the solutions. The device queue is in-order, so the stages
// need no intermediate waits; the final Finish drains the queue before any
// host-side read of x.
func (s *Solver) Solve(x *gocca.OCCAMemory) error {
	stride := 1
	for lvl := 0; lvl < s.log2nx; lvl++ {
		stride *= 2
		nActive := s.nx / stride
		if err := s.forward.RunWithArgs(
			s.aD, s.bD, s.cD, s.k1D, s.k2D, s.bFirstD, s.k1FirstD, s.k1LastD,
			x, s.nx, s.ny, s.nz, stride, lvl, nActive); err != nil {
			return fmt.Errorf("forward reduction at stride %d: %w", stride, err)
		}
	}
	for stride = s.nx / 2; stride >= 2; stride /= 2 {
		lvl := levelOf(stride) - 1
		nActive := s.nx / stride
		if err := s.back.RunWithArgs(
			s.aD, s.bD, s.cD, s.bFirstD, x,
			s.cf.B1, s.cf.C1, s.cf.Ai, s.cf.Bi, s.cf.Ci,
			s.nx, s.ny, s.nz, stride, lvl, nActive); err != nil {
			return fmt.Errorf("back substitution at stride %d: %w", stride, err)
		}
	}
	s.device.Finish()
	return nil
}

// SolveHost is the host-buffer convenience wrapper around Solve.
func (s *Solver) SolveHost(x []float64) error {
	want := s.nz * s.ny * s.nx
	if len(x) != want {
		return fmt.Errorf("rhs buffer has %d values, batch shape (%d, %d, %d) needs %d",
			len(x), s.nz, s.ny, s.nx, want)
	}
	xD := s.device.Malloc(int64(len(x)*8), unsafe.Pointer(&x[0]), nil)
	defer xD.Free()
	if err := s.Solve(xD); err != nil {
		return err
	}
	xD.CopyTo(unsafe.Pointer(&x[0]), int64(len(x)*8))
	return nil
}

// Free releases kernels and device coefficient arrays.
func (s *Solver) Free() {
	for _, k := range []*gocca.OCCAKernel{s.forward, s.back} {
		if k != nil {
			k.Free()
		}
	}
	for _, m := range []*gocca.OCCAMemory{
		s.aD, s.bD, s.cD, s.k1D, s.k2D, s.bFirstD, s.k1FirstD, s.k1LastD} {
		if m != nil {
			m.Free()
		}
	}
}

// levelOf maps a back-substitution stride to the forward level whose
// coefficients the surviving rows carry: log2(stride) - 1.
func levelOf(stride int) int {
	lvl := 0
	for stride > 2 {
		stride /= 2
		lvl++
	}
	return lvl
}

func toDevice(device *gocca.OCCADevice, data []float64) *gocca.OCCAMemory {
	return device.Malloc(int64(len(data)*8), unsafe.Pointer(&data[0]), nil)
}
