// Package comm provides the collective-communication fabric the solver runs
// on: a Cluster of SPMD ranks living in one process, wired by per-pair
// ordered channels. The surface mirrors the MPI subset the algorithm needs
// (barrier, gatherv/scatterv with variable per-rank counts, sendrecv, and
// communicator splitting) so each rank's code reads like its MPI original.
package comm

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Cluster is the shared state behind one communicator: a full matrix of
// buffered channels and a reusable barrier. Channels are FIFO per (src, dst)
// pair and every rank issues collectives in program order, so messages from
// successive collectives cannot cross-match.
type Cluster struct {
	size  int
	chans [][]chan []float64
	bar   *barrier

	mu     sync.Mutex
	splits map[int]*splitState
}

// NewCluster creates the communication state for size ranks.
func NewCluster(size int) (*Cluster, error) {
	if size < 1 {
		return nil, fmt.Errorf("cluster size must be positive, got %d", size)
	}
	cl := &Cluster{
		size:   size,
		chans:  make([][]chan []float64, size),
		bar:    newBarrier(size),
		splits: make(map[int]*splitState),
	}
	for i := range cl.chans {
		cl.chans[i] = make([]chan []float64, size)
		for j := range cl.chans[i] {
			cl.chans[i][j] = make(chan []float64, 2)
		}
	}
	return cl, nil
}

// Comm returns the handle rank uses to communicate within the cluster.
func (cl *Cluster) Comm(rank int) *Comm {
	if rank < 0 || rank >= cl.size {
		panic(fmt.Sprintf("rank %d out of range for cluster of size %d", rank, cl.size))
	}
	return &Comm{cluster: cl, rank: rank}
}

// Run launches fn once per rank, each on its own goroutine, and waits for all
// of them. The first error cancels nothing in flight (ranks block on their
// collectives), so fn must only return an error once it is out of the
// communication pattern.
func Run(size int, fn func(c *Comm) error) error {
	cl, err := NewCluster(size)
	if err != nil {
		return err
	}
	var eg errgroup.Group
	for rank := 0; rank < size; rank++ {
		c := cl.Comm(rank)
		eg.Go(func() error { return fn(c) })
	}
	return eg.Wait()
}

// Comm is one rank's view of a Cluster.
type Comm struct {
	cluster  *Cluster
	rank     int
	splitSeq int
}

// Rank returns this rank's number within the communicator.
func (c *Comm) Rank() int { return c.rank }

// Size returns the number of ranks in the communicator.
func (c *Comm) Size() int { return c.cluster.size }

// Barrier blocks until every rank in the communicator has entered it.
func (c *Comm) Barrier() { c.cluster.bar.await() }

// Send delivers a copy of data to dst. It blocks only if two sends to dst
// are already outstanding.
func (c *Comm) Send(dst int, data []float64) {
	cp := make([]float64, len(data))
	copy(cp, data)
	c.cluster.chans[c.rank][dst] <- cp
}

// Recv blocks until a message from src arrives.
func (c *Comm) Recv(src int) []float64 {
	return <-c.cluster.chans[src][c.rank]
}

// Sendrecv sends to dst and receives from src, the neighbor-exchange
// primitive used by the halo layer. Channel buffering makes the paired
// blocking calls deadlock-free.
func (c *Comm) Sendrecv(dst int, send []float64, src int) []float64 {
	c.Send(dst, send)
	return c.Recv(src)
}

// Gatherv collects variable-length contributions from every rank at root,
// packed contiguously in rank order (displacements are the prefix sums of
// counts). Zero counts are valid contributions. Returns the packed buffer at
// root and nil elsewhere.
func (c *Comm) Gatherv(send []float64, counts []int, root int) ([]float64, error) {
	if err := c.checkCollectiveArgs(counts, root); err != nil {
		return nil, err
	}
	if len(send) != counts[c.rank] {
		return nil, fmt.Errorf("gatherv: rank %d contributes %d values, counts says %d",
			c.rank, len(send), counts[c.rank])
	}
	c.Send(root, send)
	if c.rank != root {
		return nil, nil
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	recv := make([]float64, 0, total)
	for src := 0; src < c.Size(); src++ {
		part := c.Recv(src)
		if len(part) != counts[src] {
			return nil, fmt.Errorf("gatherv: rank %d sent %d values, expected %d", src, len(part), counts[src])
		}
		recv = append(recv, part...)
	}
	return recv, nil
}

// Scatterv is the inverse of Gatherv: root slices send (packed in rank order
// per counts) and every rank receives its part.
func (c *Comm) Scatterv(send []float64, counts []int, root int) ([]float64, error) {
	if err := c.checkCollectiveArgs(counts, root); err != nil {
		return nil, err
	}
	if c.rank == root {
		total := 0
		for _, n := range counts {
			total += n
		}
		if len(send) != total {
			return nil, fmt.Errorf("scatterv: root buffer has %d values, counts sum to %d", len(send), total)
		}
		off := 0
		for dst := 0; dst < c.Size(); dst++ {
			c.Send(dst, send[off:off+counts[dst]])
			off += counts[dst]
		}
	}
	return c.Recv(root), nil
}

func (c *Comm) checkCollectiveArgs(counts []int, root int) error {
	if root < 0 || root >= c.Size() {
		return fmt.Errorf("root %d out of range for communicator of size %d", root, c.Size())
	}
	if len(counts) != c.Size() {
		return fmt.Errorf("counts has %d entries, communicator has %d ranks", len(counts), c.Size())
	}
	for i, n := range counts {
		if n < 0 {
			return fmt.Errorf("counts[%d] is negative: %d", i, n)
		}
	}
	return nil
}
