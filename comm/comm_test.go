package comm

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGathervScatterv(t *testing.T) {
	counts := []int{1, 2, 0, 3}
	root := 1

	err := Run(4, func(c *Comm) error {
		send := make([]float64, counts[c.Rank()])
		for i := range send {
			send[i] = float64(10*c.Rank() + i)
		}

		gathered, err := c.Gatherv(send, counts, root)
		if err != nil {
			return err
		}
		if c.Rank() == root {
			assert.Equal(t, []float64{0, 10, 11, 30, 31, 32}, gathered)
		} else {
			assert.Nil(t, gathered)
		}

		// Round-trip: scatter the packed buffer back out.
		back, err := c.Scatterv(gathered, counts, root)
		if err != nil {
			return err
		}
		assert.Equal(t, send, back)
		return nil
	})
	require.NoError(t, err)
}

func TestGathervZeroLengthContribution(t *testing.T) {
	// A rank outside the logical pattern contributes zero values; the packed
	// result must be unaffected.
	counts := []int{2, 0}
	err := Run(2, func(c *Comm) error {
		send := []float64{1, 2}[:counts[c.Rank()]]
		gathered, err := c.Gatherv(send, counts, 0)
		if err != nil {
			return err
		}
		if c.Rank() == 0 {
			assert.Equal(t, []float64{1, 2}, gathered)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestGathervCountMismatch(t *testing.T) {
	err := Run(2, func(c *Comm) error {
		if c.Rank() == 0 {
			_, err := c.Gatherv([]float64{1, 2, 3}, []int{2, 2}, 0)
			assert.Error(t, err)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestBarrierOrdersPhases(t *testing.T) {
	var before atomic.Int64
	err := Run(8, func(c *Comm) error {
		before.Add(1)
		c.Barrier()
		// Every rank must have completed the pre-barrier phase.
		assert.Equal(t, int64(8), before.Load())
		return nil
	})
	require.NoError(t, err)
}

func TestBarrierReusable(t *testing.T) {
	err := Run(4, func(c *Comm) error {
		for i := 0; i < 100; i++ {
			c.Barrier()
		}
		return nil
	})
	require.NoError(t, err)
}

func TestSendrecvExchange(t *testing.T) {
	err := Run(2, func(c *Comm) error {
		peer := 1 - c.Rank()
		mine := []float64{float64(c.Rank())}
		got := c.Sendrecv(peer, mine, peer)
		assert.Equal(t, []float64{float64(peer)}, got)
		return nil
	})
	require.NoError(t, err)
}

func TestSendCopiesData(t *testing.T) {
	err := Run(2, func(c *Comm) error {
		if c.Rank() == 0 {
			buf := []float64{1, 2}
			c.Send(1, buf)
			buf[0] = -1 // must not affect the message in flight
		} else {
			got := c.Recv(0)
			assert.Equal(t, []float64{1, 2}, got)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestSplitIntoLines(t *testing.T) {
	// Six ranks over a (3 lines) x (2 per line) arrangement: color is the
	// line, key orders members within it.
	err := Run(6, func(c *Comm) error {
		color := c.Rank() / 2
		key := c.Rank() % 2
		sub := c.Split(color, key)

		assert.Equal(t, 2, sub.Size())
		assert.Equal(t, key, sub.Rank())

		// The sub-communicator must be fully functional: gather the world
		// ranks at the line root.
		gathered, err := sub.Gatherv([]float64{float64(c.Rank())}, []int{1, 1}, 0)
		if err != nil {
			return err
		}
		if sub.Rank() == 0 {
			assert.Equal(t, []float64{float64(2 * color), float64(2*color + 1)}, gathered)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestSplitKeyOrdersMembers(t *testing.T) {
	// Reversed keys must reverse the sub-communicator's rank order.
	err := Run(4, func(c *Comm) error {
		sub := c.Split(0, -c.Rank())
		assert.Equal(t, 4, sub.Size())
		assert.Equal(t, 3-c.Rank(), sub.Rank())
		return nil
	})
	require.NoError(t, err)
}

func TestClusterValidation(t *testing.T) {
	_, err := NewCluster(0)
	assert.Error(t, err)

	cl, err := NewCluster(2)
	require.NoError(t, err)
	assert.Panics(t, func() { cl.Comm(2) })
}
