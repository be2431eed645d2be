package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankCoordsRoundTrip(t *testing.T) {
	g, err := New(2, 3, 4, 24)
	require.NoError(t, err)

	seen := make(map[[3]int]bool)
	for rank := 0; rank < g.Size(); rank++ {
		mz, my, mx := g.Coords(rank)
		assert.True(t, mz >= 0 && mz < g.Npz)
		assert.True(t, my >= 0 && my < g.Npy)
		assert.True(t, mx >= 0 && mx < g.Npx)
		assert.Equal(t, rank, g.Rank(mz, my, mx))

		coord := [3]int{mz, my, mx}
		assert.False(t, seen[coord], "coordinate %v assigned twice", coord)
		seen[coord] = true
	}
	assert.Len(t, seen, 24)
}

func TestXVariesFastest(t *testing.T) {
	g, err := New(2, 2, 4, 16)
	require.NoError(t, err)

	// Consecutive ranks walk along x within a line.
	for rank := 0; rank < g.Size()-1; rank++ {
		mz, my, mx := g.Coords(rank)
		if mx < g.Npx-1 {
			assert.Equal(t, rank+1, g.Rank(mz, my, mx+1))
		}
	}
}

func TestLineColor(t *testing.T) {
	g, err := New(2, 2, 2, 8)
	require.NoError(t, err)

	for rank := 0; rank < g.Size(); rank++ {
		mz, my, mx := g.Coords(rank)
		for other := 0; other < g.Size(); other++ {
			oz, oy, _ := g.Coords(other)
			sameLine := oz == mz && oy == my
			assert.Equal(t, sameLine, g.LineColor(rank) == g.LineColor(other),
				"ranks %d and %d", rank, other)
		}
		_ = mx
	}
}

func TestValidation(t *testing.T) {
	t.Run("SizeMismatch", func(t *testing.T) {
		_, err := New(2, 2, 2, 9)
		assert.Error(t, err)
	})
	t.Run("NonPositiveCounts", func(t *testing.T) {
		_, err := New(0, 2, 2, 0)
		assert.Error(t, err)
	})
	t.Run("UnevenSplit", func(t *testing.T) {
		g, err := New(2, 2, 2, 8)
		require.NoError(t, err)
		_, _, _, err = g.LocalShape(16, 16, 17)
		assert.Error(t, err)
	})
	t.Run("EvenSplit", func(t *testing.T) {
		g, err := New(2, 2, 2, 8)
		require.NoError(t, err)
		nz, ny, nx, err := g.LocalShape(16, 8, 32)
		require.NoError(t, err)
		assert.Equal(t, []int{8, 4, 16}, []int{nz, ny, nx})
	})
}
