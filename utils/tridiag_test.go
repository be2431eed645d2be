package utils

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveTridiagKnownSystem(t *testing.T) {
	// [2 1; 1 2] x = [3; 3] has the solution [1; 1].
	x, err := SolveTridiag([]float64{0, 1}, []float64{2, 2}, []float64{1, 0}, []float64{3, 3})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, x[0], 1e-14)
	assert.InDelta(t, 1.0, x[1], 1e-14)
}

func TestSolveTridiagResidual(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, n := range []int{2, 8, 33, 100} {
		a := make([]float64, n)
		b := make([]float64, n)
		c := make([]float64, n)
		rhs := make([]float64, n)
		for i := 0; i < n; i++ {
			a[i] = rng.Float64() - 0.5
			b[i] = 2.0 + rng.Float64() // diagonally dominant
			c[i] = rng.Float64() - 0.5
			rhs[i] = rng.NormFloat64()
		}

		x, err := SolveTridiag(a, b, c, rhs)
		require.NoError(t, err, "n=%d", n)

		for i := 0; i < n; i++ {
			got := b[i] * x[i]
			if i > 0 {
				got += a[i] * x[i-1]
			}
			if i < n-1 {
				got += c[i] * x[i+1]
			}
			assert.InDelta(t, rhs[i], got, 1e-12, "n=%d row %d", n, i)
		}
	}
}

func TestSolveTridiagValidation(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		_, err := SolveTridiag(nil, nil, nil, nil)
		assert.Error(t, err)
	})
	t.Run("LengthMismatch", func(t *testing.T) {
		_, err := SolveTridiag([]float64{0}, []float64{1, 1}, []float64{0, 0}, []float64{1, 1})
		assert.Error(t, err)
	})
	t.Run("Singular", func(t *testing.T) {
		_, err := SolveTridiag([]float64{0}, []float64{0}, []float64{0}, []float64{1})
		assert.Error(t, err)
	})
}

func TestSolveTridiagLeavesInputsIntact(t *testing.T) {
	a := []float64{0, 1, 1}
	b := []float64{4, 4, 4}
	c := []float64{1, 1, 0}
	rhs := []float64{1, 2, 3}
	_, err := SolveTridiag(a, b, c, rhs)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 1}, a)
	assert.Equal(t, []float64{4, 4, 4}, b)
	assert.Equal(t, []float64{1, 1, 0}, c)
	assert.Equal(t, []float64{1, 2, 3}, rhs)
}

func TestSolveTridiagNonSymmetric(t *testing.T) {
	// Forward elimination with pivoting must handle rows where the
	// off-diagonals dominate on one side.
	a := []float64{0, 3, 3, 3}
	b := []float64{1, 1, 1, 1}
	c := []float64{0.5, 0.5, 0.5, 0}
	rhs := []float64{1, 0, 0, 1}
	x, err := SolveTridiag(a, b, c, rhs)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		got := b[i] * x[i]
		if i > 0 {
			got += a[i] * x[i-1]
		}
		if i < 3 {
			got += c[i] * x[i+1]
		}
		if math.Abs(got-rhs[i]) > 1e-12 {
			t.Errorf("row %d residual %g", i, got-rhs[i])
		}
	}
}
