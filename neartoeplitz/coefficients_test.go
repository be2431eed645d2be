package neartoeplitz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog2SizeRejectsInvalid(t *testing.T) {
	for _, n := range []int{0, 1, 2, 3, 5, 6, 12, 100} {
		_, err := log2Size(n)
		assert.Error(t, err, "n=%d", n)
	}
	for n, want := range map[int]int{4: 2, 8: 3, 64: 6, 1024: 10} {
		got, err := log2Size(n)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestPrecomputeLevelZero(t *testing.T) {
	cf := Coeffs{B1: 1, C1: 2, Ai: 0.25, Bi: 1, Ci: 0.25, An: 2, Bn: 1}
	lv, err := precompute(cf, 8)
	require.NoError(t, err)

	// Level 0 comes straight from the interior row.
	assert.InDelta(t, 0.25, lv.k1[0], 1e-15)
	assert.InDelta(t, 0.25, lv.k2[0], 1e-15)
	assert.InDelta(t, -0.25*0.25, lv.a[0], 1e-15)
	assert.InDelta(t, 1-0.25*0.25-0.25*0.25, lv.b[0], 1e-15)
	assert.InDelta(t, -0.25*0.25, lv.c[0], 1e-15)

	// First-row chain uses the overridden b1/c1.
	assert.InDelta(t, 0.25/1.0, lv.k1First[0], 1e-15)
	assert.InDelta(t, 1-2*0.25-0.25*0.25, lv.bFirst[0], 1e-15)

	// Last-row chain uses an/bn.
	assert.InDelta(t, 2.0/1.0, lv.k1Last[0], 1e-15)
}

func TestPrecomputeFinalLevelHoldsLastRow(t *testing.T) {
	cf := Coeffs{B1: 1, C1: 2, Ai: 0.25, Bi: 1, Ci: 0.25, An: 2, Bn: 1}
	lv, err := precompute(cf, 4)
	require.NoError(t, err)

	// For nx=4 a single reduction leaves rows 1 and 3; the tail slots of a
	// and b hold row 3's reduced coefficients.
	k1Last := cf.An / cf.Bi
	assert.InDelta(t, -cf.Ai*k1Last, lv.a[1], 1e-15)
	assert.InDelta(t, cf.Bn-cf.Ci*k1Last, lv.b[1], 1e-15)
}

func TestPrecomputeRejectsBadSize(t *testing.T) {
	cf := Coeffs{B1: 1, C1: 2, Ai: 0.25, Bi: 1, Ci: 0.25, An: 2, Bn: 1}
	for _, n := range []int{2, 3, 12} {
		_, err := precompute(cf, n)
		assert.Error(t, err, "n=%d", n)
	}
}
