package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenormalizeSumsToOne(t *testing.T) {
	cases := []struct {
		rawPos, rawNeg float64
	}{
		{0.4, 0.6},
		{0.03, 0.01},
		{0.0001, 0.0002},
		{0.5, 0.5},
		{1, 0},
	}

	for _, tc := range cases {
		pos, neg := Renormalize(tc.rawPos, tc.rawNeg)
		require.InDelta(t, 1.0, pos+neg, 1e-6, "raw=(%v,%v)", tc.rawPos, tc.rawNeg)
		require.InDelta(t, tc.rawPos/(tc.rawPos+tc.rawNeg), pos, 1e-9)
	}
}

func TestRenormalizeZeroMass(t *testing.T) {
	pos, neg := Renormalize(0, 0)
	require.Zero(t, pos)
	require.Zero(t, neg)
}

func TestRenormalizeUndoesBatchDilution(t *testing.T) {
	// A pair scored alone and the same pair diluted inside a larger batch
	// must renormalize to the same two-way distribution.
	alonePos, aloneNeg := Renormalize(0.7, 0.3)
	dilutedPos, dilutedNeg := Renormalize(0.07, 0.03)
	require.InDelta(t, alonePos, dilutedPos, 1e-9)
	require.InDelta(t, aloneNeg, dilutedNeg, 1e-9)
}
