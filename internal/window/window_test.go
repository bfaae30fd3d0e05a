package window

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return NewStore(Config{}, zerolog.Nop())
}

func TestPushAccumulatesAboveFloor(t *testing.T) {
	s := newTestStore()

	d := s.Push("u1", 0.6)
	require.Equal(t, []float64{0.6}, d.Window)
	require.InDelta(t, 0.6, d.Cumulative, 1e-9)
	require.False(t, d.Intervention)

	d = s.Push("u1", 0.7)
	require.InDelta(t, 1.3, d.Cumulative, 1e-9)
	require.False(t, d.Intervention)

	d = s.Push("u1", 0.8)
	require.InDelta(t, 2.1, d.Cumulative, 1e-9)
	require.True(t, d.Intervention)
}

func TestPushIgnoresLowProbabilitiesInSum(t *testing.T) {
	s := newTestStore()

	d := s.Push("u1", 0.4)
	require.Equal(t, []float64{0.4}, d.Window, "low value still enters the window")
	require.Zero(t, d.Cumulative)
	require.False(t, d.Intervention)

	// Exactly the floor does not count either; the sum is strictly-greater.
	d = s.Push("u1", 0.5)
	require.Zero(t, d.Cumulative)
}

func TestPushEvictsOldest(t *testing.T) {
	s := newTestStore()

	for i := 1; i <= 6; i++ {
		s.Push("u1", float64(i)/100)
	}

	snap := s.Snapshot("u1")
	require.Len(t, snap, 5)
	require.Equal(t, []float64{0.02, 0.03, 0.04, 0.05, 0.06}, snap)
}

func TestPushDiscardsNonFinite(t *testing.T) {
	s := newTestStore()
	s.Push("u1", 0.9)

	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		d := s.Push("u1", bad)
		require.Equal(t, []float64{0.9}, d.Window, "non-finite values must not be appended")
		require.InDelta(t, 0.9, d.Cumulative, 1e-9)
	}
}

func TestSnapshotUnseenUser(t *testing.T) {
	s := newTestStore()
	require.Empty(t, s.Snapshot("ghost"))
}

func TestReset(t *testing.T) {
	s := newTestStore()
	s.Push("u1", 0.9)
	s.Push("u2", 0.8)

	s.Reset("u1")
	require.Empty(t, s.Snapshot("u1"))
	require.Equal(t, []float64{0.8}, s.Snapshot("u2"), "reset must not touch other users")

	// Resetting an unseen user is a no-op.
	s.Reset("never-seen")
}

func TestDecideDoesNotMutate(t *testing.T) {
	s := newTestStore()
	s.Push("u1", 0.7)

	d := s.Decide("u1")
	require.Equal(t, []float64{0.7}, d.Window)
	require.Equal(t, []float64{0.7}, s.Snapshot("u1"))
}

func TestUserIsolationUnderConcurrency(t *testing.T) {
	s := newTestStore()

	const perUser = 50
	var wg sync.WaitGroup
	for u := 0; u < 8; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", u)
			for i := 0; i < perUser; i++ {
				s.Push(user, float64(u)/10)
			}
		}(u)
	}
	wg.Wait()

	for u := 0; u < 8; u++ {
		snap := s.Snapshot(fmt.Sprintf("user-%d", u))
		require.Len(t, snap, 5)
		for _, v := range snap {
			require.InDelta(t, float64(u)/10, v, 1e-9, "windows must never mix across users")
		}
	}
}

func TestCustomThresholds(t *testing.T) {
	s := NewStore(Config{Size: 2, MinProb: 0.1, InterventionThreshold: 0.5}, zerolog.Nop())

	d := s.Push("u1", 0.3)
	require.False(t, d.Intervention)

	d = s.Push("u1", 0.3)
	require.True(t, d.Intervention)

	d = s.Push("u1", 0.05)
	require.Equal(t, []float64{0.3, 0.05}, d.Window)
	require.InDelta(t, 0.3, d.Cumulative, 1e-9)
}
