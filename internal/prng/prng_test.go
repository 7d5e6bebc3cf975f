package prng

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestReproducibility covers P3: for seed 12345, the first values of
// next_uint32() form a fixed, recorded vector.
func TestReproducibility(t *testing.T) {
	recorded := []uint32{87628868, 71072467, 2332836374, 2726892157, 3908547000}

	p := New(12345)
	for i, want := range recorded {
		got := p.NextUint32()
		require.Equalf(t, want, got, "value %d in sequence", i)
	}
}

func TestTwoEngineSameSeedAgree(t *testing.T) {
	a := New(42)
	b := New(42)

	for i := 0; i < 1000; i++ {
		require.Equal(t, a.NextUint32(), b.NextUint32())
	}
}

func TestShuffleRecordedVector(t *testing.T) {
	p := New(999)
	list := []int{0, 1, 2, 3, 4, 5}
	Shuffle(p, list)

	require.Equal(t, []int{5, 3, 1, 0, 2, 4}, list)
}

func TestShuffleDeterministicAcrossEngines(t *testing.T) {
	list1 := []int{0, 1, 2, 3, 4, 5, 6, 7}
	list2 := []int{0, 1, 2, 3, 4, 5, 6, 7}

	Shuffle(New(7), list1)
	Shuffle(New(7), list2)

	require.Equal(t, list1, list2)
}

func TestRangeInclusiveBounds(t *testing.T) {
	p := New(1)
	for i := 0; i < 10000; i++ {
		v := p.Range(5, 9)
		require.GreaterOrEqual(t, v, int32(5))
		require.LessOrEqual(t, v, int32(9))
	}
}

func TestGetSetState(t *testing.T) {
	p := New(123)
	p.NextUint32()
	p.NextUint32()
	state := p.GetState()

	restored := New(0)
	restored.SetState(state)

	require.Equal(t, p.NextUint32(), restored.NextUint32())
}
