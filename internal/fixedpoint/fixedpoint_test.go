package fixedpoint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRoundTrip covers P2: to_float(from_float(v)) within 2^-16 of v.
func TestRoundTrip(t *testing.T) {
	values := []float64{0, 1, -1, 32767, -32768, 3.1415, -2048.0625, 100.0001}
	for _, v := range values {
		got := FromFloat(v).ToFloat()
		diff := got - v
		if diff < 0 {
			diff = -diff
		}
		require.LessOrEqualf(t, diff, 1.0/65536.0, "round trip of %v produced %v", v, got)
	}
}

func TestArithmetic(t *testing.T) {
	a := FromInt(3)
	b := FromInt(4)

	require.Equal(t, FromInt(7), a.Add(b))
	require.Equal(t, FromInt(-1), a.Sub(b))
	require.Equal(t, FromInt(12), a.Mul(b))

	q, err := b.Div(a)
	require.NoError(t, err)
	require.InDelta(t, 4.0/3.0, q.ToFloat(), 1e-3)
}

func TestDivByZero(t *testing.T) {
	_, err := FromInt(1).Div(FromInt(0))
	require.ErrorIs(t, err, ErrDivideByZero)
}

func TestWraparound(t *testing.T) {
	max := Fixed(1<<31 - 1)
	wrapped := max.Add(FromInt(1))
	require.Equal(t, Fixed(-1<<31+(1<<16-1)), wrapped)
}

func TestClampMinMax(t *testing.T) {
	require.Equal(t, FromInt(5), Clamp(FromInt(10), FromInt(0), FromInt(5)))
	require.Equal(t, FromInt(0), Clamp(FromInt(-10), FromInt(0), FromInt(5)))
	require.Equal(t, FromInt(2), Min(FromInt(2), FromInt(5)))
	require.Equal(t, FromInt(5), Max(FromInt(2), FromInt(5)))
}
