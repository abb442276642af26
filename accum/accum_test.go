package accum

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScreluI16Exhaustive(t *testing.T) {
	for x := -32768; x <= 32767; x++ {
		got := ScreluI16(int16(x))
		want := clampRef(x, 0, QA)
		want = want * want
		require.Equalf(t, int32(want), got, "x=%d", x)
	}
}

func clampRef(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func TestScreluF32(t *testing.T) {
	require.Equal(t, float32(0), ScreluF32(-1))
	require.Equal(t, float32(1), ScreluF32(1.5))
	require.InDelta(t, 0.25, ScreluF32(0.5), 1e-9)
}

func TestAddInPlace(t *testing.T) {
	a := New[int16](4)
	b := New[int16](4)
	for i := range b.Vals {
		b.Vals[i] = int16(i + 1)
	}
	a.AddInPlace(b)
	require.Equal(t, []int16{1, 2, 3, 4}, a.Vals)
	a.SubInPlace(b)
	require.Equal(t, []int16{0, 0, 0, 0}, a.Vals)
}

func TestMadd32(t *testing.T) {
	a := New[float32](3)
	b := New[float32](3)
	b.Vals[0], b.Vals[1], b.Vals[2] = 1, 2, 3
	Madd32(a, b, 2)
	require.Equal(t, []float32{2, 4, 6}, a.Vals)
}

func TestCopyPanicsOnMismatch(t *testing.T) {
	a := New[int16](2)
	b := New[int16](3)
	require.Panics(t, func() { a.Copy(b) })
}
