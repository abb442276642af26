package valuenet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corvidchess/corvid/accum"
	"github.com/corvidchess/corvid/features"
)

func TestEvalDeterministic(t *testing.T) {
	n := New(8, 4)
	for i := range n.L1Weights {
		for j := range n.L1Weights[i].Vals {
			n.L1Weights[i].Vals[j] = int16((i + j) % 17)
		}
	}
	n.L1Bias.Vals[0] = 5
	n.L2Weights.Vals[1] = 3
	n.L2Bias = -2

	feats := features.Sparse{1, 3, 5}
	a := n.Eval(feats)
	b := n.Eval(feats)
	require.Equal(t, a, b)
}

func TestEvalZeroFeaturesUsesBiasOnly(t *testing.T) {
	n := New(4, 2)
	n.L1Bias.Vals[0] = 100
	n.L1Bias.Vals[1] = 50
	n.L2Weights.Vals[0] = 1
	n.L2Weights.Vals[1] = 1
	got := n.Eval(nil)
	want := (accumScrelu(100)+accumScrelu(50))/255*Scale/(255*64) + int32(0)*Scale/(255*64)
	require.Equal(t, want, got)
}

func accumScrelu(x int16) int32 {
	c := x
	if c < 0 {
		c = 0
	}
	if c > 255 {
		c = 255
	}
	return int32(c) * int32(c)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	n := New(8, 4)
	for i := range n.L1Weights {
		for j := range n.L1Weights[i].Vals {
			n.L1Weights[i].Vals[j] = int16(i*4 + j)
		}
	}
	n.L1Bias.Vals[0] = 7
	n.L2Weights.Vals[2] = 9
	n.L2Bias = 11

	var buf bytes.Buffer
	require.NoError(t, n.Save(&buf))
	require.EqualValues(t, n.ByteSize(), buf.Len())

	loaded, err := Load(&buf, 8, 4)
	require.NoError(t, err)
	require.Equal(t, n.L1Bias.Vals, loaded.L1Bias.Vals)
	require.Equal(t, n.L2Weights.Vals, loaded.L2Weights.Vals)
	require.Equal(t, n.L2Bias, loaded.L2Bias)
	for i := range n.L1Weights {
		require.Equal(t, n.L1Weights[i].Vals, loaded.L1Weights[i].Vals)
	}
}

func TestEvalPanicsOnScratchWidthMismatch(t *testing.T) {
	n := New(4, 4)
	require.Panics(t, func() {
		n.EvalInto(nil, accum.New[int16](2))
	})
}
