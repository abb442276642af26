package policynet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corvidchess/corvid/features"
)

func TestKMatchesSpecExamples(t *testing.T) {
	chess := New(768, 64, 0)
	require.Equal(t, 128, chess.K())

	ataxx := New(2916, 49, 1)
	require.Equal(t, 99, ataxx.K())
}

func TestPriorsSumToOne(t *testing.T) {
	logits := []float32{0.1, 2.0, -1.5, 0.0}
	p := Priors(logits, 1.0)
	var sum float32
	for _, v := range p {
		sum += v
	}
	require.InDelta(t, 1.0, sum, 1e-4)
}

func TestPriorsEmpty(t *testing.T) {
	require.Empty(t, Priors(nil, 1.0))
}

func TestPriorsStableUnderShift(t *testing.T) {
	a := Priors([]float32{1, 2, 3}, 1.0)
	b := Priors([]float32{101, 102, 103}, 1.0)
	for i := range a {
		require.InDelta(t, a[i], b[i], 1e-4)
	}
}

func TestLogitDeterministic(t *testing.T) {
	n := New(8, 4, 0)
	for s := range n.Subnets {
		for f := range n.Subnets[s].Weights {
			for o := 0; o < OutWidth; o++ {
				n.Subnets[s].Weights[f][o] = int16((s + f + o) % 11)
			}
		}
	}
	feats := features.Sparse{1, 2, 3}
	from := n.FromSlot(0, 0)
	to := n.ToSlot(2, 0)
	a := n.Logit(from, to, feats)
	b := n.Logit(from, to, feats)
	require.Equal(t, a, b)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	n := New(8, 4, 0)
	for s := range n.Subnets {
		for f := range n.Subnets[s].Weights {
			for o := 0; o < OutWidth; o++ {
				n.Subnets[s].Weights[f][o] = int16(s*7 + f*3 + o)
			}
		}
		for o := 0; o < OutWidth; o++ {
			n.Subnets[s].Bias[o] = int16(s + o)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, n.Save(&buf))
	require.EqualValues(t, n.ByteSize(), buf.Len())

	loaded, err := Load(&buf, 8, 4, 0)
	require.NoError(t, err)
	require.Equal(t, n.Subnets, loaded.Subnets)
}
