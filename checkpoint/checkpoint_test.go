package checkpoint

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corvidchess/corvid/policynet"
)

func sampleCheckpoint() Checkpoint {
	return Checkpoint{
		Value: ValueNet{
			Input:  3,
			Hidden: 2,
			L1Weights: [][]float32{
				{0.5, -0.5},
				{1, -1},
				{0.25, 0.75},
			},
			L1Bias:    []float32{0.1, -0.1},
			L2Weights: []float32{2, -2},
			L2Bias:    0.5,
		},
		Policy: PolicyNet{
			Input:        3,
			NumSquares:   1,
			SpecialSlots: 0,
			SubnetWeights: [][][policynet.OutWidth]float32{
				{
					{0.1, 0.2, 0.3, 0.4},
					{0.1, 0.2, 0.3, 0.4},
					{0.1, 0.2, 0.3, 0.4},
				},
				{
					{-0.1, -0.2, -0.3, -0.4},
					{-0.1, -0.2, -0.3, -0.4},
					{-0.1, -0.2, -0.3, -0.4},
				},
			},
			SubnetBias: [][policynet.OutWidth]float32{
				{0, 0, 0, 0},
				{0, 0, 0, 0},
			},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := sampleCheckpoint()
	require.NoError(t, Save(&buf, want))

	got, err := Load(&buf)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestQuantizeValueProducesCorrectlyShapedNet(t *testing.T) {
	c := sampleCheckpoint()
	n := c.QuantizeValue()
	require.Len(t, n.L1Weights, c.Value.Input)
	require.Equal(t, quant(0.5, accumQA), n.L1Weights[0].Vals[0])
	require.Equal(t, quant(0.5, accumQA*accumQB), n.L2Bias)
}

func TestQuantizePolicyProducesCorrectlyShapedNet(t *testing.T) {
	c := sampleCheckpoint()
	n := c.QuantizePolicy()
	require.Len(t, n.Subnets, len(c.Policy.SubnetWeights))
	require.Equal(t, quant(0.1, policyQuantScale), n.Subnets[0].Weights[0][0])
}

func TestQuantClampsToInt16Range(t *testing.T) {
	require.EqualValues(t, 32767, quant(1e9, 1))
	require.EqualValues(t, -32768, quant(-1e9, 1))
}
