package network

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corvidchess/corvid/policynet"
	"github.com/corvidchess/corvid/valuenet"
)

func testShape() Shape {
	return Shape{
		ValueInput:         8,
		ValueHidden:        4,
		PolicyInput:        8,
		PolicyNumSquares:   2,
		PolicySpecialSlots: 1,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	shape := testShape()
	n := &Net{
		Value:  valuenet.New(shape.ValueInput, shape.ValueHidden),
		Policy: policynet.New(shape.PolicyInput, shape.PolicyNumSquares, shape.PolicySpecialSlots),
	}
	n.Value.L2Bias = 7
	n.Policy.Subnets[0].Bias[0] = 9

	path := filepath.Join(t.TempDir(), "net.bin")
	require.NoError(t, Save(path, n))

	loaded, err := Load(path, shape)
	require.NoError(t, err)
	require.Equal(t, n.Value.L2Bias, loaded.Value.L2Bias)
	require.Equal(t, n.Policy.Subnets[0].Bias[0], loaded.Policy.Subnets[0].Bias[0])
}

func TestLoadRejectsWrongSizedBlob(t *testing.T) {
	shape := testShape()
	n := &Net{
		Value:  valuenet.New(shape.ValueInput, shape.ValueHidden),
		Policy: policynet.New(shape.PolicyInput, shape.PolicyNumSquares, shape.PolicySpecialSlots),
	}
	path := filepath.Join(t.TempDir(), "net.bin")
	require.NoError(t, Save(path, n))

	wrongShape := shape
	wrongShape.ValueHidden = shape.ValueHidden * 8
	_, err := Load(path, wrongShape)
	require.Error(t, err)
}
