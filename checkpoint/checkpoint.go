// Package checkpoint defines the float32 training checkpoint format
// cmd/train writes and cmd/quantize reads: gob-encoded weight tensors
// (spec.md §6 treats the packed runtime blob as an opaque input; this is
// the pre-quantization representation that feeds it). gob is the one
// serialization format in the standard library that round-trips nested
// float32 slices without a schema, and nothing in the retrieved pack
// offers a better fit for an internal training artifact no other tool
// needs to read (unlike the runtime blob itself, which network.go frames
// by hand for network.Load's alignment/size guarantees).
package checkpoint

import (
	"encoding/gob"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/corvidchess/corvid/policynet"
	"github.com/corvidchess/corvid/valuenet"
)

// ValueNet is the float32 form of a valuenet.Net, as cmd/train's float32
// SGD loop produces it.
type ValueNet struct {
	Input, Hidden int
	L1Weights     [][]float32 // [Input][Hidden]
	L1Bias        []float32   // [Hidden]
	L2Weights     []float32   // [Hidden]
	L2Bias        float32
}

// PolicyNet is the float32 form of a policynet.Net.
type PolicyNet struct {
	Input, NumSquares, SpecialSlots int
	SubnetWeights                   [][][policynet.OutWidth]float32 // [K][Input]
	SubnetBias                      [][policynet.OutWidth]float32   // [K]
}

// Checkpoint bundles both networks for one game, the unit cmd/train saves
// per training run and cmd/quantize consumes.
type Checkpoint struct {
	Value  ValueNet
	Policy PolicyNet
}

// Save gob-encodes c to w.
func Save(w io.Writer, c Checkpoint) error {
	return errors.WithStack(gob.NewEncoder(w).Encode(c))
}

// Load gob-decodes a Checkpoint from r.
func Load(r io.Reader) (Checkpoint, error) {
	var c Checkpoint
	if err := gob.NewDecoder(r).Decode(&c); err != nil {
		return Checkpoint{}, errors.WithStack(err)
	}
	return c, nil
}

// QuantizeValue packs v into the runtime's fixed-point valuenet.Net, using
// the same QA/QB scales spec §4.2 fixes for inference.
func (c Checkpoint) QuantizeValue() *valuenet.Net {
	v := c.Value
	n := valuenet.New(v.Input, v.Hidden)
	for i, row := range v.L1Weights {
		for j, w := range row {
			n.L1Weights[i].Vals[j] = quant(w, accumQA)
		}
	}
	for j, w := range v.L1Bias {
		n.L1Bias.Vals[j] = quant(w, accumQA)
	}
	for j, w := range v.L2Weights {
		n.L2Weights.Vals[j] = quant(w, accumQB)
	}
	n.L2Bias = quant(v.L2Bias, accumQA*accumQB)
	return n
}

// QuantizePolicy packs p into the runtime's fixed-point policynet.Net.
func (c Checkpoint) QuantizePolicy() *policynet.Net {
	p := c.Policy
	n := policynet.New(p.Input, p.NumSquares, p.SpecialSlots)
	for s, weights := range p.SubnetWeights {
		for f, row := range weights {
			for o, w := range row {
				n.Subnets[s].Weights[f][o] = quant(w, policyQuantScale)
			}
		}
	}
	for s, bias := range p.SubnetBias {
		for o, w := range bias {
			n.Subnets[s].Bias[o] = quant(w, policyQuantScale)
		}
	}
	return n
}

// accumQA/accumQB mirror accum.QA/accum.QB; duplicated here as untyped
// constants rather than imported, and kept in sync manually.
const (
	accumQA = 255
	accumQB = 64

	// policyQuantScale mirrors policynet's unexported quantScale; kept in
	// sync manually since policynet intentionally doesn't export an
	// internal tuning constant to every caller.
	policyQuantScale = 64
)

func quant(w float32, scale float32) int16 {
	v := math.Round(float64(w * scale))
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
