// Package policynet implements the per-square subnet policy network of
// spec §4.3: an array of K small sparse-input dense "subnets", one per
// (side-relative) board square slot, whose pairwise dot products score
// candidate moves before a temperature softmax turns them into edge
// priors.
package policynet

import (
	"encoding/binary"
	"io"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"github.com/corvidchess/corvid/features"
)

// OutWidth is the width of each subnet's output vector, fixed at 4 per
// spec §4.3.
const OutWidth = 4

// quantization scale for the subnet weights/activations. Unlike the value
// network (whose QA/QB are pinned by spec §4.2), spec §4.3 only says policy
// inference is "quantized"; it does not pin constants. corvid picks a
// single scale reused for both layers of the dot product and records the
// choice in DESIGN.md rather than inventing a second pair of knobs nothing
// in spec.md names.
const quantScale = 64

// Subnet is a single sparse-input dense layer with a ReLU activation:
// SparseConnected<ReLU, INPUT, OutWidth> in spec terms.
type Subnet struct {
	Weights [][OutWidth]int16 // [INPUT][OutWidth]
	Bias    [OutWidth]int16
}

func newSubnet(input int) Subnet {
	return Subnet{Weights: make([][OutWidth]int16, input)}
}

// Forward computes the subnet's dense output for the given active feature
// set, applying ReLU. The result is a fixed-size array returned by value.
func (s Subnet) Forward(feats features.Sparse) [OutWidth]int32 {
	var out [OutWidth]int32
	return s.ForwardInto(feats, out)
}

// ForwardInto is Forward with a caller-supplied output array. The array is
// passed and returned by value: its incoming contents are overwritten in
// the returned copy, and the caller's own variable is left unchanged.
func (s Subnet) ForwardInto(feats features.Sparse, out [OutWidth]int32) [OutWidth]int32 {
	for i := range out {
		out[i] = int32(s.Bias[i])
	}
	for _, f := range feats {
		row := s.Weights[f]
		for i := 0; i < OutWidth; i++ {
			out[i] += int32(row[i])
		}
	}
	for i := range out {
		if out[i] < 0 {
			out[i] = 0
		}
	}
	return out
}

// Net is the full array of K per-square subnets.
type Net struct {
	Input        int
	NumSquares   int // board squares per side-relative half (64 chess, 49 ataxx)
	SpecialSlots int // extra subnets beyond 2*NumSquares (0 for chess, 1 for 7x7 ataxx's pass slot)
	Subnets      []Subnet
}

// K returns the total subnet count, 2*NumSquares+SpecialSlots (spec §4.3:
// K=128 for 8x8 games, K=99 for 7x7 ataxx).
func (n *Net) K() int { return 2*n.NumSquares + n.SpecialSlots }

// New allocates a zeroed policy network of the given shape.
func New(input, numSquares, specialSlots int) *Net {
	n := &Net{Input: input, NumSquares: numSquares, SpecialSlots: specialSlots}
	n.Subnets = make([]Subnet, n.K())
	for i := range n.Subnets {
		n.Subnets[i] = newSubnet(input)
	}
	return n
}

// FromSlot and ToSlot implement spec §4.3 step 1's index computation:
//
//	from = m.from() XOR flip(p)
//	to   = base + (m.to() XOR flip(p))
//
// where flip is 56 for the non-side-to-move perspective and 0 for STM
// (chess's conventional vertical-flip normalization; ataxx's game package
// supplies its own flip constant for its board size).
func (n *Net) FromSlot(sq, flip int) int { return sq ^ flip }
func (n *Net) ToSlot(sq, flip int) int   { return n.NumSquares + (sq ^ flip) }

// Logit scores one candidate move as the dot product of its from-subnet and
// to-subnet forward outputs, scaled back out of the doubled fixed-point
// representation introduced by multiplying two already-quantized vectors.
func (n *Net) Logit(fromSlot, toSlot int, feats features.Sparse) float32 {
	u := n.Subnets[fromSlot].Forward(feats)
	v := n.Subnets[toSlot].Forward(feats)
	var dot int64
	for i := 0; i < OutWidth; i++ {
		dot += int64(u[i]) * int64(v[i])
	}
	return float32(dot) / float32(quantScale*quantScale)
}

// Priors computes the softmax-normalized prior for every candidate move's
// logit in logits, at the given temperature, following spec §4.3 step 4: gather
// all legal logits, then apply a single numerically-stable softmax over the
// whole set (never a per-move normalization).
func Priors(logits []float32, temperature float32) []float32 {
	out := make([]float32, len(logits))
	if len(logits) == 0 {
		return out
	}
	if temperature <= 0 {
		temperature = 1
	}
	max := logits[0]
	for _, l := range logits[1:] {
		if l > max {
			max = l
		}
	}
	var sum float32
	for i, l := range logits {
		e := math32.Exp((l - max) / temperature)
		out[i] = e
		sum += e
	}
	if sum > 0 {
		for i := range out {
			out[i] /= sum
		}
	} else {
		uniform := 1 / float32(len(out))
		for i := range out {
			out[i] = uniform
		}
	}
	return out
}

func byteSize(input, k int) int64 {
	raw := int64(input)*int64(k)*OutWidth*2 + int64(k)*OutWidth*2
	return alignUp(raw, 64)
}

func alignUp(n, align int64) int64 {
	if rem := n % align; rem != 0 {
		n += align - rem
	}
	return n
}

// ByteSize is the exact packed size of this network, 64-byte aligned.
func (n *Net) ByteSize() int64 { return byteSize(n.Input, n.K()) }

// Load reads a packed Net of the given shape from r.
func Load(r io.Reader, input, numSquares, specialSlots int) (*Net, error) {
	n := New(input, numSquares, specialSlots)
	for s := range n.Subnets {
		for f := 0; f < input; f++ {
			for o := 0; o < OutWidth; o++ {
				var v int16
				if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
					return nil, errors.WithMessagef(err, "policynet: subnet %d weight [%d][%d]", s, f, o)
				}
				n.Subnets[s].Weights[f][o] = v
			}
		}
		for o := 0; o < OutWidth; o++ {
			var v int16
			if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
				return nil, errors.WithMessagef(err, "policynet: subnet %d bias[%d]", s, o)
			}
			n.Subnets[s].Bias[o] = v
		}
	}
	rawSize := int64(input) * int64(n.K()) * OutWidth * 2 + int64(n.K())*OutWidth*2
	pad := byteSize(input, n.K()) - rawSize
	if pad > 0 {
		if _, err := io.CopyN(io.Discard, r, pad); err != nil {
			return nil, errors.WithMessage(err, "policynet: alignment padding")
		}
	}
	return n, nil
}

// Save writes n back out in the same packed layout Load expects.
func (n *Net) Save(w io.Writer) error {
	for s, sub := range n.Subnets {
		for f := 0; f < n.Input; f++ {
			for o := 0; o < OutWidth; o++ {
				if err := binary.Write(w, binary.LittleEndian, sub.Weights[f][o]); err != nil {
					return errors.WithMessagef(err, "policynet: subnet %d weight [%d][%d]", s, f, o)
				}
			}
		}
		for o := 0; o < OutWidth; o++ {
			if err := binary.Write(w, binary.LittleEndian, sub.Bias[o]); err != nil {
				return errors.WithMessagef(err, "policynet: subnet %d bias[%d]", s, o)
			}
		}
	}
	rawSize := int64(n.Input) * int64(n.K()) * OutWidth * 2 + int64(n.K())*OutWidth*2
	pad := byteSize(n.Input, n.K()) - rawSize
	if pad > 0 {
		if _, err := w.Write(make([]byte, pad)); err != nil {
			return errors.WithMessage(err, "policynet: alignment padding")
		}
	}
	return nil
}
