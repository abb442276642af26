// Package accum implements the fixed-width accumulator primitives shared by
// the value and policy networks: element-wise add/madd over aligned vectors,
// and the SCReLU activation in both its quantized integer and float forms.
package accum

import "golang.org/x/exp/constraints"

// QA is the quantization scale applied to the first layer's weights and
// activations. Clamping an i16 accumulator value to [0, QA] before squaring
// is what "S" and "C" stand for in SCReLU.
const QA = 255

// QB is the second quantization scale, applied to the output layer.
const QB = 64

// Accumulator is a fixed-size vector of N values of type T, aligned the way
// a packed network blob lays it out. T is either int16 (quantized inference)
// or float32 (training-time / reference arithmetic).
type Accumulator[T constraints.Integer | constraints.Float] struct {
	Vals []T
}

// New allocates a zeroed accumulator of width n.
func New[T constraints.Integer | constraints.Float](n int) Accumulator[T] {
	return Accumulator[T]{Vals: make([]T, n)}
}

// Zero resets every lane to zero.
func (a Accumulator[T]) Zero() {
	for i := range a.Vals {
		a.Vals[i] = 0
	}
}

// Copy overwrites a's lanes with other's. Panics on length mismatch, same as
// a slice copy would silently truncate otherwise.
func (a Accumulator[T]) Copy(other Accumulator[T]) {
	if len(a.Vals) != len(other.Vals) {
		panic("accum: copy width mismatch")
	}
	copy(a.Vals, other.Vals)
}

// AddInPlace performs a += other, lane-wise.
func (a Accumulator[T]) AddInPlace(other Accumulator[T]) {
	if len(a.Vals) != len(other.Vals) {
		panic("accum: add width mismatch")
	}
	for i := range a.Vals {
		a.Vals[i] += other.Vals[i]
	}
}

// SubInPlace performs a -= other, lane-wise. Used when undoing a feature
// toggle without recomputing the whole accumulator from scratch.
func (a Accumulator[T]) SubInPlace(other Accumulator[T]) {
	if len(a.Vals) != len(other.Vals) {
		panic("accum: sub width mismatch")
	}
	for i := range a.Vals {
		a.Vals[i] -= other.Vals[i]
	}
}

// Madd32 performs a += scalar * other for float32 accumulators. There is no
// integer form: quantized inference never needs a scaled add, only the
// unscaled feature-weight add used during the feature transformer pass.
func Madd32(a, other Accumulator[float32], scalar float32) {
	if len(a.Vals) != len(other.Vals) {
		panic("accum: madd width mismatch")
	}
	for i := range a.Vals {
		a.Vals[i] += scalar * other.Vals[i]
	}
}

// ScreluI16 is the quantized SCReLU activation: clamp(x, 0, QA)^2, producing
// an int32 wide enough to hold QA^2 without overflow.
func ScreluI16(x int16) int32 {
	c := clampI16(x, 0, QA)
	v := int32(c)
	return v * v
}

// ScreluF32 is the float form of SCReLU: clamp(x, 0, 1)^2.
func ScreluF32(x float32) float32 {
	c := x
	if c < 0 {
		c = 0
	} else if c > 1 {
		c = 1
	}
	return c * c
}

func clampI16(x, lo, hi int16) int16 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
