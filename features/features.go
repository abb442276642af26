// Package features defines the sparse feature vector shape shared by a
// Game's policy/value feature extractors and the two networks that consume
// them, so neither network package needs to import a concrete game.
package features

// Sparse is a list of active (nonzero) input indices into a network's first
// layer. Chess value features are a one-hot-per-piece encoding over 768
// inputs (64 squares x 6 piece types x 2 colors); ataxx's are a one-hot
// encoding over 98 inputs (49 squares x 2 side-relative colors, see
// game/ataxx). Indices must
// be within [0, INPUT) of whichever network consumes them; that bound is
// the network's responsibility to enforce, not this package's.
type Sparse []int32
