// Package mcts implements the double-buffered, lock-light parallel search
// tree spec §3 and §5 describe: a PUCT-guided Monte Carlo tree search whose
// nodes and edges live in one of two arena "halves" so a tree can be reused
// across successive search commands without a garbage collector pass over
// the whole structure (arena.go's half-swap).
package mcts

import (
	"sync/atomic"

	"github.com/corvidchess/corvid/game"
)

// NodePtr packs a half selector into its top bit and an index into the
// remaining 31 bits (spec §3's Node.id encoding), so a pointer doubles as
// the information needed to find which arena half it lives in without a
// separate tag field.
type NodePtr uint32

// NullPtr is the all-ones sentinel for "no node/edge".
const NullPtr NodePtr = 0xFFFFFFFF

const halfBit = uint32(1) << 31

func newNodePtr(half int, index uint32) NodePtr {
	if half != 0 {
		return NodePtr(halfBit | index)
	}
	return NodePtr(index)
}

// Half returns which arena half p refers to.
func (p NodePtr) Half() int {
	if uint32(p)&halfBit != 0 {
		return 1
	}
	return 0
}

// Index returns p's offset within its half's slice.
func (p NodePtr) Index() uint32 { return uint32(p) &^ halfBit }

// IsNull reports whether p is the null sentinel.
func (p NodePtr) IsNull() bool { return p == NullPtr }

// valueScale is the fixed-point factor valueSum accumulates in, so that
// concurrent fetch-adds of values in [-1, 1] keep 16 fractional bits of
// precision before Q() divides back out.
const valueScale = 1 << 16

// Node is one position in the search tree. Its hot fields (visits,
// valueSum) are updated with a single atomic fetch-add per visit from any
// number of worker goroutines with no lock at all (spec §5's "many
// concurrent readers, rare single writer" model); only first-child
// publication during expansion needs exclusion, via lock.
type Node struct {
	Hash     uint64
	Terminal game.State

	visits   atomic.Uint32
	valueSum atomic.Int64 // fixed-point sum of per-visit values, this node's perspective

	FirstEdge uint32 // index into the owning half's edge slice, valid once Expanded
	NumEdges  uint16 // valid once Expanded

	expanded atomic.Bool // published last, after FirstEdge/NumEdges/Terminal are set
	lock     CustomLock
}

// reset clears n for reuse from the free path (relocate_subtree never
// reuses nodes in place, but arena growth within a half does when a
// previous search's nodes are overwritten).
func (n *Node) reset() {
	n.Hash = 0
	n.Terminal = game.Ongoing
	n.visits.Store(0)
	n.valueSum.Store(0)
	n.FirstEdge = 0
	n.NumEdges = 0
	n.expanded.Store(false)
}

// Expanded reports whether expansion has published FirstEdge/NumEdges (and,
// for a terminal position, Terminal) for readers that never take lock.
func (n *Node) Expanded() bool { return n.expanded.Load() }

// MarkExpanded publishes the node as expanded; callers must have already
// written FirstEdge/NumEdges/Terminal and must hold n.lock.
func (n *Node) MarkExpanded() { n.expanded.Store(true) }

// Visits returns N(s), the number of completed backpropagations through n.
func (n *Node) Visits() uint32 { return n.visits.Load() }

// Q returns the mean value backpropagated through n from n's own
// perspective, or 0 for an unvisited node (callers apply FPU themselves).
func (n *Node) Q() float32 {
	v := n.visits.Load()
	if v == 0 {
		return 0
	}
	return float32(n.valueSum.Load()) / valueScale / float32(v)
}

// Update applies one backpropagated visit with value (in [-1, 1], n's
// perspective) to n, atomically.
func (n *Node) Update(value float32) {
	n.visits.Add(1)
	n.valueSum.Add(int64(value * valueScale))
}

// Edge is one out-edge of a Node: a candidate move, its policy prior, and
// (once visited) the child it leads to. Edges for a node are allocated as a
// contiguous run in the owning half's edge slice (Node.FirstEdge,
// Node.NumEdges), so iterating a node's children never chases a pointer
// chain.
type Edge struct {
	Move  game.Move
	Prior float32

	child       atomic.Uint32 // NodePtr, NullPtr until this edge is visited
	virtualLoss atomic.Int32
}

func (e *Edge) reset(m game.Move, prior float32) {
	e.Move = m
	e.Prior = prior
	e.child.Store(uint32(NullPtr))
	e.virtualLoss.Store(0)
}

// Child returns the NodePtr this edge currently points to.
func (e *Edge) Child() NodePtr { return NodePtr(e.child.Load()) }

// setChild publishes the result of expanding this edge for the first time.
func (e *Edge) setChild(p NodePtr) { e.child.Store(uint32(p)) }

// AddVirtualLoss and RemoveVirtualLoss implement spec §5's virtual loss:
// a temporary visit-count/value penalty applied to an edge the instant a
// worker selects it, so sibling workers descending the same subtree before
// this one backpropagates see it as less attractive and naturally diverge.
func (e *Edge) AddVirtualLoss(n int32)    { e.virtualLoss.Add(n) }
func (e *Edge) RemoveVirtualLoss(n int32) { e.virtualLoss.Add(-n) }
func (e *Edge) VirtualLoss() int32        { return e.virtualLoss.Load() }
