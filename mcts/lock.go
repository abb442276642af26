package mcts

import (
	"runtime"
	"sync/atomic"
)

// CustomLock is a one-writer, many-reader spinlock guarding a node's
// expansion and the creation of its children (spec §5). Readers of an
// expanded node never take it: they check Node.Expanded and load each
// Edge's child pointer atomically, so selecting through an already-expanded
// node stays lock-free. Only goroutines that might expand the same node, or
// create the same child, concurrently (two workers selecting the same leaf
// before either backpropagates) need mutual exclusion.
type CustomLock struct {
	state atomic.Uint32
}

const (
	unlocked uint32 = 0
	locked   uint32 = 1
)

// TryLock attempts to acquire the lock without blocking, returning whether
// it succeeded. Used by expansion: the loser of the race does not evaluate
// the node itself but spins until the winner marks it expanded, then reads
// the published children.
func (l *CustomLock) TryLock() bool {
	return l.state.CompareAndSwap(unlocked, locked)
}

// Lock spins until the lock is acquired. Expansion critical sections are a
// handful of slice writes, short enough that a spin beats parking a
// goroutine through the scheduler.
func (l *CustomLock) Lock() {
	for !l.TryLock() {
		runtime.Gosched()
	}
}

// Unlock releases the lock.
func (l *CustomLock) Unlock() {
	l.state.Store(unlocked)
}
