package mcts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corvidchess/corvid/game"
	"github.com/corvidchess/corvid/game/chess"
	"github.com/corvidchess/corvid/policynet"
	"github.com/corvidchess/corvid/valuenet"
)

func newTestSearcher() *Searcher {
	nets := Networks{
		Value:  valuenet.New(chess.ValueInput, 8),
		Policy: policynet.New(chess.ValueInput, chess.NumSquares, 0),
	}
	return NewSearcher(nets, DefaultParams())
}

// A handful of playouts is enough to expand the root and at least one
// child without burning real wall-clock time on every test run.
func runShortSearch(t *testing.T, s *Searcher, workers int) (pos *chess.Position) {
	t.Helper()
	pos = chess.New()
	_, _ = s.Search(context.Background(), pos, workers, 15*time.Millisecond, 30*time.Millisecond, nil)
	require.False(t, s.root.IsNull())
	return pos
}

func TestExpandPriorsSumToOne(t *testing.T) {
	s := newTestSearcher()
	runShortSearch(t, s, 1)

	root := s.arena.Node(s.root)
	require.True(t, root.Expanded())
	edges := s.arena.Edges(s.root.Half(), root)
	require.NotEmpty(t, edges)

	var sum float32
	for i := range edges {
		sum += edges[i].Prior
	}
	require.InDelta(t, 1.0, sum, 1e-3)
}

func TestPlayoutVisitsEqualsOnePlusChildVisits(t *testing.T) {
	s := newTestSearcher()
	runShortSearch(t, s, 2)

	root := s.arena.Node(s.root)
	edges := s.arena.Edges(s.root.Half(), root)

	var childVisits uint32
	for i := range edges {
		c := edges[i].Child()
		if c.IsNull() {
			continue
		}
		childVisits += s.arena.Node(c).Visits()
	}
	require.EqualValues(t, root.Visits(), 1+childVisits)
}

func TestRelocateSubtreePreservesReachableHashes(t *testing.T) {
	s := newTestSearcher()
	runShortSearch(t, s, 2)

	root := s.arena.Node(s.root)
	edges := s.arena.Edges(s.root.Half(), root)
	var target NodePtr
	for i := range edges {
		if c := edges[i].Child(); !c.IsNull() {
			target = c
			break
		}
	}
	require.False(t, target.IsNull(), "search should have visited at least one child")

	before := collectHashes(s.arena, target)
	require.NotEmpty(t, before)

	relocated := s.arena.RelocateSubtree(target)
	after := collectHashes(s.arena, relocated)

	require.Equal(t, before, after)
}

// collectHashes walks only nodes actually allocated (reachable via a
// non-null edge child), matching RelocateSubtree's own notion of
// "everything reachable from root survives".
func collectHashes(a *Arena, root NodePtr) map[uint64]int {
	counts := map[uint64]int{}
	queue := []NodePtr{root}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		n := a.Node(p)
		counts[n.Hash]++
		if n.NumEdges == 0 {
			continue
		}
		for _, e := range a.Edges(p.Half(), n) {
			if c := e.Child(); !c.IsNull() {
				queue = append(queue, c)
			}
		}
	}
	return counts
}

func TestReuseOrResetFindsDescendantAndPreservesStats(t *testing.T) {
	s := newTestSearcher()
	pos := runShortSearch(t, s, 2)

	best, info := s.Search(context.Background(), pos, 2, 15*time.Millisecond, 30*time.Millisecond, nil)
	require.NotZero(t, best)
	_ = info

	next := pos.Clone().(*chess.Position)
	next.Make(best)

	s.reuseOrReset(next)
	require.Equal(t, next.Hash(), s.rootHash)
	require.Greater(t, s.arena.Node(s.root).Visits(), uint32(0))
}

func TestReuseOrResetFallsBackToFreshRootWhenNotFound(t *testing.T) {
	s := newTestSearcher()
	runShortSearch(t, s, 1)

	// reuseOrReset only looks two plies deep; three real plies ahead of the
	// search root is guaranteed unreachable within that lookup, regardless
	// of which lines the search actually explored.
	far := chess.New()
	for i := 0; i < 3; i++ {
		far.Make(firstLegalMove(t, far))
	}

	s.reuseOrReset(far)
	require.Equal(t, far.Hash(), s.rootHash)
	require.EqualValues(t, 0, s.arena.Node(s.root).Visits())
}

func firstLegalMove(t *testing.T, pos *chess.Position) (m game.Move) {
	t.Helper()
	found := false
	pos.LegalMoves(func(mv game.Move) {
		if !found {
			m = mv
			found = true
		}
	})
	require.True(t, found, "position should have at least one legal move")
	return m
}

func TestApplyRootPstRenormalizesToDistribution(t *testing.T) {
	priors := []float32{0.5, 0.3, 0.2}
	applyRootPst(priors, 1.7)

	var sum float32
	for _, p := range priors {
		sum += p
	}
	require.InDelta(t, 1.0, sum, 1e-6)
	// A uniform post-softmax multiplier changes no prior's relative share:
	// renormalizing after multiplying by a constant must recover the
	// original distribution exactly.
	require.InDelta(t, 0.5, priors[0], 1e-6)
	require.InDelta(t, 0.3, priors[1], 1e-6)
	require.InDelta(t, 0.2, priors[2], 1e-6)
}

func TestApplyRootPstHandlesZeroSum(t *testing.T) {
	priors := []float32{0, 0}
	require.NotPanics(t, func() { applyRootPst(priors, 3) })
	require.Equal(t, []float32{0, 0}, priors)
}

func TestFpuIgnoresParentQ(t *testing.T) {
	s := newTestSearcher()
	s.params.FpuBase = 0.1
	s.params.FpuReduction = 0.4

	require.InDelta(t, float32(0.1), s.fpu(0), 1e-6)
	require.InDelta(t, float32(0.1-0.4*2), s.fpu(2), 1e-6)
}

func TestCustomLockMutualExclusion(t *testing.T) {
	var l CustomLock
	require.True(t, l.TryLock())
	require.False(t, l.TryLock())
	l.Unlock()
	require.True(t, l.TryLock())
	l.Unlock()
}

func TestNodeExpandedGatesOnPublishedFlag(t *testing.T) {
	var n Node
	n.reset()
	n.FirstEdge = 7
	n.NumEdges = 3
	require.False(t, n.Expanded())
	n.MarkExpanded()
	require.True(t, n.Expanded())
}

func TestRecordSelDepthTracksMaxAcrossGoroutines(t *testing.T) {
	s := newTestSearcher()

	var wg sync.WaitGroup
	depths := []int{1, 5, 3, 5, 2, 9, 4}
	for _, d := range depths {
		wg.Add(1)
		go func(d int) {
			defer wg.Done()
			s.recordSelDepth(d)
		}(d)
	}
	wg.Wait()

	require.EqualValues(t, 9, s.selDepth.Load())
}

func TestHashFullGrowsWithAllocatedNodes(t *testing.T) {
	s := newTestSearcher()
	require.Zero(t, s.hashFull())

	runShortSearch(t, s, 1)
	require.Greater(t, s.hashFull(), 0)
	require.LessOrEqual(t, s.hashFull(), 1000)
}

func TestSearchConcurrentPlayoutsDoNotCorruptTree(t *testing.T) {
	s := newTestSearcher()
	pos := chess.New()
	best, info := s.Search(context.Background(), pos, 4, 25*time.Millisecond, 50*time.Millisecond, nil)
	require.NotZero(t, best)
	require.NotEmpty(t, info.PV)
	require.Equal(t, best, info.BestMove)

	root := s.arena.Node(s.root)
	edges := s.arena.Edges(s.root.Half(), root)
	var childVisits uint32
	for i := range edges {
		if c := edges[i].Child(); !c.IsNull() {
			childVisits += s.arena.Node(c).Visits()
		}
	}
	require.EqualValues(t, root.Visits(), 1+childVisits)
}
