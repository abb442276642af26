package mcts

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chewxy/math32"
	distrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/corvidchess/corvid/game"
	"github.com/corvidchess/corvid/policynet"
	"github.com/corvidchess/corvid/qsearch"
	"github.com/corvidchess/corvid/valuenet"
)

// MaxNodes bounds a single arena half's node count (spec §5's tree size
// ceiling); a search stops growing the tree once it's reached rather than
// letting slice growth run unbounded.
const MaxNodes = 4_000_000

// passSquare is the sentinel a Game reports from MoveSquares for a move
// with no board squares of its own (ataxx's pass). It is routed to the
// policy network's one reserved special slot instead of being XOR-flipped
// like a real square.
const passSquare = -1

// Networks bundles the two networks a search needs to evaluate leaves.
type Networks struct {
	Value  *valuenet.Net
	Policy *policynet.Net
}

// Info is a snapshot of search progress, emitted periodically and once
// more at the end of a Search call. Field names and meanings follow spec's
// "info" line contract: Depth is the max PV length observed, SelDepth the
// deepest playout path reached, HashFull the active arena half's fill in
// permille (0-1000, UCI convention), NPS nodes per elapsed second.
type Info struct {
	Depth    int
	SelDepth int
	Nodes    uint64
	NPS      uint64
	HashFull int
	Time     time.Duration
	ScoreCp  int32
	BestMove game.Move
	PV       []game.Move
}

// Searcher owns one arena and one pair of networks, and can run repeated
// Search calls against a changing position while reusing the tree across
// calls (spec §5's tree-reuse requirement) whenever the new position
// descends from a move played out of the previous root.
type Searcher struct {
	arena  *Arena
	nets   Networks
	params Params

	root     NodePtr
	rootHash uint64

	selDepth atomic.Uint32 // deepest playout path reached during the in-flight Search call
}

// NewSearcher allocates a fresh, empty search tree.
func NewSearcher(nets Networks, params Params) *Searcher {
	return &Searcher{
		arena:  NewArena(),
		nets:   nets,
		params: params,
		root:   NullPtr,
	}
}

// Params returns the searcher's current tunables, for UCI "setoption" to
// mutate in place between searches.
func (s *Searcher) Params() *Params { return &s.params }

// NewGame drops the entire tree, used on a UCI "ucinewgame".
func (s *Searcher) NewGame() {
	s.arena = NewArena()
	s.root = NullPtr
}

// reuseOrReset finds pos among the current root's children (the position
// the engine was just asked to search from advanced by exactly one or two
// plies, the opponent's reply included) and relocates that subtree to
// become the new root; otherwise it starts a fresh tree. This is the tree
// reuse spec §5 requires: games replay the whole move history every
// "position" command, so the new root is looked up by hash among
// grandchildren of the old one rather than assumed to be a direct child.
func (s *Searcher) reuseOrReset(pos game.Game) {
	target := pos.Hash()
	if s.root.IsNull() {
		s.resetRoot(pos)
		return
	}
	if s.rootHash == target {
		return
	}
	if found, ok := s.findDescendant(s.root, target, 2); ok {
		s.root = s.arena.RelocateSubtree(found)
		s.rootHash = target
		return
	}
	s.resetRoot(pos)
}

func (s *Searcher) resetRoot(pos game.Game) {
	s.arena.RelocateSubtree(NullPtr)
	s.root = s.arena.AllocateNode(pos.Hash())
	s.rootHash = pos.Hash()
}

func (s *Searcher) findDescendant(p NodePtr, hash uint64, depth int) (NodePtr, bool) {
	n := s.arena.Node(p)
	if n.Hash == hash {
		return p, true
	}
	if depth == 0 || n.NumEdges == 0 {
		return NullPtr, false
	}
	for _, e := range s.arena.Edges(p.Half(), n) {
		child := e.Child()
		if child.IsNull() {
			continue
		}
		if found, ok := s.findDescendant(child, hash, depth-1); ok {
			return found, true
		}
	}
	return NullPtr, false
}

// Search runs workers goroutines of MCTS playouts from pos until the hard
// time limit elapses, the soft time limit elapses with a stable best move,
// ctx is cancelled, or the tree hits MaxNodes, then returns the most-
// visited root move. infoFn, if non-nil, is called roughly every
// Params.InfoIntervalMs with a progress snapshot.
func (s *Searcher) Search(ctx context.Context, pos game.Game, workers int, soft, hard time.Duration, infoFn func(Info)) (game.Move, Info) {
	s.reuseOrReset(pos)
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	ctx, cancel := context.WithTimeout(ctx, hard)
	defer cancel()

	start := time.Now()
	s.selDepth.Store(0)

	var stop atomic.Bool
	var nodes atomic.Uint64

	softTimer := time.AfterFunc(soft, func() {
		if s.bestMoveIsStable() {
			stop.Store(true)
		}
	})
	defer softTimer.Stop()

	var infoTicker *time.Ticker
	infoDone := make(chan struct{})
	if infoFn != nil && s.params.InfoIntervalMs > 0 {
		infoTicker = time.NewTicker(time.Duration(s.params.InfoIntervalMs) * time.Millisecond)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-infoDone:
					return
				case <-infoTicker.C:
					infoFn(s.snapshot(nodes.Load(), start))
				}
			}
		}()
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if stop.Load() || ctx.Err() != nil || s.arena.NumNodes() >= MaxNodes {
					return
				}
				s.playout(pos)
				nodes.Add(1)
			}
		}()
	}
	wg.Wait()
	if infoTicker != nil {
		infoTicker.Stop()
		close(infoDone)
	}

	final := s.snapshot(nodes.Load(), start)
	if infoFn != nil {
		infoFn(final)
	}
	return final.BestMove, final
}

// bestMoveIsStable reports whether the current best root move holds a wide
// enough visit-count lead over the runner-up that continuing past the soft
// time limit is unlikely to change the decision.
func (s *Searcher) bestMoveIsStable() bool {
	if s.root.IsNull() {
		return true
	}
	root := s.arena.Node(s.root)
	if root.NumEdges == 0 {
		return true
	}
	var best, second uint32
	edges := s.arena.Edges(s.root.Half(), root)
	for i := range edges {
		v := s.edgeVisits(&edges[i])
		if v > best {
			second = best
			best = v
		} else if v > second {
			second = v
		}
	}
	return best > 2*second+1
}

func (s *Searcher) edgeVisits(e *Edge) uint32 {
	c := e.Child()
	if c.IsNull() {
		return 0
	}
	return s.arena.Node(c).Visits()
}

// playout runs one Selection-Expansion-Evaluation-Backpropagation cycle
// from the current root down to a newly expanded (or terminal) leaf.
func (s *Searcher) playout(rootPos game.Game) {
	pos := rootPos.Clone()

	var nodePath []NodePtr
	var edgePath []*Edge

	current := s.root
	nodePath = append(nodePath, current)

	var leafValue float32
	for {
		node := s.arena.Node(current)

		if node.Terminal != game.Ongoing {
			leafValue = terminalValue(node.Terminal)
			break
		}

		if !node.Expanded() {
			if node.lock.TryLock() {
				if node.Expanded() {
					node.lock.Unlock()
				} else {
					leafValue = s.expand(current, node, pos)
					node.MarkExpanded()
					node.lock.Unlock()
					break
				}
			} else {
				// Someone else is expanding this node; spin until it's
				// published, then keep descending instead of
				// double-evaluating the same leaf.
				for !node.Expanded() && node.Terminal == game.Ongoing {
					runtime.Gosched()
				}
				if node.Terminal != game.Ongoing {
					leafValue = terminalValue(node.Terminal)
					break
				}
			}
		}

		idx := s.selectEdge(current.Half(), node, current == s.root)
		edges := s.arena.Edges(current.Half(), node)
		e := &edges[idx]
		e.AddVirtualLoss(s.params.VirtualLoss)
		edgePath = append(edgePath, e)

		childPtr := e.Child()
		if childPtr.IsNull() {
			node.lock.Lock()
			childPtr = e.Child()
			if childPtr.IsNull() {
				pos.Make(e.Move)
				childPtr = s.arena.AllocateNode(pos.Hash())
				if term := pos.Terminal(); term != game.Ongoing {
					s.arena.Node(childPtr).Terminal = term
				}
				e.setChild(childPtr)
			} else {
				pos.Make(e.Move)
			}
			node.lock.Unlock()
		} else {
			pos.Make(e.Move)
		}
		current = childPtr
		nodePath = append(nodePath, current)
	}

	value := leafValue
	leaf := s.arena.Node(nodePath[len(nodePath)-1])
	leaf.Update(value)
	for i := len(nodePath) - 2; i >= 0; i-- {
		value = -value
		s.arena.Node(nodePath[i]).Update(value)
	}
	for _, e := range edgePath {
		e.RemoveVirtualLoss(s.params.VirtualLoss)
	}

	s.recordSelDepth(len(nodePath) - 1)
}

// recordSelDepth bumps the in-flight search's selective depth watermark to
// depth if it's a new max, via a CAS loop since many playout goroutines race
// to update the same counter.
func (s *Searcher) recordSelDepth(depth int) {
	for {
		cur := s.selDepth.Load()
		if uint32(depth) <= cur {
			return
		}
		if s.selDepth.CompareAndSwap(cur, uint32(depth)) {
			return
		}
	}
}

// expand evaluates pos with the policy and value networks and populates
// node's edges, returning the leaf value from pos's side to move's
// perspective. Called with node.lock held.
func (s *Searcher) expand(ptr NodePtr, node *Node, pos game.Game) float32 {
	if term := pos.Terminal(); term != game.Ongoing {
		node.Terminal = term
		return terminalValue(term)
	}

	var moves []game.Move
	pos.LegalMoves(func(m game.Move) { moves = append(moves, m) })
	if len(moves) == 0 {
		node.Terminal = game.Draw
		return 0
	}

	feats := pos.PolicyFeats()
	flip := pos.Flip()
	logits := make([]float32, len(moves))
	for i, m := range moves {
		from, to := pos.MoveSquares(m)
		fromSlot := fromSlotFor(s.nets.Policy, from, flip)
		toSlot := toSlotFor(s.nets.Policy, to, flip)
		logits[i] = s.nets.Policy.Logit(fromSlot, toSlot, feats)
	}
	priors := policynet.Priors(logits, s.params.PolicyTemp)
	if ptr == s.root {
		applyRootPst(priors, s.params.RootPst)
		if s.params.DirichletEpsilon > 0 {
			mixDirichletNoise(priors, s.params.DirichletAlpha, s.params.DirichletEpsilon)
		}
	}

	start := s.arena.AllocateEdges(len(moves))
	edges := s.arena.EdgeRange(ptr.Half(), start, len(moves))
	for i, m := range moves {
		edges[i].reset(m, priors[i])
	}
	node.FirstEdge = start
	node.NumEdges = uint16(len(moves))

	cp := qsearch.Search(pos, s.nets.Value, -30000, 30000)
	return valueFromCp(cp, s.params.Scale)
}

// fromSlotFor and toSlotFor route a move's two squares to their respective
// subnet ranges, collapsing the pass sentinel onto the single reserved
// special slot both ends of a pass share.
func fromSlotFor(net *policynet.Net, sq, flip int) int {
	if sq == passSquare {
		return net.K() - 1
	}
	return net.FromSlot(sq, flip)
}

func toSlotFor(net *policynet.Net, sq, flip int) int {
	if sq == passSquare {
		return net.K() - 1
	}
	return net.ToSlot(sq, flip)
}

// applyRootPst multiplies every root prior by pst and renormalizes back to
// a distribution. root_pst is a per-move multiplier on P applied after the
// softmax, not an alternate softmax temperature; the resolved convention is
// "after softmax with renormalization" so the multiplied priors still sum
// to 1 going into PUCT selection.
func applyRootPst(priors []float32, pst float32) {
	var sum float32
	for i := range priors {
		priors[i] *= pst
		sum += priors[i]
	}
	if sum <= 0 {
		return
	}
	for i := range priors {
		priors[i] /= sum
	}
}

// mixDirichletNoise blends a fresh Dirichlet(alpha) sample into priors in
// place, the root-only exploration boost AlphaZero-style search uses to
// keep self-play from collapsing onto the raw policy prior. One sample is
// drawn per root expansion rather than cached across a game, matching the
// teacher's own per-tree dirichletSample construction.
func mixDirichletNoise(priors []float32, alpha, epsilon float32) {
	alphaVec := make([]float64, len(priors))
	for i := range alphaVec {
		alphaVec[i] = float64(alpha)
	}
	dist := distmv.NewDirichlet(alphaVec, distrand.NewSource(uint64(time.Now().UnixNano())))
	noise := dist.Rand(nil)
	for i := range priors {
		priors[i] = (1-epsilon)*priors[i] + epsilon*float32(noise[i])
	}
}

// selectEdge runs the PUCT comparison (spec §5) across node's edges and
// returns the winning index.
func (s *Searcher) selectEdge(half int, node *Node, isRoot bool) int {
	edges := s.arena.Edges(half, node)
	parentVisits := node.Visits()
	cpuct := s.cpuct(parentVisits, isRoot)
	sqrtParent := math32.Sqrt(float32(parentVisits) + 1)

	var sqrtVisitedPriors float32
	for i := range edges {
		childPtr := edges[i].Child()
		if !childPtr.IsNull() && s.arena.Node(childPtr).Visits() > 0 {
			sqrtVisitedPriors += math32.Sqrt(edges[i].Prior)
		}
	}
	fpu := s.fpu(sqrtVisitedPriors)

	best := -1
	var bestScore float32 = math32.Inf(-1)
	for i := range edges {
		e := &edges[i]
		childPtr := e.Child()
		var q float32
		var visits uint32
		if !childPtr.IsNull() {
			child := s.arena.Node(childPtr)
			visits = child.Visits()
			// child.Q() is from the child's side to move; negate it
			// for node's side.
			q = -child.Q()
		} else {
			q = fpu
		}
		vl := e.VirtualLoss()
		denom := 1 + float32(visits) + float32(vl)
		u := cpuct * e.Prior * sqrtParent / denom
		penalty := float32(vl) / denom
		score := q + u - penalty
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	return best
}

func (s *Searcher) cpuct(parentVisits uint32, isRoot bool) float32 {
	base := s.params.Cpuct
	if isRoot {
		base = s.params.RootCpuct
	}
	if s.params.CpuctBase <= 0 {
		return base
	}
	growth := math32.Log((float32(parentVisits)+s.params.CpuctBase+1)/s.params.CpuctBase)
	return base + growth
}

// fpu computes first-play urgency, the synthetic Q substituted for an
// unvisited child: fpu_base minus fpu_reduction scaled by the sum of
// sqrt(prior) over the parent's already-visited children. It does not
// reference the parent's own Q at all.
func (s *Searcher) fpu(sqrtVisitedPriors float32) float32 {
	return s.params.FpuBase - s.params.FpuReduction*sqrtVisitedPriors
}

func valueFromCp(cp int32, scale int32) float32 {
	if scale <= 0 {
		scale = 400
	}
	return math32.Tanh(float32(cp) / float32(scale))
}

func terminalValue(st game.State) float32 {
	switch st {
	case game.Won:
		return 1
	case game.Lost:
		return -1
	default:
		return 0
	}
}

// snapshot reports the current best move, its score, and its principal
// variation, walking the most-visited edge at each step, plus the
// throughput/fill/depth fields spec's "info" line contract names.
func (s *Searcher) snapshot(nodes uint64, start time.Time) Info {
	elapsed := time.Since(start)
	info := Info{
		Nodes:    nodes,
		SelDepth: int(s.selDepth.Load()),
		Time:     elapsed,
		HashFull: s.hashFull(),
	}
	if elapsed > 0 {
		info.NPS = uint64(float64(nodes) / elapsed.Seconds())
	}
	if s.root.IsNull() {
		return info
	}
	p := s.root
	const maxPV = 64
	for i := 0; i < maxPV; i++ {
		node := s.arena.Node(p)
		if node.NumEdges == 0 {
			break
		}
		edges := s.arena.Edges(p.Half(), node)
		bestIdx := -1
		var bestVisits uint32
		for j := range edges {
			c := edges[j].Child()
			var v uint32
			if !c.IsNull() {
				v = s.arena.Node(c).Visits()
			}
			if v > bestVisits || bestIdx == -1 {
				bestVisits = v
				bestIdx = j
			}
		}
		if bestIdx == -1 {
			break
		}
		e := &edges[bestIdx]
		info.PV = append(info.PV, e.Move)
		if i == 0 {
			info.BestMove = e.Move
			c := e.Child()
			if !c.IsNull() {
				info.ScoreCp = int32(atanhToCp(-s.arena.Node(c).Q(), s.params.Scale))
			}
		}
		c := e.Child()
		if c.IsNull() {
			break
		}
		p = c
	}
	info.Depth = len(info.PV)
	return info
}

// hashFull reports the active arena half's fill in permille (UCI's 0-1000
// "hashfull" convention): active_half_used / active_half_capacity.
func (s *Searcher) hashFull() int {
	capacity := s.arena.Capacity()
	if capacity <= 0 {
		return 0
	}
	return s.arena.NumNodes() * 1000 / capacity
}

func atanhToCp(q float32, scale int32) float32 {
	if scale <= 0 {
		scale = 400
	}
	if q > 0.999999 {
		q = 0.999999
	} else if q < -0.999999 {
		q = -0.999999
	}
	return -float32(scale) * math32.Log((1-q)/(1+q)) / 2
}
