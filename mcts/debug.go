package mcts

import "github.com/corvidchess/corvid/game"

// DebugNode is a read-only snapshot of one arena node, for offline analysis
// tools (viz.DumpDOT) that must never hold a live *Node pointer across a
// search (another playout could still be mutating it).
type DebugNode struct {
	Move     game.Move // the edge that led here; zero value at the root
	Visits   uint32
	Q        float32
	Prior    float32
	Terminal game.State
	Children []DebugNode
}

// Debug walks the current tree down to maxDepth plies from the root and
// returns an immutable copy, for viz.DumpDOT to render without taking any
// locks of its own. Only called between searches, the same constraint
// RelocateSubtree operates under.
func (s *Searcher) Debug(maxDepth int) DebugNode {
	if s.root.IsNull() {
		return DebugNode{}
	}
	return s.debugWalk(s.root, 0, maxDepth)
}

func (s *Searcher) debugWalk(p NodePtr, depth, maxDepth int) DebugNode {
	node := s.arena.Node(p)
	out := DebugNode{
		Visits:   node.Visits(),
		Q:        node.Q(),
		Terminal: node.Terminal,
	}
	if depth >= maxDepth || !node.Expanded() {
		return out
	}
	edges := s.arena.Edges(p.Half(), node)
	out.Children = make([]DebugNode, 0, len(edges))
	for i := range edges {
		e := &edges[i]
		childPtr := e.Child()
		if childPtr.IsNull() {
			out.Children = append(out.Children, DebugNode{Move: e.Move, Prior: e.Prior})
			continue
		}
		child := s.debugWalk(childPtr, depth+1, maxDepth)
		child.Move = e.Move
		child.Prior = e.Prior
		out.Children = append(out.Children, child)
	}
	return out
}
