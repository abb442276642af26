package viz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corvidchess/corvid/game"
	"github.com/corvidchess/corvid/mcts"
)

func TestDumpDOTRendersNodesAndEdges(t *testing.T) {
	tree := mcts.DebugNode{
		Visits: 10,
		Q:      0.25,
		Children: []mcts.DebugNode{
			{Move: game.Move(1), Prior: 0.6, Visits: 7, Q: 0.1},
			{Move: game.Move(2), Prior: 0.4, Visits: 1, Q: -0.2},
		},
	}
	moveString := func(m game.Move) string {
		if m == game.Move(1) {
			return "e2e4"
		}
		return "d2d4"
	}

	var buf strings.Builder
	require.NoError(t, DumpDOT(&buf, tree, moveString, 0))
	out := buf.String()
	require.Contains(t, out, "digraph")
	require.Contains(t, out, "e2e4")
	require.Contains(t, out, "d2d4")
}

func TestDumpDOTSkipsChildrenBelowMinVisits(t *testing.T) {
	tree := mcts.DebugNode{
		Visits: 10,
		Children: []mcts.DebugNode{
			{Move: game.Move(1), Visits: 2},
			{Move: game.Move(2), Visits: 50},
		},
	}
	moveString := func(m game.Move) string { return "mv" }

	var buf strings.Builder
	require.NoError(t, DumpDOT(&buf, tree, moveString, 10))
	out := buf.String()
	// Exactly two nodes survive: the root and the one child with >= 10 visits.
	require.Equal(t, 2, strings.Count(out, "visits="))
}
