// Package viz holds offline debug tooling that sits outside the search
// hot path entirely: a Graphviz dump of the search tree's top plies
// (DumpDOT) and a PNG board thumbnail renderer (RenderBoard), both tools
// the teacher's go.mod stack (gographviz, freetype, x/image) supplies.
package viz

import (
	"fmt"
	"io"

	"github.com/awalterschulze/gographviz"
	"github.com/pkg/errors"

	"github.com/corvidchess/corvid/game"
	"github.com/corvidchess/corvid/mcts"
)

// DumpDOT renders tree, a snapshot from (*mcts.Searcher).Debug, as Graphviz
// DOT source, labeling each node with its visit count and mean value and
// each edge with its move (rendered via moveString) and prior. Nodes below
// minVisits are skipped entirely, since a tree a few thousand visits deep
// would otherwise produce an unreadably large graph.
func DumpDOT(w io.Writer, tree mcts.DebugNode, moveString func(game.Move) string, minVisits uint32) error {
	g := gographviz.NewGraph()
	if err := g.SetName("search"); err != nil {
		return errors.WithStack(err)
	}
	if err := g.SetDir(true); err != nil {
		return errors.WithStack(err)
	}

	id := 0
	nextID := func() string {
		id++
		return fmt.Sprintf("n%d", id)
	}

	var walk func(node mcts.DebugNode, parentID string) error
	walk = func(node mcts.DebugNode, parentID string) error {
		myID := nextID()
		label := fmt.Sprintf(`"visits=%d Q=%.3f"`, node.Visits, node.Q)
		if err := g.AddNode("search", myID, map[string]string{"label": label}); err != nil {
			return errors.WithStack(err)
		}
		if parentID != "" {
			edgeLabel := fmt.Sprintf(`"%s p=%.3f"`, moveString(node.Move), node.Prior)
			if err := g.AddEdge(parentID, myID, true, map[string]string{"label": edgeLabel}); err != nil {
				return errors.WithStack(err)
			}
		}
		for _, child := range node.Children {
			if child.Visits < minVisits {
				continue
			}
			if err := walk(child, myID); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(tree, ""); err != nil {
		return err
	}

	_, err := io.WriteString(w, g.String())
	return err
}
