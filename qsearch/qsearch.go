// Package qsearch implements the capture-only quiescence search spec §4.4
// describes as sitting between the MCTS leaf and the value network: a
// shallow alpha-beta walk over captures only, so the value net is never
// asked to score a position in the middle of a hanging exchange.
package qsearch

import (
	"sort"

	"github.com/corvidchess/corvid/game"
	"github.com/corvidchess/corvid/valuenet"
)

// Search runs quiescence search from pos and returns a centipawn-scale
// score from pos's side to move's perspective. net evaluates leaf
// positions via their ValueFeats.
func Search(pos game.Game, net *valuenet.Net, alpha, beta int32) int32 {
	if pos.Terminal() != game.Ongoing {
		return terminalScore(pos.Terminal())
	}

	stand := evalPosition(pos, net)
	if stand >= beta {
		return stand
	}
	if stand > alpha {
		alpha = stand
	}
	eval := stand

	type scored struct {
		m   game.Move
		key int32
	}
	var caps []scored
	pos.MapLegalCaptures(func(m game.Move) {
		captured, moving := pos.CapturedAndMovingRank(m)
		caps = append(caps, scored{m, int32(8*captured - moving)})
	})
	sort.Slice(caps, func(i, j int) bool { return caps[i].key < caps[j].key })

	for _, c := range caps {
		if !pos.See(c.m, 1) {
			continue
		}
		child := pos.Clone()
		child.Make(c.m)
		score := -Search(child, net, -beta, -alpha)
		if score > eval {
			eval = score
		}
		if eval > alpha {
			alpha = eval
		}
		if eval >= beta {
			break
		}
	}
	return eval
}

func terminalScore(s game.State) int32 {
	switch s {
	case game.Won:
		return valuenet.Scale
	case game.Lost:
		return -valuenet.Scale
	default:
		return 0
	}
}

func evalPosition(pos game.Game, net *valuenet.Net) int32 {
	return net.Eval(pos.ValueFeats())
}
