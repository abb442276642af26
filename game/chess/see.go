package chess

import (
	"github.com/notnil/chess"

	"github.com/corvidchess/corvid/game"
)

// pieceValue gives centipawn-ish material values used only by SEE (the
// MVV/LVA ordering in qsearch uses the coarser 1..6 pieceRank instead).
func pieceValue(p chess.Piece) int {
	switch p.Type() {
	case chess.Pawn:
		return 100
	case chess.Knight:
		return 300
	case chess.Bishop:
		return 300
	case chess.Rook:
		return 500
	case chess.Queen:
		return 900
	case chess.King:
		return 10000
	}
	return 0
}

// See implements game.Game's Static Exchange Evaluation (spec §4.4 step 3,
// glossary "SEE"). Unlike a classic bitboard swap algorithm, this walks the
// actual capture sequence through notnil/chess's own move generator rather
// than a hand-rolled attacker bitboard: slower, but correct by
// construction (it inherits the library's own rules for pins, en passant
// and discovered attacks) and keeps the core free of a second, bespoke
// board representation. See DESIGN.md for the tradeoff.
func (p *Position) See(mv game.Move, threshold int) bool {
	m := p.findMove(mv)
	if m == nil {
		return false
	}
	board := p.g.Position().Board()
	to := m.S2()

	var captured int
	if m.HasTag(chess.EnPassant) {
		captured = pieceValue(chess.Piece(chess.Pawn))
	} else {
		victim := board.Piece(to)
		if victim == chess.NoPiece {
			return threshold <= 0
		}
		captured = pieceValue(victim)
	}

	next := p.g.Clone()
	if err := next.Move(m); err != nil {
		return false
	}
	rest := seeGain(next, to)
	return captured-rest >= threshold
}

// seeGain returns the net material the side to move in g can force by
// repeatedly recapturing on target, starting with its least valuable
// attacker, negamaxed down the exchange sequence.
func seeGain(g *chess.Game, target chess.Square) int {
	var best *chess.Move
	bestVal := 1 << 30
	board := g.Position().Board()
	for _, m := range g.ValidMoves() {
		if m.S2() != target {
			continue
		}
		v := pieceValue(board.Piece(m.S1()))
		if v < bestVal {
			bestVal = v
			best = m
		}
	}
	if best == nil {
		return 0
	}
	captured := pieceValue(board.Piece(target))

	next := g.Clone()
	if err := next.Move(best); err != nil {
		return 0
	}
	rest := seeGain(next, target)

	gain := captured - rest
	if gain < 0 {
		gain = 0 // the attacker declines a recapture that loses material
	}
	return gain
}
