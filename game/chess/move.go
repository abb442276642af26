package chess

import (
	"github.com/notnil/chess"

	"github.com/corvidchess/corvid/game"
)

// encodeMove packs a *chess.Move into the opaque 16-bit game.Move spec §3
// requires: 6 bits from-square, 6 bits to-square, 4 bits promotion code.
func encodeMove(m *chess.Move) game.Move {
	from := uint16(m.S1())
	to := uint16(m.S2())
	promo := uint16(promoCode(m.Promo()))
	return game.Move(from | to<<6 | promo<<12)
}

func decodeMove(mv game.Move) (from, to chess.Square, promo uint16) {
	v := uint16(mv)
	from = chess.Square(v & 0x3f)
	to = chess.Square((v >> 6) & 0x3f)
	promo = (v >> 12) & 0xf
	return
}

// promoCode maps a promotion piece type to a small stable code so it fits
// in the move encoding's 4 remaining bits.
func promoCode(pt chess.PieceType) uint16 {
	switch pt {
	case chess.Queen:
		return 1
	case chess.Rook:
		return 2
	case chess.Bishop:
		return 3
	case chess.Knight:
		return 4
	default:
		return 0
	}
}

var uciNotation = chess.UCINotation{}

// MoveString renders mv in UCI's long algebraic form ("e2e4", "e7e8q"), for
// protocol/uci's bestmove and info pv lines.
func (p *Position) MoveString(mv game.Move) string {
	m := p.findMove(mv)
	if m == nil {
		return "0000"
	}
	return uciNotation.Encode(p.g.Position(), m)
}

// ParseMove decodes a UCI long-algebraic move string against the current
// position, for protocol/uci's "position ... moves ..." handling.
func (p *Position) ParseMove(s string) (game.Move, bool) {
	m, err := uciNotation.Decode(p.g.Position(), s)
	if err != nil {
		return 0, false
	}
	return encodeMove(m), true
}
