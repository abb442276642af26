// Package chess adapts github.com/notnil/chess into the game.Game
// capability (spec §4.8), the one concrete provider corvid ships to
// exercise the core end to end (spec.md treats move generators as
// external/contract-only, but the perft and tactical scenarios of spec §8
// require a working one).
package chess

import (
	"encoding/binary"

	"github.com/notnil/chess"

	"github.com/corvidchess/corvid/features"
	"github.com/corvidchess/corvid/game"
)

// flipMask is the vertical-mirror XOR applied to a move's policy subnet
// square indices when Black is to move, normalizing them to "mover at
// rank 1" (spec §4.3's side-to-move normalization). The value features are
// not mirrored.
const flipMask = 56

// Position wraps a *chess.Game, giving it the game.Game capability set.
// Only the current position matters to the core; Position keeps no move
// history beyond what the embedded *chess.Game needs for its own rules
// (castling/en-passant/threefold all depend on history, so it cannot be
// trimmed away).
type Position struct {
	g *chess.Game
}

// New returns the starting position.
func New() *Position {
	return &Position{g: chess.NewGame(chess.UseNotation(chess.UCINotation{}))}
}

// FromFEN parses a FEN string into a position.
func FromFEN(fen string) (*Position, error) {
	fn, err := chess.FEN(fen)
	if err != nil {
		return nil, err
	}
	g := chess.NewGame(fn, chess.UseNotation(chess.UCINotation{}))
	return &Position{g: g}, nil
}

// Clone implements game.Game.
func (p *Position) Clone() game.Game {
	return &Position{g: p.g.Clone()}
}

// LegalMoves implements game.Game.
func (p *Position) LegalMoves(visit func(game.Move)) {
	for _, m := range p.g.ValidMoves() {
		visit(encodeMove(m))
	}
}

// MapLegalCaptures implements game.Game.
func (p *Position) MapLegalCaptures(visit func(game.Move)) {
	board := p.g.Position().Board()
	for _, m := range p.g.ValidMoves() {
		if m.HasTag(chess.Capture) || m.HasTag(chess.EnPassant) || board.Piece(m.S2()) != chess.NoPiece {
			visit(encodeMove(m))
		}
	}
}

// Make implements game.Game.
func (p *Position) Make(mv game.Move) {
	m := p.findMove(mv)
	if m == nil {
		panic("chess: move not legal in current position")
	}
	if err := p.g.Move(m); err != nil {
		panic(err)
	}
}

// Terminal implements game.Game.
func (p *Position) Terminal() game.State {
	outcome := p.g.Outcome()
	if outcome == chess.NoOutcome {
		return game.Ongoing
	}
	if outcome == chess.Draw {
		return game.Draw
	}
	stm := p.g.Position().Turn()
	won := (outcome == chess.WhiteWon && stm == chess.White) ||
		(outcome == chess.BlackWon && stm == chess.Black)
	if won {
		return game.Won
	}
	return game.Lost
}

// Hash implements game.Game, truncating notnil/chess's 16-byte Zobrist-ish
// hash to the 64 bits spec §3 asks for.
func (p *Position) Hash() uint64 {
	h := p.g.Position().Hash()
	return binary.LittleEndian.Uint64(h[:8])
}

// STM implements game.Game: 0 for White, 1 for Black.
func (p *Position) STM() int {
	if p.g.Position().Turn() == chess.Black {
		return 1
	}
	return 0
}

// Flip implements game.Game.
func (p *Position) Flip() int {
	if p.STM() == 1 {
		return flipMask
	}
	return 0
}

// MoveSquares implements game.Game.
func (p *Position) MoveSquares(mv game.Move) (from, to int) {
	f, t, _ := decodeMove(mv)
	return int(f), int(t)
}

// ValueFeats and PolicyFeats implement game.Game, both over the same
// 768-wide one-hot piece-placement encoding (64 squares x 6 piece types x 2
// colors), mirroring the teacher's single shared board encoder
// (game/encoding.go's InputEncoder) rather than maintaining two distinct
// feature sets with no behavioral difference between them.
func (p *Position) ValueFeats() features.Sparse  { return p.boardFeats() }
func (p *Position) PolicyFeats() features.Sparse { return p.boardFeats() }

// NumSquares is the board square count used to size policy subnets.
const NumSquares = 64

// ValueInput is the value network's INPUT dimension for chess (spec §4.2).
const ValueInput = 768

func (p *Position) boardFeats() features.Sparse {
	m := p.g.Position().Board().SquareMap()
	out := make(features.Sparse, 0, len(m))
	for sq, piece := range m {
		out = append(out, pieceFeatureIndex(piece, int(sq)))
	}
	return out
}

func pieceFeatureIndex(piece chess.Piece, sq int) int32 {
	color := 0
	if piece.Color() == chess.Black {
		color = 1
	}
	return int32(pieceRank(piece.Type())-1)*128 + int32(color)*64 + int32(sq)
}

// pieceRank assigns each piece type a stable 1..6 ordinal independent of
// notnil/chess's own PieceType iota order, so feature indices and MVV/LVA
// ranks don't silently shift if that library reorders its constants.
func pieceRank(pt chess.PieceType) int {
	switch pt {
	case chess.Pawn:
		return 1
	case chess.Knight:
		return 2
	case chess.Bishop:
		return 3
	case chess.Rook:
		return 4
	case chess.Queen:
		return 5
	case chess.King:
		return 6
	}
	return 0
}

// PieceRank exposes pieceRank for qsearch's MVV/LVA ordering.
func PieceRank(pt chess.PieceType) int { return pieceRank(pt) }

// CapturedAndMovingRank returns the MVV/LVA ranks (spec §4.4) of the move's
// captured and moving pieces. For en passant the captured piece is always a
// pawn (the library doesn't place a piece on the destination square).
func (p *Position) CapturedAndMovingRank(mv game.Move) (captured, moving int) {
	m := p.findMove(mv)
	if m == nil {
		return 0, 0
	}
	board := p.g.Position().Board()
	moving = pieceRank(board.Piece(m.S1()).Type())
	if m.HasTag(chess.EnPassant) {
		return pieceRank(chess.Pawn), moving
	}
	victim := board.Piece(m.S2())
	if victim == chess.NoPiece {
		return 0, moving
	}
	return pieceRank(victim.Type()), moving
}

// Perft implements game.Game.
func (p *Position) Perft(depth int) uint64 {
	if depth == 0 {
		return 1
	}
	var nodes uint64
	for _, m := range p.g.ValidMoves() {
		child := p.g.Clone()
		if err := child.Move(m); err != nil {
			panic(err)
		}
		nodes += (&Position{g: child}).Perft(depth - 1)
	}
	return nodes
}

// FEN returns the current position's FEN, for diagnostics/viz.
func (p *Position) FEN() string { return p.g.FEN() }

// Underlying exposes the wrapped *chess.Game for protocol glue that needs
// to print SAN or re-derive FEN/move lists beyond the game.Game contract.
func (p *Position) Underlying() *chess.Game { return p.g }

func (p *Position) findMove(mv game.Move) *chess.Move {
	from, to, promo := decodeMove(mv)
	for _, m := range p.g.ValidMoves() {
		if m.S1() == from && m.S2() == to && promoCode(m.Promo()) == promo {
			return m
		}
	}
	return nil
}
