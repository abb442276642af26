package ataxx

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corvidchess/corvid/game"
)

func TestNewStartingPositionHasFourStones(t *testing.T) {
	p := New()
	own, theirs := p.counts()
	require.Equal(t, 2, own)
	require.Equal(t, 2, theirs)
}

func TestLegalMovesFromStartpos(t *testing.T) {
	p := New()
	var moves []game.Move
	p.LegalMoves(func(m game.Move) { moves = append(moves, m) })
	require.NotEmpty(t, moves)
	for _, m := range moves {
		require.NotEqual(t, Pass, m)
	}
}

func TestPassWhenNoMoveAvailableButGameOngoing(t *testing.T) {
	p := &Position{stm: 0}
	p.board[sq(0, 0)] = red
	// Surround the lone red stone so it cannot move, but leave the rest of
	// the board reachable for blue.
	for r := 0; r <= 2; r++ {
		for c := 0; c <= 2; c++ {
			if r == 0 && c == 0 {
				continue
			}
			p.board[sq(r, c)] = blocked
		}
	}
	p.board[sq(Size-1, Size-1)] = blue

	var moves []game.Move
	p.LegalMoves(func(m game.Move) { moves = append(moves, m) })
	require.Equal(t, []game.Move{Pass}, moves)
}

func TestMakeCloneKeepsSourceStone(t *testing.T) {
	p := New()
	// Red at (0,0) clones to the adjacent (0,1): the source stone remains
	// (distance 1 is a clone, not a jump).
	mv := encodeMove(sq(0, 0), sq(0, 1))
	p.Make(mv)
	require.Equal(t, red, p.board[sq(0, 0)])
	require.Equal(t, red, p.board[sq(0, 1)])
	require.Equal(t, 1, p.stm)
}

func TestMakeJumpRemovesSourceStone(t *testing.T) {
	p := New()
	mv := encodeMove(sq(0, 0), sq(2, 0))
	p.Make(mv)
	require.Equal(t, empty, p.board[sq(0, 0)])
	require.Equal(t, red, p.board[sq(2, 0)])
}

func TestTerminalOngoingAtStart(t *testing.T) {
	p := New()
	require.Equal(t, game.Ongoing, p.Terminal())
}

func TestHashDiffersAfterMove(t *testing.T) {
	p := New()
	before := p.Hash()
	p.Make(encodeMove(sq(0, 0), sq(0, 1)))
	require.NotEqual(t, before, p.Hash())
}

func TestMoveStringParseMoveRoundTrip(t *testing.T) {
	p := New()
	mv := encodeMove(sq(0, 0), sq(1, 1))
	s := p.MoveString(mv)
	parsed, ok := p.ParseMove(s)
	require.True(t, ok)
	require.Equal(t, mv, parsed)
}

func TestMoveStringPass(t *testing.T) {
	p := New()
	require.Equal(t, "0000", p.MoveString(Pass))
	mv, ok := p.ParseMove("0000")
	require.True(t, ok)
	require.Equal(t, Pass, mv)
}

func TestPerftDepthOneCountsLegalMoves(t *testing.T) {
	p := New()
	var want uint64
	p.LegalMoves(func(game.Move) { want++ })
	require.Equal(t, want, p.Perft(1))
}

func TestFlipIsAlwaysZero(t *testing.T) {
	p := New()
	require.Equal(t, 0, p.Flip())
}
