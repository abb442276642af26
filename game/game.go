// Package game defines the abstract capability set spec §4.8 calls "Game":
// the contract the MCTS driver (mcts), quiescence search (qsearch) and both
// networks (valuenet, policynet) program against, never against a concrete
// chess/ataxx/shatranj position. Concrete providers live in game/chess and
// game/ataxx; this package never imports either.
package game

import "github.com/corvidchess/corvid/features"

// Move is an opaque 16-bit move identifier (spec §3): it round-trips
// through a concrete Game's own encoding but carries no meaning outside of
// one. The core never inspects its bits.
type Move uint16

// State is the terminal classification of a position, relative to the side
// to move at that position.
type State int

const (
	Ongoing State = iota
	Lost
	Draw
	Won
)

func (s State) String() string {
	switch s {
	case Ongoing:
		return "Ongoing"
	case Lost:
		return "Lost"
	case Draw:
		return "Draw"
	case Won:
		return "Won"
	}
	return "Unknown"
}

// Game is the capability set a position representation must satisfy. All
// methods are called from the MCTS driver's single-threaded-per-worker
// descent; a Game value is never shared/mutated across goroutines — each
// worker clones its own from the position under search.
type Game interface {
	// Clone returns an independent copy that Make can mutate without
	// affecting the receiver.
	Clone() Game

	// LegalMoves calls visit once per legal move in the current position.
	// Passing a visitor instead of returning a slice lets chess/ataxx avoid
	// an intermediate allocation when the caller only needs to count or
	// score moves, not collect them.
	LegalMoves(visit func(Move))

	// MapLegalCaptures is LegalMoves restricted to capturing moves, used by
	// qsearch (spec §4.4) so it never has to filter the full move list.
	MapLegalCaptures(visit func(Move))

	// Make applies m to the receiver in place, advancing it to the
	// resulting position. m must have come from this exact position's
	// LegalMoves/MapLegalCaptures.
	Make(m Move)

	// Terminal reports whether the game has ended, from the perspective of
	// the side to move at the receiver's current position.
	Terminal() State

	// Hash is a 64-bit position hash used for transposition-style tree
	// reuse matching (spec §3's Node.hash).
	Hash() uint64

	// PolicyFeats and ValueFeats return the sparse active-feature sets fed
	// to the policy and value networks respectively.
	PolicyFeats() features.Sparse
	ValueFeats() features.Sparse

	// STM returns 0 or 1 for the side to move.
	STM() int

	// Flip returns the side-to-move-normalization XOR mask applied to
	// square indices before indexing into policy subnets (spec §4.3): 0
	// when the side to move needs no mirroring, a game-specific constant
	// otherwise (56 for chess/shatranj's vertical board mirror).
	Flip() int

	// MoveSquares decodes m into the (from, to) square indices the policy
	// network indexes subnets with.
	MoveSquares(m Move) (from, to int)

	// See estimates, from the mover's perspective, the net material
	// outcome of playing the capture m and continuing to exchange on its
	// destination square, returning true iff that estimate is at least
	// threshold (spec §4.4 step 3's SEE pruning test).
	See(m Move, threshold int) bool

	// CapturedAndMovingRank returns the MVV/LVA ranks (spec §4.4 step 2) of
	// the piece captured and the piece moving. Games without a captured-
	// piece concept (e.g. ataxx) report MapLegalCaptures as empty and never
	// have this called.
	CapturedAndMovingRank(m Move) (captured, moving int)

	// Perft counts leaf positions reachable in exactly depth plies, for
	// move generator regression tests (spec §3).
	Perft(depth int) uint64
}
