package qsearch

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corvidchess/corvid/accum"
	"github.com/corvidchess/corvid/game/chess"
	"github.com/corvidchess/corvid/valuenet"
)

// randomNet builds a deterministically-seeded value network so these tests
// don't depend on a trained weight file: only the search's alpha-beta and
// ordering logic is under test here, not evaluation quality.
func randomNet(seed int64) *valuenet.Net {
	r := rand.New(rand.NewSource(seed))
	n := valuenet.New(chess.ValueInput, 16)
	for i := range n.L1Weights {
		for j := range n.L1Weights[i].Vals {
			n.L1Weights[i].Vals[j] = int16(r.Intn(200) - 100)
		}
	}
	for j := range n.L1Bias.Vals {
		n.L1Bias.Vals[j] = int16(r.Intn(20) - 10)
	}
	for j := range n.L2Weights.Vals {
		n.L2Weights.Vals[j] = int16(r.Intn(40) - 20)
	}
	n.L2Bias = int16(r.Intn(10))
	return n
}

func TestSearchReturnsStandPatWithNoCaptures(t *testing.T) {
	p := chess.New()
	net := randomNet(1)
	stand := net.Eval(p.ValueFeats())
	got := Search(p, net, -accum.QA*1000, accum.QA*1000)
	require.Equal(t, stand, got)
}

func TestSearchFindsWinningCapture(t *testing.T) {
	p, err := chess.FromFEN("4k3/8/8/3n4/4P3/8/8/4K3 w - - 0 1")
	require.NoError(t, err)
	net := randomNet(2)
	stand := net.Eval(p.ValueFeats())
	got := Search(p, net, -1_000_000, 1_000_000)
	require.GreaterOrEqual(t, got, stand)
}

func TestSearchRespectsBetaCutoff(t *testing.T) {
	p, err := chess.FromFEN("4k3/8/8/3n4/4P3/8/8/4K3 w - - 0 1")
	require.NoError(t, err)
	net := randomNet(3)
	stand := net.Eval(p.ValueFeats())
	got := Search(p, net, stand, stand)
	require.Equal(t, stand, got)
}
