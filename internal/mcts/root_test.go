package mcts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidchess/corvid/internal/nn"
	"github.com/corvidchess/corvid/internal/node"
	"github.com/corvidchess/corvid/internal/params"
	"github.com/corvidchess/corvid/internal/position"
	"github.com/corvidchess/corvid/internal/tree"
)

func newRootTestEngine(capacity int) (*Engine, *tree.Tree) {
	tr := tree.New(capacity, 256, 8)
	nets := &nn.Networks{Policy: &nn.PolicyNetwork{}, Value: &nn.ValueNetwork{}}
	e := New(tr, nets, params.Default())
	return e, tr
}

// TestPrepareRootExpandsAndMixesNoise checks PrepareRoot leaves a fresh
// root expanded with a full, still-normalised prior distribution after
// noise mixing (spec.md §4.6's root warm-up step).
func TestPrepareRootExpandsAndMixesNoise(t *testing.T) {
	e, tr := newRootTestEngine(1024)
	pos := position.NewGame()
	tr.SetRootPosition(pos.FEN())
	root := tr.Root()

	e.PrepareRoot(pos, root, 0)

	n := tr.At(root)
	require.True(t, n.IsExpanded())
	numActions := n.NumActions()
	require.Greater(t, numActions, 1)

	var sum float32
	for i := 0; i < numActions; i++ {
		c := tr.Child(n, i)
		p := c.Policy()
		assert.GreaterOrEqual(t, p, float32(0))
		assert.LessOrEqual(t, p, float32(1))
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 0.02, "noise-mixed priors must still sum to ~1")
}

// TestPrepareRootIsIdempotentOnceExpanded checks a second call against
// an already-expanded root does not re-mix noise or change num_actions.
func TestPrepareRootIsIdempotentOnceExpanded(t *testing.T) {
	e, tr := newRootTestEngine(1024)
	pos := position.NewGame()
	tr.SetRootPosition(pos.FEN())
	root := tr.Root()

	e.PrepareRoot(pos, root, 0)
	n := tr.At(root)
	before := n.NumActions()
	firstChildPolicy := tr.Child(n, 0).Policy()

	e.PrepareRoot(pos, root, 0)
	assert.Equal(t, before, n.NumActions())
	assert.Equal(t, firstChildPolicy, tr.Child(n, 0).Policy())
}

// TestPrepareRootSkipsTerminalPosition checks that a checkmated root is
// left unexpanded rather than crashing on an empty legal-move list.
func TestPrepareRootSkipsTerminalPosition(t *testing.T) {
	e, tr := newRootTestEngine(64)
	pos := position.NewGame()
	require.NoError(t, pos.MakeMove("f2f3"))
	require.NoError(t, pos.MakeMove("e7e5"))
	require.NoError(t, pos.MakeMove("g2g4"))
	require.NoError(t, pos.MakeMove("d8h4"))

	tr.SetRootPosition(pos.FEN())
	root := tr.Root()
	n := tr.At(root)
	ended, winner := pos.Outcome()
	require.True(t, ended)
	if winner == pos.SideToMove() {
		n.SetState(node.Won(0))
	} else {
		n.SetState(node.Lost(0))
	}

	e.PrepareRoot(pos, root, 0)
	assert.False(t, n.IsExpanded())
}

// TestBestMoveNoChildrenReturnsSentinel checks an unexpanded root
// reports no best move rather than panicking.
func TestBestMoveNoChildrenReturnsSentinel(t *testing.T) {
	e, tr := newRootTestEngine(64)
	tr.SetRootPosition("pos0")
	root := tr.Root()

	idx, child := e.BestMove(root)
	assert.Equal(t, -1, idx)
	assert.Nil(t, child)
}

// TestBestMoveBreaksTiesByQ checks that when visit counts are equal the
// higher-Q child wins (spec.md §4.6).
func TestBestMoveBreaksTiesByQ(t *testing.T) {
	e, tr := newRootTestEngine(64)
	tr.SetRootPosition("pos0")
	root := tr.At(tr.Root())
	require.True(t, tr.ExpandNode(root, []position.Move{1, 2}, []float32{0.5, 0.5}, 0, 0))

	c0 := tr.Child(root, 0)
	c1 := tr.Child(root, 1)
	c0.Update(0.3)
	c1.Update(0.9)

	idx, best := e.BestMove(tr.Root())
	assert.Equal(t, 1, idx)
	assert.Same(t, c1, best)
}

// TestBestMovePrefersMoreVisitsOverHigherQ checks visit count dominates
// the ranking key even against a lower Q.
func TestBestMovePrefersMoreVisitsOverHigherQ(t *testing.T) {
	e, tr := newRootTestEngine(64)
	tr.SetRootPosition("pos0")
	root := tr.At(tr.Root())
	require.True(t, tr.ExpandNode(root, []position.Move{1, 2}, []float32{0.5, 0.5}, 0, 0))

	c0 := tr.Child(root, 0)
	c1 := tr.Child(root, 1)
	c0.Update(0.99)
	c1.Update(0.1)
	c1.Update(0.1) // two visits against c0's one

	idx, _ := e.BestMove(tr.Root())
	assert.Equal(t, 1, idx)
}

// TestPrincipalVariationFollowsBestChildChain checks the PV walks
// best-move links until an unexpanded node or maxLen, in order.
func TestPrincipalVariationFollowsBestChildChain(t *testing.T) {
	e, tr := newRootTestEngine(64)
	tr.SetRootPosition("pos0")
	root := tr.At(tr.Root())
	require.True(t, tr.ExpandNode(root, []position.Move{1, 2}, []float32{0.5, 0.5}, 0, 0))
	c0 := tr.Child(root, 0)
	c1 := tr.Child(root, 1)
	c0.Update(0.2)
	c1.Update(0.8) // c1 (move 2) is the best child

	require.True(t, tr.ExpandNode(c1, []position.Move{10}, []float32{1.0}, 0, 0))
	tr.Child(c1, 0).Update(0.5)

	pv := e.PrincipalVariation(tr.Root(), 5)
	require.Len(t, pv, 2)
	assert.EqualValues(t, 2, pv[0])
	assert.EqualValues(t, 10, pv[1])
}

// TestPrincipalVariationStopsAtMaxLen checks the PV never exceeds the
// requested length even against a deeper expanded chain.
func TestPrincipalVariationStopsAtMaxLen(t *testing.T) {
	e, tr := newRootTestEngine(64)
	tr.SetRootPosition("pos0")
	root := tr.At(tr.Root())
	require.True(t, tr.ExpandNode(root, []position.Move{1}, []float32{1.0}, 0, 0))
	c := tr.Child(root, 0)
	c.Update(0.5)
	require.True(t, tr.ExpandNode(c, []position.Move{2}, []float32{1.0}, 0, 0))
	tr.Child(c, 0).Update(0.5)

	pv := e.PrincipalVariation(tr.Root(), 1)
	assert.Len(t, pv, 1)
}
