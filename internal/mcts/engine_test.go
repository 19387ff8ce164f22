package mcts

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidchess/corvid/internal/nn"
	"github.com/corvidchess/corvid/internal/node"
	"github.com/corvidchess/corvid/internal/params"
	"github.com/corvidchess/corvid/internal/position"
	"github.com/corvidchess/corvid/internal/tree"
)

func newTestEngine(capacity int) (*Engine, *tree.Tree) {
	tr := tree.New(capacity, 256, 8)
	nets := &nn.Networks{Policy: &nn.PolicyNetwork{}, Value: &nn.ValueNetwork{}}
	e := New(tr, nets, params.Default())
	return e, tr
}

// TestPerformOneFirstVisitScoresRootAsLeaf checks that one iteration from
// a fresh, unexpanded root evaluates it as a leaf: the returned u lies in
// [0,1], no child is descended into (reached depth 0), and the root
// records exactly one visit.
func TestPerformOneFirstVisitScoresRootAsLeaf(t *testing.T) {
	e, tr := newTestEngine(1024)
	tr.SetRootPosition(position.NewGame().FEN())
	root := tr.Root()

	pos := position.NewGame()
	u, reached := e.PerformOne(pos, root, 0, 0)
	assert.GreaterOrEqual(t, u, float32(0))
	assert.LessOrEqual(t, u, float32(1))
	assert.Equal(t, 0, reached)

	rootNode := tr.At(root)
	assert.EqualValues(t, 1, rootNode.Visits(), "the root's own visit count increments once per PerformOne call")
}

// TestPerformOneExpandsRootOnSecondVisit exercises the full
// expand-then-descend path: the first call only evaluates the root as a
// leaf (visits==0 case), the second call must find it expanded and
// descend into a real child.
func TestPerformOneExpandsRootOnSecondVisit(t *testing.T) {
	e, tr := newTestEngine(1024)
	tr.SetRootPosition(position.NewGame().FEN())
	root := tr.Root()

	_, _ = e.PerformOne(position.NewGame(), root, 0, 0)
	rootNode := tr.At(root)
	require.False(t, rootNode.IsExpanded(), "a first visit only evaluates, it does not expand")

	_, reached := e.PerformOne(position.NewGame(), root, 0, 0)
	assert.True(t, rootNode.IsExpanded())
	assert.Greater(t, reached, 0, "the second visit must descend at least one ply into a child")
	assert.EqualValues(t, 2, rootNode.Visits())
}

// TestPerformOneVisitsAreMonotonic runs many sequential iterations from
// the same root and checks the visit count never decreases and ends
// exactly at the iteration count (spec.md §8's visit-monotonicity
// property).
func TestPerformOneVisitsAreMonotonic(t *testing.T) {
	e, tr := newTestEngine(1 << 14)
	tr.SetRootPosition(position.NewGame().FEN())
	root := tr.Root()

	const iterations = 200
	var last uint32
	for i := 0; i < iterations; i++ {
		e.PerformOne(position.NewGame(), root, 0, 0)
		v := tr.At(root).Visits()
		assert.GreaterOrEqual(t, v, last)
		last = v
	}
	assert.EqualValues(t, iterations, last)
}

// TestPerformOneConcurrentWorkersAgreeOnVisitCount runs many workers
// concurrently against the same root, each with its own cloned
// Position, and checks the total visit count matches the number of
// calls exactly - no update is lost to a race (spec.md §5's concurrent
// worker model).
func TestPerformOneConcurrentWorkersAgreeOnVisitCount(t *testing.T) {
	e, tr := newTestEngine(1 << 16)
	tr.SetRootPosition(position.NewGame().FEN())
	root := tr.Root()

	const workers = 8
	const perWorker = 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				e.PerformOne(position.NewGame(), root, worker, 0)
			}
		}(w)
	}
	wg.Wait()
	assert.EqualValues(t, workers*perWorker, tr.At(root).Visits())
}

// TestEvaluateLeafUsesTranspositionTableOnHit checks that a cached Q
// beats a fresh network evaluation on the second lookup of the same
// hash (spec.md §4.4's TT-probe-before-network-eval ordering).
func TestEvaluateLeafUsesTranspositionTableOnHit(t *testing.T) {
	e, tr := newTestEngine(64)
	pos := position.NewGame()

	tr.SetRootPosition(pos.FEN())
	tr.PushHash(pos.Hash(), 0.73)
	leaf := tr.At(tr.Root())

	q := e.evaluateLeaf(pos, leaf)
	assert.InDelta(t, 0.73, q, 1.0/65535)
}

// TestEvaluateLeafRecordsTerminalState checks a finished game is tagged
// Won/Lost/Draw on its node rather than scored by the network.
func TestEvaluateLeafRecordsTerminalState(t *testing.T) {
	e, tr := newTestEngine(64)
	// Fool's mate: a terminal position reachable in four plies.
	pos := position.NewGame()
	require.NoError(t, pos.MakeMove("f2f3"))
	require.NoError(t, pos.MakeMove("e7e5"))
	require.NoError(t, pos.MakeMove("g2g4"))
	require.NoError(t, pos.MakeMove("d8h4"))

	tr.SetRootPosition(pos.FEN())
	leaf := tr.At(tr.Root())

	u := e.evaluateLeaf(pos, leaf)
	assert.True(t, leaf.State().IsTerminal())
	assert.Equal(t, leaf.State().Utility(), u)
}

// TestPropagateProvenMateChildLostMakesParentWon checks the one-child
// absorption rule: any Lost(d) child makes the parent Won(d+1).
func TestPropagateProvenMateChildLostMakesParentWon(t *testing.T) {
	e, tr := newTestEngine(64)
	tr.SetRootPosition("pos0")
	root := tr.At(tr.Root())

	require.True(t, tr.ExpandNode(root, []position.Move{1, 2}, []float32{0.5, 0.5}, 0.5, 0))
	child := tr.Child(root, 0)
	child.SetState(node.Lost(3))

	e.propagateProvenMate(root, child)
	assert.True(t, root.State().IsWon())
	assert.EqualValues(t, 4, root.State().Plies())
}

// TestPropagateProvenMateAllChildrenWonMakesParentLost checks the
// all-children absorption rule: once every child is proven Won, the
// parent becomes Lost(1+min d).
func TestPropagateProvenMateAllChildrenWonMakesParentLost(t *testing.T) {
	e, tr := newTestEngine(64)
	tr.SetRootPosition("pos0")
	root := tr.At(tr.Root())

	require.True(t, tr.ExpandNode(root, []position.Move{1, 2}, []float32{0.5, 0.5}, 0.5, 0))
	c0 := tr.Child(root, 0)
	c1 := tr.Child(root, 1)
	c0.SetState(node.Won(5))

	e.propagateProvenMate(root, c0)
	assert.False(t, root.State().IsTerminal(), "one Won child alone must not flip the parent")

	c1.SetState(node.Won(2))
	e.propagateProvenMate(root, c1)
	assert.True(t, root.State().IsLost())
	assert.EqualValues(t, 3, root.State().Plies(), "parent adopts 1 + the minimum child ply count")
}

// TestPropagateProvenMateLeavesDecidedParentAlone checks that a parent
// whose state was already decided is never overwritten.
func TestPropagateProvenMateLeavesDecidedParentAlone(t *testing.T) {
	e, tr := newTestEngine(64)
	tr.SetRootPosition("pos0")
	root := tr.At(tr.Root())

	require.True(t, tr.ExpandNode(root, []position.Move{1}, []float32{1.0}, 0, 0))
	child := tr.Child(root, 0)
	child.SetState(node.Lost(1))
	root.SetState(node.Draw)

	e.propagateProvenMate(root, child)
	assert.True(t, root.State().IsDraw())
}
