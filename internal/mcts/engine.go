// Package mcts implements the PUCT iteration described in spec.md §4.5:
// a single recursive descent-expand-backpropagate cycle driven against a
// shared tree.Tree by any number of concurrent workers. Grounded on
// github.com/alphabeth/mcts (search.go's pipeline/expandAndSimulate
// split), generalised from a single growable arena and Go-specific
// action space to the two-half Tree and chess Move space this engine
// targets.
package mcts

import (
	"github.com/corvidchess/corvid/internal/nn"
	"github.com/corvidchess/corvid/internal/node"
	"github.com/corvidchess/corvid/internal/params"
	"github.com/corvidchess/corvid/internal/position"
	"github.com/corvidchess/corvid/internal/tree"
)

// seeThreshold is the centipawn cutoff the policy indexer's binary SEE
// classifier uses, the constant the reference policy network was
// trained against (spec.md §4.1).
const seeThreshold = -108

// Engine ties a Tree to a pair of networks and a tunable parameter
// record, the minimum state one PUCT iteration needs.
type Engine struct {
	Tree   *tree.Tree
	Nets   *nn.Networks
	Params *params.Params
}

// New constructs an Engine over an already-built tree and network pair.
func New(t *tree.Tree, nets *nn.Networks, p *params.Params) *Engine {
	return &Engine{Tree: t, Nets: nets, Params: p}
}

// PerformOne runs a single iteration starting at ptr against pos (a
// worker-owned, already-rewound position), mutating pos forward along
// the descent path exactly once (spec.md §4.5's perform_one). worker
// identifies the calling goroutine for Tree.Reserve's per-worker
// reservation cursors.
func (e *Engine) PerformOne(pos *position.Position, ptr node.Ptr, worker, depth int) (float32, int) {
	n := e.Tree.At(ptr)

	var u float32
	reached := depth
	switch {
	case n.State().IsTerminal():
		u = n.State().Utility()
	case n.Visits() == 0:
		u = e.evaluateLeaf(pos, n)
	default:
		if !n.IsExpanded() {
			e.expandNode(pos, n, worker, depth)
		}
		if n.IsExpanded() {
			actionIdx, child := e.pickAction(n, depth)
			childPtr := e.Tree.ChildPtr(n, actionIdx)

			child.IncThreads()
			_ = pos.MakeMove(child.ParentMove().UCI())
			var childU float32
			childU, reached = e.PerformOne(pos, childPtr, worker, depth+1)
			child.DecThreads()

			e.propagateProvenMate(n, child)
			u = 1 - childU
		} else {
			// A concurrent half-swap left n unable to reserve children
			// this visit (tree.Tree.ExpandNode's documented failure
			// case). Score this visit as a leaf instead of descending
			// into a child that was never allocated; n expands on a
			// later visit once the fresh half has room.
			u = e.evaluateLeaf(pos, n)
		}
	}

	newQ := n.Update(u)
	e.Tree.PushHash(pos.Hash(), 1-newQ)
	return u, reached
}

// evaluateLeaf is the first-visit path: it records a terminal game state
// if the position has one, otherwise probes the transposition table and
// falls back to a fresh network evaluation on a miss.
func (e *Engine) evaluateLeaf(pos *position.Position, n *node.Node) float32 {
	if ended, winner := pos.Outcome(); ended {
		switch {
		case winner == pos.SideToMove().Other():
			n.SetState(node.Lost(0))
		case winner == pos.SideToMove():
			n.SetState(node.Won(0))
		default:
			n.SetState(node.Draw)
		}
	}

	if n.State().IsTerminal() {
		return n.State().Utility()
	}

	if q, ok := e.Tree.ProbeHash(pos.Hash()); ok {
		return q
	}
	wdl := e.Nets.Value.Evaluate(pos, pos.ThreatCount()).ApplyContempt(e.Params.Contempt())
	return wdl.Value()
}

// propagateProvenMate absorbs a child's proven terminal state into its
// parent (spec.md §4.5: "If any child is Lost(d), the parent is
// Won(d+1). If all children are Won(·), the parent is Lost(1+min d)").
// Writes are monotonic and Relaxed; concurrent callers converge on the
// same verdict regardless of interleaving.
func (e *Engine) propagateProvenMate(parent, child *node.Node) {
	if !parent.State().IsOngoing() {
		return
	}
	childState := child.State()
	if childState.IsLost() {
		parent.SetState(node.Won(childState.Plies() + 1))
		return
	}
	if !childState.IsWon() {
		return
	}
	if !parent.HasChildren() {
		return
	}
	numActions := parent.NumActions()
	minPlies := uint16(0)
	allWon := true
	for i := 0; i < numActions; i++ {
		c := e.Tree.Child(parent, i)
		s := c.State()
		if !s.IsWon() {
			allWon = false
			break
		}
		if i == 0 || s.Plies() < minPlies {
			minPlies = s.Plies()
		}
	}
	if allWon {
		parent.SetState(node.Lost(minPlies + 1))
	}
}
