package mcts

import (
	"time"

	distrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/corvidchess/corvid/internal/node"
	"github.com/corvidchess/corvid/internal/position"
)

// dirichletAlpha is the Dirichlet concentration parameter for root
// exploration noise, the teacher's fixed constant for the same
// technique (grounded on github.com/alphabeth/mcts.New's
// dirichletDist).
const dirichletAlpha = 0.3

// dirichletWeight is the fraction of the root's prior replaced by noise:
// `p' = (1-w)*p + w*noise`.
const dirichletWeight = 0.25

// PrepareRoot ensures the root node is expanded (so the first selection
// has real children to choose among) and, if freshly expanded, mixes in
// Dirichlet exploration noise across its children's priors — the root
// only, per standard practice, since interior nodes should reflect the
// network's own exploration shaping (spec.md §4.6 leaves root warm-up to
// the implementation; grounded on the teacher's per-search Dirichlet
// draw in mcts.New).
func (e *Engine) PrepareRoot(pos *position.Position, root node.Ptr, worker int) {
	n := e.Tree.At(root)
	if n.IsTerminal() {
		return
	}
	if !n.IsExpanded() {
		e.expandNode(pos, n, worker, 0)
		e.addRootNoise(n)
	}
}

func (e *Engine) addRootNoise(n *node.Node) {
	numActions := n.NumActions()
	if numActions < 2 {
		return
	}
	alpha := make([]float64, numActions)
	for i := range alpha {
		alpha[i] = dirichletAlpha
	}
	dist := distmv.NewDirichlet(alpha, distrand.NewSource(uint64(time.Now().UnixNano())))
	noise := dist.Rand(nil)

	for i := 0; i < numActions; i++ {
		c := e.Tree.Child(n, i)
		mixed := (1-dirichletWeight)*float64(c.Policy()) + dirichletWeight*noise[i]
		c.SetPolicy(float32(mixed))
	}
}

// BestMove returns the index of the root's most-visited child, ties
// broken by highest Q (spec.md §4.6: "the best move is the child with
// the most visits, ties broken by Q").
func (e *Engine) BestMove(root node.Ptr) (int, *node.Node) {
	n := e.Tree.At(root)
	if !n.HasChildren() {
		return -1, nil
	}
	return e.Tree.GetBestChildByKey(n, func(c *node.Node, _ int) float64 {
		// Encode (visits, Q) as one ordered key: visits dominate, Q breaks
		// ties. Visit counts fit comfortably under 2^32 so this never
		// overflows a float64 mantissa in practice.
		return float64(c.Visits())*2 + float64(c.Q())
	})
}

// PrincipalVariation follows the most-visited child at each node from
// root, the PV definition in the Glossary.
func (e *Engine) PrincipalVariation(root node.Ptr, maxLen int) []position.Move {
	pv := make([]position.Move, 0, maxLen)
	ptr := root
	for i := 0; i < maxLen; i++ {
		n := e.Tree.At(ptr)
		if !n.HasChildren() {
			break
		}
		idx, child := e.BestMove(ptr)
		if idx < 0 {
			break
		}
		pv = append(pv, child.ParentMove())
		ptr = e.Tree.ChildPtr(n, idx)
	}
	return pv
}
