package mcts

import (
	"github.com/chewxy/math32"

	"github.com/corvidchess/corvid/internal/node"
)

// pickAction selects the child of n that maximises the PUCT score,
// ties broken by lowest index (spec.md §4.5). depth == 0 uses the root's
// distinct, usually larger, cpuct.
func (e *Engine) pickAction(n *node.Node, depth int) (int, *node.Node) {
	parentQ := n.Q()
	fpu := 1 - parentQ
	parentVisits := n.Visits()

	base := e.Params.CPuctBase()
	if depth == 0 {
		base = e.Params.CPuctRoot()
	}
	cpuct := e.Params.Cpuct(base, parentVisits)
	sqrtParent := math32.Sqrt(float32(parentVisits))
	exploreScale := e.exploreScale(parentVisits, n.GiniImpurity())

	idx, child := e.Tree.GetBestChildByKey(n, func(c *node.Node, _ int) float64 {
		return float64(e.actionScore(c, fpu, cpuct, sqrtParent, exploreScale))
	})
	return idx, child
}

// actionScore computes Q-term + U-term for one child.
func (e *Engine) actionScore(c *node.Node, fpu float32, cpuct float64, sqrtParent float32, exploreScale float64) float32 {
	visits := c.Visits()
	q := fpu
	if visits > 0 {
		q = virtualLossAdjust(c.Q(), visits, c.Threads(), e.Params.VirtualLossWeight())
	}

	varTerm := e.varianceTerm(c, visits)
	u := float32(cpuct*exploreScale*varTerm) * c.Policy() * sqrtParent / float32(1+visits)
	return q + u
}

// virtualLossAdjust implements spec.md §4.2's virtual-loss damping:
// q' = q · V / (V + 1 + w · (T − 1)). With only the calling worker in
// flight (T = 1) this reduces to q · V / (V + 1); with more workers in
// flight it further
// discounts the value to repel additional arrivals.
func virtualLossAdjust(q float32, visits uint32, threads int32, w float64) float32 {
	v := float64(visits)
	t := float64(threads)
	denom := v + 1 + w*(t-1)
	if denom <= 0 {
		return 0
	}
	return float32(float64(q) * v / denom)
}

// minVarianceWarmupVisits is the visit count below which a child's
// variance estimate is too noisy to shape exploration; the term is held
// neutral (1.0) until then.
const minVarianceWarmupVisits = 2

// varianceTerm computes `1 + cpuct_var_weight * (fraction - 1)` where
// `fraction = sqrt(var) / cpuct_var_scale`, the Q-spread exploration
// shaping term from spec.md §4.5.
func (e *Engine) varianceTerm(c *node.Node, visits uint32) float64 {
	if visits < minVarianceWarmupVisits {
		return 1
	}
	fraction := float64(math32.Sqrt(c.Var())) / e.Params.CPuctVarScale()
	term := 1 + e.Params.CPuctVarWeight()*(fraction-1)
	if term < 0 {
		return 0
	}
	return term
}

// exploreScale computes `exp(expl_tau * ln(max(N,1))) * shape(gini)`,
// the node-wide exploration multiplier from spec.md §4.5.
func (e *Engine) exploreScale(parentVisits uint32, gini float32) float64 {
	n := float64(parentVisits)
	if n < 1 {
		n = 1
	}
	visitScale := math32.Exp(float32(e.Params.ExplorationTau()) * math32.Log(float32(n)))
	return float64(visitScale) * e.giniShape(gini)
}

// giniShape maps a node's child-policy gini impurity to an exploration
// multiplier clamped to [gini_min, gini_max], increasing with impurity:
// a diffuse policy (high impurity) widens exploration, a sharply peaked
// one narrows it.
func (e *Engine) giniShape(gini float32) float64 {
	shape := e.Params.GiniBase() * (0.5 + float64(gini))
	if shape < e.Params.GiniMin() {
		return e.Params.GiniMin()
	}
	if shape > e.Params.GiniMax() {
		return e.Params.GiniMax()
	}
	return shape
}
