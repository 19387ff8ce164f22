package mcts

import (
	"github.com/chewxy/math32"

	"github.com/corvidchess/corvid/internal/node"
	"github.com/corvidchess/corvid/internal/position"
)

// expandNode enumerates pos's legal moves, scores them with the policy
// network, and hands the (move, prior) pairs to the Tree for allocation
// (spec.md §4.5's "Policy decoding on expansion"). Concurrent callers
// that lose the expansion race simply discard their computed priors;
// Tree.ExpandNode reports the loss via its boolean return, which this
// ignores since the winning caller's result is what matters.
func (e *Engine) expandNode(pos *position.Position, n *node.Node, worker, depth int) {
	legal := pos.LegalMoves()
	if len(legal) == 0 {
		return
	}

	moves := make([]position.Move, len(legal))
	seeGood := make([]bool, len(legal))
	for i, m := range legal {
		pm := position.FromChessMove(m)
		moves[i] = pm
		seeGood[i] = pos.SEE(pm, seeThreshold)
	}

	hidden := e.Nets.Policy.Hidden(pos)
	logits := make([]float32, len(moves))
	for i, pm := range moves {
		logits[i] = e.Nets.Policy.Score(hidden, pos, pm, seeGood[i])
	}

	temp := policyTemperature(depth, n.Q())
	priors := softmaxTemperature(logits, temp)
	gini := giniImpurity(priors)

	e.Tree.ExpandNode(n, moves, priors, gini, worker)
}

// policyTemperature computes the depth- and Q-shaped softmax
// temperature (PST, spec.md Glossary) applied to raw policy logits at
// expansion: temperature decays with depth, and is further sharpened the
// further the parent's own Q sits from an undecided 0.5 — a node whose
// outcome already looks lopsided gets a peakier policy.
func policyTemperature(depth int, parentQ float32) float32 {
	const (
		base        = 1.0
		depthDecay  = 0.05
		minTemp     = 0.1
		maxTemp     = 1.5
		qSkewWeight = 0.5
	)
	t := base / (1 + depthDecay*float32(depth))
	skew := parentQ - 0.5
	if skew < 0 {
		skew = -skew
	}
	t *= 1 - qSkewWeight*(2*skew)
	if t < minTemp {
		t = minTemp
	}
	if t > maxTemp {
		t = maxTemp
	}
	return t
}

// softmaxTemperature applies max-subtract + temperature-scaled
// exponentiate + normalise to raw logits.
func softmaxTemperature(logits []float32, temp float32) []float32 {
	if len(logits) == 0 {
		return nil
	}
	max := logits[0]
	for _, l := range logits[1:] {
		if l > max {
			max = l
		}
	}
	out := make([]float32, len(logits))
	var sum float32
	for i, l := range logits {
		e := math32.Exp((l - max) / temp)
		out[i] = e
		sum += e
	}
	if sum == 0 {
		sum = 1
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// giniImpurity computes 1 - Σ p² over a child policy distribution
// (spec.md Glossary).
func giniImpurity(priors []float32) float32 {
	var sumSq float32
	for _, p := range priors {
		sumSq += p * p
	}
	return 1 - sumSq
}
