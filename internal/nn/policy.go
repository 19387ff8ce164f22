package nn

import (
	"github.com/corvidchess/corvid/internal/position"
)

// PolicyHidden is the policy network's hidden layer width, again split
// into two equal halves for the paired squared activation.
const PolicyHidden = 512

// PolicyNetwork is the quantised move-prior head: one shared hidden
// layer feeding a transposed per-slot output layer, so that scoring a
// single legal move at search time only needs one dot product rather
// than a full dense layer evaluation (spec.md §4.1: "policy's output
// layer is stored transposed, one row per output slot, so that scoring
// a single candidate move is a single dot product against a row").
type PolicyNetwork struct {
	FeatureWeights [PolicyFeatures][PolicyHidden]int16
	FeatureBiases  [PolicyHidden]int16
	OutputWeights  [PolicySlotCount][PolicyHidden / 2]int16
	OutputBiases   [PolicySlotCount]int16
}

// Hidden computes the shared activated hidden layer for pos, reused
// across every candidate move's Score call.
func (net *PolicyNetwork) Hidden(pos *position.Position) []int32 {
	features := PolicyInputFeatures(pos)
	hidden := make([]int32, PolicyHidden)
	for i := 0; i < PolicyHidden; i++ {
		hidden[i] = int32(net.FeatureBiases[i])
	}
	for _, f := range features {
		row := &net.FeatureWeights[f]
		for i := 0; i < PolicyHidden; i++ {
			hidden[i] += int32(row[i])
		}
	}

	half := PolicyHidden / 2
	activated := make([]int32, half)
	for i := 0; i < half; i++ {
		activated[i] = screlu(hidden[i], hidden[i+half])
	}
	return activated
}

// Score returns the raw (pre-softmax) logit for a single move, given the
// hidden activations computed once per position by Hidden.
func (net *PolicyNetwork) Score(hidden []int32, pos *position.Position, m position.Move, seeGood bool) float32 {
	slot := MoveIndex(pos, m, seeGood)
	row := &net.OutputWeights[slot]
	var acc int64
	for i, h := range hidden {
		acc += int64(h) * int64(row[i])
	}
	return (float32(acc)/float32(QA*Factor) + float32(net.OutputBiases[slot])) / float32(QB)
}

// Priors scores every candidate in moves (each paired with its SEE
// classification) and returns a softmax-normalised prior distribution,
// the policy head's full output for one expansion (spec.md §4.5:
// "Priors come from a softmax over the policy network's scores for the
// node's legal moves").
func (net *PolicyNetwork) Priors(pos *position.Position, moves []position.Move, seeGood []bool) []float32 {
	hidden := net.Hidden(pos)
	logits := make([]float32, len(moves))
	var maxLogit float32
	for i, m := range moves {
		logits[i] = net.Score(hidden, pos, m, seeGood[i])
		if i == 0 || logits[i] > maxLogit {
			maxLogit = logits[i]
		}
	}
	priors := make([]float32, len(moves))
	var sum float32
	for i, l := range logits {
		e := expf(l - maxLogit)
		priors[i] = e
		sum += e
	}
	if sum == 0 {
		sum = 1
	}
	for i := range priors {
		priors[i] /= sum
	}
	return priors
}
