package nn

import (
	"github.com/chewxy/math32"

	"github.com/corvidchess/corvid/internal/position"
)

// ValueHidden is the value network's hidden layer width, split into two
// equal halves for the paired squared activation (spec.md §4.1).
const ValueHidden = 1024

// NumValueBuckets is the bucketed output-head count spec.md §4.1
// specifies: "37 buckets indexed by interval membership" over
// (piece count, threat count).
const NumValueBuckets = 37

// valueBucketBoundaries partitions piece count (2..32) into
// NumValueBuckets intervals; threat count is folded in by simple modular
// mixing (see bucketIndex) since spec.md leaves the exact 2D→1D mapping
// unspecified.
var valueBucketBoundaries = makeBucketBoundaries()

func makeBucketBoundaries() [NumValueBuckets]int {
	var b [NumValueBuckets]int
	for i := range b {
		b[i] = 2 + (i*30)/NumValueBuckets
	}
	return b
}

func bucketIndex(pieceCount, threatCount int) int {
	idx := 0
	for i, boundary := range valueBucketBoundaries {
		if pieceCount >= boundary {
			idx = i
		}
	}
	// Fold threat count in by shifting the piece-count bucket up by
	// threatCount mod 3 (0, 1 or 2 buckets), clamped to stay in range.
	idx += threatCount % 3
	if idx >= NumValueBuckets {
		idx = NumValueBuckets - 1
	}
	return idx
}

// ValueNetwork is the quantised WDL head: one shared hidden layer plus
// NumValueBuckets small dense output heads.
type ValueNetwork struct {
	FeatureWeights [ValueFeatures][ValueHidden]int16
	FeatureBiases  [ValueHidden]int16
	BucketWeights  [NumValueBuckets][ValueHidden / 2][3]int16
	BucketBiases   [NumValueBuckets][3]int16
}

// WDL is the win/draw/loss probability triple (spec.md Glossary).
type WDL struct {
	Win, Draw, Loss float32
}

// Value returns the scalar utility spec.md §4.5 backs up through the
// tree: P(win) + 0.5*P(draw), the side-to-move's expected score.
func (w WDL) Value() float32 { return w.Win + 0.5*w.Draw }

// ApplyContempt re-centers a raw WDL triple by contempt, an Elo-style
// bias (Params.Contempt, in Elo units) toward avoiding (positive) or
// seeking (negative) draws,
// by treating win/loss as a logistic pair, shifting its mean, and
// reprojecting back to a WDL triple. Contempt of exactly zero, or a
// triple too lopsided to invert safely (near-certain win or loss),
// returns w unchanged rather than risking a division by a near-zero
// denominator.
func (w WDL) ApplyContempt(contempt float64) WDL {
	if contempt == 0 {
		return w
	}

	v := w.Win - w.Loss
	d := w.Draw
	winP := (1 + v - d) * 0.5
	lossP := (1 - v - d) * 0.5
	const eps = 1e-4
	if winP <= eps || lossP <= eps || winP >= 1-eps || lossP >= 1-eps {
		return w
	}

	a := logf(1/lossP - 1)
	b := logf(1/winP - 1)
	denom := a + b
	if math32.Abs(denom) < 1e-6 {
		return w
	}

	s := 2 / denom
	mu := (a - b) / denom

	const ln10 = 2.302585093
	deltaMu := float32(contempt) * ln10 / 400
	muNew := deltaMu + mu
	if muNew < -8 {
		muNew = -8
	}
	if muNew > 8 {
		muNew = 8
	}

	logistic := func(x float32) float32 { return 1 / (1 + expf(-x)) }
	winNew := logistic((-1 + muNew) / s)
	lossNew := logistic((-1 - muNew) / s)
	drawNew := 1 - winNew - lossNew
	if drawNew < 0 {
		drawNew = 0
	}
	if drawNew > 1 {
		drawNew = 1
	}

	return WDL{Win: winNew, Draw: drawNew, Loss: lossNew}
}

// Evaluate runs the value network on the given position's active
// features, from the side to move's perspective.
func (net *ValueNetwork) Evaluate(pos *position.Position, threatCount int) WDL {
	features := ValueInputFeatures(pos)
	hidden := make([]int32, ValueHidden)
	for i := 0; i < ValueHidden; i++ {
		hidden[i] = int32(net.FeatureBiases[i])
	}
	for _, f := range features {
		row := &net.FeatureWeights[f]
		for i := 0; i < ValueHidden; i++ {
			hidden[i] += int32(row[i])
		}
	}

	half := ValueHidden / 2
	activated := make([]int32, half)
	for i := 0; i < half; i++ {
		activated[i] = screlu(hidden[i], hidden[i+half])
	}

	bucket := bucketIndex(len(pos.Board().SquareMap()), threatCount)
	bw := &net.BucketWeights[bucket]
	bb := &net.BucketBiases[bucket]

	var logits [3]int64
	for i := 0; i < half; i++ {
		a := int64(activated[i])
		logits[0] += a * int64(bw[i][0])
		logits[1] += a * int64(bw[i][1])
		logits[2] += a * int64(bw[i][2])
	}
	var f [3]float32
	for k := 0; k < 3; k++ {
		f[k] = (float32(logits[k])/float32(QA*Factor) + float32(bb[k])) / float32(QB)
	}
	return softmaxWDL(f)
}

// softmaxWDL converts three raw (Loss, Draw, Win) logits into a
// normalised probability triple via max-subtract + exponentiate +
// normalise (spec.md §4.1).
func softmaxWDL(logits [3]float32) WDL {
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	var exp [3]float32
	var sum float32
	for i, v := range logits {
		e := expf(v - max)
		exp[i] = e
		sum += e
	}
	if sum == 0 {
		sum = 1
	}
	return WDL{Loss: exp[0] / sum, Draw: exp[1] / sum, Win: exp[2] / sum}
}
