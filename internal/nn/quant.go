// Package nn implements the quantised value and policy networks: fixed
// feature extraction over a sparse indicator vocabulary, integer
// matrix-vector inference, and a floating-point output stage. All
// divisions round towards zero (Go's integer division semantics),
// matching the "bit-identical across architectures" requirement in
// spec.md §4.1. The scalar arithmetic here is the reference
// implementation; a SIMD-accelerated path is not required for
// correctness and is not implemented.
package nn

import "github.com/chewxy/math32"

// expf wraps math32.Exp so the output stage stays in float32 end to end,
// consistent with the teacher's math32 usage for hot-path scalar math.
func expf(x float32) float32 { return math32.Exp(x) }

// logf wraps math32.Log for the same reason, used by the contempt
// adjustment's logistic re-centering.
func logf(x float32) float32 { return math32.Log(x) }

// Quantisation constants, network-specific literals that are part of the
// binary format (spec.md §4.1). Both networks share them in this engine;
// a format revision that needs distinct constants per network would add
// them to the file header instead of hardcoding here.
const (
	QA     int32 = 255 // input -> hidden scale
	QB     int32 = 64  // hidden -> output scale
	Factor int32 = 32  // pairwise multiplicative post-activation scale
)

// clampI16 clamps v into the activation range [0, QA], matching the
// "paired-half squared activation" clamp before the pairwise multiply.
func clampI16(v, hi int32) int32 {
	if v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}

// screlu combines two fixed-point hidden half-lanes via a squared,
// clamped activation (SCReLU-like, spec.md §4.1): clamp both to [0, QA],
// multiply, and rescale by QA/Factor.
func screlu(a, b int32) int32 {
	ca := clampI16(a, QA)
	cb := clampI16(b, QA)
	return (ca * cb) / (QA / Factor)
}
