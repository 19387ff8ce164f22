package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampI16(t *testing.T) {
	assert.EqualValues(t, 0, clampI16(-5, QA))
	assert.EqualValues(t, QA, clampI16(QA+50, QA))
	assert.EqualValues(t, 10, clampI16(10, QA))
}

func TestScreluZeroOnNegativeLane(t *testing.T) {
	assert.EqualValues(t, 0, screlu(-10, 200))
	assert.EqualValues(t, 0, screlu(200, -10))
}

func TestScreluSaturatesAtClampedProduct(t *testing.T) {
	// both lanes saturate at QA; divisor is integer QA/Factor, matching
	// the quantised format's fixed-point rounding (round towards zero).
	got := screlu(QA+100, QA+100)
	want := (QA * QA) / (QA / Factor)
	assert.EqualValues(t, want, got)
}

func TestExpfMonotonic(t *testing.T) {
	assert.Greater(t, expf(1.0), expf(0.0))
	assert.InDelta(t, 1.0, float64(expf(0.0)), 1e-6)
}
