package search

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatsAddIterationAccumulatesNodesAndIterations(t *testing.T) {
	s := NewStats(2)
	s.AddIteration(0, 3)
	s.AddIteration(0, 5)
	s.AddIteration(1, 1)

	assert.EqualValues(t, 3, s.Nodes())
	assert.EqualValues(t, 3, s.Iterations())
}

// TestStatsSelDepthTracksDeepestReach checks SelDepth reports the
// maximum depth any thread's iterations have reached, never decreasing
// when a shallower iteration reports afterward.
func TestStatsSelDepthTracksDeepestReach(t *testing.T) {
	s := NewStats(2)
	s.AddIteration(0, 10)
	s.AddIteration(1, 3)
	assert.Equal(t, 10, s.SelDepth())

	s.AddIteration(0, 2) // shallower, must not lower the max
	assert.Equal(t, 10, s.SelDepth())
}

// TestStatsRecordBestMoveCountsOnlyChanges checks the instability
// counter only increments when the reported index actually differs
// from the previous report, and not on the first-ever report.
func TestStatsRecordBestMoveCountsOnlyChanges(t *testing.T) {
	s := NewStats(1)
	s.RecordBestMove(2) // first report, no prior to compare against
	assert.EqualValues(t, 0, s.BestMoveChanges())

	s.RecordBestMove(2) // unchanged
	assert.EqualValues(t, 0, s.BestMoveChanges())

	s.RecordBestMove(5) // changed
	assert.EqualValues(t, 1, s.BestMoveChanges())

	s.RecordBestMove(5)
	s.RecordBestMove(1)
	assert.EqualValues(t, 2, s.BestMoveChanges())
}

// TestStatsRecordEvalTracksFallingScoreOnly checks the first report
// never counts as a drop, a rising eval reports no drop, and a falling
// eval reports exactly the magnitude it fell by.
func TestStatsRecordEvalTracksFallingScoreOnly(t *testing.T) {
	s := NewStats(1)
	assert.Zero(t, s.RecordEval(0.6), "the first report has nothing to compare against")
	assert.Zero(t, s.RecordEval(0.8), "a rising eval is not a drop")
	assert.InDelta(t, 0.3, s.RecordEval(0.5), 1e-9, "a falling eval reports its magnitude")
}

// TestStatsConcurrentAddIterationIsRace checks that many goroutines
// hammering distinct per-thread counters concurrently still sum
// exactly, exercising the cache-line-padded counters under race
// conditions.
func TestStatsConcurrentAddIterationIsRace(t *testing.T) {
	const threads = 8
	const perThread = 500
	s := NewStats(threads)

	var wg sync.WaitGroup
	for tid := 0; tid < threads; tid++ {
		wg.Add(1)
		go func(tid int) {
			defer wg.Done()
			for i := 0; i < perThread; i++ {
				s.AddIteration(tid, i%4)
			}
		}(tid)
	}
	wg.Wait()

	assert.EqualValues(t, threads*perThread, s.Nodes())
	assert.EqualValues(t, threads*perThread, s.Iterations())
	assert.Equal(t, 3, s.SelDepth())
}
