package search

import (
	"math"
	"sync/atomic"
)

// cacheLineSize is sized so each threadStats sits alone on its own cache
// line, avoiding false sharing between workers hammering their own
// counters every iteration (spec.md §2: "per-thread, cache-line-padded
// counters").
const cacheLineSize = 64

// threadStats holds one worker's hot counters. The padding keeps
// concurrent workers from bouncing each other's cache lines.
type threadStats struct {
	iterations uint64
	nodes      uint64
	selDepth   uint32
	_          [cacheLineSize - 20]byte
}

// Stats aggregates every worker's counters plus the shared best-move
// stability counter the soft time cutoff reads (spec.md §4.6).
type Stats struct {
	threads          []threadStats
	bestMoveChanges  uint32
	lastBestMoveRoot int32
	lastEvalBits     uint64 // atomic: IEEE754 bits of the last recorded root eval
	haveEval         uint32 // atomic: 0 until the first eval is recorded
}

// NewStats allocates per-thread counters for n workers.
func NewStats(n int) *Stats {
	if n < 1 {
		n = 1
	}
	return &Stats{threads: make([]threadStats, n), lastBestMoveRoot: -1}
}

// AddIteration records one completed PUCT iteration on behalf of tid,
// with the depth it reached.
func (s *Stats) AddIteration(tid, depth int) {
	t := &s.threads[tid]
	atomic.AddUint64(&t.iterations, 1)
	atomic.AddUint64(&t.nodes, 1)
	for {
		cur := atomic.LoadUint32(&t.selDepth)
		if uint32(depth) <= cur || atomic.CompareAndSwapUint32(&t.selDepth, cur, uint32(depth)) {
			break
		}
	}
}

// Nodes sums every thread's node counter, the total the Searcher reports
// in `info nodes` and uses for node-budget cutoffs.
func (s *Stats) Nodes() uint64 {
	var total uint64
	for i := range s.threads {
		total += atomic.LoadUint64(&s.threads[i].nodes)
	}
	return total
}

// Iterations sums every thread's iteration counter.
func (s *Stats) Iterations() uint64 {
	var total uint64
	for i := range s.threads {
		total += atomic.LoadUint64(&s.threads[i].iterations)
	}
	return total
}

// SelDepth returns the deepest selective depth any worker has reached.
func (s *Stats) SelDepth() int {
	var max uint32
	for i := range s.threads {
		if d := atomic.LoadUint32(&s.threads[i].selDepth); d > max {
			max = d
		}
	}
	return int(max)
}

// RecordBestMove bumps the instability counter when the root's best
// move (identified by its child index) changes between reports, the
// signal the soft time cutoff's "best-move-instability factor" reads
// (spec.md §4.6).
func (s *Stats) RecordBestMove(idx int) {
	prev := atomic.SwapInt32(&s.lastBestMoveRoot, int32(idx))
	if prev != -1 && prev != int32(idx) {
		atomic.AddUint32(&s.bestMoveChanges, 1)
	}
}

// BestMoveChanges reports how many times the reported best move has
// flipped so far this search.
func (s *Stats) BestMoveChanges() uint32 {
	return atomic.LoadUint32(&s.bestMoveChanges)
}

// RecordEval stores eval, the root's current best-move score from the
// side to move's perspective, and reports how far it has fallen since
// the previously recorded eval. The drop is clamped to zero when eval
// rose or this is the first report, so only a genuine deterioration
// feeds the soft time cutoff's "eval-falling factor" (spec.md §4.6).
func (s *Stats) RecordEval(eval float64) float64 {
	prevBits := atomic.SwapUint64(&s.lastEvalBits, math.Float64bits(eval))
	if atomic.SwapUint32(&s.haveEval, 1) == 0 {
		return 0
	}
	drop := math.Float64frombits(prevBits) - eval
	if drop < 0 {
		return 0
	}
	return drop
}
