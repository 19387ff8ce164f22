// Package search implements the Searcher and time control described in
// spec.md §4.6: a per-worker PUCT iteration driver with an atomic stop
// flag, soft/hard time budgets, and periodic reporting. Grounded on
// github.com/alphabeth/mcts's goroutine-per-worker Search (search.go),
// generalised from a fixed-duration context timeout to the
// soft/hard/node-budget cutoff logic spec.md specifies.
package search

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/notnil/chess"

	"github.com/corvidchess/corvid/internal/mcts"
	"github.com/corvidchess/corvid/internal/node"
	"github.com/corvidchess/corvid/internal/params"
	"github.com/corvidchess/corvid/internal/position"
	"github.com/corvidchess/corvid/internal/tree"
	"github.com/corvidchess/corvid/internal/xlog"
)

// mainCheckInterval is how many iterations the main worker performs
// between time/node budget checks, amortising the cost of reading the
// clock across many iterations (spec.md §5: "amortised per-iteration
// thresholds... to avoid contention on a shared counter").
const mainCheckInterval = 128

// Progress is one periodic status report, the data behind a UCI `info`
// line.
type Progress struct {
	Depth    int
	SelDepth int
	Nodes    uint64
	NPS      uint64
	Elapsed  time.Duration
	ScoreCP  int
	Mate     bool
	MateIn   int
	PV       []position.Move
}

// Result is the final outcome of a Search call.
type Result struct {
	BestMove position.Move
	HasMove  bool
	PV       []position.Move
	Progress Progress
}

// Searcher drives parallel PUCT iterations against a shared tree.Tree.
type Searcher struct {
	Tree   *tree.Tree
	Engine *mcts.Engine
	Params *params.Params
	Log    *xlog.Logger

	stop int32
}

// New builds a Searcher over an already-constructed engine.
func New(t *tree.Tree, e *mcts.Engine, p *params.Params, log *xlog.Logger) *Searcher {
	if log == nil {
		log = xlog.Default()
	}
	return &Searcher{Tree: t, Engine: e, Params: p, Log: log}
}

// Stop requests every worker halt at its next iteration boundary
// (spec.md §5: "The stop flag is a single atomic boolean; workers poll
// at iteration boundaries").
func (s *Searcher) Stop() { atomic.StoreInt32(&s.stop, 1) }

func (s *Searcher) stopped() bool { return atomic.LoadInt32(&s.stop) != 0 }

// Search runs until a limit fires or Stop is called, using `threads`
// worker goroutines, and reports periodic Progress through onInfo
// (spec.md §4.6's worker loop).
func (s *Searcher) Search(rootPos *position.Position, limits Limits, threads int, onInfo func(Progress)) Result {
	atomic.StoreInt32(&s.stop, 0)
	if threads < 1 {
		threads = 1
	}

	root := s.Tree.Root()
	s.Engine.PrepareRoot(rootPos.Clone(), root, 0)

	stats := NewStats(threads)
	start := time.Now()

	whiteToMove := rootPos.SideToMove() == chess.White
	optTime, maxTime, haveClock := limits.timeBudget(whiteToMove, s.Params)

	var wg sync.WaitGroup
	for w := 0; w < threads; w++ {
		wg.Add(1)
		go s.runWorker(w, w == 0, rootPos, root, &limits, stats, start, optTime, maxTime, haveClock, onInfo, &wg)
	}
	wg.Wait()

	return s.buildResult(root, stats, start)
}

func (s *Searcher) runWorker(
	tid int,
	isMain bool,
	rootPos *position.Position,
	root node.Ptr,
	limits *Limits,
	stats *Stats,
	start time.Time,
	optTime, maxTime time.Duration,
	haveClock bool,
	onInfo func(Progress),
	wg *sync.WaitGroup,
) {
	defer wg.Done()
	iterSinceCheck := 0
	for !s.stopped() {
		if isMain {
			iterSinceCheck++
			if iterSinceCheck >= mainCheckInterval {
				iterSinceCheck = 0
				if s.shouldStop(limits, stats, start, optTime, maxTime, haveClock, root) {
					s.Stop()
					break
				}
				if onInfo != nil {
					onInfo(s.progress(root, stats, start))
				}
			}
		}

		pos := rootPos.Clone()
		_, reached := s.Engine.PerformOne(pos, root, tid, 0)
		stats.AddIteration(tid, reached)
	}
}

// shouldStop checks the node budget, hard time limit, and soft time
// cutoff, in that order (spec.md §4.6).
func (s *Searcher) shouldStop(limits *Limits, stats *Stats, start time.Time, optTime, maxTime time.Duration, haveClock bool, root node.Ptr) bool {
	if limits.hasNodeBudget() && stats.Nodes() >= limits.Nodes {
		return true
	}
	elapsed := time.Since(start)
	if limits.MoveTime > 0 {
		return elapsed >= limits.MoveTime
	}
	if !haveClock {
		return false
	}
	if elapsed >= maxTime {
		return true
	}
	return elapsed >= s.softCutoff(stats, optTime, root)
}

// softCutoff scales optTime by the eval-falling, best-move-instability,
// and best-move-visit-fraction factors spec.md §4.6 describes. Each
// factor is individually capped at 1.5x so no single signal dominates
// the others; the hard time limit checked in shouldStop still bounds
// the total regardless of how the three factors combine.
func (s *Searcher) softCutoff(stats *Stats, optTime time.Duration, root node.Ptr) time.Duration {
	const maxFactor = 1.5

	instability := clampFactor(1.0+0.15*float64(stats.BestMoveChanges()), maxFactor)

	evalFactor := 1.0
	if idx, child := s.Engine.BestMove(root); idx >= 0 {
		// child.Q() is from the child's own side-to-move perspective, i.e.
		// the root's opponent; flip it to track eval from the root's side
		// (the same convention buildResult uses for the reported score).
		eval := 1 - float64(child.Q())
		drop := stats.RecordEval(eval)
		evalFactor = clampFactor(1.0+4*drop, maxFactor)
	}

	visitFactor := clampFactor(1.0+(0.5-s.bestMoveVisitFraction(root)), maxFactor)

	return time.Duration(float64(optTime) * instability * evalFactor * visitFactor)
}

func clampFactor(f, max float64) float64 {
	if f > max {
		return max
	}
	if f < 1.0 {
		return 1.0
	}
	return f
}

// bestMoveVisitFraction returns the share of the root's total child
// visits held by its most-visited child, the signal the soft time
// cutoff's "best-move-visit-fraction factor" reads: a low share means
// the search hasn't converged on a single best move yet, so the soft
// budget should stretch rather than cut the search short.
func (s *Searcher) bestMoveVisitFraction(root node.Ptr) float64 {
	n := s.Tree.At(root)
	numActions := n.NumActions()
	if numActions == 0 {
		return 1.0
	}
	var total, best uint32
	for i := 0; i < numActions; i++ {
		v := s.Tree.Child(n, i).Visits()
		total += v
		if v > best {
			best = v
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(best) / float64(total)
}

func (s *Searcher) progress(root node.Ptr, stats *Stats, start time.Time) Progress {
	idx, _ := s.Engine.BestMove(root)
	if idx >= 0 {
		stats.RecordBestMove(idx)
	}
	elapsed := time.Since(start)
	nodes := stats.Nodes()
	var nps uint64
	if elapsed > 0 {
		nps = uint64(float64(nodes) / elapsed.Seconds())
	}
	return Progress{
		Depth:    1,
		SelDepth: stats.SelDepth(),
		Nodes:    nodes,
		NPS:      nps,
		Elapsed:  elapsed,
		PV:       s.Engine.PrincipalVariation(root, stats.SelDepth()+1),
	}
}

func (s *Searcher) buildResult(root node.Ptr, stats *Stats, start time.Time) Result {
	idx, child := s.Engine.BestMove(root)
	prog := s.progress(root, stats, start)
	if idx < 0 {
		return Result{HasMove: false, Progress: prog}
	}
	// child.Q() is Q from the child's own side-to-move perspective, i.e.
	// the root's opponent; flip it to report the score from the root's
	// perspective (spec.md §9's stored-Q convention).
	prog.ScoreCP = qToCentipawns(1 - child.Q())
	if st := child.State(); st.IsLost() {
		prog.Mate = true
		prog.MateIn = (int(st.Plies()) + 1) / 2
	}
	return Result{
		BestMove: child.ParentMove(),
		HasMove:  true,
		PV:       prog.PV,
		Progress: prog,
	}
}

// qToCentipawns maps a [0,1] win probability to an approximate
// centipawn score via the logistic link most UCI engines use for
// display purposes only; no search decision depends on this value.
func qToCentipawns(q float32) int {
	if q <= 0 {
		return -1000
	}
	if q >= 1 {
		return 1000
	}
	const scale = 400.0
	return int(scale * logit(float64(q)))
}

func logit(p float64) float64 {
	return math.Log10(p/(1-p)) * 2
}
