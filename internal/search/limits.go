package search

import (
	"time"

	"github.com/corvidchess/corvid/internal/params"
)

// Limits is the stop condition a controller hands to Search, mirroring
// the `go` command's nodes, movetime, wtime/btime, winc/binc, movestogo
// and infinite options. A depth limit is not represented: `go depth D`
// is not parsed and does not bound the search.
type Limits struct {
	Nodes     uint64        // 0 means unlimited
	MoveTime  time.Duration // explicit, bypasses soft-cutoff logic
	WTime     time.Duration
	BTime     time.Duration
	WInc      time.Duration
	BInc      time.Duration
	MovesToGo int
	Infinite  bool

	// Overhead is reserved off both the soft and hard budgets to cover
	// the round-trip to the controller, so a search that stops "on time"
	// still delivers its bestmove before the controller's own clock
	// runs out.
	Overhead time.Duration
}

// hasNodeBudget reports whether a strict node-count cutoff applies
// (spec.md §4.6: "Node-budget mode... time logic is skipped").
func (l Limits) hasNodeBudget() bool { return l.Nodes > 0 }

// timeBudget computes (optTime, maxTime) for the side to move, following
// spec.md §4.6's formulas:
//
//	opt_time = time * tm_opt_base + increment * (tm_mtg - 1) * ...
//	max_time = time * tm_hard_limit
func (l Limits) timeBudget(whiteToMove bool, p *params.Params) (opt, max time.Duration, ok bool) {
	if l.MoveTime > 0 {
		return l.withOverhead(l.MoveTime), l.withOverhead(l.MoveTime), true
	}
	var clock, inc time.Duration
	if whiteToMove {
		clock, inc = l.WTime, l.WInc
	} else {
		clock, inc = l.BTime, l.BInc
	}
	if clock <= 0 {
		return 0, 0, false
	}
	mtg := float64(l.MovesToGo)
	if mtg <= 0 {
		mtg = p.TmMtg()
	}
	optSeconds := clock.Seconds()*p.TmOptBase() + inc.Seconds()*(mtg-1)/mtg
	maxSeconds := clock.Seconds() * p.TmHardLimit()
	opt = l.withOverhead(time.Duration(optSeconds * float64(time.Second)))
	max = l.withOverhead(time.Duration(maxSeconds * float64(time.Second)))
	if opt > max {
		opt = max
	}
	return opt, max, true
}

// withOverhead reserves Overhead off a raw budget, floored at one
// millisecond so a large overhead against a tiny budget never collapses
// the search to zero time.
func (l Limits) withOverhead(d time.Duration) time.Duration {
	d -= l.Overhead
	if d < time.Millisecond {
		return time.Millisecond
	}
	return d
}
