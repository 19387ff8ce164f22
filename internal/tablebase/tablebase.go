// Package tablebase defines the optional endgame-tablebase probe
// interface spec.md §6 specifies: given a position with few enough
// pieces, return a WDL verdict and optionally a DTZ-optimal move. This
// package carries no design weight of its own (spec.md §1: "addressed
// only as an interface the search may consult"); it stubs the interface
// with a no-op implementation so the search and controller can wire
// against it unconditionally.
package tablebase

import "github.com/corvidchess/corvid/internal/position"

// WDL is the tablebase's win/draw/loss verdict from the side to move's
// perspective.
type WDL int

const (
	WDLLoss WDL = -1
	WDLDraw WDL = 0
	WDLWin  WDL = 1
)

// Verdict is one probe result: a WDL classification plus an optional
// DTZ-optimal move (spec.md §6: "At the root the search consults DTZ to
// pick an optimal move directly").
type Verdict struct {
	WDL      WDL
	DTZ      int
	BestMove position.Move
	HasMove  bool
}

// Probe is the tablebase interface (spec.md §6). uci.Engine holds one
// (NoOp by default); the search does not call it.
type Probe interface {
	// MaxPieces is the largest total piece count (both colours, kings
	// included) this probe can answer for.
	MaxPieces() int
	// Probe returns a verdict for pos, or (Verdict{}, false) if the
	// position falls outside the loaded tables.
	Probe(pos *position.Position) (Verdict, bool)
}

// NoOp never has an answer, the default when no SyzygyPath option has
// been configured.
type NoOp struct{}

// MaxPieces reports zero, so NoOp never claims to cover any position.
func (NoOp) MaxPieces() int { return 0 }

// Probe always misses.
func (NoOp) Probe(*position.Position) (Verdict, bool) { return Verdict{}, false }
