package node

// GameState is the proven-result sum type from spec.md §9: "state is a
// tagged variant {Ongoing, Draw, Lost(plies), Won(plies)}", encoded as a
// 16-bit integer. The low two bits hold the tag, the remaining 14 bits
// hold the plies-to-mate distance for Won/Lost.
type GameState uint16

const (
	tagOngoing uint16 = 0
	tagDraw    uint16 = 1
	tagLost    uint16 = 2
	tagWon     uint16 = 3

	tagMask    = uint16(0x3)
	pliesShift = 2
)

// Ongoing is the non-terminal state.
var Ongoing = GameState(tagOngoing)

// Draw is a terminal drawn state.
var Draw = GameState(tagDraw)

// Lost constructs a terminal "side to move loses in `plies` half-moves"
// state.
func Lost(plies uint16) GameState { return GameState(tagLost | plies<<pliesShift) }

// Won constructs a terminal "side to move wins in `plies` half-moves"
// state.
func Won(plies uint16) GameState { return GameState(tagWon | plies<<pliesShift) }

func (s GameState) tag() uint16 { return uint16(s) & tagMask }

// Plies returns the plies-to-mate distance for a Won/Lost state; zero for
// Ongoing/Draw.
func (s GameState) Plies() uint16 { return uint16(s) >> pliesShift }

// IsOngoing reports whether the node has not reached a proven terminal
// result.
func (s GameState) IsOngoing() bool { return s.tag() == tagOngoing }

// IsDraw reports a proven draw.
func (s GameState) IsDraw() bool { return s.tag() == tagDraw }

// IsLost reports a proven loss for the side to move, i.e. the node's
// parent is a proven win.
func (s GameState) IsLost() bool { return s.tag() == tagLost }

// IsWon reports a proven win for the side to move.
func (s GameState) IsWon() bool { return s.tag() == tagWon }

// IsTerminal reports whether the node is Draw, Won, or Lost — any state
// other than Ongoing (invariant 1, spec.md §3: "never expanded").
func (s GameState) IsTerminal() bool { return !s.IsOngoing() }

func (s GameState) String() string {
	switch {
	case s.IsOngoing():
		return "Ongoing"
	case s.IsDraw():
		return "Draw"
	case s.IsWon():
		return "Won"
	case s.IsLost():
		return "Lost"
	default:
		return "Unknown"
	}
}

// Utility returns the terminal state's utility from the side-to-move's
// perspective: 1 for a win, 0 for a loss, 0.5 for a draw. Only valid when
// IsTerminal() is true.
func (s GameState) Utility() float32 {
	switch {
	case s.IsWon():
		return 1
	case s.IsLost():
		return 0
	default:
		return 0.5
	}
}
