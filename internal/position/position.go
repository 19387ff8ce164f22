// Package position wraps github.com/notnil/chess as the Position/Move
// external collaborator described by the search subsystem: board
// occupancy, side to move, legal-move enumeration, hashing, SEE, and
// sparse neural feature enumeration. Board variants and move generation
// itself are out of scope here; this package only adapts chess's surface
// to what the search needs.
package position

import (
	"fmt"

	"github.com/notnil/chess"
)

// Position is a single mutable game in progress, the same role
// github.com/alphabeth/game.Chess plays for the old MCTS.
type Position struct {
	game *chess.Game
}

// NewGame returns the standard starting position.
func NewGame() *Position {
	return &Position{game: chess.NewGame(chess.UseNotation(chess.UCINotation{}))}
}

// FromFEN parses a FEN string into a Position.
func FromFEN(fen string) (*Position, error) {
	f, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("invalid fen %q: %w", fen, err)
	}
	return &Position{game: chess.NewGame(f, chess.UseNotation(chess.UCINotation{}))}, nil
}

// Clone returns a deep copy of the position, the only way a worker may
// obtain its own mutable copy of the root (§5: "The Position is not
// shared — each worker owns a cloned mutable copy").
func (p *Position) Clone() *Position {
	return &Position{game: p.game.Clone()}
}

// Hash returns the 64-bit Zobrist hash of the current position, truncated
// from notnil/chess's 128-bit position hash.
func (p *Position) Hash() uint64 {
	h := p.game.Position().Hash()
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(h[i]) << (8 * i)
	}
	return v
}

// SideToMove returns the color to move.
func (p *Position) SideToMove() chess.Color {
	return p.game.Position().Turn()
}

// LegalMoves enumerates legal moves from the current position.
func (p *Position) LegalMoves() []*chess.Move {
	return p.game.ValidMoves()
}

// InCheck reports whether the side to move is in check.
func (p *Position) InCheck() bool {
	return p.game.Position().Status() == chess.Check || p.game.Position().Status() == chess.Checkmate
}

// MakeMove applies a move by UCI string (the form Move.UCI produces).
func (p *Position) MakeMove(uci string) error {
	if err := p.game.MoveStr(uci); err != nil {
		return fmt.Errorf("illegal move %q: %w", uci, err)
	}
	return nil
}

// Outcome reports whether the game has ended and who, if anyone, won.
func (p *Position) Outcome() (ended bool, winner chess.Color) {
	o := p.game.Outcome()
	if o == chess.NoOutcome {
		return false, chess.NoColor
	}
	switch o {
	case chess.WhiteWon:
		return true, chess.White
	case chess.BlackWon:
		return true, chess.Black
	default:
		return true, chess.NoColor
	}
}

// LastMove returns the most recently applied move and true, or false if
// the game is still at its starting position.
func (p *Position) LastMove() (*chess.Move, bool) {
	moves := p.game.Moves()
	if len(moves) == 0 {
		return nil, false
	}
	return moves[len(moves)-1], true
}

// RecentMoves returns up to the last n applied moves, oldest first, or
// fewer if the game has fewer than n moves played.
func (p *Position) RecentMoves(n int) []*chess.Move {
	moves := p.game.Moves()
	if len(moves) < n {
		n = len(moves)
	}
	return moves[len(moves)-n:]
}

// FEN renders the position as FEN, used for logging and info lines.
func (p *Position) FEN() string {
	return p.game.FEN()
}

// Board exposes the underlying board for feature extraction and display.
func (p *Position) Board() *chess.Board {
	return p.game.Position().Board()
}

// String implements fmt.Stringer for debug logging.
func (p *Position) String() string {
	return p.game.Position().Board().Draw()
}
