package position

import "github.com/notnil/chess"

// Move is the packed 16-bit move representation from spec.md §3: source
// square (6 bits), destination square (6 bits), flag (4 bits). Castling
// moves are stored in king-takes-rook form: the destination square is the
// rook's square, not the king's landing square.
type Move uint16

// Flag values, packed into the top 4 bits of a Move.
const (
	FlagNone Flag = iota
	FlagPromoKnight
	FlagPromoBishop
	FlagPromoRook
	FlagPromoQueen
	FlagCastle
	FlagEnPassant
)

type Flag uint8

const (
	srcShift = 0
	dstShift = 6
	flgShift = 12
	sqMask   = 0x3F
)

// Pack builds a Move from squares and a flag.
func Pack(src, dst chess.Square, flag Flag) Move {
	return Move(uint16(src)&sqMask<<srcShift | uint16(dst)&sqMask<<dstShift | uint16(flag)<<flgShift)
}

// Source returns the source square.
func (m Move) Source() chess.Square { return chess.Square((m >> srcShift) & sqMask) }

// Dest returns the destination square — for castling this is the rook's
// square, per the king-takes-rook convention.
func (m Move) Dest() chess.Square { return chess.Square((m >> dstShift) & sqMask) }

// Flag returns the packed move flag.
func (m Move) Flag() Flag { return Flag((m >> flgShift) & 0xF) }

// rookCastleSquare returns the rook's home square a castling king move
// implies, used to remap a notnil/chess castling move into the spec's
// king-takes-rook encoding.
func rookCastleSquare(m *chess.Move) chess.Square {
	s1, s2 := m.S1(), m.S2()
	kingSideRook := s1 + 3
	queenSideRook := s1 - 4
	if s2 > s1 {
		return kingSideRook
	}
	return queenSideRook
}

func promoFlag(p chess.PieceType) Flag {
	switch p {
	case chess.Knight:
		return FlagPromoKnight
	case chess.Bishop:
		return FlagPromoBishop
	case chess.Rook:
		return FlagPromoRook
	case chess.Queen:
		return FlagPromoQueen
	default:
		return FlagNone
	}
}

// FromChessMove converts a notnil/chess move into the packed representation.
func FromChessMove(m *chess.Move) Move {
	if m.HasTag(chess.KingSideCastle) || m.HasTag(chess.QueenSideCastle) {
		return Pack(m.S1(), rookCastleSquare(m), FlagCastle)
	}
	if m.HasTag(chess.EnPassant) {
		return Pack(m.S1(), m.S2(), FlagEnPassant)
	}
	if promo := m.Promo(); promo != chess.NoPieceType {
		return Pack(m.S1(), m.S2(), promoFlag(promo))
	}
	return Pack(m.S1(), m.S2(), FlagNone)
}

// UCI renders the move using the long algebraic notation the controller
// protocol and Position.MakeMove expect, undoing the king-takes-rook
// remap for castling moves.
func (m Move) UCI() string {
	src, dst := m.Source(), m.Dest()
	if m.Flag() == FlagCastle {
		if dst > src {
			dst = src + 2
		} else {
			dst = src - 2
		}
	}
	s := src.String() + dst.String()
	switch m.Flag() {
	case FlagPromoKnight:
		s += "n"
	case FlagPromoBishop:
		s += "b"
	case FlagPromoRook:
		s += "r"
	case FlagPromoQueen:
		s += "q"
	}
	return s
}
