package nn

import (
	"math/bits"

	"github.com/notnil/chess"

	"github.com/corvidchess/corvid/internal/position"
)

// MaxActiveFeatures bounds the sparse feature list a single position can
// produce (spec.md §4.1: "emit ≤ 160 active integer feature indices").
const MaxActiveFeatures = 160

// pieceSquareFeatures is the shared piece-square vocabulary both networks
// draw from: 2 colours (own/their, from the side-to-move perspective) ×
// 6 piece types × 64 squares.
const pieceSquareFeatures = 2 * 6 * 64

// ValueFeatures is the value network's input vocabulary: the piece-square
// table plus four castling-right flags and an eight-wide en-passant file
// one-hot, a slightly larger vocabulary than policy's as spec.md §4.1
// describes ("Value and policy networks each consume a slightly
// different feature vocabulary").
const ValueFeatures = pieceSquareFeatures + 4 + 8

// PolicyFeatures is the policy network's input vocabulary: just the
// piece-square table.
const PolicyFeatures = pieceSquareFeatures

// Perspective mirrors the feature stage's viewpoint transform.
type Perspective struct {
	flipVertical   bool // Black to move: flip ranks
	flipHorizontal bool // king on the right half: flip files
}

// perspectiveOf derives the mirroring for a position: ranks flip when
// Black is to move, files flip again when the side-to-move king sits on
// the right half of the board (spec.md §4.1).
func perspectiveOf(pos *position.Position) Perspective {
	b := pos.Board()
	stm := pos.SideToMove()
	kingSq := kingSquare(b, stm)
	return Perspective{
		flipVertical:   stm == chess.Black,
		flipHorizontal: int(kingSq)%8 >= 4,
	}
}

func kingSquare(b *chess.Board, c chess.Color) chess.Square {
	m := b.SquareMap()
	for sq, p := range m {
		if p.Type() == chess.King && p.Color() == c {
			return sq
		}
	}
	return 0
}

func (pv Perspective) transform(sq chess.Square) chess.Square {
	file := int(sq) % 8
	rank := int(sq) / 8
	if pv.flipVertical {
		rank = 7 - rank
	}
	if pv.flipHorizontal {
		file = 7 - file
	}
	return chess.Square(rank*8 + file)
}

func pieceTypeIndex(t chess.PieceType) int {
	switch t {
	case chess.Pawn:
		return 0
	case chess.Knight:
		return 1
	case chess.Bishop:
		return 2
	case chess.Rook:
		return 3
	case chess.Queen:
		return 4
	default:
		return 5
	}
}

// appendPieceSquareFeatures appends the shared piece-square indices, own
// pieces first (colour bucket 0) then enemy pieces (bucket 1), each
// square remapped through the perspective transform.
func appendPieceSquareFeatures(pos *position.Position, pv Perspective, out []int32) []int32 {
	stm := pos.SideToMove()
	for sq, p := range pos.Board().SquareMap() {
		if p == chess.NoPiece {
			continue
		}
		colourBucket := 0
		if p.Color() != stm {
			colourBucket = 1
		}
		typeIdx := pieceTypeIndex(p.Type())
		mapped := pv.transform(sq)
		idx := colourBucket*6*64 + typeIdx*64 + int(mapped)
		out = append(out, int32(idx))
	}
	return out
}

// PolicyInputFeatures returns the active feature indices for the policy
// network.
func PolicyInputFeatures(pos *position.Position) []int32 {
	pv := perspectiveOf(pos)
	out := make([]int32, 0, 32)
	return appendPieceSquareFeatures(pos, pv, out)
}

// ValueInputFeatures returns the active feature indices for the value
// network: the piece-square table plus castling rights and en-passant
// file.
func ValueInputFeatures(pos *position.Position) []int32 {
	pv := perspectiveOf(pos)
	out := make([]int32, 0, 48)
	out = appendPieceSquareFeatures(pos, pv, out)

	base := int32(pieceSquareFeatures)
	rights := pos.Board() // castling/ep are read through Position below
	_ = rights
	for i, has := range castlingRights(pos) {
		if has {
			out = append(out, base+int32(i))
		}
	}
	if f, ok := enPassantFile(pos); ok {
		out = append(out, base+4+int32(f))
	}
	return out
}

// castlingRights reports [ourKingside, ourQueenside, theirKingside,
// theirQueenside] from the side-to-move's perspective.
func castlingRights(pos *position.Position) [4]bool {
	// notnil/chess exposes castling rights on the position's FEN-derived
	// state; parsed lazily here to avoid widening the Position surface.
	var rights [4]bool
	fen := pos.FEN()
	// FEN field 3 (0-indexed 2) is castling availability, e.g. "KQkq".
	fields := splitFields(fen)
	if len(fields) < 3 {
		return rights
	}
	avail := fields[2]
	white := pos.SideToMove() == chess.White
	has := func(c byte) bool {
		for i := 0; i < len(avail); i++ {
			if avail[i] == c {
				return true
			}
		}
		return false
	}
	if white {
		rights[0] = has('K')
		rights[1] = has('Q')
		rights[2] = has('k')
		rights[3] = has('q')
	} else {
		rights[0] = has('k')
		rights[1] = has('q')
		rights[2] = has('K')
		rights[3] = has('Q')
	}
	return rights
}

func enPassantFile(pos *position.Position) (int, bool) {
	fields := splitFields(pos.FEN())
	if len(fields) < 4 || fields[3] == "-" {
		return 0, false
	}
	file := fields[3][0] - 'a'
	if file > 7 {
		return 0, false
	}
	return int(file), true
}

func splitFields(s string) []string {
	var fields []string
	start := -1
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ' ' {
			if start >= 0 {
				fields = append(fields, s[start:i])
				start = -1
			}
		} else if start < 0 {
			start = i
		}
	}
	return fields
}

// queenAttackCounts and policyOffsets implement the per-from-square
// compact move indexing scheme from the policy network's transposed
// output layer (spec.md §4.1: "idx(move) maps (source, destination,
// promotion kind, SEE-passes-threshold) into one of ≈ 3 760 output
// slots"). The index for a non-promotion move is the from-square's
// offset plus the rank of its destination among all squares a queen or a
// knight could reach from that square on an empty board — a compact,
// purely geometric encoding that needs no attack generator at inference
// time.
var (
	queenAttacks  [64]uint64
	policyOffsets [65]int
)

func init() {
	for sq := 0; sq < 64; sq++ {
		queenAttacks[sq] = emptyBoardQueenAttacks(sq)
	}
	offset := 0
	for sq := 0; sq < 64; sq++ {
		policyOffsets[sq] = offset
		offset += bits.OnesCount64(queenAttacks[sq])
	}
	policyOffsets[64] = offset
	if offset != queenMobilitySum {
		panic("nn: queen mobility geometry drifted from the compiled-in PolicySlotCount constant")
	}
}

func emptyBoardQueenAttacks(sq int) uint64 {
	file, rank := sq%8, sq/8
	var bb uint64
	dirs := [8][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	for _, d := range dirs {
		f, r := file+d[0], rank+d[1]
		for f >= 0 && f < 8 && r >= 0 && r < 8 {
			bb |= 1 << uint(r*8+f)
			f += d[0]
			r += d[1]
		}
	}
	knight := [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	for _, d := range knight {
		f, r := file+d[0], rank+d[1]
		if f >= 0 && f < 8 && r >= 0 && r < 8 {
			bb |= 1 << uint(r*8+f)
		}
	}
	return bb
}

// promosPerFile is the per-(from-file,to-file) promotion bucket count
// used by the promotion branch of the index map.
const promosPerFile = 22 // 2*ffile+tfile fits in [0, 21] for ffile,tfile in [0,7]

// queenMobilitySum is the sum, over all 64 squares, of queen plus knight
// mobility on an empty board (a fixed property of 8x8 geometry):
// 1456 + 336 = 1792.
const queenMobilitySum = 1792

// PolicySlotCount is the total number of policy output slots: the
// non-promotion geometric table (queenMobilitySum entries) plus the
// promotion table (4 pieces x promosPerFile), doubled for the binary
// SEE-good/SEE-bad classifier. This must stay a compile-time constant so
// the network's output layer can be a fixed-size array; init() asserts
// it against the geometry computed at startup.
const PolicySlotCount = 2 * (queenMobilitySum + 4*promosPerFile)

// MoveIndex maps a move to its policy output slot, exactly the scheme
// described in spec.md §4.1 and grounded on the policy network's
// map_move_to_index: flip-adjusted squares, a bit-count offset table for
// ordinary moves, a small per-file table for promotions, and a binary
// SEE classifier that doubles the whole index space.
func MoveIndex(pos *position.Position, m position.Move, seeGood bool) int {
	half := policyOffsets[64] + 4*promosPerFile
	seeOffset := 0
	if seeGood {
		seeOffset = half
	}

	if m.Flag() >= position.FlagPromoKnight && m.Flag() <= position.FlagPromoQueen {
		pv := perspectiveOf(pos)
		ffile := int(pv.transform(m.Source())) % 8
		tfile := int(pv.transform(m.Dest())) % 8
		promoID := 2*ffile + tfile
		promoPiece := int(m.Flag()) - int(position.FlagPromoKnight)
		return seeOffset + policyOffsets[64] + promoPiece*promosPerFile + promoID
	}

	pv := perspectiveOf(pos)
	from := pv.transform(m.Source())
	dst := pv.transform(m.Dest())
	below := queenAttacks[from] & ((uint64(1) << uint(dst)) - 1)
	return seeOffset + policyOffsets[from] + bits.OnesCount64(below)
}
