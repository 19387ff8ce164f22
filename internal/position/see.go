package position

import "github.com/notnil/chess"

// pieceValue gives the standard material weights SEE swaps against.
var pieceValue = map[chess.PieceType]int{
	chess.Pawn:   100,
	chess.Knight: 320,
	chess.Bishop: 330,
	chess.Rook:   500,
	chess.Queen:  900,
	chess.King:   20000,
}

type occupancy map[chess.Square]chess.Piece

func boardOccupancy(b *chess.Board) occupancy {
	occ := make(occupancy, 32)
	for sq, p := range b.SquareMap() {
		if p != chess.NoPiece {
			occ[sq] = p
		}
	}
	return occ
}

var knightOffsets = [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
var kingOffsets = [8][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
var rookDirs = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
var bishopDirs = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}

func inBoard(f, r int) bool { return f >= 0 && f < 8 && r >= 0 && r < 8 }

// attackersTo returns every square occupied by a piece of colour `by`
// that attacks `sq`, given the supplied occupancy (so captured pieces can
// be removed between swap steps to reveal X-ray attackers).
func attackersTo(occ occupancy, sq chess.Square, by chess.Color) []chess.Square {
	file, rank := int(sq)%8, int(sq)/8
	var out []chess.Square

	for _, d := range knightOffsets {
		f, r := file+d[0], rank+d[1]
		if !inBoard(f, r) {
			continue
		}
		s := chess.Square(r*8 + f)
		if p, ok := occ[s]; ok && p.Color() == by && p.Type() == chess.Knight {
			out = append(out, s)
		}
	}
	for _, d := range kingOffsets {
		f, r := file+d[0], rank+d[1]
		if !inBoard(f, r) {
			continue
		}
		s := chess.Square(r*8 + f)
		if p, ok := occ[s]; ok && p.Color() == by && p.Type() == chess.King {
			out = append(out, s)
		}
	}
	// Pawns: a pawn of colour `by` attacks `sq` from one rank behind it,
	// on either adjacent file.
	pawnRankDelta := -1
	if by == chess.Black {
		pawnRankDelta = 1
	}
	for _, df := range [2]int{-1, 1} {
		f, r := file+df, rank+pawnRankDelta
		if !inBoard(f, r) {
			continue
		}
		s := chess.Square(r*8 + f)
		if p, ok := occ[s]; ok && p.Color() == by && p.Type() == chess.Pawn {
			out = append(out, s)
		}
	}
	for _, d := range rookDirs {
		out = append(out, rayAttackers(occ, file, rank, d, by, chess.Rook, chess.Queen)...)
	}
	for _, d := range bishopDirs {
		out = append(out, rayAttackers(occ, file, rank, d, by, chess.Bishop, chess.Queen)...)
	}
	return out
}

func rayAttackers(occ occupancy, file, rank int, d [2]int, by chess.Color, slider, alsoSlider chess.PieceType) []chess.Square {
	f, r := file+d[0], rank+d[1]
	for inBoard(f, r) {
		s := chess.Square(r*8 + f)
		if p, ok := occ[s]; ok {
			if p.Color() == by && (p.Type() == slider || p.Type() == alsoSlider) {
				return []chess.Square{s}
			}
			return nil
		}
		f += d[0]
		r += d[1]
	}
	return nil
}

func leastValuable(occ occupancy, squares []chess.Square) chess.Square {
	best := squares[0]
	bestVal := pieceValue[occ[best].Type()]
	for _, s := range squares[1:] {
		if v := pieceValue[occ[s].Type()]; v < bestVal {
			best, bestVal = s, v
		}
	}
	return best
}

// seeSwap runs the classic swap-off algorithm on `to`, returning the net
// material gain (in centipawns) from the attacker's perspective of
// capturing with `attackerSq`'s piece, assuming both sides always
// recapture with their least valuable attacker.
func seeSwap(occ occupancy, to chess.Square, attackerSq chess.Square, attackerColor chess.Color) int {
	gains := []int{pieceValue[occ[to].Type()]}
	movingValue := pieceValue[occ[attackerSq].Type()]

	working := make(occupancy, len(occ))
	for k, v := range occ {
		working[k] = v
	}
	delete(working, attackerSq)
	working[to] = occ[attackerSq]

	side := attackerColor.Other()
	lastValue := movingValue
	for {
		attackers := attackersTo(working, to, side)
		if len(attackers) == 0 {
			break
		}
		from := leastValuable(working, attackers)
		gains = append(gains, lastValue-gains[len(gains)-1])
		lastValue = pieceValue[working[from].Type()]
		delete(working, from)
		working[to] = working[from]
		side = side.Other()
		_ = working[to]
	}

	for i := len(gains) - 2; i >= 0; i-- {
		if -gains[i+1] < gains[i] {
			gains[i] = -gains[i+1]
		}
	}
	return gains[0]
}

// ThreatCount counts the side-to-move's own pieces currently attacked by
// the opponent, a cheap proxy the value network's bucket selector uses
// alongside piece count (spec.md §4.1: "37 buckets indexed by interval
// membership" over "(piece count, threat count)").
func (p *Position) ThreatCount() int {
	b := p.Board()
	occ := boardOccupancy(b)
	stm := p.SideToMove()
	count := 0
	for sq, piece := range occ {
		if piece.Color() != stm {
			continue
		}
		if len(attackersTo(occ, sq, stm.Other())) > 0 {
			count++
		}
	}
	return count
}

// SEE classifies a move as a "good" (material-gaining or neutral-above-
// threshold) exchange, the binary signal spec.md §4.1 feeds into the
// policy index ("SEE-passes-threshold... doubles the index space").
// Quiet moves (no capture) trivially pass. threshold is in centipawns,
// the network's own training convention; -108 is the constant used by
// the reference policy indexer this is grounded on.
func (p *Position) SEE(m Move, threshold int) bool {
	to := m.Dest()
	if m.Flag() == FlagCastle {
		return true
	}
	b := p.Board()
	occ := boardOccupancy(b)
	target, captured := occ[to]
	if m.Flag() == FlagEnPassant {
		// the captured pawn sits behind the destination square, not on it
		capSq := to
		if p.SideToMove() == chess.White {
			capSq = chess.Square(int(to) - 8)
		} else {
			capSq = chess.Square(int(to) + 8)
		}
		if cp, ok := occ[capSq]; ok {
			delete(occ, capSq)
			occ[to] = occ[m.Source()]
			target, captured = cp, true
		}
	}
	if !captured {
		return true
	}
	_ = target
	gain := seeSwap(occ, to, m.Source(), p.SideToMove())
	return gain >= threshold
}
