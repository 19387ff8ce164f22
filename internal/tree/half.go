// Package tree implements the double-buffered shared tree (spec.md §3,
// §4.3): two preallocated node arenas, a transposition table, and the
// expand/relocate/swap machinery that lets the tree outlive a single
// arena's capacity. Grounded on github.com/alphabeth/mcts (tree.go's
// bump allocator over a single growable slice), generalised to the
// two-half, per-worker-cache-line-reservation design spec.md §4.3
// mandates.
package tree

import (
	"sync/atomic"

	"github.com/corvidchess/corvid/internal/node"
)

// reservationBlock is the cache-line-sized block a worker claims from the
// shared `used` counter once its local reservation runs out (spec.md
// §4.3: "Workers reserve in cache-line blocks (1024 nodes) to avoid
// contention").
const reservationBlock = 1024

// half identifies which of the tree's two arenas a TreeHalf backs.
type half struct {
	nodes []node.Node
	used  uint64 // atomic: total nodes ever handed out from this half
	which bool   // the half flag stamped into every Ptr this half allocates

	next []uint64 // per-worker bump cursor, atomic
	end  []uint64 // per-worker reservation end, atomic
}

func newHalf(size int, which bool, workers int) *half {
	if workers < 1 {
		workers = 1
	}
	h := &half{
		nodes: make([]node.Node, size),
		which: which,
		next:  make([]uint64, workers),
		end:   make([]uint64, workers),
	}
	// A zero-valued node.Node has an actions pointer of Ptr(0), a valid-
	// looking (half=0, idx=0) address rather than node.Null — every slot
	// needs its sentinel fixed up before it can be handed out.
	for i := range h.nodes {
		h.nodes[i].ClearActions()
	}
	return h
}

// At returns the node at idx within this half.
func (h *half) At(idx uint32) *node.Node { return &h.nodes[idx] }

// Cap returns the half's total capacity.
func (h *half) Cap() int { return len(h.nodes) }

// Used returns the number of node slots claimed so far, counted in whole
// reservation blocks (a worker's unused tail of its block counts as used).
func (h *half) Used() int { return int(atomic.LoadUint64(&h.used)) }

// IsFull reports whether the half has no more capacity.
func (h *half) IsFull() bool { return h.Used() >= h.Cap() }

// Reserve hands worker `w` a contiguous block of `num` node indices,
// bump-allocating from its local cache-line reservation and refilling
// from the shared `used` counter via fetch_add when exhausted. Returns
// (0, false) when the half is out of capacity — the caller must trigger
// a half-swap (spec.md §4.3).
func (h *half) Reserve(num int, worker int) (node.Ptr, bool) {
	next := atomic.LoadUint64(&h.next[worker])
	end := atomic.LoadUint64(&h.end[worker])

	if next+uint64(num) > end {
		block := uint64(reservationBlock)
		if uint64(num) > block {
			block = uint64(num)
		}
		start := atomic.AddUint64(&h.used, block) - block
		if start+block > uint64(len(h.nodes)) {
			return node.Ptr(0), false
		}
		next = start
		end = start + block
		atomic.StoreUint64(&h.next[worker], next+uint64(num))
		atomic.StoreUint64(&h.end[worker], end)
		return node.New(h.which, uint32(next)), true
	}

	atomic.StoreUint64(&h.next[worker], next+uint64(num))
	return node.New(h.which, uint32(next)), true
}

// Clear resets every cursor and the used counter, and zeroes every node
// allocated so far (spec.md §4.4-style "Clearing uses the same pattern"
// applied to node storage instead of the TT).
func (h *half) Clear() {
	used := h.Used()
	for i := 0; i < used && i < len(h.nodes); i++ {
		h.nodes[i].Clear()
	}
	atomic.StoreUint64(&h.used, 0)
	for i := range h.next {
		atomic.StoreUint64(&h.next[i], 0)
		atomic.StoreUint64(&h.end[i], 0)
	}
}

// ClearCrossLinks scans every allocated node in this half and clears any
// actions pointer that targets `targetHalf`, the cleanup spec.md §4.3
// performs on the old half once a relocation completes ("Clear
// cross-links on the old half").
func (h *half) ClearCrossLinks(targetHalf bool) {
	used := h.Used()
	for i := 0; i < used && i < len(h.nodes); i++ {
		n := &h.nodes[i]
		a := n.Actions()
		if a.IsNull() || a.Half() != targetHalf {
			continue
		}
		n.ClearActions()
	}
}
