// Package node implements the tree's atomic node record and its packed
// pointer type, grounded on github.com/alphabeth/mcts (node.go, naughty.go)
// generalised to the half/index addressing spec.md §3 requires instead of
// a single flat slice index.
package node

import "fmt"

// Ptr is the packed (half, idx) node identifier from spec.md §3: one bit
// selects the tree half, the rest address a node within it. It plays the
// same "index, not a real pointer" role github.com/alphabeth/mcts.Naughty
// plays for its single-arena design.
type Ptr uint32

const (
	halfBit  = 31
	halfMask = uint32(1) << halfBit
	idxMask  = halfMask - 1

	// Null is the reserved "no node" value: both bits of the half flag and
	// the index field set, which can never be produced by New: New
	// rejects any idx at or above idxMask.
	Null Ptr = Ptr(idxMask | halfMask)
)

// New packs a half flag and an index into a Ptr.
func New(half bool, idx uint32) Ptr {
	if idx >= idxMask {
		panic("node: index exceeds representable range")
	}
	var h uint32
	if half {
		h = halfMask
	}
	return Ptr(h | idx)
}

// IsNull reports whether the pointer is the reserved null value.
func (p Ptr) IsNull() bool { return p == Null }

// Half reports which tree half the pointer addresses.
func (p Ptr) Half() bool { return uint32(p)&halfMask != 0 }

// Idx reports the node's index within its half.
func (p Ptr) Idx() uint32 { return uint32(p) & idxMask }

// Add returns a pointer to the node `off` slots after p in the same half,
// used to address a child within a contiguously-allocated sibling block.
func (p Ptr) Add(off uint32) Ptr {
	return New(p.Half(), p.Idx()+off)
}

func (p Ptr) String() string {
	if p.IsNull() {
		return "Ptr(null)"
	}
	return fmt.Sprintf("Ptr(half=%d,idx=%d)", boolToInt(p.Half()), p.Idx())
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
