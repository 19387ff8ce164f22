package tree

import (
	"sync"
	"sync/atomic"

	"github.com/corvidchess/corvid/internal/node"
	"github.com/corvidchess/corvid/internal/position"
	"github.com/corvidchess/corvid/internal/tt"
)

// Tree owns the two double-buffered arenas, the transposition table, and
// the root pointer a search descends from (spec.md §3, §4.3). Grounded
// on github.com/alphabeth/mcts.MCTS (tree.go: New/alloc/Reset), split
// into two halves and given explicit relocation machinery per spec.md's
// "the tree periodically swaps which half is active" design.
type Tree struct {
	halves  [2]*half
	active  uint32 // atomic: index (0 or 1) of the currently active half
	workers int

	TT *tt.Table

	rootMu   sync.Mutex
	root     node.Ptr
	rootFEN  string
	swapping sync.Mutex // serialises concurrent half-swap triggers
}

// New builds a tree with `capacity` nodes per half and a transposition
// table sized to `ttEntries` slots, ready to service up to `workers`
// concurrent searchers (spec.md §4.3, §5: "Nodes per half and worker
// count are both configured at startup").
func New(capacity, ttEntries, workers int) *Tree {
	if workers < 1 {
		workers = 1
	}
	t := &Tree{
		workers: workers,
		TT:      tt.New(ttEntries),
		root:    node.Null,
	}
	t.halves[0] = newHalf(capacity, false, workers)
	t.halves[1] = newHalf(capacity, true, workers)
	return t
}

func (t *Tree) activeHalf() *half { return t.halves[atomic.LoadUint32(&t.active)] }
func (t *Tree) idleHalf() *half   { return t.halves[1-atomic.LoadUint32(&t.active)] }

// At dereferences a Ptr into its backing node, regardless of which half
// it addresses.
func (t *Tree) At(p node.Ptr) *node.Node {
	if p.Half() {
		return t.halves[1].At(p.Idx())
	}
	return t.halves[0].At(p.Idx())
}

// Root returns the current root pointer, or node.Null before the first
// SetRootPosition call.
func (t *Tree) Root() node.Ptr {
	t.rootMu.Lock()
	defer t.rootMu.Unlock()
	return t.root
}

// Reserve allocates `num` contiguous nodes from the active half for
// worker `w`, triggering a half-swap-and-relocate when the active half
// is exhausted (spec.md §4.3: "Allocation failure triggers a swap: the
// idle half becomes active after the live subtree is copied across").
// A swap is attempted at most once per call: if the freshly-cleared half
// still can't satisfy the request, the caller gets an honest failure
// back instead of spinning, and must abandon whatever it was building
// rather than write into a half that may no longer hold the live tree
// (spec.md §4.3's allocation-failure path; see DESIGN.md for why this
// differs from bubbling a sentinel through every stack frame).
func (t *Tree) Reserve(num int, w int) (node.Ptr, bool) {
	h := t.activeHalf()
	if p, ok := h.Reserve(num, w); ok {
		return p, true
	}
	t.swapHalves()
	return t.activeHalf().Reserve(num, w)
}

// swapHalves performs the breadth-first relocation of the live subtree
// rooted at t.root from the active half into the idle half, then flips
// which half is active (spec.md §4.3). Concurrent callers that observe
// an already-full active half serialise here; only the first actually
// relocates.
func (t *Tree) swapHalves() {
	t.swapping.Lock()
	defer t.swapping.Unlock()

	active := atomic.LoadUint32(&t.active)
	if !t.activeHalf().IsFull() {
		// Another worker already completed the swap.
		return
	}

	src := t.halves[active]
	dstWhich := active == 0
	dst := t.halves[1-active]
	dst.Clear()

	t.rootMu.Lock()
	oldRoot := t.root
	t.rootMu.Unlock()

	newRoot := node.Null
	if !oldRoot.IsNull() {
		newRoot = relocateSubtree(src, dst, dstWhich, oldRoot, t.workers)
	}

	src.ClearCrossLinks(dstWhich)

	t.rootMu.Lock()
	t.root = newRoot
	t.rootMu.Unlock()

	atomic.StoreUint32(&t.active, 1-active)
}

// relocateSubtree breadth-first copies every node reachable from root in
// src into freshly reserved space in dst, field-by-field, and returns the
// relocated root's new Ptr (spec.md §4.3: "relocation walks the live
// subtree breadth-first, copying each Node's atomics field-by-field and
// rewriting the actions pointer to the new half").
func relocateSubtree(src, dst *half, dstWhich bool, root node.Ptr, workers int) node.Ptr {
	type queued struct {
		srcPtr, dstPtr node.Ptr
	}

	newRootPtr, ok := dst.Reserve(1, 0)
	if !ok {
		// The destination half cannot even hold the root; nothing to do
		// but start fresh.
		return node.Null
	}

	queue := []queued{{root, newRootPtr}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		srcNode := src.At(cur.srcPtr.Idx())
		dstNode := dst.At(cur.dstPtr.Idx())
		dstNode.CopyFrom(srcNode)

		numActions := srcNode.NumActions()
		if numActions == 0 {
			continue
		}
		srcFirst := srcNode.Actions()
		if srcFirst.IsNull() {
			continue
		}

		dstFirst, ok := dst.Reserve(numActions, 0)
		if !ok {
			// Out of space mid-relocation: drop the remainder of this
			// subtree rather than corrupting the copy. The dropped
			// children simply re-expand from policy next visit.
			continue
		}
		g := dstNode.ActionsWriteLock()
		g.Store(dstFirst)
		g.Unlock()
		dstNode.SetNumActions(numActions)

		for i := 0; i < numActions; i++ {
			queue = append(queue, queued{srcFirst.Add(uint32(i)), dstFirst.Add(uint32(i))})
		}
	}
	return newRootPtr
}

// SetRootPosition points the tree at fen, reusing the existing subtree
// when fen descends from the current root along playedMoves (spec.md
// §4.3: "the controller advances the root pointer to the matching child
// when the position continues a prior search; otherwise the tree is
// cleared and reseeded"). playedMoves is the tail of moves applied since
// the prior root — typically the engine's own last move followed by the
// opponent's reply, so the new root is the current root's grandchild, not
// just its child (spec.md §3: "descend from old root matching up to two
// plies played"). Any mismatch at any ply falls back to a full clear.
func (t *Tree) SetRootPosition(fen string, playedMoves ...position.Move) {
	t.rootMu.Lock()
	defer t.rootMu.Unlock()

	if len(playedMoves) > 0 && !t.root.IsNull() {
		if descended, ok := t.descendLocked(t.root, playedMoves); ok {
			t.root = descended
			t.rootFEN = fen
			return
		}
	}

	t.clearLocked()
	t.rootFEN = fen
	p, ok := t.activeHalf().Reserve(1, 0)
	if !ok {
		// Fresh tree, should never be full; fall back defensively.
		t.halves[atomic.LoadUint32(&t.active)].Clear()
		p, _ = t.activeHalf().Reserve(1, 0)
	}
	t.At(p).SetState(node.Ongoing)
	t.root = p
}

// descendLocked walks from start through one child per move in moves, in
// order, returning the final pointer reached. It reports false, leaving
// the tree untouched, the moment any ply along the path is unexpanded or
// has no matching child.
func (t *Tree) descendLocked(start node.Ptr, moves []position.Move) (node.Ptr, bool) {
	cur := start
	for _, mv := range moves {
		n := t.At(cur)
		if !n.IsExpanded() {
			return node.Null, false
		}
		next := node.Null
		first := n.Actions()
		for i := 0; i < n.NumActions(); i++ {
			childPtr := first.Add(uint32(i))
			if t.At(childPtr).ParentMove() == mv {
				next = childPtr
				break
			}
		}
		if next.IsNull() {
			return node.Null, false
		}
		cur = next
	}
	return cur, true
}

func (t *Tree) clearLocked() {
	t.halves[0].Clear()
	t.halves[1].Clear()
	atomic.StoreUint32(&t.active, 0)
	t.TT.Clear()
	t.root = node.Null
}

// Clear resets both halves, the transposition table, and the root
// pointer, the full-reset path a new game uses (spec.md §4.4).
func (t *Tree) Clear() {
	t.rootMu.Lock()
	defer t.rootMu.Unlock()
	t.clearLocked()
}

// ExpandNode allocates a contiguous block of children for n, one per
// (move, prior) pair, writing num_actions and the actions pointer under
// the node's write lock exactly once (spec.md §4.2, invariant 2: "a node
// transitions from unexpanded to expanded exactly once"). It returns
// false without allocating if another worker already won the race to
// expand this node, or if a concurrent half-swap left no room even
// after relocating the live tree — in that case n is left unexpanded
// for a later visit to retry, rather than writing children into a half
// that may no longer hold the path leading to n.
func (t *Tree) ExpandNode(n *node.Node, moves []position.Move, priors []float32, gini float32, worker int) bool {
	if n.HasChildren() || n.IsTerminal() {
		return false
	}
	g := n.ActionsWriteLock()
	defer g.Unlock()
	if !g.Val().IsNull() {
		return false
	}

	first, ok := t.Reserve(len(moves), worker)
	if !ok {
		return false
	}
	for i, mv := range moves {
		child := t.At(first.Add(uint32(i)))
		child.SetNew(mv, priors[i])
	}
	n.SetGiniImpurity(gini)
	n.SetNumActions(len(moves))
	g.Store(first)
	return true
}

// Child returns the i'th child of n, valid only once n.IsExpanded().
func (t *Tree) Child(n *node.Node, i int) *node.Node {
	return t.At(n.Actions().Add(uint32(i)))
}

// ChildPtr returns the Ptr to the i'th child of n.
func (t *Tree) ChildPtr(n *node.Node, i int) node.Ptr {
	return n.Actions().Add(uint32(i))
}

// PushHash writes q into the transposition table under hash.
func (t *Tree) PushHash(hash uint64, q float32) { t.TT.Push(hash, q) }

// ProbeHash reads a cached Q estimate for hash, if present.
func (t *Tree) ProbeHash(hash uint64) (float32, bool) { return t.TT.Probe(hash) }

// GetBestChildByKey returns the index of n's child that maximises key,
// a pure reduction used for both the PUCT selection step and final move
// choice (spec.md §4.5, §4.6: "the best move is the child with the most
// visits, ties broken by Q").
func (t *Tree) GetBestChildByKey(n *node.Node, key func(child *node.Node, idx int) float64) (int, *node.Node) {
	numActions := n.NumActions()
	if numActions == 0 {
		return -1, nil
	}
	bestIdx := 0
	best := t.Child(n, 0)
	bestKey := key(best, 0)
	for i := 1; i < numActions; i++ {
		c := t.Child(n, i)
		k := key(c, i)
		if k > bestKey {
			bestKey = k
			bestIdx = i
			best = c
		}
	}
	return bestIdx, best
}
