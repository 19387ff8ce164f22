package node

import (
	"sync/atomic"

	"github.com/corvidchess/corvid/internal/position"
)

// Quant is the fixed-point scale for Q in node storage (spec.md
// Glossary: "QUANT — fixed-point scale for Q ... = 65 536").
const Quant int64 = 65536

// Node is the cache-line-aligned, all-atomic tree record from spec.md
// §3. Every field is independently atomic; there is no node-wide lock
// except the dedicated actionsLock guarding the one NULL→valid pointer
// write. Grounded on github.com/alphabeth/mcts.Node, generalised from a
// sync.Mutex-guarded struct to per-field atomics per spec.md §4.2 and §5
// ("All atomics on Nodes ... use Relaxed ordering").
// Go gives no portable guarantee of 64-byte alignment for a plain struct
// short of unsafe padding tricks; the fields below are ordered widest
// first so the struct packs into roughly one cache line on amd64/arm64
// without resorting to unsafe.
type Node struct {
	sumQ         int64
	sumSqQ       int64
	actions      actionsLock
	visits       uint32
	threads      int32
	mov          uint32 // position.Move, widened for atomic.Uint32 use
	policy       uint32 // fraction of math.MaxUint16, widened
	state        uint32 // node.GameState, widened
	numActions   uint32 // 0..255
	giniImpurity uint32 // 0..255
}

// NewNode constructs a fresh, unexpanded node in the Ongoing state. The
// tree's arenas do not call this directly — they preallocate a slice of
// zero-valued Node and fix up the actions sentinel in bulk (half.newHalf)
// — but it gives tests and other one-off callers a correctly-initialised
// node without reaching into the tree package.
func NewNode() *Node {
	n := &Node{}
	n.actions = actionsLock{value: uint32(Null)}
	n.state = uint32(Ongoing)
	return n
}

// SetNew resets a freed node into service as a new child: clears all
// stats, records the move that reaches it and its prior policy.
func (n *Node) SetNew(mov position.Move, policy float32) {
	n.Clear()
	atomic.StoreUint32(&n.mov, uint32(mov))
	n.SetPolicy(policy)
}

// IsTerminal reports whether the node's proven state forbids expansion
// (invariant 1, spec.md §3).
func (n *Node) IsTerminal() bool { return n.State().IsTerminal() }

// HasChildren reports num_actions > 0 (invariant 2).
func (n *Node) HasChildren() bool { return n.NumActions() > 0 }

// IsExpanded reports whether the actions/num_actions pair has already
// been written.
func (n *Node) IsExpanded() bool { return n.State().IsOngoing() && n.HasChildren() }

// NumActions returns the child count.
func (n *Node) NumActions() int { return int(atomic.LoadUint32(&n.numActions)) }

// SetNumActions stores the child count; only ever called once per node
// lifetime, under the actions write lock.
func (n *Node) SetNumActions(num int) { atomic.StoreUint32(&n.numActions, uint32(num)) }

// Actions reads the first-child pointer.
func (n *Node) Actions() Ptr { return n.actions.Read() }

// ActionsWriteLock acquires the expansion write lock (spec.md §4.2).
func (n *Node) ActionsWriteLock() *writeGuard { return n.actions.Write() }

// ClearActions resets the actions pointer to Null and the child count to
// zero, used when clearing a node for reuse or dropping cross-half links.
func (n *Node) ClearActions() {
	g := n.actions.Write()
	g.Store(Null)
	g.Unlock()
	n.SetNumActions(0)
}

// Visits returns N, the visit count.
func (n *Node) Visits() uint32 { return atomic.LoadUint32(&n.visits) }

// Threads returns the current virtual-loss counter (workers in flight
// through this node).
func (n *Node) Threads() int32 { return atomic.LoadInt32(&n.threads) }

// IncThreads increments the virtual-loss counter on descent.
func (n *Node) IncThreads() { atomic.AddInt32(&n.threads, 1) }

// DecThreads decrements the virtual-loss counter on ascent.
func (n *Node) DecThreads() { atomic.AddInt32(&n.threads, -1) }

// State returns the node's proven-result tag.
func (n *Node) State() GameState { return GameState(atomic.LoadUint32(&n.state)) }

// SetState stores a new proven-result tag. Monotonic by construction:
// callers must only move Ongoing -> {Draw, Won, Lost}, never reverse
// (spec.md §5).
func (n *Node) SetState(s GameState) { atomic.StoreUint32(&n.state, uint32(s)) }

// ParentMove returns the move that was taken from the parent to reach
// this node.
func (n *Node) ParentMove() position.Move {
	return position.Move(atomic.LoadUint32(&n.mov))
}

// Policy returns P(s,a), the prior probability stored as a fraction of
// math.MaxUint16.
func (n *Node) Policy() float32 {
	return float32(atomic.LoadUint32(&n.policy)) / float32(65535)
}

// SetPolicy stores a prior probability, quantised to 16 bits.
func (n *Node) SetPolicy(p float32) {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	atomic.StoreUint32(&n.policy, uint32(p*65535))
}

// GiniImpurity returns 1 - Sum(p^2) over this node's children, an 8-bit
// quantised exploration-shaping signal (spec.md §3, Glossary).
func (n *Node) GiniImpurity() float32 {
	return float32(atomic.LoadUint32(&n.giniImpurity)) / 255
}

// SetGiniImpurity stores the gini impurity, clamped and quantised to 8
// bits.
func (n *Node) SetGiniImpurity(g float32) {
	if g < 0 {
		g = 0
	}
	if g > 1 {
		g = 1
	}
	atomic.StoreUint32(&n.giniImpurity, uint32(g*255))
}

// Q returns the current mean Q, the running average of backed-up
// utilities (spec.md §4.2).
func (n *Node) Q() float32 {
	v := atomic.LoadUint32(&n.visits)
	if v == 0 {
		return 0
	}
	sum := atomic.LoadInt64(&n.sumQ)
	return float32(sum/int64(v)) / float32(Quant)
}

// Var returns max(0, E[Q^2] - E[Q]^2), the running variance of backed-up
// utilities (spec.md §4.2).
func (n *Node) Var() float32 {
	v := atomic.LoadUint32(&n.visits)
	if v == 0 {
		return 0
	}
	sumQ := atomic.LoadInt64(&n.sumQ)
	sumSq := atomic.LoadInt64(&n.sumSqQ)
	meanQ := float64(sumQ) / float64(v) / float64(Quant)
	meanSq := float64(sumSq) / float64(v) / float64(Quant) / float64(Quant)
	vr := meanSq - meanQ*meanQ
	if vr < 0 {
		vr = 0
	}
	return float32(vr)
}

// Update performs the three relaxed fetch-adds (visits, sum_q, sum_sq_q)
// from spec.md §4.2 and returns the new running mean. No fence is used:
// Q is a statistical aggregate and short-term read/write interleaving
// across goroutines is tolerated in exchange for lock-free scaling
// (spec.md §5).
func (n *Node) Update(q float32) float32 {
	fixed := int64(float64(q) * float64(Quant))
	oldVisits := atomic.AddUint32(&n.visits, 1) - 1
	oldSum := atomic.AddInt64(&n.sumQ, fixed) - fixed
	atomic.AddInt64(&n.sumSqQ, fixed*fixed)
	return float32(float64(fixed+oldSum)/float64(oldVisits+1)) / float32(Quant)
}

// Clear resets every field to its zero/unexpanded value, preparing the
// node for reuse after a half clear or subtree invalidation.
func (n *Node) Clear() {
	n.ClearActions()
	n.SetState(Ongoing)
	atomic.StoreUint32(&n.giniImpurity, 0)
	atomic.StoreUint32(&n.visits, 0)
	atomic.StoreInt64(&n.sumQ, 0)
	atomic.StoreInt64(&n.sumSqQ, 0)
	atomic.StoreInt32(&n.threads, 0)
	atomic.StoreUint32(&n.policy, 0)
	atomic.StoreUint32(&n.mov, 0)
}

// CopyFrom field-by-field copies another node's atomics into this one,
// the per-field copy spec.md §4.3's half-swap relocation performs ("copies
// each Node's atomics field-by-field").
func (n *Node) CopyFrom(o *Node) {
	atomic.StoreInt32(&n.threads, atomic.LoadInt32(&o.threads))
	atomic.StoreUint32(&n.mov, atomic.LoadUint32(&o.mov))
	atomic.StoreUint32(&n.policy, atomic.LoadUint32(&o.policy))
	atomic.StoreUint32(&n.state, atomic.LoadUint32(&o.state))
	atomic.StoreUint32(&n.giniImpurity, atomic.LoadUint32(&o.giniImpurity))
	atomic.StoreUint32(&n.visits, atomic.LoadUint32(&o.visits))
	atomic.StoreInt64(&n.sumQ, atomic.LoadInt64(&o.sumQ))
	atomic.StoreInt64(&n.sumSqQ, atomic.LoadInt64(&o.sumSqQ))
	// actions is deliberately not copied: relocation rewrites it to the
	// new half separately, under the destination's own write lock.
}
