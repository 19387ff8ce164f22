package node

import (
	"sync"
	"sync/atomic"
)

// actionsLock guards the single NULL→valid transition of a node's
// actions pointer (spec.md §4.2: "A custom bespoke lock protects the
// single pointer write during expansion"). Readers call Read and observe
// either NULL or the final value — never a partial write — because the
// value is only ever mutated while holding the embedded mutex. Grounded
// on the teacher's sync.Mutex-guarded fields (mcts/node.go) generalised
// to a dedicated lock type per the spec's "actions lock" component.
type actionsLock struct {
	value uint32
	mu    sync.Mutex
}

func newActionsLock(v Ptr) *actionsLock {
	return &actionsLock{value: uint32(v)}
}

// Read loads the current pointer value without blocking.
func (l *actionsLock) Read() Ptr {
	return Ptr(atomic.LoadUint32(&l.value))
}

// writeGuard is held across the single mutating write; release it with
// Store then Unlock (or just let the caller call Unlock after Store).
type writeGuard struct {
	l *actionsLock
}

// Write acquires the mutex and returns a guard whose Store method
// performs the one legal mutation; the caller releases the lock with the
// guard's Unlock.
func (l *actionsLock) Write() *writeGuard {
	l.mu.Lock()
	return &writeGuard{l: l}
}

// Val returns the pointer currently stored, observable while holding the
// write lock (used to detect a concurrent winner of the NULL→valid race).
func (g *writeGuard) Val() Ptr {
	return Ptr(atomic.LoadUint32(&g.l.value))
}

// Store writes the new pointer value.
func (g *writeGuard) Store(v Ptr) {
	atomic.StoreUint32(&g.l.value, uint32(v))
}

// Unlock releases the write lock.
func (g *writeGuard) Unlock() {
	g.l.mu.Unlock()
}
