// Package resource implements C2: named unit/multi-capacity resources with
// priority-aware waitlists (spec.md §4.2).
package resource

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/ompas-labs/acting-core/internal/types"
)

// Descriptor is a read-only view of a resource's current state (spec.md §3).
type Descriptor struct {
	Label         string
	TotalCapacity int
	FreeCapacity  int
	WaiterCount   int
}

// anyClaim coordinates an acquire_any request registered as a waiter on
// several resources at once: the first resource able to grant it wins, and
// every other registration must be skipped without decrementing capacity.
type anyClaim struct {
	claimed atomic.Bool
	result  chan anyGrant
}

type anyGrant struct {
	token *AcquireToken
	label string
}

type waiter struct {
	seq      uint64 // FIFO tiebreak among equal priorities
	priority int
	amount   int
	ch       chan struct{} // closed/sent when granted
	cancelled atomic.Bool
	any      *anyClaim // non-nil for acquire_any registrations
	label    string    // which resource this waiter sits on (for acquire_any bookkeeping)
}

// waiterHeap orders waiters by descending priority, then ascending seq
// (FIFO within a priority) — spec.md §4.2's starvation-prevention rule.
type waiterHeap []*waiter

func (h waiterHeap) Len() int { return len(h) }
func (h waiterHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h waiterHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *waiterHeap) Push(x any)        { *h = append(*h, x.(*waiter)) }
func (h *waiterHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

type resourceState struct {
	mu      sync.Mutex
	label   string
	total   int
	free    int
	waiters waiterHeap
	mgr     *Manager
}

// grant pops and signals waiters while progress can be made, per spec.md
// §4.2's algorithm: only the current head of queue is ever considered: if
// it cannot yet be satisfied, grants stop even though a later (necessarily
// lower- or equal-priority) waiter might fit, preserving strict priority
// order over best-fit packing.
func (r *resourceState) grant() {
	for r.waiters.Len() > 0 {
		head := r.waiters[0]
		if head.cancelled.Load() {
			heap.Pop(&r.waiters)
			continue
		}
		if head.any != nil && head.any.claimed.Load() {
			heap.Pop(&r.waiters)
			continue
		}
		if head.amount > r.free {
			return
		}
		heap.Pop(&r.waiters)
		r.free -= head.amount
		if head.any != nil {
			if !head.any.claimed.CompareAndSwap(false, true) {
				r.free += head.amount // another resource satisfied this acquire_any first; undo
				continue
			}
			head.any.result <- anyGrant{
				token: &AcquireToken{ID: uuid.New(), Label: r.label, Amount: head.amount, mgr: r.mgr},
				label: r.label,
			}
			continue
		}
		close(head.ch)
	}
}

// AcquireToken owns one decrement against a resource. Dropping it without
// calling Release is a programming error (spec.md §3 invariant 4); Release
// is idempotent-checked, not idempotent — a double release panics.
type AcquireToken struct {
	ID       uuid.UUID
	Label    string
	Amount   int
	released atomic.Bool
	mgr      *Manager
}

// Manager is C2: the engine's resource arbitration layer.
type Manager struct {
	mu        sync.RWMutex
	resources map[string]*resourceState
	seq       atomic.Uint64
}

// New creates an empty Manager.
func New() *Manager {
	return &Manager{resources: make(map[string]*resourceState)}
}

// Declare registers a resource. Idempotent for a matching capacity;
// redeclaring with a different capacity is a fatal programming error
// (spec.md §4.2).
func (m *Manager) Declare(label string, capacity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.resources[label]; ok {
		if r.total != capacity {
			panic(fmt.Sprintf("resource %q redeclared with capacity %d (was %d)", label, capacity, r.total))
		}
		return
	}
	m.resources[label] = &resourceState{label: label, total: capacity, free: capacity, mgr: m}
}

func (m *Manager) lookup(label string) (*resourceState, *types.EngineError) {
	m.mu.RLock()
	r, ok := m.resources[label]
	m.mu.RUnlock()
	if !ok {
		return nil, types.NewError(types.ErrRefinementFailure, "UNDECLARED_RESOURCE",
			fmt.Sprintf("resource %q was never declared", label))
	}
	return r, nil
}

// Acquire completes when free_capacity >= amount, returning a token that
// owns the decrement (spec.md §4.2).
func (m *Manager) Acquire(ctx context.Context, label string, amount, priority int) (*AcquireToken, *types.EngineError) {
	r, err := m.lookup(label)
	if err != nil {
		return nil, err
	}
	w := &waiter{seq: m.seq.Add(1), priority: priority, amount: amount, ch: make(chan struct{}), label: label}

	r.mu.Lock()
	if amount <= r.free && r.waiters.Len() == 0 {
		r.free -= amount
		r.mu.Unlock()
		return &AcquireToken{ID: uuid.New(), Label: label, Amount: amount, mgr: m}, nil
	}
	heap.Push(&r.waiters, w)
	// A higher-priority arrival may be satisfiable right now even though an
	// older, larger request is blocked at the head of the queue — grant()
	// only stops at the first unsatisfiable head, so it must run again
	// whenever the queue's shape changes, not only on Release.
	r.grant()
	r.mu.Unlock()

	select {
	case <-w.ch:
		return &AcquireToken{ID: uuid.New(), Label: label, Amount: amount, mgr: m}, nil
	case <-ctx.Done():
		w.cancelled.Store(true)
		// A grant may have raced the cancellation and already closed w.ch
		// under r.mu right before we set cancelled; prefer the grant.
		select {
		case <-w.ch:
			return &AcquireToken{ID: uuid.New(), Label: label, Amount: amount, mgr: m}, nil
		default:
		}
		return nil, types.NewError(types.ErrCancellation, "ACQUIRE_CANCELLED",
			fmt.Sprintf("acquire of %q cancelled while waiting", label))
	}
}

// AcquireAny completes when any one of the requested (label, amount) pairs
// can be satisfied; ties are broken in list order (spec.md §4.2).
func (m *Manager) AcquireAny(ctx context.Context, requests []types.ResourceRequest, priority int) (*AcquireToken, string, *types.EngineError) {
	if len(requests) == 0 {
		return nil, "", types.NewError(types.ErrRefinementFailure, "EMPTY_ACQUIRE_ANY", "acquire_any called with no candidates")
	}
	claim := &anyClaim{result: make(chan anyGrant, 1)}
	var registered []*waiter
	var immediateErr *types.EngineError

	for _, req := range requests {
		r, err := m.lookup(req.Label)
		if err != nil {
			immediateErr = err
			continue
		}
		r.mu.Lock()
		if !claim.claimed.Load() && req.Amount <= r.free && r.waiters.Len() == 0 {
			if claim.claimed.CompareAndSwap(false, true) {
				r.free -= req.Amount
				r.mu.Unlock()
				return &AcquireToken{ID: uuid.New(), Label: req.Label, Amount: req.Amount, mgr: m}, req.Label, nil
			}
		}
		w := &waiter{seq: m.seq.Add(1), priority: priority, amount: req.Amount, any: claim, label: req.Label}
		heap.Push(&r.waiters, w)
		r.grant()
		registered = append(registered, w)
		r.mu.Unlock()
	}

	if len(registered) == 0 {
		if immediateErr != nil {
			return nil, "", immediateErr
		}
		return nil, "", types.NewError(types.ErrRefinementFailure, "NO_CANDIDATE_RESOURCE", "no candidate resource could accept the request")
	}

	// Every registered waiter's grant (by any resource's release loop) is
	// delivered through the single shared claim.result channel — no per-
	// waiter fan-in is needed, since only the resourceState.grant loop that
	// wins the CAS ever writes to it.
	select {
	case g := <-claim.result:
		return g.token, g.label, nil
	case <-ctx.Done():
		for _, w := range registered {
			w.cancelled.Store(true)
		}
		return nil, "", types.NewError(types.ErrCancellation, "ACQUIRE_ANY_CANCELLED", "acquire_any cancelled while waiting")
	}
}

// Release returns amount to the resource and wakes waiters in priority
// order, FIFO within a priority (spec.md §4.2). Panics on double release —
// a consumed token used twice is a programming error.
func (m *Manager) Release(tok *AcquireToken) {
	if !tok.released.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("double release of acquire token for resource %q", tok.Label))
	}
	r, err := m.lookup(tok.Label)
	if err != nil {
		return // resource was torn down; nothing to credit back
	}
	r.mu.Lock()
	r.free += tok.Amount
	r.grant()
	r.mu.Unlock()
}

// IsLocked reports whether free_capacity < total_capacity.
func (m *Manager) IsLocked(label string) bool {
	r, err := m.lookup(label)
	if err != nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.free < r.total
}

// Resources lists every declared resource's current descriptor.
func (m *Manager) Resources() []Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Descriptor, 0, len(m.resources))
	for _, r := range m.resources {
		r.mu.Lock()
		out = append(out, Descriptor{Label: r.label, TotalCapacity: r.total, FreeCapacity: r.free, WaiterCount: r.waiters.Len()})
		r.mu.Unlock()
	}
	return out
}
