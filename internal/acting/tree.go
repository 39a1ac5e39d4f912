// Package acting implements C4: the acting process tree (spec.md §4.4) — an
// arena-addressed, append-only-in-structure tree of Root/Task/Method/
// Command/Acquire/Arbitrary nodes, mutated through process-id indices
// rather than owning pointers so the tree survives concurrent status
// updates from many goroutines at once.
package acting

import (
	"sync"
	"time"

	"github.com/ompas-labs/acting-core/internal/bus"
	"github.com/ompas-labs/acting-core/internal/types"
)

// Node is a read-only snapshot of one acting-process node, safe to hold
// onto and print after the Tree itself has moved on.
type Node struct {
	ID        types.ProcessId
	Parent    types.ProcessId
	Kind      types.ProcessKind
	Label     string
	Args      []types.Value
	Children  []types.ProcessId
	Status    types.Status
	StartedAt time.Time
	EndedAt   *time.Time
	Result    types.Value
	Err       *types.EngineError
}

// StatusEvent is published on every status transition, consumed by
// internal/trace and internal/cliui.
type StatusEvent struct {
	ID     types.ProcessId
	Status types.Status
}

type node struct {
	parent    types.ProcessId
	kind      types.ProcessKind
	label     string
	args      []types.Value
	children  []types.ProcessId
	status    types.Status
	startedAt time.Time
	endedAt   *time.Time
	result    types.Value
	err       *types.EngineError
}

// Tree is C4: the single acting process tree for one engine run.
type Tree struct {
	mu     sync.RWMutex
	nodes  map[types.ProcessId]*node
	nextID types.ProcessId
	events *bus.Bus[types.ProcessId, StatusEvent]
}

// New creates a Tree with a single Running root node at id 0 (spec.md §3:
// "the root is always 0").
func New() *Tree {
	t := &Tree{
		nodes:  make(map[types.ProcessId]*node),
		nextID: 1,
		events: bus.New[types.ProcessId, StatusEvent](),
	}
	t.nodes[0] = &node{parent: 0, kind: types.KindRoot, status: types.StatusRunning, startedAt: time.Now()}
	return t
}

// Root is the fixed id of the tree's root node.
const Root types.ProcessId = 0

// NewChild allocates a new Pending node under parent and returns its id.
// Panics if parent does not exist — a caller attaching to a dead or unknown
// node is a programming error, not a recoverable one.
func (t *Tree) NewChild(parent types.ProcessId, kind types.ProcessKind, label string, args []types.Value) types.ProcessId {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.nodes[parent]
	if !ok {
		panic("acting: NewChild called with unknown parent id")
	}
	id := t.nextID
	t.nextID++
	t.nodes[id] = &node{parent: parent, kind: kind, label: label, args: args, status: types.StatusPending}
	p.children = append(p.children, id)
	return id
}

// Start transitions id from Pending to Running and stamps its start time.
func (t *Tree) Start(id types.ProcessId) {
	t.mu.Lock()
	n, ok := t.nodes[id]
	if !ok {
		t.mu.Unlock()
		panic("acting: Start called with unknown id")
	}
	n.status = types.StatusRunning
	n.startedAt = time.Now()
	t.mu.Unlock()
	t.events.Publish(id, StatusEvent{ID: id, Status: types.StatusRunning})
}

// Finish transitions id to a terminal status, recording its result or error.
// Panics if id is already terminal — a node's terminal status is written
// exactly once (spec.md §3 invariant).
func (t *Tree) Finish(id types.ProcessId, status types.Status, result types.Value, err *types.EngineError) {
	if !status.Terminal() {
		panic("acting: Finish called with a non-terminal status")
	}
	t.mu.Lock()
	n, ok := t.nodes[id]
	if !ok {
		t.mu.Unlock()
		panic("acting: Finish called with unknown id")
	}
	if n.status.Terminal() {
		t.mu.Unlock()
		panic("acting: node already reached a terminal status")
	}
	now := time.Now()
	n.status = status
	n.endedAt = &now
	n.result = result
	n.err = err
	t.mu.Unlock()
	t.events.Publish(id, StatusEvent{ID: id, Status: status})
}

// Get returns a snapshot of id's current state.
func (t *Tree) Get(id types.ProcessId) (Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	if !ok {
		return Node{}, false
	}
	return toNode(id, n), true
}

func toNode(id types.ProcessId, n *node) Node {
	return Node{
		ID: id, Parent: n.parent, Kind: n.kind, Label: n.label, Args: n.args,
		Children: append([]types.ProcessId(nil), n.children...),
		Status:   n.status, StartedAt: n.startedAt, EndedAt: n.endedAt,
		Result: n.result, Err: n.err,
	}
}

// Children returns id's direct children, in creation order.
func (t *Tree) Children(id types.ProcessId) []types.ProcessId {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	return append([]types.ProcessId(nil), n.children...)
}

// Ancestors returns id's ancestor chain, nearest first, ending at the root.
func (t *Tree) Ancestors(id types.ProcessId) []types.ProcessId {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []types.ProcessId
	for cur := id; ; {
		n, ok := t.nodes[cur]
		if !ok || cur == Root {
			break
		}
		out = append(out, n.parent)
		cur = n.parent
	}
	return out
}

// Subtree returns every descendant of id (not including id itself), in
// breadth-first order — the set Cancel must propagate to (spec.md §4.6).
func (t *Tree) Subtree(id types.ProcessId) []types.ProcessId {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []types.ProcessId
	queue := append([]types.ProcessId(nil), t.nodes[id].children...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, cur)
		queue = append(queue, t.nodes[cur].children...)
	}
	return out
}

// Events exposes every status transition, used by trace and cliui.
func (t *Tree) Events() <-chan StatusEvent { return t.events.Tap() }

// Snapshot returns every node in the tree, keyed by id, for full-tree
// printing (internal/cliui) and post-mortem dumps (internal/trace).
func (t *Tree) Snapshot() map[types.ProcessId]Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[types.ProcessId]Node, len(t.nodes))
	for id, n := range t.nodes {
		out[id] = toNode(id, n)
	}
	return out
}
