// Package worldstate implements C1: the typed fact store, its four
// partitions, the type lattice, atomic snapshots, and the subscription
// mechanism write commits are delivered through (spec.md §4.1).
package worldstate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ompas-labs/acting-core/internal/bus"
	"github.com/ompas-labs/acting-core/internal/types"
)

// Delta describes the state-functions touched by one committed write, used
// both to filter subscriber rules and to drive monitor re-evaluation.
type Delta struct {
	Footprint map[string]bool
	Facts     []types.Fact
}

// SubscriberId identifies a registered subscription.
type SubscriberId uint64

// RuleKind selects whether a subscription wants every write or only writes
// touching a specific set of state-function labels.
type RuleKind int

const (
	RuleAll RuleKind = iota
	RuleSpecific
)

// Rule is either All or Specific(set-of-sf-labels) (spec.md §4.1).
type Rule struct {
	Kind   RuleKind
	Labels map[string]bool
}

func AllRule() Rule { return Rule{Kind: RuleAll} }

func SpecificRule(labels ...string) Rule {
	m := make(map[string]bool, len(labels))
	for _, l := range labels {
		m[l] = true
	}
	return Rule{Kind: RuleSpecific, Labels: m}
}

// Matches reports whether delta's footprint intersects r.
func (r Rule) Matches(d Delta) bool {
	if r.Kind == RuleAll {
		return true
	}
	for label := range r.Labels {
		if d.Footprint[label] {
			return true
		}
	}
	return false
}

// snapshot is the immutable per-instant state every reader observes.
// Partitions are copy-on-write: a commit never mutates a published snapshot.
type snapshot struct {
	static     map[string]types.Fact
	dynamic    map[string]types.Fact
	innerWorld map[string]types.Fact
	instances  map[string]string // object symbol -> declared type symbol
	lattice    map[string]string // type symbol -> parent type symbol ("" for the root)
}

func emptySnapshot() *snapshot {
	return &snapshot{
		static:     map[string]types.Fact{},
		dynamic:    map[string]types.Fact{},
		innerWorld: map[string]types.Fact{},
		instances:  map[string]string{},
		lattice:    map[string]string{"object": ""},
	}
}

func (s *snapshot) clone() *snapshot {
	n := &snapshot{
		static:     make(map[string]types.Fact, len(s.static)),
		dynamic:    make(map[string]types.Fact, len(s.dynamic)),
		innerWorld: make(map[string]types.Fact, len(s.innerWorld)),
		instances:  make(map[string]string, len(s.instances)),
		lattice:    make(map[string]string, len(s.lattice)),
	}
	for k, v := range s.static {
		n.static[k] = v
	}
	for k, v := range s.dynamic {
		n.dynamic[k] = v
	}
	for k, v := range s.innerWorld {
		n.innerWorld[k] = v
	}
	for k, v := range s.instances {
		n.instances[k] = v
	}
	for k, v := range s.lattice {
		n.lattice[k] = v
	}
	return n
}

// WorldSnapshot is the atomic union of all four partitions returned by
// GetSnapshot (spec.md §4.1).
type WorldSnapshot struct {
	Static     map[string]types.Fact
	Dynamic    map[string]types.Fact
	InnerWorld map[string]types.Fact
	Instances  map[string]string
	Lattice    map[string]string
}

// Get reads sv out of this fixed snapshot (dynamic > inner-world > static),
// letting internal/monitor re-check a predicate against a past instant
// without racing the live WorldState.
func (s WorldSnapshot) Get(sv types.StateVariable) (types.Value, bool) {
	if f, ok := s.Dynamic[sv.Key()]; ok {
		return f.Value, true
	}
	if f, ok := s.InnerWorld[sv.Key()]; ok {
		return f.Value, true
	}
	if f, ok := s.Static[sv.Key()]; ok {
		return f.Value, true
	}
	return types.Value{}, false
}

// InstanceOf reports instance-of against this snapshot's frozen lattice.
func (s WorldSnapshot) InstanceOf(obj, typ string) bool {
	declared, ok := s.Instances[obj]
	if !ok {
		return false
	}
	return isAncestor(s.Lattice, declared, typ)
}

// writeOp is one pending mutation, executed serially by the single writer
// goroutine so partitions are never observed half-written (invariant 5).
type writeOp struct {
	apply func(*snapshot) Delta
	done  chan struct{}
}

type subscription struct {
	rule Rule
	ch   chan Delta
}

// WorldState is the engine's single source of truth for facts, instances,
// and the type lattice.
type WorldState struct {
	current atomic.Pointer[snapshot]
	writeCh chan writeOp

	commits *bus.Bus[struct{}, Delta] // full-broadcast tap for trace

	mu        sync.Mutex
	subs      map[SubscriberId]*subscription
	nextSubID SubscriberId

	closeOnce sync.Once
	stop      chan struct{}
}

// New creates an empty WorldState and starts its single-writer goroutine.
func New() *WorldState {
	ws := &WorldState{
		writeCh: make(chan writeOp, 256),
		commits: bus.New[struct{}, Delta](),
		subs:    make(map[SubscriberId]*subscription),
		stop:    make(chan struct{}),
	}
	ws.current.Store(emptySnapshot())
	go ws.run()
	return ws
}

// Close stops the writer goroutine. Safe to call once.
func (ws *WorldState) Close() {
	ws.closeOnce.Do(func() { close(ws.stop) })
}

func (ws *WorldState) run() {
	for {
		select {
		case op := <-ws.writeCh:
			cur := ws.current.Load()
			next := cur.clone()
			delta := op.apply(next)
			ws.current.Store(next)
			close(op.done)
			if len(delta.Footprint) > 0 {
				ws.publish(delta)
			}
		case <-ws.stop:
			return
		}
	}
}

func (ws *WorldState) publish(d Delta) {
	ws.commits.Publish(struct{}{}, d)

	ws.mu.Lock()
	subs := make([]*subscription, 0, len(ws.subs))
	for _, s := range ws.subs {
		subs = append(subs, s)
	}
	ws.mu.Unlock()

	for _, s := range subs {
		if s.rule.Matches(d) {
			select {
			case s.ch <- d:
			default:
			}
		}
	}
}

// submit enqueues a mutation and blocks the *calling* goroutine (not the
// writer) until it has been applied, returning the resulting Delta.
func (ws *WorldState) submit(apply func(*snapshot) Delta) Delta {
	op := writeOp{apply: apply, done: make(chan struct{})}
	var result Delta
	wrapped := writeOp{
		apply: func(s *snapshot) Delta {
			result = apply(s)
			return result
		},
		done: op.done,
	}
	ws.writeCh <- wrapped
	<-op.done
	return result
}

// Taps returns a bus.Bus tap channel receiving every committed Delta,
// regardless of subscription rules — used by internal/trace (internal/monitor
// waits through Subscribe/AwaitUpdate instead).
func (ws *WorldState) Taps() <-chan Delta { return ws.commits.Tap() }

// GetSnapshot returns an atomic union of all four partitions (spec.md §4.1).
func (ws *WorldState) GetSnapshot() WorldSnapshot {
	s := ws.current.Load()
	return WorldSnapshot{
		Static:     copyFacts(s.static),
		Dynamic:    copyFacts(s.dynamic),
		InnerWorld: copyFacts(s.innerWorld),
		Instances:  copyStrMap(s.instances),
		Lattice:    copyStrMap(s.lattice),
	}
}

// GetPartition returns an immutable view of one partition.
func (ws *WorldState) GetPartition(p types.Partition) map[string]types.Fact {
	s := ws.current.Load()
	switch p {
	case types.PartitionStatic:
		return copyFacts(s.static)
	case types.PartitionDynamic:
		return copyFacts(s.dynamic)
	case types.PartitionInnerWorld:
		return copyFacts(s.innerWorld)
	default:
		return map[string]types.Fact{}
	}
}

func copyFacts(m map[string]types.Fact) map[string]types.Fact {
	out := make(map[string]types.Fact, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStrMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// AddFact writes to dynamic or inner-world (spec.md §4.1). Overwrites any
// existing value for the same state variable.
func (ws *WorldState) AddFact(part types.Partition, sv types.StateVariable, val types.Value) {
	ws.submit(func(s *snapshot) Delta {
		f := types.Fact{SV: sv, Value: val, Partition: part}
		now := time.Now()
		f.Timepoint = &now
		target := s.dynamic
		if part == types.PartitionInnerWorld {
			target = s.innerWorld
		}
		target[sv.Key()] = f
		return Delta{Footprint: map[string]bool{sv.Head(): true}, Facts: []types.Fact{f}}
	})
}

// RetractFact removes a fact. A no-op if it does not exist (spec.md §4.1
// failure semantics).
func (ws *WorldState) RetractFact(part types.Partition, sv types.StateVariable) {
	ws.submit(func(s *snapshot) Delta {
		target := s.dynamic
		if part == types.PartitionInnerWorld {
			target = s.innerWorld
		}
		if _, ok := target[sv.Key()]; !ok {
			return Delta{}
		}
		delete(target, sv.Key())
		return Delta{Footprint: map[string]bool{sv.Head(): true}}
	})
}

// LoadInitialFact seeds the static partition (used during domain loading,
// before any engine run begins).
func (ws *WorldState) LoadInitialFact(sv types.StateVariable, val types.Value) {
	ws.submit(func(s *snapshot) Delta {
		s.static[sv.Key()] = types.Fact{SV: sv, Value: val, Partition: types.PartitionStatic}
		return Delta{}
	})
}

// Get reads a single fact's value across dynamic/inner-world/static,
// returning (value, true) or a nil Value and false if absent — reading an
// absent key never errors (spec.md §4.1).
func (ws *WorldState) Get(sv types.StateVariable) (types.Value, bool) {
	s := ws.current.Load()
	if f, ok := s.dynamic[sv.Key()]; ok {
		return f.Value, true
	}
	if f, ok := s.innerWorld[sv.Key()]; ok {
		return f.Value, true
	}
	if f, ok := s.static[sv.Key()]; ok {
		return f.Value, true
	}
	return types.Value{}, false
}

// AddType adds a type under parent (defaulting to "object" if parent is
// empty and the type is new). Redeclaring an existing type is a no-op.
func (ws *WorldState) AddType(typ, parent string) {
	ws.submit(func(s *snapshot) Delta {
		if _, ok := s.lattice[typ]; ok {
			return Delta{}
		}
		if parent == "" {
			parent = "object"
		}
		if _, ok := s.lattice[parent]; !ok {
			s.lattice[parent] = "object" // auto-add unknown parent under object (spec.md §4.1)
		}
		s.lattice[typ] = parent
		return Delta{}
	})
}

// AddInstance tags obj with typ, auto-adding typ under object if unknown.
func (ws *WorldState) AddInstance(obj, typ string) {
	ws.submit(func(s *snapshot) Delta {
		if _, ok := s.lattice[typ]; !ok {
			s.lattice[typ] = "object"
		}
		s.instances[obj] = typ
		return Delta{Footprint: map[string]bool{"instance": true}}
	})
}

// InstanceOf reports whether obj is tagged with typ or a descendant of typ.
func (ws *WorldState) InstanceOf(obj, typ string) bool {
	s := ws.current.Load()
	declared, ok := s.instances[obj]
	if !ok {
		return false
	}
	return isAncestor(s.lattice, declared, typ)
}

// isAncestor reports whether walking parent links from child reaches target.
func isAncestor(lattice map[string]string, child, target string) bool {
	for cur := child; cur != ""; {
		if cur == target {
			return true
		}
		parent, ok := lattice[cur]
		if !ok || parent == cur {
			return false
		}
		cur = parent
	}
	return target == "object" && child == "object"
}

// Instances returns the transitive set of instances of typ.
func (ws *WorldState) Instances(typ string) []string {
	s := ws.current.Load()
	var out []string
	for obj, declared := range s.instances {
		if isAncestor(s.lattice, declared, typ) {
			out = append(out, obj)
		}
	}
	return out
}

// Subscribe registers interest in writes matching rule and returns its id.
func (ws *WorldState) Subscribe(rule Rule) SubscriberId {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.nextSubID++
	id := ws.nextSubID
	ws.subs[id] = &subscription{rule: rule, ch: make(chan Delta, 64)}
	return id
}

// UpdateRule changes the rule for an existing subscription. A no-op for an
// unknown id.
func (ws *WorldState) UpdateRule(id SubscriberId, rule Rule) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if s, ok := ws.subs[id]; ok {
		s.rule = rule
	}
}

// Unsubscribe removes a subscription. A no-op for an unknown id.
func (ws *WorldState) Unsubscribe(id SubscriberId) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	delete(ws.subs, id)
}

// AwaitUpdate blocks until the next write matching id's rule occurs, or ctx
// is cancelled.
func (ws *WorldState) AwaitUpdate(ctx context.Context, id SubscriberId) (Delta, bool) {
	ws.mu.Lock()
	s, ok := ws.subs[id]
	ws.mu.Unlock()
	if !ok {
		return Delta{}, false
	}
	select {
	case d := <-s.ch:
		return d, true
	case <-ctx.Done():
		return Delta{}, false
	}
}
