package solver

import (
	"github.com/ompas-labs/acting-core/internal/types"
	"github.com/ompas-labs/acting-core/internal/worldstate"
)

// simState is a mutable, clonable copy of a world-state snapshot — the
// planner's sandbox. It never touches the real worldstate.WorldState: every
// Assert/Retract during search lands here and is discarded if its branch
// backtracks.
type simState struct {
	static, dynamic, innerWorld map[string]types.Fact
	instances, lattice          map[string]string
}

func newSimState(snap worldstate.WorldSnapshot) *simState {
	return &simState{
		static:     copyFacts(snap.Static),
		dynamic:    copyFacts(snap.Dynamic),
		innerWorld: copyFacts(snap.InnerWorld),
		instances:  copyStrs(snap.Instances),
		lattice:    copyStrs(snap.Lattice),
	}
}

func (s *simState) clone() *simState {
	return &simState{
		static:     copyFacts(s.static),
		dynamic:    copyFacts(s.dynamic),
		innerWorld: copyFacts(s.innerWorld),
		instances:  copyStrs(s.instances),
		lattice:    copyStrs(s.lattice),
	}
}

func (s *simState) get(sv types.StateVariable) (types.Value, bool) {
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

func (s *simState) instanceOf(obj, typ string) bool {
	declared, ok := s.instances[obj]
	if !ok {
		return false
	}
	for cur := declared; cur != ""; {
		if cur == typ {
			return true
		}
		parent, ok := s.lattice[cur]
		if !ok || parent == cur {
			break
		}
		cur = parent
	}
	return typ == "object"
}

func (s *simState) assert(part types.Partition, sv types.StateVariable, val types.Value) {
	f := types.Fact{SV: sv, Value: val, Partition: part}
	target := s.dynamic
	if part == types.PartitionInnerWorld {
		target = s.innerWorld
	}
	target[sv.Key()] = f
}

func (s *simState) retract(part types.Partition, sv types.StateVariable) {
	target := s.dynamic
	if part == types.PartitionInnerWorld {
		target = s.innerWorld
	}
	delete(target, sv.Key())
}

func copyFacts(m map[string]types.Fact) map[string]types.Fact {
	out := make(map[string]types.Fact, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStrs(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
