package eval

import (
	"context"

	"github.com/ompas-labs/acting-core/internal/types"
)

// PureReader is the read-only subset of Host a monitor predicate check is
// allowed to touch: fact lookups and the instance lattice, nothing that
// could mutate world state or block (spec.md §4.3 — monitor evaluation must
// never itself perform an action).
type PureReader interface {
	Get(sv types.StateVariable) (types.Value, bool)
	InstanceOf(obj, typ string) bool
}

// Host is the full effect surface a running method/command body evaluates
// against: world-state mutation, resource arbitration, command dispatch,
// sub-task refinement, non-deterministic choice, and monitor waits. It is
// implemented by internal/executor, which alone has the acting-tree context
// (the calling process's id) needed to attribute these effects correctly.
type Host interface {
	PureReader

	Assert(part types.Partition, sv types.StateVariable, val types.Value)
	Retract(part types.Partition, sv types.StateVariable)

	Acquire(ctx context.Context, label string, amount, priority int) (types.Value, *types.EngineError)
	AcquireAny(ctx context.Context, reqs []types.ResourceRequest, priority int) (types.Value, string, *types.EngineError)
	Release(handle types.Value) *types.EngineError

	WaitFor(ctx context.Context, predicate types.Value, env *Env) *types.EngineError

	ExecCommand(ctx context.Context, label string, args []types.Value) (types.Value, *types.EngineError)
	CallSubtask(ctx context.Context, label string, args []types.Value) (types.Value, *types.EngineError)

	// Arbitrary records a non-deterministic choice node and returns the
	// chosen candidate: chooser is a one-parameter Lambda Value applied to the
	// candidate list that returns the pick, or KindNone to take the first
	// candidate (spec.md §4.5).
	Arbitrary(candidates []types.Value, chooser types.Value) (types.Value, *types.EngineError)
}
