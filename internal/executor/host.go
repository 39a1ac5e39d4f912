package executor

import (
	"context"

	"github.com/ompas-labs/acting-core/internal/eval"
	"github.com/ompas-labs/acting-core/internal/resource"
	"github.com/ompas-labs/acting-core/internal/types"
)

// execHost is the eval.Host a method body runs against: every effect lands
// on the real worldstate/resource/monitor/platform, and every subtask or
// command call opens a new child node under owner (spec.md §4.4 — "a
// method's body is itself a sequence of task calls, command calls, and
// control structures").
type execHost struct {
	ex    *Executor
	owner types.ProcessId
}

func (ex *Executor) newHost(owner types.ProcessId) *execHost {
	return &execHost{ex: ex, owner: owner}
}

func (h *execHost) Get(sv types.StateVariable) (types.Value, bool) { return h.ex.WS.Get(sv) }
func (h *execHost) InstanceOf(obj, typ string) bool                { return h.ex.WS.InstanceOf(obj, typ) }

func (h *execHost) Assert(part types.Partition, sv types.StateVariable, val types.Value) {
	h.ex.WS.AddFact(part, sv, val)
}

func (h *execHost) Retract(part types.Partition, sv types.StateVariable) {
	h.ex.WS.RetractFact(part, sv)
}

func (h *execHost) Acquire(ctx context.Context, label string, amount, priority int) (types.Value, *types.EngineError) {
	id := h.ex.Tree.NewChild(h.owner, types.KindAcquire, label, []types.Value{types.Int(int64(amount))})
	h.ex.Tree.Start(id)
	tok, err := h.ex.Resources.Acquire(ctx, label, amount, priority)
	if err != nil {
		h.ex.Tree.Finish(id, statusFor(err), types.Value{}, err)
		return types.Value{}, err
	}
	h.ex.trackHeld(h.owner, tok)
	handle := types.Handle(tok)
	h.ex.Tree.Finish(id, types.StatusSuccess, handle, nil)
	return handle, nil
}

func (h *execHost) AcquireAny(ctx context.Context, reqs []types.ResourceRequest, priority int) (types.Value, string, *types.EngineError) {
	labels := make([]types.Value, 0, len(reqs))
	for _, r := range reqs {
		labels = append(labels, types.Sym(r.Label))
	}
	id := h.ex.Tree.NewChild(h.owner, types.KindAcquire, "acquire-any", labels)
	h.ex.Tree.Start(id)
	tok, label, err := h.ex.Resources.AcquireAny(ctx, reqs, priority)
	if err != nil {
		h.ex.Tree.Finish(id, statusFor(err), types.Value{}, err)
		return types.Value{}, "", err
	}
	h.ex.trackHeld(h.owner, tok)
	handle := types.Handle(tok)
	h.ex.Tree.Finish(id, types.StatusSuccess, handle, nil)
	return handle, label, nil
}

func (h *execHost) Release(handle types.Value) *types.EngineError {
	if handle.Kind != types.KindHandle {
		return types.NewError(types.ErrProgramming, "RELEASE_NON_HANDLE", "release called on a non-handle value")
	}
	tok, ok := handle.Handle.(*resource.AcquireToken)
	if !ok {
		return types.NewError(types.ErrProgramming, "RELEASE_WRONG_HANDLE", "release called on a handle that is not a resource token")
	}
	h.ex.untrackHeld(h.owner, tok)
	h.ex.Resources.Release(tok)
	return nil
}

func (h *execHost) WaitFor(ctx context.Context, predicate types.Value, env *eval.Env) *types.EngineError {
	return h.ex.Monitor.Await(ctx, predicate, env, h.ex.Registry)
}

func (h *execHost) ExecCommand(ctx context.Context, label string, args []types.Value) (types.Value, *types.EngineError) {
	id := h.ex.Tree.NewChild(h.owner, types.KindCommand, label, args)
	h.ex.Tree.Start(id)
	cctx, cancel := context.WithCancel(ctx)
	h.ex.registerCancel(id, cancel)
	defer cancel()
	result, err := h.ex.Platform.Execute(cctx, label, args)
	if err != nil {
		h.ex.Tree.Finish(id, statusFor(err), types.Value{}, err)
		return types.Value{}, err
	}
	h.ex.Tree.Finish(id, types.StatusSuccess, result, nil)
	return result, nil
}

// CallSubtask recurses into Run, which allocates the child task node and
// registers its own cancel func — h.owner here is only the *parent* id, not
// the new node, so cancellation registration happens inside Run itself.
func (h *execHost) CallSubtask(ctx context.Context, label string, args []types.Value) (types.Value, *types.EngineError) {
	return h.ex.Run(ctx, h.owner, label, args)
}

func (h *execHost) Arbitrary(candidates []types.Value, chooser types.Value) (types.Value, *types.EngineError) {
	if len(candidates) == 0 {
		return types.Value{}, types.NewError(types.ErrRefinementFailure, "EMPTY_ARBITRARY", "arbitrary called with no candidates")
	}
	id := h.ex.Tree.NewChild(h.owner, types.KindArbitrary, "arbitrary", candidates)
	h.ex.Tree.Start(id)

	// A chooser lambda picks among candidates; absent, the first candidate
	// wins deterministically (spec.md §4.5 — replay under planner-ranked
	// selection is non-replayable, so no attempt is made to reuse a prior
	// pick here).
	choice := candidates[0]
	if !chooser.IsNone() {
		if chooser.Kind != types.KindLambda || chooser.Lambda == nil {
			err := types.NewError(types.ErrProgramming, "BAD_ARBITRARY_CHOOSER", "arbitrary's chooser must be a lambda")
			h.ex.Tree.Finish(id, types.StatusFailure, types.Value{}, err)
			return types.Value{}, err
		}
		env := eval.NewEnv()
		if len(chooser.Lambda.Params) != 1 {
			err := types.NewError(types.ErrProgramming, "BAD_ARBITRARY_CHOOSER", "arbitrary's chooser must take exactly one parameter")
			h.ex.Tree.Finish(id, types.StatusFailure, types.Value{}, err)
			return types.Value{}, err
		}
		env.Bind(chooser.Lambda.Params[0], types.List(candidates...))
		v, err := eval.EvalPure(chooser.Lambda.Body, env, h.ex.Registry, h.ex.WS.GetSnapshot())
		if err != nil {
			ee := toEngineError(err)
			h.ex.Tree.Finish(id, types.StatusFailure, types.Value{}, ee)
			return types.Value{}, ee
		}
		choice = v
	}
	h.ex.Tree.Finish(id, types.StatusSuccess, choice, nil)
	return choice, nil
}

func statusFor(err *types.EngineError) types.Status {
	if err.Kind == types.ErrCancellation {
		return types.StatusCancelled
	}
	return types.StatusFailure
}
