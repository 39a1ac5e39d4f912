package solver

import (
	"context"

	"github.com/ompas-labs/acting-core/internal/domain"
	"github.com/ompas-labs/acting-core/internal/eval"
	"github.com/ompas-labs/acting-core/internal/planner"
	"github.com/ompas-labs/acting-core/internal/types"
)

// simHost is the eval.Host a method/command body runs against during
// search: reads and writes land in a sandboxed simState, resources are
// auto-granted (the planner reasons about causal structure, not
// contention), and arbitrary always takes
// its first candidate so search stays deterministic.
type simHost struct {
	reg    *domain.Registry
	state  *simState
	steps  *[]planner.PlanStep
	budget *int
}

func (h *simHost) Get(sv types.StateVariable) (types.Value, bool) { return h.state.get(sv) }
func (h *simHost) InstanceOf(obj, typ string) bool                { return h.state.instanceOf(obj, typ) }
func (h *simHost) Assert(part types.Partition, sv types.StateVariable, val types.Value) {
	h.state.assert(part, sv, val)
}
func (h *simHost) Retract(part types.Partition, sv types.StateVariable) { h.state.retract(part, sv) }

func (h *simHost) Acquire(context.Context, string, int, int) (types.Value, *types.EngineError) {
	return types.Value{Kind: types.KindHandle}, nil
}
func (h *simHost) AcquireAny(_ context.Context, reqs []types.ResourceRequest, _ int) (types.Value, string, *types.EngineError) {
	if len(reqs) == 0 {
		return types.Value{}, "", types.NewError(types.ErrRefinementFailure, "EMPTY_ACQUIRE_ANY", "acquire_any called with no candidates")
	}
	return types.Value{Kind: types.KindHandle}, reqs[0].Label, nil
}
func (h *simHost) Release(types.Value) *types.EngineError { return nil }

func (h *simHost) WaitFor(_ context.Context, predicate types.Value, env *eval.Env) *types.EngineError {
	ok, err := evalBoolPure(predicate, env, h.reg, h)
	if err != nil {
		return err
	}
	if !ok {
		return types.NewError(types.ErrPlannerOutcome, "WAIT_NOT_SATISFIED", "wait-for predicate does not hold in the simulated state")
	}
	return nil
}

func (h *simHost) ExecCommand(ctx context.Context, label string, args []types.Value) (types.Value, *types.EngineError) {
	if *h.budget <= 0 {
		return types.Value{}, types.NewError(types.ErrPlannerOutcome, "DEPTH_EXCEEDED", "command expansion exceeded the planner's depth bound")
	}
	*h.budget--
	cmd, ok := h.reg.LookupCommand(label)
	if !ok {
		return types.Value{}, types.NewError(types.ErrProgramming, "UNKNOWN_COMMAND", "no command declared for "+label)
	}
	*h.steps = append(*h.steps, planner.PlanStep{Label: label, Args: args})
	if !cmd.Model.IsNone() {
		env := eval.NewEnv()
		bindParams(env, cmd.Params, args)
		if _, err := eval.Eval(ctx, cmd.Model, env, h.reg, h); err != nil {
			if ee, ok := err.(*types.EngineError); ok {
				return types.Value{}, ee
			}
			return types.Value{}, types.NewError(types.ErrProgramming, "MODEL_EVAL_ERROR", err.Error())
		}
	}
	return types.Bool(true), nil
}

func (h *simHost) CallSubtask(ctx context.Context, label string, args []types.Value) (types.Value, *types.EngineError) {
	if *h.budget <= 0 {
		return types.Value{}, types.NewError(types.ErrPlannerOutcome, "DEPTH_EXCEEDED", "task expansion exceeded the planner's depth bound")
	}
	*h.budget--
	if _, ok := h.reg.LookupTask(label); !ok {
		return types.Value{}, types.NewError(types.ErrProgramming, "UNKNOWN_TASK", "no task declared for "+label)
	}

	for _, m := range h.reg.Methods(label) {
		env := eval.NewEnv()
		bindParams(env, m.Params, args)
		if !m.PreConditions.IsNone() {
			ok, perr := evalBoolPure(m.PreConditions, env, h.reg, h)
			if perr != nil || !ok {
				continue
			}
		}

		savedState := h.state
		savedSteps := len(*h.steps)
		trial := savedState.clone()
		h.state = trial

		_, err := eval.Eval(ctx, m.Body, env, h.reg, h)
		if err == nil {
			return types.Bool(true), nil // method succeeded; h.state/steps already reflect it
		}

		h.state = savedState
		*h.steps = (*h.steps)[:savedSteps]
	}
	return types.Value{}, types.NewError(types.ErrRefinementFailure, "NO_APPLICABLE_METHOD",
		"no method for "+label+" had a satisfiable precondition in the simulated state")
}

func (h *simHost) Arbitrary(candidates []types.Value, _ types.Value) (types.Value, *types.EngineError) {
	if len(candidates) == 0 {
		return types.Value{}, types.NewError(types.ErrRefinementFailure, "EMPTY_ARBITRARY", "arbitrary called with no candidates")
	}
	return candidates[0], nil
}

func bindParams(env *eval.Env, params []types.Param, args []types.Value) {
	for i, p := range params {
		if i < len(args) {
			env.Bind("?"+p.Name, args[i])
		}
	}
}
