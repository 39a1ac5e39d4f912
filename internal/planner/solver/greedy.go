// Package solver provides Greedy, the one concrete planner.Solver this repo
// ships: a backtracking depth-first search over method choices, applying
// each command's declared Model to a simulated world state as it goes
// (spec.md §4.7).
package solver

import (
	"context"

	"github.com/ompas-labs/acting-core/internal/eval"
	"github.com/ompas-labs/acting-core/internal/planner"
	"github.com/ompas-labs/acting-core/internal/types"
)

// Greedy tries each task's methods in declaration order and backtracks on
// failure; it is "greedy" in that it never searches for a better plan once
// one decomposition to commands succeeds.
type Greedy struct{}

// Solve implements planner.Solver.
func (Greedy) Solve(ctx context.Context, problem planner.Problem) (planner.Plan, planner.Outcome, *types.EngineError) {
	budget := problem.MaxDepth
	state := newSimState(problem.InitialState)
	var steps []planner.PlanStep
	h := &simHost{reg: problem.Registry, state: state, steps: &steps, budget: &budget}

	_, err := eval.Eval(ctx, problem.Task, eval.NewEnv(), problem.Registry, h)
	if err != nil {
		if ctx.Err() != nil {
			return planner.Plan{}, planner.OutcomeInterrupt, types.NewError(types.ErrCancellation, "PLAN_INTERRUPTED", "planning cancelled")
		}
		if ee, ok := err.(*types.EngineError); ok && ee.Code == "DEPTH_EXCEEDED" {
			return planner.Plan{}, planner.OutcomeTimeout, nil
		}
		return planner.Plan{}, planner.OutcomeUnsat, nil
	}

	if !problem.Goal.IsNone() {
		ok, gerr := evalBoolPure(problem.Goal, eval.NewEnv(), problem.Registry, h)
		if gerr != nil {
			return planner.Plan{}, planner.OutcomeUnsat, nil
		}
		if !ok {
			return planner.Plan{}, planner.OutcomeUnsat, nil
		}
	}

	return planner.Plan{Steps: steps}, planner.OutcomeSat, nil
}

func evalBoolPure(expr types.Value, env *eval.Env, reg eval.Registry, reader eval.PureReader) (bool, *types.EngineError) {
	v, err := eval.EvalPure(expr, env, reg, reader)
	if err != nil {
		if ee, ok := err.(*types.EngineError); ok {
			return false, ee
		}
		return false, types.NewError(types.ErrProgramming, "PREDICATE_EVAL_ERROR", err.Error())
	}
	if v.Kind != types.KindBool {
		return false, types.NewError(types.ErrProgramming, "NON_BOOL_PREDICATE", "expected a bool result, got "+v.Kind.String())
	}
	return v.BoolV, nil
}
