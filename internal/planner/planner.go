// Package planner implements C7: the bridge between the acting engine and a
// pluggable off-line solver, used by the planner-ranked select policy (wired
// in internal/engine) to look ahead before committing to a decomposition
// (spec.md §4.7).
package planner

import (
	"context"

	"github.com/ompas-labs/acting-core/internal/domain"
	"github.com/ompas-labs/acting-core/internal/types"
	"github.com/ompas-labs/acting-core/internal/worldstate"
)

// Outcome classifies a solve attempt (spec.md §7's "Planner outcomes").
type Outcome int

const (
	OutcomeSat Outcome = iota
	OutcomeUnsat
	OutcomeTimeout
	OutcomeInterrupt
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSat:
		return "sat"
	case OutcomeUnsat:
		return "unsat"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeInterrupt:
		return "interrupt"
	default:
		return "unknown"
	}
}

// PlanStep is one command dispatch a plan calls for, in execution order.
type PlanStep struct {
	Label string
	Args  []types.Value
}

// Plan is a fully-instantiated sequence of command calls.
type Plan struct {
	Steps []PlanStep
}

// Problem is one planning request: decompose Task down to commands (within
// MaxDepth task/command expansions) such that, if Goal is not KindNone, Goal
// holds against the resulting simulated state.
type Problem struct {
	Task         types.Value
	Goal         types.Value
	InitialState worldstate.WorldSnapshot
	Registry     *domain.Registry
	MaxDepth     int
}

// Solver is the opaque chronicle/backtracking search this repo's Bridge
// drives with iterative deepening. A Solver call is expected to be a single
// bounded attempt at Problem.MaxDepth, not to retry depths itself.
type Solver interface {
	Solve(ctx context.Context, problem Problem) (Plan, Outcome, *types.EngineError)
}

// Bridge is C7: iterative-deepening depth-bound search over a Solver.
type Bridge struct {
	Solver      Solver
	MaxDepthCap int
}

// New creates a Bridge with a default depth cap of 20.
func New(solver Solver) *Bridge {
	return &Bridge{Solver: solver, MaxDepthCap: 20}
}

// Plan searches depths 1..MaxDepthCap, returning the first satisfying plan.
// A per-depth Timeout is treated as "try a greater depth", not given up on;
// Interrupt (ctx cancelled) and a depth-cap exhaustion both terminate the
// search, the latter reported as Unsat (spec.md §7).
func (b *Bridge) Plan(ctx context.Context, problem Problem) (Plan, Outcome, *types.EngineError) {
	for depth := 1; depth <= b.MaxDepthCap; depth++ {
		select {
		case <-ctx.Done():
			return Plan{}, OutcomeInterrupt, types.NewError(types.ErrCancellation, "PLAN_INTERRUPTED", "planning cancelled")
		default:
		}
		problem.MaxDepth = depth
		plan, outcome, err := b.Solver.Solve(ctx, problem)
		switch outcome {
		case OutcomeSat:
			return plan, OutcomeSat, nil
		case OutcomeInterrupt:
			return Plan{}, OutcomeInterrupt, err
		case OutcomeTimeout:
			continue // this depth bound wasn't reached before the solver's own budget ran out; widen it
		case OutcomeUnsat:
			continue // no decomposition at this depth; a deeper one might still work
		}
	}
	return Plan{}, OutcomeUnsat, types.NewError(types.ErrPlannerOutcome, "DEPTH_CAP_EXHAUSTED",
		"no plan found within the configured depth cap")
}
