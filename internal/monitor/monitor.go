// Package monitor implements C3: predicate waits that resolve the instant a
// world-state commit makes them true, without polling (spec.md §4.3).
package monitor

import (
	"context"

	"github.com/ompas-labs/acting-core/internal/eval"
	"github.com/ompas-labs/acting-core/internal/types"
	"github.com/ompas-labs/acting-core/internal/worldstate"
)

// Service is C3. It holds no state of its own beyond a reference to the
// world state its waits read against.
type Service struct {
	ws *worldstate.WorldState
}

// New creates a monitor service over ws.
func New(ws *worldstate.WorldState) *Service {
	return &Service{ws: ws}
}

// Await blocks until predicate evaluates true against the world state, or
// ctx is cancelled. The predicate is re-checked only on commits whose
// footprint could plausibly affect it (a static over-approximation of the
// state functions it mentions — spec.md §4.3's "woken only by relevant
// writes", never on every commit).
func (s *Service) Await(ctx context.Context, predicate types.Value, env *eval.Env, reg eval.Registry) *types.EngineError {
	ok, err := s.check(predicate, env, reg)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	footprint := staticFootprint(predicate)
	var rule worldstate.Rule
	if len(footprint) == 0 {
		rule = worldstate.AllRule()
	} else {
		rule = worldstate.SpecificRule(footprint...)
	}
	id := s.ws.Subscribe(rule)
	defer s.ws.Unsubscribe(id)

	for {
		if _, ok := s.ws.AwaitUpdate(ctx, id); !ok {
			return types.NewError(types.ErrCancellation, "WAIT_FOR_CANCELLED", "wait-for cancelled before its predicate became true")
		}
		ok, err := s.check(predicate, env, reg)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
}

func (s *Service) check(predicate types.Value, env *eval.Env, reg eval.Registry) (bool, *types.EngineError) {
	snap := s.ws.GetSnapshot()
	v, err := eval.EvalPure(predicate, env, reg, snap)
	if err != nil {
		if ee, ok := err.(*types.EngineError); ok {
			return false, ee
		}
		return false, types.NewError(types.ErrProgramming, "PREDICATE_EVAL_ERROR", err.Error())
	}
	if v.Kind != types.KindBool {
		return false, types.NewError(types.ErrProgramming, "NON_BOOL_PREDICATE", "wait-for predicate must evaluate to a bool, got "+v.Kind.String())
	}
	return v.BoolV, nil
}

// staticFootprint conservatively collects every call-position symbol in expr
// that is not a known operator/special-form name, on the assumption it names
// a state function the predicate reads. Over-approximation (waking on an
// unrelated write sharing a label) is safe; under-approximation would miss a
// wakeup entirely, so this never tries to be clever about shadowing.
func staticFootprint(expr types.Value) []string {
	seen := map[string]bool{}
	collectFootprint(expr, seen)
	out := make([]string, 0, len(seen))
	for label := range seen {
		out = append(out, label)
	}
	return out
}

var nonStateFunctionHeads = map[string]bool{
	"quote": true, "if": true, "and": true, "or": true, "not": true,
	"let": true, "begin": true, "do": true, "lambda": true,
	"assert": true, "assert-inner": true, "retract": true, "retract-inner": true,
	"acquire": true, "acquire-any": true, "release": true, "wait-for": true,
	"exec-command": true, "arbitrary": true, "check": true,
	"+": true, "-": true, "*": true, "/": true,
	"=": true, "<": true, "<=": true, ">": true, ">=": true,
}

func collectFootprint(expr types.Value, seen map[string]bool) {
	if expr.Kind != types.KindList || len(expr.List) == 0 {
		return
	}
	head := expr.List[0]
	if head.Kind == types.KindSymbol && !nonStateFunctionHeads[head.Sym] && (len(head.Sym) == 0 || head.Sym[0] != '?') {
		seen[head.Sym] = true
	}
	for _, a := range expr.List[1:] {
		collectFootprint(a, seen)
	}
}
