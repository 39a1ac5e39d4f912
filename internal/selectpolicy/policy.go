// Package selectpolicy implements C6: the pluggable ordering method
// refinement tries its precondition-satisfying candidates in (spec.md
// §4.4, §4.5). Every policy is a pure re-ordering — precondition filtering
// itself is C5's job, not a policy's.
package selectpolicy

import (
	"context"

	"github.com/ompas-labs/acting-core/internal/eval"
	"github.com/ompas-labs/acting-core/internal/types"
)

// Candidate is one precondition-satisfying method, paired with the
// environment its parameters are already bound in (so a policy can
// evaluate Score, or an injected ranking function can re-evaluate the
// method's body under a planner, without re-deriving the binding).
type Candidate struct {
	Method types.MethodDecl
	Args   []types.Value
	Env    *eval.Env
}

// Policy orders candidates; index 0 is tried first by C5.
type Policy interface {
	Rank(ctx context.Context, candidates []Candidate, reg eval.Registry, reader eval.PureReader) ([]Candidate, *types.EngineError)
}

// Greedy is the default: declaration order, unchanged (spec.md §4.5 —
// "the first method whose precondition holds").
type Greedy struct{}

func (Greedy) Rank(_ context.Context, candidates []Candidate, _ eval.Registry, _ eval.PureReader) ([]Candidate, *types.EngineError) {
	return candidates, nil
}

// evalScore evaluates a method's declared Score expression, defaulting to 0
// (equally preferable) when none was declared.
func evalScore(candidate Candidate, reg eval.Registry, reader eval.PureReader) (float64, *types.EngineError) {
	if candidate.Method.Score.IsNone() {
		return 0, nil
	}
	v, err := eval.EvalPure(candidate.Method.Score, candidate.Env, reg, reader)
	if err != nil {
		if ee, ok := err.(*types.EngineError); ok {
			return 0, ee
		}
		return 0, types.NewError(types.ErrProgramming, "SCORE_EVAL_ERROR", err.Error())
	}
	switch v.Kind {
	case types.KindInt:
		return float64(v.IntV), nil
	case types.KindFloat:
		return v.FloatV, nil
	default:
		return 0, types.NewError(types.ErrProgramming, "BAD_SCORE_RESULT", "method score must evaluate to a number, got "+v.Kind.String())
	}
}
