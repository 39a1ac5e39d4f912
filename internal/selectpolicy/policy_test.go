package selectpolicy

import (
	"context"
	"testing"

	"github.com/ompas-labs/acting-core/internal/eval"
	"github.com/ompas-labs/acting-core/internal/resource"
	"github.com/ompas-labs/acting-core/internal/types"
)

type nullRegistry struct{}

func (nullRegistry) LookupTask(string) (types.TaskDecl, bool)       { return types.TaskDecl{}, false }
func (nullRegistry) LookupCommand(string) (types.CommandDecl, bool) { return types.CommandDecl{}, false }
func (nullRegistry) LookupStateFunction(string) (types.StateFunctionDecl, bool) {
	return types.StateFunctionDecl{}, false
}
func (nullRegistry) LookupLambda(string) (types.LambdaDecl, bool) { return types.LambdaDecl{}, false }

type nullReader struct{}

func (nullReader) Get(types.StateVariable) (types.Value, bool) { return types.Value{}, false }
func (nullReader) InstanceOf(string, string) bool               { return false }

func cand(label string, score types.Value) Candidate {
	return Candidate{Method: types.MethodDecl{Label: label, Score: score}, Env: eval.NewEnv()}
}

func TestGreedyPreservesOrder(t *testing.T) {
	in := []Candidate{cand("m1", types.Int(5)), cand("m2", types.Int(1))}
	out, err := Greedy{}.Rank(context.Background(), in, nullRegistry{}, nullReader{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Method.Label != "m1" || out[1].Method.Label != "m2" {
		t.Fatalf("expected declaration order preserved, got %v", labels(out))
	}
}

func TestScoreRankedSortsDescending(t *testing.T) {
	in := []Candidate{cand("expensive", types.Int(10)), cand("cheap", types.Int(1)), cand("mid", types.Int(5))}
	out, err := ScoreRanked{}.Rank(context.Background(), in, nullRegistry{}, nullReader{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"expensive", "mid", "cheap"}
	for i, w := range want {
		if out[i].Method.Label != w {
			t.Fatalf("expected order %v, got %v", want, labels(out))
		}
	}
}

func TestScoreRankedDefaultsAbsentScoreToZero(t *testing.T) {
	in := []Candidate{cand("scored", types.Int(5)), cand("unscored", types.Value{})}
	out, err := ScoreRanked{}.Rank(context.Background(), in, nullRegistry{}, nullReader{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Method.Label != "scored" {
		t.Fatalf("expected the higher-scored method first, got %v", labels(out))
	}
}

func TestCostEfficiencyPrefersFreeResource(t *testing.T) {
	mgr := resource.New()
	mgr.Declare("busyRes", 1)
	mgr.Declare("freeRes", 1)
	tok, _ := mgr.Acquire(context.Background(), "busyRes", 1, 0)
	defer mgr.Release(tok)

	bodyUsing := func(label string) types.Value {
		return types.List(types.Sym("acquire"), types.Sym(label), types.Int(1), types.Int(0))
	}
	in := []Candidate{
		{Method: types.MethodDecl{Label: "usesBusy", Body: bodyUsing("busyRes")}, Env: eval.NewEnv()},
		{Method: types.MethodDecl{Label: "usesFree", Body: bodyUsing("freeRes")}, Env: eval.NewEnv()},
	}
	policy := CostEfficiency{Resources: mgr}
	out, err := policy.Rank(context.Background(), in, nullRegistry{}, nullReader{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Method.Label != "usesFree" {
		t.Fatalf("expected the method over the free resource ranked first, got %v", labels(out))
	}
}

// fakeCmdRegistry is a minimal eval.Registry stub exposing only the commands
// a test preloads, for exercising CostEfficiency's command-cost simulation
// without pulling in the full internal/domain registry.
type fakeCmdRegistry struct{ cmds map[string]types.CommandDecl }

func (f fakeCmdRegistry) LookupTask(string) (types.TaskDecl, bool) { return types.TaskDecl{}, false }
func (f fakeCmdRegistry) LookupCommand(label string) (types.CommandDecl, bool) {
	c, ok := f.cmds[label]
	return c, ok
}
func (f fakeCmdRegistry) LookupStateFunction(string) (types.StateFunctionDecl, bool) {
	return types.StateFunctionDecl{}, false
}
func (f fakeCmdRegistry) LookupLambda(string) (types.LambdaDecl, bool) { return types.LambdaDecl{}, false }

func TestCostEfficiencySimulatesDispatchedCommandCosts(t *testing.T) {
	reg := fakeCmdRegistry{cmds: map[string]types.CommandDecl{
		"cheap_cmd": {Label: "cheap_cmd", Cost: types.Int(1)},
		"pricy_cmd": {Label: "pricy_cmd", Cost: types.Int(10)},
	}}
	in := []Candidate{
		{Method: types.MethodDecl{Label: "viaPricy", Body: types.List(types.Sym("exec-command"), types.Sym("pricy_cmd"))}, Env: eval.NewEnv()},
		{Method: types.MethodDecl{Label: "viaCheap", Body: types.List(types.Sym("exec-command"), types.Sym("cheap_cmd"))}, Env: eval.NewEnv()},
	}
	policy := CostEfficiency{}
	out, err := policy.Rank(context.Background(), in, reg, nullReader{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Method.Label != "viaCheap" {
		t.Fatalf("expected the cheaper dispatched command ranked first, got %v", labels(out))
	}
}

func TestCostEfficiencyPicksArgBoundCommandCost(t *testing.T) {
	reg := fakeCmdRegistry{cmds: map[string]types.CommandDecl{
		"scaled_cmd": {Label: "scaled_cmd", Params: []types.Param{{Name: "units"}}, Cost: types.Sym("?units")},
	}}
	lowEnv := eval.NewEnv()
	lowEnv.Bind("?n", types.Int(1))
	highEnv := eval.NewEnv()
	highEnv.Bind("?n", types.Int(9))
	in := []Candidate{
		{Method: types.MethodDecl{Label: "high", Body: types.List(types.Sym("exec-command"), types.Sym("scaled_cmd"), types.Sym("?n"))}, Env: highEnv},
		{Method: types.MethodDecl{Label: "low", Body: types.List(types.Sym("exec-command"), types.Sym("scaled_cmd"), types.Sym("?n"))}, Env: lowEnv},
	}
	policy := CostEfficiency{}
	out, err := policy.Rank(context.Background(), in, reg, nullReader{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Method.Label != "low" {
		t.Fatalf("expected the lower-argument-bound cost ranked first, got %v", labels(out))
	}
}

func TestPlannerRankedUsesInjectedEstimate(t *testing.T) {
	in := []Candidate{cand("a", types.Value{}), cand("b", types.Value{})}
	policy := PlannerRanked{Estimate: func(_ context.Context, c Candidate) (float64, *types.EngineError) {
		if c.Method.Label == "b" {
			return 1, nil
		}
		return 9, nil
	}}
	out, err := policy.Rank(context.Background(), in, nullRegistry{}, nullReader{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Method.Label != "b" {
		t.Fatalf("expected b (lower estimated cost) first, got %v", labels(out))
	}
}

func TestPlannerRankedMemoizesByCandidateKey(t *testing.T) {
	calls := 0
	policy := PlannerRanked{Estimate: func(_ context.Context, c Candidate) (float64, *types.EngineError) {
		calls++
		if c.Method.Label == "b" {
			return 1, nil
		}
		return 9, nil
	}}
	in := []Candidate{cand("a", types.Value{}), cand("b", types.Value{})}

	if _, err := policy.Rank(context.Background(), in, nullRegistry{}, nullReader{}); err != nil {
		t.Fatalf("first rank: %v", err)
	}
	if _, err := policy.Rank(context.Background(), in, nullRegistry{}, nullReader{}); err != nil {
		t.Fatalf("second rank: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected the second Rank call to hit the cache for both candidates, got %d Estimate calls", calls)
	}
}

func labels(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Method.Label
	}
	return out
}
