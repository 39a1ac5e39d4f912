package selectpolicy

import (
	"context"
	"sort"

	"github.com/ompas-labs/acting-core/internal/eval"
	"github.com/ompas-labs/acting-core/internal/resource"
	"github.com/ompas-labs/acting-core/internal/types"
)

// EfficiencyCombinator folds a candidate's simulated command cost together
// with the current free-capacity fraction of the resources its body
// statically acquires into a single "higher is better" efficiency number.
type EfficiencyCombinator interface {
	Combine(cost, resourceAvailability float64) float64
}

// SumOfReciprocals is the default combinator: 1/cost (1 when cost is not
// positive) plus the averaged available fraction of the required resources,
// so a cheap method over a contended resource and an expensive method over a
// free one can both surface as
// reasonable choices rather than the cheapest method always winning
// regardless of whether it can actually start soon.
type SumOfReciprocals struct{}

func (SumOfReciprocals) Combine(cost, resourceAvailability float64) float64 {
	costTerm := 1.0
	if cost > 0 {
		costTerm = 1.0 / cost
	}
	return costTerm + resourceAvailability
}

// CostEfficiency ranks candidates by EfficiencyCombinator.Combine, highest
// first: for each candidate it simulates the cost models of every command
// its body dispatches via exec-command and composes that with Resources'
// current free-capacity fraction (spec.md §4.6's cost/efficiency variant).
type CostEfficiency struct {
	Resources  *resource.Manager
	Combinator EfficiencyCombinator
}

func (p CostEfficiency) Rank(_ context.Context, candidates []Candidate, reg eval.Registry, reader eval.PureReader) ([]Candidate, *types.EngineError) {
	combinator := p.Combinator
	if combinator == nil {
		combinator = SumOfReciprocals{}
	}
	efficiencies := make([]float64, len(candidates))
	for i, c := range candidates {
		cost := p.simulatedCost(c, reg, reader)
		efficiencies[i] = combinator.Combine(cost, p.availability(c))
	}
	out := append([]Candidate(nil), candidates...)
	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return efficiencies[idx[i]] > efficiencies[idx[j]] })
	ranked := make([]Candidate, len(out))
	for i, j := range idx {
		ranked[i] = out[j]
	}
	return ranked, nil
}

// availability averages the free-capacity fraction of every resource the
// candidate's body statically acquires; 1.0 (fully available) if it
// acquires nothing.
func (p CostEfficiency) availability(c Candidate) float64 {
	labels := staticResourceLabels(c.Method.Body)
	if len(labels) == 0 {
		return 1.0
	}
	if p.Resources == nil {
		return 1.0
	}
	descByLabel := make(map[string]resource.Descriptor)
	for _, d := range p.Resources.Resources() {
		descByLabel[d.Label] = d
	}
	var sum float64
	for _, l := range labels {
		d, ok := descByLabel[l]
		if !ok || d.TotalCapacity == 0 {
			sum += 1.0
			continue
		}
		sum += float64(d.FreeCapacity) / float64(d.TotalCapacity)
	}
	return sum / float64(len(labels))
}

// simulatedCost sums the declared Cost of every command the candidate's body
// dispatches via exec-command, evaluated with that command's parameters
// bound to the (pure-evaluated) call's argument expressions under the
// candidate's own environment. A command with no declared Cost, an unknown
// command, or a call whose arguments can't be pure-evaluated (e.g. it
// depends on a side effect earlier in the same body) contributes nothing —
// this is a static estimate, not a real dispatch, so it degrades rather than
// fails the whole ranking. Zero (no costed exec-command calls found) is
// passed to the combinator as is; SumOfReciprocals scores it like a cost of 1.
func (p CostEfficiency) simulatedCost(c Candidate, reg eval.Registry, reader eval.PureReader) float64 {
	var total float64
	for _, call := range collectExecCommands(c.Method.Body) {
		cmd, ok := reg.LookupCommand(call.label)
		if !ok || cmd.Cost.IsNone() {
			continue
		}
		env := c.Env.Child()
		for i, argExpr := range call.args {
			if i >= len(cmd.Params) {
				break
			}
			v, err := eval.EvalPure(argExpr, c.Env, reg, reader)
			if err != nil {
				continue
			}
			env.Bind("?"+cmd.Params[i].Name, v)
		}
		costV, err := eval.EvalPure(cmd.Cost, env, reg, reader)
		if err != nil {
			continue
		}
		switch costV.Kind {
		case types.KindInt:
			total += float64(costV.IntV)
		case types.KindFloat:
			total += costV.FloatV
		}
	}
	return total
}

// execCommandCall is one statically-discovered (exec-command label args...).
type execCommandCall struct {
	label string
	args  []types.Value
}

// collectExecCommands walks expr for every (exec-command label args...)
// form it can reach, skipping commands whose label isn't a literal symbol
// (dynamically chosen commands have no static cost to simulate).
func collectExecCommands(expr types.Value) []execCommandCall {
	var out []execCommandCall
	var walk func(types.Value)
	walk = func(v types.Value) {
		if v.Kind != types.KindList || len(v.List) == 0 {
			return
		}
		head := v.List[0]
		if head.Kind == types.KindSymbol && head.Sym == "exec-command" && len(v.List) >= 2 && v.List[1].Kind == types.KindSymbol {
			out = append(out, execCommandCall{label: v.List[1].Sym, args: v.List[2:]})
		}
		for _, a := range v.List {
			walk(a)
		}
	}
	walk(expr)
	return out
}

// staticResourceLabels conservatively collects every literal resource label
// named in an (acquire label ...) or (acquire-any ((label ...) ...) ...)
// form reachable from expr.
func staticResourceLabels(expr types.Value) []string {
	seen := map[string]bool{}
	collectResourceLabels(expr, seen)
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	return out
}

func collectResourceLabels(expr types.Value, seen map[string]bool) {
	if expr.Kind != types.KindList || len(expr.List) == 0 {
		return
	}
	head := expr.List[0]
	if head.Kind == types.KindSymbol {
		switch head.Sym {
		case "acquire":
			if len(expr.List) >= 2 && expr.List[1].Kind == types.KindSymbol {
				seen[expr.List[1].Sym] = true
			}
		case "acquire-any":
			if len(expr.List) >= 2 && expr.List[1].Kind == types.KindList {
				for _, cand := range expr.List[1].List {
					if cand.Kind == types.KindList && len(cand.List) >= 1 && cand.List[0].Kind == types.KindSymbol {
						seen[cand.List[0].Sym] = true
					}
				}
			}
		}
	}
	for _, a := range expr.List {
		collectResourceLabels(a, seen)
	}
}
