package selectpolicy

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ompas-labs/acting-core/internal/eval"
	"github.com/ompas-labs/acting-core/internal/types"
)

// RankFunc scores one candidate, lower is better — satisfied by C7's
// planner bridge without selectpolicy importing internal/planner (the
// engine wires the closure at startup; avoids a C6<->C7 import cycle).
type RankFunc func(ctx context.Context, candidate Candidate) (float64, *types.EngineError)

// PlannerRanked orders candidates by an externally supplied cost-to-go
// estimate (spec.md §4.5/§4.7's planner-ranked variant), lowest first. The
// executor calls Rank once per task refinement; PlannerRanked memoizes each
// candidate's estimate by method label and args for the policy's lifetime,
// so a later refinement with the same method and arguments does not
// re-query the planner. Cached estimates are never invalidated.
type PlannerRanked struct {
	Estimate RankFunc

	mu    sync.Mutex
	cache map[string]float64
}

func candidateKey(c Candidate) string {
	var b strings.Builder
	b.WriteString(c.Method.Label)
	for _, a := range c.Args {
		b.WriteByte('|')
		b.WriteString(a.String())
	}
	return b.String()
}

func (p *PlannerRanked) Rank(ctx context.Context, candidates []Candidate, _ eval.Registry, _ eval.PureReader) ([]Candidate, *types.EngineError) {
	if p.Estimate == nil {
		return candidates, nil
	}
	costs := make([]float64, len(candidates))
	for i, c := range candidates {
		key := candidateKey(c)
		p.mu.Lock()
		cached, ok := p.cache[key]
		p.mu.Unlock()
		if ok {
			costs[i] = cached
			continue
		}
		cost, err := p.Estimate(ctx, c)
		if err != nil {
			return nil, err
		}
		costs[i] = cost
		p.mu.Lock()
		if p.cache == nil {
			p.cache = make(map[string]float64)
		}
		p.cache[key] = cost
		p.mu.Unlock()
	}
	out := append([]Candidate(nil), candidates...)
	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return costs[idx[i]] < costs[idx[j]] })
	ranked := make([]Candidate, len(out))
	for i, j := range idx {
		ranked[i] = out[j]
	}
	return ranked, nil
}
