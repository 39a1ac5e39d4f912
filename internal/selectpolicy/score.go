package selectpolicy

import (
	"context"
	"sort"

	"github.com/ompas-labs/acting-core/internal/eval"
	"github.com/ompas-labs/acting-core/internal/types"
)

// ScoreRanked orders candidates by descending declared Score (spec.md §4.6),
// breaking ties by declaration order.
type ScoreRanked struct{}

func (ScoreRanked) Rank(_ context.Context, candidates []Candidate, reg eval.Registry, reader eval.PureReader) ([]Candidate, *types.EngineError) {
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		s, err := evalScore(c, reg, reader)
		if err != nil {
			return nil, err
		}
		scores[i] = s
	}
	out := append([]Candidate(nil), candidates...)
	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return scores[idx[i]] > scores[idx[j]] })
	ranked := make([]Candidate, len(out))
	for i, j := range idx {
		ranked[i] = out[j]
	}
	return ranked, nil
}
