// Package engine is the top-level wiring point: it constructs C1–C8 plus
// the platform, trace, and config layers into one running Engine and
// exposes the Submit/Cancel/Shutdown surface a REPL or one-shot CLI drives
// (spec.md §4's "the engine" as a whole), in the teacher's cmd/agsh/main.go
// construction order — state first, then the components that read it,
// then the component that drives them.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ompas-labs/acting-core/internal/acting"
	"github.com/ompas-labs/acting-core/internal/cliui"
	"github.com/ompas-labs/acting-core/internal/config"
	"github.com/ompas-labs/acting-core/internal/domain"
	"github.com/ompas-labs/acting-core/internal/executor"
	"github.com/ompas-labs/acting-core/internal/monitor"
	"github.com/ompas-labs/acting-core/internal/planner"
	"github.com/ompas-labs/acting-core/internal/planner/solver"
	"github.com/ompas-labs/acting-core/internal/platform"
	"github.com/ompas-labs/acting-core/internal/resource"
	"github.com/ompas-labs/acting-core/internal/selectpolicy"
	"github.com/ompas-labs/acting-core/internal/trace"
	"github.com/ompas-labs/acting-core/internal/types"
	"github.com/ompas-labs/acting-core/internal/worldstate"
)

// Engine owns one run's full component set.
type Engine struct {
	Config    config.Config
	WS        *worldstate.WorldState
	Registry  *domain.Registry
	Tree      *acting.Tree
	Resources *resource.Manager
	Monitor   *monitor.Service
	Platform  platform.CommandExecutor
	Policy    selectpolicy.Policy
	Executor  *executor.Executor
	Trace     *trace.Recorder

	traceStop chan struct{}

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// New wires one Engine run over reg (already frozen) using cfg.
func New(cfg config.Config, reg *domain.Registry) (*Engine, error) {
	ws := worldstate.New()
	tree := acting.New()
	res := resource.New()
	mon := monitor.New(ws)
	plat := platform.NewLocalSimulator(ws, reg)

	bridge := planner.New(solver.Greedy{})
	policy := buildPolicy(cfg.SelectMode, res, bridge, reg)

	ex := executor.New(ws, reg, tree, res, mon, plat, policy)

	runDir := filepath.Join(cfg.CacheDir, "runs", time.Now().UTC().Format("20060102T150405")+"-"+uuid.NewString()[:8])
	rec, err := trace.Open(runDir)
	if err != nil {
		ws.Close()
		return nil, fmt.Errorf("engine: open trace: %w", err)
	}

	eg := &Engine{
		Config: cfg, WS: ws, Registry: reg, Tree: tree, Resources: res,
		Monitor: mon, Platform: plat, Policy: policy, Executor: ex, Trace: rec,
		traceStop: make(chan struct{}),
	}

	eg.wg.Add(2)
	go func() { defer eg.wg.Done(); rec.FollowTree(tree, eg.traceStop) }()
	go func() { defer eg.wg.Done(); rec.FollowWorld(ws, eg.traceStop) }()

	return eg, nil
}

// buildPolicy resolves cfg's SelectMode into a concrete selectpolicy.Policy,
// falling back to Greedy for an unrecognized mode string.
func buildPolicy(mode config.SelectMode, res *resource.Manager, bridge *planner.Bridge, reg *domain.Registry) selectpolicy.Policy {
	switch mode {
	case config.SelectScoreRanked:
		return selectpolicy.ScoreRanked{}
	case config.SelectCostEfficiency:
		return selectpolicy.CostEfficiency{Resources: res}
	case config.SelectPlannerRanked:
		return &selectpolicy.PlannerRanked{Estimate: plannerEstimate(bridge, reg)}
	default:
		return selectpolicy.Greedy{}
	}
}

// plannerEstimate asks bridge to look ahead through a candidate method's own
// body and scores it by how many commands the resulting plan dispatches —
// fewer steps is a better estimate of cost-to-go (spec.md §4.5's
// planner-ranked variant, §4.7's Bridge.Plan as the estimator).
func plannerEstimate(bridge *planner.Bridge, reg *domain.Registry) selectpolicy.RankFunc {
	return func(ctx context.Context, c selectpolicy.Candidate) (float64, *types.EngineError) {
		problem := planner.Problem{
			Task:     c.Method.Body,
			Registry: reg,
		}
		plan, outcome, err := bridge.Plan(ctx, problem)
		if outcome == planner.OutcomeInterrupt {
			return 0, err
		}
		if outcome != planner.OutcomeSat {
			return 1e9, nil // unsat/never-reached candidates sort last, never excluded
		}
		return float64(len(plan.Steps)), nil
	}
}

// Submit refines task(args...) as a new top-level child of the tree's root,
// blocking until it reaches a terminal status.
func (eg *Engine) Submit(ctx context.Context, task string, args []types.Value) (types.Value, *types.EngineError) {
	return eg.Executor.Run(ctx, acting.Root, task, args)
}

// Cancel stops the task rooted at id and everything it has spawned.
func (eg *Engine) Cancel(id types.ProcessId) {
	eg.Executor.Cancel(id)
}

// PrintTree renders the current tree rooted at id (cliui's terminal
// printer), for a REPL's "show me what's running" command.
func (eg *Engine) PrintTree(w writer, id types.ProcessId) {
	cliui.PrintTree(w, eg.Tree, id)
}

// PrintResources renders every declared resource's current state.
func (eg *Engine) PrintResources(w writer) {
	cliui.PrintResources(w, eg.Resources.Resources())
}

type writer interface {
	Write(p []byte) (n int, err error)
}

// Shutdown stops the trace followers, closes the trace recorder, and closes
// the world state's internal goroutine. Safe to call once; later calls are
// no-ops.
func (eg *Engine) Shutdown() error {
	eg.mu.Lock()
	if eg.closed {
		eg.mu.Unlock()
		return nil
	}
	eg.closed = true
	eg.mu.Unlock()

	close(eg.traceStop)
	eg.wg.Wait()
	eg.WS.Close()
	return eg.Trace.Close()
}
