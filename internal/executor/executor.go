// Package executor implements C5: the refinement executor that drives one
// task call from candidate-method selection through to success or failure,
// retrying the next candidate on a recoverable failure and propagating
// cancellation down the subtree it owns (spec.md §4.4, §4.6).
package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/ompas-labs/acting-core/internal/acting"
	"github.com/ompas-labs/acting-core/internal/domain"
	"github.com/ompas-labs/acting-core/internal/eval"
	"github.com/ompas-labs/acting-core/internal/monitor"
	"github.com/ompas-labs/acting-core/internal/platform"
	"github.com/ompas-labs/acting-core/internal/resource"
	"github.com/ompas-labs/acting-core/internal/selectpolicy"
	"github.com/ompas-labs/acting-core/internal/types"
	"github.com/ompas-labs/acting-core/internal/worldstate"
)

// Executor is C5, wired to every other component a running method body can
// touch.
type Executor struct {
	WS        *worldstate.WorldState
	Registry  *domain.Registry
	Tree      *acting.Tree
	Resources *resource.Manager
	Monitor   *monitor.Service
	Platform  platform.CommandExecutor
	Policy    selectpolicy.Policy

	cancelMu sync.Mutex
	cancels  map[types.ProcessId]context.CancelFunc

	heldMu sync.Mutex
	held   map[types.ProcessId][]*resource.AcquireToken
}

// New wires an Executor from its components. Policy defaults to Greedy.
func New(ws *worldstate.WorldState, reg *domain.Registry, tree *acting.Tree, res *resource.Manager, mon *monitor.Service, plat platform.CommandExecutor, policy selectpolicy.Policy) *Executor {
	if policy == nil {
		policy = selectpolicy.Greedy{}
	}
	return &Executor{
		WS: ws, Registry: reg, Tree: tree, Resources: res, Monitor: mon, Platform: plat, Policy: policy,
		cancels: make(map[types.ProcessId]context.CancelFunc),
		held:    make(map[types.ProcessId][]*resource.AcquireToken),
	}
}

func (ex *Executor) registerCancel(id types.ProcessId, cancel context.CancelFunc) {
	ex.cancelMu.Lock()
	ex.cancels[id] = cancel
	ex.cancelMu.Unlock()
}

// trackHeld records that owner currently holds tok, so it can be released
// automatically if owner finishes without an explicit release (spec.md §9's
// acquire-release-discipline resolution).
func (ex *Executor) trackHeld(owner types.ProcessId, tok *resource.AcquireToken) {
	ex.heldMu.Lock()
	ex.held[owner] = append(ex.held[owner], tok)
	ex.heldMu.Unlock()
}

// untrackHeld removes tok from owner's held set after an explicit release.
func (ex *Executor) untrackHeld(owner types.ProcessId, tok *resource.AcquireToken) {
	ex.heldMu.Lock()
	defer ex.heldMu.Unlock()
	toks := ex.held[owner]
	for i, t := range toks {
		if t == tok {
			ex.held[owner] = append(toks[:i], toks[i+1:]...)
			return
		}
	}
}

// releaseOwned force-releases every token owner still holds when its node
// reaches a terminal status — the scope-exit half of the release discipline;
// explicit `release` calls are the normal path and leave nothing here to do.
func (ex *Executor) releaseOwned(owner types.ProcessId) {
	ex.heldMu.Lock()
	toks := ex.held[owner]
	delete(ex.held, owner)
	ex.heldMu.Unlock()
	for _, tok := range toks {
		ex.Resources.Release(tok)
	}
}

// Cancel stops id and every running descendant of id (spec.md §4.6): each
// node registered a context.CancelFunc when it started, so cancellation is
// propagated by calling every one of them rather than by mutating status
// directly — the running goroutines themselves observe ctx.Done() and
// unwind with ErrCancellation.
func (ex *Executor) Cancel(id types.ProcessId) {
	targets := append([]types.ProcessId{id}, ex.Tree.Subtree(id)...)
	ex.cancelMu.Lock()
	defer ex.cancelMu.Unlock()
	for _, t := range targets {
		if cancel, ok := ex.cancels[t]; ok {
			cancel()
		}
	}
}

// Run refines task(args...) as a new child of parent, blocking until it
// reaches a terminal status, and returns its result or failure (spec.md
// §4.4's task-refinement algorithm).
func (ex *Executor) Run(ctx context.Context, parent types.ProcessId, task string, args []types.Value) (types.Value, *types.EngineError) {
	decl, ok := ex.Registry.LookupTask(task)
	if !ok {
		return types.Value{}, types.NewError(types.ErrProgramming, "UNKNOWN_TASK", "no task declared for "+task)
	}
	id := ex.Tree.NewChild(parent, types.KindTask, decl.Label, args)
	ex.Tree.Start(id)
	cctx, cancel := context.WithCancel(ctx)
	ex.registerCancel(id, cancel)
	defer cancel()

	result, err := ex.refine(cctx, id, decl, args)
	ex.releaseOwned(id)
	if err != nil {
		status := types.StatusFailure
		if err.Kind == types.ErrCancellation {
			status = types.StatusCancelled
		}
		ex.Tree.Finish(id, status, types.Value{}, err)
		return types.Value{}, ex.withTrace(err, id)
	}
	ex.Tree.Finish(id, types.StatusSuccess, result, nil)
	return result, nil
}

// refine tries decl's methods, in the order ex.Policy ranks them, skipping
// any whose precondition does not hold; the first whose Body runs to
// success wins (spec.md §4.4 — "only ever reconsiders candidates on
// failure, never speculatively forks them").
func (ex *Executor) refine(ctx context.Context, taskID types.ProcessId, decl types.TaskDecl, args []types.Value) (types.Value, *types.EngineError) {
	methods := ex.Registry.Methods(decl.Label)
	if len(methods) == 0 {
		return types.Value{}, types.NewError(types.ErrRefinementFailure, "NO_METHODS_DECLARED", "task "+decl.Label+" has no declared methods")
	}

	snap := ex.WS.GetSnapshot()
	var candidates []selectpolicy.Candidate
	for _, m := range methods {
		env := eval.NewEnv()
		bindParams(env, m.Params, args, decl.Params)
		if !m.PreConditions.IsNone() {
			ok, perr := evalBoolPure(m.PreConditions, env, ex.Registry, snap)
			if perr != nil || !ok {
				continue
			}
		}
		candidates = append(candidates, selectpolicy.Candidate{Method: m, Args: args, Env: env})
	}
	if len(candidates) == 0 {
		return types.Value{}, types.NewError(types.ErrRefinementFailure, "NO_APPLICABLE_METHOD", "no method of "+decl.Label+" had a satisfiable precondition")
	}

	ranked, rerr := ex.Policy.Rank(ctx, candidates, ex.Registry, snap)
	if rerr != nil {
		return types.Value{}, rerr
	}

	var lastErr *types.EngineError
	for _, c := range ranked {
		select {
		case <-ctx.Done():
			return types.Value{}, types.NewError(types.ErrCancellation, "TASK_CANCELLED", "task "+decl.Label+" cancelled")
		default:
		}
		methodID := ex.Tree.NewChild(taskID, types.KindMethod, c.Method.Label, args)
		ex.Tree.Start(methodID)
		host := ex.newHost(methodID)
		result, err := eval.Eval(ctx, c.Method.Body, c.Env, ex.Registry, host)
		ex.releaseOwned(methodID)
		if err == nil {
			ex.Tree.Finish(methodID, types.StatusSuccess, result, nil)
			return result, nil
		}
		ee := toEngineError(err)
		status := types.StatusFailure
		if ee.Kind == types.ErrCancellation {
			status = types.StatusCancelled
		}
		ex.Tree.Finish(methodID, status, types.Value{}, ee)
		if ee.Kind == types.ErrCancellation {
			return types.Value{}, ee // cancellation never falls through to the next candidate
		}
		lastErr = ee
	}
	return types.Value{}, types.NewError(types.ErrRefinementFailure, "ALL_METHODS_FAILED",
		fmt.Sprintf("every candidate method of %s failed, last: %v", decl.Label, lastErr))
}

func (ex *Executor) withTrace(err *types.EngineError, id types.ProcessId) *types.EngineError {
	err.Trace = append(err.Trace, id)
	return err
}

func toEngineError(err error) *types.EngineError {
	if ee, ok := err.(*types.EngineError); ok {
		return ee
	}
	return types.NewError(types.ErrProgramming, "UNCLASSIFIED_ERROR", err.Error())
}

func evalBoolPure(expr types.Value, env *eval.Env, reg eval.Registry, reader eval.PureReader) (bool, *types.EngineError) {
	v, err := eval.EvalPure(expr, env, reg, reader)
	if err != nil {
		return false, toEngineError(err)
	}
	if v.Kind != types.KindBool {
		return false, types.NewError(types.ErrProgramming, "NON_BOOL_PREDICATE", "expected a bool result, got "+v.Kind.String())
	}
	return v.BoolV, nil
}

// bindParams binds a method's own parameters, then (for any task parameter
// name a method doesn't shadow) the task's arguments by the task's
// parameter names — methods commonly share the task's parameter list
// verbatim, but are free to declare their own.
func bindParams(env *eval.Env, methodParams []types.Param, args []types.Value, taskParams []types.Param) {
	for i, p := range taskParams {
		if i < len(args) {
			env.Bind("?"+p.Name, args[i])
		}
	}
	for i, p := range methodParams {
		if i < len(args) {
			env.Bind("?"+p.Name, args[i])
		}
	}
}
