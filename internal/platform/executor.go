// Package platform is the command-execution boundary (spec.md §3's
// Non-goals: real robot/hardware I/O is out of scope for this engine —
// CommandExecutor is the seam a real platform integration would implement).
// LocalSimulator is the one concrete executor this repo ships: it runs a
// command's declared Body against world state on a simulated timer, enough
// to drive C5's refinement loop and the S1-S6 scenarios end to end.
package platform

import (
	"context"
	"time"

	"github.com/ompas-labs/acting-core/internal/domain"
	"github.com/ompas-labs/acting-core/internal/eval"
	"github.com/ompas-labs/acting-core/internal/types"
	"github.com/ompas-labs/acting-core/internal/worldstate"
)

// CommandExecutor is the interface internal/executor dispatches every
// exec-command call through. A production deployment swaps LocalSimulator
// for a gRPC/ROS/serial bridge to real actuators without touching C5.
type CommandExecutor interface {
	Execute(ctx context.Context, label string, args []types.Value) (types.Value, *types.EngineError)
}

// defaultCommandTimeout bounds a simulated command the way RunShell bounds a
// real subprocess — a command with no declared Cost still cannot hang the
// engine forever.
const defaultCommandTimeout = 30 * time.Second

// stepDuration is how long one unit of a command's declared Cost simulates
// as — tuned for fast tests, not realism.
const stepDuration = 20 * time.Millisecond

// LocalSimulator executes commands by evaluating their declared Body against
// world state after a simulated delay proportional to their Cost.
type LocalSimulator struct {
	ws  *worldstate.WorldState
	reg *domain.Registry
}

// NewLocalSimulator creates a simulator over ws and reg.
func NewLocalSimulator(ws *worldstate.WorldState, reg *domain.Registry) *LocalSimulator {
	return &LocalSimulator{ws: ws, reg: reg}
}

// Execute runs label(args...)'s Body, simulating Cost units of delay first.
// Returns a CommandFailure error if ctx is cancelled during the delay, and
// a ProgrammingError if label names no command.
func (s *LocalSimulator) Execute(ctx context.Context, label string, args []types.Value) (types.Value, *types.EngineError) {
	cmd, ok := s.reg.LookupCommand(label)
	if !ok {
		return types.Value{}, types.NewError(types.ErrProgramming, "UNKNOWN_COMMAND", "no command declared for "+label)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultCommandTimeout)
	defer cancel()

	delay := stepDuration
	if !cmd.Cost.IsNone() {
		env := eval.NewEnv()
		bindParams(env, cmd.Params, args)
		if costV, err := eval.Eval(ctx, cmd.Cost, env, s.reg, commandHost{s.ws}); err == nil && costV.Kind == types.KindInt && costV.IntV > 0 {
			delay = time.Duration(costV.IntV) * stepDuration
		}
	}

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return types.Value{}, types.NewError(types.ErrCommandFailure, "COMMAND_CANCELLED", "command "+label+" cancelled before completion")
	}

	body := cmd.Body
	if body.IsNone() {
		body = cmd.Model // no real implementation: fall back to the planner's effect model
	}
	if body.IsNone() {
		return types.Bool(true), nil // a command with neither Body nor Model simply succeeds
	}

	env := eval.NewEnv()
	bindParams(env, cmd.Params, args)
	result, err := eval.Eval(ctx, body, env, s.reg, commandHost{s.ws})
	if err != nil {
		if ee, ok := err.(*types.EngineError); ok {
			return types.Value{}, ee
		}
		return types.Value{}, types.NewError(types.ErrCommandFailure, "COMMAND_BODY_ERROR", err.Error())
	}
	return result, nil
}

func bindParams(env *eval.Env, params []types.Param, args []types.Value) {
	for i, p := range params {
		if i < len(args) {
			env.Bind("?"+p.Name, args[i])
		}
	}
}

// commandHost is the restricted eval.Host a command Body runs against:
// commands are leaves of the acting tree and may touch world state, but
// must never acquire resources, wait, or call back into refinement — that
// belongs to the method that dispatched them (spec.md §4.4).
type commandHost struct {
	ws *worldstate.WorldState
}

func (h commandHost) Get(sv types.StateVariable) (types.Value, bool) { return h.ws.Get(sv) }
func (h commandHost) InstanceOf(obj, typ string) bool                { return h.ws.InstanceOf(obj, typ) }
func (h commandHost) Assert(part types.Partition, sv types.StateVariable, val types.Value) {
	h.ws.AddFact(part, sv, val)
}
func (h commandHost) Retract(part types.Partition, sv types.StateVariable) {
	h.ws.RetractFact(part, sv)
}

func (h commandHost) notAllowed(op string) *types.EngineError {
	return types.NewError(types.ErrProgramming, "NOT_ALLOWED_IN_COMMAND_BODY", op+" is not allowed inside a command body")
}
func (h commandHost) Acquire(context.Context, string, int, int) (types.Value, *types.EngineError) {
	return types.Value{}, h.notAllowed("acquire")
}
func (h commandHost) AcquireAny(context.Context, []types.ResourceRequest, int) (types.Value, string, *types.EngineError) {
	return types.Value{}, "", h.notAllowed("acquire-any")
}
func (h commandHost) Release(types.Value) *types.EngineError { return h.notAllowed("release") }
func (h commandHost) WaitFor(context.Context, types.Value, *eval.Env) *types.EngineError {
	return h.notAllowed("wait-for")
}
func (h commandHost) ExecCommand(context.Context, string, []types.Value) (types.Value, *types.EngineError) {
	return types.Value{}, h.notAllowed("exec-command")
}
func (h commandHost) CallSubtask(context.Context, string, []types.Value) (types.Value, *types.EngineError) {
	return types.Value{}, h.notAllowed("sub-task call")
}
func (h commandHost) Arbitrary([]types.Value, types.Value) (types.Value, *types.EngineError) {
	return types.Value{}, h.notAllowed("arbitrary")
}
