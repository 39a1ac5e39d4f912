package eval

import (
	"context"
	"fmt"

	"github.com/ompas-labs/acting-core/internal/types"
)

// Eval evaluates expr against env, dispatching side-effecting forms to host.
// It is the entry point used by method/command bodies and lambda calls.
func Eval(ctx context.Context, expr types.Value, env *Env, reg Registry, host Host) (types.Value, error) {
	return eval(ctx, expr, env, reg, host)
}

// EvalPure evaluates expr with no Host available: any side-effecting form
// (assert, acquire, exec-command, wait-for, arbitrary, sub-task/command
// call) is a programming error, not a recoverable failure — monitor
// predicates and method preconditions/scores must be side-effect free by
// construction (spec.md §4.3, §4.4).
func EvalPure(expr types.Value, env *Env, reg Registry, reader PureReader) (types.Value, error) {
	return eval(context.Background(), expr, env, reg, &pureOnlyHost{reader})
}

// pureOnlyHost adapts a PureReader into a Host whose every effectful method
// fails loudly; eval's dispatcher is shared between Eval and EvalPure so the
// pure subset of the grammar (and, or, if, let, comparisons, state-function
// reads, ...) is implemented exactly once.
type pureOnlyHost struct{ PureReader }

func (pureOnlyHost) notAllowed(op string) *types.EngineError {
	return types.NewError(types.ErrProgramming, "IMPURE_IN_PURE_CONTEXT",
		fmt.Sprintf("%q is not allowed in a pure evaluation context (predicate/precondition/score)", op))
}
func (h pureOnlyHost) Assert(types.Partition, types.StateVariable, types.Value) {}
func (h pureOnlyHost) Retract(types.Partition, types.StateVariable)            {}
func (h pureOnlyHost) Acquire(context.Context, string, int, int) (types.Value, *types.EngineError) {
	return types.Value{}, h.notAllowed("acquire")
}
func (h pureOnlyHost) AcquireAny(context.Context, []types.ResourceRequest, int) (types.Value, string, *types.EngineError) {
	return types.Value{}, "", h.notAllowed("acquire-any")
}
func (h pureOnlyHost) Release(types.Value) *types.EngineError { return h.notAllowed("release") }
func (h pureOnlyHost) WaitFor(context.Context, types.Value, *Env) *types.EngineError {
	return h.notAllowed("wait-for")
}
func (h pureOnlyHost) ExecCommand(context.Context, string, []types.Value) (types.Value, *types.EngineError) {
	return types.Value{}, h.notAllowed("exec-command")
}
func (h pureOnlyHost) CallSubtask(context.Context, string, []types.Value) (types.Value, *types.EngineError) {
	return types.Value{}, h.notAllowed("sub-task call")
}
func (h pureOnlyHost) Arbitrary([]types.Value, types.Value) (types.Value, *types.EngineError) {
	return types.Value{}, h.notAllowed("arbitrary")
}

func progErr(code, format string, args ...any) error {
	return types.NewError(types.ErrProgramming, code, fmt.Sprintf(format, args...))
}

func eval(ctx context.Context, expr types.Value, env *Env, reg Registry, host Host) (types.Value, error) {
	switch expr.Kind {
	case types.KindInt, types.KindFloat, types.KindBool, types.KindNone, types.KindHandle, types.KindFuture, types.KindLambda:
		return expr, nil
	case types.KindSymbol:
		return evalSymbol(expr, env)
	case types.KindList:
		return evalList(ctx, expr, env, reg, host)
	default:
		return types.Value{}, progErr("UNEVALUABLE_VALUE", "cannot evaluate value of kind %s", expr.Kind)
	}
}

func evalSymbol(expr types.Value, env *Env) (types.Value, error) {
	if len(expr.Sym) > 0 && expr.Sym[0] == '?' {
		v, ok := env.Get(expr.Sym)
		if !ok {
			return types.Value{}, progErr("UNBOUND_VARIABLE", "unbound variable %s", expr.Sym)
		}
		return v, nil
	}
	return expr, nil // bare non-variable symbols are self-evaluating literals
}

func evalList(ctx context.Context, expr types.Value, env *Env, reg Registry, host Host) (types.Value, error) {
	if len(expr.List) == 0 {
		return types.Value{}, progErr("EMPTY_CALL", "cannot evaluate an empty list")
	}
	head := expr.List[0]
	if head.Kind != types.KindSymbol {
		return types.Value{}, progErr("BAD_CALL_HEAD", "list head must be a symbol, got %s", head.Kind)
	}
	args := expr.List[1:]

	if fn, ok := specialForms[head.Sym]; ok {
		return fn(ctx, args, env, reg, host)
	}
	return evalCall(ctx, head.Sym, args, env, reg, host)
}

// evalArgs evaluates every element of args against env in order.
func evalArgs(ctx context.Context, args []types.Value, env *Env, reg Registry, host Host) ([]types.Value, error) {
	out := make([]types.Value, len(args))
	for i, a := range args {
		v, err := eval(ctx, a, env, reg, host)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// evalStateVariable evaluates expr's elements as a literal state-variable
// key (used by assert/retract/wait-for's target): variables are resolved,
// but the head is never dispatched through the registry as a function call
// — (robot.busy r1) here names a fact key, not an invocation.
func evalStateVariable(expr types.Value, env *Env) (types.StateVariable, error) {
	if expr.Kind != types.KindList || len(expr.List) == 0 {
		return nil, progErr("BAD_STATE_VARIABLE", "expected a non-empty list naming a state variable, got %s", expr.Kind)
	}
	out := make([]types.Value, len(expr.List))
	for i, e := range expr.List {
		if e.Kind == types.KindSymbol {
			v, err := evalSymbol(e, env)
			if err != nil {
				return nil, err
			}
			out[i] = v
			continue
		}
		out[i] = e
	}
	return types.StateVariable(out), nil
}

func evalCall(ctx context.Context, label string, args []types.Value, env *Env, reg Registry, host Host) (types.Value, error) {
	if reg == nil {
		return evalRawStateVariableRead(ctx, label, args, env, reg, host)
	}

	if t, ok := reg.LookupTask(label); ok {
		vals, err := evalArgs(ctx, args, env, reg, host)
		if err != nil {
			return types.Value{}, err
		}
		v, ee := hostOrFail(host).CallSubtask(ctx, t.Label, vals)
		if ee != nil {
			return types.Value{}, ee
		}
		return v, nil
	}
	if c, ok := reg.LookupCommand(label); ok {
		vals, err := evalArgs(ctx, args, env, reg, host)
		if err != nil {
			return types.Value{}, err
		}
		v, ee := hostOrFail(host).ExecCommand(ctx, c.Label, vals)
		if ee != nil {
			return types.Value{}, ee
		}
		return v, nil
	}
	if l, ok := reg.LookupLambda(label); ok {
		if l.Expression.Kind != types.KindLambda || l.Expression.Lambda == nil {
			return types.Value{}, progErr("BAD_LAMBDA_DECL", "lambda %s has no (lambda (params...) body) expression", label)
		}
		vals, err := evalArgs(ctx, args, env, reg, host)
		if err != nil {
			return types.Value{}, err
		}
		return applyLambda(ctx, l.Expression.Lambda, vals, env, reg, host)
	}
	if sf, ok := reg.LookupStateFunction(label); ok {
		return evalStateFunction(ctx, sf, args, env, reg, host)
	}
	// label names no domain declaration: treat it as a direct state-variable
	// read, exactly like the implicit reader of a state function with no
	// custom Reader body. This lets monitor predicates and method bodies
	// reference facts ad hoc without a State-function declaration for every
	// one of them, and keeps "absent" a non-error outcome (spec.md §4.1).
	return evalRawStateVariableRead(ctx, label, args, env, reg, host)
}

func evalRawStateVariableRead(ctx context.Context, label string, args []types.Value, env *Env, reg Registry, host Host) (types.Value, error) {
	vals, err := evalArgs(ctx, args, env, reg, host)
	if err != nil {
		return types.Value{}, err
	}
	sv := make(types.StateVariable, len(vals)+1)
	sv[0] = types.Sym(label)
	copy(sv[1:], vals)
	v, _ := host.Get(sv) // absent read yields the zero (KindNone) Value, never an error
	return v, nil
}

func hostOrFail(host Host) Host {
	if host == nil {
		return pureOnlyHost{}
	}
	return host
}

func evalStateFunction(ctx context.Context, sf types.StateFunctionDecl, args []types.Value, env *Env, reg Registry, host Host) (types.Value, error) {
	vals, err := evalArgs(ctx, args, env, reg, host)
	if err != nil {
		return types.Value{}, err
	}
	sv := make(types.StateVariable, len(vals)+1)
	sv[0] = types.Sym(sf.Label)
	copy(sv[1:], vals)

	fact, present := host.Get(sv)

	if sf.Reader.IsNone() {
		if !present {
			return types.Value{}, nil // absent reads yield KindNone, never an error
		}
		return fact, nil
	}

	child := env.Child()
	for i, p := range sf.Params {
		if i < len(vals) {
			child.Bind("?"+p.Name, vals[i])
		}
	}
	child.Bind("?self", fact)
	return eval(ctx, sf.Reader, child, reg, host)
}

func applyLambda(ctx context.Context, l *types.LambdaExpr, args []types.Value, env *Env, reg Registry, host Host) (types.Value, error) {
	child := env.ChildWithParams(l.Params, args)
	return eval(ctx, l.Body, child, reg, host)
}
