package eval

import (
	"context"

	"github.com/ompas-labs/acting-core/internal/types"
)

type specialForm func(ctx context.Context, args []types.Value, env *Env, reg Registry, host Host) (types.Value, error)

var specialForms map[string]specialForm

func init() {
	specialForms = map[string]specialForm{
		"quote":        evalQuote,
		"if":           evalIf,
		"and":          evalAnd,
		"or":           evalOr,
		"not":          evalNot,
		"let":          evalLet,
		"begin":        evalBegin,
		"do":           evalBegin,
		"lambda":       evalLambdaForm,
		"assert":       evalAssert(types.PartitionDynamic),
		"assert-inner": evalAssert(types.PartitionInnerWorld),
		"retract":      evalRetract(types.PartitionDynamic),
		"retract-inner": evalRetract(types.PartitionInnerWorld),
		"acquire":      evalAcquire,
		"acquire-any":  evalAcquireAny,
		"release":      evalRelease,
		"wait-for":     evalWaitFor,
		"exec-command": evalExecCommand,
		"arbitrary":    evalArbitrary,
		"check":        evalCheck,
		"+":            numericFold("+"),
		"-":            numericFold("-"),
		"*":            numericFold("*"),
		"/":            numericFold("/"),
		"=":            comparison("="),
		"<":            comparison("<"),
		"<=":           comparison("<="),
		">":            comparison(">"),
		">=":           comparison(">="),
	}
}

func evalQuote(_ context.Context, args []types.Value, _ *Env, _ Registry, _ Host) (types.Value, error) {
	if len(args) != 1 {
		return types.Value{}, progErr("BAD_QUOTE", "quote takes exactly one argument")
	}
	return args[0], nil
}

func evalIf(ctx context.Context, args []types.Value, env *Env, reg Registry, host Host) (types.Value, error) {
	if len(args) < 2 || len(args) > 3 {
		return types.Value{}, progErr("BAD_IF", "if takes (cond then [else]), got %d arguments", len(args))
	}
	cond, err := eval(ctx, args[0], env, reg, host)
	if err != nil {
		return types.Value{}, err
	}
	if cond.Kind != types.KindBool {
		return types.Value{}, progErr("BAD_IF_COND", "if condition must evaluate to a bool, got %s", cond.Kind)
	}
	if cond.BoolV {
		return eval(ctx, args[1], env, reg, host)
	}
	if len(args) == 3 {
		return eval(ctx, args[2], env, reg, host)
	}
	return types.Value{}, nil
}

func evalAnd(ctx context.Context, args []types.Value, env *Env, reg Registry, host Host) (types.Value, error) {
	for _, a := range args {
		v, err := eval(ctx, a, env, reg, host)
		if err != nil {
			return types.Value{}, err
		}
		if v.Kind != types.KindBool {
			return types.Value{}, progErr("BAD_AND_OPERAND", "and operands must be bool, got %s", v.Kind)
		}
		if !v.BoolV {
			return types.Bool(false), nil
		}
	}
	return types.Bool(true), nil
}

func evalOr(ctx context.Context, args []types.Value, env *Env, reg Registry, host Host) (types.Value, error) {
	for _, a := range args {
		v, err := eval(ctx, a, env, reg, host)
		if err != nil {
			return types.Value{}, err
		}
		if v.Kind != types.KindBool {
			return types.Value{}, progErr("BAD_OR_OPERAND", "or operands must be bool, got %s", v.Kind)
		}
		if v.BoolV {
			return types.Bool(true), nil
		}
	}
	return types.Bool(false), nil
}

func evalNot(ctx context.Context, args []types.Value, env *Env, reg Registry, host Host) (types.Value, error) {
	if len(args) != 1 {
		return types.Value{}, progErr("BAD_NOT", "not takes exactly one argument")
	}
	v, err := eval(ctx, args[0], env, reg, host)
	if err != nil {
		return types.Value{}, err
	}
	if v.Kind != types.KindBool {
		return types.Value{}, progErr("BAD_NOT_OPERAND", "not operand must be bool, got %s", v.Kind)
	}
	return types.Bool(!v.BoolV), nil
}

// evalLet implements (let ((?x expr) (?y expr)...) body) with sequential
// (let*) binding semantics: each binding sees the ones before it.
func evalLet(ctx context.Context, args []types.Value, env *Env, reg Registry, host Host) (types.Value, error) {
	if len(args) != 2 || args[0].Kind != types.KindList {
		return types.Value{}, progErr("BAD_LET", "let takes (let (bindings...) body)")
	}
	child := env.Child()
	for _, b := range args[0].List {
		if b.Kind != types.KindList || len(b.List) != 2 || b.List[0].Kind != types.KindSymbol {
			return types.Value{}, progErr("BAD_LET_BINDING", "each let binding must be (?name expr)")
		}
		v, err := eval(ctx, b.List[1], child, reg, host)
		if err != nil {
			return types.Value{}, err
		}
		child.Bind(b.List[0].Sym, v)
	}
	return eval(ctx, args[1], child, reg, host)
}

func evalBegin(ctx context.Context, args []types.Value, env *Env, reg Registry, host Host) (types.Value, error) {
	var result types.Value
	for _, a := range args {
		v, err := eval(ctx, a, env, reg, host)
		if err != nil {
			return types.Value{}, err
		}
		result = v
	}
	return result, nil
}

func evalLambdaForm(_ context.Context, args []types.Value, _ *Env, _ Registry, _ Host) (types.Value, error) {
	if len(args) != 2 || args[0].Kind != types.KindList {
		return types.Value{}, progErr("BAD_LAMBDA", "lambda takes (lambda (params...) body)")
	}
	params := make([]string, len(args[0].List))
	for i, p := range args[0].List {
		if p.Kind != types.KindSymbol {
			return types.Value{}, progErr("BAD_LAMBDA_PARAM", "lambda parameters must be symbols")
		}
		params[i] = p.Sym
	}
	return types.Value{Kind: types.KindLambda, Lambda: &types.LambdaExpr{Params: params, Body: args[1]}}, nil
}

func evalAssert(part types.Partition) specialForm {
	return func(ctx context.Context, args []types.Value, env *Env, reg Registry, host Host) (types.Value, error) {
		if len(args) != 2 {
			return types.Value{}, progErr("BAD_ASSERT", "assert takes (sv value)")
		}
		if p, pure := host.(*pureOnlyHost); pure {
			return types.Value{}, p.notAllowed("assert")
		}
		sv, err := evalStateVariable(args[0], env)
		if err != nil {
			return types.Value{}, err
		}
		val, err := eval(ctx, args[1], env, reg, host)
		if err != nil {
			return types.Value{}, err
		}
		host.Assert(part, sv, val)
		return val, nil
	}
}

func evalRetract(part types.Partition) specialForm {
	return func(ctx context.Context, args []types.Value, env *Env, reg Registry, host Host) (types.Value, error) {
		if len(args) != 1 {
			return types.Value{}, progErr("BAD_RETRACT", "retract takes (sv)")
		}
		if p, pure := host.(*pureOnlyHost); pure {
			return types.Value{}, p.notAllowed("retract")
		}
		sv, err := evalStateVariable(args[0], env)
		if err != nil {
			return types.Value{}, err
		}
		host.Retract(part, sv)
		return types.Value{}, nil
	}
}

func evalAcquire(ctx context.Context, args []types.Value, env *Env, reg Registry, host Host) (types.Value, error) {
	if len(args) != 3 {
		return types.Value{}, progErr("BAD_ACQUIRE", "acquire takes (label amount priority)")
	}
	label, err := evalSymbolLiteral(ctx, args[0], env, reg, host)
	if err != nil {
		return types.Value{}, err
	}
	amount, err := evalInt(ctx, args[1], env, reg, host)
	if err != nil {
		return types.Value{}, err
	}
	priority, err := evalInt(ctx, args[2], env, reg, host)
	if err != nil {
		return types.Value{}, err
	}
	handle, engErr := host.Acquire(ctx, label, int(amount), int(priority))
	if engErr != nil {
		return types.Value{}, engErr
	}
	return handle, nil
}

func evalAcquireAny(ctx context.Context, args []types.Value, env *Env, reg Registry, host Host) (types.Value, error) {
	if len(args) != 2 || args[0].Kind != types.KindList {
		return types.Value{}, progErr("BAD_ACQUIRE_ANY", "acquire-any takes ((label amount)...) priority")
	}
	reqs := make([]types.ResourceRequest, len(args[0].List))
	for i, c := range args[0].List {
		if c.Kind != types.KindList || len(c.List) != 2 {
			return types.Value{}, progErr("BAD_ACQUIRE_ANY_CANDIDATE", "each acquire-any candidate must be (label amount)")
		}
		label, err := evalSymbolLiteral(ctx, c.List[0], env, reg, host)
		if err != nil {
			return types.Value{}, err
		}
		amount, err := evalInt(ctx, c.List[1], env, reg, host)
		if err != nil {
			return types.Value{}, err
		}
		reqs[i] = types.ResourceRequest{Label: label, Amount: int(amount)}
	}
	priority, err := evalInt(ctx, args[1], env, reg, host)
	if err != nil {
		return types.Value{}, err
	}
	handle, label, engErr := host.AcquireAny(ctx, reqs, int(priority))
	if engErr != nil {
		return types.Value{}, engErr
	}
	return types.List(handle, types.Sym(label)), nil
}

func evalRelease(ctx context.Context, args []types.Value, env *Env, reg Registry, host Host) (types.Value, error) {
	if len(args) != 1 {
		return types.Value{}, progErr("BAD_RELEASE", "release takes (handle)")
	}
	handle, err := eval(ctx, args[0], env, reg, host)
	if err != nil {
		return types.Value{}, err
	}
	if engErr := host.Release(handle); engErr != nil {
		return types.Value{}, engErr
	}
	return types.Value{}, nil
}

func evalWaitFor(ctx context.Context, args []types.Value, env *Env, _ Registry, host Host) (types.Value, error) {
	if len(args) != 1 {
		return types.Value{}, progErr("BAD_WAIT_FOR", "wait-for takes (predicate)")
	}
	if engErr := host.WaitFor(ctx, args[0], env); engErr != nil {
		return types.Value{}, engErr
	}
	return types.Value{}, nil
}

func evalExecCommand(ctx context.Context, args []types.Value, env *Env, reg Registry, host Host) (types.Value, error) {
	if len(args) < 1 {
		return types.Value{}, progErr("BAD_EXEC_COMMAND", "exec-command takes (label args...)")
	}
	label, err := evalSymbolLiteral(ctx, args[0], env, reg, host)
	if err != nil {
		return types.Value{}, err
	}
	vals, err := evalArgs(ctx, args[1:], env, reg, host)
	if err != nil {
		return types.Value{}, err
	}
	result, engErr := host.ExecCommand(ctx, label, vals)
	if engErr != nil {
		return types.Value{}, engErr
	}
	return result, nil
}

func evalArbitrary(ctx context.Context, args []types.Value, env *Env, reg Registry, host Host) (types.Value, error) {
	if len(args) < 1 || len(args) > 2 || args[0].Kind != types.KindList {
		return types.Value{}, progErr("BAD_ARBITRARY", "arbitrary takes (candidates [chooser])")
	}
	candidates, err := evalArgs(ctx, args[0].List, env, reg, host)
	if err != nil {
		return types.Value{}, err
	}
	var chooser types.Value
	if len(args) == 2 {
		chooser, err = eval(ctx, args[1], env, reg, host)
		if err != nil {
			return types.Value{}, err
		}
	}
	chosen, engErr := host.Arbitrary(candidates, chooser)
	if engErr != nil {
		return types.Value{}, engErr
	}
	return chosen, nil
}

// evalCheck implements a method precondition/assertion: a false result is a
// recoverable refinement failure (the caller should try the next candidate
// method), never a programming error (spec.md §7).
func evalCheck(ctx context.Context, args []types.Value, env *Env, reg Registry, host Host) (types.Value, error) {
	if len(args) != 1 {
		return types.Value{}, progErr("BAD_CHECK", "check takes exactly one expression")
	}
	v, err := eval(ctx, args[0], env, reg, host)
	if err != nil {
		return types.Value{}, err
	}
	if v.Kind != types.KindBool {
		return types.Value{}, progErr("BAD_CHECK_RESULT", "check expression must evaluate to a bool, got %s", v.Kind)
	}
	if !v.BoolV {
		return types.Value{}, types.NewError(types.ErrRefinementFailure, "CHECK_FAILED", "check failed")
	}
	return types.Bool(true), nil
}

// evalSymbolLiteral evaluates expr and requires a symbol result — used for
// resource/command labels, which may be a bound variable (e.g. ?r) or a bare
// literal symbol.
func evalSymbolLiteral(ctx context.Context, expr types.Value, env *Env, reg Registry, host Host) (string, error) {
	v, err := eval(ctx, expr, env, reg, host)
	if err != nil {
		return "", err
	}
	if v.Kind != types.KindSymbol {
		return "", progErr("BAD_LABEL", "expected a symbol, got %s", v.Kind)
	}
	return v.Sym, nil
}

func evalInt(ctx context.Context, expr types.Value, env *Env, reg Registry, host Host) (int64, error) {
	v, err := eval(ctx, expr, env, reg, host)
	if err != nil {
		return 0, err
	}
	switch v.Kind {
	case types.KindInt:
		return v.IntV, nil
	case types.KindFloat:
		return int64(v.FloatV), nil
	default:
		return 0, progErr("BAD_INT", "expected an int, got %s", v.Kind)
	}
}
