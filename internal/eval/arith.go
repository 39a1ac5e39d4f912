package eval

import (
	"context"

	"github.com/ompas-labs/acting-core/internal/types"
)

func asFloat(v types.Value) (float64, bool) {
	switch v.Kind {
	case types.KindInt:
		return float64(v.IntV), true
	case types.KindFloat:
		return v.FloatV, true
	default:
		return 0, false
	}
}

// numericFold implements +, -, *, / over a variadic argument list, staying
// in Int as long as every operand is an Int and promoting to Float the
// moment one isn't — the same widening rule method scores and command costs
// rely on (spec.md §3's numbers).
func numericFold(op string) specialForm {
	return func(ctx context.Context, args []types.Value, env *Env, reg Registry, host Host) (types.Value, error) {
		if len(args) == 0 {
			return types.Value{}, progErr("BAD_ARITH", "%s takes at least one argument", op)
		}
		vals, err := evalArgs(ctx, args, env, reg, host)
		if err != nil {
			return types.Value{}, err
		}
		allInt := true
		for _, v := range vals {
			if v.Kind != types.KindInt {
				allInt = false
			}
			if v.Kind != types.KindInt && v.Kind != types.KindFloat {
				return types.Value{}, progErr("BAD_ARITH_OPERAND", "%s operands must be numeric, got %s", op, v.Kind)
			}
		}
		if allInt {
			acc := vals[0].IntV
			for _, v := range vals[1:] {
				acc = intFold(op, acc, v.IntV)
			}
			if op == "-" && len(vals) == 1 {
				acc = -vals[0].IntV
			}
			return types.Int(acc), nil
		}
		accf, _ := asFloat(vals[0])
		for _, v := range vals[1:] {
			f, _ := asFloat(v)
			accf = floatFold(op, accf, f)
		}
		if op == "-" && len(vals) == 1 {
			accf = -accf
		}
		return types.Float(accf), nil
	}
}

func intFold(op string, a, b int64) int64 {
	switch op {
	case "+":
		return a + b
	case "-":
		return a - b
	case "*":
		return a * b
	case "/":
		return a / b
	default:
		panic("eval: unknown numeric op " + op)
	}
}

func floatFold(op string, a, b float64) float64 {
	switch op {
	case "+":
		return a + b
	case "-":
		return a - b
	case "*":
		return a * b
	case "/":
		return a / b
	default:
		panic("eval: unknown numeric op " + op)
	}
}

// comparison implements =, <, <=, >, >= over exactly two operands. = accepts
// any two values (numbers compare numerically, everything else — symbols,
// bools, lists — by Value.Equal); the ordering operators require numbers.
func comparison(op string) specialForm {
	return func(ctx context.Context, args []types.Value, env *Env, reg Registry, host Host) (types.Value, error) {
		if len(args) != 2 {
			return types.Value{}, progErr("BAD_COMPARISON", "%s takes exactly two arguments", op)
		}
		a, err := eval(ctx, args[0], env, reg, host)
		if err != nil {
			return types.Value{}, err
		}
		b, err := eval(ctx, args[1], env, reg, host)
		if err != nil {
			return types.Value{}, err
		}
		if op == "=" {
			return types.Bool(equalForComparison(a, b)), nil
		}
		af, aok := asFloat(a)
		bf, bok := asFloat(b)
		if !aok || !bok {
			return types.Value{}, progErr("BAD_COMPARISON_OPERAND", "%s requires numeric operands, got %s and %s", op, a.Kind, b.Kind)
		}
		switch op {
		case "<":
			return types.Bool(af < bf), nil
		case "<=":
			return types.Bool(af <= bf), nil
		case ">":
			return types.Bool(af > bf), nil
		case ">=":
			return types.Bool(af >= bf), nil
		default:
			panic("eval: unknown comparison op " + op)
		}
	}
}

func equalForComparison(a, b types.Value) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
	}
	return a.Equal(b)
}
