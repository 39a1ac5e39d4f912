// Package eval is the sandboxed expression evaluator shared by method bodies,
// command models, state-function readers, and lambda expressions (spec.md
// §3, §9's redesign note). Expressions are homoiconic: a types.Value list
// whose head symbol names an operator, in the Lisp heritage of the original
// evaluator this spec distills (original_source/lisp/src/core.rs's LEnv).
package eval

import "github.com/ompas-labs/acting-core/internal/types"

// Env is a lexical scope: a symbol-to-Value binding table that may chain to
// an outer scope. Lookups walk outward; Bind only ever writes the frame it is
// called on — there is no mutation of an outer frame from an inner one.
type Env struct {
	vars  map[string]types.Value
	outer *Env
}

// NewEnv creates a root scope with no outer.
func NewEnv() *Env {
	return &Env{vars: make(map[string]types.Value)}
}

// Child creates a new scope nested under e.
func (e *Env) Child() *Env {
	return &Env{vars: make(map[string]types.Value), outer: e}
}

// Bind sets name in this scope, shadowing any outer binding.
func (e *Env) Bind(name string, v types.Value) {
	e.vars[name] = v
}

// Get looks up name, walking outward through enclosing scopes.
func (e *Env) Get(name string) (types.Value, bool) {
	for s := e; s != nil; s = s.outer {
		if v, ok := s.vars[name]; ok {
			return v, true
		}
	}
	return types.Value{}, false
}

// ChildWithParams creates a child scope binding each param name to the
// corresponding evaluated argument value (spec.md's method/lambda/command
// parameter lists). Panics if the arities disagree — a mismatched call is a
// domain-validation defect that should have been caught before runtime.
func (e *Env) ChildWithParams(params []string, args []types.Value) *Env {
	if len(params) != len(args) {
		panic("eval: parameter/argument arity mismatch")
	}
	c := e.Child()
	for i, p := range params {
		c.Bind(p, args[i])
	}
	return c
}
