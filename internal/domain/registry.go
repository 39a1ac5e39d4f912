// Package domain implements C8: the domain registry — the immutable-once-
// loaded table of task/method/command/state-function/lambda declarations
// and the type hierarchy they're defined over (spec.md §3, §6).
package domain

import (
	"fmt"
	"sync"

	"github.com/ompas-labs/acting-core/internal/types"
)

// Registry is C8. It is mutable only while being built (Add* calls);
// Freeze makes it read-only, matching spec.md §6's load-then-run lifecycle
// — a domain error discovered after Freeze is a programming error, not a
// recoverable one.
type Registry struct {
	mu     sync.RWMutex
	frozen bool

	tasks     map[string]types.TaskDecl
	methods   map[string][]types.MethodDecl // keyed by TaskLabel
	commands  map[string]types.CommandDecl
	stateFns  map[string]types.StateFunctionDecl
	lambdas   map[string]types.LambdaDecl
}

// New creates an empty, unfrozen Registry.
func New() *Registry {
	return &Registry{
		tasks:    make(map[string]types.TaskDecl),
		methods:  make(map[string][]types.MethodDecl),
		commands: make(map[string]types.CommandDecl),
		stateFns: make(map[string]types.StateFunctionDecl),
		lambdas:  make(map[string]types.LambdaDecl),
	}
}

func (r *Registry) checkUnfrozen(what, label string) {
	if r.frozen {
		panic(fmt.Sprintf("domain: cannot add %s %q after Freeze", what, label))
	}
}

// AddTask registers a task declaration. Panics on a duplicate label — a
// redefined task is a domain-loading error, fatal at load (spec.md §7).
func (r *Registry) AddTask(t types.TaskDecl) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkUnfrozen("task", t.Label)
	if _, exists := r.tasks[t.Label]; exists {
		panic(fmt.Sprintf("domain: task %q redeclared", t.Label))
	}
	r.tasks[t.Label] = t
}

// AddMethod registers a method under its TaskLabel. The owning task need
// not already be registered (declaration order is not prescribed), but must
// exist by the time Freeze is called.
func (r *Registry) AddMethod(m types.MethodDecl) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkUnfrozen("method", m.Label)
	for _, existing := range r.methods[m.TaskLabel] {
		if existing.Label == m.Label {
			panic(fmt.Sprintf("domain: method %q redeclared for task %q", m.Label, m.TaskLabel))
		}
	}
	r.methods[m.TaskLabel] = append(r.methods[m.TaskLabel], m)
}

// AddCommand registers a command declaration.
func (r *Registry) AddCommand(c types.CommandDecl) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkUnfrozen("command", c.Label)
	if _, exists := r.commands[c.Label]; exists {
		panic(fmt.Sprintf("domain: command %q redeclared", c.Label))
	}
	r.commands[c.Label] = c
}

// AddStateFunction registers a state-function declaration.
func (r *Registry) AddStateFunction(sf types.StateFunctionDecl) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkUnfrozen("state function", sf.Label)
	if _, exists := r.stateFns[sf.Label]; exists {
		panic(fmt.Sprintf("domain: state function %q redeclared", sf.Label))
	}
	r.stateFns[sf.Label] = sf
}

// AddLambda registers a lambda declaration.
func (r *Registry) AddLambda(l types.LambdaDecl) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkUnfrozen("lambda", l.Label)
	if _, exists := r.lambdas[l.Label]; exists {
		panic(fmt.Sprintf("domain: lambda %q redeclared", l.Label))
	}
	r.lambdas[l.Label] = l
}

// Freeze validates cross-references (every method's TaskLabel names a
// registered task) and makes the registry read-only. Returns a domain error
// — fatal at load, recoverable by the caller only in the sense that it can
// refuse to start the engine (spec.md §7) — rather than panicking, since
// this is the one validation pass expected to plausibly fail on a bad
// domain file.
func (r *Registry) Freeze() *types.EngineError {
	r.mu.Lock()
	defer r.mu.Unlock()
	for taskLabel := range r.methods {
		if _, ok := r.tasks[taskLabel]; !ok {
			return types.NewError(types.ErrDomain, "METHOD_FOR_UNKNOWN_TASK",
				fmt.Sprintf("method(s) declared for unknown task %q", taskLabel))
		}
	}
	r.frozen = true
	return nil
}

// LookupTask implements eval.Registry.
func (r *Registry) LookupTask(label string) (types.TaskDecl, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[label]
	return t, ok
}

// LookupCommand implements eval.Registry.
func (r *Registry) LookupCommand(label string) (types.CommandDecl, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.commands[label]
	return c, ok
}

// LookupStateFunction implements eval.Registry.
func (r *Registry) LookupStateFunction(label string) (types.StateFunctionDecl, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sf, ok := r.stateFns[label]
	return sf, ok
}

// LookupLambda implements eval.Registry.
func (r *Registry) LookupLambda(label string) (types.LambdaDecl, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lambdas[label]
	return l, ok
}

// Methods returns every method declared for task, in declaration order —
// the candidate list C5's refinement executor selects among (spec.md §4.4).
func (r *Registry) Methods(taskLabel string) []types.MethodDecl {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.MethodDecl, len(r.methods[taskLabel]))
	copy(out, r.methods[taskLabel])
	return out
}

// Task returns a task declaration by label.
func (r *Registry) Task(label string) (types.TaskDecl, bool) {
	return r.LookupTask(label)
}

// Command returns a command declaration by label.
func (r *Registry) Command(label string) (types.CommandDecl, bool) {
	return r.LookupCommand(label)
}

// Tasks lists every registered task label.
func (r *Registry) Tasks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tasks))
	for l := range r.tasks {
		out = append(out, l)
	}
	return out
}
