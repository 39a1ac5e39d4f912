package eval

import "github.com/ompas-labs/acting-core/internal/types"

// Registry resolves a call-position symbol to its domain declaration. It is
// satisfied by internal/domain.Registry; eval depends only on this narrow
// interface so it never imports the domain package (which in turn never
// imports eval — Values are data, not a reason for either side to know the
// other's concrete type).
type Registry interface {
	LookupTask(label string) (types.TaskDecl, bool)
	LookupCommand(label string) (types.CommandDecl, bool)
	LookupStateFunction(label string) (types.StateFunctionDecl, bool)
	LookupLambda(label string) (types.LambdaDecl, bool)
}
