// Package exampledomain is a small, hand-written domain standing in for a
// domain file (domain-file parsing is out of scope): one robot fetching
// items from shelves using a shared gripper resource, charging when idle,
// and waiting on a dock being free before docking — enough to exercise
// method retry, resource contention, wait-for, and subtask calls end to end.
package exampledomain

import (
	"github.com/ompas-labs/acting-core/internal/domain"
	"github.com/ompas-labs/acting-core/internal/types"
)

func sym(s string) types.Value  { return types.Sym(s) }
func list(vs ...types.Value) types.Value { return types.List(vs...) }

// Build returns a frozen Registry for the robot-fetch domain.
func Build() *domain.Registry {
	reg := domain.New()

	reg.AddStateFunction(types.StateFunctionDecl{
		Label:      "item-location",
		Params:     []types.Param{{Name: "item"}},
		ResultType: "symbol",
	})

	// fetch(item, dest): grip the item, move it to dest, release the gripper.
	reg.AddTask(types.TaskDecl{
		Label:  "fetch",
		Params: []types.Param{{Name: "item"}, {Name: "dest"}},
	})
	reg.AddCommand(types.CommandDecl{
		Label:  "pick_up",
		Params: []types.Param{{Name: "item"}},
		Cost:   types.Int(1),
		Body: list(sym("assert"),
			list(sym("held"), sym("?item")), types.Bool(true)),
	})
	reg.AddCommand(types.CommandDecl{
		Label:  "place_at",
		Params: []types.Param{{Name: "item"}, {Name: "dest"}},
		Cost:   types.Int(1),
		Body: list(sym("begin"),
			list(sym("retract"), list(sym("held"), sym("?item"))),
			list(sym("assert"), list(sym("item-location"), sym("?item")), sym("?dest"))),
	})
	reg.AddMethod(types.MethodDecl{
		Label:     "m_fetch_with_gripper",
		TaskLabel: "fetch",
		Params:    []types.Param{{Name: "item"}, {Name: "dest"}},
		Body: list(sym("let"),
			list(list(sym("?g"), list(sym("acquire"), sym("gripper"), types.Int(1), types.Int(0)))),
			list(sym("begin"),
				list(sym("exec-command"), sym("pick_up"), sym("?item")),
				list(sym("exec-command"), sym("place_at"), sym("?item"), sym("?dest")),
				list(sym("release"), sym("?g")))),
	})

	// dock(): wait for the dock to be free, then mark it occupied.
	reg.AddTask(types.TaskDecl{Label: "dock"})
	reg.AddMethod(types.MethodDecl{
		Label:     "m_dock_when_free",
		TaskLabel: "dock",
		Body: list(sym("begin"),
			list(sym("wait-for"), list(sym("="), list(sym("dock.occupied")), types.Bool(false))),
			list(sym("assert"), list(sym("dock.occupied")), types.Bool(true))),
	})

	// charge(): run the charging command. The first method applies only when
	// the robot is already docked and skips docking; the second docks first.
	reg.AddTask(types.TaskDecl{Label: "charge"})
	reg.AddCommand(types.CommandDecl{
		Label: "charge_cycle",
		Cost:  types.Int(3),
		Body: list(sym("assert"), list(sym("battery")), types.Int(100)),
	})
	reg.AddMethod(types.MethodDecl{
		Label:         "m_charge_already_docked",
		TaskLabel:     "charge",
		PreConditions: list(sym("="), list(sym("dock.occupied")), types.Bool(true)),
		Score:         types.Int(1),
		Body:          list(sym("exec-command"), sym("charge_cycle")),
	})
	reg.AddMethod(types.MethodDecl{
		Label:     "m_charge_dock_first",
		TaskLabel: "charge",
		Score:     types.Int(2),
		Body: list(sym("begin"),
			list(sym("dock")),
			list(sym("exec-command"), sym("charge_cycle"))),
	})

	if err := reg.Freeze(); err != nil {
		panic(err)
	}
	return reg
}

// InitialState seeds the facts Build's methods read before any task runs:
// the dock starts free. It holds facts only; the gripper resource (capacity
// 1) that fetch acquires is not part of it.
func InitialState() []types.Fact {
	return []types.Fact{
		{Partition: types.PartitionDynamic, SV: types.StateVariable{sym("dock.occupied")}, Value: types.Bool(false)},
	}
}
