package executor

import (
	"context"
	"testing"
	"time"

	"github.com/ompas-labs/acting-core/internal/acting"
	"github.com/ompas-labs/acting-core/internal/domain"
	"github.com/ompas-labs/acting-core/internal/monitor"
	"github.com/ompas-labs/acting-core/internal/platform"
	"github.com/ompas-labs/acting-core/internal/resource"
	"github.com/ompas-labs/acting-core/internal/selectpolicy"
	"github.com/ompas-labs/acting-core/internal/types"
	"github.com/ompas-labs/acting-core/internal/worldstate"
)

func newRig(reg *domain.Registry) (*Executor, *worldstate.WorldState, *acting.Tree) {
	ws := worldstate.New()
	tree := acting.New()
	res := resource.New()
	mon := monitor.New(ws)
	plat := platform.NewLocalSimulator(ws, reg)
	ex := New(ws, reg, tree, res, mon, plat, selectpolicy.Greedy{})
	return ex, ws, tree
}

// S1 — single command success.
func TestRunSingleCommandSuccess(t *testing.T) {
	reg := domain.New()
	reg.AddTask(types.TaskDecl{Label: "pick", Params: []types.Param{{Name: "r"}}})
	reg.AddCommand(types.CommandDecl{
		Label:  "pick_cmd",
		Params: []types.Param{{Name: "r"}},
		Body: types.List(types.Sym("assert"),
			types.List(types.Sym("picked"), types.Sym("?r")), types.Bool(true)),
	})
	reg.AddMethod(types.MethodDecl{
		Label:     "m_pick",
		TaskLabel: "pick",
		Params:    []types.Param{{Name: "r"}},
		Body:      types.List(types.Sym("exec-command"), types.Sym("pick_cmd"), types.Sym("?r")),
	})
	if err := reg.Freeze(); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	ex, ws, tree := newRig(reg)
	defer ws.Close()

	result, err := ex.Run(context.Background(), acting.Root, "pick", []types.Value{types.Sym("robot1")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Equal(types.Bool(true)) {
		t.Fatalf("expected true result, got %v", result)
	}

	snap := tree.Snapshot()
	counts := map[types.ProcessKind]int{}
	for _, n := range snap {
		counts[n.Kind]++
		if n.Status != types.StatusSuccess && n.Kind != types.KindRoot {
			t.Fatalf("expected every node Success, node %v has status %v", n.Kind, n.Status)
		}
	}
	if counts[types.KindTask] != 1 || counts[types.KindMethod] != 1 || counts[types.KindCommand] != 1 {
		t.Fatalf("expected exactly one Task/Method/Command node, got %v", counts)
	}
}

// S2 — retry: m1 fails, m2 succeeds.
func TestRunRetriesNextMethodOnFailure(t *testing.T) {
	reg := domain.New()
	reg.AddTask(types.TaskDecl{Label: "t"})
	reg.AddCommand(types.CommandDecl{Label: "fails", Body: types.List(types.Sym("check"), types.Bool(false))})
	reg.AddCommand(types.CommandDecl{Label: "succeeds", Body: types.Bool(true)})
	reg.AddMethod(types.MethodDecl{Label: "m1", TaskLabel: "t", Body: types.List(types.Sym("exec-command"), types.Sym("fails"))})
	reg.AddMethod(types.MethodDecl{Label: "m2", TaskLabel: "t", Body: types.List(types.Sym("exec-command"), types.Sym("succeeds"))})
	if err := reg.Freeze(); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	ex, ws, tree := newRig(reg)
	defer ws.Close()

	_, err := ex.Run(context.Background(), acting.Root, "t", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var methodStatuses []types.Status
	snap := tree.Snapshot()
	for _, n := range snap {
		if n.Kind == types.KindMethod {
			methodStatuses = append(methodStatuses, n.Status)
		}
	}
	if len(methodStatuses) != 2 {
		t.Fatalf("expected two method attempts, got %d", len(methodStatuses))
	}
	failures, successes := 0, 0
	for _, s := range methodStatuses {
		if s == types.StatusFailure {
			failures++
		}
		if s == types.StatusSuccess {
			successes++
		}
	}
	if failures != 1 || successes != 1 {
		t.Fatalf("expected one failure and one success, got statuses %v", methodStatuses)
	}
}

// S5 — monitor: wait-for resolves once another actor asserts the awaited fact.
func TestRunWaitForResolvesOnAssert(t *testing.T) {
	reg := domain.New()
	reg.AddTask(types.TaskDecl{Label: "wait_task"})
	reg.AddMethod(types.MethodDecl{
		Label: "m_wait", TaskLabel: "wait_task",
		Body: types.List(types.Sym("wait-for"),
			types.List(types.Sym("="), types.List(types.Sym("robot.busy")), types.Bool(false))),
	})
	if err := reg.Freeze(); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	ex, ws, _ := newRig(reg)
	defer ws.Close()
	ws.AddFact(types.PartitionDynamic, types.StateVariable{types.Sym("robot.busy")}, types.Bool(true))

	done := make(chan *types.EngineError, 1)
	go func() {
		_, err := ex.Run(context.Background(), acting.Root, "wait_task", nil)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	ws.AddFact(types.PartitionDynamic, types.StateVariable{types.Sym("robot.busy")}, types.Bool(false))

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("wait-for did not resolve after the asserting fact changed")
	}
}

// S6 — cancellation: a task blocked in wait-for transitions to Cancelled once
// its context is cancelled, without ever observing the awaited fact.
func TestRunCancellationPropagatesToWaitingMethod(t *testing.T) {
	reg := domain.New()
	reg.AddTask(types.TaskDecl{Label: "stuck"})
	reg.AddMethod(types.MethodDecl{
		Label: "m_stuck", TaskLabel: "stuck",
		Body: types.List(types.Sym("wait-for"),
			types.List(types.Sym("="), types.List(types.Sym("p")), types.Int(1))),
	})
	if err := reg.Freeze(); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	ex, ws, tree := newRig(reg)
	defer ws.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *types.EngineError, 1)
	go func() {
		_, err := ex.Run(ctx, acting.Root, "stuck", nil)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil || err.Kind != types.ErrCancellation {
			t.Fatalf("expected a cancellation error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled run did not unwind")
	}

	snap := tree.Snapshot()
	for _, n := range snap {
		if n.Kind == types.KindTask || n.Kind == types.KindMethod {
			if n.Status != types.StatusCancelled {
				t.Fatalf("expected %v node Cancelled, got %v", n.Kind, n.Status)
			}
		}
	}
}

// S3-style contention: acquire-then-release frees the resource for the next
// holder, so two sequential runs of a task that holds R never deadlock and
// leave it unlocked afterwards.
func TestRunResourceAcquireThenReleaseFreesForNextHolder(t *testing.T) {
	reg := domain.New()
	reg.AddTask(types.TaskDecl{Label: "hold"})
	reg.AddMethod(types.MethodDecl{
		Label: "m_hold", TaskLabel: "hold",
		Body: types.List(types.Sym("let"),
			types.List(types.List(types.Sym("?h"),
				types.List(types.Sym("acquire"), types.Sym("R"), types.Int(1), types.Int(0)))),
			types.List(types.Sym("release"), types.Sym("?h"))),
	})
	if err := reg.Freeze(); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	ex, ws, _ := newRig(reg)
	defer ws.Close()
	ex.Resources.Declare("R", 1)

	for i := 0; i < 2; i++ {
		if _, err := ex.Run(context.Background(), acting.Root, "hold", nil); err != nil {
			t.Fatalf("run %d: unexpected error: %v", i, err)
		}
	}
	if ex.Resources.IsLocked("R") {
		t.Fatal("expected R free after both holders released")
	}
}

// A method that acquires a resource and then fails without releasing it
// still frees the resource: the method node's scope exit force-releases
// whatever it still holds (spec.md §9's acquire-release-discipline
// resolution).
func TestRunForceReleasesResourceOnMethodFailure(t *testing.T) {
	reg := domain.New()
	reg.AddTask(types.TaskDecl{Label: "careless"})
	reg.AddMethod(types.MethodDecl{
		Label: "m_careless", TaskLabel: "careless",
		Body: types.List(types.Sym("begin"),
			types.List(types.Sym("acquire"), types.Sym("R"), types.Int(1), types.Int(0)),
			types.List(types.Sym("check"), types.Bool(false))),
	})
	if err := reg.Freeze(); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	ex, ws, _ := newRig(reg)
	defer ws.Close()
	ex.Resources.Declare("R", 1)

	if _, err := ex.Run(context.Background(), acting.Root, "careless", nil); err == nil {
		t.Fatal("expected the task to fail (its only method always fails)")
	}
	if ex.Resources.IsLocked("R") {
		t.Fatal("expected R force-released once the failing method's node finished")
	}
}
