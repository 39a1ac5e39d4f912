package acting

import (
	"testing"

	"github.com/ompas-labs/acting-core/internal/types"
)

func TestNewChildAttachesUnderParent(t *testing.T) {
	tr := New()
	task := tr.NewChild(Root, types.KindTask, "go_get_coffee", nil)
	method := tr.NewChild(task, types.KindMethod, "m_walk_to_kitchen", nil)

	kids := tr.Children(Root)
	if len(kids) != 1 || kids[0] != task {
		t.Fatalf("expected root's only child to be the task, got %v", kids)
	}
	kids = tr.Children(task)
	if len(kids) != 1 || kids[0] != method {
		t.Fatalf("expected task's only child to be the method, got %v", kids)
	}
}

func TestStartFinishLifecycle(t *testing.T) {
	tr := New()
	task := tr.NewChild(Root, types.KindTask, "t", nil)

	n, _ := tr.Get(task)
	if n.Status != types.StatusPending {
		t.Fatalf("expected pending, got %v", n.Status)
	}
	tr.Start(task)
	n, _ = tr.Get(task)
	if n.Status != types.StatusRunning {
		t.Fatalf("expected running, got %v", n.Status)
	}
	tr.Finish(task, types.StatusSuccess, types.Bool(true), nil)
	n, _ = tr.Get(task)
	if n.Status != types.StatusSuccess || n.EndedAt == nil {
		t.Fatalf("expected success with an end time, got %+v", n)
	}
}

func TestFinishTwicePanics(t *testing.T) {
	tr := New()
	task := tr.NewChild(Root, types.KindTask, "t", nil)
	tr.Finish(task, types.StatusSuccess, types.Value{}, nil)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on double Finish")
		}
	}()
	tr.Finish(task, types.StatusFailure, types.Value{}, nil)
}

func TestAncestorsWalkToRoot(t *testing.T) {
	tr := New()
	task := tr.NewChild(Root, types.KindTask, "t", nil)
	method := tr.NewChild(task, types.KindMethod, "m", nil)
	cmd := tr.NewChild(method, types.KindCommand, "c", nil)

	anc := tr.Ancestors(cmd)
	want := []types.ProcessId{method, task, Root}
	if len(anc) != len(want) {
		t.Fatalf("expected %v, got %v", want, anc)
	}
	for i := range want {
		if anc[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, anc)
		}
	}
}

// S6 — cancellation must reach every descendant, not just direct children.
func TestSubtreeCoversWholeDescendantSet(t *testing.T) {
	tr := New()
	task := tr.NewChild(Root, types.KindTask, "t", nil)
	method := tr.NewChild(task, types.KindMethod, "m", nil)
	c1 := tr.NewChild(method, types.KindCommand, "c1", nil)
	c2 := tr.NewChild(method, types.KindCommand, "c2", nil)

	sub := tr.Subtree(task)
	want := map[types.ProcessId]bool{method: true, c1: true, c2: true}
	if len(sub) != len(want) {
		t.Fatalf("expected subtree %v, got %v", want, sub)
	}
	for _, id := range sub {
		if !want[id] {
			t.Fatalf("unexpected id %v in subtree %v", id, sub)
		}
	}
}

func TestEventsPublishesStatusTransitions(t *testing.T) {
	tr := New()
	events := tr.Events()
	task := tr.NewChild(Root, types.KindTask, "t", nil)
	tr.Start(task)
	tr.Finish(task, types.StatusSuccess, types.Value{}, nil)

	var gotRunning, gotSuccess bool
	for i := 0; i < 2; i++ {
		ev := <-events
		if ev.ID != task {
			t.Fatalf("expected event for task id, got %v", ev.ID)
		}
		switch ev.Status {
		case types.StatusRunning:
			gotRunning = true
		case types.StatusSuccess:
			gotSuccess = true
		}
	}
	if !gotRunning || !gotSuccess {
		t.Fatalf("expected both Running and Success events, got running=%v success=%v", gotRunning, gotSuccess)
	}
}
