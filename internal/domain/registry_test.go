package domain

import (
	"testing"

	"github.com/ompas-labs/acting-core/internal/types"
)

func TestAddAndLookupTask(t *testing.T) {
	r := New()
	r.AddTask(types.TaskDecl{Label: "go_get_coffee"})
	if _, ok := r.LookupTask("go_get_coffee"); !ok {
		t.Fatalf("expected task to be found")
	}
	if _, ok := r.LookupTask("nope"); ok {
		t.Fatalf("expected unknown task to be absent")
	}
}

func TestDuplicateTaskPanics(t *testing.T) {
	r := New()
	r.AddTask(types.TaskDecl{Label: "t"})
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate task")
		}
	}()
	r.AddTask(types.TaskDecl{Label: "t"})
}

func TestMethodsReturnedInDeclarationOrder(t *testing.T) {
	r := New()
	r.AddTask(types.TaskDecl{Label: "t"})
	r.AddMethod(types.MethodDecl{Label: "m1", TaskLabel: "t"})
	r.AddMethod(types.MethodDecl{Label: "m2", TaskLabel: "t"})

	ms := r.Methods("t")
	if len(ms) != 2 || ms[0].Label != "m1" || ms[1].Label != "m2" {
		t.Fatalf("expected [m1 m2] in order, got %v", ms)
	}
}

func TestFreezeRejectsMethodForUnknownTask(t *testing.T) {
	r := New()
	r.AddMethod(types.MethodDecl{Label: "m", TaskLabel: "ghost"})
	if err := r.Freeze(); err == nil {
		t.Fatalf("expected Freeze to reject a method for an unregistered task")
	}
}

func TestAddAfterFreezePanics(t *testing.T) {
	r := New()
	r.AddTask(types.TaskDecl{Label: "t"})
	if err := r.Freeze(); err != nil {
		t.Fatalf("unexpected freeze error: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic when adding after Freeze")
		}
	}()
	r.AddTask(types.TaskDecl{Label: "t2"})
}
